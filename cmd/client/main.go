package main

import (
	"bufio"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/HMasataka/sensorlink"
	"github.com/HMasataka/sensorlink/logging"
)

func main() {
	var (
		serverAddr = flag.String("server", "ws://localhost:8080/ws", "relay WebSocket URL")
		userID     = flag.String("user", "12345", "user_id sent in the handshake")
		logLevel   = flag.String("log-level", "info", "log level (debug, info, warn, error)")
	)
	flag.Parse()

	logger := logging.New(logging.Config{
		Level:  *logLevel,
		Format: "text",
	})

	serverURL, err := url.Parse(*serverAddr)
	if err != nil {
		log.Fatalf("invalid server URL: %v", err)
	}

	client, err := sensorlink.NewClient(*serverURL)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}

	ack, err := client.Handshake(*userID, 5*time.Second)
	if err != nil {
		log.Fatalf("handshake failed: %v", err)
	}
	logger.Info("connected", "user_id", ack.UserID, "server", *serverAddr)

	go func() {
		if err := client.Read(os.Stdout); err != nil {
			logger.Warn("connection closed", "error", err)
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	for {
		select {
		case <-client.Done():
			return
		case line, ok := <-lines:
			if !ok {
				client.Close()
				return
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if err := client.Send(line); err != nil {
				logger.Error("failed to send message", "error", err)
				return
			}
		case <-interrupt:
			logger.Info("interrupt")
			if err := client.Close(); err != nil {
				logger.Debug("error closing connection", "error", err)
			}
			return
		}
	}
}
