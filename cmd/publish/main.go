package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/HMasataka/sensorlink/broker"
	"github.com/HMasataka/sensorlink/internal/config"
	"github.com/HMasataka/sensorlink/logging"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML or JSON config file")
		userID     = flag.String("user", "12345", "user_id the notification is addressed to")
	)
	flag.Parse()

	cfg, err := config.Load(config.LoadOptions{Path: *configPath})
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.New(cfg.Logging)

	pub, err := broker.NewPublisher(cfg.Broker.URL(), cfg.Broker.Queue, logger)
	if err != nil {
		log.Fatalf("failed to connect to broker: %v", err)
	}
	defer pub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := pub.Publish(ctx, broker.NewTestNotification(*userID, time.Now())); err != nil {
		logger.Error("failed to publish notification", "error", err)
		return
	}

	logger.Info("sent test notification", "queue", cfg.Broker.Queue, "user_id", *userID)
}
