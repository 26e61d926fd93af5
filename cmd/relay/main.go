package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/HMasataka/sensorlink/broker"
	"github.com/HMasataka/sensorlink/domain"
	"github.com/HMasataka/sensorlink/hub"
	"github.com/HMasataka/sensorlink/internal/config"
	"github.com/HMasataka/sensorlink/internal/eventbus"
	"github.com/HMasataka/sensorlink/internal/metrics"
	"github.com/HMasataka/sensorlink/internal/store"
	"github.com/HMasataka/sensorlink/logging"
	apperrors "github.com/HMasataka/sensorlink/pkg/errors"
	"github.com/HMasataka/sensorlink/router"
	sig "github.com/HMasataka/sensorlink/signal"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML or JSON config file")
	flag.Parse()

	cfg, err := config.Load(config.LoadOptions{Path: *configPath})
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.New(cfg.Logging)
	errs := apperrors.NewDefaultHandler(logger.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithLogger(ctx, logger)

	bus := eventbus.NewInMemoryBus()

	m := metrics.New()
	m.Subscribe(bus)

	repo, closeRepo, err := newRepository(cfg.Store, logger)
	if err != nil {
		logger.Error("failed to create message store", "error", err)
		os.Exit(1)
	}
	defer closeRepo()

	h := hub.New(hub.HubOptions{Logger: logger, Bus: bus})
	rt := router.NewRouter(h, repo, router.Options{Logger: logger, Bus: bus})

	bridge := broker.NewBridge(broker.Options{
		URL:      cfg.Broker.URL(),
		Queue:    cfg.Broker.Queue,
		Logger:   logger,
		Bus:      bus,
		Registry: broker.NewRegistry(h, bus, logger),
	})
	if err := bridge.Start(ctx); err != nil {
		// The relay keeps serving WebSocket clients without notifications.
		errs.Handle(ctx, err)
	}

	serverOptions := sig.DefaultServerOptions()
	serverOptions.Logger = logger
	serverOptions.Bus = bus
	wsServer := sig.NewServer(h, rt, serverOptions)

	httpServer := &http.Server{
		Addr: cfg.Server.Addr(),
		Handler: sig.NewHTTPHandler(wsServer, h, rt, sig.HTTPOptions{
			Logger:  logger,
			Broker:  bridge,
			Metrics: m.Handler(),
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("websocket server listening", "addr", httpServer.Addr)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := bridge.Close(); err != nil {
		logger.Warn("error closing broker bridge", "error", err)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error shutting down http server", "error", err)
	}
	wsServer.Close()
	h.Close()

	logger.Info("server stopped")
}

func newRepository(cfg config.StoreConfig, logger *logging.Logger) (domain.MessageRepository, func(), error) {
	switch cfg.Backend {
	case config.StoreRedis:
		r, err := store.NewRedis(cfg.RedisURL, store.RedisOptions{
			Key:         cfg.RedisKey,
			MaxMessages: cfg.MaxMessages,
			Logger:      logger,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := r.Ping(context.Background()); err != nil {
			logger.Warn("redis not reachable, messages will not be persisted until it is", "error", err)
		}
		return r, func() { _ = r.Close() }, nil
	default:
		return store.NewMemory(), func() {}, nil
	}
}
