package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"github.com/devaloi/parley/internal/config"
	"github.com/devaloi/parley/internal/handler"
	"github.com/devaloi/parley/internal/hub"
	"github.com/devaloi/parley/internal/middleware"
	"github.com/devaloi/parley/internal/state"
	"github.com/devaloi/parley/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	s, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer func() {
		log.Info("Closing store...")
		_ = s.Close()
	}()

	c := state.New(s, log)
	if err := c.Load(); err != nil {
		// Corrupt snapshot: keep running on empty state.
		log.Error("Snapshot unreadable, starting empty", "error", err)
	}

	h := hub.New(c, log, hub.Options{
		PageSize:    cfg.PageSize,
		ReplyDelay:  cfg.ReplyDelay,
		ReplySender: cfg.ReplySender,
	})
	go h.Run()
	defer h.Stop()

	mux := handler.Routes(h, log)
	mux.Handle("/", http.FileServer(http.Dir("static")))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           middleware.Logging(log, middleware.CORS(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		log.Info("parley listening", "address", srv.Addr, "store", cfg.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", "error", err)
	}
	cancelled := h.Shutdown()
	log.Info("Program stopped cleanly", "pending_replies_cancelled", cancelled)
	return nil
}

func openStore(cfg config.Config) (store.Store, error) {
	switch cfg.Store {
	case config.StoreBadger:
		return store.NewBadger(cfg.BadgerPath)
	default:
		return store.NewSQLite(cfg.DBPath)
	}
}
