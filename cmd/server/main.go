package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"eci-results-crawler/internal/config"
	"eci-results-crawler/internal/store"
	"eci-results-crawler/pkg/logger"
)

func main() {
	cfgFile := flag.String("config", "", "config file (default: ./config.yaml)")
	flag.Parse()

	cfg, err := config.Load(viper.New(), *cfgFile)
	l := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		l.Error("load config", "err", err)
		os.Exit(1)
	}
	if cfg.Output.Checkpoint == "" {
		l.Error("output.checkpoint is not set; nothing to serve")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Output.Checkpoint, "")
	if err != nil {
		l.Error("open checkpoint", "path", cfg.Output.Checkpoint, "err", err)
		os.Exit(1)
	}
	defer st.Close()

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      logRequest(l, newMux(st, l)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		l.Info("server listening", "addr", cfg.Server.Addr, "checkpoint", cfg.Output.Checkpoint)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			l.Error("server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	l.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	l.Info("bye")
}
