// cmd/worker consumes queued notifications and sends them as email.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Shivanand-hulikatti/happening-registration/internal/config"
	"github.com/Shivanand-hulikatti/happening-registration/internal/logger"
	"github.com/Shivanand-hulikatti/happening-registration/internal/notify"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return err
	}
	if cfg.RabbitMQURL == "" {
		return errors.New("RABBITMQ_URL is required")
	}

	w := notify.NewWorker(notify.WorkerConfig{
		URL:     cfg.RabbitMQURL,
		Queue:   cfg.NotifyQueue,
		BaseURL: cfg.RegistrationsURL,
	}, notify.NewSMTPMailer(cfg.SMTP), log)

	log.Info().Str("queue", cfg.NotifyQueue).Msg("notification worker starting")
	return w.Run(ctx)
}
