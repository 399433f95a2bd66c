// Command cascade-lambda consumes the documents table stream and finishes the
// reference cleanup of removed classes.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jacentio/groundtruth/internal/config"
	"github.com/jacentio/groundtruth/stream"
)

func main() {
	cfg, err := config.Load(os.Getenv(config.EnvPrefix + "CONFIG"))
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)

	s, err := cfg.Open(context.Background(), logger, nil)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}

	handler := stream.NewHandler(s, logger)
	lambda.Start(handler.HandleCascadeDelete)
}
