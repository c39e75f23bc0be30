package main

import (
	"context"
	"fmt"
	"os"

	"github.com/RichardoC/insurance-assistant/internal/app"
	"github.com/RichardoC/insurance-assistant/internal/cli"
	"github.com/RichardoC/insurance-assistant/internal/config"
	"go.uber.org/zap"
)

// Terminal chat against the same session log the server uses.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(1)
	}

	// Keep the terminal for the conversation; only warnings and above are
	// logged.
	logger, err := zap.NewProduction(zap.IncreaseLevel(zap.WarnLevel))
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize assistant", zap.Error(err))
	}
	defer a.Close()

	if err := cli.New(a.Engine, os.Stdin, os.Stdout).Run(context.Background()); err != nil {
		logger.Error("chat ended with error", zap.Error(err))
	}
}
