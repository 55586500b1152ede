package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/shenikar/truck_dispatch_system/internal/config"
	"github.com/shenikar/truck_dispatch_system/pkg/logger"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const appName = "truck-dispatch"

// @title Truck Dispatch System API
// @version 1.0
// @description Incident intake and nearest-truck dispatch API.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
func main() {
	// Контекст для graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serveCmd := newServeCmd()
	root := &cobra.Command{
		Use:           appName,
		Short:         "Incident intake and nearest-truck dispatch service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serveCmd.RunE,
	}
	root.AddCommand(serveCmd, newMigrateCmd())
	return root
}

// bootstrap загружает конфигурацию и создает логгер
func bootstrap() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Error("Failed to load config")
		return nil, nil, err
	}
	return cfg, logger.New(appName, cfg.LogLevel), nil
}
