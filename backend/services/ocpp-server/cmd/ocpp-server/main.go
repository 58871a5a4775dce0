package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"chargerlink/backend/libs/logging"
	"chargerlink/backend/services/ocpp-server/internal/app"
	"chargerlink/backend/services/ocpp-server/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to init application", zap.Error(err))
	}
	defer application.Close()

	logger.Info("ocpp gateway configured",
		zap.String("charger_addr", cfg.ChargerAddress()),
		zap.String("api_addr", cfg.APIAddress()),
		zap.Int("evse_id", cfg.Charger.EVSEID),
		zap.Int("connector_id", cfg.Charger.ConnectorID))

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("application stopped with error", zap.Error(err))
	}
}
