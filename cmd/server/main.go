package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"finance-ledger-go/internal/config"
	"finance-ledger-go/internal/database"
	httpserver "finance-ledger-go/internal/http"
	"finance-ledger-go/internal/logging"
	"finance-ledger-go/internal/models"
)

func main() {
	_ = godotenv.Load(".env")
	logging.Setup()

	cfg := config.Load()
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	err := database.DB.AutoMigrate(
		&models.User{},
		&models.Account{},
		&models.FundBucket{},
		&models.SavingsGoal{},
		&models.Liability{},
		&models.LiabilityPayment{},
		&models.ScheduleEntry{},
	)
	if err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	r := httpserver.NewServer(cfg)
	slog.Info("listening", "port", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
