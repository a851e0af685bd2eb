package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/davidleathers/dutch-auction-exchange/internal/infrastructure/config"
	"github.com/davidleathers/dutch-auction-exchange/internal/infrastructure/database"
)

type action string

const (
	actionUp     action = "up"
	actionDown   action = "down"
	actionStatus action = "status"
)

func parseAction(s string) (action, error) {
	switch a := action(s); a {
	case actionUp, actionDown, actionStatus:
		return a, nil
	default:
		return "", fmt.Errorf("unknown action %q (want up, down or status)", s)
	}
}

func main() {
	var (
		configPath = flag.String("config", "", "Path to configuration file")
		actionFlag = flag.String("action", "up", "Migration action: up, down, status")
		steps      = flag.Int("steps", 0, "Number of migrations to roll back (0 = all)")
	)
	flag.Parse()

	act, err := parseAction(*actionFlag)
	if err != nil {
		log.Fatal(err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("database.url is required (set DAX_DATABASE_URL)")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(act, cfg.Database.URL, *steps, logger); err != nil {
		logger.Error("migration failed", zap.String("action", string(act)), zap.Error(err))
		os.Exit(1)
	}
}

func run(act action, url string, steps int, logger *zap.Logger) error {
	m, err := database.NewMigrator(url, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.Warn("closing migrator", zap.Error(err))
		}
	}()

	switch act {
	case actionUp:
		return m.Up()
	case actionDown:
		return m.Down(steps)
	default:
		v, dirty, err := m.Version()
		if err != nil {
			return err
		}
		logger.Info("schema status", zap.Uint("version", v), zap.Bool("dirty", dirty))
		return nil
	}
}
