// Package main provides the coffers ledger daemon. It wires together
// configuration, database, region registry, payment engine, offer book,
// macros, and the GM console.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/tmarsden/coffers/internal/config"
	"github.com/tmarsden/coffers/internal/console"
	"github.com/tmarsden/coffers/internal/dice"
	"github.com/tmarsden/coffers/internal/grant"
	"github.com/tmarsden/coffers/internal/ledger"
	"github.com/tmarsden/coffers/internal/macro"
	"github.com/tmarsden/coffers/internal/observability"
	"github.com/tmarsden/coffers/internal/server"
	"github.com/tmarsden/coffers/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	// Initialize logger
	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting coffers ledger daemon",
		zap.String("regions_dir", cfg.Ledger.RegionsDir),
	)

	// Connect to PostgreSQL
	ctx := context.Background()
	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("database", cfg.Database.Name),
		zap.Duration("elapsed", time.Since(dbStart)),
	)

	// Load region definitions and restore the persisted pivot region
	registry, err := ledger.NewRegistryFromDir(cfg.Ledger.RegionsDir, logger)
	if err != nil {
		logger.Fatal("loading regions", zap.Error(err))
	}
	settings := postgres.NewSettingsRepository(pool.DB())
	if err := registry.WithSettingStore(ctx, settings); err != nil {
		logger.Fatal("restoring current region", zap.Error(err))
	}
	if _, ok := registry.Current(); !ok {
		if err := registry.SetCurrent(ctx, cfg.Ledger.CurrentRegion); err != nil {
			logger.Fatal("selecting default region", zap.Error(err))
		}
	}
	current, _ := registry.Current()
	logger.Info("regions loaded",
		zap.Int("regions", len(registry.Regions())),
		zap.String("current", current.Key),
	)

	// Build services
	holdings := postgres.NewHoldingRepository(pool.DB())
	roller := dice.NewRoller(dice.NewCryptoSource(), logger)
	engine := ledger.NewEngine(registry, holdings, logger, ledger.WithFlourish(roller))
	book := grant.NewBook(engine, logger)

	macros := macro.NewManager(logger)
	defer macros.Close()
	macros.Pay = func(characterID int64, command string) (string, error) {
		outcome, err := engine.Pay(ctx, characterID, command)
		if err != nil {
			return "", err
		}
		return outcome.Summary(), nil
	}
	macros.Credit = func(characterID int64, command string) (string, error) {
		outcome, err := engine.Credit(ctx, characterID, command)
		if err != nil {
			return "", err
		}
		return outcome.Summary(), nil
	}
	macros.Balance = func(characterID int64) (int, error) {
		grouped, err := engine.Balance(ctx, characterID)
		if err != nil {
			return 0, err
		}
		return grouped.TotalConverted, nil
	}
	if cfg.Macro.Dir != "" {
		if err := macros.Load(cfg.Macro.Dir, cfg.Macro.InstructionLimit); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				logger.Warn("macro directory missing, macros disabled",
					zap.String("dir", cfg.Macro.Dir),
				)
			} else {
				logger.Fatal("loading macros", zap.Error(err))
			}
		}
	}

	gmConsole := console.NewConsole(engine, registry, book, macros, os.Stdin, os.Stdout, logger)

	// Wire lifecycle
	lifecycle := server.NewLifecycle(logger)

	lifecycle.Add("postgres", &server.FuncService{
		StartFn: func() error {
			// Pool is already connected; just keep it alive
			for {
				time.Sleep(30 * time.Second)
				if err := pool.Health(ctx, 5*time.Second); err != nil {
					logger.Warn("database health check failed", zap.Error(err))
				}
			}
		},
		StopFn: func() {
			pool.Close()
		},
	})

	lifecycle.Add("console", gmConsole)

	logger.Info("daemon initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("current_region", fmt.Sprintf("%s (%s)", current.Key, current.Name)),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("daemon error", zap.Error(err))
	}
}
