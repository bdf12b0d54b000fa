package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/karousn/sftpbridge/internal/app"
	"github.com/karousn/sftpbridge/internal/app/maintenance"
	"github.com/karousn/sftpbridge/internal/database"
	"github.com/karousn/sftpbridge/internal/errorlog"
	"github.com/karousn/sftpbridge/internal/vault"
	"github.com/karousn/sftpbridge/pkg/logger"
)

// runtimeStack bundles the long-lived collaborators behind the agent.
type runtimeStack struct {
	DB      *gorm.DB
	Store   *errorlog.Store
	Vault   *vault.Crypto
	Cleaner *maintenance.Cleaner
	Runner  *jobRunner
}

// bootstrapRuntime initialises the database, the error log store, vault
// crypto and the job runner.
func bootstrapRuntime(cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	stack.Store, err = errorlog.NewStore(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise error log store: %w", err)
	}

	stack.Vault, err = initialiseVault(cfg)
	if err != nil {
		return nil, err
	}

	maintenanceOpts := []maintenance.Option{
		maintenance.WithRetentionDays(cfg.Maintenance.RetentionDays),
		maintenance.WithSchedule(cfg.Maintenance.Schedule),
	}
	if cfg.Maintenance.Enabled {
		stack.Cleaner = maintenance.NewCleaner(stack.Store, maintenanceOpts...)
	} else {
		stack.Cleaner = maintenance.NewCleaner(nil)
	}
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	stack.Runner = newJobRunner(cfg, stack.Store, stack.Vault)

	success = true
	return stack, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		stopCtx := s.Cleaner.Stop()
		if stopCtx != nil {
			ctx = stopCtx
		}
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	closeDatabase(s.DB, log)
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

// initialiseVault builds the credential decryption helper when a master
// key is configured. Jobs with encrypted account passwords require one.
func initialiseVault(cfg *app.Config) (*vault.Crypto, error) {
	key := strings.TrimSpace(cfg.Vault.EncryptionKey)
	if key == "" {
		for _, job := range cfg.Jobs {
			if job.Account.Encrypted {
				return nil, fmt.Errorf("job %q uses an encrypted password but vault.encryption_key is not configured", job.Name)
			}
		}
		return nil, nil
	}

	masterKey, err := app.DecodeKey(key)
	if err != nil {
		return nil, fmt.Errorf("decode vault encryption key: %w", err)
	}

	crypto, err := vault.NewCrypto(masterKey)
	if err != nil {
		return nil, fmt.Errorf("initialise vault crypto: %w", err)
	}

	return crypto, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:   strings.TrimSpace(cfg.Database.Path),
		DSN:    strings.TrimSpace(cfg.Database.DSN),
	}

	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		dbCfg.Host = strings.TrimSpace(cfg.Database.Postgres.Host)
		dbCfg.Port = cfg.Database.Postgres.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.Postgres.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.Postgres.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.Postgres.Password)
	case "mysql":
		dbCfg.Host = strings.TrimSpace(cfg.Database.MySQL.Host)
		dbCfg.Port = cfg.Database.MySQL.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.MySQL.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.MySQL.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.MySQL.Password)
	default:
		// Leave driver as-is to surface unsupported driver error during open.
	}

	return dbCfg
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		if !errors.Is(err, gorm.ErrInvalidDB) {
			log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		}
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
