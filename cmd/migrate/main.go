package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"hr-admin/internal/shared/connection"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Applies migrations/*.sql in lexical order, once each, recorded in
// schema_migrations. Runs at deployment time; the application itself
// never alters the schema.
func main() {
	_ = godotenv.Load()
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	gormDB, err := connection.ConnectGORMWithRetry(
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_SSLMODE"),
		5,
	)
	if err != nil {
		logger.Fatal("connect database failed", zap.Error(err))
	}

	dir := os.Getenv("MIGRATIONS_DIR")
	if dir == "" {
		dir = "migrations"
	}

	if err := runMigrations(gormDB, dir, logger); err != nil {
		logger.Fatal("migrate failed", zap.Error(err))
	}

	logger.Info("migrations complete")
}

func runMigrations(db *gorm.DB, dir string, logger *zap.Logger) error {
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    text PRIMARY KEY,
			applied_at timestamptz NOT NULL DEFAULT now()
		)
	`).Error; err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return err
	}
	sort.Strings(files)

	for _, file := range files {
		version := filepath.Base(file)

		var count int64
		if err := db.Raw(
			"SELECT COUNT(*) FROM schema_migrations WHERE version = ?", version,
		).Scan(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			logger.Debug("migration already applied", zap.String("version", version))
			continue
		}

		contents, err := os.ReadFile(file)
		if err != nil {
			return err
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(string(contents)).Error; err != nil {
				return fmt.Errorf("apply %s: %w", version, err)
			}
			return tx.Exec(
				"INSERT INTO schema_migrations (version) VALUES (?)", version,
			).Error
		})
		if err != nil {
			return err
		}

		logger.Info("migration applied", zap.String("version", version))
	}

	return nil
}
