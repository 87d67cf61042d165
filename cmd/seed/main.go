// seed inserts development fixtures for local testing: go run ./cmd/seed [-file fixtures.yaml].
// Without -file the embedded fixtures.yaml is used. Idempotent: existing rows are skipped.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"

	"callflow/backend/internal/config"
	"callflow/backend/internal/db"
	"callflow/backend/internal/db/migrate"
	"callflow/backend/internal/logging"
	"callflow/backend/internal/security"
)

func main() {
	file := flag.String("file", "", "YAML fixtures file (default: embedded fixtures)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", logging.Error(err))
		os.Exit(1)
	}
	logger := logging.New("callflow-seed", cfg.Env, cfg.Version, cfg.LogLevel)
	if cfg.DatabaseURL == "" {
		logger.Error(migrate.ErrMissingDSN.Error())
		os.Exit(1)
	}

	raw := defaultFixtures
	if *file != "" {
		if raw, err = os.ReadFile(*file); err != nil {
			logger.Error("read fixtures", logging.Error(err))
			os.Exit(1)
		}
	}
	fixtures, err := loadFixtures(raw)
	if err != nil {
		logger.Error("load fixtures", logging.Error(err))
		os.Exit(1)
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Error("db", logging.Error(err))
		os.Exit(1)
	}
	defer conn.Close()

	ctx := context.Background()
	hasher := security.NewHasher(cfg.BcryptCost)
	if err := db.InTx(ctx, conn, func(tx *sql.Tx) error {
		return fixtures.apply(ctx, tx, hasher)
	}); err != nil {
		logger.Error("seed failed", logging.Error(err))
		os.Exit(1)
	}
	logger.Info("seed applied",
		slog.Int("companies", len(fixtures.Companies)),
		slog.Int("users", len(fixtures.Users)),
		slog.Int("segments", len(fixtures.Segments)),
		slog.Int("policies", len(fixtures.Policies)))
}
