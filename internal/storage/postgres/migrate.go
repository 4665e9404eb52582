package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"callIndexer/migrations"
)

const schemaMigrationLockID int64 = 0x43414c4c5f494458 // "CALL_IDX"

var requiredTables = []string{
	"event_log",
	"indexer_checkpoint",
}

// EnsureSchema applies pending embedded migrations under an advisory lock.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	if pool == nil {
		return errors.New("nil database pool")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	started := time.Now()
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire db connection for migrations: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, schemaMigrationLockID); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := conn.Exec(unlockCtx, `SELECT pg_advisory_unlock($1)`, schemaMigrationLockID); err != nil {
			logger.Error("migration unlock failed", zap.Error(err))
		}
	}()

	if _, err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	files, err := migrations.Ordered()
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}

	applied := 0
	for _, file := range files {
		var done bool
		if err := conn.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)`,
			file.Name,
		).Scan(&done); err != nil {
			return fmt.Errorf("check migration %s: %w", file.Name, err)
		}
		if done {
			continue
		}

		logger.Info("applying migration", zap.String("file", file.Name))
		if err := applyMigration(ctx, conn, file); err != nil {
			return fmt.Errorf("apply migration %s: %w", file.Name, err)
		}
		applied++
	}

	logger.Info("migrations complete",
		zap.Int("applied", applied),
		zap.Int("total", len(files)),
		zap.Duration("duration", time.Since(started)),
	)
	return SchemaReady(ctx, pool)
}

func applyMigration(ctx context.Context, conn *pgxpool.Conn, file migrations.File) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, file.SQL, pgx.QueryExecModeSimpleProtocol); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (filename) VALUES ($1)`, file.Name); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// SchemaReady reports an error naming any required table that is missing.
func SchemaReady(ctx context.Context, pool *pgxpool.Pool) error {
	missing := make([]string, 0, len(requiredTables))
	for _, table := range requiredTables {
		var name *string
		if err := pool.QueryRow(ctx, `SELECT to_regclass($1)`, "public."+table).Scan(&name); err != nil {
			return fmt.Errorf("check table %s: %w", table, err)
		}
		if name == nil || strings.TrimSpace(*name) == "" {
			missing = append(missing, table)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("required tables missing: %s", strings.Join(missing, ", "))
	}
	return nil
}
