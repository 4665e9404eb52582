package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"callIndexer/internal/model"
	"callIndexer/internal/storage"
)

const recordColumns = `id, event_id, contract_id, kind, ledger, tx_hash, tx_order, op_index, event_index, payload, event_time, ingested_at`

// Store persists the event log and checkpoints in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

// NewPool opens a connection pool and checks connectivity.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pg dsn: %w", err)
	}
	cfg.MaxConns = 5
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := NewPool(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// NewStoreFromPool wraps an existing pool. Close will close the pool.
func NewStoreFromPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// InsertEvent appends rec; a conflicting event_id is skipped.
func (s *Store) InsertEvent(ctx context.Context, rec model.EventLogRecord) (bool, error) {
	var callID *int64
	if payload, err := rec.Decoded(); err == nil {
		if id, ok := model.CallIDOf(payload); ok {
			v := int64(id)
			callID = &v
		}
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO event_log (
			id, event_id, contract_id, kind, ledger, tx_hash, tx_order, op_index, event_index,
			call_id, payload, event_time, ingested_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (event_id) DO NOTHING
	`,
		rec.ID,
		rec.EventID,
		rec.ContractID,
		string(rec.Kind),
		int64(rec.Ledger),
		rec.TxHash,
		rec.TxOrder,
		rec.OpIndex,
		rec.EventIndex,
		callID,
		[]byte(rec.Payload),
		rec.EventTime,
		rec.IngestedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert event %s: %w", rec.EventID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) QueryEvents(ctx context.Context, q storage.EventQuery) ([]model.EventLogRecord, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if q.Kind != "" {
		add("kind = $%d", string(q.Kind))
	}
	if q.ContractID != "" {
		add("contract_id = $%d", q.ContractID)
	}
	if q.FromLedger != 0 {
		add("ledger >= $%d", int64(q.FromLedger))
	}
	if q.ToLedger != 0 {
		add("ledger <= $%d", int64(q.ToLedger))
	}
	if q.CallID != nil {
		add("call_id = $%d", int64(*q.CallID))
	}

	sql := `SELECT ` + recordColumns + ` FROM event_log`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY ledger DESC, tx_order DESC, op_index DESC, event_index DESC`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}
	return out, nil
}

func (s *Store) MaxLedger(ctx context.Context, contractIDs []string) (uint32, bool, error) {
	var ledger *int64
	row := s.pool.QueryRow(ctx, `SELECT MAX(ledger) FROM event_log WHERE contract_id = ANY($1)`, contractIDs)
	if err := row.Scan(&ledger); err != nil {
		return 0, false, fmt.Errorf("max ledger: %w", err)
	}
	if ledger == nil {
		return 0, false, nil
	}
	return uint32(*ledger), true, nil
}

func (s *Store) LatestEvent(ctx context.Context) (model.EventLogRecord, bool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+recordColumns+` FROM event_log
		ORDER BY ledger DESC, tx_order DESC, op_index DESC, event_index DESC
		LIMIT 1
	`)
	if err != nil {
		return model.EventLogRecord{}, false, fmt.Errorf("latest event: %w", err)
	}
	rec, err := pgx.CollectExactlyOneRow(rows, scanRecord)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.EventLogRecord{}, false, nil
		}
		return model.EventLogRecord{}, false, fmt.Errorf("latest event: %w", err)
	}
	return rec, true, nil
}

func (s *Store) CountEvents(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM event_log`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

func (s *Store) LoadCheckpoints(ctx context.Context, contractIDs []string) (map[string]uint32, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT contract_id, last_ledger FROM indexer_checkpoint WHERE contract_id = ANY($1)
	`, contractIDs)
	if err != nil {
		return nil, fmt.Errorf("load checkpoints: %w", err)
	}
	defer rows.Close()

	out := make(map[string]uint32, len(contractIDs))
	for rows.Next() {
		var (
			id     string
			ledger int64
		)
		if err := rows.Scan(&id, &ledger); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		out[id] = uint32(ledger)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load checkpoints: %w", err)
	}
	return out, nil
}

// SaveCheckpoint upserts every contract's row in one transaction. Rows never
// move backwards.
func (s *Store) SaveCheckpoint(ctx context.Context, contractIDs []string, ledger uint32) error {
	if len(contractIDs) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin checkpoint tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	batch := &pgx.Batch{}
	for _, id := range contractIDs {
		batch.Queue(`
			INSERT INTO indexer_checkpoint (contract_id, last_ledger, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (contract_id) DO UPDATE
			SET last_ledger = GREATEST(indexer_checkpoint.last_ledger, EXCLUDED.last_ledger),
			    updated_at = now()
		`, id, int64(ledger))
	}
	br := tx.SendBatch(ctx, batch)
	for range contractIDs {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("save checkpoint: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return tx.Commit(ctx)
}

func scanRecord(row pgx.CollectableRow) (model.EventLogRecord, error) {
	var (
		rec     model.EventLogRecord
		kind    string
		ledger  int64
		payload []byte
	)
	err := row.Scan(
		&rec.ID,
		&rec.EventID,
		&rec.ContractID,
		&kind,
		&ledger,
		&rec.TxHash,
		&rec.TxOrder,
		&rec.OpIndex,
		&rec.EventIndex,
		&payload,
		&rec.EventTime,
		&rec.IngestedAt,
	)
	if err != nil {
		return model.EventLogRecord{}, err
	}
	rec.Kind = model.EventKind(kind)
	rec.Ledger = uint32(ledger)
	rec.Payload = payload
	rec.EventTime = rec.EventTime.UTC()
	rec.IngestedAt = rec.IngestedAt.UTC()
	return rec, nil
}
