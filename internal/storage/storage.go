package storage

import (
	"context"
	"errors"

	"callIndexer/internal/model"
)

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("store is closed")

// EventQuery filters the event log. Zero values mean "no filter".
// Results are newest first: (ledger, tx order, op index, event index)
// descending, so Limit keeps the most recent records.
type EventQuery struct {
	Kind       model.EventKind
	ContractID string
	FromLedger uint32
	ToLedger   uint32
	CallID     *uint64
	Limit      int
}

// EventStore is the append-only event log.
type EventStore interface {
	// InsertEvent appends rec. It reports false without error when an event
	// with the same event id is already stored.
	InsertEvent(ctx context.Context, rec model.EventLogRecord) (bool, error)
	QueryEvents(ctx context.Context, q EventQuery) ([]model.EventLogRecord, error)
	// MaxLedger returns the highest ledger recorded for any of contractIDs.
	MaxLedger(ctx context.Context, contractIDs []string) (uint32, bool, error)
	// LatestEvent returns the most recently ordered record in the log.
	LatestEvent(ctx context.Context) (model.EventLogRecord, bool, error)
	CountEvents(ctx context.Context) (int64, error)
}

// CheckpointStore keeps the last fully processed ledger per contract.
type CheckpointStore interface {
	LoadCheckpoints(ctx context.Context, contractIDs []string) (map[string]uint32, error)
	// SaveCheckpoint records ledger for every contract in one atomic write.
	SaveCheckpoint(ctx context.Context, contractIDs []string, ledger uint32) error
}

// Store is the full persistence surface used by the indexer.
type Store interface {
	EventStore
	CheckpointStore
	Close() error
}

// Matches reports whether rec satisfies q, ignoring Limit.
func (q EventQuery) Matches(rec model.EventLogRecord) bool {
	if q.Kind != "" && rec.Kind != q.Kind {
		return false
	}
	if q.ContractID != "" && rec.ContractID != q.ContractID {
		return false
	}
	if q.FromLedger != 0 && rec.Ledger < q.FromLedger {
		return false
	}
	if q.ToLedger != 0 && rec.Ledger > q.ToLedger {
		return false
	}
	if q.CallID != nil {
		payload, err := rec.Decoded()
		if err != nil {
			return false
		}
		id, ok := model.CallIDOf(payload)
		if !ok || id != *q.CallID {
			return false
		}
	}
	return true
}
