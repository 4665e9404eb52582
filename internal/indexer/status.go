package indexer

import (
	"context"
	"fmt"
	"time"

	"callIndexer/internal/storage"
)

// Status is a read-only snapshot of indexing progress.
type Status struct {
	Checkpoint              uint32     `json:"checkpoint"`
	HasCheckpoint           bool       `json:"has_checkpoint"`
	CheckpointSource        string     `json:"checkpoint_source"`
	TotalRecords            int64      `json:"total_records"`
	LatestLedger            uint32     `json:"latest_ledger,omitempty"`
	LatestEventTime         *time.Time `json:"latest_event_time,omitempty"`
	LatestIngestedAt        *time.Time `json:"latest_ingested_at,omitempty"`
	// Contracts without their own checkpoint row while other rows exist.
	UncheckpointedContracts []string   `json:"uncheckpointed_contracts,omitempty"`
}

// QueryStatus reads the checkpoint and event log summary for contractIDs.
func QueryStatus(ctx context.Context, store storage.Store, contractIDs []string) (Status, error) {
	var st Status

	resolved, err := resolveCheckpoint(ctx, store, contractIDs)
	if err != nil {
		return Status{}, err
	}
	st.CheckpointSource = string(resolved.source)
	if resolved.source != checkpointNone {
		st.Checkpoint = resolved.ledger
		st.HasCheckpoint = true
	}
	st.UncheckpointedContracts = resolved.missing

	st.TotalRecords, err = store.CountEvents(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("count events: %w", err)
	}

	latest, ok, err := store.LatestEvent(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("latest event: %w", err)
	}
	if ok {
		eventTime := latest.EventTime
		ingestedAt := latest.IngestedAt
		st.LatestLedger = latest.Ledger
		st.LatestEventTime = &eventTime
		st.LatestIngestedAt = &ingestedAt
	}
	return st, nil
}
