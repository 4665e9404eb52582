package indexer

import (
	"context"
	"fmt"

	"callIndexer/internal/storage"
)

type checkpointSource string

const (
	checkpointNone     checkpointSource = "none"
	checkpointExplicit checkpointSource = "explicit"
	checkpointDerived  checkpointSource = "derived"
)

type resolvedCheckpoint struct {
	ledger uint32
	source checkpointSource
	// missing lists configured contracts without a row when other rows exist.
	// They resume from the shared checkpoint rather than a cold start.
	missing []string
}

// resolveCheckpoint returns the last fully processed ledger for contractIDs.
// Explicit rows win; the lowest row is used so no contract skips ledgers.
// Without rows the highest logged ledger stands in.
func resolveCheckpoint(ctx context.Context, store storage.Store, contractIDs []string) (resolvedCheckpoint, error) {
	rows, err := store.LoadCheckpoints(ctx, contractIDs)
	if err != nil {
		return resolvedCheckpoint{source: checkpointNone}, fmt.Errorf("load checkpoints: %w", err)
	}
	if len(rows) > 0 {
		res := resolvedCheckpoint{source: checkpointExplicit}
		first := true
		for _, id := range contractIDs {
			ledger, ok := rows[id]
			if !ok {
				res.missing = append(res.missing, id)
				continue
			}
			if first || ledger < res.ledger {
				res.ledger = ledger
				first = false
			}
		}
		return res, nil
	}

	ledger, ok, err := store.MaxLedger(ctx, contractIDs)
	if err != nil {
		return resolvedCheckpoint{source: checkpointNone}, fmt.Errorf("derive checkpoint: %w", err)
	}
	if !ok {
		return resolvedCheckpoint{source: checkpointNone}, nil
	}
	return resolvedCheckpoint{ledger: ledger, source: checkpointDerived}, nil
}
