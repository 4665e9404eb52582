package indexer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stellar/go/toid"

	"callIndexer/internal/model"
)

func buildEventRecord(id uuid.UUID, raw model.RawEvent, event model.ParsedEvent, ingestedAt time.Time) (model.EventLogRecord, error) {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return model.EventLogRecord{}, fmt.Errorf("marshal %s payload: %w", event.Kind, err)
	}

	// Ids that do not follow the RPC format still get stored; they just
	// sort by ledger alone.
	txOrder, opIndex, eventIndex, _ := parseEventID(raw.ID)

	eventTime := raw.LedgerClosedAt
	if eventTime.IsZero() {
		eventTime = ingestedAt
	}

	return model.EventLogRecord{
		ID:         id,
		EventID:    raw.ID,
		ContractID: raw.ContractID,
		Kind:       event.Kind,
		Ledger:     raw.Ledger,
		TxHash:     raw.TxHash,
		TxOrder:    txOrder,
		OpIndex:    opIndex,
		EventIndex: eventIndex,
		Payload:    payload,
		EventTime:  eventTime.UTC(),
		IngestedAt: ingestedAt.UTC(),
	}, nil
}

// parseEventID splits an RPC event id ("<toid>-<event index>") into its
// ordering components.
func parseEventID(id string) (txOrder, opIndex, eventIndex int32, err error) {
	opPart, eventPart, ok := strings.Cut(id, "-")
	if !ok {
		return 0, 0, 0, fmt.Errorf("event id %q: missing separator", id)
	}
	opID, err := strconv.ParseInt(opPart, 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("event id %q: %w", id, err)
	}
	idx, err := strconv.ParseInt(eventPart, 10, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("event id %q: %w", id, err)
	}
	parsed := toid.Parse(opID)
	return parsed.TransactionOrder, parsed.OperationOrder, int32(idx), nil
}
