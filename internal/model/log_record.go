package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventLogRecord is the durable, append-only representation of one parsed event.
type EventLogRecord struct {
	ID         uuid.UUID       `json:"id"`
	EventID    string          `json:"event_id"`
	ContractID string          `json:"contract_id"`
	Kind       EventKind       `json:"kind"`
	Ledger     uint32          `json:"ledger"`
	TxHash     string          `json:"tx_hash"`
	TxOrder    int32           `json:"tx_order"`
	OpIndex    int32           `json:"op_index"`
	EventIndex int32           `json:"event_index"`
	Payload    json.RawMessage `json:"payload"`
	EventTime  time.Time       `json:"event_time"`
	IngestedAt time.Time       `json:"ingested_at"`
}

// Before reports whether r sorts ahead of other in ledger order.
func (r EventLogRecord) Before(other EventLogRecord) bool {
	if r.Ledger != other.Ledger {
		return r.Ledger < other.Ledger
	}
	if r.TxOrder != other.TxOrder {
		return r.TxOrder < other.TxOrder
	}
	if r.OpIndex != other.OpIndex {
		return r.OpIndex < other.OpIndex
	}
	return r.EventIndex < other.EventIndex
}

// Decoded returns the typed payload stored in the record.
func (r EventLogRecord) Decoded() (Payload, error) {
	return UnmarshalPayload(r.Kind, r.Payload)
}
