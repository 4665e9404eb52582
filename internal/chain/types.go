package chain

import (
	"encoding/json"
	"fmt"
	"time"

	"callIndexer/internal/model"
)

const eventTypeContract = "contract"

// EventFilter restricts getEvents to a set of contracts.
type EventFilter struct {
	Type        string   `json:"type"`
	ContractIDs []string `json:"contractIds"`
}

// Pagination carries the page size and the opaque resume cursor.
type Pagination struct {
	Limit  uint   `json:"limit,omitempty"`
	Cursor string `json:"cursor,omitempty"`
}

// getEventsRequest is sent as a named object; the node rejects positional
// params whose count differs from its request struct.
type getEventsRequest struct {
	StartLedger uint32        `json:"startLedger,omitempty"`
	Filters     []EventFilter `json:"filters"`
	Pagination  *Pagination   `json:"pagination,omitempty"`
}

// EventPage is one page of getEvents results.
type EventPage struct {
	Events       []model.RawEvent
	LatestLedger uint32
	Cursor       string
}

type rpcEvent struct {
	Type           string    `json:"type"`
	Ledger         uint32    `json:"ledger"`
	LedgerClosedAt string    `json:"ledgerClosedAt"`
	ContractID     string    `json:"contractId"`
	ID             string    `json:"id"`
	PagingToken    string    `json:"pagingToken"`
	Topic          []string  `json:"topic"`
	Value          xdrString `json:"value"`
	TxHash         string    `json:"txHash"`
}

type getEventsResult struct {
	Events       []rpcEvent `json:"events"`
	LatestLedger uint32     `json:"latestLedger"`
	Cursor       string     `json:"cursor"`
}

type getLatestLedgerResult struct {
	ID              string `json:"id"`
	ProtocolVersion uint32 `json:"protocolVersion"`
	Sequence        uint32 `json:"sequence"`
}

// xdrString accepts both the current plain base64 value and the older
// {"xdr": "..."} wrapper some RPC versions still return.
type xdrString string

func (s *xdrString) UnmarshalJSON(data []byte) error {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		*s = xdrString(plain)
		return nil
	}
	var wrapped struct {
		XDR string `json:"xdr"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return fmt.Errorf("decode event value: %w", err)
	}
	*s = xdrString(wrapped.XDR)
	return nil
}

func (e rpcEvent) toRaw() (model.RawEvent, error) {
	var closedAt time.Time
	if e.LedgerClosedAt != "" {
		t, err := time.Parse(time.RFC3339, e.LedgerClosedAt)
		if err != nil {
			return model.RawEvent{}, fmt.Errorf("parse ledgerClosedAt %q: %w", e.LedgerClosedAt, err)
		}
		closedAt = t.UTC()
	}
	pagingToken := e.PagingToken
	if pagingToken == "" {
		pagingToken = e.ID
	}
	topics := make([]string, len(e.Topic))
	copy(topics, e.Topic)
	return model.RawEvent{
		ID:             e.ID,
		PagingToken:    pagingToken,
		ContractID:     e.ContractID,
		Ledger:         e.Ledger,
		LedgerClosedAt: closedAt,
		TxHash:         e.TxHash,
		Topics:         topics,
		Value:          string(e.Value),
	}, nil
}
