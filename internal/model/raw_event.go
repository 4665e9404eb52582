package model

import (
	"fmt"
	"time"
)

// RawEvent is a contract event as returned by the ledger RPC. Topics and
// Value hold base64-encoded XDR ScVal values.
type RawEvent struct {
	ID             string    `json:"id"`
	PagingToken    string    `json:"paging_token,omitempty"`
	ContractID     string    `json:"contract_id"`
	Ledger         uint32    `json:"ledger"`
	LedgerClosedAt time.Time `json:"ledger_closed_at"`
	TxHash         string    `json:"tx_hash"`
	Topics         []string  `json:"topics"`
	Value          string    `json:"value"`
}

// LedgerID is the composite key used to correlate log lines for one event.
func (e RawEvent) LedgerID() string {
	return fmt.Sprintf("%d-%s", e.Ledger, e.ID)
}
