package model

// DecodeError records a decode failure for one raw event.
type DecodeError struct {
	EventID    string `json:"event_id"`
	ContractID string `json:"contract_id"`
	Ledger     uint32 `json:"ledger"`
	TxHash     string `json:"tx_hash"`
	Topic0     string `json:"topic0"`
	Error      string `json:"error"`
}
