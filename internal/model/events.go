package model

import (
	"encoding/json"
	"fmt"
)

// Payload is the kind-specific body of a ParsedEvent. The set of
// implementations is closed; see NewPayload.
type Payload interface {
	Kind() EventKind
	isPayload()
}

// ParsedEvent is a contract event decoded into its typed payload.
type ParsedEvent struct {
	Kind    EventKind
	Payload Payload
}

// CallCreated is emitted when a creator opens a new prediction call.
type CallCreated struct {
	CallID       uint64 `json:"call_id"`
	Creator      string `json:"creator"`
	StakeToken   string `json:"stake_token"`
	StakeAmount  string `json:"stake_amount"`
	EndTS        uint64 `json:"end_ts"`
	TokenAddress string `json:"token_address"`
	PairID       string `json:"pair_id"`
	IPFSCID      string `json:"ipfs_cid"`
}

// StakeAdded is emitted when a staker backs one side of a call.
type StakeAdded struct {
	CallID   uint64   `json:"call_id"`
	Staker   string   `json:"staker"`
	Amount   string   `json:"amount"`
	Position Position `json:"position"`
}

// CallResolved carries the registry's resolution of a call.
type CallResolved struct {
	CallID   uint64  `json:"call_id"`
	Outcome  Outcome `json:"outcome"`
	EndPrice string  `json:"end_price"`
}

type CallSettled struct {
	CallID      uint64 `json:"call_id"`
	WinnerCount uint64 `json:"winner_count"`
}

type AdminChanged struct {
	OldAdmin string `json:"old_admin"`
	NewAdmin string `json:"new_admin"`
}

type OutcomeManagerChanged struct {
	OldManager string `json:"old_manager"`
	NewManager string `json:"new_manager"`
}

// OutcomeFinalized is emitted by the outcome manager once oracle quorum is reached.
type OutcomeFinalized struct {
	CallID  uint64  `json:"call_id"`
	Outcome Outcome `json:"outcome"`
	Price   string  `json:"price"`
}

type Initialized struct {
	Admin          string `json:"admin"`
	OutcomeManager string `json:"outcome_manager"`
}

// OutcomeSubmitted records a single oracle vote. Oracle is the hex ed25519 key.
type OutcomeSubmitted struct {
	CallID  uint64  `json:"call_id"`
	Oracle  string  `json:"oracle"`
	Outcome Outcome `json:"outcome"`
}

// PayoutClaimed is emitted when a winning staker's payout leaves escrow.
type PayoutClaimed struct {
	CallID uint64 `json:"call_id"`
	Staker string `json:"staker"`
	Amount string `json:"amount"`
}

func (CallCreated) Kind() EventKind           { return KindCallCreated }
func (StakeAdded) Kind() EventKind            { return KindStakeAdded }
func (CallResolved) Kind() EventKind          { return KindCallResolved }
func (CallSettled) Kind() EventKind           { return KindCallSettled }
func (AdminChanged) Kind() EventKind          { return KindAdminChanged }
func (OutcomeManagerChanged) Kind() EventKind { return KindOutcomeManagerChanged }
func (OutcomeFinalized) Kind() EventKind      { return KindOutcomeFinalized }
func (Initialized) Kind() EventKind           { return KindInitialized }
func (OutcomeSubmitted) Kind() EventKind      { return KindOutcomeSubmitted }
func (PayoutClaimed) Kind() EventKind         { return KindPayoutClaimed }

func (CallCreated) isPayload()           {}
func (StakeAdded) isPayload()            {}
func (CallResolved) isPayload()          {}
func (CallSettled) isPayload()           {}
func (AdminChanged) isPayload()          {}
func (OutcomeManagerChanged) isPayload() {}
func (OutcomeFinalized) isPayload()      {}
func (Initialized) isPayload()           {}
func (OutcomeSubmitted) isPayload()      {}
func (PayoutClaimed) isPayload()         {}

// NewPayload returns a zero payload for kind, suitable for unmarshaling.
func NewPayload(kind EventKind) (Payload, error) {
	switch kind {
	case KindCallCreated:
		return &CallCreated{}, nil
	case KindStakeAdded:
		return &StakeAdded{}, nil
	case KindCallResolved:
		return &CallResolved{}, nil
	case KindCallSettled:
		return &CallSettled{}, nil
	case KindAdminChanged:
		return &AdminChanged{}, nil
	case KindOutcomeManagerChanged:
		return &OutcomeManagerChanged{}, nil
	case KindOutcomeFinalized:
		return &OutcomeFinalized{}, nil
	case KindInitialized:
		return &Initialized{}, nil
	case KindOutcomeSubmitted:
		return &OutcomeSubmitted{}, nil
	case KindPayoutClaimed:
		return &PayoutClaimed{}, nil
	default:
		return nil, fmt.Errorf("unknown event kind: %q", kind)
	}
}

// UnmarshalPayload decodes stored payload JSON back into its typed value.
func UnmarshalPayload(kind EventKind, data json.RawMessage) (Payload, error) {
	ptr, err := NewPayload(kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, ptr); err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", kind, err)
	}
	return derefPayload(ptr), nil
}

func derefPayload(p Payload) Payload {
	switch v := p.(type) {
	case *CallCreated:
		return *v
	case *StakeAdded:
		return *v
	case *CallResolved:
		return *v
	case *CallSettled:
		return *v
	case *AdminChanged:
		return *v
	case *OutcomeManagerChanged:
		return *v
	case *OutcomeFinalized:
		return *v
	case *Initialized:
		return *v
	case *OutcomeSubmitted:
		return *v
	case *PayoutClaimed:
		return *v
	default:
		return p
	}
}

// CallIDOf returns the call a payload refers to, if any.
func CallIDOf(p Payload) (uint64, bool) {
	switch v := p.(type) {
	case CallCreated:
		return v.CallID, true
	case StakeAdded:
		return v.CallID, true
	case CallResolved:
		return v.CallID, true
	case CallSettled:
		return v.CallID, true
	case OutcomeFinalized:
		return v.CallID, true
	case OutcomeSubmitted:
		return v.CallID, true
	case PayoutClaimed:
		return v.CallID, true
	default:
		return 0, false
	}
}
