package model

import "strings"

// EventKind names a decoded contract event.
type EventKind string

const (
	KindCallCreated           EventKind = "call_created"
	KindStakeAdded            EventKind = "stake_added"
	KindCallResolved          EventKind = "call_resolved"
	KindCallSettled           EventKind = "call_settled"
	KindAdminChanged          EventKind = "admin_changed"
	KindOutcomeManagerChanged EventKind = "outcome_manager_changed"
	KindOutcomeFinalized      EventKind = "outcome_finalized"
	KindInitialized           EventKind = "initialized"
	KindOutcomeSubmitted      EventKind = "outcome_submitted"
	KindPayoutClaimed         EventKind = "payout_claimed"
)

var knownKinds = []EventKind{
	KindCallCreated,
	KindStakeAdded,
	KindCallResolved,
	KindCallSettled,
	KindAdminChanged,
	KindOutcomeManagerChanged,
	KindOutcomeFinalized,
	KindInitialized,
	KindOutcomeSubmitted,
	KindPayoutClaimed,
}

// AllEventKinds returns every kind the decoder understands.
func AllEventKinds() []EventKind {
	out := make([]EventKind, len(knownKinds))
	copy(out, knownKinds)
	return out
}

// ParseEventKind maps a topic symbol onto a known kind.
func ParseEventKind(name string) (EventKind, bool) {
	name = strings.TrimSpace(name)
	for _, kind := range knownKinds {
		if string(kind) == name {
			return kind, true
		}
	}
	return "", false
}

func (k EventKind) String() string {
	return string(k)
}
