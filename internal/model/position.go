package model

import "fmt"

// Position is the side a staker backs. Values match the contract's u32 encoding.
type Position uint32

const (
	PositionUp   Position = 1
	PositionDown Position = 2
)

// ParsePosition validates the on-chain u32 position value.
func ParsePosition(v uint32) (Position, error) {
	switch Position(v) {
	case PositionUp, PositionDown:
		return Position(v), nil
	default:
		return 0, fmt.Errorf("invalid position: %d", v)
	}
}

func (p Position) String() string {
	switch p {
	case PositionUp:
		return "up"
	case PositionDown:
		return "down"
	default:
		return fmt.Sprintf("position(%d)", uint32(p))
	}
}

func (p Position) MarshalText() ([]byte, error) {
	switch p {
	case PositionUp, PositionDown:
		return []byte(p.String()), nil
	default:
		return nil, fmt.Errorf("invalid position: %d", uint32(p))
	}
}

func (p *Position) UnmarshalText(text []byte) error {
	switch string(text) {
	case "up":
		*p = PositionUp
	case "down":
		*p = PositionDown
	default:
		return fmt.Errorf("invalid position: %q", text)
	}
	return nil
}

// Outcome is a call resolution. Zero means unresolved.
type Outcome uint32

const (
	OutcomeUnresolved Outcome = 0
	OutcomeUp         Outcome = 1
	OutcomeDown       Outcome = 2
)

// ParseOutcome validates the on-chain u32 outcome value.
func ParseOutcome(v uint32) (Outcome, error) {
	if v > uint32(OutcomeDown) {
		return 0, fmt.Errorf("invalid outcome: %d", v)
	}
	return Outcome(v), nil
}

func (o Outcome) String() string {
	switch o {
	case OutcomeUnresolved:
		return "unresolved"
	case OutcomeUp:
		return "up"
	case OutcomeDown:
		return "down"
	default:
		return fmt.Sprintf("outcome(%d)", uint32(o))
	}
}
