package decoder

import (
	"fmt"

	"github.com/stellar/go/xdr"
	"go.uber.org/zap"

	"callIndexer/internal/model"
)

// Contract namespaces used as the first topic by the deployed contracts.
const (
	NamespaceCallRegistry = "call_registry"
	NamespaceOutcome      = "outcome"
	NamespacePayout       = "payout"
)

// namespacedKinds maps (namespace, event name) onto a kind when the
// contracts publish under a namespace topic.
var namespacedKinds = map[string]map[string]model.EventKind{
	NamespaceCallRegistry: {
		"call_created":            model.KindCallCreated,
		"stake_added":             model.KindStakeAdded,
		"call_resolved":           model.KindCallResolved,
		"call_settled":            model.KindCallSettled,
		"admin_changed":           model.KindAdminChanged,
		"outcome_manager_changed": model.KindOutcomeManagerChanged,
		"initialized":             model.KindInitialized,
	},
	NamespaceOutcome: {
		"submitted": model.KindOutcomeSubmitted,
		"finalized": model.KindOutcomeFinalized,
	},
	NamespacePayout: {
		"claimed": model.KindPayoutClaimed,
	},
}

type fieldParser func(fields []xdr.ScVal) (model.Payload, error)

var parsers = map[model.EventKind]struct {
	arity int
	parse fieldParser
}{
	model.KindCallCreated:           {8, parseCallCreated},
	model.KindStakeAdded:            {4, parseStakeAdded},
	model.KindCallResolved:          {3, parseCallResolved},
	model.KindCallSettled:           {2, parseCallSettled},
	model.KindAdminChanged:          {2, parseAdminChanged},
	model.KindOutcomeManagerChanged: {2, parseOutcomeManagerChanged},
	model.KindOutcomeFinalized:      {3, parseOutcomeFinalized},
	model.KindInitialized:           {2, parseInitialized},
	model.KindOutcomeSubmitted:      {3, parseOutcomeSubmitted},
	model.KindPayoutClaimed:         {3, parsePayoutClaimed},
}

// Decoder turns raw contract events into typed events. It holds no state
// besides its logger and is safe for concurrent use.
type Decoder struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Decoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{logger: logger}
}

// Decode returns the typed event for raw. Unknown kinds and malformed events
// are logged and reported as ok == false; Decode never returns an error.
func (d *Decoder) Decode(raw model.RawEvent) (event model.ParsedEvent, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("decoder panic",
				zap.String("ledger_id", raw.LedgerID()),
				zap.String("contract_id", raw.ContractID),
				zap.Any("panic", r),
			)
			event, ok = model.ParsedEvent{}, false
		}
	}()

	kind, fields, known, err := d.classify(raw)
	if err != nil {
		d.logger.Warn("malformed event",
			zap.String("ledger_id", raw.LedgerID()),
			zap.String("contract_id", raw.ContractID),
			zap.Error(err),
		)
		return model.ParsedEvent{}, false
	}
	if !known {
		d.logger.Debug("unknown event kind",
			zap.String("ledger_id", raw.LedgerID()),
			zap.String("contract_id", raw.ContractID),
			zap.Strings("topics", raw.Topics),
		)
		return model.ParsedEvent{}, false
	}

	payload, err := parseFields(kind, fields)
	if err != nil {
		d.logger.Warn("malformed event",
			zap.String("ledger_id", raw.LedgerID()),
			zap.String("contract_id", raw.ContractID),
			zap.String("kind", kind.String()),
			zap.Error(err),
		)
		return model.ParsedEvent{}, false
	}
	return model.ParsedEvent{Kind: kind, Payload: payload}, true
}

// DecodeStrict is Decode with the failure reason surfaced, for offline tooling.
func (d *Decoder) DecodeStrict(raw model.RawEvent) (model.ParsedEvent, error) {
	kind, fields, known, err := d.classify(raw)
	if err != nil {
		return model.ParsedEvent{}, err
	}
	if !known {
		return model.ParsedEvent{}, ErrUnknownKind
	}
	payload, err := parseFields(kind, fields)
	if err != nil {
		return model.ParsedEvent{}, fmt.Errorf("%s: %w", kind, err)
	}
	return model.ParsedEvent{Kind: kind, Payload: payload}, nil
}

// classify resolves the event kind and the ScVal fields carrying its payload.
// known is false when the topics name no recognised event.
func (d *Decoder) classify(raw model.RawEvent) (kind model.EventKind, fields []xdr.ScVal, known bool, err error) {
	if len(raw.Topics) == 0 {
		return "", nil, false, nil
	}
	topics := make([]xdr.ScVal, 0, len(raw.Topics))
	for i, t := range raw.Topics {
		val, err := decodeScVal(t)
		if err != nil {
			return "", nil, false, fmt.Errorf("topic %d: %w", i, err)
		}
		topics = append(topics, val)
	}

	head, ok := symbolOf(topics[0])
	if !ok {
		return "", nil, false, nil
	}

	if names, ok := namespacedKinds[head]; ok {
		if len(topics) < 2 {
			return "", nil, false, nil
		}
		name, ok := symbolOf(topics[1])
		if !ok {
			return "", nil, false, nil
		}
		kind, ok := names[name]
		if !ok {
			return "", nil, false, nil
		}
		fields, err := valueFields(raw.Value)
		if err != nil {
			return "", nil, false, err
		}
		return kind, fields, true, nil
	}

	kind, ok = model.ParseEventKind(head)
	if !ok {
		return "", nil, false, nil
	}
	return kind, topics[1:], true, nil
}

// valueFields unpacks the event body. The contracts publish tuples, which
// arrive as a Vec; a lone scalar is treated as a one-element tuple.
func valueFields(b64 string) ([]xdr.ScVal, error) {
	if b64 == "" {
		return nil, fmt.Errorf("event value is empty")
	}
	val, err := decodeScVal(b64)
	if err != nil {
		return nil, fmt.Errorf("value: %w", err)
	}
	if vec, ok := val.GetVec(); ok {
		if vec == nil {
			return nil, nil
		}
		return *vec, nil
	}
	return []xdr.ScVal{val}, nil
}

func parseFields(kind model.EventKind, fields []xdr.ScVal) (model.Payload, error) {
	p, ok := parsers[kind]
	if !ok {
		return nil, fmt.Errorf("no field layout for %s", kind)
	}
	if len(fields) != p.arity {
		return nil, fmt.Errorf("expected %d fields, got %d", p.arity, len(fields))
	}
	return p.parse(fields)
}

func parseCallCreated(f []xdr.ScVal) (model.Payload, error) {
	var (
		out model.CallCreated
		err error
	)
	if out.CallID, err = u64Of(f[0]); err != nil {
		return nil, fmt.Errorf("call_id: %w", err)
	}
	if out.Creator, err = addressOf(f[1]); err != nil {
		return nil, fmt.Errorf("creator: %w", err)
	}
	if out.StakeToken, err = addressOf(f[2]); err != nil {
		return nil, fmt.Errorf("stake_token: %w", err)
	}
	if out.StakeAmount, err = i128Of(f[3]); err != nil {
		return nil, fmt.Errorf("stake_amount: %w", err)
	}
	if out.EndTS, err = u64Of(f[4]); err != nil {
		return nil, fmt.Errorf("end_ts: %w", err)
	}
	if out.TokenAddress, err = addressOf(f[5]); err != nil {
		return nil, fmt.Errorf("token_address: %w", err)
	}
	if out.PairID, err = bytesOf(f[6]); err != nil {
		return nil, fmt.Errorf("pair_id: %w", err)
	}
	if out.IPFSCID, err = bytesOf(f[7]); err != nil {
		return nil, fmt.Errorf("ipfs_cid: %w", err)
	}
	return out, nil
}

func parseStakeAdded(f []xdr.ScVal) (model.Payload, error) {
	var (
		out model.StakeAdded
		err error
	)
	if out.CallID, err = u64Of(f[0]); err != nil {
		return nil, fmt.Errorf("call_id: %w", err)
	}
	if out.Staker, err = addressOf(f[1]); err != nil {
		return nil, fmt.Errorf("staker: %w", err)
	}
	if out.Amount, err = i128Of(f[2]); err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	pos, err := u32Of(f[3])
	if err != nil {
		return nil, fmt.Errorf("position: %w", err)
	}
	if out.Position, err = model.ParsePosition(pos); err != nil {
		return nil, err
	}
	return out, nil
}

func parseCallResolved(f []xdr.ScVal) (model.Payload, error) {
	var (
		out model.CallResolved
		err error
	)
	if out.CallID, err = u64Of(f[0]); err != nil {
		return nil, fmt.Errorf("call_id: %w", err)
	}
	if out.Outcome, err = outcomeOf(f[1]); err != nil {
		return nil, err
	}
	if out.EndPrice, err = i128Of(f[2]); err != nil {
		return nil, fmt.Errorf("end_price: %w", err)
	}
	return out, nil
}

func parseCallSettled(f []xdr.ScVal) (model.Payload, error) {
	var (
		out model.CallSettled
		err error
	)
	if out.CallID, err = u64Of(f[0]); err != nil {
		return nil, fmt.Errorf("call_id: %w", err)
	}
	if out.WinnerCount, err = u64Of(f[1]); err != nil {
		return nil, fmt.Errorf("winner_count: %w", err)
	}
	return out, nil
}

func parseAdminChanged(f []xdr.ScVal) (model.Payload, error) {
	var (
		out model.AdminChanged
		err error
	)
	if out.OldAdmin, err = addressOf(f[0]); err != nil {
		return nil, fmt.Errorf("old_admin: %w", err)
	}
	if out.NewAdmin, err = addressOf(f[1]); err != nil {
		return nil, fmt.Errorf("new_admin: %w", err)
	}
	return out, nil
}

func parseOutcomeManagerChanged(f []xdr.ScVal) (model.Payload, error) {
	var (
		out model.OutcomeManagerChanged
		err error
	)
	if out.OldManager, err = addressOf(f[0]); err != nil {
		return nil, fmt.Errorf("old_manager: %w", err)
	}
	if out.NewManager, err = addressOf(f[1]); err != nil {
		return nil, fmt.Errorf("new_manager: %w", err)
	}
	return out, nil
}

func parseOutcomeFinalized(f []xdr.ScVal) (model.Payload, error) {
	var (
		out model.OutcomeFinalized
		err error
	)
	if out.CallID, err = u64Of(f[0]); err != nil {
		return nil, fmt.Errorf("call_id: %w", err)
	}
	if out.Outcome, err = outcomeOf(f[1]); err != nil {
		return nil, err
	}
	if out.Price, err = i128Of(f[2]); err != nil {
		return nil, fmt.Errorf("price: %w", err)
	}
	return out, nil
}

func parseInitialized(f []xdr.ScVal) (model.Payload, error) {
	var (
		out model.Initialized
		err error
	)
	if out.Admin, err = addressOf(f[0]); err != nil {
		return nil, fmt.Errorf("admin: %w", err)
	}
	if out.OutcomeManager, err = addressOf(f[1]); err != nil {
		return nil, fmt.Errorf("outcome_manager: %w", err)
	}
	return out, nil
}

func parseOutcomeSubmitted(f []xdr.ScVal) (model.Payload, error) {
	var (
		out model.OutcomeSubmitted
		err error
	)
	if out.CallID, err = u64Of(f[0]); err != nil {
		return nil, fmt.Errorf("call_id: %w", err)
	}
	if out.Oracle, err = fixedBytesOf(f[1], 32); err != nil {
		return nil, fmt.Errorf("oracle: %w", err)
	}
	if out.Outcome, err = outcomeOf(f[2]); err != nil {
		return nil, err
	}
	return out, nil
}

func parsePayoutClaimed(f []xdr.ScVal) (model.Payload, error) {
	var (
		out model.PayoutClaimed
		err error
	)
	if out.CallID, err = u64Of(f[0]); err != nil {
		return nil, fmt.Errorf("call_id: %w", err)
	}
	if out.Staker, err = addressOf(f[1]); err != nil {
		return nil, fmt.Errorf("staker: %w", err)
	}
	if out.Amount, err = i128Of(f[2]); err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	return out, nil
}

func outcomeOf(val xdr.ScVal) (model.Outcome, error) {
	v, err := u32Of(val)
	if err != nil {
		return 0, fmt.Errorf("outcome: %w", err)
	}
	return model.ParseOutcome(v)
}
