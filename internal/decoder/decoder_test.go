package decoder

import (
	"reflect"
	"testing"

	"github.com/stellar/go/xdr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"callIndexer/internal/model"
)

func TestDecodeCallCreatedFlat(t *testing.T) {
	dec := New(zap.NewNop())

	raw := flatEvent(t, "call_created",
		u64Val(42),
		accountVal(t, 1),
		contractVal(2),
		i128Val(0, 1000),
		u64Val(1700000300),
		contractVal(3),
		bytesVal([]byte{0xde, 0xad, 0xbe, 0xef}),
		bytesVal([]byte{0xc1, 0xd1}),
	)

	event, ok := dec.Decode(raw)
	if !ok {
		t.Fatalf("expected call_created to decode")
	}
	if event.Kind != model.KindCallCreated {
		t.Fatalf("unexpected kind: %s", event.Kind)
	}

	want := model.CallCreated{
		CallID:       42,
		Creator:      accountStrkey(t, 1),
		StakeToken:   contractStrkey(t, 2),
		StakeAmount:  "1000",
		EndTS:        1700000300,
		TokenAddress: contractStrkey(t, 3),
		PairID:       "deadbeef",
		IPFSCID:      "c1d1",
	}
	if !reflect.DeepEqual(event.Payload, want) {
		t.Fatalf("payload mismatch:\n got %+v\nwant %+v", event.Payload, want)
	}
}

func TestDecodeFlatKinds(t *testing.T) {
	dec := New(zap.NewNop())

	tests := []struct {
		name   string
		kind   string
		fields func(t *testing.T) []xdr.ScVal
		want   model.Payload
	}{
		{
			name: "stake added up",
			kind: "stake_added",
			fields: func(t *testing.T) []xdr.ScVal {
				return []xdr.ScVal{u64Val(7), accountVal(t, 4), i128Val(0, 250), u32Val(1)}
			},
			want: model.StakeAdded{CallID: 7, Staker: accountStrkey(t, 4), Amount: "250", Position: model.PositionUp},
		},
		{
			name: "stake added down",
			kind: "stake_added",
			fields: func(t *testing.T) []xdr.ScVal {
				return []xdr.ScVal{u64Val(7), accountVal(t, 4), i128Val(0, 250), u32Val(2)}
			},
			want: model.StakeAdded{CallID: 7, Staker: accountStrkey(t, 4), Amount: "250", Position: model.PositionDown},
		},
		{
			name: "call resolved negative price",
			kind: "call_resolved",
			fields: func(t *testing.T) []xdr.ScVal {
				return []xdr.ScVal{u64Val(9), u32Val(2), i128Val(-1, ^uint64(0))}
			},
			want: model.CallResolved{CallID: 9, Outcome: model.OutcomeDown, EndPrice: "-1"},
		},
		{
			name: "call settled",
			kind: "call_settled",
			fields: func(t *testing.T) []xdr.ScVal {
				return []xdr.ScVal{u64Val(9), u64Val(3)}
			},
			want: model.CallSettled{CallID: 9, WinnerCount: 3},
		},
		{
			name: "admin changed",
			kind: "admin_changed",
			fields: func(t *testing.T) []xdr.ScVal {
				return []xdr.ScVal{accountVal(t, 5), accountVal(t, 6)}
			},
			want: model.AdminChanged{OldAdmin: accountStrkey(t, 5), NewAdmin: accountStrkey(t, 6)},
		},
		{
			name: "outcome manager changed",
			kind: "outcome_manager_changed",
			fields: func(t *testing.T) []xdr.ScVal {
				return []xdr.ScVal{contractVal(7), contractVal(8)}
			},
			want: model.OutcomeManagerChanged{OldManager: contractStrkey(t, 7), NewManager: contractStrkey(t, 8)},
		},
		{
			name: "outcome finalized wide price",
			kind: "outcome_finalized",
			fields: func(t *testing.T) []xdr.ScVal {
				return []xdr.ScVal{u64Val(11), u32Val(1), i128Val(1, 5)}
			},
			want: model.OutcomeFinalized{CallID: 11, Outcome: model.OutcomeUp, Price: "18446744073709551621"},
		},
		{
			name: "initialized",
			kind: "initialized",
			fields: func(t *testing.T) []xdr.ScVal {
				return []xdr.ScVal{accountVal(t, 1), contractVal(2)}
			},
			want: model.Initialized{Admin: accountStrkey(t, 1), OutcomeManager: contractStrkey(t, 2)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, ok := dec.Decode(flatEvent(t, tt.kind, tt.fields(t)...))
			if !ok {
				t.Fatalf("expected %s to decode", tt.kind)
			}
			if event.Kind != tt.want.Kind() {
				t.Fatalf("kind = %s, want %s", event.Kind, tt.want.Kind())
			}
			if !reflect.DeepEqual(event.Payload, tt.want) {
				t.Fatalf("payload mismatch:\n got %+v\nwant %+v", event.Payload, tt.want)
			}
		})
	}
}

func TestDecodeNamespaced(t *testing.T) {
	dec := New(zap.NewNop())
	oracle := seed(0xab)

	tests := []struct {
		name      string
		namespace string
		event     string
		fields    []xdr.ScVal
		want      model.Payload
	}{
		{
			name:      "registry stake",
			namespace: NamespaceCallRegistry,
			event:     "stake_added",
			fields:    []xdr.ScVal{u64Val(1), accountVal(t, 3), i128Val(0, 10), u32Val(2)},
			want:      model.StakeAdded{CallID: 1, Staker: accountStrkey(t, 3), Amount: "10", Position: model.PositionDown},
		},
		{
			name:      "outcome submitted",
			namespace: NamespaceOutcome,
			event:     "submitted",
			fields:    []xdr.ScVal{u64Val(5), bytesVal(oracle), u32Val(1)},
			want:      model.OutcomeSubmitted{CallID: 5, Oracle: "abababababababababababababababababababababababababababababababab", Outcome: model.OutcomeUp},
		},
		{
			name:      "outcome finalized",
			namespace: NamespaceOutcome,
			event:     "finalized",
			fields:    []xdr.ScVal{u64Val(5), u32Val(1), i128Val(0, 4200)},
			want:      model.OutcomeFinalized{CallID: 5, Outcome: model.OutcomeUp, Price: "4200"},
		},
		{
			name:      "payout claimed",
			namespace: NamespacePayout,
			event:     "claimed",
			fields:    []xdr.ScVal{u64Val(5), accountVal(t, 8), i128Val(0, 990)},
			want:      model.PayoutClaimed{CallID: 5, Staker: accountStrkey(t, 8), Amount: "990"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, ok := dec.Decode(namespacedEvent(t, tt.namespace, tt.event, tt.fields...))
			if !ok {
				t.Fatalf("expected %s/%s to decode", tt.namespace, tt.event)
			}
			if !reflect.DeepEqual(event.Payload, tt.want) {
				t.Fatalf("payload mismatch:\n got %+v\nwant %+v", event.Payload, tt.want)
			}
		})
	}
}

func TestDecodeUnknownKindLogsDebug(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	dec := New(zap.New(core))

	raw := flatEvent(t, "something_else", u64Val(1))
	if _, ok := dec.Decode(raw); ok {
		t.Fatalf("expected unknown kind to be dropped")
	}

	entries := logs.FilterMessage("unknown event kind").All()
	if len(entries) != 1 {
		t.Fatalf("expected one debug entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.DebugLevel {
		t.Fatalf("unexpected level: %s", entries[0].Level)
	}
	if got := entries[0].ContextMap()["ledger_id"]; got != raw.LedgerID() {
		t.Fatalf("ledger_id = %v, want %s", got, raw.LedgerID())
	}
}

func TestDecodeUnknownNamespacedName(t *testing.T) {
	dec := New(zap.NewNop())
	if _, ok := dec.Decode(namespacedEvent(t, NamespaceOutcome, "vetoed", u64Val(1))); ok {
		t.Fatalf("expected unknown namespaced event to be dropped")
	}
}

func TestDecodeMalformed(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	dec := New(zap.New(core))

	tests := []struct {
		name string
		raw  func(t *testing.T) model.RawEvent
	}{
		{
			name: "too few fields",
			raw: func(t *testing.T) model.RawEvent {
				return flatEvent(t, "call_settled", u64Val(1))
			},
		},
		{
			name: "too many fields",
			raw: func(t *testing.T) model.RawEvent {
				return flatEvent(t, "call_settled", u64Val(1), u64Val(2), u64Val(3))
			},
		},
		{
			name: "wrong scval type",
			raw: func(t *testing.T) model.RawEvent {
				return flatEvent(t, "call_settled", u32Val(1), u64Val(2))
			},
		},
		{
			name: "invalid position",
			raw: func(t *testing.T) model.RawEvent {
				return flatEvent(t, "stake_added", u64Val(7), accountVal(t, 4), i128Val(0, 1), u32Val(3))
			},
		},
		{
			name: "invalid outcome",
			raw: func(t *testing.T) model.RawEvent {
				return flatEvent(t, "call_resolved", u64Val(7), u32Val(9), i128Val(0, 1))
			},
		},
		{
			name: "short oracle key",
			raw: func(t *testing.T) model.RawEvent {
				return namespacedEvent(t, NamespaceOutcome, "submitted", u64Val(7), bytesVal([]byte{1, 2}), u32Val(1))
			},
		},
		{
			name: "bad base64 topic",
			raw: func(t *testing.T) model.RawEvent {
				raw := flatEvent(t, "call_settled", u64Val(1), u64Val(2))
				raw.Topics[1] = "!!not-base64!!"
				return raw
			},
		},
		{
			name: "namespaced without value",
			raw: func(t *testing.T) model.RawEvent {
				raw := namespacedEvent(t, NamespacePayout, "claimed")
				raw.Value = ""
				return raw
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := logs.Len()
			if _, ok := dec.Decode(tt.raw(t)); ok {
				t.Fatalf("expected malformed event to be dropped")
			}
			if logs.Len() != before+1 {
				t.Fatalf("expected one warning, got %d", logs.Len()-before)
			}
		})
	}
}

func TestDecodeEmptyTopics(t *testing.T) {
	dec := New(zap.NewNop())
	if _, ok := dec.Decode(model.RawEvent{ID: "x"}); ok {
		t.Fatalf("expected event without topics to be dropped")
	}
}

func TestDecodeStrict(t *testing.T) {
	dec := New(nil)

	if _, err := dec.DecodeStrict(flatEvent(t, "nope")); err != ErrUnknownKind {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
	if _, err := dec.DecodeStrict(flatEvent(t, "call_settled", u64Val(1))); err == nil {
		t.Fatalf("expected arity error")
	}
	event, err := dec.DecodeStrict(flatEvent(t, "call_settled", u64Val(1), u64Val(0)))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.Kind != model.KindCallSettled {
		t.Fatalf("unexpected kind: %s", event.Kind)
	}
}
