package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/stellar/go/toid"

	"callIndexer/internal/chain"
	"callIndexer/internal/model"
	"callIndexer/internal/storage"
)

type getEventsCall struct {
	start  uint32
	cursor string
	limit  uint
}

type fakeClient struct {
	mu          sync.Mutex
	latest      uint32
	latestErr   error
	pages       []chain.EventPage
	eventsErr   error
	calls       []getEventsCall
	latestCalls int

	entered chan struct{}
	release chan struct{}
}

func (c *fakeClient) LatestLedger(context.Context) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latestCalls++
	return c.latest, c.latestErr
}

func (c *fakeClient) GetEvents(_ context.Context, start uint32, _ []string, limit uint, cursor string) (chain.EventPage, error) {
	if c.entered != nil {
		c.entered <- struct{}{}
		<-c.release
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, getEventsCall{start: start, cursor: cursor, limit: limit})
	if c.eventsErr != nil {
		return chain.EventPage{}, c.eventsErr
	}
	if len(c.pages) == 0 {
		return chain.EventPage{LatestLedger: c.latest}, nil
	}
	page := c.pages[0]
	c.pages = c.pages[1:]
	if page.LatestLedger == 0 {
		page.LatestLedger = c.latest
	}
	return page, nil
}

func (c *fakeClient) getEventsCalls() []getEventsCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]getEventsCall, len(c.calls))
	copy(out, c.calls)
	return out
}

// rawEvent builds an RPC-shaped event at ledger; idx orders it within the ledger.
func rawEvent(ledger uint32, idx int) model.RawEvent {
	opID := toid.New(int32(ledger), 1, 1).ToInt64()
	id := fmt.Sprintf("%019d-%010d", opID, idx)
	return model.RawEvent{
		ID:          id,
		PagingToken: id,
		ContractID:  "CA",
		Ledger:      ledger,
		TxHash:      "tx",
		Topics:      []string{"call_settled"},
	}
}

func page(cursor string, events ...model.RawEvent) chain.EventPage {
	return chain.EventPage{Events: events, Cursor: cursor}
}

// stubDecoder decodes everything into call_settled except events whose
// first topic is "drop".
type stubDecoder struct{}

func (stubDecoder) Decode(raw model.RawEvent) (model.ParsedEvent, bool) {
	if len(raw.Topics) > 0 && raw.Topics[0] == "drop" {
		return model.ParsedEvent{}, false
	}
	return model.ParsedEvent{
		Kind:    model.KindCallSettled,
		Payload: model.CallSettled{CallID: uint64(raw.Ledger)},
	}, true
}

type recordingRouter struct {
	mu     sync.Mutex
	events []model.ParsedEvent
}

func (r *recordingRouter) Route(_ context.Context, event model.ParsedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingRouter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

var errInsert = errors.New("disk full")

// failingStore fails the failOn-th InsertEvent call (1-based).
type failingStore struct {
	*storage.JsonlStore
	failOn int
	calls  int
}

func (s *failingStore) InsertEvent(ctx context.Context, rec model.EventLogRecord) (bool, error) {
	s.calls++
	if s.calls == s.failOn {
		return false, errInsert
	}
	return s.JsonlStore.InsertEvent(ctx, rec)
}

func stubParsed(ledger uint32) model.ParsedEvent {
	return model.ParsedEvent{Kind: model.KindCallSettled, Payload: model.CallSettled{CallID: uint64(ledger)}}
}
