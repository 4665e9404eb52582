package notify

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"callIndexer/internal/model"
	"callIndexer/internal/storage"
)

// CallDirectory resolves the creator of a call.
type CallDirectory interface {
	CreatorOf(ctx context.Context, callID uint64) (string, bool, error)
	Remember(callID uint64, creator string)
}

// StoreDirectory looks creators up from call_created records in the event
// log, caching hits in an LRU.
type StoreDirectory struct {
	events storage.EventStore
	cache  *lru.Cache
}

func NewStoreDirectory(events storage.EventStore, size int) (*StoreDirectory, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create creator cache: %w", err)
	}
	return &StoreDirectory{events: events, cache: cache}, nil
}

func (d *StoreDirectory) Remember(callID uint64, creator string) {
	if creator == "" {
		return
	}
	d.cache.Add(callID, creator)
}

func (d *StoreDirectory) CreatorOf(ctx context.Context, callID uint64) (string, bool, error) {
	if v, ok := d.cache.Get(callID); ok {
		return v.(string), true, nil
	}

	recs, err := d.events.QueryEvents(ctx, storage.EventQuery{
		Kind:   model.KindCallCreated,
		CallID: &callID,
		Limit:  1,
	})
	if err != nil {
		return "", false, fmt.Errorf("lookup call %d: %w", callID, err)
	}
	if len(recs) == 0 {
		return "", false, nil
	}
	payload, err := recs[0].Decoded()
	if err != nil {
		return "", false, fmt.Errorf("decode call %d: %w", callID, err)
	}
	created, ok := payload.(model.CallCreated)
	if !ok || created.Creator == "" {
		return "", false, nil
	}
	d.cache.Add(callID, created.Creator)
	return created.Creator, true, nil
}
