package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"callIndexer/internal/chain"
	"callIndexer/internal/metrics"
	"callIndexer/internal/model"
	"callIndexer/internal/storage"
)

// LedgerClient is the subset of the RPC client the poller needs.
type LedgerClient interface {
	LatestLedger(ctx context.Context) (uint32, error)
	GetEvents(ctx context.Context, startLedger uint32, contractIDs []string, limit uint, cursor string) (chain.EventPage, error)
}

// EventDecoder turns raw events into typed ones.
type EventDecoder interface {
	Decode(raw model.RawEvent) (model.ParsedEvent, bool)
}

// EventRouter fans a newly stored event out to notifications.
type EventRouter interface {
	Route(ctx context.Context, event model.ParsedEvent)
}

// PollConfig holds runtime settings for the poller.
type PollConfig struct {
	ContractIDs  []string
	Interval     time.Duration
	PageSize     uint
	MaxPages     int
	StartLedger  uint32
	MaxRetries   int
	RetryBackoff time.Duration
}

// Poller periodically pulls contract events, stores them and advances the
// checkpoint. At most one cycle runs at a time.
type Poller struct {
	cfg     PollConfig
	client  LedgerClient
	decoder EventDecoder
	store   storage.Store
	router  EventRouter
	logger  *zap.Logger

	sem *semaphore.Weighted
	now func() time.Time

	// Owned by the running cycle; sem serialises access.
	checkpoint    uint32
	hasCheckpoint bool
	loaded        bool
	lastLatest    uint32
	resumeCursor  string
}

// NewPoller builds a Poller with its dependencies. router may be nil.
func NewPoller(cfg PollConfig, client LedgerClient, decoder EventDecoder, store storage.Store, router EventRouter, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = 100
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10
	}
	return &Poller{
		cfg:     cfg,
		client:  client,
		decoder: decoder,
		store:   store,
		router:  router,
		logger:  logger,
		sem:     semaphore.NewWeighted(1),
		now:     time.Now,
	}
}

// Run polls until ctx is cancelled. Ticks that arrive while a cycle is still
// running are skipped. Run waits for an in-flight cycle before returning.
func (p *Poller) Run(ctx context.Context) error {
	if p.client == nil {
		return fmt.Errorf("ledger client is nil")
	}
	if p.store == nil {
		return fmt.Errorf("store is nil")
	}
	if len(p.cfg.ContractIDs) == 0 {
		return fmt.Errorf("at least one contract id is required")
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	tick := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Tick(ctx)
		}()
	}

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	tick()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			tick()
		}
	}
}

// Tick runs one cycle unless another is in flight. It reports whether a
// cycle ran.
func (p *Poller) Tick(ctx context.Context) bool {
	if !p.sem.TryAcquire(1) {
		metrics.IncTickSkipped()
		p.logger.Debug("cycle still running, tick skipped")
		return false
	}
	defer p.sem.Release(1)

	if ctx.Err() != nil {
		return false
	}

	started := p.now()
	result := p.cycle(ctx)
	metrics.IncCycle(result)
	metrics.ObserveCycleDuration(time.Since(started))
	return true
}

// Checkpoint returns the cached checkpoint. It is only meaningful between cycles.
func (p *Poller) Checkpoint() (uint32, bool) {
	return p.checkpoint, p.hasCheckpoint
}

// cycle runs one poll. Calls already issued complete even if ctx is
// cancelled; cancellation is honoured between pages.
func (p *Poller) cycle(parent context.Context) string {
	ctx := context.WithoutCancel(parent)

	if err := p.ensureCheckpoint(ctx); err != nil {
		p.logger.Error("checkpoint load failed", zap.Error(err))
		return metrics.CycleStoreError
	}

	start, err := p.startLedger(ctx)
	if err != nil {
		p.logger.Warn("start ledger unavailable", zap.Error(err))
		return metrics.CycleRPCError
	}

	if p.resumeCursor == "" && start > p.lastLatest {
		latest, err := p.latestLedger(ctx)
		if err != nil {
			p.logger.Warn("latest ledger unavailable", zap.Error(err))
			return metrics.CycleRPCError
		}
		p.lastLatest = latest
		if start > latest {
			p.logger.Debug("nothing new", zap.Uint32("start", start), zap.Uint32("latest", latest))
			return metrics.CycleIdle
		}
	}

	var (
		cursor     = p.resumeCursor
		drained    bool
		lastLedger uint32
		fetched    int
		stored     int
	)
	for page := 0; page < p.cfg.MaxPages; page++ {
		if page > 0 && parent.Err() != nil {
			p.resumeCursor = ""
			return metrics.CycleCancelled
		}
		res, err := p.getEvents(ctx, start, cursor)
		if err != nil {
			p.logger.Warn("fetch events failed",
				zap.Uint32("start", start),
				zap.String("cursor", cursor),
				zap.Error(err),
			)
			return metrics.CycleRPCError
		}
		if res.LatestLedger > p.lastLatest {
			p.lastLatest = res.LatestLedger
		}

		for _, raw := range res.Events {
			fetched++
			lastLedger = raw.Ledger
			ok, err := p.ingest(ctx, raw)
			if err != nil {
				p.logger.Error("persist event failed",
					zap.String("ledger_id", raw.LedgerID()),
					zap.String("contract_id", raw.ContractID),
					zap.Error(err),
				)
				p.resumeCursor = ""
				return metrics.CycleStoreError
			}
			if ok {
				stored++
			}
		}

		if uint(len(res.Events)) < p.cfg.PageSize || res.Cursor == "" {
			drained = true
			break
		}
		cursor = res.Cursor
	}

	var target uint32
	if drained {
		p.resumeCursor = ""
		target = p.lastLatest
	} else {
		p.resumeCursor = cursor
		if lastLedger > 0 {
			target = lastLedger - 1
		}
	}

	if err := p.advance(ctx, target); err != nil {
		p.logger.Error("save checkpoint failed", zap.Uint32("target", target), zap.Error(err))
		return metrics.CycleStoreError
	}

	p.logger.Info("cycle complete",
		zap.Uint32("start", start),
		zap.Int("fetched", fetched),
		zap.Int("stored", stored),
		zap.Bool("drained", drained),
		zap.Uint32("checkpoint", p.checkpoint),
	)
	if fetched == 0 {
		return metrics.CycleIdle
	}
	return metrics.CycleOK
}

func (p *Poller) ensureCheckpoint(ctx context.Context) error {
	if p.loaded {
		return nil
	}
	resolved, err := resolveCheckpoint(ctx, p.store, p.cfg.ContractIDs)
	if err != nil {
		return err
	}
	p.loaded = true
	if resolved.source == checkpointNone {
		p.logger.Info("no checkpoint, cold start")
		return nil
	}
	for _, id := range resolved.missing {
		p.logger.Info("contract has no checkpoint row, resuming with the others",
			zap.String("contract_id", id),
			zap.Uint32("ledger", resolved.ledger),
		)
	}
	p.checkpoint = resolved.ledger
	p.hasCheckpoint = true
	metrics.SetCheckpoint(resolved.ledger)
	p.logger.Info("resume from checkpoint",
		zap.Uint32("ledger", resolved.ledger),
		zap.String("source", string(resolved.source)),
	)
	return nil
}

// startLedger picks where this cycle reads from: the ledger after the
// checkpoint, the configured start ledger, or the current head.
func (p *Poller) startLedger(ctx context.Context) (uint32, error) {
	if p.hasCheckpoint {
		return p.checkpoint + 1, nil
	}
	if p.cfg.StartLedger > 0 {
		return p.cfg.StartLedger, nil
	}
	latest, err := p.latestLedger(ctx)
	if err != nil {
		return 0, err
	}
	p.lastLatest = latest
	return latest, nil
}

// ingest decodes, stores and routes one event. It reports whether a new
// record was written; only store failures are returned.
func (p *Poller) ingest(ctx context.Context, raw model.RawEvent) (bool, error) {
	event, ok := p.decoder.Decode(raw)
	if !ok {
		metrics.IncEvent("", metrics.EventDropped)
		return false, nil
	}

	rec, err := buildEventRecord(uuid.New(), raw, event, p.now())
	if err != nil {
		metrics.IncEvent(event.Kind.String(), metrics.EventDropped)
		p.logger.Warn("event record build failed", zap.String("ledger_id", raw.LedgerID()), zap.Error(err))
		return false, nil
	}

	inserted, err := p.store.InsertEvent(ctx, rec)
	if err != nil {
		return false, err
	}
	if !inserted {
		metrics.IncEvent(event.Kind.String(), metrics.EventDuplicate)
		p.logger.Debug("duplicate event skipped", zap.String("ledger_id", raw.LedgerID()))
		return false, nil
	}
	metrics.IncEvent(event.Kind.String(), metrics.EventStored)

	if p.router != nil {
		p.router.Route(ctx, event)
	}
	return true, nil
}

func (p *Poller) advance(ctx context.Context, target uint32) error {
	if target == 0 || (p.hasCheckpoint && target <= p.checkpoint) {
		return nil
	}
	if err := p.store.SaveCheckpoint(ctx, p.cfg.ContractIDs, target); err != nil {
		return err
	}
	p.checkpoint = target
	p.hasCheckpoint = true
	metrics.SetCheckpoint(target)
	return nil
}

func (p *Poller) latestLedger(ctx context.Context) (uint32, error) {
	var latest uint32
	err := withRetry(ctx, p.cfg.MaxRetries, p.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		latest, err = p.client.LatestLedger(ctx)
		if err != nil {
			p.logger.Warn("latest ledger fetch failed", zap.Error(err))
		}
		return err
	})
	return latest, err
}

func (p *Poller) getEvents(ctx context.Context, start uint32, cursor string) (chain.EventPage, error) {
	var page chain.EventPage
	err := withRetry(ctx, p.cfg.MaxRetries, p.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		page, err = p.client.GetEvents(ctx, start, p.cfg.ContractIDs, p.cfg.PageSize, cursor)
		if err != nil && !errors.Is(err, context.Canceled) {
			p.logger.Warn("get events failed", zap.Error(err), zap.Uint32("start", start))
		}
		return err
	})
	return page, err
}
