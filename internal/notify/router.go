package notify

import (
	"context"

	"go.uber.org/zap"

	"callIndexer/internal/model"
)

// Router maps parsed events onto at most one Notifier call. Failures are
// logged and never returned to the caller.
type Router struct {
	notifier  Notifier
	directory CallDirectory
	logger    *zap.Logger
}

func NewRouter(notifier Notifier, directory CallDirectory, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{notifier: notifier, directory: directory, logger: logger}
}

func (r *Router) Route(ctx context.Context, event model.ParsedEvent) {
	switch p := event.Payload.(type) {
	case model.CallCreated:
		if r.directory != nil {
			r.directory.Remember(p.CallID, p.Creator)
		}
	case model.StakeAdded:
		if p.Staker == "" {
			r.skip(event.Kind, p.CallID, "staker missing")
			return
		}
		creator, ok := r.creatorOf(ctx, event.Kind, p.CallID)
		if !ok {
			return
		}
		r.report(TypeBacked, p.CallID, r.notifier.NotifyBacked(ctx, creator, p.Staker, p.CallID))
	case model.CallResolved:
		creator, ok := r.creatorOf(ctx, event.Kind, p.CallID)
		if !ok {
			return
		}
		r.report(TypeCallEnded, p.CallID, r.notifier.NotifyCallEnded(ctx, creator, p.CallID))
	case model.PayoutClaimed:
		if p.Staker == "" {
			r.skip(event.Kind, p.CallID, "staker missing")
			return
		}
		r.report(TypePayoutReady, p.CallID, r.notifier.NotifyPayoutReady(ctx, p.Staker, p.CallID))
	case model.CallSettled, model.AdminChanged, model.OutcomeManagerChanged,
		model.OutcomeFinalized, model.Initialized, model.OutcomeSubmitted:
	default:
		r.logger.Debug("no route for event", zap.String("kind", event.Kind.String()))
	}
}

func (r *Router) creatorOf(ctx context.Context, kind model.EventKind, callID uint64) (string, bool) {
	if r.directory == nil {
		r.skip(kind, callID, "no call directory")
		return "", false
	}
	creator, ok, err := r.directory.CreatorOf(ctx, callID)
	if err != nil {
		r.logger.Warn("creator lookup failed",
			zap.String("kind", kind.String()),
			zap.Uint64("call_id", callID),
			zap.Error(err),
		)
		return "", false
	}
	if !ok || creator == "" {
		r.skip(kind, callID, "creator unknown")
		return "", false
	}
	return creator, true
}

func (r *Router) skip(kind model.EventKind, callID uint64, reason string) {
	r.logger.Warn("notification skipped",
		zap.String("kind", kind.String()),
		zap.Uint64("call_id", callID),
		zap.String("reason", reason),
	)
}

func (r *Router) report(typ string, callID uint64, err error) {
	if err == nil {
		return
	}
	r.logger.Warn("notify failed",
		zap.String("type", typ),
		zap.Uint64("call_id", callID),
		zap.Error(err),
	)
}
