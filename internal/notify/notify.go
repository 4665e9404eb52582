package notify

import (
	"context"
	"time"
)

// Notification types.
const (
	TypeBacked      = "backed"
	TypeCallEnded   = "call_ended"
	TypePayoutReady = "payout_ready"
)

// Notifier receives the user-facing notifications derived from events.
type Notifier interface {
	// NotifyBacked tells creator that staker backed their call.
	NotifyBacked(ctx context.Context, creator, staker string, callID uint64) error
	// NotifyCallEnded tells creator their call was resolved.
	NotifyCallEnded(ctx context.Context, creator string, callID uint64) error
	// NotifyPayoutReady tells staker their payout was released.
	NotifyPayoutReady(ctx context.Context, staker string, callID uint64) error
}

// Message is the transport-neutral form of one notification.
type Message struct {
	Type      string    `json:"type"`
	Recipient string    `json:"recipient"`
	CallID    uint64    `json:"call_id"`
	Staker    string    `json:"staker,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Sender delivers a Message over some transport.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderNotifier adapts a Sender into a synchronous Notifier.
type SenderNotifier struct {
	Sender Sender
	Now    func() time.Time
}

func (n SenderNotifier) NotifyBacked(ctx context.Context, creator, staker string, callID uint64) error {
	return n.Sender.Send(ctx, n.message(TypeBacked, creator, staker, callID))
}

func (n SenderNotifier) NotifyCallEnded(ctx context.Context, creator string, callID uint64) error {
	return n.Sender.Send(ctx, n.message(TypeCallEnded, creator, "", callID))
}

func (n SenderNotifier) NotifyPayoutReady(ctx context.Context, staker string, callID uint64) error {
	return n.Sender.Send(ctx, n.message(TypePayoutReady, staker, "", callID))
}

func (n SenderNotifier) message(typ, recipient, staker string, callID uint64) Message {
	return newMessage(n.Now, typ, recipient, staker, callID)
}

func newMessage(now func() time.Time, typ, recipient, staker string, callID uint64) Message {
	if now == nil {
		now = time.Now
	}
	return Message{
		Type:      typ,
		Recipient: recipient,
		CallID:    callID,
		Staker:    staker,
		CreatedAt: now().UTC(),
	}
}
