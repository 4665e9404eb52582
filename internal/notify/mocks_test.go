package notify

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyBacked(ctx context.Context, creator, staker string, callID uint64) error {
	args := m.Called(ctx, creator, staker, callID)
	return args.Error(0)
}

func (m *MockNotifier) NotifyCallEnded(ctx context.Context, creator string, callID uint64) error {
	args := m.Called(ctx, creator, callID)
	return args.Error(0)
}

func (m *MockNotifier) NotifyPayoutReady(ctx context.Context, staker string, callID uint64) error {
	args := m.Called(ctx, staker, callID)
	return args.Error(0)
}

type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) CreatorOf(ctx context.Context, callID uint64) (string, bool, error) {
	args := m.Called(ctx, callID)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockDirectory) Remember(callID uint64, creator string) {
	m.Called(callID, creator)
}

type recordingSender struct {
	mu    sync.Mutex
	msgs  []Message
	err   error
	block chan struct{}
}

func (s *recordingSender) Send(_ context.Context, msg Message) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return s.err
}

func (s *recordingSender) messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

type mockPublisher struct {
	mu         sync.Mutex
	published  [][2]string
	publishErr error
}

func (m *mockPublisher) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return redis.NewIntResult(0, m.publishErr)
	}
	m.published = append(m.published, [2]string{channel, message.(string)})
	return redis.NewIntResult(1, nil)
}
