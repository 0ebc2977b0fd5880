package session

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"aether-service/internal/dispatch"
	"aether-service/internal/domain"
	"aether-service/internal/dto"
	"aether-service/internal/protocol"
)

// mockGateway is a testify mock of gateway.WorkspaceGateway
type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) List(ctx context.Context) ([]dto.WorkspaceResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dto.WorkspaceResponse), args.Error(1)
}

func (m *mockGateway) Get(ctx context.Context, id string) (*dto.WorkspaceResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.WorkspaceResponse), args.Error(1)
}

func (m *mockGateway) Create(ctx context.Context, name string, state domain.WindowsState) (*dto.WorkspaceResponse, error) {
	args := m.Called(ctx, name, state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.WorkspaceResponse), args.Error(1)
}

func (m *mockGateway) Update(ctx context.Context, id string, patch dto.UpdateWorkspaceRequest) (*dto.WorkspaceResponse, error) {
	args := m.Called(ctx, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.WorkspaceResponse), args.Error(1)
}

func (m *mockGateway) Delete(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// recordingBroadcaster keeps every message the store sends
type recordingBroadcaster struct {
	mu   sync.Mutex
	msgs []protocol.Message
}

func (b *recordingBroadcaster) Send(msg protocol.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, msg)
	return nil
}

func (b *recordingBroadcaster) sent() []protocol.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]protocol.Message(nil), b.msgs...)
}

// inlineDispatcher runs tasks on the calling goroutine
type inlineDispatcher struct{}

func (inlineDispatcher) Dispatch(name string, task dispatch.Task) error {
	return task(context.Background())
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
