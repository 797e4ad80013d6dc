package engine

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/TitusNeyland/Pathread/internal/interfaces"
)

type mockModelClient struct {
	mock.Mock
}

func (m *mockModelClient) Complete(ctx context.Context, req interfaces.CompletionRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockModelClient) Configured() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *mockModelClient) Name() string {
	return "mock"
}

// funcModelClient answers with fn; used where call ordering matters.
type funcModelClient struct {
	fn func(ctx context.Context, req interfaces.CompletionRequest) (string, error)
}

func (c *funcModelClient) Complete(ctx context.Context, req interfaces.CompletionRequest) (string, error) {
	return c.fn(ctx, req)
}

func (c *funcModelClient) Configured() bool { return true }

func (c *funcModelClient) Name() string { return "func" }

type recordingPublisher struct {
	mu     sync.Mutex
	events []interfaces.SessionEvent
}

func (p *recordingPublisher) Publish(event interfaces.SessionEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) types() []interfaces.SessionEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]interfaces.SessionEventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
