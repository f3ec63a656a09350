package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockTurn represents a single response turn from the mock provider.
type MockTurn struct {
	Text      string // Text to emit (chunked for realistic streaming)
	ChunkSize int    // Characters per delta; 0 means 4
	Error     error  // Return this error instead of responding
}

// MockProvider is a configurable provider for testing.
// It returns scripted responses and records all requests for verification.
type MockProvider struct {
	name      string
	turns     []MockTurn
	turnIndex int
	Requests  []Request // Recorded requests for verification
	mu        sync.Mutex
}

// NewMockProvider creates a new mock provider with the given name.
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{name: name}
}

// Name returns the provider name.
func (m *MockProvider) Name() string {
	return m.name
}

// AddTurn adds a response turn and returns the provider for chaining.
func (m *MockProvider) AddTurn(t MockTurn) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, t)
	return m
}

// AddTextResponse is a convenience method to add a simple text response.
func (m *MockProvider) AddTextResponse(text string) *MockProvider {
	return m.AddTurn(MockTurn{Text: text})
}

// AddError adds a turn that returns an error.
func (m *MockProvider) AddError(err error) *MockProvider {
	return m.AddTurn(MockTurn{Error: err})
}

// Reset clears recorded requests and resets the turn index.
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turnIndex = 0
	m.Requests = nil
}

func (m *MockProvider) nextTurn(req Request) (MockTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	if m.turnIndex >= len(m.turns) {
		return MockTurn{}, fmt.Errorf("mock provider %s: no turn scripted for request %d", m.name, m.turnIndex)
	}
	turn := m.turns[m.turnIndex]
	m.turnIndex++
	return turn, nil
}

// Stream replays the next scripted turn as a sequence of text deltas.
func (m *MockProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	turn, err := m.nextTurn(req)
	if err != nil {
		return nil, err
	}

	return startStream(ctx, func(ctx context.Context, events chan<- Event) error {
		if turn.Error != nil {
			return turn.Error
		}

		size := turn.ChunkSize
		if size <= 0 {
			size = 4
		}
		runes := []rune(turn.Text)
		for start := 0; start < len(runes); start += size {
			end := start + size
			if end > len(runes) {
				end = len(runes)
			}
			select {
			case events <- Event{Type: EventTextDelta, Text: string(runes[start:end])}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}), nil
}
