package feed

import (
	"context"
	"errors"
	"sync"

	"Canada28Bot/internal/model"
)

// ErrNoResult is returned by MockFeed when a scripted step is a failure.
var ErrNoResult = errors.New("mock feed: no result")

// MockFeed replays a scripted sequence of results for development and tests.
// A nil entry in Steps is a failed fetch. Once the script is exhausted the
// last result is repeated, which looks like "no new draw yet".
type MockFeed struct {
	mu    sync.Mutex
	Steps []*model.DrawResult
	pos   int
	calls int
}

func (m *MockFeed) Name() string { return "mock" }

func (m *MockFeed) Latest(ctx context.Context) (model.DrawResult, error) {
	if err := ctx.Err(); err != nil {
		return model.DrawResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.Steps) == 0 {
		return model.DrawResult{}, ErrNoResult
	}
	i := m.pos
	if i >= len(m.Steps) {
		i = len(m.Steps) - 1
	} else {
		m.pos++
	}
	if m.Steps[i] == nil {
		return model.DrawResult{}, ErrNoResult
	}
	return *m.Steps[i], nil
}

// Push appends a step to the script.
func (m *MockFeed) Push(r *model.DrawResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Steps = append(m.Steps, r)
}

// Calls reports how many fetches were made.
func (m *MockFeed) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
