package actuator

import (
	"context"
	"errors"
	"sync"
)

// ErrFakeFailure is returned by Fake for aliases listed in FailAliases.
var ErrFakeFailure = errors.New("fake actuator: delivery failed")

// Call is one recorded Dispatch.
type Call struct {
	Alias  string
	ChatID string
	Text   string
}

// Fake records dispatches in memory instead of running a process.
type Fake struct {
	mu          sync.Mutex
	calls       []Call
	FailAliases map[string]bool
}

func (f *Fake) Dispatch(ctx context.Context, alias, chatID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Alias: alias, ChatID: chatID, Text: text})
	if f.FailAliases[alias] {
		return ErrFakeFailure
	}
	return nil
}

// Calls returns a copy of every dispatch so far.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}
