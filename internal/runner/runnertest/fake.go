// Package runnertest provides a scripted Runner for tests.
package runnertest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/yaroslav/nnctl/internal/runner"
)

// HandlerFunc decides the outcome of one command.
type HandlerFunc func(cmd runner.Command) (runner.Result, error)

// Fake records every command and answers through Handler.
// A nil Handler answers every command with exit code 0.
type Fake struct {
	Handler HandlerFunc

	mu    sync.Mutex
	calls []runner.Command
}

// Run implements runner.Runner.
func (f *Fake) Run(_ context.Context, cmd runner.Command) (runner.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	f.mu.Unlock()

	if f.Handler == nil {
		return runner.Result{}, nil
	}
	return f.Handler(cmd)
}

// Calls returns a copy of the recorded commands.
func (f *Fake) Calls() []runner.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]runner.Command(nil), f.calls...)
}

// Count returns how many recorded commands contain every given argument.
func (f *Fake) Count(args ...string) int {
	n := 0
	for _, c := range f.Calls() {
		if HasArgs(c, args...) {
			n++
		}
	}
	return n
}

// HasArgs reports whether every arg appears in cmd.Args.
func HasArgs(cmd runner.Command, args ...string) bool {
	joined := " " + strings.Join(cmd.Args, " ") + " "
	for _, a := range args {
		if !strings.Contains(joined, " "+a+" ") {
			return false
		}
	}
	return true
}

// Sleeps records requested sleeps without blocking.
type Sleeps struct {
	mu   sync.Mutex
	Durs []time.Duration
}

// Sleep implements runner.Sleeper.
func (s *Sleeps) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.Durs = append(s.Durs, d)
	s.mu.Unlock()
	return ctx.Err()
}

// Count returns the number of recorded sleeps.
func (s *Sleeps) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Durs)
}
