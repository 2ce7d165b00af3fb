// Package proposaltest provides a scripted model backend and a recording
// retry timer for tests.
package proposaltest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/clood-dev/clood/internal/clood/proposal"
	"github.com/clood-dev/clood/internal/clood/session"
)

// Step is one scripted backend reply.
type Step struct {
	Text      string
	Truncated bool
	Err       error
}

// Backend replays Steps in order. When the script runs out the last step is
// repeated.
type Backend struct {
	mu       sync.Mutex
	steps    []Step
	requests []proposal.Request

	// Hook, when set, runs before a step is replayed. A non-nil error is
	// returned instead of the step.
	Hook func(ctx context.Context, req *proposal.Request) error
}

var _ proposal.Backend = (*Backend)(nil)

// New returns a backend that replays steps.
func New(steps ...Step) *Backend {
	return &Backend{steps: steps}
}

func (b *Backend) Name() string {
	return "fake"
}

func (b *Backend) Complete(ctx context.Context, req *proposal.Request) (*proposal.Completion, error) {
	b.mu.Lock()
	cp := *req
	cp.Messages = append([]proposal.Message(nil), req.Messages...)
	n := len(b.requests)
	b.requests = append(b.requests, cp)
	hook := b.Hook
	b.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, req); err != nil {
			return nil, err
		}
	}
	if len(b.steps) == 0 {
		return nil, errors.New("no scripted response")
	}
	if n >= len(b.steps) {
		n = len(b.steps) - 1
	}
	step := b.steps[n]
	if step.Err != nil {
		return nil, step.Err
	}
	return &proposal.Completion{Text: step.Text, Truncated: step.Truncated}, nil
}

// Calls returns the number of Complete calls so far.
func (b *Backend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

// Requests returns copies of the requests received so far.
func (b *Backend) Requests() []proposal.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]proposal.Request(nil), b.requests...)
}

// Overloaded returns the error a backend reports when the provider is
// overloaded.
func Overloaded() error {
	return &proposal.OverloadError{Backend: "fake", StatusCode: 529, Err: errors.New("overloaded_error")}
}

// Answer returns a markdown response carrying cs in a json fence.
func Answer(cs session.ChangeSet) string {
	b, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(cs, "", "  ")
	if err != nil {
		panic(err)
	}
	return fmt.Sprintf("Here are the changes.\n\n```json\n%s\n```\n", b)
}

// Changed returns a response that answers with the given changed files,
// given as filename, content pairs.
func Changed(pairs ...string) string {
	cs := session.ChangeSet{Answered: true, ChangedFiles: []session.FileChange{}, NewFiles: []session.FileChange{}}
	for i := 0; i+1 < len(pairs); i += 2 {
		cs.ChangedFiles = append(cs.ChangedFiles, session.FileChange{Filename: pairs[i], Content: pairs[i+1]})
	}
	return Answer(cs)
}

// Timer records the delays requested between retries and fires at once.
type Timer struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (t *Timer) After(d time.Duration) <-chan time.Time {
	t.mu.Lock()
	t.delays = append(t.delays, d)
	t.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

// Delays returns the recorded delays.
func (t *Timer) Delays() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Duration(nil), t.delays...)
}
