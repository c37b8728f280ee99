package access

import (
	"context"
	"sync"

	"github.com/sweeney/climate-bot/internal/membership"
)

// FakeNotifier records prompts and decision notices for test assertions.
// Safe for concurrent use.
type FakeNotifier struct {
	mu sync.Mutex

	// Prompts contains every requester the admin was prompted about.
	Prompts []membership.Profile

	// Notices contains every decision notice sent to a requester.
	Notices []Notice

	// PromptError, if set, will be returned by PromptAdmin.
	PromptError error

	// NotifyError, if set, will be returned by NotifyDecision.
	NotifyError error
}

// Notice is one recorded decision notification.
type Notice struct {
	Requester membership.ID
	Decision  Decision
}

// NewFakeNotifier creates a FakeNotifier for testing.
func NewFakeNotifier() *FakeNotifier {
	return &FakeNotifier{}
}

// PromptAdmin records the prompt.
func (f *FakeNotifier) PromptAdmin(ctx context.Context, admin membership.ID, requester membership.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PromptError != nil {
		return f.PromptError
	}
	f.Prompts = append(f.Prompts, requester)
	return nil
}

// NotifyDecision records the notice. The notice is recorded even when
// NotifyError is set so tests can see the attempt.
func (f *FakeNotifier) NotifyDecision(ctx context.Context, requester membership.ID, d Decision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Notices = append(f.Notices, Notice{Requester: requester, Decision: d})
	return f.NotifyError
}

// PromptCount returns the number of prompts under the lock.
func (f *FakeNotifier) PromptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Prompts)
}
