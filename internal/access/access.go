// Package access decides which requester identities may use privileged
// commands. Identities are Allowed or Denied through persisted membership
// sets; unknown identities become Pending until the single admin approves
// or denies them out of band.
//
// Pending requests live only in memory and are lost on restart.
package access

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/sweeney/climate-bot/internal/membership"
)

// ErrInvalidCallback is returned for a decision payload that is not
// "<approve|deny>:<identity>".
var ErrInvalidCallback = errors.New("access: invalid callback data")

// Status is the outcome of an authorization check.
type Status int

const (
	// StatusAllowed means the command may proceed.
	StatusAllowed Status = iota
	// StatusDenied means the identity is in the deny set.
	StatusDenied
	// StatusPending means a new request was recorded and the admin prompted.
	StatusPending
	// StatusAlreadyPending means a request was already awaiting a decision.
	StatusAlreadyPending
)

func (s Status) String() string {
	switch s {
	case StatusAllowed:
		return "allowed"
	case StatusDenied:
		return "denied"
	case StatusPending:
		return "pending"
	case StatusAlreadyPending:
		return "already_pending"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Decision is the admin's answer to a pending request.
type Decision string

const (
	Approve Decision = "approve"
	Deny    Decision = "deny"
)

// Result is the outcome of applying a decision.
type Result int

const (
	// ResultApproved means the identity was added to the allow set.
	ResultApproved Result = iota
	// ResultDenied means the identity was added to the deny set.
	ResultDenied
	// ResultExpired means no pending request matched.
	ResultExpired
	// ResultIgnored means the decision did not come from the admin.
	ResultIgnored
)

// CallbackData encodes a decision for an inline button.
func CallbackData(d Decision, id membership.ID) string {
	return string(d) + ":" + id.String()
}

// ParseCallback decodes CallbackData.
func ParseCallback(data string) (Decision, membership.ID, error) {
	decision, idStr, ok := strings.Cut(data, ":")
	if !ok {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidCallback, data)
	}
	d := Decision(decision)
	if d != Approve && d != Deny {
		return "", 0, fmt.Errorf("%w: unknown decision %q", ErrInvalidCallback, decision)
	}
	id, err := membership.ParseID(idStr)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrInvalidCallback, err)
	}
	return d, id, nil
}

// Notifier delivers the gateway's out-of-band messages.
type Notifier interface {
	// PromptAdmin asks the admin to approve or deny the requester.
	PromptAdmin(ctx context.Context, admin membership.ID, requester membership.Profile) error

	// NotifyDecision tells the requester how their request was decided.
	NotifyDecision(ctx context.Context, requester membership.ID, d Decision) error
}

// Gateway is the authorization state machine. All reads and mutations of the
// pending, allow and deny sets happen under mu; notifications are sent after
// mu is released.
type Gateway struct {
	admin    membership.ID
	notifier Notifier

	mu      sync.Mutex
	allowed *membership.Set
	denied  *membership.Set
	pending map[membership.ID]membership.Profile
}

// NewGateway creates a gateway over the loaded allow and deny sets.
func NewGateway(admin membership.ID, allowed, denied *membership.Set, n Notifier) *Gateway {
	return &Gateway{
		admin:    admin,
		notifier: n,
		allowed:  allowed,
		denied:   denied,
		pending:  make(map[membership.ID]membership.Profile),
	}
}

// Admin returns the configured admin identity.
func (g *Gateway) Admin() membership.ID {
	return g.admin
}

// IsAdmin reports whether id is the admin. Admin-only commands use this
// check alone; there is no pending path for them.
func (g *Gateway) IsAdmin(id membership.ID) bool {
	return id == g.admin
}

// Authorize checks the requester and, for an unknown identity, records a
// pending request and prompts the admin. Only StatusAllowed lets a
// privileged command proceed.
func (g *Gateway) Authorize(ctx context.Context, requester membership.Profile) Status {
	id := requester.ID

	g.mu.Lock()
	switch {
	case g.denied.Contains(id):
		g.mu.Unlock()
		return StatusDenied
	case id == g.admin || g.allowed.Contains(id):
		g.mu.Unlock()
		return StatusAllowed
	}
	if _, ok := g.pending[id]; ok {
		g.mu.Unlock()
		return StatusAlreadyPending
	}
	g.pending[id] = requester
	g.mu.Unlock()

	log.Printf("gateway: access request from %s (%s)", id, requester.Username)
	if err := g.notifier.PromptAdmin(ctx, g.admin, requester); err != nil {
		// The admin never saw this request; let the next attempt prompt again.
		log.Printf("gateway: prompt admin for %s: %v", id, err)
		g.mu.Lock()
		delete(g.pending, id)
		g.mu.Unlock()
	}
	return StatusPending
}

// HandleCallback applies a decision payload sent by from. Payloads from
// anyone but the admin are ignored.
func (g *Gateway) HandleCallback(ctx context.Context, from membership.ID, data string) (Result, error) {
	if !g.IsAdmin(from) {
		return ResultIgnored, nil
	}
	d, id, err := ParseCallback(data)
	if err != nil {
		log.Printf("gateway: %v", err)
		return ResultIgnored, err
	}
	return g.Decide(ctx, d, id)
}

// Decide moves a pending identity into the allow or deny set and persists
// that set. The requester is then notified; a failed notification is logged
// and does not undo the decision.
func (g *Gateway) Decide(ctx context.Context, d Decision, id membership.ID) (Result, error) {
	var (
		set    *membership.Set
		result Result
	)
	switch d {
	case Approve:
		set, result = g.allowed, ResultApproved
	case Deny:
		set, result = g.denied, ResultDenied
	default:
		return ResultIgnored, fmt.Errorf("%w: unknown decision %q", ErrInvalidCallback, d)
	}

	g.mu.Lock()
	profile, ok := g.pending[id]
	if !ok {
		g.mu.Unlock()
		log.Printf("gateway: %s for %s: request expired", d, id)
		return ResultExpired, nil
	}
	delete(g.pending, id)
	set.Add(id, profile)
	if err := set.Save(); err != nil {
		set.Remove(id)
		g.pending[id] = profile
		g.mu.Unlock()
		return ResultIgnored, fmt.Errorf("persist %s for %s: %w", d, id, err)
	}
	g.mu.Unlock()

	log.Printf("gateway: %s %s (%s)", d, id, profile.Username)
	if err := g.notifier.NotifyDecision(ctx, id, d); err != nil {
		log.Printf("gateway: notify %s of %s: %v", id, d, err)
	}
	return result, nil
}

// Pending returns the identities awaiting a decision.
func (g *Gateway) Pending() []membership.Profile {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]membership.Profile, 0, len(g.pending))
	for _, p := range g.pending {
		out = append(out, p)
	}
	return out
}

// State reports where id currently sits.
func (g *Gateway) State(id membership.ID) State {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch {
	case g.denied.Contains(id):
		return StateDenied
	case id == g.admin || g.allowed.Contains(id):
		return StateAllowed
	}
	if _, ok := g.pending[id]; ok {
		return StatePending
	}
	return StateUnauthenticated
}

// State is an identity's position in the authorization state machine.
type State string

const (
	StateUnauthenticated State = "UNAUTHENTICATED"
	StatePending         State = "PENDING"
	StateAllowed         State = "ALLOWED"
	StateDenied          State = "DENIED"
)
