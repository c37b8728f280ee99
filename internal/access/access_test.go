package access

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sweeney/climate-bot/internal/membership"
)

const admin membership.ID = 1000

type fixture struct {
	dir      string
	gateway  *Gateway
	notifier *FakeNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	return loadFixture(t, dir)
}

func loadFixture(t *testing.T, dir string) *fixture {
	t.Helper()
	allowed, err := membership.Load(filepath.Join(dir, "whitelist.json"))
	if err != nil {
		t.Fatalf("load allowed: %v", err)
	}
	denied, err := membership.Load(filepath.Join(dir, "blacklist.json"))
	if err != nil {
		t.Fatalf("load denied: %v", err)
	}
	n := NewFakeNotifier()
	return &fixture{dir: dir, gateway: NewGateway(admin, allowed, denied, n), notifier: n}
}

func profile(id membership.ID) membership.Profile {
	return membership.NewProfile(id, "Test", "User", "user", "en")
}

func reload(t *testing.T, path string) *membership.Set {
	t.Helper()
	s, err := membership.Load(path)
	if err != nil {
		t.Fatalf("reload %s: %v", path, err)
	}
	return s
}

func TestAdminIsAllowed(t *testing.T) {
	f := newFixture(t)
	if got := f.gateway.Authorize(context.Background(), profile(admin)); got != StatusAllowed {
		t.Errorf("admin: got %s, want allowed", got)
	}
	if f.notifier.PromptCount() != 0 {
		t.Error("admin must not trigger a prompt")
	}
}

func TestApprovalScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if got := f.gateway.Authorize(ctx, profile(42)); got != StatusPending {
		t.Fatalf("first contact: got %s, want pending", got)
	}
	if len(f.notifier.Prompts) != 1 || f.notifier.Prompts[0].ID != 42 {
		t.Fatalf("expected one prompt for 42, got %+v", f.notifier.Prompts)
	}
	if st := f.gateway.State(42); st != StatePending {
		t.Errorf("state: got %s, want PENDING", st)
	}

	res, err := f.gateway.HandleCallback(ctx, admin, CallbackData(Approve, 42))
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if res != ResultApproved {
		t.Errorf("result: got %d, want ResultApproved", res)
	}

	if !reload(t, filepath.Join(f.dir, "whitelist.json")).Contains(42) {
		t.Error("expected 42 persisted in whitelist.json")
	}
	if len(f.notifier.Notices) != 1 || f.notifier.Notices[0] != (Notice{Requester: 42, Decision: Approve}) {
		t.Errorf("unexpected notices: %+v", f.notifier.Notices)
	}

	if got := f.gateway.Authorize(ctx, profile(42)); got != StatusAllowed {
		t.Errorf("after approval: got %s, want allowed", got)
	}
	if f.notifier.PromptCount() != 1 {
		t.Errorf("expected no new prompt, got %d total", f.notifier.PromptCount())
	}
}

func TestDenialScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.gateway.Authorize(ctx, profile(7))
	res, err := f.gateway.Decide(ctx, Deny, 7)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if res != ResultDenied {
		t.Errorf("result: got %d, want ResultDenied", res)
	}
	if !reload(t, filepath.Join(f.dir, "blacklist.json")).Contains(7) {
		t.Error("expected 7 persisted in blacklist.json")
	}
	if _, err := os.Stat(filepath.Join(f.dir, "whitelist.json")); !os.IsNotExist(err) {
		t.Error("deny must not write the allow set")
	}

	for i := 0; i < 3; i++ {
		if got := f.gateway.Authorize(ctx, profile(7)); got != StatusDenied {
			t.Errorf("after deny: got %s, want denied", got)
		}
	}
	if f.notifier.PromptCount() != 1 {
		t.Errorf("denied identity must not prompt again, got %d prompts", f.notifier.PromptCount())
	}
}

func TestPersistedDenySetRejectsWithoutPrompt(t *testing.T) {
	dir := t.TempDir()
	denied, _ := membership.Load(filepath.Join(dir, "blacklist.json"))
	denied.Add(7, profile(7))
	denied.Save()

	f := loadFixture(t, dir)
	if got := f.gateway.Authorize(context.Background(), profile(7)); got != StatusDenied {
		t.Errorf("got %s, want denied", got)
	}
	if f.notifier.PromptCount() != 0 {
		t.Error("denied identity must not prompt the admin")
	}
}

func TestDenyTakesPrecedenceOverAdmin(t *testing.T) {
	dir := t.TempDir()
	denied, _ := membership.Load(filepath.Join(dir, "blacklist.json"))
	denied.Add(admin, profile(admin))
	denied.Save()

	f := loadFixture(t, dir)
	if got := f.gateway.Authorize(context.Background(), profile(admin)); got != StatusDenied {
		t.Errorf("got %s, want denied", got)
	}
}

func TestPersistedAllowSetSurvivesRestart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gateway.Authorize(ctx, profile(42))
	f.gateway.Decide(ctx, Approve, 42)

	restarted := loadFixture(t, f.dir)
	if got := restarted.gateway.Authorize(ctx, profile(42)); got != StatusAllowed {
		t.Errorf("after restart: got %s, want allowed", got)
	}
}

func TestPendingLostOnRestart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gateway.Authorize(ctx, profile(42))

	restarted := loadFixture(t, f.dir)
	res, err := restarted.gateway.HandleCallback(ctx, admin, CallbackData(Approve, 42))
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if res != ResultExpired {
		t.Errorf("result: got %d, want ResultExpired", res)
	}
	if restarted.gateway.State(42) != StateUnauthenticated {
		t.Errorf("state: got %s, want UNAUTHENTICATED", restarted.gateway.State(42))
	}
}

func TestAlreadyPendingIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if got := f.gateway.Authorize(ctx, profile(5)); got != StatusPending {
		t.Fatalf("first: got %s, want pending", got)
	}
	if got := f.gateway.Authorize(ctx, profile(5)); got != StatusAlreadyPending {
		t.Fatalf("second: got %s, want already_pending", got)
	}
	if f.notifier.PromptCount() != 1 {
		t.Errorf("expected exactly 1 prompt, got %d", f.notifier.PromptCount())
	}
}

func TestConcurrentFirstContactPromptsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	statuses := make(chan Status, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			statuses <- f.gateway.Authorize(ctx, profile(9))
		}()
	}
	wg.Wait()
	close(statuses)

	pending := 0
	for s := range statuses {
		if s == StatusPending {
			pending++
		} else if s != StatusAlreadyPending {
			t.Errorf("unexpected status %s", s)
		}
	}
	if pending != 1 {
		t.Errorf("expected exactly one pending result, got %d", pending)
	}
	if f.notifier.PromptCount() != 1 {
		t.Errorf("expected exactly 1 prompt, got %d", f.notifier.PromptCount())
	}
}

func TestDecisionForUnknownIdentityExpires(t *testing.T) {
	f := newFixture(t)
	for _, d := range []Decision{Approve, Deny} {
		res, err := f.gateway.Decide(context.Background(), d, 77)
		if err != nil {
			t.Fatalf("Decide: %v", err)
		}
		if res != ResultExpired {
			t.Errorf("%s: got %d, want ResultExpired", d, res)
		}
	}
	if len(f.notifier.Notices) != 0 {
		t.Error("expired decision must not notify")
	}
}

func TestSecondDecisionExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gateway.Authorize(ctx, profile(42))
	f.gateway.Decide(ctx, Approve, 42)

	res, _ := f.gateway.Decide(ctx, Deny, 42)
	if res != ResultExpired {
		t.Errorf("got %d, want ResultExpired", res)
	}
	if reload(t, filepath.Join(f.dir, "blacklist.json")).Contains(42) {
		t.Error("stale deny must not reach the deny set")
	}
}

func TestNotifyFailureKeepsDecision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.notifier.NotifyError = errors.New("bot was blocked by the user")

	f.gateway.Authorize(ctx, profile(42))
	res, err := f.gateway.Decide(ctx, Approve, 42)
	if err != nil {
		t.Fatalf("notification failure must not surface: %v", err)
	}
	if res != ResultApproved {
		t.Errorf("got %d, want ResultApproved", res)
	}
	if !reload(t, filepath.Join(f.dir, "whitelist.json")).Contains(42) {
		t.Error("approval must persist despite notification failure")
	}
}

func TestPromptFailureAllowsRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.notifier.PromptError = errors.New("network down")

	if got := f.gateway.Authorize(ctx, profile(3)); got != StatusPending {
		t.Fatalf("got %s, want pending", got)
	}
	f.notifier.PromptError = nil
	if got := f.gateway.Authorize(ctx, profile(3)); got != StatusPending {
		t.Errorf("retry: got %s, want pending", got)
	}
	if f.notifier.PromptCount() != 1 {
		t.Errorf("expected 1 delivered prompt, got %d", f.notifier.PromptCount())
	}
}

func TestPersistFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gateway.Authorize(ctx, profile(42))

	// Make the allow file unwritable by replacing it with a directory.
	if err := os.Mkdir(filepath.Join(f.dir, "whitelist.json"), 0o755); err != nil {
		t.Fatal(err)
	}

	if _, err := f.gateway.Decide(ctx, Approve, 42); err == nil {
		t.Fatal("expected persist error")
	}
	if st := f.gateway.State(42); st != StatePending {
		t.Errorf("state after failed persist: got %s, want PENDING", st)
	}
	if len(f.notifier.Notices) != 0 {
		t.Error("failed persist must not notify")
	}
}

func TestNonAdminCallbackIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gateway.Authorize(ctx, profile(42))

	res, err := f.gateway.HandleCallback(ctx, 42, CallbackData(Approve, 42))
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if res != ResultIgnored {
		t.Errorf("got %d, want ResultIgnored", res)
	}
	if st := f.gateway.State(42); st != StatePending {
		t.Errorf("state: got %s, want PENDING", st)
	}
}

func TestInvalidCallbackIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gateway.Authorize(ctx, profile(42))

	for _, data := range []string{"", "approve", "approve:", "maybe:42", "approve:abc", "approve:42:1"} {
		res, err := f.gateway.HandleCallback(ctx, admin, data)
		if !errors.Is(err, ErrInvalidCallback) {
			t.Errorf("%q: expected ErrInvalidCallback, got %v", data, err)
		}
		if res != ResultIgnored {
			t.Errorf("%q: got %d, want ResultIgnored", data, res)
		}
	}
	if st := f.gateway.State(42); st != StatePending {
		t.Errorf("state: got %s, want PENDING", st)
	}
}

func TestParseCallbackRoundTrip(t *testing.T) {
	for _, d := range []Decision{Approve, Deny} {
		gotD, gotID, err := ParseCallback(CallbackData(d, 123456789))
		if err != nil {
			t.Fatalf("ParseCallback: %v", err)
		}
		if gotD != d || gotID != 123456789 {
			t.Errorf("got (%s, %d), want (%s, 123456789)", gotD, gotID, d)
		}
	}
	if CallbackData(Approve, 42) != "approve:42" {
		t.Errorf("CallbackData: got %q", CallbackData(Approve, 42))
	}
}

func TestSetsStayDisjoint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for id := membership.ID(1); id <= 20; id++ {
		f.gateway.Authorize(ctx, profile(id))
	}
	for id := membership.ID(1); id <= 20; id++ {
		d := Approve
		if id%3 == 0 {
			d = Deny
		}
		f.gateway.Decide(ctx, d, id)
		// Contradicting decision after the fact must not land.
		f.gateway.Decide(ctx, Approve, id)
		f.gateway.Decide(ctx, Deny, id)
	}

	allowed := reload(t, filepath.Join(f.dir, "whitelist.json"))
	denied := reload(t, filepath.Join(f.dir, "blacklist.json"))
	for id := membership.ID(1); id <= 20; id++ {
		if allowed.Contains(id) && denied.Contains(id) {
			t.Errorf("identity %d in both sets", id)
		}
		if !allowed.Contains(id) && !denied.Contains(id) {
			t.Errorf("identity %d in neither set", id)
		}
	}
	if len(f.gateway.Pending()) != 0 {
		t.Errorf("expected no pending, got %d", len(f.gateway.Pending()))
	}
}
