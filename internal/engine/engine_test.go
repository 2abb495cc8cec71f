package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pankaj-dahiya-devops/orgsweep/internal/models"
	awssession "github.com/pankaj-dahiya-devops/orgsweep/internal/providers/aws/session"
)

// ── test doubles ─────────────────────────────────────────────────────────────

// fakeBroker hands out sessions without calling STS. Accounts in deny fail
// with an AssumeRoleError.
type fakeBroker struct {
	deny  map[string]bool
	calls atomic.Int64
	delay time.Duration
}

func (b *fakeBroker) Acquire(ctx context.Context, accountID, region string) (*awssession.Session, error) {
	b.calls.Add(1)
	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if b.deny[accountID] {
		return nil, &awssession.AssumeRoleError{
			AccountID: accountID,
			RoleARN:   "arn:aws:iam::" + accountID + ":role/Auditor",
			Err:       errors.New("AccessDenied"),
		}
	}
	return &awssession.Session{AccountID: accountID, Region: region}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(b SessionBroker, concurrency int) *DefaultEngine {
	return NewDefaultEngine(b, Options{Concurrency: concurrency, Logger: quietLogger()})
}

func okCallback(_ context.Context, _ *awssession.Session, accountID, region string, _ Payload) ([]models.Record, error) {
	return []models.Record{{"cell": accountID + "/" + region}}, nil
}

// ── coverage ─────────────────────────────────────────────────────────────────

func TestIterate_EveryCellPresent(t *testing.T) {
	accounts := []string{"111111111111", "222222222222", "333333333333"}
	regions := []string{"us-east-1", "eu-west-1", "ap-south-1", "sa-east-1"}
	scope := models.NewScope(accounts, regions)

	got, err := newTestEngine(&fakeBroker{}, 3).Iterate(context.Background(), scope, okCallback, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !models.NewStringSet(got.Accounts()...).Equal(scope.Accounts) {
		t.Errorf("mapping accounts = %v; want %v", got.Accounts(), scope.Accounts.Sorted())
	}
	for _, a := range accounts {
		if !models.NewStringSet(got.Regions(a)...).Equal(scope.Regions) {
			t.Errorf("mapping regions for %s = %v; want %v", a, got.Regions(a), scope.Regions.Sorted())
		}
	}
	if got.Len() != scope.Size() {
		t.Errorf("Len = %d; want %d", got.Len(), scope.Size())
	}
}

// ── the A/B × r1/r2 scenario ─────────────────────────────────────────────────

func TestIterate_MixedOutcomes(t *testing.T) {
	scope := models.NewScope([]string{"A", "B"}, []string{"r1", "r2"})
	cb := func(_ context.Context, _ *awssession.Session, acct, region string, _ Payload) ([]models.Record, error) {
		switch acct + "/" + region {
		case "A/r1":
			return []models.Record{{"ResourceId": "i-1"}}, nil
		case "A/r2":
			return nil, errors.New("ListCoverage: throttled")
		default:
			return nil, nil
		}
	}

	got, err := newTestEngine(&fakeBroker{}, 2).Iterate(context.Background(), scope, cb, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ar1, _ := got.Get("A", "r1")
	if ar1.Failed() || len(ar1.Records) != 1 || ar1.Records[0]["ResourceId"] != "i-1" {
		t.Errorf("A/r1 = %+v; want one record", ar1)
	}

	ar2, _ := got.Get("A", "r2")
	if !ar2.Failed() || ar2.Error.Kind != models.CellErrorCallback {
		t.Errorf("A/r2 = %+v; want a callback error", ar2)
	}

	for _, r := range []string{"r1", "r2"} {
		res, ok := got.Get("B", r)
		if !ok {
			t.Fatalf("B/%s missing", r)
		}
		if res.Failed() || res.Records == nil || len(res.Records) != 0 {
			t.Errorf("B/%s = %+v; want empty, non-nil records", r, res)
		}
	}
}

// ── fault isolation ──────────────────────────────────────────────────────────

func TestIterate_AssumeRoleFailureIsolated(t *testing.T) {
	scope := models.NewScope([]string{"good", "bad"}, []string{"r1", "r2"})
	broker := &fakeBroker{deny: map[string]bool{"bad": true}}

	var invoked atomic.Int64
	cb := func(ctx context.Context, s *awssession.Session, a, r string, p Payload) ([]models.Record, error) {
		invoked.Add(1)
		return okCallback(ctx, s, a, r, p)
	}

	got, err := newTestEngine(broker, 4).Iterate(context.Background(), scope, cb, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, r := range []string{"r1", "r2"} {
		bad, _ := got.Get("bad", r)
		if !bad.Failed() || bad.Error.Kind != models.CellErrorAssumeRole {
			t.Errorf("bad/%s = %+v; want assume_role error", r, bad)
		}
		good, _ := got.Get("good", r)
		if good.Failed() || len(good.Records) != 1 {
			t.Errorf("good/%s = %+v; want success", r, good)
		}
	}
	if invoked.Load() != 2 {
		t.Errorf("callback invoked %d times; want 2 (never for failed sessions)", invoked.Load())
	}
}

func TestIterate_PanicIsCallbackError(t *testing.T) {
	scope := models.NewScope([]string{"A"}, []string{"r1", "r2"})
	cb := func(_ context.Context, _ *awssession.Session, _, region string, _ Payload) ([]models.Record, error) {
		if region == "r1" {
			panic("nil map")
		}
		return nil, nil
	}

	got, err := newTestEngine(&fakeBroker{}, 2).Iterate(context.Background(), scope, cb, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r1, _ := got.Get("A", "r1")
	if !r1.Failed() || r1.Error.Kind != models.CellErrorCallback {
		t.Errorf("A/r1 = %+v; want callback error from panic", r1)
	}
	if r2, _ := got.Get("A", "r2"); r2.Failed() {
		t.Errorf("A/r2 = %+v; want success", r2)
	}
}

// ── concurrency bound ────────────────────────────────────────────────────────

func TestIterate_ConcurrencyBound(t *testing.T) {
	const limit = 3
	accounts := make([]string, 8)
	for i := range accounts {
		accounts[i] = fmt.Sprintf("acct-%d", i)
	}
	scope := models.NewScope(accounts, []string{"r1", "r2", "r3"})

	var inFlight, peak atomic.Int64
	cb := func(_ context.Context, _ *awssession.Session, _, _ string, _ Payload) ([]models.Record, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return nil, nil
	}

	var progressCalls atomic.Int64
	eng := NewDefaultEngine(&fakeBroker{}, Options{
		Concurrency: limit,
		Logger:      quietLogger(),
		Progress:    func(_, _ int) { progressCalls.Add(1) },
	})
	if _, err := eng.Iterate(context.Background(), scope, cb, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if peak.Load() > limit {
		t.Errorf("peak in-flight = %d; want <= %d", peak.Load(), limit)
	}
	if progressCalls.Load() != int64(scope.Size()) {
		t.Errorf("progress calls = %d; want %d", progressCalls.Load(), scope.Size())
	}
}

// ── empty scope ──────────────────────────────────────────────────────────────

func TestIterate_EmptyScope(t *testing.T) {
	broker := &fakeBroker{}
	eng := newTestEngine(broker, 1)

	cases := []models.Scope{
		models.NewScope(nil, []string{"us-east-1"}),
		models.NewScope([]string{"A"}, nil),
	}
	for _, scope := range cases {
		_, err := eng.Iterate(context.Background(), scope, okCallback, nil)
		if !errors.Is(err, ErrEmptyScope) {
			t.Errorf("error = %v; want ErrEmptyScope", err)
		}
	}
	if broker.calls.Load() != 0 {
		t.Errorf("broker calls = %d; want 0 for an empty scope", broker.calls.Load())
	}
}

// ── deadlines and cancellation ───────────────────────────────────────────────

func TestIterate_TaskTimeout(t *testing.T) {
	scope := models.NewScope([]string{"A"}, []string{"slow", "fast"})
	cb := func(ctx context.Context, _ *awssession.Session, _, region string, _ Payload) ([]models.Record, error) {
		if region == "slow" {
			time.Sleep(time.Second) // ignores ctx on purpose
		}
		return nil, nil
	}

	eng := NewDefaultEngine(&fakeBroker{}, Options{
		Concurrency: 2,
		TaskTimeout: 20 * time.Millisecond,
		Logger:      quietLogger(),
	})
	got, err := eng.Iterate(context.Background(), scope, cb, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	slow, _ := got.Get("A", "slow")
	if !slow.Failed() || slow.Error.Kind != models.CellErrorTimeout {
		t.Errorf("A/slow = %+v; want timeout", slow)
	}
	if fast, _ := got.Get("A", "fast"); fast.Failed() {
		t.Errorf("A/fast = %+v; want success", fast)
	}
}

func TestIterate_TimedOutCallbacksKeepTheirSlot(t *testing.T) {
	const limit = 2
	accounts := make([]string, 10)
	for i := range accounts {
		accounts[i] = fmt.Sprintf("acct-%d", i)
	}
	scope := models.NewScope(accounts, []string{"r1"})

	var inFlight, peak atomic.Int64
	cb := func(_ context.Context, _ *awssession.Session, _, _ string, _ Payload) ([]models.Record, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond) // outlives the task deadline, ignores ctx
		inFlight.Add(-1)
		return nil, nil
	}

	eng := NewDefaultEngine(&fakeBroker{}, Options{
		Concurrency: limit,
		TaskTimeout: 5 * time.Millisecond,
		Logger:      quietLogger(),
	})
	got, err := eng.Iterate(context.Background(), scope, cb, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if peak.Load() > limit {
		t.Errorf("peak concurrent callbacks = %d; want <= %d", peak.Load(), limit)
	}
	if got.Len() != scope.Size() {
		t.Errorf("cells = %d; want %d", got.Len(), scope.Size())
	}
	for _, acct := range accounts {
		if res, _ := got.Get(acct, "r1"); !res.Failed() || res.Error.Kind != models.CellErrorTimeout {
			t.Errorf("%s/r1 = %+v; want timeout", acct, res)
		}
	}
}

func TestIterate_CancelledRunStillCoversScope(t *testing.T) {
	accounts := []string{"A", "B", "C", "D", "E"}
	scope := models.NewScope(accounts, []string{"r1", "r2"})

	ctx, cancel := context.WithCancel(context.Background())
	var once sync.Once
	cb := func(cctx context.Context, _ *awssession.Session, _, _ string, _ Payload) ([]models.Record, error) {
		once.Do(cancel)
		<-cctx.Done()
		return nil, cctx.Err()
	}

	got, err := newTestEngine(&fakeBroker{}, 1).Iterate(ctx, scope, cb, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Covers(scope) {
		t.Fatalf("mapping covers %d of %d cells", got.Len(), scope.Size())
	}
	for _, res := range got.All() {
		if !res.Failed() || res.Error.Kind != models.CellErrorCancelled {
			t.Errorf("%s/%s = %+v; want cancelled", res.AccountID, res.Region, res.Error)
		}
	}
}

// ── payload isolation ────────────────────────────────────────────────────────

func TestIterate_EachTaskGetsOwnPayload(t *testing.T) {
	scope := models.NewScope([]string{"A", "B"}, []string{"r1", "r2"})
	payload := Payload{"tags": map[string]any{"env": "prod"}, "days": 30}

	var mu sync.Mutex
	seen := make(map[string]any)
	cb := func(_ context.Context, _ *awssession.Session, acct, region string, p Payload) ([]models.Record, error) {
		tags := p["tags"].(map[string]any)
		mu.Lock()
		seen[acct+"/"+region] = tags["owner"]
		mu.Unlock()
		tags["owner"] = acct + "/" + region
		p["days"] = 1
		return nil, nil
	}

	if _, err := newTestEngine(&fakeBroker{}, 4).Iterate(context.Background(), scope, cb, payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for cell, owner := range seen {
		if owner != nil {
			t.Errorf("%s saw owner %v written by another task", cell, owner)
		}
	}
	if _, ok := payload["tags"].(map[string]any)["owner"]; ok {
		t.Error("caller's payload was mutated")
	}
	if payload["days"] != 30 {
		t.Errorf("payload days = %v; want 30", payload["days"])
	}
}
