package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

type recordingSleeper struct {
	delays []time.Duration
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func TestDoRecordsExponentialDelaysAndReturnsSentinel(t *testing.T) {
	rec := &recordingSleeper{}
	calls := 0
	op := func(context.Context) (string, error) {
		calls++
		return "", errors.New("provider unavailable")
	}

	result, ok := Do(context.Background(), DefaultPolicy(), op, WithSleeper(rec.sleep))
	if ok {
		t.Fatal("expected sentinel failure")
	}
	if result != "" {
		t.Fatalf("expected zero result, got %q", result)
	}
	if calls != 4 {
		t.Fatalf("expected 4 attempts, got %d", calls)
	}
	want := []time.Duration{5000 * time.Millisecond, 7500 * time.Millisecond, 11250 * time.Millisecond}
	if len(rec.delays) != len(want) {
		t.Fatalf("unexpected delays: %v", rec.delays)
	}
	for i := range want {
		if rec.delays[i] != want[i] {
			t.Fatalf("delay %d = %s, want %s", i, rec.delays[i], want[i])
		}
	}
}

func TestDoReturnsFirstSuccess(t *testing.T) {
	rec := &recordingSleeper{}
	calls := 0
	op := func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("flaky")
		}
		return 42, nil
	}

	result, ok := Do(context.Background(), DefaultPolicy(), op, WithSleeper(rec.sleep))
	if !ok || result != 42 {
		t.Fatalf("expected success 42, got %d ok=%v", result, ok)
	}
	if len(rec.delays) != 2 {
		t.Fatalf("expected 2 waits, got %v", rec.delays)
	}
}

func TestDoResetsBackoffPerCall(t *testing.T) {
	failing := func(context.Context) (struct{}, error) { return struct{}{}, errors.New("down") }
	for i := 0; i < 2; i++ {
		rec := &recordingSleeper{}
		Do(context.Background(), DefaultPolicy(), failing, WithSleeper(rec.sleep))
		if rec.delays[0] != 5*time.Second {
			t.Fatalf("call %d started at %s, want 5s", i, rec.delays[0])
		}
	}
}

func TestDoCapsDelayWhenMaxDelaySet(t *testing.T) {
	policy := Policy{MaxRetries: 4, InitialDelay: time.Second, Multiplier: 3, MaxDelay: 5 * time.Second}
	got := policy.Delays()
	want := []time.Duration{time.Second, 3 * time.Second, 5 * time.Second, 5 * time.Second}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("delay %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	rec := &recordingSleeper{}
	permanent := errors.New("unauthorized")
	calls := 0
	op := func(context.Context) (int, error) {
		calls++
		return 0, permanent
	}
	_, ok := Do(context.Background(), DefaultPolicy(), op,
		WithSleeper(rec.sleep),
		WithShouldRetry(func(err error) bool { return !errors.Is(err, permanent) }),
	)
	if ok {
		t.Fatal("expected failure")
	}
	if calls != 1 || len(rec.delays) != 0 {
		t.Fatalf("expected single attempt, got calls=%d delays=%v", calls, rec.delays)
	}
}

func TestDoAbortsWhenContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	op := func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("fail")
	}
	_, ok := Do(ctx, Policy{MaxRetries: 3, InitialDelay: time.Hour, Multiplier: 1.5}, op)
	if ok {
		t.Fatal("expected failure on cancellation")
	}
	if calls != 1 {
		t.Fatalf("expected no retry after cancellation, got %d calls", calls)
	}
}

func TestPolicyNormalizesInvalidValues(t *testing.T) {
	p := Policy{MaxRetries: -1, InitialDelay: -time.Second, Multiplier: 0.2}.normalized()
	if p.MaxRetries != 0 || p.InitialDelay != 0 || p.Multiplier != 1 {
		t.Fatalf("unexpected normalized policy: %+v", p)
	}
}
