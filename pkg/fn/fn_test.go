package fn

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestResult(t *testing.T) {
	ok := Ok(42)
	if !ok.IsOk() || ok.IsErr() {
		t.Error("Ok result misreports state")
	}
	if v, err := ok.Unwrap(); v != 42 || err != nil {
		t.Errorf("unwrap: %v, %v", v, err)
	}

	boom := errors.New("boom")
	bad := Err[int](boom)
	if bad.IsOk() || !bad.IsErr() {
		t.Error("Err result misreports state")
	}
	if _, err := bad.Unwrap(); !errors.Is(err, boom) {
		t.Errorf("unwrap err: %v", err)
	}
	if got := bad.UnwrapOr(7); got != 7 {
		t.Errorf("UnwrapOr: %d, want 7", got)
	}

	if r := FromPair(1, error(nil)); r.IsErr() {
		t.Error("FromPair with nil error must be ok")
	}
	if r := FromPair(0, boom); r.IsOk() {
		t.Error("FromPair with error must be err")
	}
}

func TestThen_ShortCircuits(t *testing.T) {
	boom := errors.New("boom")
	first := func(_ context.Context, s string) Result[int] {
		return Err[int](boom)
	}
	secondCalled := false
	second := func(_ context.Context, n int) Result[string] {
		secondCalled = true
		return Ok("done")
	}

	r := Then(first, second)(context.Background(), "in")
	if r.IsOk() {
		t.Fatal("composed stage should fail")
	}
	if secondCalled {
		t.Error("second stage ran after first failed")
	}
}

func TestThen_PassesValue(t *testing.T) {
	double := func(_ context.Context, n int) Result[int] { return Ok(n * 2) }
	toStr := func(_ context.Context, n int) Result[string] {
		if n == 10 {
			return Ok("ten")
		}
		return Errf[string]("unexpected %d", n)
	}

	r := Then(double, toStr)(context.Background(), 5)
	v, err := r.Unwrap()
	if err != nil || v != "ten" {
		t.Errorf("got (%q, %v)", v, err)
	}
}

func TestTapStage(t *testing.T) {
	seen := 0
	tap := TapStage(func(_ context.Context, n int) { seen = n })
	r := tap(context.Background(), 9)
	if v, _ := r.Unwrap(); v != 9 || seen != 9 {
		t.Errorf("tap: value %d, seen %d", v, seen)
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	attempts := 0
	opts := RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: time.Millisecond}
	r := Retry(context.Background(), opts, func(context.Context) Result[int] {
		attempts++
		if attempts < 3 {
			return Errf[int]("attempt %d failed", attempts)
		}
		return Ok(attempts)
	})
	if v, err := r.Unwrap(); err != nil || v != 3 {
		t.Errorf("got (%d, %v)", v, err)
	}
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	attempts := 0
	opts := RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: time.Millisecond}
	r := Retry(context.Background(), opts, func(context.Context) Result[int] {
		attempts++
		return Errf[int]("always fails")
	})
	if r.IsOk() {
		t.Fatal("expected failure after exhausting attempts")
	}
	if attempts != 3 {
		t.Errorf("made %d attempts, want 3", attempts)
	}
}

func TestRetry_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := RetryOpts{MaxAttempts: 5, InitialWait: time.Hour, MaxWait: time.Hour}
	r := Retry(ctx, opts, func(context.Context) Result[int] {
		return Errf[int]("fail")
	})
	_, err := r.Unwrap()
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTracedStage_PassesThrough(t *testing.T) {
	stage := TracedStage("test.double", func(_ context.Context, n int) Result[int] {
		return Ok(n * 2)
	})
	if v, err := stage(context.Background(), 4).Unwrap(); err != nil || v != 8 {
		t.Errorf("got (%d, %v)", v, err)
	}

	failing := TracedStage("test.fail", func(_ context.Context, n int) Result[int] {
		return Errf[int]("no")
	})
	if failing(context.Background(), 1).IsOk() {
		t.Error("traced stage must preserve failure")
	}
}
