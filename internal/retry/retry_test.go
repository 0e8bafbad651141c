package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ShayCichocki/deepthink/internal/llm"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), fastPolicy(3), "test", func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if v != "ok" || calls != 1 {
		t.Errorf("v = %q calls = %d", v, calls)
	}
}

func TestDo_RetriesTransient(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), fastPolicy(3), "test", func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, &llm.StatusError{Provider: "test", Code: 503}
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if v != 42 || calls != 3 {
		t.Errorf("v = %d calls = %d", v, calls)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(3), "test", func(ctx context.Context) (int, error) {
		calls++
		return 0, &llm.StatusError{Provider: "test", Code: 429}
	})
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	var re *Error
	if !errors.As(err, &re) {
		t.Fatalf("err = %T, want *Error", err)
	}
	if re.Kind != Network || re.Attempts != 3 {
		t.Errorf("Kind = %s Attempts = %d", re.Kind, re.Attempts)
	}
	var se *llm.StatusError
	if !errors.As(err, &se) || se.Code != 429 {
		t.Errorf("underlying error lost: %v", err)
	}
}

func TestDo_ApplicationErrorNotRetried(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(5), "test", func(ctx context.Context) (int, error) {
		calls++
		return 0, &llm.StatusError{Provider: "test", Code: 400, Message: "bad request"}
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if KindOf(err) != Application {
		t.Errorf("KindOf = %s, want application", KindOf(err))
	}
}

func TestDo_NoAttemptAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Do(ctx, fastPolicy(3), "test", func(ctx context.Context) (int, error) {
		calls++
		return 1, nil
	})
	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if KindOf(err) != Canceled {
		t.Errorf("KindOf = %s, want canceled", KindOf(err))
	}
}

func TestDo_CancelBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 5, InitialDelay: 50 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}

	calls := 0
	_, err := Do(ctx, p, "test", func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, &llm.StatusError{Provider: "test", Code: 503}
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if KindOf(err) != Canceled {
		t.Errorf("KindOf = %s, want canceled", KindOf(err))
	}
}

func TestPolicyDefaults(t *testing.T) {
	p := Policy{}.withDefaults()
	if p != DefaultPolicy() {
		t.Errorf("withDefaults = %+v, want %+v", p, DefaultPolicy())
	}
}

func TestKindString(t *testing.T) {
	tests := map[Kind]string{
		Network:     "network",
		Application: "application",
		Canceled:    "canceled",
		Kind(99):    "unknown",
	}
	for k, want := range tests {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
