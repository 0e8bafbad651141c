package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/ShayCichocki/deepthink/internal/llm"
)

func fixedClock() func() time.Time {
	t0 := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return t0.Add(time.Duration(n) * time.Second)
	}
}

func TestTaskRunner_CancelledBeforeStart(t *testing.T) {
	client := newFakeClient("")
	runner := NewTaskRunner(client, testPolicy(), NopLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	published := 0
	res := runner.Run(ctx, "m", PrimarySpec("q"), "", 0, func(TaskResult) { published++ })
	if res.Status != TaskPending {
		t.Errorf("status = %s, want pending", res.Status)
	}
	if !res.StartedAt.IsZero() {
		t.Error("StartedAt recorded for a task that never ran")
	}
	if published != 0 {
		t.Errorf("published %d snapshot(s), want 0", published)
	}
	if client.callCount("Primary Responder") != 0 {
		t.Error("client contacted after cancellation")
	}
}

func TestTaskRunner_Lifecycle(t *testing.T) {
	client := newFakeClient("").script("Primary Responder", &streamScript{
		chunks: []llm.Chunk{{Thought: "hmm"}, {Text: "Hello"}, {}, {Text: " world"}},
	})
	runner := NewTaskRunner(client, testPolicy(), NopLogger(), fixedClock())

	var snaps []TaskResult
	res := runner.Run(context.Background(), "m", PrimarySpec("q"), "", 0, func(r TaskResult) { snaps = append(snaps, r) })

	if res.Status != TaskCompleted || res.Content != "Hello world" || res.Thoughts != "hmm" {
		t.Errorf("result = %+v", res)
	}
	// running, 3 non-empty chunks, completed
	if len(snaps) != 5 {
		t.Fatalf("published %d snapshots, want 5", len(snaps))
	}
	if snaps[0].Status != TaskRunning || snaps[0].Content != "" {
		t.Errorf("first snapshot = %+v", snaps[0])
	}
	if snaps[4].Status != TaskCompleted {
		t.Errorf("last snapshot status = %s", snaps[4].Status)
	}
	if res.Duration() <= 0 {
		t.Errorf("Duration = %s", res.Duration())
	}
	// earlier snapshots are unaffected by later appends
	if snaps[2].Content != "Hello" {
		t.Errorf("snapshot mutated: %q", snaps[2].Content)
	}
}

func TestTaskRunner_RetriesOpen(t *testing.T) {
	client := newFakeClient("").script("Primary Responder", &streamScript{
		openErrs: []error{&llm.StatusError{Code: 503}, &llm.StatusError{Code: 429}},
		chunks:   []llm.Chunk{{Text: "ok"}},
	})
	runner := NewTaskRunner(client, testPolicy(), NopLogger(), nil)

	res := runner.Run(context.Background(), "m", PrimarySpec("q"), "", 0, func(TaskResult) {})
	if res.Status != TaskCompleted || res.Content != "ok" {
		t.Errorf("result = %+v", res)
	}
	if n := client.callCount("Primary Responder"); n != 3 {
		t.Errorf("Stream called %d times, want 3", n)
	}
}

func TestTaskRunner_OpenExhausted(t *testing.T) {
	client := newFakeClient("").script("Primary Responder", &streamScript{
		openErrs: []error{&llm.StatusError{Code: 503}, &llm.StatusError{Code: 503}, &llm.StatusError{Code: 503}},
	})
	runner := NewTaskRunner(client, testPolicy(), NopLogger(), nil)

	res := runner.Run(context.Background(), "m", PrimarySpec("q"), "", 0, func(TaskResult) {})
	if res.Status != TaskError {
		t.Errorf("status = %s, want error", res.Status)
	}
	if res.Content != ErrorPlaceholder {
		t.Errorf("content = %q, want placeholder", res.Content)
	}
	if res.EndedAt.IsZero() {
		t.Error("EndedAt not recorded")
	}
}

func TestTaskRunner_CancelMidStream(t *testing.T) {
	client := newFakeClient("").script("Primary Responder", &streamScript{
		chunks: []llm.Chunk{{Text: "part"}},
		block:  true,
	})
	runner := NewTaskRunner(client, testPolicy(), NopLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan TaskResult)
	go func() {
		done <- runner.Run(ctx, "m", PrimarySpec("q"), "", 0, func(TaskResult) {})
	}()
	client.waitOpened("Primary Responder", 2*time.Second)
	cancel()

	select {
	case res := <-done:
		if res.Status != TaskRunning {
			t.Errorf("status = %s, want running (cancellation is not a failure)", res.Status)
		}
		if res.Content != "part" {
			t.Errorf("content = %q", res.Content)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not return after cancellation")
	}
}
