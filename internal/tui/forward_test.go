package tui

import (
	"context"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ShayCichocki/deepthink/internal/orchestrator"
)

type collector struct {
	mu   sync.Mutex
	msgs []RunUpdateMsg
}

func (c *collector) send(msg tea.Msg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg.(RunUpdateMsg))
}

func TestForward_CoalescesSnapshots(t *testing.T) {
	events := make(chan orchestrator.Update, 64)
	events <- orchestrator.Update{Kind: orchestrator.UpdateState, State: orchestrator.StateAnalyzing}
	for _, content := range []string{"a", "ab", "abc", "abcd"} {
		events <- orchestrator.Update{Kind: orchestrator.UpdateTask, Task: task("expert-0", "Primary Responder", orchestrator.TaskRunning, content)}
	}
	events <- orchestrator.Update{Kind: orchestrator.UpdateState, State: orchestrator.StateCompleted}
	close(events)

	var c collector
	Forward(context.Background(), events, c.send, time.Hour)

	if len(c.msgs) == 0 {
		t.Fatal("nothing forwarded")
	}
	first, last := c.msgs[0].Update, c.msgs[len(c.msgs)-1].Update
	if first.State != orchestrator.StateAnalyzing || last.State != orchestrator.StateCompleted {
		t.Errorf("first=%s last=%s", first.State, last.State)
	}

	// the latest snapshot always arrives before the next state change
	var taskMsgs []string
	for _, m := range c.msgs {
		if m.Update.Kind == orchestrator.UpdateTask {
			taskMsgs = append(taskMsgs, m.Update.Task.Content)
		}
	}
	if len(taskMsgs) == 0 || taskMsgs[len(taskMsgs)-1] != "abcd" {
		t.Errorf("task snapshots = %v, want last abcd", taskMsgs)
	}
	if len(taskMsgs) >= 4 {
		t.Errorf("expected coalescing, got %d task snapshots", len(taskMsgs))
	}
}

func TestForward_StopsOnContext(t *testing.T) {
	events := make(chan orchestrator.Update)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		Forward(ctx, events, func(tea.Msg) {}, 10*time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Forward did not return after cancel")
	}
}
