package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"

	"github.com/ShayCichocki/deepthink/internal/orchestrator"
)

// Forward relays engine updates to send until events is closed or ctx is
// done. State and analysis updates go out immediately. Task and synthesis
// snapshots are coalesced per task and released at most once per refresh
// interval; since each carries a full copy, only the latest matters.
func Forward(ctx context.Context, events <-chan orchestrator.Update, send func(tea.Msg), refresh time.Duration) {
	if refresh <= 0 {
		refresh = 100 * time.Millisecond
	}
	limiter := rate.NewLimiter(rate.Every(refresh), 1)
	ticker := time.NewTicker(refresh)
	defer ticker.Stop()

	pending := make(map[string]orchestrator.Update)
	var order []string

	flush := func() {
		for _, key := range order {
			send(RunUpdateMsg{Update: pending[key]})
		}
		clear(pending)
		order = order[:0]
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			flush()
		case u, ok := <-events:
			if !ok {
				flush()
				return
			}
			switch u.Kind {
			case orchestrator.UpdateTask, orchestrator.UpdateSynthesis:
				key := string(u.Kind)
				if u.Task != nil {
					key = u.Task.ID
				}
				if _, seen := pending[key]; !seen {
					order = append(order, key)
				}
				pending[key] = u
				if limiter.Allow() {
					flush()
				}
			default:
				flush()
				send(RunUpdateMsg{Update: u})
			}
		}
	}
}
