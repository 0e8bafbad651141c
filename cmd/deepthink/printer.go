package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/ShayCichocki/deepthink/internal/orchestrator"
)

// streamPrinter renders engine updates as plain terminal output: a line
// per phase and per task status change, then the synthesized answer as it
// streams.
type streamPrinter struct {
	mu       sync.Mutex
	out      io.Writer
	statuses map[string]orchestrator.TaskStatus
	printed  int
	answer   bool

	phase  *color.Color
	dim    *color.Color
	ok     *color.Color
	failed *color.Color
}

func newStreamPrinter(out io.Writer) *streamPrinter {
	return &streamPrinter{
		out:      out,
		statuses: make(map[string]orchestrator.TaskStatus),
		phase:    color.New(color.FgCyan, color.Bold),
		dim:      color.New(color.FgHiBlack),
		ok:       color.New(color.FgGreen),
		failed:   color.New(color.FgRed),
	}
}

// observe is an orchestrator.Observer.
func (p *streamPrinter) observe(u orchestrator.Update) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch u.Kind {
	case orchestrator.UpdateState:
		p.state(u)
	case orchestrator.UpdateAnalysis:
		if u.Analysis != nil && u.Analysis.Rationale != "" {
			p.dim.Fprintf(p.out, "  %s\n", oneLine(u.Analysis.Rationale))
		}
		for _, t := range u.Tasks {
			p.task(t)
		}
	case orchestrator.UpdateTask:
		if u.Task != nil {
			p.task(*u.Task)
		}
	case orchestrator.UpdateSynthesis:
		if u.Result != nil {
			p.stream(u.Result.FinalText)
		}
	}
}

func (p *streamPrinter) state(u orchestrator.Update) {
	switch u.State {
	case orchestrator.StateAnalyzing:
		p.phase.Fprintln(p.out, "› Planning experts")
	case orchestrator.StateExpertsWorking:
		p.phase.Fprintln(p.out, "› Experts working")
	case orchestrator.StateSynthesizing:
		p.phase.Fprintln(p.out, "› Synthesizing")
		fmt.Fprintln(p.out)
		p.answer = true
	case orchestrator.StateCompleted:
		if u.Result != nil {
			p.stream(u.Result.FinalText)
		}
		if p.answer {
			fmt.Fprintln(p.out)
		}
	case orchestrator.StateIdle:
		if u.Err != nil {
			if p.answer {
				fmt.Fprintln(p.out)
			}
			p.failed.Fprintf(p.out, "✗ %v\n", u.Err)
		}
	}
}

func (p *streamPrinter) task(t orchestrator.TaskResult) {
	if p.statuses[t.ID] == t.Status {
		return
	}
	p.statuses[t.ID] = t.Status

	label := fmt.Sprintf("%s (temp %g)", t.Role, t.Temperature)
	switch t.Status {
	case orchestrator.TaskRunning:
		p.dim.Fprintf(p.out, "  … %s\n", label)
	case orchestrator.TaskCompleted:
		p.ok.Fprintf(p.out, "  ✓ %s", label)
		p.dim.Fprintf(p.out, " %s\n", t.Duration().Round(100*time.Millisecond))
	case orchestrator.TaskError:
		p.failed.Fprintf(p.out, "  ✗ %s\n", label)
	}
}

// stream writes the part of text not yet printed. Snapshots only grow
// during synthesis.
func (p *streamPrinter) stream(text string) {
	if len(text) <= p.printed {
		return
	}
	fmt.Fprint(p.out, text[p.printed:])
	p.printed = len(text)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
