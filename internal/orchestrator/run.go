package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Run is one query-to-answer execution. It owns the run's cancellation
// context and the only copy of its published state.
type Run struct {
	id     string
	query  string
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	now    func() time.Time
	logger *DebugLogger

	mu        sync.Mutex
	observer  Observer
	outbox    []Update
	draining  chan struct{}
	sealed    bool
	state     RunState
	analysis  *AnalysisResult
	tasks     []TaskResult
	taskIndex map[string]int
	result    RunResult
	startedAt time.Time
	endedAt   time.Time
	outcome   *Outcome
	err       error
}

func newRun(parent context.Context, id, query string, observer Observer, now func() time.Time, logger *DebugLogger) *Run {
	ctx, cancel := context.WithCancel(parent)
	return &Run{
		id:        id,
		query:     query,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		now:       now,
		logger:    logger,
		observer:  observer,
		state:     StateIdle,
		taskIndex: make(map[string]int),
	}
}

// ID returns the run id.
func (r *Run) ID() string {
	return r.id
}

// Done is closed when the run's pipeline has returned.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Cancel signals the run's context. Prefer Engine.Stop, which also moves
// the engine to idle.
func (r *Run) Cancel() {
	r.cancel()
}

// Wait blocks until the run finishes or ctx is done. It returns
// ErrStopped if the run was cancelled.
func (r *Run) Wait(ctx context.Context) (*Outcome, error) {
	select {
	case <-r.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcome, r.err
}

// State returns the run's current state.
func (r *Run) State() RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Snapshot returns a copy of the run's state.
func (r *Run) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Snapshot{
		RunID:     r.id,
		State:     r.state,
		Tasks:     append([]TaskResult(nil), r.tasks...),
		Result:    r.result,
		StartedAt: r.startedAt,
		EndedAt:   r.endedAt,
		Err:       r.err,
	}
	if r.analysis != nil {
		a := r.analysis.clone()
		s.Analysis = &a
	}
	return s
}

// emit queues u for the observer. Callers hold r.mu and call flush once
// they release it.
func (r *Run) emit(u Update) {
	if r.observer == nil || r.sealed {
		return
	}
	u.RunID = r.id
	u.State = r.state
	u.At = r.now()
	r.outbox = append(r.outbox, u)
}

// flush delivers queued updates in order, outside r.mu. One goroutine
// drains at a time. The others return at once, or with wait set block
// until the active drain has finished.
func (r *Run) flush(wait bool) {
	r.mu.Lock()
	if ch := r.draining; ch != nil {
		r.mu.Unlock()
		if wait {
			<-ch
		}
		return
	}
	ch := make(chan struct{})
	r.draining = ch
	for len(r.outbox) > 0 {
		batch := r.outbox
		r.outbox = nil
		r.mu.Unlock()
		for _, u := range batch {
			r.observer(u)
		}
		r.mu.Lock()
	}
	r.draining = nil
	r.mu.Unlock()
	close(ch)
}

// transition moves the run forward. It returns false if the run is
// sealed or the move is not a legal forward step.
func (r *Run) transition(to RunState) bool {
	defer r.flush(false)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transitionLocked(to)
}

func (r *Run) transitionLocked(to RunState) bool {
	if r.sealed || !r.state.next(to) {
		return false
	}
	r.logger.Log("run %s: %s -> %s", r.id, r.state, to)
	r.state = to
	if to == StateAnalyzing {
		r.startedAt = r.now()
	}
	r.emit(Update{Kind: UpdateState})
	return true
}

// begin enters analyzing with the primary task pending.
func (r *Run) begin(primary TaskSpec) bool {
	defer r.flush(false)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = []TaskResult{{TaskSpec: primary, Status: TaskPending}}
	r.taskIndex[primary.ID] = 0
	return r.transitionLocked(StateAnalyzing)
}

// plan records the manager's result, appends pending specialists and
// enters experts_working.
func (r *Run) plan(a AnalysisResult, specs []TaskSpec) bool {
	defer r.flush(false)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed || r.ctx.Err() != nil {
		return false
	}
	stored := a.clone()
	r.analysis = &stored
	for _, s := range specs {
		r.taskIndex[s.ID] = len(r.tasks)
		r.tasks = append(r.tasks, TaskResult{TaskSpec: s, Status: TaskPending})
	}
	published := a.clone()
	r.emit(Update{Kind: UpdateAnalysis, Analysis: &published, Tasks: append([]TaskResult(nil), r.tasks...)})
	return r.transitionLocked(StateExpertsWorking)
}

// publishTask stores and publishes a task snapshot. Snapshots for a task
// that is already terminal are ignored.
func (r *Run) publishTask(t TaskResult) {
	defer r.flush(false)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return
	}
	idx, ok := r.taskIndex[t.ID]
	if !ok || r.tasks[idx].Status.Terminal() {
		return
	}
	r.tasks[idx] = t
	r.emit(Update{Kind: UpdateTask, Task: &t})
}

// publishResult stores and publishes a synthesis snapshot.
func (r *Run) publishResult(res RunResult) {
	defer r.flush(false)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed || r.state != StateSynthesizing {
		return
	}
	r.result = res
	r.emit(Update{Kind: UpdateSynthesis, Result: &res})
}

// complete records the final answer, enters completed and seals the run.
func (r *Run) complete(res RunResult, tasks []TaskResult, a AnalysisResult) bool {
	defer r.flush(false)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed || r.state != StateSynthesizing {
		return false
	}
	r.result = res
	r.endedAt = r.now()
	r.outcome = &Outcome{
		RunID:             r.id,
		Query:             r.query,
		FinalText:         res.FinalText,
		Analysis:          a.clone(),
		Tasks:             append([]TaskResult(nil), tasks...),
		SynthesisThoughts: res.FinalThoughts,
		StartedAt:         r.startedAt,
		TotalDuration:     r.endedAt.Sub(r.startedAt),
	}
	r.logger.Log("run %s: %s -> %s", r.id, r.state, StateCompleted)
	r.state = StateCompleted
	final := res
	r.emit(Update{Kind: UpdateState, Result: &final})
	r.sealed = true
	return true
}

// halt moves the run to idle, records the end time, publishes one final
// state update and seals the run so nothing else is observed. err is
// ErrStopped for a cancellation. A sealed run publishes nothing; a
// completed one only drops back to idle. halt returns once every queued
// update has been delivered.
func (r *Run) halt(err error) {
	r.cancel()
	defer r.flush(true)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		if r.state == StateCompleted {
			r.state = StateIdle
		}
		return
	}
	if r.err == nil {
		r.err = err
	}
	r.logger.Log("run %s: %s -> %s (%v)", r.id, r.state, StateIdle, err)
	r.state = StateIdle
	r.endedAt = r.now()
	u := Update{Kind: UpdateState}
	if err != nil && !errors.Is(err, ErrStopped) {
		u.Err = err
	}
	r.emit(u)
	r.sealed = true
}

// abandon cancels and seals the run without publishing anything. Used
// when a newer run replaces this one. Updates still queued are dropped
// and a delivery in progress is waited for.
func (r *Run) abandon() {
	r.cancel()
	defer r.flush(true)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outbox = nil
	if r.sealed {
		return
	}
	if r.err == nil {
		r.err = ErrStopped
	}
	r.state = StateIdle
	r.endedAt = r.now()
	r.sealed = true
}

// finish records the pipeline's return. Runs that were already sealed
// by Stop, Reset or a newer Start keep the error recorded then.
func (r *Run) finish(err error) {
	if err != nil {
		r.halt(err)
	}
	r.mu.Lock()
	if r.err == nil && r.outcome == nil {
		r.err = ErrStopped
	}
	r.mu.Unlock()
	r.cancel()
	r.flush(true)
	close(r.done)
}
