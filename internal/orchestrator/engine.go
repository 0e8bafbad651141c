package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/deepthink/internal/llm"
)

// Engine runs one query at a time through plan, fan-out and synthesis.
// Starting a new run cancels the previous one.
type Engine struct {
	opts    engineOptions
	manager *Manager
	runner  *TaskRunner
	synth   *Synthesizer

	mu      sync.Mutex
	current *Run
}

// New creates an Engine over client.
func New(client llm.Client, opts ...Option) *Engine {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Engine{
		opts:    o,
		manager: NewManager(client, o.policy, o.maxExperts, o.logger),
		runner:  NewTaskRunner(client, o.policy, o.logger, o.now),
		synth:   NewSynthesizer(client, o.policy, o.now),
	}
}

// Start cancels any in-flight run and begins a new one in the
// background. ctx bounds the whole run; cancelling it is equivalent to
// Stop for that run.
func (e *Engine) Start(ctx context.Context, req Request) (*Run, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	req.Query = query

	e.mu.Lock()
	if prev := e.current; prev != nil {
		prev.abandon()
	}
	r := newRun(ctx, uuid.New().String()[:8], query, e.opts.observer, e.opts.now, e.opts.logger)
	e.current = r
	e.mu.Unlock()

	log.Printf("[engine] run %s: started", r.id)
	primary := PrimarySpec(query)
	r.begin(primary)
	go e.execute(r, req, primary)
	return r, nil
}

// Run starts a run and waits for it.
func (e *Engine) Run(ctx context.Context, req Request) (*Outcome, error) {
	r, err := e.Start(ctx, req)
	if err != nil {
		return nil, err
	}
	return r.Wait(context.Background())
}

// Stop cancels the current run and moves the engine to idle. After Stop
// returns no update from that run reaches the observer.
func (e *Engine) Stop() {
	e.mu.Lock()
	r := e.current
	e.mu.Unlock()
	if r != nil {
		r.halt(ErrStopped)
	}
}

// Reset forgets the current run, stopping it silently if it is still
// active.
func (e *Engine) Reset() {
	e.mu.Lock()
	r := e.current
	e.current = nil
	e.mu.Unlock()
	if r != nil {
		r.abandon()
	}
}

// State returns the current run's state, or idle.
func (e *Engine) State() RunState {
	e.mu.Lock()
	r := e.current
	e.mu.Unlock()
	if r == nil {
		return StateIdle
	}
	return r.State()
}

// Snapshot returns a copy of the current run's state. The zero Snapshot
// (state idle) is returned when there is no run.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	r := e.current
	e.mu.Unlock()
	if r == nil {
		return Snapshot{State: StateIdle}
	}
	return r.Snapshot()
}

// Current returns the current run, or nil.
func (e *Engine) Current() *Run {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

func (e *Engine) execute(r *Run, req Request, primary TaskSpec) {
	var err error
	defer func() {
		if p := recover(); p != nil {
			log.Printf("[engine] run %s: panic: %v\n%s", r.id, p, debug.Stack())
			err = fmt.Errorf("run %s panicked: %v", r.id, p)
		}
		r.finish(err)
	}()
	err = e.pipeline(r, req, primary)
	if err != nil && !errors.Is(err, ErrStopped) {
		log.Printf("[engine] run %s: failed: %v", r.id, err)
	}
}

func (e *Engine) pipeline(r *Run, req Request, primary TaskSpec) error {
	ctx := r.ctx
	history := HistoryContext(req.History, e.opts.historyWindow)
	budgets := req.Budgets

	var g errgroup.Group
	var primaryResult TaskResult
	g.Go(func() error {
		primaryResult = e.runner.Run(ctx, req.Model, primary, history, budgets.Expert, r.publishTask)
		return nil
	})

	analysis := e.manager.Analyze(ctx, req.Model, req.Query, history, budgets.Planning)
	if ctx.Err() != nil {
		g.Wait()
		return ErrStopped
	}

	specs := SpecialistSpecs(analysis)
	if !r.plan(analysis, specs) {
		g.Wait()
		return ErrStopped
	}

	specialists := make([]TaskResult, len(specs))
	for i, spec := range specs {
		g.Go(func() error {
			specialists[i] = e.runner.Run(ctx, req.Model, spec, history, budgets.Expert, r.publishTask)
			return nil
		})
	}
	g.Wait()
	if ctx.Err() != nil {
		return ErrStopped
	}

	tasks := append([]TaskResult{primaryResult}, specialists...)
	if !r.transition(StateSynthesizing) {
		return ErrStopped
	}

	res, err := e.synth.Synthesize(ctx, req.Model, req.Query, history, tasks, budgets.Synthesis, r.publishResult)
	if err != nil {
		return err
	}
	if !r.complete(res, tasks, analysis) {
		return ErrStopped
	}
	log.Printf("[engine] run %s: completed with %d task(s)", r.id, len(tasks))
	return nil
}
