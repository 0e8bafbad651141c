package orchestrator

import (
	"time"
)

// UpdateKind identifies which part of a run an Update describes.
type UpdateKind string

const (
	// UpdateState indicates a run state transition.
	UpdateState UpdateKind = "state"
	// UpdateAnalysis indicates the manager's plan is available.
	UpdateAnalysis UpdateKind = "analysis"
	// UpdateTask carries a new snapshot of one task.
	UpdateTask UpdateKind = "task"
	// UpdateSynthesis carries a new snapshot of the synthesized answer.
	UpdateSynthesis UpdateKind = "synthesis"
)

// Update is delivered to observers after every change to a run. Each
// Update holds full copies, never deltas, so an observer can keep the
// latest one it saw and discard the rest.
type Update struct {
	Kind  UpdateKind
	RunID string
	// State is the run state at the time of the update.
	State RunState
	// Task is set for UpdateTask.
	Task *TaskResult
	// Analysis is set for UpdateAnalysis.
	Analysis *AnalysisResult
	// Tasks is set for UpdateAnalysis and holds the full task list,
	// specialists in pending state.
	Tasks []TaskResult
	// Result is set for UpdateSynthesis and for the completed state.
	Result *RunResult
	// Err is set when the run failed.
	Err error
	At  time.Time
}

// Observer receives updates. Calls for one run are made one at a time, in
// order, without holding the run's lock. A slow Observer delays Stop, which
// returns only after queued updates are delivered. It must not call back
// into the Engine.
type Observer func(Update)
