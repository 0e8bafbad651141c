package orchestrator

import (
	"errors"
	"time"
)

// RunState is the engine-level phase of a run.
type RunState string

const (
	StateIdle           RunState = "idle"
	StateAnalyzing      RunState = "analyzing"
	StateExpertsWorking RunState = "experts_working"
	StateSynthesizing   RunState = "synthesizing"
	StateCompleted      RunState = "completed"
)

// next reports whether to is the forward successor of s. Any state may
// move to idle.
func (s RunState) next(to RunState) bool {
	if to == StateIdle {
		return true
	}
	switch s {
	case StateIdle:
		return to == StateAnalyzing
	case StateAnalyzing:
		return to == StateExpertsWorking
	case StateExpertsWorking:
		return to == StateSynthesizing
	case StateSynthesizing:
		return to == StateCompleted
	}
	return false
}

// TaskStatus is the lifecycle status of one task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskError     TaskStatus = "error"
)

// Terminal reports whether no further transitions are allowed.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskError
}

// ErrorPlaceholder is appended to the content of a task that failed.
const ErrorPlaceholder = "Failed to generate response."

// PrimaryTaskID is the id of the task that answers the query directly.
const PrimaryTaskID = "expert-0"

var (
	// ErrEmptyQuery is returned by Start for a blank query.
	ErrEmptyQuery = errors.New("query is empty")
	// ErrStopped is returned by Run.Wait when the run was cancelled.
	// It is not a failure.
	ErrStopped = errors.New("run stopped")
)

// ExpertSpec is a specialist proposed by the manager.
type ExpertSpec struct {
	Role        string  `json:"role" yaml:"role"`
	Description string  `json:"description" yaml:"description"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	Prompt      string  `json:"prompt" yaml:"prompt"`
}

// TaskSpec is an ExpertSpec with its run-local id.
type TaskSpec struct {
	ID         string `json:"id" yaml:"id"`
	ExpertSpec `yaml:",inline"`
}

// TaskResult is a snapshot of one task. Values are never shared between
// writer and observers; each published TaskResult is an independent copy.
type TaskResult struct {
	TaskSpec  `yaml:",inline"`
	Status    TaskStatus `json:"status" yaml:"status"`
	Content   string     `json:"content" yaml:"content"`
	Thoughts  string     `json:"thoughts,omitempty" yaml:"thoughts,omitempty"`
	StartedAt time.Time  `json:"started_at,omitzero" yaml:"started_at,omitempty"`
	EndedAt   time.Time  `json:"ended_at,omitzero" yaml:"ended_at,omitempty"`
}

// Duration is the task's wall time, or zero if it has not ended.
func (r TaskResult) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.EndedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// AnalysisResult is the manager's plan.
type AnalysisResult struct {
	Rationale string       `json:"thought_process" yaml:"thought_process"`
	Specs     []ExpertSpec `json:"experts" yaml:"experts"`
}

func (a AnalysisResult) clone() AnalysisResult {
	a.Specs = append([]ExpertSpec(nil), a.Specs...)
	return a
}

// FallbackAnalysis is used whenever planning fails.
func FallbackAnalysis() AnalysisResult {
	return AnalysisResult{Rationale: "Direct processing."}
}

// RunResult is the synthesized answer.
type RunResult struct {
	FinalText     string    `json:"final_text"`
	FinalThoughts string    `json:"final_thoughts,omitempty"`
	StartedAt     time.Time `json:"started_at,omitzero"`
	EndedAt       time.Time `json:"ended_at,omitzero"`
}

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one conversation turn supplied as history.
type Message struct {
	Role    Role
	Content string
}

// Budgets are per-stage thinking budgets, already resolved to integers.
type Budgets struct {
	Planning  int
	Expert    int
	Synthesis int
}

// Request starts a run.
type Request struct {
	Query   string
	History []Message
	Model   string
	Budgets Budgets
}

// Outcome is the plain-data result of a completed run, suitable for
// persisting alongside the conversation.
type Outcome struct {
	RunID             string         `json:"run_id" yaml:"run_id"`
	Query             string         `json:"query" yaml:"query"`
	FinalText         string         `json:"final_text" yaml:"final_text"`
	Analysis          AnalysisResult `json:"analysis" yaml:"analysis"`
	Tasks             []TaskResult   `json:"tasks" yaml:"tasks"`
	SynthesisThoughts string         `json:"synthesis_thoughts,omitempty" yaml:"synthesis_thoughts,omitempty"`
	StartedAt         time.Time      `json:"started_at" yaml:"started_at"`
	TotalDuration     time.Duration  `json:"total_duration" yaml:"total_duration"`
}

// Snapshot is a consistent copy of the engine's per-run state.
type Snapshot struct {
	RunID     string
	State     RunState
	Analysis  *AnalysisResult
	Tasks     []TaskResult
	Result    RunResult
	StartedAt time.Time
	EndedAt   time.Time
	Err       error
}
