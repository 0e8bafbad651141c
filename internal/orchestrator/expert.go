package orchestrator

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"time"

	"github.com/ShayCichocki/deepthink/internal/llm"
	"github.com/ShayCichocki/deepthink/internal/retry"
)

// TaskRunner drives one task through pending -> running -> completed or
// error, publishing a fresh TaskResult copy after every change.
type TaskRunner struct {
	client llm.Client
	policy retry.Policy
	logger *DebugLogger
	now    func() time.Time
}

// NewTaskRunner creates a TaskRunner.
func NewTaskRunner(client llm.Client, policy retry.Policy, logger *DebugLogger, now func() time.Time) *TaskRunner {
	if now == nil {
		now = time.Now
	}
	return &TaskRunner{client: client, policy: policy, logger: logger, now: now}
}

// Run executes spec and returns its final snapshot.
//
// If ctx is already done the pending result is returned without calling
// the client. Cancellation mid-stream returns the result in whatever
// status it last reached. Any other failure marks the task as error,
// keeping partial content and appending ErrorPlaceholder. Nothing is
// published after the task is terminal or ctx is done.
func (r *TaskRunner) Run(ctx context.Context, model string, spec TaskSpec, history string, budget int, publish func(TaskResult)) TaskResult {
	res := TaskResult{TaskSpec: spec, Status: TaskPending}
	if ctx.Err() != nil {
		return res
	}

	res.Status = TaskRunning
	res.StartedAt = r.now()
	publish(res)

	req := &llm.Request{
		Model:             model,
		Prompt:            spec.Prompt,
		SystemInstruction: expertSystemInstruction(spec.Role, spec.Description, history),
		Temperature:       llm.Float(spec.Temperature),
		ThinkingBudget:    budget,
	}
	stream, err := retry.Do(ctx, r.policy, "expert "+spec.ID, func(ctx context.Context) (llm.Stream, error) {
		return r.client.Stream(ctx, req)
	})
	if err != nil {
		return r.fail(ctx, res, err, publish)
	}
	defer stream.Close()

	var content, thoughts strings.Builder
	for {
		if ctx.Err() != nil {
			return res
		}
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return r.fail(ctx, res, err, publish)
		}
		if ctx.Err() != nil {
			return res
		}
		if chunk.Text == "" && chunk.Thought == "" {
			continue
		}
		content.WriteString(chunk.Text)
		thoughts.WriteString(chunk.Thought)
		res.Content = content.String()
		res.Thoughts = thoughts.String()
		publish(res)
	}

	if ctx.Err() != nil {
		return res
	}
	res.Status = TaskCompleted
	res.EndedAt = r.now()
	publish(res)
	r.logger.Log("task %s (%s): completed in %s, %d chars", spec.ID, spec.Role, res.Duration().Round(time.Millisecond), len(res.Content))
	return res
}

func (r *TaskRunner) fail(ctx context.Context, res TaskResult, err error, publish func(TaskResult)) TaskResult {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return res
	}
	log.Printf("[expert] %s (%s) failed: %v", res.ID, res.Role, err)
	r.logger.Log("task %s (%s): error: %v", res.ID, res.Role, err)

	res.Status = TaskError
	res.EndedAt = r.now()
	if res.Content == "" {
		res.Content = ErrorPlaceholder
	} else {
		res.Content += "\n\n" + ErrorPlaceholder
	}
	publish(res)
	return res
}
