package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ShayCichocki/deepthink/internal/llm"
	"github.com/ShayCichocki/deepthink/internal/retry"
)

// Synthesizer merges every task's output into the final answer.
type Synthesizer struct {
	client llm.Client
	policy retry.Policy
	now    func() time.Time
}

// NewSynthesizer creates a Synthesizer.
func NewSynthesizer(client llm.Client, policy retry.Policy, now func() time.Time) *Synthesizer {
	if now == nil {
		now = time.Now
	}
	return &Synthesizer{client: client, policy: policy, now: now}
}

// Synthesize streams the final answer, publishing after every chunk.
// Unlike the manager and the task runner it has no fallback: opening
// failures that survive retry and mid-stream failures are returned.
// Cancellation returns the partial result and ErrStopped.
func (s *Synthesizer) Synthesize(ctx context.Context, model, query, history string, tasks []TaskResult, budget int, publish func(RunResult)) (RunResult, error) {
	res := RunResult{StartedAt: s.now()}
	if ctx.Err() != nil {
		return res, ErrStopped
	}

	req := &llm.Request{
		Model:          model,
		Prompt:         synthesisPrompt(history, query, tasks),
		ThinkingBudget: budget,
	}
	stream, err := retry.Do(ctx, s.policy, "synthesis", func(ctx context.Context) (llm.Stream, error) {
		return s.client.Stream(ctx, req)
	})
	if err != nil {
		if ctx.Err() != nil {
			return res, ErrStopped
		}
		return res, fmt.Errorf("open synthesis stream: %w", err)
	}
	defer stream.Close()

	var text, thoughts strings.Builder
	for {
		if ctx.Err() != nil {
			return res, ErrStopped
		}
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return res, ErrStopped
			}
			return res, fmt.Errorf("synthesis stream interrupted: %w", err)
		}
		if chunk.Text == "" && chunk.Thought == "" {
			continue
		}
		text.WriteString(chunk.Text)
		thoughts.WriteString(chunk.Thought)
		res.FinalText = text.String()
		res.FinalThoughts = thoughts.String()
		publish(res)
	}

	if ctx.Err() != nil {
		return res, ErrStopped
	}
	res.EndedAt = s.now()
	return res, nil
}
