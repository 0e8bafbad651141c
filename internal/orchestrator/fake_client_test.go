package orchestrator

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/ShayCichocki/deepthink/internal/llm"
	"github.com/ShayCichocki/deepthink/internal/retry"
)

// streamScript describes how the fake client answers one stream.
type streamScript struct {
	// openErrs are returned by successive Stream calls before one succeeds.
	openErrs []error
	chunks   []llm.Chunk
	// midErr is returned by Recv after the chunks.
	midErr error
	// block makes Recv wait for ctx after the chunks.
	block bool
}

// fakeClient is a scripted llm.Client. Expert streams are keyed by role,
// the synthesis stream by synthesisKey.
type fakeClient struct {
	mu sync.Mutex

	planText  string
	planErrs  []error
	planCalls int
	// planBlock makes Generate wait for ctx. planWaiting counts the calls
	// currently waiting.
	planBlock   bool
	planWaiting int

	scripts     map[string]*streamScript
	blockPrompt string
	calls       map[string]int
	prompts     map[string]string
	opened      chan string
}

const synthesisKey = "synthesis"

func newFakeClient(plan string) *fakeClient {
	return &fakeClient{
		planText: plan,
		scripts:  make(map[string]*streamScript),
		calls:    make(map[string]int),
		prompts:  make(map[string]string),
		opened:   make(chan string, 64),
	}
}

func (f *fakeClient) script(key string, s *streamScript) *fakeClient {
	f.scripts[key] = s
	return f
}

func (f *fakeClient) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	f.mu.Lock()
	if f.planBlock {
		f.planCalls++
		f.planWaiting++
		f.mu.Unlock()

		<-ctx.Done()

		f.mu.Lock()
		f.planWaiting--
		f.mu.Unlock()
		return nil, ctx.Err()
	}
	defer f.mu.Unlock()
	f.planCalls++
	if f.planCalls <= len(f.planErrs) {
		return nil, f.planErrs[f.planCalls-1]
	}
	return &llm.Response{Text: f.planText}, nil
}

func (f *fakeClient) keyFor(req *llm.Request) string {
	if req.SystemInstruction == "" && strings.Contains(req.Prompt, "Synthesis Engine") {
		return synthesisKey
	}
	rest := strings.TrimPrefix(req.SystemInstruction, "You are a ")
	if i := strings.Index(rest, ". "); i >= 0 {
		return rest[:i]
	}
	return rest
}

func (f *fakeClient) Stream(ctx context.Context, req *llm.Request) (llm.Stream, error) {
	key := f.keyFor(req)

	f.mu.Lock()
	f.calls[key]++
	n := f.calls[key]
	f.prompts[key] = req.Prompt
	s := f.scripts[key]
	block := f.blockPrompt != "" && req.Prompt == f.blockPrompt
	f.mu.Unlock()

	if s == nil {
		s = &streamScript{chunks: []llm.Chunk{{Text: "answer from " + key}}}
	}
	if n <= len(s.openErrs) {
		return nil, s.openErrs[n-1]
	}
	select {
	case f.opened <- key:
	default:
	}
	return &fakeStream{ctx: ctx, chunks: s.chunks, midErr: s.midErr, block: s.block || block}, nil
}

func (f *fakeClient) callCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *fakeClient) planning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.planWaiting > 0
}

func (f *fakeClient) prompt(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prompts[key]
}

// waitOpened blocks until a stream for key has been opened.
func (f *fakeClient) waitOpened(key string, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		select {
		case k := <-f.opened:
			if k == key {
				return true
			}
		case <-deadline:
			return false
		}
	}
}

type fakeStream struct {
	ctx    context.Context
	chunks []llm.Chunk
	i      int
	midErr error
	block  bool
}

func (s *fakeStream) Recv() (llm.Chunk, error) {
	if s.i < len(s.chunks) {
		c := s.chunks[s.i]
		s.i++
		return c, nil
	}
	if s.block {
		<-s.ctx.Done()
		return llm.Chunk{}, s.ctx.Err()
	}
	if s.midErr != nil {
		return llm.Chunk{}, s.midErr
	}
	return llm.Chunk{}, io.EOF
}

func (s *fakeStream) Close() error { return nil }

// recorder is an Observer that keeps every update.
type recorder struct {
	mu      sync.Mutex
	updates []Update
}

func (r *recorder) observe(u Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *recorder) all() []Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Update(nil), r.updates...)
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

// states returns the sequence of states from state updates of runID.
func (r *recorder) states(runID string) []RunState {
	var out []RunState
	for _, u := range r.all() {
		if u.RunID == runID && u.Kind == UpdateState {
			out = append(out, u.State)
		}
	}
	return out
}

func testPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2,
	}
}

const twoExpertPlan = `{
  "thought_process": "Security and history angles.",
  "experts": [
    {"role": "Security Analyst", "description": "Finds risks", "temperature": 0.3, "prompt": "List the risks of X"},
    {"role": "Historian", "description": "Knows the background", "temperature": 1.2, "prompt": "Trace the history of X"}
  ]
}`
