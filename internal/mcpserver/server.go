// Package mcpserver exposes the engine as a Model Context Protocol tool so
// other agents can ask for a deep-think answer over stdio.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ShayCichocki/deepthink/internal/orchestrator"
	"github.com/ShayCichocki/deepthink/internal/version"
)

// ToolName is the name of the single tool the server registers.
const ToolName = "deep_think"

// Runner runs one query to completion. *orchestrator.Engine satisfies it.
type Runner interface {
	Run(ctx context.Context, req orchestrator.Request) (*orchestrator.Outcome, error)
}

// Input is the deep_think tool's argument object.
type Input struct {
	Query   string `json:"query" jsonschema:"the question to answer"`
	Context string `json:"context,omitempty" jsonschema:"optional background passed to every expert as prior conversation"`
}

// Expert summarizes one task of the run.
type Expert struct {
	Role        string  `json:"role"`
	Temperature float64 `json:"temperature"`
	Status      string  `json:"status"`
}

// Output is the structured result of the tool.
type Output struct {
	Answer     string   `json:"answer"`
	Rationale  string   `json:"rationale,omitempty"`
	Experts    []Expert `json:"experts"`
	DurationMS int64    `json:"duration_ms"`
}

// Config holds the per-request settings applied to every call.
type Config struct {
	Model   string
	Budgets orchestrator.Budgets
}

// Server answers deep_think calls one at a time. The engine keeps a single
// current run, so concurrent calls are serialized rather than allowed to
// cancel each other.
type Server struct {
	runner Runner
	cfg    Config
	mu     sync.Mutex
	mcp    *mcp.Server
}

// New creates a Server and registers the tool.
func New(runner Runner, cfg Config) *Server {
	s := &Server{runner: runner, cfg: cfg}
	s.mcp = mcp.NewServer(&mcp.Implementation{Name: "deepthink", Version: version.Get()}, nil)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: ToolName,
		Description: "Answer a question by planning a panel of specialist experts, " +
			"running them in parallel with a primary responder, and synthesizing " +
			"their outputs into one answer. Slow but thorough.",
	}, s.handle)
	return s
}

// MCP returns the underlying protocol server.
func (s *Server) MCP() *mcp.Server {
	return s.mcp
}

// Run serves over stdin/stdout until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	log.Printf("[mcp] serving %s over stdio", ToolName)
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) handle(ctx context.Context, _ *mcp.CallToolRequest, in Input) (*mcp.CallToolResult, Output, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, Output{}, errors.New("query is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	req := orchestrator.Request{
		Query:   query,
		Model:   s.cfg.Model,
		Budgets: s.cfg.Budgets,
	}
	if c := strings.TrimSpace(in.Context); c != "" {
		req.History = []orchestrator.Message{{Role: orchestrator.RoleUser, Content: c}}
	}

	outcome, err := s.runner.Run(ctx, req)
	if err != nil {
		if errors.Is(err, orchestrator.ErrStopped) {
			return nil, Output{}, errors.New("request cancelled")
		}
		return nil, Output{}, fmt.Errorf("deep think: %w", err)
	}

	out := Output{
		Answer:     outcome.FinalText,
		Rationale:  outcome.Analysis.Rationale,
		Experts:    make([]Expert, 0, len(outcome.Tasks)),
		DurationMS: outcome.TotalDuration.Milliseconds(),
	}
	for _, t := range outcome.Tasks {
		out.Experts = append(out.Experts, Expert{Role: t.Role, Temperature: t.Temperature, Status: string(t.Status)})
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: outcome.FinalText}},
	}, out, nil
}
