package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/ShayCichocki/deepthink/internal/llm"
	"github.com/ShayCichocki/deepthink/internal/retry"
)

// plannedExpert is one entry of the manager's JSON payload.
type plannedExpert struct {
	Role        string   `json:"role"`
	Description string   `json:"description"`
	Temperature *float64 `json:"temperature"`
	Prompt      string   `json:"prompt"`
}

// managerPayload is the raw JSON object returned by the manager. Experts
// is a pointer so a missing field can be told apart from an empty list.
type managerPayload struct {
	ThoughtProcess string           `json:"thought_process"`
	Experts        *[]plannedExpert `json:"experts"`
}

// InvalidPlanError describes a manager response that could not be used.
type InvalidPlanError struct {
	Reason string
	Raw    string
}

func (e *InvalidPlanError) Error() string {
	raw := e.Raw
	if len(raw) > 200 {
		raw = raw[:200] + "... (truncated)"
	}
	return fmt.Sprintf("invalid plan: %s (got %q)", e.Reason, raw)
}

// Manager asks the model for a set of supplementary specialists.
type Manager struct {
	client     llm.Client
	policy     retry.Policy
	maxExperts int
	logger     *DebugLogger
}

// NewManager creates a Manager.
func NewManager(client llm.Client, policy retry.Policy, maxExperts int, logger *DebugLogger) *Manager {
	if maxExperts <= 0 {
		maxExperts = defaultMaxExperts
	}
	return &Manager{client: client, policy: policy, maxExperts: maxExperts, logger: logger}
}

// Analyze returns the plan for query. It never fails: any call or parse
// error yields FallbackAnalysis so the run can continue with the primary
// task alone.
func (m *Manager) Analyze(ctx context.Context, model, query, history string, budget int) AnalysisResult {
	if ctx.Err() != nil {
		return FallbackAnalysis()
	}

	req := &llm.Request{
		Model:             model,
		Prompt:            managerPrompt(query, history),
		SystemInstruction: managerSystemPrompt,
		ThinkingBudget:    budget,
		Schema:            managerSchema,
	}
	resp, err := retry.Do(ctx, m.policy, "manager", func(ctx context.Context) (*llm.Response, error) {
		return m.client.Generate(ctx, req)
	})
	if err != nil {
		if retry.KindOf(err) != retry.Canceled {
			log.Printf("[manager] planning failed, continuing with primary only: %v", err)
			m.logger.Log("manager: call failed: %v", err)
		}
		return FallbackAnalysis()
	}

	analysis, err := ParsePlan(resp.Text, m.maxExperts)
	if err != nil {
		log.Printf("[manager] %v", err)
		m.logger.Log("manager: %v", err)
		return FallbackAnalysis()
	}
	m.logger.Log("manager: %d specialist(s): %s", len(analysis.Specs), analysis.Rationale)
	return analysis
}

// ParsePlan validates a manager response. Surrounding prose and markdown
// fences are tolerated. Entries without a role or prompt are dropped,
// temperatures are clamped to [0, 2] (1 when absent), and at most
// maxExperts entries are kept. A response whose experts field is missing
// or not a list yields *InvalidPlanError.
func ParsePlan(raw string, maxExperts int) (AnalysisResult, error) {
	jsonStr, ok := extractJSONObject(raw)
	if !ok {
		return AnalysisResult{}, &InvalidPlanError{Reason: "no JSON object found", Raw: raw}
	}

	var payload managerPayload
	if err := json.Unmarshal([]byte(jsonStr), &payload); err != nil {
		return AnalysisResult{}, &InvalidPlanError{Reason: "unmarshal: " + err.Error(), Raw: raw}
	}
	if payload.Experts == nil {
		return AnalysisResult{}, &InvalidPlanError{Reason: "experts field missing", Raw: raw}
	}

	result := AnalysisResult{Rationale: strings.TrimSpace(payload.ThoughtProcess)}
	for _, e := range *payload.Experts {
		role := strings.TrimSpace(e.Role)
		prompt := strings.TrimSpace(e.Prompt)
		if role == "" || prompt == "" {
			continue
		}
		temp := 1.0
		if e.Temperature != nil {
			temp = min(max(*e.Temperature, 0), 2)
		}
		result.Specs = append(result.Specs, ExpertSpec{
			Role:        role,
			Description: strings.TrimSpace(e.Description),
			Temperature: temp,
			Prompt:      prompt,
		})
		if maxExperts > 0 && len(result.Specs) == maxExperts {
			break
		}
	}
	return result, nil
}

// extractJSONObject returns the outermost {...} span of s.
func extractJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
