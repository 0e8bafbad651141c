package orchestrator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ShayCichocki/deepthink/internal/llm"
)

const managerSystemPrompt = `
You are the "Dynamic Planning Engine". Analyze the user's query in light of the conversation context and decompose it into 2 to 4 specialized expert personas who together cover the distinct aspects of the problem.

A Primary Responder is already answering the query directly. The experts you create are SUPPLEMENTARY to it.
Never create an expert that simply restates or repeats the user's query.
Prefer specialized angles: particular coding patterns, historical context, a devil's advocate, a security analyst, and so on.

Give every expert a 'temperature' between 0.0 and 2.0 suited to its role.
`

// managerSchema is the structured output the manager must return.
var managerSchema = &llm.Schema{
	Type: llm.TypeObject,
	Properties: map[string]*llm.Schema{
		"thought_process": {
			Type:        llm.TypeString,
			Description: "Brief explanation of why these supplementary experts were chosen.",
		},
		"experts": {
			Type: llm.TypeArray,
			Items: &llm.Schema{
				Type: llm.TypeObject,
				Properties: map[string]*llm.Schema{
					"role":        {Type: llm.TypeString},
					"description": {Type: llm.TypeString},
					"temperature": {Type: llm.TypeNumber},
					"prompt":      {Type: llm.TypeString},
				},
				Required: []string{"role", "description", "temperature", "prompt"},
			},
		},
	},
	Required: []string{"thought_process", "experts"},
}

func managerPrompt(query, history string) string {
	return fmt.Sprintf("Context:\n%s\n\nCurrent Query: \"%s\"", history, query)
}

func expertSystemInstruction(role, description, history string) string {
	return fmt.Sprintf("You are a %s. %s. Context: %s", role, strings.TrimSuffix(description, "."), history)
}

func synthesisPrompt(history, query string, tasks []TaskResult) string {
	var b strings.Builder
	b.WriteString("\nYou are the \"Synthesis Engine\".\n\n")
	b.WriteString("Context:\n")
	b.WriteString(history)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Original User Query: \"%s\"\n\n", query)
	b.WriteString("Here are the analyses from your expert panel:\n")
	for i, t := range tasks {
		if i > 0 {
			b.WriteString("\n")
		}
		content := t.Content
		if content == "" {
			content = "(No output)"
		}
		fmt.Fprintf(&b, "--- Expert: %s (Temp: %s) ---\n%s\n",
			t.Role, strconv.FormatFloat(t.Temperature, 'g', -1, 64), content)
	}
	b.WriteString(`
Your Task:
1. Reflect on the experts' inputs. Identify conflicts and consensus.
2. Synthesize a final, comprehensive, and high-quality answer to the user's original query.
3. Do not simply summarize; integrate the knowledge into a cohesive response.
`)
	return b.String()
}

// HistoryContext renders the last window messages as "User: ..." /
// "Model: ..." lines.
func HistoryContext(history []Message, window int) string {
	if window <= 0 || len(history) == 0 {
		return ""
	}
	if len(history) > window {
		history = history[len(history)-window:]
	}
	lines := make([]string, 0, len(history))
	for _, m := range history {
		speaker := "Model"
		if m.Role == RoleUser {
			speaker = "User"
		}
		lines = append(lines, speaker+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

// PrimarySpec builds the task that answers the query directly.
func PrimarySpec(query string) TaskSpec {
	return TaskSpec{
		ID: PrimaryTaskID,
		ExpertSpec: ExpertSpec{
			Role:        "Primary Responder",
			Description: "Directly addresses the user's original query.",
			Temperature: 1,
			Prompt:      query,
		},
	}
}

// SpecialistSpecs assigns ids expert-1..K in plan order.
func SpecialistSpecs(a AnalysisResult) []TaskSpec {
	specs := make([]TaskSpec, len(a.Specs))
	for i, s := range a.Specs {
		specs[i] = TaskSpec{ID: fmt.Sprintf("expert-%d", i+1), ExpertSpec: s}
	}
	return specs
}
