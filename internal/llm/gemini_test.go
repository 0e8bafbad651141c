package llm

import (
	"testing"

	"google.golang.org/genai"
)

func TestGeminiConfig(t *testing.T) {
	req := &Request{
		Prompt:            "q",
		SystemInstruction: "be brief",
		Temperature:       Float(1.5),
		ThinkingBudget:    2048,
		Schema: &Schema{
			Type:     TypeObject,
			Required: []string{"experts"},
			Properties: map[string]*Schema{
				"experts": {Type: TypeArray, Items: &Schema{Type: TypeString}},
			},
		},
	}
	cfg := geminiConfig(req)

	if cfg.SystemInstruction == nil || cfg.SystemInstruction.Parts[0].Text != "be brief" {
		t.Errorf("SystemInstruction = %+v", cfg.SystemInstruction)
	}
	if cfg.Temperature == nil || *cfg.Temperature != 1.5 {
		t.Errorf("Temperature = %v", cfg.Temperature)
	}
	if cfg.ThinkingConfig == nil || !cfg.ThinkingConfig.IncludeThoughts {
		t.Fatalf("ThinkingConfig = %+v", cfg.ThinkingConfig)
	}
	if *cfg.ThinkingConfig.ThinkingBudget != 2048 {
		t.Errorf("ThinkingBudget = %d", *cfg.ThinkingConfig.ThinkingBudget)
	}
	if cfg.ResponseMIMEType != "application/json" {
		t.Errorf("ResponseMIMEType = %q", cfg.ResponseMIMEType)
	}
	if cfg.ResponseSchema.Type != genai.TypeObject {
		t.Errorf("schema type = %q", cfg.ResponseSchema.Type)
	}
	experts := cfg.ResponseSchema.Properties["experts"]
	if experts == nil || experts.Type != genai.TypeArray || experts.Items.Type != genai.TypeString {
		t.Errorf("experts schema = %+v", experts)
	}
}

func TestGeminiConfig_NoThinking(t *testing.T) {
	cfg := geminiConfig(&Request{Prompt: "q"})
	if cfg.ThinkingConfig != nil {
		t.Error("ThinkingConfig set with zero budget")
	}
	if cfg.Temperature != nil {
		t.Error("Temperature set without request temperature")
	}
	if cfg.ResponseSchema != nil {
		t.Error("ResponseSchema set without schema")
	}
}

func TestGeminiParts(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "pondering", Thought: true},
				{Text: "answer"},
			}},
		}},
	}
	text, thoughts := geminiParts(resp)
	if text != "answer" || thoughts != "pondering" {
		t.Errorf("geminiParts = %q, %q", text, thoughts)
	}

	if text, thoughts := geminiParts(nil); text != "" || thoughts != "" {
		t.Error("nil response should yield empty parts")
	}
}
