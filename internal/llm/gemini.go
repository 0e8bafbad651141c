package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

const defaultGeminiTimeout = 10 * time.Minute

// GeminiConfig configures the Gemini backend.
type GeminiConfig struct {
	// APIKey is required.
	APIKey string
	// BaseURL overrides the API endpoint (custom proxies, test servers).
	BaseURL string
	// APIVersion overrides the API version path segment.
	APIVersion string
	// HTTPClient is optional.
	HTTPClient *http.Client
}

// Gemini is a Client backed by google.golang.org/genai.
type Gemini struct {
	client *genai.Client
}

// NewGemini creates a Gemini backend.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is not set")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultGeminiTimeout}
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.APIVersion != "" {
		cc.HTTPOptions.APIVersion = cfg.APIVersion
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{client: client}, nil
}

// Generate performs a one-shot call.
func (g *Gemini) Generate(ctx context.Context, req *Request) (*Response, error) {
	resp, err := g.client.Models.GenerateContent(ctx, req.Model, geminiContents(req), geminiConfig(req))
	if err != nil {
		return nil, geminiError(err)
	}
	text, thoughts := geminiParts(resp)
	return &Response{Text: text, Thoughts: thoughts}, nil
}

// Stream opens a streaming call.
func (g *Gemini) Stream(ctx context.Context, req *Request) (Stream, error) {
	seq := g.client.Models.GenerateContentStream(ctx, req.Model, geminiContents(req), geminiConfig(req))
	return pullGemini(seq)
}

// pullGemini adapts a genai response sequence into a primed Stream.
func pullGemini(seq iter.Seq2[*genai.GenerateContentResponse, error]) (Stream, error) {
	pull, stop := iter.Pull2(seq)
	next := func() (Chunk, error) {
		for {
			resp, err, ok := pull()
			if !ok {
				return Chunk{}, io.EOF
			}
			if err != nil {
				return Chunk{}, geminiError(err)
			}
			text, thought := geminiParts(resp)
			if text == "" && thought == "" {
				// usage-only or empty frames
				continue
			}
			return Chunk{Text: text, Thought: thought}, nil
		}
	}
	return prime(next, stop)
}

func geminiContents(req *Request) []*genai.Content {
	return []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}
}

func geminiConfig(req *Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.SystemInstruction != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(req.SystemInstruction)},
		}
	}
	if req.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.ThinkingBudget > 0 {
		cfg.ThinkingConfig = &genai.ThinkingConfig{
			IncludeThoughts: true,
			ThinkingBudget:  genai.Ptr(int32(req.ThinkingBudget)),
		}
	}
	if req.Schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = geminiSchema(req.Schema)
	}
	return cfg
}

func geminiSchema(s *Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genai.Type(strings.ToUpper(string(s.Type))),
		Description: s.Description,
		Required:    s.Required,
		Items:       geminiSchema(s.Items),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, p := range s.Properties {
			out.Properties[name] = geminiSchema(p)
		}
	}
	return out
}

// geminiParts splits the first candidate's parts into answer text and
// thought text.
func geminiParts(resp *genai.GenerateContentResponse) (string, string) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ""
	}
	c := resp.Candidates[0]
	if c.Content == nil {
		return "", ""
	}
	var text, thoughts strings.Builder
	for _, part := range c.Content.Parts {
		if part == nil || part.Text == "" {
			continue
		}
		if part.Thought {
			thoughts.WriteString(part.Text)
		} else {
			text.WriteString(part.Text)
		}
	}
	return text.String(), thoughts.String()
}

func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{Provider: "gemini", Code: apiErr.Code, Message: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &StatusError{Provider: "gemini", Code: apiErrPtr.Code, Message: apiErrPtr.Message}
	}
	return fmt.Errorf("gemini request: %w", err)
}
