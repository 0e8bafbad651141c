package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"
)

const (
	// minThinkingBudget is the smallest extended-thinking budget the API accepts.
	minThinkingBudget = 1024
	// answerTokens is added on top of the thinking budget for the answer itself.
	answerTokens = 8192
)

// AnthropicConfig configures the Anthropic backend.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key. If empty, uses ANTHROPIC_API_KEY env var.
	APIKey string
	// BaseURL overrides the API endpoint.
	BaseURL string
	// UseAWSBedrock routes requests through AWS Bedrock.
	UseAWSBedrock bool
	// AWSRegion is the AWS region for Bedrock (e.g., "us-west-2").
	AWSRegion string
	// AWSProfile is the optional AWS profile name to use.
	AWSProfile string
}

// Anthropic is a Client backed by the Anthropic SDK, directly or via Bedrock.
type Anthropic struct {
	inner   anthropic.Client
	bedrock bool
}

// NewAnthropic creates an Anthropic backend.
func NewAnthropic(ctx context.Context, cfg AnthropicConfig) (*Anthropic, error) {
	var opts []option.RequestOption

	if cfg.UseAWSBedrock {
		var loadOpts []func(*config.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.AWSProfile))
		}
		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
		}
		opts = append(opts, option.WithAPIKey(apiKey))
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
	}

	return &Anthropic{
		inner:   anthropic.NewClient(opts...),
		bedrock: cfg.UseAWSBedrock,
	}, nil
}

// Generate performs a one-shot call.
// Budgets too large for a non-streaming request are sent as a stream and
// collected.
func (a *Anthropic) Generate(ctx context.Context, req *Request) (*Response, error) {
	params := a.params(req)
	if needsStreaming(params) {
		s, err := a.Stream(ctx, req)
		if err != nil {
			return nil, err
		}
		return Collect(s)
	}

	msg, err := a.inner.Messages.New(ctx, params)
	if err != nil {
		return nil, anthropicError(err)
	}

	var text, thoughts strings.Builder
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(variant.Text)
		case anthropic.ThinkingBlock:
			thoughts.WriteString(variant.Thinking)
		}
	}
	return &Response{Text: text.String(), Thoughts: thoughts.String()}, nil
}

// needsStreaming reports whether the SDK would refuse params as a
// non-streaming request.
func needsStreaming(params anthropic.MessageNewParams) bool {
	_, err := anthropic.CalculateNonStreamingTimeout(int(params.MaxTokens), params.Model, nil)
	return err != nil
}

// Stream opens a streaming call.
func (a *Anthropic) Stream(ctx context.Context, req *Request) (Stream, error) {
	stream := a.inner.Messages.NewStreaming(ctx, a.params(req))

	next := func() (Chunk, error) {
		for stream.Next() {
			event := stream.Current()
			delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
			if !ok {
				continue
			}
			switch d := delta.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if d.Text != "" {
					return Chunk{Text: d.Text}, nil
				}
			case anthropic.ThinkingDelta:
				if d.Thinking != "" {
					return Chunk{Thought: d.Thinking}, nil
				}
			}
		}
		if err := stream.Err(); err != nil {
			return Chunk{}, anthropicError(err)
		}
		return Chunk{}, io.EOF
	}
	return prime(next, func() { _ = stream.Close() })
}

func (a *Anthropic) params(req *Request) anthropic.MessageNewParams {
	model := anthropic.Model(req.Model)
	if a.bedrock {
		model = translateModelForBedrock(model)
	}

	p := anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: answerTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}

	system := req.SystemInstruction
	if req.Schema != nil {
		system = strings.TrimSpace(system + "\n\n" + schemaInstruction(req.Schema))
	}
	if system != "" {
		p.System = []anthropic.TextBlockParam{{Text: system}}
	}

	if req.ThinkingBudget >= minThinkingBudget {
		// temperature must be left at its default when thinking is enabled
		p.Thinking = anthropic.ThinkingConfigParamOfEnabled(int64(req.ThinkingBudget))
		p.MaxTokens = int64(req.ThinkingBudget) + answerTokens
	} else if req.Temperature != nil {
		// Anthropic accepts [0, 1]
		p.Temperature = anthropic.Float(min(*req.Temperature, 1))
	}
	return p
}

// schemaInstruction renders a schema as a system prompt suffix, since the
// Messages API has no response schema field.
func schemaInstruction(s *Schema) string {
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "Respond with a single JSON object."
	}
	return "Respond with a single JSON object, and nothing else, matching this JSON schema:\n" + string(raw)
}

// translateModelForBedrock converts standard Anthropic model names to
// Bedrock cross-region inference profiles.
func translateModelForBedrock(model anthropic.Model) anthropic.Model {
	bedrockModels := map[anthropic.Model]string{
		anthropic.ModelClaudeSonnet4_20250514:   "us.anthropic.claude-sonnet-4-20250514-v1:0",
		anthropic.ModelClaudeSonnet4_5_20250929: "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
		anthropic.ModelClaudeHaiku4_5_20251001:  "us.anthropic.claude-haiku-4-5-20251001-v1:0",
		anthropic.ModelClaudeOpus4_1_20250805:   "us.anthropic.claude-opus-4-1-20250805-v1:0",
		anthropic.ModelClaudeOpus4_5_20251101:   "us.anthropic.claude-opus-4-5-20251101-v1:0",
	}
	if m, ok := bedrockModels[model]; ok {
		return anthropic.Model(m)
	}
	return model
}

func anthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &StatusError{Provider: "anthropic", Code: apiErr.StatusCode, Message: apiErr.Error()}
	}
	return fmt.Errorf("anthropic request: %w", err)
}
