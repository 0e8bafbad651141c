package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// OllamaConfig configures the Ollama backend.
type OllamaConfig struct {
	// Host is the server URL. Empty means OLLAMA_HOST or the local default.
	Host string
	// HTTPClient is optional.
	HTTPClient *http.Client
}

// Ollama is a Client backed by a local or remote Ollama server.
type Ollama struct {
	client *api.Client
}

// NewOllama creates an Ollama backend.
func NewOllama(cfg OllamaConfig) (*Ollama, error) {
	if cfg.Host == "" {
		client, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("create ollama client: %w", err)
		}
		return &Ollama{client: client}, nil
	}

	base, err := url.Parse(strings.TrimRight(cfg.Host, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse ollama host %q: %w", cfg.Host, err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Ollama{client: api.NewClient(base, httpClient)}, nil
}

// Generate performs a one-shot call.
func (o *Ollama) Generate(ctx context.Context, req *Request) (*Response, error) {
	gr, err := ollamaRequest(req, false)
	if err != nil {
		return nil, err
	}

	var text, thoughts strings.Builder
	err = o.client.Generate(ctx, gr, func(r api.GenerateResponse) error {
		text.WriteString(r.Response)
		thoughts.WriteString(r.Thinking)
		return nil
	})
	if err != nil {
		return nil, ollamaError(err)
	}
	return &Response{Text: text.String(), Thoughts: thoughts.String()}, nil
}

type ollamaChunk struct {
	chunk Chunk
	err   error
}

// Stream opens a streaming call. The SDK is callback based, so chunks are
// forwarded from a goroutine over a channel.
func (o *Ollama) Stream(ctx context.Context, req *Request) (Stream, error) {
	gr, err := ollamaRequest(req, true)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan ollamaChunk)

	go func() {
		defer close(ch)
		err := o.client.Generate(ctx, gr, func(r api.GenerateResponse) error {
			if r.Response == "" && r.Thinking == "" {
				return nil
			}
			select {
			case ch <- ollamaChunk{chunk: Chunk{Text: r.Response, Thought: r.Thinking}}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			select {
			case ch <- ollamaChunk{err: ollamaError(err)}:
			case <-ctx.Done():
			}
		}
	}()

	next := func() (Chunk, error) {
		select {
		case item, ok := <-ch:
			if !ok {
				return Chunk{}, io.EOF
			}
			return item.chunk, item.err
		case <-ctx.Done():
			return Chunk{}, ctx.Err()
		}
	}
	return prime(next, cancel)
}

func ollamaRequest(req *Request, stream bool) (*api.GenerateRequest, error) {
	gr := &api.GenerateRequest{
		Model:  req.Model,
		Prompt: req.Prompt,
		System: req.SystemInstruction,
		Stream: &stream,
	}
	if req.Temperature != nil {
		gr.Options = map[string]any{"temperature": *req.Temperature}
	}
	if req.ThinkingBudget > 0 {
		gr.Think = &api.ThinkValue{Value: true}
	}
	if req.Schema != nil {
		raw, err := json.Marshal(req.Schema)
		if err != nil {
			return nil, fmt.Errorf("marshal schema: %w", err)
		}
		gr.Format = raw
	}
	return gr, nil
}

func ollamaError(err error) error {
	var se api.StatusError
	if errors.As(err, &se) {
		msg := se.ErrorMessage
		if msg == "" {
			msg = se.Status
		}
		return &StatusError{Provider: "ollama", Code: se.StatusCode, Message: msg}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("ollama request: %w", err)
}
