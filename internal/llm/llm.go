// Package llm is the text-generation boundary used by the orchestrator.
// It hides the provider SDKs behind a small one-shot/streaming interface.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
)

// SchemaType is a JSON schema primitive type.
type SchemaType string

const (
	TypeObject  SchemaType = "object"
	TypeArray   SchemaType = "array"
	TypeString  SchemaType = "string"
	TypeNumber  SchemaType = "number"
	TypeInteger SchemaType = "integer"
	TypeBoolean SchemaType = "boolean"
)

// Schema describes the structured output requested from a model.
// It covers the subset every backend understands.
type Schema struct {
	Type        SchemaType         `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// Request is a single generation call.
type Request struct {
	// Model is the provider-specific model identifier.
	Model string
	// Prompt is the user turn.
	Prompt string
	// SystemInstruction is optional.
	SystemInstruction string
	// Temperature is nil when the provider default should be used.
	Temperature *float64
	// ThinkingBudget is the reasoning token budget. Zero disables thinking.
	ThinkingBudget int
	// Schema requests JSON output matching the schema.
	Schema *Schema
}

// Response is the result of a one-shot Generate call.
type Response struct {
	Text     string
	Thoughts string
}

// Chunk is one streamed fragment. Either field may be empty.
type Chunk struct {
	Text    string
	Thought string
}

// Stream yields chunks in arrival order. Recv returns io.EOF once the
// stream is exhausted.
type Stream interface {
	Recv() (Chunk, error)
	Close() error
}

// Client is implemented by every backend.
//
// Stream does not return until the first chunk (or a clean end of stream)
// has arrived, so a failure to open the stream is reported by Stream
// itself and can be retried by the caller. Errors returned by Recv are
// mid-stream failures.
type Client interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
	Stream(ctx context.Context, req *Request) (Stream, error)
}

// Float returns a pointer to f.
func Float(f float64) *float64 {
	return &f
}

// StatusError is an HTTP-level error reported by a provider API.
type StatusError struct {
	Provider string
	Code     int
	Message  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error (status=%d): %s", e.Provider, e.Code, strings.TrimSpace(e.Message))
}

// Temporary reports whether the request may succeed if repeated.
func (e *StatusError) Temporary() bool {
	return e.Code == 408 || e.Code == 429 || e.Code >= 500
}

// IsTransient reports whether err is worth retrying: transport failures,
// timeouts, and temporary provider status codes. Cancellation is never
// transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	return false
}

// Collect drains a stream into a Response.
func Collect(s Stream) (*Response, error) {
	defer s.Close()
	var text, thoughts strings.Builder
	for {
		c, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return &Response{Text: text.String(), Thoughts: thoughts.String()}, nil
		}
		if err != nil {
			return nil, err
		}
		text.WriteString(c.Text)
		thoughts.WriteString(c.Thought)
	}
}

// primedStream holds the first chunk pulled while opening a stream.
type primedStream struct {
	first   *Chunk
	done    bool
	next    func() (Chunk, error)
	stop    func()
	stopped bool
}

// prime pulls the first chunk from next. An error other than io.EOF is
// returned as an open failure and stop is called.
func prime(next func() (Chunk, error), stop func()) (Stream, error) {
	c, err := next()
	if err != nil && !errors.Is(err, io.EOF) {
		stop()
		return nil, err
	}
	ps := &primedStream{next: next, stop: stop}
	if errors.Is(err, io.EOF) {
		ps.done = true
	} else {
		ps.first = &c
	}
	return ps, nil
}

func (s *primedStream) Recv() (Chunk, error) {
	if s.first != nil {
		c := *s.first
		s.first = nil
		return c, nil
	}
	if s.done {
		return Chunk{}, io.EOF
	}
	c, err := s.next()
	if err != nil {
		s.done = true
		return Chunk{}, err
	}
	return c, nil
}

func (s *primedStream) Close() error {
	if !s.stopped {
		s.stopped = true
		s.stop()
	}
	return nil
}
