// Package llm provides the provider-agnostic LLM adapter: a uniform
// generate / generate-structured surface with retries, JSON repair, schema
// fallback, concurrency capping, and optional prompt capture.
package llm

import (
	"context"
	"fmt"
)

// Role of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the common message list translated to each
// provider's call shape.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Options tune a single generation call.
type Options struct {
	Temperature float64
	MaxTokens   int
	// JSONMode asks the provider for schema-constrained or JSON-object
	// output. Providers that cannot honor it return ErrJSONModeUnsupported
	// and the adapter falls back to repair-and-validate.
	JSONMode bool
	Schema   *Schema
}

// Client is the transport-level contract a provider implements. The
// adapter layers retries and fallback on top; clients perform exactly one
// call per invocation.
type Client interface {
	// Generate sends the message list and returns the completion text.
	Generate(ctx context.Context, messages []Message, opts Options) (string, error)
	// Model returns the configured model id, for capture metadata.
	Model() string
}

// ErrJSONModeUnsupported is returned by providers without native
// structured output so the adapter can fall back.
var ErrJSONModeUnsupported = fmt.Errorf("provider does not support JSON mode")

// FailureKind classifies a terminal LLM failure.
type FailureKind string

const (
	FailTransport FailureKind = "transport"
	FailParse     FailureKind = "parse"
	FailSchema    FailureKind = "schema"
	FailTimeout   FailureKind = "timeout"
)

// Failure is the terminal error surfaced after all retries and fallbacks.
type Failure struct {
	Kind     FailureKind
	Attempts int
	LastErr  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("llm failure (%s) after %d attempt(s): %v", f.Kind, f.Attempts, f.LastErr)
}

func (f *Failure) Unwrap() error { return f.LastErr }
