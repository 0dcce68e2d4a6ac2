package llm

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/semaphore"

	"stpasec/internal/logging"
)

const (
	defaultMaxAttempts = 3
	defaultCallTimeout = 120 * time.Second
	backoffBase        = 50 * time.Millisecond
	backoffCap         = 2 * time.Second
)

// Adapter layers retry, backoff, backpressure, deadline enforcement, and
// structured-output fallback on a transport Client. All agent LLM traffic
// flows through a single Adapter so the concurrency cap is global.
type Adapter struct {
	client      Client
	saver       *PromptSaver
	sem         *semaphore.Weighted
	maxAttempts int
	callTimeout time.Duration
}

// AdapterConfig configures an Adapter.
type AdapterConfig struct {
	Client         Client
	Saver          *PromptSaver // nil disables capture
	MaxConcurrent  int          // concurrent LLM calls, default 8
	MaxAttempts    int          // retries per call, default 3
	CallTimeout    time.Duration // per-call deadline, default 120s
}

// NewAdapter creates an adapter around a transport client.
func NewAdapter(cfg AdapterConfig) *Adapter {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 8
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	return &Adapter{
		client:      cfg.Client,
		saver:       cfg.Saver,
		sem:         semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		maxAttempts: cfg.MaxAttempts,
		callTimeout: cfg.CallTimeout,
	}
}

// CaptureMeta identifies the caller for prompt capture.
type CaptureMeta struct {
	Agent string
	Step  int
	Style string
}

// Generate sends messages and returns completion text, retrying transport
// errors with exponential backoff. Retries re-send the same messages with
// the same temperature.
func (a *Adapter) Generate(ctx context.Context, messages []Message, opts Options, meta CaptureMeta) (string, error) {
	var lastErr error
	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return "", &Failure{Kind: FailTimeout, Attempts: attempt, LastErr: err}
			}
		}

		text, err := a.callOnce(ctx, messages, opts, meta)
		if err == nil {
			return text, nil
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", &Failure{Kind: FailTimeout, Attempts: attempt + 1, LastErr: err}
		}
		if errors.Is(err, ErrJSONModeUnsupported) {
			return "", err // not retryable; caller falls back
		}
		lastErr = err
		logging.L(logging.CategoryLLM).Warnw("generation attempt failed",
			"attempt", attempt+1, "agent", meta.Agent, "error", err)
	}
	return "", &Failure{Kind: FailTransport, Attempts: a.maxAttempts, LastErr: lastErr}
}

// GenerateStructured returns a schema-validated decoded value. It first
// attempts a schema-constrained call; if the provider rejects JSON mode or
// the result fails validation, it falls back to unconstrained generation
// plus repair plus validation. Output that survives no repair is retried
// with backoff up to the same attempt cap as transport errors.
func (a *Adapter) GenerateStructured(ctx context.Context, messages []Message, schema *Schema, opts Options, meta CaptureMeta) (any, error) {
	constrained := opts
	constrained.JSONMode = true
	constrained.Schema = schema

	text, err := a.Generate(ctx, messages, constrained, meta)
	if err != nil {
		var fail *Failure
		if errors.As(err, &fail) && fail.Kind == FailTimeout {
			return nil, err
		}
		if !errors.Is(err, ErrJSONModeUnsupported) {
			logging.L(logging.CategoryLLM).Debugw("constrained call failed, falling back", "agent", meta.Agent, "error", err)
		}
		// Fall back to plain generation.
		plain := opts
		plain.JSONMode = false
		text, err = a.Generate(ctx, messages, plain, meta)
		if err != nil {
			return nil, err
		}
	}

	// Unparseable output is retried like a transport error: back off and
	// resend the same messages unconstrained, up to the attempt cap. A
	// second sample frequently parses.
	value, parseErr := RepairJSON(text)
	for attempt := 1; parseErr != nil && attempt < a.maxAttempts; attempt++ {
		logging.L(logging.CategoryLLM).Warnw("parse attempt failed",
			"attempt", attempt, "agent", meta.Agent, "error", parseErr)
		if err := sleepBackoff(ctx, attempt); err != nil {
			return nil, &Failure{Kind: FailTimeout, Attempts: attempt, LastErr: err}
		}
		plain := opts
		plain.JSONMode = false
		retryText, retryErr := a.Generate(ctx, messages, plain, meta)
		if retryErr != nil {
			var fail *Failure
			if errors.As(retryErr, &fail) && fail.Kind == FailTimeout {
				return nil, retryErr
			}
			return nil, &Failure{Kind: FailParse, Attempts: attempt, LastErr: parseErr}
		}
		value, parseErr = RepairJSON(retryText)
	}
	if parseErr != nil {
		return nil, &Failure{Kind: FailParse, Attempts: a.maxAttempts, LastErr: parseErr}
	}

	if schema != nil {
		if err := schema.Validate(value); err != nil {
			return nil, &Failure{Kind: FailSchema, Attempts: 1, LastErr: err}
		}
	}
	return value, nil
}

// callOnce performs one provider call under the semaphore and deadline.
func (a *Adapter) callOnce(ctx context.Context, messages []Message, opts Options, meta CaptureMeta) (string, error) {
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer a.sem.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	start := time.Now()
	text, err := a.client.Generate(callCtx, messages, opts)
	if err != nil {
		// An in-flight call abandoned at its deadline surfaces as timeout.
		if callCtx.Err() != nil && ctx.Err() == nil {
			return "", context.DeadlineExceeded
		}
		return "", err
	}
	logging.L(logging.CategoryLLM).Debugw("call completed",
		"agent", meta.Agent, "style", meta.Style, "duration", time.Since(start))

	if a.saver != nil {
		if saveErr := a.saver.Save(meta.Agent, meta.Step, meta.Style, flatten(messages), text, map[string]string{
			"model": a.client.Model(),
		}); saveErr != nil {
			logging.L(logging.CategoryLLM).Warnw("prompt capture failed", "error", saveErr)
		}
	}
	return text, nil
}

func sleepBackoff(ctx context.Context, attempt int) error {
	d := backoffBase << uint(attempt-1)
	if d > backoffCap {
		d = backoffCap
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func flatten(messages []Message) string {
	var out string
	for _, m := range messages {
		out += "## " + string(m.Role) + "\n\n" + m.Content + "\n\n"
	}
	return out
}
