// Package gen provides the generation-service gateway for Crucible.
//
// The gateway wraps a single pinned model binding fixed at process start.
// Quota and availability failures are surfaced as a pause condition rather
// than a pipeline error; every stage runner inherits that policy by calling
// through the gateway instead of the client directly.
//
// IMPORTANT: This package may import internal/constants, internal/errors,
// internal/config, and internal/logging. It MUST NOT import internal/pipeline,
// internal/stage, or internal/cli.
package gen

import "context"

// Request describes a single generation call. Requests are ephemeral and
// never persisted beyond the stage that issued them.
type Request struct {
	// Prompt is the full prompt text submitted to the service.
	Prompt string

	// Constraints are additional requirements appended to the prompt,
	// typically diagnostics carried forward from revision verdicts.
	Constraints []string

	// Stage names the calling stage, for logging only.
	Stage string
}

// Response is the text produced by the generation service.
type Response struct {
	// Text is the raw generated output.
	Text string

	// Model is the model identifier that produced the output. Always the
	// pinned model; recorded so the audit trail can prove no substitution.
	Model string
}

// Client is the opaque generation-service binding: submit a prompt, receive
// text. Implementations report failures as ordinary errors; classification
// into pause conditions is the gateway's job, not the client's.
type Client interface {
	// Submit sends the prompt to the service and returns the generated text.
	// The context controls timeout and cancellation.
	Submit(ctx context.Context, model, prompt string) (string, error)
}
