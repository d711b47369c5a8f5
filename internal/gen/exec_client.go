package gen

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/crucidev/crucible/internal/config"
)

// ExecClient invokes a configured generator command per request. The prompt
// is written to the command's stdin; generated text is read from stdout;
// stderr is folded into the returned error for classification.
//
// The command receives the pinned model via the --model flag and the service
// credential via its configured environment variable.
type ExecClient struct {
	command      string
	apiKeyEnvVar string
}

// NewExecClient creates an ExecClient from the generation configuration.
func NewExecClient(cfg *config.GenerationConfig) *ExecClient {
	return &ExecClient{
		command:      cfg.Command,
		apiKeyEnvVar: cfg.APIKeyEnvVar,
	}
}

// Submit implements Client by running the generator command.
func (c *ExecClient) Submit(ctx context.Context, model, prompt string) (string, error) {
	//nolint:gosec // G204: command comes from validated configuration
	cmd := exec.CommandContext(ctx, c.command, "--model", model)
	cmd.Stdin = strings.NewReader(prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Env = os.Environ()

	if err := cmd.Run(); err != nil {
		// Context errors take precedence so timeouts classify as unavailability.
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("generator command %q failed: %s", c.command, msg)
	}

	return stdout.String(), nil
}
