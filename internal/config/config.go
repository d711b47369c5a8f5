// Package config provides configuration management for Crucible with layered precedence.
//
// Configuration sources are loaded in the following order (highest precedence first):
//  1. CLI flags (passed via LoadWithOverrides)
//  2. Environment variables (CRUCIBLE_* prefix)
//  3. Project config (.crucible/config.yaml)
//  4. Global config (~/.crucible/config.yaml)
//  5. Built-in defaults
//
// IMPORTANT: This package may import internal/constants and internal/errors,
// but MUST NOT import internal/domain or other internal packages.
package config

import (
	"time"

	"github.com/crucidev/crucible/internal/constants"
)

// Config is the root configuration structure for Crucible.
type Config struct {
	// Generation contains settings for the generation-service gateway.
	Generation GenerationConfig `yaml:"generation" mapstructure:"generation"`

	// Pipeline contains settings for the workflow orchestrator.
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`

	// Tools contains the quality-tool command lines.
	Tools ToolsConfig `yaml:"tools" mapstructure:"tools"`

	// Delivery contains settings for the delivery dispatcher.
	Delivery DeliveryConfig `yaml:"delivery" mapstructure:"delivery"`
}

// GenerationConfig contains settings for the generation-service gateway.
// The model binding is fixed at process start and never altered mid-pipeline;
// no fallback substitution occurs under any condition.
type GenerationConfig struct {
	// Command is the generator executable invoked per request.
	// The prompt is written to its stdin; generated text is read from stdout.
	Command string `yaml:"command" mapstructure:"command"`

	// Model is the single pinned model identifier passed to the command.
	Model string `yaml:"model" mapstructure:"model"`

	// APIKeyEnvVar names the environment variable holding the service credential.
	APIKeyEnvVar string `yaml:"api_key_env_var" mapstructure:"api_key_env_var"`

	// Timeout is the maximum duration for a single generation call.
	// Exceeding it is treated as service unavailability (a pause condition).
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// PipelineConfig contains settings for the workflow orchestrator.
type PipelineConfig struct {
	// RetryBound is the maximum number of fail/rejected transitions tolerated
	// before the pipeline is declared fatally failed.
	RetryBound int `yaml:"retry_bound" mapstructure:"retry_bound"`

	// RejectionPolicy selects where a validator rejection restarts the cycle:
	// "architecture" (default, safer) or "implementation".
	RejectionPolicy string `yaml:"rejection_policy" mapstructure:"rejection_policy"`

	// WorkDir is the working tree root. Defaults to the current directory.
	WorkDir string `yaml:"work_dir" mapstructure:"work_dir"`
}

// RejectionPolicy values.
const (
	// RejectionPolicyArchitecture restarts the cycle from the architecture
	// stage on validator rejection.
	RejectionPolicyArchitecture = "architecture"

	// RejectionPolicyImplementation restarts the cycle from the
	// implementation stage on validator rejection.
	RejectionPolicyImplementation = "implementation"
)

// ToolsConfig contains the quality-tool command lines. Each entry is a shell
// command line run against the working tree. The orchestrator only consumes
// the pass/fail result and diagnostic text.
type ToolsConfig struct {
	// Formatter checks code formatting.
	Formatter []string `yaml:"formatter" mapstructure:"formatter"`

	// Linter runs static analysis.
	Linter []string `yaml:"linter" mapstructure:"linter"`

	// TypeChecker runs type checking.
	TypeChecker []string `yaml:"type_checker" mapstructure:"type_checker"`

	// TestRunner executes the generated project's tests.
	TestRunner []string `yaml:"test_runner" mapstructure:"test_runner"`

	// Timeout is the per-tool execution limit.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// DeliveryConfig contains settings for the delivery dispatcher.
type DeliveryConfig struct {
	// OutputDir is where packaged deliveries are placed.
	// Defaults to <home>/deliveries under the crucible home.
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`

	// GitRemote is the remote name used by the GitHub packager's push.
	GitRemote string `yaml:"git_remote" mapstructure:"git_remote"`

	// RemoteURL is the repository URL the GitHub packager pushes to.
	// Leave empty to keep the delivery local.
	RemoteURL string `yaml:"remote_url" mapstructure:"remote_url"`

	// Push controls whether the GitHub packager pushes after committing.
	Push bool `yaml:"push" mapstructure:"push"`
}

// DefaultConfig returns a Config populated with built-in defaults.
// These values match setDefaults in load.go.
func DefaultConfig() *Config {
	return &Config{
		Generation: GenerationConfig{
			Command:      "crucible-gen",
			Model:        "gpt-4o-mini",
			APIKeyEnvVar: "OPENAI_API_KEY",
			Timeout:      constants.DefaultGenerationTimeout,
		},
		Pipeline: PipelineConfig{
			RetryBound:      constants.DefaultRetryBound,
			RejectionPolicy: RejectionPolicyArchitecture,
		},
		Tools: ToolsConfig{
			Formatter:   []string{"black --check ."},
			Linter:      []string{"pylint src"},
			TypeChecker: []string{"mypy src"},
			TestRunner:  []string{"pytest -q"},
			Timeout:     constants.DefaultToolTimeout,
		},
		Delivery: DeliveryConfig{
			GitRemote: "origin",
			Push:      false,
		},
	}
}
