package config

import (
	"fmt"

	"github.com/crucidev/crucible/internal/errors"
)

// Validate checks the configuration for invalid values.
// Returns a wrapped sentinel error naming the offending section and key.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.ErrConfigNil
	}
	if err := validateGeneration(&cfg.Generation); err != nil {
		return err
	}
	if err := validatePipeline(&cfg.Pipeline); err != nil {
		return err
	}
	return validateTools(&cfg.Tools)
}

func validateGeneration(g *GenerationConfig) error {
	if g.Command == "" {
		return fmt.Errorf("%w: generation.command %s", errors.ErrConfigInvalidGeneration, errors.ErrEmptyValue)
	}
	if g.Model == "" {
		return fmt.Errorf("%w: generation.model %s", errors.ErrConfigInvalidGeneration, errors.ErrEmptyValue)
	}
	if g.Timeout <= 0 {
		return fmt.Errorf("%w: generation.timeout must be positive, got %s", errors.ErrConfigInvalidGeneration, g.Timeout)
	}
	return nil
}

func validatePipeline(p *PipelineConfig) error {
	if p.RetryBound < 1 {
		return fmt.Errorf("%w: pipeline.retry_bound must be at least 1, got %d", errors.ErrConfigInvalidPipeline, p.RetryBound)
	}
	switch p.RejectionPolicy {
	case RejectionPolicyArchitecture, RejectionPolicyImplementation:
		return nil
	}
	return fmt.Errorf("%w: pipeline.rejection_policy must be %q or %q, got %q",
		errors.ErrConfigInvalidPipeline, RejectionPolicyArchitecture, RejectionPolicyImplementation, p.RejectionPolicy)
}

func validateTools(t *ToolsConfig) error {
	if t.Timeout <= 0 {
		return fmt.Errorf("%w: tools.timeout must be positive, got %s", errors.ErrConfigInvalidTools, t.Timeout)
	}
	return nil
}
