package config

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/crucidev/crucible/internal/constants"
	"github.com/crucidev/crucible/internal/errors"
)

// newViperInstance creates a new Viper instance with standard Crucible
// configuration: environment variable prefix (CRUCIBLE_), key replacer,
// and built-in defaults.
func newViperInstance() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// isConfigNotFoundError returns true if the error is a viper config file not found error.
func isConfigNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var configNotFoundErr viper.ConfigFileNotFoundError
	return stderrors.As(err, &configNotFoundErr)
}

// Load reads configuration from all available sources with proper precedence.
// Missing config files are not errors; many scenarios run on defaults alone.
func Load(ctx context.Context) (*Config, error) {
	v := newViperInstance()

	// Global config first (lower precedence), then project config merges over it.
	if err := loadGlobalConfig(v); err != nil {
		return nil, err
	}
	if err := loadProjectConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viperDecoderOption()); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	logger := zerolog.Ctx(ctx).With().Str("component", "config").Logger()
	logger.Debug().
		Str("generation.model", cfg.Generation.Model).
		Int("pipeline.retry_bound", cfg.Pipeline.RetryBound).
		Str("pipeline.rejection_policy", cfg.Pipeline.RejectionPolicy).
		Msg("configuration loaded and unmarshaled")

	if err := Validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return &cfg, nil
}

// LoadFromPaths loads configuration from explicit file paths. Intended for
// tests and tooling that must not depend on the ambient filesystem layout.
// Either path may be empty to skip that layer.
func LoadFromPaths(_ context.Context, projectConfigPath, globalConfigPath string) (*Config, error) {
	v := newViperInstance()

	for _, path := range []string{globalConfigPath, projectConfigPath} {
		if path == "" {
			continue
		}
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil && !isConfigNotFoundError(err) {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viperDecoderOption()); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := Validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}

// loadGlobalConfig attempts to load ~/.crucible/config.yaml.
// Returns nil if the file doesn't exist or home directory cannot be determined.
func loadGlobalConfig(v *viper.Viper) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil //nolint:nilerr // missing home dir just skips the layer
	}
	path := filepath.Join(home, constants.CrucibleHome, "config.yaml")
	if _, err := os.Stat(path); err != nil {
		return nil //nolint:nilerr // absent global config is expected
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil && !isConfigNotFoundError(err) {
		return errors.Wrap(err, "failed to read global config file")
	}
	return nil
}

// loadProjectConfig attempts to load .crucible/config.yaml in the current directory.
func loadProjectConfig(v *viper.Viper) error {
	path := filepath.Join(constants.CrucibleHome, "config.yaml")
	if _, err := os.Stat(path); err != nil {
		return nil //nolint:nilerr // absent project config is expected
	}
	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil && !isConfigNotFoundError(err) {
		return errors.Wrap(err, "failed to read project config file")
	}
	return nil
}

// setDefaults configures all default values on the Viper instance.
// These defaults match DefaultConfig().
// IMPORTANT: Keys must match the YAML tag names exactly for proper mapping.
func setDefaults(v *viper.Viper) {
	v.SetDefault("generation.command", "crucible-gen")
	v.SetDefault("generation.model", "gpt-4o-mini")
	v.SetDefault("generation.api_key_env_var", "OPENAI_API_KEY")
	v.SetDefault("generation.timeout", constants.DefaultGenerationTimeout.String())

	v.SetDefault("pipeline.retry_bound", constants.DefaultRetryBound)
	v.SetDefault("pipeline.rejection_policy", RejectionPolicyArchitecture)
	v.SetDefault("pipeline.work_dir", "")

	v.SetDefault("tools.formatter", []string{"black --check ."})
	v.SetDefault("tools.linter", []string{"pylint src"})
	v.SetDefault("tools.type_checker", []string{"mypy src"})
	v.SetDefault("tools.test_runner", []string{"pytest -q"})
	v.SetDefault("tools.timeout", constants.DefaultToolTimeout.String())

	v.SetDefault("delivery.output_dir", "")
	v.SetDefault("delivery.git_remote", "origin")
	v.SetDefault("delivery.remote_url", "")
	v.SetDefault("delivery.push", false)
}

// viperDecoderOption returns the decoder options for Viper unmarshal.
// This configures mapstructure to handle time.Duration conversion from strings.
func viperDecoderOption() viper.DecoderConfigOption {
	return viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	)
}
