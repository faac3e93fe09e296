package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
)

// Load reads configPath, expanding ${VAR} references against the environment
// (after .env files are loaded), then normalizes, defaults and validates it.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.ConfigError(fmt.Sprintf("configuration file not found: %s", configPath)).Build()
		}
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read config file").
			WithContext("file", configPath).Build()
	}
	return parse(data, configPath)
}

// LoadOrDefault is Load, except that a missing file yields Default() with
// environment overrides applied. Every docpipe setting has a usable default.
func LoadOrDefault(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); stderrors.Is(err, fs.ErrNotExist) {
		slog.Debug("No configuration file, using defaults", logfields.Path(configPath))
		return parse(nil, "")
	}
	return Load(configPath)
}

func parse(data []byte, source string) (*Config, error) {
	loaded, err := loadEnvFiles()
	if err != nil {
		slog.Warn("Could not load env file", logfields.Error(err))
	}
	for _, name := range loaded {
		slog.Debug("Loaded environment variables", logfields.Path(name))
	}

	var cfg Config
	if len(data) > 0 {
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, errors.WrapError(err, errors.CategoryConfig, "failed to parse config").
				WithContext("file", source).Build()
		}
	}

	applyEnvOverrides(&cfg)

	nres, err := NormalizeConfig(&cfg)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "invalid configuration").
			WithContext("file", source).Build()
	}
	for _, w := range nres.Warnings {
		slog.Warn("Config normalization", slog.String("warning", w))
	}

	applyDefaults(&cfg)

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Init writes an example configuration to configPath.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ValidationError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", configPath)).Build()
	}

	example := Default()
	example.Paths = Paths{ProjectDir: "./docusaurus/phrasea", DownloadDir: "./downloads"}
	example.Versions.CurrentTag = "main"
	example.Source.Token = "${DOCPIPE_GITHUB_TOKEN}"
	example.Publish.Repository = "https://github.com/your-org/documentation.git"
	example.Publish.Token = "${DOCPIPE_GITHUB_TOKEN}"
	example.Metrics.TextFile = "./build/docpipe.prom"

	data, err := yaml.Marshal(example)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to marshal example config").Build()
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write config file").
			WithContext("file", configPath).Build()
	}
	return nil
}
