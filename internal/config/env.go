package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables read by docpipe.
const (
	EnvRefName     = "DOCPIPE_REFNAME"
	EnvRefType     = "DOCPIPE_REFTYPE"
	EnvDateTime    = "DOCPIPE_DATETIME"
	EnvTag         = "DOCPIPE_TAG"
	EnvBranch      = "DOCPIPE_BRANCH"
	EnvGitHubToken = "DOCPIPE_GITHUB_TOKEN"
	EnvSourceRepo  = "DOCPIPE_SOURCE_REPO"
	EnvDocRepo     = "DOCPIPE_DOC_REPO"
	EnvDocBranch   = "DOCPIPE_DOC_BRANCH"
	EnvLogLevel    = "DOCPIPE_LOG_LEVEL"
	EnvLogFormat   = "DOCPIPE_LOG_FORMAT"
)

var envFiles = []string{".env", ".env.local"}

// loadEnvFiles loads .env and .env.local when present.
// godotenv never overrides variables already set in the process.
func loadEnvFiles() ([]string, error) {
	var loaded []string
	for _, name := range envFiles {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			return loaded, fmt.Errorf("load %s: %w", name, err)
		}
		loaded = append(loaded, name)
	}
	return loaded, nil
}

// applyEnvOverrides copies DOCPIPE_* variables over the file values.
func applyEnvOverrides(cfg *Config) {
	override := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	override(&cfg.Release.RefName, EnvRefName)
	override(&cfg.Release.RefType, EnvRefType)
	override(&cfg.Release.DateTime, EnvDateTime)
	override(&cfg.Source.Tag, EnvTag)
	override(&cfg.Source.Branch, EnvBranch)
	override(&cfg.Source.Repository, EnvSourceRepo)
	override(&cfg.Publish.Repository, EnvDocRepo)
	override(&cfg.Publish.Branch, EnvDocBranch)

	if token := os.Getenv(EnvGitHubToken); token != "" {
		if cfg.Source.Token == "" {
			cfg.Source.Token = token
		}
		if cfg.Publish.Token == "" {
			cfg.Publish.Token = token
		}
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = LogLevel(v)
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.Logging.Format = LogFormat(v)
	}
}
