package config

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/docpipe/internal/foundation/normalization"
)

var sourceKindNormalizer = normalization.NewNormalizer(map[string]SourceKind{
	"release": SourceRelease,
	"branch":  SourceBranch,
	"local":   SourceLocal,
}, SourceRelease)

// NormalizeResult lists the adjustments made while normalizing.
type NormalizeResult struct {
	Warnings []string
}

// NormalizeConfig case-folds enumerations and trims string lists in place.
// Unknown enum values are errors, not silent defaults.
func NormalizeConfig(cfg *Config) (*NormalizeResult, error) {
	res := &NormalizeResult{}

	level, err := logLevelNormalizer.NormalizeWithError(string(cfg.Logging.Level))
	if err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}
	if string(level) != string(cfg.Logging.Level) && cfg.Logging.Level != "" {
		res.Warnings = append(res.Warnings, fmt.Sprintf("normalized logging.level from %q to %q", cfg.Logging.Level, level))
	}
	cfg.Logging.Level = level

	format, err := logFormatNormalizer.NormalizeWithError(string(cfg.Logging.Format))
	if err != nil {
		return nil, fmt.Errorf("logging.format: %w", err)
	}
	cfg.Logging.Format = format

	kind, err := sourceKindNormalizer.NormalizeWithError(string(cfg.Source.Kind))
	if err != nil {
		return nil, fmt.Errorf("source.kind: %w", err)
	}
	cfg.Source.Kind = kind

	cfg.Generator.APIApps = trimList(cfg.Generator.APIApps)
	cfg.Compile.Sidebars = trimList(cfg.Compile.Sidebars)
	cfg.Compile.MarkerFiles = trimList(cfg.Compile.MarkerFiles)
	cfg.Source.Repository = strings.Trim(strings.TrimSpace(cfg.Source.Repository), "/")

	return res, nil
}

func trimList(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
