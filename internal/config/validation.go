package config

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
)

// ValidateConfig checks cross-field constraints after defaults are applied.
func ValidateConfig(cfg *Config) error {
	v := &configurationValidator{config: cfg}
	for _, check := range []func() error{
		v.validateSource,
		v.validateGenerator,
		v.validateCompile,
		v.validateNotify,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

type configurationValidator struct {
	config *Config
}

func (cv *configurationValidator) validateSource() error {
	s := cv.config.Source
	if s.Owner() == "" || s.Name() == "" || strings.Count(s.Repository, "/") != 1 {
		return errors.ValidationError(fmt.Sprintf("source.repository must be owner/name, got %q", s.Repository)).
			WithContext("field", "source.repository").Build()
	}
	if s.Kind == SourceLocal && s.LocalDir == "" {
		return errors.ValidationError("source.local_dir is required for kind local").
			WithContext("field", "source.local_dir").Build()
	}
	return nil
}

func (cv *configurationValidator) validateGenerator() error {
	g := cv.config.Generator
	if strings.TrimSpace(g.PackageManager) == "" {
		return errors.ValidationError("generator.package_manager must not be empty").Build()
	}
	if strings.ContainsAny(g.PackageManager, " \t") {
		return errors.ValidationError("generator.package_manager must be a single executable").
			WithContext("value", g.PackageManager).Build()
	}
	if g.CommandTimeout < 0 || g.IdleTimeout < 0 || g.BuildTimeout < 0 {
		return errors.ValidationError("generator timeouts must not be negative").Build()
	}
	if (g.PatchFrom == "") != (g.PatchTo == "") {
		return errors.ValidationError("generator.patch_from and generator.patch_to must be set together").Build()
	}
	return nil
}

func (cv *configurationValidator) validateCompile() error {
	c := cv.config.Compile
	if (c.LinkMarker == "") != (c.LinkTemplate == "") {
		return errors.ValidationError("compile.link_marker and compile.link_template must be set together").Build()
	}
	if c.LinkTemplate != "" && !strings.Contains(c.LinkTemplate, "{tag}") {
		return errors.ValidationError("compile.link_template must contain {tag}").
			WithContext("value", c.LinkTemplate).Build()
	}
	for _, sb := range c.Sidebars {
		if strings.ContainsAny(sb, ". ") {
			return errors.ValidationError(fmt.Sprintf("invalid sidebar name %q", sb)).Build()
		}
	}
	return nil
}

func (cv *configurationValidator) validateNotify() error {
	n := cv.config.Notify
	if n.NATSURL != "" && strings.TrimSpace(n.Subject) == "" {
		return errors.ValidationError("notify.subject is required when notify.nats_url is set").Build()
	}
	return nil
}
