package config

import "time"

// Defaults reproduce the Phrasea documentation setup docpipe was built for.
const (
	DefaultConfigFile     = "docpipe.yaml"
	DefaultSourceRepo     = "alchemy-fr/phrasea"
	DefaultAssetName      = "phrasea-doc.zip"
	DefaultPackageManager = "pnpm"
	DefaultGeneratorFile  = "docusaurus.config.ts"
	DefaultPatchFrom      = "includeCurrentVersion: true"
	DefaultPatchTo        = "includeCurrentVersion: false"
	DefaultLinkMarker     = "(@phrasea-repo/"
	DefaultLinkTemplate   = "(https://github.com/alchemy-fr/phrasea/blob/{tag}/"
	DefaultNotifySubject  = "docpipe.builds"
	DefaultMetricsNS      = "docpipe"
	DefaultPublishBranch  = "main"
	DefaultPublishPath    = "docs"

	DefaultCommandTimeout = 60 * time.Second
	DefaultBuildTimeout   = 3600 * time.Second
	DefaultNotifyTimeout  = 5 * time.Second
)

var (
	DefaultAPIApps     = []string{"databox", "expose", "uploader"}
	DefaultSidebars    = []string{"techdocSidebar", "userdocSidebar"}
	DefaultMarkerFiles = []string{"_locales.yml", ".gitkeep"}
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills zero values. Explicitly configured values are never touched.
func applyDefaults(cfg *Config) {
	if cfg.Version == "" {
		cfg.Version = "1"
	}
	if cfg.Paths.ProjectDir == "" {
		cfg.Paths.ProjectDir = "."
	}
	if cfg.Paths.DownloadDir == "" {
		cfg.Paths.DownloadDir = "downloads"
	}

	s := &cfg.Source
	if s.Kind == "" {
		s.Kind = SourceRelease
	}
	if s.Repository == "" {
		s.Repository = DefaultSourceRepo
	}
	if s.AssetName == "" {
		s.AssetName = DefaultAssetName
	}

	g := &cfg.Generator
	if g.PackageManager == "" {
		g.PackageManager = DefaultPackageManager
	}
	if g.ConfigFile == "" {
		g.ConfigFile = DefaultGeneratorFile
	}
	if g.PatchFrom == "" && g.PatchTo == "" {
		g.PatchFrom, g.PatchTo = DefaultPatchFrom, DefaultPatchTo
	}
	if g.APIApps == nil {
		g.APIApps = append([]string(nil), DefaultAPIApps...)
	}
	if g.CommandTimeout == 0 {
		g.CommandTimeout = Duration(DefaultCommandTimeout)
	}
	if g.IdleTimeout == 0 {
		g.IdleTimeout = g.CommandTimeout
	}
	if g.BuildTimeout == 0 {
		g.BuildTimeout = Duration(DefaultBuildTimeout)
	}

	c := &cfg.Compile
	if c.LinkMarker == "" && c.LinkTemplate == "" {
		c.LinkMarker, c.LinkTemplate = DefaultLinkMarker, DefaultLinkTemplate
	}
	if len(c.Sidebars) == 0 {
		c.Sidebars = append([]string(nil), DefaultSidebars...)
	}
	if len(c.MarkerFiles) == 0 {
		c.MarkerFiles = append([]string(nil), DefaultMarkerFiles...)
	}

	p := &cfg.Publish
	if p.Branch == "" {
		p.Branch = DefaultPublishBranch
	}
	if p.Path == "" {
		p.Path = DefaultPublishPath
	}
	if p.AuthorName == "" {
		p.AuthorName = "docpipe"
	}
	if p.AuthorEmail == "" {
		p.AuthorEmail = "docpipe@localhost"
	}

	if cfg.Notify.Subject == "" {
		cfg.Notify.Subject = DefaultNotifySubject
	}
	if cfg.Notify.Timeout == 0 {
		cfg.Notify.Timeout = Duration(DefaultNotifyTimeout)
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNS
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogLevelInfo
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = LogFormatText
	}
}
