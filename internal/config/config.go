package config

import (
	"path/filepath"
	"strings"
)

// Config is the docpipe configuration file (docpipe.yaml).
type Config struct {
	Version   string          `yaml:"version"`
	Paths     Paths           `yaml:"paths"`
	Source    SourceConfig    `yaml:"source"`
	Generator GeneratorConfig `yaml:"generator"`
	Compile   CompileConfig   `yaml:"compile"`
	Versions  VersionsConfig  `yaml:"versions"`
	Publish   PublishConfig   `yaml:"publish"`
	Notify    NotifyConfig    `yaml:"notify"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Release   ReleaseInfo     `yaml:"release"`
}

// Paths groups the directories every component is constructed with.
// CLI positional arguments override ProjectDir and DownloadDir.
type Paths struct {
	ProjectDir   string `yaml:"project_dir"`   // Docusaurus project root
	DownloadDir  string `yaml:"download_dir"`  // <downloadRoot>, one subdirectory per tag
	WorkspaceDir string `yaml:"workspace_dir"` // scratch space for downloads and publish clones; empty means os.TempDir
}

// SourceKind selects where `docpipe fetch` obtains documentation.
type SourceKind string

const (
	SourceRelease SourceKind = "release"
	SourceBranch  SourceKind = "branch"
	SourceLocal   SourceKind = "local"
)

// SourceConfig describes the repository publishing documentation fragments.
type SourceConfig struct {
	Kind       SourceKind `yaml:"kind"`
	Repository string     `yaml:"repository"` // owner/name on GitHub
	APIURL     string     `yaml:"api_url,omitempty"`
	CloneURL   string     `yaml:"clone_url,omitempty"` // defaults to https://github.com/<repository>.git
	AssetName  string     `yaml:"asset_name"`
	Token      string     `yaml:"token,omitempty"`
	Tag        string     `yaml:"tag,omitempty"`
	Branch     string     `yaml:"branch,omitempty"`
	LocalDir   string     `yaml:"local_dir,omitempty"`
}

// Owner returns the repository owner, or "" when Repository is malformed.
func (s SourceConfig) Owner() string {
	owner, _, _ := strings.Cut(s.Repository, "/")
	return owner
}

// Name returns the repository name.
func (s SourceConfig) Name() string {
	_, name, _ := strings.Cut(s.Repository, "/")
	return name
}

// ResolvedCloneURL returns CloneURL or the GitHub https URL of Repository.
func (s SourceConfig) ResolvedCloneURL() string {
	if s.CloneURL != "" {
		return s.CloneURL
	}
	return "https://github.com/" + s.Repository + ".git"
}

// GeneratorConfig describes how the external site generator is driven.
type GeneratorConfig struct {
	PackageManager string   `yaml:"package_manager"` // executable, e.g. pnpm
	ConfigFile     string   `yaml:"config_file"`     // relative to the project dir
	PatchFrom      string   `yaml:"patch_from"`
	PatchTo        string   `yaml:"patch_to"`
	APIApps        []string `yaml:"api_apps"`
	CommandTimeout Duration `yaml:"command_timeout"`
	IdleTimeout    Duration `yaml:"idle_timeout"`
	BuildTimeout   Duration `yaml:"build_timeout"`
}

// CompileConfig tunes the locale-aware compiler.
type CompileConfig struct {
	LinkMarker   string   `yaml:"link_marker"`
	LinkTemplate string   `yaml:"link_template"` // {tag} is replaced by the version tag
	Sidebars     []string `yaml:"sidebars"`
	MarkerFiles  []string `yaml:"marker_files"`
}

// LinkTarget resolves LinkTemplate for tag.
func (c CompileConfig) LinkTarget(tag string) string {
	return strings.ReplaceAll(c.LinkTemplate, "{tag}", tag)
}

// VersionsConfig controls snapshot ordering.
type VersionsConfig struct {
	// CurrentTag always sorts last, becoming the generator's latest view.
	CurrentTag string `yaml:"current_tag,omitempty"`
}

// PublishConfig describes the documentation repository the built site is pushed to.
type PublishConfig struct {
	Repository  string `yaml:"repository,omitempty"` // clone URL
	Branch      string `yaml:"branch"`
	Path        string `yaml:"path"` // directory inside the clone receiving <label>/
	Token       string `yaml:"token,omitempty"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// Enabled reports whether publishing has the repository and credentials it needs.
func (p PublishConfig) Enabled() bool {
	return p.Repository != "" && p.Token != ""
}

// NotifyConfig configures the optional NATS build event.
type NotifyConfig struct {
	NATSURL string   `yaml:"nats_url,omitempty"`
	Subject string   `yaml:"subject"`
	Timeout Duration `yaml:"timeout"`
}

// MetricsConfig configures the Prometheus textfile written after a build.
type MetricsConfig struct {
	TextFile  string `yaml:"textfile,omitempty"`
	Namespace string `yaml:"namespace"`
}

// LoggingConfig selects log verbosity and encoding.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// ReleaseInfo is build provenance, normally injected by CI through DOCPIPE_REF* variables.
type ReleaseInfo struct {
	RefName  string `yaml:"refname,omitempty"`
	RefType  string `yaml:"reftype,omitempty"`
	DateTime string `yaml:"datetime,omitempty"`
}

// ConfigPath returns the absolute path of the generator config file.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.Paths.ProjectDir, c.Generator.ConfigFile)
}
