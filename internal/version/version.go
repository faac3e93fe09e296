package version

// Version is the docpipe release, set at link time:
// go build -ldflags "-X git.home.luguber.info/inful/docpipe/internal/version.Version=v1.0.0".
var Version = "unknown"

// Build metadata, also injected via ldflags.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the version line printed by `docpipe --version`.
func String() string {
	if GitCommit == "unknown" {
		return "docpipe " + Version
	}
	return "docpipe " + Version + " (" + GitCommit + ", " + BuildTime + ")"
}
