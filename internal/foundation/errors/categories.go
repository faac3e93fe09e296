package errors

// ErrorCategory classifies an error for exit codes and log routing.
type ErrorCategory string

const (
	// User input: configuration, flags, missing tags and directories.
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"
	CategoryAuth       ErrorCategory = "auth"
	CategoryNotFound   ErrorCategory = "not_found"

	// Remote systems: release downloads, clones and pushes.
	CategoryNetwork ErrorCategory = "network"
	CategoryGit     ErrorCategory = "git"
	CategoryGitHub  ErrorCategory = "github"

	// Local build work: staging, compiling and generator subprocesses.
	CategoryFileSystem ErrorCategory = "filesystem"
	CategoryCommand    ErrorCategory = "command"
	CategoryGenerator  ErrorCategory = "generator"

	CategoryRuntime  ErrorCategory = "runtime"
	CategoryInternal ErrorCategory = "internal"
)

// ExitCode is the process status docpipe exits with for the category.
func (c ErrorCategory) ExitCode() int {
	switch c {
	case CategoryValidation:
		return 2
	case CategoryNotFound:
		return 4
	case CategoryAuth:
		return 5
	case CategoryConfig:
		return 7
	case CategoryNetwork, CategoryGit, CategoryGitHub:
		return 8
	case CategoryInternal:
		return 10
	case CategoryFileSystem, CategoryCommand, CategoryGenerator:
		return 11
	case CategoryRuntime:
		return 12
	default:
		return 1
	}
}

// ErrorSeverity indicates whether the run can continue.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"
	SeverityError   ErrorSeverity = "error"
	SeverityWarning ErrorSeverity = "warning"
)

// ErrorContext holds structured fields logged alongside an error.
type ErrorContext map[string]any

// with returns a copy of c carrying key.
func (c ErrorContext) with(key string, value any) ErrorContext {
	out := make(ErrorContext, len(c)+1)
	for k, v := range c {
		out[k] = v
	}
	out[key] = value
	return out
}

// String returns the value of key when it is a string.
func (c ErrorContext) String(key string) (string, bool) {
	s, ok := c[key].(string)
	return s, ok
}
