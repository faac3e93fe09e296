// Package git wraps the go-git operations docpipe needs: shallow clones of
// the documentation source, and clone/commit/push of the documentation site
// repository. Failures are returned as classified errors.
package git
