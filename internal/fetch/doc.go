// Package fetch stages documentation sources under <downloadRoot>/<label>/.
//
// Three sources are supported: a GitHub release carrying the documentation
// archive asset, a shallow clone of a branch, and a local directory. Every
// fetch replaces the staged directory wholesale. Failures are not retried.
package fetch
