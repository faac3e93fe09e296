// Package pipeline orchestrates a documentation build.
//
// A build runs named stages in order: discover staged versions, reset the
// generator project, compile every version into a generator snapshot, and
// build the site with the generator config temporarily patched. Publishing
// follows when requested. Each stage is timed and recorded; the first
// failing stage aborts the build. After the stages a build event is
// published and the metrics textfile written, whatever the outcome.
package pipeline
