// Package workspace manages the directories docpipe writes into outside the
// generator project: per-tag staging directories and throwaway directories
// for archive downloads and publish clones.
package workspace
