// Package runner executes external commands (the package manager and the
// site generator) from typed argument vectors, with timeouts, idle
// detection, live output and captured output for build artifacts.
package runner

import (
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Command is an argument vector plus execution policy. It is never
// passed through a shell.
type Command struct {
	Name        string
	Args        []string
	Dir         string
	Env         []string // extra KEY=VALUE pairs on top of the process environment
	Timeout     time.Duration
	IdleTimeout time.Duration
	// BestEffort downgrades a failed exit to a logged warning.
	BestEffort bool
}

// New starts building a command.
func New(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

// In sets the working directory.
func (c Command) In(dir string) Command {
	c.Dir = dir
	return c
}

// WithTimeout sets the wall-clock limit; zero means none.
func (c Command) WithTimeout(d time.Duration) Command {
	c.Timeout = d
	return c
}

// WithIdleTimeout kills the command after d without any output; zero means none.
func (c Command) WithIdleTimeout(d time.Duration) Command {
	c.IdleTimeout = d
	return c
}

// WithEnv appends KEY=VALUE pairs.
func (c Command) WithEnv(kv ...string) Command {
	c.Env = append(append([]string(nil), c.Env...), kv...)
	return c
}

// AsBestEffort marks the command as non-fatal.
func (c Command) AsBestEffort() Command {
	c.BestEffort = true
	return c
}

// String renders the unsubstituted command line for logs. {{VAR}} tokens stay as written.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, quote(c.Name))
	for _, a := range c.Args {
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\n'\"\\$`") {
		return strconv.Quote(s)
	}
	return s
}

var envToken = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Expand replaces {{VAR}} tokens in every argument with values from lookup.
// It returns the names that were not set.
func (c Command) Expand(lookup func(string) (string, bool)) (args []string, missing []string) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	args = make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = envToken.ReplaceAllStringFunc(a, func(tok string) string {
			name := envToken.FindStringSubmatch(tok)[1]
			v, ok := lookup(name)
			if !ok {
				missing = append(missing, name)
			}
			return v
		})
	}
	return args, missing
}
