package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"git.home.luguber.info/inful/docpipe/internal/metrics"
	"git.home.luguber.info/inful/docpipe/internal/pipeline"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Project     string `arg:"" help:"Docusaurus project directory" type:"path"`
	Docs        string `arg:"" help:"Download root holding one staged directory per version" type:"path"`
	Publish     bool   `help:"Push the built site to the documentation repository"`
	Serve       bool   `help:"Serve the built site until interrupted"`
	MetricsFile string `name:"metrics-file" help:"Write Prometheus metrics to this textfile after the build" type:"path"`
}

func (b *BuildCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	cfg.Paths.ProjectDir = b.Project
	cfg.Paths.DownloadDir = b.Docs
	if b.MetricsFile != "" {
		cfg.Metrics.TextFile = b.MetricsFile
	}

	opts := []pipeline.Option{pipeline.WithLogger(g.Logger)}
	if cfg.Metrics.TextFile != "" {
		opts = append(opts, pipeline.WithPrometheus(metrics.NewPrometheusRecorder(nil, cfg.Metrics.Namespace)))
	}

	_, _ = fmt.Fprintln(stdout, "Starting docpipe build")
	report, err := pipeline.New(cfg, opts...).Build(ctx, pipeline.BuildOptions{Publish: b.Publish, Serve: b.Serve})
	if report != nil {
		printReport(report)
	}
	return err
}

func printReport(r *pipeline.Report) {
	_, _ = fmt.Fprintf(stdout, "Build %s in %s\n", r.Outcome, r.Duration().Round(time.Millisecond))
	if len(r.Versions) > 0 {
		_, _ = fmt.Fprintf(stdout, "Versions: %s\n", strings.Join(r.Versions, ", "))
	}
	if len(r.Dropped) > 0 {
		_, _ = fmt.Fprintf(stdout, "Skipped (shadowed): %s\n", strings.Join(r.Dropped, ", "))
	}
	if p := r.Published; p != nil {
		if p.Commit == "" {
			_, _ = fmt.Fprintf(stdout, "Published %s: no changes\n", p.Label)
		} else {
			_, _ = fmt.Fprintf(stdout, "Published %s to %s (%s)\n", p.Label, p.Target, p.Commit)
		}
	}
}
