package commands

import (
	"context"
	"fmt"
	"time"

	"git.home.luguber.info/inful/docpipe/internal/compiler"
	"git.home.luguber.info/inful/docpipe/internal/preview"
)

// PreviewCmd compiles a local docs directory and recompiles it on change.
type PreviewCmd struct {
	Project  string `arg:"" help:"Docusaurus project directory" type:"path"`
	Docs     string `arg:"" help:"Local documentation directory to watch" type:"path"`
	Tag      string `help:"Tag used for repository links (default: versions.current_tag, else main)"`
	Debounce time.Duration `help:"Quiet period before recompiling" default:"300ms"`
}

func (p *PreviewCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	cfg.Paths.ProjectDir = p.Project
	tag := firstNonEmpty(p.Tag, cfg.Versions.CurrentTag, "main")

	c := compiler.New(cfg.Paths, cfg.Compile, cfg.Release, compiler.WithLogger(g.Logger))
	opts := []preview.Option{preview.WithLogger(g.Logger)}
	if p.Debounce > 0 {
		opts = append(opts, preview.WithDebounce(p.Debounce))
	}

	pv, err := preview.New(p.Docs, tag, c, opts...)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "Previewing %s into %s (Ctrl+C to stop)\n", p.Docs, p.Project)
	return pv.Run(ctx)
}
