package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/fetch"
	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
)

// FetchCmd implements the 'fetch' command.
type FetchCmd struct {
	Tag       string `arg:"" optional:"" help:"Release tag to stage (default: source.tag, else the newest release)"`
	Branch    string `help:"Stage a branch of the source repository instead of a release"`
	Local     string `help:"Stage a local directory instead of a release" type:"path"`
	List      bool   `help:"List releases carrying the documentation asset and exit"`
	Downloads string `name:"downloads" help:"Override paths.download_dir" type:"path"`
}

func (f *FetchCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	if f.Downloads != "" {
		cfg.Paths.DownloadDir = f.Downloads
	}
	if f.Branch != "" && f.Local != "" {
		return errors.ValidationError("--branch and --local are mutually exclusive").Build()
	}

	fetcher := fetch.New(cfg.Source, cfg.Paths, fetch.WithLogger(g.Logger))
	if f.List {
		return listReleases(ctx, fetcher)
	}

	res, err := f.stage(ctx, fetcher, cfg)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "Staged %s: %d files in %s\n", res.Label, res.Files, res.Dir)
	return nil
}

// stage picks the source from the flags, falling back to source.kind.
func (f *FetchCmd) stage(ctx context.Context, fetcher *fetch.Fetcher, cfg *config.Config) (*fetch.Result, error) {
	kind := cfg.Source.Kind
	switch {
	case f.Branch != "":
		kind = config.SourceBranch
	case f.Local != "":
		kind = config.SourceLocal
	case f.Tag != "":
		kind = config.SourceRelease
	}

	switch kind {
	case config.SourceBranch:
		branch := firstNonEmpty(f.Branch, cfg.Source.Branch)
		if branch == "" {
			return nil, errors.ValidationError("no branch to fetch").
				WithContext("hint", "pass --branch or set source.branch").UserAction().Build()
		}
		return fetcher.FetchBranch(ctx, branch)
	case config.SourceLocal:
		dir := firstNonEmpty(f.Local, cfg.Source.LocalDir)
		if dir == "" {
			return nil, errors.ValidationError("no local directory to fetch").
				WithContext("hint", "pass --local or set source.local_dir").UserAction().Build()
		}
		return fetcher.FetchLocal(ctx, dir, firstNonEmpty(f.Tag, cfg.Versions.CurrentTag))
	default:
		return fetcher.FetchRelease(ctx, firstNonEmpty(f.Tag, cfg.Source.Tag))
	}
}

func listReleases(ctx context.Context, fetcher *fetch.Fetcher) error {
	releases, err := fetcher.List(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TAG\tLABEL\tASSET")
	for _, r := range releases {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Tag, r.Version.SnapshotLabel(), r.AssetName)
	}
	return tw.Flush()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
