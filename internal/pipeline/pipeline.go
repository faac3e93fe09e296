package pipeline

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docpipe/internal/compiler"
	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
	"git.home.luguber.info/inful/docpipe/internal/merge"
	"git.home.luguber.info/inful/docpipe/internal/metrics"
	"git.home.luguber.info/inful/docpipe/internal/notify"
	"git.home.luguber.info/inful/docpipe/internal/publish"
	"git.home.luguber.info/inful/docpipe/internal/runner"
	"git.home.luguber.info/inful/docpipe/internal/sidebar"
	"git.home.luguber.info/inful/docpipe/internal/versioning"
)

// BuildOptions selects the optional tail of a build.
type BuildOptions struct {
	// Publish pushes the built site to the documentation repository.
	Publish bool
	// Serve runs `<pm> run serve` after a successful build until ctx is cancelled.
	Serve bool
}

// BuildState carries mutable state across stages.
type BuildState struct {
	Options  BuildOptions
	Versions []versioning.Tag
	Report   *Report
	// SiteOutput is the captured final build output.
	SiteOutput *runner.Output
}

// Pipeline runs builds against one generator project and download root.
type Pipeline struct {
	cfg      *config.Config
	logger   *slog.Logger
	out      io.Writer
	recorder metrics.Recorder
	textfile func(path string) error
	notifier *notify.Notifier
	newRunID func() string
}

// run holds the components of one build, all logging with its run ID.
type run struct {
	cfg       *config.Config
	logger    *slog.Logger
	recorder  metrics.Recorder
	runner    *runner.Runner
	commands  sidebar.CommandRunner
	compiler  *compiler.Compiler
	merger    *merge.Merger
	sidebars  *sidebar.Generator
	publisher *publish.Publisher
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(p *Pipeline) { p.logger = l } }

// WithOutput streams subprocess output to w (os.Stdout by default).
func WithOutput(w io.Writer) Option { return func(p *Pipeline) { p.out = w } }

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option { return func(p *Pipeline) { p.recorder = r } }

// WithPrometheus records into a Prometheus registry written to the configured textfile after each build.
func WithPrometheus(pr *metrics.PrometheusRecorder) Option {
	return func(p *Pipeline) {
		p.recorder = pr
		p.textfile = pr.WriteTextfile
	}
}

// WithNotifier overrides the build event notifier.
func WithNotifier(n *notify.Notifier) Option { return func(p *Pipeline) { p.notifier = n } }

// WithRunID fixes the run identifier.
func WithRunID(id string) Option { return func(p *Pipeline) { p.newRunID = func() string { return id } } }

// New creates a pipeline for cfg.
func New(cfg *config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:      cfg,
		logger:   slog.Default(),
		out:      os.Stdout,
		recorder: metrics.NoopRecorder{},
		newRunID: uuid.NewString,
	}
	for _, o := range opts {
		o(p)
	}
	if p.notifier == nil {
		p.notifier = notify.New(cfg.Notify, p.logger, nil)
	}
	return p
}

func (p *Pipeline) newRun(runID string) *run {
	cfg := p.cfg
	logger := p.logger.With(logfields.RunID(runID))
	r := &run{cfg: cfg, logger: logger, recorder: p.recorder}
	r.runner = runner.NewRunner(p.out, logger)
	r.commands = &recordingRunner{runner: r.runner, recorder: p.recorder}
	r.compiler = compiler.New(cfg.Paths, cfg.Compile, cfg.Release, compiler.WithLogger(logger))
	r.merger = merge.New(logger)
	r.sidebars = &sidebar.Generator{
		ProjectDir:     cfg.Paths.ProjectDir,
		PackageManager: cfg.Generator.PackageManager,
		Timeout:        cfg.Generator.CommandTimeout.Std(),
		Runner:         r.commands,
		Logger:         logger,
	}
	r.publisher = publish.New(cfg.Publish, cfg.Paths.WorkspaceDir, logger)
	return r
}

// Build runs every stage and the post-build hooks.
func (p *Pipeline) Build(ctx context.Context, opts BuildOptions) (*Report, error) {
	if opts.Publish && !p.cfg.Publish.Enabled() {
		return nil, errors.ValidationError("publishing requires publish.repository and a token").
			WithContext("repository", p.cfg.Publish.Repository).Build()
	}

	runID := p.newRunID()
	r := p.newRun(runID)
	bs := &BuildState{Options: opts, Report: newReport(runID)}
	r.logger.Info("Build started",
		logfields.Dir(p.cfg.Paths.DownloadDir), logfields.Target(p.cfg.Paths.ProjectDir),
		slog.String("refname", p.cfg.Release.RefName), slog.String("reftype", p.cfg.Release.RefType))

	stages := []StageDef{
		{StageDiscover, r.stageDiscover},
		{StageReset, r.stageReset},
		{StageVersions, r.stageVersions},
		{StageSite, r.stageSite},
	}
	if opts.Publish {
		stages = append(stages, StageDef{StagePublish, r.stagePublish})
	}

	err := r.runStages(ctx, bs, stages)
	bs.Report.finish(err)
	p.afterBuild(ctx, r.logger, bs)

	if err != nil {
		return bs.Report, err
	}
	if opts.Serve {
		return bs.Report, r.serve(ctx)
	}
	return bs.Report, nil
}

// afterBuild records the outcome, publishes the build event and writes the metrics textfile.
func (p *Pipeline) afterBuild(ctx context.Context, logger *slog.Logger, bs *BuildState) {
	r := bs.Report
	p.recorder.ObserveBuildDuration(r.Duration())
	p.recorder.IncBuildOutcome(r.Outcome)
	p.recorder.SetVersions(len(r.Versions))

	if p.notifier.Enabled() {
		// Sent even when ctx is already cancelled.
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.Notify.Timeout.Std()+time.Second)
		ev := notify.NewBuildEvent(r.RunID, p.cfg.Release, r.Versions, r.Duration(), r.Err)
		_ = p.notifier.Notify(nctx, ev)
		cancel()
	}

	if p.textfile != nil && p.cfg.Metrics.TextFile != "" {
		if err := p.textfile(p.cfg.Metrics.TextFile); err != nil {
			logger.Warn("Failed to write metrics textfile", logfields.Path(p.cfg.Metrics.TextFile), logfields.Error(err))
		}
	}

	level := slog.LevelInfo
	if r.Err != nil {
		level = slog.LevelError
	}
	logger.Log(ctx, level, "Build finished",
		slog.String("outcome", string(r.Outcome)),
		logfields.Count(len(r.Versions)),
		logfields.Duration(r.Duration()))
}

// serve runs the generator's local server until ctx is cancelled.
func (r *run) serve(ctx context.Context) error {
	cmd := runner.New(r.cfg.Generator.PackageManager, "run", "serve").In(r.cfg.Paths.ProjectDir)
	_, err := r.runner.Run(ctx, cmd)
	if err != nil && ctx.Err() != nil {
		r.logger.Info("Server stopped")
		return nil
	}
	return err
}

// siteDir is where the generator writes the built site.
func (r *run) siteDir() string {
	return filepath.Join(r.cfg.Paths.ProjectDir, "build")
}

// recordingRunner times generator subprocesses into the recorder.
type recordingRunner struct {
	runner   *runner.Runner
	recorder metrics.Recorder
}

func (r *recordingRunner) Run(ctx context.Context, cmd runner.Command) (*runner.Output, error) {
	start := time.Now()
	out, err := r.runner.Run(ctx, cmd)
	r.recorder.ObserveCommandDuration(commandLabel(cmd), time.Since(start), err == nil)
	return out, err
}

// commandLabel names a generator command by its script, e.g. "build" or "docs:version".
func commandLabel(cmd runner.Command) string {
	args := cmd.Args
	if len(args) > 0 && args[0] == "run" {
		args = args[1:]
	}
	if len(args) > 1 && args[0] == "docusaurus" {
		return args[1]
	}
	if len(args) > 0 {
		return args[0]
	}
	return filepath.Base(cmd.Name)
}
