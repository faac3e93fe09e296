package pipeline

import (
	"context"
	"fmt"
	"time"

	"git.home.luguber.info/inful/docpipe/internal/logfields"
	"git.home.luguber.info/inful/docpipe/internal/metrics"
)

// StageName identifies a pipeline stage.
type StageName string

const (
	StageDiscover StageName = "discover_versions"
	StageReset    StageName = "reset_project"
	StageVersions StageName = "compile_versions"
	StageSite     StageName = "site_build"
	StagePublish  StageName = "publish"
)

// StageErrorKind enumerates structured stage error categories.
type StageErrorKind string

const (
	StageErrorFatal    StageErrorKind = "fatal"
	StageErrorCanceled StageErrorKind = "canceled"
)

// StageError is a structured error carrying the failing stage and underlying cause.
type StageError struct {
	Kind  StageErrorKind
	Stage StageName
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage %s: %v", e.Kind, e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// Stage is a discrete unit of work in a build.
type Stage func(ctx context.Context, bs *BuildState) error

// StageDef pairs a stage with its name.
type StageDef struct {
	Name StageName
	Fn   Stage
}

// runStages executes stages in order, recording timing and stopping on the first error.
func (r *run) runStages(ctx context.Context, bs *BuildState, stages []StageDef) error {
	for _, st := range stages {
		select {
		case <-ctx.Done():
			bs.Report.recordStage(st.Name, 0, metrics.ResultCanceled, r.recorder)
			return &StageError{Kind: StageErrorCanceled, Stage: st.Name, Err: ctx.Err()}
		default:
		}

		r.logger.Debug("Stage started", logfields.Stage(string(st.Name)))
		t0 := time.Now()
		err := st.Fn(ctx, bs)
		dur := time.Since(t0)

		if err == nil {
			bs.Report.recordStage(st.Name, dur, metrics.ResultSuccess, r.recorder)
			r.logger.Info("Stage completed", logfields.Stage(string(st.Name)), logfields.Duration(dur))
			continue
		}
		if ctx.Err() != nil {
			bs.Report.recordStage(st.Name, dur, metrics.ResultCanceled, r.recorder)
			return &StageError{Kind: StageErrorCanceled, Stage: st.Name, Err: err}
		}
		bs.Report.recordStage(st.Name, dur, metrics.ResultFatal, r.recorder)
		r.logger.Error("Stage failed", logfields.Stage(string(st.Name)), logfields.Duration(dur), logfields.Error(err))
		return &StageError{Kind: StageErrorFatal, Stage: st.Name, Err: err}
	}
	return nil
}
