package pipeline

import (
	stderrors "errors"
	"time"

	"git.home.luguber.info/inful/docpipe/internal/metrics"
	"git.home.luguber.info/inful/docpipe/internal/publish"
)

// Report summarizes a build.
type Report struct {
	RunID          string
	Start          time.Time
	End            time.Time
	Versions       []string // compiled tags, in snapshot order
	Dropped        []string // tags shadowed by a higher tag with the same snapshot label
	StageDurations map[StageName]time.Duration
	StageResults   map[StageName]metrics.ResultLabel
	Artifacts      []string
	Published      *publish.Result
	Outcome        metrics.BuildOutcomeLabel
	Err            error
}

func newReport(runID string) *Report {
	return &Report{
		RunID:          runID,
		Start:          time.Now(),
		StageDurations: make(map[StageName]time.Duration),
		StageResults:   make(map[StageName]metrics.ResultLabel),
	}
}

func (r *Report) recordStage(name StageName, d time.Duration, result metrics.ResultLabel, rec metrics.Recorder) {
	r.StageDurations[name] = d
	r.StageResults[name] = result
	rec.ObserveStageDuration(string(name), d)
	rec.IncStageResult(string(name), result)
}

// finish derives the outcome from err and stamps End.
func (r *Report) finish(err error) {
	r.End = time.Now()
	r.Err = err
	var se *StageError
	switch {
	case err == nil:
		r.Outcome = metrics.BuildOutcomeSuccess
	case stderrors.As(err, &se) && se.Kind == StageErrorCanceled:
		r.Outcome = metrics.BuildOutcomeCanceled
	default:
		r.Outcome = metrics.BuildOutcomeFailed
	}
}

// Duration is the wall time of the build.
func (r *Report) Duration() time.Duration {
	if r.End.IsZero() {
		return time.Since(r.Start)
	}
	return r.End.Sub(r.Start)
}
