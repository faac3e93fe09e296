package notify

import (
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docpipe/internal/config"
)

// Build statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// BuildEvent is published once per build.
type BuildEvent struct {
	ID         string   `json:"id"`
	Status     string   `json:"status"`
	RefName    string   `json:"refname"`
	RefType    string   `json:"reftype"`
	Versions   []string `json:"versions"`
	DurationMS int64    `json:"duration_ms"`
	Error      string   `json:"error,omitempty"`
}

// NewBuildEvent describes a finished build; a nil buildErr means success.
func NewBuildEvent(runID string, release config.ReleaseInfo, versions []string, took time.Duration, buildErr error) BuildEvent {
	if runID == "" {
		runID = uuid.NewString()
	}
	if versions == nil {
		versions = []string{}
	}
	ev := BuildEvent{
		ID:         runID,
		Status:     StatusSucceeded,
		RefName:    release.RefName,
		RefType:    release.RefType,
		Versions:   versions,
		DurationMS: took.Milliseconds(),
	}
	if buildErr != nil {
		ev.Status = StatusFailed
		ev.Error = buildErr.Error()
	}
	return ev
}
