package compiler

import (
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
)

// Marker is version.json, read by docusaurus.config.ts at render time.
type Marker struct {
	RefName  string `json:"refname"`
	RefType  string `json:"reftype"`
	DateTime string `json:"datetime"`
	Tag      string `json:"tag"`
}

// NewMarker builds the marker for tag. A missing release timestamp falls back to now.
func (c *Compiler) NewMarker(tag string) Marker {
	m := Marker{
		RefName:  c.release.RefName,
		RefType:  c.release.RefType,
		DateTime: c.release.DateTime,
		Tag:      tag,
	}
	if m.DateTime == "" {
		m.DateTime = c.now().UTC().Format(time.RFC3339)
	}
	return m
}

func (c *Compiler) writeMarker(tag string) (string, error) {
	target := filepath.Join(c.projectDir, markerFile)
	data, err := encodeJSON(c.NewMarker(tag))
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryInternal, "failed to encode version marker").Build()
	}
	if err := writeFile(target, data); err != nil {
		return "", err
	}
	c.logger.Info("Wrote version marker", logfields.Path(target), logfields.Tag(tag))
	return target, nil
}
