package versioning

import (
	"slices"
	"strconv"
	"strings"
)

// Tag is a staged documentation version.
type Tag struct {
	Name    string
	Version SemVersion
	Parsed  bool
	Current bool // the configured current tag, always ordered last
}

// NewTag parses name; unparseable names stay usable as opaque labels.
func NewTag(name string) Tag {
	v, ok := ParseTag(name)
	return Tag{Name: name, Version: v, Parsed: ok}
}

// SnapshotLabel is the generator version name: major.minor for releases, the raw name otherwise.
func (t Tag) SnapshotLabel() string {
	if !t.Parsed {
		return t.Name
	}
	return strconv.Itoa(t.Version.Major) + "." + strconv.Itoa(t.Version.Minor)
}

// PublishLabel is the directory a published build lands in: major.minor,
// plus .patch when the patch is non-zero.
func (t Tag) PublishLabel() string {
	if !t.Parsed {
		return t.Name
	}
	label := t.SnapshotLabel()
	if t.Version.Patch != 0 {
		label += "." + strconv.Itoa(t.Version.Patch)
	}
	return label
}

// Compare orders unparsed tags before parsed ones, and the current tag after everything.
// Unparsed tags compare by name among themselves.
func (t Tag) Compare(other Tag) int {
	switch {
	case t.Current != other.Current:
		if t.Current {
			return 1
		}
		return -1
	case t.Parsed != other.Parsed:
		if t.Parsed {
			return 1
		}
		return -1
	case !t.Parsed:
		return strings.Compare(t.Name, other.Name)
	}
	if c := t.Version.Compare(other.Version); c != 0 {
		return c
	}
	return strings.Compare(t.Name, other.Name)
}

// Order returns tags in ascending snapshot order. forceLast, when present
// among names, is moved to the end whatever it parses as.
// Duplicate names are collapsed.
func Order(names []string, forceLast string) []Tag {
	seen := make(map[string]bool, len(names))
	tags := make([]Tag, 0, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		t := NewTag(name)
		t.Current = forceLast != "" && name == forceLast
		tags = append(tags, t)
	}
	slices.SortStableFunc(tags, Tag.Compare)
	return tags
}

// Descending orders release tags newest first, for listings.
func Descending(names []string) []Tag {
	tags := Order(names, "")
	slices.Reverse(tags)
	return tags
}

// Dedupe keeps, for each snapshot label, the highest tag in an ordered list.
// Order is preserved; the shadowed tags are returned separately.
func Dedupe(ordered []Tag) (kept, dropped []Tag) {
	last := make(map[string]int, len(ordered))
	for i, t := range ordered {
		last[t.SnapshotLabel()] = i
	}
	for i, t := range ordered {
		if last[t.SnapshotLabel()] == i {
			kept = append(kept, t)
		} else {
			dropped = append(dropped, t)
		}
	}
	return kept, dropped
}

// Names returns the tag names in order.
func Names(tags []Tag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.Name
	}
	return out
}
