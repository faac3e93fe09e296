package versioning

import (
	"cmp"
	"regexp"
	"strconv"
	"strings"
)

// SemVersion is a parsed major.minor.patch[-pre][+build] tag.
type SemVersion struct {
	Major      int
	Minor      int
	Patch      int
	PreRelease string
	Build      string
}

// tagRegex accepts an optional v prefix, pre-release and build metadata.
var tagRegex = regexp.MustCompile(
	`^v?(\d+)\.(\d+)\.(\d+)` +
		`(?:-([0-9A-Za-z\-\.]+))?` +
		`(?:\+([0-9A-Za-z\-\.]+))?$`,
)

// maxTagLength bounds regex input; tags come from directory names and release lists.
const maxTagLength = 128

// ParseTag parses tag as a semantic version. ok is false for branch names and
// anything else that does not look like a release.
func ParseTag(tag string) (SemVersion, bool) {
	trimmed := strings.TrimSpace(tag)
	if len(trimmed) > maxTagLength {
		return SemVersion{}, false
	}
	m := tagRegex.FindStringSubmatch(trimmed)
	if m == nil {
		return SemVersion{}, false
	}
	major, err1 := strconv.Atoi(m[1])
	minor, err2 := strconv.Atoi(m[2])
	patch, err3 := strconv.Atoi(m[3])
	if err1 != nil || err2 != nil || err3 != nil {
		return SemVersion{}, false
	}
	return SemVersion{Major: major, Minor: minor, Patch: patch, PreRelease: m[4], Build: m[5]}, true
}

func (v SemVersion) String() string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(v.Major))
	sb.WriteByte('.')
	sb.WriteString(strconv.Itoa(v.Minor))
	sb.WriteByte('.')
	sb.WriteString(strconv.Itoa(v.Patch))
	if v.PreRelease != "" {
		sb.WriteByte('-')
		sb.WriteString(v.PreRelease)
	}
	if v.Build != "" {
		sb.WriteByte('+')
		sb.WriteString(v.Build)
	}
	return sb.String()
}

// Compare returns -1, 0 or +1. A pre-release sorts below its release;
// build metadata is ignored.
func (v SemVersion) Compare(other SemVersion) int {
	if c := cmp.Compare(v.Major, other.Major); c != 0 {
		return c
	}
	if c := cmp.Compare(v.Minor, other.Minor); c != 0 {
		return c
	}
	if c := cmp.Compare(v.Patch, other.Patch); c != 0 {
		return c
	}
	switch {
	case v.PreRelease == other.PreRelease:
		return 0
	case v.PreRelease == "":
		return 1
	case other.PreRelease == "":
		return -1
	default:
		return comparePreRelease(v.PreRelease, other.PreRelease)
	}
}

func comparePreRelease(a, b string) int {
	aIDs := strings.Split(a, ".")
	bIDs := strings.Split(b, ".")
	for i := range min(len(aIDs), len(bIDs)) {
		if c := compareIdentifier(aIDs[i], bIDs[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(aIDs), len(bIDs))
}

// compareIdentifier orders numeric identifiers numerically and below alphanumeric ones.
func compareIdentifier(a, b string) int {
	aNum, aIsNum := numericIdentifier(a)
	bNum, bIsNum := numericIdentifier(b)
	switch {
	case aIsNum && bIsNum:
		return cmp.Compare(aNum, bNum)
	case aIsNum:
		return -1
	case bIsNum:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

func numericIdentifier(s string) (int, bool) {
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || strings.ContainsAny(s, "+-") {
		return 0, false
	}
	return n, true
}
