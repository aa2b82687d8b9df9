package criteria

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Version is a semantic version ("1.2.3", "2.0", "4.1.0-beta.2").
// Missing minor or patch components count as zero.
type Version struct {
	raw       string
	canonical string
}

// ParseVersion parses a dotted version string, with or without a leading "v".
func ParseVersion(s string) (Version, error) {
	raw := strings.TrimSpace(s)
	v := raw
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}
	return Version{raw: raw, canonical: semver.Canonical(v)}, nil
}

// MustParseVersion is ParseVersion for literals known to be valid.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Compare returns -1, 0 or +1 following semantic version precedence.
func (v Version) Compare(other Version) int {
	return semver.Compare(v.canonical, other.canonical)
}

func (v Version) String() string {
	return "version(" + v.raw + ")"
}
