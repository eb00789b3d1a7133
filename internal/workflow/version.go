package workflow

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a major.minor document revision.
type Version struct {
	Major int
	Minor int
}

// InitialVersion is assigned to newly created documents.
var InitialVersion = Version{Major: 0, Minor: 1}

// ParseVersion parses "major.minor".
func ParseVersion(s string) (Version, error) {
	majorPart, minorPart, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}
	major, err := strconv.Atoi(majorPart)
	if err != nil || major < 0 {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}
	minor, err := strconv.Atoi(minorPart)
	if err != nil || minor < 0 {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}
	return Version{Major: major, Minor: minor}, nil
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// IsReleased reports whether the version has been approved at least once.
func (v Version) IsReleased() bool {
	return v.Major >= 1
}

// Bump applies a transition's version change.
func (v Version) Bump(b VersionBump) Version {
	switch b {
	case BumpMajor:
		return Version{Major: v.Major + 1, Minor: 0}
	case BumpMinor:
		return Version{Major: v.Major, Minor: v.Minor + 1}
	default:
		return v
	}
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(text []byte) error {
	parsed, err := ParseVersion(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
