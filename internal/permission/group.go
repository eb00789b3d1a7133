package permission

import "strings"

// Group is a capability group.
type Group string

const (
	GroupAdministrator Group = "administrator"
	GroupInitiator     Group = "initiator"
	GroupQuality       Group = "quality"
	GroupReviewer      Group = "reviewer"
	GroupUnknown       Group = "unknown"
)

// hierarchy lists groups from most to least privileged.
var hierarchy = []Group{GroupAdministrator, GroupInitiator, GroupQuality, GroupReviewer}

// ParseGroup normalizes a group name; unrecognized names yield GroupUnknown.
func ParseGroup(s string) Group {
	g := Group(strings.ToLower(strings.TrimSpace(s)))
	if g.rank() < 0 {
		return GroupUnknown
	}
	return g
}

// IsKnown reports whether g is part of the hierarchy.
func (g Group) IsKnown() bool {
	return g.rank() >= 0
}

// Includes reports whether g carries the capabilities of other.
// A group inherits every capability of the groups below it.
func (g Group) Includes(other Group) bool {
	r, o := g.rank(), other.rank()
	if r < 0 || o < 0 {
		return false
	}
	return r <= o
}

func (g Group) rank() int {
	for i, h := range hierarchy {
		if h == g {
			return i
		}
	}
	return -1
}

func (g Group) String() string {
	return string(g)
}
