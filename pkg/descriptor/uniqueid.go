package descriptor

import "strings"

// UniqueID identifies a descriptor within one engine's tree.
// The rendered form is a slash-joined list of [kind:value] segments whose
// first segment is always the engine, e.g. [engine:gotest]/[package:pkg/x]/[test:TestY].
type UniqueID string

// Segment is one [kind:value] element of a UniqueID.
type Segment struct {
	Kind  string
	Value string
}

const segmentSep = "]/["

// EngineID returns the root UniqueID for an engine.
func EngineID(engineID string) UniqueID {
	return UniqueID(formatSegment("engine", engineID))
}

// Append returns a child ID with one more segment.
func (u UniqueID) Append(kind, value string) UniqueID {
	if u == "" {
		return UniqueID(formatSegment(kind, value))
	}
	return UniqueID(string(u) + "/" + formatSegment(kind, value))
}

// Segments splits the ID into its segments. Values may contain slashes.
func (u UniqueID) Segments() []Segment {
	s := string(u)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil
	}
	parts := strings.Split(s[1:len(s)-1], segmentSep)
	segs := make([]Segment, 0, len(parts))
	for _, p := range parts {
		kind, value, _ := strings.Cut(p, ":")
		segs = append(segs, Segment{Kind: kind, Value: value})
	}
	return segs
}

// Engine returns the engine segment value, or "" for malformed IDs.
func (u UniqueID) Engine() string {
	segs := u.Segments()
	if len(segs) == 0 || segs[0].Kind != "engine" {
		return ""
	}
	return segs[0].Value
}

// Last returns the final segment.
func (u UniqueID) Last() Segment {
	segs := u.Segments()
	if len(segs) == 0 {
		return Segment{}
	}
	return segs[len(segs)-1]
}

func (u UniqueID) String() string { return string(u) }

func formatSegment(kind, value string) string {
	return "[" + kind + ":" + value + "]"
}
