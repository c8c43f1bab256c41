// Package pattern holds what the renderers draw: a summary, result tables
// and the plan tree. Patterns carry no presentation; each renderer decides
// how a Tone or a Status looks.
package pattern

// PatternType names a pattern in serialized output.
type PatternType string

const (
	TypeSummary PatternType = "summary"
	TypeTable   PatternType = "test-table"
	TypeTree    PatternType = "tree"
)

// Pattern is implemented by *Summary, *Table and *Tree.
type Pattern interface {
	Type() PatternType
}

// Tone is the sentiment of a summary metric.
type Tone string

const (
	ToneGood Tone = "success"
	ToneBad  Tone = "error"
	ToneWarn Tone = "warning"
	ToneInfo Tone = "info"
)

// Status is the outcome shown on a table row.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	StatusSkip Status = "skip"
)
