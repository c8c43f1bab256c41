// Package render draws visualization patterns for a terminal, an LLM, or a
// machine reader.
package render

import "github.com/dkoosis/testplan/pkg/pattern"

// Renderer converts patterns to formatted output.
type Renderer interface {
	Render(patterns []pattern.Pattern) string
}
