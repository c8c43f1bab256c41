package render

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dkoosis/testplan/pkg/pattern"
)

// JSONSchema identifies the document layout written by JSON.
const JSONSchema = "testplan.patterns/v1"

// JSON renders patterns as one indented JSON document for automation:
//
//	{"schema": "...", "patterns": [{"type": "summary", "data": {...}}, ...]}
type JSON struct{}

// NewJSON creates a JSON renderer.
func NewJSON() *JSON {
	return &JSON{}
}

type jsonDocument struct {
	Schema   string         `json:"schema"`
	Patterns []jsonEnvelope `json:"patterns"`
}

type jsonEnvelope struct {
	Type pattern.PatternType `json:"type"`
	Data pattern.Pattern     `json:"data"`
}

// Render encodes patterns. Test names are written verbatim, without HTML
// escaping of <, > and &.
func (j *JSON) Render(patterns []pattern.Pattern) string {
	doc := jsonDocument{Schema: JSONSchema, Patterns: make([]jsonEnvelope, len(patterns))}
	for i, p := range patterns {
		doc.Patterns[i] = jsonEnvelope{Type: p.Type(), Data: p}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Sprintf("{\"schema\": %q, \"error\": %q}\n", JSONSchema, err.Error())
	}
	return buf.String()
}
