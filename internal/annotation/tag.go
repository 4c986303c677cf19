// Package annotation defines the requirement-tag model shared by all
// language parsers. A tag is a standalone comment line of the form
//
//	@req FR:sample-feature/auth.login
//
// binding the following definition (or the whole file, for a block at the
// top) to a requirement identifier.
package annotation

import (
	"fmt"
	"regexp"
	"strings"
)

// Placement describes where a tag was found relative to code.
type Placement string

const (
	// PlacementModule marks a tag in the comment block at the top of a
	// file, before any definition.
	PlacementModule Placement = "module"
	// PlacementDefinition marks a tag immediately preceding a definition.
	PlacementDefinition Placement = "definition"
)

// Tag is a single requirement reference extracted from source.
type Tag struct {
	// ReqID is the full requirement identifier, e.g.
	// "FR:sample-feature/auth.login".
	ReqID string `json:"req_id"`

	// File is the workspace-relative path of the source file.
	File string `json:"file"`

	// Line is the 1-indexed line of the tag comment.
	Line int `json:"line"`

	// Symbol names the definition the tag binds to. Empty for
	// module-level tags.
	Symbol string `json:"symbol,omitempty"`

	Placement Placement `json:"placement"`

	// Language is the short language identifier ("go", "py", ...).
	Language string `json:"language"`
}

// Ref returns a repo-anchored URI for the tag location, e.g.
// "py:sources/auth.py:12".
func (t Tag) Ref() string {
	return fmt.Sprintf("%s:%s:%d", t.Language, t.File, t.Line)
}

// tagPattern matches "@req <ID>" where ID is <kind>:<feature>/<path>.
// The path segment allows dotted component.action identifiers.
var tagPattern = regexp.MustCompile(`@req\s+([A-Za-z]+:[A-Za-z0-9_-]+(?:/[A-Za-z0-9_.-]+)+)\s*$`)

// markerPattern matches any "@req" marker, well-formed or not. Used to
// distinguish a malformed tag from an ordinary comment.
var markerPattern = regexp.MustCompile(`@req\b`)

// ParseLine extracts a requirement ID from a single comment line. The
// line should already be stripped of its comment leader. The second
// return distinguishes "no tag here" (false) from a parsed ID (true).
func ParseLine(text string) (string, bool) {
	m := tagPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// HasMarker reports whether the line carries an @req marker at all.
// A marker without a parseable ID is a malformed tag.
func HasMarker(text string) bool {
	return markerPattern.MatchString(text)
}

// Warning records a malformed tag encountered during parsing. Malformed
// tags never fail a scan; they are surfaced for reporting.
type Warning struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s:%d: %s", w.File, w.Line, w.Message)
}
