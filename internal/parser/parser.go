// Package parser extracts requirement-tag annotations from source files.
//
// Each language gets an AnnotationParser that knows how to locate comments
// and the definitions they precede. All parsers emit the unified
// annotation.Tag representation; a registry routes files to the right
// parser by extension, with a generic line-based fallback for languages
// without a dedicated parser.
package parser

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"reqtrace/internal/annotation"
)

// Result wraps the output of parsing one file.
type Result struct {
	Tags     []annotation.Tag
	Warnings []annotation.Warning
}

// AnnotationParser defines the contract for language-specific tag parsers.
type AnnotationParser interface {
	// Parse extracts requirement tags from source content. The path is
	// recorded on each tag and used in warnings; it should be
	// workspace-relative.
	Parse(path string, content []byte) (*Result, error)

	// SupportedExtensions returns the file extensions this parser
	// handles, with the leading dot.
	SupportedExtensions() []string

	// Language returns the short language identifier used in tag refs.
	Language() string
}

// Registry routes files to parsers by extension.
type Registry struct {
	mu       sync.RWMutex
	parsers  map[string]AnnotationParser
	fallback AnnotationParser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]AnnotationParser)}
}

// Register adds a parser for its supported extensions, replacing any
// previous registration.
func (r *Registry) Register(p AnnotationParser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range p.SupportedExtensions() {
		r.parsers[normalizeExtension(ext)] = p
	}
}

// RegisterFallback sets the parser used when no extension matches.
func (r *Registry) RegisterFallback(p AnnotationParser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = p
}

// ParserFor returns the parser for a path, or nil when the file type is
// not parseable at all.
func (r *Registry) ParserFor(path string) AnnotationParser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ext := normalizeExtension(filepath.Ext(path))
	if p, ok := r.parsers[ext]; ok {
		return p
	}
	if r.fallback != nil && commentLeaderFor(ext) != "" {
		return r.fallback
	}
	return nil
}

// Parse routes a file to the appropriate parser.
func (r *Registry) Parse(path string, content []byte) (*Result, error) {
	p := r.ParserFor(path)
	if p == nil {
		return nil, fmt.Errorf("no parser for extension %q", filepath.Ext(path))
	}
	return p.Parse(path, content)
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewGoParser())
	r.Register(NewPythonParser())
	r.RegisterFallback(NewGenericParser())
	return r
}

func normalizeExtension(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// commentLine is a single comment line stripped of its leader.
type commentLine struct {
	line int // 1-indexed
	text string
}

// definition is a named code definition a tag can bind to.
type definition struct {
	line int // 1-indexed start line
	name string
}

// bindTags converts raw comment lines into tags using the shared
// placement rules: tags inside the contiguous comment block starting at
// line 1 are module-level; every other tag binds to the next definition
// that starts after it. A trailing tag with no following definition is
// kept as module-level rather than dropped.
func bindTags(path, language string, comments []commentLine, defs []definition) *Result {
	res := &Result{}

	sort.Slice(defs, func(i, j int) bool { return defs[i].line < defs[j].line })
	sort.Slice(comments, func(i, j int) bool { return comments[i].line < comments[j].line })

	// Contiguous top block: comment lines 1, 2, 3, ... with no gap.
	topBlock := make(map[int]bool)
	next := 1
	for _, c := range comments {
		if c.line != next {
			break
		}
		topBlock[c.line] = true
		next++
	}

	for _, c := range comments {
		id, ok := annotation.ParseLine(c.text)
		if !ok {
			if annotation.HasMarker(c.text) {
				res.Warnings = append(res.Warnings, annotation.Warning{
					File:    path,
					Line:    c.line,
					Message: fmt.Sprintf("malformed requirement tag: %q", strings.TrimSpace(c.text)),
				})
			}
			continue
		}

		tag := annotation.Tag{
			ReqID:    id,
			File:     path,
			Line:     c.line,
			Language: language,
		}

		if topBlock[c.line] {
			tag.Placement = annotation.PlacementModule
		} else if def := nextDefinition(defs, c.line); def != nil {
			tag.Placement = annotation.PlacementDefinition
			tag.Symbol = def.name
		} else {
			tag.Placement = annotation.PlacementModule
		}

		res.Tags = append(res.Tags, tag)
	}

	return res
}

func nextDefinition(defs []definition, line int) *definition {
	for i := range defs {
		if defs[i].line > line {
			return &defs[i]
		}
	}
	return nil
}
