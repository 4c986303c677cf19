// Package requirements loads requirement definitions from YAML documents.
//
// A definition document looks like:
//
//	requirements:
//	  - id: FR:sample-feature/auth.login
//	    title: User login
//	    status: approved
//	  - id: FR:sample-feature/auth.logout
//	    title: User logout
//	    status: draft
package requirements

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Status is the lifecycle state of a requirement.
type Status string

const (
	StatusDraft       Status = "draft"
	StatusApproved    Status = "approved"
	StatusImplemented Status = "implemented"
	StatusVerified    Status = "verified"
	StatusDeprecated  Status = "deprecated"
)

// validStatuses gates what a definition document may declare.
var validStatuses = map[Status]bool{
	StatusDraft:       true,
	StatusApproved:    true,
	StatusImplemented: true,
	StatusVerified:    true,
	StatusDeprecated:  true,
}

// Requirement is a single requirement definition.
type Requirement struct {
	ID          string   `yaml:"id" json:"id"`
	Title       string   `yaml:"title" json:"title"`
	Status      Status   `yaml:"status" json:"status"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Labels      []string `yaml:"labels,omitempty" json:"labels,omitempty"`

	// Source is the document the definition came from. Set by the loader.
	Source string `yaml:"-" json:"source,omitempty"`
}

// document is the YAML shape of a definition file.
type document struct {
	Requirements []Requirement `yaml:"requirements"`
}

// Set is an ordered collection of requirement definitions.
type Set struct {
	byID  map[string]Requirement
	order []string
}

// NewSet builds a set from definitions, rejecting duplicates.
func NewSet(reqs []Requirement) (*Set, error) {
	s := &Set{byID: make(map[string]Requirement, len(reqs))}
	for _, r := range reqs {
		if r.ID == "" {
			return nil, fmt.Errorf("requirement with empty id (title %q, source %s)", r.Title, r.Source)
		}
		if prev, dup := s.byID[r.ID]; dup {
			return nil, fmt.Errorf("duplicate requirement %s (defined in %s and %s)", r.ID, prev.Source, r.Source)
		}
		if r.Status == "" {
			r.Status = StatusDraft
		}
		if !validStatuses[r.Status] {
			return nil, fmt.Errorf("requirement %s: unknown status %q", r.ID, r.Status)
		}
		s.byID[r.ID] = r
		s.order = append(s.order, r.ID)
	}
	return s, nil
}

// Load reads requirement definitions from the given files or
// directories. Directory entries are scanned for *.yaml / *.yml files in
// lexical order so loading is deterministic.
func Load(paths ...string) (*Set, error) {
	var reqs []Requirement

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("requirements source %s: %w", p, err)
		}

		if info.IsDir() {
			entries, err := os.ReadDir(p)
			if err != nil {
				return nil, fmt.Errorf("read requirements dir %s: %w", p, err)
			}
			var files []string
			for _, e := range entries {
				if e.IsDir() {
					continue
				}
				ext := strings.ToLower(filepath.Ext(e.Name()))
				if ext == ".yaml" || ext == ".yml" {
					files = append(files, filepath.Join(p, e.Name()))
				}
			}
			sort.Strings(files)
			for _, f := range files {
				loaded, err := loadFile(f)
				if err != nil {
					return nil, err
				}
				reqs = append(reqs, loaded...)
			}
			continue
		}

		loaded, err := loadFile(p)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, loaded...)
	}

	return NewSet(reqs)
}

func loadFile(path string) ([]Requirement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read requirements file %s: %w", path, err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse requirements file %s: %w", path, err)
	}

	for i := range doc.Requirements {
		doc.Requirements[i].Source = filepath.ToSlash(path)
	}
	return doc.Requirements, nil
}

// Get returns a requirement by ID.
func (s *Set) Get(id string) (Requirement, bool) {
	r, ok := s.byID[id]
	return r, ok
}

// IDs returns requirement IDs in definition order.
func (s *Set) IDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// All returns requirements in definition order.
func (s *Set) All() []Requirement {
	out := make([]Requirement, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// Len returns the number of definitions.
func (s *Set) Len() int {
	return len(s.order)
}
