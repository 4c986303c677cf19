package trace

import (
	"context"
	"fmt"
	"sort"
	"time"

	"reqtrace/internal/annotation"
	"reqtrace/internal/logging"
	"reqtrace/internal/requirements"
	"reqtrace/internal/scan"
)

// Kernel owns the correlation state: the current requirement set, the
// tags found per file, and the Datalog engine derived from them. Watch
// mode mutates per-file state and rebuilds; a full rebuild is cheap at
// the fact volumes a workspace produces.
type Kernel struct {
	cfg Config

	engine     *Engine
	reqs       *requirements.Set
	tagsByFile map[string][]annotation.Tag
	files      map[string]scan.FileInfo
}

// NewKernel creates an empty kernel.
func NewKernel(cfg Config) *Kernel {
	return &Kernel{
		cfg:        cfg,
		tagsByFile: make(map[string][]annotation.Tag),
		files:      make(map[string]scan.FileInfo),
	}
}

// LoadScan replaces all kernel state with a scan result and requirement
// set, then derives the coverage relations.
func (k *Kernel) LoadScan(res *scan.Result, reqs *requirements.Set) error {
	k.reqs = reqs
	k.tagsByFile = make(map[string][]annotation.Tag, len(res.Files))
	k.files = make(map[string]scan.FileInfo, len(res.Files))

	for _, f := range res.Files {
		k.files[f.Path] = f
	}
	for _, tag := range res.Tags {
		k.tagsByFile[tag.File] = append(k.tagsByFile[tag.File], tag)
	}

	return k.rebuild()
}

// UpdateFile replaces the tags recorded for one workspace-relative path
// and re-derives. Used by watch mode after an incremental rescan.
func (k *Kernel) UpdateFile(path string, tags []annotation.Tag) error {
	if len(tags) == 0 {
		delete(k.tagsByFile, path)
	} else {
		k.tagsByFile[path] = tags
	}
	return k.rebuild()
}

// RemoveFile retracts everything known about a deleted file.
func (k *Kernel) RemoveFile(path string) error {
	delete(k.tagsByFile, path)
	delete(k.files, path)
	return k.rebuild()
}

// rebuild constructs a fresh engine from current state and evaluates the
// rule program. Rebuilding from scratch keeps retraction simple: derived
// facts can never go stale.
func (k *Kernel) rebuild() error {
	engine, err := NewEngine(k.cfg)
	if err != nil {
		return err
	}

	var facts []Fact
	if k.reqs != nil {
		for _, r := range k.reqs.All() {
			facts = append(facts, Fact{Predicate: "requirement", Args: []interface{}{r.ID, string(r.Status)}})
		}
	}
	for _, f := range k.files {
		facts = append(facts, Fact{Predicate: "file_topology", Args: []interface{}{f.Path, f.Language, f.IsTest}})
	}
	for _, tags := range k.tagsByFile {
		for _, t := range tags {
			facts = append(facts, Fact{Predicate: "req_tag", Args: []interface{}{t.File, t.Line, t.Symbol, t.ReqID}})
		}
	}

	if err := engine.AddFacts(facts); err != nil {
		return err
	}
	if err := engine.Eval(); err != nil {
		return err
	}

	k.engine = engine
	logging.Trace("kernel rebuilt: %d base facts", engine.FactCount())
	return nil
}

// Query runs an ad-hoc query against the current derivation.
func (k *Kernel) Query(ctx context.Context, query string) (*QueryResult, error) {
	if k.engine == nil {
		return nil, fmt.Errorf("no scan loaded")
	}
	return k.engine.Query(ctx, query)
}

// OrphanTag is a tag whose requirement ID has no definition.
type OrphanTag struct {
	File  string `json:"file"`
	Line  int    `json:"line"`
	ReqID string `json:"req_id"`
}

// RequirementCoverage pairs a requirement with the tags that trace to it.
type RequirementCoverage struct {
	Requirement requirements.Requirement `json:"requirement"`
	Tags        []annotation.Tag         `json:"tags,omitempty"`
	Covered     bool                     `json:"covered"`
}

// Matrix is the traceability matrix derived from one correlation pass.
type Matrix struct {
	GeneratedAt  time.Time             `json:"generated_at"`
	Requirements []RequirementCoverage `json:"requirements"`
	Orphans      []OrphanTag           `json:"orphans,omitempty"`
	Untraced     []string              `json:"untraced,omitempty"`
	Coverage     float64               `json:"coverage"`
	TagCount     int                   `json:"tag_count"`
}

// Matrix builds the traceability matrix from the derived relations.
// Requirements keep definition order; orphans are sorted by (file, line).
func (k *Kernel) Matrix() (*Matrix, error) {
	if k.engine == nil || k.reqs == nil {
		return nil, fmt.Errorf("no scan loaded")
	}

	coveredFacts, err := k.engine.GetFacts("covered")
	if err != nil {
		return nil, err
	}
	covered := make(map[string]bool, len(coveredFacts))
	for _, f := range coveredFacts {
		if id, ok := f.Args[0].(string); ok {
			covered[id] = true
		}
	}

	orphanFacts, err := k.engine.GetFacts("orphan_tag")
	if err != nil {
		return nil, err
	}
	orphans := make([]OrphanTag, 0, len(orphanFacts))
	for _, f := range orphanFacts {
		file, _ := f.Args[0].(string)
		line, _ := f.Args[1].(int64)
		id, _ := f.Args[2].(string)
		orphans = append(orphans, OrphanTag{File: file, Line: int(line), ReqID: id})
	}
	sort.Slice(orphans, func(i, j int) bool {
		if orphans[i].File != orphans[j].File {
			return orphans[i].File < orphans[j].File
		}
		return orphans[i].Line < orphans[j].Line
	})

	untracedFacts, err := k.engine.GetFacts("untraced")
	if err != nil {
		return nil, err
	}
	untracedSet := make(map[string]bool, len(untracedFacts))
	for _, f := range untracedFacts {
		if id, ok := f.Args[0].(string); ok {
			untracedSet[id] = true
		}
	}

	tagsByReq := make(map[string][]annotation.Tag)
	tagCount := 0
	for _, tags := range k.tagsByFile {
		for _, t := range tags {
			tagsByReq[t.ReqID] = append(tagsByReq[t.ReqID], t)
			tagCount++
		}
	}
	for _, tags := range tagsByReq {
		sort.Slice(tags, func(i, j int) bool {
			if tags[i].File != tags[j].File {
				return tags[i].File < tags[j].File
			}
			return tags[i].Line < tags[j].Line
		})
	}

	m := &Matrix{
		GeneratedAt: time.Now(),
		TagCount:    tagCount,
	}

	coveredCount := 0
	for _, r := range k.reqs.All() {
		rc := RequirementCoverage{
			Requirement: r,
			Tags:        tagsByReq[r.ID],
			Covered:     covered[r.ID],
		}
		if rc.Covered {
			coveredCount++
		}
		m.Requirements = append(m.Requirements, rc)
		if untracedSet[r.ID] {
			m.Untraced = append(m.Untraced, r.ID)
		}
	}
	m.Orphans = orphans

	if k.reqs.Len() == 0 {
		m.Coverage = 1.0
	} else {
		m.Coverage = float64(coveredCount) / float64(k.reqs.Len())
	}
	return m, nil
}
