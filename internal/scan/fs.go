// Package scan walks a workspace and extracts requirement tags from every
// source file that has a registered annotation parser.
package scan

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"reqtrace/internal/annotation"
	"reqtrace/internal/logging"
	"reqtrace/internal/parser"
)

// Options configures a workspace scan.
type Options struct {
	// Root is the workspace directory to scan.
	Root string

	// Concurrency bounds the worker pool. Zero means the default of 20.
	Concurrency int

	// IncludeTests controls whether test files are scanned for tags.
	IncludeTests bool

	// ExcludeDirs are directory basenames skipped in addition to the
	// built-in hidden-directory policy.
	ExcludeDirs []string
}

// FileInfo records one scanned file.
type FileInfo struct {
	// Path is workspace-relative with forward slashes.
	Path     string `json:"path"`
	Hash     string `json:"hash"`
	Language string `json:"language"`
	ModTime  int64  `json:"mod_time"`
	IsTest   bool   `json:"is_test"`
}

// Result is the outcome of a workspace scan.
type Result struct {
	ID         string               `json:"id"`
	Root       string               `json:"root"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
	Files      []FileInfo           `json:"files"`
	Tags       []annotation.Tag     `json:"tags"`
	Warnings   []annotation.Warning `json:"warnings"`
	Languages  map[string]int       `json:"languages"`
	TestFiles  int                  `json:"test_files"`
}

// Scanner walks workspaces and extracts requirement tags.
type Scanner struct {
	opts     Options
	registry *parser.Registry
}

// NewScanner creates a scanner with the given options. A nil registry
// gets the default parser set.
func NewScanner(opts Options, registry *parser.Registry) *Scanner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 20
	}
	if registry == nil {
		registry = parser.DefaultRegistry()
	}
	return &Scanner{opts: opts, registry: registry}
}

// hiddenDirPolicy allowlists hidden directories worth scanning.
var hiddenDirPolicy = map[string]bool{
	".github":   true,
	".vscode":   true,
	".circleci": true,
	".config":   true,
	".reqtrace": false, // Internal, always skip
	".git":      false, // Always skip
}

// IsSkippedDir reports whether a directory basename falls outside the
// scan policy. Watch mode applies the same policy when picking
// directories to monitor.
func IsSkippedDir(name string) bool {
	if !strings.HasPrefix(name, ".") || name == "." {
		return false
	}
	allow, exists := hiddenDirPolicy[name]
	return !exists || !allow
}

// Parses reports whether the scanner has a parser for the given path.
func (s *Scanner) Parses(path string) bool {
	return s.registry.ParserFor(path) != nil
}

// RelativePath converts an absolute path to the workspace-relative form
// used in tags and facts.
func (s *Scanner) RelativePath(path string) string {
	return s.relativePath(path)
}

// ScanWorkspace walks the workspace root, hashing and parsing every
// eligible file with a bounded worker pool.
func (s *Scanner) ScanWorkspace(ctx context.Context) (*Result, error) {
	timer := logging.StartTimer(logging.CategoryScan, "workspace scan")
	defer timer.Stop()

	result := &Result{
		ID:        uuid.NewString(),
		Root:      s.opts.Root,
		StartedAt: time.Now(),
		Languages: make(map[string]int),
	}
	var mu sync.Mutex // Protects result

	cache := NewFileCache(s.opts.Root)
	defer func() {
		if err := cache.Save(); err != nil {
			logging.Get(logging.CategoryScan).Warn("failed to save file cache: %v", err)
		}
	}()

	excluded := make(map[string]bool, len(s.opts.ExcludeDirs))
	for _, d := range s.opts.ExcludeDirs {
		excluded[d] = true
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	walkErr := filepath.Walk(s.opts.Root, func(path string, info os.FileInfo, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return err
		}

		if info.IsDir() {
			name := info.Name()
			if excluded[name] {
				return filepath.SkipDir
			}
			if strings.HasPrefix(name, ".") && name != "." && path != s.opts.Root {
				if allow, exists := hiddenDirPolicy[name]; exists {
					if !allow {
						return filepath.SkipDir
					}
					return nil
				}
				// Default block for other hidden dirs
				return filepath.SkipDir
			}
			return nil
		}

		g.Go(func() error {
			fi, tags, warnings, ok := s.scanFile(path, info, cache)
			if !ok {
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			result.Files = append(result.Files, fi)
			result.Languages[fi.Language]++
			if fi.IsTest {
				result.TestFiles++
			}
			result.Tags = append(result.Tags, tags...)
			result.Warnings = append(result.Warnings, warnings...)
			return nil
		})

		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if walkErr != nil {
		return nil, walkErr
	}

	// Deterministic output regardless of worker completion order.
	sort.Slice(result.Files, func(i, j int) bool { return result.Files[i].Path < result.Files[j].Path })
	sort.Slice(result.Tags, func(i, j int) bool {
		if result.Tags[i].File != result.Tags[j].File {
			return result.Tags[i].File < result.Tags[j].File
		}
		return result.Tags[i].Line < result.Tags[j].Line
	})
	sort.Slice(result.Warnings, func(i, j int) bool {
		if result.Warnings[i].File != result.Warnings[j].File {
			return result.Warnings[i].File < result.Warnings[j].File
		}
		return result.Warnings[i].Line < result.Warnings[j].Line
	})

	result.FinishedAt = time.Now()
	logging.Scan("scanned %d files, %d tags, %d warnings", len(result.Files), len(result.Tags), len(result.Warnings))
	return result, nil
}

// scanFile hashes and parses a single file. A false return means the
// file was skipped (unreadable, test file excluded, or no parser).
func (s *Scanner) scanFile(path string, info os.FileInfo, cache *FileCache) (FileInfo, []annotation.Tag, []annotation.Warning, bool) {
	rel := s.relativePath(path)

	isTest := isTestFile(path)
	if isTest && !s.opts.IncludeTests {
		return FileInfo{}, nil, nil, false
	}

	content, err := os.ReadFile(path)
	if err != nil {
		// Skip files we can't read but don't fail the scan
		logging.Get(logging.CategoryScan).Warn("skipping unreadable file %s: %v", rel, err)
		return FileInfo{}, nil, nil, false
	}

	var hash string
	if cached, hit := cache.Get(path, info); hit {
		hash = cached
	} else {
		sum := sha256.Sum256(content)
		hash = hex.EncodeToString(sum[:])
		cache.Update(path, info, hash)
	}

	fi := FileInfo{
		Path:     rel,
		Hash:     hash,
		Language: detectLanguage(filepath.Ext(path), path),
		ModTime:  info.ModTime().Unix(),
		IsTest:   isTest,
	}

	p := s.registry.ParserFor(path)
	if p == nil {
		// Still counted in topology, just not parsed.
		return fi, nil, nil, true
	}

	res, err := p.Parse(rel, content)
	if err != nil {
		// A file that fails to parse carries no tags; the scan goes on.
		logging.Get(logging.CategoryScan).Warn("parse failed for %s: %v", rel, err)
		return fi, nil, []annotation.Warning{{File: rel, Line: 0, Message: err.Error()}}, true
	}

	return fi, res.Tags, res.Warnings, true
}

// ScanFiles parses the given absolute paths only. Used by watch mode for
// incremental rescans; missing files yield a nil entry so callers can
// retract stale facts.
func (s *Scanner) ScanFiles(ctx context.Context, paths []string) (map[string]*parser.Result, error) {
	out := make(map[string]*parser.Result, len(paths))

	for _, path := range paths {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		rel := s.relativePath(path)

		content, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				out[rel] = nil
				continue
			}
			return nil, err
		}

		p := s.registry.ParserFor(path)
		if p == nil {
			continue
		}

		res, err := p.Parse(rel, content)
		if err != nil {
			out[rel] = &parser.Result{Warnings: []annotation.Warning{{File: rel, Message: err.Error()}}}
			continue
		}
		out[rel] = res
	}

	return out, nil
}

func (s *Scanner) relativePath(path string) string {
	rel, err := filepath.Rel(s.opts.Root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
