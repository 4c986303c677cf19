package parser

import (
	"bufio"
	"bytes"
	"path/filepath"
	"regexp"
	"strings"
)

// GenericParser is a line-based fallback for languages without a
// dedicated parser. It recognizes single-line comment leaders and binds
// tags to the next non-blank, non-comment line.
type GenericParser struct{}

// NewGenericParser creates the fallback parser.
func NewGenericParser() *GenericParser {
	return &GenericParser{}
}

// Language returns "src"; the generic parser has no single language.
func (p *GenericParser) Language() string {
	return "src"
}

// SupportedExtensions is empty: the generic parser is registered as the
// registry fallback, not per extension.
func (p *GenericParser) SupportedExtensions() []string {
	return nil
}

// commentLeaders maps extensions to single-line comment leaders.
var commentLeaders = map[string]string{
	".py":    "#",
	".rb":    "#",
	".sh":    "#",
	".bash":  "#",
	".zsh":   "#",
	".yaml":  "#",
	".yml":   "#",
	".toml":  "#",
	".tf":    "#",
	".go":    "//",
	".js":    "//",
	".jsx":   "//",
	".ts":    "//",
	".tsx":   "//",
	".rs":    "//",
	".java":  "//",
	".kt":    "//",
	".c":     "//",
	".h":     "//",
	".cpp":   "//",
	".hpp":   "//",
	".cs":    "//",
	".swift": "//",
	".scala": "//",
	".php":   "//",
	".sql":   "--",
	".lua":   "--",
	".hs":    "--",
	".ex":    "#",
	".exs":   "#",
	".erl":   "%",
	".lisp":  ";",
	".clj":   ";",
	".el":    ";",
	".ini":   ";",
}

// commentLeaderFor returns the single-line comment leader for an
// extension, or "" when the file type has no known comment syntax.
func commentLeaderFor(ext string) string {
	return commentLeaders[strings.ToLower(ext)]
}

// definitionPattern recognizes keyword-style declaration lines and
// captures the declared identifier. Lines without a declaration keyword
// are not treated as definitions; tags above them stay file-scoped.
var definitionPattern = regexp.MustCompile(`^(?:pub\s+|export\s+|async\s+|static\s+|local\s+)*(?:def|func|function|fn|sub|class|struct|enum|trait|interface|module)\s+([A-Za-z_][A-Za-z0-9_]*)`)

func definitionName(line string) string {
	m := definitionPattern.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return ""
	}
	return m[1]
}

// Parse extracts requirement tags using line-oriented comment scanning.
func (p *GenericParser) Parse(path string, content []byte) (*Result, error) {
	leader := commentLeaderFor(filepath.Ext(path))

	var comments []commentLine
	var defs []definition

	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			continue
		}

		if leader != "" && strings.HasPrefix(trimmed, leader) {
			comments = append(comments, commentLine{
				line: lineNo,
				text: strings.TrimPrefix(trimmed, leader),
			})
			continue
		}

		if name := definitionName(trimmed); name != "" {
			defs = append(defs, definition{line: lineNo, name: name})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return bindTags(path, p.Language(), comments, defs), nil
}
