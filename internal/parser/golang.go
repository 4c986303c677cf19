package parser

import (
	"go/ast"
	goparser "go/parser"
	"go/token"
	"time"

	"reqtrace/internal/logging"
)

// GoParser extracts requirement tags from Go source using go/ast.
type GoParser struct{}

// NewGoParser creates a new Go annotation parser.
func NewGoParser() *GoParser {
	return &GoParser{}
}

// Language returns "go" for tag refs.
func (p *GoParser) Language() string {
	return "go"
}

// SupportedExtensions returns [".go"].
func (p *GoParser) SupportedExtensions() []string {
	return []string{".go"}
}

// Parse extracts requirement tags from Go source code.
func (p *GoParser) Parse(path string, content []byte) (*Result, error) {
	start := time.Now()

	fset := token.NewFileSet()
	file, err := goparser.ParseFile(fset, path, content, goparser.ParseComments)
	if err != nil {
		logging.Get(logging.CategoryParse).Error("GoParser: parse failed: %s - %v", path, err)
		return nil, err
	}

	var comments []commentLine
	for _, group := range file.Comments {
		for _, c := range group.List {
			comments = append(comments, commentLine{
				line: fset.Position(c.Slash).Line,
				text: stripGoComment(c.Text),
			})
		}
	}

	var defs []definition
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			defs = append(defs, definition{
				line: fset.Position(d.Pos()).Line,
				name: d.Name.Name,
			})
		case *ast.GenDecl:
			for _, spec := range d.Specs {
				switch s := spec.(type) {
				case *ast.TypeSpec:
					defs = append(defs, definition{
						line: fset.Position(d.Pos()).Line,
						name: s.Name.Name,
					})
				case *ast.ValueSpec:
					if len(s.Names) > 0 {
						defs = append(defs, definition{
							line: fset.Position(d.Pos()).Line,
							name: s.Names[0].Name,
						})
					}
				}
			}
		}
	}

	res := bindTags(path, p.Language(), comments, defs)
	logging.ParseDebug("GoParser: %s - %d tags in %v", path, len(res.Tags), time.Since(start))
	return res, nil
}

// stripGoComment removes the // or /* */ leader from a raw comment.
func stripGoComment(raw string) string {
	if len(raw) >= 2 && raw[:2] == "//" {
		return raw[2:]
	}
	if len(raw) >= 4 && raw[:2] == "/*" {
		return raw[2 : len(raw)-2]
	}
	return raw
}
