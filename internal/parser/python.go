package parser

import (
	"context"
	"strings"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"reqtrace/internal/logging"
)

// PythonParser extracts requirement tags from Python source files.
// It uses Tree-sitter for accurate comment and definition positions.
type PythonParser struct {
	parser *sitter.Parser
}

// NewPythonParser creates a new Python annotation parser.
func NewPythonParser() *PythonParser {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	return &PythonParser{parser: parser}
}

// Language returns "py" for tag refs.
func (p *PythonParser) Language() string {
	return "py"
}

// SupportedExtensions returns [".py", ".pyw"].
func (p *PythonParser) SupportedExtensions() []string {
	return []string{".py", ".pyw"}
}

// Parse extracts requirement tags from Python source code.
func (p *PythonParser) Parse(path string, content []byte) (*Result, error) {
	start := time.Now()

	tree, err := p.parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		logging.Get(logging.CategoryParse).Error("PythonParser: parse failed: %s - %v", path, err)
		return nil, err
	}
	defer tree.Close()

	var comments []commentLine
	var defs []definition
	p.walkNode(tree.RootNode(), content, &comments, &defs)

	res := bindTags(path, p.Language(), comments, defs)
	logging.ParseDebug("PythonParser: %s - %d tags in %v", path, len(res.Tags), time.Since(start))
	return res, nil
}

// walkNode recursively collects comment lines and definition positions.
func (p *PythonParser) walkNode(node *sitter.Node, content []byte, comments *[]commentLine, defs *[]definition) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)

		switch child.Type() {
		case "comment":
			text := string(content[child.StartByte():child.EndByte()])
			*comments = append(*comments, commentLine{
				line: int(child.StartPoint().Row) + 1,
				text: strings.TrimPrefix(text, "#"),
			})

		case "function_definition", "class_definition":
			if nameNode := child.ChildByFieldName("name"); nameNode != nil {
				*defs = append(*defs, definition{
					line: int(child.StartPoint().Row) + 1,
					name: string(content[nameNode.StartByte():nameNode.EndByte()]),
				})
			}
			p.walkNode(child, content, comments, defs)

		case "decorated_definition":
			// The decorator line is where the binding target starts.
			for j := 0; j < int(child.NamedChildCount()); j++ {
				inner := child.NamedChild(j)
				if inner.Type() == "function_definition" || inner.Type() == "class_definition" {
					if nameNode := inner.ChildByFieldName("name"); nameNode != nil {
						*defs = append(*defs, definition{
							line: int(child.StartPoint().Row) + 1,
							name: string(content[nameNode.StartByte():nameNode.EndByte()]),
						})
					}
					p.walkNode(inner, content, comments, defs)
				}
			}

		default:
			p.walkNode(child, content, comments, defs)
		}
	}
}
