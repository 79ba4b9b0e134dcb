package knowledge

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

// Section is a top-level (H1/H2) slice of a markdown document with its
// header hierarchy.
type Section struct {
	HeaderPath string // "# Offre > ## Garanties"
	Content    string
}

// MarkdownReader flattens markdown files into plain text. Each H1/H2 section
// keeps its header path as a prefix so retrieval chunks carry their context.
type MarkdownReader struct {
	parser goldmark.Markdown
}

func NewMarkdownReader() *MarkdownReader {
	return &MarkdownReader{
		parser: goldmark.New(
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		),
	}
}

// Read loads a markdown file and returns its flattened text.
func (r *MarkdownReader) Read(path string) (string, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read markdown file: %w", err)
	}
	return r.Flatten(source)
}

// Flatten joins the document's sections, each prefixed with its header path.
// A document without headers comes back unchanged.
func (r *MarkdownReader) Flatten(source []byte) (string, error) {
	sections, err := r.Sections(source)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		if s.HeaderPath == "" {
			parts = append(parts, s.Content)
			continue
		}
		parts = append(parts, s.HeaderPath+"\n\n"+s.Content)
	}
	return strings.Join(parts, "\n\n"), nil
}

// Sections splits markdown at H1/H2 boundaries, tagging each section with
// its header hierarchy.
func (r *MarkdownReader) Sections(source []byte) ([]Section, error) {
	doc := r.parser.Parser().Parse(text.NewReader(source))

	tree, err := toc.Inspect(doc, source,
		toc.MinDepth(1),
		toc.MaxDepth(2),
		toc.Compact(true),
	)
	if err != nil {
		return nil, fmt.Errorf("inspect markdown structure: %w", err)
	}

	if len(tree.Items) == 0 {
		content := strings.TrimSpace(string(source))
		if content == "" {
			return nil, nil
		}
		return []Section{{Content: content}}, nil
	}

	bounds := headingBounds(doc, source)

	var sections []Section
	collectSections(tree.Items, nil, bounds, source, &sections)
	return sections, nil
}

// headingBound records where a heading's section starts and where the next
// H1/H2 begins.
type headingBound struct {
	start int
	end   int
}

// headingBounds walks the AST once and maps each H1/H2 heading ID to its
// section byte range. A section runs from the heading line to the next
// heading of depth <= 2, or EOF.
func headingBounds(doc ast.Node, source []byte) map[string]headingBound {
	type located struct {
		id    string
		start int
	}
	var headings []located

	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Kind() != ast.KindHeading {
			return ast.WalkContinue, nil
		}
		heading := n.(*ast.Heading)
		if heading.Level > 2 || heading.Lines().Len() == 0 {
			return ast.WalkContinue, nil
		}
		id := ""
		if v, ok := heading.AttributeString("id"); ok {
			if b, ok := v.([]byte); ok {
				id = string(b)
			}
		}
		headings = append(headings, located{id: id, start: heading.Lines().At(0).Start})
		return ast.WalkContinue, nil
	})

	sort.Slice(headings, func(i, j int) bool { return headings[i].start < headings[j].start })

	bounds := make(map[string]headingBound, len(headings))
	for i, h := range headings {
		end := len(source)
		if i+1 < len(headings) {
			end = headings[i+1].start
		}
		bounds[h.id] = headingBound{start: h.start, end: end}
	}
	return bounds
}

// collectSections walks the TOC hierarchy in order, emitting one section per
// item with the accumulated header path.
func collectSections(items toc.Items, ancestors []string, bounds map[string]headingBound, source []byte, out *[]Section) {
	for _, item := range items {
		path := append(append([]string(nil), ancestors...), string(item.Title))

		if b, ok := bounds[string(item.ID)]; ok {
			content := strings.TrimSpace(string(source[b.start:b.end]))
			*out = append(*out, Section{
				HeaderPath: formatHeaderPath(path),
				Content:    content,
			})
		}

		if len(item.Items) > 0 {
			collectSections(item.Items, path, bounds, source, out)
		}
	}
}

// formatHeaderPath renders ["Offre", "Garanties"] as "# Offre > ## Garanties".
func formatHeaderPath(path []string) string {
	parts := make([]string, len(path))
	for i, title := range path {
		parts[i] = fmt.Sprintf("%s %s", strings.Repeat("#", i+1), title)
	}
	return strings.Join(parts, " > ")
}
