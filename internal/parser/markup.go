package parser

import (
	"html"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gtext "github.com/yuin/goldmark/text"
)

// parseMarkdown keeps every leaf block (heading, paragraph, code) as its own
// paragraph and renders list items with a "- " marker.
func parseMarkdown(path string) (string, error) {
	content, err := readFile(path)
	if err != nil {
		return "", err
	}
	return markdownBlocks([]byte(content)), nil
}

func markdownBlocks(src []byte) string {
	doc := goldmark.New().Parser().Parse(gtext.NewReader(src))

	var blocks []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Type() != ast.TypeBlock || n.Lines().Len() == 0 {
			return ast.WalkContinue, nil
		}

		lines := n.Lines()
		parts := make([]string, 0, lines.Len())
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			parts = append(parts, strings.TrimRight(string(seg.Value(src)), "\r\n"))
		}
		block := strings.TrimSpace(strings.Join(parts, "\n"))
		if block == "" {
			return ast.WalkSkipChildren, nil
		}
		if _, ok := n.Parent().(*ast.ListItem); ok && n.PreviousSibling() == nil {
			block = "- " + block
		}
		blocks = append(blocks, block)
		return ast.WalkSkipChildren, nil
	})
	return strings.Join(blocks, "\n\n")
}

var (
	scriptTag         = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag          = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	noscriptTag       = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	headTag           = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	htmlComments      = regexp.MustCompile(`(?s)<!--.*?-->`)
	openBlockElements = regexp.MustCompile(`(?i)<(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)[^>]*>`)
	blockElements     = regexp.MustCompile(`(?i)</(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)>`)
	brTags            = regexp.MustCompile(`(?i)<br\s*/?>`)
	allTags           = regexp.MustCompile(`<[^>]+>`)
	multiSpaces       = regexp.MustCompile(`[ \t]+`)
)

func parseHTML(path string) (string, error) {
	content, err := readFile(path)
	if err != nil {
		return "", err
	}
	return stripHTML(content), nil
}

// stripHTML drops non-content elements and tags, one text line per block element.
func stripHTML(content string) string {
	for _, re := range []*regexp.Regexp{scriptTag, styleTag, noscriptTag, headTag, htmlComments} {
		content = re.ReplaceAllString(content, "")
	}
	content = openBlockElements.ReplaceAllString(content, "\n")
	content = blockElements.ReplaceAllString(content, "\n")
	content = brTags.ReplaceAllString(content, "\n")
	content = allTags.ReplaceAllString(content, "")
	content = html.UnescapeString(content)

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(multiSpaces.ReplaceAllString(line, " "))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
