// Package markdown turns HTML documents into CommonMark-flavoured Markdown.
package markdown

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const maxDepth = 200

var (
	whitespaceRun = regexp.MustCompile(`[ \t\r\n\f]+`)
	escaper       = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `_`, `\_`, "`", "\\`", `[`, `\[`, `]`, `\]`)

	// blockMarker matches text that would open a heading, quote, list,
	// setext underline or fence when it starts a line.
	blockMarker = regexp.MustCompile(`^(\s*)(#{1,6}(?:\s|$)|[>+=-]|~~~|\d{1,9}[.)](?:\s|$))`)
)

var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Ul: true, atom.Ol: true, atom.Li: true, atom.Pre: true, atom.Blockquote: true, atom.Table: true,
	atom.Hr: true, atom.Div: true, atom.Section: true, atom.Article: true, atom.Main: true, atom.Header: true,
	atom.Footer: true, atom.Nav: true, atom.Aside: true, atom.Figure: true, atom.Figcaption: true,
	atom.Dl: true, atom.Dt: true, atom.Dd: true, atom.Body: true, atom.Html: true,
}

// prefixed elements render a marker before their text, so that text never
// begins a line.
var prefixed = map[atom.Atom]bool{
	atom.Strong: true, atom.B: true, atom.Em: true, atom.I: true, atom.Del: true, atom.S: true,
	atom.Strike: true, atom.A: true, atom.Code: true, atom.Td: true, atom.Th: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
}

// Converter is safe for concurrent use.
type Converter struct{}

func NewConverter() *Converter { return &Converter{} }

func (c *Converter) Convert(src string) (string, error) {
	if strings.TrimSpace(src) == "" {
		return "", nil
	}
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	r := renderer{}
	out := r.children(doc, 0)
	out = tidy(out)
	if out == "" {
		return "", nil
	}
	return out + "\n", nil
}

type renderer struct{}

func (r renderer) children(n *html.Node, depth int) string {
	var b strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		b.WriteString(r.node(child, depth+1))
	}
	return b.String()
}

func (r renderer) node(n *html.Node, depth int) string {
	if depth > maxDepth {
		return ""
	}
	switch n.Type {
	case html.TextNode:
		text := escaper.Replace(whitespaceRun.ReplaceAllString(n.Data, " "))
		if startsLine(n) {
			text = escapeBlockMarker(text)
		}
		return text
	case html.DocumentNode:
		return r.children(n, depth)
	case html.ElementNode:
	default:
		return ""
	}

	switch n.DataAtom {
	case atom.Head, atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Iframe, atom.Svg, atom.Title:
		return ""
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		level := int(n.Data[1] - '0')
		text := singleLine(r.children(n, depth))
		if text == "" {
			return ""
		}
		return block(strings.Repeat("#", level) + " " + text)
	case atom.P:
		return block(strings.TrimSpace(r.children(n, depth)))
	case atom.Br:
		return "  \n"
	case atom.Hr:
		return block("---")
	case atom.Strong, atom.B:
		return wrapInline(r.children(n, depth), "**")
	case atom.Em, atom.I:
		return wrapInline(r.children(n, depth), "_")
	case atom.Del, atom.S, atom.Strike:
		return wrapInline(r.children(n, depth), "~~")
	case atom.Code:
		return inlineCode(textContent(n))
	case atom.Pre:
		return r.pre(n)
	case atom.A:
		return r.link(n, depth)
	case atom.Img:
		src := attr(n, "src")
		if src == "" {
			return ""
		}
		return "![" + escaper.Replace(attr(n, "alt")) + "](" + destination(src) + titleSuffix(n) + ")"
	case atom.Ul:
		return r.list(n, false, depth)
	case atom.Ol:
		return r.list(n, true, depth)
	case atom.Blockquote:
		return r.blockquote(n, depth)
	case atom.Table:
		return r.table(n, depth)
	case atom.Div, atom.Section, atom.Article, atom.Main, atom.Header, atom.Footer, atom.Nav, atom.Aside,
		atom.Figure, atom.Figcaption, atom.Dl, atom.Dt, atom.Dd, atom.Body, atom.Html:
		inner := strings.TrimSpace(r.children(n, depth))
		if inner == "" {
			return ""
		}
		return block(inner)
	}
	return r.children(n, depth)
}

func (r renderer) pre(n *html.Node) string {
	code := textContent(n)
	code = strings.TrimPrefix(code, "\n")
	code = strings.TrimRight(code, "\n")
	lang := ""
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode && child.DataAtom == atom.Code {
			lang = codeLanguage(attr(child, "class"))
			break
		}
	}
	fence := "```"
	if strings.Contains(code, "```") {
		fence = "~~~"
	}
	return block(fence + lang + "\n" + code + "\n" + fence)
}

func (r renderer) link(n *html.Node, depth int) string {
	text := singleLine(r.children(n, depth))
	href := attr(n, "href")
	if href == "" {
		return text
	}
	if text == "" {
		text = escaper.Replace(href)
	}
	return "[" + text + "](" + destination(href) + titleSuffix(n) + ")"
}

func (r renderer) list(n *html.Node, ordered bool, depth int) string {
	index := 1
	if start, err := strconv.Atoi(attr(n, "start")); err == nil && ordered {
		index = start
	}
	var b strings.Builder
	for item := n.FirstChild; item != nil; item = item.NextSibling {
		if item.Type != html.ElementNode || item.DataAtom != atom.Li {
			continue
		}
		marker := "- "
		if ordered {
			marker = strconv.Itoa(index) + ". "
			index++
		}
		content := tidy(r.children(item, depth))
		indent := strings.Repeat(" ", len(marker))
		inFence := false
		for i, line := range strings.Split(content, "\n") {
			switch {
			case i == 0:
				b.WriteString(marker + line)
			case line == "" && inFence:
				b.WriteString("\n")
			case line == "":
			default:
				b.WriteString("\n" + indent + line)
			}
			if isFence(line) {
				inFence = !inFence
			}
		}
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return ""
	}
	return block(strings.TrimRight(b.String(), "\n"))
}

func (r renderer) blockquote(n *html.Node, depth int) string {
	content := tidy(r.children(n, depth))
	if content == "" {
		return ""
	}
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if line == "" {
			lines[i] = ">"
			continue
		}
		lines[i] = "> " + line
	}
	return block(strings.Join(lines, "\n"))
}

func (r renderer) table(n *html.Node, depth int) string {
	var rows [][]string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			if child.Type != html.ElementNode {
				continue
			}
			switch child.DataAtom {
			case atom.Thead, atom.Tbody, atom.Tfoot:
				walk(child)
			case atom.Tr:
				var cells []string
				for cell := child.FirstChild; cell != nil; cell = cell.NextSibling {
					if cell.Type == html.ElementNode && (cell.DataAtom == atom.Td || cell.DataAtom == atom.Th) {
						text := singleLine(r.children(cell, depth))
						cells = append(cells, strings.ReplaceAll(text, "|", `\|`))
					}
				}
				rows = append(rows, cells)
			}
		}
	}
	walk(n)
	if len(rows) == 0 {
		return ""
	}
	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}
	if width == 0 {
		return ""
	}
	var b strings.Builder
	for i, row := range rows {
		for len(row) < width {
			row = append(row, "")
		}
		b.WriteString("| " + strings.Join(row, " | ") + " |\n")
		if i == 0 {
			b.WriteString("|" + strings.Repeat(" --- |", width) + "\n")
		}
	}
	return block(strings.TrimRight(b.String(), "\n"))
}

// startsLine reports whether the rendered text of n lands at the start of a
// Markdown line.
func startsLine(n *html.Node) bool {
	for cur := n; ; {
		prev := cur.PrevSibling
		for prev != nil && (prev.Type == html.CommentNode || prev.Type == html.TextNode && strings.TrimSpace(prev.Data) == "") {
			prev = prev.PrevSibling
		}
		if prev != nil {
			return prev.Type == html.ElementNode && (prev.DataAtom == atom.Br || blockElements[prev.DataAtom])
		}
		parent := cur.Parent
		if parent == nil || parent.Type != html.ElementNode {
			return true
		}
		if prefixed[parent.DataAtom] {
			return false
		}
		if blockElements[parent.DataAtom] {
			return true
		}
		cur = parent
	}
}

func escapeBlockMarker(text string) string {
	m := blockMarker.FindStringSubmatchIndex(text)
	if m == nil {
		return text
	}
	at := m[4]
	if c := text[at]; c >= '0' && c <= '9' {
		at += strings.IndexAny(text[at:m[5]], ".)")
	}
	return text[:at] + `\` + text[at:]
}

// destination wraps link targets that would end or split the link early.
func destination(url string) string {
	if !strings.ContainsAny(url, " \t()<>") {
		return url
	}
	return "<" + strings.NewReplacer("<", "%3C", ">", "%3E").Replace(url) + ">"
}

func isFence(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~")
}

func block(s string) string {
	if s == "" {
		return ""
	}
	return "\n\n" + s + "\n\n"
}

// wrapInline puts marker around the trimmed text and keeps surrounding
// whitespace outside it.
func wrapInline(s, marker string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return s
	}
	lead := s[:strings.Index(s, trimmed)]
	trail := s[len(lead)+len(trimmed):]
	return lead + marker + trimmed + marker + trail
}

func inlineCode(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if s == "" {
		return ""
	}
	if strings.Contains(s, "`") {
		return "`` " + s + " ``"
	}
	return "`" + s + "`"
}

func singleLine(s string) string {
	s = strings.ReplaceAll(s, "  \n", " ")
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		b.WriteString(textContent(child))
	}
	return b.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func titleSuffix(n *html.Node) string {
	title := attr(n, "title")
	if title == "" {
		return ""
	}
	return ` "` + strings.ReplaceAll(title, `"`, `\"`) + `"`
}

func codeLanguage(class string) string {
	for _, field := range strings.Fields(class) {
		for _, prefix := range []string{"language-", "lang-"} {
			if strings.HasPrefix(field, prefix) {
				return strings.TrimPrefix(field, prefix)
			}
		}
	}
	return ""
}

// tidy blanks whitespace-only lines, collapses blank runs and trims the
// result. Fenced code is left untouched and hard breaks keep their trailing
// spaces.
func tidy(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	inFence := false
	blank := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if isFence(line) {
			inFence = !inFence
			out = append(out, line)
			blank = false
			continue
		}
		if inFence {
			out = append(out, line)
			continue
		}
		if trimmed == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		if strings.HasSuffix(line, "  ") {
			out = append(out, strings.TrimRight(line, " ")+"  ")
			continue
		}
		out = append(out, strings.TrimRight(line, " "))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
