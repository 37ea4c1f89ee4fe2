package web

import (
	"sort"
	"strings"
)

// Page is one navigable screen of the app shell.
type Page struct {
	Pattern     string
	Name        string
	TitleKey    string
	RequireAuth bool
	render      renderFunc
}

// Match is the result of resolving a path against the page registry.
type Match struct {
	Page   Page
	Params map[string]string
}

// Pages is the client navigation table. Static patterns win over
// parameterized ones; among parameterized patterns the one with more
// literal segments wins.
type Pages struct {
	exact  map[string]Page
	params []Page
}

func NewPages(pages ...Page) *Pages {
	p := &Pages{exact: map[string]Page{}}
	for _, page := range pages {
		if strings.Contains(page.Pattern, "{") {
			p.params = append(p.params, page)
			continue
		}
		p.exact[page.Pattern] = page
	}
	sort.SliceStable(p.params, func(i, j int) bool {
		return literalSegments(p.params[i].Pattern) > literalSegments(p.params[j].Pattern)
	})
	return p
}

// Navigate resolves path to a page. Trailing slashes are ignored.
func (p *Pages) Navigate(path string) (Match, bool) {
	path = normalizePath(path)
	if page, ok := p.exact[path]; ok {
		return Match{Page: page, Params: map[string]string{}}, true
	}
	segments := splitPath(path)
	for _, page := range p.params {
		if params, ok := matchSegments(splitPath(page.Pattern), segments); ok {
			return Match{Page: page, Params: params}, true
		}
	}
	return Match{}, false
}

func normalizePath(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func matchSegments(pattern, segments []string) (map[string]string, bool) {
	if len(pattern) != len(segments) {
		return nil, false
	}
	params := map[string]string{}
	for i, part := range pattern {
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
			if segments[i] == "" {
				return nil, false
			}
			params[part[1:len(part)-1]] = segments[i]
			continue
		}
		if part != segments[i] {
			return nil, false
		}
	}
	return params, true
}

func literalSegments(pattern string) int {
	n := 0
	for _, part := range splitPath(pattern) {
		if !strings.HasPrefix(part, "{") {
			n++
		}
	}
	return n
}
