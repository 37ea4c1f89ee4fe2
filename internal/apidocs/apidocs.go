// Package apidocs describes the public REST endpoints for the docs viewer
// and its Markdown export.
package apidocs

import (
	"fmt"
	"sort"
	"strings"
)

const DefaultBaseURL = "https://api.example.com"

type Parameter struct {
	Name        string
	In          string
	Type        string
	Required    bool
	Description string
}

type CodeExample struct {
	Language string
	Label    string
	Code     string
}

type Endpoint struct {
	Method          string
	Path            string
	Group           string
	Summary         string
	Description     string
	Parameters      []Parameter
	RequestExample  string
	ResponseNotes   []string
	ResponseExample string
	CodeExamples    []CodeExample
}

// Slug is a stable anchor for the endpoint, e.g. "post-api-campaigns".
func (e Endpoint) Slug() string {
	var b strings.Builder
	b.WriteString(strings.ToLower(e.Method))
	for _, r := range strings.ToLower(e.Path) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			if !strings.HasSuffix(b.String(), "-") {
				b.WriteByte('-')
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func (e Endpoint) Example(language string) (CodeExample, bool) {
	for _, ex := range e.CodeExamples {
		if ex.Language == language {
			return ex, true
		}
	}
	return CodeExample{}, false
}

type Registry struct {
	baseURL   string
	endpoints []Endpoint
}

func NewRegistry(baseURL string) *Registry {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	r := &Registry{baseURL: baseURL}
	r.endpoints = append(r.endpoints, campaignEndpoints()...)
	r.endpoints = append(r.endpoints, documentEndpoints()...)
	for i := range r.endpoints {
		if len(r.endpoints[i].CodeExamples) == 0 {
			r.endpoints[i].CodeExamples = defaultExamples(baseURL, r.endpoints[i])
		} else {
			for j := range r.endpoints[i].CodeExamples {
				r.endpoints[i].CodeExamples[j].Code = strings.ReplaceAll(r.endpoints[i].CodeExamples[j].Code, DefaultBaseURL, baseURL)
			}
		}
	}
	return r
}

func (r *Registry) BaseURL() string { return r.baseURL }

func (r *Registry) Endpoints() []Endpoint {
	return append([]Endpoint(nil), r.endpoints...)
}

// Groups returns endpoint groups in registration order.
func (r *Registry) Groups() []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range r.endpoints {
		if !seen[e.Group] {
			seen[e.Group] = true
			out = append(out, e.Group)
		}
	}
	return out
}

func (r *Registry) Find(slug string) (Endpoint, bool) {
	for _, e := range r.endpoints {
		if e.Slug() == slug {
			return e, true
		}
	}
	return Endpoint{}, false
}

// Markdown renders the whole registry as a single document.
func (r *Registry) Markdown() string {
	var b strings.Builder
	b.WriteString("# API Reference\n\n")
	fmt.Fprintf(&b, "Base URL: `%s`\n\n", r.baseURL)
	b.WriteString("All endpoints require an `Authorization: Bearer <token>` header. Errors are returned as `{\"error\": \"message\"}`.\n")
	for _, group := range r.Groups() {
		fmt.Fprintf(&b, "\n## %s\n", group)
		for _, e := range r.endpoints {
			if e.Group != group {
				continue
			}
			writeEndpoint(&b, e)
		}
	}
	return b.String()
}

func writeEndpoint(b *strings.Builder, e Endpoint) {
	fmt.Fprintf(b, "\n### %s %s\n\n%s\n", e.Method, e.Path, e.Description)
	if len(e.Parameters) > 0 {
		b.WriteString("\n| Name | In | Type | Required | Description |\n| --- | --- | --- | --- | --- |\n")
		for _, p := range e.Parameters {
			required := "No"
			if p.Required {
				required = "Yes"
			}
			fmt.Fprintf(b, "| %s | %s | %s | %s | %s |\n", p.Name, p.In, p.Type, required, p.Description)
		}
	}
	if e.RequestExample != "" {
		fmt.Fprintf(b, "\nExample request:\n\n```json\n%s\n```\n", e.RequestExample)
	}
	for _, note := range e.ResponseNotes {
		fmt.Fprintf(b, "\n- %s", note)
	}
	if len(e.ResponseNotes) > 0 {
		b.WriteString("\n")
	}
	if e.ResponseExample != "" {
		fmt.Fprintf(b, "\nExample response:\n\n```\n%s\n```\n", e.ResponseExample)
	}
	if ex, ok := e.Example("curl"); ok {
		fmt.Fprintf(b, "\n```bash\n%s\n```\n", ex.Code)
	}
}

func defaultExamples(baseURL string, e Endpoint) []CodeExample {
	url := baseURL + samplePath(e.Path)
	var curl strings.Builder
	fmt.Fprintf(&curl, "curl -X %s \"%s\" \\\n  -H \"Authorization: Bearer YOUR_JWT_TOKEN\"", e.Method, url)
	if e.RequestExample != "" {
		fmt.Fprintf(&curl, " \\\n  -H \"Content-Type: application/json\" \\\n  -d '%s'", compact(e.RequestExample))
	}

	var fetch strings.Builder
	fmt.Fprintf(&fetch, "fetch('%s', {\n  method: '%s',\n  headers: {\n    'Authorization': 'Bearer YOUR_JWT_TOKEN'", url, e.Method)
	if e.RequestExample != "" {
		fetch.WriteString(",\n    'Content-Type': 'application/json'\n  },\n")
		fmt.Fprintf(&fetch, "  body: JSON.stringify(%s)\n", indent(e.RequestExample, "  "))
	} else {
		fetch.WriteString("\n  }\n")
	}
	fetch.WriteString("})\n.then(response => response.json())\n.then(data => console.log(data))\n.catch(error => console.error('Error:', error));")

	return []CodeExample{
		{Language: "curl", Label: "cURL", Code: curl.String()},
		{Language: "fetch", Label: "JavaScript (fetch)", Code: fetch.String()},
	}
}

func samplePath(p string) string {
	return strings.ReplaceAll(p, "{id}", "8d0f7d6e-3b7a-4c55-9a5e-1f2c3d4e5f60")
}

func compact(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i := 1; i < len(lines); i++ {
		lines[i] = prefix + lines[i]
	}
	return strings.Join(lines, "\n")
}

// Languages lists every example language present in the registry, sorted.
func (r *Registry) Languages() []string {
	seen := map[string]bool{}
	for _, e := range r.endpoints {
		for _, ex := range e.CodeExamples {
			seen[ex.Language] = true
		}
	}
	out := make([]string, 0, len(seen))
	for lang := range seen {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}
