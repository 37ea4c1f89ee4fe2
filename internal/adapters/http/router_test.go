package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/adapters/cache"
	httpadapter "github.com/viralforge/mesh/services/marketing/campaign-service/internal/adapters/http"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/adapters/memory"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/adapters/security"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/apidocs"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/application"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/markdown"
	"gopkg.in/yaml.v3"
)

const testSecret = "test-secret-with-enough-length-0123456789"

type staticProbe []string

func (p staticProbe) Probe(context.Context) []string { return p }

type env struct {
	router http.Handler
	signer *security.HS256Verifier
	repos  *memory.Repositories
}

func newEnv(t *testing.T, opts httpadapter.Options) *env {
	t.Helper()
	verifier, err := security.NewHS256Verifier(testSecret, security.VerifierOptions{})
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	repos := memory.NewRepositories()
	svc := application.NewService(application.Dependencies{
		Campaigns:   repos.Campaigns,
		Documents:   repos.Documents,
		Outbox:      repos.Outbox,
		EventDedup:  repos.EventDedup,
		Idempotency: repos.Idempotency,
		Tokens:      verifier,
		Cache:       cache.NewMemoryCache(),
		Markdown:    markdown.NewConverter(),
	})
	return &env{
		router: httpadapter.NewRouter(httpadapter.NewHandler(svc, opts), nil),
		signer: verifier,
		repos:  repos,
	}
}

func (e *env) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	tok, err := e.signer.Sign(userID, "owner@example.com", "authenticated", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func (e *env) do(t *testing.T, method, path, token, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return out
}

type campaignEnvelope struct {
	Campaign application.CampaignResponse `json:"campaign"`
}

type errorEnvelope struct {
	Error string `json:"error"`
}

func TestCampaignRoutesRequireBearerToken(t *testing.T) {
	t.Parallel()

	e := newEnv(t, httpadapter.Options{})
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/campaigns"},
		{http.MethodPost, "/api/campaigns"},
		{http.MethodPost, "/api/1/html-to-markdown"},
	} {
		rr := e.do(t, tc.method, tc.path, "", "")
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", tc.method, tc.path, rr.Code)
		}
		if got := decode[errorEnvelope](t, rr).Error; got != "Unauthorized" {
			t.Fatalf("unexpected error message %q", got)
		}
	}
	rr := e.do(t, http.MethodGet, "/api/campaigns", "not-a-jwt", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", rr.Code)
	}
}

func TestCampaignLifecycle(t *testing.T) {
	t.Parallel()

	e := newEnv(t, httpadapter.Options{})
	tok := e.token(t, uuid.New())

	rr := e.do(t, http.MethodPost, "/api/campaigns", tok, `{
		"name": "  Spring Launch ",
		"description": "",
		"type": "email",
		"target_audience": "{\"age_min\":25,\"age_max\":45}",
		"settings": {"budget": 100, "subject_line": "Hi"}
	}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: status=%d body=%s", rr.Code, rr.Body.String())
	}
	created := decode[campaignEnvelope](t, rr).Campaign
	if created.Name != "Spring Launch" || created.Status != "draft" || created.Description != nil {
		t.Fatalf("unexpected created campaign %+v", created)
	}
	if created.TargetAudience["age_min"] != float64(25) {
		t.Fatalf("expected decoded audience, got %v", created.TargetAudience)
	}

	rr = e.do(t, http.MethodGet, "/api/campaigns", tok, "")
	list := decode[struct {
		Campaigns []application.CampaignResponse `json:"campaigns"`
	}](t, rr)
	if rr.Code != http.StatusOK || len(list.Campaigns) != 1 {
		t.Fatalf("list: status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = e.do(t, http.MethodGet, "/api/campaigns?status=running", tok, "")
	list = decode[struct {
		Campaigns []application.CampaignResponse `json:"campaigns"`
	}](t, rr)
	if len(list.Campaigns) != 0 {
		t.Fatalf("expected status filter to exclude draft, got %d", len(list.Campaigns))
	}

	rr = e.do(t, http.MethodPut, "/api/campaigns/"+created.ID, tok, `{"name":"Renamed","type":"sms"}`)
	updated := decode[campaignEnvelope](t, rr).Campaign
	if rr.Code != http.StatusOK || updated.Name != "Renamed" || updated.Type != "sms" {
		t.Fatalf("update: status=%d body=%s", rr.Code, rr.Body.String())
	}
	if updated.Settings["budget"] != float64(100) {
		t.Fatalf("expected settings kept when omitted, got %v", updated.Settings)
	}

	rr = e.do(t, http.MethodPatch, "/api/campaigns/"+created.ID+"/status", tok, `{"status":"running"}`)
	running := decode[campaignEnvelope](t, rr).Campaign
	if rr.Code != http.StatusOK || running.Status != "running" || running.StartedAt == nil {
		t.Fatalf("status: status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = e.do(t, http.MethodGet, "/api/campaigns/stats", tok, "")
	stats := decode[application.CampaignStatsResponse](t, rr)
	if stats.Total != 1 || stats.ByStatus["running"] != 1 || stats.ByType["sms"] != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	rr = e.do(t, http.MethodDelete, "/api/campaigns/"+created.ID, tok, "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Campaign deleted successfully") {
		t.Fatalf("delete: status=%d body=%s", rr.Code, rr.Body.String())
	}
	rr = e.do(t, http.MethodGet, "/api/campaigns/"+created.ID, tok, "")
	if rr.Code != http.StatusNotFound || decode[errorEnvelope](t, rr).Error != "Campaign not found" {
		t.Fatalf("expected not found after delete, got %d %s", rr.Code, rr.Body.String())
	}
	rr = e.do(t, http.MethodDelete, "/api/campaigns/"+created.ID, tok, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected repeated delete to succeed, got %d", rr.Code)
	}

	if pending := e.repos.Outbox.Pending(); len(pending) != 4 {
		t.Fatalf("expected 4 outbox events, got %v", pending)
	}
}

func TestCampaignValidationMessages(t *testing.T) {
	t.Parallel()

	e := newEnv(t, httpadapter.Options{})
	tok := e.token(t, uuid.New())
	cases := []struct {
		name string
		body string
		want string
	}{
		{name: "missing type", body: `{"name":"x"}`, want: "Name and type are required"},
		{name: "bad type", body: `{"name":"x","type":"fax"}`, want: "Invalid campaign type"},
		{name: "bad status", body: `{"name":"x","type":"sms","status":"archived"}`, want: "Invalid campaign status"},
		{name: "bad json", body: `{"name":"x","type":"sms","settings":"{oops"}`, want: "Invalid JSON format in target_audience or settings"},
		{name: "malformed body", body: `{"name":`, want: "Invalid request body"},
	}
	for _, tc := range cases {
		rr := e.do(t, http.MethodPost, "/api/campaigns", tok, tc.body)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", tc.name, rr.Code)
		}
		if got := decode[errorEnvelope](t, rr).Error; got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestCampaignsAreScopedToOwner(t *testing.T) {
	t.Parallel()

	e := newEnv(t, httpadapter.Options{})
	owner := e.token(t, uuid.New())
	other := e.token(t, uuid.New())

	rr := e.do(t, http.MethodPost, "/api/campaigns", owner, `{"name":"Mine","type":"phone"}`)
	id := decode[campaignEnvelope](t, rr).Campaign.ID

	if rr := e.do(t, http.MethodGet, "/api/campaigns/"+id, other, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign campaign, got %d", rr.Code)
	}
	if rr := e.do(t, http.MethodPut, "/api/campaigns/"+id, other, `{"name":"Theirs","type":"sms"}`); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 updating a foreign campaign, got %d", rr.Code)
	}
	e.do(t, http.MethodDelete, "/api/campaigns/"+id, other, "")
	if rr := e.do(t, http.MethodGet, "/api/campaigns/"+id, owner, ""); rr.Code != http.StatusOK {
		t.Fatalf("expected campaign to survive foreign delete, got %d", rr.Code)
	}
	if rr := e.do(t, http.MethodGet, "/api/campaigns/not-a-uuid", owner, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for malformed id, got %d", rr.Code)
	}
}

func TestCreateCampaignReplaysIdempotentRequest(t *testing.T) {
	t.Parallel()

	e := newEnv(t, httpadapter.Options{})
	tok := e.token(t, uuid.New())
	body := `{"name":"Once","type":"social"}`

	first := decode[campaignEnvelope](t, e.do(t, http.MethodPost, "/api/campaigns", tok, body, "Idempotency-Key", "k1")).Campaign
	rr := e.do(t, http.MethodPost, "/api/campaigns", tok, body, "Idempotency-Key", "k1")
	second := decode[campaignEnvelope](t, rr).Campaign
	if rr.Code != http.StatusCreated || first.ID != second.ID {
		t.Fatalf("expected replay of %s, got %d %s", first.ID, rr.Code, second.ID)
	}
	rr = e.do(t, http.MethodPost, "/api/campaigns", tok, `{"name":"Twice","type":"social"}`, "Idempotency-Key", "k1")
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 on key reuse, got %d", rr.Code)
	}
}

func TestHTMLToMarkdown(t *testing.T) {
	t.Parallel()

	e := newEnv(t, httpadapter.Options{})
	tok := e.token(t, uuid.New())

	rr := e.do(t, http.MethodPost, "/api/1/html-to-markdown", tok,
		`{"html":"<h1>Hello, World!</h1><p>This is a <strong>test</strong>.</p>"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("convert: status=%d body=%s", rr.Code, rr.Body.String())
	}
	if got := rr.Body.String(); got != "# Hello, World!\n\nThis is a **test**.\n" {
		t.Fatalf("unexpected markdown %q", got)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); cd != `attachment; filename="document.md"` {
		t.Fatalf("unexpected disposition %q", cd)
	}
	if rr.Header().Get("X-Storage-Path") != "" {
		t.Fatalf("expected no storage path without store flag")
	}

	rr = e.do(t, http.MethodPost, "/api/1/html-to-markdown", tok, `{"html":"<p>x</p>","filename":"../notes","store":true}`)
	if cd := rr.Header().Get("Content-Disposition"); cd != `attachment; filename="notes.md"` {
		t.Fatalf("unexpected disposition %q", cd)
	}
	if !strings.HasPrefix(rr.Header().Get("X-Storage-Path"), "documents/") {
		t.Fatalf("expected storage path, got %q", rr.Header().Get("X-Storage-Path"))
	}

	rr = e.do(t, http.MethodGet, "/api/1/documents", tok, "")
	docs := decode[struct {
		Documents []application.DocumentView `json:"documents"`
	}](t, rr)
	if len(docs.Documents) != 1 || docs.Documents[0].Filename != "notes.md" {
		t.Fatalf("unexpected documents %+v", docs)
	}

	rr = e.do(t, http.MethodPost, "/api/1/html-to-markdown", tok, `{"html":"  "}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank html, got %d", rr.Code)
	}
}

func TestHTMLToMarkdownRateLimit(t *testing.T) {
	t.Parallel()

	e := newEnv(t, httpadapter.Options{ConvertRate: 0.001, ConvertBurst: 1})
	tok := e.token(t, uuid.New())
	if rr := e.do(t, http.MethodPost, "/api/1/html-to-markdown", tok, `{"html":"<p>a</p>"}`); rr.Code != http.StatusOK {
		t.Fatalf("expected first call to pass, got %d", rr.Code)
	}
	if rr := e.do(t, http.MethodPost, "/api/1/html-to-markdown", tok, `{"html":"<p>a</p>"}`); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
}

func TestHealthAndReadiness(t *testing.T) {
	t.Parallel()

	healthy := newEnv(t, httpadapter.Options{Readiness: staticProbe(nil)})
	if rr := healthy.do(t, http.MethodGet, "/readyz", "", ""); rr.Code != http.StatusOK {
		t.Fatalf("expected ready, got %d", rr.Code)
	}
	if rr := healthy.do(t, http.MethodGet, "/healthz", "", ""); rr.Code != http.StatusOK || rr.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected healthz ok with request id, got %d", rr.Code)
	}
	degraded := newEnv(t, httpadapter.Options{Readiness: staticProbe{"postgres"}})
	rr := degraded.do(t, http.MethodGet, "/readyz", "", "")
	if rr.Code != http.StatusServiceUnavailable || !strings.Contains(rr.Body.String(), "postgres") {
		t.Fatalf("expected 503 naming postgres, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestOpenAPISpecCoversDocumentedEndpoints(t *testing.T) {
	t.Parallel()

	e := newEnv(t, httpadapter.Options{})
	rr := e.do(t, http.MethodGet, "/swagger/openapi.yaml", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("spec: status=%d", rr.Code)
	}
	var spec struct {
		Paths map[string]map[string]any `yaml:"paths"`
	}
	if err := yaml.Unmarshal(rr.Body.Bytes(), &spec); err != nil {
		t.Fatalf("parse spec: %v", err)
	}
	for _, ep := range apidocs.NewRegistry("").Endpoints() {
		ops, ok := spec.Paths[ep.Path]
		if !ok {
			t.Fatalf("openapi is missing path %s", ep.Path)
		}
		if _, ok := ops[strings.ToLower(ep.Method)]; !ok {
			t.Fatalf("openapi is missing %s %s", ep.Method, ep.Path)
		}
	}
}

func TestUnknownRoutes(t *testing.T) {
	t.Parallel()

	e := newEnv(t, httpadapter.Options{})
	tok := e.token(t, uuid.New())
	if rr := e.do(t, http.MethodGet, "/api/nope", tok, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if rr := e.do(t, http.MethodGet, "/elsewhere", "", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without ui, got %d", rr.Code)
	}
}
