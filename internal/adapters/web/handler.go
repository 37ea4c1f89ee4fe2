// Package web serves the browser app: server rendered pages inside a shared
// layout, plus content-only fragments for the client navigation shell.
package web

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/apidocs"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/application"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/domain"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/i18n"
)

// TokenCookie carries the access token issued by the hosted auth backend.
const TokenCookie = "sb-access-token"

// PartialHeader marks navigation requests from the client shell.
const PartialHeader = "X-Requested-With"

//go:embed templates
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

type Options struct {
	Logger        *slog.Logger
	SecureCookies bool
}

type Handler struct {
	service   *application.Service
	docs      *apidocs.Registry
	pages     *Pages
	templates map[string]*template.Template
	logger    *slog.Logger
	secure    bool
	now       func() time.Time
}

func NewHandler(service *application.Service, docs *apidocs.Registry, opts Options) (*Handler, error) {
	if _, err := i18n.Default(); err != nil {
		return nil, fmt.Errorf("load message catalogs: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	h := &Handler{
		service:   service,
		docs:      docs,
		templates: templates,
		logger:    logger.With("module", "web", "layer", "adapter"),
		secure:    opts.SecureCookies,
		now:       time.Now,
	}
	h.pages = NewPages(
		Page{Pattern: "/", Name: "home", TitleKey: "core.app_name", render: renderHome},
		Page{Pattern: "/dashboard", Name: "dashboard", TitleKey: "pages.dashboard.title", RequireAuth: true, render: renderDashboard},
		Page{Pattern: "/campaigns", Name: "campaigns", TitleKey: "campaigns.title", RequireAuth: true, render: renderCampaignList},
		Page{Pattern: "/campaigns/new", Name: "campaign-form", TitleKey: "campaigns.form.create_title", RequireAuth: true, render: renderNewCampaign},
		Page{Pattern: "/campaigns/{id}/edit", Name: "campaign-form", TitleKey: "campaigns.form.edit_title", RequireAuth: true, render: renderEditCampaign},
		Page{Pattern: "/api-docs", Name: "api-docs", TitleKey: "pages.docs.title", render: renderDocs},
		Page{Pattern: "/pricing", Name: "pricing", TitleKey: "pages.pricing.title", render: renderPricing},
		Page{Pattern: "/settings", Name: "settings", TitleKey: "pages.settings.title", RequireAuth: true, render: renderSettings},
		Page{Pattern: "/login", Name: "login", TitleKey: "pages.login.title", render: renderLogin},
	)
	return h, nil
}

// Pages exposes the navigation table.
func (h *Handler) Pages() *Pages { return h.pages }

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	static, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	r.Get("/api-docs/markdown", h.docsMarkdown)
	r.Post("/login", h.login)
	r.Post("/logout", h.logout)
	r.Post("/settings", h.saveSettings)
	r.Post("/campaigns/new", h.createCampaign)
	r.Post("/campaigns/{id}/edit", h.updateCampaign)
	r.Post("/campaigns/{id}/delete", h.deleteCampaign)
	r.Get("/*", h.navigate)
	return r
}

func parseTemplates() (map[string]*template.Template, error) {
	base, err := template.New("base").Funcs(templateFuncs).ParseFS(templateFS, "templates/layout.html", "templates/components.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout templates: %w", err)
	}
	pages, err := fs.Glob(templateFS, "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	out := make(map[string]*template.Template, len(pages))
	for _, p := range pages {
		t, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(templateFS, p); err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}
		name := strings.TrimSuffix(strings.TrimPrefix(p, "templates/pages/"), ".html")
		out[name] = t
	}
	return out, nil
}

var templateFuncs = template.FuncMap{
	"statusKey": func(s string) string { return "campaigns.status." + s },
	"typeKey":   func(s string) string { return "campaigns.type." + s },
	"lower":     strings.ToLower,
	"join":      strings.Join,
	"card":      func(v *View, c campaignCard) cardView { return cardView{View: v, Card: c} },
}

// navigate resolves the path against the page table and renders the page,
// or the 404 page when nothing matches.
func (h *Handler) navigate(w http.ResponseWriter, r *http.Request) {
	match, ok := h.pages.Navigate(r.URL.Path)
	if !ok {
		h.notFound(w, r)
		return
	}
	user := h.identity(r)
	if match.Page.RequireAuth && user == nil {
		redirectToLogin(w, r)
		return
	}
	v := h.view(w, r, match.Page.Name, user)
	v.Title = v.T(match.Page.TitleKey)
	if err := match.Page.render(h, r, match.Params, v); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.notFound(w, r)
			return
		}
		if errors.Is(err, domain.ErrUnauthorized) {
			redirectToLogin(w, r)
			return
		}
		h.failPage(w, r, v, err)
		return
	}
	h.write(w, r, http.StatusOK, match.Page.Name, v)
}

func (h *Handler) view(w http.ResponseWriter, r *http.Request, page string, user *domain.UserIdentity) *View {
	tag, persist := i18n.ResolveTag(r)
	if persist {
		i18n.SetLanguageCookie(w, tag)
	}
	return h.newView(r, tag, page, user)
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	v := h.view(w, r, "not-found", h.identity(r))
	v.Title = v.T("core.not_found.title")
	v.Data = r.URL.Path
	h.write(w, r, http.StatusNotFound, "not-found", v)
}

func (h *Handler) failPage(w http.ResponseWriter, r *http.Request, v *View, err error) {
	h.logger.ErrorContext(r.Context(), "page render failed",
		"operation", "render_page",
		"outcome", "failure",
		"page", v.Page,
		"path", r.URL.Path,
		"error", err,
	)
	v.Page = "error"
	v.Title = v.T("core.error.title")
	v.Data = nil
	h.write(w, r, http.StatusInternalServerError, "error", v)
}

// write renders the full layout, or only the content block for partial
// requests. The page title travels in X-Page-Title for the client shell.
func (h *Handler) write(w http.ResponseWriter, r *http.Request, status int, name string, v *View) {
	t, ok := h.templates[name]
	if !ok {
		h.logger.ErrorContext(r.Context(), "unknown template", "operation", "render_page", "outcome", "failure", "template", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	block := "layout"
	if isPartial(r) {
		block = "content"
		w.Header().Set("X-Page-Title", url.PathEscape(v.Title))
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, block, v); err != nil {
		h.logger.ErrorContext(r.Context(), "template execution failed",
			"operation", "render_page",
			"outcome", "failure",
			"template", name,
			"error", err,
		)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Vary", "X-Requested-With, Cookie, Accept-Language")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func isPartial(r *http.Request) bool {
	return r.Header.Get(PartialHeader) == "spa-router" || r.URL.Query().Get("partial") == "1"
}

// identity returns the signed in user, or nil when the token cookie is
// missing or no longer valid.
func (h *Handler) identity(r *http.Request) *domain.UserIdentity {
	c, err := r.Cookie(TokenCookie)
	if err != nil || c.Value == "" {
		return nil
	}
	id, err := h.service.Identity(r.Context(), c.Value)
	if err != nil {
		return nil
	}
	return &id
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	target := "/login?" + url.Values{"redirect": {r.URL.RequestURI()}}.Encode()
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// safeRedirect only allows local paths.
func safeRedirect(target, fallback string) string {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	return target
}

func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (*domain.UserIdentity, bool) {
	user := h.identity(r)
	if user == nil {
		redirectToLogin(w, r)
		return nil, false
	}
	return user, true
}
