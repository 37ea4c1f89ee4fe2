package web

import (
	"net/http"
	"net/url"

	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/domain"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/i18n"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type NavItem struct {
	Href   string
	Key    string
	Active bool
}

type LanguageOption struct {
	Tag    string
	Label  string
	Href   string
	Active bool
}

var languageLabels = map[language.Tag]string{
	language.AmericanEnglish: "English",
	language.EuropeanSpanish: "Español",
}

// View is the data every template receives. Page specific values live in
// Data.
type View struct {
	Page      string
	Title     string
	Path      string
	Lang      string
	Year      int
	User      *domain.UserIdentity
	Flash     string
	Error     string
	Nav       []NavItem
	Languages []LanguageOption
	Data      any

	printer *message.Printer
}

// T translates key for the request language.
func (v *View) T(key string, args ...any) string {
	return v.printer.Sprintf(key, args...)
}

var flashKeys = map[string]string{
	"created": "campaigns.flash.created",
	"updated": "campaigns.flash.updated",
	"deleted": "campaigns.flash.deleted",
	"saved":   "pages.settings.saved",
}

func (h *Handler) newView(r *http.Request, tag language.Tag, page string, user *domain.UserIdentity) *View {
	v := &View{
		Page:    page,
		Path:    r.URL.Path,
		Lang:    tag.String(),
		Year:    h.now().Year(),
		User:    user,
		printer: i18n.Printer(tag),
	}
	if key, ok := flashKeys[r.URL.Query().Get("flash")]; ok {
		v.Flash = v.T(key)
	}
	v.Nav = navFor(r.URL.Path, user != nil)
	for _, t := range i18n.Supported() {
		q := url.Values{i18n.LangParam: {t.String()}}
		v.Languages = append(v.Languages, LanguageOption{
			Tag:    t.String(),
			Label:  languageLabels[t],
			Href:   r.URL.Path + "?" + q.Encode(),
			Active: t == tag,
		})
	}
	return v
}

func navFor(path string, signedIn bool) []NavItem {
	var items []NavItem
	if signedIn {
		items = []NavItem{
			{Href: "/dashboard", Key: "core.nav.dashboard"},
			{Href: "/campaigns", Key: "core.nav.campaigns"},
			{Href: "/api-docs", Key: "core.nav.api_docs"},
			{Href: "/pricing", Key: "core.nav.pricing"},
			{Href: "/settings", Key: "core.nav.settings"},
		}
	} else {
		items = []NavItem{
			{Href: "/", Key: "core.nav.home"},
			{Href: "/api-docs", Key: "core.nav.api_docs"},
			{Href: "/pricing", Key: "core.nav.pricing"},
			{Href: "/login", Key: "core.nav.login"},
		}
	}
	for i := range items {
		items[i].Active = items[i].Href == path
	}
	return items
}
