package i18n

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"golang.org/x/text/language"
)

func TestEmbeddedCatalogsAreComplete(t *testing.T) {
	t.Parallel()

	b, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("load embedded catalogs: %v", err)
	}
	for _, locale := range []string{"en-US", "es-ES"} {
		if !b.HasLocale(locale) {
			t.Fatalf("expected locale %s", locale)
		}
		if got := b.Namespaces(locale); len(got) != 3 {
			t.Fatalf("expected 3 namespaces for %s, got %v", locale, got)
		}
	}
	if missing := b.Missing("es-ES"); len(missing) != 0 {
		t.Fatalf("es-ES is missing translations: %v", missing)
	}
	if v, ok := b.Message("fr-FR", "campaigns.empty"); !ok || v != "No campaigns found. Create your first campaign to get started!" {
		t.Fatalf("expected base locale fallback, got %q", v)
	}
}

func TestLoadFromFSRejectsForeignKeyPrefix(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"locales/en-US/core.yaml": {Data: []byte("locale: en-US\nnamespace: core\nmessages:\n  pages.title: nope\n")},
	}
	if _, err := LoadFromFS(fsys); err == nil {
		t.Fatalf("expected prefix error")
	}
}

func TestLoadFromFSRequiresBaseLocale(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"locales/es-ES/core.yaml": {Data: []byte("locale: es-ES\nnamespace: core\nmessages:\n  core.a: b\n")},
	}
	if _, err := LoadFromFS(fsys); err == nil {
		t.Fatalf("expected missing base locale error")
	}
}

func TestPrinterTranslates(t *testing.T) {
	t.Parallel()

	if _, err := Default(); err != nil {
		t.Fatalf("default bundle: %v", err)
	}
	es := Printer(language.EuropeanSpanish)
	if got := es.Sprintf("core.not_found.body", "/nope"); got != `No se encontró la página "/nope".` {
		t.Fatalf("unexpected translation %q", got)
	}
	en := Printer(language.AmericanEnglish)
	if got := en.Sprintf("pages.pricing.save"); got != "Save 50%" {
		t.Fatalf("unexpected translation %q", got)
	}
}

func TestResolveTag(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		url     string
		cookie  string
		accept  string
		want    language.Tag
		persist bool
	}{
		{name: "default", url: "/", want: language.AmericanEnglish},
		{name: "query wins", url: "/?lang=es", cookie: "en-US", want: language.EuropeanSpanish, persist: true},
		{name: "cookie", url: "/", cookie: "es-ES", accept: "en", want: language.EuropeanSpanish},
		{name: "accept language", url: "/", accept: "fr-FR;q=0.9, es;q=0.8", want: language.EuropeanSpanish},
		{name: "unsupported query ignored", url: "/?lang=xx-invalid-", want: language.AmericanEnglish},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, tc.url, nil)
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: LangCookieName, Value: tc.cookie})
			}
			if tc.accept != "" {
				req.Header.Set("Accept-Language", tc.accept)
			}
			got, persist := ResolveTag(req)
			if got != tc.want || persist != tc.persist {
				t.Fatalf("expected %s/%v, got %s/%v", tc.want, tc.persist, got, persist)
			}
		})
	}
}

func TestSetLanguageCookie(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	SetLanguageCookie(rec, language.EuropeanSpanish)
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != LangCookieName || cookies[0].Value != "es-ES" {
		t.Fatalf("unexpected cookies %+v", cookies)
	}
}
