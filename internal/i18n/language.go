package i18n

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	LangParam      = "lang"
	LangCookieName = "cm_lang"
)

var supported = []language.Tag{language.AmericanEnglish, language.EuropeanSpanish}

var matcher = language.NewMatcher(supported)

var (
	defaultOnce   sync.Once
	defaultBundle *Bundle
	defaultErr    error
)

// Default loads and registers the embedded catalogs once per process.
func Default() (*Bundle, error) {
	defaultOnce.Do(func() {
		defaultBundle, defaultErr = LoadEmbedded()
		if defaultErr == nil {
			defaultErr = defaultBundle.Register()
		}
	})
	return defaultBundle, defaultErr
}

func Supported() []language.Tag {
	return append([]language.Tag(nil), supported...)
}

func DefaultTag() language.Tag { return supported[0] }

// ParseTag maps any BCP 47 value onto the closest supported tag.
func ParseTag(value string) (language.Tag, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return DefaultTag(), false
	}
	tag, err := language.Parse(value)
	if err != nil {
		return DefaultTag(), false
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return DefaultTag(), false
	}
	return supported[idx], true
}

// ResolveTag picks the request language from ?lang, then the language
// cookie, then Accept-Language. The bool reports whether the query value
// should be persisted as a cookie.
func ResolveTag(r *http.Request) (language.Tag, bool) {
	if r == nil {
		return DefaultTag(), false
	}
	if v := r.URL.Query().Get(LangParam); v != "" {
		if tag, ok := ParseTag(v); ok {
			return tag, true
		}
	}
	if c, err := r.Cookie(LangCookieName); err == nil {
		if tag, ok := ParseTag(c.Value); ok {
			return tag, false
		}
	}
	if accept := strings.TrimSpace(r.Header.Get("Accept-Language")); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil && len(tags) > 0 {
			_, idx, conf := matcher.Match(tags...)
			if conf != language.No {
				return supported[idx], false
			}
		}
	}
	return DefaultTag(), false
}

func SetLanguageCookie(w http.ResponseWriter, tag language.Tag) {
	http.SetCookie(w, &http.Cookie{
		Name:     LangCookieName,
		Value:    tag.String(),
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		SameSite: http.SameSiteLaxMode,
	})
}

func Printer(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag)
}
