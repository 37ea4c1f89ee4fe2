package web

import "testing"

func TestNavigate(t *testing.T) {
	t.Parallel()

	pages := NewPages(
		Page{Pattern: "/", Name: "home"},
		Page{Pattern: "/campaigns", Name: "campaigns"},
		Page{Pattern: "/campaigns/new", Name: "new"},
		Page{Pattern: "/campaigns/{id}", Name: "detail"},
		Page{Pattern: "/campaigns/{id}/edit", Name: "edit"},
	)

	cases := []struct {
		path   string
		want   string
		params map[string]string
		found  bool
	}{
		{path: "/", want: "home", found: true},
		{path: "", want: "home", found: true},
		{path: "/campaigns/", want: "campaigns", found: true},
		{path: "/campaigns?status=draft", want: "campaigns", found: true},
		{path: "/campaigns#top", want: "campaigns", found: true},
		{path: "/campaigns/new", want: "new", found: true},
		{path: "/campaigns/abc", want: "detail", params: map[string]string{"id": "abc"}, found: true},
		{path: "/campaigns/abc/edit/", want: "edit", params: map[string]string{"id": "abc"}, found: true},
		{path: "/campaigns/abc/delete"},
		{path: "/nowhere"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.path, func(t *testing.T) {
			t.Parallel()
			m, ok := pages.Navigate(tc.path)
			if ok != tc.found {
				t.Fatalf("expected found=%v for %q, got %v", tc.found, tc.path, ok)
			}
			if !ok {
				return
			}
			if m.Page.Name != tc.want {
				t.Fatalf("expected %q for %q, got %q", tc.want, tc.path, m.Page.Name)
			}
			for k, v := range tc.params {
				if m.Params[k] != v {
					t.Fatalf("expected param %s=%q, got %q", k, v, m.Params[k])
				}
			}
		})
	}
}

func TestNavigatePrefersMoreLiteralSegments(t *testing.T) {
	t.Parallel()

	pages := NewPages(
		Page{Pattern: "/{section}/{id}", Name: "generic"},
		Page{Pattern: "/campaigns/{id}", Name: "campaign"},
	)
	m, ok := pages.Navigate("/campaigns/42")
	if !ok || m.Page.Name != "campaign" {
		t.Fatalf("expected campaign page, got %+v %v", m.Page, ok)
	}
	m, ok = pages.Navigate("/documents/42")
	if !ok || m.Page.Name != "generic" || m.Params["section"] != "documents" {
		t.Fatalf("expected generic page, got %+v %v", m, ok)
	}
}
