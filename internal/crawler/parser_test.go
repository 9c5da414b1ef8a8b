package crawler

import (
	"slices"
	"testing"
)

// TestHTMLLinkExtractor tests link extraction and resolution.
func TestHTMLLinkExtractor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		base string
		html string
		want []string
	}{
		{
			name: "resolves relative and absolute links",
			base: "https://example.com/dir/page.html",
			html: `<html><body>
				<a href="/root">root</a>
				<a href="sibling">sibling</a>
				<a href="../up">up</a>
				<a href="https://other.org/x">other</a>
			</body></html>`,
			want: []string{
				"https://example.com/root",
				"https://example.com/dir/sibling",
				"https://example.com/up",
				"https://other.org/x",
			},
		},
		{
			name: "includes link elements",
			base: "https://example.com/",
			html: `<html><head><link rel="alternate" href="/feed"></head><body></body></html>`,
			want: []string{"https://example.com/feed"},
		},
		{
			name: "strips fragments and skips fragment-only hrefs",
			base: "https://example.com/",
			html: `<a href="#top">top</a><a href="/page#section">page</a>`,
			want: []string{"https://example.com/page"},
		},
		{
			name: "skips non-http schemes",
			base: "https://example.com/",
			html: `<a href="mailto:a@example.com">m</a>
				<a href="javascript:void(0)">j</a>
				<a href="tel:123">t</a>
				<a href="ftp://example.com/f">f</a>
				<a href="/ok">ok</a>`,
			want: []string{"https://example.com/ok"},
		},
		{
			name: "keeps duplicates",
			base: "https://example.com/",
			html: `<a href="/a">1</a><a href="/a">2</a>`,
			want: []string{"https://example.com/a", "https://example.com/a"},
		},
		{
			name: "honors base element",
			base: "https://example.com/x/",
			html: `<html><head><base href="https://cdn.example.com/root/"></head>
				<body><a href="page">p</a></body></html>`,
			want: []string{"https://cdn.example.com/root/page"},
		},
		{
			name: "malformed markup",
			base: "https://example.com/",
			html: `<p><a href="/broken">x</a><div><b><a href=/bare>unclosed`,
			want: []string{"https://example.com/broken", "https://example.com/bare"},
		},
		{
			name: "no links",
			base: "https://example.com/",
			html: `plain text`,
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := HTMLLinkExtractor{}.ExtractLinks([]byte(tt.html), tt.base)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

// TestHTMLLinkExtractorInvalidBase tests an unparsable base URL.
func TestHTMLLinkExtractorInvalidBase(t *testing.T) {
	t.Parallel()

	if _, err := (HTMLLinkExtractor{}).ExtractLinks([]byte(`<a href="/x">x</a>`), "http://[::1"); err == nil {
		t.Error("expected error for invalid base URL")
	}
}
