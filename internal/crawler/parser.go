package crawler

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/nao1215/sitecrawl/internal/model"
	"golang.org/x/net/html"
)

// LinkExtractor returns the absolute URLs a page links to.
type LinkExtractor interface {
	ExtractLinks(body []byte, baseURL string) ([]string, error)
}

// HTMLLinkExtractor extracts href targets of <a> and <link> elements.
//
// Design decision: We use golang.org/x/net/html rather than regex because
// it tolerates the malformed markup that is common on real sites.
type HTMLLinkExtractor struct{}

// ExtractLinks parses body as HTML and returns every link resolved against
// baseURL, fragment stripped, keeping only http and https targets. Order
// follows the document and duplicates are kept; each one is a discovery.
func (HTMLLinkExtractor) ExtractLinks(body []byte, baseURL string) ([]string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	links := make([]string, 0)
	baseSet := false
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "base":
				// Only the first <base href> counts.
				if href := getAttr(n, "href"); href != "" && !baseSet {
					if u, err := base.Parse(strings.TrimSpace(href)); err == nil {
						base = u
						baseSet = true
					}
				}
			case "a", "link":
				if link := resolveURL(base, getAttr(n, "href")); link != "" {
					links = append(links, link)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return links, nil
}

// resolveURL resolves href against base and returns "" for anything that
// is not an http(s) URL.
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := base.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	if resolved.Host == "" {
		return ""
	}
	return model.StripFragment(resolved.String())
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
