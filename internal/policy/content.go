package policy

import "strings"

// DefaultAllowedContentTypes lists the response types recorded as visits:
// HTML, office documents and the common web image formats.
var DefaultAllowedContentTypes = []string{
	"text/html",
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"image/gif",
	"image/jpeg",
	"image/jpg",
	"image/png",
	"image/webp",
	"image/svg+xml",
}

// AcceptsContentType reports whether contentType contains one of allowed,
// ignoring case. An empty allowed list accepts every type.
func AcceptsContentType(contentType string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	ct := strings.ToLower(contentType)
	for _, a := range allowed {
		if a != "" && strings.Contains(ct, strings.ToLower(a)) {
			return true
		}
	}
	return false
}

// IsHTML reports whether contentType denotes an HTML document.
func IsHTML(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "text/html")
}
