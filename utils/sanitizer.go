package utils

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

var (
	// StrictPolicy strips all markup.
	StrictPolicy *bluemonday.Policy
	// UGCPolicy keeps the safe subset of email HTML.
	UGCPolicy *bluemonday.Policy
)

func init() {
	StrictPolicy = bluemonday.StrictPolicy()

	UGCPolicy = bluemonday.UGCPolicy()

	// Allow additional safe elements for email content
	UGCPolicy.AllowElements("p", "br", "div", "span", "h1", "h2", "h3", "h4", "h5", "h6")
	UGCPolicy.AllowElements("strong", "em", "u", "s", "code", "pre")
	UGCPolicy.AllowElements("ul", "ol", "li")
	UGCPolicy.AllowElements("blockquote")
	UGCPolicy.AllowElements("a", "img")
	UGCPolicy.AllowElements("table", "thead", "tbody", "tr", "th", "td")

	// Allow safe attributes
	UGCPolicy.AllowAttrs("href").OnElements("a")
	UGCPolicy.AllowAttrs("src", "alt", "title", "width", "height").OnElements("img")
	UGCPolicy.AllowAttrs("class", "id").Globally()
	UGCPolicy.AllowAttrs("style").OnElements("span", "div", "p")

	// Require URLs to be safe
	UGCPolicy.RequireParseableURLs(true)
	UGCPolicy.AllowURLSchemes("http", "https", "mailto", "cid")
}

// SanitizeHTML sanitizes HTML content using the UGC policy.
func SanitizeHTML(body string) string {
	return UGCPolicy.Sanitize(body)
}

// StripHTML removes all HTML tags from content.
func StripHTML(body string) string {
	return StrictPolicy.Sanitize(body)
}

// HasInlineAttachments reports whether an HTML body references inline
// content via cid: URLs. Graph does not count inline images in the
// hasAttachments flag, so callers OR this with the flag.
func HasInlineAttachments(body string) bool {
	if !strings.Contains(body, "cid:") {
		return false
	}
	node, err := html.Parse(strings.NewReader(body))
	if err != nil {
		// Unparseable bodies keep the cheap substring answer.
		return true
	}
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			for _, attr := range n.Attr {
				if attr.Key == "src" && strings.HasPrefix(strings.TrimSpace(attr.Val), "cid:") {
					return true
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	return walk(node)
}
