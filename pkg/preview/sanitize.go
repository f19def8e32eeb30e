package preview

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/go-shiori/dom"
	"golang.org/x/net/html"

	"github.com/japaniel/nottranslated/pkg/apperrors"
)

var (
	chromeSelector = cascadia.MustCompile(strings.Join([]string{
		"script", "div.sidebar", "div.global-notice", "header", "footer", "meta",
		`link[rel="alternative"]`, "section.newsletter-container",
		"main .full-width-row-container", "div.metadata",
		"aside.document-toc-container", "div.mdn-wiki-notice",
	}, ", "))
	stylesheetSelector = cascadia.MustCompile(`link[rel="stylesheet"][href]`)
	imageSelector      = cascadia.MustCompile("img[src]")
	widgetSelector     = cascadia.MustCompile("iframe, object, embed, .interactive")
)

// PlaceholderClass marks the block that replaces embedded widgets.
const PlaceholderClass = "nottranslated-placeholder"

// ValidateURI checks that uri is a plain root-relative path: resolving it
// against the upstream root must give back exactly uri as the path, on the
// upstream host. The returned address is escaped for the wire.
func (c *Client) ValidateURI(uri string) (string, error) {
	if !strings.HasPrefix(uri, "/") {
		return "", apperrors.Validation("uri must start with /")
	}
	ref, err := url.Parse(uri)
	if err != nil {
		return "", apperrors.Validation("uri is not a valid path")
	}
	abs := c.base.ResolveReference(ref)
	// uri may arrive decoded (/fr/docs/Référence) or escaped
	samePath := abs.Path == uri || abs.EscapedPath() == uri
	if abs.Host != c.base.Host || !samePath || abs.RawQuery != "" || abs.Fragment != "" {
		return "", apperrors.Validation("uri must be a plain document path")
	}
	return abs.String(), nil
}

// FetchRenderedPage downloads the document at uri and returns it sanitized
// for embedding.
func (c *Client) FetchRenderedPage(ctx context.Context, uri string) (string, error) {
	target, err := c.ValidateURI(uri)
	if err != nil {
		return "", err
	}
	body, err := c.get(ctx, target)
	if err != nil {
		return "", err
	}
	return c.Sanitize(body)
}

// Sanitize strips site chrome from a wiki page, points stylesheets and
// root-relative images at the upstream host and swaps embedded widgets for
// a placeholder block.
func (c *Client) Sanitize(page []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return "", apperrors.Upstream(c.base.String(), 0, err)
	}

	for _, n := range cascadia.QueryAll(doc, chromeSelector) {
		// nested matches may already be detached
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}

	for _, n := range cascadia.QueryAll(doc, stylesheetSelector) {
		dom.SetAttribute(n, "href", c.absolute(dom.GetAttribute(n, "href")))
	}
	for _, n := range cascadia.QueryAll(doc, imageSelector) {
		src := dom.GetAttribute(n, "src")
		if strings.HasPrefix(src, "/") && !strings.HasPrefix(src, "//") {
			dom.SetAttribute(n, "src", c.base.String()+src)
		}
	}

	for _, n := range cascadia.QueryAll(doc, widgetSelector) {
		if n.Parent == nil {
			continue
		}
		n.Parent.InsertBefore(placeholder(n), n)
		n.Parent.RemoveChild(n)
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

func (c *Client) absolute(href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return c.base.ResolveReference(ref).String()
}

func placeholder(n *html.Node) *html.Node {
	div := dom.CreateElement("div")
	dom.SetAttribute(div, "class", PlaceholderClass)
	label := "Embedded content"
	if n.Type == html.ElementNode {
		label += " (" + n.Data + ")"
	}
	dom.AppendChild(div, dom.CreateTextNode(label+" not shown in preview"))
	return div
}
