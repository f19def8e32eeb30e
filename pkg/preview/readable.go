package preview

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

var (
	// (?s) allows dot to match newlines
	// (?i) makes it case-insensitive
	reRT = regexp.MustCompile(`(?si)<rt\b[^>]*>.*?</rt>`)
	reRP = regexp.MustCompile(`(?si)<rp\b[^>]*>.*?</rp>`)
)

// SanitizeRuby removes ruby text (<rt>...</rt>) and ruby parentheses
// (<rp>...</rp>). Readability keeps all text, so without this a CJK page
// reads every annotated word twice.
func SanitizeRuby(content []byte) []byte {
	cleaned := reRT.ReplaceAll(content, []byte{})
	cleaned = reRP.ReplaceAll(cleaned, []byte{})
	return cleaned
}

// Readable is a plain-text rendering of a document.
type Readable struct {
	Title string
	Text  string
}

// FetchReadable fetches uri, sanitizes it and extracts the article text.
func (c *Client) FetchReadable(ctx context.Context, uri string) (*Readable, error) {
	page, err := c.FetchRenderedPage(ctx, uri)
	if err != nil {
		return nil, err
	}
	return c.ExtractReadable(uri, []byte(page))
}

// ExtractReadable runs readability over an already sanitized page.
func (c *Client) ExtractReadable(uri string, page []byte) (*Readable, error) {
	pageURL, err := url.Parse(c.resolve(uri))
	if err != nil {
		return nil, err
	}
	article, err := readability.FromReader(bytes.NewReader(SanitizeRuby(page)), pageURL)
	if err != nil {
		return nil, err
	}
	return &Readable{
		Title: article.Title,
		Text:  strings.TrimSpace(article.TextContent),
	}, nil
}
