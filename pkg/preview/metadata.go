package preview

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/japaniel/nottranslated/pkg/apperrors"
)

// Metadata is the wiki's document API answer. Raw is passed through to
// gateway clients untouched; LastModified is the one field the review client
// needs before it allows the delete link.
type Metadata struct {
	Raw          json.RawMessage
	LastModified string
	Title        string
}

// FetchMetadata calls {base}/api/v1/doc/{locale}/{slug}.
func (c *Client) FetchMetadata(ctx context.Context, locale, slug string) (*Metadata, error) {
	target := c.resolve("/api/v1/doc/" + url.PathEscape(locale) + "/" + escapeSlug(slug))
	body, err := c.get(ctx, target)
	if err != nil {
		return nil, err
	}
	var doc struct {
		DocumentData struct {
			Title        string `json:"title"`
			LastModified string `json:"lastModified"`
		} `json:"documentData"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, apperrors.Upstream(target, 200, err)
	}
	return &Metadata{
		Raw:          json.RawMessage(body),
		LastModified: doc.DocumentData.LastModified,
		Title:        doc.DocumentData.Title,
	}, nil
}
