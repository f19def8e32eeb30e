// Package suspects holds the suspect data model and the on-disk store the
// review client reads and the batch tools write.
//
// Layout of a store root:
//
//	summary.json     ordered []LocaleSummaryEntry
//	inception.json   []InceptionEntry
//	{code}.json      []Suspect for one locale
package suspects

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/japaniel/nottranslated/pkg/apperrors"
)

// DeleteReason is sent along with the outbound delete link.
const DeleteReason = "It was never fully translated from English."

// Metadata describes the document as the crawler saw it. Keys the crawler
// wrote that are not modelled here are kept in Extra and written back.
type Metadata struct {
	Title         string
	Slug          string
	TranslationOf string
	Extra         map[string]json.RawMessage
}

var metadataKeys = map[string]bool{"title": true, "slug": true, "translationof": true}

// UnmarshalJSON decodes the known keys and keeps the rest in Extra.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Metadata{}
	decode := func(key string, dst *string) error {
		v, ok := raw[key]
		if !ok || string(v) == "null" {
			return nil
		}
		if err := json.Unmarshal(v, dst); err != nil {
			return fmt.Errorf("metadata.%s: %w", key, err)
		}
		return nil
	}
	if err := decode("title", &m.Title); err != nil {
		return err
	}
	if err := decode("slug", &m.Slug); err != nil {
		return err
	}
	if err := decode("translationof", &m.TranslationOf); err != nil {
		return err
	}
	for k, v := range raw {
		if metadataKeys[k] {
			continue
		}
		if m.Extra == nil {
			m.Extra = make(map[string]json.RawMessage)
		}
		m.Extra[k] = v
	}
	return nil
}

// MarshalJSON writes the known keys plus Extra.
func (m Metadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+3)
	for k, v := range m.Extra {
		out[k] = v
	}
	out["title"] = m.Title
	out["slug"] = m.Slug
	if m.TranslationOf != "" {
		out["translationof"] = m.TranslationOf
	}
	return json.Marshal(out)
}

// Suspect is a document suspected of being an abandoned translation.
type Suspect struct {
	Locale   string   `json:"locale"`
	Slug     string   `json:"slug"`
	Leaf     bool     `json:"leaf"`
	NotFound bool     `json:"notFound,omitempty"`
	Checked  int64    `json:"_checked,omitempty"` // unix seconds of the last "still there" check
	Metadata Metadata `json:"metadata"`
}

// DocSlug is the slug used in upstream addresses.
func (s Suspect) DocSlug() string {
	if s.Metadata.Slug != "" {
		return s.Metadata.Slug
	}
	return s.Slug
}

// Title falls back to the slug for documents the crawler saw without one.
func (s Suspect) Title() string {
	if s.Metadata.Title != "" {
		return s.Metadata.Title
	}
	return s.Slug
}

// URI is the root-relative document path on the wiki.
func (s Suspect) URI() string {
	return DocURI(s.Locale, s.DocSlug())
}

// ParentURI is the path of the English original, empty when unknown.
func (s Suspect) ParentURI() string {
	if s.Metadata.TranslationOf == "" {
		return ""
	}
	return DocURI("en-US", s.Metadata.TranslationOf)
}

// DocURI builds /{locale}/docs/{slug}.
func DocURI(locale, slug string) string {
	return "/" + locale + "/docs/" + slug
}

// Links are the outbound addresses shown next to a suspect.
type Links struct {
	Edit    string
	View    string
	History string
	Delete  string
}

// LinksFor builds outbound links against the wiki (editable) and the public
// site (read-only).
func LinksFor(s Suspect, wikiBase, viewBase string) Links {
	wikiBase = strings.TrimRight(wikiBase, "/")
	viewBase = strings.TrimRight(viewBase, "/")
	wiki := wikiBase + s.URI()
	return Links{
		Edit:    wiki + "$edit",
		View:    viewBase + s.URI(),
		History: wiki + "$history",
		Delete:  wiki + "$delete?reason=" + url.QueryEscape(DeleteReason),
	}
}

// Language holds display names for a locale.
type Language struct {
	English string `json:"English" yaml:"English"`
	Native  string `json:"native" yaml:"native"`
}

// LocaleSummaryEntry is one row of summary.json.
type LocaleSummaryEntry struct {
	Code      string   `json:"code"`
	Language  Language `json:"language"`
	Count     int      `json:"count"`
	Inception int      `json:"inception"`
}

// Validate checks count <= inception.
func (e LocaleSummaryEntry) Validate() error {
	if e.Count < 0 || e.Inception < 0 {
		return apperrors.DataInvariant("%s: negative count (%d) or inception (%d)", e.Code, e.Count, e.Inception)
	}
	if e.Count > e.Inception {
		return apperrors.DataInvariant("%s: count %d exceeds inception %d", e.Code, e.Count, e.Inception)
	}
	return nil
}

// Progress returns the share of the inception pool still remaining, as a
// floored percentage.
func (e LocaleSummaryEntry) Progress() (int, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	if e.Inception == 0 {
		return 0, nil
	}
	return 100 * e.Count / e.Inception, nil
}

// InceptionEntry is the count recorded when tracking of a locale began.
type InceptionEntry struct {
	Code  string `json:"code"`
	Count int    `json:"count"`
}

// Active returns suspects not marked as gone upstream.
func Active(list []Suspect) []Suspect {
	out := make([]Suspect, 0, len(list))
	for _, s := range list {
		if !s.NotFound {
			out = append(out, s)
		}
	}
	return out
}

// Find returns the suspect with slug.
func Find(list []Suspect, slug string) (Suspect, bool) {
	for _, s := range list {
		if s.Slug == slug {
			return s, true
		}
	}
	return Suspect{}, false
}

// CheckUnique enforces (locale, slug) uniqueness within a list.
func CheckUnique(code string, list []Suspect) error {
	seen := make(map[string]struct{}, len(list))
	for _, s := range list {
		if s.Locale != code {
			return apperrors.DataInvariant("%s.json: suspect %q has locale %q", code, s.Slug, s.Locale)
		}
		if _, dup := seen[s.Slug]; dup {
			return apperrors.DataInvariant("%s.json: duplicate slug %q", code, s.Slug)
		}
		seen[s.Slug] = struct{}{}
	}
	return nil
}
