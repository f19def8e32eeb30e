package preview

import (
	"bytes"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/araddon/dateparse"
	"github.com/dustin/go-humanize"
	"github.com/go-shiori/dom"
	"golang.org/x/net/html"

	"github.com/japaniel/nottranslated/pkg/apperrors"
)

// RevisionLimit is how many of the most recent revisions are kept per side.
const RevisionLimit = 10

// UnknownAge is shown when no age can be guessed.
const UnknownAge = "unknown"

// RevisionEntry is one row of a document's history page.
type RevisionEntry struct {
	ID      string `json:"id"`
	Date    string `json:"date"`
	Creator string `json:"creator"`
}

// Revisions is the history of a translation and, when known, of its
// English parent. Each side carries its own error so one failing does not
// hide the other.
type Revisions struct {
	Revisions     []RevisionEntry `json:"revisions"`
	EnUSRevisions []RevisionEntry `json:"enUSRevisions"`
	GuessedAge    string          `json:"guessedAge"`
	Err           error           `json:"-"`
	EnUSErr       error           `json:"-"`
}

var (
	revisionItemSelector = cascadia.MustCompile("ul.revision-list > li")
	revisionTimeSelector = cascadia.MustCompile("time[datetime]")
	creatorSelector      = cascadia.MustCompile(".revision-list-creator")
)

// FetchRevisionHistory reads the history page of locale/slug and, when
// translationOf is set, of en-US/translationOf.
func (c *Client) FetchRevisionHistory(ctx context.Context, locale, slug, translationOf string, bots []string) *Revisions {
	out := &Revisions{Revisions: []RevisionEntry{}, EnUSRevisions: []RevisionEntry{}}
	out.Revisions, out.Err = c.history(ctx, locale, slug)
	if translationOf != "" {
		out.EnUSRevisions, out.EnUSErr = c.history(ctx, "en-US", translationOf)
	}
	if out.Revisions == nil {
		out.Revisions = []RevisionEntry{}
	}
	if out.EnUSRevisions == nil {
		out.EnUSRevisions = []RevisionEntry{}
	}
	out.GuessedAge = GuessAge(out.Revisions, out.EnUSRevisions, bots)
	return out
}

func (c *Client) history(ctx context.Context, locale, slug string) ([]RevisionEntry, error) {
	target := c.resolve(docPath(locale, slug) + "$history")
	body, err := c.get(ctx, target)
	if err != nil {
		return nil, err
	}
	entries, err := ParseRevisions(body)
	if err != nil {
		return nil, apperrors.Upstream(target, 200, err)
	}
	return entries, nil
}

// ParseRevisions extracts up to RevisionLimit entries from a history page.
func ParseRevisions(page []byte) ([]RevisionEntry, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}
	entries := []RevisionEntry{}
	for _, li := range cascadia.QueryAll(doc, revisionItemSelector) {
		if len(entries) == RevisionLimit {
			break
		}
		e := RevisionEntry{ID: dom.GetAttribute(li, "data-revision-id")}
		if t := cascadia.Query(li, revisionTimeSelector); t != nil {
			e.Date = dom.GetAttribute(t, "datetime")
		}
		if cr := cascadia.Query(li, creatorSelector); cr != nil {
			e.Creator = strings.TrimSpace(dom.TextContent(cr))
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// GuessAge estimates how long a translation has been left behind: the
// distance between the earliest human edit of the translation and the
// earliest human edit of its parent. Edits by bots are skipped.
func GuessAge(revisions, parent []RevisionEntry, bots []string) string {
	a, ok := earliest(revisions, bots)
	if !ok {
		return UnknownAge
	}
	b, ok := earliest(parent, bots)
	if !ok {
		return UnknownAge
	}
	return strings.TrimSpace(humanize.RelTime(a, b, "", ""))
}

func earliest(entries []RevisionEntry, bots []string) (time.Time, bool) {
	var first time.Time
	for _, e := range entries {
		if slices.Contains(bots, e.Creator) {
			continue
		}
		t, err := dateparse.ParseAny(e.Date)
		if err != nil {
			continue
		}
		if first.IsZero() || t.Before(first) {
			first = t
		}
	}
	return first, !first.IsZero()
}
