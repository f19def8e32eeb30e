package suspects

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/japaniel/nottranslated/pkg/apperrors"
)

const frFixture = `[
  {"locale": "fr", "slug": "Web/CSS", "leaf": false, "metadata": {"title": "CSS", "slug": "Web/CSS", "translationof": "Web/CSS", "tags": ["css"]}},
  {"locale": "fr", "slug": "Web/CSS/color", "leaf": true, "metadata": {"title": "color", "slug": "Web/CSS/color"}},
  {"locale": "fr", "slug": "Web/Gone", "leaf": true, "notFound": true, "metadata": {"title": "Gone", "slug": "Web/Gone"}}
]`

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLocaleLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "fr.json", frFixture)
	store := NewStore(dir)

	list, err := store.Locale("fr")
	if err != nil {
		t.Fatalf("Locale: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 suspects, got %d", len(list))
	}
	if list[0].Metadata.TranslationOf != "Web/CSS" {
		t.Fatalf("translationof not decoded: %+v", list[0].Metadata)
	}
	if _, ok := list[0].Metadata.Extra["tags"]; !ok {
		t.Fatalf("expected unknown metadata key to be kept")
	}
	if !list[2].NotFound {
		t.Fatalf("expected notFound to be decoded")
	}
	if got := len(Active(list)); got != 2 {
		t.Fatalf("expected 2 active suspects, got %d", got)
	}
	if list[1].URI() != "/fr/docs/Web/CSS/color" {
		t.Fatalf("unexpected URI %q", list[1].URI())
	}
	if list[0].ParentURI() != "/en-US/docs/Web/CSS" {
		t.Fatalf("unexpected parent URI %q", list[0].ParentURI())
	}
}

func TestLocaleRejectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "de.json", `[
	  {"locale": "de", "slug": "A", "leaf": true, "metadata": {"title": "A"}},
	  {"locale": "de", "slug": "A", "leaf": false, "metadata": {"title": "A again"}}
	]`)
	_, err := NewStore(dir).Locale("de")
	if !errors.Is(err, apperrors.ErrDataInvariant) {
		t.Fatalf("expected data invariant violation, got %v", err)
	}
}

func TestLocaleRejectsSchemaViolation(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "de.json", `[{"locale": "de", "leaf": "yes", "metadata": {"title": "A"}}]`)
	_, err := NewStore(dir).Locale("de")
	if err == nil || !strings.Contains(err.Error(), "schema validation failed") {
		t.Fatalf("expected schema error, got %v", err)
	}
}

func TestLocaleRejectsPathTraversal(t *testing.T) {
	_, err := NewStore(t.TempDir()).Locale("../etc/passwd")
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateWritesOnlyOnChange(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "fr.json", frFixture)
	store := NewStore(dir)

	changed, err := store.Update("fr", func(list []Suspect) ([]Suspect, error) { return list, nil })
	if err != nil {
		t.Fatalf("noop update: %v", err)
	}
	if changed {
		t.Fatalf("identity update must not rewrite the file")
	}
	raw, _ := os.ReadFile(filepath.Join(dir, "fr.json"))
	if string(raw) != frFixture {
		t.Fatalf("file content changed on a no-op update")
	}

	changed, err = store.Update("fr", func(list []Suspect) ([]Suspect, error) {
		list[1].NotFound = true
		return list, nil
	})
	if err != nil || !changed {
		t.Fatalf("expected a write, changed=%v err=%v", changed, err)
	}
	list, err := store.Locale("fr")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !list[1].NotFound {
		t.Fatalf("update not persisted")
	}
	if _, ok := list[0].Metadata.Extra["tags"]; !ok {
		t.Fatalf("unknown metadata keys lost on rewrite")
	}
}

func TestUpdateRejectsDuplicateResult(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "fr.json", frFixture)
	store := NewStore(dir)
	_, err := store.Update("fr", func(list []Suspect) ([]Suspect, error) {
		return append(list, list[0]), nil
	})
	if !errors.Is(err, apperrors.ErrDataInvariant) {
		t.Fatalf("expected invariant error, got %v", err)
	}
}

func TestDigestIgnoresFormatting(t *testing.T) {
	a, err := Digest([]byte(`{"b": 1, "a": [1, 2]}`))
	if err != nil {
		t.Fatalf("digest a: %v", err)
	}
	b, err := Digest([]byte(`{"a":[1,2],"b":1}`))
	if err != nil {
		t.Fatalf("digest b: %v", err)
	}
	if a != b {
		t.Fatalf("expected equal digests, got %s and %s", a, b)
	}
}

func TestProgress(t *testing.T) {
	p, err := LocaleSummaryEntry{Code: "fr", Count: 120, Inception: 150}.Progress()
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if p != 80 {
		t.Fatalf("expected 80, got %d", p)
	}

	_, err = LocaleSummaryEntry{Code: "fr", Count: 151, Inception: 150}.Progress()
	if !IsInvariantViolation(err) {
		t.Fatalf("expected invariant violation, got %v", err)
	}
}

func TestBuildSummary(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "fr.json", frFixture)
	writeFile(t, dir, "de.json", `[{"locale": "de", "slug": "A", "leaf": true, "metadata": {"title": "A"}}]`)
	writeFile(t, dir, "inception.json", `[{"code": "fr", "count": 150}]`)
	store := NewStore(dir)
	langs, err := DefaultLanguages()
	if err != nil {
		t.Fatalf("languages: %v", err)
	}

	entries, err := BuildSummary(store, SummaryOptions{Languages: langs})
	if err != nil {
		t.Fatalf("BuildSummary: %v", err)
	}
	want := []LocaleSummaryEntry{
		{Code: "fr", Language: Language{English: "French", Native: "Français"}, Count: 2, Inception: 150},
		{Code: "de", Language: Language{English: "German", Native: "Deutsch"}, Count: 1, Inception: 1},
	}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Fatalf("summary mismatch (-want +got):\n%s", diff)
	}

	onDisk, err := store.Summary()
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	if diff := cmp.Diff(entries, onDisk); diff != "" {
		t.Fatalf("summary.json mismatch (-want +got):\n%s", diff)
	}
	inception, err := store.Inception()
	if err != nil {
		t.Fatalf("read inception: %v", err)
	}
	if len(inception) != 2 {
		t.Fatalf("expected de to be seeded into inception.json, got %+v", inception)
	}
}

func TestBuildSummaryStrict(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "fr.json", frFixture)
	writeFile(t, dir, "inception.json", `[{"code": "fr", "count": 1}]`)
	langs, _ := DefaultLanguages()

	_, err := BuildSummary(NewStore(dir), SummaryOptions{Languages: langs, Strict: true})
	if !IsInvariantViolation(err) {
		t.Fatalf("expected invariant violation in strict mode, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, SummaryFile)); !os.IsNotExist(err) {
		t.Fatalf("summary.json must not be written in strict failure")
	}

	entries, err := BuildSummary(NewStore(dir), SummaryOptions{Languages: langs})
	if err != nil {
		t.Fatalf("lenient mode should warn, got %v", err)
	}
	if entries[0].Count != 2 || entries[0].Inception != 1 {
		t.Fatalf("unexpected lenient row %+v", entries[0])
	}
}

func TestBuildSummaryUnknownLanguage(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "xx.json", `[]`)
	_, err := BuildSummary(NewStore(dir), SummaryOptions{Languages: Languages{}})
	if err == nil {
		t.Fatalf("expected error for unknown locale")
	}
}

func TestLinksFor(t *testing.T) {
	s := Suspect{Locale: "fr", Slug: "Web/CSS", Metadata: Metadata{Title: "CSS", Slug: "Web/CSS"}}
	links := LinksFor(s, "https://wiki.example/", "https://view.example")
	if links.Edit != "https://wiki.example/fr/docs/Web/CSS$edit" {
		t.Fatalf("edit link %q", links.Edit)
	}
	if links.View != "https://view.example/fr/docs/Web/CSS" {
		t.Fatalf("view link %q", links.View)
	}
	if !strings.HasPrefix(links.Delete, "https://wiki.example/fr/docs/Web/CSS$delete?reason=It+was+never") {
		t.Fatalf("delete link %q", links.Delete)
	}
}

func TestWatcherReportsContentChanges(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "fr.json", frFixture)
	store := NewStore(dir)
	w := NewWatcher(store, "fr", nil)
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan []Suspect, 4)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, func(l []Suspect) { got <- l }) }()

	// give the watcher time to register
	time.Sleep(50 * time.Millisecond)

	var list []Suspect
	if err := json.Unmarshal([]byte(frFixture), &list); err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	list = list[:1]
	if err := store.WriteLocale("fr", list); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case l := <-got:
		if len(l) != 1 {
			t.Fatalf("expected reloaded list of 1, got %d", len(l))
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("watcher did not report the change")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
}
