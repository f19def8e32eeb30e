package preview

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/japaniel/nottranslated/pkg/apperrors"
)

const wikiPage = `<!doctype html>
<html><head>
<meta charset="utf-8">
<link rel="stylesheet" href="/static/build/styles/wiki.css">
<link rel="alternative" href="/fr/docs/Web/CSS.json">
<script>alert(1)</script>
</head><body>
<header>site header</header>
<div class="global-notice">notice</div>
<main>
  <div class="full-width-row-container">breadcrumbs</div>
  <article>
    <h1>CSS</h1>
    <p>Les feuilles de style en cascade.</p>
    <img src="/files/123/diagram.png">
    <img src="https://cdn.example/x.png">
    <iframe src="https://live.example/sample"></iframe>
    <div class="interactive">demo</div>
  </article>
</main>
<div class="sidebar">toc</div>
<aside class="document-toc-container">toc</aside>
<div class="mdn-wiki-notice">wiki notice</div>
<section class="newsletter-container">signup</section>
<footer>site footer</footer>
</body></html>`

const historyPage = `<html><body><ul class="revision-list">
<li data-revision-id="3"><time datetime="2020-06-01T10:00:00Z">June</time> <span class="revision-list-creator">mdnwebdocs-bot</span></li>
<li data-revision-id="2"><time datetime="2020-01-01T10:00:00Z">Jan</time> <span class="revision-list-creator"> alice </span></li>
<li data-revision-id="1"><time datetime="2019-12-01T10:00:00Z">Dec</time> <span class="revision-list-creator">mdnwebdocs-bot</span></li>
</ul></body></html>`

func newTestClient(t *testing.T, h http.Handler) (*Client, *int64) {
	t.Helper()
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		h.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	c, err := NewClient(Options{BaseURL: srv.URL + "/", UserAgent: "nottranslated-test"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c, &hits
}

func TestFetchRenderedPageSanitizes(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fr/docs/Web/CSS" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(wikiPage))
	}))

	out, err := c.FetchRenderedPage(context.Background(), "/fr/docs/Web/CSS")
	if err != nil {
		t.Fatalf("FetchRenderedPage: %v", err)
	}
	for _, gone := range []string{"<script", "site header", "site footer", "global-notice", "sidebar",
		"<meta", "CSS.json", "breadcrumbs", "document-toc-container", "wiki notice", "signup", "<iframe", "demo"} {
		if strings.Contains(out, gone) {
			t.Fatalf("expected %q to be removed, got:\n%s", gone, out)
		}
	}
	for _, kept := range []string{
		"Les feuilles de style en cascade.",
		`href="` + c.BaseURL() + `/static/build/styles/wiki.css"`,
		`src="` + c.BaseURL() + `/files/123/diagram.png"`,
		`src="https://cdn.example/x.png"`,
		PlaceholderClass,
	} {
		if !strings.Contains(out, kept) {
			t.Fatalf("expected %q in output, got:\n%s", kept, out)
		}
	}
	if out != strings.TrimSpace(out) {
		t.Fatalf("output must be trimmed")
	}
}

func TestFetchRenderedPageNotFound(t *testing.T) {
	c, _ := newTestClient(t, http.NotFoundHandler())
	_, err := c.FetchRenderedPage(context.Background(), "/fr/docs/Web/CSS")
	if !errors.Is(err, apperrors.ErrUpstreamNotFound) {
		t.Fatalf("expected upstream not found, got %v", err)
	}
}

func TestFetchRenderedPageUpstreamError(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	_, err := c.FetchRenderedPage(context.Background(), "/fr/docs/Web/CSS")
	if !errors.Is(err, apperrors.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if appErr, _ := apperrors.IsAppError(err); appErr.UpstreamStatus != http.StatusBadGateway {
		t.Fatalf("expected upstream status to be kept, got %d", appErr.UpstreamStatus)
	}
}

func TestValidateURIRejectsBeforeNetwork(t *testing.T) {
	c, hits := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html></html>"))
	}))
	for _, uri := range []string{
		"fr/docs/Web",
		"//evil.example/fr/docs/Web",
		"https://evil.example/fr/docs/Web",
		"/fr/docs/../../etc/passwd",
		"/fr/docs/Web?x=1",
		"/fr/docs/Web#top",
	} {
		_, err := c.FetchRenderedPage(context.Background(), uri)
		if !errors.Is(err, apperrors.ErrValidation) {
			t.Fatalf("%q: expected validation error, got %v", uri, err)
		}
	}
	if n := atomic.LoadInt64(hits); n != 0 {
		t.Fatalf("expected no upstream calls, got %d", n)
	}
}

func TestFetchRenderedPageNonASCIIPaths(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.URL.Path)
		mu.Unlock()
		w.Write([]byte(wikiPage))
	}))
	paths := []string{
		"/fr/docs/Glossaire/Référence",
		"/zh-CN/docs/Web/中文",
		"/fr/docs/Glossaire/R%C3%A9f%C3%A9rence",
	}
	for _, uri := range paths {
		if _, err := c.FetchRenderedPage(context.Background(), uri); err != nil {
			t.Fatalf("%q: %v", uri, err)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	want := []string{"/fr/docs/Glossaire/Référence", "/zh-CN/docs/Web/中文", "/fr/docs/Glossaire/Référence"}
	if len(seen) != len(want) {
		t.Fatalf("expected %d upstream calls, got %v", len(want), seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("call %d reached %q, want %q", i, seen[i], want[i])
		}
	}
}

func TestCancelledCallerDoesNotFailSharedFetch(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	c, hits := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() { close(started) })
		<-release
		w.Write([]byte(wikiPage))
	}))

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.FetchRenderedPage(ctx, "/fr/docs/Web/CSS")
		firstErr <- err
	}()
	<-started

	secondErr := make(chan error, 1)
	go func() {
		_, err := c.FetchRenderedPage(context.Background(), "/fr/docs/Web/CSS")
		secondErr <- err
	}()
	// let the second caller join the in-flight request
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case err := <-firstErr:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("cancelled caller: expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("cancelled caller kept waiting for upstream")
	}

	close(release)
	select {
	case err := <-secondErr:
		if err != nil {
			t.Fatalf("second caller must not see the first caller's cancellation: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("second caller never returned")
	}
	if n := atomic.LoadInt64(hits); n != 1 {
		t.Fatalf("expected one shared upstream request, got %d", n)
	}
}

func TestBodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 2048)))
	}))
	defer srv.Close()
	c, err := NewClient(Options{BaseURL: srv.URL, MaxBodyBytes: 1024})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.FetchRenderedPage(context.Background(), "/fr/docs/Big"); !errors.Is(err, apperrors.ErrUpstream) {
		t.Fatalf("expected size limit error, got %v", err)
	}
}

func TestFetchMetadata(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/doc/fr/Web/CSS" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"documentData":{"title":"CSS","lastModified":"2019-03-01T12:00:00Z","locale":"fr"}}`))
	}))
	md, err := c.FetchMetadata(context.Background(), "fr", "Web/CSS")
	if err != nil {
		t.Fatalf("FetchMetadata: %v", err)
	}
	if md.LastModified != "2019-03-01T12:00:00Z" || md.Title != "CSS" {
		t.Fatalf("unexpected metadata %+v", md)
	}
	if !strings.Contains(string(md.Raw), `"locale":"fr"`) {
		t.Fatalf("raw document not passed through: %s", md.Raw)
	}

	_, err = c.FetchMetadata(context.Background(), "fr", "Missing")
	if !errors.Is(err, apperrors.ErrUpstreamNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestParseRevisions(t *testing.T) {
	entries, err := ParseRevisions([]byte(historyPage))
	if err != nil {
		t.Fatalf("ParseRevisions: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[1].ID != "2" || entries[1].Creator != "alice" || entries[1].Date != "2020-01-01T10:00:00Z" {
		t.Fatalf("unexpected entry %+v", entries[1])
	}

	var b strings.Builder
	b.WriteString(`<ul class="revision-list">`)
	for i := 0; i < 15; i++ {
		b.WriteString(`<li data-revision-id="x"><time datetime="2020-01-01">d</time></li>`)
	}
	b.WriteString(`</ul>`)
	entries, _ = ParseRevisions([]byte(b.String()))
	if len(entries) != RevisionLimit {
		t.Fatalf("expected %d entries, got %d", RevisionLimit, len(entries))
	}
}

func TestFetchRevisionHistoryIsolatesParentFailure(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/fr/") {
			w.Write([]byte(historyPage))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	revs := c.FetchRevisionHistory(context.Background(), "fr", "Web/CSS", "Web/CSS", []string{"mdnwebdocs-bot"})
	if revs.Err != nil {
		t.Fatalf("primary side failed: %v", revs.Err)
	}
	if len(revs.Revisions) != 3 {
		t.Fatalf("expected primary revisions, got %d", len(revs.Revisions))
	}
	if !errors.Is(revs.EnUSErr, apperrors.ErrUpstream) {
		t.Fatalf("expected parent side error, got %v", revs.EnUSErr)
	}
	if revs.GuessedAge != UnknownAge {
		t.Fatalf("expected unknown age, got %q", revs.GuessedAge)
	}
}

func TestGuessAge(t *testing.T) {
	got := GuessAge(
		[]RevisionEntry{{Date: "2020-01-01", Creator: "x"}},
		[]RevisionEntry{{Date: "2019-01-01", Creator: "x"}},
		nil,
	)
	if !strings.Contains(got, "year") {
		t.Fatalf("expected about a year, got %q", got)
	}
	if got := GuessAge(nil, []RevisionEntry{{Date: "2019-01-01", Creator: "x"}}, nil); got != UnknownAge {
		t.Fatalf("expected unknown for empty side, got %q", got)
	}
	onlyBots := []RevisionEntry{{Date: "2019-01-01", Creator: "mdnwebdocs-bot"}}
	if got := GuessAge(onlyBots, onlyBots, []string{"mdnwebdocs-bot"}); got != UnknownAge {
		t.Fatalf("expected unknown when only bots edited, got %q", got)
	}
}

func TestExists(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD, got %s", r.Method)
		}
		switch r.URL.Path {
		case "/fr/docs/Here":
			w.WriteHeader(http.StatusOK)
		case "/fr/docs/Broken":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	ctx := context.Background()
	if ok, err := c.Exists(ctx, "fr", "Here"); !ok || err != nil {
		t.Fatalf("expected Here to exist, got %v %v", ok, err)
	}
	if ok, err := c.Exists(ctx, "fr", "Gone"); ok || err != nil {
		t.Fatalf("expected Gone to be missing, got %v %v", ok, err)
	}
	if _, err := c.Exists(ctx, "fr", "Broken"); err == nil {
		t.Fatalf("expected an error for 503")
	}
}

func TestSanitizeRuby(t *testing.T) {
	in := []byte(`<ruby>漢<rp>(</rp><rt>かん</rt>字<RT class="x">じ</RT></ruby>`)
	got := string(SanitizeRuby(in))
	if got != `<ruby>漢字</ruby>` {
		t.Fatalf("unexpected %q", got)
	}
}
