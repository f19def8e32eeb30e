package review

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/japaniel/nottranslated/pkg/ledger"
	"github.com/japaniel/nottranslated/pkg/suspects"
)

func fixture(n int) []suspects.Suspect {
	var out []suspects.Suspect
	for i := 0; i < n; i++ {
		out = append(out, suspects.Suspect{Locale: "fr", Slug: fmt.Sprintf("doc-%d", i), Leaf: i%2 == 0})
	}
	return out
}

func counterSeeds() func() uint64 {
	var n atomic.Uint64
	return func() uint64 { return n.Add(1) }
}

func newNav(t *testing.T, all []suspects.Suspect, opts ...Option) (*Navigator, *ledger.Ledger) {
	t.Helper()
	l := ledger.NewLedger(ledger.NewMemoryKV())
	opts = append([]Option{WithSeeds(counterSeeds())}, opts...)
	return NewNavigator("fr", all, l, opts...), l
}

func TestNextThenPreviousReturns(t *testing.T) {
	nav, _ := newNav(t, fixture(5))
	if nav.State() != Browsing {
		t.Fatalf("expected browsing at start")
	}
	sub := nav.Subset()
	for i := 0; i < len(sub)-1; i++ {
		if err := nav.Select(sub[i].Slug); err != nil {
			t.Fatalf("Select: %v", err)
		}
		if nav.Next() {
			t.Fatalf("unexpected reseed at %d", i)
		}
		nav.Previous()
		if cur, _ := nav.Current(); cur.Slug != sub[i].Slug {
			t.Fatalf("next+previous from %d landed on %s", i, cur.Slug)
		}
	}
}

func TestPreviousWraps(t *testing.T) {
	nav, _ := newNav(t, fixture(4))
	sub := nav.Subset()
	_ = nav.Select(sub[0].Slug)
	nav.Previous()
	if cur, _ := nav.Current(); cur.Slug != sub[len(sub)-1].Slug {
		t.Fatalf("expected wrap to last, got %s", cur.Slug)
	}
}

func TestNextAtEndReseeds(t *testing.T) {
	nav, _ := newNav(t, fixture(4))
	sub := nav.Subset()
	_ = nav.Select(sub[len(sub)-1].Slug)
	if !nav.Next() {
		t.Fatalf("expected reseed at the end of the subset")
	}
	if nav.State() != Inspecting || nav.Index() != 0 {
		t.Fatalf("expected to inspect the first suspect of the new draw, state=%v index=%d", nav.State(), nav.Index())
	}
}

func TestIgnoreRemovesAndAdvances(t *testing.T) {
	nav, l := newNav(t, fixture(3))
	sub := append([]suspects.Suspect(nil), nav.Subset()...)
	_ = nav.Select(sub[0].Slug)
	if err := nav.Ignore(); err != nil {
		t.Fatalf("Ignore: %v", err)
	}
	if cur, _ := nav.Current(); cur.Slug != sub[1].Slug {
		t.Fatalf("expected to move to %s, got %s", sub[1].Slug, cur.Slug)
	}
	if len(nav.Subset()) != 2 {
		t.Fatalf("expected ignored suspect to leave the subset")
	}
	ignored, _ := l.Ignored("fr")
	if _, ok := ignored[sub[0].Slug]; !ok {
		t.Fatalf("ignore not recorded in ledger")
	}
}

func TestIgnoreEverythingFallsBackToBrowsing(t *testing.T) {
	nav, _ := newNav(t, fixture(2))
	_ = nav.Select(nav.Subset()[0].Slug)
	for i := 0; i < 2; i++ {
		if err := nav.Ignore(); err != nil {
			t.Fatalf("Ignore: %v", err)
		}
	}
	if nav.State() != Browsing {
		t.Fatalf("expected browsing after the pool emptied")
	}
	if len(nav.Subset()) != 0 || nav.IgnoredCount() != 2 {
		t.Fatalf("expected empty subset with 2 ignored, got %d/%d", len(nav.Subset()), nav.IgnoredCount())
	}
	if err := nav.Ignore(); !errors.Is(err, ErrNotInspecting) {
		t.Fatalf("expected ErrNotInspecting, got %v", err)
	}
}

func TestOpen(t *testing.T) {
	all := fixture(40)
	nav, _ := newNav(t, all, WithCap(5))
	var outside string
	for _, s := range all {
		if nav.indexOf(s.Slug) < 0 {
			outside = s.Slug
			break
		}
	}
	if err := nav.Open(outside); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !nav.IsCurrent(outside) || nav.Index() != 0 {
		t.Fatalf("expected %s at the head of the subset", outside)
	}
	if err := nav.Open("missing"); !errors.Is(err, ErrSuspectNotFound) {
		t.Fatalf("expected ErrSuspectNotFound, got %v", err)
	}
}

func TestReloadKeepsCurrent(t *testing.T) {
	all := fixture(10)
	nav, _ := newNav(t, all, WithCap(3))
	_ = nav.Open("doc-7")
	nav.Reload(fixture(10))
	if !nav.IsCurrent("doc-7") {
		t.Fatalf("expected doc-7 to stay current after reload")
	}

	gone := fixture(10)
	gone[7].NotFound = true
	nav.Reload(gone)
	if nav.State() != Browsing {
		t.Fatalf("expected browsing once the current suspect is gone")
	}
}

func TestLocation(t *testing.T) {
	nav, _ := newNav(t, fixture(3))
	if got := nav.Location(); got != "/fr" {
		t.Fatalf("browsing location %q", got)
	}
	_ = nav.Open("doc-1")
	if got := nav.Location(); got != "/fr/doc-1" {
		t.Fatalf("inspecting location %q", got)
	}
	locale, slug, ok := ParseLocation("/zh-CN/Web/API/Fetch")
	if !ok || locale != "zh-CN" || slug != "Web/API/Fetch" {
		t.Fatalf("parse: %q %q %v", locale, slug, ok)
	}
	if _, _, ok := ParseLocation("/"); ok {
		t.Fatalf("empty location must not parse")
	}
}

type recordingLocator struct {
	loc    string
	writes int
}

func (r *recordingLocator) Location() (string, error) { return r.loc, nil }
func (r *recordingLocator) SetLocation(l string) error {
	r.writes++
	r.loc = l
	return nil
}

func TestSyncComparesBeforeWriting(t *testing.T) {
	loc := &recordingLocator{loc: "/fr"}
	if wrote, _ := Sync(loc, "/fr"); wrote || loc.writes != 0 {
		t.Fatalf("equal location must not be written")
	}
	if wrote, _ := Sync(loc, "/fr/doc-1"); !wrote || loc.loc != "/fr/doc-1" {
		t.Fatalf("expected a write")
	}
	if wrote, _ := Sync(loc, "/fr/doc-1"); wrote || loc.writes != 1 {
		t.Fatalf("second sync must be a no-op, writes=%d", loc.writes)
	}
}

func TestThrottleDeliversLatest(t *testing.T) {
	got := make(chan int, 4)
	th := NewThrottle(30*time.Millisecond, func(v int) { got <- v })
	defer th.Stop()
	for i := 1; i <= 5; i++ {
		th.Offer(i)
	}
	select {
	case v := <-got:
		if v != 5 {
			t.Fatalf("expected the latest value, got %d", v)
		}
	case <-time.After(time.Second):
		t.Fatalf("throttle never fired")
	}
	select {
	case v := <-got:
		t.Fatalf("unexpected extra delivery %d", v)
	case <-time.After(60 * time.Millisecond):
	}
}

func TestThrottleStop(t *testing.T) {
	fired := make(chan int, 1)
	th := NewThrottle(10*time.Millisecond, func(v int) { fired <- v })
	th.Offer(1)
	th.Stop()
	th.Offer(2)
	select {
	case v := <-fired:
		t.Fatalf("stopped throttle delivered %d", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestOpenRefusesGoneSuspect(t *testing.T) {
	all := fixture(3)
	all[1].NotFound = true
	nav, _ := newNav(t, all)
	if err := nav.Open(all[1].Slug); !errors.Is(err, ErrSuspectNotFound) {
		t.Fatalf("expected ErrSuspectNotFound for a gone suspect, got %v", err)
	}
	if nav.State() != Browsing {
		t.Fatalf("a refused open must leave the session browsing")
	}
}
