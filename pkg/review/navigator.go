// Package review holds the reviewer-side session: which sample is on screen,
// which suspect is being inspected, and how that maps to a resumable location.
//
// A Navigator is driven from a single event loop and is not safe for
// concurrent use.
package review

import (
	"errors"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/japaniel/nottranslated/pkg/sampling"
	"github.com/japaniel/nottranslated/pkg/suspects"
)

// ErrSuspectNotFound is returned when a slug is not in the loaded list.
var ErrSuspectNotFound = errors.New("suspect not found")

// ErrNotInspecting is returned by transitions that need a current suspect.
var ErrNotInspecting = errors.New("no suspect is being inspected")

// State of the navigator.
type State int

const (
	Browsing State = iota
	Inspecting
)

func (s State) String() string {
	if s == Inspecting {
		return "inspecting"
	}
	return "browsing"
}

// IgnoreLedger is the part of ledger.Ledger the navigator needs.
type IgnoreLedger interface {
	Ignored(locale string) (map[string]int64, error)
	Ignore(locale, slug string) error
}

// Option configures a Navigator.
type Option func(*Navigator)

// WithCap sets the subset size.
func WithCap(n int) Option { return func(nav *Navigator) { nav.cap = n } }

// WithSeeds sets the seed source used for every draw.
func WithSeeds(next func() uint64) Option { return func(nav *Navigator) { nav.seed = next } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(nav *Navigator) { nav.log = l } }

// Navigator walks a sampled subset of one locale's suspects.
type Navigator struct {
	locale string
	ledger IgnoreLedger
	cap    int
	seed   func() uint64
	log    *zap.Logger

	all          []suspects.Suspect
	subset       []suspects.Suspect
	ignoredCount int
	current      int
}

// NewNavigator draws the first subset and starts in Browsing.
func NewNavigator(locale string, all []suspects.Suspect, ledger IgnoreLedger, opts ...Option) *Navigator {
	n := &Navigator{
		locale:  locale,
		ledger:  ledger,
		cap:     sampling.DefaultCap,
		seed:    rand.Uint64,
		log:     zap.NewNop(),
		all:     all,
		current: -1,
	}
	for _, opt := range opts {
		opt(n)
	}
	n.reseed()
	return n
}

// reseed draws a fresh subset from the filtered pool. A failing ledger read
// is logged and sampling proceeds without ignores.
func (n *Navigator) reseed() {
	ignored, err := n.ledger.Ignored(n.locale)
	if err != nil {
		n.log.Warn("Failed to read ignore ledger", zap.String("locale", n.locale), zap.Error(err))
	}
	res := sampling.Sample(n.all, ignored, n.cap, sampling.NewRand(n.seed()))
	n.subset = res.Subset
	n.ignoredCount = res.IgnoredCount
}

func (n *Navigator) indexOf(slug string) int {
	for i, s := range n.subset {
		if s.Slug == slug {
			return i
		}
	}
	return -1
}

// Locale of the session.
func (n *Navigator) Locale() string { return n.locale }

// State reports Browsing or Inspecting.
func (n *Navigator) State() State {
	if n.current < 0 {
		return Browsing
	}
	return Inspecting
}

// Subset is the current draw. Callers must not modify it.
func (n *Navigator) Subset() []suspects.Suspect { return n.subset }

// IgnoredCount is how many suspects the last draw left out as ignored.
func (n *Navigator) IgnoredCount() int { return n.ignoredCount }

// Total is the number of suspects in the loaded list, gone ones included.
func (n *Navigator) Total() int { return len(n.all) }

// Current returns the inspected suspect.
func (n *Navigator) Current() (suspects.Suspect, bool) {
	if n.current < 0 {
		return suspects.Suspect{}, false
	}
	return n.subset[n.current], true
}

// Index is the position of the current suspect in the subset, or -1.
func (n *Navigator) Index() int { return n.current }

// IsCurrent reports whether slug is being inspected. Asynchronous results are
// applied only when this holds for their subject.
func (n *Navigator) IsCurrent(slug string) bool {
	s, ok := n.Current()
	return ok && s.Slug == slug
}

// Select inspects a suspect from the subset.
func (n *Navigator) Select(slug string) error {
	i := n.indexOf(slug)
	if i < 0 {
		return ErrSuspectNotFound
	}
	n.current = i
	return nil
}

// Open inspects any suspect from the loaded list, putting it at the head of
// the subset when the draw did not include it. Suspects marked gone cannot
// be opened.
func (n *Navigator) Open(slug string) error {
	if i := n.indexOf(slug); i >= 0 {
		n.current = i
		return nil
	}
	s, ok := suspects.Find(n.all, slug)
	if !ok || s.NotFound {
		return ErrSuspectNotFound
	}
	n.subset = append([]suspects.Suspect{s}, n.subset...)
	n.current = 0
	return nil
}

// Next moves to the following suspect. Past the end it draws a new subset
// and lands on its first element, or returns to Browsing when the draw is
// empty. It reports whether a reseed happened.
func (n *Navigator) Next() bool {
	if n.current < 0 {
		return false
	}
	if n.current+1 < len(n.subset) {
		n.current++
		return false
	}
	n.advanceAfterEnd()
	return true
}

func (n *Navigator) advanceAfterEnd() {
	n.reseed()
	if len(n.subset) == 0 {
		n.current = -1
		return
	}
	n.current = 0
}

// Previous moves back one suspect, wrapping at the start.
func (n *Navigator) Previous() {
	if n.current < 0 || len(n.subset) == 0 {
		return
	}
	n.current = (n.current - 1 + len(n.subset)) % len(n.subset)
}

// Ignore records the current suspect in the ledger, drops it from the
// subset and moves on as Next would.
func (n *Navigator) Ignore() error {
	s, ok := n.Current()
	if !ok {
		return ErrNotInspecting
	}
	if err := n.ledger.Ignore(n.locale, s.Slug); err != nil {
		return err
	}
	n.subset = append(n.subset[:n.current:n.current], n.subset[n.current+1:]...)
	n.ignoredCount++
	if n.current >= len(n.subset) {
		n.advanceAfterEnd()
	}
	return nil
}

// Close returns to Browsing.
func (n *Navigator) Close() { n.current = -1 }

// Reseed draws a new subset and returns to Browsing.
func (n *Navigator) Reseed() {
	n.reseed()
	n.current = -1
}

// Reload replaces the loaded list and draws again, keeping the current
// suspect under inspection while it is still present and not gone.
func (n *Navigator) Reload(all []suspects.Suspect) {
	cur, inspecting := n.Current()
	n.all = all
	n.reseed()
	n.current = -1
	if !inspecting {
		return
	}
	s, ok := suspects.Find(all, cur.Slug)
	if !ok || s.NotFound {
		return
	}
	_ = n.Open(s.Slug)
}
