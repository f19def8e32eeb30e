// Package tui is the terminal review client: it walks a locale's sampled
// suspects, shows the translation next to its English parent and lets the
// reviewer ignore a suspect or follow the delete link.
package tui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/japaniel/nottranslated/pkg/ledger"
	"github.com/japaniel/nottranslated/pkg/preview"
	"github.com/japaniel/nottranslated/pkg/review"
	"github.com/japaniel/nottranslated/pkg/suspects"
)

// Fetcher is the part of the upstream client the review client uses.
type Fetcher interface {
	FetchReadable(ctx context.Context, uri string) (*preview.Readable, error)
	FetchMetadata(ctx context.Context, locale, slug string) (*preview.Metadata, error)
	FetchRevisionHistory(ctx context.Context, locale, slug, translationOf string, bots []string) *preview.Revisions
}

// Deps wires a Model.
type Deps struct {
	Navigator *review.Navigator
	Clicks    *ledger.Clicks
	Fetcher   Fetcher
	// Locator persists the derived location. Optional.
	Locator review.Locator
	// Reloads delivers fresh suspect lists for the locale. Optional.
	Reloads  <-chan []suspects.Suspect
	WikiBase string
	ViewBase string
	Bots     []string
	// MirrorInterval paces scroll mirroring into the parent pane.
	MirrorInterval time.Duration
	Logger         *zap.Logger
}

type pane int

const (
	primaryPane pane = iota
	parentPane
)

type readableMsg struct {
	slug string
	pane pane
	doc  *preview.Readable
	err  error
}

type metadataMsg struct {
	slug string
	md   *preview.Metadata
	err  error
}

type revisionsMsg struct {
	slug string
	revs *preview.Revisions
}

type reloadMsg struct{ list []suspects.Suspect }

type mirrorMsg struct{ percent float64 }

// Model is the bubbletea model of the review client.
type Model struct {
	ctx  context.Context
	deps Deps
	log  *zap.Logger
	keys KeyMap
	st   Styles

	nav    *review.Navigator
	cursor int

	primary viewport.Model
	parent  viewport.Model
	width   int
	height  int

	meta       *preview.Metadata
	metaErr    error
	revs       *preview.Revisions
	primaryErr error
	parentErr  error
	loading    map[pane]bool

	clicksToday int
	status      string

	mirror   *review.Throttle[float64]
	mirrorCh chan float64
	lastPct  float64
}

// New builds a Model. ctx bounds the upstream fetches.
func New(ctx context.Context, deps Deps) *Model {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	m := &Model{
		ctx:      ctx,
		deps:     deps,
		log:      log,
		keys:     DefaultKeyMap(),
		st:       DefaultStyles(),
		nav:      deps.Navigator,
		primary:  viewport.New(60, 20),
		parent:   viewport.New(60, 20),
		width:    120,
		height:   30,
		loading:  map[pane]bool{},
		mirrorCh: make(chan float64, 1),
		lastPct:  -1,
	}
	interval := deps.MirrorInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	m.mirror = review.NewThrottle(interval, func(pct float64) {
		// keep only the newest offset
		select {
		case <-m.mirrorCh:
		default:
		}
		m.mirrorCh <- pct
	})
	if deps.Clicks != nil {
		if n, err := deps.Clicks.Today(); err == nil {
			m.clicksToday = n
		}
	}
	return m
}

// Navigator exposes the session for callers that need its final state.
func (m *Model) Navigator() *review.Navigator { return m.nav }

// Init starts the background listeners and, when the session starts on a
// suspect, its fetches.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.waitMirror()}
	if m.deps.Reloads != nil {
		cmds = append(cmds, m.waitReload())
	}
	cmds = append(cmds, m.enter())
	return tea.Batch(cmds...)
}

func (m *Model) waitMirror() tea.Cmd {
	ch := m.mirrorCh
	return func() tea.Msg {
		pct, ok := <-ch
		if !ok {
			return nil
		}
		return mirrorMsg{percent: pct}
	}
}

func (m *Model) waitReload() tea.Cmd {
	ch := m.deps.Reloads
	return func() tea.Msg {
		list, ok := <-ch
		if !ok {
			return nil
		}
		return reloadMsg{list: list}
	}
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case readableMsg:
		if !m.nav.IsCurrent(msg.slug) {
			m.log.Debug("Dropping stale page", zap.String("slug", msg.slug))
			return m, nil
		}
		m.loading[msg.pane] = false
		vp, errp := &m.primary, &m.primaryErr
		if msg.pane == parentPane {
			vp, errp = &m.parent, &m.parentErr
		}
		*errp = msg.err
		if msg.err == nil {
			vp.SetContent(msg.doc.Text)
			vp.GotoTop()
		}
		return m, nil

	case metadataMsg:
		if !m.nav.IsCurrent(msg.slug) {
			return m, nil
		}
		m.meta, m.metaErr = msg.md, msg.err
		return m, nil

	case revisionsMsg:
		if !m.nav.IsCurrent(msg.slug) {
			return m, nil
		}
		m.revs = msg.revs
		return m, nil

	case reloadMsg:
		before, wasInspecting := m.nav.Current()
		m.nav.Reload(msg.list)
		m.clampCursor()
		var cmd tea.Cmd
		if cur, ok := m.nav.Current(); !ok || !wasInspecting || cur.Slug != before.Slug {
			cmd = m.enter()
		}
		m.status = "Suspect list reloaded"
		if m.deps.Reloads != nil {
			cmd = tea.Batch(cmd, m.waitReload())
		}
		return m, cmd

	case mirrorMsg:
		m.applyMirror(msg.percent)
		return m, m.waitMirror()
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.mirror.Stop()
		return m, tea.Quit
	}
	if m.nav.State() == review.Browsing {
		return m.handleBrowsingKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Next):
		m.nav.Next()
		return m, m.enter()
	case key.Matches(msg, m.keys.Previous):
		m.nav.Previous()
		return m, m.enter()
	case key.Matches(msg, m.keys.Close):
		m.nav.Close()
		return m, m.enter()
	case key.Matches(msg, m.keys.Ignore):
		cur, _ := m.nav.Current()
		if err := m.nav.Ignore(); err != nil {
			m.log.Warn("Failed to ignore suspect", zap.String("slug", cur.Slug), zap.Error(err))
			m.status = "Could not ignore: " + err.Error()
			return m, nil
		}
		m.status = "Ignored " + cur.Slug
		return m, m.enter()
	case key.Matches(msg, m.keys.Delete):
		return m.followDelete()
	case key.Matches(msg, m.keys.Reseed):
		m.nav.Reseed()
		m.cursor = 0
		return m, m.enter()
	}

	var cmd tea.Cmd
	m.primary, cmd = m.primary.Update(msg)
	m.offerMirror()
	return m, cmd
}

func (m *Model) handleBrowsingKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sub := m.nav.Subset()
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(sub)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Open):
		if len(sub) == 0 {
			return m, nil
		}
		if err := m.nav.Select(sub[m.cursor].Slug); err != nil {
			return m, nil
		}
		return m, m.enter()
	case key.Matches(msg, m.keys.Reseed):
		m.nav.Reseed()
		m.cursor = 0
		return m, m.enter()
	}
	return m, nil
}

// followDelete records a click on the delete link and moves on. It is only
// available once the document's metadata has loaded.
func (m *Model) followDelete() (tea.Model, tea.Cmd) {
	cur, _ := m.nav.Current()
	if m.meta == nil || m.meta.LastModified == "" {
		m.status = "Delete is available once the document details have loaded"
		return m, nil
	}
	link := suspects.LinksFor(cur, m.deps.WikiBase, m.deps.ViewBase).Delete
	if m.deps.Clicks != nil {
		n, err := m.deps.Clicks.Record()
		if err != nil {
			m.log.Warn("Failed to record delete click", zap.Error(err))
		} else {
			m.clicksToday = n
		}
	}
	m.status = "Delete " + cur.Slug + ": " + link
	m.nav.Next()
	return m, m.enter()
}

// enter resets the panes for the navigator's current state, syncs the
// location and starts the fetches for a newly inspected suspect.
func (m *Model) enter() tea.Cmd {
	m.syncLocation()
	m.meta, m.metaErr, m.revs = nil, nil, nil
	m.primaryErr, m.parentErr = nil, nil
	m.primary.SetContent("")
	m.parent.SetContent("")
	m.lastPct = -1

	cur, ok := m.nav.Current()
	if !ok {
		m.clampCursor()
		return nil
	}
	m.cursor = m.nav.Index()
	m.loading[primaryPane] = true
	cmds := []tea.Cmd{
		m.fetchReadable(cur.Slug, primaryPane, cur.URI()),
		m.fetchMetadata(cur),
		m.fetchRevisions(cur),
	}
	if parent := cur.ParentURI(); parent != "" {
		m.loading[parentPane] = true
		cmds = append(cmds, m.fetchReadable(cur.Slug, parentPane, parent))
	} else {
		m.loading[parentPane] = false
	}
	return tea.Batch(cmds...)
}

func (m *Model) syncLocation() {
	if m.deps.Locator == nil {
		return
	}
	if _, err := review.Sync(m.deps.Locator, m.nav.Location()); err != nil {
		m.log.Warn("Failed to store location", zap.Error(err))
	}
}

func (m *Model) clampCursor() {
	if n := len(m.nav.Subset()); m.cursor >= n {
		m.cursor = max(n-1, 0)
	}
}

func (m *Model) fetchReadable(slug string, p pane, uri string) tea.Cmd {
	ctx, f := m.ctx, m.deps.Fetcher
	return func() tea.Msg {
		doc, err := f.FetchReadable(ctx, uri)
		return readableMsg{slug: slug, pane: p, doc: doc, err: err}
	}
}

func (m *Model) fetchMetadata(s suspects.Suspect) tea.Cmd {
	ctx, f := m.ctx, m.deps.Fetcher
	return func() tea.Msg {
		md, err := f.FetchMetadata(ctx, s.Locale, s.DocSlug())
		return metadataMsg{slug: s.Slug, md: md, err: err}
	}
}

func (m *Model) fetchRevisions(s suspects.Suspect) tea.Cmd {
	ctx, f, bots := m.ctx, m.deps.Fetcher, m.deps.Bots
	return func() tea.Msg {
		revs := f.FetchRevisionHistory(ctx, s.Locale, s.DocSlug(), s.Metadata.TranslationOf, bots)
		return revisionsMsg{slug: s.Slug, revs: revs}
	}
}

// offerMirror forwards the primary pane's scroll position when it moved.
func (m *Model) offerMirror() {
	pct := m.primary.ScrollPercent()
	if pct == m.lastPct {
		return
	}
	m.lastPct = pct
	m.mirror.Offer(pct)
}

func (m *Model) applyMirror(pct float64) {
	maxOffset := m.parent.TotalLineCount() - m.parent.Height
	if maxOffset <= 0 {
		return
	}
	m.parent.SetYOffset(int(math.Round(pct * float64(maxOffset))))
}

func (m *Model) resize(w, h int) {
	m.width, m.height = w, h
	paneW := max((w-4)/2, 10)
	paneH := max(h-12, 3)
	m.primary.Width, m.primary.Height = paneW, paneH
	m.parent.Width, m.parent.Height = paneW, paneH
}

// View renders the client.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n\n")
	if m.nav.State() == review.Browsing {
		b.WriteString(m.listView())
	} else {
		b.WriteString(m.inspectView())
	}
	if m.status != "" {
		b.WriteString("\n" + m.st.Muted.Render(m.status))
	}
	b.WriteString("\n" + m.st.Footer.Render(m.help()))
	return b.String()
}

func (m *Model) header() string {
	title := m.st.Header.Render(" " + m.nav.Locale() + " ")
	info := fmt.Sprintf("%d suspects  ·  %d ignored  ·  %d delete clicks today",
		m.nav.Total(), m.nav.IgnoredCount(), m.clicksToday)
	return lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", m.st.Muted.Render(info))
}

func (m *Model) listView() string {
	sub := m.nav.Subset()
	if len(sub) == 0 {
		return m.st.Warning.Render("Nothing left to review here: every suspect is ignored or gone.\nTry another locale, or press r to draw again.")
	}
	var b strings.Builder
	for i, s := range sub {
		marker := "  "
		line := s.Title() + m.st.Muted.Render("  "+s.Slug)
		if s.Leaf {
			line += " " + m.st.Leaf.Render("leaf")
		}
		if i == m.cursor {
			marker = "> "
			line = m.st.Selected.Render(s.Title()) + m.st.Muted.Render("  "+s.Slug)
		}
		b.WriteString(marker + line + "\n")
	}
	return b.String()
}

func (m *Model) inspectView() string {
	cur, _ := m.nav.Current()
	links := suspects.LinksFor(cur, m.deps.WikiBase, m.deps.ViewBase)

	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", m.st.Title.Render(cur.Title()),
		m.st.Muted.Render(fmt.Sprintf("%d/%d", m.nav.Index()+1, len(m.nav.Subset()))))
	fmt.Fprintf(&b, "%s\n%s\n", links.View, m.st.Muted.Render("edit: "+links.Edit+"  history: "+links.History))

	switch {
	case m.metaErr != nil:
		b.WriteString(m.st.Error.Render("Details unavailable: "+m.metaErr.Error()) + "\n")
	case m.meta != nil:
		b.WriteString("Last modified " + m.meta.LastModified + "\n")
	default:
		b.WriteString(m.st.Muted.Render("Loading details…") + "\n")
	}
	b.WriteString(m.revisionsLine() + "\n")

	left := m.paneView("Translation", m.primary, m.primaryErr, m.loading[primaryPane])
	right := m.paneView("en-US", m.parent, m.parentErr, m.loading[parentPane])
	if cur.ParentURI() == "" {
		right = m.st.Pane.Width(m.parent.Width).Render(m.st.Muted.Render("No English parent known"))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	return b.String()
}

func (m *Model) revisionsLine() string {
	r := m.revs
	if r == nil {
		return m.st.Muted.Render("Loading revisions…")
	}
	if r.Err != nil {
		return m.st.Error.Render("Revisions unavailable: " + r.Err.Error())
	}
	line := fmt.Sprintf("Guessed age: %s  ·  %d revisions", r.GuessedAge, len(r.Revisions))
	if r.EnUSErr != nil {
		return line + "  ·  " + m.st.Error.Render("en-US revisions unavailable")
	}
	return line + fmt.Sprintf("  ·  %d en-US revisions", len(r.EnUSRevisions))
}

func (m *Model) paneView(title string, vp viewport.Model, err error, loading bool) string {
	body := vp.View()
	switch {
	case err != nil:
		body = m.st.Error.Render(err.Error())
	case loading:
		body = m.st.Muted.Render("Loading…")
	}
	return m.st.Pane.Width(vp.Width).Render(m.st.Title.Render(title) + "\n" + body)
}

func (m *Model) help() string {
	k := m.keys
	var bindings []key.Binding
	if m.nav.State() == review.Browsing {
		bindings = []key.Binding{k.Up, k.Down, k.Open, k.Reseed, k.Quit}
	} else {
		bindings = []key.Binding{k.Next, k.Previous, k.Ignore, k.Delete, k.Close, k.Reseed, k.Quit}
	}
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		parts = append(parts, b.Help().Key+" "+b.Help().Desc)
	}
	return strings.Join(parts, "  ·  ")
}
