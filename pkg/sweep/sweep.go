// Package sweep re-verifies suspects against the upstream wiki and keeps the
// suspect store's leaf flags current.
package sweep

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/japaniel/nottranslated/pkg/db"
	"github.com/japaniel/nottranslated/pkg/suspects"
)

// Defaults for Options.
const (
	DefaultChecksPerLocale = 10
	DefaultMaxLocales      = 10
	DefaultRecheckAfter    = time.Hour
	DefaultDelay           = time.Second
)

// ErrNoLocales is returned when there is nothing left to sweep.
var ErrNoLocales = errors.New("no locales to sweep")

// Checker answers whether a document still exists upstream.
type Checker interface {
	Exists(ctx context.Context, locale, slug string) (bool, error)
}

// Options configures a Sweeper.
type Options struct {
	ChecksPerLocale int
	MaxLocales      int
	RecheckAfter    time.Duration
	// Delay is the minimum spacing between two upstream checks, across all
	// workers. Zero disables rate limiting.
	Delay   time.Duration
	Workers int
	// DB holds the check journal and the last-run locale list. Optional.
	DB     *sql.DB
	Now    func() time.Time
	Rand   *rand.Rand
	Logger *zap.Logger
}

// Sweeper runs verification sweeps.
type Sweeper struct {
	store   *suspects.Store
	checker Checker
	limiter *rate.Limiter
	opts    Options
	log     *zap.Logger

	randMu sync.Mutex
}

// LocaleReport summarizes one locale.
type LocaleReport struct {
	Locale   string
	Checked  int
	NotFound int
	Errors   int
	Changed  bool
}

// Report summarizes a run.
type Report struct {
	RunID   string
	Locales []LocaleReport
	Skipped []string
}

// New returns a Sweeper.
func New(store *suspects.Store, checker Checker, opts Options) *Sweeper {
	if opts.ChecksPerLocale <= 0 {
		opts.ChecksPerLocale = DefaultChecksPerLocale
	}
	if opts.MaxLocales <= 0 {
		opts.MaxLocales = DefaultMaxLocales
	}
	if opts.RecheckAfter <= 0 {
		opts.RecheckAfter = DefaultRecheckAfter
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	limit := rate.Inf
	if opts.Delay > 0 {
		limit = rate.Every(opts.Delay)
	}
	return &Sweeper{
		store:   store,
		checker: checker,
		limiter: rate.NewLimiter(limit, 1),
		opts:    opts,
		log:     opts.Logger,
	}
}

// Run sweeps the named locales, or when none are named, up to MaxLocales
// locales that the previous run did not cover.
func (s *Sweeper) Run(ctx context.Context, locales []string) (*Report, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	report := &Report{RunID: id.String()}

	targets, skipped, err := s.pickLocales(locales)
	if err != nil {
		return nil, err
	}
	report.Skipped = skipped

	var journal *Journal
	if s.opts.DB != nil {
		journal = NewJournal(s.opts.DB, 20, time.Second)
		journal.OnError = func(err error) { s.log.Warn("Journal write failed", zap.Error(err)) }
	}

	var mu sync.Mutex
	pool := NewWorkerPool(s.opts.Workers, len(targets))
	pool.Start(ctx)
	for _, code := range targets {
		err := pool.Submit(func(ctx context.Context) error {
			lr, err := s.sweepLocale(ctx, report.RunID, code, journal)
			mu.Lock()
			report.Locales = append(report.Locales, lr)
			mu.Unlock()
			if err != nil {
				return fmt.Errorf("sweep %s: %w", code, err)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	runErr := pool.Close()

	if journal != nil {
		if err := journal.Close(); err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("journal: %w", err))
		}
	}
	slices.SortFunc(report.Locales, func(a, b LocaleReport) int { return cmp.Compare(a.Locale, b.Locale) })

	if len(locales) == 0 && s.opts.DB != nil && ctx.Err() == nil {
		if err := s.rememberRun(report.RunID, targets); err != nil {
			runErr = errors.Join(runErr, err)
		}
	}
	if err := ctx.Err(); err != nil {
		runErr = errors.Join(runErr, err)
	}
	return report, runErr
}

func (s *Sweeper) pickLocales(named []string) (targets, skipped []string, err error) {
	all, err := s.store.Locales()
	if err != nil {
		return nil, nil, err
	}
	if len(named) > 0 {
		for _, code := range named {
			if !slices.Contains(all, code) {
				return nil, nil, fmt.Errorf("unknown locale %q", code)
			}
		}
		return slices.Clone(named), nil, nil
	}

	previous := map[string]db.SweptLocale{}
	if s.opts.DB != nil {
		if previous, err = db.LastSweep(s.opts.DB); err != nil {
			return nil, nil, fmt.Errorf("read last sweep: %w", err)
		}
	}
	for _, code := range all {
		if _, ok := previous[code]; ok {
			skipped = append(skipped, code)
			continue
		}
		targets = append(targets, code)
	}
	if len(targets) == 0 {
		return nil, skipped, ErrNoLocales
	}
	s.shuffle(len(targets), func(i, j int) { targets[i], targets[j] = targets[j], targets[i] })
	if len(targets) > s.opts.MaxLocales {
		targets = targets[:s.opts.MaxLocales]
	}
	return targets, skipped, nil
}

func (s *Sweeper) rememberRun(runID string, locales []string) error {
	tx, err := s.opts.DB.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := db.ReplaceLastSweep(tx, runID, locales, s.opts.Now()); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Sweeper) shuffle(n int, swap func(i, j int)) {
	s.randMu.Lock()
	defer s.randMu.Unlock()
	s.opts.Rand.Shuffle(n, swap)
}

// Candidates returns the suspects of list due for a check: leaves not known
// to be gone and not checked within recheckAfter, least recently checked
// first with ties in random order, at most limit of them.
func (s *Sweeper) Candidates(list []suspects.Suspect) []suspects.Suspect {
	now := s.opts.Now().Unix()
	window := int64(s.opts.RecheckAfter / time.Second)
	var out []suspects.Suspect
	for _, sp := range list {
		if !sp.Leaf || sp.NotFound {
			continue
		}
		if sp.Checked > 0 && now-sp.Checked < window {
			continue
		}
		out = append(out, sp)
	}
	s.shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	slices.SortStableFunc(out, func(a, b suspects.Suspect) int { return cmp.Compare(a.Checked, b.Checked) })
	if len(out) > s.opts.ChecksPerLocale {
		out = out[:s.opts.ChecksPerLocale]
	}
	return out
}

type verdict struct {
	notFound bool
	checked  int64
}

func (s *Sweeper) sweepLocale(ctx context.Context, runID, code string, journal *Journal) (LocaleReport, error) {
	lr := LocaleReport{Locale: code}
	log := s.log.With(zap.String("locale", code), zap.String("run_id", runID))

	list, err := s.store.Locale(code)
	if err != nil {
		return lr, err
	}
	candidates := s.Candidates(list)
	log.Info("Sweeping locale", zap.Int("suspects", len(list)), zap.Int("candidates", len(candidates)))

	verdicts := map[string]verdict{}
	for _, sp := range candidates {
		if err := s.limiter.Wait(ctx); err != nil {
			break
		}
		exists, err := s.checker.Exists(ctx, sp.Locale, sp.DocSlug())
		check := db.Check{RunID: runID, Locale: code, Slug: sp.Slug, CheckedAt: s.opts.Now()}
		lr.Checked++
		switch {
		case err != nil:
			lr.Errors++
			check.Outcome = db.OutcomeError
			check.Error = err.Error()
			log.Warn("Check failed", zap.String("slug", sp.Slug), zap.Error(err))
		case !exists:
			lr.NotFound++
			check.Outcome = db.OutcomeNotFound
			verdicts[sp.Slug] = verdict{notFound: true}
			log.Info("Suspect gone upstream", zap.String("slug", sp.Slug))
		default:
			check.Outcome = db.OutcomeFound
			verdicts[sp.Slug] = verdict{checked: check.CheckedAt.Unix()}
		}
		if journal != nil {
			if err := journal.Record(check); err != nil {
				log.Warn("Failed to journal check", zap.Error(err))
			}
		}
	}
	if len(verdicts) == 0 {
		return lr, ctx.Err()
	}

	changed, err := s.store.Update(code, func(fresh []suspects.Suspect) ([]suspects.Suspect, error) {
		for i := range fresh {
			v, ok := verdicts[fresh[i].Slug]
			if !ok {
				continue
			}
			if v.notFound {
				fresh[i].NotFound = true
			} else {
				fresh[i].Checked = v.checked
			}
		}
		return fresh, nil
	})
	lr.Changed = changed
	if err != nil {
		return lr, err
	}
	return lr, ctx.Err()
}
