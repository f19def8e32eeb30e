package ledger

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/japaniel/nottranslated/pkg/apperrors"
)

// DefaultRetention is how long an ignore lasts.
const DefaultRetention = 72 * time.Hour

// ignoredState is locale -> slug -> ignoredAt (epoch millis).
type ignoredState map[string]map[string]int64

// Ledger remembers suspects the reviewer chose to skip.
//
// Every method is a read-modify-write of the whole persisted value and holds
// the ledger's mutex for its duration, so two quick ignores cannot overwrite
// each other.
type Ledger struct {
	kv        KV
	retention time.Duration
	now       func() time.Time
	log       *zap.Logger

	mu sync.Mutex
}

// Option configures a Ledger or Clicks.
type Option func(*options)

type options struct {
	retention time.Duration
	now       func() time.Time
	log       *zap.Logger
}

// WithRetention overrides DefaultRetention.
func WithRetention(d time.Duration) Option { return func(o *options) { o.retention = d } }

// WithClock sets the time source.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// WithLogger sets the logger used to report recovered corrupt state.
func WithLogger(l *zap.Logger) Option { return func(o *options) { o.log = l } }

func buildOptions(opts []Option) options {
	o := options{retention: DefaultRetention, now: time.Now, log: zap.NewNop()}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// NewLedger returns an ignore ledger over kv.
func NewLedger(kv KV, opts ...Option) *Ledger {
	o := buildOptions(opts)
	return &Ledger{kv: kv, retention: o.retention, now: o.now, log: o.log}
}

func (l *Ledger) load() (ignoredState, error) {
	raw, ok, err := l.kv.Get(IgnoredKey)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", IgnoredKey, err)
	}
	state := ignoredState{}
	if !ok || raw == "" {
		return state, nil
	}
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		l.log.Warn("Discarding unreadable ignore ledger", zap.Error(apperrors.CorruptLocalState(IgnoredKey, err)))
		return ignoredState{}, nil
	}
	if state == nil {
		state = ignoredState{}
	}
	return state, nil
}

func (l *Ledger) store(state ignoredState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	if err := l.kv.Set(IgnoredKey, string(data)); err != nil {
		return fmt.Errorf("write %s: %w", IgnoredKey, err)
	}
	return nil
}

// Ignored returns slug -> ignoredAt (epoch millis) for a locale. Entries older
// than the retention window are dropped and the pruned ledger is persisted
// before returning.
func (l *Ledger) Ignored(locale string) (map[string]int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, err := l.load()
	if err != nil {
		return map[string]int64{}, err
	}
	now := l.now().UnixMilli()
	maxAge := l.retention.Milliseconds()

	kept := make(map[string]int64, len(state[locale]))
	pruned := 0
	for slug, ts := range state[locale] {
		if now-ts > maxAge {
			pruned++
			continue
		}
		kept[slug] = ts
	}
	if pruned > 0 {
		state[locale] = kept
		l.log.Info("Pruned expired ignores", zap.String("locale", locale), zap.Int("pruned", pruned))
		if err := l.store(state); err != nil {
			return kept, err
		}
	}
	return kept, nil
}

// Ignore records slug as ignored now.
func (l *Ledger) Ignore(locale, slug string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, err := l.load()
	if err != nil {
		return err
	}
	if state[locale] == nil {
		state[locale] = make(map[string]int64)
	}
	state[locale][slug] = l.now().UnixMilli()
	return l.store(state)
}
