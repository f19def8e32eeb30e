package ledger

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/japaniel/nottranslated/pkg/apperrors"
)

// Clicks counts follow-throughs to the upstream delete action per local
// calendar day. It is shown to the reviewer and never feeds any decision.
type Clicks struct {
	kv  KV
	now func() time.Time
	log *zap.Logger

	mu sync.Mutex
}

// NewClicks returns a click ledger over kv.
func NewClicks(kv KV, opts ...Option) *Clicks {
	o := buildOptions(opts)
	return &Clicks{kv: kv, now: o.now, log: o.log}
}

// DayKey formats t's local calendar day as YYYY-M-D.
func DayKey(t time.Time) string {
	t = t.Local()
	return fmt.Sprintf("%d-%d-%d", t.Year(), int(t.Month()), t.Day())
}

func (c *Clicks) load() (map[string]int, error) {
	raw, ok, err := c.kv.Get(ClicksKey)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ClicksKey, err)
	}
	counts := map[string]int{}
	if !ok || raw == "" {
		return counts, nil
	}
	if err := json.Unmarshal([]byte(raw), &counts); err != nil || counts == nil {
		c.log.Warn("Discarding unreadable click ledger", zap.Error(apperrors.CorruptLocalState(ClicksKey, err)))
		return map[string]int{}, nil
	}
	return counts, nil
}

// Record counts one click for today and returns today's total.
func (c *Clicks) Record() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	counts, err := c.load()
	if err != nil {
		return 0, err
	}
	day := DayKey(c.now())
	counts[day]++
	data, err := json.Marshal(counts)
	if err != nil {
		return 0, err
	}
	if err := c.kv.Set(ClicksKey, string(data)); err != nil {
		return 0, fmt.Errorf("write %s: %w", ClicksKey, err)
	}
	return counts[day], nil
}

// Today returns today's count.
func (c *Clicks) Today() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	counts, err := c.load()
	if err != nil {
		return 0, err
	}
	return counts[DayKey(c.now())], nil
}
