package sweep

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/japaniel/nottranslated/pkg/db"
)

// Journal records sweep checks in sqlite without putting a transaction on
// the path of every HEAD check. A single goroutine owns the pending batch
// and commits it when it reaches the batch size, when the flush interval
// fires and on Close.
type Journal struct {
	conn    *sql.DB
	size    int
	records chan db.Check
	done    chan struct{}

	mu     sync.RWMutex // guards closed against sends on records
	closed bool

	// OnError is called from the journal goroutine for every failed batch.
	// Set it before the first Record.
	OnError func(error)

	errMu    sync.Mutex
	firstErr error
}

// NewJournal starts a Journal over conn. flushInterval 0 commits only on full
// batches and on Close.
func NewJournal(conn *sql.DB, batchSize int, flushInterval time.Duration) *Journal {
	if batchSize <= 0 {
		batchSize = 10
	}
	j := &Journal{
		conn:    conn,
		size:    batchSize,
		records: make(chan db.Check, batchSize),
		done:    make(chan struct{}),
	}
	go j.run(flushInterval)
	return j
}

// Record queues one check. It blocks while the journal goroutine is busy
// committing and the queue is full.
func (j *Journal) Record(c db.Check) error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return ErrJournalClosed
	}
	j.records <- c
	return nil
}

func (j *Journal) run(flushInterval time.Duration) {
	defer close(j.done)
	var tick <-chan time.Time
	if flushInterval > 0 {
		t := time.NewTicker(flushInterval)
		defer t.Stop()
		tick = t.C
	}

	pending := make([]db.Check, 0, j.size)
	flush := func() {
		if len(pending) == 0 {
			return
		}
		if err := j.commit(pending); err != nil {
			j.fail(err)
		}
		pending = pending[:0]
	}
	for {
		select {
		case c, ok := <-j.records:
			if !ok {
				flush()
				return
			}
			pending = append(pending, c)
			if len(pending) >= j.size {
				flush()
			}
		case <-tick:
			flush()
		}
	}
}

// commit writes checks in one transaction. It runs on a background context
// so a shutting-down sweep still gets its last batch written.
func (j *Journal) commit(checks []db.Check) error {
	tx, err := j.conn.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("begin journal tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	for _, c := range checks {
		if _, err := db.RecordCheck(tx, c); err != nil {
			return fmt.Errorf("journal %s/%s: %w", c.Locale, c.Slug, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit journal batch (%d checks): %w", len(checks), err)
	}
	return nil
}

func (j *Journal) fail(err error) {
	j.errMu.Lock()
	if j.firstErr == nil {
		j.firstErr = err
	}
	j.errMu.Unlock()
	if j.OnError != nil {
		j.OnError(err)
	}
}

// Close stops accepting checks, commits what is pending and returns the
// first failed batch's error.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return ErrJournalClosed
	}
	j.closed = true
	close(j.records)
	j.mu.Unlock()

	<-j.done
	j.errMu.Lock()
	defer j.errMu.Unlock()
	return j.firstErr
}

// ErrJournalClosed is returned by Record and Close after Close.
var ErrJournalClosed = &PoolError{"journal closed"}
