package sst

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gammazero/workerpool"
	log "github.com/sirupsen/logrus"
)

// Predicate inspects the table's current state (including mirror rows) and
// reports whether its associated action should fire, per spec.md §4.5.
type Predicate func(t *Table) bool

// Action runs when a Predicate becomes true.
type Action func(t *Table)

type predicateEntry struct {
	pred      Predicate
	action    Action
	recurring bool
	fired     bool
}

// PredicateEngine polls a fixed set of predicates on a timer, per spec.md
// §4.5: one-time predicates fire their action at most once and are then
// retired; recurring predicates fire their action every poll in which they
// hold. Predicates registered earlier fire first within the same cycle,
// and each action runs to completion, synchronously, before the next
// predicate is even evaluated — the pool below exists to give the poll
// loop its own worker goroutine, not to run actions concurrently with one
// another.
type PredicateEngine struct {
	table    *Table
	clk      clock.Clock
	interval time.Duration
	pool     *workerpool.WorkerPool

	mu      sync.Mutex
	entries []*predicateEntry

	stop chan struct{}
}

// NewPredicateEngine constructs an engine over table, polling at interval.
func NewPredicateEngine(table *Table, clk clock.Clock, interval time.Duration) *PredicateEngine {
	if clk == nil {
		clk = clock.New()
	}
	return &PredicateEngine{
		table:    table,
		clk:      clk,
		interval: interval,
		pool:     workerpool.New(4),
		stop:     make(chan struct{}),
	}
}

// AddOneTime registers a predicate whose action runs at most once, the
// first poll at which pred(table) is true. Matches the common "wait until
// every row advances past X" usage in spec.md §4.5.
func (e *PredicateEngine) AddOneTime(pred Predicate, action Action) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = append(e.entries, &predicateEntry{pred: pred, action: action, recurring: false})
}

// AddRecurring registers a predicate whose action runs on every poll at
// which pred(table) holds.
func (e *PredicateEngine) AddRecurring(pred Predicate, action Action) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = append(e.entries, &predicateEntry{pred: pred, action: action, recurring: true})
}

// Start runs the poll loop until ctx is cancelled or Stop is called.
func (e *PredicateEngine) Start(ctx context.Context) {
	var ticker = e.clk.Ticker(e.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-e.stop:
				return
			case <-ticker.C:
				e.poll()
			}
		}
	}()
}

// Stop halts the poll loop and its worker pool.
func (e *PredicateEngine) Stop() {
	close(e.stop)
	e.pool.StopWait()
}

func (e *PredicateEngine) poll() {
	e.mu.Lock()
	var pending = make([]*predicateEntry, 0, len(e.entries))
	var kept = e.entries[:0]
	for _, ent := range e.entries {
		if ent.fired && !ent.recurring {
			continue
		}
		kept = append(kept, ent)
		pending = append(pending, ent)
	}
	e.entries = kept
	e.mu.Unlock()

	// One at a time, in registration order: SubmitWait blocks until the
	// submitted action has finished, so no two actions ever run at once
	// and a later predicate never jumps ahead of an earlier one.
	for _, ent := range pending {
		var ent = ent
		e.pool.SubmitWait(func() {
			e.evaluate(ent)
		})
	}
}

func (e *PredicateEngine) evaluate(ent *predicateEntry) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("sst: predicate evaluation panicked")
		}
	}()
	if !ent.pred(e.table) {
		return
	}
	if !ent.recurring {
		e.mu.Lock()
		var already = ent.fired
		ent.fired = true
		e.mu.Unlock()
		if already {
			return
		}
	}
	ent.action(e.table)
}
