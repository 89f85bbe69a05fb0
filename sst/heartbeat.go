package sst

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gammazero/workerpool"
	"github.com/glycerine/derecho/transport"
	log "github.com/sirupsen/logrus"
)

// FailureObserver is notified exactly once per rank the first time the
// heartbeat monitor suspects that member dead, per spec.md §4.4.
type FailureObserver func(rank int, peer transport.PeerID)

// HeartbeatMonitor implements spec.md §4.4's heartbeat-based failure
// detection: a dedicated scalar field each member increments and pushes on
// a timer, and a poller that suspects a peer dead once its field has gone
// stale for missedThreshold consecutive polls.
type HeartbeatMonitor struct {
	table           *Table
	field           FieldID
	mgr             *transport.Manager
	clk             clock.Clock
	pool            *workerpool.WorkerPool
	interval        time.Duration
	missedThreshold int
	live            *liveness

	mu       sync.Mutex
	counter  uint64
	lastSeen map[int]uint64
	missed   map[int]int

	obsMu     sync.Mutex
	observers []FailureObserver

	stop chan struct{}
}

// NewHeartbeatMonitor constructs a monitor over field (which must be a
// ScalarU64 field of table), using mgr to mark a suspected peer's
// connection broken once suspicion fires.
func NewHeartbeatMonitor(table *Table, field FieldID, mgr *transport.Manager, clk clock.Clock, interval time.Duration, missedThreshold int) *HeartbeatMonitor {
	if clk == nil {
		clk = clock.New()
	}
	return &HeartbeatMonitor{
		table:           table,
		field:           field,
		mgr:             mgr,
		clk:             clk,
		pool:            workerpool.New(4),
		interval:        interval,
		missedThreshold: missedThreshold,
		live:            newLiveness(table.NumRows()),
		lastSeen:        make(map[int]uint64),
		missed:          make(map[int]int),
		stop:            make(chan struct{}),
	}
}

// Observe registers fn to be called the first time a member is suspected
// dead. Safe to call concurrently with Start.
func (m *HeartbeatMonitor) Observe(fn FailureObserver) {
	m.obsMu.Lock()
	defer m.obsMu.Unlock()
	m.observers = append(m.observers, fn)
}

// Beat increments and pushes the local heartbeat field. Callers drive this
// on their own timer (spec.md §4.4 leaves the send cadence to the caller;
// Start below drives both the send and the scan on the same interval when
// that is sufficient).
func (m *HeartbeatMonitor) Beat(ctx context.Context) error {
	m.mu.Lock()
	m.counter++
	var v = m.counter
	m.mu.Unlock()

	m.table.SetUint64(m.table.LocalRank(), m.field, v)
	return m.table.PutField(ctx, m.field)
}

// Start runs the beat-and-scan loop until ctx is cancelled or Stop is
// called.
func (m *HeartbeatMonitor) Start(ctx context.Context) {
	var ticker = m.clk.Ticker(m.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stop:
				return
			case <-ticker.C:
				if err := m.Beat(ctx); err != nil {
					log.WithError(err).Warn("sst: heartbeat send failed")
				}
				m.scan()
			}
		}
	}()
}

// Stop halts the monitor's background loop and its worker pool.
func (m *HeartbeatMonitor) Stop() {
	close(m.stop)
	m.pool.StopWait()
}

func (m *HeartbeatMonitor) scan() {
	var wg sync.WaitGroup
	for rank := 0; rank < m.table.NumRows(); rank++ {
		if rank == m.table.LocalRank() || !m.live.isAlive(rank) {
			continue
		}
		var rank = rank
		wg.Add(1)
		m.pool.Submit(func() {
			defer wg.Done()
			m.scanOne(rank)
		})
	}
	wg.Wait()
}

func (m *HeartbeatMonitor) scanOne(rank int) {
	var current = m.table.GetUint64(rank, m.field)

	m.mu.Lock()
	var last, seenBefore = m.lastSeen[rank]
	if !seenBefore || current != last {
		m.lastSeen[rank] = current
		m.missed[rank] = 0
		m.mu.Unlock()
		return
	}
	m.missed[rank]++
	var missedCount = m.missed[rank]
	m.mu.Unlock()

	if missedCount < m.missedThreshold {
		return
	}
	if !m.live.markDead(rank) {
		return
	}

	var peer = m.table.PeerAt(rank)
	log.WithFields(log.Fields{"rank": rank, "peer": peer}).Warn("sst: heartbeat failure suspected")
	m.mgr.MarkBroken(peer)

	m.obsMu.Lock()
	var observers = append([]FailureObserver(nil), m.observers...)
	m.obsMu.Unlock()
	for _, fn := range observers {
		fn(rank, peer)
	}
}
