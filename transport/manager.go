package transport

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Manager is the process-wide registry mapping a peer identifier to its
// shared Connection. get/mark_broken are serialized with each other by mu,
// per spec.md §5 "Shared resources".
type Manager struct {
	cfg      *Config
	provider Provider

	mu    sync.Mutex
	conns map[PeerID]*Connection
}

// NewManager returns a Manager which lazily dials peers found in cfg.Peers
// using provider.
func NewManager(cfg *Config, provider Provider) *Manager {
	return &Manager{
		cfg:      cfg,
		provider: provider,
		conns:    make(map[PeerID]*Connection),
	}
}

// Get returns a weak Handle to remote's Connection. If no Connection exists
// yet and remote's address is known, one is lazily constructed. Otherwise
// the returned Handle fails to Upgrade.
func (m *Manager) Get(ctx context.Context, remote PeerID) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conns[remote]; !ok {
		if addr, known := m.cfg.Peers[remote]; known {
			if conn, err := m.dialLocked(ctx, remote, addr); err != nil {
				log.WithFields(log.Fields{"peer": remote, "err": err}).
					Error("failed to dial peer")
			} else {
				m.conns[remote] = conn
			}
		}
	}
	return Handle{peer: remote, mgr: m}
}

func (m *Manager) dialLocked(ctx context.Context, remote PeerID, addr Address) (*Connection, error) {
	var ep, err = m.provider.Dial(ctx, remote, addr)
	if err != nil {
		return nil, err
	}
	return &Connection{Peer: remote, Endpoint: ep}, nil
}

// MarkBroken flags remote's Connection broken, if one is held. Upgrades of
// weak Handles continue to succeed (observing broken=true) until the
// Manager's strong reference is itself dropped, e.g. by Shutdown.
func (m *Manager) MarkBroken(remote PeerID) {
	m.mu.Lock()
	var conn = m.conns[remote]
	m.mu.Unlock()

	if conn != nil {
		conn.MarkBroken()
		log.WithFields(log.Fields{"peer": remote}).Warn("connection marked broken")
	}
}

// Remove flags remote's Connection broken and then drops the Manager's
// strong reference to it, so that subsequent Upgrades fail with
// ErrConnectionRemoved.
func (m *Manager) Remove(remote PeerID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conn, ok := m.conns[remote]; ok {
		conn.MarkBroken()
		delete(m.conns, remote)
	}
}

// Shutdown flags every held Connection broken, then drops all strong
// references.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for peer, conn := range m.conns {
		conn.MarkBroken()
		_ = conn.Endpoint.Close()
		delete(m.conns, peer)
	}
}

// lookup is the implementation behind Handle.Upgrade.
func (m *Manager) lookup(remote PeerID) (*Connection, error) {
	m.mu.Lock()
	var conn, ok = m.conns[remote]
	m.mu.Unlock()

	if !ok {
		return nil, ErrConnectionRemoved
	}
	return conn, nil
}
