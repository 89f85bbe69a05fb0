package region

import (
	"context"
	"sync"

	"github.com/glycerine/derecho/transport"
)

// LoopbackExchanger implements Exchanger in-process, for this repository's
// own tests and bundled demos, in lieu of a real TCP side-channel. Every
// simulated peer shares one LoopbackExchangerHub.
type LoopbackExchanger struct {
	hub  *LoopbackExchangerHub
	self transport.PeerID
}

// LoopbackExchangerHub is the shared rendezvous point a LoopbackExchanger
// pair exchanges payloads through.
type LoopbackExchangerHub struct {
	mu      sync.Mutex
	pending map[loopbackKey]chan [payloadSize]byte
}

type loopbackKey struct {
	from, to transport.PeerID
	tag      string
}

// NewLoopbackExchangerHub returns an empty hub.
func NewLoopbackExchangerHub() *LoopbackExchangerHub {
	return &LoopbackExchangerHub{pending: make(map[loopbackKey]chan [payloadSize]byte)}
}

// Exchanger returns a LoopbackExchanger for self, bound to the hub.
func (h *LoopbackExchangerHub) Exchanger(self transport.PeerID) *LoopbackExchanger {
	return &LoopbackExchanger{hub: h, self: self}
}

// Exchange publishes local under (self, peer, tag) and blocks for peer's
// publication under (peer, self, tag).
func (x *LoopbackExchanger) Exchange(ctx context.Context, peer transport.PeerID, tag string, local [payloadSize]byte) ([payloadSize]byte, error) {
	x.hub.publish(loopbackKey{from: x.self, to: peer, tag: tag}, local)

	var ch = x.hub.chanFor(loopbackKey{from: peer, to: x.self, tag: tag})
	select {
	case payload := <-ch:
		return payload, nil
	case <-ctx.Done():
		return [payloadSize]byte{}, ctx.Err()
	}
}

func (h *LoopbackExchangerHub) publish(key loopbackKey, payload [payloadSize]byte) {
	var ch = h.chanFor(key)
	select {
	case ch <- payload:
	default:
	}
}

func (h *LoopbackExchangerHub) chanFor(key loopbackKey) chan [payloadSize]byte {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.pending[key]; ok {
		return ch
	}
	var ch = make(chan [payloadSize]byte, 1)
	h.pending[key] = ch
	return ch
}
