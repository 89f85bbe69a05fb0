package transport

import (
	"context"
	"strconv"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// MembershipObserver is called once per membership-loss event, with the
// PeerID that left the group. It mirrors the "observer that feeds
// membership deltas into the failure-exception path" role spec.md §1
// assigns to the external view-management service.
type MembershipObserver func(PeerID)

// MembershipWatcher watches an etcd prefix for member key removals and
// notifies registered observers, the same role the teacher's
// consumer.Resolver plays against an allocator.State's KeySpace.Observers
// (consumer/resolver.go), but expressed directly against clientv3 since this
// repository has no allocator/keyspace package of its own.
//
// Keys are expected of the form "<prefix>/<peer-id>"; any value is accepted,
// only the key's peer id and its presence/absence matter.
type MembershipWatcher struct {
	client *clientv3.Client
	prefix string

	mu        sync.Mutex
	observers []MembershipObserver
}

// NewMembershipWatcher returns a MembershipWatcher over prefix, using
// client. Call Run to begin watching.
func NewMembershipWatcher(client *clientv3.Client, prefix string) *MembershipWatcher {
	return &MembershipWatcher{client: client, prefix: prefix}
}

// Observe registers fn to be called on every future membership loss.
func (w *MembershipWatcher) Observe(fn MembershipObserver) {
	w.mu.Lock()
	w.observers = append(w.observers, fn)
	w.mu.Unlock()
}

// Run watches the prefix until ctx is cancelled, dispatching a
// MembershipObserver call for every observed key deletion. It blocks; call
// it from its own goroutine.
func (w *MembershipWatcher) Run(ctx context.Context) error {
	var watchCh = w.client.Watch(ctx, w.prefix, clientv3.WithPrefix())

	for resp := range watchCh {
		if err := resp.Err(); err != nil {
			return err
		}
		for _, ev := range resp.Events {
			if ev.Type != clientv3.EventTypeDelete {
				continue
			}
			var id, ok = parsePeerKey(string(ev.Kv.Key), w.prefix)
			if !ok {
				continue
			}
			w.notify(id)
		}
	}
	return ctx.Err()
}

func (w *MembershipWatcher) notify(id PeerID) {
	w.mu.Lock()
	var observers = append([]MembershipObserver(nil), w.observers...)
	w.mu.Unlock()

	log.WithField("peer", id).Warn("membership loss observed")
	for _, fn := range observers {
		fn(id)
	}
}

func parsePeerKey(key, prefix string) (PeerID, bool) {
	var suffix = strings.TrimPrefix(key, prefix)
	suffix = strings.TrimPrefix(suffix, "/")
	n, err := strconv.ParseUint(suffix, 10, 32)
	if err != nil {
		return 0, false
	}
	return PeerID(n), true
}
