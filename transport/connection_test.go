package transport

import (
	"context"
	"testing"

	gc "gopkg.in/check.v1"
)

// Hook gocheck into go test, matching the teacher's own mix of suite-style
// tests (consumer/replica_test.go, broker/client/append_service_test.go)
// alongside plain testify tests elsewhere in this package.
func TestGocheck(t *testing.T) { gc.TestingT(t) }

type ConnectionSuite struct{}

var _ = gc.Suite(&ConnectionSuite{})

func (s *ConnectionSuite) TestMarkBrokenIdempotent(c *gc.C) {
	var conn = &Connection{Peer: 1}
	c.Check(conn.Broken(), gc.Equals, false)

	conn.MarkBroken()
	conn.MarkBroken()
	c.Check(conn.Broken(), gc.Equals, true)
}

func (s *ConnectionSuite) TestHandleUpgradeFailsOnceRemoved(c *gc.C) {
	var net = NewLoopbackNetwork()
	var mgr = NewManager(&Config{Peers: map[PeerID]Address{1: {}, 2: {}}}, NewLoopbackProvider(net, 1))

	var h = mgr.Get(context.Background(), 2)
	conn, err := h.Upgrade()
	c.Assert(err, gc.IsNil)
	c.Check(conn.Broken(), gc.Equals, false)

	mgr.Remove(2)
	_, err = h.Upgrade()
	c.Assert(err, gc.Equals, ErrConnectionRemoved)
}
