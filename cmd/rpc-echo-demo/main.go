// Command rpc-echo-demo runs an S4-flavored scenario: an echo RPC is fanned
// out to a three-member group, framed with the fixed RPC header and
// msgpack-encoded payloads, and one member is evicted from the group before
// it replies. The demo confirms the surviving replies are valid and the
// evicted member's Pending resolves to NodeRemovedFromGroup.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	flags "github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/glycerine/derecho/internal/mbp"
	"github.com/glycerine/derecho/rpc"
	"github.com/glycerine/derecho/transport"
)

var Config = new(struct {
	AbsentPeer uint32        `long:"absent-peer" default:"3" description:"Peer id to simulate as removed from the group before replying"`
	Log        mbp.LogConfig `group:"Logging" namespace:"log" env-namespace:"LOG"`
})

const echoOpcode = 1

type echoRequest struct {
	Text string `msgpack:"text"`
}

type echoReply struct {
	Text string           `msgpack:"text"`
	From transport.PeerID `msgpack:"from"`
}

func main() {
	var parser = flags.NewParser(Config, flags.Default)
	mbp.MustParseArgs(parser)
	Config.Log.MustConfigure()

	if err := run(transport.PeerID(Config.AbsentPeer)); err != nil {
		log.WithError(err).Error("rpc-echo-demo failed")
		color.Red("FAIL: %v", err)
		os.Exit(-1)
	}
	color.Green("OK: echo RPC reply map resolved as expected")
	os.Exit(0)
}

func run(absentPeer transport.PeerID) error {
	var peers = []transport.PeerID{1, 2, 3}
	var query = rpc.NewQuery[echoReply](peers)

	var reqBody, err = msgpack.Marshal(echoRequest{Text: "ping"})
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	var reqMsg = rpc.AllocateMessage(len(reqBody))
	rpc.PopulateHeader(reqMsg, rpc.Header{PayloadSize: uint64(len(reqBody)), Opcode: echoOpcode, From: 0})
	copy(rpc.Payload(reqMsg), reqBody)

	for _, peer := range peers {
		if peer == absentPeer {
			log.WithField("peer", peer).Warn("simulating removal before reply")
			query.SetExceptionForRemovedNode(peer)
			continue
		}
		replyMsg, err := serveEcho(reqMsg, peer)
		if err != nil {
			query.SetException(peer, rpc.RemoteExceptionOccurred(peer, err))
			continue
		}

		var hdr = rpc.RetrieveHeader(replyMsg)
		var reply echoReply
		if err := msgpack.Unmarshal(rpc.Payload(replyMsg), &reply); err != nil {
			query.SetException(peer, rpc.RemoteExceptionOccurred(peer, err))
			continue
		}
		log.WithFields(log.Fields{"peer": hdr.From, "text": reply.Text}).Info("reply received")
		query.SetValue(peer, reply)
	}

	var ctx, cancel = context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for _, peer := range peers {
		if peer == absentPeer {
			continue
		}
		if !query.Replies().Valid(peer) {
			return fmt.Errorf("expected peer %d's reply to be valid", peer)
		}
	}

	var waitErr = query.WaitAll(ctx, time.Second)
	if waitErr == nil {
		return fmt.Errorf("expected WaitAll to report the absent peer's exception")
	}
	if !rpc.IsNodeRemoved(waitErr) {
		return fmt.Errorf("expected a NodeRemovedFromGroup exception, got: %w", waitErr)
	}
	return nil
}

// serveEcho simulates the remote side of the RPC in-process: decode the
// request, build a reply, and frame it exactly as a peer reachable over the
// real transport would.
func serveEcho(reqMsg []byte, from transport.PeerID) ([]byte, error) {
	var req echoRequest
	if err := msgpack.Unmarshal(rpc.Payload(reqMsg), &req); err != nil {
		return nil, err
	}

	var replyBody, err = msgpack.Marshal(echoReply{Text: req.Text + "-pong", From: from})
	if err != nil {
		return nil, err
	}
	var replyMsg = rpc.AllocateMessage(len(replyBody))
	rpc.PopulateHeader(replyMsg, rpc.Header{PayloadSize: uint64(len(replyBody)), Opcode: echoOpcode, From: from})
	copy(rpc.Payload(replyMsg), replyBody)
	return replyMsg, nil
}
