package transport

import (
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// PeerID identifies a participating process, unique per process within a
// deployment. It doubles as a row index (after rank assignment) and as the
// |from| field of an RPC header.
type PeerID uint32

// Address is the (ip, port) pair at which a peer's Memory-Region exchange
// side-channel listens.
type Address struct {
	IP   string `long:"ip" description:"Peer IP address"`
	Port int    `long:"port" description:"Peer TCP port"`
}

func (a Address) String() string { return fmt.Sprintf("%s:%d", a.IP, a.Port) }

// Kind selects the underlying one-sided remote-memory verbs provider.
// Both are external collaborators; the core only ever speaks to one
// through the Provider interface (see provider.go).
type Kind string

const (
	KindVerbs Kind = "verbs"
	KindLF    Kind = "lf"
)

// Config is the single configuration object of §6: the fields below are the
// entire recognized set, nothing more.
type Config struct {
	LocalID Address_LocalID `group:"Local" namespace:"local"`

	// Peers maps every member's PeerID to its Address. Insertion order is
	// irrelevant; Ranks() below derives a deterministic, ascending-by-id
	// iteration order from it.
	Peers map[PeerID]Address `no-flag:"true"`

	Transport Kind `long:"transport" choice:"verbs" choice:"lf" default:"verbs" description:"Transport provider selection"`

	PredicatePollInterval time.Duration `long:"poll-interval" default:"10ms" description:"Predicate scanner polling interval"`
}

// Address_LocalID names this process's own PeerID. Broken out as its own
// go-flags group so callers can namespace it (Config tags it "local").
type Address_LocalID struct {
	ID PeerID `long:"id" description:"This peer's identifier"`
}

// Validate checks the minimal well-formedness of a Config: the local id
// must be present in the peer table, and the transport kind must be known.
func (c *Config) Validate() error {
	if _, ok := c.Peers[c.LocalID.ID]; !ok {
		return errors.Errorf("local_id %d is not present in the peer address table", c.LocalID.ID)
	}
	switch c.Transport {
	case KindVerbs, KindLF:
	default:
		return errors.Errorf("unrecognized transport kind %q", c.Transport)
	}
	if c.PredicatePollInterval <= 0 {
		return errors.New("poll interval must be positive")
	}
	return nil
}

// Ranks returns the current membership's PeerIDs in ascending order. The
// position of a PeerID within the returned slice is its row rank.
func (c *Config) Ranks() []PeerID {
	var ids = make([]PeerID, 0, len(c.Peers))
	for id := range c.Peers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// LocalRank returns this process's fixed rank within Ranks().
func (c *Config) LocalRank() int {
	for i, id := range c.Ranks() {
		if id == c.LocalID.ID {
			return i
		}
	}
	panic("Validate was not called, or local_id is absent from Peers")
}
