package transport

import (
	log "github.com/sirupsen/logrus"
)

// Context is the process-wide state of §4 item 1: the registered protection
// domain and endpoint factory, initialized once with the full peer address
// map and torn down at process exit. It is an explicit object rather than
// ambient globals, per the design note in spec.md §9, which eases testing
// with fakes (LoopbackProvider) and multiple instances within one process.
type Context struct {
	Config   *Config
	Provider Provider
	Manager  *Manager
}

// NewContext validates cfg and constructs the Manager bound to provider.
// provider is normally supplied by an external verbs/libfabric package; the
// loopback provider in this repository exists only for tests and demos.
func NewContext(cfg *Config, provider Provider) (*Context, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"local_id":  cfg.LocalID.ID,
		"transport": cfg.Transport,
		"peers":     len(cfg.Peers),
	}).Info("initializing transport context")

	return &Context{
		Config:   cfg,
		Provider: provider,
		Manager:  NewManager(cfg, provider),
	}, nil
}

// Close tears down the Context, marking and dropping every Connection the
// Manager holds. Must be called after every Memory Region bound to this
// Context has been dropped.
func (c *Context) Close() {
	c.Manager.Shutdown()
	log.WithField("local_id", c.Config.LocalID.ID).Info("transport context closed")
}
