package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	var cfg = &Config{
		Peers: map[PeerID]Address{
			1: {IP: "10.0.0.1", Port: 9090},
			2: {IP: "10.0.0.2", Port: 9090},
			3: {IP: "10.0.0.3", Port: 9090},
		},
		Transport:             KindVerbs,
		PredicatePollInterval: 10 * time.Millisecond,
	}
	cfg.LocalID.ID = 2
	return cfg
}

func TestConfigValidateOK(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestConfigValidateRejectsUnknownLocalID(t *testing.T) {
	var cfg = validConfig()
	cfg.LocalID.ID = 99
	assert.Error(t, cfg.Validate())
}

func TestConfigValidateRejectsUnknownTransport(t *testing.T) {
	var cfg = validConfig()
	cfg.Transport = "rdma-of-the-future"
	assert.Error(t, cfg.Validate())
}

func TestConfigValidateRejectsNonPositivePollInterval(t *testing.T) {
	var cfg = validConfig()
	cfg.PredicatePollInterval = 0
	assert.Error(t, cfg.Validate())
}

func TestConfigRanksAndLocalRank(t *testing.T) {
	var cfg = validConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []PeerID{1, 2, 3}, cfg.Ranks())
	assert.Equal(t, 1, cfg.LocalRank())
}

func TestConfigLocalRankPanicsWhenAbsent(t *testing.T) {
	var cfg = validConfig()
	cfg.LocalID.ID = 99
	assert.Panics(t, func() { cfg.LocalRank() })
}
