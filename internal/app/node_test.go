package app

import (
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gangulaabhinav/ARWalking/internal/locate"
	"github.com/gangulaabhinav/ARWalking/internal/peers"
	"github.com/gangulaabhinav/ARWalking/internal/radio"
	"github.com/gangulaabhinav/ARWalking/internal/radio/sim"
)

const (
	waitFor = 3 * time.Second
	tick    = 10 * time.Millisecond
)

var anchorPositions = map[string]locate.Point{
	"anchor-1": {X: 0, Y: 0},
	"anchor-2": {X: 6000, Y: 0},
	"anchor-3": {X: 0, Y: 6000},
}

func startNode(t *testing.T, r Radio, cfg Config, opts ...Option) *Node {
	t.Helper()
	n, err := New(r, cfg, opts...)
	require.NoError(t, err)
	n.Start()
	t.Cleanup(func() { _ = n.Close() })
	return n
}

func anchorConfig(name string) Config {
	return Config{
		DeviceName:   name,
		Service:      "General",
		Publish:      true,
		PingInterval: 50 * time.Millisecond,
	}
}

func walkerConfig() Config {
	return Config{
		DeviceName:    "walker",
		Service:       "General",
		Subscribe:     true,
		Ranging:       true,
		RangingPeriod: 20 * time.Millisecond,
		PingInterval:  50 * time.Millisecond,
		Anchors:       anchorPositions,
	}
}

func deviceNamed(devices []peers.Device, name string) (peers.Device, bool) {
	for _, d := range devices {
		if d.Name == name {
			return d, true
		}
	}
	return peers.Device{}, false
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"no device name", func(c *Config) { c.DeviceName = "" }, true},
		{"delimiter in name", func(c *Config) { c.DeviceName = "a|b" }, true},
		{"empty service", func(c *Config) { c.Service = "" }, true},
		{"bad service", func(c *Config) { c.Service = "bad name" }, true},
		{"no role", func(c *Config) { c.Subscribe = false }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := walkerConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNode_WalkerLocatesItself(t *testing.T) {
	air := sim.NewAir()
	var anchors []*Node
	for i := 1; i <= 3; i++ {
		name := fmt.Sprintf("anchor-%d", i)
		anchors = append(anchors, startNode(t, air.NewRadio(name, anchorPositions[name]), anchorConfig(name)))
	}
	want := locate.Point{X: 2000, Y: 3000}
	walker := startNode(t, air.NewRadio("walker", want), walkerConfig())

	require.Eventually(t, func() bool {
		return len(walker.Snapshot().Devices) == 3
	}, waitFor, tick, "walker should complete the handshake with every anchor")

	for _, a := range anchors {
		require.Eventually(t, func() bool {
			_, ok := deviceNamed(a.Snapshot().Devices, "walker")
			return ok
		}, waitFor, tick)
	}

	require.Eventually(t, func() bool {
		res, ok := walker.Position()
		return ok && res.Anchors == 3
	}, waitFor, tick)
	res, _ := walker.Position()
	assert.InDelta(t, want.X, res.Position.X, 50)
	assert.InDelta(t, want.Y, res.Position.Y, 50)

	snap := walker.Snapshot()
	d, ok := deviceNamed(snap.Devices, "anchor-2")
	require.True(t, ok)
	assert.True(t, d.Anchor)
	assert.InDelta(t, 5000, d.DistanceMm, 1)
	assert.Positive(t, snap.Counters.RangingRounds)
	assert.Zero(t, snap.Counters.Malformed)
	require.NotNil(t, snap.Position)

	require.Eventually(t, func() bool {
		return anchors[0].Snapshot().Counters.Received > 2
	}, waitFor, tick, "anchors should keep receiving pings")
}

func TestNode_Chat(t *testing.T) {
	air := sim.NewAir()
	anchor := startNode(t, air.NewRadio("anchor-1", locate.Point{}), anchorConfig("anchor-1"))
	walker := startNode(t, air.NewRadio("walker", locate.Point{X: 1000}), walkerConfig())

	var peer radio.PeerHandle
	require.Eventually(t, func() bool {
		d, ok := deviceNamed(walker.Snapshot().Devices, "anchor-1")
		peer = d.Peer
		return ok
	}, waitFor, tick)

	require.NoError(t, walker.SendChat(peer, "hello"))
	require.Eventually(t, func() bool { return len(anchor.Chats()) == 1 }, waitFor, tick)
	chat := anchor.Chats()[0]
	assert.Equal(t, "walker", chat.From)
	assert.Equal(t, "hello", chat.Text)

	assert.ErrorIs(t, walker.SendChat(peer, "a|b"), ErrInvalidText)
	assert.ErrorIs(t, walker.SendChat(99, "hi"), ErrUnknownPeer)
}

func TestNode_TerminationForgetsPeers(t *testing.T) {
	air := sim.NewAir()
	anchorRadio := air.NewRadio("anchor-1", locate.Point{})
	anchor := startNode(t, anchorRadio, anchorConfig("anchor-1"))
	walker := startNode(t, air.NewRadio("walker", locate.Point{X: 1000}), walkerConfig())

	require.Eventually(t, func() bool {
		return len(walker.Snapshot().Devices) == 1 && len(anchor.Snapshot().Devices) == 1
	}, waitFor, tick)

	anchorRadio.SetAvailable(false)

	require.Eventually(t, func() bool {
		return len(anchor.Snapshot().Devices) == 0
	}, waitFor, tick, "terminated session clears the tracker")
	require.Eventually(t, func() bool {
		return len(walker.Snapshot().Devices) == 0
	}, waitFor, tick, "lost publisher is forgotten")
	assert.False(t, anchor.Snapshot().Available)
}

func TestNode_SilentPeerTimesOut(t *testing.T) {
	clock := clockwork.NewFakeClock()
	air := sim.NewAir(sim.WithClock(clock))

	anchorCfg := anchorConfig("anchor-1")
	anchorCfg.PingInterval = 10 * time.Second
	anchorCfg.PeerTimeout = 30 * time.Second
	anchor := startNode(t, air.NewRadio("anchor-1", locate.Point{}), anchorCfg, WithClock(clock))

	walkerCfg := walkerConfig()
	walkerCfg.Ranging = false
	walkerCfg.PingInterval = 10 * time.Second
	walker, err := New(air.NewRadio("walker", locate.Point{X: 1000}), walkerCfg, WithClock(clock))
	require.NoError(t, err)
	walker.Start()

	require.Eventually(t, func() bool {
		return len(anchor.Snapshot().Devices) == 1
	}, waitFor, tick)

	// A subscriber leaving is invisible to the publisher; only silence
	// removes it.
	require.NoError(t, walker.Close())
	require.Len(t, anchor.Snapshot().Devices, 1)

	require.Eventually(t, func() bool {
		clock.Advance(10 * time.Second)
		return len(anchor.Snapshot().Devices) == 0
	}, waitFor, tick)
}

func TestNode_MalformedMessageIsCounted(t *testing.T) {
	air := sim.NewAir()
	anchor := startNode(t, air.NewRadio("anchor-1", locate.Point{}), anchorConfig("anchor-1"))

	anchor.OnMessageReceived(radio.PublishMode, "General", 1, []byte("no delimiters"))
	anchor.OnMessageReceived(radio.PublishMode, "General", 1, []byte("x|99|y"))

	snap := anchor.Snapshot()
	assert.Equal(t, 1, snap.Counters.Malformed)
	assert.Equal(t, 1, snap.Counters.Received)
	assert.Empty(t, snap.Devices)
}
