package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gangulaabhinav/ARWalking/internal/config"
	"github.com/gangulaabhinav/ARWalking/internal/locate"
)

func TestNodeConfig(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Node.Name = "walker"
	cfg.SetDefaultAnchors()

	c := nodeConfig(cfg)
	require.NoError(t, c.Validate())
	assert.Equal(t, "walker", c.DeviceName)
	assert.Equal(t, "General", c.Service)
	assert.True(t, c.Subscribe)
	assert.True(t, c.Ranging)
	assert.Equal(t, 200*time.Millisecond, c.RangingPeriod)
	assert.Equal(t, 30*time.Second, c.PeerTimeout)
	assert.Equal(t, locate.Point{X: 6000}, c.Anchors["anchor-2"])

	a := anchorConfig(cfg, "anchor-2")
	require.NoError(t, a.Validate())
	assert.Equal(t, "anchor-2", a.DeviceName)
	assert.True(t, a.Publish)
	assert.False(t, a.Subscribe)
	assert.False(t, a.Ranging)
	assert.Empty(t, a.Anchors)
}

func TestCentroid(t *testing.T) {
	assert.Equal(t, locate.Point{}, centroid(nil))
	assert.Equal(t, locate.Point{X: 2000, Y: 2000}, centroid(map[string]locate.Point{
		"a": {X: 0, Y: 0},
		"b": {X: 6000, Y: 0},
		"c": {X: 0, Y: 6000},
	}))
}

func TestRootCommand(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"simulate", "lan", "config", "version"}, names)
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("metrics-addr"))
}
