package config

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/gangulaabhinav/ARWalking/internal/locate"
	"github.com/gangulaabhinav/ARWalking/internal/radio"
)

// CurrentVersion is the config file format version.
const CurrentVersion = 1

// Config represents the entire configuration file.
type Config struct {
	Version int                `yaml:"version"`
	Node    *NodeConfig        `yaml:"node"`
	Ranging *RangingConfig     `yaml:"ranging"`
	Peers   *PeersConfig       `yaml:"peers"`
	Anchors map[string]*Anchor `yaml:"anchors,omitempty"` // Keyed by device name
	LAN     *LANConfig         `yaml:"lan,omitempty"`
	Log     *LogConfig         `yaml:"log,omitempty"`
}

// NodeConfig is what the device announces and which roles it plays.
type NodeConfig struct {
	Name      string `yaml:"name"`      // Device name sent in every message
	Service   string `yaml:"service"`   // Discovery service name
	Publish   bool   `yaml:"publish"`   // Act as an anchor others can range
	Subscribe bool   `yaml:"subscribe"` // Discover anchors and locate this device
}

// RangingConfig controls continuous ranging.
type RangingConfig struct {
	Enabled  bool `yaml:"enabled"`
	PeriodMs int  `yaml:"period_ms"`
}

// PeersConfig controls the peer table.
type PeersConfig struct {
	Capacity            int `yaml:"capacity"`
	TimeoutSeconds      int `yaml:"timeout_seconds"`
	PingIntervalSeconds int `yaml:"ping_interval_seconds"`
}

// Anchor is the fixed position of a device, in metres.
type Anchor struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// LANConfig configures the local network radio.
type LANConfig struct {
	ListenAddr         string `yaml:"listen_addr,omitempty"`
	ScanTimeoutSeconds int    `yaml:"scan_timeout_seconds,omitempty"`
}

// LogConfig sets the default log level. Empty keeps logging silent.
type LogConfig struct {
	Level string `yaml:"level,omitempty"`
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	c := &Config{Version: CurrentVersion}
	c.applyDefaults()
	return c
}

// applyDefaults fills in every section a file left out.
func (c *Config) applyDefaults() {
	if c.Node == nil {
		c.Node = &NodeConfig{Subscribe: true}
	}
	if c.Node.Name == "" {
		c.Node.Name = "nanrtt"
	}
	if c.Node.Service == "" {
		c.Node.Service = "General"
	}
	if c.Ranging == nil {
		c.Ranging = &RangingConfig{Enabled: true}
	}
	if c.Ranging.PeriodMs <= 0 {
		c.Ranging.PeriodMs = 200
	}
	if c.Peers == nil {
		c.Peers = &PeersConfig{}
	}
	if c.Peers.Capacity <= 0 {
		c.Peers.Capacity = 64
	}
	if c.Peers.TimeoutSeconds <= 0 {
		c.Peers.TimeoutSeconds = 30
	}
	if c.Peers.PingIntervalSeconds <= 0 {
		c.Peers.PingIntervalSeconds = 10
	}
	if c.Anchors == nil {
		c.Anchors = make(map[string]*Anchor)
	}
	if c.LAN == nil {
		c.LAN = &LANConfig{}
	}
	if c.Log == nil {
		c.Log = &LogConfig{}
	}
}

// Validate reports the first problem with c.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("unsupported config version: %d (expected %d)", c.Version, CurrentVersion)
	}
	if c.Node.Service == "" || !radio.ValidServiceName(c.Node.Service) {
		return fmt.Errorf("invalid service name %q", c.Node.Service)
	}
	if !c.Node.Publish && !c.Node.Subscribe {
		return errors.New("node must publish, subscribe or both")
	}
	if c.Log.Level != "" {
		if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
	}
	for name, a := range c.Anchors {
		if a == nil {
			return fmt.Errorf("anchor %q has no position", name)
		}
	}
	return nil
}

// SetAnchor sets or updates the position of a device, in metres.
func (c *Config) SetAnchor(name string, x, y float64) {
	if c.Anchors == nil {
		c.Anchors = make(map[string]*Anchor)
	}
	c.Anchors[name] = &Anchor{X: x, Y: y}
}

// SetDefaultAnchors places three anchors on a 6m right angle.
func (c *Config) SetDefaultAnchors() {
	c.SetAnchor("anchor-1", 0, 0)
	c.SetAnchor("anchor-2", 6, 0)
	c.SetAnchor("anchor-3", 0, 6)
}

// AnchorPoints returns the anchor positions in millimetres.
func (c *Config) AnchorPoints() map[string]locate.Point {
	out := make(map[string]locate.Point, len(c.Anchors))
	for name, a := range c.Anchors {
		if a != nil {
			out[name] = locate.Point{X: a.X * 1000, Y: a.Y * 1000}
		}
	}
	return out
}

// RangingPeriod returns the ranging period as a duration.
func (c *Config) RangingPeriod() time.Duration {
	return time.Duration(c.Ranging.PeriodMs) * time.Millisecond
}

// PeerTimeout returns how long a peer may stay silent.
func (c *Config) PeerTimeout() time.Duration {
	return time.Duration(c.Peers.TimeoutSeconds) * time.Second
}

// PingInterval returns how often peers are pinged.
func (c *Config) PingInterval() time.Duration {
	return time.Duration(c.Peers.PingIntervalSeconds) * time.Second
}

// ScanTimeout returns the LAN browse window, zero for the radio's default.
func (c *Config) ScanTimeout() time.Duration {
	return time.Duration(c.LAN.ScanTimeoutSeconds) * time.Second
}
