package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/gangulaabhinav/ARWalking/internal/app"
	"github.com/gangulaabhinav/ARWalking/internal/config"
	"github.com/gangulaabhinav/ARWalking/internal/locate"
	"github.com/gangulaabhinav/ARWalking/internal/logging"
	"github.com/gangulaabhinav/ARWalking/internal/metrics"
	"github.com/gangulaabhinav/ARWalking/internal/radio/lan"
	"github.com/gangulaabhinav/ARWalking/internal/radio/sim"
	"github.com/gangulaabhinav/ARWalking/internal/ui"
	"github.com/gangulaabhinav/ARWalking/internal/version"
)

// Display flags shared by simulate and lan
var (
	headless bool
	refresh  time.Duration
)

func addDisplayFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&headless, "headless", false, "Print a summary line per refresh instead of the live monitor")
	cmd.Flags().DurationVar(&refresh, "refresh", time.Second, "Headless summary interval")
}

// loadConfig reads --config, or the default file, and starts logging.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	level := logLevel
	if level == "" {
		level = os.Getenv(logging.LogLevelEnvVar)
	}
	if level == "" {
		level = cfg.Log.Level
	}
	if err := logging.Initialize(level); err != nil {
		return nil, err
	}
	return cfg, nil
}

// nodeConfig maps the file configuration onto a node.
func nodeConfig(cfg *config.Config) app.Config {
	return app.Config{
		DeviceName:    cfg.Node.Name,
		Service:       cfg.Node.Service,
		Publish:       cfg.Node.Publish,
		Subscribe:     cfg.Node.Subscribe,
		Ranging:       cfg.Ranging.Enabled,
		RangingPeriod: cfg.RangingPeriod(),
		PeerCapacity:  cfg.Peers.Capacity,
		PeerTimeout:   cfg.PeerTimeout(),
		PingInterval:  cfg.PingInterval(),
		Anchors:       cfg.AnchorPoints(),
	}
}

// anchorConfig is the node of a simulated anchor: it only publishes.
func anchorConfig(cfg *config.Config, name string) app.Config {
	c := nodeConfig(cfg)
	c.DeviceName = name
	c.Publish = true
	c.Subscribe = false
	c.Ranging = false
	c.Anchors = nil
	return c
}

// run shows node until the user quits or a signal arrives. extra tasks
// run alongside and stop with it.
func run(node *app.Node, anchors int, extra ...func(context.Context) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	if metricsAddr != "" {
		g.Go(func() error { return serveMetrics(ctx, metricsAddr) })
	}
	for _, task := range extra {
		g.Go(func() error { return task(ctx) })
	}
	g.Go(func() error {
		defer cancel()
		if headless || !ui.IsTerminal() {
			return printSummaries(ctx, node, refresh)
		}
		return ui.Run(ctx, node, anchors)
	})
	return g.Wait()
}

func printSummaries(ctx context.Context, node *app.Node, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			fmt.Println(ui.Summary(node.Snapshot()))
		}
	}
}

func serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logging.Info("Serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// Simulate command and flags
var (
	startX, startY float64
	noiseMm        float64
	noiseSeed      int64
	walk           bool
	walkRadius     float64
	walkPeriod     time.Duration
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run anchors and a walker on a simulated radio",
	Long: `Run one anchor node per configured anchor and a walker node, all sharing
an in-memory radio. The walker discovers the anchors, ranges them and
locates itself; distances are the true distances plus optional noise.

When the config file has no anchors, three default anchors are used.`,
	Example: `  # Walker standing at (2m, 3m)
  nanrtt simulate --x 2 --y 3

  # Walker circling the anchors with 100mm ranging noise
  nanrtt simulate --walk --noise 100

  # No terminal UI, metrics on :9100
  nanrtt simulate --headless --metrics-addr :9100`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().Float64Var(&startX, "x", 2, "Walker X position in metres")
	simulateCmd.Flags().Float64Var(&startY, "y", 3, "Walker Y position in metres")
	simulateCmd.Flags().Float64Var(&noiseMm, "noise", 0, "Standard deviation of ranging noise in millimetres")
	simulateCmd.Flags().Int64Var(&noiseSeed, "seed", 1, "Seed of the ranging noise")
	simulateCmd.Flags().BoolVar(&walk, "walk", false, "Move the walker in a circle around the anchors")
	simulateCmd.Flags().Float64Var(&walkRadius, "radius", 2, "Radius of the walk in metres")
	simulateCmd.Flags().DurationVar(&walkPeriod, "period", time.Minute, "Time for one lap of the walk")
	addDisplayFlags(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Anchors) == 0 {
		cfg.SetDefaultAnchors()
	}
	anchors := cfg.AnchorPoints()

	var opts []sim.AirOption
	if noiseMm > 0 {
		opts = append(opts, sim.WithNoise(noiseMm, noiseSeed))
	}
	air := sim.NewAir(opts...)

	var nodes []*app.Node
	defer func() {
		for _, n := range nodes {
			err = multierr.Append(err, n.Close())
		}
	}()

	for name, pos := range anchors {
		n, err := app.New(air.NewRadio(name, pos), anchorConfig(cfg, name))
		if err != nil {
			return fmt.Errorf("anchor %s: %w", name, err)
		}
		n.Start()
		nodes = append(nodes, n)
	}

	walkerCfg := nodeConfig(cfg)
	walkerCfg.Subscribe = true
	walkerCfg.Ranging = true
	start := locate.Point{X: startX * 1000, Y: startY * 1000}
	walkerRadio := air.NewRadio(walkerCfg.DeviceName, start)
	walker, err := app.New(walkerRadio, walkerCfg)
	if err != nil {
		return fmt.Errorf("walker: %w", err)
	}
	walker.Start()
	nodes = append(nodes, walker)

	logging.Info("Simulation started",
		zap.Int("anchors", len(anchors)),
		zap.Stringer("walker", start),
		zap.Float64("noise_mm", noiseMm))

	var tasks []func(context.Context) error
	if walk {
		centre := centroid(anchors)
		tasks = append(tasks, func(ctx context.Context) error {
			walkCircle(ctx, walkerRadio, centre, walkRadius*1000, walkPeriod)
			return nil
		})
	}
	return run(walker, len(anchors), tasks...)
}

func centroid(points map[string]locate.Point) locate.Point {
	var c locate.Point
	if len(points) == 0 {
		return c
	}
	for _, p := range points {
		c.X += p.X
		c.Y += p.Y
	}
	c.X /= float64(len(points))
	c.Y /= float64(len(points))
	return c
}

// walkCircle moves r around centre once per period until ctx is done.
func walkCircle(ctx context.Context, r *sim.Radio, centre locate.Point, radiusMm float64, period time.Duration) {
	const steps = 60
	ticker := time.NewTicker(period / steps)
	defer ticker.Stop()
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			angle := 2 * math.Pi * float64(i%steps) / steps
			r.MoveTo(locate.Point{
				X: centre.X + radiusMm*math.Cos(angle),
				Y: centre.Y + radiusMm*math.Sin(angle),
			})
		}
	}
}

// LAN command and flags
var (
	deviceName string
	listenAddr string
)

var lanCmd = &cobra.Command{
	Use:   "lan",
	Short: "Run one device on the local network",
	Long: `Run the configured node on the local network. Sessions are advertised and
browsed with mDNS (_nanrtt._tcp), messages travel over WebSocket and
ranging measures WebSocket round-trip times.

Round-trip times carry no distance, so a LAN node tracks peers and chats
but does not locate itself.`,
	Example: `  # Anchor named kitchen
  nanrtt lan --name kitchen

  # Fixed listening port with debug logging on stderr
  nanrtt lan --listen :7400 --log-level debug --headless`,
	RunE: runLAN,
}

func init() {
	lanCmd.Flags().StringVar(&deviceName, "name", "", "Device name (overrides the config file)")
	lanCmd.Flags().StringVar(&listenAddr, "listen", "", "WebSocket listen address (overrides the config file)")
	addDisplayFlags(lanCmd)
}

func runLAN(cmd *cobra.Command, args []string) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if deviceName != "" {
		cfg.Node.Name = deviceName
	}
	if listenAddr != "" {
		cfg.LAN.ListenAddr = listenAddr
	}

	opts := []lan.Option{lan.WithScanTimeout(cfg.ScanTimeout())}
	if cfg.LAN.ListenAddr != "" {
		opts = append(opts, lan.WithListenAddr(cfg.LAN.ListenAddr))
	}
	r := lan.New(cfg.Node.Name, opts...)

	node, err := app.New(r, nodeConfig(cfg))
	if err != nil {
		return err
	}
	node.Start()
	defer func() {
		err = multierr.Append(err, node.Close())
	}()

	return run(node, len(cfg.Anchors))
}

// Config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var forceInit bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveConfigPath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil && !forceInit {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
		}
		if _, err := config.CreateDefaultConfig(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.GetConfigPath()
}

// Version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("nanrtt %s\n", version.Get())
	},
}
