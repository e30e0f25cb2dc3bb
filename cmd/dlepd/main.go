// dlepd -- DLEP (RFC 8175) radio-side agent daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dlepradio/dlepd/internal/config"
	"github.com/dlepradio/dlepd/internal/console"
	"github.com/dlepradio/dlepd/internal/dlep"
	dlepmetrics "github.com/dlepradio/dlepd/internal/metrics"
	"github.com/dlepradio/dlepd/internal/timerwheel"
	"github.com/dlepradio/dlepd/internal/transport"
	appversion "github.com/dlepradio/dlepd/internal/version"
	"github.com/dlepradio/dlepd/internal/wire"
)

// shutdownTimeout is the maximum time to wait for the metrics HTTP
// server to drain active connections during graceful shutdown.
const shutdownTimeout = 10 * time.Second

// discoveryRecvBacklog and sessionRecvBacklog size the channels the
// feeder goroutines in internal/transport push onto; the core loop
// drains them one at a time, so a backlog only matters under a burst.
const (
	discoveryRecvBacklog = 16
	sessionRecvBacklog   = 64
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to configuration file (key=value grammar)")
	iface := flag.String("iface", "", "network interface to join the discovery multicast group on (required if DISCOVERY_START is set)")
	printVersion := flag.Bool("version", false, "print version information and exit")
	runShell := flag.Bool("shell", false, "run the interactive operator shell on stdin/stdout instead of the headless daemon loop")
	flag.Parse()

	if *printVersion {
		fmt.Println(appversion.Full("dlepd"))
		return 0
	}

	logLevel := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))

	cfg, err := loadConfig(*configPath, logger)
	if err != nil {
		logger.Error("failed to load configuration", slog.String("error", err.Error()))
		return 1
	}
	logLevel.Set(config.ParseLogLevel(cfg.Log.Level))

	logger.Info("dlepd starting",
		slog.String("version", appversion.Version),
		slog.Int("local_udp_port", cfg.Local.UDPPort),
		slog.Int("local_tcp_port", cfg.Local.TCPPort),
		slog.Bool("discovery", cfg.Local.Discovery),
	)

	reg := prometheus.NewRegistry()
	collector := dlepmetrics.NewCollector(reg)

	core := dlep.NewCore(cfg.Local.TypeDesc, logger, metricsNotifier(collector))
	defer core.Close()

	metricsSource := dlep.MetricsSource(dlep.NullMetricsSource{})

	if *runShell {
		return runWithShell(core, cfg, *iface, collector, reg, metricsSource, logger)
	}

	if err := runDaemon(cfg, *iface, core, collector, reg, metricsSource, logger); err != nil {
		logger.Error("dlepd exited with error", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("dlepd stopped")
	return 0
}

// metricsNotifier adapts the Prometheus collector to dlep.StateCallback.
func metricsNotifier(collector *dlepmetrics.Collector) dlep.StateCallback {
	return func(change dlep.StateChange) {
		collector.RecordStateTransition(
			strconv.FormatUint(uint64(change.PeerID), 10),
			change.NeighborMAC,
			change.From,
			change.To,
		)
	}
}

// runWithShell runs the headless daemon loop in the background and
// blocks the main goroutine on the operator shell instead of on
// signal.NotifyContext, so Ctrl-D exits the process directly.
func runWithShell(core *dlep.Core, cfg *config.Config, iface string, collector *dlepmetrics.Collector, reg *prometheus.Registry, metricsSource dlep.MetricsSource, logger *slog.Logger) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- runDaemonLoop(ctx, cfg, iface, core, collector, reg, metricsSource, logger)
	}()

	shell := console.New(core)
	if err := shell.Run(); err != nil {
		logger.Error("operator shell exited with error", slog.String("error", err.Error()))
	}

	cancel()
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("dlepd exited with error", slog.String("error", err.Error()))
		return 1
	}
	return 0
}

// runDaemon wires the metrics HTTP server and the core protocol loop
// together under one errgroup with a signal-aware context.
func runDaemon(cfg *config.Config, iface string, core *dlep.Core, collector *dlepmetrics.Collector, reg *prometheus.Registry, metricsSource dlep.MetricsSource, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	metricsSrv := newMetricsServer(cfg.Metrics, reg)
	g.Go(func() error {
		logger.Info("metrics server listening", slog.String("addr", cfg.Metrics.Addr), slog.String("path", cfg.Metrics.Path))
		return listenAndServe(gCtx, metricsSrv, cfg.Metrics.Addr)
	})

	g.Go(func() error {
		return runDaemonLoop(gCtx, cfg, iface, core, collector, reg, metricsSource, logger)
	})

	g.Go(func() error {
		<-gCtx.Done()
		return shutdownServer(metricsSrv)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run daemon: %w", err)
	}
	return nil
}

// runDaemonLoop owns the session listener, the optional discovery
// listener, and the single select loop that is the only goroutine ever
// allowed to touch Core state (spec §5). It returns when ctx is
// cancelled.
func runDaemonLoop(ctx context.Context, cfg *config.Config, iface string, core *dlep.Core, collector *dlepmetrics.Collector, reg *prometheus.Registry, metricsSource dlep.MetricsSource, logger *slog.Logger) error {
	sessionLn, err := transport.ListenSession(fmt.Sprintf(":%d", cfg.Local.TCPPort))
	if err != nil {
		return fmt.Errorf("listen session: %w", err)
	}
	defer sessionLn.Close()
	logger.Info("session listener started", slog.String("addr", sessionLn.Addr()))

	var discoveryLn *transport.DiscoveryListener
	if cfg.Local.Discovery {
		discoveryLn, err = newDiscoveryListener(cfg, iface)
		if err != nil {
			return fmt.Errorf("start discovery listener: %w", err)
		}
		defer discoveryLn.Close()
		logger.Info("discovery listener started", slog.Int("port", cfg.Local.UDPPort), slog.String("iface", iface))
	} else {
		logger.Info("discovery disabled (DISCOVERY_START=0)")
	}

	acceptCh := make(chan *transport.Conn)
	go acceptLoop(ctx, sessionLn, acceptCh, logger)

	discoveryEvents := make(chan transport.DiscoveryEvent, discoveryRecvBacklog)
	if discoveryLn != nil {
		go transport.RunDiscoveryPump(ctx, discoveryLn, discoveryEvents, logger)
	}

	sessionEvents := make(chan transport.SessionEvent, sessionRecvBacklog)
	sessionClosed := make(chan transport.SessionClosedEvent, discoveryRecvBacklog)

	peerCfg := peerConfigFromTimers(cfg.Local.TypeDesc, cfg.Peer)
	peerConns := make(map[uint32]*transport.Conn)

	ticker := time.NewTicker(timerwheel.Tick)
	defer ticker.Stop()

	metricsTicker := time.NewTicker(dlep.NeighborUpdateInterval.Default)
	defer metricsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			core.Advance()
			core.Pump()

		case <-metricsTicker.C:
			sampleMetrics(core, metricsSource)

		case ev := <-discoveryEvents:
			if err := core.HandleDiscovery(ev.Raw, ev.Reply); err != nil {
				if de, ok := wire.AsDecodeError(err); ok {
					collector.IncDecodeRejections(de.Kind.String())
				}
				logger.Debug("discovery handling error", slog.String("error", err.Error()))
			}

		case conn := <-acceptCh:
			peer := core.AcceptPeer(conn, peerCfg)
			peerConns[peer.ID()] = conn
			collector.SetPeerCount(len(peerConns))
			logger.Info("peer accepted", slog.Uint64("peer_id", uint64(peer.ID())), slog.String("remote", conn.RemoteAddr().String()))
			go transport.RunSessionPump(ctx, peer.ID(), conn, sessionEvents, sessionClosed, logger)

		case ev := <-sessionEvents:
			if err := core.HandleMessage(ev.PeerID, ev.Raw); err != nil {
				if de, ok := wire.AsDecodeError(err); ok {
					collector.IncDecodeRejections(de.Kind.String())
				}
				logger.Debug("message handling error", slog.Uint64("peer_id", uint64(ev.PeerID)), slog.String("error", err.Error()))
			}

		case ev := <-sessionClosed:
			if conn, ok := peerConns[ev.PeerID]; ok {
				conn.Close()
				delete(peerConns, ev.PeerID)
			}
			core.RemovePeer(ev.PeerID)
			collector.SetPeerCount(len(peerConns))
			logger.Info("peer removed", slog.Uint64("peer_id", uint64(ev.PeerID)))
		}
	}
}

// sampleMetrics pulls the current neighbor set from source and feeds
// every reading into the peer it belongs to. Samples are applied to
// every connected peer: in practice dlepd talks to a single router at a
// time, but Core's peer table is not assumed to have exactly one entry.
func sampleMetrics(core *dlep.Core, source dlep.MetricsSource) {
	samples := source.Sample()
	if len(samples) == 0 {
		return
	}
	for _, peer := range core.Peers() {
		for _, s := range samples {
			_ = core.ObserveMetric(peer.ID(), s)
		}
	}
}

// acceptLoop feeds accepted TCP session connections onto out until ctx
// is cancelled or the listener closes.
func acceptLoop(ctx context.Context, ln *transport.SessionListener, out chan<- *transport.Conn, logger *slog.Logger) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("session accept error", slog.String("error", err.Error()))
			continue
		}

		select {
		case out <- conn:
		case <-ctx.Done():
			conn.Close()
			return
		}
	}
}

// newDiscoveryListener picks the multicast group matching the configured
// local address family and joins it on iface.
func newDiscoveryListener(cfg *config.Config, iface string) (*transport.DiscoveryListener, error) {
	group := transport.DefaultMulticastGroupV4
	if cfg.Local.IPv6.IsValid() && !cfg.Local.IPv4.IsValid() {
		group = transport.DefaultMulticastGroupV6
	}

	return transport.NewDiscoveryListener(transport.DiscoveryConfig{
		Group:  group,
		IfName: iface,
		Port:   cfg.Local.UDPPort,
	})
}

// peerConfigFromTimers maps the config's clamped timer fields onto
// internal/dlep.PeerConfig, the shape NewPeer expects.
func peerConfigFromTimers(localType string, t config.PeerTimersConfig) dlep.PeerConfig {
	return dlep.PeerConfig{
		LocalType:                localType,
		HeartbeatInterval:        t.HeartbeatInterval,
		HeartbeatMissed:          t.HeartbeatMissed,
		TermAckTimeout:           t.TermAckTimeout,
		TermMissed:               t.TermMissed,
		NeighborActivityDuration: t.NeighborActivityTimer,
	}
}

// loadConfig loads configuration from a file path or returns defaults.
func loadConfig(path string, logger *slog.Logger) (*config.Config, error) {
	if path == "" {
		return config.DefaultConfig(), nil
	}
	cfg, err := config.Load(path, logger)
	if err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}
	return cfg, nil
}

// newMetricsServer creates an HTTP server for the Prometheus metrics endpoint.
func newMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// listenAndServe listens on addr and serves srv until ctx is cancelled.
func listenAndServe(ctx context.Context, srv *http.Server, addr string) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", addr, err)
	}
	return nil
}

// shutdownServer gracefully shuts srv down within shutdownTimeout.
func shutdownServer(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}
