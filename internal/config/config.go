// Package config loads the dlepd daemon configuration using koanf/v2,
// layering a file in DLEP's native key=value grammar under environment
// variable overrides, on top of built-in defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/dlepradio/dlepd/internal/dlep"
)

// Config holds the complete dlepd configuration, spec §6's recognized
// key set grouped into sections (the key=value file is flat; Load maps
// each uppercase key onto one of these fields explicitly since the
// grammar has no nesting of its own).
type Config struct {
	Metrics MetricsConfig
	Log     LogConfig
	Local   EndpointConfig
	Router  EndpointConfig
	Peer    PeerTimersConfig
	SimName string
	LocalID string
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	Addr string
	Path string
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	Level  string
	Format string
}

// EndpointConfig holds one side's address/port pair, spec §6's
// LOCAL_*/ROUTER_* key groups.
type EndpointConfig struct {
	UDPPort   int
	TCPPort   int
	IPv4      netip.Addr
	IPv6      netip.Addr
	TypeDesc  string // only meaningful for the local side
	Manual    bool   // MANUAL_START
	Discovery bool   // DISCOVERY_START
}

// PeerTimersConfig holds the clamped timer/threshold overrides, spec
// §6's DLEP_* keys. DefaultConfig seeds every field with its package
// default; Load only overwrites fields a config file or environment
// variable actually sets, then clamps the whole struct through
// internal/dlep's bounds tables.
type PeerTimersConfig struct {
	HeartbeatInterval      time.Duration
	HeartbeatMissed        int
	TermAckTimeout         time.Duration
	TermMissed             int
	NeighborUpAckTimeout   time.Duration
	NeighborUpMissed       int
	NeighborUpdateInterval time.Duration
	NeighborActivityTimer  time.Duration
	NeighborDownAckTimeout time.Duration
	NeighborDownMissed     int
}

// DefaultConfig returns a Config populated with the {default} column of
// the timer/threshold bounds table (spec §9), plus DLEP's standard
// ports and multicast conventions (spec §6).
func DefaultConfig() *Config {
	return &Config{
		Metrics: MetricsConfig{Addr: ":9100", Path: "/metrics"},
		Log:     LogConfig{Level: "info", Format: "json"},
		Local: EndpointConfig{
			UDPPort:   5001,
			TCPPort:   0, // 0 lets the OS pick the session listening port
			TypeDesc:  "dlepd-radio",
			Discovery: true,
		},
		Router: EndpointConfig{
			UDPPort: 5000,
			TCPPort: 5000,
		},
		Peer: PeerTimersConfig{
			HeartbeatInterval:      dlep.PeerHeartbeatInterval.Default,
			HeartbeatMissed:        dlep.PeerHeartbeatMissedThreshold.Default,
			TermAckTimeout:         dlep.PeerTermAckTimeout.Default,
			TermMissed:             dlep.PeerTermMissedThreshold.Default,
			NeighborUpAckTimeout:   dlep.NeighborUpAckTimeout.Default,
			NeighborUpMissed:       dlep.NeighborUpMissedThreshold.Default,
			NeighborUpdateInterval: dlep.NeighborUpdateInterval.Default,
			NeighborActivityTimer:  dlep.NeighborActivityTimer.Default,
			NeighborDownAckTimeout: dlep.NeighborDownAckTimeout.Default,
			NeighborDownMissed:     dlep.NeighborDownMissedThreshold.Default,
		},
		SimName: "dlepd",
	}
}

// envPrefix namespaces environment-variable overrides for this daemon.
// Variables are named DLEPD_<KEY>, e.g. DLEPD_LOCAL_UDP_PORT.
const envPrefix = "DLEPD_"

// ErrConfigFileNotFound wraps file.Provider's error per spec §7's
// ConfigError{file-not-found} — distinct from a bad key or an
// out-of-range value, which are warnings, not load failures.
var ErrConfigFileNotFound = errors.New("config file not found")

// Load reads path using the key=value grammar (Parser), overlays
// DLEPD_-prefixed environment variables, and merges on top of
// DefaultConfig(). Unknown keys are logged and skipped (ConfigError{bad-
// key} is a warning, not an abort, per spec §7); out-of-range numeric
// values are clamped by internal/dlep's bounds tables with a warning.
func Load(path string, logger *slog.Logger) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	if err := k.Load(file.Provider(path), Parser()); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigFileNotFound, path, err)
	}
	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	applyRawKeys(cfg, k.All(), logger)
	clampTimers(cfg, logger)

	return cfg, nil
}

func envKeyMapper(s string) string {
	return strings.TrimPrefix(s, envPrefix)
}

// recognizedKeys is spec §6's exact list, used only to warn on keys
// Load doesn't recognize rather than to restrict what koanf loads.
var recognizedKeys = map[string]bool{
	"SIM_NAME": true, "DEBUG_FLAGS": true, "MANUAL_START": true, "DISCOVERY_START": true,
	"LOCAL_UDP_PORT": true, "LOCAL_TCP_PORT": true, "LOCAL_IPV4": true, "LOCAL_IPV6": true,
	"ROUTER_UDP_PORT": true, "ROUTER_TCP_PORT": true, "ROUTER_IPV4": true, "ROUTER_IPV6": true,
	"TYPE_DESCRIPTION": true, "LOCAL_ID": true,
	"DLEP_PEER_HEARTBEAT_INTERVAL": true, "DLEP_PEER_HEARTBEAT_MISSED_THRESHOLD": true,
	"DLEP_PEER_TERM_ACK_TMO": true, "DLEP_PEER_TERM_MISSED_ACK_THRESHOLD": true,
	"DLEP_NEIGHBOR_UP_ACK_TMO": true, "DLEP_NEIGHBOR_UP_MISSED_ACK_THRESHOLD": true,
	"DLEP_NEIGHBOR_UPDATE_INTERVAL_TMO": true, "DLEP_NEIGHBOR_ACTIVITY_TIMER": true,
	"DLEP_NEIGHBOR_DOWN_ACK_TMO": true, "DLEP_NEIGHBOR_DOWN_MISSED_ACK_THRESHOLD": true,
}

func applyRawKeys(cfg *Config, all map[string]any, logger *slog.Logger) {
	for key, raw := range all {
		s, _ := raw.(string)
		if !recognizedKeys[key] {
			logger.Warn("config: unrecognized key, ignoring", slog.String("key", key))
			continue
		}
		applyKey(cfg, key, s, logger)
	}
}

func applyKey(cfg *Config, key, val string, logger *slog.Logger) {
	switch key {
	case "SIM_NAME":
		cfg.SimName = val
	case "LOCAL_ID":
		cfg.LocalID = val
	case "TYPE_DESCRIPTION":
		cfg.Local.TypeDesc = val
	case "MANUAL_START":
		cfg.Local.Manual = parseBool(val, cfg.Local.Manual, logger, key)
	case "DISCOVERY_START":
		cfg.Local.Discovery = parseBool(val, cfg.Local.Discovery, logger, key)
	case "LOCAL_UDP_PORT":
		cfg.Local.UDPPort = parseInt(val, cfg.Local.UDPPort, logger, key)
	case "LOCAL_TCP_PORT":
		cfg.Local.TCPPort = parseInt(val, cfg.Local.TCPPort, logger, key)
	case "LOCAL_IPV4":
		cfg.Local.IPv4 = parseAddr(val, logger, key)
	case "LOCAL_IPV6":
		cfg.Local.IPv6 = parseAddr(val, logger, key)
	case "ROUTER_UDP_PORT":
		cfg.Router.UDPPort = parseInt(val, cfg.Router.UDPPort, logger, key)
	case "ROUTER_TCP_PORT":
		cfg.Router.TCPPort = parseInt(val, cfg.Router.TCPPort, logger, key)
	case "ROUTER_IPV4":
		cfg.Router.IPv4 = parseAddr(val, logger, key)
	case "ROUTER_IPV6":
		cfg.Router.IPv6 = parseAddr(val, logger, key)
	case "DLEP_PEER_HEARTBEAT_INTERVAL":
		cfg.Peer.HeartbeatInterval = parseSeconds(val, cfg.Peer.HeartbeatInterval, logger, key)
	case "DLEP_PEER_HEARTBEAT_MISSED_THRESHOLD":
		cfg.Peer.HeartbeatMissed = parseInt(val, cfg.Peer.HeartbeatMissed, logger, key)
	case "DLEP_PEER_TERM_ACK_TMO":
		cfg.Peer.TermAckTimeout = parseSeconds(val, cfg.Peer.TermAckTimeout, logger, key)
	case "DLEP_PEER_TERM_MISSED_ACK_THRESHOLD":
		cfg.Peer.TermMissed = parseInt(val, cfg.Peer.TermMissed, logger, key)
	case "DLEP_NEIGHBOR_UP_ACK_TMO":
		cfg.Peer.NeighborUpAckTimeout = parseSeconds(val, cfg.Peer.NeighborUpAckTimeout, logger, key)
	case "DLEP_NEIGHBOR_UP_MISSED_ACK_THRESHOLD":
		cfg.Peer.NeighborUpMissed = parseInt(val, cfg.Peer.NeighborUpMissed, logger, key)
	case "DLEP_NEIGHBOR_UPDATE_INTERVAL_TMO":
		cfg.Peer.NeighborUpdateInterval = parseSeconds(val, cfg.Peer.NeighborUpdateInterval, logger, key)
	case "DLEP_NEIGHBOR_ACTIVITY_TIMER":
		cfg.Peer.NeighborActivityTimer = parseSeconds(val, cfg.Peer.NeighborActivityTimer, logger, key)
	case "DLEP_NEIGHBOR_DOWN_ACK_TMO":
		cfg.Peer.NeighborDownAckTimeout = parseSeconds(val, cfg.Peer.NeighborDownAckTimeout, logger, key)
	case "DLEP_NEIGHBOR_DOWN_MISSED_ACK_THRESHOLD":
		cfg.Peer.NeighborDownMissed = parseInt(val, cfg.Peer.NeighborDownMissed, logger, key)
	case "DEBUG_FLAGS":
		// Accepted and ignored: no debug-flag behavior is in scope here.
	}
}

func parseBool(s string, current bool, logger *slog.Logger, key string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		logger.Warn("config: bad bool value, ignoring", slog.String("key", key), slog.String("value", s))
		return current
	}
	return b
}

func parseInt(s string, current int, logger *slog.Logger, key string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		logger.Warn("config: bad integer value, ignoring", slog.String("key", key), slog.String("value", s))
		return current
	}
	return n
}

func parseSeconds(s string, current time.Duration, logger *slog.Logger, key string) time.Duration {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		logger.Warn("config: bad duration value, ignoring", slog.String("key", key), slog.String("value", s))
		return current
	}
	return time.Duration(f * float64(time.Second))
}

func parseAddr(s string, logger *slog.Logger, key string) netip.Addr {
	if s == "" {
		return netip.Addr{}
	}
	a, err := netip.ParseAddr(s)
	if err != nil {
		logger.Warn("config: bad address value, ignoring", slog.String("key", key), slog.String("value", s))
		return netip.Addr{}
	}
	return a
}

// clampTimers forces every timer/threshold in cfg.Peer through
// internal/dlep's bounds tables, warning on anything that was actually
// out of range (spec §7: ConfigError{out-of-range} is clamp-and-warn,
// never an abort).
func clampTimers(cfg *Config, logger *slog.Logger) {
	clampDuration(&cfg.Peer.HeartbeatInterval, dlep.PeerHeartbeatInterval, logger, "DLEP_PEER_HEARTBEAT_INTERVAL")
	clampInt(&cfg.Peer.HeartbeatMissed, dlep.PeerHeartbeatMissedThreshold, logger, "DLEP_PEER_HEARTBEAT_MISSED_THRESHOLD")
	clampDuration(&cfg.Peer.TermAckTimeout, dlep.PeerTermAckTimeout, logger, "DLEP_PEER_TERM_ACK_TMO")
	clampInt(&cfg.Peer.TermMissed, dlep.PeerTermMissedThreshold, logger, "DLEP_PEER_TERM_MISSED_ACK_THRESHOLD")
	clampDuration(&cfg.Peer.NeighborUpAckTimeout, dlep.NeighborUpAckTimeout, logger, "DLEP_NEIGHBOR_UP_ACK_TMO")
	clampInt(&cfg.Peer.NeighborUpMissed, dlep.NeighborUpMissedThreshold, logger, "DLEP_NEIGHBOR_UP_MISSED_ACK_THRESHOLD")
	clampDuration(&cfg.Peer.NeighborUpdateInterval, dlep.NeighborUpdateInterval, logger, "DLEP_NEIGHBOR_UPDATE_INTERVAL_TMO")
	clampDuration(&cfg.Peer.NeighborActivityTimer, dlep.NeighborActivityTimer, logger, "DLEP_NEIGHBOR_ACTIVITY_TIMER")
	clampDuration(&cfg.Peer.NeighborDownAckTimeout, dlep.NeighborDownAckTimeout, logger, "DLEP_NEIGHBOR_DOWN_ACK_TMO")
	clampInt(&cfg.Peer.NeighborDownMissed, dlep.NeighborDownMissedThreshold, logger, "DLEP_NEIGHBOR_DOWN_MISSED_ACK_THRESHOLD")
}

// clampDuration clamps *d through bounds. It never special-cases zero:
// DefaultConfig already seeds every field with bounds.Default, so a
// field is only zero here if a file explicitly set it to zero — which
// for NeighborActivityTimer (Min: 0) is the documented "disabled"
// value, not "unset".
func clampDuration(d *time.Duration, bounds dlep.TimerBounds, logger *slog.Logger, key string) {
	clamped := bounds.Clamp(*d)
	if clamped != *d {
		logger.Warn("config: value out of range, clamped", slog.String("key", key), slog.Duration("requested", *d), slog.Duration("clamped", clamped))
	}
	*d = clamped
}

func clampInt(n *int, bounds dlep.ThresholdBounds, logger *slog.Logger, key string) {
	clamped := bounds.Clamp(*n)
	if clamped != *n {
		logger.Warn("config: value out of range, clamped", slog.String("key", key), slog.Int("requested", *n), slog.Int("clamped", clamped))
	}
	*n = clamped
}

// ParseLogLevel maps a configuration log level string to the
// corresponding slog.Level. Unknown values default to slog.LevelInfo.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
