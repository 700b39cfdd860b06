// Package config holds the runtime configuration shared by the relay server
// and the participant client.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
)

// Environment variables consulted by Load when a flag is left empty.
const (
	EnvServerURL     = "BEETV_SERVER_URL"
	EnvListenAddr    = "BEETV_LISTEN_ADDR"
	EnvSTUNServers   = "BEETV_STUN_SERVERS"
	EnvStatsInterval = "BEETV_STATS_INTERVAL"
	EnvDebug         = "BEETV_DEBUG"
)

// Defaults.
const (
	DefaultServerURL     = "ws://127.0.0.1:5000/ws"
	DefaultListenAddr    = "0.0.0.0:5000"
	DefaultStatsInterval = 10 * time.Second
)

// STUN servers for ICE candidate gathering. No TURN: the direct path is the
// only one offered.
var DefaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// Config stores every parameter needed to run either side of the system.
type Config struct {
	ServerURL     string        // Client: relay WebSocket URL
	ListenAddr    string        // Server: address the relay listens on
	STUNServers   []string      // Client: ICE servers handed to pion
	StatsInterval time.Duration // Both: negotiation stats reporting period (0 disables)
	Debug         bool
}

// Options carries CLI flag values. Zero values mean "not set".
type Options struct {
	ServerURL     string
	ListenAddr    string
	STUNServers   []string
	StatsInterval time.Duration
	Debug         bool
}

// Load resolves the configuration with the following priority:
//  1. CLI flags (passed via Options)
//  2. Environment variables
//  3. Hardcoded defaults
func Load(opts Options) (*Config, error) {
	cfg := &Config{
		ServerURL:     DefaultServerURL,
		ListenAddr:    DefaultListenAddr,
		STUNServers:   DefaultSTUNServers,
		StatsInterval: DefaultStatsInterval,
	}

	if v := os.Getenv(EnvServerURL); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv(EnvListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(EnvSTUNServers); v != "" {
		cfg.STUNServers = splitList(v)
	}
	if v := os.Getenv(EnvStatsInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvStatsInterval, err)
		}
		cfg.StatsInterval = d
	}
	if v := os.Getenv(EnvDebug); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvDebug, err)
		}
		cfg.Debug = debug
	}

	if opts.ServerURL != "" {
		cfg.ServerURL = opts.ServerURL
	}
	if opts.ListenAddr != "" {
		cfg.ListenAddr = opts.ListenAddr
	}
	if len(opts.STUNServers) > 0 {
		cfg.STUNServers = opts.STUNServers
	}
	if opts.StatsInterval != 0 {
		cfg.StatsInterval = opts.StatsInterval
	}
	if opts.Debug {
		cfg.Debug = true
	}

	serverURL, err := NormalizeWSURL(cfg.ServerURL)
	if err != nil {
		return nil, err
	}
	cfg.ServerURL = serverURL

	return cfg, nil
}

// ICEServers converts the configured STUN URLs into pion ICE servers.
func (c *Config) ICEServers() []webrtc.ICEServer {
	if len(c.STUNServers) == 0 {
		return nil
	}
	return []webrtc.ICEServer{{URLs: c.STUNServers}}
}

// NormalizeWSURL validates a raw relay URL and forces a ws/wss scheme and the
// /ws path. Bare hosts default to wss.
func NormalizeWSURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "wss://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid WebSocket URL: %s", raw)
	}
	scheme := "wss"
	switch u.Scheme {
	case "ws", "wss":
		scheme = u.Scheme
	case "http":
		scheme = "ws"
	}
	return fmt.Sprintf("%s://%s/ws", scheme, u.Host), nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
