// Package config provides file and environment configuration for a tunnel
// managed through the wgnt bindings, and its conversion into the driver's
// structured configuration.
package config

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"github.com/irctrakz/wgnt/pkg/driver"
	"github.com/irctrakz/wgnt/pkg/logging"
	"github.com/irctrakz/wgnt/pkg/wgcfg"
)

// Config is the complete configuration of one managed tunnel.
type Config struct {
	// Library is the path to wireguard.dll. Empty uses the default search
	// order.
	Library string `json:"library" yaml:"library"`

	// Tunnel identifies and configures the adapter.
	Tunnel TunnelConfig `json:"tunnel" yaml:"tunnel"`

	// Logging contains the logging configuration.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// TunnelConfig contains the adapter identity and the interface and peer
// settings pushed to the driver.
type TunnelConfig struct {
	// Pool is the driver-level namespace the adapter lives in.
	Pool string `json:"pool" yaml:"pool"`

	// Name is the adapter name within the pool.
	Name string `json:"name" yaml:"name"`

	// GUID optionally pins the adapter's GUID across recreations, in
	// {xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx} form.
	GUID string `json:"guid" yaml:"guid"`

	// FailOnRebootRequired escalates the driver's soft "reboot required"
	// signal into a fatal error, for automation that cannot tolerate a
	// half-installed support component.
	FailOnRebootRequired bool `json:"fail_on_reboot_required" yaml:"failOnRebootRequired"`

	// PrivateKey is the interface private key, base64.
	PrivateKey string `json:"private_key" yaml:"privateKey"`

	// ListenPort is the UDP listen port. 0 keeps the driver's choice.
	ListenPort uint16 `json:"listen_port" yaml:"listenPort"`

	// Peers is the tunnel's peer list, applied in order.
	Peers []PeerConfig `json:"peers" yaml:"peers"`
}

// PeerConfig describes one peer in file form.
type PeerConfig struct {
	// PublicKey is the peer's public key, base64.
	PublicKey string `json:"public_key" yaml:"publicKey"`

	// PresharedKey is the optional preshared key, base64.
	PresharedKey string `json:"preshared_key" yaml:"presharedKey"`

	// Endpoint is the peer's remote address, host:port.
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// AllowedIPs is a list of prefixes in CIDR notation.
	AllowedIPs []string `json:"allowed_ips" yaml:"allowedIPs"`

	// PersistentKeepalive is the keepalive interval in seconds, 0 disables.
	PersistentKeepalive uint16 `json:"persistent_keepalive" yaml:"persistentKeepalive"`
}

// LoggingConfig contains configuration for logging.
type LoggingConfig struct {
	// Level is the logging level (debug, info, warn, error).
	Level string `json:"level" yaml:"level"`

	// File is the log file path; empty logs to stdout only.
	File string `json:"file" yaml:"file"`

	// MaxSize is the maximum size of the log file in megabytes.
	MaxSize int `json:"maxSize" yaml:"maxSize"`

	// MaxBackups is the maximum number of old log files to retain.
	MaxBackups int `json:"maxBackups" yaml:"maxBackups"`

	// MaxAge is the maximum number of days to retain old log files.
	MaxAge int `json:"maxAge" yaml:"maxAge"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Tunnel: TunnelConfig{
			Pool: "WireGuard",
			Name: "wgnt0",
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     7,
		},
	}
}

// LoadFromFile loads configuration from a JSON or YAML file, chosen by
// extension.
func LoadFromFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch {
	case strings.HasSuffix(path, ".json"):
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s", path)
	}
	return nil
}

// LoadFromEnv overlays configuration from environment variables.
func LoadFromEnv(config *Config) {
	if val := os.Getenv("WGNT_LIBRARY"); val != "" {
		config.Library = val
	}
	if val := os.Getenv("WGNT_POOL"); val != "" {
		config.Tunnel.Pool = val
	}
	if val := os.Getenv("WGNT_NAME"); val != "" {
		config.Tunnel.Name = val
	}
	if val := os.Getenv("WGNT_GUID"); val != "" {
		config.Tunnel.GUID = val
	}
	if val := os.Getenv("WGNT_PRIVATE_KEY"); val != "" {
		config.Tunnel.PrivateKey = val
	}
	if val := os.Getenv("WGNT_LISTEN_PORT"); val != "" {
		if port, err := strconv.ParseUint(val, 10, 16); err == nil {
			config.Tunnel.ListenPort = uint16(port)
		}
	}
	if val := os.Getenv("WGNT_FAIL_ON_REBOOT_REQUIRED"); val != "" {
		config.Tunnel.FailOnRebootRequired = val == "true" || val == "1"
	}
	if val := os.Getenv("WGNT_LOG_LEVEL"); val != "" {
		config.Logging.Level = val
	}
	if val := os.Getenv("WGNT_LOG_FILE"); val != "" {
		config.Logging.File = val
	}
}

// Validate validates the configuration without touching the driver.
func (c *Config) Validate() error {
	if c.Tunnel.Pool == "" || len(c.Tunnel.Pool) >= driver.MaxPoolName {
		return fmt.Errorf("invalid pool name: %q", c.Tunnel.Pool)
	}
	if c.Tunnel.Name == "" || len(c.Tunnel.Name) >= driver.MaxPoolName {
		return fmt.Errorf("invalid adapter name: %q", c.Tunnel.Name)
	}
	if c.Tunnel.GUID != "" {
		if _, err := driver.ParseGUID(c.Tunnel.GUID); err != nil {
			return err
		}
	}
	if c.Tunnel.PrivateKey != "" {
		if _, err := wgtypes.ParseKey(c.Tunnel.PrivateKey); err != nil {
			return fmt.Errorf("invalid private key: %w", err)
		}
	}
	for i, peer := range c.Tunnel.Peers {
		if _, err := wgtypes.ParseKey(peer.PublicKey); err != nil {
			return fmt.Errorf("peer %d: invalid public key: %w", i, err)
		}
		if peer.PresharedKey != "" {
			if _, err := wgtypes.ParseKey(peer.PresharedKey); err != nil {
				return fmt.Errorf("peer %d: invalid preshared key: %w", i, err)
			}
		}
		if peer.Endpoint != "" {
			if _, err := netip.ParseAddrPort(peer.Endpoint); err != nil {
				return fmt.Errorf("peer %d: invalid endpoint %q: %w", i, peer.Endpoint, err)
			}
		}
		for _, cidr := range peer.AllowedIPs {
			if _, err := netip.ParsePrefix(cidr); err != nil {
				return fmt.Errorf("peer %d: invalid allowed IP %q: %w", i, cidr, err)
			}
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}
	return nil
}

// RequestedGUID returns the pinned adapter GUID, or nil when none is
// configured.
func (c *Config) RequestedGUID() (*driver.GUID, error) {
	if c.Tunnel.GUID == "" {
		return nil, nil
	}
	guid, err := driver.ParseGUID(c.Tunnel.GUID)
	if err != nil {
		return nil, err
	}
	return &guid, nil
}

// ToDriver converts the tunnel settings into the structured configuration the
// driver accepts. The conversion replaces the driver's peer list wholesale.
func (c *Config) ToDriver() (*wgcfg.Config, error) {
	cfg := &wgcfg.Config{ReplacePeers: true}

	if c.Tunnel.PrivateKey != "" {
		key, err := wgtypes.ParseKey(c.Tunnel.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		cfg.PrivateKey = &key
	}
	if c.Tunnel.ListenPort != 0 {
		port := c.Tunnel.ListenPort
		cfg.ListenPort = &port
	}

	for i, peer := range c.Tunnel.Peers {
		p := wgcfg.Peer{ReplaceAllowedIPs: true}

		key, err := wgtypes.ParseKey(peer.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("peer %d: invalid public key: %w", i, err)
		}
		p.PublicKey = key

		if peer.PresharedKey != "" {
			psk, err := wgtypes.ParseKey(peer.PresharedKey)
			if err != nil {
				return nil, fmt.Errorf("peer %d: invalid preshared key: %w", i, err)
			}
			p.PresharedKey = &psk
		}
		if peer.Endpoint != "" {
			ep, err := netip.ParseAddrPort(peer.Endpoint)
			if err != nil {
				return nil, fmt.Errorf("peer %d: invalid endpoint %q: %w", i, peer.Endpoint, err)
			}
			p.Endpoint = &ep
		}
		if peer.PersistentKeepalive != 0 {
			ka := peer.PersistentKeepalive
			p.PersistentKeepalive = &ka
		}
		for _, cidr := range peer.AllowedIPs {
			pfx, err := netip.ParsePrefix(cidr)
			if err != nil {
				return nil, fmt.Errorf("peer %d: invalid allowed IP %q: %w", i, cidr, err)
			}
			p.AllowedIPs = append(p.AllowedIPs, pfx)
		}
		cfg.Peers = append(cfg.Peers, p)
	}
	return cfg, nil
}

// ApplyLogging applies the logging configuration.
func (c *Config) ApplyLogging() error {
	var level logging.Level
	switch c.Logging.Level {
	case "debug":
		level = logging.DebugLevel
	case "warn":
		level = logging.WarnLevel
	case "error":
		level = logging.ErrorLevel
	default:
		level = logging.InfoLevel
	}
	logging.SetLevel(level)

	if c.Logging.File != "" {
		err := logging.EnableFileLogging(logging.FileOptions{
			Path:       c.Logging.File,
			MaxSizeMB:  c.Logging.MaxSize,
			MaxBackups: c.Logging.MaxBackups,
			MaxAgeDays: c.Logging.MaxAge,
		})
		if err != nil {
			return fmt.Errorf("failed to enable file logging: %w", err)
		}
	}
	return nil
}

// SaveToFile saves the configuration to a JSON or YAML file, chosen by
// extension.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch {
	case strings.HasSuffix(path, ".json"):
		data, err = json.MarshalIndent(c, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config to JSON: %w", err)
		}
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		data, err = yaml.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal config to YAML: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s", path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
