package config

import (
	"bytes"
	"encoding/base64"
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeyB64(fill byte) string {
	return base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{fill}, 32))
}

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tunnel.PrivateKey = testKeyB64(0x11)
	cfg.Tunnel.ListenPort = 51820
	cfg.Tunnel.Peers = []PeerConfig{{
		PublicKey:           testKeyB64(0x22),
		Endpoint:            "203.0.113.5:51820",
		AllowedIPs:          []string{"10.0.0.0/24", "fd00::/64"},
		PersistentKeepalive: 25,
	}}
	return cfg
}

func TestLoadFromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tunnel.yaml")
	content := `
library: C:\drivers\wireguard.dll
tunnel:
  pool: WireGuard
  name: Demo
  guid: "{330eaef8-7578-5df2-d97b-8dadc0ea85cb}"
  privateKey: "` + testKeyB64(0x11) + `"
  listenPort: 51820
  peers:
    - publicKey: "` + testKeyB64(0x22) + `"
      endpoint: "192.0.2.1:1234"
      allowedIPs: ["10.0.0.0/8"]
      persistentKeepalive: 15
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg := DefaultConfig()
	require.NoError(t, LoadFromFile(path, cfg))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, `C:\drivers\wireguard.dll`, cfg.Library)
	assert.Equal(t, "Demo", cfg.Tunnel.Name)
	assert.Equal(t, uint16(51820), cfg.Tunnel.ListenPort)
	require.Len(t, cfg.Tunnel.Peers, 1)
	assert.Equal(t, uint16(15), cfg.Tunnel.Peers[0].PersistentKeepalive)
	assert.Equal(t, "debug", cfg.Logging.Level)

	guid, err := cfg.RequestedGUID()
	require.NoError(t, err)
	require.NotNil(t, guid)
	assert.Equal(t, uint32(0x330eaef8), guid.Data1)
}

func TestLoadFromFileUnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tunnel.toml")
	require.NoError(t, os.WriteFile(path, []byte("x = 1"), 0600))
	assert.Error(t, LoadFromFile(path, DefaultConfig()))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("WGNT_POOL", "TestPool")
	t.Setenv("WGNT_NAME", "env0")
	t.Setenv("WGNT_LISTEN_PORT", "7777")
	t.Setenv("WGNT_FAIL_ON_REBOOT_REQUIRED", "1")
	t.Setenv("WGNT_LOG_LEVEL", "warn")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	assert.Equal(t, "TestPool", cfg.Tunnel.Pool)
	assert.Equal(t, "env0", cfg.Tunnel.Name)
	assert.Equal(t, uint16(7777), cfg.Tunnel.ListenPort)
	assert.True(t, cfg.Tunnel.FailOnRebootRequired)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty pool", func(c *Config) { c.Tunnel.Pool = "" }},
		{"empty adapter name", func(c *Config) { c.Tunnel.Name = "" }},
		{"bad guid", func(c *Config) { c.Tunnel.GUID = "not-a-guid" }},
		{"bad private key", func(c *Config) { c.Tunnel.PrivateKey = "short" }},
		{"bad peer key", func(c *Config) { c.Tunnel.Peers[0].PublicKey = "nope" }},
		{"bad endpoint", func(c *Config) { c.Tunnel.Peers[0].Endpoint = "203.0.113.5" }},
		{"bad allowed IP", func(c *Config) { c.Tunnel.Peers[0].AllowedIPs = []string{"10.0.0.0/33"} }},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestToDriver(t *testing.T) {
	cfg := validConfig()
	dc, err := cfg.ToDriver()
	require.NoError(t, err)

	assert.True(t, dc.ReplacePeers)
	require.NotNil(t, dc.PrivateKey)
	assert.Equal(t, byte(0x11), dc.PrivateKey[0])
	require.NotNil(t, dc.ListenPort)
	assert.Equal(t, uint16(51820), *dc.ListenPort)

	require.Len(t, dc.Peers, 1)
	p := dc.Peers[0]
	assert.True(t, p.ReplaceAllowedIPs)
	assert.Equal(t, byte(0x22), p.PublicKey[0])
	assert.Nil(t, p.PresharedKey)
	require.NotNil(t, p.Endpoint)
	assert.Equal(t, netip.MustParseAddrPort("203.0.113.5:51820"), *p.Endpoint)
	require.NotNil(t, p.PersistentKeepalive)
	assert.Equal(t, uint16(25), *p.PersistentKeepalive)
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/24"),
		netip.MustParsePrefix("fd00::/64"),
	}, p.AllowedIPs)
}

func TestToDriverOmitsAbsentFields(t *testing.T) {
	cfg := DefaultConfig()
	dc, err := cfg.ToDriver()
	require.NoError(t, err)
	assert.Nil(t, dc.PrivateKey)
	assert.Nil(t, dc.ListenPort)
	assert.Empty(t, dc.Peers)
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "tunnel.yaml")
	cfg := validConfig()
	require.NoError(t, cfg.SaveToFile(path))

	reloaded := DefaultConfig()
	require.NoError(t, LoadFromFile(path, reloaded))
	assert.Equal(t, cfg, reloaded)
}
