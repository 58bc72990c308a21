package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestConfig() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8080},
		Logging:  LoggingConfig{Level: "info", Format: "json"},
		Playlist: PlaylistConfig{Source: SourceSample},
		Player: PlayerConfig{
			InitialVolume:      1,
			DASHLiveDelay:      3 * time.Second,
			TimeUpdateInterval: 250 * time.Millisecond,
		},
		UI: UIConfig{ViewMode: ViewList},
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.True(t, cfg.Logging.RedactURLs)

	assert.Equal(t, SourceSample, cfg.Playlist.Source)
	assert.Equal(t, int64(50<<20), cfg.Playlist.MaxSize.Bytes())
	assert.Equal(t, 60*time.Second, cfg.Playlist.Timeout)
	assert.Empty(t, cfg.Playlist.RefreshCron)

	assert.True(t, cfg.Player.Autoplay)
	assert.Equal(t, 1.0, cfg.Player.InitialVolume)
	assert.True(t, cfg.Player.EnableHLS)
	assert.True(t, cfg.Player.EnableDASH)
	assert.Equal(t, 3*time.Second, cfg.Player.DASHLiveDelay)
	assert.Equal(t, 250*time.Millisecond, cfg.Player.TimeUpdateInterval)

	assert.Equal(t, ViewList, cfg.UI.ViewMode)
}

func TestLoad_FromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9090
logging:
  level: "debug"
  format: "json"
playlist:
  source: "url"
  url: "http://example.com/playlist.m3u"
  max_size: "2MB"
  timeout: 15s
  refresh_cron: "0 */30 * * * *"
player:
  autoplay: false
  initial_volume: 0.5
  dash_live_delay: 5s
ui:
  view_mode: grid
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, SourceURL, cfg.Playlist.Source)
	assert.Equal(t, "http://example.com/playlist.m3u", cfg.Playlist.URL)
	assert.Equal(t, int64(2<<20), cfg.Playlist.MaxSize.Bytes())
	assert.Equal(t, 15*time.Second, cfg.Playlist.Timeout)
	assert.Equal(t, "0 */30 * * * *", cfg.Playlist.RefreshCron)
	assert.False(t, cfg.Player.Autoplay)
	assert.Equal(t, 0.5, cfg.Player.InitialVolume)
	assert.Equal(t, 5*time.Second, cfg.Player.DASHLiveDelay)
	assert.Equal(t, ViewGrid, cfg.UI.ViewMode)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  port: 8080\nui:\n  view_mode: grid\n"), 0o600))

	t.Setenv("TVPLAY_SERVER_PORT", "9000")
	t.Setenv("TVPLAY_PLAYER_DASH_LIVE_DELAY", "1500ms")

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 1500*time.Millisecond, cfg.Player.DASHLiveDelay)
	assert.Equal(t, ViewGrid, cfg.UI.ViewMode)
}

func TestLoad_InvalidFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server: [unterminated"), 0o600))

	_, err := Load(configPath)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad source", func(c *Config) { c.Playlist.Source = "ftp" }, "playlist.source"},
		{"url without url", func(c *Config) { c.Playlist.Source = SourceURL }, "playlist.url"},
		{"file without file", func(c *Config) { c.Playlist.Source = SourceFile }, "playlist.file"},
		{"bad cron", func(c *Config) { c.Playlist.RefreshCron = "every tuesday" }, "playlist.refresh_cron"},
		{"descriptor cron", func(c *Config) { c.Playlist.RefreshCron = "@hourly" }, ""},
		{"volume too high", func(c *Config) { c.Player.InitialVolume = 1.5 }, "player.initial_volume"},
		{"negative dash delay", func(c *Config) { c.Player.DASHLiveDelay = -time.Second }, "player.dash_live_delay"},
		{"zero time update", func(c *Config) { c.Player.TimeUpdateInterval = 0 }, "player.time_update_interval"},
		{"bad view mode", func(c *Config) { c.UI.ViewMode = "carousel" }, "ui.view_mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDefaults(t *testing.T) {
	d := Defaults()
	server, ok := d["server"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 8080, server["port"])

	playlist, ok := d["playlist"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "50MB", playlist["max_size"])
}

func TestServerConfig_Address(t *testing.T) {
	cfg := ServerConfig{Host: "127.0.0.1", Port: 8080}
	assert.Equal(t, "127.0.0.1:8080", cfg.Address())
}
