// Package oscfg is opensession's own configuration: where the local
// index and object store live, what team/upload endpoint to sync
// against, and the git-share defaults — loaded the same way the teacher
// loads its gateway config (JSON5 file overlaid with env vars), scoped
// down to this tool's own settings.
package oscfg

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/titanous/json5"
)

// Config is the root opensession configuration.
type Config struct {
	Index       IndexConfig       `json:"index"`
	ObjectStore ObjectStoreConfig `json:"object_store"`
	Team        TeamConfig        `json:"team"`
	Upload      UploadConfig      `json:"upload"`
	GitShare    GitShareConfig    `json:"git_share"`
	Telemetry   TelemetryConfig   `json:"telemetry,omitempty"`

	mu sync.RWMutex
}

// IndexConfig locates the sqlite local index.
type IndexConfig struct {
	Path string `json:"path"`
}

// ObjectStoreConfig locates the content-addressed artifact store.
type ObjectStoreConfig struct {
	Root string `json:"root"`
}

// TeamConfig identifies this machine's sync team.
type TeamConfig struct {
	ID       string `json:"id,omitempty"`
	UserID   string `json:"user_id,omitempty"`
	Nickname string `json:"nickname,omitempty"`
}

// UploadConfig points at the handoff server this machine syncs with.
type UploadConfig struct {
	Endpoint      string  `json:"endpoint,omitempty"`
	APIKey        string  `json:"api_key,omitempty"`
	RatePerSecond float64 `json:"rate_per_second"`
	Burst         int     `json:"burst"`
}

// GitShareConfig sets defaults for `opensession share --git`.
type GitShareConfig struct {
	DefaultRemote string `json:"default_remote,omitempty"`
	DefaultRef    string `json:"default_ref,omitempty"`
	AutoPush      bool   `json:"auto_push"`
}

// TelemetryConfig holds telemetry settings. internal/obs does not read
// it: the tracer takes its endpoint from the OPENSESSION_OTEL_ENDPOINT
// environment variable directly, and the CLI names its service
// "opensession-cli" regardless of ServiceName.
type TelemetryConfig struct {
	Endpoint    string `json:"endpoint,omitempty"`
	ServiceName string `json:"service_name,omitempty"`
}

// Default returns a Config with sensible defaults — a local index and
// object store under the user's XDG data directory, no upload endpoint
// (sync is opt-in), and the git-share ref the teacher's original tool
// uses.
func Default() *Config {
	return &Config{
		Index:       IndexConfig{Path: ExpandHome("~/.local/share/opensession/local.db")},
		ObjectStore: ObjectStoreConfig{Root: ExpandHome("~/.local/share/opensession/objects")},
		Upload:      UploadConfig{RatePerSecond: 2, Burst: 5},
		GitShare:    GitShareConfig{DefaultRef: "refs/heads/opensession/sessions"},
		Telemetry:   TelemetryConfig{ServiceName: "opensession"},
	}
}

// Load reads config from a JSON5 file, then overlays env vars. A missing
// file is not an error — it just means every setting comes from defaults
// and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("oscfg: read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("oscfg: parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config. Env vars always
// take precedence over file values, matching internal/config's
// applyEnvOverrides.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	envStr("OPENSESSION_INDEX_PATH", &c.Index.Path)
	envStr("OPENSESSION_OBJECT_STORE_ROOT", &c.ObjectStore.Root)
	envStr("OPENSESSION_TEAM_ID", &c.Team.ID)
	envStr("OPENSESSION_USER_ID", &c.Team.UserID)
	envStr("OPENSESSION_NICKNAME", &c.Team.Nickname)
	envStr("OPENSESSION_UPLOAD_ENDPOINT", &c.Upload.Endpoint)
	envStr("OPENSESSION_UPLOAD_API_KEY", &c.Upload.APIKey)
	envStr("OPENSESSION_GIT_SHARE_REMOTE", &c.GitShare.DefaultRemote)
	envStr("OPENSESSION_GIT_SHARE_REF", &c.GitShare.DefaultRef)
	envStr("OPENSESSION_OTEL_ENDPOINT", &c.Telemetry.Endpoint)

	if v := os.Getenv("OPENSESSION_UPLOAD_RATE_PER_SECOND"); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil && rate > 0 {
			c.Upload.RatePerSecond = rate
		}
	}
	if v := os.Getenv("OPENSESSION_UPLOAD_BURST"); v != "" {
		if burst, err := strconv.Atoi(v); err == nil && burst > 0 {
			c.Upload.Burst = burst
		}
	}
	if v := os.Getenv("OPENSESSION_GIT_SHARE_AUTO_PUSH"); v != "" {
		c.GitShare.AutoPush = v == "true" || v == "1"
	}
}

// Save writes the config to a JSON file.
func Save(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("oscfg: marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("oscfg: create config dir: %w", err)
	}

	return os.WriteFile(path, data, 0600)
}

// Hash returns a short SHA-256 hash of the config, for detecting whether
// it changed between two reads.
func (c *Config) Hash() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, _ := json.Marshal(c)
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:8])
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if len(path) > 1 && path[1] == '/' {
		return filepath.Join(home, path[2:])
	}
	return home
}
