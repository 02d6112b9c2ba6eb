// Package config loads ~/.passlocal/config.yaml.
//
// The file is optional. When present it must be a regular file owned by the
// current user and not writable by group or others; it is opened once and
// checked through the open descriptor so it cannot be swapped between the
// check and the read.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/forest6511/passlocal/internal/logging"
)

// FileName is the config file name inside the vault directory.
const FileName = "config.yaml"

// EnvVaultPath overrides VaultPath when set.
const EnvVaultPath = "PASSLOCAL_VAULT_PATH"

// CurrentVersion is the only config version understood.
const CurrentVersion = 1

// MaxClipboardClearSeconds bounds ClipboardClearSeconds.
const MaxClipboardClearSeconds = 600

var (
	// ErrInsecure is returned for group/world-writable config files.
	ErrInsecure = errors.New("config: file has insecure permissions")

	// ErrSymlink is returned when the config path is a symlink.
	ErrSymlink = errors.New("config: file is a symlink")

	// ErrNotOwnedByUser is returned when another user owns the file.
	ErrNotOwnedByUser = errors.New("config: file not owned by current user")

	// ErrInvalid wraps validation failures.
	ErrInvalid = errors.New("config: invalid value")
)

// MCPTools lists the tool names the MCP server may register.
var MCPTools = []string{"folder_list", "secret_list", "secret_exists", "secret_get_masked"}

// Config is the parsed config file.
type Config struct {
	Version               int      `yaml:"version"`
	VaultPath             string   `yaml:"vault_path"`
	LogLevel              string   `yaml:"log_level"`
	LogJSON               bool     `yaml:"log_json"`
	Audit                 *bool    `yaml:"audit"`
	ClipboardClearSeconds int      `yaml:"clipboard_clear_seconds"`
	MCPTools              []string `yaml:"mcp_tools"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Version:  CurrentVersion,
		LogLevel: "warn",
	}
}

// AuditEnabled reports whether audit logging is on. It defaults to true.
func (c *Config) AuditEnabled() bool {
	return c.Audit == nil || *c.Audit
}

// MCPToolAllowed reports whether the MCP server may expose tool. An empty
// list allows every tool.
func (c *Config) MCPToolAllowed(tool string) bool {
	if len(c.MCPTools) == 0 {
		return true
	}
	for _, t := range c.MCPTools {
		if t == tool {
			return true
		}
	}
	return false
}

// Validate checks every field.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalid, c.Version)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.ClipboardClearSeconds < 0 || c.ClipboardClearSeconds > MaxClipboardClearSeconds {
		return fmt.Errorf("%w: clipboard_clear_seconds must be between 0 and %d", ErrInvalid, MaxClipboardClearSeconds)
	}
	for _, t := range c.MCPTools {
		if !knownTool(t) {
			return fmt.Errorf("%w: unknown mcp tool %q", ErrInvalid, t)
		}
	}
	return nil
}

func knownTool(name string) bool {
	for _, t := range MCPTools {
		if t == name {
			return true
		}
	}
	return false
}

// Load reads path. A missing file yields Default. The environment override
// is applied last.
func Load(path string) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}
	if env := strings.TrimSpace(os.Getenv(EnvVaultPath)); env != "" {
		cfg.VaultPath = env
	}
	return cfg, nil
}

func load(path string) (*Config, error) {
	f, err := openConfigFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("config: failed to stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("config: %s is not a regular file", path)
	}
	if perm := info.Mode().Perm(); perm&0o022 != 0 {
		return nil, fmt.Errorf("%w: %o", ErrInsecure, perm)
	}
	if err := checkFileOwnership(info); err != nil {
		return nil, err
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.VaultPath = expandHome(cfg.VaultPath)
	return cfg, nil
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
