package server

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/NicolasHaas/shadowroom/pkg/protocol"
)

// Config holds server configuration.
type Config struct {
	ListenAddr string `yaml:"listen"`     // TCP bind address (e.g. ":12345")
	HTTPAddr   string `yaml:"http"`       // HTTP bind address for /metrics, /healthz and /ws (empty = disabled)
	UsersFile  string `yaml:"users_file"` // "username:password" credential file
	DBPath     string `yaml:"db"`         // SQLite credential database; used instead of UsersFile when set
	GroupsFile string `yaml:"groups_file"`
	RoomName   string `yaml:"room_name"`

	WebSocket      bool     `yaml:"websocket"`       // serve the chat protocol on HTTPAddr/ws
	AllowedOrigins []string `yaml:"allowed_origins"` // WebSocket origins; empty allows any

	MaxLoginLine   int           `yaml:"max_login_line"`
	MaxCommandLine int           `yaml:"max_command_line"`
	OutboxSize     int           `yaml:"outbox_size"`   // queued outbound messages per connection
	LoginTimeout   time.Duration `yaml:"login_timeout"` // 0 = wait forever for credentials
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	DrainTimeout   time.Duration `yaml:"drain_timeout"` // how long shutdown waits for sessions to flush
	MetricsLog     time.Duration `yaml:"metrics_log"`   // periodic metrics log interval (0 = off)

	// CLI-only actions (run and exit)
	ImportUsers bool `yaml:"-"` // copy UsersFile into the database and exit
	ExportUsers bool `yaml:"-"` // print known usernames as YAML and exit
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr:     ":12345",
		HTTPAddr:       ":12346",
		UsersFile:      "users.txt",
		RoomName:       "Shadow Room",
		MaxLoginLine:   protocol.MaxLoginLine,
		MaxCommandLine: protocol.MaxCommandLine,
		OutboxSize:     64,
		WriteTimeout:   10 * time.Second,
		DrainTimeout:   2 * time.Second,
		MetricsLog:     60 * time.Second,
	}
}

// LoadConfigFile overlays the YAML file at path onto cfg. Keys missing from
// the file keep their current values.
func LoadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path) //nolint:gosec // path from CLI flag
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate checks that cfg can be used to start a server.
func (c Config) Validate() error {
	var errs []error
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen address must not be empty"))
	}
	if c.UsersFile == "" && c.DBPath == "" {
		errs = append(errs, errors.New("either a users file or a database is required"))
	}
	if c.MaxLoginLine <= 0 {
		errs = append(errs, fmt.Errorf("max_login_line must be positive, got %d", c.MaxLoginLine))
	}
	if c.MaxCommandLine <= 0 {
		errs = append(errs, fmt.Errorf("max_command_line must be positive, got %d", c.MaxCommandLine))
	}
	if c.OutboxSize <= 0 {
		errs = append(errs, fmt.Errorf("outbox_size must be positive, got %d", c.OutboxSize))
	}
	if c.LoginTimeout < 0 || c.WriteTimeout < 0 || c.DrainTimeout < 0 || c.MetricsLog < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if c.WebSocket && c.HTTPAddr == "" {
		errs = append(errs, errors.New("websocket requires an http address"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("server: invalid config: %w", err)
	}
	return nil
}
