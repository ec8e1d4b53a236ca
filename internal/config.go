package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Peer modes.
const (
	PeerModePush   = "push"
	PeerModeFollow = "follow"
	PeerModeBoth   = "both"
)

var replicaIDRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Replica ReplicaConfig     `yaml:"replica"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Spool   SpoolConfig       `yaml:"spool"`
	Peers   PeersConfig       `yaml:"peers"`
	Auth    AuthConfig        `yaml:"auth"`
	SSE     SSEConfig         `yaml:"sse"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Replica.Validate(); err != nil {
		return fmt.Errorf("replica: %w", err)
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Spool.Validate(); err != nil {
		return fmt.Errorf("spool: %w", err)
	}
	if err := c.Peers.Validate(); err != nil {
		return fmt.Errorf("peers: %w", err)
	}
	if err := c.SSE.Validate(); err != nil {
		return fmt.Errorf("sse: %w", err)
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// ReplicaConfig identifies this replica among its peers.
type ReplicaConfig struct {
	// ID is stamped on every outgoing delta. Empty means a random UUID,
	// which changes on every start.
	ID        string `yaml:"id"`
	QueueSize int    `yaml:"queue_size"`
}

// Validate validates the replica configuration.
func (c *ReplicaConfig) Validate() error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.ID, validation.Required, validation.Length(1, 64), validation.Match(replicaIDRe)),
		validation.Field(&c.QueueSize, validation.Min(1), validation.Max(1<<16)),
	)
}

// SQLiteConfig holds the path of the shared SQLite catalog.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SpoolConfig holds the shared delta directory transport.
type SpoolConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Dir       string        `yaml:"dir"`
	Retention time.Duration `yaml:"retention"`
}

// Validate validates the spool configuration.
func (c *SpoolConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
		validation.Field(&c.Retention, validation.Required, validation.Min(time.Second)),
	)
}

// PeersConfig lists the replicas this one pushes deltas to or follows.
//
// Mode controls the direction:
//   - "push" (default): POST every local delta to each peer's /api/deltas.
//   - "follow": subscribe to each peer's /api/events stream.
//   - "both": do both; duplicates are dropped by message id.
type PeersConfig struct {
	URLs              []string      `yaml:"urls"`
	Mode              string        `yaml:"mode"`
	Token             string        `yaml:"token"`
	Timeout           time.Duration `yaml:"timeout"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
}

// Validate validates the peers configuration.
func (c *PeersConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = PeerModePush
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.URLs, validation.Each(validation.Required, validation.By(peerURL))),
		validation.Field(&c.Mode, validation.In(PeerModePush, PeerModeFollow, PeerModeBoth)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.ReconnectInterval, validation.Min(time.Duration(0))),
	)
}

func peerURL(v any) error {
	s, _ := v.(string)
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("must be an http(s) base URL")
	}
	return nil
}

// Pushes reports whether local deltas are posted to peers.
func (c *PeersConfig) Pushes() bool {
	return c.Mode == PeerModePush || c.Mode == PeerModeBoth
}

// Follows reports whether peers' event streams are followed.
func (c *PeersConfig) Follows() bool {
	return c.Mode == PeerModeFollow || c.Mode == PeerModeBoth
}

// SSEConfig holds event stream settings.
type SSEConfig struct {
	// TreeThrottle is the minimum gap between tree.updated events of one family.
	TreeThrottle time.Duration `yaml:"tree_throttle"`
}

// Validate validates the SSE configuration.
func (c *SSEConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TreeThrottle, validation.Min(time.Duration(0))),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Replica: ReplicaConfig{
			QueueSize: 256,
		},
		SQLite: SQLiteConfig{
			Path: "./arbor.db",
		},
		Spool: SpoolConfig{
			Dir:       "./spool",
			Retention: time.Hour,
		},
		Peers: PeersConfig{
			Mode:              PeerModePush,
			Timeout:           5 * time.Second,
			ReconnectInterval: time.Second,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		SSE: SSEConfig{
			TreeThrottle: 2 * time.Second,
		},
	}
}
