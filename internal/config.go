package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/birbbrain/internal/extract"
	"github.com/starford/birbbrain/internal/fetch"
	"github.com/starford/birbbrain/internal/ingest"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Jobs     JobsConfig        `yaml:"jobs"`
	Vault    VaultConfig       `yaml:"vault"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Thread   ThreadConfig      `yaml:"thread"`
	GitHub   GitHubConfig      `yaml:"github"`
	ArXiv    ArXivConfig       `yaml:"arxiv"`
	Articles ArticlesConfig    `yaml:"articles"`
	HTTP     FetchConfig       `yaml:"http"`
	Metrics  MetricsConfig     `yaml:"metrics"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	sections := []struct {
		name string
		v    validation.Validatable
	}{
		{"app", &c.App},
		{"jobs", &c.Jobs},
		{"vault", &c.Vault},
		{"sqlite", &c.SQLite},
		{"thread", &c.Thread},
		{"github", &c.GitHub},
		{"arxiv", &c.ArXiv},
		{"http", &c.HTTP},
		{"auth", &c.Auth},
	}
	for _, s := range sections {
		if err := s.v.Validate(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

// Endpoints returns the external service locations for the ingestion pipeline.
func (c *Config) Endpoints() ingest.Endpoints {
	return ingest.Endpoints{
		ThreadService:  c.Thread.ServiceURL,
		GitHubAPI:      c.GitHub.APIURL,
		GitHubToken:    c.GitHub.Token,
		ArXivAPI:       c.ArXiv.APIURL,
		ArticleDomains: c.Articles.Domains,
	}
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

// JobsConfig locates the CSV job source. Path may be a doublestar glob.
type JobsConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the jobs configuration.
func (c *JobsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// VaultConfig holds the path to the Markdown vault directory.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// ThreadConfig locates the service that returns a post's full thread.
type ThreadConfig struct {
	ServiceURL string `yaml:"service_url"`
}

// Validate validates the thread service configuration.
func (c *ThreadConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ServiceURL, validation.Required, is.URL),
	)
}

// GitHubConfig holds the GitHub REST API location and optional token.
type GitHubConfig struct {
	APIURL string `yaml:"api_url"`
	Token  string `yaml:"token"`
}

// Validate validates the GitHub configuration.
func (c *GitHubConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.APIURL, validation.Required, is.URL),
	)
}

// ArXivConfig holds the arXiv export API location.
type ArXivConfig struct {
	APIURL string `yaml:"api_url"`
}

// Validate validates the arXiv configuration.
func (c *ArXivConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.APIURL, validation.Required, is.URL),
	)
}

// ArticlesConfig lists the host substrings treated as article sites.
// Empty keeps the built-in list.
type ArticlesConfig struct {
	Domains []string `yaml:"domains"`
}

// FetchConfig tunes the outbound HTTP client.
type FetchConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	UserAgent    string        `yaml:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	Breaker      BreakerConfig `yaml:"breaker"`
}

// BreakerConfig tunes the per-host circuit breaker.
type BreakerConfig struct {
	Failures uint32        `yaml:"failures"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Validate validates the fetch configuration.
func (c *FetchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxBodyBytes, validation.Min(int64(0))),
	)
}

// Options converts the section into fetch client options.
func (c *FetchConfig) Options() fetch.Options {
	return fetch.Options{
		Timeout:         c.Timeout,
		UserAgent:       c.UserAgent,
		MaxBodyBytes:    c.MaxBodyBytes,
		BreakerFailures: c.Breaker.Failures,
		BreakerTimeout:  c.Breaker.Timeout,
	}
}

// MetricsConfig controls where batch runs leave their counters.
// An empty Textfile disables the dump.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// AuthConfig holds authentication configuration for the serve surface.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
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
		Jobs: JobsConfig{
			Path: "./tweets.csv",
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		SQLite: SQLiteConfig{
			Path: "./birbbrain.db",
		},
		Thread: ThreadConfig{
			ServiceURL: "http://localhost:8081/thread",
		},
		GitHub: GitHubConfig{
			APIURL: extract.DefaultGitHubAPI,
		},
		ArXiv: ArXivConfig{
			APIURL: extract.DefaultArXivAPI,
		},
		HTTP: FetchConfig{
			Timeout:      30 * time.Second,
			UserAgent:    "birbbrain/1.0",
			MaxBodyBytes: 100 << 20,
			Breaker: BreakerConfig{
				Failures: 5,
				Timeout:  time.Minute,
			},
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
