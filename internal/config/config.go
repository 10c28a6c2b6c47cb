package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultUpstreamURL  = "http://localhost:8000"
	DefaultPort         = 3000
	DefaultMaxBodyBytes = 1 << 20
	DefaultMaxRespBytes = 4 << 20

	UpstreamKindHTTP   = "http"
	UpstreamKindOpenAI = "openai"
)

// Config holds relay configuration. It is loaded once and passed into
// constructors; nothing else reads the environment.
type Config struct {
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"readTimeout"`
		WriteTimeout    time.Duration `yaml:"writeTimeout"`
		IdleTimeout     time.Duration `yaml:"idleTimeout"`
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	} `yaml:"server"`

	Upstream struct {
		Kind    string        `yaml:"kind"` // http | openai
		BaseURL string        `yaml:"baseURL"`
		Timeout time.Duration `yaml:"timeout"` // 0 keeps the transport default
	} `yaml:"upstream"`

	OpenAI struct {
		APIKey  string `yaml:"apiKey"`
		Model   string `yaml:"model"`
		BaseURL string `yaml:"baseURL"`
	} `yaml:"openai"`

	Relay struct {
		ExposeSource     *bool `yaml:"exposeSource"`
		MaxBodyBytes     int64 `yaml:"maxBodyBytes"`
		MaxResponseBytes int64 `yaml:"maxResponseBytes"` // upstream body limit

	} `yaml:"relay"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // text | json
	} `yaml:"log"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"cors"`

	Auth struct {
		APIKeys map[string]string `yaml:"apiKeys"` // client name -> key
	} `yaml:"auth"`

	RateLimit struct {
		Capacity     int `yaml:"capacity"`
		RefillPerSec int `yaml:"refillPerSec"`
	} `yaml:"rateLimit"`

	Archive struct {
		Driver   string `yaml:"driver"` // "" | sqlite | mysql | postgres
		Path     string `yaml:"path"`   // sqlite file
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"archive"`

	Minio struct {
		Enabled    bool   `yaml:"enabled"`
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`
}

// Load reads path, applies defaults and environment overrides. A missing file
// is not an error; the defaults are used instead.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	cfg.ApplyEnv(os.Getenv)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config with every default applied and no file or env input.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyEnv overlays environment variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv("NEXT_PUBLIC_API_URL")); v != "" {
		c.Upstream.BaseURL = v
	}
	if v := strings.TrimSpace(getenv("ETHICA_API_URL")); v != "" {
		c.Upstream.BaseURL = v
	}
	if v := strings.TrimSpace(getenv("PORT")); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			c.Server.Port = p
		}
	}
	if v := strings.TrimSpace(getenv("OPENAI_API_KEY")); v != "" {
		c.OpenAI.APIKey = v
	}
	if v := strings.TrimSpace(getenv("OPENAI_MODEL")); v != "" {
		c.OpenAI.Model = v
	}
	if v := strings.TrimSpace(getenv("OPENAI_BASE_URL")); v != "" {
		c.OpenAI.BaseURL = v
	}
	if v := strings.TrimSpace(getenv("LOG_LEVEL")); v != "" {
		c.Log.Level = v
	}
}

func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 60 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 5 * time.Second
	}
	if c.Upstream.Kind == "" {
		c.Upstream.Kind = UpstreamKindHTTP
	}
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = DefaultUpstreamURL
	}
	c.Upstream.BaseURL = strings.TrimRight(c.Upstream.BaseURL, "/")
	if c.Relay.ExposeSource == nil {
		expose := true
		c.Relay.ExposeSource = &expose
	}
	if c.Relay.MaxBodyBytes <= 0 {
		c.Relay.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.Relay.MaxResponseBytes <= 0 {
		c.Relay.MaxResponseBytes = DefaultMaxRespBytes
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"*"}
	}
	if c.Archive.Driver == "sqlite" && c.Archive.Path == "" {
		c.Archive.Path = "ethica.db"
	}
	if c.Archive.SSLMode == "" {
		c.Archive.SSLMode = "disable"
	}
}

// Validate rejects settings the relay cannot run with.
func (c *Config) Validate() error {
	switch c.Upstream.Kind {
	case UpstreamKindHTTP:
	case UpstreamKindOpenAI:
		if strings.TrimSpace(c.OpenAI.APIKey) == "" {
			return fmt.Errorf("upstream kind %q requires openai.apiKey or OPENAI_API_KEY", c.Upstream.Kind)
		}
	default:
		return fmt.Errorf("unknown upstream kind %q (allowed: http, openai)", c.Upstream.Kind)
	}
	switch c.Archive.Driver {
	case "", "sqlite", "mysql", "postgres":
	default:
		return fmt.Errorf("unknown archive driver %q (allowed: sqlite, mysql, postgres)", c.Archive.Driver)
	}
	if c.RateLimit.Capacity < 0 || c.RateLimit.RefillPerSec < 0 {
		return fmt.Errorf("rate limit values must not be negative")
	}
	return nil
}

// ExposesSource reports whether the relay adds source headers to responses.
func (c *Config) ExposesSource() bool {
	return c.Relay.ExposeSource == nil || *c.Relay.ExposeSource
}

// MySQLDSN builds the go-sql-driver DSN for the archive
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Archive.User,
		c.Archive.Password,
		c.Archive.Host,
		c.Archive.Port,
		c.Archive.Name,
	)
}

// PostgresDSN builds the lib/pq connection string for the archive
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Archive.Host,
		c.Archive.Port,
		c.Archive.User,
		c.Archive.Password,
		c.Archive.Name,
		c.Archive.SSLMode,
	)
}
