package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// Prefix of all environment variables, e.g. CONTACTS_PAGE_SIZE. Variables with an explicit
// envconfig tag are also read without the prefix, so PORT, DBUSER, DBPWD, DBHOST, GIN_LOGGING
// and DATABASE_URL keep working.
const Prefix = "CONTACTS"

// Config holds all settings of the contacts web service.
type Config struct {
	// Addr is the listen address. A non-zero Port overrides its port.
	Addr string `envconfig:"ADDR" default:":8080"`
	Port int    `envconfig:"PORT"`

	// DBDriver is either "sqlite" or "mysql".
	DBDriver    string `envconfig:"DBDRIVER" default:"sqlite"`
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// MySQL connection parts, used if DatabaseURL is empty.
	DBUser     string `envconfig:"DBUSER"`
	DBPassword string `envconfig:"DBPWD"`
	DBHost     string `envconfig:"DBHOST" default:"localhost:3306"`
	DBName     string `envconfig:"DBNAME" default:"contacts"`

	AutoMigrate bool `envconfig:"AUTO_MIGRATE" default:"true"`
	PageSize    int  `envconfig:"PAGE_SIZE" default:"10"`

	SessionSecret string `envconfig:"SESSION_SECRET" default:"contacts-development-secret"`
	// SessionSecure marks the session cookie Secure; only set it when the service is reached via
	// HTTPS.
	SessionSecure bool `envconfig:"SESSION_SECURE" default:"false"`

	// GinLogging turns request logging off when set to "off".
	GinLogging string `envconfig:"GIN_LOGGING" default:"on"`
	Metrics    bool   `envconfig:"METRICS" default:"true"`

	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile        string `envconfig:"LOG_FILE"`
	LogDevelopment bool   `envconfig:"LOG_DEVELOPMENT" default:"false"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to load config from env")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}
	return &cfg, nil
}

// Validate checks settings that cannot be expressed with defaults.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "mysql":
	default:
		return errors.Errorf("unsupported database driver %q", c.DBDriver)
	}
	if c.PageSize < 1 || c.PageSize > 100 {
		return errors.Errorf("page size must be between 1 and 100, got %d", c.PageSize)
	}
	if c.Port < 0 || c.Port > 65535 {
		return errors.Errorf("invalid port %d", c.Port)
	}
	if c.SessionSecret == "" {
		return errors.New("session secret must not be empty")
	}
	return nil
}

// ListenAddr returns the address the HTTP server binds to.
func (c *Config) ListenAddr() string {
	if c.Port == 0 {
		return c.Addr
	}
	host := c.Addr
	if i := strings.LastIndex(host, ":"); i >= 0 {
		host = host[:i]
	}
	return host + ":" + strconv.Itoa(c.Port)
}

// DSN returns the data source name for the configured driver. For MySQL without DATABASE_URL it
// is assembled from DBUSER, DBPWD, DBHOST and DBNAME.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	if c.DBDriver == "sqlite" {
		return "contacts.db"
	}
	cfg := mysql.NewConfig()
	cfg.User = c.DBUser
	cfg.Passwd = c.DBPassword
	cfg.Net = "tcp"
	cfg.Addr = c.DBHost
	cfg.DBName = c.DBName
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

// RequestLogging reports whether every HTTP request is logged.
func (c *Config) RequestLogging() bool {
	return !strings.EqualFold(c.GinLogging, "off")
}
