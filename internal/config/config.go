// Package config handles configuration loading from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Production is the APP_ENV value that turns the console log off.
const Production = "production"

// Config holds all application configuration.
type Config struct {
	// Port is the TCP port the server listens on.
	Port string

	// Env names the deployment environment.
	Env string

	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	TrustProxy bool

	// CORSOrigins lists the allowed origins; "*" allows any.
	CORSOrigins []string

	Log  LogConfig
	DB   DBConfig
	Auth AuthConfig
}

// LogConfig configures the log destinations.
type LogConfig struct {
	Level      zerolog.Level
	Dir        string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// DBConfig holds the Postgres connection parameters.
type DBConfig struct {
	Client     string
	Host       string
	Port       int
	User       string
	Password   string
	Name       string
	SSL        bool
	SearchPath []string
	PoolMin    int
	PoolMax    int
}

// Enabled reports whether a database is configured at all.
func (c DBConfig) Enabled() bool {
	return c.Host != ""
}

// AuthConfig configures session verification.
type AuthConfig struct {
	// JWTKey is the PEM public key session tokens are signed with.
	JWTKey string

	// AuthorizedParties restricts the azp claim when non-empty.
	AuthorizedParties []string
}

// Production reports whether the service runs in production.
func (c *Config) Production() bool {
	return c.Env == Production
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// String implements fmt.Stringer with secrets masked.
func (c *Config) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "port=%s env=%s trust_proxy=%t cors=%s", c.Port, c.Env, c.TrustProxy, strings.Join(c.CORSOrigins, ","))
	fmt.Fprintf(&sb, " log_level=%s log_dir=%s", c.Log.Level, c.Log.Dir)
	fmt.Fprintf(&sb, " db_client=%s db_host=%s db_port=%d db_user=%s db_name=%s db_password=%s",
		c.DB.Client, c.DB.Host, c.DB.Port, c.DB.User, c.DB.Name, mask(c.DB.Password))
	fmt.Fprintf(&sb, " auth_key=%s", mask(c.Auth.JWTKey))
	return sb.String()
}

func mask(s string) string {
	if s == "" {
		return "(empty)"
	}
	return "********"
}

// Load reads .env (when present) and the environment, applying defaults.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	env := v.GetString("APP_ENV")
	if env == "" {
		env = v.GetString("NODE_ENV")
	}
	if env == "" {
		env = "development"
	}

	cfg := &Config{
		Port:        v.GetString("PORT"),
		Env:         env,
		CORSOrigins: splitList(v.GetString("CORS_ORIGINS")),
		Log: LogConfig{
			Dir: v.GetString("LOG_DIR"),
		},
		DB: DBConfig{
			Client:     v.GetString("DB_CLIENT"),
			Host:       v.GetString("DB_HOST"),
			User:       v.GetString("DB_USER"),
			Password:   v.GetString("DB_PASSWORD"),
			Name:       v.GetString("DB_NAME"),
			SearchPath: splitList(v.GetString("DB_SEARCH_PATH")),
		},
		Auth: AuthConfig{
			JWTKey:            v.GetString("CLERK_JWT_KEY"),
			AuthorizedParties: splitList(v.GetString("CLERK_AUTHORIZED_PARTIES")),
		},
	}

	level, err := zerolog.ParseLevel(strings.ToLower(v.GetString("LOG_LEVEL")))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	cfg.Log.Level = level

	ints := []struct {
		key string
		dst *int
	}{
		{"LOG_MAX_SIZE_MB", &cfg.Log.MaxSizeMB},
		{"LOG_MAX_BACKUPS", &cfg.Log.MaxBackups},
		{"LOG_MAX_AGE_DAYS", &cfg.Log.MaxAgeDays},
		{"DB_PORT", &cfg.DB.Port},
		{"DB_POOL_MIN", &cfg.DB.PoolMin},
		{"DB_POOL_MAX", &cfg.DB.PoolMax},
	}
	for _, i := range ints {
		if *i.dst, err = intValue(v, i.key); err != nil {
			return nil, err
		}
	}

	if cfg.TrustProxy, err = boolValue(v, "TRUST_PROXY"); err != nil {
		return nil, err
	}
	if cfg.DB.SSL, err = boolValue(v, "DB_SSL"); err != nil {
		return nil, err
	}
	if cfg.Production() {
		cfg.DB.SSL = true
	}

	if cfg.DB.PoolMax < 1 || cfg.DB.PoolMin > cfg.DB.PoolMax {
		return nil, fmt.Errorf("invalid DB pool bounds: min=%d max=%d", cfg.DB.PoolMin, cfg.DB.PoolMax)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	defaults := map[string]string{
		"PORT":             "5000",
		"CORS_ORIGINS":     "*",
		"TRUST_PROXY":      "false",
		"LOG_LEVEL":        "info",
		"LOG_DIR":          "logs",
		"LOG_MAX_SIZE_MB":  "0",
		"LOG_MAX_BACKUPS":  "0",
		"LOG_MAX_AGE_DAYS": "0",
		"DB_CLIENT":        "pg",
		"DB_PORT":          "5432",
		"DB_SSL":           "false",
		"DB_SEARCH_PATH":   "public",
		"DB_POOL_MIN":      "2",
		"DB_POOL_MAX":      "10",
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

func intValue(v *viper.Viper, key string) (int, error) {
	raw := strings.TrimSpace(v.GetString(key))
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s value %q", key, raw)
	}
	return n, nil
}

func boolValue(v *viper.Viper, key string) (bool, error) {
	raw := strings.TrimSpace(v.GetString(key))
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q", key, raw)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
