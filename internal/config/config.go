package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/quillspace/core/internal/pkg/mail"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"

	defaultPort      = 3000
	defaultEnv       = "development"
	defaultDBHost    = "127.0.0.1"
	defaultDBPort    = 3306
	defaultDBUser    = "root"
	defaultDBName    = "quillspace"
	defaultDBCharset = "utf8mb4"
	defaultStaticDir = "./uploads"
	defaultWebURL    = "http://localhost:3000"
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int            `yaml:"port"`
	Env            string         `yaml:"env"` // "development" | "production"
	Database       DatabaseConfig `yaml:"database"`
	RedisURL       string         `yaml:"redis_url"`
	JWTSecret      string         `yaml:"jwt_secret"`
	WebURL         string         `yaml:"web_url"`
	StaticDir      string         `yaml:"static_dir"`
	AllowedOrigins []string       `yaml:"allowed_origins"`
	Mail           mail.Config    `yaml:"mail"`
}

// DatabaseConfig describes the MySQL connection. DSN wins when set.
type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Charset  string `yaml:"charset"`
}

// IsDev reports whether the app runs in development mode.
func (c *AppConfig) IsDev() bool {
	return strings.EqualFold(c.Env, "development") || c.Env == ""
}

// ResolveDSN builds the MySQL DSN from the discrete fields unless an explicit
// DSN is configured.
func (c *AppConfig) ResolveDSN() string {
	db := c.Database
	if strings.TrimSpace(db.DSN) != "" {
		return db.DSN
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		db.User, db.Password, db.Host, db.Port, db.Name, db.Charset)
}

func defaults() AppConfig {
	return AppConfig{
		Port: defaultPort,
		Env:  defaultEnv,
		Database: DatabaseConfig{
			Host:    defaultDBHost,
			Port:    defaultDBPort,
			User:    defaultDBUser,
			Name:    defaultDBName,
			Charset: defaultDBCharset,
		},
		WebURL:    defaultWebURL,
		StaticDir: defaultStaticDir,
	}
}

// Load reads and validates the YAML config file. Unknown keys are rejected so
// typos fail fast.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	cfg := defaults()
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d in %q, expected 1-65535", cfg.Port, path)
	}
	if cfg.Database.Port < 1 || cfg.Database.Port > 65535 {
		return nil, fmt.Errorf("invalid database.port %d in %q, expected 1-65535", cfg.Database.Port, path)
	}
	if env := strings.ToLower(cfg.Env); env != "development" && env != "production" {
		return nil, fmt.Errorf("invalid env %q in %q, expected development or production", cfg.Env, path)
	}
	if cfg.Mail.Enable && !cfg.Mail.UseResend && strings.TrimSpace(cfg.Mail.Host) == "" {
		return nil, fmt.Errorf("mail.host is required when mail is enabled without resend")
	}

	return &cfg, nil
}
