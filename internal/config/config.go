// Package config loads server settings from the environment. Settings come
// from WRENCHD_* variables, with an optional .env file for development.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// envPrefix namespaces every variable, e.g. WRENCHD_PORT.
const envPrefix = "WRENCHD"

// Config holds everything the serve command needs. Command-line flags
// override whatever is loaded here.
type Config struct {
	Port   int    `envconfig:"PORT" default:"8080"`
	DBPath string `envconfig:"DB_PATH" default:"wrenchd.db"`

	// JWTSecret signs access tokens. Required outside of tests.
	JWTSecret string `envconfig:"JWT_SECRET"`

	// CORSOrigins lists allowed browser origins. Empty allows any origin.
	CORSOrigins []string `envconfig:"CORS_ORIGINS"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile  string `envconfig:"LOG_FILE"`

	ShopName string `envconfig:"SHOP_NAME" default:"Taller Mecánico"`

	Mail   MailConfig   `envconfig:"MAIL"`
	Attach AttachConfig `envconfig:"ATTACH"`
}

// MailConfig selects and configures the outgoing mailer.
type MailConfig struct {
	// Mode is log, memory or smtp. Log mode only writes email to the log.
	Mode string `envconfig:"MODE" default:"log"`
	From string `envconfig:"FROM" default:"taller@localhost"`

	SMTPHost string `envconfig:"SMTP_HOST"`
	SMTPPort int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUser string `envconfig:"SMTP_USER"`
	SMTPPass string `envconfig:"SMTP_PASS"`
}

// AttachConfig selects where attachment blobs live.
type AttachConfig struct {
	// Backend is local or s3.
	Backend string `envconfig:"BACKEND" default:"local"`

	// LocalPath is the base directory for the local backend.
	LocalPath string `envconfig:"LOCAL_PATH" default:"attachments"`

	S3Bucket       string `envconfig:"S3_BUCKET"`
	S3Region       string `envconfig:"S3_REGION"`
	S3Endpoint     string `envconfig:"S3_ENDPOINT"`
	S3AccessKey    string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey    string `envconfig:"S3_SECRET_KEY"`
	S3UsePathStyle bool   `envconfig:"S3_USE_PATH_STYLE"`
	S3Prefix       string `envconfig:"S3_PREFIX"`
}

// Load reads .env if present, then the environment. A missing .env file is
// not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints that envconfig cannot express.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	switch c.Attach.Backend {
	case "local":
	case "s3":
		if c.Attach.S3Bucket == "" {
			return fmt.Errorf("s3 attachment backend requires WRENCHD_ATTACH_S3_BUCKET")
		}
	default:
		return fmt.Errorf("unknown attachment backend %q", c.Attach.Backend)
	}
	switch c.Mail.Mode {
	case "", "log", "memory":
	case "smtp":
		if c.Mail.SMTPHost == "" {
			return fmt.Errorf("smtp mail mode requires WRENCHD_MAIL_SMTP_HOST")
		}
	default:
		return fmt.Errorf("unknown mail mode %q", c.Mail.Mode)
	}
	return nil
}
