package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	Security SecurityConfig `mapstructure:"security"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Email    EmailConfig    `mapstructure:"email"`
}

// ServerConfig holds HTTP compose server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// AllowedOrigins is the CORS allow list for the compose UI
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// MaxUploadBytes caps a single image upload request
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
}

// Addr returns the listen address
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds PostgreSQL configuration for the send history
type DatabaseConfig struct {
	// Enabled turns on persistence of merge runs and per-recipient outcomes
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Name           string `mapstructure:"name"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	SSLMode        string `mapstructure:"ssl_mode"`
	MaxConnections int    `mapstructure:"max_connections"`
}

// DSN returns the PostgreSQL connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration for the progress store
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// Addr returns the Redis address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SecurityConfig holds compose server access configuration
type SecurityConfig struct {
	// TokenSecret signs bearer tokens for the compose API. Empty disables auth.
	TokenSecret string        `mapstructure:"token_secret"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
	Issuer      string        `mapstructure:"issuer"`
}

// StorageConfig holds the locations of the draft, settings, images and recipients
type StorageConfig struct {
	BodyFile       string `mapstructure:"body_file"`
	SettingsFile   string `mapstructure:"settings_file"`
	ImagesDir      string `mapstructure:"images_dir"`
	BackupDir      string `mapstructure:"backup_dir"`
	RecipientsFile string `mapstructure:"recipients_file"`
	NameColumn     string `mapstructure:"name_column"`
	EmailColumn    string `mapstructure:"email_column"`
	DefaultSubject string `mapstructure:"default_subject"`
}

// EmailConfig holds email sending configuration
type EmailConfig struct {
	// Provider is the transport to use: "gmail", "resend", "mailgun" or "smtp"
	Provider      string `mapstructure:"provider"`
	SenderAddress string `mapstructure:"sender_address"`
	SenderName    string `mapstructure:"sender_name"`
	// AttachUsedOnly attaches only the images a recipient's message references
	AttachUsedOnly bool `mapstructure:"attach_used_only"`
	// SendTimeout bounds a single transport call
	SendTimeout time.Duration     `mapstructure:"send_timeout"`
	Gmail       GmailEmailConfig  `mapstructure:"gmail"`
	Resend      ResendEmailConfig `mapstructure:"resend"`
	Mailgun     MailgunConfig     `mapstructure:"mailgun"`
	SMTP        SMTPConfig        `mapstructure:"smtp"`
}

// GmailEmailConfig holds Gmail API configuration
type GmailEmailConfig struct {
	// CredentialsJSON is the service account credentials JSON content
	CredentialsJSON string `mapstructure:"credentials_json"`
	// ClientID for OAuth2 token-based auth (alternative to service account)
	ClientID string `mapstructure:"client_id"`
	// ClientSecret for OAuth2 token-based auth
	ClientSecret string `mapstructure:"client_secret"`
	// RefreshToken for OAuth2 token-based auth
	RefreshToken string `mapstructure:"refresh_token"`
	// TokenFile caches the token obtained by `digest auth`
	TokenFile string `mapstructure:"token_file"`
	// ForgetToken removes TokenFile after every send run
	ForgetToken bool `mapstructure:"forget_token"`
}

// ResendEmailConfig holds Resend API configuration
type ResendEmailConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// MailgunConfig holds Mailgun API configuration
type MailgunConfig struct {
	Domain string `mapstructure:"domain"`
	APIKey string `mapstructure:"api_key"`
	// APIBase overrides the API endpoint, e.g. the EU region
	APIBase string `mapstructure:"api_base"`
}

// SMTPConfig holds SMTP relay configuration
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	TLS      bool   `mapstructure:"tls"`
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from the given file, or from the default
// search paths when path is empty.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/digestmail")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("DIGESTMAIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8501)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:8501"})
	v.SetDefault("server.max_upload_bytes", 32<<20)

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "digestmail")
	v.SetDefault("database.user", "digestmail")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 4)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "24h")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Security defaults
	v.SetDefault("security.token_secret", "")
	v.SetDefault("security.token_ttl", "12h")
	v.SetDefault("security.issuer", "digestmail")

	// Storage defaults
	v.SetDefault("storage.body_file", "weekly_digest.txt")
	v.SetDefault("storage.settings_file", "image_mappings.json")
	v.SetDefault("storage.images_dir", "images")
	v.SetDefault("storage.backup_dir", ".")
	v.SetDefault("storage.recipients_file", "list.csv")
	v.SetDefault("storage.name_column", "Names")
	v.SetDefault("storage.email_column", "Emails")
	v.SetDefault("storage.default_subject", "Hypebeast Weekly Digest")

	// Email defaults
	v.SetDefault("email.provider", "gmail")
	v.SetDefault("email.sender_address", "")
	v.SetDefault("email.sender_name", "")
	v.SetDefault("email.attach_used_only", false)
	v.SetDefault("email.send_timeout", "30s")
	v.SetDefault("email.gmail.token_file", "token.json")
	v.SetDefault("email.gmail.forget_token", true)
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.tls", true)
}
