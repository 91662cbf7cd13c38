package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const defaultJWTSecret = "a_very_secret_key_that_should_be_changed"

// APIServerConfig 保存 API 服务器特有的配置。
type APIServerConfig struct {
	Host            string        `mapstructure:"HOST"`
	Port            string        `mapstructure:"PORT"`
	ReadTimeout     time.Duration `mapstructure:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `mapstructure:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `mapstructure:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
	CORS            CORSConfig    `mapstructure:"CORS"`
}

// CORSConfig holds configuration for CORS.
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"ALLOWED_ORIGINS"`
	AllowedMethods   []string `mapstructure:"ALLOWED_METHODS"`
	AllowedHeaders   []string `mapstructure:"ALLOWED_HEADERS"`
	ExposedHeaders   []string `mapstructure:"EXPOSED_HEADERS"`
	AllowCredentials bool     `mapstructure:"ALLOW_CREDENTIALS"`
	MaxAge           int      `mapstructure:"MAX_AGE"`
}

// RedisConfig holds configuration for Redis. An empty Addr disables it.
type RedisConfig struct {
	Addr     string `mapstructure:"ADDR"`
	Password string `mapstructure:"PASSWORD"`
	DB       int    `mapstructure:"DB"`
}

// LoginLimitConfig bounds failed login attempts per email.
type LoginLimitConfig struct {
	MaxAttempts int           `mapstructure:"MAX_ATTEMPTS"`
	Window      time.Duration `mapstructure:"WINDOW"`
}

// Config holds all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	AppName    string           `mapstructure:"APP_NAME"`
	AppEnv     string           `mapstructure:"APP_ENV"`
	LogLevel   string           `mapstructure:"LOG_LEVEL"`
	APIServer  APIServerConfig  `mapstructure:"API_SERVER"`
	Database   DatabaseConfig   `mapstructure:"DATABASE"`
	Auth       AuthConfig       `mapstructure:"AUTH"`
	Chat       ChatConfig       `mapstructure:"CHAT"`
	Kafka      KafkaConfig      `mapstructure:"KAFKA"`
	Redis      RedisConfig      `mapstructure:"REDIS"`
	LoginLimit LoginLimitConfig `mapstructure:"LOGIN_LIMIT"`
	Frontend   FrontendConfig   `mapstructure:"FRONTEND"`
	Avatar     AvatarConfig     `mapstructure:"AVATAR"`
}

// KafkaConfig holds configuration for the friend-request event producer.
type KafkaConfig struct {
	Enabled            bool     `mapstructure:"ENABLED"`
	Brokers            []string `mapstructure:"BROKERS"`
	ClientID           string   `mapstructure:"CLIENT_ID"`
	FriendRequestTopic string   `mapstructure:"FRIEND_REQUEST_TOPIC"`
	Protocol           string   `mapstructure:"PROTOCOL"`
	// PublishTimeout bounds how long a request waits for the delivery report.
	PublishTimeout time.Duration `mapstructure:"PUBLISH_TIMEOUT"`
}

// DatabaseConfig holds configuration for the database.
// URL, when set, takes precedence over the discrete fields.
type DatabaseConfig struct {
	Type        string `mapstructure:"TYPE"`
	URL         string `mapstructure:"URL"`
	Host        string `mapstructure:"HOST"`
	Port        int    `mapstructure:"PORT"`
	User        string `mapstructure:"USER"`
	Password    string `mapstructure:"PASSWORD"`
	DBName      string `mapstructure:"DB_NAME"`
	SSLMode     string `mapstructure:"SSL_MODE"`
	AutoMigrate bool   `mapstructure:"AUTO_MIGRATE"`
}

// AuthConfig holds configuration for the session token.
type AuthConfig struct {
	JWTSecretKey string        `mapstructure:"JWT_SECRET_KEY"`
	JWTExpiry    time.Duration `mapstructure:"JWT_EXPIRY"`
	CookieName   string        `mapstructure:"COOKIE_NAME"`
}

// ChatConfig holds the chat provider credentials.
type ChatConfig struct {
	APIKey    string        `mapstructure:"API_KEY"`
	APISecret string        `mapstructure:"API_SECRET"`
	Timeout   time.Duration `mapstructure:"TIMEOUT"`
}

// FrontendConfig points at the bundled frontend served in production.
type FrontendConfig struct {
	DistPath string `mapstructure:"DIST_PATH"`
}

// AvatarConfig describes the pool of default profile pictures.
type AvatarConfig struct {
	BaseURL string `mapstructure:"BASE_URL"`
	Count   int    `mapstructure:"COUNT"`
}

// IsProduction reports whether the app runs in production mode.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// Validate rejects configurations that are unsafe to run in production.
func (c Config) Validate() error {
	var errs []error
	if c.Auth.JWTExpiry <= 0 {
		errs = append(errs, errors.New("AUTH.JWT_EXPIRY must be positive"))
	}
	if c.IsProduction() {
		if c.Auth.JWTSecretKey == "" || c.Auth.JWTSecretKey == defaultJWTSecret {
			errs = append(errs, errors.New("AUTH.JWT_SECRET_KEY must be set in production"))
		}
		if c.Chat.APIKey == "" || c.Chat.APISecret == "" {
			errs = append(errs, errors.New("CHAT.API_KEY and CHAT.API_SECRET must be set in production"))
		}
	}
	return errors.Join(errs...)
}

// legacyEnv maps config keys to the flat variable names used by earlier deployments.
var legacyEnv = map[string][]string{
	"APP_ENV":                         {"NODE_ENV"},
	"API_SERVER.PORT":                 {"PORT"},
	"API_SERVER.CORS.ALLOWED_ORIGINS": {"FRONTEND_URL"},
	"DATABASE.URL":                    {"DATABASE_URL", "MONGO_URI"},
	"AUTH.JWT_SECRET_KEY":             {"JWT_SECRET_KEY"},
	"CHAT.API_KEY":                    {"STREAM_API_KEY"},
	"CHAT.API_SECRET":                 {"STREAM_API_SECRET", "STREAM_SECRET_KEY"},
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()

	v.SetDefault("APP_NAME", "lingua-go")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("API_SERVER.HOST", "0.0.0.0")
	v.SetDefault("API_SERVER.PORT", "5001")
	v.SetDefault("API_SERVER.READ_TIMEOUT", 15*time.Second)
	v.SetDefault("API_SERVER.WRITE_TIMEOUT", 15*time.Second)
	v.SetDefault("API_SERVER.IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("API_SERVER.SHUTDOWN_TIMEOUT", 10*time.Second)
	v.SetDefault("API_SERVER.CORS.ALLOWED_ORIGINS", []string{"http://localhost:5173"}) // frontend dev server
	v.SetDefault("API_SERVER.CORS.ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("API_SERVER.CORS.ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type"})
	v.SetDefault("API_SERVER.CORS.EXPOSED_HEADERS", []string{"Content-Length"})
	v.SetDefault("API_SERVER.CORS.ALLOW_CREDENTIALS", true)
	v.SetDefault("API_SERVER.CORS.MAX_AGE", 300)

	v.SetDefault("DATABASE.TYPE", "postgres")
	v.SetDefault("DATABASE.URL", "")
	v.SetDefault("DATABASE.HOST", "localhost")
	v.SetDefault("DATABASE.PORT", 5432)
	v.SetDefault("DATABASE.USER", "postgres")
	v.SetDefault("DATABASE.PASSWORD", "password")
	v.SetDefault("DATABASE.DB_NAME", "lingua")
	v.SetDefault("DATABASE.SSL_MODE", "disable")
	v.SetDefault("DATABASE.AUTO_MIGRATE", true)

	v.SetDefault("AUTH.JWT_SECRET_KEY", defaultJWTSecret)
	v.SetDefault("AUTH.JWT_EXPIRY", 7*24*time.Hour)
	v.SetDefault("AUTH.COOKIE_NAME", "jwt")

	v.SetDefault("CHAT.API_KEY", "")
	v.SetDefault("CHAT.API_SECRET", "")
	v.SetDefault("CHAT.TIMEOUT", 5*time.Second)

	v.SetDefault("KAFKA.ENABLED", false)
	v.SetDefault("KAFKA.BROKERS", []string{"localhost:9092"})
	v.SetDefault("KAFKA.CLIENT_ID", "lingua-api")
	v.SetDefault("KAFKA.FRIEND_REQUEST_TOPIC", "lingua-friend-requests")
	v.SetDefault("KAFKA.PROTOCOL", "plaintext")
	v.SetDefault("KAFKA.PUBLISH_TIMEOUT", 3*time.Second)

	v.SetDefault("REDIS.ADDR", "")
	v.SetDefault("REDIS.PASSWORD", "")
	v.SetDefault("REDIS.DB", 0)

	v.SetDefault("LOGIN_LIMIT.MAX_ATTEMPTS", 10)
	v.SetDefault("LOGIN_LIMIT.WINDOW", 15*time.Minute)

	v.SetDefault("FRONTEND.DIST_PATH", "../frontend/dist")

	v.SetDefault("AVATAR.BASE_URL", "https://avatar.iran.liara.run/public")
	v.SetDefault("AVATAR.COUNT", 100)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.AutomaticEnv()
	// SERVER_PORT style names override nested keys, e.g. API_SERVER_PORT -> API_SERVER.PORT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for key, aliases := range legacyEnv {
		names := append([]string{strings.ReplaceAll(key, ".", "_")}, aliases...)
		if err = v.BindEnv(append([]string{key}, names...)...); err != nil {
			return config, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		// defaults are enough to run
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}
