package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	Auth      AuthConfig      `json:"auth"`
	Crypto    CryptoConfig    `json:"crypto"`
	Tester    TesterConfig    `json:"tester"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Mail      MailConfig      `json:"mail"`
}

type ServerConfig struct {
	Port        string `json:"port"`
	Environment string `json:"environment"`
}

type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Name     string `json:"name"`
	SSLMode  string `json:"ssl_mode"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type AuthConfig struct {
	JWTSecret   string `json:"jwt_secret"`
	ExpiryHours int    `json:"expiry_hours"`
}

type CryptoConfig struct {
	Secret string `json:"secret"`
}

type TesterConfig struct {
	TimeoutSeconds int `json:"timeout_seconds"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute"`
}

type MailConfig struct {
	SendGridKey string `json:"-"`
	FromName    string `json:"from_name"`
	FromAddress string `json:"from_address"`
}

// Load reads the JSON config file and overlays environment variables.
// The file is optional; a missing file leaves defaults + env in place.
func Load(path string) (*Config, error) {
	config := defaults()

	if file, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(file, config); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	config.applyEnv()

	if config.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is not configured")
	}
	if config.Crypto.Secret == "" {
		return nil, fmt.Errorf("crypto secret is not configured")
	}

	return config, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8080",
			Environment: "development",
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "postgres",
			Name:    "nexapi",
			SSLMode: "disable",
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		Auth: AuthConfig{
			ExpiryHours: 24,
		},
		Tester: TesterConfig{
			TimeoutSeconds: 30,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
		},
		Mail: MailConfig{
			FromName:    "NexAPI",
			FromAddress: "no-reply@nexapi.dev",
		},
	}
}

func (c *Config) applyEnv() {
	setString(&c.Server.Port, "PORT")
	setString(&c.Server.Environment, "ENVIRONMENT")
	setString(&c.Database.Host, "DB_HOST")
	setInt(&c.Database.Port, "DB_PORT")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Name, "DB_NAME")
	setString(&c.Redis.Host, "REDIS_HOST")
	setInt(&c.Redis.Port, "REDIS_PORT")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setInt(&c.Redis.DB, "REDIS_DB")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Crypto.Secret, "CRYPTO_SECRET")
	setString(&c.Mail.SendGridKey, "SENDGRID_API_KEY")
}

func setString(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func setInt(target *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

// DSN for the postgres driver. DATABASE_URL wins when set.
func (d DatabaseConfig) GetDSN() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

func (r RedisConfig) GetRedisAddr() string {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return addr
	}

	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (t TesterConfig) Timeout() time.Duration {
	if t.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}

	return time.Duration(t.TimeoutSeconds) * time.Second
}
