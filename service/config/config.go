package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port           int
	APIKey         string
	VerboseLogging bool
	RateLimit      int

	BankAPIURL     string
	BankAPIToken   string
	RequestTimeout time.Duration
	ConfirmTTL     time.Duration

	TelegramBotToken string
	TelegramChatID   int64

	WebPushEndpoint string
	WebPushP256dh   string
	WebPushAuth     string
	VAPIDPrivateKey string

	RelayMaxRetries int
	RelayBaseDelay  time.Duration
}

func Load() (*Config, error) {
	cfg := load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadClient loads the configuration for one-shot CLI calls against the bank,
// which need no console API key.
func LoadClient() (*Config, error) {
	cfg := load()
	if err := cfg.validateBank(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load() *Config {
	return &Config{
		Port:           getEnvInt("PORT", 8080),
		APIKey:         os.Getenv("API_KEY"),
		VerboseLogging: getEnvBool("VERBOSE_LOGGING", false),
		RateLimit:      getEnvInt("RATE_LIMIT", 100),

		BankAPIURL:     strings.TrimRight(getEnvString("BANK_API_URL", ""), "/"),
		BankAPIToken:   os.Getenv("BANK_API_TOKEN"),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),
		ConfirmTTL:     getEnvDuration("CONFIRM_TTL", 5*time.Minute),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   getEnvInt64("TELEGRAM_CHAT_ID", 0),

		WebPushEndpoint: os.Getenv("WEBPUSH_ENDPOINT"),
		WebPushP256dh:   os.Getenv("WEBPUSH_P256DH"),
		WebPushAuth:     os.Getenv("WEBPUSH_AUTH"),
		VAPIDPrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),

		RelayMaxRetries: getEnvInt("RELAY_MAX_RETRIES", 5),
		RelayBaseDelay:  getEnvDuration("RELAY_BASE_DELAY", 500*time.Millisecond),
	}
}

func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("API_KEY environment variable is required")
	}
	if err := c.validateBank(); err != nil {
		return err
	}
	if c.ConfirmTTL <= 0 {
		return fmt.Errorf("CONFIRM_TTL must be positive")
	}
	if c.IsTelegramEnabled() && c.TelegramChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}
	return nil
}

func (c *Config) validateBank() error {
	if c.BankAPIURL == "" {
		return fmt.Errorf("BANK_API_URL environment variable is required")
	}
	u, err := url.Parse(c.BankAPIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("BANK_API_URL must be an absolute URL")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) IsTelegramEnabled() bool {
	return c.TelegramBotToken != ""
}

func (c *Config) IsWebPushEnabled() bool {
	return c.WebPushEndpoint != ""
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("15s") and bare milliseconds ("1500").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
