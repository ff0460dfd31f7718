// Package config provides formbot configuration loaded from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// LLM providers.
const (
	ProviderMistral = "mistral"
	ProviderGemini  = "gemini"
	ProviderNone    = "none"
)

// Config holds all application configuration.
type Config struct {
	Discord    DiscordConfig
	LLM        LLMConfig
	Storage    StorageConfig
	Forms      FormsConfig
	Port       string
	LogLevel   string
	LogFormat  string
	MaxInput   int
	Encryption EncryptionConfig
}

// DiscordConfig configures the Discord transport.
type DiscordConfig struct {
	Token         string
	CommandPrefix string
}

// LLMConfig selects the text-generation service.
type LLMConfig struct {
	Provider      string
	MistralAPIKey string
	MistralURL    string
	GeminiAPIKey  string
	Model         string
	ChatModel     string
	Timeout       time.Duration
}

// StorageConfig selects the StateStore backend.
type StorageConfig struct {
	Backend       string
	DataDir       string
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisLock     bool
}

// FormsConfig locates form definitions.
type FormsConfig struct {
	Path                string
	DefaultForm         string
	RequireRegistration bool
}

// EncryptionConfig configures answer encryption and redaction at rest.
type EncryptionConfig struct {
	Key          string
	FallbackKeys []string
	RedactFields []string
}

// LoadDotEnv loads .env files into the process environment.
// A missing file is not an error.
func LoadDotEnv(files ...string) error {
	err := godotenv.Load(files...)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Discord: DiscordConfig{
			Token:         getEnv("DISCORD_TOKEN", ""),
			CommandPrefix: getEnv("FORMBOT_COMMAND_PREFIX", "!"),
		},
		LLM: LLMConfig{
			MistralAPIKey: getEnv("MISTRAL_API_KEY", ""),
			MistralURL:    getEnv("MISTRAL_BASE_URL", ""),
			GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
			Model:         getEnv("FORMBOT_MODEL", "mistral-small"),
			ChatModel:     getEnv("FORMBOT_CHAT_MODEL", "mistral-large-latest"),
			Timeout:       getEnvDuration("FORMBOT_GENERATION_TIMEOUT", 10*time.Second),
		},
		Storage: StorageConfig{
			Backend:       strings.ToLower(getEnv("FORMBOT_STORE", StoreMemory)),
			DataDir:       getEnv("FORMBOT_DATA_DIR", "./data/records"),
			SQLitePath:    getEnv("FORMBOT_SQLITE_PATH", "./data/formbot.db"),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
			RedisLock:     getEnvBool("FORMBOT_REDIS_LOCK", false),
		},
		Forms: FormsConfig{
			Path:                getEnv("FORMBOT_FORMS", ""),
			DefaultForm:         getEnv("FORMBOT_DEFAULT_FORM", "onboarding"),
			RequireRegistration: getEnvBool("FORMBOT_REQUIRE_REGISTRATION", false),
		},
		Port:      getEnv("PORT", "8080"),
		LogLevel:  getEnv("FORMBOT_LOG_LEVEL", "info"),
		LogFormat: getEnv("FORMBOT_LOG_FORMAT", "text"),
		MaxInput:  getEnvInt("FORMBOT_MAX_INPUT_SIZE", 0),
		Encryption: EncryptionConfig{
			Key:          getEnv("FORMBOT_ENCRYPTION_KEY", ""),
			FallbackKeys: getEnvList("FORMBOT_ENCRYPTION_FALLBACK_KEYS"),
			RedactFields: getEnvList("FORMBOT_REDACT_FIELDS"),
		},
	}

	cfg.LLM.Provider = strings.ToLower(getEnv("FORMBOT_LLM_PROVIDER", defaultProvider(cfg.LLM)))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// defaultProvider picks whichever provider has a key, preferring Mistral.
func defaultProvider(c LLMConfig) string {
	switch {
	case c.MistralAPIKey != "":
		return ProviderMistral
	case c.GeminiAPIKey != "":
		return ProviderGemini
	default:
		return ProviderNone
	}
}

// Validate checks that the configuration is consistent.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderMistral:
		if c.LLM.MistralAPIKey == "" {
			return fmt.Errorf("MISTRAL_API_KEY is required for provider %q", c.LLM.Provider)
		}
	case ProviderGemini:
		if c.LLM.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for provider %q", c.LLM.Provider)
		}
	case ProviderNone:
	default:
		return fmt.Errorf("unknown FORMBOT_LLM_PROVIDER %q", c.LLM.Provider)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("FORMBOT_GENERATION_TIMEOUT must be > 0")
	}

	switch c.Storage.Backend {
	case StoreMemory:
	case StoreFile:
		if c.Storage.DataDir == "" {
			return fmt.Errorf("FORMBOT_DATA_DIR cannot be empty for the file store")
		}
	case StoreSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("FORMBOT_SQLITE_PATH cannot be empty for the sqlite store")
		}
	case StoreRedis:
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR cannot be empty for the redis store")
		}
	default:
		return fmt.Errorf("unknown FORMBOT_STORE %q", c.Storage.Backend)
	}
	if c.Storage.RedisLock && c.Storage.Backend != StoreRedis {
		return fmt.Errorf("FORMBOT_REDIS_LOCK requires FORMBOT_STORE=redis")
	}

	if c.Forms.DefaultForm == "" {
		return fmt.Errorf("FORMBOT_DEFAULT_FORM cannot be empty")
	}
	if c.Discord.CommandPrefix == "" {
		return fmt.Errorf("FORMBOT_COMMAND_PREFIX cannot be empty")
	}
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.MaxInput < 0 {
		return fmt.Errorf("FORMBOT_MAX_INPUT_SIZE must be >= 0")
	}
	if c.Encryption.Key == "" && len(c.Encryption.FallbackKeys) > 0 {
		return fmt.Errorf("FORMBOT_ENCRYPTION_FALLBACK_KEYS requires FORMBOT_ENCRYPTION_KEY")
	}
	return nil
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return ":" + c.Port
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
