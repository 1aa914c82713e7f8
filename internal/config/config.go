package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type LLMProvider string

const (
	ProviderOpenAI    LLMProvider = "openai"
	ProviderAnthropic LLMProvider = "anthropic"
	ProviderYandex    LLMProvider = "yandex"
)

const Version = "2.0.0"

type Config struct {
	// LLM settings
	AIProvider       LLMProvider `env:"AI_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey     string      `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string      `env:"OPENAI_BASE_URL"`
	OpenAIModel      string      `env:"OPENAI_MODEL" envDefault:"gpt-4-turbo-preview"`
	AnthropicAPIKey  string      `env:"ANTHROPIC_API_KEY"`
	AnthropicModel   string      `env:"ANTHROPIC_MODEL" envDefault:"claude-3-opus-20240229"`
	YandexOAuthToken string      `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID   string      `env:"YANDEX_FOLDER_ID"`

	MaxTokens          int           `env:"MAX_TOKENS" envDefault:"4000"`
	ContextTokenBudget int           `env:"CONTEXT_TOKEN_BUDGET" envDefault:"2000"`
	Temperature        float64       `env:"TEMPERATURE" envDefault:"0.7"`
	RequestTimeout     time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`

	// Persona
	Personality   string `env:"JARVIS_PERSONALITY" envDefault:"professional"`
	ResponseStyle string `env:"RESPONSE_STYLE" envDefault:"concise"`
	PersonasFile  string `env:"PERSONAS_FILE"`
	UserName      string `env:"USER_NAME" envDefault:"User"`

	// Capabilities
	PerplexityAPIKey  string `env:"PERPLEXITY_API_KEY"`
	GoogleAPIKey      string `env:"GOOGLE_API_KEY"`
	GoogleCSEID       string `env:"GOOGLE_CSE_ID"`
	OpenWeatherAPIKey string `env:"OPENWEATHER_API_KEY"`
	NewsAPIKey        string `env:"NEWS_API_KEY"`
	DefaultLocation   string `env:"DEFAULT_LOCATION" envDefault:"London"`
	ImageModel        string `env:"IMAGE_MODEL" envDefault:"dall-e-3"`
	ImageSize         string `env:"IMAGE_SIZE" envDefault:"1024x1024"`
	ImageQuality      string `env:"IMAGE_QUALITY" envDefault:"standard"`

	EnableWebSearch      bool `env:"ENABLE_WEB_SEARCH" envDefault:"true"`
	EnableImageGen       bool `env:"ENABLE_IMAGE_GEN" envDefault:"true"`
	EnableScheduler      bool `env:"ENABLE_SCHEDULER" envDefault:"true"`
	MemoryCleanupEnabled bool `env:"MEMORY_CLEANUP_ENABLED" envDefault:"true"`

	// Storage
	DataDir             string `env:"DATA_DIR" envDefault:"data"`
	ConversationsDir    string `env:"CONVERSATIONS_DIR"`
	SchedulesDir        string `env:"SCHEDULES_DIR"`
	FilesDir            string `env:"FILES_DIR"`
	MemoryBackend       string `env:"MEMORY_BACKEND" envDefault:"sqlite"`
	MemoryDBPath        string `env:"MEMORY_DB_PATH"`
	MemoryCollection    string `env:"CHROMA_COLLECTION_NAME" envDefault:"jarvis_memory"`
	InteractionsLogPath string `env:"INTERACTIONS_LOG_PATH"`

	// Scheduler & retention
	SchedulerCheckInterval    int    `env:"SCHEDULER_CHECK_INTERVAL" envDefault:"60"`
	MemoryCleanupInterval     int    `env:"MEMORY_CLEANUP_INTERVAL" envDefault:"86400"`
	ConversationRetentionDays int    `env:"CONVERSATION_RETENTION_DAYS" envDefault:"30"`
	Timezone                  string `env:"TIMEZONE" envDefault:"UTC"`

	// Web dashboard
	WebHost   string `env:"WEB_HOST" envDefault:"0.0.0.0"`
	WebPort   int    `env:"WEB_PORT" envDefault:"5000"`
	DebugMode bool   `env:"DEBUG_MODE" envDefault:"false"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`

	// Telegram
	TelegramBotToken  string  `env:"TELEGRAM_BOT_TOKEN"`
	AllowedUsers      []int64 `env:"ALLOWED_USERS" envSeparator:":"`
	AllowlistFilePath string  `env:"ALLOWLIST_FILE_PATH"`
	AdminUserID       int64   `env:"ADMIN_USER"`
	PendingFilePath   string  `env:"PENDING_FILE_PATH"`
}

// LoadDotenv loads variables from a dotenv file (".env" when path is empty).
// Callers usually treat the error as a warning.
func LoadDotenv(path string) error {
	if path == "" {
		path = ".env"
	}
	return godotenv.Load(path)
}

// New parses the environment into a Config.
func New() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.fillPaths()
	return cfg, nil
}

func (c *Config) fillPaths() {
	def := func(v *string, parts ...string) {
		if *v == "" {
			*v = filepath.Join(append([]string{c.DataDir}, parts...)...)
		}
	}
	def(&c.ConversationsDir, "conversations")
	def(&c.SchedulesDir, "schedules")
	def(&c.FilesDir, "files")
	def(&c.MemoryDBPath, "memory", "memory.db")
	def(&c.InteractionsLogPath, "logs", "interactions.jsonl")
	def(&c.AllowlistFilePath, "allowlist.json")
	def(&c.PendingFilePath, "pending.json")
}

// Validate checks that the selected provider is known and has its credentials.
func (c *Config) Validate() error {
	var errs []error
	switch c.AIProvider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required when using OpenAI"))
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required when using Anthropic"))
		}
	case ProviderYandex:
		if c.YandexOAuthToken == "" || c.YandexFolderID == "" {
			errs = append(errs, errors.New("YANDEX_OAUTH_TOKEN and YANDEX_FOLDER_ID are required when using Yandex"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported AI_PROVIDER: %s", c.AIProvider))
	}
	if c.ContextTokenBudget <= 0 {
		errs = append(errs, errors.New("CONTEXT_TOKEN_BUDGET must be positive"))
	}
	return errors.Join(errs...)
}

// Model returns the model name configured for the selected provider.
func (c *Config) Model() string {
	switch c.AIProvider {
	case ProviderAnthropic:
		return c.AnthropicModel
	case ProviderOpenAI:
		return c.OpenAIModel
	}
	return ""
}

// Location resolves TIMEZONE, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) SchedulesFile() string {
	return filepath.Join(c.SchedulesDir, "schedules.json")
}

// EnsureDirs creates every data directory the application writes to.
func (c *Config) EnsureDirs() error {
	dirs := []string{
		c.DataDir,
		c.ConversationsDir,
		c.SchedulesDir,
		c.FilesDir,
		filepath.Dir(c.MemoryDBPath),
		filepath.Dir(c.InteractionsLogPath),
	}
	if c.LogFile != "" {
		dirs = append(dirs, filepath.Dir(c.LogFile))
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("ensure dir %s: %w", d, err)
		}
	}
	return nil
}
