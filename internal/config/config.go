package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Config holds the full runtime configuration for the recap service.
// It is constructed once by Load and never mutated afterwards; components
// receive the sections they need at construction time.
type Config struct {
	Databases     map[string]DatabaseConfig `json:"databases"`
	Redis         RedisConfig               `json:"redis"`
	Storage       StorageConfig             `json:"storage"`
	Queue         QueueConfig               `json:"queue"`
	Transcription TranscriptionConfig       `json:"transcription"`
	Extraction    ExtractionConfig          `json:"extraction"`
	Email         EmailConfig               `json:"email"`
	OAuth         OAuthConfig               `json:"oauth"`
	Logging       LoggingConfig             `json:"logging"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type StorageConfig struct {
	Driver          string `json:"driver"` // local | s3
	LocalPath       string `json:"local_path"`
	Bucket          string `json:"bucket"`
	Endpoint        string `json:"endpoint"`
	Region          string `json:"region"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
}

type QueueConfig struct {
	Name           string `json:"name"`
	Workers        int    `json:"workers"`
	Attempts       int    `json:"attempts"`
	BackoffSeconds int    `json:"backoff_seconds"`
	// ClaimStaleSeconds is how old a processing row's last update must be
	// before a retry may reclaim it. It must stay below BackoffSeconds so
	// the first retry can take over a crashed attempt.
	ClaimStaleSeconds int `json:"claim_stale_seconds"`
	// VisibilityTimeoutSeconds is how long a dequeued job may go
	// unacknowledged before the queue hands it to another worker. It must
	// exceed the longest pipeline run.
	VisibilityTimeoutSeconds int `json:"visibility_timeout_seconds"`
}

// ProviderConfig carries the credentials and model for one external model
// provider (transcription or extraction).
type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

type RetryConfig struct {
	Attempts    int `json:"attempts"`
	BaseDelayMS int `json:"base_delay_ms"`
	MaxDelayMS  int `json:"max_delay_ms"`
}

type TranscriptionConfig struct {
	// Providers is the fallback priority order. Entries without an API key
	// configured are skipped at startup.
	Providers      []string       `json:"providers"`
	OpenAI         ProviderConfig `json:"openai"`
	Gemini         ProviderConfig `json:"gemini"`
	Deepgram       ProviderConfig `json:"deepgram"`
	MaxBytes       int64          `json:"max_bytes"`
	SegmentSeconds int            `json:"segment_seconds"`
	TimeoutSeconds int            `json:"timeout_seconds"`
	Retry          RetryConfig    `json:"retry"`
}

type ExtractionConfig struct {
	Provider           string      `json:"provider"` // openai | gemini | claude
	BaseURL            string      `json:"base_url"`
	Model              string      `json:"model"`
	APIKey             string      `json:"api_key"`
	MaxTranscriptChars int         `json:"max_transcript_chars"`
	Retry              RetryConfig `json:"retry"`
}

type EmailConfig struct {
	Provider      string `json:"provider"` // smtp | postmark
	From          string `json:"from"`
	SMTPHost      string `json:"smtp_host"`
	SMTPPort      int    `json:"smtp_port"`
	SMTPUser      string `json:"smtp_user"`
	SMTPPass      string `json:"smtp_pass"`
	PostmarkToken string `json:"postmark_token"`
}

type OAuthClientConfig struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type OAuthConfig struct {
	Zoom   OAuthClientConfig `json:"zoom"`
	Google OAuthClientConfig `json:"google"`
}

type LoggingConfig struct {
	Level string `json:"level"`
}

// Load reads configuration from the provided path (defaults to config.json),
// overlays secrets from the environment and applies defaults. A .env file in
// the working directory is honored when present.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	_ = godotenv.Load()
	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv fills secret fields from the environment so the config file can
// stay free of credentials.
func (c *Config) applyEnv() {
	setIfEmpty := func(dst *string, key string) {
		if *dst == "" {
			*dst = os.Getenv(key)
		}
	}
	setIfEmpty(&c.Transcription.OpenAI.APIKey, "OPENAI_API_KEY")
	setIfEmpty(&c.Transcription.Gemini.APIKey, "GEMINI_API_KEY")
	setIfEmpty(&c.Transcription.Deepgram.APIKey, "DEEPGRAM_API_KEY")
	switch c.Extraction.Provider {
	case "gemini":
		setIfEmpty(&c.Extraction.APIKey, "GEMINI_API_KEY")
	case "claude":
		setIfEmpty(&c.Extraction.APIKey, "ANTHROPIC_API_KEY")
	default:
		setIfEmpty(&c.Extraction.APIKey, "OPENAI_API_KEY")
	}
	setIfEmpty(&c.Email.SMTPPass, "SMTP_PASS")
	setIfEmpty(&c.Email.PostmarkToken, "POSTMARK_API_KEY")
	setIfEmpty(&c.Storage.AccessKeyID, "S3_ACCESS_KEY_ID")
	setIfEmpty(&c.Storage.SecretAccessKey, "S3_SECRET_ACCESS_KEY")
	setIfEmpty(&c.OAuth.Zoom.ClientID, "ZOOM_CLIENT_ID")
	setIfEmpty(&c.OAuth.Zoom.ClientSecret, "ZOOM_CLIENT_SECRET")
	setIfEmpty(&c.OAuth.Google.ClientID, "GOOGLE_CLIENT_ID")
	setIfEmpty(&c.OAuth.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")
}

func (c *Config) applyDefaults() {
	if c.Storage.Driver == "" {
		c.Storage.Driver = "local"
	}
	if c.Storage.LocalPath == "" {
		c.Storage.LocalPath = "storage"
	}
	if c.Storage.Region == "" {
		c.Storage.Region = "us-east-1"
	}
	if c.Queue.Name == "" {
		c.Queue.Name = "recording-processing"
	}
	if c.Queue.Workers <= 0 {
		c.Queue.Workers = 4
	}
	if c.Queue.Attempts <= 0 {
		c.Queue.Attempts = 5
	}
	if c.Queue.BackoffSeconds <= 0 {
		c.Queue.BackoffSeconds = 30
	}
	if c.Queue.ClaimStaleSeconds <= 0 {
		c.Queue.ClaimStaleSeconds = 20
	}
	if c.Queue.VisibilityTimeoutSeconds <= 0 {
		c.Queue.VisibilityTimeoutSeconds = 900
	}
	if len(c.Transcription.Providers) == 0 {
		c.Transcription.Providers = []string{"openai", "gemini", "deepgram"}
	}
	if c.Transcription.OpenAI.Model == "" {
		c.Transcription.OpenAI.Model = "whisper-1"
	}
	if c.Transcription.Gemini.Model == "" {
		c.Transcription.Gemini.Model = "gemini-2.5-flash"
	}
	if c.Transcription.Deepgram.Model == "" {
		c.Transcription.Deepgram.Model = "nova-2"
	}
	if c.Transcription.MaxBytes <= 0 {
		c.Transcription.MaxBytes = 24 << 20
	}
	if c.Transcription.SegmentSeconds <= 0 {
		c.Transcription.SegmentSeconds = 300
	}
	if c.Transcription.TimeoutSeconds <= 0 {
		c.Transcription.TimeoutSeconds = 600
	}
	c.Transcription.Retry.applyDefaults(3000, 30000)
	if c.Extraction.Provider == "" {
		c.Extraction.Provider = "openai"
	}
	if c.Extraction.Model == "" {
		c.Extraction.Model = "gpt-4o-mini"
	}
	if c.Extraction.MaxTranscriptChars <= 0 {
		c.Extraction.MaxTranscriptChars = 60000
	}
	c.Extraction.Retry.applyDefaults(2000, 20000)
	if c.Email.Provider == "" {
		c.Email.Provider = "smtp"
	}
	if c.Email.SMTPPort <= 0 {
		c.Email.SMTPPort = 587
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (r *RetryConfig) applyDefaults(baseMS, maxMS int) {
	if r.Attempts <= 0 {
		r.Attempts = 4
	}
	if r.BaseDelayMS <= 0 {
		r.BaseDelayMS = baseMS
	}
	if r.MaxDelayMS <= 0 {
		r.MaxDelayMS = maxMS
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if len(c.Databases) == 0 {
		return fmt.Errorf("at least one database must be configured")
	}
	switch c.Storage.Driver {
	case "local":
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("unsupported storage driver: %s", c.Storage.Driver)
	}
	switch c.Email.Provider {
	case "smtp", "postmark":
	default:
		return fmt.Errorf("unsupported email provider: %s", c.Email.Provider)
	}
	if c.Email.From == "" {
		return fmt.Errorf("email.from is required")
	}
	switch c.Extraction.Provider {
	case "openai", "gemini", "claude":
	default:
		return fmt.Errorf("unsupported extraction provider: %s", c.Extraction.Provider)
	}
	for _, name := range c.Transcription.Providers {
		switch name {
		case "openai", "gemini", "deepgram":
		default:
			return fmt.Errorf("unknown transcription provider: %s", name)
		}
	}
	return nil
}
