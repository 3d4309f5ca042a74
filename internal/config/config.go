package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/MimeLyc/voice-translator/pkg/log"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds all application configuration
// Supports environment variables (optionally seeded from a .env file) with sensible defaults
//
// Environment Variables:
// HTTP:
// - HTTP_ADDR: listen address (default: :8080)
// - UI_DIR: static UI directory (default: ./web)
// - UI_ENABLED: serve the static UI (default: true)
// - SUBMIT_RATE_LIMIT: submissions per minute per client IP, 0 disables (default: 30)
//
// Storage:
// - DATA_DIR: base data directory (default: ./data)
// - UPLOAD_DIR / OUTPUT_DIR / DB_PATH: derived from DATA_DIR when unset
// - ARTIFACT_RETENTION: age after which uploads and artifacts are swept (default: 24h)
// - CLEANUP_CRON: sweep schedule (default: @hourly)
//
// Limits:
// - MAX_FILE_SIZE: upload size in bytes (default: 10485760)
// - MAX_TEXT_LENGTH: characters accepted for text input (default: 5000)
// - MAX_CONCURRENT_JOBS: pipelines allowed to run at once (default: 1)
//
// Recognition:
// - RECOGNIZER: openai | deepgram (default: openai)
// - OPENAI_API_KEY, OPENAI_BASE_URL, RECOGNITION_MODEL (default: whisper-1)
// - DEEPGRAM_API_KEY, DEEPGRAM_URL
// - RECOGNITION_TIMEOUT (default: 60s)
//
// Translation:
// - TRANSLATOR: libretranslate | openai (default: libretranslate)
// - LIBRETRANSLATE_URL, LIBRETRANSLATE_API_KEY, TRANSLATION_MODEL (default: gpt-4o-mini)
// - TRANSLATION_TIMEOUT (default: 30s)
//
// Synthesis:
// - TTS_MODEL_PATH, TTS_VOCODER_PATH, TTS_CONFIG_PATH: neural model assets
// - TTS_DEVICE: auto | cuda | cpu (default: auto)
// - TTS_COMMAND: neural synthesis CLI (default: tts)
// - FALLBACK_TTS_URL: cloud fallback endpoint
// - SYNTHESIS_TIMEOUT (default: 120s)
//
// Object storage mirror (optional):
// - S3_ENDPOINT, S3_ACCESS_KEY, S3_SECRET_KEY, S3_BUCKET, S3_REGION, S3_SECURE
//
// Misc:
// - LANGUAGE_TABLE_FILE: YAML language table overriding the built-in one
// - LOG_LEVEL: debug | info | warn | error (default: info)
// - LOG_FILE: optional path; logs go there instead of stdout
type Config struct {
	HTTP        HTTPConfig        `json:"http"`
	Storage     StorageConfig     `json:"storage"`
	Limits      LimitsConfig      `json:"limits"`
	Recognition RecognitionConfig `json:"recognition"`
	Translation TranslationConfig `json:"translation"`
	Synthesis   SynthesisConfig   `json:"synthesis"`
	S3          S3Config          `json:"s3"`
	Languages   LanguageTable     `json:"-"`
	LogLevel    string            `json:"log_level"`
	LogFile     string            `json:"log_file,omitempty"`
}

type HTTPConfig struct {
	Addr            string `json:"addr"`
	UIStaticDir     string `json:"ui_static_dir"`
	UIEnabled       bool   `json:"ui_enabled"`
	SubmitRateLimit int    `json:"submit_rate_limit"`
}

type StorageConfig struct {
	DataDir     string        `json:"data_dir"`
	UploadDir   string        `json:"upload_dir"`
	OutputDir   string        `json:"output_dir"`
	DBPath      string        `json:"db_path"`
	Retention   time.Duration `json:"retention"`
	CleanupCron string        `json:"cleanup_cron"`
}

type LimitsConfig struct {
	MaxFileSize       int64    `json:"max_file_size"`
	MaxTextLength     int      `json:"max_text_length"`
	MaxConcurrentJobs int      `json:"max_concurrent_jobs"`
	AllowedExtensions []string `json:"allowed_extensions"`
}

// RecognitionConfig selects and configures the speech-to-text collaborator.
type RecognitionConfig struct {
	Provider       string        `json:"provider"`
	OpenAIAPIKey   string        `json:"-"`
	OpenAIBaseURL  string        `json:"openai_base_url"`
	Model          string        `json:"model"`
	DeepgramAPIKey string        `json:"-"`
	DeepgramURL    string        `json:"deepgram_url"`
	Timeout        time.Duration `json:"timeout"`
}

// TranslationConfig selects and configures the machine-translation collaborator.
type TranslationConfig struct {
	Provider             string        `json:"provider"`
	LibreTranslateURL    string        `json:"libretranslate_url"`
	LibreTranslateAPIKey string        `json:"-"`
	OpenAIAPIKey         string        `json:"-"`
	OpenAIBaseURL        string        `json:"openai_base_url"`
	Model                string        `json:"model"`
	Timeout              time.Duration `json:"timeout"`
}

// SynthesisConfig holds the neural model assets and the fallback endpoint.
type SynthesisConfig struct {
	ModelPath   string        `json:"model_path"`
	VocoderPath string        `json:"vocoder_path"`
	ConfigPath  string        `json:"config_path"`
	Device      string        `json:"device"`
	Command     string        `json:"command"`
	SampleRate  int           `json:"sample_rate"`
	FallbackURL string        `json:"fallback_url"`
	Timeout     time.Duration `json:"timeout"`
}

type S3Config struct {
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"-"`
	SecretKey string `json:"-"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	Secure    bool   `json:"secure"`
}

// Enabled reports whether enough is configured to mirror artifacts.
func (c S3Config) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

const (
	ProviderOpenAI         = "openai"
	ProviderDeepgram       = "deepgram"
	ProviderLibreTranslate = "libretranslate"
)

var DefaultAllowedExtensions = []string{"mp3", "wav", "ogg", "flac", "m4a"}

// Option is a function type for configuring Config
type Option func(*Config)

// WithDataDir points every derived storage path at dir.
func WithDataDir(dir string) Option {
	return func(c *Config) {
		c.Storage.DataDir = dir
		c.Storage.UploadDir = filepath.Join(dir, "uploads")
		c.Storage.OutputDir = filepath.Join(dir, "output")
		c.Storage.DBPath = filepath.Join(dir, "voice-translator.db")
	}
}

func WithLanguages(table LanguageTable) Option {
	return func(c *Config) {
		c.Languages = table
	}
}

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	// a missing .env is the normal production case
	_ = godotenv.Load()

	dataDir := getEnvString("DATA_DIR", "./data")
	openAIKey := getEnvString("OPENAI_API_KEY", "")
	openAIURL := getEnvString("OPENAI_BASE_URL", "https://api.openai.com/v1")

	config := &Config{
		HTTP: HTTPConfig{
			Addr:            getEnvString("HTTP_ADDR", ":8080"),
			UIStaticDir:     getEnvString("UI_DIR", "./web"),
			UIEnabled:       getEnvBool("UI_ENABLED", true),
			SubmitRateLimit: getEnvInt("SUBMIT_RATE_LIMIT", 30),
		},
		Storage: StorageConfig{
			DataDir:     dataDir,
			UploadDir:   getEnvString("UPLOAD_DIR", filepath.Join(dataDir, "uploads")),
			OutputDir:   getEnvString("OUTPUT_DIR", filepath.Join(dataDir, "output")),
			DBPath:      getEnvString("DB_PATH", filepath.Join(dataDir, "voice-translator.db")),
			Retention:   getEnvDuration("ARTIFACT_RETENTION", 24*time.Hour),
			CleanupCron: getEnvString("CLEANUP_CRON", "@hourly"),
		},
		Limits: LimitsConfig{
			MaxFileSize:       int64(getEnvInt("MAX_FILE_SIZE", 10*1024*1024)),
			MaxTextLength:     getEnvInt("MAX_TEXT_LENGTH", 5000),
			MaxConcurrentJobs: getEnvInt("MAX_CONCURRENT_JOBS", 1),
			AllowedExtensions: append([]string(nil), DefaultAllowedExtensions...),
		},
		Recognition: RecognitionConfig{
			Provider:       strings.ToLower(getEnvString("RECOGNIZER", ProviderOpenAI)),
			OpenAIAPIKey:   openAIKey,
			OpenAIBaseURL:  openAIURL,
			Model:          getEnvString("RECOGNITION_MODEL", "whisper-1"),
			DeepgramAPIKey: getEnvString("DEEPGRAM_API_KEY", ""),
			DeepgramURL:    getEnvString("DEEPGRAM_URL", "https://api.deepgram.com/v1/listen"),
			Timeout:        getEnvDuration("RECOGNITION_TIMEOUT", 60*time.Second),
		},
		Translation: TranslationConfig{
			Provider:             strings.ToLower(getEnvString("TRANSLATOR", ProviderLibreTranslate)),
			LibreTranslateURL:    getEnvString("LIBRETRANSLATE_URL", "https://libretranslate.com"),
			LibreTranslateAPIKey: getEnvString("LIBRETRANSLATE_API_KEY", ""),
			OpenAIAPIKey:         openAIKey,
			OpenAIBaseURL:        openAIURL,
			Model:                getEnvString("TRANSLATION_MODEL", "gpt-4o-mini"),
			Timeout:              getEnvDuration("TRANSLATION_TIMEOUT", 30*time.Second),
		},
		Synthesis: SynthesisConfig{
			ModelPath:   getEnvString("TTS_MODEL_PATH", "./models/fastspeech2_model.pth"),
			VocoderPath: getEnvString("TTS_VOCODER_PATH", "./models/vocoder_model.pth"),
			ConfigPath:  getEnvString("TTS_CONFIG_PATH", "./configs/config.json"),
			Device:      strings.ToLower(getEnvString("TTS_DEVICE", "auto")),
			Command:     getEnvString("TTS_COMMAND", "tts"),
			SampleRate:  getEnvInt("TTS_SAMPLE_RATE", 24000),
			FallbackURL: getEnvString("FALLBACK_TTS_URL", "https://translate.google.com/translate_tts"),
			Timeout:     getEnvDuration("SYNTHESIS_TIMEOUT", 120*time.Second),
		},
		S3: S3Config{
			Endpoint:  getEnvString("S3_ENDPOINT", ""),
			AccessKey: getEnvString("S3_ACCESS_KEY", ""),
			SecretKey: getEnvString("S3_SECRET_KEY", ""),
			Bucket:    getEnvString("S3_BUCKET", ""),
			Region:    getEnvString("S3_REGION", ""),
			Secure:    getEnvBool("S3_SECURE", true),
		},
		LogLevel: getEnvString("LOG_LEVEL", "info"),
		LogFile:  getEnvString("LOG_FILE", ""),
	}
	if path := getEnvString("LANGUAGE_TABLE_FILE", ""); path != "" {
		table, err := LoadLanguageTable(path)
		if err != nil {
			return nil, fmt.Errorf("load language table: %w", err)
		}
		config.Languages = table
	} else {
		config.Languages = DefaultLanguageTable()
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Info("Config: recognizer=%s translator=%s data_dir=%s languages=%d",
		config.Recognition.Provider, config.Translation.Provider, config.Storage.DataDir, config.Languages.Len())

	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	switch c.Recognition.Provider {
	case ProviderOpenAI:
		if c.Recognition.OpenAIAPIKey == "" {
			log.Warn("OPENAI_API_KEY is empty, audio requests will fail at recognition")
		}
	case ProviderDeepgram:
		if c.Recognition.DeepgramAPIKey == "" {
			return fmt.Errorf("DEEPGRAM_API_KEY is required when RECOGNIZER=deepgram")
		}
	default:
		return fmt.Errorf("unknown RECOGNIZER %q", c.Recognition.Provider)
	}

	switch c.Translation.Provider {
	case ProviderLibreTranslate:
		if c.Translation.LibreTranslateURL == "" {
			return fmt.Errorf("LIBRETRANSLATE_URL is required when TRANSLATOR=libretranslate")
		}
	case ProviderOpenAI:
		if c.Translation.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when TRANSLATOR=openai")
		}
	default:
		return fmt.Errorf("unknown TRANSLATOR %q", c.Translation.Provider)
	}

	switch c.Synthesis.Device {
	case "auto", "cuda", "cpu":
	default:
		return fmt.Errorf("TTS_DEVICE must be auto, cuda or cpu, got %q", c.Synthesis.Device)
	}

	if c.Limits.MaxFileSize <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE must be greater than 0")
	}
	if c.Limits.MaxTextLength <= 0 {
		return fmt.Errorf("MAX_TEXT_LENGTH must be greater than 0")
	}
	if c.Limits.MaxConcurrentJobs < 1 {
		return fmt.Errorf("MAX_CONCURRENT_JOBS must be at least 1")
	}
	if c.Synthesis.SampleRate <= 0 {
		return fmt.Errorf("TTS_SAMPLE_RATE must be greater than 0")
	}
	if _, err := cron.ParseStandard(c.Storage.CleanupCron); err != nil {
		return fmt.Errorf("invalid CLEANUP_CRON: %w", err)
	}
	if c.Languages.Len() == 0 {
		return fmt.Errorf("language table is empty")
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
