package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read when no explicit path is given and KRONIK_CONFIG is unset.
const DefaultConfigFile = "kronik.yaml"

type Config struct {
	DataDir     string `yaml:"dataDir"`
	DatabaseURL string `yaml:"databaseURL"`
	LogsDir     string `yaml:"logsDir"`
	LogLevel    string `yaml:"logLevel"`

	AppiumURL          string `yaml:"appiumURL"`
	AppiumPort         int    `yaml:"appiumPort"`
	DeviceName         string `yaml:"deviceName"`
	EmulatorName       string `yaml:"emulatorName"`
	BootTimeoutSeconds int    `yaml:"bootTimeoutSeconds"`

	GeminiAPIKey           string  `yaml:"geminiAPIKey"`
	GeminiBaseURL          string  `yaml:"geminiBaseURL"`
	GeminiModel            string  `yaml:"geminiModel"`
	GeminiTemperature      float64 `yaml:"geminiTemperature"`
	AnalysisTimeoutSeconds int     `yaml:"analysisTimeoutSeconds"`
	EmbeddingModel         string  `yaml:"embeddingModel"`
	Embed                  bool    `yaml:"embed"`

	StatusAddr string `yaml:"statusAddr"`
	AuthSecret string `yaml:"authSecret"`

	YtDlpPath          string `yaml:"ytDlpPath"`
	UseChromeCookies   bool   `yaml:"useChromeCookies"`
	DownloadFormat     string `yaml:"downloadFormat"`
	DownloadResolution string `yaml:"downloadResolution"`
	RenderPages        bool   `yaml:"renderPages"`

	RecordSeconds     int  `yaml:"recordSeconds"`
	PauseSeconds      int  `yaml:"pauseSeconds"`
	MaxIterations     int  `yaml:"maxIterations"`
	DurationMinutes   int  `yaml:"durationMinutes"`
	Download          bool `yaml:"download"`
	MaxDeviceFailures int  `yaml:"maxDeviceFailures"`

	MinIOEndpoint  string `yaml:"minioEndpoint"`
	MinIOAccessKey string `yaml:"minioAccessKey"`
	MinIOSecretKey string `yaml:"minioSecretKey"`
	MinIOBucket    string `yaml:"minioBucket"`
	MinIOUseSSL    bool   `yaml:"minioUseSSL"`
}

func defaults() Config {
	return Config{
		DataDir:                "./data",
		LogsDir:                "./logs",
		LogLevel:               "info",
		AppiumURL:              "http://localhost:4723",
		AppiumPort:             4723,
		DeviceName:             "KronikPixel",
		EmulatorName:           "KronikPixel",
		BootTimeoutSeconds:     60,
		GeminiBaseURL:          "https://generativelanguage.googleapis.com/v1beta",
		GeminiModel:            "gemini-1.5-flash-8b",
		GeminiTemperature:      1.5,
		AnalysisTimeoutSeconds: 120,
		EmbeddingModel:         "text-embedding-004",
		Embed:                  true,
		StatusAddr:             ":8000",
		YtDlpPath:              "yt-dlp",
		DownloadFormat:         "best",
		DownloadResolution:     "720",
		RecordSeconds:          10,
		PauseSeconds:           1,
		MaxDeviceFailures:      3,
		MinIOBucket:            "kronik",
	}
}

// LoadConfig layers defaults, the YAML file, .env and the process environment,
// in that order. An empty path falls back to KRONIK_CONFIG and then kronik.yaml;
// a missing default file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := defaults()

	explicit := path != ""
	if !explicit {
		path = getEnv("KRONIK_CONFIG", "")
		explicit = path != ""
	}
	if path == "" {
		path = DefaultConfigFile
	}
	if err := loadFile(path, &cfg); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	}

	// .env never overrides variables already present in the environment.
	_ = godotenv.Load()
	applyEnv(&cfg)

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = filepath.Join(cfg.DataDir, "db", "kronik.db")
	}
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.DataDir = getEnv("KRONIK_DATA_DIR", cfg.DataDir)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.LogsDir = getEnv("KRONIK_LOGS_DIR", cfg.LogsDir)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	cfg.AppiumURL = getEnv("APPIUM_URL", cfg.AppiumURL)
	cfg.AppiumPort = getEnvInt("APPIUM_PORT", cfg.AppiumPort)
	cfg.DeviceName = getEnv("DEVICE_NAME", cfg.DeviceName)
	cfg.EmulatorName = getEnv("EMULATOR_NAME", cfg.EmulatorName)
	cfg.BootTimeoutSeconds = getEnvInt("BOOT_TIMEOUT_SECONDS", cfg.BootTimeoutSeconds)

	cfg.GeminiAPIKey = getEnv("GOOGLE_AI_API_KEY", cfg.GeminiAPIKey)
	cfg.GeminiBaseURL = getEnv("GEMINI_BASE_URL", cfg.GeminiBaseURL)
	cfg.GeminiModel = getEnv("GEMINI_MODEL", cfg.GeminiModel)
	cfg.GeminiTemperature = getEnvFloat("GEMINI_TEMPERATURE", cfg.GeminiTemperature)
	cfg.AnalysisTimeoutSeconds = getEnvInt("ANALYSIS_TIMEOUT_SECONDS", cfg.AnalysisTimeoutSeconds)
	cfg.EmbeddingModel = getEnv("EMBEDDING_MODEL", cfg.EmbeddingModel)
	cfg.Embed = getEnvBool("EMBED_ANALYSES", cfg.Embed)

	cfg.StatusAddr = getEnv("STATUS_ADDR", cfg.StatusAddr)
	cfg.AuthSecret = getEnv("KRONIK_AUTH_SECRET", cfg.AuthSecret)

	cfg.YtDlpPath = getEnv("YTDLP_PATH", cfg.YtDlpPath)
	cfg.UseChromeCookies = getEnvBool("USE_CHROME_COOKIES", cfg.UseChromeCookies)
	cfg.DownloadFormat = getEnv("DOWNLOAD_FORMAT", cfg.DownloadFormat)
	cfg.DownloadResolution = getEnv("DOWNLOAD_RESOLUTION", cfg.DownloadResolution)
	cfg.RenderPages = getEnvBool("RENDER_PAGES", cfg.RenderPages)

	cfg.RecordSeconds = getEnvInt("RECORD_SECONDS", cfg.RecordSeconds)
	cfg.PauseSeconds = getEnvInt("PAUSE_SECONDS", cfg.PauseSeconds)
	cfg.MaxIterations = getEnvInt("MAX_ITERATIONS", cfg.MaxIterations)
	cfg.DurationMinutes = getEnvInt("DURATION_MINUTES", cfg.DurationMinutes)
	cfg.Download = getEnvBool("DOWNLOAD_VIDEOS", cfg.Download)
	cfg.MaxDeviceFailures = getEnvInt("MAX_DEVICE_FAILURES", cfg.MaxDeviceFailures)

	cfg.MinIOEndpoint = getEnv("MINIO_ENDPOINT", cfg.MinIOEndpoint)
	cfg.MinIOAccessKey = getEnv("MINIO_ACCESS_KEY", cfg.MinIOAccessKey)
	cfg.MinIOSecretKey = getEnv("MINIO_SECRET_KEY", cfg.MinIOSecretKey)
	cfg.MinIOBucket = getEnv("MINIO_BUCKET", cfg.MinIOBucket)
	cfg.MinIOUseSSL = getEnvBool("MINIO_USE_SSL", cfg.MinIOUseSSL)
}

func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.DataDir) == "" {
		return errors.New("dataDir is required")
	}
	if cfg.RecordSeconds <= 0 {
		return fmt.Errorf("recordSeconds must be positive, got %d", cfg.RecordSeconds)
	}
	if cfg.PauseSeconds < 0 {
		return fmt.Errorf("pauseSeconds must not be negative, got %d", cfg.PauseSeconds)
	}
	if cfg.MaxIterations < 0 || cfg.DurationMinutes < 0 {
		return errors.New("maxIterations and durationMinutes must not be negative")
	}
	if cfg.MaxDeviceFailures <= 0 {
		return fmt.Errorf("maxDeviceFailures must be positive, got %d", cfg.MaxDeviceFailures)
	}
	if cfg.GeminiTemperature < 0 || cfg.GeminiTemperature > 2 {
		return fmt.Errorf("geminiTemperature must be within [0, 2], got %v", cfg.GeminiTemperature)
	}
	if cfg.AuthSecret != "" && len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("authSecret must be at least 32 characters, got %d", len(cfg.AuthSecret))
	}
	if cfg.MinIOEndpoint != "" && (cfg.MinIOAccessKey == "" || cfg.MinIOSecretKey == "") {
		return errors.New("minio credentials are required when minioEndpoint is set")
	}
	return nil
}

// SessionsDir is the root of per-session artifact directories.
func (c Config) SessionsDir() string {
	return filepath.Join(c.DataDir, "sessions")
}

// DBDir holds the relational database file and the vector store.
func (c Config) DBDir() string {
	return filepath.Join(c.DataDir, "db")
}

func (c Config) VectorsDir() string {
	return filepath.Join(c.DBDir(), "chroma")
}

func (c Config) AnalysisTimeout() time.Duration {
	return time.Duration(c.AnalysisTimeoutSeconds) * time.Second
}

func (c Config) BootTimeout() time.Duration {
	return time.Duration(c.BootTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return b
}

// ArchiveEnabled reports whether artifacts are copied to object storage.
func (c Config) ArchiveEnabled() bool {
	return c.MinIOEndpoint != ""
}
