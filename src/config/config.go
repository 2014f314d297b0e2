package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	EnvPathEnvVar         = "GRITSHOT_ENV"
	DBPathEnvVar          = "GRITSHOT_DB"
	OpenAIBaseURLEnvVar   = "OPENAI_BASE_URL"
	GeminiBaseURLEnvVar   = "GEMINI_BASE_URL"
	RequestTimeoutEnvVar  = "REQUEST_TIMEOUT_SEC"
	DefaultRequestTimeout = 60
	defaultDBDir          = ".gritshot"
	defaultDBName         = "settings.db"
)

type LoadOptions struct {
	DBPathOverride string
	VerboseLogging bool
}

type Config struct {
	DBPath            string
	OpenAIBaseURL     string
	GeminiBaseURL     string
	RequestTimeoutSec int
	EnableFileLogging bool
	AutoReadClipboard bool
	Verbose           bool
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Sources in priority order:
	// 1) .env in the application (executable) directory
	// 2) If not found, GRITSHOT_ENV as a path to a config file
	// Process environment always wins over file values (godotenv.Load never overrides).
	if envPath := resolveEnvPath(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	timeoutSec := DefaultRequestTimeout
	if v := os.Getenv(RequestTimeoutEnvVar); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			timeoutSec = n
		}
	}

	cfg := &Config{
		DBPath:            resolveDBPath(opts),
		OpenAIBaseURL:     strings.TrimSpace(os.Getenv(OpenAIBaseURLEnvVar)),
		GeminiBaseURL:     strings.TrimSpace(os.Getenv(GeminiBaseURLEnvVar)),
		RequestTimeoutSec: timeoutSec,
		EnableFileLogging: strings.ToLower(os.Getenv("ENABLE_FILE_LOGGING")) == "true",
		AutoReadClipboard: strings.ToLower(getEnvWithDefault("AUTO_READ_CLIPBOARD", "false")) == "true",
		Verbose:           opts.VerboseLogging,
	}

	return cfg, nil
}

func resolveEnvPath() string {
	if execPath, err := os.Executable(); err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(EnvPathEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func resolveDBPath(opts LoadOptions) string {
	if override := strings.TrimSpace(opts.DBPathOverride); override != "" {
		return override
	}
	if envPath := strings.TrimSpace(os.Getenv(DBPathEnvVar)); envPath != "" {
		return envPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultDBName
	}
	return filepath.Join(home, defaultDBDir, defaultDBName)
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
