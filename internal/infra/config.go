package infra

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv string
	Port   string

	// DatabaseURL switches persistence to Postgres when set; otherwise jobs
	// are stored as JSON files under JobDataDir.
	DatabaseURL string
	JobDataDir  string

	// DocumentDirs are searched, in order, when resolving a job's input
	// reference to source material.
	DocumentDirs []string

	OllamaBaseURL        string
	OllamaModel          string
	GitHubModelsEndpoint string
	GitHubModelsToken    string

	AttemptTimeout   time.Duration
	ProbeTimeout     time.Duration
	ProbeTTL         time.Duration
	JobRetentionAge  time.Duration
	CleanupInterval  time.Duration
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed. Nothing is strictly required: with an empty
// environment the service runs against a local Ollama server with file-based
// persistence.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:               getEnv("APP_ENV", "development"),
		Port:                 getEnv("PORT", "8080"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		JobDataDir:           getEnv("JOB_DATA_DIR", "./data/jobs"),
		DocumentDirs:         getEnvList("DOCUMENT_DIRS", []string{"./data/documents", "./data/uploads"}),
		OllamaBaseURL:        getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:          getEnv("OLLAMA_MODEL", "llama3.1:8b-instruct-q8_0"),
		GitHubModelsEndpoint: getEnv("GITHUB_MODELS_ENDPOINT", "https://models.inference.ai.azure.com"),
		GitHubModelsToken:    os.Getenv("GITHUB_MODELS_TOKEN"),
		AttemptTimeout:       time.Second * time.Duration(getEnvInt("ATTEMPT_TIMEOUT_SECONDS", 300)),
		ProbeTimeout:         time.Second * time.Duration(getEnvInt("PROBE_TIMEOUT_SECONDS", 5)),
		ProbeTTL:             time.Second * time.Duration(getEnvInt("PROBE_TTL_SECONDS", 30)),
		JobRetentionAge:      time.Hour * time.Duration(getEnvInt("JOB_RETENTION_HOURS", 24)),
		CleanupInterval:      time.Minute * time.Duration(getEnvInt("CLEANUP_INTERVAL_MINUTES", 60)),
		HTTPReadTimeout:      time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:     time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:      time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
