package advisor

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries the endpoints and limits for the remote services the client
// talks to. Defaults match the local development topology: agent engine on
// 8082, cloud functions on 8081, session management on 8083.
type Config struct {
	EngineURL    string
	FunctionsURL string
	SessionsURL  string

	Timeout    time.Duration
	RetryCount int

	// Local engine settings, only used by the development server.
	OpenAIAPIKey string
	OpenAIBase   string
	Model        string
}

// LoadConfig reads configuration from a .env file when present, falling back
// to process environment variables and then to local defaults.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}

	return &Config{
		EngineURL:    getEnv("AGENT_ENGINE_URL", "http://localhost:8082"),
		FunctionsURL: getEnv("CLOUD_FUNCTIONS_URL", "http://localhost:8081"),
		SessionsURL:  getEnv("SESSION_MANAGEMENT_URL", "http://localhost:8083"),
		Timeout:      time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,
		RetryCount:   getEnvInt("REQUEST_RETRY_COUNT", 3),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIBase:   getEnv("OPENAI_BASE_URL", ""),
		Model:        getEnv("ADVISOR_MODEL", "gpt-4o-mini"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}
