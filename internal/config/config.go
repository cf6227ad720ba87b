package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Auth     AuthConfig
	SMTP     SMTPConfig
	Memory   MemoryConfig
	Ai       AIConfig
	Prompt   PromptConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	ClientURL          string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

type AuthConfig struct {
	JwtSecret          string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
}

type SMTPConfig struct {
	Host       string
	Port       int
	Email      string
	Password   string
	SenderName string
}

type MemoryConfig struct {
	BaseURL string
	APIKey  string
}

type AIConfig struct {
	LLMProvider   string // "openai" or "ollama"
	LLMModel      string // main conversational model
	SLMModel      string // triage, rewrite, synthesis
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OllamaBaseURL string
}

// PromptConfig caps how many characters each context section may occupy in the
// final prompt.
type PromptConfig struct {
	KnowledgeBaseBudget int
	WorkspaceBudget     int
	MemoryBudget        int
	ProfileBudget       int
	AttachmentBudget    int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			ClientURL:          getEnv("CLIENT_URL", "http://localhost:5173"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Auth: AuthConfig{
			JwtSecret:          getEnv("JWT_SECRET", ""),
			GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:3000/api/auth/google/callback"),
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			Email:      getEnv("SMTP_EMAIL", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			SenderName: getEnv("SMTP_SENDER_NAME", "FIWB"),
		},
		Memory: MemoryConfig{
			BaseURL: getEnv("SUPERMEMORY_BASE_URL", "https://api.supermemory.ai"),
			APIKey:  getEnv("SUPERMEMORY_API_KEY", ""),
		},
		Ai: AIConfig{
			LLMProvider:   getEnv("LLM_PROVIDER", "openai"),
			LLMModel:      getEnv("LLM_MODEL", "gpt-4o"),
			SLMModel:      getEnv("SLM_MODEL", "gpt-4o-mini"),
			OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
			OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		},
		Prompt: PromptConfig{
			KnowledgeBaseBudget: getEnvAsInt("PROMPT_KNOWLEDGE_BASE_BUDGET", 24000),
			WorkspaceBudget:     getEnvAsInt("PROMPT_WORKSPACE_BUDGET", 8000),
			MemoryBudget:        getEnvAsInt("PROMPT_MEMORY_BUDGET", 4000),
			ProfileBudget:       getEnvAsInt("PROMPT_PROFILE_BUDGET", 2000),
			AttachmentBudget:    getEnvAsInt("PROMPT_ATTACHMENT_BUDGET", 16000),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}
