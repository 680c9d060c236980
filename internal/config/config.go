package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Conversation pipeline
	UseMemoryQueue       bool
	WorkerCount          int
	ConversationQueueURL string
	ContextTTL           time.Duration
	HistoryLimit         int

	// Messenger channel
	MessengerVerifyToken string
	MessengerAppSecret   string
	MessengerPageToken   string

	// Widget channel
	WidgetSessionSecret string
	WidgetSessionTTL    time.Duration
	WidgetRateLimit     float64
	WidgetRateBurst     int
	CORSAllowedOrigins  []string

	// LLM providers
	OpenAIBaseURL    string
	GeminiModelID    string
	BedrockModelID   string
	FallbackProvider string
	FallbackAPIKey   string
	FallbackModelID  string

	// AWS (SQS queue, Bedrock, SES notifications)
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Handoff notifications. SendGrid wins when both it and SES are
	// configured.
	SendGridAPIKey  string
	NotifyFromEmail string
	NotifyFromName  string

	// Merchant credential encryption
	CredentialKey string

	// Operator endpoints (billing usage, handoff resume)
	AdminToken string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		UseMemoryQueue:       getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:          getEnvAsInt("WORKER_COUNT", 2),
		ConversationQueueURL: getEnv("CONVERSATION_QUEUE_URL", ""),
		ContextTTL:           getEnvAsDuration("CONTEXT_TTL", 24*time.Hour),
		HistoryLimit:         getEnvAsInt("HISTORY_LIMIT", 20),

		MessengerVerifyToken: getEnv("MESSENGER_VERIFY_TOKEN", ""),
		MessengerAppSecret:   getEnv("MESSENGER_APP_SECRET", ""),
		MessengerPageToken:   getEnv("MESSENGER_PAGE_TOKEN", ""),

		WidgetSessionSecret: getEnv("WIDGET_SESSION_SECRET", ""),
		WidgetSessionTTL:    getEnvAsDuration("WIDGET_SESSION_TTL", 12*time.Hour),
		WidgetRateLimit:     getEnvAsFloat("WIDGET_RATE_LIMIT", 2),
		WidgetRateBurst:     getEnvAsInt("WIDGET_RATE_BURST", 10),
		CORSAllowedOrigins:  getEnvAsSlice("CORS_ALLOWED_ORIGINS"),

		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		GeminiModelID:    getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		BedrockModelID:   getEnv("BEDROCK_MODEL_ID", ""),
		FallbackProvider: getEnv("FALLBACK_LLM_PROVIDER", "openai"),
		FallbackAPIKey:   getEnv("FALLBACK_LLM_API_KEY", ""),
		FallbackModelID:  getEnv("FALLBACK_LLM_MODEL_ID", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		SendGridAPIKey:  getEnv("SENDGRID_API_KEY", ""),
		NotifyFromEmail: getEnv("NOTIFY_FROM_EMAIL", ""),
		NotifyFromName:  getEnv("NOTIFY_FROM_NAME", "ShopChat"),

		CredentialKey: getEnv("CREDENTIAL_KEY", ""),

		AdminToken: getEnv("ADMIN_TOKEN", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
