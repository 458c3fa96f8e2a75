package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server
	ServerPort        string
	ServerHost        string
	ReportServicePort string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration

	// Storage
	StorageBasePath string

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers []string
	KafkaGroupID string

	// AI providers
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string
	GeminiAPIKey    string
	GeminiBaseURL   string
	GeminiModel     string
	AICallTimeout   time.Duration
	BudgetCacheTTL  time.Duration
	MonthlyBudget   float64
	PreferredAI     string
	OpenAIEnabled   bool
	GeminiEnabled   bool

	// Patient masking
	MaskingEnabled   bool
	MaskingRulesPath string

	// Document analysis
	ClassifierRulesPath string
}

func Load() *Config {
	return &Config{
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		ServerHost:        getEnv("SERVER_HOST", "0.0.0.0"),
		ReportServicePort: getEnv("REPORT_SERVICE_PORT", "8081"),
		StorageBasePath:   getEnv("STORAGE_BASE_PATH", "/var/lib/megcare/documents"),
		ReadTimeout:       getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:      getDuration("WRITE_TIMEOUT", 30*time.Second),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "megcare"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "megcare123"),
		PostgresDB:       getEnv("POSTGRES_DB", "megcare"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers: getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "megcare-platform"),

		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4"),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiBaseURL:  getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-1.5-pro"),
		AICallTimeout:  getDuration("AI_CALL_TIMEOUT", 30*time.Second),
		BudgetCacheTTL: getDuration("BUDGET_CACHE_TTL", 5*time.Minute),
		MonthlyBudget:  getFloatEnv("AI_MONTHLY_BUDGET_USD", 0),
		PreferredAI:    getEnv("AI_PREFERRED_PROVIDER", "openai"),
		OpenAIEnabled:  getBoolEnv("OPENAI_ENABLED", true),
		GeminiEnabled:  getBoolEnv("GEMINI_ENABLED", true),

		MaskingEnabled:   getBoolEnv("PATIENT_MASKING_ENABLED", true),
		MaskingRulesPath: getEnv("MASKING_RULES_PATH", ""),

		ClassifierRulesPath: getEnv("CLASSIFIER_RULES_PATH", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return []string{value}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
