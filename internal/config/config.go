package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"examai/internal/logger"
)

type Config struct {
	// HTTP Server Configuration
	ServerAddr  string
	CORSOrigins []string

	// Google Cloud Storage Configuration
	GCSBucketName string

	// OpenAI Configuration
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAITemperature float32

	// MongoDB Configuration
	MongoURI            string
	MongoDBName         string
	ExamPaperCollection string

	// Pipeline Configuration
	Workers           int
	QueueSize         int
	RetryAttempts     int
	RetryBackoff      time.Duration
	OCRWaitTimeout    time.Duration
	GenerationTimeout time.Duration

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		ServerAddr:          getEnv("SERVER_ADDR", ":8080"),
		CORSOrigins:         splitEnv("CORS_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000"),
		GCSBucketName:       getEnv("GCS_BUCKET_NAME", ""),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:         getEnv("OPENAI_MODEL", "gpt-4o"),
		OpenAITemperature:   parseFloatEnv("OPENAI_TEMPERATURE", 0.7),
		MongoURI:            getEnv("MONGO_URI", ""),
		MongoDBName:         getEnv("MONGO_DB_NAME", "examai"),
		ExamPaperCollection: getEnv("EXAM_PAPER_COLLECTION", "exam_papers"),
		Workers:             parseIntEnv("PIPELINE_WORKERS", 3),
		QueueSize:           parseIntEnv("PIPELINE_QUEUE_SIZE", 100),
		RetryAttempts:       parseIntEnv("PIPELINE_RETRY_ATTEMPTS", 3),
		RetryBackoff:        parseDurationEnv("PIPELINE_RETRY_BACKOFF", 60*time.Second),
		OCRWaitTimeout:      parseDurationEnv("OCR_WAIT_TIMEOUT", 600*time.Second),
		GenerationTimeout:   parseDurationEnv("GENERATION_TIMEOUT", 60*time.Second),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:       getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:           getEnv("LOG_OUTPUT", "stdout"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.GCSBucketName == "" {
		return fmt.Errorf("GCS_BUCKET_NAME is required")
	}
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.MongoURI == "" {
		return fmt.Errorf("MONGO_URI is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("PIPELINE_WORKERS must be at least 1")
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("PIPELINE_RETRY_ATTEMPTS must be at least 1")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitEnv(key, defaultValue string) []string {
	values := strings.Split(getEnv(key, defaultValue), ",")
	for i := range values {
		values[i] = strings.TrimSpace(values[i])
	}
	return values
}

func parseIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func parseFloatEnv(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(parsed)
		}
	}
	return defaultValue
}

func parseDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
