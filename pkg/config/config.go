package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Gemini   GeminiConfig
	RAG      RAGConfig
	Currency CurrencyConfig
	Upload   UploadConfig
	Logger   LoggerConfig
}

type LoggerConfig struct {
	Level string
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// GeminiConfig carries the credential pool for the key-rotation gateway.
// Keys come from GEMINI_API_KEY_1..GEMINI_API_KEY_10 plus GEMINI_API_KEY;
// empty slots are skipped.
type GeminiConfig struct {
	APIKeys     []string
	Model       string
	CallTimeout time.Duration
}

type RAGConfig struct {
	EmbeddingModel string
	IndexPath      string
	TextsPath      string
	TopK           int
}

type CurrencyConfig struct {
	BaseCurrency    string
	Supported       []string
	RateAPIURL      string
	RefreshInterval time.Duration
}

type UploadConfig struct {
	Dir string
}

func Load() (*Config, error) {
	// Try to load .env file from current directory or project root
	envFiles := []string{".env", "../.env", "../../.env"}
	for _, envFile := range envFiles {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}
	// No .env file is fine, environment variables may be set directly

	readTimeout, _ := strconv.Atoi(getEnv("SERVER_READ_TIMEOUT", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("SERVER_WRITE_TIMEOUT", "30"))
	dbMaxConns, _ := strconv.Atoi(getEnv("DB_MAX_CONNS", "10"))
	dbMinConns, _ := strconv.Atoi(getEnv("DB_MIN_CONNS", "2"))
	callTimeout, _ := strconv.Atoi(getEnv("GEMINI_CALL_TIMEOUT", "60"))
	ragTopK, _ := strconv.Atoi(getEnv("RAG_K", "5"))
	refreshHours, _ := strconv.Atoi(getEnv("RATE_REFRESH_HOURS", "24"))

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  time.Duration(readTimeout) * time.Second,
			WriteTimeout: time.Duration(writeTimeout) * time.Second,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "kaikei"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(dbMaxConns),
			MinConns: int32(dbMinConns),
		},
		Gemini: GeminiConfig{
			APIKeys:     geminiKeyPool(),
			Model:       getEnv("GEMINI_PRO_MODEL", "gemini-2.0-flash-lite"),
			CallTimeout: time.Duration(callTimeout) * time.Second,
		},
		RAG: RAGConfig{
			EmbeddingModel: getEnv("RAG_EMBEDDING_MODEL", "text-embedding-004"),
			IndexPath:      getEnv("RAG_INDEX_PATH", "rag.index"),
			TextsPath:      getEnv("RAG_TEXTS_PATH", "rag_texts.json"),
			TopK:           ragTopK,
		},
		Currency: CurrencyConfig{
			BaseCurrency:    getEnv("BASE_CURRENCY", "USD"),
			Supported:       splitList(getEnv("SUPPORTED_CURRENCIES", "USD,EUR,JPY,GBP,AUD,CAD,CHF,CNY,INR")),
			RateAPIURL:      getEnv("RATE_API_URL", "https://open.er-api.com/v6/latest/USD"),
			RefreshInterval: time.Duration(refreshHours) * time.Hour,
		},
		Upload: UploadConfig{
			Dir: getEnv("UPLOAD_DIR", "uploads"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}, nil
}

// geminiKeyPool gathers the numbered key slots and the unnumbered fallback key,
// skipping anything empty.
func geminiKeyPool() []string {
	var keys []string
	for i := 1; i <= 10; i++ {
		if key := os.Getenv(fmt.Sprintf("GEMINI_API_KEY_%d", i)); key != "" {
			keys = append(keys, key)
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		keys = append(keys, key)
	}
	return keys
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
