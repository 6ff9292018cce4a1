// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"log/slog"
	"os"
	"strconv"
)

// Config はアプリケーション設定を表す。
type Config struct {
	Port               string
	DBDriver           string
	DatabaseURL        string
	MigrationsDir      string
	IDPrefix           string
	CipherScheme       string
	BatchWorkers       int
	ErrorPolicy        string
	KMSKeyName         string
	GoogleCloudProject string
	LogLevel           string
	OtelEnabled        bool
	OtelEndpoint       string
	OtelInsecure       bool
	OtelServiceName    string
	OtelSamplingRate   float64
	MetricsEnabled     bool
}

// Load は環境変数から設定を読み込む。
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		DBDriver:           getEnv("DB_DRIVER", "sqlite"),
		DatabaseURL:        getEnv("DATABASE_URL", "data/database.sqlite"),
		MigrationsDir:      os.Getenv("MIGRATIONS_DIR"),
		IDPrefix:           getEnv("ID_PREFIX", "MP"),
		CipherScheme:       getEnv("CIPHER_SCHEME", "aes-256-gcm"),
		BatchWorkers:       getEnvInt("BATCH_WORKERS", 8),
		ErrorPolicy:        getEnv("ERROR_POLICY", "continue"),
		KMSKeyName:         os.Getenv("KMS_KEY_NAME"),
		GoogleCloudProject: os.Getenv("GOOGLE_CLOUD_PROJECT"),
		LogLevel:           getEnv("LOG_LEVEL", "INFO"),
		OtelEnabled:        getEnvBool("OTEL_ENABLED", false),
		OtelEndpoint:       getEnv("OTEL_ENDPOINT", "localhost:4317"),
		OtelInsecure:       getEnvBool("OTEL_INSECURE", false),
		OtelServiceName:    getEnv("OTEL_SERVICE_NAME", "meal-stub-service"),
		OtelSamplingRate:   getEnvFloat("OTEL_SAMPLING_RATE", 1.0),
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", false),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		warnInvalid(key, val, defaultVal)
		return defaultVal
	}
	return n
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		warnInvalid(key, val, defaultVal)
		return defaultVal
	}
	return b
}

func getEnvFloat(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		warnInvalid(key, val, defaultVal)
		return defaultVal
	}
	return f
}

// warnInvalid は解釈できない値を既定値で置き換えたことを記録する。
func warnInvalid(key, val string, defaultVal any) {
	slog.Warn("invalid environment variable, using default",
		"key", key,
		"value", val,
		"default", defaultVal,
	)
}
