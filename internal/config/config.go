// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds configuration for the relay and the dev backend.
type Config struct {
	// Service configuration
	RelayPort   string
	BackendPort string
	ServiceName string

	// Secret credential the relay attaches to provider calls. Never sent to
	// clients.
	APIKey string

	// Provider routing
	BackendURL string

	// Presigned URL lifetimes
	PartURLTTLMinutes int
	PreviewTTLMinutes int

	// MinIO configuration (dev backend object store)
	MinIOEndpoint   string
	MinIOAccessKey  string
	MinIOSecretKey  string
	MinIOBucketName string
	MinIOUseSSL     bool

	// Redis configuration (dev backend session store)
	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MySQL configuration (dev backend upload ledger)
	LedgerEnabled bool
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string

	// Jaeger configuration
	JaegerEndpoint string
}

// LoadConfig loads configuration from environment variables with sensible
// defaults for local development.
func LoadConfig() (*Config, error) {
	config := &Config{
		// Service defaults
		RelayPort:   getEnv("RELAY_PORT", "8080"),
		BackendPort: getEnv("BACKEND_PORT", "8090"),
		ServiceName: getEnv("SERVICE_NAME", "oneminutecloud-storage"),

		APIKey:     getEnv("OMC_API_KEY", ""),
		BackendURL: getEnv("OMC_BACKEND_URL", "http://localhost:8090"),

		PartURLTTLMinutes: getEnvAsInt("PART_URL_TTL_MINUTES", 15),
		PreviewTTLMinutes: getEnvAsInt("PREVIEW_TTL_MINUTES", 15),

		// MinIO defaults
		MinIOEndpoint:   getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinIOAccessKey:  getEnv("MINIO_ACCESS_KEY", "minioadmin"),
		MinIOSecretKey:  getEnv("MINIO_SECRET_KEY", "minioadmin"),
		MinIOBucketName: getEnv("MINIO_BUCKET_NAME", "oneminutecloud"),
		MinIOUseSSL:     getEnvAsBool("MINIO_USE_SSL", false),

		// Redis defaults
		RedisEnabled:  getEnvAsBool("REDIS_ENABLED", false),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// MySQL defaults
		LedgerEnabled: getEnvAsBool("LEDGER_ENABLED", false),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "3306"),
		DBUser:        getEnv("DB_USER", "root"),
		DBPassword:    getEnv("DB_PASSWORD", ""),
		DBName:        getEnv("DB_NAME", "oneminutecloud"),

		// Jaeger defaults
		JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "http://localhost:4318"),
	}

	return config, nil
}

// GetDSN returns the MySQL connection string for the upload ledger.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.DBUser,
		c.DBPassword,
		c.DBHost,
		c.DBPort,
		c.DBName,
	)
}

// GetRedisAddr returns the Redis address.
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
