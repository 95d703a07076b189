package config

import (
	"os"
	"strconv"
)

// LoadFromEnv overlays environment variables on an existing config.
func LoadFromEnv(cfg *Config) {
	if port := os.Getenv("RECOVERD_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	if logLevel := os.Getenv("RECOVERD_LOG_LEVEL"); logLevel != "" {
		cfg.Server.LogLevel = logLevel
	}

	if mode := os.Getenv("RECOVERD_STORE_MODE"); mode != "" {
		cfg.Store.Mode = mode
	}
	if bucket := os.Getenv("RECOVERD_S3_BUCKET"); bucket != "" {
		cfg.Store.Bucket = bucket
	}
	if endpoint := os.Getenv("RECOVERD_S3_ENDPOINT"); endpoint != "" {
		cfg.Store.Endpoint = endpoint
	}
	if key := os.Getenv("RECOVERD_S3_ACCESS_KEY"); key != "" {
		cfg.Store.AccessKey = key
	}
	if secret := os.Getenv("RECOVERD_S3_SECRET_KEY"); secret != "" {
		cfg.Store.SecretKey = secret
	}
	if path := os.Getenv("RECOVERD_LOCAL_PATH"); path != "" {
		cfg.Store.LocalPath = path
	}

	if dsn := os.Getenv("RECOVERD_CATALOG_DSN"); dsn != "" {
		cfg.Catalog.DSN = dsn
	}

	if freq := os.Getenv("RECOVERD_BACKUP_FREQUENCY"); freq != "" {
		cfg.Backup.Frequency = freq
	}
}

// GetEnvOrDefault returns environment variable or default value
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
