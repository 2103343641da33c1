package config

import (
	"os"
	"strconv"
	"time"
)

// parseEnv overlays Config fields from environment variables. Unset or empty
// variables leave the current value untouched. Duration variables are
// integers in minutes; MAX_UPLOAD_SIZE is in megabytes.
func parseEnv(config *Config) {
	if v := os.Getenv("ADDRESS"); v != "" {
		config.EndpointAddr = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		config.DatabaseDSN = v
	}
	if v := os.Getenv("SECRET_KEY"); v != "" {
		config.SecretKey = v
	}
	if v := os.Getenv("ACCESS_TOKEN_VALIDITY_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.AccessTokenValidityDuration = time.Duration(n) * time.Minute
		}
	}
	if v := os.Getenv("REFRESH_TOKEN_VALIDITY_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.RefreshTokenValidityDuration = time.Duration(n) * time.Minute
		}
	}
	if v := os.Getenv("S3_ACCESS_KEY"); v != "" {
		config.S3AccessKey = v
	}
	if v := os.Getenv("S3_SECRET_KEY"); v != "" {
		config.S3SecretKey = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		config.S3Bucket = v
	}
	if v := os.Getenv("S3_REGION"); v != "" {
		config.S3Region = v
	}
	if v := os.Getenv("S3_BASE_ENDPOINT"); v != "" {
		config.S3BaseEndpoint = v
	}
	if v := os.Getenv("MAX_UPLOAD_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.MaxUploadSize = n * 1024 * 1024
		}
	}
}
