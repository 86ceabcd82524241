package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// envPrefix is prepended to every variable name read by parseEnv.
const envPrefix = "RENTDESK_"

// dotenvFiles lists the files godotenv tries to load. Missing files are
// ignored and variables already present in the process environment win.
var dotenvFiles = []string{".env"}

// parseEnv overlays Config with RENTDESK_* environment variables. Values
// that are unset or fail to parse leave the current value in place.
func parseEnv(config *Config) {
	for _, f := range dotenvFiles {
		_ = godotenv.Load(f)
	}

	envString(&config.HTTPAddr, "HTTP_ADDR")
	envString(&config.DatabaseDSN, "DATABASE_DSN")
	envString(&config.SecretKey, "SECRET_KEY")
	envMinutes(&config.AccessTokenValidityDuration, "ACCESS_TOKEN_EXPIRE_MINUTES")
	envString(&config.LogLevel, "LOG_LEVEL")

	envString(&config.S3RootUser, "S3_ROOT_USER")
	envString(&config.S3RootPassword, "S3_ROOT_PASSWORD")
	envString(&config.S3Bucket, "S3_BUCKET")
	envString(&config.S3Region, "S3_REGION")
	envString(&config.S3BaseEndpoint, "S3_BASE_ENDPOINT")

	envString(&config.AdminEmail, "ADMIN_EMAIL")
	envString(&config.AdminPassword, "ADMIN_PASSWORD")

	envString(&config.MailHost, "MAIL_HOST")
	envString(&config.MailUser, "MAIL_USER")
	envString(&config.MailPassword, "MAIL_PASSWORD")
	envString(&config.MailFrom, "MAIL_FROM")
	envBool(&config.MailSkipVerify, "MAIL_SKIP_VERIFY")

	envString(&config.BaseURL, "BASE_URL")
	envString(&config.DefaultLanguage, "DEFAULT_LANGUAGE")

	envInt(&config.NotificationWorkers, "NOTIFICATION_WORKERS")
	envInt(&config.NotificationQueueSize, "NOTIFICATION_QUEUE_SIZE")
	envDuration(&config.NotificationSendTimeout, "NOTIFICATION_SEND_TIMEOUT")

	envString(&config.RedisAddr, "REDIS_ADDR")
	envInt(&config.ResendLimit, "RESEND_LIMIT")
	envDuration(&config.ResendWindow, "RESEND_WINDOW")
}

func envString(dst *string, key string) {
	if v, ok := os.LookupEnv(envPrefix + key); ok {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	if v, ok := os.LookupEnv(envPrefix + key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(envPrefix + key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envDuration(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(envPrefix + key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func envMinutes(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(envPrefix + key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(n) * time.Minute
		}
	}
}
