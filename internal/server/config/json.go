package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/rentdesk/internal/flagx"
	"github.com/dmitrijs2005/rentdesk/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "30m" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON configuration
// files. Fields left out of the file keep the values already in Config.
type JsonConfig struct {
	HTTPAddr                    string         `json:"http_addr"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	LogLevel                    string         `json:"log_level"`
	S3RootUser                  string         `json:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket"`
	S3Region                    string         `json:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint"`
	AdminEmail                  string         `json:"admin_email"`
	AdminPassword               string         `json:"admin_password"`
	MailHost                    string         `json:"mail_host"`
	MailUser                    string         `json:"mail_user"`
	MailPassword                string         `json:"mail_password"`
	MailFrom                    string         `json:"mail_from"`
	MailSkipVerify              *bool          `json:"mail_skip_verify"`
	BaseURL                     string         `json:"base_url"`
	DefaultLanguage             string         `json:"default_language"`
	NotificationWorkers         int            `json:"notification_workers"`
	NotificationQueueSize       int            `json:"notification_queue_size"`
	NotificationSendTimeout     timex.Duration `json:"notification_send_timeout"`
	RedisAddr                   string         `json:"redis_addr"`
	ResendLimit                 int            `json:"resend_limit"`
	ResendWindow                timex.Duration `json:"resend_window"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path comes from the -c or -config command-line flags, falling back
// to the RENTDESK_CONFIG environment variable. If neither is set, no JSON file
// is loaded. If the file cannot be read or contains invalid JSON, the function
// panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFile()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	if c.AccessTokenValidityDuration.Duration > 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.AdminEmail, c.AdminEmail)
	setString(&config.AdminPassword, c.AdminPassword)
	setString(&config.MailHost, c.MailHost)
	setString(&config.MailUser, c.MailUser)
	setString(&config.MailPassword, c.MailPassword)
	setString(&config.MailFrom, c.MailFrom)
	if c.MailSkipVerify != nil {
		config.MailSkipVerify = *c.MailSkipVerify
	}
	setString(&config.BaseURL, c.BaseURL)
	setString(&config.DefaultLanguage, c.DefaultLanguage)
	if c.NotificationWorkers > 0 {
		config.NotificationWorkers = c.NotificationWorkers
	}
	if c.NotificationQueueSize > 0 {
		config.NotificationQueueSize = c.NotificationQueueSize
	}
	if c.NotificationSendTimeout.Duration > 0 {
		config.NotificationSendTimeout = c.NotificationSendTimeout.Duration
	}
	setString(&config.RedisAddr, c.RedisAddr)
	if c.ResendLimit > 0 {
		config.ResendLimit = c.ResendLimit
	}
	if c.ResendWindow.Duration > 0 {
		config.ResendWindow = c.ResendWindow.Duration
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
