/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT          = "5001"
	DEFAULT_PAGE_SIZE     = 50
	DEFAULT_MAX_PAGE_SIZE = 100
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL    bool   `json:"ssl" envconfig:"VAULT_SERVER_SSL"`
	Domain string `json:"domain" envconfig:"VAULT_SERVER_SSL_DOMAIN"`
	Email  string `json:"ssl_email" envconfig:"VAULT_SERVER_SSL_EMAIL"`
	Port   string `json:"port" envconfig:"VAULT_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"VAULT_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"VAULT_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"VAULT_REDIS_SKIP_TLS_VERIFY"`
}

type AuthConfig struct {
	JWTSecret   string        `json:"jwt_secret" envconfig:"VAULT_AUTH_JWT_SECRET"`
	TokenTTL    time.Duration `json:"token_ttl" envconfig:"VAULT_AUTH_TOKEN_TTL"`
	Issuer      string        `json:"issuer" envconfig:"VAULT_AUTH_ISSUER"`
	BcryptCost  int           `json:"bcrypt_cost" envconfig:"VAULT_AUTH_BCRYPT_COST"`
	MinPassword int           `json:"min_password" envconfig:"VAULT_AUTH_MIN_PASSWORD"`
	CardKey     string        `json:"card_key" envconfig:"VAULT_AUTH_CARD_KEY"`
}

type PinConfig struct {
	MaxAttempts   int           `json:"max_attempts" envconfig:"VAULT_PIN_MAX_ATTEMPTS"`
	LockDuration  time.Duration `json:"lock_duration" envconfig:"VAULT_PIN_LOCK_DURATION"`
	ResetTokenTTL time.Duration `json:"reset_token_ttl" envconfig:"VAULT_PIN_RESET_TOKEN_TTL"`
	PurgeSchedule string        `json:"purge_schedule" envconfig:"VAULT_PIN_PURGE_SCHEDULE"`
}

type LedgerConfig struct {
	BankName           string        `json:"bank_name" envconfig:"VAULT_LEDGER_BANK_NAME"`
	PageSize           int           `json:"page_size" envconfig:"VAULT_LEDGER_PAGE_SIZE"`
	MaxPageSize        int           `json:"max_page_size" envconfig:"VAULT_LEDGER_MAX_PAGE_SIZE"`
	IdempotencyTTL     time.Duration `json:"idempotency_ttl" envconfig:"VAULT_LEDGER_IDEMPOTENCY_TTL"`
	IdempotencyLockTTL time.Duration `json:"idempotency_lock_ttl" envconfig:"VAULT_LEDGER_IDEMPOTENCY_LOCK_TTL"`
	MaxRetryElapsed    time.Duration `json:"max_retry_elapsed" envconfig:"VAULT_LEDGER_MAX_RETRY_ELAPSED"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"VAULT_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"VAULT_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"VAULT_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url" envconfig:"VAULT_SLACK_WEBHOOK_URL"`
}

type MailRelay struct {
	RelayURL string            `json:"relay_url" envconfig:"VAULT_MAIL_RELAY_URL"`
	From     string            `json:"from" envconfig:"VAULT_MAIL_FROM"`
	Headers  map[string]string `json:"headers"`
}

type Notification struct {
	Slack SlackWebhook `json:"slack"`
	Mail  MailRelay    `json:"mail"`
}

type QueueConfig struct {
	NotificationQueue string `json:"notification_queue" envconfig:"VAULT_QUEUE_NOTIFICATION"`
	MaxRetry          int    `json:"max_retry" envconfig:"VAULT_QUEUE_MAX_RETRY"`
	Concurrency       int    `json:"concurrency" envconfig:"VAULT_QUEUE_CONCURRENCY"`
	MonitoringPort    string `json:"monitoring_port" envconfig:"VAULT_QUEUE_MONITORING_PORT"`
}

type ArchiveConfig struct {
	Enabled            bool   `json:"enabled" envconfig:"VAULT_ARCHIVE_ENABLED"`
	S3Endpoint         string `json:"s3_endpoint" envconfig:"VAULT_ARCHIVE_S3_ENDPOINT"`
	S3BucketName       string `json:"s3_bucket_name" envconfig:"VAULT_ARCHIVE_S3_BUCKET"`
	S3Region           string `json:"s3_region" envconfig:"VAULT_ARCHIVE_S3_REGION"`
	AwsAccessKeyId     string `json:"aws_access_key_id" envconfig:"VAULT_ARCHIVE_AWS_ACCESS_KEY_ID"`
	AwsSecretAccessKey string `json:"aws_secret_access_key" envconfig:"VAULT_ARCHIVE_AWS_SECRET_ACCESS_KEY"`
}

// BootstrapConfig seeds the first superadmin when the admins table is empty.
type BootstrapConfig struct {
	SuperadminEmail    string `json:"superadmin_email" envconfig:"VAULT_BOOTSTRAP_SUPERADMIN_EMAIL"`
	SuperadminPassword string `json:"superadmin_password" envconfig:"VAULT_BOOTSTRAP_SUPERADMIN_PASSWORD"`
	SuperadminName     string `json:"superadmin_name" envconfig:"VAULT_BOOTSTRAP_SUPERADMIN_NAME"`
}

type Configuration struct {
	ProjectName     string           `json:"project_name" envconfig:"VAULT_PROJECT_NAME"`
	EnableTelemetry bool             `json:"enable_telemetry" envconfig:"VAULT_ENABLE_TELEMETRY"`
	PosthogKey      string           `json:"posthog_key" envconfig:"VAULT_POSTHOG_KEY"`
	Server          ServerConfig     `json:"server"`
	DataSource      DataSourceConfig `json:"data_source"`
	Redis           RedisConfig      `json:"redis"`
	Auth            AuthConfig       `json:"auth"`
	Pin             PinConfig        `json:"pin"`
	Ledger          LedgerConfig     `json:"ledger"`
	Notification    Notification     `json:"notification"`
	RateLimit       RateLimitConfig  `json:"rate_limit"`
	Queue           QueueConfig      `json:"queue"`
	Archive         ArchiveConfig    `json:"archive"`
	Bootstrap       BootstrapConfig  `json:"bootstrap"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// .env is optional and never overrides variables already set in the process
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: could not load .env file: %v", err)
	}

	// override config from environment variables
	err = envconfig.Process("vault", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called vault.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Vault Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	if strings.TrimSpace(cnf.Auth.JWTSecret) == "" {
		log.Println("Error: JWT secret is empty. It's a required field.")
		return errors.New("auth jwt secret is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	cnf.setAuthDefaults()
	cnf.setLedgerDefaults()
	cnf.setQueueDefaults()

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	if cnf.Archive.Enabled && cnf.Archive.S3BucketName == "" {
		return errors.New("archive is enabled but no s3 bucket name is configured")
	}

	return nil
}

func (cnf *Configuration) setAuthDefaults() {
	if cnf.Auth.TokenTTL == 0 {
		cnf.Auth.TokenTTL = 24 * time.Hour
	}
	if cnf.Auth.Issuer == "" {
		cnf.Auth.Issuer = "vault"
	}
	if cnf.Auth.BcryptCost == 0 {
		cnf.Auth.BcryptCost = 12
	}
	if cnf.Auth.MinPassword == 0 {
		cnf.Auth.MinPassword = 8
	}
	if cnf.Auth.CardKey == "" {
		log.Println("Warning: card key not set. Deriving card number encryption from the jwt secret.")
		cnf.Auth.CardKey = cnf.Auth.JWTSecret
	}
	if cnf.Pin.MaxAttempts == 0 {
		cnf.Pin.MaxAttempts = 5
	}
	if cnf.Pin.LockDuration == 0 {
		cnf.Pin.LockDuration = 15 * time.Minute
	}
	if cnf.Pin.ResetTokenTTL == 0 {
		cnf.Pin.ResetTokenTTL = 15 * time.Minute
	}
	if cnf.Pin.PurgeSchedule == "" {
		cnf.Pin.PurgeSchedule = "@every 15m"
	}
}

func (cnf *Configuration) setLedgerDefaults() {
	if cnf.Ledger.BankName == "" {
		cnf.Ledger.BankName = cnf.ProjectName
	}
	if cnf.Ledger.PageSize <= 0 {
		cnf.Ledger.PageSize = DEFAULT_PAGE_SIZE
	}
	if cnf.Ledger.MaxPageSize <= 0 {
		cnf.Ledger.MaxPageSize = DEFAULT_MAX_PAGE_SIZE
	}
	if cnf.Ledger.PageSize > cnf.Ledger.MaxPageSize {
		log.Printf("Warning: page size %d exceeds max page size %d. Capping.", cnf.Ledger.PageSize, cnf.Ledger.MaxPageSize)
		cnf.Ledger.PageSize = cnf.Ledger.MaxPageSize
	}
	if cnf.Ledger.IdempotencyTTL == 0 {
		cnf.Ledger.IdempotencyTTL = 24 * time.Hour
	}
	if cnf.Ledger.IdempotencyLockTTL == 0 {
		cnf.Ledger.IdempotencyLockTTL = 30 * time.Second
	}
	if cnf.Ledger.MaxRetryElapsed == 0 {
		cnf.Ledger.MaxRetryElapsed = 3 * time.Second
	}
}

func (cnf *Configuration) setQueueDefaults() {
	if cnf.Queue.NotificationQueue == "" {
		cnf.Queue.NotificationQueue = "vault_notifications"
	}
	if cnf.Queue.MaxRetry == 0 {
		cnf.Queue.MaxRetry = 5
	}
	if cnf.Queue.Concurrency == 0 {
		cnf.Queue.Concurrency = 5
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = "5004"
	}
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(logger.Writer())
}
