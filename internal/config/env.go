package config

import (
	"time"

	"github.com/caarlos0/env/v9"
)

// envConfig is the environment overlay. Pointer fields stay nil when the
// variable is unset, so only variables that are actually present override
// the running configuration.
type envConfig struct {
	DatabaseDSN  *string        `env:"DATABASE_DSN"`
	PollInterval *time.Duration `env:"ARCHIVE_AGENT_WAIT_TIME"`
	KeepAlive    *bool          `env:"ARCHIVE_AGENT_KEEP_ALIVE"`
	TmpDir       *string        `env:"ARCHIVE_AGENT_TMP_DIR"`

	SecretKey *string `env:"VAULT_SECRET_KEY"`
	VaultSalt *string `env:"VAULT_SALT"`

	S3RootUser     *string `env:"S3_ROOT_USER"`
	S3RootPassword *string `env:"S3_ROOT_PASSWORD"`
	S3Bucket       *string `env:"S3_BUCKET"`
	S3Region       *string `env:"S3_REGION"`
	S3BaseEndpoint *string `env:"S3_BASE_ENDPOINT"`

	EmailRegion    *string `env:"SES_REGION"`
	EmailAccessKey *string `env:"SES_ACCESS_KEY_ID"`
	EmailSecretKey *string `env:"SES_SECRET_ACCESS_KEY"`

	AdminEmails []string `env:"ADMIN_EMAILS" envSeparator:","`
}

// parseEnv overlays values from the process environment onto config.
func parseEnv(config *Config) {
	e := &envConfig{}
	if err := env.Parse(e); err != nil {
		panic(err)
	}

	if e.DatabaseDSN != nil {
		config.DatabaseDSN = *e.DatabaseDSN
	}
	if e.PollInterval != nil {
		config.PollInterval = *e.PollInterval
	}
	if e.KeepAlive != nil {
		config.KeepAlive = *e.KeepAlive
	}
	if e.TmpDir != nil {
		config.TmpDir = *e.TmpDir
	}
	if e.SecretKey != nil {
		config.SecretKey = *e.SecretKey
	}
	if e.VaultSalt != nil {
		config.VaultSalt = *e.VaultSalt
	}
	if e.S3RootUser != nil {
		config.S3RootUser = *e.S3RootUser
	}
	if e.S3RootPassword != nil {
		config.S3RootPassword = *e.S3RootPassword
	}
	if e.S3Bucket != nil {
		config.S3Bucket = *e.S3Bucket
	}
	if e.S3Region != nil {
		config.S3Region = *e.S3Region
	}
	if e.S3BaseEndpoint != nil {
		config.S3BaseEndpoint = *e.S3BaseEndpoint
	}
	if e.EmailRegion != nil {
		config.EmailRegion = *e.EmailRegion
	}
	if e.EmailAccessKey != nil {
		config.EmailAccessKey = *e.EmailAccessKey
	}
	if e.EmailSecretKey != nil {
		config.EmailSecretKey = *e.EmailSecretKey
	}
	if e.AdminEmails != nil {
		config.AdminEmails = e.AdminEmails
	}
}
