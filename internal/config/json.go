package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/consentlab/takeout-agent/internal/flagx"
	"github.com/consentlab/takeout-agent/internal/timex"
)

// JsonConfig is an intermediate DTO used only for reading JSON configuration
// files. Interval fields use timex.Duration, which accepts both string values
// such as "1h" and integer nanoseconds. After unmarshalling, set fields are
// copied into the runtime Config.
type JsonConfig struct {
	DatabaseDSN  *string         `json:"database_dsn"`
	PollInterval *timex.Duration `json:"poll_interval"`
	KeepAlive    *bool           `json:"keep_alive"`
	TmpDir       *string         `json:"tmp_dir"`
	ProcessName  *string         `json:"process_name"`

	CleaningThreads *int `json:"cleaning_threads"`

	DriveBaseURL   *string         `json:"drive_base_url"`
	DriveTimeout   *timex.Duration `json:"drive_timeout"`
	DriveRetryWait *timex.Duration `json:"drive_retry_wait"`
	DriveMaxWait   *timex.Duration `json:"drive_max_wait"`
	ArchivePrefix  *string         `json:"archive_prefix"`

	InspectEndpoint      *string         `json:"inspect_endpoint"`
	InspectProjectID     *string         `json:"inspect_project_id"`
	InspectInfoTypes     []string        `json:"inspect_info_types"`
	InspectMinLikelihood *string         `json:"inspect_min_likelihood"`
	InspectTimeout       *timex.Duration `json:"inspect_timeout"`
	InspectRetries       *int            `json:"inspect_retries"`

	SecretKey *string `json:"secret_key"`
	VaultSalt *string `json:"vault_salt"`

	S3RootUser     *string `json:"s3_root_user"`
	S3RootPassword *string `json:"s3_root_password"`
	S3Bucket       *string `json:"s3_bucket"`
	S3Region       *string `json:"s3_region"`
	S3BaseEndpoint *string `json:"s3_base_endpoint"`
	SearchPrefix   *string `json:"search_prefix"`
	LocationPrefix *string `json:"location_prefix"`
	ConsentsPrefix *string `json:"consents_prefix"`
	StoreRetries   *int    `json:"store_retries"`

	EmailFrom          *string  `json:"email_from"`
	AdminEmails        []string `json:"admin_emails"`
	ParticipantSubject *string  `json:"participant_subject"`
	DigestSubject      *string  `json:"digest_subject"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config. The file path is taken from the -c or -config flags; if neither is
// set, no file is loaded. Unreadable or invalid files panic, since running
// with half-applied configuration is worse than not starting.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	applyJson(config, c)
}

func applyJson(config *Config, c *JsonConfig) {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setDuration := func(dst *time.Duration, src *timex.Duration) {
		if src != nil {
			*dst = src.Duration
		}
	}

	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setDuration(&config.PollInterval, c.PollInterval)
	if c.KeepAlive != nil {
		config.KeepAlive = *c.KeepAlive
	}
	setString(&config.TmpDir, c.TmpDir)
	setString(&config.ProcessName, c.ProcessName)

	if c.CleaningThreads != nil {
		config.CleaningThreads = *c.CleaningThreads
	}

	setString(&config.DriveBaseURL, c.DriveBaseURL)
	setDuration(&config.DriveTimeout, c.DriveTimeout)
	setDuration(&config.DriveRetryWait, c.DriveRetryWait)
	setDuration(&config.DriveMaxWait, c.DriveMaxWait)
	setString(&config.ArchivePrefix, c.ArchivePrefix)

	setString(&config.InspectEndpoint, c.InspectEndpoint)
	setString(&config.InspectProjectID, c.InspectProjectID)
	if c.InspectInfoTypes != nil {
		config.InspectInfoTypes = c.InspectInfoTypes
	}
	setString(&config.InspectMinLikelihood, c.InspectMinLikelihood)
	setDuration(&config.InspectTimeout, c.InspectTimeout)
	if c.InspectRetries != nil {
		config.InspectRetries = *c.InspectRetries
	}

	setString(&config.SecretKey, c.SecretKey)
	setString(&config.VaultSalt, c.VaultSalt)

	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.SearchPrefix, c.SearchPrefix)
	setString(&config.LocationPrefix, c.LocationPrefix)
	setString(&config.ConsentsPrefix, c.ConsentsPrefix)
	if c.StoreRetries != nil {
		config.StoreRetries = *c.StoreRetries
	}

	setString(&config.EmailFrom, c.EmailFrom)
	if c.AdminEmails != nil {
		config.AdminEmails = c.AdminEmails
	}
	setString(&config.ParticipantSubject, c.ParticipantSubject)
	setString(&config.DigestSubject, c.DigestSubject)
}
