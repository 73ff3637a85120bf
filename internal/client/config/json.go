package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/goalkeeper/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer
// fields distinguish "absent" from zero so a file only overrides what it
// names.
type JsonConfig struct {
	DatabasePath *string `json:"database_path"`

	RemoteKind         *string `json:"remote_kind"`
	ServerEndpointAddr *string `json:"server_endpoint_addr"`
	S3Bucket           *string `json:"s3_bucket"`
	S3Region           *string `json:"s3_region"`
	S3BaseEndpoint     *string `json:"s3_base_endpoint"`
	S3AccessKey        *string `json:"s3_access_key"`
	S3SecretKey        *string `json:"s3_secret_key"`

	BatchSize        *int            `json:"batch_size"`
	MaxWait          *timex.Duration `json:"max_wait"`
	MinFlushInterval *timex.Duration `json:"min_flush_interval"`
	MaxRequeues      *int            `json:"max_requeues"`

	RetryBaseDelay   *timex.Duration `json:"retry_base_delay"`
	RetryMaxDelay    *timex.Duration `json:"retry_max_delay"`
	RetryMaxAttempts *int            `json:"retry_max_attempts"`
	PushDeadline     *timex.Duration `json:"push_deadline"`

	ReconcileInterval *timex.Duration `json:"reconcile_interval"`
	Retention         *timex.Duration `json:"retention"`

	MaxKeyAge             *timex.Duration `json:"max_key_age"`
	GraceKeys             *int            `json:"grace_keys"`
	EncryptGoalValues     *bool           `json:"encrypt_goal_values"`
	KeystorePassphraseEnv *string         `json:"keystore_passphrase_env"`
	KeystoreWorkFactor    *int            `json:"keystore_work_factor"`

	LogFile       *string `json:"log_file"`
	LogMaxSizeMB  *int    `json:"log_max_size_mb"`
	LogMaxBackups *int    `json:"log_max_backups"`
	Verbose       *bool   `json:"verbose"`

	OnlineCheckInterval *timex.Duration `json:"online_check_interval"`
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *timex.Duration) {
	if src != nil {
		*dst = src.Duration
	}
}

// parseJson overlays cfg with the values present in the JSON file at path.
// An empty path loads nothing.
func parseJson(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	set(&cfg.DatabasePath, jc.DatabasePath)

	if jc.RemoteKind != nil {
		cfg.RemoteKind = RemoteKind(*jc.RemoteKind)
	}
	set(&cfg.ServerEndpointAddr, jc.ServerEndpointAddr)
	set(&cfg.S3Bucket, jc.S3Bucket)
	set(&cfg.S3Region, jc.S3Region)
	set(&cfg.S3BaseEndpoint, jc.S3BaseEndpoint)
	set(&cfg.S3AccessKey, jc.S3AccessKey)
	set(&cfg.S3SecretKey, jc.S3SecretKey)

	set(&cfg.BatchSize, jc.BatchSize)
	setDuration(&cfg.MaxWait, jc.MaxWait)
	setDuration(&cfg.MinFlushInterval, jc.MinFlushInterval)
	set(&cfg.MaxRequeues, jc.MaxRequeues)

	setDuration(&cfg.RetryBaseDelay, jc.RetryBaseDelay)
	setDuration(&cfg.RetryMaxDelay, jc.RetryMaxDelay)
	set(&cfg.RetryMaxAttempts, jc.RetryMaxAttempts)
	setDuration(&cfg.PushDeadline, jc.PushDeadline)

	setDuration(&cfg.ReconcileInterval, jc.ReconcileInterval)
	setDuration(&cfg.Retention, jc.Retention)

	setDuration(&cfg.MaxKeyAge, jc.MaxKeyAge)
	set(&cfg.GraceKeys, jc.GraceKeys)
	set(&cfg.EncryptGoalValues, jc.EncryptGoalValues)
	set(&cfg.KeystorePassphraseEnv, jc.KeystorePassphraseEnv)
	set(&cfg.KeystoreWorkFactor, jc.KeystoreWorkFactor)

	set(&cfg.LogFile, jc.LogFile)
	set(&cfg.LogMaxSizeMB, jc.LogMaxSizeMB)
	set(&cfg.LogMaxBackups, jc.LogMaxBackups)
	set(&cfg.Verbose, jc.Verbose)

	setDuration(&cfg.OnlineCheckInterval, jc.OnlineCheckInterval)
	return nil
}
