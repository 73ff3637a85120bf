package config

import "github.com/spf13/pflag"

const (
	flagConfig              = "config"
	flagDatabase            = "db"
	flagRemote              = "remote"
	flagServer              = "server"
	flagS3Bucket            = "s3-bucket"
	flagS3Region            = "s3-region"
	flagS3Endpoint          = "s3-endpoint"
	flagS3AccessKey         = "s3-access-key"
	flagS3SecretKey         = "s3-secret-key"
	flagBatchSize           = "batch-size"
	flagMaxWait             = "max-wait"
	flagMinFlushInterval    = "min-flush-interval"
	flagMaxRequeues         = "max-requeues"
	flagRetryBaseDelay      = "retry-base-delay"
	flagRetryMaxDelay       = "retry-max-delay"
	flagRetryMaxAttempts    = "retry-max-attempts"
	flagPushDeadline        = "push-deadline"
	flagReconcileInterval   = "reconcile-interval"
	flagRetention           = "retention"
	flagMaxKeyAge           = "max-key-age"
	flagGraceKeys           = "grace-keys"
	flagEncryptValues       = "encrypt-values"
	flagPassphraseEnv       = "passphrase-env"
	flagWorkFactor          = "keystore-work-factor"
	flagLogFile             = "log-file"
	flagLogMaxSize          = "log-max-size"
	flagLogMaxBackups       = "log-max-backups"
	flagVerbose             = "verbose"
	flagOnlineCheckInterval = "online-check-interval"
)

// RegisterFlags declares the client flags on fs. The defaults shown in help
// come from LoadDefaults; only flags the user actually sets override the
// JSON file.
func RegisterFlags(fs *pflag.FlagSet) {
	var d Config
	d.LoadDefaults()

	fs.StringP(flagConfig, "c", "", "path to JSON config file")
	fs.String(flagDatabase, d.DatabasePath, "path to the local SQLite database")

	fs.String(flagRemote, string(d.RemoteKind), "remote store kind: grpc or s3")
	fs.StringP(flagServer, "a", d.ServerEndpointAddr, "address and port of the goal store server")
	fs.String(flagS3Bucket, d.S3Bucket, "S3 bucket holding goal documents")
	fs.String(flagS3Region, d.S3Region, "S3 region")
	fs.String(flagS3Endpoint, d.S3BaseEndpoint, "custom S3 endpoint (MinIO, LocalStack)")
	fs.String(flagS3AccessKey, d.S3AccessKey, "S3 access key (default credential chain if empty)")
	fs.String(flagS3SecretKey, d.S3SecretKey, "S3 secret key")

	fs.Int(flagBatchSize, d.BatchSize, "records per sync flush")
	fs.Duration(flagMaxWait, d.MaxWait, "longest time a record waits for a batch to fill")
	fs.Duration(flagMinFlushInterval, d.MinFlushInterval, "minimum time between two flushes")
	fs.Int(flagMaxRequeues, d.MaxRequeues, "requeues of a transiently failed record before reconciliation takes over")

	fs.Duration(flagRetryBaseDelay, d.RetryBaseDelay, "first retry delay")
	fs.Duration(flagRetryMaxDelay, d.RetryMaxDelay, "retry delay cap")
	fs.Int(flagRetryMaxAttempts, d.RetryMaxAttempts, "batch attempts before per-record fallback")
	fs.Duration(flagPushDeadline, d.PushDeadline, "overall deadline of one batch push")

	fs.Duration(flagReconcileInterval, d.ReconcileInterval, "reconciliation interval")
	fs.Duration(flagRetention, d.Retention, "history retention")

	fs.Duration(flagMaxKeyAge, d.MaxKeyAge, "encryption key age that triggers rotation")
	fs.Int(flagGraceKeys, d.GraceKeys, "retired keys kept for decryption")
	fs.Bool(flagEncryptValues, d.EncryptGoalValues, "encrypt goal values at rest")
	fs.String(flagPassphraseEnv, d.KeystorePassphraseEnv, "environment variable holding the keystore passphrase")
	fs.Int(flagWorkFactor, d.KeystoreWorkFactor, "scrypt work factor for sealing keys")

	fs.String(flagLogFile, d.LogFile, "log file path")
	fs.Int(flagLogMaxSize, d.LogMaxSizeMB, "log file size in megabytes before rotation")
	fs.Int(flagLogMaxBackups, d.LogMaxBackups, "rotated log files to keep")
	fs.BoolP(flagVerbose, "v", d.Verbose, "debug logging")

	fs.DurationP(flagOnlineCheckInterval, "i", d.OnlineCheckInterval, "online check interval")
}

// parseFlags copies every flag the user set on fs into cfg.
func parseFlags(cfg *Config, fs *pflag.FlagSet) error {
	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		err = applyFlag(cfg, fs, f.Name)
	})
	return err
}

func applyFlag(cfg *Config, fs *pflag.FlagSet, name string) error {
	var err error
	switch name {
	case flagDatabase:
		cfg.DatabasePath, err = fs.GetString(name)
	case flagRemote:
		var s string
		s, err = fs.GetString(name)
		cfg.RemoteKind = RemoteKind(s)
	case flagServer:
		cfg.ServerEndpointAddr, err = fs.GetString(name)
	case flagS3Bucket:
		cfg.S3Bucket, err = fs.GetString(name)
	case flagS3Region:
		cfg.S3Region, err = fs.GetString(name)
	case flagS3Endpoint:
		cfg.S3BaseEndpoint, err = fs.GetString(name)
	case flagS3AccessKey:
		cfg.S3AccessKey, err = fs.GetString(name)
	case flagS3SecretKey:
		cfg.S3SecretKey, err = fs.GetString(name)
	case flagBatchSize:
		cfg.BatchSize, err = fs.GetInt(name)
	case flagMaxWait:
		cfg.MaxWait, err = fs.GetDuration(name)
	case flagMinFlushInterval:
		cfg.MinFlushInterval, err = fs.GetDuration(name)
	case flagMaxRequeues:
		cfg.MaxRequeues, err = fs.GetInt(name)
	case flagRetryBaseDelay:
		cfg.RetryBaseDelay, err = fs.GetDuration(name)
	case flagRetryMaxDelay:
		cfg.RetryMaxDelay, err = fs.GetDuration(name)
	case flagRetryMaxAttempts:
		cfg.RetryMaxAttempts, err = fs.GetInt(name)
	case flagPushDeadline:
		cfg.PushDeadline, err = fs.GetDuration(name)
	case flagReconcileInterval:
		cfg.ReconcileInterval, err = fs.GetDuration(name)
	case flagRetention:
		cfg.Retention, err = fs.GetDuration(name)
	case flagMaxKeyAge:
		cfg.MaxKeyAge, err = fs.GetDuration(name)
	case flagGraceKeys:
		cfg.GraceKeys, err = fs.GetInt(name)
	case flagEncryptValues:
		cfg.EncryptGoalValues, err = fs.GetBool(name)
	case flagPassphraseEnv:
		cfg.KeystorePassphraseEnv, err = fs.GetString(name)
	case flagWorkFactor:
		cfg.KeystoreWorkFactor, err = fs.GetInt(name)
	case flagLogFile:
		cfg.LogFile, err = fs.GetString(name)
	case flagLogMaxSize:
		cfg.LogMaxSizeMB, err = fs.GetInt(name)
	case flagLogMaxBackups:
		cfg.LogMaxBackups, err = fs.GetInt(name)
	case flagVerbose:
		cfg.Verbose, err = fs.GetBool(name)
	case flagOnlineCheckInterval:
		cfg.OnlineCheckInterval, err = fs.GetDuration(name)
	}
	return err
}
