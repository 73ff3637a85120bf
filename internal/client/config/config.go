package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

type RemoteKind string

const (
	RemoteGRPC RemoteKind = "grpc"
	RemoteS3   RemoteKind = "s3"
)

// Config holds runtime settings for the goalkeeper client.
//
// Units: every time.Duration field accepts strings like "5s" or "720h" in
// JSON and on the command line.
type Config struct {
	DatabasePath string

	RemoteKind         RemoteKind
	ServerEndpointAddr string
	S3Bucket           string
	S3Region           string
	S3BaseEndpoint     string
	S3AccessKey        string
	S3SecretKey        string

	BatchSize        int
	MaxWait          time.Duration
	MinFlushInterval time.Duration
	MaxRequeues      int

	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
	RetryMaxAttempts int
	PushDeadline     time.Duration

	ReconcileInterval time.Duration
	Retention         time.Duration

	MaxKeyAge             time.Duration
	GraceKeys             int
	EncryptGoalValues     bool
	KeystorePassphraseEnv string
	KeystoreWorkFactor    int

	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	Verbose       bool

	OnlineCheckInterval time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DatabasePath = "goals.db"

	c.RemoteKind = RemoteGRPC
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.S3Region = "us-east-1"

	c.BatchSize = 10
	c.MaxWait = 5 * time.Second
	c.MinFlushInterval = 30 * time.Second
	c.MaxRequeues = 3

	c.RetryBaseDelay = time.Second
	c.RetryMaxDelay = 8 * time.Second
	c.RetryMaxAttempts = 3
	c.PushDeadline = 30 * time.Second

	c.ReconcileInterval = time.Hour
	c.Retention = 90 * 24 * time.Hour

	c.MaxKeyAge = 30 * 24 * time.Hour
	c.GraceKeys = 2
	c.EncryptGoalValues = false
	c.KeystorePassphraseEnv = "GOALKEEPER_PASSPHRASE"
	c.KeystoreWorkFactor = 18

	c.LogFile = "goalkeeper.log"
	c.LogMaxSizeMB = 10
	c.LogMaxBackups = 3

	c.OnlineCheckInterval = 3 * time.Second
}

// Validate reports settings the client cannot start with.
func (c *Config) Validate() error {
	switch c.RemoteKind {
	case RemoteGRPC:
		if c.ServerEndpointAddr == "" {
			return fmt.Errorf("server endpoint address is required for remote %q", c.RemoteKind)
		}
	case RemoteS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("s3 bucket is required for remote %q", c.RemoteKind)
		}
	default:
		return fmt.Errorf("unknown remote kind %q", c.RemoteKind)
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database path is required")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.RetryMaxAttempts <= 0 {
		return fmt.Errorf("retry max attempts must be positive, got %d", c.RetryMaxAttempts)
	}
	if c.GraceKeys < 1 {
		return fmt.Errorf("grace keys must be at least 1, got %d", c.GraceKeys)
	}
	return nil
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// the JSON file named by --config (if any) and the flags explicitly set in
// fs. Later sources take precedence over earlier ones.
func LoadConfig(fs *pflag.FlagSet) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	path, err := fs.GetString(flagConfig)
	if err != nil {
		return nil, err
	}
	if err := parseJson(cfg, path); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, fs); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
