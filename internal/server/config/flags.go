package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/goalkeeper/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-m string   storage: postgres or memory
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-l int      access token validity, minutes
//	-t string   print an access token for this owner and exit
//
// Arguments the server does not own (such as -c) are filtered out with
// flagx.FilterArgs before parsing.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-m", "-d", "-s", "-l", "-t"})

	fs := flag.NewFlagSet("goalkeeper-server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	storage := fs.String("m", string(config.Storage), "storage backend (postgres|memory)")
	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.IssueTokenFor, "t", config.IssueTokenFor, "issue an access token for owner and exit")

	validity := fs.Int("l", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	config.Storage = StorageKind(*storage)
	config.AccessTokenValidityDuration = time.Duration(*validity) * time.Minute
	return nil
}
