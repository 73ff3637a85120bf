// Package config loads runtime configuration for the goalkeeper client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or --config.
//  3. Command-line flags the user explicitly set, which override earlier
//     values.
//
// # JSON schema
//
// Durations use timex.Duration, so values can be either strings like "5s"
// or integer nanoseconds. Keys that are absent keep their previous value:
//
//	{
//	  "database_path": "goals.db",
//	  "remote_kind": "grpc",
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "batch_size": 10,
//	  "max_wait": "5s",
//	  "min_flush_interval": "30s",
//	  "reconcile_interval": "1h",
//	  "retention": "2160h",
//	  "encrypt_goal_values": true,
//	  "online_check_interval": "3s"
//	}
//
// The keystore passphrase itself is never part of the configuration; only
// the name of the environment variable holding it is.
package config
