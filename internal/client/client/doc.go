// Package client contains the remote transports of the goalkeeper client
// and the local database bootstrap.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic contract (see the Client interface) for writing
//     goal documents to the remote authoritative store: Ping, PushBatch and
//     Push.
//  2. GRPCClient, which talks to the bundled goal store server, passes the
//     owner's access token in the access_token metadata header and maps
//     gRPC status codes to the sentinels in internal/common.
//  3. S3Client, which stores one JSON object per record in a bucket and
//     resolves concurrent writers by last updated time.
//  4. InitDatabase / RunMigrations, which open the SQLite database and apply
//     the embedded goose migrations.
//
// # Error Handling
//
// Transport failures are reported as common.ErrUnavailable (worth retrying),
// common.ErrUnauthorized (needs a new token), common.ErrValidation (the
// document itself was refused) or common.ErrRemote.
package client
