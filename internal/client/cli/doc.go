// Package cli provides the goalkeeper command-line client.
//
// Every command builds an app.App from the configuration (defaults, JSON
// file, flags), does its work and closes the App again. The run command is
// the exception: it starts the sync coordinator, the reconciliation worker
// and the online watcher and keeps them running until it is interrupted.
//
// Commands:
//   - save / current / history / dirty: write and inspect goal records
//   - sync / reconcile / purge / rotate-key / delete-owner: maintenance
//   - login / logout / status: sessions and remote reachability
//   - run: background synchronization
package cli
