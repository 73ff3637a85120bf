// Package services contains the client's goal record store: the only
// component that touches goal rows. Every record passes through the
// encryption service on its way in and out of SQLite.
package services
