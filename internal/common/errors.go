package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// ErrLocalPersistence means the local durable store rejected a read or
	// write. It is surfaced to the caller and never retried automatically.
	ErrLocalPersistence = errors.New("local persistence error")

	// Encryption errors. Writes never fall back to plaintext.
	ErrEncryption  = errors.New("encryption failed")
	ErrDecryption  = errors.New("decryption failed")
	ErrKeyNotFound = errors.New("key not found")

	// Remote errors. ErrUnavailable and ErrRemote are transient.
	ErrUnavailable = errors.New("remote unavailable")
	ErrRemote      = errors.New("remote error")

	// ErrUnauthorized means the session is not valid for the owner being
	// written. Not retried; the record stays dirty until re-authentication.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidation marks a malformed record, rejected locally before it
	// reaches the store or remotely by the goal store server.
	ErrValidation = errors.New("validation error")

	// Token errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
