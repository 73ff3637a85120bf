// Package cryptox implements at-rest encryption of goal record fields.
//
// # Blob format
//
// Every encrypted field is stored as
//
//	format(1) | nonce(24) | ciphertext+tag
//
// sealed with XChaCha20-Poly1305. The format byte is bound as associated
// data so a blob cannot be reinterpreted under a future layout.
//
// # Key lifecycle
//
// Keys are versioned by a counter persisted in the metadata table
// (crypto.active_version). RotateKey creates version N+1, keeps the
// GraceKeys most recent prior keys for decryption and deletes the rest from
// the keystore. Blobs do not name their key; Decrypt tries the active key
// first and then retained keys from newest to oldest.
//
// Owner ids are additionally indexed by a keyed BLAKE3 hash (see Indexer) so
// the store can look records up by owner without keeping the id in
// plaintext.
package cryptox
