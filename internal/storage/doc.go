// Package storage provides the record store behind a coachvault session.
//
// A RecordStore keeps opaque EncryptedRecord values keyed by
// "<collection>:<id>". It never sees plaintext or keys; encrypting before Put
// and decrypting after Get is the session's job.
//
// Two implementations are provided:
//   - BoltStore: durable BBolt file, opened lazily on first use
//   - MemoryStore: map-backed, for tests and throwaway sessions
//
// The BBolt file uses two buckets:
//   - meta: format version, created and modified timestamps
//   - records: JSON {"ciphertext": base64, "iv": base64} per record key
//
// BBolt provides ACID transactions, file locking, and corruption detection.
package storage
