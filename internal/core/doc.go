// Package core provides the vault session that sits between callers and the
// encrypted stores.
//
// A Session is either locked or unlocked:
//   - Unlock: fetch or create the salt, derive the key, hold it in memory
//   - Lock: wipe the key; waits for running operations
//   - Save/Load/Remove: encrypt-on-write and decrypt-on-read of JSON values
//   - ExportAll: decrypt every record into one JSON document
//
// Record operations fail with ErrStorageLocked while locked. A record that
// fails to decrypt is reported as missing by Load and as a placeholder by
// ExportAll, so one corrupted record never blocks the rest of the vault.
package core
