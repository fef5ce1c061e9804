// Package git reports whether vault files are exposed to an enclosing git
// repository.
//
// Checks performed:
//   - Whether the data directory is in .gitignore (should be)
//   - Whether records.db or keys.db are tracked (should not be)
//   - Whether plaintext exports are tracked or unignored (should not be)
package git
