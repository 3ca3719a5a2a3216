// Package repositories implements SQLite persistence for sessions and stored credentials.
//
// Key Implementations:
//   - [SessionRepository] : Session CRUD with soft deletes, favorites and transactional import
//   - [CredentialRepository] : Durable key/value store used by the token cache
//
// Sequence numbers provide stable ordering independent of UUIDs and timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
