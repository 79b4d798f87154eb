// Package cloudsync mirrors the local journal to the remote document store.
//
// The local database stays authoritative. Every mutation leaves the row
// pending; the Pusher writes it with a merge write and only then marks it
// synced (or, for deletions, hard-deletes it). The Coordinator sweeps all
// pending rows, the Restorer reconciles local and remote state after
// sign-in, and State exposes what the engine is doing.
//
// No public operation returns an error to the UI: outcomes are reported as
// BatchResult and RestoreResult values and failures are retried later.
package cloudsync
