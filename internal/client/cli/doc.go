// Package cli provides the interactive journal client.
//
// NewApp wires configuration, the local SQLite journal, the server client
// and the sync engine; App.Run resumes a stored session, starts the
// periodic push and blocks in the REPL until the user exits. The journal is
// fully usable signed out; signing in restores from the cloud once.
package cli
