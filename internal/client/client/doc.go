// Package client talks to the GophJournal server.
//
// GRPCClient implements the remote document store (docstore.Store) and the
// media store used by the sync engine, plus the account calls used by the
// auth service. An interceptor attaches the access token to every
// authenticated call and transparently refreshes it once when the server
// reports it expired; rotated tokens are handed to a TokenSink so they
// survive a restart.
//
// gRPC status codes are mapped to the sentinel errors in internal/common.
package client
