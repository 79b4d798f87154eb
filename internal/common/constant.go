// Package common contains shared constants and sentinel errors used across
// GophJournal components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// ClientVersion is reported in the remote sync metadata document.
const ClientVersion = "1.4.0"
