// Package metadata is a small key/value table for device-local state: the
// session tokens, the signed-in user and the device id.
package metadata

import (
	"context"
)

// Well-known keys.
const (
	KeyDeviceID     = "device_id"
	KeyUserID       = "user_id"
	KeyUsername     = "username"
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyLastPushAt   = "last_push_at"
)

type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error

	GetString(ctx context.Context, key string) (string, error)
	SetString(ctx context.Context, key, value string) error
}
