// Package common contains shared constants and sentinel errors used across
// CloudVault components.
package common

// AccessTokenHeaderName is the HTTP header carrying the bearer access token
// issued by the identity provider.
const AccessTokenHeaderName = "Authorization"

// DefaultStorageLimit is the quota assigned to newly provisioned users (15 MiB).
const DefaultStorageLimit int64 = 15_728_640

// UserFilesPrefix is the root of every per-user blob key.
const UserFilesPrefix = "user-files"
