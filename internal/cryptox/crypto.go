// Package cryptox holds the hashing helpers CloudVault needs: share-link
// password hashing and content digests.
package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"

	"github.com/dmitrijs2005/cloudvault/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	saltLen = 16
	keyLen  = 32
)

// ErrEmptyPassword is returned by HashPassword for an empty input.
var ErrEmptyPassword = errors.New("empty password")

func deriveKey(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, keyLen)
}

// HashPassword derives an argon2id hash with a fresh random salt.
func HashPassword(password string) (hash, salt []byte, err error) {
	if password == "" {
		return nil, nil, ErrEmptyPassword
	}
	salt = common.GenerateRandByteArray(saltLen)

	pw := []byte(password)
	defer common.WipeByteArray(pw)

	return deriveKey(pw, salt), salt, nil
}

// VerifyPassword recomputes the hash and compares in constant time.
func VerifyPassword(password string, hash, salt []byte) bool {
	if len(hash) == 0 || len(salt) == 0 {
		return false
	}
	pw := []byte(password)
	defer common.WipeByteArray(pw)

	return subtle.ConstantTimeCompare(deriveKey(pw, salt), hash) == 1
}

// SHA256Hex returns the lowercase hex SHA-256 digest of data.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
