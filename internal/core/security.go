// AngelaMos | 2026
// security.go

package core

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

var ErrMalformedHash = errors.New("malformed password hash")

const (
	saltLength        = 16
	verificationBytes = 32
)

type argonParams struct {
	memory  uint32
	time    uint32
	threads uint8
	keyLen  uint32
}

var passwordParams = argonParams{
	memory:  64 * 1024,
	time:    1,
	threads: 4,
	keyLen:  32,
}

func (p argonParams) derive(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, p.keyLen)
}

// storedHash is the PHC form: $argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>.
type storedHash struct {
	params argonParams
	salt   []byte
	key    []byte
}

func (h storedHash) String() string {
	enc := base64.RawStdEncoding
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.memory,
		h.params.time,
		h.params.threads,
		enc.EncodeToString(h.salt),
		enc.EncodeToString(h.key),
	)
}

func (h storedHash) outdated() bool {
	return h.params != passwordParams
}

func parseStoredHash(encoded string) (storedHash, error) {
	var h storedHash

	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" {
		return h, ErrMalformedHash
	}
	if fields[1] != "argon2id" {
		return h, fmt.Errorf("%w: algorithm %q", ErrMalformedHash, fields[1])
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil {
		return h, fmt.Errorf("%w: version: %w", ErrMalformedHash, err)
	}
	if version != argon2.Version {
		return h, fmt.Errorf("%w: version %d", ErrMalformedHash, version)
	}

	if _, err := fmt.Sscanf(
		fields[3],
		"m=%d,t=%d,p=%d",
		&h.params.memory,
		&h.params.time,
		&h.params.threads,
	); err != nil {
		return h, fmt.Errorf("%w: params: %w", ErrMalformedHash, err)
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(fields[4]); err != nil {
		return h, fmt.Errorf("%w: salt: %w", ErrMalformedHash, err)
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(fields[5]); err != nil {
		return h, fmt.Errorf("%w: key: %w", ErrMalformedHash, err)
	}

	//nolint:gosec // G115: argon2id keys are 32 bytes
	h.params.keyLen = uint32(len(h.key))
	return h, nil
}

func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	return storedHash{
		params: passwordParams,
		salt:   salt,
		key:    passwordParams.derive(password, salt),
	}.String(), nil
}

func VerifyPassword(password, encoded string) (bool, error) {
	h, err := parseStoredHash(encoded)
	if err != nil {
		return false, err
	}
	return h.matches(password), nil
}

func (h storedHash) matches(password string) bool {
	return subtle.ConstantTimeCompare(h.key, h.params.derive(password, h.salt)) == 1
}

var placeholderHash = sync.OnceValue(func() storedHash {
	salt := make([]byte, saltLength)
	return storedHash{
		params: passwordParams,
		salt:   salt,
		key:    passwordParams.derive("placeholder", salt),
	}
})

// VerifyPasswordTimingSafe spends one argon2 derivation even when encoded is
// nil or empty, so unknown emails cost the same as wrong passwords. On a
// match against outdated params it also returns a replacement hash.
func VerifyPasswordTimingSafe(
	password string,
	encoded *string,
) (bool, string, error) {
	if encoded == nil || *encoded == "" {
		placeholderHash().matches(password)
		return false, "", nil
	}

	h, err := parseStoredHash(*encoded)
	if err != nil {
		placeholderHash().matches(password)
		return false, "", err
	}

	if !h.matches(password) {
		return false, "", nil
	}

	if !h.outdated() {
		return true, "", nil
	}

	rehashed, err := HashPassword(password)
	if err != nil {
		//nolint:nilerr // the password matched; a failed upgrade waits for the next sign-in
		return true, "", nil
	}
	return true, rehashed, nil
}

// GenerateVerificationToken returns a URL-safe random token. Only its
// HashToken digest is persisted.
func GenerateVerificationToken() (string, error) {
	buf := make([]byte, verificationBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate verification token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
