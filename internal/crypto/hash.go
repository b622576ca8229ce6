package crypto

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// DigestSize длина digest в hex-символах
const DigestSize = blake2b.Size256 * 2

// Digest возвращает hex-encoded BLAKE2b-256 от data.
// Используется для сравнения состояний документов и проверки снапшотов.
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// VerifyDigest проверяет, что digest соответствует data
func VerifyDigest(data []byte, digest string) error {
	if digest == "" {
		return fmt.Errorf("digest cannot be empty")
	}

	if len(digest) != DigestSize {
		return fmt.Errorf("invalid digest length %d", len(digest))
	}

	if subtle.ConstantTimeCompare([]byte(Digest(data)), []byte(digest)) != 1 {
		return fmt.Errorf("digest mismatch")
	}

	return nil
}
