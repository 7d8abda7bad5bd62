// Package code generates one-time codes and the keyed digests stored in
// their place.
package code

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"

	"golang.org/x/crypto/hkdf"

	"credify/internal/otp/models"
)

var codeSpace = big.NewInt(1_000_000)

const hkdfInfo = "credify otp digest v1"

// Generate returns a uniformly random six-digit code, zero padded.
func Generate() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", models.CodeLength, n.Int64()), nil
}

// Valid reports whether s has the shape of a code.
func Valid(s string) bool {
	if len(s) != models.CodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Hasher computes HMAC-SHA256 digests under a key derived from the master key.
type Hasher struct {
	key []byte
}

func NewHasher(masterKey []byte) (*Hasher, error) {
	if len(masterKey) < 32 {
		return nil, errors.New("otp hasher needs a 32-byte master key")
	}
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, masterKey, nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("derive otp key: %w", err)
	}
	return &Hasher{key: key}, nil
}

// Digest binds the code to the address it was sent to.
func (h *Hasher) Digest(email, code string) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(email))
	mac.Write([]byte{0})
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}
