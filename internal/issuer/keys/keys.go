// Package keys generates issuer keypairs and wraps private keys under the
// process master key.
package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Algorithm tags the at-rest encryption scheme stored next to each key.
const Algorithm = "aes-256-gcm"

const masterKeySize = 32

var (
	// ErrDecryption covers malformed ciphertext or IV and master key changes.
	ErrDecryption = errors.New("private key decryption failed")
	// ErrInvalidMasterKey is a startup configuration error.
	ErrInvalidMasterKey = errors.New("master key must decode to 32 bytes")
)

// MasterKey is the process-wide key-encryption key. It is passed explicitly
// to whatever needs it; there is no package-level copy.
type MasterKey struct {
	b [masterKeySize]byte
}

// ParseMasterKey accepts a 32-byte key encoded as hex (64 chars) or
// standard/URL base64.
func ParseMasterKey(encoded string) (MasterKey, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return MasterKey{}, fmt.Errorf("%w: empty", ErrInvalidMasterKey)
	}

	var raw []byte
	if len(encoded) == 2*masterKeySize {
		if b, err := hex.DecodeString(encoded); err == nil {
			raw = b
		}
	}
	if raw == nil {
		for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
			if b, err := enc.DecodeString(encoded); err == nil {
				raw = b
				break
			}
		}
	}
	if len(raw) != masterKeySize {
		return MasterKey{}, fmt.Errorf("%w: got %d bytes", ErrInvalidMasterKey, len(raw))
	}
	return NewMasterKey(raw)
}

// NewMasterKey wraps raw key bytes.
func NewMasterKey(raw []byte) (MasterKey, error) {
	if len(raw) != masterKeySize {
		return MasterKey{}, fmt.Errorf("%w: got %d bytes", ErrInvalidMasterKey, len(raw))
	}
	var mk MasterKey
	copy(mk.b[:], raw)
	return mk, nil
}

// Bytes returns a copy of the key material.
func (m MasterKey) Bytes() []byte {
	out := make([]byte, masterKeySize)
	copy(out, m.b[:])
	return out
}

// IsZero reports whether the key was never initialized.
func (m MasterKey) IsZero() bool {
	return m.b == [masterKeySize]byte{}
}

// GenerateKeypair returns an EC P-256 keypair as SPKI and PKCS#8 PEM.
func GenerateKeypair() (publicPEM, privatePEM string, err error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate P-256 key: %w", err)
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return "", "", fmt.Errorf("marshal public key: %w", err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", "", fmt.Errorf("marshal private key: %w", err)
	}

	publicPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}))
	privatePEM = string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER}))
	return publicPEM, privatePEM, nil
}

// EncryptPrivateKey seals privatePEM with AES-256-GCM. The nonce is returned
// as the IV; both outputs are hex.
func EncryptPrivateKey(privatePEM string, mk MasterKey) (ciphertextHex, ivHex string, err error) {
	if mk.IsZero() {
		return "", "", ErrInvalidMasterKey
	}
	gcm, err := newGCM(mk)
	if err != nil {
		return "", "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", "", fmt.Errorf("generate iv: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, []byte(privatePEM), nil)
	return hex.EncodeToString(sealed), hex.EncodeToString(nonce), nil
}

// DecryptPrivateKey reverses EncryptPrivateKey. Every failure is reported as
// ErrDecryption so callers cannot distinguish the cause.
func DecryptPrivateKey(ciphertextHex, ivHex string, mk MasterKey) (string, error) {
	gcm, err := newGCM(mk)
	if err != nil {
		return "", ErrDecryption
	}

	nonce, err := hex.DecodeString(ivHex)
	if err != nil || len(nonce) != gcm.NonceSize() {
		return "", ErrDecryption
	}
	sealed, err := hex.DecodeString(ciphertextHex)
	if err != nil || len(sealed) < gcm.Overhead() {
		return "", ErrDecryption
	}

	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryption
	}
	return string(plain), nil
}

func newGCM(mk MasterKey) (cipher.AEAD, error) {
	block, err := aes.NewCipher(mk.b[:])
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
