// Package secret encrypts and decrypts store connection parameters.
//
// An encrypted value is "crypt1:" followed by the standard base64 encoding of
//
//	[version 0x01] [24 byte XChaCha20-Poly1305 nonce] [ciphertext + tag]
//
// The key is derived from a passphrase with HKDF-SHA256.
package secret

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	apperrors "github.com/geocatalog/pkg/errors"
)

// Prefix marks an encrypted value.
const Prefix = "crypt1:"

const version byte = 0x01

var hkdfInfo = []byte("geocatalog.store.credentials.v1")

// Decrypter decrypts connection parameter values.
type Decrypter interface {
	Decrypt(value string) (string, error)
}

// IsEncrypted reports whether value carries the encryption prefix.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, Prefix)
}

// Box encrypts and decrypts values with a key derived from a passphrase.
type Box struct {
	key []byte
}

// NewBox derives the key for passphrase. An empty passphrase is rejected.
func NewBox(passphrase string) (*Box, error) {
	if passphrase == "" {
		return nil, apperrors.New(apperrors.CodeConfigError, "secret key is empty")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(passphrase), nil, hkdfInfo), key); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigError, "failed to derive secret key", err)
	}
	return &Box{key: key}, nil
}

// Encrypt returns the prefixed encrypted form of plaintext.
func (b *Box) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return "", fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}
	out := make([]byte, 1+chacha20poly1305.NonceSizeX, 1+chacha20poly1305.NonceSizeX+len(plaintext)+aead.Overhead())
	out[0] = version
	if _, err := io.ReadFull(rand.Reader, out[1:]); err != nil {
		return "", fmt.Errorf("generating random nonce: %w", err)
	}
	out = aead.Seal(out, out[1:], []byte(plaintext), []byte{version})
	return Prefix + base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt returns the plaintext of an encrypted value. Values without the
// prefix are returned unchanged.
func (b *Box) Decrypt(value string) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}
	blob, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, Prefix))
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeDecryptError, "encrypted value is not base64", err)
	}
	if len(blob) < 1+chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return "", apperrors.Newf(apperrors.CodeDecryptError, "encrypted value is %d bytes, too short", len(blob))
	}
	if blob[0] != version {
		return "", apperrors.Newf(apperrors.CodeDecryptError, "encrypted value version %d is not supported", blob[0])
	}
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeDecryptError, "creating XChaCha20-Poly1305 cipher", err)
	}
	nonce := blob[1 : 1+chacha20poly1305.NonceSizeX]
	plaintext, err := aead.Open(nil, nonce, blob[1+chacha20poly1305.NonceSizeX:], blob[:1])
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeDecryptError, "wrong key or tampered value", err)
	}
	return string(plaintext), nil
}

// NoKey fails every encrypted value. It is used when no secret key is configured.
type NoKey struct{}

func (NoKey) Decrypt(value string) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}
	return "", apperrors.New(apperrors.CodeDecryptError, "no secret key configured")
}
