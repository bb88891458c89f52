package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

const (
	keySize   = 32
	nonceSize = 12
	tagSize   = 16

	// Fixed derivation salt: every deployment sharing a CHAT_SECRET must
	// derive the same key, or stored tokens become undecryptable.
	derivationSalt = "nchekwa-chat-salt"
)

var (
	ErrMalformedToken = errors.New("malformed cipher token")
	ErrAuthFailure    = errors.New("cipher token authentication failed")
)

// EncryptionError wraps a decode failure with its kind so callers can fall
// back to raw rendering without inspecting error strings.
type EncryptionError struct {
	Kind error
	msg  string
}

func (e *EncryptionError) Error() string { return e.msg }

func (e *EncryptionError) Unwrap() error { return e.Kind }

func malformed(format string, args ...any) error {
	return &EncryptionError{Kind: ErrMalformedToken, msg: fmt.Sprintf(format, args...)}
}

func authFailure(format string, args ...any) error {
	return &EncryptionError{Kind: ErrAuthFailure, msg: fmt.Sprintf(format, args...)}
}

// Codec encrypts and decrypts message bodies with a single application-wide
// AES-256-GCM key. Tokens are framed "iv:tag:ciphertext", all hex.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec derives the key from secret via scrypt and builds the codec.
func NewCodec(secret string) (*Codec, error) {
	key, err := scrypt.Key([]byte(secret), []byte(derivationSalt), 1<<15, 8, 1, keySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// Encode encrypts plaintext under a fresh random nonce and returns the framed
// token.
func (c *Codec) Encode(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(ciphertext), nil
}

// Decode reverses Encode. It always returns a tagged *EncryptionError on
// failure; it never panics past this boundary.
func (c *Codec) Decode(token string) (string, error) {
	parts := strings.Split(token, ":")
	if len(parts) != 3 {
		return "", malformed("expected 3 token parts, got %d", len(parts))
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil || len(nonce) != nonceSize {
		return "", malformed("invalid iv")
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != tagSize {
		return "", malformed("invalid auth tag")
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", malformed("invalid ciphertext")
	}

	plaintext, err := c.aead.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return "", authFailure("decrypt failed")
	}
	return string(plaintext), nil
}
