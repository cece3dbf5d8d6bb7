package store

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

// saltKey holds the per-store scrypt salt. It is never encrypted or listed.
const saltKey = "_meta/salt"

var ErrDecrypt = errors.New("failed to decrypt value")

// EncryptedBackend seals every value with XChaCha20-Poly1305 before handing
// it to the wrapped backend. The key is bound as associated data, so a value
// copied under another key fails to open.
type EncryptedBackend struct {
	inner Backend
	aead  cipher.AEAD
}

// NewEncryptedBackend derives the cipher key from passphrase with scrypt,
// creating the store's salt on first use.
func NewEncryptedBackend(ctx context.Context, inner Backend, passphrase string) (*EncryptedBackend, error) {
	if passphrase == "" {
		return nil, errors.New("encryption requires a passphrase")
	}
	salt, err := inner.Get(ctx, saltKey)
	if errors.Is(err, ErrNotFound) {
		salt = make([]byte, 16)
		if _, err := rand.Read(salt); err != nil {
			return nil, err
		}
		if err := inner.Put(ctx, saltKey, salt); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	key, err := scrypt.Key([]byte(passphrase), salt, 1<<15, 8, 1, chacha20poly1305.KeySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &EncryptedBackend{inner: inner, aead: aead}, nil
}

func (e *EncryptedBackend) Get(ctx context.Context, key string) ([]byte, error) {
	sealed, err := e.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	n := e.aead.NonceSize()
	if len(sealed) < n {
		return nil, fmt.Errorf("%w: %s: value too short", ErrDecrypt, key)
	}
	plain, err := e.aead.Open(nil, sealed[:n], sealed[n:], []byte(key))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDecrypt, key)
	}
	return plain, nil
}

func (e *EncryptedBackend) Put(ctx context.Context, key string, value []byte) error {
	nonce := make([]byte, e.aead.NonceSize(), e.aead.NonceSize()+len(value)+e.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return err
	}
	return e.inner.Put(ctx, key, e.aead.Seal(nonce, nonce, value, []byte(key)))
}

func (e *EncryptedBackend) Delete(ctx context.Context, key string) error {
	return e.inner.Delete(ctx, key)
}

func (e *EncryptedBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := e.inner.Keys(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := keys[:0]
	for _, k := range keys {
		if !strings.HasPrefix(k, "_meta/") {
			out = append(out, k)
		}
	}
	return out, nil
}

func (e *EncryptedBackend) Close() error {
	return e.inner.Close()
}
