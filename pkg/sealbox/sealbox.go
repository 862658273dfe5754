package sealbox

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

// ErrOpen reports a ciphertext that was truncated, tampered with or sealed under another key.
var ErrOpen = errors.New("sealbox: message could not be opened")

// Box seals short messages with XSalsa20-Poly1305 under a derived key.
type Box struct {
	key [keySize]byte
}

// New derives a box key from secret via HKDF-SHA256. The info label separates
// keys derived from the same secret for different purposes.
func New(secret []byte, info string) (*Box, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("sealbox: empty secret")
	}
	box := &Box{}
	reader := hkdf.New(sha256.New, secret, nil, []byte(info))
	if _, err := io.ReadFull(reader, box.key[:]); err != nil {
		return nil, fmt.Errorf("sealbox: derive key: %w", err)
	}
	return box, nil
}

// Seal returns nonce||ciphertext for plaintext.
func (b *Box) Seal(plaintext []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("sealbox: generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &b.key), nil
}

// Open reverses Seal.
func (b *Box) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, ErrOpen
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plaintext, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &b.key)
	if !ok {
		return nil, ErrOpen
	}
	return plaintext, nil
}
