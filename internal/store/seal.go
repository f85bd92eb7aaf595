package store

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// ErrUnseal is returned for sealed values that fail authentication.
var ErrUnseal = errors.New("sealed value is corrupt or was sealed with another key")

// Sealer encrypts backend tokens at rest.
type Sealer struct {
	key [32]byte
}

// NewSealer derives the sealing key from master.
func NewSealer(master []byte) (*Sealer, error) {
	if len(master) < 16 {
		return nil, fmt.Errorf("master key too short: %d bytes", len(master))
	}
	s := &Sealer{}
	kdf := hkdf.New(sha256.New, master, nil, []byte("scanpoint backend token"))
	if _, err := io.ReadFull(kdf, s.key[:]); err != nil {
		return nil, fmt.Errorf("deriving sealing key: %w", err)
	}
	return s, nil
}

// Seal encrypts plaintext; the random nonce is prepended to the output.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &s.key), nil
}

// Open decrypts a value produced by Seal.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, ErrUnseal
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	out, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, ErrUnseal
	}
	return out, nil
}
