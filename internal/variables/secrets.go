package variables

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/autoforge-project/autoforge/internal/aferrors"
)

// WithSecretKey installs the 32-byte pre-shared key used to seal variables
// marked IsSecret at the export() boundary. It is the Go-idiomatic
// reduction of the distilled tool's preshared-key Crypto helper: instead of
// a standalone encrypted-dictionary file format, sealing is applied inline
// to the single field that needs it (a variable's exported value).
func (s *Store) WithSecretKey(key [32]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secretKey = &key
}

// sealLocked encrypts plaintext with the store's secret key using
// NaCl secretbox, returning a base64 string embedding a fresh nonce.
// Caller must hold at least a read lock.
func (s *Store) sealLocked(plaintext string) (string, error) {
	if s.secretKey == nil {
		return "", aferrors.New(aferrors.KindUnknown, "no secret key configured for this store")
	}
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, s.secretKey)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Unseal reverses sealLocked, for callers (e.g. a restore path) that hold an
// opaque exported value and the same secret key.
func (s *Store) Unseal(sealed string) (string, error) {
	s.mu.RLock()
	key := s.secretKey
	s.mu.RUnlock()
	if key == nil {
		return "", aferrors.New(aferrors.KindUnknown, "no secret key configured for this store")
	}
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("decoding sealed value: %w", err)
	}
	if len(raw) < 24 {
		return "", aferrors.New(aferrors.KindParseError, "sealed value too short")
	}
	var nonce [24]byte
	copy(nonce[:], raw[:24])
	plain, ok := secretbox.Open(nil, raw[24:], &nonce, key)
	if !ok {
		return "", aferrors.New(aferrors.KindParseError, "failed to decrypt sealed value: invalid key or corrupted data")
	}
	return string(plain), nil
}
