package krypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	// SaltLengthBytes is the enforced salt length in bytes.
	SaltLengthBytes = 16
	// DigestLengthBytes is the length of every digest produced by Hash.
	DigestLengthBytes = 32
	// FingerprintBytes is how many leading digest bytes a fingerprint shows.
	FingerprintBytes = 3

	// MaxTime and MaxMemoryKiB bound the cost parameters accepted from a store
	// file or configuration.
	MaxTime      = 64
	MaxMemoryKiB = 1 << 20 // 1 GiB
)

// Algorithm identifies the password hashing primitive recorded next to a digest.
type Algorithm uint8

const (
	// AlgorithmArgon2id is Argon2id as implemented by golang.org/x/crypto/argon2.
	AlgorithmArgon2id Algorithm = 1
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmArgon2id:
		return "argon2id"
	default:
		return fmt.Sprintf("algorithm(%d)", uint8(a))
	}
}

// ErrHashing reports that the hashing primitive rejected its input.
var ErrHashing = errors.New("hashing failed")

// Params captures tunable parameters for a password hash.
type Params struct {
	Algorithm Algorithm
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
}

// DefaultParams returns the parameters used for new hashes.
func DefaultParams() Params {
	return Params{
		Algorithm: AlgorithmArgon2id,
		Time:      3,
		MemoryKiB: 64 * 1024,
		Threads:   1,
	}
}

// Validate reports whether p can be handed to the hashing primitive.
func (p Params) Validate() error {
	if p.Algorithm != AlgorithmArgon2id {
		return fmt.Errorf("%w: unsupported algorithm %s", ErrHashing, p.Algorithm)
	}
	if p.Time == 0 {
		return fmt.Errorf("%w: time parameter must be positive", ErrHashing)
	}
	if p.Time > MaxTime {
		return fmt.Errorf("%w: time parameter %d exceeds %d", ErrHashing, p.Time, MaxTime)
	}
	if p.Threads == 0 {
		return fmt.Errorf("%w: thread count must be positive", ErrHashing)
	}
	if p.MemoryKiB > MaxMemoryKiB {
		return fmt.Errorf("%w: memory %d KiB exceeds %d KiB", ErrHashing, p.MemoryKiB, MaxMemoryKiB)
	}
	// argon2 silently raises memory below 8*threads; refuse instead so stored params stay honest.
	if p.MemoryKiB < 8*uint32(p.Threads) {
		return fmt.Errorf("%w: memory must be at least %d KiB", ErrHashing, 8*uint32(p.Threads))
	}
	return nil
}

// NewRandomSalt returns a cryptographically secure random salt of SaltLengthBytes.
func NewRandomSalt() ([]byte, error) {
	salt := make([]byte, SaltLengthBytes)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// Hash derives the digest of password under salt using p.
func Hash(password string, salt []byte, p Params) ([]byte, error) {
	if len(salt) == 0 {
		return nil, fmt.Errorf("%w: salt is required", ErrHashing)
	}
	if len(salt) != SaltLengthBytes {
		return nil, fmt.Errorf("%w: salt must be %d bytes", ErrHashing, SaltLengthBytes)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	digest := argon2.IDKey([]byte(password), salt, p.Time, p.MemoryKiB, p.Threads, DigestLengthBytes)
	if len(digest) != DigestLengthBytes {
		return nil, fmt.Errorf("%w: derived digest has unexpected length %d", ErrHashing, len(digest))
	}
	return digest, nil
}

// Verify recomputes the digest of password and compares it to expected in constant time.
func Verify(password string, salt, expected []byte, p Params) (bool, error) {
	digest, err := Hash(password, salt, p)
	if err != nil {
		return false, err
	}
	defer zeroize(digest)
	return subtle.ConstantTimeCompare(digest, expected) == 1, nil
}

// Fingerprint returns the short hex prefix of Hash(password, salt) shown for self-checking.
// It is a display value only and must never be compared against anything stored.
func Fingerprint(password string, salt []byte, p Params) (string, error) {
	digest, err := Hash(password, salt, p)
	if err != nil {
		return "", err
	}
	defer zeroize(digest)
	return hex.EncodeToString(digest[:FingerprintBytes]), nil
}

func zeroize(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}
