package vault

import (
	"fmt"
	"math"
	"slices"
	"unicode"
	"unicode/utf8"

	"github.com/Hussein-Mazeh/pwtrainer/krypto"
)

// Entry is one labeled credential record. It never holds a plaintext password.
type Entry struct {
	Label  string
	KDF    krypto.Params
	Salt   []byte
	Digest []byte
}

// Store is the ordered, label-unique collection of entries backing store.bin.
// It is not safe for concurrent use.
type Store struct {
	header  Header
	entries []Entry
	// params applies to hashes created from now on; it is not persisted.
	params krypto.Params
}

// New returns an empty store with a fresh fingerprint salt.
func New(params krypto.Params) (*Store, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	salt, err := krypto.NewRandomSalt()
	if err != nil {
		return nil, fmt.Errorf("generate store salt: %w", err)
	}
	return &Store{
		header: Header{Version: FormatVersion, Salt: salt, KDF: params},
		params: params,
	}, nil
}

// Header returns a copy of the store header.
func (s *Store) Header() Header {
	h := s.header
	h.Salt = slices.Clone(s.header.Salt)
	return h
}

// Params returns the parameters used for new hashes.
func (s *Store) Params() krypto.Params { return s.params }

// SetParams changes the parameters used for hashes created after the call.
// Existing entries keep verifying with the parameters recorded beside them.
func (s *Store) SetParams(p krypto.Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.params = p
	return nil
}

// Len reports the number of entries.
func (s *Store) Len() int { return len(s.entries) }

// Labels returns entry labels in insertion order.
func (s *Store) Labels() []string {
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Label
	}
	return out
}

// Entries returns a deep copy of all entries in order.
func (s *Store) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.clone()
	}
	return out
}

// Lookup returns a copy of the entry with the given label.
func (s *Store) Lookup(label string) (Entry, bool) {
	i := s.index(label)
	if i < 0 {
		return Entry{}, false
	}
	return s.entries[i].clone(), true
}

// Contains reports whether label is present.
func (s *Store) Contains(label string) bool { return s.index(label) >= 0 }

// Insert hashes password under a new salt and appends it as label.
func (s *Store) Insert(label, password string) error {
	if err := ValidateLabel(label); err != nil {
		return err
	}
	if s.index(label) >= 0 {
		return fmt.Errorf("%w: %q", ErrDuplicateLabel, label)
	}
	e, err := s.newEntry(label, password)
	if err != nil {
		return err
	}
	s.entries = append(s.entries, e)
	return nil
}

// Update replaces the salt and digest of label in place with a new salt.
func (s *Store) Update(label, password string) error {
	i := s.index(label)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrLabelNotFound, label)
	}
	e, err := s.newEntry(label, password)
	if err != nil {
		return err
	}
	s.entries[i] = e
	return nil
}

// Remove deletes label.
func (s *Store) Remove(label string) error {
	i := s.index(label)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrLabelNotFound, label)
	}
	s.entries = slices.Delete(s.entries, i, i+1)
	return nil
}

// Check reports whether candidate is the password last set for label.
func (s *Store) Check(label, candidate string) (bool, error) {
	i := s.index(label)
	if i < 0 {
		return false, fmt.Errorf("%w: %q", ErrLabelNotFound, label)
	}
	e := s.entries[i]
	return krypto.Verify(candidate, e.Salt, e.Digest, e.KDF)
}

// Fingerprint derives the display-only fingerprint of master under the store salt.
func (s *Store) Fingerprint(master string) (string, error) {
	return krypto.Fingerprint(master, s.header.Salt, s.header.KDF)
}

func (s *Store) newEntry(label, password string) (Entry, error) {
	salt, err := krypto.NewRandomSalt()
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %v", krypto.ErrHashing, err)
	}
	digest, err := krypto.Hash(password, salt, s.params)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Label: label, KDF: s.params, Salt: salt, Digest: digest}, nil
}

func (s *Store) index(label string) int {
	return slices.IndexFunc(s.entries, func(e Entry) bool { return e.Label == label })
}

func (e Entry) clone() Entry {
	e.Salt = slices.Clone(e.Salt)
	e.Digest = slices.Clone(e.Digest)
	return e
}

// ValidateLabel applies the label rules enforced on insert and on load.
func ValidateLabel(label string) error {
	if label == "" {
		return fmt.Errorf("%w: label is required", ErrInvalidLabel)
	}
	if len(label) > math.MaxUint16 {
		return fmt.Errorf("%w: label exceeds %d bytes", ErrInvalidLabel, math.MaxUint16)
	}
	if !utf8.ValidString(label) {
		return fmt.Errorf("%w: label must be valid UTF-8", ErrInvalidLabel)
	}
	for _, r := range label {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: label must not contain control characters", ErrInvalidLabel)
		}
	}
	return nil
}
