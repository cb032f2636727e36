package service

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Hussein-Mazeh/pwtrainer/internal/vault"
	"github.com/Hussein-Mazeh/pwtrainer/krypto"
	"github.com/Hussein-Mazeh/pwtrainer/store"
)

// ErrSaveFailed wraps any failure to persist the store. The in-memory state is kept
// and a later Save or Close retries.
var ErrSaveFailed = errors.New("save failed")

// Service owns the in-memory store and its file for the lifetime of a session.
// Every successful mutation is written through to disk.
type Service struct {
	st      *vault.Store
	path    string
	log     *zap.Logger
	created bool // no file on disk yet
	dirty   bool // in-memory state newer than the file
}

// New loads the store at path, or prepares an empty one when the file is absent.
// Corrupt or unsupported files are returned as errors and are fatal to the caller.
func New(path string, params krypto.Params, log *zap.Logger) (*Service, error) {
	if path == "" {
		path = store.DefaultFilename
	}
	if log == nil {
		log = zap.NewNop()
	}

	st, created, err := store.OpenStore(path, params)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}

	if created {
		log.Info("no store file yet", zap.String("path", path))
	} else {
		log.Info("store loaded",
			zap.String("path", path),
			zap.Int("entries", st.Len()),
			zap.Uint8("version", st.Header().Version))
	}

	return &Service{st: st, path: path, log: log, created: created}, nil
}

// Path returns the store file location.
func (s *Service) Path() string { return s.path }

// Created reports whether the store did not exist on disk when the service started
// and has not been saved since.
func (s *Service) Created() bool { return s.created }

// Dirty reports whether in-memory changes have not reached disk.
func (s *Service) Dirty() bool { return s.dirty }

// Len returns the number of stored entries.
func (s *Service) Len() int { return s.st.Len() }

// Labels returns entry labels in insertion order.
func (s *Service) Labels() []string { return s.st.Labels() }

// Contains reports whether label exists.
func (s *Service) Contains(label string) bool { return s.st.Contains(label) }

// Fingerprint returns the display-only fingerprint for master.
// Nothing is stored or compared; any master password yields some fingerprint.
func (s *Service) Fingerprint(master string) (string, error) {
	fp, err := s.st.Fingerprint(master)
	if err != nil {
		return "", fmt.Errorf("derive fingerprint: %w", err)
	}
	return fp, nil
}

// Add stores a new entry and saves.
func (s *Service) Add(label, password string) error {
	if err := s.st.Insert(label, password); err != nil {
		return err
	}
	s.log.Info("entry added", zap.String("label", label))
	return s.commit()
}

// Edit sets a new password (and a new salt) for an existing entry and saves.
func (s *Service) Edit(label, password string) error {
	if err := s.st.Update(label, password); err != nil {
		return err
	}
	s.log.Info("entry updated", zap.String("label", label))
	return s.commit()
}

// Remove deletes an entry and saves.
func (s *Service) Remove(label string) error {
	if err := s.st.Remove(label); err != nil {
		return err
	}
	s.log.Info("entry removed", zap.String("label", label))
	return s.commit()
}

// Check verifies candidate against the stored hash for label.
func (s *Service) Check(label, candidate string) (bool, error) {
	ok, err := s.st.Check(label, candidate)
	if err != nil {
		return false, err
	}
	s.log.Debug("training attempt", zap.String("label", label), zap.Bool("match", ok))
	return ok, nil
}

// Save writes the store to disk unconditionally.
func (s *Service) Save() error {
	if err := store.SaveStore(s.path, s.st); err != nil {
		s.dirty = true
		s.log.Error("save failed", zap.String("path", s.path), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	s.dirty = false
	s.created = false
	s.log.Debug("store saved", zap.String("path", s.path), zap.Int("entries", s.st.Len()))
	return nil
}

// Close performs the final save when changes are still pending.
func (s *Service) Close() error {
	if !s.dirty {
		return nil
	}
	return s.Save()
}

func (s *Service) commit() error {
	s.dirty = true
	return s.Save()
}

// IsUserError reports whether err is a per-action problem the user can correct
// from the menu rather than a failure of the store itself.
func IsUserError(err error) bool {
	return errors.Is(err, vault.ErrDuplicateLabel) ||
		errors.Is(err, vault.ErrLabelNotFound) ||
		errors.Is(err, vault.ErrInvalidLabel)
}
