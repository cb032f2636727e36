package vault

import (
	"errors"

	"github.com/Hussein-Mazeh/pwtrainer/krypto"
)

// FormatVersion is the only store.bin layout this build reads and writes.
const FormatVersion uint8 = 1

var magic = [4]byte{'P', 'W', 'T', 'R'}

var (
	// ErrCorruptStore indicates store.bin exists but cannot be parsed.
	ErrCorruptStore = errors.New("corrupt store")
	// ErrUnsupportedVersion indicates store.bin was written by a different format version.
	ErrUnsupportedVersion = errors.New("unsupported store version")
	// ErrDuplicateLabel indicates an insert collided with an existing label.
	ErrDuplicateLabel = errors.New("label already exists")
	// ErrLabelNotFound indicates no entry carries the requested label.
	ErrLabelNotFound = errors.New("label not found")
	// ErrInvalidLabel indicates a label that cannot be stored.
	ErrInvalidLabel = errors.New("invalid label")
)

// Header captures metadata persisted ahead of the entries.
type Header struct {
	Version uint8
	// Salt and KDF are used only for the master fingerprint.
	Salt []byte
	KDF  krypto.Params
}
