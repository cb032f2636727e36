package vault

import (
	"bytes"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/Hussein-Mazeh/pwtrainer/krypto"
)

const checksumLen = sha256.Size

var errShort = errors.New("unexpected end of data")

// MarshalBinary encodes the store in the store.bin layout, checksum included.
func (s *Store) MarshalBinary() ([]byte, error) {
	if uint64(len(s.entries)) > math.MaxUint32 {
		return nil, fmt.Errorf("too many entries: %d", len(s.entries))
	}

	var buf bytes.Buffer
	buf.Write(magic[:])
	buf.WriteByte(FormatVersion)
	if err := writeBytes8(&buf, s.header.Salt); err != nil {
		return nil, fmt.Errorf("encode store salt: %w", err)
	}
	writeParams(&buf, s.header.KDF)
	buf.Write(binary.BigEndian.AppendUint32(nil, uint32(len(s.entries))))

	for _, e := range s.entries {
		if err := ValidateLabel(e.Label); err != nil {
			return nil, err
		}
		buf.Write(binary.BigEndian.AppendUint16(nil, uint16(len(e.Label))))
		buf.WriteString(e.Label)
		writeParams(&buf, e.KDF)
		if err := writeBytes8(&buf, e.Salt); err != nil {
			return nil, fmt.Errorf("encode salt of %q: %w", e.Label, err)
		}
		if err := writeBytes8(&buf, e.Digest); err != nil {
			return nil, fmt.Errorf("encode digest of %q: %w", e.Label, err)
		}
	}

	sum := sha256.Sum256(buf.Bytes())
	buf.Write(sum[:])
	return buf.Bytes(), nil
}

// Decode parses a store.bin image. The returned store hashes new entries with
// the header parameters until SetParams is called.
func Decode(data []byte) (*Store, error) {
	if len(data) < len(magic)+1 {
		return nil, fmt.Errorf("%w: file too short", ErrCorruptStore)
	}
	if !bytes.Equal(data[:len(magic)], magic[:]) {
		return nil, fmt.Errorf("%w: bad magic", ErrCorruptStore)
	}
	if v := data[len(magic)]; v != FormatVersion {
		return nil, fmt.Errorf("%w: file version %d, this build reads version %d", ErrUnsupportedVersion, v, FormatVersion)
	}
	if len(data) < len(magic)+1+checksumLen {
		return nil, fmt.Errorf("%w: file too short", ErrCorruptStore)
	}

	body, trailer := data[:len(data)-checksumLen], data[len(data)-checksumLen:]
	sum := sha256.Sum256(body)
	if subtle.ConstantTimeCompare(sum[:], trailer) != 1 {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptStore)
	}

	st, err := decodeBody(&reader{buf: body[len(magic)+1:]})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptStore, err)
	}
	return st, nil
}

func decodeBody(r *reader) (*Store, error) {
	st := &Store{header: Header{Version: FormatVersion}}

	st.header.Salt = r.bytes8()
	st.header.KDF = r.params()
	count := r.u32()
	if r.err != nil {
		return nil, fmt.Errorf("header: %w", r.err)
	}
	if len(st.header.Salt) != krypto.SaltLengthBytes {
		return nil, fmt.Errorf("store salt has length %d", len(st.header.Salt))
	}
	if err := st.header.KDF.Validate(); err != nil {
		return nil, fmt.Errorf("store parameters: %w", err)
	}

	seen := make(map[string]struct{})
	for i := uint32(0); i < count; i++ {
		var e Entry
		e.Label = string(r.next(int(r.u16())))
		e.KDF = r.params()
		e.Salt = r.bytes8()
		e.Digest = r.bytes8()
		if r.err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, r.err)
		}
		if err := ValidateLabel(e.Label); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if _, dup := seen[e.Label]; dup {
			return nil, fmt.Errorf("entry %d: duplicate label %q", i, e.Label)
		}
		seen[e.Label] = struct{}{}
		if err := e.KDF.Validate(); err != nil {
			return nil, fmt.Errorf("entry %q: %w", e.Label, err)
		}
		if len(e.Salt) != krypto.SaltLengthBytes {
			return nil, fmt.Errorf("entry %q: salt has length %d", e.Label, len(e.Salt))
		}
		if len(e.Digest) != krypto.DigestLengthBytes {
			return nil, fmt.Errorf("entry %q: digest has length %d", e.Label, len(e.Digest))
		}
		st.entries = append(st.entries, e)
	}
	if len(r.buf) != 0 {
		return nil, fmt.Errorf("%d trailing bytes", len(r.buf))
	}

	st.params = st.header.KDF
	return st, nil
}

func writeParams(buf *bytes.Buffer, p krypto.Params) {
	buf.WriteByte(byte(p.Algorithm))
	buf.Write(binary.BigEndian.AppendUint32(nil, p.Time))
	buf.Write(binary.BigEndian.AppendUint32(nil, p.MemoryKiB))
	buf.WriteByte(p.Threads)
}

func writeBytes8(buf *bytes.Buffer, b []byte) error {
	if len(b) > math.MaxUint8 {
		return fmt.Errorf("field of %d bytes exceeds %d", len(b), math.MaxUint8)
	}
	buf.WriteByte(byte(len(b)))
	buf.Write(b)
	return nil
}

// reader consumes a byte slice and latches the first short read.
type reader struct {
	buf []byte
	err error
}

func (r *reader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n > len(r.buf) {
		r.err = errShort
		return nil
	}
	out := bytes.Clone(r.buf[:n])
	r.buf = r.buf[n:]
	return out
}

func (r *reader) u8() uint8 {
	b := r.next(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) u16() uint16 {
	b := r.next(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *reader) u32() uint32 {
	b := r.next(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *reader) bytes8() []byte {
	return r.next(int(r.u8()))
}

func (r *reader) params() krypto.Params {
	return krypto.Params{
		Algorithm: krypto.Algorithm(r.u8()),
		Time:      r.u32(),
		MemoryKiB: r.u32(),
		Threads:   r.u8(),
	}
}
