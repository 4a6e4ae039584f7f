// Package segment implements the append-only file backing one half of
// the cache: a 4-byte magic header followed by a sequence of encoded
// records. A Segment is either persistent (backed by a named file in
// the configured var directory) or temporary (backed by an unnamed
// file that disappears when closed).
package segment

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	atomicfile "github.com/natefinch/atomic"

	"github.com/coriolisdb/zeccache/internal/record"
	cacheerrors "github.com/coriolisdb/zeccache/pkg/errors"
)

// Magic is the 4-byte ASCII header every segment file begins with.
const Magic = "ZEC0"

// MagicSize is len(Magic); also the append position of a fresh segment.
const MagicSize = 4

// peekSerialOffset is the absolute file offset of the first record's
// serial field, as defined by the on-disk format: the 4-byte magic plus
// oid(8) + status(1) + tlen(4) + vlen(2) + dlen(4).
const peekSerialOffset = 23

// peekThreshold is the minimum file length for a peek serial to be
// meaningful: a file must hold at least one full header plus a serial.
const peekThreshold = 30

// Segment is a single append-only file holding a magic header and a
// run of encoded records. All offset arguments are absolute file
// offsets (i.e. they already include the 4-byte magic).
type Segment struct {
	file  *os.File
	path  string // empty for temporary (unnamed) segments
	index int    // 0 or 1, used only for error context
}

// Index returns 0 or 1, identifying which half of the cache this
// segment backs.
func (s *Segment) Index() int { return s.index }

// Path returns the segment's backing file path, or "" if it is a
// temporary segment.
func (s *Segment) Path() string { return s.path }

// Open opens an existing persistent segment file read/write and
// verifies its magic header. It does not create the file.
func Open(path string, index int) (*Segment, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, cacheerrors.ClassifyFileOpenError(err, path, index)
	}

	s := &Segment{file: f, path: path, index: index}
	if err := s.verifyMagic(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// Create makes a fresh segment: a persistent file at path (truncating
// any existing content), or, when path is empty, a new temporary file.
// Either way the file is left containing only the magic header, with
// the append position at MagicSize.
func Create(path string, index int) (*Segment, error) {
	var f *os.File
	var err error

	if path == "" {
		f, err = os.CreateTemp("", tempPattern())
	} else {
		f, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	}
	if err != nil {
		return nil, cacheerrors.ClassifyFileOpenError(err, path, index)
	}

	s := &Segment{file: f, path: path, index: index}
	if err := s.writeMagic(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func tempPattern() string {
	return fmt.Sprintf("zeccache-%s-*.zec", uuid.NewString())
}

func (s *Segment) writeMagic() error {
	if _, err := s.file.WriteAt([]byte(Magic), 0); err != nil {
		return cacheerrors.NewSegmentError(err, cacheerrors.ErrorCodeSegmentIO, "failed to write segment magic").
			WithPath(s.path).WithSegmentIndex(s.index)
	}
	return nil
}

func (s *Segment) verifyMagic() error {
	buf := make([]byte, MagicSize)
	if _, err := s.file.ReadAt(buf, 0); err != nil {
		return cacheerrors.NewSegmentError(err, cacheerrors.ErrorCodeSegmentIO, "failed to read segment magic").
			WithPath(s.path).WithSegmentIndex(s.index)
	}
	if string(buf) != Magic {
		return cacheerrors.NewSegmentError(nil, cacheerrors.ErrorCodeSegmentBadMagic, "segment file has unrecognized magic header").
			WithPath(s.path).WithSegmentIndex(s.index).
			WithDetail("got", string(buf))
	}
	return nil
}

// Size returns the current on-disk length of the segment file.
func (s *Segment) Size() (int64, error) {
	info, err := s.file.Stat()
	if err != nil {
		return 0, cacheerrors.NewSegmentError(err, cacheerrors.ErrorCodeSegmentIO, "failed to stat segment file").
			WithPath(s.path).WithSegmentIndex(s.index)
	}
	return info.Size(), nil
}

// PeekSerial reads the serial of the first record in the file, used to
// break ties at bootstrap over which segment is "current". The second
// return value is false when the file is too short to carry a record
// (an empty or freshly-created segment).
func (s *Segment) PeekSerial() (record.Serial, bool, error) {
	size, err := s.Size()
	if err != nil {
		return record.Serial{}, false, err
	}
	if size <= peekThreshold {
		return record.Serial{}, false, nil
	}

	buf := make([]byte, record.SerialSize)
	if _, err := s.file.ReadAt(buf, peekSerialOffset); err != nil {
		return record.Serial{}, false, cacheerrors.NewSegmentError(err, cacheerrors.ErrorCodeSegmentIO, "failed to peek segment serial").
			WithPath(s.path).WithSegmentIndex(s.index)
	}

	var serial record.Serial
	copy(serial[:], buf)
	return serial, !serial.IsZero(), nil
}

// ReadAt reads len(buf) bytes at absolute offset p. It returns
// io.ErrUnexpectedEOF rather than a SegmentError when the
// read comes up short, since scanner callers treat a short read as
// "stop scanning here", not as a surfaced I/O failure.
func (s *Segment) ReadAt(p int64, buf []byte) error {
	n, err := s.file.ReadAt(buf, p)
	if err != nil && err != io.EOF {
		return cacheerrors.NewSegmentError(err, cacheerrors.ErrorCodeSegmentIO, "failed to read segment").
			WithPath(s.path).WithSegmentIndex(s.index).WithOffset(p)
	}
	if n < len(buf) {
		return io.ErrUnexpectedEOF
	}
	return nil
}

// ReadHeader decodes the 27-byte record header at absolute offset p.
func (s *Segment) ReadHeader(p int64) (record.Header, error) {
	buf := make([]byte, record.HeaderSize)
	if err := s.ReadAt(p, buf); err != nil {
		return record.Header{}, err
	}
	h, ok := record.DecodeHeader(buf)
	if !ok {
		return record.Header{}, cacheerrors.NewRecordError(nil, cacheerrors.ErrorCodeRecordMalformed, "record header failed validation").
			WithOperation("ReadHeader")
	}
	return h, nil
}

// ReadRecord reads and decodes a complete record at absolute offset p,
// given the already-decoded header's TLen.
func (s *Segment) ReadRecord(p int64, h record.Header) (record.Record, error) {
	buf := make([]byte, h.TLen)
	if err := s.ReadAt(p, buf); err != nil {
		return record.Record{}, err
	}
	r, ok := record.Decode(buf)
	if !ok {
		return record.Record{}, cacheerrors.NewRecordError(nil, cacheerrors.ErrorCodeRecordMalformed, "record body failed validation").
			WithOperation("ReadRecord")
	}
	return r, nil
}

// Append writes record bytes at absolute offset p and returns p, which
// becomes the record's index offset (before sign encoding).
func (s *Segment) Append(p int64, data []byte) (int64, error) {
	if _, err := s.file.WriteAt(data, p); err != nil {
		return 0, cacheerrors.NewSegmentError(err, cacheerrors.ErrorCodeSegmentIO, "failed to append record").
			WithPath(s.path).WithSegmentIndex(s.index).WithOffset(p)
	}
	return p, nil
}

// Invalidate mutates the status byte of the record whose oid field
// starts at absolute offset p, in place: 'n' if versioned (strip the
// version payload, keep the non-version half), 'i' otherwise (the
// record is dead).
func (s *Segment) Invalidate(p int64, versioned bool) error {
	status := record.StatusInvalidated
	if versioned {
		status = record.StatusNonVersion
	}
	if _, err := s.file.WriteAt([]byte{status}, p+int64(record.OIDSize)); err != nil {
		return cacheerrors.NewSegmentError(err, cacheerrors.ErrorCodeSegmentIO, "failed to invalidate record").
			WithPath(s.path).WithSegmentIndex(s.index).WithOffset(p)
	}
	return nil
}

// Truncate shrinks the file to size bytes, discarding any trailing
// malformed or incomplete record. Failure is tolerated: read-only or
// otherwise unwritable media may not support truncation, and the
// cache can still operate with a file that is merely longer than its
// recognized append position.
func (s *Segment) Truncate(size int64) {
	_ = s.file.Truncate(size)
}

// Reset discards the segment's contents and starts it over as an
// empty, magic-only file: a persistent segment is atomically replaced
// on disk; a temporary segment is recreated as a new unnamed file.
// Failures closing the old handle or removing an old temporary file
// are ignored.
func (s *Segment) Reset() error {
	if s.path == "" {
		oldName := s.file.Name()
		s.file.Close()
		os.Remove(oldName)

		f, err := os.CreateTemp("", tempPattern())
		if err != nil {
			return cacheerrors.NewSegmentError(err, cacheerrors.ErrorCodeSegmentResetFailed, "failed to create replacement temporary segment").
				WithSegmentIndex(s.index)
		}
		s.file = f
		return s.writeMagic()
	}

	if err := atomicfile.WriteFile(s.path, bytes.NewReader([]byte(Magic))); err != nil {
		return cacheerrors.NewSegmentError(err, cacheerrors.ErrorCodeSegmentResetFailed, "failed to atomically reset persistent segment").
			WithPath(s.path).WithSegmentIndex(s.index)
	}

	s.file.Close()

	f, err := os.OpenFile(s.path, os.O_RDWR, 0644)
	if err != nil {
		return cacheerrors.ClassifyFileOpenError(err, s.path, s.index)
	}
	s.file = f
	return nil
}

// Close releases the segment's file handle. A temporary segment's
// backing file is also unlinked, since nothing else holds its name;
// errors closing or removing it (the OS may have already reclaimed it)
// are tolerated.
func (s *Segment) Close() error {
	if s.file == nil {
		return nil
	}

	if s.path == "" {
		name := s.file.Name()
		s.file.Close()
		os.Remove(name)
		return nil
	}

	if err := s.file.Close(); err != nil {
		return cacheerrors.NewSegmentError(err, cacheerrors.ErrorCodeSegmentIO, "failed to close segment").
			WithPath(s.path).WithSegmentIndex(s.index)
	}
	return nil
}
