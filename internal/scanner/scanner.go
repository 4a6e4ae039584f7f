// Package scanner rebuilds the in-memory offset index and serial
// summary from a segment file at startup. It walks records from the
// first one forward, stopping at the first malformed or truncated
// record and truncating the file there, so that a half-written record
// left over from a crash never corrupts later reads.
package scanner

import (
	"github.com/coriolisdb/zeccache/internal/index"
	"github.com/coriolisdb/zeccache/internal/record"
	"github.com/coriolisdb/zeccache/internal/segment"
)

// SerialPair is the (non-version, version) serial summary for one
// oid, as returned to the caller for the server invalidation
// handshake. HasVersion is false when the record carries no version
// section, in which case VSerial is meaningless.
type SerialPair struct {
	Serial     record.Serial
	VSerial    record.Serial
	HasVersion bool
}

// Scan walks seg from its first record forward, stopping at the
// first record that is short, malformed, or fails the trailing
// self-check, and truncates the file at that point. It mutates idx
// and serials directly rather than returning a local result, because
// the cache controller scans the alternate segment and then the
// current segment into the *same* pair of maps: an invalidation seen
// while scanning the current segment must be able to remove an entry
// the alternate segment's pass already installed. segIndex (0 or 1)
// selects the sign convention Scan applies when writing into idx.
//
// It returns the byte offset just past the last good record, which
// becomes seg's append position when seg is the current segment.
func Scan(seg *segment.Segment, segIndex int, idx index.Index, serials map[record.OID]SerialPair) (int64, error) {
	size, err := seg.Size()
	if err != nil {
		return 0, err
	}

	pos := int64(segment.MagicSize)

	for pos < size {
		h, ok, stop := readHeader(seg, pos, size)
		if stop || !ok {
			break
		}

		if h.Status == record.StatusValid && h.VLen > 0 {
			if !checkVersionTrailer(seg, pos, h, size) {
				break
			}
		}

		switch h.Status {
		case record.StatusValid, record.StatusNonVersion:
			idx.Set(h.OID, pos, segIndex)
			pair := SerialPair{Serial: h.Serial}
			if h.Status == record.StatusValid && h.VLen > 0 {
				if vserial, ok := readVSerial(seg, pos, h); ok {
					pair.VSerial = vserial
					pair.HasVersion = true
				}
			}
			serials[h.OID] = pair
		case record.StatusInvalidated:
			idx.Delete(h.OID)
			delete(serials, h.OID)
		}

		pos += int64(h.TLen)
	}

	seg.Truncate(pos)
	return pos, nil
}

// readHeader reads and validates the 27-byte header at pos. stop is
// true when there isn't room for a header at all (short read); ok is
// false when the header's own fields fail validation. Either case
// means the walk must stop before pos.
func readHeader(seg *segment.Segment, pos, size int64) (record.Header, bool, bool) {
	if pos+int64(record.HeaderSize) > size {
		return record.Header{}, false, true
	}

	h, err := seg.ReadHeader(pos)
	if err != nil {
		return record.Header{}, false, true
	}

	if int64(h.TLen) > size-pos {
		return record.Header{}, false, true
	}

	return h, true, false
}

// checkVersionTrailer implements the scanner's self-check on a
// versioned record: after data and version name, read vdlen, require
// vlen+dlen+42+vdlen <= tlen, skip vdata and vserial, then require the
// redundant trailing 4 bytes equal the header's own tlen field.
func checkVersionTrailer(seg *segment.Segment, pos int64, h record.Header, size int64) bool {
	vdlenOff := pos + int64(record.HeaderSize) + int64(h.DLen) + int64(h.VLen)
	if vdlenOff+4 > size {
		return false
	}

	buf := make([]byte, 4)
	if err := seg.ReadAt(vdlenOff, buf); err != nil {
		return false
	}
	vdlen := beUint32(buf)

	if uint64(h.VLen)+uint64(h.DLen)+42+uint64(vdlen) > uint64(h.TLen) {
		return false
	}

	trailerOff := vdlenOff + 4 + int64(vdlen) + int64(record.SerialSize)
	if trailerOff+4 > size {
		return false
	}

	got := make([]byte, 4)
	if err := seg.ReadAt(trailerOff, got); err != nil {
		return false
	}

	return beUint32(got) == h.TLen
}

// readVSerial re-reads the version serial for a record already known
// to have passed checkVersionTrailer, used to populate the serial
// summary returned to the caller.
func readVSerial(seg *segment.Segment, pos int64, h record.Header) (record.Serial, bool) {
	vdlenOff := pos + int64(record.HeaderSize) + int64(h.DLen) + int64(h.VLen)
	buf := make([]byte, 4)
	if err := seg.ReadAt(vdlenOff, buf); err != nil {
		return record.Serial{}, false
	}
	vdlen := beUint32(buf)

	vserialOff := vdlenOff + 4 + int64(vdlen)
	sbuf := make([]byte, record.SerialSize)
	if err := seg.ReadAt(vserialOff, sbuf); err != nil {
		return record.Serial{}, false
	}

	var serial record.Serial
	copy(serial[:], sbuf)
	return serial, true
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
