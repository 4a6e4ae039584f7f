// Package record implements the on-disk encoding for a single cache entry.
//
// A record is a contiguous, self-describing byte run: a fixed 27-byte
// header, a non-version payload, an optional version payload, and a
// trailing 4-byte length repeated for redundancy. The layout is
// big-endian and fixed-width throughout; there is no variable-length
// integer encoding anywhere in the format.
package record

import "encoding/binary"

// OIDSize and SerialSize are the fixed widths of the identifier fields.
const (
	OIDSize    = 8
	SerialSize = 8
)

// Status byte values. A record is born 'v' and later mutated in place
// to 'n' (version payload stripped) or 'i' (dead).
const (
	StatusValid       byte = 'v'
	StatusNonVersion  byte = 'n'
	StatusInvalidated byte = 'i'
)

// HeaderSize is the length of the fixed prefix through the non-version
// serial: oid(8) + status(1) + tlen(4) + vlen(2) + dlen(4) + serial(8).
const HeaderSize = 27

// TrailerSize is the width of the redundant trailing tlen field.
const TrailerSize = 4

// MinRecordSize is the smallest a well-formed record can be: a header,
// zero-length data, no version section, and the trailer. 31 = 27 + 4.
const MinRecordSize = HeaderSize + TrailerSize

// OID is an opaque 8-byte object identifier, compared bytewise via ==.
type OID [OIDSize]byte

// Serial is an opaque 8-byte revision timestamp, bytewise ordered.
type Serial [SerialSize]byte

// IsZero reports whether s is the all-zero placeholder serial.
func (s Serial) IsZero() bool {
	return s == Serial{}
}

// Less reports whether s sorts before other under the bytewise
// ordering used for bootstrap tie-breaking between segments.
func (s Serial) Less(other Serial) bool {
	for i := range s {
		if s[i] != other[i] {
			return s[i] < other[i]
		}
	}
	return false
}

// Header is the parsed, fixed-width prefix of a record, valid
// independent of where in a segment file it was read from.
type Header struct {
	OID    OID
	Status byte
	TLen   uint32
	VLen   uint16
	DLen   uint32
	Serial Serial
}

// Record is a fully decoded cache entry, including its optional
// version section.
type Record struct {
	Header
	Data    []byte
	Version []byte
	VData   []byte
	VSerial Serial
}

// HasVersion reports whether the record carries a version section.
func (r *Record) HasVersion() bool {
	return r.VLen > 0
}

// Encode serializes oid/data/serial and, if version is non-empty, the
// version section, into the on-disk record format described in the
// package doc. The returned bytes always carry StatusValid; status
// transitions to 'n' or 'i' are applied later via targeted in-place
// writes, not via Encode.
//
// If serial is the zero value, data is forced empty and serial is
// forced to the zero serial: a record with a zero non-version serial
// and empty data is the convention for "this record carries only a
// version payload".
func Encode(oid OID, data []byte, serial Serial, version []byte, vdata []byte, vserial Serial) []byte {
	if serial.IsZero() {
		data = nil
		serial = Serial{}
	}

	dataLen := uint32(len(data))
	total := uint32(MinRecordSize) + dataLen
	var vlen uint16
	if len(version) > 0 {
		vlen = uint16(len(version))
		total += uint32(vlen) + 12 + uint32(len(vdata))
	}

	buf := make([]byte, 0, total)
	buf = append(buf, oid[:]...)
	buf = append(buf, StatusValid)
	buf = appendUint32(buf, total)
	buf = appendUint16(buf, vlen)
	buf = appendUint32(buf, dataLen)
	buf = append(buf, serial[:]...)
	buf = append(buf, data...)
	if vlen > 0 {
		buf = append(buf, version...)
		buf = appendUint32(buf, uint32(len(vdata)))
		buf = append(buf, vdata...)
		buf = append(buf, vserial[:]...)
	}
	buf = appendUint32(buf, total)

	return buf
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendUint16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

// DecodeHeader parses the fixed 27-byte header from buf. buf must be at
// least HeaderSize bytes; only the first HeaderSize bytes are read.
// ok is false if the header fails validation (see Header.Valid for the
// exact predicate); in that case the returned Header is meaningless.
func DecodeHeader(buf []byte) (h Header, ok bool) {
	if len(buf) < HeaderSize {
		return Header{}, false
	}

	copy(h.OID[:], buf[0:8])
	h.Status = buf[8]
	h.TLen = binary.BigEndian.Uint32(buf[9:13])
	h.VLen = binary.BigEndian.Uint16(buf[13:15])
	h.DLen = binary.BigEndian.Uint32(buf[15:19])
	copy(h.Serial[:], buf[19:27])

	return h, h.Valid()
}

// Valid reports whether the header satisfies the layout invariants from
// the format spec: a known status byte, a positive total length, and
// vlen+dlen not exceeding tlen.
func (h Header) Valid() bool {
	switch h.Status {
	case StatusValid, StatusNonVersion, StatusInvalidated:
	default:
		return false
	}
	if h.TLen == 0 {
		return false
	}
	if uint32(h.VLen)+h.DLen > h.TLen {
		return false
	}
	return true
}

// Decode parses a complete record from buf, which must hold exactly
// h.TLen bytes starting at the record's oid field (i.e. the header
// plus every optional section through the trailing length). It is
// used by callers that already know tlen from a prior DecodeHeader
// call and have read the whole record in one pass; the scanner does
// not use it, since it must be able to stop and truncate partway
// through a record that turns out to be short or malformed.
func Decode(buf []byte) (Record, bool) {
	h, ok := DecodeHeader(buf)
	if !ok || uint64(len(buf)) < uint64(h.TLen) {
		return Record{}, false
	}

	r := Record{Header: h}
	off := HeaderSize

	if h.DLen > 0 {
		end := off + int(h.DLen)
		if end > len(buf) {
			return Record{}, false
		}
		r.Data = buf[off:end]
		off = end
	}

	if h.VLen > 0 {
		end := off + int(h.VLen)
		if end > len(buf) {
			return Record{}, false
		}
		r.Version = buf[off:end]
		off = end

		if off+4 > len(buf) {
			return Record{}, false
		}
		vdlen := binary.BigEndian.Uint32(buf[off : off+4])
		off += 4

		end = off + int(vdlen)
		if end > len(buf) {
			return Record{}, false
		}
		r.VData = buf[off:end]
		off = end

		if off+SerialSize > len(buf) {
			return Record{}, false
		}
		copy(r.VSerial[:], buf[off:off+SerialSize])
	}

	return r, true
}
