// Package index implements the oid -> signed offset map described by
// the on-disk format: a non-negative value locates a record in
// segment 0, a negative value in segment 1, and zero never occurs
// since the magic header occupies offsets 0..3 of every segment.
//
// Index carries no lock of its own. The cache controller serializes
// every access through its own single mutex, so a per-index lock
// would only add uncontended overhead.
package index

import "github.com/coriolisdb/zeccache/internal/record"

// Index maps an oid to the signed offset of its live record.
type Index map[record.OID]int64

// New returns an empty index.
func New() Index {
	return make(Index)
}

// Encode applies the sign convention: offset in segment 0 is stored
// as-is, offset in segment 1 is stored negated.
func Encode(offset int64, segmentIndex int) int64 {
	if segmentIndex == 1 {
		return -offset
	}
	return offset
}

// Decode reverses Encode, returning the unsigned offset and which
// segment (0 or 1) it belongs to.
func Decode(signed int64) (offset int64, segmentIndex int) {
	if signed < 0 {
		return -signed, 1
	}
	return signed, 0
}

// Set records oid's live location.
func (idx Index) Set(oid record.OID, offset int64, segmentIndex int) {
	idx[oid] = Encode(offset, segmentIndex)
}

// Get returns oid's signed offset and whether it is present.
func (idx Index) Get(oid record.OID) (signed int64, ok bool) {
	signed, ok = idx[oid]
	return
}

// Delete removes oid from the index, if present.
func (idx Index) Delete(oid record.OID) {
	delete(idx, oid)
}
