package scanner

import (
	"testing"

	"github.com/coriolisdb/zeccache/internal/index"
	"github.com/coriolisdb/zeccache/internal/record"
	"github.com/coriolisdb/zeccache/internal/segment"
)

func appendRecord(t *testing.T, seg *segment.Segment, pos int64, oid record.OID, data []byte, serial record.Serial, version, vdata []byte, vserial record.Serial) int64 {
	t.Helper()
	buf := record.Encode(oid, data, serial, version, vdata, vserial)
	if _, err := seg.Append(pos, buf); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	return pos + int64(len(buf))
}

func TestScan_plainRecords(t *testing.T) {
	seg, err := segment.Create("", 0)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer seg.Close()

	var oidA, oidB record.OID
	oidA[0], oidB[0] = 1, 2

	pos := int64(segment.MagicSize)
	pos = appendRecord(t, seg, pos, oidA, []byte("abc"), record.Serial{0: 0x11}, nil, nil, record.Serial{})
	appendRecord(t, seg, pos, oidB, []byte("def"), record.Serial{0: 0x12}, nil, nil, record.Serial{})

	idx := index.New()
	serials := make(map[record.OID]SerialPair)
	newPos, err := Scan(seg, 0, idx, serials)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	size, _ := seg.Size()
	if newPos != size {
		t.Errorf("Scan() pos = %d, want file size %d", newPos, size)
	}
	if len(idx) != 2 {
		t.Errorf("len(idx) = %d, want 2", len(idx))
	}
	if len(serials) != 2 {
		t.Errorf("len(serials) = %d, want 2", len(serials))
	}
}

func TestScan_versionedRecordSurvives(t *testing.T) {
	seg, err := segment.Create("", 0)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer seg.Close()

	var oid record.OID
	oid[0] = 1

	pos := appendRecord(t, seg, int64(segment.MagicSize), oid, []byte("abc"), record.Serial{0: 0x11},
		[]byte("v1"), []byte("ABC"), record.Serial{0: 0x21})

	idx := index.New()
	serials := make(map[record.OID]SerialPair)
	newPos, err := Scan(seg, 0, idx, serials)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if newPos != pos {
		t.Errorf("Scan() pos = %d, want %d (versioned record wrongly truncated)", newPos, pos)
	}

	if _, ok := idx.Get(oid); !ok {
		t.Errorf("versioned record missing from index after scan")
	}
	pair, ok := serials[oid]
	if !ok {
		t.Fatalf("versioned record missing from serials after scan")
	}
	if !pair.HasVersion || pair.VSerial != (record.Serial{0: 0x21}) {
		t.Errorf("serials[oid] = %+v, want HasVersion=true VSerial=%x", pair, record.Serial{0: 0x21})
	}
}

func TestScan_invalidationRemovesEntry(t *testing.T) {
	seg, err := segment.Create("", 0)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer seg.Close()

	var oid record.OID
	oid[0] = 1

	pos := int64(segment.MagicSize)
	pos = appendRecord(t, seg, pos, oid, []byte("abc"), record.Serial{0: 0x11}, nil, nil, record.Serial{})

	// A second record for a different oid, then an invalidation record
	// for oid reusing the same bytes (status 'i').
	var other record.OID
	other[0] = 2
	appendRecord(t, seg, pos, other, []byte("xyz"), record.Serial{0: 0x20}, nil, nil, record.Serial{})

	if err := seg.Invalidate(int64(segment.MagicSize), false); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}

	idx := index.New()
	serials := make(map[record.OID]SerialPair)
	if _, err := Scan(seg, 0, idx, serials); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if _, ok := idx.Get(oid); ok {
		t.Errorf("invalidated oid still present in index")
	}
	if _, ok := idx.Get(other); !ok {
		t.Errorf("other oid missing from index")
	}
}

func TestScan_truncatesAtCorruption(t *testing.T) {
	seg, err := segment.Create("", 0)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer seg.Close()

	var oid record.OID
	oid[0] = 1
	pos := appendRecord(t, seg, int64(segment.MagicSize), oid, []byte("abc"), record.Serial{0: 0x11}, nil, nil, record.Serial{})

	garbage := []byte("garbage!")
	if _, err := seg.Append(pos, garbage); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	idx := index.New()
	serials := make(map[record.OID]SerialPair)
	newPos, err := Scan(seg, 0, idx, serials)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if newPos != pos {
		t.Errorf("Scan() pos = %d, want %d (truncated before garbage)", newPos, pos)
	}

	size, _ := seg.Size()
	if size != pos {
		t.Errorf("file size after Scan() = %d, want %d", size, pos)
	}

	if _, ok := idx.Get(oid); !ok {
		t.Errorf("good record missing from index after truncation")
	}
}

func TestScan_idempotent(t *testing.T) {
	seg, err := segment.Create("", 0)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer seg.Close()

	var oid record.OID
	oid[0] = 1
	appendRecord(t, seg, int64(segment.MagicSize), oid, []byte("abc"), record.Serial{0: 0x11}, nil, nil, record.Serial{})

	idx1 := index.New()
	serials1 := make(map[record.OID]SerialPair)
	pos1, err := Scan(seg, 0, idx1, serials1)
	if err != nil {
		t.Fatalf("Scan() #1 error = %v", err)
	}

	idx2 := index.New()
	serials2 := make(map[record.OID]SerialPair)
	pos2, err := Scan(seg, 0, idx2, serials2)
	if err != nil {
		t.Fatalf("Scan() #2 error = %v", err)
	}

	if pos1 != pos2 {
		t.Errorf("Scan() pos mismatch across runs: %d vs %d", pos1, pos2)
	}
	if len(idx1) != len(idx2) {
		t.Errorf("Scan() index size mismatch across runs: %d vs %d", len(idx1), len(idx2))
	}
}
