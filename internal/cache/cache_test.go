package cache

import (
	"bytes"
	"testing"

	"github.com/coriolisdb/zeccache/internal/index"
	"github.com/coriolisdb/zeccache/internal/record"
	"github.com/coriolisdb/zeccache/pkg/logger"
	"github.com/coriolisdb/zeccache/pkg/options"
)

func oid(b byte) record.OID {
	var o record.OID
	o[0] = b
	return o
}

func serial(b byte) record.Serial {
	var s record.Serial
	s[0] = b
	return s
}

func newTempCache(t *testing.T, totalSize int64) *Cache {
	t.Helper()
	opts, err := options.New("", options.WithTotalSize(totalSize), options.WithLogger(logger.Noop()))
	if err != nil {
		t.Fatalf("options.New() error = %v", err)
	}
	c, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := c.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return c
}

// S1: store+load plain.
func TestStoreLoad_plain(t *testing.T) {
	c := newTempCache(t, 10000)
	defer c.Close()

	o := oid(1)
	if err := c.Store(o, []byte("abc"), serial(0x11), nil, nil, record.Serial{}); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	data, s, found := c.Load(o, nil)
	if !found {
		t.Fatalf("Load() found = false, want true")
	}
	if !bytes.Equal(data, []byte("abc")) {
		t.Errorf("Load() data = %q, want %q", data, "abc")
	}
	if s != serial(0x11) {
		t.Errorf("Load() serial = %x, want %x", s, serial(0x11))
	}

	version, found := c.ModifiedInVersion(o)
	if !found || version != "" {
		t.Errorf("ModifiedInVersion() = (%q, %v), want (\"\", true)", version, found)
	}
}

// S2: store+load versioned.
func TestStoreLoad_versioned(t *testing.T) {
	c := newTempCache(t, 10000)
	defer c.Close()

	o := oid(1)
	if err := c.Store(o, []byte("abc"), serial(0x11), []byte("v1"), []byte("ABC"), serial(0x21)); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	if data, s, found := c.Load(o, nil); !found || !bytes.Equal(data, []byte("abc")) || s != serial(0x11) {
		t.Errorf("Load(oid, \"\") = (%q, %x, %v), want (\"abc\", %x, true)", data, s, found, serial(0x11))
	}
	if data, s, found := c.Load(o, []byte("v1")); !found || !bytes.Equal(data, []byte("ABC")) || s != serial(0x21) {
		t.Errorf("Load(oid, \"v1\") = (%q, %x, %v), want (\"ABC\", %x, true)", data, s, found, serial(0x21))
	}
	if data, s, found := c.Load(o, []byte("v2")); !found || !bytes.Equal(data, []byte("abc")) || s != serial(0x11) {
		t.Errorf("Load(oid, \"v2\") = (%q, %x, %v), want fallback to (\"abc\", %x, true)", data, s, found, serial(0x11))
	}

	version, found := c.ModifiedInVersion(o)
	if !found || version != "v1" {
		t.Errorf("ModifiedInVersion() = (%q, %v), want (\"v1\", true)", version, found)
	}
}

// S3: invalidate non-version.
func TestInvalidate_nonVersion(t *testing.T) {
	c := newTempCache(t, 10000)
	defer c.Close()

	o := oid(1)
	if err := c.Store(o, []byte("abc"), serial(0x11), []byte("v1"), []byte("ABC"), serial(0x21)); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if err := c.Invalidate(o, nil); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}

	if _, _, found := c.Load(o, nil); found {
		t.Errorf("Load(oid, \"\") found = true after invalidate, want false")
	}
	if _, _, found := c.Load(o, []byte("v1")); found {
		t.Errorf("Load(oid, \"v1\") found = true after invalidate, want false")
	}
}

// S4: invalidate version only.
func TestInvalidate_versionOnly(t *testing.T) {
	c := newTempCache(t, 10000)
	defer c.Close()

	o := oid(1)
	if err := c.Store(o, []byte("abc"), serial(0x11), []byte("v1"), []byte("ABC"), serial(0x21)); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if err := c.Invalidate(o, []byte("v1")); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}

	if _, _, found := c.Load(o, []byte("v1")); found {
		t.Errorf("Load(oid, \"v1\") found = true after version invalidate, want false")
	}
	if data, s, found := c.Load(o, nil); !found || !bytes.Equal(data, []byte("abc")) || s != serial(0x11) {
		t.Errorf("Load(oid, \"\") = (%q, %x, %v), want (\"abc\", %x, true)", data, s, found, serial(0x11))
	}

	version, found := c.ModifiedInVersion(o)
	if found {
		t.Errorf("ModifiedInVersion() found = true, want false (demoted to non-version)")
	}
	_ = version
}

// S5: rotation.
func TestCheckSize_rotates(t *testing.T) {
	c := newTempCache(t, 2000) // limit = 1000
	defer c.Close()

	rotations := 0

	data := bytes.Repeat([]byte("x"), 200)
	for i := 0; i < 10; i++ {
		o := oid(byte(i))
		s := serial(byte(i + 1))
		buf := record.Encode(o, data, s, nil, nil, record.Serial{})
		before := c.current
		if err := c.CheckSize(int64(len(buf))); err != nil {
			t.Fatalf("CheckSize() error = %v", err)
		}
		if c.current != before {
			rotations++
		}
		if err := c.Store(o, data, s, nil, nil, record.Serial{}); err != nil {
			t.Fatalf("Store() error = %v", err)
		}
	}

	if rotations == 0 {
		t.Errorf("CheckSize() never rotated after %d bytes of records", 10*(len(data)+31))
	}
	if c.pos > c.limit+int64(len(data)+31) {
		t.Errorf("append position %d grew unbounded past limit %d", c.pos, c.limit)
	}
}

// S6: restart recovery.
func TestRestartRecovery(t *testing.T) {
	dir := t.TempDir()
	newOpts := func() options.Options {
		opts, err := options.New("store", options.WithClientTag("client"), options.WithVarDir(dir), options.WithLogger(logger.Noop()))
		if err != nil {
			t.Fatalf("options.New() error = %v", err)
		}
		return opts
	}

	c1, err := New(newOpts())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := c1.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	o := oid(1)
	if err := c1.Store(o, []byte("abc"), serial(0x11), []byte("v1"), []byte("ABC"), serial(0x21)); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if err := c1.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	c2, err := New(newOpts())
	if err != nil {
		t.Fatalf("New() (reopen) error = %v", err)
	}
	defer c2.Close()

	entries, err := c2.Open()
	if err != nil {
		t.Fatalf("Open() (reopen) error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Open() (reopen) entries = %d, want 1", len(entries))
	}
	if entries[0].OID != o || entries[0].Serial != serial(0x11) || entries[0].VSerial != serial(0x21) {
		t.Errorf("Open() (reopen) entry = %+v, want oid=%x serial=%x vserial=%x", entries[0], o, serial(0x11), serial(0x21))
	}

	data, s, found := c2.Load(o, nil)
	if !found || !bytes.Equal(data, []byte("abc")) || s != serial(0x11) {
		t.Errorf("Load() after reopen = (%q, %x, %v), want (\"abc\", %x, true)", data, s, found, serial(0x11))
	}
}

// S7: truncation on corruption.
func TestReopen_truncatesCorruptTail(t *testing.T) {
	dir := t.TempDir()
	newOpts := func() options.Options {
		opts, err := options.New("store", options.WithClientTag("client"), options.WithVarDir(dir), options.WithLogger(logger.Noop()))
		if err != nil {
			t.Fatalf("options.New() error = %v", err)
		}
		return opts
	}

	c1, err := New(newOpts())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := c1.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	o := oid(1)
	if err := c1.Store(o, []byte("abc"), serial(0x11), nil, nil, record.Serial{}); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	goodPos := c1.pos
	path := c1.paths[c1.current]
	seg := c1.segs[c1.current]

	if _, err := seg.Append(goodPos, []byte("garbage!")); err != nil {
		t.Fatalf("Append() garbage error = %v", err)
	}
	if err := c1.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	_ = path

	c2, err := New(newOpts())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c2.Close()
	if _, err := c2.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if c2.pos != goodPos {
		t.Errorf("append position after reopen = %d, want %d (truncated before garbage)", c2.pos, goodPos)
	}

	if data, _, found := c2.Load(o, nil); !found || !bytes.Equal(data, []byte("abc")) {
		t.Errorf("Load() after truncating reopen = (%q, %v), want (\"abc\", true)", data, found)
	}
}

func TestInvariant_indexEntriesPointToLiveRecords(t *testing.T) {
	c := newTempCache(t, 10000)
	defer c.Close()

	for i := 0; i < 5; i++ {
		o := oid(byte(i))
		if err := c.Store(o, []byte("x"), serial(byte(i+1)), nil, nil, record.Serial{}); err != nil {
			t.Fatalf("Store() error = %v", err)
		}
	}

	for o, signed := range c.idx {
		offset, segIndex := index.Decode(signed)
		seg := c.segs[segIndex]
		h, err := seg.ReadHeader(offset)
		if err != nil {
			t.Fatalf("ReadHeader() error = %v", err)
		}
		if h.OID != o {
			t.Errorf("record at indexed offset has oid %x, want %x", h.OID, o)
		}
		if h.Status != record.StatusValid && h.Status != record.StatusNonVersion {
			t.Errorf("record at indexed offset has status %q, want 'v' or 'n'", h.Status)
		}
	}
}

