// Package cache implements the controller that owns both segment
// files, the active-segment pointer, the offset index, and the single
// mutex serializing every public operation. It is the component
// spec.md calls "the cache controller".
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/coriolisdb/zeccache/internal/index"
	"github.com/coriolisdb/zeccache/internal/record"
	"github.com/coriolisdb/zeccache/internal/scanner"
	"github.com/coriolisdb/zeccache/internal/segment"
	"github.com/coriolisdb/zeccache/pkg/filesys"
	"github.com/coriolisdb/zeccache/pkg/options"
	"github.com/coriolisdb/zeccache/pkg/varpath"
)

// Entry is one (oid, serial, vserial?) pair surfaced by Open, driving
// the server-side invalidation handshake a caller runs afterward.
type Entry struct {
	OID        record.OID
	Serial     record.Serial
	VSerial    record.Serial
	HasVersion bool
}

// Cache is the controller: two segment files, the active-segment
// pointer, the append position, the size limit, the index, and the
// mutex that serializes every public method for its entire duration.
type Cache struct {
	mu sync.Mutex

	log        *zap.SugaredLogger
	limit      int64
	persistent bool

	segs    [2]*segment.Segment
	paths   [2]string
	current int
	pos     int64

	idx     index.Index
	serials map[record.OID]scanner.SerialPair
}

// New constructs a cache from opts: resolving the var directory and
// segment filenames in persistent mode, opening the segment files that
// exist (or creating segment 0 when none does, and always in temporary
// mode), and choosing which one is current via the bootstrap
// tie-break described in the format spec. It does not scan; callers
// must call Open before issuing any other operation.
func New(opts options.Options) (*Cache, error) {
	limit := opts.TotalSize / 2
	persistent := opts.Client != ""

	var paths [2]string
	if persistent {
		varDir := opts.VarDir
		if varDir == "" {
			resolved, err := varpath.Resolve(os.Getenv("CLIENT_HOME"), os.Getenv("INSTANCE_HOME"))
			if err != nil {
				return nil, err
			}
			varDir = resolved
		}
		if err := filesys.CreateDir(varDir, 0755, true); err != nil {
			return nil, err
		}
		paths[0] = filepath.Join(varDir, fmt.Sprintf("c%s-%s-0.zec", opts.Storage, opts.Client))
		paths[1] = filepath.Join(varDir, fmt.Sprintf("c%s-%s-1.zec", opts.Storage, opts.Client))
	}

	segs, current, err := bootstrap(paths, persistent)
	if err != nil {
		return nil, err
	}

	return &Cache{
		log:        opts.Logger,
		limit:      limit,
		persistent: persistent,
		segs:       segs,
		paths:      paths,
		current:    current,
		idx:        index.New(),
	}, nil
}

// bootstrap opens or creates the two segment files and decides which
// one starts out current. Ties (including the all-absent/all-zero
// case) default to segment 0, and segment 1 is dropped from the
// working set entirely rather than kept around as an alternate — it
// is recreated the first time rotation needs it.
func bootstrap(paths [2]string, persistent bool) ([2]*segment.Segment, int, error) {
	var segs [2]*segment.Segment

	if !persistent {
		seg0, err := segment.Create("", 0)
		if err != nil {
			return segs, 0, err
		}
		segs[0] = seg0
		return segs, 0, nil
	}

	var exists [2]bool
	for i := range paths {
		ok, err := filesys.Exists(paths[i])
		if err != nil {
			return segs, 0, err
		}
		exists[i] = ok
	}

	if !exists[0] && !exists[1] {
		seg0, err := segment.Create(paths[0], 0)
		if err != nil {
			return segs, 0, err
		}
		segs[0] = seg0
		return segs, 0, nil
	}

	var peek [2]record.Serial
	for i := range paths {
		if !exists[i] {
			continue
		}
		seg, err := segment.Open(paths[i], i)
		if err != nil {
			return segs, 0, err
		}
		segs[i] = seg
		serial, _, err := seg.PeekSerial()
		if err != nil {
			return segs, 0, err
		}
		peek[i] = serial
	}

	if !exists[0] {
		return segs, 1, nil
	}
	if !exists[1] {
		return segs, 0, nil
	}

	if peek[0].Less(peek[1]) {
		return segs, 1, nil
	}

	// Tie (including both all-zero) or segment 0 strictly greater:
	// segment 0 is current either way, but a genuine tie also drops
	// segment 1 from the working set.
	if !peek[1].Less(peek[0]) {
		if err := segs[1].Close(); err != nil {
			return segs, 0, err
		}
		segs[1] = nil
	}
	return segs, 0, nil
}

// Open scans the alternate segment and then the current segment (in
// that order, so the current segment's records win ties), populating
// the index and the append position. It returns the serial summary
// for every live oid, for the caller to drive a server-side
// invalidation handshake.
func (c *Cache) Open() ([]Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := index.New()
	serials := make(map[record.OID]scanner.SerialPair)

	altIndex := 1 - c.current
	if alt := c.segs[altIndex]; alt != nil {
		if _, err := scanner.Scan(alt, altIndex, idx, serials); err != nil {
			return nil, err
		}
	}

	cur := c.segs[c.current]
	pos, err := scanner.Scan(cur, c.current, idx, serials)
	if err != nil {
		return nil, err
	}

	c.idx = idx
	c.serials = serials
	c.pos = pos

	if c.log != nil {
		c.log.Infow("cache opened",
			"activeSegment", c.current,
			"limit", c.limit,
			"persistent", c.persistent,
			"entries", len(serials),
		)
	}

	entries := make([]Entry, 0, len(serials))
	for oid, pair := range serials {
		entries = append(entries, Entry{
			OID: oid, Serial: pair.Serial, VSerial: pair.VSerial, HasVersion: pair.HasVersion,
		})
	}
	return entries, nil
}

// Verify calls fn(oid, serial, vserial) for every entry currently
// summarized from the last Open. It is not required to observe a
// consistent snapshot against concurrent writes, since in practice it
// runs once, immediately after Open, before the cache serves requests.
func (c *Cache) Verify(fn func(oid record.OID, serial record.Serial, vserial record.Serial, hasVersion bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for oid, pair := range c.serials {
		fn(oid, pair.Serial, pair.VSerial, pair.HasVersion)
	}
}

// Load looks up oid and returns its cached bytes and serial, honoring
// the version-fallback rules: a requested version that doesn't match
// the stored one falls back to the non-version half when one exists.
func (c *Cache) Load(oid record.OID, version []byte) ([]byte, record.Serial, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	signed, ok := c.idx.Get(oid)
	if !ok {
		return nil, record.Serial{}, false
	}
	offset, segIndex := index.Decode(signed)

	h, r, ok := c.readRecordAt(oid, offset, segIndex)
	if !ok {
		return nil, record.Serial{}, false
	}

	if h.Status == record.StatusNonVersion {
		if len(version) > 0 {
			return nil, record.Serial{}, false
		}
		if h.DLen > 0 {
			return r.Data, h.Serial, true
		}
		c.idx.Delete(oid)
		return nil, record.Serial{}, false
	}

	if len(version) == 0 || !r.HasVersion() {
		if h.DLen > 0 {
			return r.Data, h.Serial, true
		}
		return nil, record.Serial{}, false
	}

	if string(r.Version) == string(version) {
		return r.VData, r.VSerial, true
	}

	if h.DLen > 0 {
		return r.Data, h.Serial, true
	}
	return nil, record.Serial{}, false
}

// readRecordAt decodes the header and full body at offset in the
// given segment, dropping the index entry on a malformed record or an
// oid mismatch (a stale pointer into a rotated-away segment).
func (c *Cache) readRecordAt(oid record.OID, offset int64, segIndex int) (record.Header, record.Record, bool) {
	seg := c.segs[segIndex]
	if seg == nil {
		c.idx.Delete(oid)
		return record.Header{}, record.Record{}, false
	}

	h, err := seg.ReadHeader(offset)
	if err != nil {
		c.idx.Delete(oid)
		return record.Header{}, record.Record{}, false
	}
	if h.OID != oid {
		c.idx.Delete(oid)
		return record.Header{}, record.Record{}, false
	}

	r, err := seg.ReadRecord(offset, h)
	if err != nil {
		c.idx.Delete(oid)
		return record.Header{}, record.Record{}, false
	}

	return h, r, true
}

// Store appends a new record to the active segment and installs it in
// the index. It does not itself rotate; the caller is expected to
// have called CheckSize first.
func (c *Cache) Store(oid record.OID, data []byte, serial record.Serial, version, vdata []byte, vserial record.Serial) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.store(oid, data, serial, version, vdata, vserial)
}

func (c *Cache) store(oid record.OID, data []byte, serial record.Serial, version, vdata []byte, vserial record.Serial) error {
	buf := record.Encode(oid, data, serial, version, vdata, vserial)

	seg := c.segs[c.current]
	offset, err := seg.Append(c.pos, buf)
	if err != nil {
		return err
	}

	c.idx.Set(oid, offset, c.current)
	c.pos += int64(len(buf))
	return nil
}

// Update merges a new revision with the existing non-version payload
// when version is non-empty: store has the caller supply both halves
// directly; update fetches the non-version half from the cache.
func (c *Cache) Update(oid record.OID, serial record.Serial, version, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(version) == 0 {
		return c.store(oid, data, serial, nil, nil, record.Serial{})
	}

	var existingData []byte
	var existingSerial record.Serial

	if signed, ok := c.idx.Get(oid); ok {
		offset, segIndex := index.Decode(signed)
		if h, r, ok := c.readRecordAt(oid, offset, segIndex); ok && h.DLen > 0 {
			existingData = r.Data
			existingSerial = h.Serial
		}
	}

	return c.store(oid, existingData, existingSerial, version, data, serial)
}

// Invalidate demotes or removes oid's record: version="" kills it
// ('i', removed from the index); version!="" strips the version half
// but keeps the non-version half ('n', index entry retained).
func (c *Cache) Invalidate(oid record.OID, version []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	signed, ok := c.idx.Get(oid)
	if !ok {
		return nil
	}
	offset, segIndex := index.Decode(signed)

	seg := c.segs[segIndex]
	if seg == nil {
		c.idx.Delete(oid)
		return nil
	}

	h, err := seg.ReadHeader(offset)
	if err != nil || h.OID != oid {
		c.idx.Delete(oid)
		return nil
	}

	if err := seg.Invalidate(offset, len(version) > 0); err != nil {
		return err
	}

	if len(version) == 0 {
		c.idx.Delete(oid)
	}
	return nil
}

// ModifiedInVersion reports the version name occupying oid's current
// record: "" for a non-version record, a name for a versioned one, or
// found=false for a miss, a malformed record, or a record already
// demoted to 'n' (no version payload remains).
func (c *Cache) ModifiedInVersion(oid record.OID) (version string, found bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	signed, ok := c.idx.Get(oid)
	if !ok {
		return "", false
	}
	offset, segIndex := index.Decode(signed)

	seg := c.segs[segIndex]
	if seg == nil {
		c.idx.Delete(oid)
		return "", false
	}

	h, err := seg.ReadHeader(offset)
	if err != nil || h.OID != oid {
		c.idx.Delete(oid)
		return "", false
	}

	if h.Status == record.StatusNonVersion {
		return "", false
	}
	if h.VLen == 0 {
		return "", true
	}

	r, err := seg.ReadRecord(offset, h)
	if err != nil {
		c.idx.Delete(oid)
		return "", false
	}
	return string(r.Version), true
}

// CheckSize rotates the active segment when appending anticipated
// more bytes would exceed the size limit: the active and alternate
// segments swap roles, and the newly-active segment is reset to an
// empty, magic-only file (or created fresh, the first time the
// alternate slot has never held a segment). The old active segment
// remains readable as the new alternate.
func (c *Cache) CheckSize(anticipated int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pos+anticipated <= c.limit {
		return nil
	}

	next := 1 - c.current
	if c.segs[next] == nil {
		path := ""
		if c.persistent {
			path = c.paths[next]
		}
		seg, err := segment.Create(path, next)
		if err != nil {
			return err
		}
		c.segs[next] = seg
	} else if err := c.segs[next].Reset(); err != nil {
		return err
	}

	c.current = next
	c.pos = int64(segment.MagicSize)
	return nil
}

// Close releases both segment handles, aggregating any errors from
// either close via multierr rather than stopping at the first one.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	for _, seg := range c.segs {
		if seg == nil {
			continue
		}
		err = multierr.Append(err, seg.Close())
	}
	return err
}
