// Package zeccache implements a persistent client-side object cache
// for a remote object-storage client: a two-file bounded
// log-structured store keyed by 8-byte object identifiers, so a
// client can serve reads locally and, at reconnect, hand the server
// the set of (oid, serial) pairs it currently holds for server-driven
// invalidation.
//
// The cache is not safe for concurrent use by more than one process
// against the same persistent file pair, and a *Cache itself expects
// Open to be called exactly once, before any other method.
package zeccache

import (
	"github.com/coriolisdb/zeccache/internal/cache"
	"github.com/coriolisdb/zeccache/internal/record"
	"github.com/coriolisdb/zeccache/pkg/options"
)

// Re-exported so callers never need to import internal/record directly.
type (
	OID    = record.OID
	Serial = record.Serial
)

// OptionFunc configures a Cache at construction time.
type OptionFunc = options.OptionFunc

var (
	WithClientTag = options.WithClientTag
	WithVarDir    = options.WithVarDir
	WithTotalSize = options.WithTotalSize
	WithLogger    = options.WithLogger
)

// Entry is one (oid, serial, vserial?) pair returned by Open, for the
// caller to reconcile with the server during its invalidation
// handshake.
type Entry = cache.Entry

// Cache is a persistent client-side object cache. The zero value is
// not usable; construct one with New.
type Cache struct {
	inner *cache.Cache
}

// New builds a Cache for the given storage tag. storage may be empty.
// Without WithClientTag, the cache uses unnamed temporary segment
// files that vanish on Close; with a client tag, it uses persistent
// files named c<storage>-<client>-{0,1}.zec in the resolved var
// directory.
func New(storage string, opts ...OptionFunc) (*Cache, error) {
	o, err := options.New(storage, opts...)
	if err != nil {
		return nil, err
	}

	inner, err := cache.New(o)
	if err != nil {
		return nil, err
	}

	return &Cache{inner: inner}, nil
}

// Open scans both segment files and returns the (oid, serial,
// vserial?) pairs currently live in the cache. It must be called
// exactly once, before any other method, and its result is meant to
// be handed to Verify or used directly to drive a server-side
// invalidation handshake at reconnect.
func (c *Cache) Open() ([]Entry, error) {
	return c.inner.Open()
}

// Verify calls fn(oid, serial, vserial, hasVersion) for every entry
// surfaced by the last Open. hasVersion is false when vserial is
// meaningless (the oid has no version payload).
func (c *Cache) Verify(fn func(oid OID, serial Serial, vserial Serial, hasVersion bool)) {
	c.inner.Verify(fn)
}

// Load returns the cached bytes and serial for oid, honoring version
// fallback: a version that doesn't match what's stored falls back to
// the non-version payload if one exists. found is false on a cache
// miss, whether because oid is unknown or because no matching payload
// exists.
func (c *Cache) Load(oid OID, version []byte) (data []byte, serial Serial, found bool) {
	return c.inner.Load(oid, version)
}

// Store writes a new record directly: the caller supplies both the
// non-version (data, serial) pair and, optionally, a version
// (version, vdata, vserial) triple. It does not rotate segments; call
// CheckSize first with the anticipated encoded size.
func (c *Cache) Store(oid OID, data []byte, serial Serial, version, vdata []byte, vserial Serial) error {
	return c.inner.Store(oid, data, serial, version, vdata, vserial)
}

// Update writes a new revision, merging it with the existing
// non-version payload when version is non-empty: the existing
// (data, serial) pair is preserved alongside the new (version, data,
// serial) triple, so store doesn't have to be called with both halves
// supplied by hand.
func (c *Cache) Update(oid OID, serial Serial, version, data []byte) error {
	return c.inner.Update(oid, serial, version, data)
}

// Invalidate demotes or removes oid's record: an empty version drops
// it entirely; a non-empty version strips only the version payload,
// keeping the non-version half queryable.
func (c *Cache) Invalidate(oid OID, version []byte) error {
	return c.inner.Invalidate(oid, version)
}

// ModifiedInVersion reports which version oid's current record
// occupies: "" for the non-version trunk, a name for a versioned
// record, or found=false for a miss or a record already demoted to
// non-version status.
func (c *Cache) ModifiedInVersion(oid OID) (version string, found bool) {
	return c.inner.ModifiedInVersion(oid)
}

// CheckSize rotates the active segment when appending n more bytes
// would exceed the configured size limit. Callers that build up a
// record before encoding it should call this with the anticipated
// encoded size before Store or Update.
func (c *Cache) CheckSize(n int64) error {
	return c.inner.CheckSize(n)
}

// Close releases both segment file handles.
func (c *Cache) Close() error {
	return c.inner.Close()
}
