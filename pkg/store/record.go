package store

import (
	"context"
	"io"
)

// Identifier is an immutable wrapper around a committed digest. Its
// string form is the row's ID column: the lowercase hex encoding of the
// content's SHA-1.
type Identifier struct {
	hex string
}

// NewIdentifier wraps an already-hex-encoded digest.
func NewIdentifier(hex string) Identifier {
	return Identifier{hex: hex}
}

// String returns the lowercase hex form, the committed row id.
func (id Identifier) String() string {
	return id.hex
}

// Record is a handle bundling an Identifier with the metadata observed
// at the time it was returned, plus a back-reference to the store for
// stream access. Creating a Record registers its id in the store's
// liveness registry; Close releases that reference. Callers that intend
// to rely on the referenced bytes surviving a concurrent GC must hold
// the Record open, per the GC-safety invariant.
type Record struct {
	store        *Store
	identifier   Identifier
	length       int64
	lastModified int64
	closed       bool
}

// Identifier returns the record's content identifier.
func (r *Record) Identifier() Identifier {
	return r.identifier
}

// Length is the byte length of the blob's payload.
func (r *Record) Length() int64 {
	return r.length
}

// LastModified is the row's LAST_MODIFIED timestamp, in ms since epoch,
// as observed when the record was created.
func (r *Record) LastModified() int64 {
	return r.lastModified
}

// Open returns a stream over the record's bytes, delegating to the
// owning store's OpenStream.
func (r *Record) Open() (io.ReadCloser, error) {
	return r.store.OpenStream(context.Background(), r.identifier)
}

// Close releases this record's liveness reference. After Close, the
// record's bytes are no longer guaranteed to survive a concurrent GC.
// Close is idempotent.
func (r *Record) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.store.liveness.Release(r.identifier.String())
	return nil
}

func newRecord(s *Store, id Identifier, length, lastModified int64) *Record {
	s.liveness.Acquire(id.String())
	return &Record{store: s, identifier: id, length: length, lastModified: lastModified}
}
