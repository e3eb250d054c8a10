// Package store implements the content-addressed blob store: the
// two-phase write pipeline, the GC liveness protocol, and the streaming
// read path of the content-addressed blob store. It orchestrates the
// digest engine, temp-spool, SQL gateway, and liveness registry.
package store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/christophe-duc/blobstore/pkg/digest"
	"github.com/christophe-duc/blobstore/pkg/liveness"
	"github.com/christophe-duc/blobstore/pkg/schema"
	"github.com/christophe-duc/blobstore/pkg/spool"
	"github.com/christophe-duc/blobstore/pkg/sqlgw"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// tempPrefix marks a reserved, not-yet-committed row. list-ids must
// never surface an id carrying this prefix.
const tempPrefix = "TEMP_"

// Clock lets tests substitute a deterministic time source; production
// code uses realClock, which calls time.Now.
type Clock interface {
	NowMillis() int64
}

type realClock struct{}

func (realClock) NowMillis() int64 { return time.Now().UnixMilli() }

// Options configures a Store at construction time.
type Options struct {
	// Gateway is the already-opened SQL gateway; construction is the
	// caller's responsibility (see sqlgw.OpenSQLite and schema.Ensure).
	Gateway *sqlgw.Gateway

	// MinRecordLength is the smallest payload Put will accept; 0
	// disables the check.
	MinRecordLength int64

	// SpoolStrategy selects how Put presents an unknown-length stream
	// to the driver. Defaults to spool.Spool.
	SpoolStrategy spool.Strategy

	// SpoolDir is required when SpoolStrategy is spool.Spool, or when
	// CopyWhenReading is true.
	SpoolDir *spool.Dir

	// CopyWhenReading, when true, spools a read BLOB to a scratch file
	// and releases the result set before returning a reader; when
	// false, the reader is a buffered view handed back directly.
	CopyWhenReading bool

	// Log receives diagnostic entries; defaults to a discarding logger.
	Log *logrus.Entry

	// Clock is for tests; production callers should leave it nil.
	Clock Clock
}

// Store is the public blob store engine, C5 in the component design.
type Store struct {
	gw              *sqlgw.Gateway
	liveness        *liveness.Registry
	minRecordLength int64
	spoolStrategy   spool.Strategy
	spoolDir        *spool.Dir
	copyWhenReading bool
	log             *logrus.Entry
	clock           Clock
	accessWindow    time.Duration

	gcMu sync.Mutex // gc-older-than is mutually exclusive with itself
}

// New validates opts and returns a ready Store. It does not create the
// DATASTORE table; call schema.Ensure first, or use Open which does both.
func New(opts Options) (*Store, error) {
	if opts.Gateway == nil {
		return nil, newError(KindConfiguration, nil, "gateway is required")
	}
	strategy := opts.SpoolStrategy
	if strategy == "" {
		strategy = spool.Spool
	}
	if !spool.ValidStrategy(strategy) {
		return nil, newError(KindConfiguration, nil, "unknown spool strategy %q", strategy)
	}
	if strategy == spool.Spool && opts.SpoolDir == nil {
		return nil, newError(KindConfiguration, nil, "spool strategy %q requires a spool directory", strategy)
	}
	if opts.CopyWhenReading && opts.SpoolDir == nil {
		return nil, newError(KindConfiguration, nil, "copyWhenReading requires a spool directory")
	}

	log := opts.Log
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	clock := opts.Clock
	if clock == nil {
		clock = realClock{}
	}

	return &Store{
		gw:              opts.Gateway,
		liveness:        liveness.New(),
		minRecordLength: opts.MinRecordLength,
		spoolStrategy:   strategy,
		spoolDir:        opts.SpoolDir,
		copyWhenReading: opts.CopyWhenReading,
		log:             log,
		clock:           clock,
	}, nil
}

// Open opens a SQLite-backed gateway at path, ensures the schema exists,
// and returns a ready Store. It is the common-case convenience path; a
// caller needing a different dialect should build the Gateway itself
// and call New directly.
func Open(path, table, tablePrefix string, opts Options) (*Store, error) {
	gw, err := sqlgw.OpenSQLite(path, table, tablePrefix)
	if err != nil {
		return nil, newError(KindSQL, err, "opening gateway")
	}
	if err := schema.Ensure(context.Background(), gw); err != nil {
		gw.Close()
		return nil, newError(KindSQL, err, "ensuring schema")
	}
	opts.Gateway = gw
	s, err := New(opts)
	if err != nil {
		gw.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.gw.Close()
}

// ClearInUse drops every committed liveness reference. It does not
// disturb ids currently mid-ingest.
func (s *Store) ClearInUse() {
	s.liveness.Clear()
}

func (s *Store) now() int64 {
	return s.clock.NowMillis()
}

// Put streams r into the store and returns a Record bound to the
// content's digest. The returned record's identifier equals the digest
// of the fully consumed input; the backing row is present and complete;
// no orphan row is visible to other readers after Put returns normally.
func (s *Store) Put(ctx context.Context, r io.Reader) (*Record, error) {
	tempID, err := s.reserveTemp(ctx)
	if err != nil {
		return nil, err
	}
	s.liveness.AddTemp(tempID)
	defer s.liveness.RemoveTemp(tempID)

	var cleanup []io.Closer
	defer func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i].Close()
		}
	}()

	digestID, length, err := s.streamIntoTemp(ctx, r, tempID, &cleanup)
	if err != nil {
		s.bestEffortDeleteTemp(ctx, tempID)
		return nil, err
	}

	if s.minRecordLength > 0 && length < s.minRecordLength {
		s.bestEffortDeleteTemp(ctx, tempID)
		return nil, newError(KindConfiguration, nil, "payload of %d bytes is below minRecordLength %d", length, s.minRecordLength)
	}

	return s.commit(ctx, tempID, digestID, length)
}

// reserveTemp generates a fresh temp id and reserves a row for it,
// restarting on the effectively-impossible case of a UUID collision.
func (s *Store) reserveTemp(ctx context.Context) (string, error) {
	for {
		tempID := tempPrefix + uuid.NewString()

		if _, err := s.gw.SelectMeta(ctx, tempID); err == nil {
			s.log.Warnf("temp id collision on %s, retrying", tempID)
			continue
		} else if !errors.Is(err, sqlgw.ErrNoRow) {
			return "", newError(KindSQL, err, "probing temp id %s", tempID)
		}

		if err := s.gw.InsertTemp(ctx, tempID, s.now()); err != nil {
			return "", newError(KindSQL, err, "reserving temp row %s", tempID)
		}
		return tempID, nil
	}
}

// streamIntoTemp wraps r in the digest tee, applies the spool strategy,
// and writes the resulting bytes into the reserved temp row's DATA
// column. It returns the final digest hex id and byte length.
func (s *Store) streamIntoTemp(ctx context.Context, r io.Reader, tempID string, cleanup *[]io.Closer) (string, int64, error) {
	tee := digest.NewTeeReader(r)

	var data []byte
	switch s.spoolStrategy {
	case spool.Spool:
		f, _, err := s.spoolDir.Copy(tee)
		if err != nil {
			return "", 0, newError(KindSQL, err, "spooling write stream")
		}
		*cleanup = append(*cleanup, f)
		buf, err := io.ReadAll(f)
		if err != nil {
			return "", 0, newError(KindSQL, err, "reading back spooled stream")
		}
		data = buf
	default:
		// UNKNOWN and MAX only change the length hint a non-Go driver
		// bind would need; database/sql always takes a concrete []byte
		// parameter, so both strategies degrade to a buffered read
		// here, same as Spool but without a scratch file.
		buf, err := io.ReadAll(tee)
		if err != nil {
			return "", 0, newError(KindSQL, err, "reading write stream")
		}
		data = buf
	}

	if !tee.Done() {
		return "", 0, newError(KindDigestUnavailable, nil, "stream was not fully consumed")
	}

	if err := s.gw.UpdateData(ctx, data, tempID); err != nil {
		return "", 0, newError(KindSQL, err, "writing payload for temp row %s", tempID)
	}

	return tee.ID(), tee.Count(), nil
}

// commit executes the atomic rename and resolves the duplicate branch.
// It must stay a single SQL statement per the design notes: splitting it
// into SELECT-then-UPDATE reintroduces the race the atomic form exists
// to close.
func (s *Store) commit(ctx context.Context, tempID, digestID string, length int64) (*Record, error) {
	now := s.now()

	count, err := s.gw.Rename(ctx, digestID, length, now, tempID)
	if err != nil {
		s.bestEffortDeleteTemp(ctx, tempID)
		return nil, newError(KindSQL, err, "renaming temp row %s to %s", tempID, digestID)
	}

	id := NewIdentifier(digestID)

	if count == 1 {
		return newRecord(s, id, length, now), nil
	}

	// count == 0: a committed row for this digest already exists.
	if err := s.gw.Delete(ctx, tempID); err != nil {
		s.log.Errorf("deleting losing temp row %s: %s", tempID, err)
	}

	meta, err := s.gw.SelectMeta(ctx, digestID)
	if err != nil {
		return nil, newError(KindSQL, err, "reading metadata for existing row %s", digestID)
	}
	if meta.Length != length {
		return nil, newError(KindCollision, nil, "digest collision on %s: existing length %d, new length %d", digestID, meta.Length, length)
	}

	if err := s.touchIfStale(ctx, digestID, meta.LastModified, now); err != nil {
		return nil, err
	}

	return newRecord(s, id, length, now), nil
}

func (s *Store) bestEffortDeleteTemp(ctx context.Context, tempID string) {
	if err := s.gw.Delete(ctx, tempID); err != nil {
		s.log.Warnf("best-effort cleanup of temp row %s failed: %s", tempID, err)
	}
}

// GetIfPresent registers id in the liveness registry, reads its
// metadata, touches it if it falls outside the configured access window
// (see TouchOnAccessWindow), and returns a Record. A missing row
// surfaces as a KindNotFound error.
func (s *Store) GetIfPresent(ctx context.Context, id string) (*Record, error) {
	meta, err := s.gw.SelectMeta(ctx, id)
	if err != nil {
		if errors.Is(err, sqlgw.ErrNoRow) {
			return nil, newError(KindNotFound, err, "no row for id %s", id)
		}
		return nil, newError(KindSQL, err, "reading metadata for id %s", id)
	}

	now := s.now()
	lastModified := meta.LastModified
	minModifiedDate := s.AccessWindowMinModified()
	if minModifiedDate > 0 && meta.LastModified < minModifiedDate {
		if err := s.touchIfStale(ctx, id, meta.LastModified, now); err != nil {
			return nil, err
		}
		lastModified = now
	}

	return newRecord(s, NewIdentifier(id), meta.Length, lastModified), nil
}

func (s *Store) touchIfStale(ctx context.Context, id string, observed, now int64) error {
	if observed >= now {
		return nil
	}
	if err := s.gw.TouchIfOlder(ctx, id, now); err != nil {
		return newError(KindSQL, err, "touching id %s", id)
	}
	return nil
}

// OpenStream returns a reader over id's payload. A NULL DATA column (a
// reserved temp row observed mid-ingest) yields an empty reader with no
// scratch file behind it. Not-found surfaces as a KindNotFound error.
func (s *Store) OpenStream(ctx context.Context, id Identifier) (io.ReadCloser, error) {
	data, err := s.gw.SelectData(ctx, id.String())
	if err != nil {
		if errors.Is(err, sqlgw.ErrNoRow) {
			return nil, newError(KindNotFound, err, "no row for id %s", id)
		}
		return nil, newError(KindSQL, err, "reading data for id %s", id)
	}
	if data == nil {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}

	if s.copyWhenReading {
		f, _, err := s.spoolDir.Copy(bytes.NewReader(data))
		if err != nil {
			return nil, newError(KindSQL, err, "spooling read for id %s", id)
		}
		return f, nil
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

// ListIDs enumerates every committed id, filtering out any row whose id
// carries the temp prefix.
func (s *Store) ListIDs(ctx context.Context) ([]Identifier, error) {
	raw, err := s.gw.SelectAllIDs(ctx)
	if err != nil {
		return nil, newError(KindSQL, err, "listing ids")
	}

	ids := make([]Identifier, 0, len(raw))
	for _, id := range raw {
		if len(id) >= len(tempPrefix) && id[:len(tempPrefix)] == tempPrefix {
			continue
		}
		ids = append(ids, NewIdentifier(id))
	}
	return ids, nil
}

// GCOlderThan deletes every row whose LAST_MODIFIED is strictly below
// threshold, except that every id currently referenced by a live Record
// or mid-ingest is first touched to now so it survives regardless of how
// stale it was beforehand. It returns the number of rows deleted.
//
// gc-older-than is serialised with itself per Store instance; it may run
// concurrently with Put/GetIfPresent, coordinating solely through the
// liveness registry.
func (s *Store) GCOlderThan(ctx context.Context, threshold time.Time) (int64, error) {
	s.gcMu.Lock()
	defer s.gcMu.Unlock()

	live := s.liveness.LiveIDs()
	live = append(live, s.liveness.TempIDs()...)

	now := s.now()
	for _, id := range live {
		if err := s.gw.TouchIfOlder(ctx, id, now); err != nil {
			return 0, newError(KindSQL, err, "refreshing live id %s before gc", id)
		}
	}

	deleted, err := s.gw.DeleteOlder(ctx, threshold.UnixMilli())
	if err != nil {
		return 0, newError(KindSQL, err, "deleting rows older than %s", threshold)
	}

	s.log.WithFields(logrus.Fields{"deleted": deleted, "liveCount": len(live)}).Info("gc completed")
	return deleted, nil
}

// TouchOnAccessWindow sets the age window GetIfPresent uses to decide
// whether a read should refresh a row's LAST_MODIFIED: a row observed
// older than window is touched to now on read, shielding the active
// working set from an otherwise-eligible GC sweep. A zero window (the
// default) disables the touch-on-read behavior entirely.
func (s *Store) TouchOnAccessWindow(window time.Duration) {
	s.accessWindow = window
}

// AccessWindowMinModified returns the LAST_MODIFIED cutoff below which
// GetIfPresent touches a row on read, per the window set by
// TouchOnAccessWindow. Zero means the behavior is disabled.
func (s *Store) AccessWindowMinModified() int64 {
	if s.accessWindow <= 0 {
		return 0
	}
	return s.now() - s.accessWindow.Milliseconds()
}
