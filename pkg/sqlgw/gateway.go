package sqlgw

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver
)

// sqliteOptions deals with timezones explicitly, fsyncs after every
// write, enables foreign keys, and waits up to five seconds on a locked
// database instead of failing at once with "database is locked".
const sqliteOptions = "?_loc=auto&_sync=FULL&_foreign_keys=1&_busy_timeout=5000"

// Gateway executes the ten statement templates against a connection pool.
type Gateway struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQLite opens (creating if necessary) a SQLite-backed gateway at
// path for the given table name.
func OpenSQLite(path, table, tablePrefix string) (*Gateway, error) {
	db, err := sql.Open("sqlite3", path+sqliteOptions)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database at %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // one connection serialises statements and keeps a ":memory:" database shared
	return New(db, table, tablePrefix, nil), nil
}

// New wraps an already-open *sql.DB. overrides, if non-nil, supplies a
// non-default dialect's statement templates.
func New(db *sql.DB, table, tablePrefix string, overrides *Dialect) *Gateway {
	return &Gateway{db: db, dialect: Resolve(table, tablePrefix, overrides)}
}

// Dialect returns the resolved statement templates this gateway uses.
func (g *Gateway) Dialect() Dialect {
	return g.dialect
}

// DB exposes the underlying pool for the schema-check collaborator.
func (g *Gateway) DB() *sql.DB {
	return g.db
}

// Close releases the connection pool.
func (g *Gateway) Close() error {
	return g.db.Close()
}

// InsertTemp reserves a temp row.
func (g *Gateway) InsertTemp(ctx context.Context, tempID string, now int64) error {
	_, err := g.db.ExecContext(ctx, g.dialect.InsertTemp, tempID, now)
	return err
}

// UpdateData writes the payload bytes into a reserved row. Binary
// parameters in database/sql are passed as []byte, so the whole payload
// has already been read (and its length is known) before this call.
func (g *Gateway) UpdateData(ctx context.Context, data []byte, tempID string) error {
	_, err := g.db.ExecContext(ctx, g.dialect.UpdateData, data, tempID)
	return err
}

// Rename executes the single-statement atomic commit. The returned count
// is the arbiter described in the store engine's write protocol: 1 means
// this call won the race, 0 means a duplicate already exists.
func (g *Gateway) Rename(ctx context.Context, id string, length, now int64, tempID string) (int64, error) {
	res, err := g.db.ExecContext(ctx, g.dialect.Update, id, length, now, tempID, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Delete removes a row by id, used to clean up a losing temp row.
func (g *Gateway) Delete(ctx context.Context, id string) error {
	_, err := g.db.ExecContext(ctx, g.dialect.Delete, id)
	return err
}

// DeleteOlder deletes every row whose LAST_MODIFIED is strictly below
// threshold and returns the number of rows removed.
func (g *Gateway) DeleteOlder(ctx context.Context, threshold int64) (int64, error) {
	res, err := g.db.ExecContext(ctx, g.dialect.DeleteOlder, threshold)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// TouchIfOlder refreshes LAST_MODIFIED to now, provided the stored value
// is strictly less than now; it is a no-op otherwise.
func (g *Gateway) TouchIfOlder(ctx context.Context, id string, now int64) error {
	_, err := g.db.ExecContext(ctx, g.dialect.UpdateLastModified, now, id, now)
	return err
}

// Meta is the (LENGTH, LAST_MODIFIED) pair for a row.
type Meta struct {
	Length       int64
	LastModified int64
}

// ErrNoRow is returned by SelectMeta/SelectData when no row matches id.
var ErrNoRow = sql.ErrNoRows

// SelectMeta fetches LENGTH and LAST_MODIFIED for id.
func (g *Gateway) SelectMeta(ctx context.Context, id string) (Meta, error) {
	var m Meta
	err := g.db.QueryRowContext(ctx, g.dialect.SelectMeta, id).Scan(&m.Length, &m.LastModified)
	return m, err
}

// SelectData fetches the full payload for id. A nil slice with a nil
// error means the row exists but its DATA column is NULL (a reserved
// temp row observed mid-ingest, which callers should not normally see
// through a committed id).
func (g *Gateway) SelectData(ctx context.Context, id string) ([]byte, error) {
	var gotID string
	var data []byte
	err := g.db.QueryRowContext(ctx, g.dialect.SelectData, id).Scan(&gotID, &data)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// SelectAllIDs enumerates every row's id, temp rows included; filtering
// the temp prefix out is the store engine's responsibility.
func (g *Gateway) SelectAllIDs(ctx context.Context) ([]string, error) {
	rows, err := g.db.QueryContext(ctx, g.dialect.SelectAll)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
