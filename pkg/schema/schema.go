// Package schema bootstraps the DATASTORE table with an idempotent
// schema check run before first use.
package schema

import (
	"context"
	"fmt"

	"github.com/christophe-duc/blobstore/pkg/sqlgw"
)

// Ensure runs the gateway's createTable statement. It is safe to call on
// every startup: the statement is idempotent (CREATE TABLE IF NOT EXISTS
// in the default dialect; other dialects must offer the same guarantee).
func Ensure(ctx context.Context, gw *sqlgw.Gateway) error {
	if _, err := gw.DB().ExecContext(ctx, gw.Dialect().CreateTable); err != nil {
		return fmt.Errorf("schema check for table %q: %w", gw.Dialect().Table, err)
	}
	return nil
}
