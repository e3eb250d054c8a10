package store

import (
	"context"
	"testing"

	"github.com/christophe-duc/blobstore/pkg/schema"
	"github.com/christophe-duc/blobstore/pkg/sqlgw"
)

func newGatewayForOptionsTest(t *testing.T) (*sqlgw.Gateway, error) {
	t.Helper()
	gw, err := sqlgw.OpenSQLite(":memory:", "DATASTORE", "")
	if err != nil {
		return nil, err
	}
	if err := schema.Ensure(context.Background(), gw); err != nil {
		gw.Close()
		return nil, err
	}
	return gw, nil
}
