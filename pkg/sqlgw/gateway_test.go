package sqlgw

import (
	"context"
	"testing"

	"github.com/christophe-duc/blobstore/pkg/schema"
	"github.com/stretchr/testify/assert"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	gw, err := OpenSQLite(":memory:", "DATASTORE", "")
	assert.NoError(t, err)
	assert.NoError(t, schema.Ensure(context.Background(), gw))
	t.Cleanup(func() { gw.Close() })
	return gw
}

// TestInsertTempThenSelectMeta is a function.
func TestInsertTempThenSelectMeta(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)

	assert.NoError(t, gw.InsertTemp(ctx, "TEMP_abc", 100))

	meta, err := gw.SelectMeta(ctx, "TEMP_abc")
	assert.NoError(t, err)
	assert.Equal(t, int64(0), meta.Length)
	assert.Equal(t, int64(100), meta.LastModified)
}

// TestSelectMetaMissingRow is a function.
func TestSelectMetaMissingRow(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)

	_, err := gw.SelectMeta(ctx, "nope")
	assert.ErrorIs(t, err, ErrNoRow)
}

// TestRenameWinsThenLosesOnDuplicate is a function.
func TestRenameWinsThenLosesOnDuplicate(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)

	assert.NoError(t, gw.InsertTemp(ctx, "TEMP_1", 1))
	assert.NoError(t, gw.UpdateData(ctx, []byte("hello"), "TEMP_1"))

	count, err := gw.Rename(ctx, "digest123", 5, 2, "TEMP_1")
	assert.NoError(t, err)
	assert.Equal(t, int64(1), count)

	assert.NoError(t, gw.InsertTemp(ctx, "TEMP_2", 3))
	assert.NoError(t, gw.UpdateData(ctx, []byte("hello"), "TEMP_2"))

	count, err = gw.Rename(ctx, "digest123", 5, 4, "TEMP_2")
	assert.NoError(t, err)
	assert.Equal(t, int64(0), count, "duplicate content must not win the rename")

	assert.NoError(t, gw.Delete(ctx, "TEMP_2"))

	ids, err := gw.SelectAllIDs(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []string{"digest123"}, ids)
}

// TestDeleteOlderAndTouch is a function.
func TestDeleteOlderAndTouch(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)

	assert.NoError(t, gw.InsertTemp(ctx, "TEMP_1", 1))
	assert.NoError(t, gw.UpdateData(ctx, []byte("x"), "TEMP_1"))
	_, err := gw.Rename(ctx, "id1", 1, 10, "TEMP_1")
	assert.NoError(t, err)

	assert.NoError(t, gw.TouchIfOlder(ctx, "id1", 1000))
	meta, err := gw.SelectMeta(ctx, "id1")
	assert.NoError(t, err)
	assert.Equal(t, int64(1000), meta.LastModified)

	// touching with an earlier "now" must not move LAST_MODIFIED backwards
	assert.NoError(t, gw.TouchIfOlder(ctx, "id1", 5))
	meta, err = gw.SelectMeta(ctx, "id1")
	assert.NoError(t, err)
	assert.Equal(t, int64(1000), meta.LastModified)

	deleted, err := gw.DeleteOlder(ctx, 1001)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}
