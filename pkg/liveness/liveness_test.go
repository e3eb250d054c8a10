package liveness

import (
	"sort"
	"testing"

	"github.com/sasha-s/go-deadlock"
	"github.com/stretchr/testify/assert"
)

// TestAcquireReleaseIsRefCounted is a function.
func TestAcquireReleaseIsRefCounted(t *testing.T) {
	r := New()

	r.Acquire("a")
	r.Acquire("a")
	r.Release("a")
	assert.Equal(t, []string{"a"}, r.LiveIDs())

	r.Release("a")
	assert.Empty(t, r.LiveIDs())
}

// TestLiveIDsSnapshot is a function.
func TestLiveIDsSnapshot(t *testing.T) {
	r := New()
	r.Acquire("a")
	r.Acquire("b")

	ids := r.LiveIDs()
	sort.Strings(ids)
	assert.Equal(t, []string{"a", "b"}, ids)
}

// TestClearDropsCommittedOnly is a function.
func TestClearDropsCommittedOnly(t *testing.T) {
	r := New()
	r.Acquire("a")
	r.AddTemp("TEMP_x")

	r.Clear()

	assert.Empty(t, r.LiveIDs())
	assert.Equal(t, []string{"TEMP_x"}, r.TempIDs())
}

// TestTempIDLifecycle is a function.
func TestTempIDLifecycle(t *testing.T) {
	r := New()
	r.AddTemp("TEMP_1")
	assert.Equal(t, []string{"TEMP_1"}, r.TempIDs())

	r.RemoveTemp("TEMP_1")
	assert.Empty(t, r.TempIDs())
}

// TestSetDebugTogglesDeadlockDetection is a function.
func TestSetDebugTogglesDeadlockDetection(t *testing.T) {
	defer SetDebug(false)

	SetDebug(true)
	assert.False(t, deadlock.Opts.Disable)

	SetDebug(false)
	assert.True(t, deadlock.Opts.Disable)
}
