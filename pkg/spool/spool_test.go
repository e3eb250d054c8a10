package spool

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestValidStrategy is a function.
func TestValidStrategy(t *testing.T) {
	type scenario struct {
		strategy Strategy
		expected bool
	}

	scenarios := []scenario{
		{Spool, true},
		{Unknown, true},
		{Max, true},
		{Strategy("BOGUS"), false},
	}

	for _, s := range scenarios {
		assert.Equal(t, s.expected, ValidStrategy(s.strategy))
	}
}

// TestCopyRoundTrip is a function.
func TestCopyRoundTrip(t *testing.T) {
	dir, err := NewDir(filepath.Join(t.TempDir(), "scratch"))
	assert.NoError(t, err)

	f, n, err := dir.Copy(strings.NewReader("hello world"))
	assert.NoError(t, err)
	assert.Equal(t, int64(11), n)

	b, err := io.ReadAll(f)
	assert.NoError(t, err)
	assert.Equal(t, "hello world", string(b))

	name := f.Name()
	assert.NoError(t, f.Close())
	_, statErr := os.Stat(name)
	assert.True(t, os.IsNotExist(statErr))
}

// TestCopyDoubleCloseIsSafe is a function.
func TestCopyDoubleCloseIsSafe(t *testing.T) {
	dir, err := NewDir(t.TempDir())
	assert.NoError(t, err)

	f, _, err := dir.Copy(strings.NewReader("x"))
	assert.NoError(t, err)
	assert.NoError(t, f.Close())
	assert.NoError(t, f.Close())
}
