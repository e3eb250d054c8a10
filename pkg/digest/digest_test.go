package digest

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestTeeReaderHello is a function.
func TestTeeReaderHello(t *testing.T) {
	r := NewTeeReader(strings.NewReader("hello"))
	b, err := io.ReadAll(r)
	assert.NoError(t, err)
	assert.Equal(t, "hello", string(b))
	assert.Equal(t, int64(5), r.Count())
	assert.Equal(t, "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d", r.ID())
	assert.True(t, r.Done())
}

// TestTeeReaderEmpty is a function.
func TestTeeReaderEmpty(t *testing.T) {
	r := NewTeeReader(strings.NewReader(""))
	b, err := io.ReadAll(r)
	assert.NoError(t, err)
	assert.Len(t, b, 0)
	assert.Equal(t, int64(0), r.Count())
	assert.Equal(t, "da39a3ee5e6b4b0d3255bfef95601890afd80709", r.ID())
}

// TestValidHex is a function.
func TestValidHex(t *testing.T) {
	type scenario struct {
		value    string
		expected bool
	}

	scenarios := []scenario{
		{"aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d", true},
		{"AAF4C61DDCC5E8A2DABEDE0F3B482CD9AEA9434D", false},
		{"not-hex-at-all-xxxxxxxxxxxxxxxxxxxxxxxxx", false},
		{"TEMP_0f3b482cd9aea9434d", false},
		{"", false},
	}

	for _, s := range scenarios {
		assert.Equal(t, s.expected, ValidHex(s.value), s.value)
	}
}
