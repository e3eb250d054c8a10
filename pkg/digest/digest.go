// Package digest wraps an input stream with a streaming SHA-1 digest,
// the content identifier used throughout the store.
package digest

import (
	"crypto/sha1"
	"encoding/hex"
	"hash"
	"io"
)

// TeeReader wraps an io.Reader, feeding every byte read through a running
// SHA-1 digest and counting bytes as they pass. It must be read to EOF
// exactly once; seeking or re-reading invalidates the digest.
type TeeReader struct {
	src   io.Reader
	h     hash.Hash
	count int64
	done  bool
}

// NewTeeReader wraps src so that Sum and Count become valid once src has
// been read to EOF through the returned reader.
func NewTeeReader(src io.Reader) *TeeReader {
	return &TeeReader{src: src, h: sha1.New()}
}

func (t *TeeReader) Read(p []byte) (int, error) {
	n, err := t.src.Read(p)
	if n > 0 {
		t.h.Write(p[:n])
		t.count += int64(n)
	}
	if err == io.EOF {
		t.done = true
	}
	return n, err
}

// Count returns the number of bytes observed so far.
func (t *TeeReader) Count() int64 {
	return t.count
}

// Sum returns the raw digest bytes. It is only authoritative once the
// wrapped reader has been fully consumed.
func (t *TeeReader) Sum() []byte {
	return t.h.Sum(nil)
}

// ID returns the lowercase hex encoding of Sum, the committed row id.
func (t *TeeReader) ID() string {
	return hex.EncodeToString(t.Sum())
}

// Done reports whether the wrapped reader has reached EOF.
func (t *TeeReader) Done() bool {
	return t.done
}

// Size is the byte length of a digest produced by this package.
const Size = sha1.Size

// HexSize is the length of a digest's lowercase hex encoding.
const HexSize = Size * 2

// ValidHex reports whether v looks like a lowercase hex digest of the
// algorithm this package produces. It does not verify that any row with
// that id actually exists.
func ValidHex(v string) bool {
	if len(v) != HexSize {
		return false
	}
	for _, c := range v {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		default:
			return false
		}
	}
	return true
}
