package blobutil

import (
	"errors"
	"io"
	"testing"
)

type scenario struct {
	testName string
	input    int64
	expected string
}

func TestFormatBinaryBytes(t *testing.T) {
	scenarios := []scenario{
		{
			testName: "zero",
			input:    0,
			expected: "0B",
		},
		{
			testName: "under a kibibyte",
			input:    512,
			expected: "512.00B",
		},
		{
			testName: "one mebibyte",
			input:    1024 * 1024,
			expected: "1.00MiB",
		},
	}

	for _, s := range scenarios {
		t.Run(s.testName, func(t *testing.T) {
			if actual := FormatBinaryBytes(s.input); actual != s.expected {
				t.Fatalf("Expected %s but got %s", s.expected, actual)
			}
		})
	}
}

func TestFormatDecimalBytes(t *testing.T) {
	scenarios := []scenario{
		{
			testName: "zero",
			input:    0,
			expected: "0B",
		},
		{
			testName: "under a kilobyte",
			input:    512,
			expected: "512.00B",
		},
		{
			testName: "one megabyte",
			input:    1000 * 1000,
			expected: "1.00MB",
		},
	}

	for _, s := range scenarios {
		t.Run(s.testName, func(t *testing.T) {
			if actual := FormatDecimalBytes(s.input); actual != s.expected {
				t.Fatalf("Expected %s but got %s", s.expected, actual)
			}
		})
	}
}

func TestSafeTruncate(t *testing.T) {
	if actual := SafeTruncate("abcdefgh", 4); actual != "abcd" {
		t.Fatalf("Expected abcd but got %s", actual)
	}
	if actual := SafeTruncate("abc", 4); actual != "abc" {
		t.Fatalf("Expected abc but got %s", actual)
	}
}

type failingCloser struct{ err error }

func (f failingCloser) Close() error { return f.err }

func TestCloseManyAggregatesErrors(t *testing.T) {
	err1 := errors.New("first")
	err2 := errors.New("second")

	err := CloseMany([]io.Closer{failingCloser{err1}, failingCloser{nil}, failingCloser{err2}})
	if err == nil {
		t.Fatalf("Expected an aggregated error")
	}
}

func TestCloseManyNoErrors(t *testing.T) {
	err := CloseMany([]io.Closer{failingCloser{nil}, failingCloser{nil}})
	if err != nil {
		t.Fatalf("Unexpected error: %s", err)
	}
}
