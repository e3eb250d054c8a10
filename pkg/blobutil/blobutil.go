// Package blobutil holds small formatting and housekeeping helpers
// shared by the CLI and the app wiring: byte-count formatting,
// aggregating errors from a batch of closers, and truncating a vcs
// revision for the build version string.
package blobutil

import (
	"bytes"
	"io"
	"math"

	"fmt"
)

// FormatBinaryBytes renders b using binary (1024-based) units, for
// reporting blob and store sizes in `ls` output.
func FormatBinaryBytes(b int64) string {
	n := float64(b)
	units := []string{"B", "kiB", "MiB", "GiB", "TiB", "PiB", "EiB", "ZiB", "YiB"}
	for _, unit := range units {
		if n >= math.Pow(2, 10) {
			n /= math.Pow(2, 10)
		} else {
			val := fmt.Sprintf("%.2f%s", n, unit)
			if val == "0.00B" {
				return "0B"
			}
			return val
		}
	}
	return "a lot"
}

// FormatDecimalBytes renders b using decimal (1000-based) units.
func FormatDecimalBytes(b int64) string {
	n := float64(b)
	units := []string{"B", "kB", "MB", "GB", "TB", "PB", "EB", "ZB", "YB"}
	for _, unit := range units {
		if n >= math.Pow(10, 3) {
			n /= math.Pow(10, 3)
		} else {
			val := fmt.Sprintf("%.2f%s", n, unit)
			if val == "0.00B" {
				return "0B"
			}
			return val
		}
	}
	return "a lot"
}

type multiErr []error

func (m multiErr) Error() string {
	var b bytes.Buffer
	b.WriteString("encountered multiple errors:")
	for _, err := range m {
		b.WriteString("\n\t... " + err.Error())
	}
	return b.String()
}

// CloseMany closes every closer regardless of earlier failures and
// aggregates any errors into one.
func CloseMany(closers []io.Closer) error {
	errs := make([]error, 0, len(closers))
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return multiErr(errs)
	}
	return nil
}

// SafeTruncate truncates str to limit bytes, or returns it unchanged if
// it's already shorter. Used to shorten a vcs revision down to an
// abbreviated build version.
func SafeTruncate(str string, limit int) string {
	if len(str) > limit {
		return str[0:limit]
	}
	return str
}
