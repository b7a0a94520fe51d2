// Package discovery locates the daemon's unix socket when none is configured.
package discovery

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
)

// ErrNotFound is returned when no candidate path is a unix socket
var ErrNotFound = errors.New("no daemon socket found")

// Scanner searches well-known locations for the daemon socket
type Scanner struct {
	home  string
	extra []string
}

// NewScanner creates a scanner rooted at the given home directory. extra
// paths are probed after the well-known ones.
func NewScanner(home string, extra ...string) *Scanner {
	return &Scanner{home: home, extra: extra}
}

// ScanResult represents one probed path
type ScanResult struct {
	Path  string
	Valid bool
	Error error
}

// Candidates returns the probed paths in priority order
func (s *Scanner) Candidates() []string {
	out := []string{filepath.Join(s.home, "printer_data", "comms", "klippy.sock")}

	// Multi-instance installs use <name>_data directories.
	matches, _ := filepath.Glob(filepath.Join(s.home, "*_data", "comms", "klippy.sock"))
	sort.Strings(matches)
	for _, m := range matches {
		if m != out[0] {
			out = append(out, m)
		}
	}

	out = append(out, "/tmp/klippy_uds")
	return append(out, s.extra...)
}

// Scan probes every candidate
func (s *Scanner) Scan() []ScanResult {
	var results []ScanResult
	for _, p := range s.Candidates() {
		results = append(results, probe(p))
	}
	return results
}

// Find returns the first candidate that is a unix socket
func (s *Scanner) Find() (string, error) {
	for _, r := range s.Scan() {
		if r.Valid {
			return r.Path, nil
		}
	}
	return "", ErrNotFound
}

func probe(path string) ScanResult {
	fi, err := os.Stat(path)
	if err != nil {
		return ScanResult{Path: path, Error: err}
	}
	return ScanResult{Path: path, Valid: fi.Mode()&os.ModeSocket != 0}
}
