package klippy

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ETX terminates every message in both directions
const ETX byte = 0x03

// Encode marshals v and appends the terminator
func Encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return append(b, ETX), nil
}

// Splitter reassembles messages from a byte stream. Bytes after the last
// terminator are carried over to the next Feed.
type Splitter struct {
	carry []byte
}

// Feed appends data and returns every message it completes, without
// terminators. Empty messages are skipped.
func (s *Splitter) Feed(data []byte) [][]byte {
	s.carry = append(s.carry, data...)

	var out [][]byte
	rest := s.carry
	for {
		i := bytes.IndexByte(rest, ETX)
		if i < 0 {
			break
		}
		if i > 0 {
			out = append(out, append([]byte(nil), rest[:i]...))
		}
		rest = rest[i+1:]
	}

	if len(rest) != len(s.carry) {
		s.carry = append(s.carry[:0], rest...)
	}
	return out
}

// Pending returns the number of carried bytes
func (s *Splitter) Pending() int {
	return len(s.carry)
}

// Reset drops the carried bytes
func (s *Splitter) Reset() {
	s.carry = s.carry[:0]
}
