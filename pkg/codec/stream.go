package codec

import (
	"github.com/baobab-engine/baobab/pkg/bamboo"
	"github.com/baobab-engine/baobab/pkg/bambooerr"
)

// StreamError wraps a decode failure encountered partway through a
// DecodeStream call, carrying whatever entries were successfully
// parsed before the failure so a caller doing bulk import (pkg
// interchange) can keep the good prefix instead of discarding it.
type StreamError struct {
	Entries []*bamboo.Entry
	Err     error
}

func (e *StreamError) Error() string { return e.Err.Error() }
func (e *StreamError) Unwrap() error { return e.Err }

// DecodeStream repeatedly calls Decode until b is exhausted, returning
// every entry parsed in order. A trailing run of zero bytes (as pads
// a .bamboo.log file out to a block boundary) is tolerated and simply
// ends the stream; any other decode failure is reported as a
// *StreamError carrying the entries decoded so far.
func DecodeStream(b []byte) ([]*bamboo.Entry, error) {
	var entries []*bamboo.Entry
	rest := b
	for len(rest) > 0 {
		if isZeroPadding(rest) {
			break
		}
		e, r, err := Decode(rest)
		if err != nil {
			return entries, &StreamError{Entries: entries, Err: err}
		}
		entries = append(entries, e)
		rest = r
	}
	return entries, nil
}

func isZeroPadding(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
