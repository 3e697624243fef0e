/*
MIT License

Copyright (c) 2023 Frank Oh

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package echo_record_cache

import "strconv"

// Key identifies a record. The zero Key means "no key supplied".
type Key int64

// String renders the key in base 10.
func (k Key) String() string {
	return strconv.FormatInt(int64(k), 10)
}

// ParseKey parses a base 10 key.
func ParseKey(s string) (Key, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return Key(n), nil
}

type (
	// Record is a cached value plus the metadata the engine needs to track
	// persistence.
	Record[V any] struct {
		Key   Key `json:"key"`
		Value V   `json:"value"`

		// Dirty is true while the cached value (or delete intent) has not
		// been persisted to the backing store.
		Dirty bool `json:"dirty"`

		// Deleted marks a write-back delete that still has to reach the
		// backing store. A deleted record is never served to readers.
		Deleted bool `json:"deleted"`

		// Version advances on every mutation of the record. Versions are
		// drawn from a map-wide clock and never repeat.
		Version uint64 `json:"version"`
	}

	// Validator is implemented by values that can reject themselves
	// before they are written.
	Validator interface {
		Validate() error
	}
)

// Live reports whether the record holds a value readers may observe.
func (r Record[V]) Live() bool {
	return !r.Deleted
}

// stampKey lets values that carry their own identifier pick up the key the
// engine settled on, which matters when the key was allocated.
func stampKey[V any](key Key, value V) V {
	if s, ok := any(value).(interface{ WithKey(Key) V }); ok {
		return s.WithKey(key)
	}
	return value
}

func validate[V any](value V) error {
	if v, ok := any(value).(Validator); ok {
		return v.Validate()
	}
	return nil
}

// keyOf returns the key a value carries, or 0 when it carries none.
func keyOf[V any](value V) Key {
	if k, ok := any(value).(interface{ RecordKey() Key }); ok {
		return k.RecordKey()
	}
	return 0
}
