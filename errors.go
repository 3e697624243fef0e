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

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrNotFound is returned when a key is absent from both the cache and
	// the backing store. It is an expected outcome, not a fault.
	ErrNotFound = errors.New("record not found")

	// ErrStoreFault marks any failure or timeout of a backing store call.
	ErrStoreFault = errors.New("backing store fault")

	// ErrInvalidInput is returned for malformed keys or values.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupported is returned when the configured policy does not
	// define an operation (read-through is read-only).
	ErrUnsupported = errors.New("operation not supported by policy")

	// ErrClosed is returned by operations on an engine after Close.
	ErrClosed = errors.New("engine closed")
)

// kindError tags cause with one of the sentinels above. The cause stays
// in the Unwrap chain and the sentinel matches through Is.
type kindError struct {
	cause error
	kind  error
}

func (e *kindError) Error() string { return e.cause.Error() }

func (e *kindError) Unwrap() error { return e.cause }

func (e *kindError) Is(target error) bool { return target == e.kind }

func classify(err, kind error) error {
	if err == nil {
		return nil
	}
	return &kindError{cause: err, kind: kind}
}

// storeFault wraps a backing store failure with the operation and key and
// classifies it as ErrStoreFault.
func storeFault(err error, op string, key Key) error {
	if err == nil {
		return nil
	}
	return classify(errors.Wrapf(err, "store %s %s", op, key), ErrStoreFault)
}

func invalidInput(format string, args ...any) error {
	return classify(errors.Newf(format, args...), ErrInvalidInput)
}

// IsNotFound reports whether err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsStoreFault reports whether err came from the backing store.
func IsStoreFault(err error) bool {
	return errors.Is(err, ErrStoreFault)
}
