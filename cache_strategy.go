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
	"strings"
	"time"
)

// PolicyName identifies how reads and writes route between the cache and
// the backing store.
type PolicyName string

const (
	// CacheAside reads fill the cache on a miss; writes go to the store
	// and invalidate the cached copy.
	CacheAside PolicyName = "cache-aside"

	// ReadThrough fills the cache itself on a miss, one store load per key
	// no matter how many readers miss at once. It does not accept writes.
	ReadThrough PolicyName = "read-through"

	// WriteAround writes only to the store and invalidates the cache.
	WriteAround PolicyName = "write-around"

	// WriteThrough writes to the store first, then to the cache.
	WriteThrough PolicyName = "write-through"

	// WriteBack writes to the cache only; a background flusher persists
	// dirty records later.
	WriteBack PolicyName = "write-back"
)

// Policies lists every recognized policy.
var Policies = []PolicyName{CacheAside, ReadThrough, WriteAround, WriteThrough, WriteBack}

// ParsePolicy maps a policy option to its PolicyName. Matching ignores
// case and accepts underscores for dashes.
func ParsePolicy(s string) (PolicyName, error) {
	name := PolicyName(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-"))
	for _, p := range Policies {
		if p == name {
			return p, nil
		}
	}
	return "", invalidInput("unknown cache policy %q", s)
}

// Config represents configuration for Engine
type Config struct {
	Policy PolicyName

	// FlushInterval is the write-back flush period.
	FlushInterval time.Duration

	// DrainTimeout bounds the final flush in Close.
	DrainTimeout time.Duration

	// StoreTimeout bounds every backing store call. Negative disables it.
	StoreTimeout time.Duration

	Logger Logger
}

// DefaultConfig provides default configuration values for Config
var DefaultConfig = Config{
	Policy:        WriteThrough,
	FlushInterval: 5 * time.Second,
	DrainTimeout:  10 * time.Second,
	StoreTimeout:  3 * time.Second,
}
