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
	"context"
	"encoding/binary"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"
)

type (
	// BoltStore is an on-disk backing store on bbolt. Values are msgpack
	// encoded; keys are big-endian so the bucket iterates in key order.
	BoltStore[V any] struct {
		db     *bolt.DB
		bucket []byte
	}

	// BoltStoreConfig represents configuration for BoltStore
	BoltStoreConfig struct {
		// Bucket is the name of the bbolt bucket to use.
		Bucket string

		// OpenTimeout bounds the wait for the file lock.
		OpenTimeout time.Duration
	}
)

// DefaultBoltStoreConfig provides default configuration values for BoltStoreConfig
var DefaultBoltStoreConfig = BoltStoreConfig{
	Bucket:      "records",
	OpenTimeout: time.Second,
}

// OpenBoltStore opens or creates the database file at path.
func OpenBoltStore[V any](path string, config BoltStoreConfig) (*BoltStore[V], error) {
	if config.Bucket == "" {
		config.Bucket = DefaultBoltStoreConfig.Bucket
	}
	if config.OpenTimeout == 0 {
		config.OpenTimeout = DefaultBoltStoreConfig.OpenTimeout
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: config.OpenTimeout})
	if err != nil {
		return nil, errors.Wrapf(err, "open bolt store %s", path)
	}
	bucket := []byte(config.Bucket)
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create bucket")
	}
	return &BoltStore[V]{db: db, bucket: bucket}, nil
}

// Close closes the underlying database.
func (store *BoltStore[V]) Close() error {
	if store == nil || store.db == nil {
		return nil
	}
	return store.db.Close()
}

func encodeKey(key Key) []byte {
	b := make([]byte, 8)
	// flip the sign bit so negative keys sort before positive ones
	binary.BigEndian.PutUint64(b, uint64(key)^(1<<63))
	return b
}

func decodeKey(b []byte) Key {
	return Key(binary.BigEndian.Uint64(b) ^ (1 << 63))
}

// Get implements the Store interface Get method.
func (store *BoltStore[V]) Get(ctx context.Context, key Key) (V, bool, error) {
	var (
		value V
		found bool
	)
	if err := ctx.Err(); err != nil {
		return value, false, err
	}
	err := store.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(store.bucket).Get(encodeKey(key))
		if data == nil {
			return nil
		}
		found = true
		return msgpack.Unmarshal(data, &value)
	})
	if err != nil {
		var zero V
		return zero, false, errors.Wrap(err, "decode record")
	}
	return value, found, nil
}

// Put implements the Store interface Put method.
func (store *BoltStore[V]) Put(ctx context.Context, key Key, value V) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := msgpack.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "encode record")
	}
	return store.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(store.bucket).Put(encodeKey(key), data)
	})
}

// Delete implements the Store interface Delete method.
func (store *BoltStore[V]) Delete(ctx context.Context, key Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return store.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(store.bucket).Delete(encodeKey(key))
	})
}

// ListKeys implements the Store interface ListKeys method.
func (store *BoltStore[V]) ListKeys(ctx context.Context) ([]Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var keys []Key
	err := store.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(store.bucket).ForEach(func(k, _ []byte) error {
			keys = append(keys, decodeKey(k))
			return nil
		})
	})
	return keys, err
}

// Size returns the number of stored records.
func (store *BoltStore[V]) Size() int {
	var n int
	_ = store.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(store.bucket).Stats().KeyN
		return nil
	})
	return n
}
