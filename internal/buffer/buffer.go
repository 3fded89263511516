// Package buffer implements the output buffer: an in-memory ordered deque
// of hex-encoded blocks backed by a single-bucket bbolt database, with
// refill logic triggered by a low-water mark. bbolt stands in for the
// reference implementation's single-table SQLite store — both are
// embedded, single-file, single-writer-at-a-time key/value stores, and
// bbolt is the store already present in this retrieval pack's other
// camera/surveillance tooling.
package buffer

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
	"github.com/rs/zerolog"
)

// bucketName is the single bucket standing in for spec.md §6's
// `random_buffer` table; keys are hex strings, values are empty.
var bucketName = []byte("random_buffer")

// Refiller performs one collection+conditioning round and pushes any
// resulting blocks into the Buffer. Buffer calls it through RefillAsync
// whenever size drops below the low-water mark.
type Refiller func(ctx context.Context) error

// Buffer is the thread-safe append-only queue with a persistent mirror
// described in spec.md §4.7.
type Buffer struct {
	mu   sync.Mutex
	deq  *list.List // front = next to pop; values are string hex blocks
	db   *bolt.DB
	size int

	lowWaterMark int
	refilling    int32 // atomic: 1 while a refill is in flight
	refill       Refiller
	log          zerolog.Logger
}

// Open opens (creating if necessary) the bbolt database at path and
// ensures the random_buffer bucket exists.
func Open(path string, lowWaterMark int, refill Refiller, log zerolog.Logger) (*Buffer, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("buffer: opening store %q: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("buffer: creating bucket: %w", err)
	}

	return &Buffer{
		deq:          list.New(),
		db:           db,
		lowWaterMark: lowWaterMark,
		refill:       refill,
		log:          log,
	}, nil
}

// Close closes the underlying store.
func (b *Buffer) Close() error {
	return b.db.Close()
}

// LoadFromStore prepends every row from the store into the in-memory
// deque. Called once at startup; order across restarts is not guaranteed
// (spec.md §4.7).
func (b *Buffer) LoadFromStore() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		return bucket.ForEach(func(k, _ []byte) error {
			b.deq.PushFront(string(k))
			b.size++
			return nil
		})
	})
	if err != nil {
		// spec.md §7: a persistent-store read failure logs and starts with
		// an empty buffer; in-memory state stays authoritative going
		// forward.
		b.log.Error().Err(err).Msg("buffer: failed to load from store, starting empty")
		return nil
	}
	b.log.Info().Int("loaded", b.size).Msg("buffer: loaded blocks from store")
	return nil
}

// Push appends hex to the in-memory deque, then inserts it into the store
// with insert-or-ignore semantics (a bbolt Put on an existing key is
// already idempotent, giving the same duplicate-suppression guarantee as
// the reference's `INSERT OR IGNORE`).
func (b *Buffer) Push(hex string) {
	b.mu.Lock()
	b.deq.PushBack(hex)
	b.size++
	b.mu.Unlock()

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket.Get([]byte(hex)) != nil {
			return nil // already present; insert-or-ignore
		}
		return bucket.Put([]byte(hex), []byte{})
	})
	if err != nil {
		// spec.md §7: persistent-store write failure logs; in-memory state
		// remains authoritative.
		b.log.Error().Err(err).Str("hex", hex).Msg("buffer: failed to persist block")
	}
}

// Pop removes and returns the front of the deque, deleting its row from
// the store. Returns ("", false) without touching the store if the deque
// is empty.
func (b *Buffer) Pop() (string, bool) {
	b.mu.Lock()
	front := b.deq.Front()
	if front == nil {
		b.mu.Unlock()
		return "", false
	}
	b.deq.Remove(front)
	b.size--
	value := front.Value.(string)
	belowWaterMark := b.size < b.lowWaterMark
	b.mu.Unlock()

	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(value))
	})
	if err != nil {
		b.log.Error().Err(err).Str("hex", value).Msg("buffer: failed to delete popped block from store")
	}

	if belowWaterMark {
		b.RefillAsync(context.Background())
	}
	return value, true
}

// Size reports the length of the in-memory deque.
func (b *Buffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// RefillAsync triggers a single collection+conditioning round in the
// background if one is not already running (spec.md §4.7: "only one
// refill is in flight at any time").
func (b *Buffer) RefillAsync(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&b.refilling, 0, 1) {
		return
	}
	go func() {
		defer atomic.StoreInt32(&b.refilling, 0)
		if err := b.refill(ctx); err != nil {
			b.log.Warn().Err(err).Msg("buffer: refill round did not produce blocks")
		}
	}()
}

// RefillSync runs one refill round synchronously and waits for it,
// coalescing with any already-in-flight async refill. Used by the query
// service when a Pop finds the buffer empty and needs one last attempt
// before reporting 503.
func (b *Buffer) RefillSync(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&b.refilling, 0, 1) {
		// Another refill is already running; wait for it to finish.
		for atomic.LoadInt32(&b.refilling) == 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(10 * time.Millisecond):
			}
		}
		return nil
	}
	defer atomic.StoreInt32(&b.refilling, 0)
	return b.refill(ctx)
}
