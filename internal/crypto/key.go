package crypto

import (
	"errors"
	"fmt"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrKeyDestroyed is returned when a destroyed key is used.
var ErrKeyDestroyed = errors.New("key has been destroyed")

// Key is a derived symmetric key. The bytes sit in a locked, read-only
// memguard buffer and are only reachable from inside this package.
type Key struct {
	mu  sync.RWMutex
	buf *memguard.LockedBuffer
}

// newKey moves raw into protected memory. raw is wiped even on failure.
func newKey(raw []byte) (key *Key, err error) {
	defer ClearBytes(raw)
	if len(raw) != KeySize {
		return nil, fmt.Errorf("invalid key size %d", len(raw))
	}

	// memguard panics when it cannot allocate or lock memory
	defer func() {
		if r := recover(); r != nil {
			key = nil
			err = fmt.Errorf("failed to allocate protected memory: %v", r)
		}
	}()

	buf := memguard.NewBufferFromBytes(raw)
	buf.Freeze()
	return &Key{buf: buf}, nil
}

// Destroy wipes the key. It is safe to call more than once.
func (k *Key) Destroy() {
	if k == nil {
		return
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.buf != nil {
		k.buf.Destroy()
		k.buf = nil
	}
}

// Alive reports whether the key can still be used.
func (k *Key) Alive() bool {
	if k == nil {
		return false
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.buf != nil && k.buf.IsAlive()
}

// Equal reports whether two live keys hold the same bytes, in constant time.
func (k *Key) Equal(other *Key) bool {
	if k == nil || other == nil {
		return false
	}
	if k == other {
		return k.Alive()
	}

	var equal bool
	err := k.withBytes(func(a []byte) error {
		return other.withBytes(func(b []byte) error {
			equal = ConstantTimeCompare(a, b)
			return nil
		})
	})
	return err == nil && equal
}

// String never reveals key material.
func (k *Key) String() string {
	return "crypto.Key(redacted)"
}

// withBytes runs fn with the raw key. fn must not retain the slice.
func (k *Key) withBytes(fn func([]byte) error) error {
	if k == nil {
		return ErrKeyDestroyed
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.buf == nil || !k.buf.IsAlive() {
		return ErrKeyDestroyed
	}
	return fn(k.buf.Bytes())
}
