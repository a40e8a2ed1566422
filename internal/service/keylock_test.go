package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyLocks_MutualExclusion(t *testing.T) {
	locks := NewKeyLocks()

	var wg sync.WaitGroup
	counter := 0
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.Acquire("key-1")
			defer release()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, locks.Len(), "entries must be evicted once released")
}

func TestKeyLocks_IndependentKeys(t *testing.T) {
	locks := NewKeyLocks()

	releaseA := locks.Acquire("key-a")
	releaseB := locks.Acquire("key-b")
	assert.Equal(t, 2, locks.Len())

	releaseA()
	releaseB()
	assert.Equal(t, 0, locks.Len())
}

func TestKeyLocks_ReleaseIsIdempotent(t *testing.T) {
	locks := NewKeyLocks()

	release := locks.Acquire("key-1")
	release()
	release()

	assert.Equal(t, 0, locks.Len())

	// The key is usable again after release.
	release2 := locks.Acquire("key-1")
	release2()
}
