package testutil

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDs_Sequence(t *testing.T) {
	ids := NewIDs()
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", ids.Next())
	assert.Equal(t, "00000000-0000-0000-0000-000000000002", ids.Generate())
}

func TestIDs_AreValidUUIDs(t *testing.T) {
	ids := NewIDs()
	for i := 0; i < 3; i++ {
		_, err := uuid.Parse(ids.Next())
		require.NoError(t, err)
	}
}

func TestIDs_ThreadSafe(t *testing.T) {
	ids := NewIDs()
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]bool)
	)
	wg.Add(10)
	for i := 0; i < 10; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := ids.Next()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 1000)
}
