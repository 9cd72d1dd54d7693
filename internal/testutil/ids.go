package testutil

import (
	"fmt"
	"sync"
)

// IDs hands out UUID-shaped identifiers in sequence:
// 00000000-0000-0000-0000-000000000001, ...000002, and so on. It stands
// in for random uuid defaults and request ids so that responses and logs
// are byte-identical across runs.
//
// Thread-safety: IDs is safe for concurrent use via internal mutex.
type IDs struct {
	mu sync.Mutex
	n  int64
}

// NewIDs returns a generator whose first id ends in 1.
func NewIDs() *IDs {
	return &IDs{}
}

// Next returns the next identifier.
func (g *IDs) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("00000000-0000-0000-0000-%012d", g.n)
}

// Generate is Next under the name request id generators use.
func (g *IDs) Generate() string {
	return g.Next()
}
