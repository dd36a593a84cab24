// Package arena implements the append-only tree-node store. A single coarse
// sync.RWMutex guards the backing slice: expansion is I/O-bound, so a coarse
// lock is acceptable and finer per-node locking would be an optimization,
// not a correctness requirement.
package arena

import (
	"fmt"
	"sync"

	"github.com/aaweaver-actuary/repgrow/internal/domain"
)

// Arena is a concurrent-safe, append-only store of domain.Node values.
// The zero value is not usable; construct with New.
type Arena struct {
	mu    sync.RWMutex
	nodes []domain.Node
}

// New returns an empty Arena, seeded with capacity hint for the common case
// of building a tree with roughly maxTotalNodes entries.
func New(capacityHint int) *Arena {
	if capacityHint < 0 {
		capacityHint = 0
	}
	return &Arena{nodes: make([]domain.Node, 0, capacityHint)}
}

// Append assigns node.ID = current length, stores it, and returns the
// assigned id. Atomic with respect to other Appends.
func (a *Arena) Append(node domain.Node) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := uint64(len(a.nodes))
	node.ID = id
	a.nodes = append(a.nodes, node)
	return id
}

// Get returns a cloned, immutable snapshot of the node at id. Fails only if
// id is out of range.
func (a *Arena) Get(id uint64) (domain.Node, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if id >= uint64(len(a.nodes)) {
		return domain.Node{}, fmt.Errorf("arena: id %d out of range (len %d)", id, len(a.nodes))
	}
	return a.nodes[id].Clone(), nil
}

// PushChild appends childID to parentID's Children list, preserving
// insertion order. Atomic relative to other PushChilds on the same parent
// (the coarse lock serializes all mutation, not just same-parent mutation).
func (a *Arena) PushChild(parentID, childID uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if parentID >= uint64(len(a.nodes)) {
		return fmt.Errorf("arena: parent id %d out of range (len %d)", parentID, len(a.nodes))
	}
	a.nodes[parentID].Children = append(a.nodes[parentID].Children, childID)
	return nil
}

// Len returns the number of nodes currently stored.
func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.nodes)
}

// Snapshot returns a defensive copy of every node, in id order. Intended for
// the writer at the end of a run; not meant to be called mid-expansion on a
// hot path.
func (a *Arena) Snapshot() []domain.Node {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]domain.Node, len(a.nodes))
	for i, n := range a.nodes {
		out[i] = n.Clone()
	}
	return out
}
