package tree

import (
	"sync"

	"github.com/leapstack-labs/xlbridge/internal/desktop"
	"github.com/leapstack-labs/xlbridge/pkg/address"
	"github.com/leapstack-labs/xlbridge/pkg/query"
)

// nodeKey is a node's identity for caching. The Address carries the kind.
type nodeKey struct {
	window desktop.Handle
	addr   address.Address
}

func keyOf(n *Node) nodeKey {
	return nodeKey{window: n.window, addr: n.addr}
}

type memoEntry struct {
	descriptor *query.Descriptor
	parent     *Node
}

// memo caches derived node state until Release or StopSession.
type memo struct {
	mu      sync.Mutex
	entries map[nodeKey]*memoEntry
}

func newMemo() *memo {
	return &memo{entries: make(map[nodeKey]*memoEntry)}
}

func (m *memo) entry(k nodeKey) *memoEntry {
	e, ok := m.entries[k]
	if !ok {
		e = &memoEntry{}
		m.entries[k] = e
	}
	return e
}

func (m *memo) parent(n *Node, build func() *Node) *Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entry(keyOf(n))
	if e.parent == nil {
		e.parent = build()
	}
	return e.parent
}

// descriptor computes outside the lock: building a cell descriptor needs the
// parent's entry.
func (m *memo) descriptor(n *Node, build func() (query.Descriptor, error)) (query.Descriptor, error) {
	k := keyOf(n)
	m.mu.Lock()
	if e, ok := m.entries[k]; ok && e.descriptor != nil {
		d := *e.descriptor
		m.mu.Unlock()
		return d, nil
	}
	m.mu.Unlock()

	d, err := build()
	if err != nil {
		return query.Descriptor{}, err
	}
	m.mu.Lock()
	m.entry(k).descriptor = &d
	m.mu.Unlock()
	return d, nil
}

func (m *memo) release(n *Node) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, keyOf(n))
}

func (m *memo) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[nodeKey]*memoEntry)
}

func (m *memo) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
