package oid

// Trie maps identifiers to values and answers nearest-ancestor queries in
// O(depth). A Trie is not safe for concurrent mutation; once built it may be
// read from any number of goroutines.
type Trie[V any] struct {
	root *trieNode[V]
	size int
}

type trieNode[V any] struct {
	children map[uint32]*trieNode[V]
	value    V
	set      bool
}

// NewTrie returns an empty trie.
func NewTrie[V any]() *Trie[V] {
	return &Trie[V]{root: &trieNode[V]{}}
}

// Insert stores v under id, replacing any previous value.
func (t *Trie[V]) Insert(id OID, v V) {
	n := t.root
	for _, sub := range id {
		if n.children == nil {
			n.children = make(map[uint32]*trieNode[V])
		}
		child, ok := n.children[sub]
		if !ok {
			child = &trieNode[V]{}
			n.children[sub] = child
		}
		n = child
	}
	if !n.set {
		t.size++
	}
	n.value = v
	n.set = true
}

// Get returns the value stored exactly at id.
func (t *Trie[V]) Get(id OID) (V, bool) {
	n := t.root
	for _, sub := range id {
		n = n.children[sub]
		if n == nil {
			var zero V
			return zero, false
		}
	}
	return n.value, n.set
}

// Nearest returns the value stored at the longest prefix of id (id itself
// included) together with that prefix.
func (t *Trie[V]) Nearest(id OID) (OID, V, bool) {
	var (
		best    V
		bestLen = -1
	)
	n := t.root
	if n.set {
		best, bestLen = n.value, 0
	}
	for i, sub := range id {
		n = n.children[sub]
		if n == nil {
			break
		}
		if n.set {
			best, bestLen = n.value, i+1
		}
	}
	if bestLen < 0 {
		var zero V
		return nil, zero, false
	}
	return id[:bestLen:bestLen], best, true
}

// Len returns the number of stored identifiers.
func (t *Trie[V]) Len() int {
	return t.size
}
