package order

// OrderedSet is the order book container of a single auction: a singly
// linked chain of order keys held in ascending book order, stored as a map
// from each key to its successor. The chain starts at QueueStart and ends at
// QueueEnd.
//
// Insertions take a caller supplied hint, a key the caller believes to be
// the immediate predecessor of the new key. The set walks forward from the
// hint until the correct position is found, so a stale or too early hint
// still succeeds at the cost of extra steps while a hint past the insertion
// point fails.
//
// Removal comes in two flavors. Remove unlinks a key and forgets it
// entirely. RemoveKeepHistory unlinks the key from the reachable chain but
// keeps its successor entry around as a tombstone, so the removed key stays
// usable as an insertion hint for submissions that were prepared before the
// removal happened.
type OrderedSet struct {
	// next maps each key to its successor in the chain. Tombstoned keys
	// keep their entry but are skipped by the reachable chain.
	next map[Key]Key

	// reachable tracks the set of keys that are currently linked into
	// the chain. It is an index over next, not part of the persisted
	// state, and is rebuilt when a set is loaded from the store.
	reachable map[Key]struct{}
}

// NewOrderedSet creates an empty ordered set.
func NewOrderedSet() *OrderedSet {
	return &OrderedSet{
		next: map[Key]Key{
			QueueStart: QueueEnd,
		},
		reachable: make(map[Key]struct{}),
	}
}

// LoadOrderedSet reconstructs a set from a persisted next map. The reachable
// index is rebuilt by walking the chain from its head.
func LoadOrderedSet(next map[Key]Key) *OrderedSet {
	s := &OrderedSet{
		next:      make(map[Key]Key, len(next)),
		reachable: make(map[Key]struct{}),
	}
	for key, succ := range next {
		s.next[key] = succ
	}
	if _, ok := s.next[QueueStart]; !ok {
		s.next[QueueStart] = QueueEnd
	}

	for key := s.next[QueueStart]; key != QueueEnd; key = s.next[key] {
		s.reachable[key] = struct{}{}
	}

	return s
}

// Insert links the given key into the chain at its book order position,
// using hint as the starting point for the forward walk. It returns false
// without mutating the set if the key is a sentinel, carries a zero sell
// amount, is already part of the reachable chain, or if the hint is unknown
// or past the key's position.
func (s *OrderedSet) Insert(key, hint Key) bool {
	if key.IsSentinel() || key.SellAmount().IsZero() {
		return false
	}
	if s.Contains(key) {
		return false
	}

	// The hint must be a key we know a successor for. Tombstones
	// qualify, that is the point of keeping them around.
	if _, ok := s.next[hint]; !ok {
		return false
	}
	if !hint.SmallerThan(key) {
		return false
	}

	// A tombstoned hint can't be spliced onto directly, its successor
	// entry is no longer part of the chain. Hop along the stale
	// successor entries until we're back on the reachable chain. The
	// keys along any successor path are strictly increasing, so this
	// terminates.
	pred := hint
	for pred != QueueStart && !s.Contains(pred) {
		succ, ok := s.next[pred]
		if !ok {
			pred = QueueStart
			break
		}
		pred = succ
	}

	// Hopping out of a tombstone may overshoot the insertion point, in
	// which case the true predecessor lies before the tombstone and the
	// only way to find it is a fresh walk from the head.
	if pred != QueueStart && !pred.SmallerThan(key) {
		pred = QueueStart
	}

	// Walk forward until the successor is at or past the new key. From
	// here on pred is reachable, so every step stays on the chain.
	for s.next[pred].SmallerThan(key) {
		pred = s.next[pred]
	}

	// Equality can't happen for a reachable successor, Contains ruled it
	// out above. Be defensive anyway.
	if s.next[pred] == key {
		return false
	}

	s.next[key] = s.next[pred]
	s.next[pred] = key
	s.reachable[key] = struct{}{}

	return true
}

// Remove unlinks the key from the chain and forgets its successor entry.
// Returns false if the key isn't currently reachable.
func (s *OrderedSet) Remove(key Key) bool {
	if !s.unlink(key) {
		return false
	}
	delete(s.next, key)
	return true
}

// RemoveKeepHistory unlinks the key from the reachable chain but keeps its
// successor entry as a tombstone so the key remains a valid insertion hint.
// Returns false if the key isn't currently reachable.
func (s *OrderedSet) RemoveKeepHistory(key Key) bool {
	return s.unlink(key)
}

// unlink splices the key out of the reachable chain. The key's own next
// entry is left untouched.
func (s *OrderedSet) unlink(key Key) bool {
	if !s.Contains(key) {
		return false
	}

	pred := QueueStart
	for s.next[pred] != key {
		pred = s.next[pred]
	}

	s.next[pred] = s.next[key]
	delete(s.reachable, key)

	return true
}

// Contains returns true if the key is reachable from the head of the chain.
// Tombstoned keys are not contained.
func (s *OrderedSet) Contains(key Key) bool {
	_, ok := s.reachable[key]
	return ok
}

// Next returns the successor of the given key. The second return value is
// false if the key has no successor entry at all. Tombstoned keys still
// report their stale successor.
func (s *OrderedSet) Next(key Key) (Key, bool) {
	succ, ok := s.next[key]
	return succ, ok
}

// First returns the best order in the book, or QueueEnd if the book is
// empty.
func (s *OrderedSet) First() Key {
	return s.next[QueueStart]
}

// IsEmpty returns true if no order is reachable.
func (s *OrderedSet) IsEmpty() bool {
	return s.next[QueueStart] == QueueEnd
}

// Len returns the number of reachable orders.
func (s *OrderedSet) Len() int {
	return len(s.reachable)
}

// ForEach walks the reachable chain in book order and invokes the callback
// for every order. Iteration stops early if the callback returns false.
func (s *OrderedSet) ForEach(f func(Key) bool) {
	for key := s.next[QueueStart]; key != QueueEnd; key = s.next[key] {
		if !f(key) {
			return
		}
	}
}

// NextMap returns a copy of the raw successor map, including tombstones.
// This is the form the book is persisted in.
func (s *OrderedSet) NextMap() map[Key]Key {
	next := make(map[Key]Key, len(s.next))
	for key, succ := range s.next {
		next[key] = succ
	}
	return next
}
