package physics

// arena stores entities keyed by id in insertion order. Iteration order is
// the order of registration, which keeps stepping deterministic.
type arena[T any] struct {
	ids   []string
	items []T
	index map[string]int
}

func newArena[T any]() *arena[T] {
	return &arena[T]{index: map[string]int{}}
}

// Has returns true if the id exists in the arena.
func (a *arena[T]) Has(id string) bool {
	if a == nil {
		return false
	}
	_, ok := a.index[id]
	return ok
}

// Get returns the item for id.
func (a *arena[T]) Get(id string) (T, bool) {
	var zero T
	if a == nil {
		return zero, false
	}
	idx, ok := a.index[id]
	if !ok {
		return zero, false
	}
	return a.items[idx], true
}

// Insert adds an item. It returns false when the id is already taken.
func (a *arena[T]) Insert(id string, v T) bool {
	if a.Has(id) {
		return false
	}
	a.index[id] = len(a.items)
	a.ids = append(a.ids, id)
	a.items = append(a.items, v)
	return true
}

// Remove deletes the item for id, keeping the order of the rest.
func (a *arena[T]) Remove(id string) bool {
	idx, ok := a.index[id]
	if !ok {
		return false
	}
	copy(a.ids[idx:], a.ids[idx+1:])
	copy(a.items[idx:], a.items[idx+1:])
	last := len(a.items) - 1
	var zero T
	a.items[last] = zero
	a.ids = a.ids[:last]
	a.items = a.items[:last]
	delete(a.index, id)
	for i := idx; i < len(a.ids); i++ {
		a.index[a.ids[i]] = i
	}
	return true
}

func (a *arena[T]) Len() int {
	if a == nil {
		return 0
	}
	return len(a.items)
}

// Items returns the dense item list. Callers must not append to it.
func (a *arena[T]) Items() []T {
	if a == nil {
		return nil
	}
	return a.items
}

// IDs returns the dense id list.
func (a *arena[T]) IDs() []string {
	if a == nil {
		return nil
	}
	return a.ids
}

// clone copies the arena, passing every item through fn.
func (a *arena[T]) clone(fn func(T) T) *arena[T] {
	out := &arena[T]{
		ids:   append([]string(nil), a.ids...),
		items: make([]T, len(a.items)),
		index: make(map[string]int, len(a.index)),
	}
	for i, v := range a.items {
		out.items[i] = fn(v)
	}
	for k, v := range a.index {
		out.index[k] = v
	}
	return out
}
