// Package retention bounds the in-memory log and network buffers and keeps
// summarized archives of what overflows them.
package retention

// Buffer is a bounded FIFO. Pushing past the limit evicts the oldest items,
// which are returned to the caller. A limit of zero holds nothing. Buffer is
// not safe for concurrent use.
type Buffer[T any] struct {
	items []T
	limit int
}

// NewBuffer creates a buffer holding at most limit items.
func NewBuffer[T any](limit int) *Buffer[T] {
	if limit < 0 {
		limit = 0
	}
	return &Buffer[T]{limit: limit}
}

// Push appends item and returns whatever the limit evicts, oldest first.
func (b *Buffer[T]) Push(item T) []T {
	b.items = append(b.items, item)
	return b.Apply()
}

// SetLimit changes the limit and applies it immediately.
func (b *Buffer[T]) SetLimit(limit int) []T {
	if limit < 0 {
		limit = 0
	}
	b.limit = limit
	return b.Apply()
}

// Limit returns the current limit.
func (b *Buffer[T]) Limit() int { return b.limit }

// Len returns the number of held items.
func (b *Buffer[T]) Len() int { return len(b.items) }

// Apply evicts items beyond the limit. Calling it again is a no-op.
func (b *Buffer[T]) Apply() []T {
	over := len(b.items) - b.limit
	if over <= 0 {
		return nil
	}
	evicted := make([]T, over)
	copy(evicted, b.items[:over])
	n := copy(b.items, b.items[over:])
	clear(b.items[n:])
	b.items = b.items[:n]
	return evicted
}

// RemoveFunc drops every item for which fn returns true and reports how
// many were removed. Order is preserved.
func (b *Buffer[T]) RemoveFunc(fn func(T) bool) int {
	kept := b.items[:0]
	for _, item := range b.items {
		if !fn(item) {
			kept = append(kept, item)
		}
	}
	removed := len(b.items) - len(kept)
	clear(b.items[len(kept):])
	b.items = kept
	return removed
}

// Items returns a copy of the held items, oldest first.
func (b *Buffer[T]) Items() []T {
	out := make([]T, len(b.items))
	copy(out, b.items)
	return out
}

// Reset empties the buffer and reports how many items it held.
func (b *Buffer[T]) Reset() int {
	n := len(b.items)
	clear(b.items)
	b.items = b.items[:0]
	return n
}

// Load replaces the contents with items and applies the limit.
func (b *Buffer[T]) Load(items []T) []T {
	b.Reset()
	b.items = append(b.items, items...)
	return b.Apply()
}
