// Package layout holds the ordered item lists used as recipe sides and as
// batches of items to add or remove.
package layout

// Layout is an immutable ordered list. A layout of one element and a layout
// of many share the same representation; IsOne and IsMany are queries only.
type Layout[T any] struct {
	items []T
}

// New builds a layout from items. The slice is copied.
func New[T any](items ...T) Layout[T] {
	return Layout[T]{items: append([]T(nil), items...)}
}

// Get returns a copy of the elements in order.
func (l Layout[T]) Get() []T {
	return append([]T(nil), l.items...)
}

// Len returns the number of elements.
func (l Layout[T]) Len() int { return len(l.items) }

// At returns the i-th element.
func (l Layout[T]) At(i int) T { return l.items[i] }

// IsOne reports whether the layout has exactly one element.
func (l Layout[T]) IsOne() bool { return len(l.items) == 1 }

// IsMany reports whether the layout has more than one element.
func (l Layout[T]) IsMany() bool { return len(l.items) > 1 }

// One returns the single element of a one-element layout.
func (l Layout[T]) One() (T, bool) {
	if !l.IsOne() {
		var zero T
		return zero, false
	}
	return l.items[0], true
}

// Many returns the elements of a layout with more than one element.
func (l Layout[T]) Many() ([]T, bool) {
	if !l.IsMany() {
		return nil, false
	}
	return l.Get(), true
}

// Append returns a new layout with items added; l is unchanged.
func (l Layout[T]) Append(items ...T) Layout[T] {
	out := make([]T, 0, len(l.items)+len(items))
	out = append(out, l.items...)
	out = append(out, items...)
	return Layout[T]{items: out}
}

// Each calls fn for every element in order.
func (l Layout[T]) Each(fn func(i int, v T)) {
	for i, v := range l.items {
		fn(i, v)
	}
}
