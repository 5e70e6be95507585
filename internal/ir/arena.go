package ir

import (
	"fmt"

	"fortio.org/safecast"
)

// Arena хранит элементы подряд и выдаёт 1-based индексы; 0 — «нет элемента».
type Arena[T any] struct {
	data []T
}

func NewArena[T any](capHint uint) *Arena[T] {
	return &Arena[T]{
		data: make([]T, 0, capHint),
	}
}

// Allocate возвращает индекс нового элемента (1-based).
func (a *Arena[T]) Allocate(value T) uint32 {
	a.data = append(a.data, value)
	n, err := safecast.Conv[uint32](len(a.data))
	if err != nil {
		panic(fmt.Errorf("arena overflow: %w", err))
	}
	return n
}

// Get returns the element at index, or nil for index 0. An index past the
// end is a compiler bug and panics with an *IndexError.
func (a *Arena[T]) Get(index uint32) *T {
	if index == 0 {
		return nil
	}
	if int(index) > len(a.data) {
		panic(&IndexError{Index: index, Len: len(a.data)})
	}
	return &a.data[index-1]
}

// Slice is read-only.
func (a *Arena[T]) Slice() []T {
	return a.data
}

func (a *Arena[T]) Len() uint32 {
	n, _ := safecast.Conv[uint32](len(a.data))
	return n
}

// IndexError reports an arena handle that does not belong to the arena.
type IndexError struct {
	Index uint32
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("arena index %d out of range [1, %d]", e.Index, e.Len)
}
