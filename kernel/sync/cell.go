// Package sync provides the exclusive-borrow primitives that stand in for
// mutexes in this kernel. There is exactly one hart and interrupts are
// masked for the duration of every trap handler, so a runtime-checked
// "no reentrant mutable borrow" cell is sufficient: it turns a forbidden
// reentrant borrow (e.g. holding the scheduler's borrow across a context
// switch) into an immediate panic instead of a silent data race.
package sync

import "rvos/kernel"

var errAlreadyBorrowed = &kernel.Error{Module: "sync", Message: "exclusive cell already borrowed"}

// panicFn is mocked by this package's own tests, the same seam shape used
// throughout this tree (kernel/mem/vmm, kernel/syscall, kernel/trap) so a
// deliberately-triggered invariant violation doesn't have to route through
// the real kernel.Panic, which halts the hart via MMIO that only exists on
// the target platform.
var panicFn = kernel.Panic

// ExclusiveCell wraps a value of type T and enforces that at most one
// caller holds a borrow at any time. Unlike a Mutex, a held borrow that is
// never released is a programming error, not a liveness bug waiting to
// happen across a context switch -- so Borrow panics instead of blocking.
type ExclusiveCell[T any] struct {
	value    T
	borrowed bool
}

// NewExclusiveCell wraps v in a fresh, unborrowed cell.
func NewExclusiveCell[T any](v T) *ExclusiveCell[T] {
	return &ExclusiveCell[T]{value: v}
}

// Borrow returns an exclusive *Borrow handle for the wrapped value. It
// panics if the cell is already borrowed -- this is how reentrant mutable
// borrows across a scheduler context switch are caught: the caller that
// forgot to Release before calling schedule() crashes loudly instead of
// corrupting shared state.
func (c *ExclusiveCell[T]) Borrow() *Borrow[T] {
	if c.borrowed {
		panicFn(errAlreadyBorrowed)
	}
	c.borrowed = true
	return &Borrow[T]{cell: c}
}

// Borrow is a held exclusive reference to an ExclusiveCell's value.
type Borrow[T any] struct {
	cell *ExclusiveCell[T]
}

// Get returns a pointer to the guarded value for in-place mutation.
func (b *Borrow[T]) Get() *T {
	return &b.cell.value
}

// Release gives up the borrow, allowing a subsequent Borrow call to
// succeed. Handlers must call Release before invoking the scheduler --
// crossing a context switch with an outstanding borrow is forbidden by
// spec.md §5.
func (b *Borrow[T]) Release() {
	b.cell.borrowed = false
}
