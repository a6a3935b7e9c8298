package sync

import "testing"

func TestBorrowGetExposesWrappedValue(t *testing.T) {
	c := NewExclusiveCell(42)
	b := c.Borrow()
	defer b.Release()

	if got := *b.Get(); got != 42 {
		t.Fatalf("Get() = %d, want 42", got)
	}
	*b.Get() = 7
	if got := *b.Get(); got != 7 {
		t.Fatalf("Get() after mutation = %d, want 7", got)
	}
}

func TestBorrowAfterReleaseSucceeds(t *testing.T) {
	c := NewExclusiveCell(0)
	b := c.Borrow()
	b.Release()

	b2 := c.Borrow()
	defer b2.Release()
	*b2.Get() = 5
	if got := *b2.Get(); got != 5 {
		t.Fatalf("Get() = %d, want 5", got)
	}
}

func TestReentrantBorrowCallsPanicFn(t *testing.T) {
	orig := panicFn
	defer func() { panicFn = orig }()

	var called bool
	panicFn = func(interface{}) { called = true }

	c := NewExclusiveCell(0)
	b := c.Borrow()
	defer b.Release()

	c.Borrow()
	if !called {
		t.Fatal("expected a second concurrent Borrow to invoke panicFn")
	}
}
