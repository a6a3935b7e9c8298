package trap

import (
	"testing"

	"rvos/kernel/platform"
)

func TestRestoreVAAddsOffsetToTrampolineBase(t *testing.T) {
	orig := restoreOffsetFn
	restoreOffsetFn = func() uintptr { return 0x40 }
	defer func() { restoreOffsetFn = orig }()

	got := RestoreVA()
	want := uintptr(platform.Trampoline) + 0x40
	if got != want {
		t.Errorf("expected %x, got %x", want, got)
	}
}
