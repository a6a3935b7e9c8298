package trap

import "testing"

func TestDecodeCause(t *testing.T) {
	cases := []struct {
		name   string
		scause uint64
		want   Cause
	}{
		{"user ecall", excUserEnvCall, CauseUserEnvCall},
		{"store fault", excStoreFault, CauseStoreFault},
		{"store page fault", excStorePageFault, CauseStorePageFault},
		{"instruction fault", excInstructionFault, CauseInstructionFault},
		{"instruction page fault", excInstructionPageFault, CauseInstructionPageFault},
		{"load fault", excLoadFault, CauseLoadFault},
		{"load page fault", excLoadPageFault, CauseLoadPageFault},
		{"illegal instruction", excIllegalInstruction, CauseIllegalInstruction},
		{"supervisor soft interrupt", interruptBit | intSupervisorSoft, CauseSupervisorTimer},
		{"unknown exception", 0xff, CauseUnknown},
		{"unknown interrupt", interruptBit | 0xff, CauseUnknown},
	}
	for _, c := range cases {
		if got := DecodeCause(c.scause); got != c.want {
			t.Errorf("%s: expected %v, got %v", c.name, c.want, got)
		}
	}
}

func TestDispatchRoutesToRegisteredHandler(t *testing.T) {
	defer func(scause, stval func() uint64, stvec func(uintptr)) {
		readScauseFn, readStvalFn, writeStvecFn = scause, stval, stvec
	}(readScauseFn, readStvalFn, writeStvecFn)

	readScauseFn = func() uint64 { return excUserEnvCall }
	readStvalFn = func() uint64 { return 0xdead }

	var gotStval uint64
	var called bool
	orig := handlers[CauseUserEnvCall]
	Register(CauseUserEnvCall, func(cx *TrapContext, stval uint64) {
		called = true
		gotStval = stval
	})
	defer func() { handlers[CauseUserEnvCall] = orig }()

	Dispatch(&TrapContext{})

	if !called {
		t.Fatal("expected the registered handler to run")
	}
	if gotStval != 0xdead {
		t.Errorf("expected stval 0xdead to be forwarded, got %x", gotStval)
	}
}

func TestDispatchFallsBackToUnhandled(t *testing.T) {
	defer func(scause, stval func() uint64) { readScauseFn, readStvalFn = scause, stval }(readScauseFn, readStvalFn)
	readScauseFn = func() uint64 { return 0xff }
	readStvalFn = func() uint64 { return 0 }

	origUnhandled := unhandledFn
	var gotCause Cause
	unhandledFn = func(cause Cause, stval uint64) { gotCause = cause }
	defer func() { unhandledFn = origUnhandled }()

	Dispatch(&TrapContext{})

	if gotCause != CauseUnknown {
		t.Errorf("expected CauseUnknown to fall through to unhandledFn, got %v", gotCause)
	}
}

func TestSetTrapFromKernelVAPointsStvecDuringDispatch(t *testing.T) {
	defer func(scause, stval func() uint64, stvec func(uintptr)) {
		readScauseFn, readStvalFn, writeStvecFn = scause, stval, stvec
	}(readScauseFn, readStvalFn, writeStvecFn)

	readScauseFn = func() uint64 { return excUserEnvCall }
	readStvalFn = func() uint64 { return 0 }

	var gotVA uintptr
	writeStvecFn = func(va uintptr) { gotVA = va }

	SetTrapFromKernelVA(0x9000)
	defer SetTrapFromKernelVA(0)

	orig := handlers[CauseUserEnvCall]
	Register(CauseUserEnvCall, func(cx *TrapContext, stval uint64) {})
	defer func() { handlers[CauseUserEnvCall] = orig }()

	Dispatch(&TrapContext{})

	if gotVA != 0x9000 {
		t.Errorf("expected stvec to be pointed at the trap-from-kernel handler, got %x", gotVA)
	}
}
