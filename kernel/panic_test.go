package kernel

import (
	"bytes"
	"testing"

	"rvos/kernel/kfmt/early"
)

func TestPanic(t *testing.T) {
	defer func(orig func()) { shutdownFn = orig }(shutdownFn)

	var halted bool
	shutdownFn = func() { halted = true }

	var buf bytes.Buffer
	early.SetOutputSink(&buf)
	defer early.SetOutputSink(nil)

	Panic(&Error{Module: "test", Message: "boom"})

	if !halted {
		t.Error("expected Panic to invoke shutdownFn")
	}
	if got := buf.String(); !bytes.Contains([]byte(got), []byte("[test] unrecoverable error: boom")) {
		t.Errorf("expected panic banner to mention the error, got %q", got)
	}
}

func TestPanicAcceptsStringAndError(t *testing.T) {
	defer func(orig func()) { shutdownFn = orig }(shutdownFn)
	shutdownFn = func() {}

	var buf bytes.Buffer
	early.SetOutputSink(&buf)
	defer early.SetOutputSink(nil)

	Panic("free-form message")
	if got := buf.String(); !bytes.Contains([]byte(got), []byte("free-form message")) {
		t.Errorf("expected string panic payload to be printed, got %q", got)
	}
}
