package task

// Context is the register set kernel/sched's __switch saves and restores
// across a task switch: the return address, stack pointer, and the 12
// callee-saved s-registers a RISC-V function call is required to
// preserve. Caller-saved registers are never part of a task's persisted
// state -- __switch is itself an ordinary function call as far as the
// calling convention is concerned (original_source/kernel/src/task/
// context.rs's TaskContext{ra, sp, s[12]}, spec.md §3 "Task context").
type Context struct {
	RA uint64
	SP uint64
	S  [12]uint64
}

// ZeroContext returns an all-zero Context with no meaningful ra/sp.
// kernel/sched's idle context starts out as this zero value; RunTasks's
// first __switch out of it saves the scheduler loop's registers into it,
// and Schedule later switches back into those saved registers.
func ZeroContext() Context { return Context{} }

// NewTrapReturnContext builds the context a freshly created task starts
// with: ra points at trapReturnPC (the address of the function that
// finishes trap_return's job -- reads the task's own TrapContext and jumps
// into user mode), and sp is the task's kernel stack top. The first
// __switch into this task "returns" into trapReturnPC exactly as if
// trapReturnPC had called __switch and was now getting control back
// (original_source's TaskContext::goto_trap_return, spec.md §4.7 "new").
func NewTrapReturnContext(kernelStackTop, trapReturnPC uint64) Context {
	return Context{RA: trapReturnPC, SP: kernelStackTop}
}
