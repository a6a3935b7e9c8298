package sched

import (
	"rvos/kernel/task"
	"rvos/kernel/trap"
)

// Task is the subset of *task.TaskControlBlock the scheduler needs.
// Expressed as an interface -- rather than importing *task.TaskControlBlock
// directly everywhere -- so this package's own tests can drive Fetch/Pin/
// RunTasks/Schedule bookkeeping with a lightweight stand-in instead of a
// real ELF-backed address space; *task.TaskControlBlock satisfies it as
// written, with no adapter needed.
type Task interface {
	PID() uint64
	Status() task.Status
	SetStatus(task.Status)
	TaskCx() *task.Context
	TrapCx() *trap.TrapContext
	UserToken() uint64
	Exit(code int32)
}
