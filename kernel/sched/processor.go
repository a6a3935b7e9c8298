package sched

import (
	"rvos/kernel/platform"
	"rvos/kernel/task"
	"rvos/kernel/trap"
)

// Ready is the kernel's single ready set, installed as a FIFO set.
// Nothing outside this package's tests builds a lottery set with
// NewLotteryReadySet.
var Ready = NewFIFOReadySet()

// processor holds the one hart's running task and its idle context: the
// context __switch saves into when leaving a task and restores when
// RunTasks next fetches one (spec.md §4.8 "one processor object").
type processor struct {
	current Task
	idleCx  task.Context
}

var proc processor

// switchToFn seams over the real assembly context switch so this
// package's tests can verify scheduling decisions (what got fetched,
// what status transitions happened) without the switch ever touching a
// raw stack pointer.
var switchToFn = contextSwitch

// CurrentTask returns the task presently assigned to the processor, or
// nil if none is running.
func CurrentTask() Task { return proc.current }

// SetCurrentTask installs t as the processor's current task directly,
// without going through Fetch. kernel/syscall's own tests use this to
// put a task in place without driving a real context switch; the
// production boot path never needs it (RunTasks's Fetch already seeds
// the first task).
func SetCurrentTask(t Task) { proc.current = t }

// TakeCurrentTask clears the processor's current task and returns it.
func TakeCurrentTask() Task {
	t := proc.current
	proc.current = nil
	return t
}

// CurrentTrapCx returns the running task's live trap context, or nil if
// no task is running.
func CurrentTrapCx() *trap.TrapContext {
	if proc.current == nil {
		return nil
	}
	return proc.current.TrapCx()
}

// CurrentUserToken returns the running task's address space's satp
// token.
func CurrentUserToken() uint64 { return proc.current.UserToken() }

// RunTasks is the scheduler's idle loop: repeatedly fetch the next Ready
// task, mark it Running, and switch into it from the idle context.
// Returns once Fetch finds nothing runnable -- in the freestanding kernel
// this never happens (the init task never exits), but returning rather
// than spin-waiting keeps this loop callable under `go test`.
func RunTasks() {
	for {
		t := Ready.Fetch()
		if t == nil {
			return
		}
		t.SetStatus(task.Running)
		proc.current = t
		switchToFn(&proc.idleCx, t.TaskCx())
	}
}

// Schedule switches from the currently running task back into the idle
// context, persisting the outgoing task's registers into switchedCx --
// normally that task's own TaskCx(), so RunTasks's next switch into it
// resumes correctly; a throwaway slot if the task is exiting and will
// never be resumed.
func Schedule(switchedCx *task.Context) {
	switchToFn(switchedCx, &proc.idleCx)
}

// SuspendAndRunNext moves the current task back to Ready and yields the
// processor (spec.md §4.8 "suspend_and_run_next").
func SuspendAndRunNext() {
	t := TakeCurrentTask()
	t.SetStatus(task.Ready)
	Ready.Add(t)
	Schedule(t.TaskCx())
}

// TrapReturn points stvec back at the trampoline's allTraps entry, then
// jumps into restore with the running task's own TrapContext VA and satp
// token. Never returns -- control leaves through restore's sret. This is
// the function every task's own TaskContext.RA starts out pointing at
// (task.TrapReturnPC, wired during boot), and the last call any trap
// handler makes before giving the hart back to user mode (original_source's
// trap::trap_return, spec.md §4.6 "Return path").
func TrapReturn() {
	trap.Return(uintptr(platform.Trampoline))
	trap.EnterUser(uint64(platform.TrapContext), CurrentUserToken(), trap.RestoreVA())
}

// ExitAndRunNext tears the current task down to Zombie with exitCode and
// yields the processor. The task's kernel stack, PID, and TCB persist
// until a parent reaps it via Waitpid (spec.md §4.8
// "exit_and_run_next").
func ExitAndRunNext(exitCode int32) {
	t := TakeCurrentTask()
	t.Exit(exitCode)
	var discarded task.Context
	Schedule(&discarded)
}
