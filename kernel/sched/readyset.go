package sched

// Policy selects the ready set's fetch strategy (spec.md §3 "Ready set").
type Policy int

const (
	FIFO Policy = iota
	Lottery
)

// LCG constants from original_source/kernel/src/task/rand.rs, preserved
// exactly so the lottery scheduler's empirical fairness matches spec.md §8
// scenario 7 ("within tolerance 5% over 10^5 draws").
const (
	lcgA    = 1664525
	lcgC    = 1013904223
	lcgM    = uint64(1) << 32
	lcgSeed = 123456789
)

type lcg struct{ state uint64 }

func newLCG() *lcg { return &lcg{state: lcgSeed} }

func (r *lcg) next() uint64 {
	r.state = (lcgA*r.state + lcgC) % lcgM
	return r.state
}

// lotteryEntry is one ready task's {share, priority} record (spec.md §4.8
// "Lottery").
type lotteryEntry struct {
	t        Task
	share    int
	priority int
}

const (
	initialShare    = 100
	initialPriority = 10
)

// afterWin applies spec.md §4.8's post-draw update: the winner's share
// drops by one; if that leaves it below priority*5, priority drops by one
// and 5*priority is refunded to share, wrapping back to (priority=10,
// share=100) if priority would reach zero. Fetch applies it to the winning
// entry and then drops that entry from the set, and Add always starts a
// task at (share=100, priority=10), so the updated values are not carried
// into the task's next Add.
func (e *lotteryEntry) afterWin() {
	e.share--
	if e.share < e.priority*5 {
		e.priority--
		if e.priority <= 0 {
			e.priority = initialPriority
			e.share = initialShare
			return
		}
		e.share += 5 * e.priority
	}
}

// ReadySet holds every Ready task not currently running, fetched either
// FIFO or by lottery draw, with an optional pinned mode that forces the
// next fetch to a specific PID (spec.md §3 "Ready set", §4.8 "server_status").
type ReadySet struct {
	policy Policy

	fifo    []Task
	lottery []*lotteryEntry
	rng     *lcg

	hasPin    bool
	pinnedPID uint64
}

// NewFIFOReadySet returns an empty FIFO-policy ready set.
func NewFIFOReadySet() *ReadySet { return &ReadySet{policy: FIFO} }

// NewLotteryReadySet returns an empty lottery-policy ready set, seeded
// per original_source/kernel/src/task/rand.rs.
func NewLotteryReadySet() *ReadySet { return &ReadySet{policy: Lottery, rng: newLCG()} }

// Add makes t eligible for a future Fetch.
func (rs *ReadySet) Add(t Task) {
	switch rs.policy {
	case FIFO:
		rs.fifo = append(rs.fifo, t)
	case Lottery:
		rs.lottery = append(rs.lottery, &lotteryEntry{t: t, share: initialShare, priority: initialPriority})
	}
}

// Len reports how many tasks are currently ready.
func (rs *ReadySet) Len() int {
	if rs.policy == FIFO {
		return len(rs.fifo)
	}
	return len(rs.lottery)
}

// Pin forces the next Fetch to return the task with this PID (searching
// wherever it currently sits in the ready set) and signals the timer
// handler to withhold preemption via Pinned(). If the pinned PID is not
// presently ready, Fetch falls back to the normal policy -- the pin only
// takes effect once that task is actually available (spec.md §4.8 "used
// when user-mode must run a reliability-critical sibling... to
// completion").
func (rs *ReadySet) Pin(pid uint64) {
	rs.hasPin = true
	rs.pinnedPID = pid
}

// Unpin clears a previously armed pin.
func (rs *ReadySet) Unpin() { rs.hasPin = false }

// Pinned reports whether a pin is currently armed; the timer interrupt
// handler consults this to withhold preemption (spec.md §4.8).
func (rs *ReadySet) Pinned() bool { return rs.hasPin }

// Fetch removes and returns the next task to run, or nil if none is
// ready.
func (rs *ReadySet) Fetch() Task {
	if rs.hasPin {
		if t := rs.removeByPID(rs.pinnedPID); t != nil {
			return t
		}
	}
	switch rs.policy {
	case FIFO:
		return rs.fetchFIFO()
	default:
		return rs.fetchLottery()
	}
}

func (rs *ReadySet) fetchFIFO() Task {
	if len(rs.fifo) == 0 {
		return nil
	}
	t := rs.fifo[0]
	rs.fifo = rs.fifo[1:]
	return t
}

func (rs *ReadySet) fetchLottery() Task {
	if len(rs.lottery) == 0 {
		return nil
	}
	sum := 0
	for _, e := range rs.lottery {
		sum += e.share
	}
	draw := int(rs.rng.next()%uint64(sum)) + 1

	cum := 0
	idx := len(rs.lottery) - 1
	for i, e := range rs.lottery {
		cum += e.share
		if draw <= cum {
			idx = i
			break
		}
	}

	winner := rs.lottery[idx]
	winner.afterWin()
	rs.lottery = append(rs.lottery[:idx], rs.lottery[idx+1:]...)
	return winner.t
}

// Remove pulls the task named by pid out of the ready set, if it is
// presently sitting there, and returns it -- or nil if no ready task has
// that PID (it is either running or already gone). Used by sys_kill to
// terminate a non-current task synchronously rather than merely marking it
// for deferred exit (spec.md §5 "of a non-current task, removes it from
// the ready set and runs its exit synchronously").
func (rs *ReadySet) Remove(pid uint64) Task { return rs.removeByPID(pid) }

// removeByPID pulls a specific task out of the ready set regardless of
// policy, used to service a pin.
func (rs *ReadySet) removeByPID(pid uint64) Task {
	switch rs.policy {
	case FIFO:
		for i, t := range rs.fifo {
			if t.PID() == pid {
				rs.fifo = append(rs.fifo[:i], rs.fifo[i+1:]...)
				return t
			}
		}
	case Lottery:
		for i, e := range rs.lottery {
			if e.t.PID() == pid {
				rs.lottery = append(rs.lottery[:i], rs.lottery[i+1:]...)
				return e.t
			}
		}
	}
	return nil
}
