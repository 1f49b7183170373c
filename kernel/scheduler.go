package kernel

import (
	"context"
	"log"
	"os"

	"kos/arch"
)

// TicksPerSecond is the nominal tick rate the reference target's
// Tmr_TickInit programs Timer0 for (spec.md §4.B).
const TicksPerSecond = 100

// IdleStackWords mirrors the reference target's STACK_SIZE_IDLE
// (200 + sizeof(threadTCB_t)), expressed in the header-plus-usable layout
// tcbHeaderWords models.
const IdleStackWords = 200 + tcbHeaderWords

// Logger is the small logging contract the tick pipeline emits through,
// including its idle-thread messages. *log.Logger satisfies it directly.
type Logger interface {
	Printf(format string, v ...any)
}

// Kernel is the scheduler singleton: the ready table, the current thread,
// the tick count, and the hardware boundary it drives. Its state is
// reached only through the documented operations. New does not enforce a
// single instance: each call builds an independent Kernel.
type Kernel struct {
	initialized bool
	nextID      uint32

	ready   [MaxPriorities]*TCB
	current *TCB
	ticks   uint64

	idleStack []uint32

	mask  arch.InterruptMask
	ctxsw arch.ContextSwitcher
	timer arch.TimerSource
	tramp arch.Trampoline

	drivers  [MaxDrivers]*DriverInfo
	drvCount int

	log Logger
}

// New builds a Kernel wired to the given hardware boundary. Pass
// arch.NewHostedMask/NewHostedContextSwitcher/NewHostedTimer/
// NewHostedTrampoline to run on a development machine instead of bare
// metal.
func New(mask arch.InterruptMask, ctxsw arch.ContextSwitcher, timer arch.TimerSource, tramp arch.Trampoline) *Kernel {
	return &Kernel{
		mask:  mask,
		ctxsw: ctxsw,
		timer: timer,
		tramp: tramp,
		log:   log.New(os.Stderr, "kos: ", 0),
	}
}

// SetLogger overrides the default stderr logger, e.g. with log.New(io.Discard, "", 0)
// in tests that don't want idle/tick chatter on stderr.
func (k *Kernel) SetLogger(l Logger) {
	k.log = l
}

func idleThreadFunc(uintptr) {}

// recoverTick returns a closure guarding one pass of the tick pipeline,
// adapted from the teacher's getDefaultRecoverFuncForVM (vm/exec.go,
// vm/run.go): recover a panic inside the tick, log it, and let the timer
// source keep firing instead of taking the whole process down with it.
func (k *Kernel) recoverTick() func() {
	return func() {
		if r := recover(); r != nil {
			k.log.Printf("kos: recovered panic in tick pipeline (tick %d): %v", k.ticks, r)
		}
	}
}

// Init marks the kernel initialized and creates the mandatory idle thread
// at the lowest priority. If idle creation fails the initialized flag is
// cleared and the failure is returned untouched, per spec.md §4.B.
func (k *Kernel) Init() Code {
	k.initialized = true

	k.idleStack = make([]uint32, IdleStackWords)
	if err := k.CreateThread(LowestPriority, "Idle Thread", k.idleStack, idleThreadFunc, 0); IsError(err) {
		k.initialized = false
		return err
	}

	return Success
}

// CreateThread validates and registers a new thread, reserving
// tcbHeaderWords at the base of the caller-supplied stack buffer for its
// TCB and building its initial saved frame on the remainder (spec.md §4.B).
func (k *Kernel) CreateThread(priority uint8, name string, stack []uint32, entry ThreadFunc, arg uintptr) Code {
	if !k.initialized {
		return ErrOS
	}
	if entry == nil || stack == nil {
		return ErrArg
	}
	if int(priority) > LowestPriority {
		return ErrArg
	}
	if len(stack) < tcbHeaderWords+MinUsableStackWords {
		return ErrArg
	}

	usable := stack[tcbHeaderWords:]
	newSP, err := initThreadStack(usable, uint32(len(usable)), entry, arg)
	if IsError(err) {
		return err
	}

	t := &TCB{
		SavedSP:   uint32(newSP),
		Priority:  priority,
		State:     ThreadReady,
		StackSize: uint32(len(usable)),
		stack:     usable,
		entry:     entry,
		arg:       arg,
	}
	setName(&t.name, name)

	token := k.mask.Disable()
	t.ID = k.nextID
	k.nextID++
	ringInsert(&k.ready[priority], t)
	k.mask.Restore(token)

	return Success
}

// Start programs the periodic tick source at TicksPerSecond and performs
// the first context restore. On real hardware this never returns; the
// hosted implementation blocks until ctx is canceled, driving one tick
// pipeline per timer period in the background.
func (k *Kernel) Start(ctx context.Context) Code {
	if !k.initialized {
		return ErrOS
	}

	k.pickNext()
	k.ctxsw.RestoreCurrent(uintptr(k.current.SavedSP))

	k.timer.Start(TicksPerSecond, k.onTick)
	<-ctx.Done()
	k.timer.Stop()

	return Success
}

// onTick is the tick ISR pipeline: increment the tick count, pick the next
// thread, and perform the architectural context switch (spec.md §4.B).
// The timer/interrupt-controller acknowledgment steps spec.md describes
// are the hardware boundary's responsibility (arch.TimerSource.Start calls
// onTick only once per period, already acknowledged).
func (k *Kernel) onTick() {
	defer k.recoverTick()()

	token := k.mask.Disable()
	k.ticks++
	prev := k.current
	k.pickNext()
	next := k.current
	k.mask.Restore(token)

	if next.Priority == LowestPriority {
		k.log.Printf("tick %d: idle thread %s running", k.ticks, next.Name())
	} else if prev != next {
		k.log.Printf("tick %d: switch to %s (priority %d)", k.ticks, next.Name(), next.Priority)
	}

	if prev != nil {
		prev.SavedSP = uint32(k.ctxsw.SaveCurrent(uintptr(prev.SavedSP)))
	}
	k.ctxsw.RestoreCurrent(uintptr(next.SavedSP))
}

// Tick drives one iteration of the tick pipeline directly, bypassing the
// timer source. It exists so the scheduler's pick-next behavior is
// testable deterministically, without depending on wall-clock timing.
func (k *Kernel) Tick() {
	k.onTick()
}

// pickNext scans the ready table from priority 0 upward for the first
// non-empty slot, advances its head to the successor, and makes the
// successor current (spec.md §4.B). The idle thread, always present at
// LowestPriority after a successful Init, guarantees termination.
func (k *Kernel) pickNext() {
	var pri uint8
	for k.ready[pri] == nil {
		pri++
	}

	head := k.ready[pri]
	head = head.next
	k.ready[pri] = head

	if k.current != nil && k.current != head {
		k.current.State = ThreadReady
	}
	head.State = ThreadActive
	k.current = head
}

// Current returns the active TCB, or nil before the first pick-next.
func (k *Kernel) Current() *TCB {
	return k.current
}

// Ticks returns the global tick count.
func (k *Kernel) Ticks() uint64 {
	return k.ticks
}
