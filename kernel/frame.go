package kernel

import "reflect"

// FrameWords is the size in machine words of the initial saved-context
// snapshot: the restore primitive's fixed 17-slot layout (spec.md §3/§4.A).
const FrameWords = 17

// MinUsableStackWords is the smallest usable-word count init_thread_stack
// will accept: enough for the 17-word frame plus immediate scratch
// (spec.md §4.A, mirroring kos_InitThreadStack's "size < 20" check).
const MinUsableStackWords = 20

// Debug register patterns written into the general-purpose slots of a
// freshly built frame, letting a debugger tell an untouched register from
// one a thread has actually written. Values match
// original_source/src/os_core.c's kos_InitThreadStack byte-for-byte.
const (
	patR12 uint32 = 0x12121212
	patR11 uint32 = 0x11111111
	patR10 uint32 = 0x10101010
	patR9  uint32 = 0x09090909
	patR8  uint32 = 0x08080808
	patR7  uint32 = 0x07070707
	patR6  uint32 = 0x06060606
	patR5  uint32 = 0x05050505
	patR4  uint32 = 0x04040404
	patR3  uint32 = 0x03030303
	patR2  uint32 = 0x02020202
	patR1  uint32 = 0x01010101
)

// Processor status bits written into CPSR. cpsrModeUser selects
// unprivileged execution; cpsrThumb is set when the entry point's low
// address bit marks it as thumb-mode code.
const (
	cpsrModeUser uint32 = 0x10
	cpsrThumb    uint32 = 0x20
)

// SavedFrame is the 17-word saved register snapshot the architectural
// restore primitive expects, named and ordered exactly as it is laid out
// in memory (highest address first) per spec.md §3: "a precisely typed
// record written at a known offset from the stack top, not free-form
// pointer arithmetic" (spec.md §9).
type SavedFrame struct {
	PC   uint32 // R15 — thread entry point
	LR   uint32 // R14 — sentinel; threads must not return
	SP   uint32 // R13 — pointer to the original stack top
	R12  uint32
	R11  uint32
	R10  uint32
	R9   uint32
	R8   uint32
	R7   uint32
	R6   uint32
	R5   uint32
	R4   uint32
	R3   uint32
	R2   uint32
	R1   uint32
	R0   uint32 // argument word delivered to the thread
	CPSR uint32
}

// Words renders the frame in restore order: index 0 is the highest stack
// address (PC), index FrameWords-1 the lowest (CPSR, also the new SP).
func (f SavedFrame) Words() [FrameWords]uint32 {
	return [FrameWords]uint32{
		f.PC, f.LR, f.SP,
		f.R12, f.R11, f.R10, f.R9, f.R8, f.R7, f.R6, f.R5, f.R4, f.R3, f.R2, f.R1,
		f.R0, f.CPSR,
	}
}

func newSavedFrame(entryAddr, originalTop uint32, arg uintptr) SavedFrame {
	cpsr := cpsrModeUser
	if entryAddr&1 != 0 {
		cpsr |= cpsrThumb
	}

	return SavedFrame{
		PC:   entryAddr,
		LR:   0,
		SP:   originalTop,
		R12:  patR12,
		R11:  patR11,
		R10:  patR10,
		R9:   patR9,
		R8:   patR8,
		R7:   patR7,
		R6:   patR6,
		R5:   patR5,
		R4:   patR4,
		R3:   patR3,
		R2:   patR2,
		R1:   patR1,
		R0:   uint32(arg),
		CPSR: cpsr,
	}
}

// entryAddr recovers a numeric address for a ThreadFunc so the frame
// builder can test and store its low bit, the only use this module has for
// a function's address. There is no portable way to do this outside a
// hosted/test build; on real hardware the caller already has the entry's
// literal address.
func entryAddr(fn ThreadFunc) uint32 {
	return uint32(reflect.ValueOf(fn).Pointer())
}

// initThreadStack writes the 17-slot frame into the high end of stack
// (stack[len(stack)-1] being the word immediately below the buffer's
// exclusive-end top) and returns the index of the new stack pointer —
// len(stack)-FrameWords, i.e. exactly 17 words below the top, per spec.md
// §8's round-frame-layout property. originalTop is the word count at the
// top of the full caller-supplied buffer, stored into the frame's SP slot.
func initThreadStack(stack []uint32, originalTop uint32, entry ThreadFunc, arg uintptr) (newSP int, err Code) {
	if stack == nil || entry == nil {
		return 0, ErrArg
	}
	if len(stack) < MinUsableStackWords {
		return 0, ErrArg
	}

	frame := newSavedFrame(entryAddr(entry), originalTop, arg)
	words := frame.Words()

	top := len(stack)
	for i, w := range words {
		stack[top-1-i] = w
	}

	return top - FrameWords, Success
}
