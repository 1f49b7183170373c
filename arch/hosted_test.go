package arch

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHostedTimerFiresPeriodically(t *testing.T) {
	timer := NewHostedTimer()
	var count atomic.Int32

	timer.Start(1000, func() { count.Add(1) })
	defer timer.Stop()

	require.Eventually(t, func() bool { return count.Load() >= 3 }, time.Second, time.Millisecond)
}

func TestHostedMaskDisableRestoreRoundTrips(t *testing.T) {
	m := NewHostedMask()
	token := m.Disable()
	m.Restore(token)

	// A second disable/restore must not deadlock if the first was
	// correctly released.
	done := make(chan struct{})
	go func() {
		m.Restore(m.Disable())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("mask did not release")
	}
}

func TestHostedContextSwitcherRecordsCalls(t *testing.T) {
	cs := NewHostedContextSwitcher()
	sp := cs.SaveCurrent(10)
	require.EqualValues(t, 10, sp)
	cs.RestoreCurrent(10)

	require.Equal(t, 1, cs.Saves)
	require.Equal(t, 1, cs.Restores)
}

func TestHostedTrampolineOpenCloseWrite(t *testing.T) {
	tramp := NewHostedTrampoline()

	openResult := tramp.Dispatch(&DriverCall{
		Type: CallOpen,
		Fn:   OpenFunc(func(ctx any, flags uint32) uint32 { return flags }),
		Arg1: "name",
		Arg2: uint32(7),
	})
	require.EqualValues(t, 7, openResult)

	closeResult := tramp.Dispatch(&DriverCall{
		Type: CallClose,
		Fn:   CloseFunc(func(ctx any) uint32 { return 0 }),
		Arg1: nil,
	})
	require.EqualValues(t, 0, closeResult)

	var n uint32
	writeResult := tramp.Dispatch(&DriverCall{
		Type: CallWrite,
		Fn: WriteFunc(func(ctx any, buf []byte, out *uint32) uint32 {
			*out = uint32(len(buf))
			return 0
		}),
		Arg1: nil,
		Arg2: []byte{1, 2, 3},
		Arg3: &n,
	})
	require.EqualValues(t, 0, writeResult)
	require.EqualValues(t, 3, n)
}
