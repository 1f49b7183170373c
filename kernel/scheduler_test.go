package kernel

import (
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/require"

	"kos/arch"
)

func newTestKernel(t *testing.T) *Kernel {
	t.Helper()
	k := New(arch.NewHostedMask(), arch.NewHostedContextSwitcher(), arch.NewHostedTimer(), arch.NewHostedTrampoline())
	k.SetLogger(log.New(io.Discard, "", 0))
	require.Equal(t, Success, k.Init())
	return k
}

func newStack(words int) []uint32 {
	return make([]uint32, words)
}

func TestInitCreatesIdleThread(t *testing.T) {
	k := newTestKernel(t)
	snap := k.Snapshot()
	require.Len(t, snap.Ready, 1)
	require.Equal(t, "Idle Thread", snap.Ready[0].Name)
	require.EqualValues(t, LowestPriority, snap.Ready[0].Priority)
}

func TestCreateThreadRejectsUninitializedKernel(t *testing.T) {
	k := New(arch.NewHostedMask(), arch.NewHostedContextSwitcher(), arch.NewHostedTimer(), arch.NewHostedTrampoline())
	err := k.CreateThread(10, "t", newStack(64), dummyEntry, 0)
	require.Equal(t, ErrOS, err)
}

func TestCreateThreadRejectsNilEntryAndStack(t *testing.T) {
	k := newTestKernel(t)
	require.Equal(t, ErrArg, k.CreateThread(10, "t", newStack(64), nil, 0))
	require.Equal(t, ErrArg, k.CreateThread(10, "t", nil, dummyEntry, 0))
}

func TestCreateThreadRejectsPriorityOutOfRange(t *testing.T) {
	k := newTestKernel(t)
	err := k.CreateThread(LowestPriority+1, "t", newStack(64), dummyEntry, 0)
	require.Equal(t, ErrArg, err)
}

func TestCreateThreadRejectsUndersizedStackWithoutConsumingID(t *testing.T) {
	k := newTestKernel(t)
	before := k.nextID

	err := k.CreateThread(10, "t", newStack(tcbHeaderWords+MinUsableStackWords-1), dummyEntry, 0)
	require.Equal(t, ErrArg, err)
	require.Equal(t, before, k.nextID, "a rejected create_thread must not consume a thread id")
}

func TestIdleOnlyTicksAdvanceMonotonically(t *testing.T) {
	k := newTestKernel(t)
	for i := 1; i <= 5; i++ {
		k.Tick()
		require.EqualValues(t, i, k.Ticks())
		require.Equal(t, "Idle Thread", k.Current().Name())
	}
}

func TestTwoEqualPriorityThreadsRoundRobin(t *testing.T) {
	k := newTestKernel(t)
	require.Equal(t, Success, k.CreateThread(25, "A", newStack(64), dummyEntry, 0))
	require.Equal(t, Success, k.CreateThread(25, "B", newStack(64), dummyEntry, 0))

	// Most recently created thread becomes ring head, so A runs first.
	want := []string{"A", "B", "A", "B", "A", "B"}
	for _, name := range want {
		k.Tick()
		require.Equal(t, name, k.Current().Name())
	}
}

func TestPriorityPreemptionNeverRunsLowerPriority(t *testing.T) {
	k := newTestKernel(t)
	require.Equal(t, Success, k.CreateThread(25, "A", newStack(64), dummyEntry, 0))
	require.Equal(t, Success, k.CreateThread(100, "C", newStack(64), dummyEntry, 0))

	for i := 0; i < 10; i++ {
		k.Tick()
		require.Equal(t, "A", k.Current().Name(), "higher-priority thread must always win over idle and C")
	}
}

func TestRingClosure(t *testing.T) {
	k := newTestKernel(t)
	require.Equal(t, Success, k.CreateThread(25, "A", newStack(64), dummyEntry, 0))
	require.Equal(t, Success, k.CreateThread(25, "B", newStack(64), dummyEntry, 0))
	require.Equal(t, Success, k.CreateThread(25, "C", newStack(64), dummyEntry, 0))

	head := k.ready[25]
	n := head
	hops := 0
	for {
		hops++
		n = n.next
		if n == head {
			break
		}
		require.LessOrEqual(t, hops, 3, "ring must close within its own length")
	}
}

func TestEveryTCBPriorityInBounds(t *testing.T) {
	k := newTestKernel(t)
	require.Equal(t, Success, k.CreateThread(42, "A", newStack(64), dummyEntry, 0))

	for pri := 0; pri < MaxPriorities; pri++ {
		for n := k.ready[pri]; n != nil; n = n.next {
			require.Less(t, int(n.Priority), MaxPriorities)
			if n.next == k.ready[pri] {
				break
			}
		}
	}
}
