package kernel

import (
	"fmt"
	"strings"
)

// ThreadSnapshot is a read-only view of one TCB, suitable for printing or
// asserting against in tests.
type ThreadSnapshot struct {
	ID       uint32
	Name     string
	Priority uint8
	State    ThreadState
	RingSize int
}

// DriverSnapshot is a read-only view of one registered driver.
type DriverSnapshot struct {
	Handle DriverHandle
	Name   string
}

// Snapshot captures the live ready table and driver table. Grounded on the
// teacher's vm/run.go printCurrentState/printProgram debug views, rendered
// here as a queryable record rather than printed straight to stdout so it
// can back both a CLI subcommand and assertions in tests.
type Snapshot struct {
	Ticks   uint64
	Current string
	Ready   []ThreadSnapshot
	Drivers []DriverSnapshot
}

// Snapshot walks the ready table and driver table under the interrupt mask
// and returns a point-in-time view of the kernel.
func (k *Kernel) Snapshot() Snapshot {
	token := k.mask.Disable()
	defer k.mask.Restore(token)

	s := Snapshot{Ticks: k.ticks}
	if k.current != nil {
		s.Current = k.current.Name()
	}

	for pri := 0; pri < MaxPriorities; pri++ {
		head := k.ready[pri]
		if head == nil {
			continue
		}

		size := 0
		for n := head; ; n = n.next {
			size++
			if n.next == head {
				break
			}
		}

		for n := head; ; n = n.next {
			s.Ready = append(s.Ready, ThreadSnapshot{
				ID:       n.ID,
				Name:     n.Name(),
				Priority: n.Priority,
				State:    n.State,
				RingSize: size,
			})
			if n.next == head {
				break
			}
		}
	}

	for i := 0; i < k.drvCount; i++ {
		s.Drivers = append(s.Drivers, DriverSnapshot{
			Handle: DriverHandle(i),
			Name:   driverName(k.drivers[i].Name),
		})
	}

	return s
}

// String renders the snapshot the way the teacher's printCurrentState
// renders VM state: one line per record, no frills.
func (s Snapshot) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "tick=%d current=%s\n", s.Ticks, s.Current)
	for _, t := range s.Ready {
		fmt.Fprintf(&b, "  thread id=%d name=%-12s pri=%-3d state=%-6s ring=%d\n",
			t.ID, t.Name, t.Priority, t.State, t.RingSize)
	}
	for _, d := range s.Drivers {
		fmt.Fprintf(&b, "  driver handle=%d name=%s\n", d.Handle, d.Name)
	}
	return b.String()
}
