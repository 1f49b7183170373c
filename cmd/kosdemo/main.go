// Command kosdemo runs one of the end-to-end scheduling scenarios the
// kernel core is specified against, against the hosted (non-bare-metal)
// hardware boundary in package arch.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"kos/arch"
	"kos/kernel"
)

var (
	ticks = flag.Int("ticks", 10, "number of ticks to advance before printing a snapshot")
)

func init() {
	flag.Parse()
}

func newDemoKernel() *kernel.Kernel {
	return kernel.New(
		arch.NewHostedMask(),
		arch.NewHostedContextSwitcher(),
		arch.NewHostedTimer(),
		arch.NewHostedTrampoline(),
	)
}

func idleOnly() {
	k := newDemoKernel()
	mustOK(k.Init())

	for i := 0; i < *ticks; i++ {
		k.Tick()
	}
	fmt.Print(k.Snapshot())
}

func equalPriority() {
	k := newDemoKernel()
	mustOK(k.Init())

	stackA := make([]uint32, 64)
	stackB := make([]uint32, 64)
	mustOK(k.CreateThread(25, "A", stackA, func(uintptr) {}, 0))
	mustOK(k.CreateThread(25, "B", stackB, func(uintptr) {}, 0))

	for i := 0; i < *ticks; i++ {
		k.Tick()
		fmt.Printf("tick %d: current=%s\n", k.Ticks(), k.Current().Name())
	}
}

func priorityPreemption() {
	k := newDemoKernel()
	mustOK(k.Init())

	stackA := make([]uint32, 64)
	stackC := make([]uint32, 64)
	mustOK(k.CreateThread(25, "A", stackA, func(uintptr) {}, 0))
	mustOK(k.CreateThread(100, "C", stackC, func(uintptr) {}, 0))

	for i := 0; i < *ticks; i++ {
		k.Tick()
	}
	fmt.Print(k.Snapshot())
}

func echoDriver(name string) *kernel.DriverInfo {
	return kernel.NewDriverInfo(name,
		func(ctx any, flags uint32) uint32 { return 0 },
		func(ctx any) uint32 { return 0 },
		func(ctx any, buf []byte, n *uint32) uint32 { return 0 },
		func(ctx any, buf []byte, n *uint32) uint32 {
			fmt.Printf("driver write: %v\n", buf)
			if n != nil {
				*n = uint32(len(buf))
			}
			return 0
		},
		func(ctx any, control uint32, buf []byte, n *uint32) uint32 { return control },
	)
}

func driverRoundTrip() {
	k := newDemoKernel()
	mustOK(k.Init())

	mustOK(k.RegisterDriver(echoDriver("tstdrv1")))

	var handle kernel.DriverHandle
	mustOK(k.Open(&handle, "tstdrv1", 0))

	n := uint32(3)
	mustOK(k.Write(handle, nil, []byte{5, 6, 7}, &n))
	fmt.Print(k.Snapshot())
}

// inspect builds a representative kernel — one application thread plus a
// registered driver — advances it a few ticks, and prints the resulting
// Snapshot, exercising the structured state inspection path.
func inspect() {
	k := newDemoKernel()
	mustOK(k.Init())

	stackA := make([]uint32, 64)
	mustOK(k.CreateThread(25, "A", stackA, func(uintptr) {}, 0))
	mustOK(k.RegisterDriver(echoDriver("tstdrv1")))

	for i := 0; i < *ticks; i++ {
		k.Tick()
	}
	fmt.Print(k.Snapshot())
}

func mustOK(c kernel.Code) {
	if kernel.IsError(c) {
		fmt.Fprintln(os.Stderr, c)
		os.Exit(1)
	}
}

func main() {
	args := os.Args[len(os.Args)-flag.NArg():]
	if len(args) == 0 {
		fmt.Println("Usage: kosdemo [-ticks N] <idle|equal-priority|priority-preemption|driver|inspect|start>")
		return
	}

	switch args[0] {
	case "idle":
		idleOnly()
	case "equal-priority":
		equalPriority()
	case "priority-preemption":
		priorityPreemption()
	case "driver":
		driverRoundTrip()
	case "inspect":
		inspect()
	case "start":
		// Runs the real tick-driven scheduler against the hosted timer
		// for a couple of seconds, the closest hosted analog of
		// kos_StartOS never returning.
		k := newDemoKernel()
		mustOK(k.Init())
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		k.Start(ctx)
		fmt.Print(k.Snapshot())
	default:
		fmt.Println("unknown scenario:", args[0])
		os.Exit(1)
	}
}
