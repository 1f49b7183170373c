package kernel

import "kos/arch"

// DriverNameLen bounds a driver's registered name, matching
// DriverInfo_t.name[12] in the reference target's os_driver.h.
const DriverNameLen = 12

// MaxDrivers is the fixed capacity of the driver registration table,
// matching MAX_DRIVER_CNT in os_driver.c.
const MaxDrivers = 32

// DriverHandle is the opaque identifier open() hands back, stable for the
// process lifetime (spec.md glossary: "Handle").
type DriverHandle = uint32

// DriverInfo is a registered driver's function table: a name and the five
// entry points the trampoline may invoke. Once registered, entries are
// immutable (spec.md §5).
type DriverInfo struct {
	Name  [DriverNameLen]byte
	Open  arch.OpenFunc
	Close arch.CloseFunc
	Read  arch.ReadFunc
	Write arch.WriteFunc
	Ioctl arch.IoctlFunc
}

func driverName(name [DriverNameLen]byte) string {
	n := 0
	for n < len(name) && name[n] != 0 {
		n++
	}
	return string(name[:n])
}

// NewDriverInfo builds a DriverInfo with a truncated, NUL-terminated name,
// ready to pass to RegisterDriver.
func NewDriverInfo(name string, open arch.OpenFunc, close arch.CloseFunc, read arch.ReadFunc, write arch.WriteFunc, ioctl arch.IoctlFunc) *DriverInfo {
	info := &DriverInfo{Open: open, Close: close, Read: read, Write: write, Ioctl: ioctl}
	setName(&info.Name, name)
	return info
}

// RegisterDriver appends a driver record to the registration table.
// Registration is append-only and stable-ordered: the resulting index is
// implicitly the driver's future handle (spec.md §4.C). Interrupts are
// masked around the append, since spec.md §5 calls out that registration
// occurring after Start must stay totally ordered against concurrent
// lookups even though the reference source does not bother.
func (k *Kernel) RegisterDriver(info *DriverInfo) Code {
	if info == nil {
		return ErrArg
	}

	token := k.mask.Disable()
	defer k.mask.Restore(token)

	if k.drvCount >= MaxDrivers {
		return ErrDriverFull
	}

	k.drivers[k.drvCount] = info
	k.drvCount++
	return Success
}

// Open scans the driver table for a name match, dispatches an open call
// through the trampoline, and on success writes the matching index into
// *handle (spec.md §4.C).
func (k *Kernel) Open(handle *DriverHandle, name string, flags uint32) Code {
	if handle == nil {
		return ErrArg
	}

	for i := 0; i < k.drvCount; i++ {
		d := k.drivers[i]
		if driverName(d.Name) != name {
			continue
		}

		*handle = 0
		call := &arch.DriverCall{
			Type: arch.CallOpen,
			Fn:   d.Open,
			Arg1: name,
			Arg2: flags,
		}
		result := k.tramp.Dispatch(call)
		if !IsError(Code(result)) {
			*handle = DriverHandle(i)
		}
		return Code(result)
	}

	return ErrDriverNotFound
}

// driverAt validates a handle and returns its record.
func (k *Kernel) driverAt(handle DriverHandle) (*DriverInfo, Code) {
	if handle >= uint32(k.drvCount) {
		return nil, ErrArg
	}
	return k.drivers[handle], Success
}

// Close dispatches a close call to the driver at handle (spec.md §4.C).
// Unlike the reference source, which indexes by the live driver count
// rather than by the caller's handle, this looks the record up by handle —
// the corrected contract spec.md §9 calls for.
func (k *Kernel) Close(handle DriverHandle, context any) Code {
	d, err := k.driverAt(handle)
	if IsError(err) {
		return err
	}

	call := &arch.DriverCall{Type: arch.CallClose, Fn: d.Close, Arg1: context}
	return Code(k.tramp.Dispatch(call))
}

// Read dispatches a read call to the driver at handle.
func (k *Kernel) Read(handle DriverHandle, context any, buffer []byte, byteCount *uint32) Code {
	d, err := k.driverAt(handle)
	if IsError(err) {
		return err
	}

	call := &arch.DriverCall{Type: arch.CallRead, Fn: d.Read, Arg1: context, Arg2: buffer, Arg3: byteCount}
	return Code(k.tramp.Dispatch(call))
}

// Write dispatches a write call to the driver at handle.
func (k *Kernel) Write(handle DriverHandle, context any, buffer []byte, byteCount *uint32) Code {
	d, err := k.driverAt(handle)
	if IsError(err) {
		return err
	}

	call := &arch.DriverCall{Type: arch.CallWrite, Fn: d.Write, Arg1: context, Arg2: buffer, Arg3: byteCount}
	return Code(k.tramp.Dispatch(call))
}

// Ioctl dispatches an ioctl call to the driver at handle. Unlike the
// reference source, which routes ioctl through the Read function pointer,
// this invokes Ioctl — the corrected contract spec.md §9 calls for.
func (k *Kernel) Ioctl(handle DriverHandle, context any, control uint32, buffer []byte, byteCount *uint32) Code {
	d, err := k.driverAt(handle)
	if IsError(err) {
		return err
	}

	call := &arch.DriverCall{Type: arch.CallIoctl, Fn: d.Ioctl, Arg1: context, Arg2: control, Arg3: buffer, Arg4: byteCount}
	return Code(k.tramp.Dispatch(call))
}
