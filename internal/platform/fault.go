package platform

import (
	"fmt"
	"runtime/debug"
)

// Fault is a memory fault recovered from a read of mapped memory,
// typically after the underlying file was truncated.
type Fault struct {
	Addr uintptr
}

func (f *Fault) Error() string {
	return fmt.Sprintf("memory fault at %#x", f.Addr)
}

// GuardFaults runs fn with fault panics enabled and converts a fault raised
// while fn touches mapped memory into a *Fault error. Other panics propagate.
func GuardFaults(fn func() error) (err error) {
	defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if addr, ok := r.(interface{ Addr() uintptr }); ok {
			err = &Fault{Addr: addr.Addr()}
			return
		}
		panic(r)
	}()
	return fn()
}
