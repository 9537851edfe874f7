// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral API for CPU affinity. Platform-specific implementations are located
// in separate files (affinity_linux.go, affinity_stub.go) guarded by build tags.

package affinity

import "runtime"

// PinCurrentGoroutine locks the calling goroutine to its OS thread and, when
// cpuID >= 0, binds that thread to cpuID. The returned release func unlocks
// an unbound thread; a bound thread stays locked so the runtime discards it
// when the goroutine exits instead of reusing a narrowed thread.
func PinCurrentGoroutine(cpuID int) (release func(), err error) {
	runtime.LockOSThread()
	if cpuID < 0 {
		return runtime.UnlockOSThread, nil
	}
	if err = setAffinityPlatform(cpuID); err != nil {
		return runtime.UnlockOSThread, err
	}
	return func() {}, nil
}
