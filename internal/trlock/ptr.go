package trlock

import "unsafe"

func ptrID64(m *Mutex64) uintptr   { return uintptr(unsafe.Pointer(m)) }
func ptrID128(m *Mutex128) uintptr { return uintptr(unsafe.Pointer(m)) }
