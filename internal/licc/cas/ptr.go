package cas

import "unsafe"

func ptrID(m *Mutex) uintptr { return uintptr(unsafe.Pointer(m)) }
