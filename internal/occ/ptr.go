package occ

import "unsafe"

// ptrID gives write entries and read/write sets a stable sort/lookup key
// (address order, per occ.hpp's OccLock::operator< and WriteEntry::
// operator<) without retaining the converted uintptr as a pointer.
func ptrID(m *Mutex) uintptr { return uintptr(unsafe.Pointer(m)) }
