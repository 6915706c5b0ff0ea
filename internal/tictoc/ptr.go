package tictoc

import "unsafe"

// ptrID turns a mutex's address into a comparable, orderable key, the same
// pattern occ.ptrID and leis.addr use to sort write sets by address.
func ptrID(m *Mutex) uintptr { return uintptr(unsafe.Pointer(m)) }
