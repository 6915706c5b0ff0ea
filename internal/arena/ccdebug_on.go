//go:build ccdebug

package arena

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

func goroutineID() int64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]
	fields := strings.Fields(string(buf))
	if len(fields) < 2 {
		return -1
	}
	id, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return -1
	}
	return id
}

func debugTag(a *Arena) {
	a.ownerTag = goroutineID()
}

func debugCheckOwner(a *Arena) {
	if got := goroutineID(); got != a.ownerTag {
		panic(fmt.Sprintf("arena: allocate/free called from goroutine %d, owned by %d (P9 violation)", got, a.ownerTag))
	}
}
