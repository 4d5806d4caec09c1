// Package handles provides a thread-safe handle registry for Go objects that
// must be referenced from C callbacks.
//
// Go pointers cannot be stored in C memory, so callback opaque pointers carry
// a uintptr handle instead; the callback looks the Go object back up through
// the registry.
package handles

import "sync"

var (
	mu      sync.RWMutex
	handles = make(map[uintptr]any)
	nextID  uintptr = 1
)

// Register stores a Go object and returns a handle ID safe to store in C
// memory. The object stays reachable until Unregister.
func Register(v any) uintptr {
	mu.Lock()
	defer mu.Unlock()
	id := nextID
	nextID++
	handles[id] = v
	return id
}

// Lookup retrieves a Go object by its handle ID, or nil.
func Lookup(id uintptr) any {
	mu.RLock()
	defer mu.RUnlock()
	return handles[id]
}

// Unregister removes a handle so the Go object can be collected.
func Unregister(id uintptr) {
	mu.Lock()
	defer mu.Unlock()
	delete(handles, id)
}

// Count returns the number of registered handles, for leak checks in tests.
func Count() int {
	mu.RLock()
	defer mu.RUnlock()
	return len(handles)
}
