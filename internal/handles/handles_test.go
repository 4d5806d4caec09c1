package handles

import (
	"sync"
	"testing"
)

func TestRegisterAndLookup(t *testing.T) {
	type payload struct {
		Name  string
		Value int
	}

	data := &payload{Name: "reader", Value: 42}
	handle := Register(data)
	if handle == 0 {
		t.Error("Register should return non-zero handle")
	}

	got, ok := Lookup(handle).(*payload)
	if !ok {
		t.Fatalf("Lookup returned wrong type: %T", Lookup(handle))
	}
	if got.Name != "reader" || got.Value != 42 {
		t.Errorf("Lookup returned wrong data: %+v", got)
	}
}

func TestUnregister(t *testing.T) {
	handle := Register("opaque")
	if Lookup(handle) == nil {
		t.Error("expected value before Unregister")
	}

	Unregister(handle)
	if Lookup(handle) != nil {
		t.Error("expected nil after Unregister")
	}
}

func TestLookupNonExistent(t *testing.T) {
	if Lookup(999999) != nil {
		t.Error("Lookup of non-existent handle should return nil")
	}
}

func TestConcurrentAccess(t *testing.T) {
	const goroutines = 100
	const ops = 100

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < ops; j++ {
				data := struct{ ID, Seq int }{id, j}
				handle := Register(&data)
				if Lookup(handle) == nil {
					t.Errorf("Lookup returned nil for handle %d", handle)
				}
				Unregister(handle)
			}
		}(i)
	}
	wg.Wait()
}

func TestHandlesAreUnique(t *testing.T) {
	seen := make(map[uintptr]bool)
	for i := 0; i < 1000; i++ {
		h := Register(i)
		if seen[h] {
			t.Errorf("handle %d was returned twice", h)
		}
		seen[h] = true
	}
	for h := range seen {
		Unregister(h)
	}
}
