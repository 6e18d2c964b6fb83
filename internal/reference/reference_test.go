//go:build !integration

package reference

import (
	"strconv"
	"strings"
	"sync"
	"testing"
)

func TestNext_Format(t *testing.T) {
	g := NewGenerator("EDU")
	ref := g.Next("L1", "S1")

	parts := strings.Split(ref, "_")
	if len(parts) != 4 {
		t.Fatalf("expected 4 underscore-separated parts, got %q", ref)
	}
	if parts[0] != "EDU" || parts[1] != "L1" || parts[2] != "S1" {
		t.Errorf("unexpected prefix in %q", ref)
	}
	if _, err := strconv.ParseInt(parts[3], 10, 64); err != nil {
		t.Errorf("expected numeric timestamp component, got %q", parts[3])
	}
}

func TestNext_UniqueInRapidSuccession(t *testing.T) {
	g := NewGenerator("EDU")
	const n = 10000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		ref := g.Next("L1", "S1")
		if _, dup := seen[ref]; dup {
			t.Fatalf("duplicate reference after %d generations: %q", i, ref)
		}
		seen[ref] = struct{}{}
	}
}

func TestNext_UniqueUnderConcurrency(t *testing.T) {
	g := NewGenerator("EDU")
	const workers = 8
	const perWorker = 500

	var mu sync.Mutex
	seen := make(map[string]struct{}, workers*perWorker)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]string, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				local = append(local, g.Next("L1", "S1"))
			}
			mu.Lock()
			defer mu.Unlock()
			for _, ref := range local {
				if _, dup := seen[ref]; dup {
					t.Errorf("duplicate reference: %q", ref)
				}
				seen[ref] = struct{}{}
			}
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Errorf("expected %d distinct references, got %d", workers*perWorker, len(seen))
	}
}

func TestNext_TimestampMonotonic(t *testing.T) {
	g := NewGenerator("EDU")
	var prev int64
	for i := 0; i < 100; i++ {
		ref := g.Next("L1", "S1")
		parts := strings.Split(ref, "_")
		ts, err := strconv.ParseInt(parts[len(parts)-1], 10, 64)
		if err != nil {
			t.Fatalf("parsing timestamp from %q: %v", ref, err)
		}
		if ts <= prev {
			t.Fatalf("timestamp not strictly increasing: %d after %d", ts, prev)
		}
		prev = ts
	}
}
