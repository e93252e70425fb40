package ulid

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestGenerateWithTime(t *testing.T) {
	gen := NewGenerator(nil)
	testTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	id, err := gen.GenerateWithTime(testTime)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !Time(id).Equal(testTime) {
		t.Fatalf("时间戳不匹配，期望: %v, 实际: %v", testTime, Time(id))
	}
}

func TestMonotonicWithinMillisecond(t *testing.T) {
	gen := NewGenerator(nil)
	ts := time.Now()

	prev, _ := gen.GenerateWithTime(ts)
	for i := 0; i < 100; i++ {
		next, err := gen.GenerateWithTime(ts)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if next.Compare(prev) <= 0 {
			t.Fatalf("同一毫秒内 ULID 应单调递增")
		}
		prev = next
	}
}

func TestUUIDRoundTrip(t *testing.T) {
	id := Generate()
	u := ToUUID(id)
	if u == uuid.Nil {
		t.Fatalf("expected non-nil uuid")
	}
	if !bytes.Equal(id[:], u[:]) {
		t.Fatalf("ToUUID must keep bytes")
	}
	if FromUUID(u) != id {
		t.Fatalf("FromUUID(ToUUID(id)) != id")
	}
}

func TestNewUUIDConcurrent(t *testing.T) {
	const n = 200
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[uuid.UUID]struct{}, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, err := NewUUID()
			if err != nil {
				t.Errorf("new uuid: %v", err)
				return
			}
			mu.Lock()
			seen[u] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(seen) != n {
		t.Fatalf("expected %d unique ids, got %d", n, len(seen))
	}
}
