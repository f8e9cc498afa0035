package idgen

import (
	"math/rand"
	"regexp"
	"sync"
	"testing"
	"time"
)

var (
	guidPattern        = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	orderNumberPattern = regexp.MustCompile(`^PFX(\d{8})-[A-Z]{3}\d{2}$`)
)

func TestGUIDLayout(t *testing.T) {
	t.Parallel()
	gen := New("", WithSource(rand.NewSource(42)))
	seen := map[string]struct{}{}
	for i := 0; i < 500; i++ {
		id := gen.GUID()
		if !guidPattern.MatchString(id) {
			t.Fatalf("guid %q does not match v4 layout", id)
		}
		seen[id] = struct{}{}
	}
	if len(seen) != 500 {
		t.Fatalf("expected 500 distinct guids, got %d", len(seen))
	}
}

func TestOrderNumberFormatAndDate(t *testing.T) {
	t.Parallel()
	fixed := time.Date(2026, time.March, 7, 23, 59, 0, 0, time.Local)
	gen := New("PFX", WithClock(func() time.Time { return fixed }))

	for i := 0; i < 200; i++ {
		number := gen.OrderNumber()
		match := orderNumberPattern.FindStringSubmatch(number)
		if match == nil {
			t.Fatalf("order number %q does not match format", number)
		}
		if match[1] != "20260307" {
			t.Fatalf("expected date segment 20260307, got %s", match[1])
		}
	}
}

func TestOrderNumberUsesConfiguredPrefix(t *testing.T) {
	t.Parallel()
	gen := New("MQT")
	number := gen.OrderNumber()
	if number[:3] != "MQT" {
		t.Fatalf("expected MQT prefix, got %q", number)
	}
	if got := New("  ").OrderNumber(); got[:3] != DefaultOrderPrefix {
		t.Fatalf("blank prefix should default, got %q", got)
	}
}

func TestGeneratorConcurrentUse(t *testing.T) {
	t.Parallel()
	gen := New("PFX")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = gen.GUID()
				_ = gen.OrderNumber()
			}
		}()
	}
	wg.Wait()
}
