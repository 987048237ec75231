package id

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
)

func TestGenerate(t *testing.T) {
	gen := NewGenerator()

	id1 := gen.Generate()
	id2 := gen.Generate()

	if id1.String() == id2.String() {
		t.Error("Generated IDs should be unique")
	}
	if id2.Compare(id1) <= 0 {
		t.Errorf("IDs should be increasing: %s then %s", id1, id2)
	}
}

func TestGenerateString(t *testing.T) {
	gen := NewGenerator()

	id := gen.GenerateString()

	if len(id) != 26 {
		t.Errorf("ULID should be 26 characters, got %d", len(id))
	}
}

func TestNewRunID(t *testing.T) {
	tests := []struct {
		name string
		id   RunID
	}{
		{"default generator", Default().NewRunID()},
		{"own generator", NewGenerator().NewRunID()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts := strings.Split(tt.id.String(), "_")
			if len(parts) != 2 {
				t.Fatalf("Run ID should have format 'run_ulid', got: %s", tt.id)
			}
			if parts[0] != RunPrefix {
				t.Errorf("Expected prefix '%s', got '%s'", RunPrefix, parts[0])
			}
			if _, err := ulid.ParseStrict(parts[1]); err != nil {
				t.Errorf("Run ID should carry a valid ULID: %s: %v", tt.id, err)
			}
		})
	}
}

func TestRunIDTimestamp(t *testing.T) {
	before := time.Now()
	id := NewGenerator().NewRunID()
	after := time.Now()

	parsed, err := ulid.ParseStrict(strings.TrimPrefix(id.String(), RunPrefix+"_"))
	if err != nil {
		t.Fatalf("Failed to parse run ID: %v", err)
	}

	// ULID timestamps have millisecond precision
	tsMs := ulid.Time(parsed.Time()).UnixMilli()
	if tsMs < before.UnixMilli() || tsMs > after.UnixMilli() {
		t.Errorf("Timestamp should be between %d and %d ms, got %d ms", before.UnixMilli(), after.UnixMilli(), tsMs)
	}
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()

	const goroutines = 50
	const idsPerGoroutine = 100

	var wg sync.WaitGroup
	idChan := make(chan string, goroutines*idsPerGoroutine)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < idsPerGoroutine; j++ {
				idChan <- gen.GenerateString()
			}
		}()
	}

	wg.Wait()
	close(idChan)

	// Check uniqueness
	seen := make(map[string]bool)
	for id := range idChan {
		if seen[id] {
			t.Errorf("Duplicate ID found in concurrent generation: %s", id)
		}
		seen[id] = true
	}

	if len(seen) != goroutines*idsPerGoroutine {
		t.Errorf("Expected %d unique IDs, got %d", goroutines*idsPerGoroutine, len(seen))
	}
}

func TestDefaultGenerator(t *testing.T) {
	if Default() != Default() {
		t.Error("Default() should return the same instance")
	}
}

func BenchmarkNewRunID(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = Default().NewRunID()
	}
}
