package history

import (
	"testing"
	"time"
)

func TestEntry_Fields(t *testing.T) {
	now := time.Now()
	e := Entry{
		ID:         1,
		RecordedAt: now,
		Phase:      "deploy",
		Placement:  map[string]string{"svc-a": "node-1"},
		Unplaced:   []string{"svc-b"},
		Warnings:   []string{"convergence not reached"},
	}

	if e.Phase != "deploy" {
		t.Errorf("Phase = %v, want deploy", e.Phase)
	}
	if e.Placement["svc-a"] != "node-1" {
		t.Errorf("Placement[svc-a] = %v, want node-1", e.Placement["svc-a"])
	}
	if len(e.Unplaced) != 1 || e.Unplaced[0] != "svc-b" {
		t.Errorf("Unplaced = %v, want [svc-b]", e.Unplaced)
	}
	if len(e.Warnings) != 1 {
		t.Errorf("Warnings length = %d, want 1", len(e.Warnings))
	}
}

func TestNewRepository(t *testing.T) {
	r := NewRepository(nil)
	if r == nil {
		t.Fatal("NewRepository returned nil")
	}
	if r.db != nil {
		t.Errorf("db = %v, want nil", r.db)
	}
}
