package presence

import (
	"testing"

	"github.com/Parth8155/SkillSwap/internal/model"
)

func TestRegisterAndGet(t *testing.T) {
	r := NewRegistry()

	replaced, ok := r.Register("user-a", "conn-1")
	if ok {
		t.Fatalf("expected no replaced connection, got %s", replaced)
	}

	rec, ok := r.Get("user-a")
	if !ok {
		t.Fatal("expected record for user-a")
	}
	if rec.ConnectionID != "conn-1" {
		t.Fatalf("unexpected connection id: %s", rec.ConnectionID)
	}
	if rec.Status != model.StatusOnline {
		t.Fatalf("new record should be online, got %s", rec.Status)
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", r.Len())
	}
}

func TestRegisterLastConnectionWins(t *testing.T) {
	r := NewRegistry()

	r.Register("user-a", "conn-1")
	replaced, ok := r.Register("user-a", "conn-2")
	if !ok || replaced != "conn-1" {
		t.Fatalf("expected conn-1 to be replaced, got %q (ok=%v)", replaced, ok)
	}

	rec, _ := r.Get("user-a")
	if rec.ConnectionID != "conn-2" {
		t.Fatalf("expected conn-2 to own the record, got %s", rec.ConnectionID)
	}
	if r.Len() != 1 {
		t.Fatalf("expected a single record, got %d", r.Len())
	}
}

func TestUnregisterIdempotent(t *testing.T) {
	r := NewRegistry()

	// Unregistering a user that never registered is a no-op.
	if r.Unregister("ghost", "conn-1") {
		t.Fatal("unregister of unknown user should report false")
	}

	r.Register("user-a", "conn-1")

	// A stale connection id must not remove the newer record.
	r.Register("user-a", "conn-2")
	if r.Unregister("user-a", "conn-1") {
		t.Fatal("superseded connection must not own the record")
	}
	if _, ok := r.Get("user-a"); !ok {
		t.Fatal("record should survive stale unregister")
	}

	if !r.Unregister("user-a", "conn-2") {
		t.Fatal("owning connection should remove the record")
	}
	if r.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Len())
	}
}

func TestSetStatus(t *testing.T) {
	r := NewRegistry()

	if r.SetStatus("user-a", model.StatusAway) {
		t.Fatal("status change without a connection should report false")
	}

	r.Register("user-a", "conn-1")
	if !r.SetStatus("user-a", model.StatusBusy) {
		t.Fatal("expected status change to apply")
	}

	rec, _ := r.Get("user-a")
	if rec.Status != model.StatusBusy {
		t.Fatalf("unexpected status: %s", rec.Status)
	}
}

func TestSnapshot(t *testing.T) {
	r := NewRegistry()
	r.Register("user-a", "conn-1")
	r.Register("user-b", "conn-2")

	snap := r.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 records, got %d", len(snap))
	}

	seen := map[string]bool{}
	for _, rec := range snap {
		seen[rec.UserID] = true
	}
	if !seen["user-a"] || !seen["user-b"] {
		t.Fatalf("snapshot missing users: %v", seen)
	}
}
