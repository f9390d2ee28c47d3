package buildd

import (
	"testing"

	"github.com/onewithdev/peterbot-sandbox/pkg/types"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(&types.Template{
		ID:      "peterbot-sandbox-dev",
		Name:    "peterbot-sandbox-dev",
		Tag:     "latest",
		Status:  "building",
		BuildID: "b-1",
	})

	tmpl, err := r.Get("peterbot-sandbox-dev")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if tmpl.Status != "building" {
		t.Errorf("expected building status, got %s", tmpl.Status)
	}

	// Re-registering updates in place.
	r.Register(&types.Template{
		ID:     "peterbot-sandbox-dev",
		Name:   "peterbot-sandbox-dev",
		Status: "ready",
	})
	tmpl, err = r.Get("peterbot-sandbox-dev")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if tmpl.Status != "ready" {
		t.Errorf("expected ready status after update, got %s", tmpl.Status)
	}

	if got := len(r.List()); got != 1 {
		t.Errorf("expected 1 template, got %d", got)
	}
}

func TestRegistry_Delete(t *testing.T) {
	r := NewRegistry()
	r.Register(&types.Template{ID: "t", Name: "t", Status: "ready"})

	if err := r.Delete("t"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := r.Get("t"); err == nil {
		t.Error("expected error after delete")
	}
}

func TestRegistry_DeleteNotFound(t *testing.T) {
	r := NewRegistry()
	if err := r.Delete("nonexistent"); err == nil {
		t.Error("expected error for nonexistent template")
	}
}

func TestRegistry_GetNotFound(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get("nonexistent"); err == nil {
		t.Error("expected error for nonexistent template")
	}
}

func TestRegistry_GetReturnsCopy(t *testing.T) {
	r := NewRegistry()
	r.Register(&types.Template{ID: "t", Name: "t", Status: "ready"})

	tmpl, _ := r.Get("t")
	tmpl.Status = "mutated"

	again, _ := r.Get("t")
	if again.Status != "ready" {
		t.Errorf("expected registry state unaffected by caller mutation, got %s", again.Status)
	}
}
