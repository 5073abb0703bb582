package quota

import (
	"testing"

	"creatorpulse/internal/model"
)

func creator(handle string, requested int, active bool) model.Creator {
	return model.Creator{ID: handle, Handle: handle, Active: active, Requested: requested}
}

func TestAllocateUnderBudget(t *testing.T) {
	got := Allocate([]model.Creator{creator("a", 10, true), creator("b", 20, true)}, 50)
	if len(got) != 2 {
		t.Fatalf("expected 2 allocations, got %d", len(got))
	}
	for _, a := range got {
		if a.Granted != a.Requested {
			t.Fatalf("%s: granted %d, want %d", a.Creator.Handle, a.Granted, a.Requested)
		}
		if a.Scaled {
			t.Fatalf("%s: unexpected scaled flag", a.Creator.Handle)
		}
	}
}

func TestAllocateProportionalScaling(t *testing.T) {
	got := Allocate([]model.Creator{creator("a", 40, true), creator("b", 30, true)}, 50)
	// floor(40*50/70)=28, floor(30*50/70)=21
	want := map[string]int{"a": 28, "b": 21}
	for _, a := range got {
		if a.Granted != want[a.Creator.Handle] {
			t.Fatalf("%s: granted %d, want %d", a.Creator.Handle, a.Granted, want[a.Creator.Handle])
		}
		if !a.Scaled {
			t.Fatalf("%s: expected scaled flag", a.Creator.Handle)
		}
	}
}

func TestAllocateMinimumGuarantee(t *testing.T) {
	got := Allocate([]model.Creator{creator("a", 10, true), creator("b", 10, true), creator("c", 10, true)}, 5)
	total := 0
	for _, a := range got {
		if a.Granted < 1 {
			t.Fatalf("%s: granted %d, want >= 1", a.Creator.Handle, a.Granted)
		}
		if !a.Scaled {
			t.Fatalf("%s: expected scaled flag", a.Creator.Handle)
		}
		total += a.Granted
	}
	if total < 3 {
		t.Fatalf("total granted %d, want >= one per creator", total)
	}
}

// The minimum top-up deliberately allows the granted total to exceed the
// budget; this must hold, not be "fixed".
func TestAllocateTotalMayExceedBudget(t *testing.T) {
	creators := []model.Creator{
		creator("a", 100, true),
		creator("b", 1, true),
		creator("c", 1, true),
		creator("d", 1, true),
	}
	got := Allocate(creators, 3)
	total := 0
	for _, a := range got {
		total += a.Granted
	}
	if total <= 3 {
		t.Fatalf("total granted %d, expected minimum guarantee to push past budget 3", total)
	}
}

func TestAllocateExcludesInactive(t *testing.T) {
	got := Allocate([]model.Creator{creator("a", 10, true), creator("b", 10, false), creator("c", 10, true)}, 100)
	if len(got) != 2 {
		t.Fatalf("expected 2 allocations, got %d", len(got))
	}
	for _, a := range got {
		if a.Creator.Handle == "b" {
			t.Fatal("inactive creator allocated")
		}
	}
}

func TestAllocateEmptyInput(t *testing.T) {
	got := Allocate(nil, 100)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil result, got %#v", got)
	}
	got = Allocate([]model.Creator{creator("a", 10, false)}, 100)
	if len(got) != 0 {
		t.Fatalf("expected empty result for all-inactive input, got %d", len(got))
	}
}

func TestAllocateSingleCreatorOverBudget(t *testing.T) {
	got := Allocate([]model.Creator{creator("a", 80, true)}, 30)
	if len(got) != 1 {
		t.Fatalf("expected 1 allocation, got %d", len(got))
	}
	// sum == requested, so the share is exactly the budget
	if got[0].Granted != 30 || !got[0].Scaled {
		t.Fatalf("granted %d scaled=%v, want 30 scaled=true", got[0].Granted, got[0].Scaled)
	}
}
