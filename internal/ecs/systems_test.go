package ecs

import "testing"

func TestRegistryRunsSystemsInRegistrationOrder(t *testing.T) {
	reg := NewRegistry()
	var order []string
	reg.Register("a", func(w *World, dt float32) { order = append(order, "a") })
	reg.Register("b", func(w *World, dt float32) { order = append(order, "b") })
	reg.Register("c", func(w *World, dt float32) { order = append(order, "c") })

	w := NewWorld(1)
	reg.Step(w, 1.0/60.0)

	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Fatalf("expected [a b c], got %v", order)
	}
	if got := reg.Names(); len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Fatalf("Names() mismatch: %v", got)
	}
}

func TestStepAdvancesTickAndTime(t *testing.T) {
	reg := NewRegistry()
	w := NewWorld(1)

	reg.Step(w, 0.5)
	if w.Tick != 1 {
		t.Fatalf("expected tick 1, got %d", w.Tick)
	}
	if w.Time != 0.5 {
		t.Fatalf("expected time 0.5, got %v", w.Time)
	}

	reg.Step(w, 0.5)
	if w.Tick != 2 {
		t.Fatalf("expected tick 2, got %d", w.Tick)
	}
}

func TestStepResetsFrameBeforeSystemsRun(t *testing.T) {
	reg := NewRegistry()
	var sawClearedFlag bool
	reg.Register("observer", func(w *World, dt float32) {
		sawClearedFlag = !w.Frame.ShowdownKillThisTick
	})

	w := NewWorld(1)
	w.Frame.ShowdownKillThisTick = true
	reg.Step(w, 1.0/60.0)

	if !sawClearedFlag {
		t.Fatalf("expected Frame reset before systems run")
	}
}

func TestStepInvalidatesQueryCacheBetweenTicks(t *testing.T) {
	reg := NewRegistry()
	w := NewWorld(1)
	w.SpawnPlayer(1, 0, 0, 100)
	_ = w.PlayerEntities() // populate the cache for this tick

	reg.Register("spawner", func(w *World, dt float32) {
		w.SpawnPlayer(2, 1, 1, 100)
	})
	reg.Step(w, 1.0/60.0)

	if len(w.PlayerEntities()) != 2 {
		t.Fatalf("expected stale cache to be cleared at the start of Step")
	}
}
