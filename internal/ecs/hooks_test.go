package ecs

import "testing"

func TestBulletHitChainsInPriorityOrder(t *testing.T) {
	h := NewHooks()
	var order []string

	h.RegisterBulletHit("second", 10, func(w *World, bullet, target EntityID, r BulletHitResult) BulletHitResult {
		order = append(order, "second")
		r.Damage += 5
		return r
	})
	h.RegisterBulletHit("first", 0, func(w *World, bullet, target EntityID, r BulletHitResult) BulletHitResult {
		order = append(order, "first")
		r.Damage *= 2
		return r
	})

	result := h.FireBulletHit(nil, 1, 2, 10)
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("expected [first second] order, got %v", order)
	}
	if result.Damage != 25 {
		t.Fatalf("expected damage 25 (10*2 + 5), got %d", result.Damage)
	}
}

func TestBulletHitDefaultWithNoHandlers(t *testing.T) {
	h := NewHooks()
	result := h.FireBulletHit(nil, 1, 2, 7)
	if result.Damage != 7 || result.Pierce {
		t.Fatalf("expected default pass-through result, got %+v", result)
	}
}

func TestBulletHitPierceIsOrReduced(t *testing.T) {
	h := NewHooks()
	h.RegisterBulletHit("a", 0, func(w *World, bullet, target EntityID, r BulletHitResult) BulletHitResult {
		return r
	})
	h.RegisterBulletHit("b", 1, func(w *World, bullet, target EntityID, r BulletHitResult) BulletHitResult {
		r.Pierce = true
		return r
	})
	result := h.FireBulletHit(nil, 1, 2, 7)
	if !result.Pierce {
		t.Fatalf("expected pierce true once any handler sets it")
	}
}

func TestNotifyHookFiresAllInPriorityOrder(t *testing.T) {
	h := NewHooks()
	var order []string
	h.RegisterNotify(HookKill, "late", 5, func(w *World, a, b EntityID) { order = append(order, "late") })
	h.RegisterNotify(HookKill, "early", 0, func(w *World, a, b EntityID) { order = append(order, "early") })

	h.Fire(HookKill, nil, 1, 0)
	if len(order) != 2 || order[0] != "early" || order[1] != "late" {
		t.Fatalf("expected [early late], got %v", order)
	}
}

func TestUnregisterRemovesFromEveryHook(t *testing.T) {
	h := NewHooks()
	called := false
	h.RegisterBulletHit("x", 0, func(w *World, bullet, target EntityID, r BulletHitResult) BulletHitResult {
		called = true
		return r
	})
	h.RegisterNotify(HookKill, "x", 0, func(w *World, a, b EntityID) { called = true })

	h.Unregister("x")
	h.FireBulletHit(nil, 1, 2, 3)
	h.Fire(HookKill, nil, 1, 0)

	if called {
		t.Fatalf("expected no handlers to run after Unregister")
	}
}

func TestClearRemovesEverything(t *testing.T) {
	h := NewHooks()
	h.RegisterBulletHit("a", 0, func(w *World, bullet, target EntityID, r BulletHitResult) BulletHitResult { return r })
	h.RegisterNotify(HookKill, "b", 0, func(w *World, a, b EntityID) {})

	h.Clear()
	if len(h.bulletHit) != 0 {
		t.Errorf("expected bulletHit handlers cleared")
	}
	if len(h.notify[HookKill]) != 0 {
		t.Errorf("expected notify handlers cleared")
	}
}
