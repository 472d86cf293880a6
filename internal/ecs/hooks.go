package ecs

import "sort"

// HookKind identifies a registrable event. Transform hooks may modify their
// result and chain; notify hooks cannot and run purely for side effects.
type HookKind uint8

const (
	HookBulletHit HookKind = iota // transform
	HookKill                      // notify
	HookRollDodge                 // notify
	HookCylinderEmpty             // notify
	HookHealthChanged              // notify
	HookShowdownActivate           // notify
	HookRollEnd                    // notify
)

// BulletHitResult is what each onBulletHit handler returns and the next
// handler in priority order receives as its starting damage.
type BulletHitResult struct {
	Damage uint16
	Pierce bool
}

// BulletHitHandler transforms a bullet-hit outcome.
type BulletHitHandler func(w *World, bulletEID, targetEID EntityID, result BulletHitResult) BulletHitResult

// NotifyHandler observes an event; its return value is ignored.
type NotifyHandler func(w *World, a, b EntityID)

type bulletHitEntry struct {
	id       string
	priority int
	handler  BulletHitHandler
}

type notifyEntry struct {
	id       string
	priority int
	handler  NotifyHandler
}

// Hooks is the registered multi-handler event bus keyed by event kind: an
// ordered list of function values per kind, not a single fixed callback.
type Hooks struct {
	bulletHit []bulletHitEntry
	notify    map[HookKind][]notifyEntry
}

// NewHooks creates an empty hook registry.
func NewHooks() *Hooks {
	return &Hooks{notify: make(map[HookKind][]notifyEntry, 6)}
}

// RegisterBulletHit appends a transform handler and re-sorts by priority
// (ascending — lower priority runs first and feeds the next handler).
func (h *Hooks) RegisterBulletHit(id string, priority int, fn BulletHitHandler) {
	h.bulletHit = append(h.bulletHit, bulletHitEntry{id: id, priority: priority, handler: fn})
	sort.SliceStable(h.bulletHit, func(i, j int) bool { return h.bulletHit[i].priority < h.bulletHit[j].priority })
}

// RegisterNotify appends a notify handler for kind and re-sorts by priority.
func (h *Hooks) RegisterNotify(kind HookKind, id string, priority int, fn NotifyHandler) {
	h.notify[kind] = append(h.notify[kind], notifyEntry{id: id, priority: priority, handler: fn})
	list := h.notify[kind]
	sort.SliceStable(list, func(i, j int) bool { return list[i].priority < list[j].priority })
}

// Unregister removes every handler matching id from every hook kind.
func (h *Hooks) Unregister(id string) {
	filtered := h.bulletHit[:0]
	for _, e := range h.bulletHit {
		if e.id != id {
			filtered = append(filtered, e)
		}
	}
	h.bulletHit = filtered

	for kind, list := range h.notify {
		out := list[:0]
		for _, e := range list {
			if e.id != id {
				out = append(out, e)
			}
		}
		h.notify[kind] = out
	}
}

// Clear removes all registered handlers from every hook.
func (h *Hooks) Clear() {
	h.bulletHit = nil
	for kind := range h.notify {
		delete(h.notify, kind)
	}
}

// FireBulletHit runs the onBulletHit chain in ascending priority order,
// each handler receiving the previous handler's damage; pierce is
// OR-reduced. With no handlers registered, the default is the input damage
// and pierce=false.
func (h *Hooks) FireBulletHit(w *World, bulletEID, targetEID EntityID, damage uint16) BulletHitResult {
	result := BulletHitResult{Damage: damage, Pierce: false}
	for _, e := range h.bulletHit {
		out := e.handler(w, bulletEID, targetEID, result)
		result.Damage = out.Damage
		result.Pierce = result.Pierce || out.Pierce
	}
	return result
}

// Fire runs every notify handler for kind in ascending priority order.
// Return values are ignored; a panicking handler is the caller's concern
// (the simulation driver aborts the tick and reports it).
func (h *Hooks) Fire(kind HookKind, w *World, a, b EntityID) {
	for _, e := range h.notify[kind] {
		e.handler(w, a, b)
	}
}
