package ecs

// System is one deterministic step function. Given identical world state,
// dt, and world.RNG sequence position, a system must produce identical
// mutations — this is what makes server authority and client prediction
// reproducible.
type System func(w *World, dt float32)

// Registry is the ordered list of systems invoked every tick, in insertion
// order. Tick order is a correctness contract for the snapshot and rewind
// machinery — callers are expected to register systems in
// the documented order (input-apply, AI/targeting, movement intent,
// collision & movement commit, weapon fire, bullet motion, bullet
// collision, health & death, ability/zone, hazard, decay, cleanup).
type Registry struct {
	systems []namedSystem
}

type namedSystem struct {
	name string
	fn   System
}

// NewRegistry creates an empty, ordered system registry.
func NewRegistry() *Registry {
	return &Registry{systems: make([]namedSystem, 0, 16)}
}

// Register appends a system to the end of the registry.
func (r *Registry) Register(name string, fn System) {
	r.systems = append(r.systems, namedSystem{name: name, fn: fn})
}

// Names returns the registered system names in execution order, mainly for
// tests asserting tick order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.systems))
	for i, s := range r.systems {
		names[i] = s.name
	}
	return names
}

// Step runs every registered system once in order, then advances the
// world's tick counter and clock by dt. Frame is reset before the first
// system runs and the query cache is cleared so mutations from the
// previous tick are visible to this tick's queries.
func (r *Registry) Step(w *World, dt float32) {
	w.Frame.Reset()
	w.invalidateQueryCache()
	for _, s := range r.systems {
		s.fn(w, dt)
	}
	w.Tick++
	w.Time += float64(dt)
}
