package ecs

// Scope lets the same system functions run server-side for the full world
// or client-side for prediction over a subset of entities.
type Scope uint8

const (
	ScopeAll Scope = iota
	ScopeLocalPlayer
)

// World is the typed column store plus the tick clock, PRNG, and per-tick
// ephemeral signalling channel (Frame) shared by every system.
type World struct {
	pool *entityPool

	Tick uint64
	Time float64
	RNG  *RNG

	Scope          Scope
	LocalPlayerEID EntityID

	Positions    [MaxEntities]Position
	Velocities   [MaxEntities]Velocity
	Players      [MaxEntities]Player
	PlayerStates [MaxEntities]PlayerState
	Healths      [MaxEntities]Health
	Colliders    [MaxEntities]Collider
	Bullets      [MaxEntities]Bullet
	Enemies      [MaxEntities]Enemy
	EnemyAIs     [MaxEntities]EnemyAI
	Rolls        [MaxEntities]Roll
	ZPositions   [MaxEntities]ZPosition
	Cylinders    [MaxEntities]Cylinder
	Showdowns    [MaxEntities]Showdown
	MeleeWeapons [MaxEntities]MeleeWeapon
	Explosives   [MaxEntities]Explosive
	AbilityZones [MaxEntities]AbilityZone

	// Frame holds the ephemeral per-tick flags. It is reset at the top of
	// every call to Step.
	Frame *Frame

	// Hooks is the registered handler bus gameplay systems fire into.
	Hooks *Hooks

	// PlayerInputs is written by the simulation driver before systems run
	// and read by input-apply, weapon-fire, and movement systems.
	PlayerInputs map[EntityID]Input

	// LagCompShotTickByPlayer records, per player, the rewind tick a SHOOT
	// command should be hit-tested against. Cleared by
	// the driver at the start of each tick.
	LagCompShotTickByPlayer map[EntityID]int64

	queryCache map[component][]EntityID
}

// NewWorld creates an empty world seeded for deterministic simulation.
func NewWorld(seed uint32) *World {
	w := &World{
		pool:                    newEntityPool(),
		RNG:                     NewRNG(seed),
		Frame:                   newFrame(),
		Hooks:                   NewHooks(),
		PlayerInputs:            make(map[EntityID]Input, 64),
		LagCompShotTickByPlayer: make(map[EntityID]int64, 64),
		queryCache:              make(map[component][]EntityID, 8),
	}
	return w
}

// AddEntity allocates a fresh entity id. ok is false if the world is full.
func (w *World) AddEntity() (EntityID, bool) {
	id, ok := w.pool.alloc()
	if !ok {
		return 0, false
	}
	w.invalidateQueryCache()
	return id, true
}

// RemoveEntity releases an entity and all of its component membership.
// Component data is left in place (it will be overwritten on reuse) but is
// no longer visible to HasComponent or queries.
func (w *World) RemoveEntity(id EntityID) {
	w.pool.release(id)
	delete(w.PlayerInputs, id)
	delete(w.LagCompShotTickByPlayer, id)
	w.invalidateQueryCache()
}

// IsAlive reports whether id refers to a live entity.
func (w *World) IsAlive(id EntityID) bool {
	return int(id) < MaxEntities && w.pool.alive[id]
}

func (w *World) addComponent(id EntityID, c component) {
	if !w.IsAlive(id) {
		return
	}
	w.pool.mask[id] |= c
	w.invalidateQueryCache()
}

func (w *World) removeComponent(id EntityID, c component) {
	if !w.IsAlive(id) {
		return
	}
	w.pool.mask[id] &^= c
	w.invalidateQueryCache()
}

func (w *World) hasComponent(id EntityID, c component) bool {
	if int(id) >= MaxEntities {
		return false
	}
	return w.pool.mask[id]&c == c
}

func (w *World) invalidateQueryCache() {
	for k := range w.queryCache {
		delete(w.queryCache, k)
	}
}

// query returns (and caches for the remainder of this tick) all live
// entity ids whose mask contains every bit in want. The returned slice is
// read-only — callers must not retain it across a mutating call.
func (w *World) query(want component) []EntityID {
	if cached, ok := w.queryCache[want]; ok {
		return cached
	}
	ids := make([]EntityID, 0, 64)
	for id := EntityID(0); int(id) < int(w.pool.highwater); id++ {
		if !w.pool.alive[id] {
			continue
		}
		if w.pool.mask[id]&want == want {
			ids = append(ids, id)
		}
	}
	w.queryCache[want] = ids
	return ids
}

// PlayerEntities/BulletEntities/EnemyEntities are the three snapshot-relevant query helpers;
// their masks define what counts as each entity kind on the wire.

// PlayerEntities returns ids with Player+Position.
func (w *World) PlayerEntities() []EntityID { return w.query(playerMask) }

// BulletEntities returns ids with Bullet+Position+Velocity+Collider.
func (w *World) BulletEntities() []EntityID { return w.query(bulletMask) }

// EnemyEntities returns ids with Enemy+Position+Health+EnemyAI.
func (w *World) EnemyEntities() []EntityID { return w.query(enemyMask) }

// ExplosiveEntities returns ids carrying an Explosive component.
func (w *World) ExplosiveEntities() []EntityID { return w.query(compExplosive) }

// AbilityZoneEntities returns ids carrying an AbilityZone component.
func (w *World) AbilityZoneEntities() []EntityID { return w.query(compAbilityZone) }

// IsEnemy reports whether id carries the Enemy+Position+Health+EnemyAI mask.
func (w *World) IsEnemy(id EntityID) bool { return w.hasComponent(id, enemyMask) }

// IsPlayer reports whether id carries the Player+Position mask.
func (w *World) IsPlayer(id EntityID) bool { return w.hasComponent(id, playerMask) }

// IsDead reports whether the Dead tag is set on id.
func (w *World) IsDead(id EntityID) bool { return w.hasComponent(id, compDead) }

// IsInvincible reports whether the Invincible tag is set on id.
func (w *World) IsInvincible(id EntityID) bool { return w.hasComponent(id, compInvincible) }

// SetDead sets or clears the Dead tag.
func (w *World) SetDead(id EntityID, dead bool) {
	if dead {
		w.addComponent(id, compDead)
	} else {
		w.removeComponent(id, compDead)
	}
}

// SetInvincible sets or clears the Invincible tag.
func (w *World) SetInvincible(id EntityID, inv bool) {
	if inv {
		w.addComponent(id, compInvincible)
	} else {
		w.removeComponent(id, compInvincible)
	}
}

// --- typed component accessors -------------------------------------------------

// SpawnPlayer creates a player entity with the full controllable-character
// component set (position, velocity, state, health, collider, jump height,
// revolver cylinder, ability state) and returns its id.
func (w *World) SpawnPlayer(playerID uint8, x, y float32, maxHP int16) (EntityID, bool) {
	id, ok := w.AddEntity()
	if !ok {
		return 0, false
	}
	w.Positions[id] = Position{X: x, Y: y, PrevX: x, PrevY: y}
	w.Players[id] = Player{ID: playerID}
	w.PlayerStates[id] = PlayerState{State: PlayerIdle}
	w.Healths[id] = Health{Current: maxHP, Max: maxHP}
	w.Colliders[id] = Collider{Radius: 24, Layer: LayerPlayer}
	w.ZPositions[id] = ZPosition{}
	w.Cylinders[id] = Cylinder{Rounds: 6, Capacity: 6}
	w.Showdowns[id] = Showdown{}
	w.addComponent(id, compPosition|compVelocity|compPlayer|compPlayerState|compHealth|compCollider|compZPosition|compCylinder|compShowdown)
	return id, true
}

// SpawnBullet creates a bullet entity owned by ownerID.
func (w *World) SpawnBullet(ownerID EntityID, x, y, vx, vy float32, damage uint16, rangeLimit float32, layer ColliderLayer) (EntityID, bool) {
	id, ok := w.AddEntity()
	if !ok {
		return 0, false
	}
	w.Positions[id] = Position{X: x, Y: y, PrevX: x, PrevY: y}
	w.Velocities[id] = Velocity{X: vx, Y: vy}
	w.Bullets[id] = Bullet{OwnerID: ownerID, Damage: damage, Range: rangeLimit, Lifetime: 3.0}
	w.Colliders[id] = Collider{Radius: 6, Layer: layer}
	w.addComponent(id, compPosition|compVelocity|compBullet|compCollider)
	return id, true
}

// SpawnEnemy creates an enemy entity.
func (w *World) SpawnEnemy(enemyType, tier uint8, x, y float32, maxHP int16, radius float32) (EntityID, bool) {
	id, ok := w.AddEntity()
	if !ok {
		return 0, false
	}
	w.Positions[id] = Position{X: x, Y: y, PrevX: x, PrevY: y}
	w.Healths[id] = Health{Current: maxHP, Max: maxHP}
	w.Colliders[id] = Collider{Radius: radius, Layer: LayerEnemy}
	w.Enemies[id] = Enemy{Type: enemyType, Tier: tier}
	w.EnemyAIs[id] = EnemyAI{State: EnemyIdle}
	w.MeleeWeapons[id] = MeleeWeapon{Reach: radius + 54, HalfAngle: 0.9}
	w.addComponent(id, compPosition|compVelocity|compHealth|compCollider|compEnemy|compEnemyAI|compMeleeWeapon)
	return id, true
}

// SpawnExplosive creates a fused hazard entity.
func (w *World) SpawnExplosive(ownerID EntityID, x, y float32, fuseTicks int32, radius float32) (EntityID, bool) {
	id, ok := w.AddEntity()
	if !ok {
		return 0, false
	}
	w.Positions[id] = Position{X: x, Y: y, PrevX: x, PrevY: y}
	w.Explosives[id] = Explosive{OwnerID: ownerID, FuseTicks: fuseTicks, Radius: radius}
	w.addComponent(id, compPosition|compExplosive)
	return id, true
}

// SpawnAbilityZone creates an active ability zone entity.
func (w *World) SpawnAbilityZone(ownerID EntityID, kind uint8, x, y, radius float32, ticksRemaining float32) (EntityID, bool) {
	id, ok := w.AddEntity()
	if !ok {
		return 0, false
	}
	w.Positions[id] = Position{X: x, Y: y, PrevX: x, PrevY: y}
	w.AbilityZones[id] = AbilityZone{OwnerID: ownerID, Kind: kind, Radius: radius, RadiusTicksRemaining: ticksRemaining}
	w.addComponent(id, compPosition|compAbilityZone)
	return id, true
}
