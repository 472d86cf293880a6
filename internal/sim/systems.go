package sim

import (
	"math"

	"showdown-arena/internal/ecs"
	"showdown-arena/internal/ecs/spatial"
)

// Enemy archetypes the wave spawner produces. Bombers drop a fused charge
// on death.
const (
	EnemyTypeGrunt uint8 = iota
	EnemyTypeBomber
)

// ZoneKindLastRites is the pulse-damage zone spawned by ability activation.
const ZoneKindLastRites uint8 = 1

// playerInScope reports whether a player entity should be simulated under
// the world's scope flag: every entity server-side, only the local player
// during client-side prediction.
func playerInScope(w *ecs.World, eid ecs.EntityID) bool {
	return w.Scope != ecs.ScopeLocalPlayer || eid == w.LocalPlayerEID
}

// serverScope reports whether authority-only systems (AI, death, hazards,
// waves) should run; prediction skips them entirely.
func serverScope(w *ecs.World) bool {
	return w.Scope != ecs.ScopeLocalPlayer
}

// state is the tick-to-tick gameplay bookkeeping that does not belong on
// the core World (the World only carries the columns the snapshot/rewind
// machinery reads). It is owned by the closures Build registers, not by
// World itself.
type state struct {
	cfg Config

	grid     *spatial.Grid
	sweep    *spatial.Sweep
	rewind   RewindSource
	progress *Progress

	intervals []spatial.Interval

	fireCooldown [ecs.MaxEntities]int32

	// lastHitBy credits kills for XP; cleared when the enemy is removed.
	lastHitBy  [ecs.MaxEntities]ecs.EntityID
	hasLastHit [ecs.MaxEntities]bool

	// diedThisTick marks enemies healthDeath tagged Dead during the current
	// tick; cleanup skips them once and removes them on the following tick.
	diedThisTick [ecs.MaxEntities]bool

	waveCountdown  int32
	pulseCountdown int32
}

// Build registers the full gameplay system set on reg in the tick order
// mandated by the core (input-apply, AI/targeting, movement intent,
// collision & movement commit, weapon fire, bullet motion, bullet
// collision, health & death, ability/zone, hazard, decay, cleanup), plus
// the wave spawner that repopulates a cleared arena.
//
// grid is cleared and repopulated once per tick by the movement-commit
// system; callers must not share one Grid between rooms. progress is
// advanced by the spawner and kill credit; pass nil to let Build own one.
func Build(reg *ecs.Registry, grid *spatial.Grid, rewind RewindSource, cfg Config, progress *Progress) {
	if rewind == nil {
		rewind = NoRewind
	}
	if progress == nil {
		progress = NewProgress()
	}
	s := &state{
		cfg:            cfg,
		grid:           grid,
		sweep:          spatial.NewSweep(cfg.MaxEnemies),
		rewind:         rewind,
		progress:       progress,
		intervals:      make([]spatial.Interval, 0, cfg.MaxEnemies),
		waveCountdown:  cfg.WaveDelayTicks,
		pulseCountdown: cfg.ZonePulseIntervalTicks,
	}

	reg.Register("input-apply", s.inputApply)
	reg.Register("ai-targeting", s.aiTargeting)
	reg.Register("movement-intent", s.movementIntent)
	reg.Register("movement-commit", s.movementCommit)
	reg.Register("separation", s.separation)
	reg.Register("weapon-fire", s.weaponFire)
	reg.Register("bullet-motion", s.bulletMotion)
	reg.Register("bullet-collision", s.bulletCollision)
	reg.Register("health-death", s.healthDeath)
	reg.Register("ability-zone", s.abilityZone)
	reg.Register("hazard-tiles", s.hazardTiles)
	reg.Register("decay", s.decay)
	reg.Register("cleanup", s.cleanup)
	reg.Register("wave-spawn", s.waveSpawn)
}

// inputApply copies each player's latest command into its Player column
// (aim angle and the roll/jump button latches). It never moves anything — movementIntent does that — so a
// client replaying the same inputs against the same world produces the same
// intermediate state for inspection between systems.
func (s *state) inputApply(w *ecs.World, dt float32) {
	for _, eid := range w.PlayerEntities() {
		if !playerInScope(w, eid) {
			continue
		}
		in, ok := w.PlayerInputs[eid]
		if !ok {
			continue
		}
		p := w.Players[eid]
		p.AimAngle = clampAngle(in.AimAngle)
		p.RollButtonWasDown = in.Pressed(ecs.ButtonRoll)
		p.JumpButtonWasDown = in.Pressed(ecs.ButtonJump)
		w.Players[eid] = p
	}
}

// aiTargeting picks or refreshes each live enemy's target, advances its
// coarse behavior state machine (idle → chasing → attacking) by distance to
// target, and resolves melee swings: an arc hit test toward the target that
// clips every player caught in the swing, with consecutive landed swings
// inside the combo window scaling damage.
func (s *state) aiTargeting(w *ecs.World, dt float32) {
	if !serverScope(w) {
		return
	}
	players := w.PlayerEntities()
	for _, eid := range w.EnemyEntities() {
		if w.IsDead(eid) {
			continue
		}
		ai := w.EnemyAIs[eid]
		pos := w.Positions[eid]

		if ai.InitialDelay > 0 {
			ai.InitialDelay -= dt
			w.EnemyAIs[eid] = ai
			continue
		}

		target, found := s.nearestAlivePlayer(w, players, pos.X, pos.Y)
		if !found {
			ai.State = ecs.EnemyIdle
			ai.TargetEID = 0
			w.EnemyAIs[eid] = ai
			continue
		}
		ai.TargetEID = target

		tp := w.Positions[target]
		dist := distance(pos.X, pos.Y, tp.X, tp.Y)
		switch {
		case dist <= s.cfg.EnemyAttackRange:
			ai.State = ecs.EnemyAttacking
		case dist <= s.cfg.EnemyDetectRange:
			ai.State = ecs.EnemyChasing
		default:
			ai.State = ecs.EnemyIdle
		}
		w.EnemyAIs[eid] = ai

		s.tickMelee(w, eid, players, pos, tp, ai.State == ecs.EnemyAttacking)
	}
}

func (s *state) tickMelee(w *ecs.World, eid ecs.EntityID, players []ecs.EntityID, pos, targetPos ecs.Position, attacking bool) {
	mw := w.MeleeWeapons[eid]

	if mw.ComboWindowTicks > 0 {
		mw.ComboWindowTicks--
	} else {
		mw.ComboCount = 0
	}
	if mw.CooldownTicks > 0 {
		mw.CooldownTicks--
	}

	if attacking && mw.CooldownTicks == 0 {
		fx, fy := targetPos.X-pos.X, targetPos.Y-pos.Y
		landed := false
		for _, p := range players {
			if w.IsDead(p) {
				continue
			}
			pp := w.Positions[p]
			if !arcHit(pos.X, pos.Y, fx, fy, mw.Reach, mw.HalfAngle, pp.X, pp.Y) {
				continue
			}
			if w.IsInvincible(p) {
				if w.PlayerStates[p].State == ecs.PlayerRolling {
					w.Hooks.Fire(ecs.HookRollDodge, w, p, eid)
				}
				continue
			}
			s.applyDamage(w, p, s.comboDamage(mw.ComboCount))
			landed = true
		}
		mw.CooldownTicks = s.cfg.EnemyAttackCooldownTicks
		if landed {
			if mw.ComboCount < s.cfg.ComboMaxCount {
				mw.ComboCount++
			}
			mw.ComboWindowTicks = s.cfg.ComboWindowTicks
		}
	}

	w.MeleeWeapons[eid] = mw
}

// comboDamage scales the base swing damage by the chain position at the
// moment of the hit (combo 0 = opening swing, unscaled).
func (s *state) comboDamage(combo uint8) uint16 {
	scale := 1 + s.cfg.ComboDamageStep*float32(combo)
	return uint16(float32(s.cfg.EnemyAttackDamage) * scale)
}

func (s *state) nearestAlivePlayer(w *ecs.World, players []ecs.EntityID, x, y float32) (ecs.EntityID, bool) {
	var best ecs.EntityID
	bestDist := float32(math.MaxFloat32)
	found := false
	for _, p := range players {
		if w.IsDead(p) {
			continue
		}
		pp := w.Positions[p]
		d := distance(x, y, pp.X, pp.Y)
		if d < bestDist {
			bestDist = d
			best = p
			found = true
		}
	}
	return best, found
}

// movementIntent converts move input and AI state into a velocity for this
// tick. A rolling player's velocity is dictated by the Roll column instead
// of raw input so the roll travels a fixed, replay-stable distance.
func (s *state) movementIntent(w *ecs.World, dt float32) {
	for _, eid := range w.PlayerEntities() {
		if !playerInScope(w, eid) || w.IsDead(eid) {
			continue
		}
		in := w.PlayerInputs[eid]
		ps := w.PlayerStates[eid]

		if in.Pressed(ecs.ButtonJump) && in.Fresh {
			zp := w.ZPositions[eid]
			if zp.Z == 0 {
				zp.ZVelocity = s.cfg.JumpVelocity
				w.ZPositions[eid] = zp
			}
		}

		if ps.State == ecs.PlayerRolling {
			roll := w.Rolls[eid]
			w.Velocities[eid] = ecs.Velocity{X: roll.DirectionX * s.cfg.RollSpeed, Y: roll.DirectionY * s.cfg.RollSpeed}
			continue
		}

		if in.Pressed(ecs.ButtonRoll) && in.Fresh && (in.MoveX != 0 || in.MoveY != 0) {
			s.startRoll(w, eid, in.MoveX, in.MoveY)
			continue
		}

		mx, my := clampUnit(in.MoveX, in.MoveY)
		w.Velocities[eid] = ecs.Velocity{X: mx * s.cfg.MoveSpeed, Y: my * s.cfg.MoveSpeed}
		if mx != 0 || my != 0 {
			ps.State = ecs.PlayerMoving
		} else {
			ps.State = ecs.PlayerIdle
		}
		w.PlayerStates[eid] = ps
	}

	for _, eid := range w.EnemyEntities() {
		if w.IsDead(eid) {
			w.Velocities[eid] = ecs.Velocity{}
			continue
		}
		ai := w.EnemyAIs[eid]
		if ai.State != ecs.EnemyChasing {
			w.Velocities[eid] = ecs.Velocity{}
			continue
		}
		pos := w.Positions[eid]
		tp := w.Positions[ai.TargetEID]
		dx, dy := tp.X-pos.X, tp.Y-pos.Y
		nx, ny := normalize(dx, dy)
		w.Velocities[eid] = ecs.Velocity{X: nx * s.cfg.EnemyChaseSpeed, Y: ny * s.cfg.EnemyChaseSpeed}
	}
}

func (s *state) startRoll(w *ecs.World, eid ecs.EntityID, moveX, moveY float32) {
	dx, dy := normalize(moveX, moveY)
	pos := w.Positions[eid]
	w.Rolls[eid] = ecs.Roll{
		Duration:   float32(s.cfg.RollDurationTicks),
		DirectionX: dx,
		DirectionY: dy,
		StartX:     pos.X,
		StartY:     pos.Y,
	}
	ps := w.PlayerStates[eid]
	ps.State = ecs.PlayerRolling
	w.PlayerStates[eid] = ps
	w.SetInvincible(eid, true)
}

// movementCommit integrates velocity into position, writes prev* for client
// interpolation, clamps to world bounds, advances jump arcs, and rebuilds
// the spatial grid used by bullet collision this tick.
func (s *state) movementCommit(w *ecs.World, dt float32) {
	s.grid.Reset()

	for _, eid := range w.PlayerEntities() {
		if !playerInScope(w, eid) {
			continue
		}
		s.integrate(w, eid, dt)
		s.integrateZ(w, eid, dt)
		s.tickRoll(w, eid, dt)
		pos := w.Positions[eid]
		s.grid.Insert(eid, ecs.LayerPlayer, pos.X, pos.Y)
	}
	for _, eid := range w.EnemyEntities() {
		if w.IsDead(eid) {
			continue
		}
		s.integrate(w, eid, dt)
		pos := w.Positions[eid]
		s.grid.Insert(eid, ecs.LayerEnemy, pos.X, pos.Y)
	}
}

// separation keeps live enemies from stacking on one spot: a one-axis
// sweep proposes candidate pairs, a circle test confirms the overlap, and
// both enemies are pushed apart along the pair axis. Players are left
// alone so knockback and roll travel stay input-driven.
func (s *state) separation(w *ecs.World, dt float32) {
	if !serverScope(w) {
		return
	}
	s.intervals = s.intervals[:0]
	for _, eid := range w.EnemyEntities() {
		if w.IsDead(eid) {
			continue
		}
		s.intervals = append(s.intervals, spatial.Interval{
			ID:     eid,
			X:      w.Positions[eid].X,
			Radius: w.Colliders[eid].Radius,
		})
	}
	if len(s.intervals) < 2 {
		return
	}

	for _, pair := range s.sweep.Overlaps(s.intervals) {
		a, b := pair.A, pair.B
		if !w.IsAlive(a) || !w.IsAlive(b) || w.IsDead(a) || w.IsDead(b) {
			continue
		}
		pa, pb := w.Positions[a], w.Positions[b]
		minDist := w.Colliders[a].Radius + w.Colliders[b].Radius
		dx, dy := pb.X-pa.X, pb.Y-pa.Y
		dist := distance(pa.X, pa.Y, pb.X, pb.Y)
		if dist >= minDist {
			continue
		}
		var nx, ny float32 = 1, 0
		if dist > 0 {
			nx, ny = dx/dist, dy/dist
		}
		push := (minDist - dist) / 2
		pa.X -= nx * push
		pa.Y -= ny * push
		pb.X += nx * push
		pb.Y += ny * push
		w.Positions[a] = pa
		w.Positions[b] = pb
	}
}

func (s *state) integrate(w *ecs.World, eid ecs.EntityID, dt float32) {
	pos := w.Positions[eid]
	vel := w.Velocities[eid]
	pos.PrevX, pos.PrevY = pos.X, pos.Y
	pos.X += vel.X * dt
	pos.Y += vel.Y * dt
	if pos.X < 0 {
		pos.X = 0
	} else if pos.X > s.cfg.WorldWidth {
		pos.X = s.cfg.WorldWidth
	}
	if pos.Y < 0 {
		pos.Y = 0
	} else if pos.Y > s.cfg.WorldHeight {
		pos.Y = s.cfg.WorldHeight
	}
	w.Positions[eid] = pos
}

func (s *state) integrateZ(w *ecs.World, eid ecs.EntityID, dt float32) {
	zp := w.ZPositions[eid]
	if zp.Z == 0 && zp.ZVelocity == 0 {
		return
	}
	zp.Z += zp.ZVelocity * dt
	zp.ZVelocity -= s.cfg.Gravity * dt
	if zp.Z <= 0 {
		zp.Z = 0
		zp.ZVelocity = 0
	}
	w.ZPositions[eid] = zp
}

func (s *state) tickRoll(w *ecs.World, eid ecs.EntityID, dt float32) {
	ps := w.PlayerStates[eid]
	if ps.State != ecs.PlayerRolling {
		return
	}
	roll := w.Rolls[eid]
	roll.Elapsed++
	w.Rolls[eid] = roll
	if roll.Elapsed >= roll.Duration {
		ps.State = ecs.PlayerIdle
		w.PlayerStates[eid] = ps
		w.Hooks.Fire(ecs.HookRollEnd, w, eid, 0)
		if roll.Elapsed >= float32(s.cfg.RollInvulnTicks) {
			w.SetInvincible(eid, false)
		}
	} else if roll.Elapsed >= float32(s.cfg.RollInvulnTicks) {
		w.SetInvincible(eid, false)
	}
}

// weaponFire spawns a bullet for any player whose fresh SHOOT press clears
// their cooldown and whose cylinder has a round chambered. An empty cylinder
// fires onCylinderEmpty and starts a reload instead; RELOAD starts one
// early. Shot validity (lag-comp tick selection) is the driver's job; this
// system only decides whether *this tick* a bullet is spawned.
func (s *state) weaponFire(w *ecs.World, dt float32) {
	for _, eid := range w.PlayerEntities() {
		if !playerInScope(w, eid) {
			continue
		}
		if s.fireCooldown[eid] > 0 {
			s.fireCooldown[eid]--
		}

		cyl := w.Cylinders[eid]
		if cyl.ReloadTicksRemaining > 0 {
			cyl.ReloadTicksRemaining--
			if cyl.ReloadTicksRemaining == 0 {
				cyl.Rounds = cyl.Capacity
			}
			w.Cylinders[eid] = cyl
		}
		if w.IsDead(eid) {
			continue
		}
		in := w.PlayerInputs[eid]
		if !in.Fresh {
			continue
		}

		if in.Pressed(ecs.ButtonReload) && cyl.ReloadTicksRemaining == 0 && cyl.Rounds < cyl.Capacity {
			cyl.ReloadTicksRemaining = s.cfg.ReloadTicks
			w.Cylinders[eid] = cyl
			continue
		}

		if !in.Pressed(ecs.ButtonShoot) || s.fireCooldown[eid] > 0 || cyl.ReloadTicksRemaining > 0 {
			continue
		}
		if cyl.Rounds == 0 {
			w.Hooks.Fire(ecs.HookCylinderEmpty, w, eid, 0)
			cyl.ReloadTicksRemaining = s.cfg.ReloadTicks
			w.Cylinders[eid] = cyl
			continue
		}
		if len(w.BulletEntities()) >= s.cfg.MaxBullets {
			continue
		}

		pos := w.Positions[eid]
		player := w.Players[eid]
		vx := float32(math.Cos(float64(player.AimAngle))) * s.cfg.RevolverBulletSpeed
		vy := float32(math.Sin(float64(player.AimAngle))) * s.cfg.RevolverBulletSpeed
		if _, ok := w.SpawnBullet(eid, pos.X, pos.Y, vx, vy, s.cfg.RevolverDamage, s.cfg.RevolverRange, ecs.LayerBulletHostile); ok {
			s.fireCooldown[eid] = s.cfg.RevolverCooldownTicks
			cyl.Rounds--
			w.Cylinders[eid] = cyl
		}
	}
}

// bulletMotion advances every bullet and culls it on range/lifetime expiry.
func (s *state) bulletMotion(w *ecs.World, dt float32) {
	for _, eid := range w.BulletEntities() {
		if !playerInScope(w, w.Bullets[eid].OwnerID) {
			continue
		}
		pos := w.Positions[eid]
		vel := w.Velocities[eid]
		pos.PrevX, pos.PrevY = pos.X, pos.Y
		pos.X += vel.X * dt
		pos.Y += vel.Y * dt
		w.Positions[eid] = pos

		b := w.Bullets[eid]
		step := distance(pos.PrevX, pos.PrevY, pos.X, pos.Y)
		b.DistanceTraveled += step
		b.Lifetime -= dt
		w.Bullets[eid] = b

		if b.DistanceTraveled >= b.Range || b.Lifetime <= 0 {
			w.RemoveEntity(eid)
		}
	}
}

// bulletCollision hit-tests every live bullet against live enemies (hostile
// bullets) or players (friendly bullets), using the lag-compensated
// historical position when the driver recorded a shot tick for the bullet's
// owner. A history miss falls back to the present position.
func (s *state) bulletCollision(w *ecs.World, dt float32) {
	for _, bulletEID := range w.BulletEntities() {
		if !w.IsAlive(bulletEID) {
			continue
		}
		b := w.Bullets[bulletEID]
		if !playerInScope(w, b.OwnerID) {
			continue
		}
		bp := w.Positions[bulletEID]
		col := w.Colliders[bulletEID]

		shotTick, haveShotTick := w.LagCompShotTickByPlayer[b.OwnerID]

		if col.Layer == ecs.LayerBulletHostile {
			s.resolveBulletVsEnemies(w, bulletEID, b, bp, col, shotTick, haveShotTick)
		} else {
			s.resolveBulletVsPlayers(w, bulletEID, b, bp, col, shotTick, haveShotTick)
		}
	}
}

func (s *state) resolveBulletVsEnemies(w *ecs.World, bulletEID ecs.EntityID, b ecs.Bullet, bp ecs.Position, col ecs.Collider, shotTick int64, haveShotTick bool) {
	candidates := s.grid.Query(bp.X, bp.Y, 64, ecs.LayerEnemy)
	for _, targetEID := range candidates {
		if !w.IsAlive(targetEID) || w.IsDead(targetEID) || !w.IsEnemy(targetEID) {
			continue
		}

		tx, ty, radius, alive := s.resolveEnemyHitState(w, targetEID, shotTick, haveShotTick)
		if !alive {
			continue
		}
		if distance(bp.X, bp.Y, tx, ty) > col.Radius+radius+s.cfg.BulletHitPadding {
			continue
		}

		result := w.Hooks.FireBulletHit(w, bulletEID, targetEID, b.Damage)
		s.noteHit(targetEID, b.OwnerID)
		s.applyDamage(w, targetEID, result.Damage)
		if !result.Pierce {
			w.RemoveEntity(bulletEID)
			return
		}
	}
}

func (s *state) resolveEnemyHitState(w *ecs.World, eid ecs.EntityID, shotTick int64, haveShotTick bool) (x, y, radius float32, alive bool) {
	if haveShotTick {
		if hx, hy, hr, halive, ok := s.rewind.GetEnemyStateAtTick(eid, shotTick); ok {
			return hx, hy, hr, halive
		}
	}
	pos := w.Positions[eid]
	col := w.Colliders[eid]
	return pos.X, pos.Y, col.Radius, !w.IsDead(eid)
}

func (s *state) resolveBulletVsPlayers(w *ecs.World, bulletEID ecs.EntityID, b ecs.Bullet, bp ecs.Position, col ecs.Collider, shotTick int64, haveShotTick bool) {
	for _, targetEID := range w.PlayerEntities() {
		if targetEID == b.OwnerID || w.IsDead(targetEID) {
			continue
		}
		tx, ty := s.resolvePlayerHitState(w, targetEID, shotTick, haveShotTick)
		tc := w.Colliders[targetEID]
		if distance(bp.X, bp.Y, tx, ty) > col.Radius+tc.Radius+s.cfg.BulletHitPadding {
			continue
		}
		if w.IsInvincible(targetEID) {
			if w.PlayerStates[targetEID].State == ecs.PlayerRolling {
				w.Hooks.Fire(ecs.HookRollDodge, w, targetEID, bulletEID)
			}
			continue
		}
		result := w.Hooks.FireBulletHit(w, bulletEID, targetEID, b.Damage)
		s.applyDamage(w, targetEID, result.Damage)
		if !result.Pierce {
			w.RemoveEntity(bulletEID)
			return
		}
	}
}

func (s *state) resolvePlayerHitState(w *ecs.World, eid ecs.EntityID, shotTick int64, haveShotTick bool) (x, y float32) {
	if haveShotTick {
		if hx, hy, ok := s.rewind.GetPlayerAtTick(eid, shotTick); ok {
			return hx, hy
		}
	}
	pos := w.Positions[eid]
	return pos.X, pos.Y
}

// noteHit records who last damaged an enemy, for kill credit.
func (s *state) noteHit(target, attacker ecs.EntityID) {
	s.lastHitBy[target] = attacker
	s.hasLastHit[target] = true
}

func (s *state) applyDamage(w *ecs.World, eid ecs.EntityID, damage uint16) {
	h := w.Healths[eid]
	prev := h.Current
	h.Current -= int16(damage)
	w.Healths[eid] = h
	// b carries the magnitude of the change, not an entity id.
	w.Hooks.Fire(ecs.HookHealthChanged, w, eid, ecs.EntityID(prev-h.Current))
}

// healthDeath marks lethally-damaged entities Dead and fires onKill. Enemies
// linger one tick (RemoveEntity happens in cleanup) so kill hooks observe a
// still-present, Dead-tagged entity. A killed bomber leaves its charge
// behind; the killer is credited XP.
func (s *state) healthDeath(w *ecs.World, dt float32) {
	if !serverScope(w) {
		return
	}
	for _, eid := range w.EnemyEntities() {
		if w.IsDead(eid) {
			continue
		}
		if w.Healths[eid].Current <= 0 {
			w.SetDead(eid, true)
			s.diedThisTick[eid] = true
			if s.hasLastHit[eid] {
				killer := s.lastHitBy[eid]
				if w.IsPlayer(killer) && !w.IsDead(killer) {
					s.progress.XP[killer] += s.cfg.XPPerKill
				}
			}
			if w.Enemies[eid].Type == EnemyTypeBomber && len(w.ExplosiveEntities()) < s.cfg.MaxExplosives {
				pos := w.Positions[eid]
				w.SpawnExplosive(eid, pos.X, pos.Y, s.cfg.BomberFuseTicks, s.cfg.BomberBlastRadius)
			}
			w.Hooks.Fire(ecs.HookKill, w, eid, 0)
			w.Frame.ShowdownKillThisTick = true
		}
	}
	for _, eid := range w.PlayerEntities() {
		if w.IsDead(eid) {
			continue
		}
		if w.Healths[eid].Current <= 0 {
			w.SetDead(eid, true)
			w.Hooks.Fire(ecs.HookKill, w, eid, 0)
		}
	}
}

// abilityZone handles ability activation (a fresh ABILITY press off cooldown
// drops a pulse zone at the player's feet and fires onShowdownActivate),
// ages every active zone, and pulses zone damage to enemies inside on a
// shared interval.
func (s *state) abilityZone(w *ecs.World, dt float32) {
	for _, eid := range w.PlayerEntities() {
		if !playerInScope(w, eid) {
			continue
		}
		sd := w.Showdowns[eid]
		if sd.CooldownTicksRemaining > 0 {
			sd.CooldownTicksRemaining--
		}
		if sd.ActiveTicksRemaining > 0 {
			sd.ActiveTicksRemaining--
		}
		in := w.PlayerInputs[eid]
		if !w.IsDead(eid) && in.Fresh && in.Pressed(ecs.ButtonAbility) &&
			sd.CooldownTicksRemaining == 0 && len(w.AbilityZoneEntities()) < s.cfg.MaxZones {
			pos := w.Positions[eid]
			if _, ok := w.SpawnAbilityZone(eid, ZoneKindLastRites, pos.X, pos.Y, s.cfg.ZoneRadius, s.cfg.ZoneDurationTicks); ok {
				sd.CooldownTicksRemaining = s.cfg.AbilityCooldownTicks
				sd.ActiveTicksRemaining = int32(s.cfg.ZoneDurationTicks)
				w.Hooks.Fire(ecs.HookShowdownActivate, w, eid, 0)
			}
		}
		w.Showdowns[eid] = sd
	}

	pulse := false
	s.pulseCountdown--
	if s.pulseCountdown <= 0 {
		s.pulseCountdown = s.cfg.ZonePulseIntervalTicks
		pulse = true
	}

	for _, eid := range w.AbilityZoneEntities() {
		z := w.AbilityZones[eid]
		z.RadiusTicksRemaining--
		w.AbilityZones[eid] = z
		if z.RadiusTicksRemaining <= 0 {
			w.RemoveEntity(eid)
			continue
		}
		if !pulse {
			continue
		}
		zp := w.Positions[eid]
		for _, enemy := range w.EnemyEntities() {
			if w.IsDead(enemy) {
				continue
			}
			ep := w.Positions[enemy]
			if !circleHit(zp.X, zp.Y, z.Radius, ep.X, ep.Y) {
				continue
			}
			s.noteHit(enemy, z.OwnerID)
			s.applyDamage(w, enemy, s.cfg.ZonePulseDamage)
			w.Frame.LastRitesPulseThisTick = true
		}
	}
}

// hazardTiles counts down fused explosives and detonates them, damaging any
// player within blast radius.
func (s *state) hazardTiles(w *ecs.World, dt float32) {
	if !serverScope(w) {
		return
	}
	for _, eid := range w.ExplosiveEntities() {
		ex := w.Explosives[eid]
		ex.FuseTicks--
		w.Explosives[eid] = ex
		if ex.FuseTicks > 0 {
			continue
		}
		pos := w.Positions[eid]
		for _, p := range w.PlayerEntities() {
			if w.IsDead(p) || w.IsInvincible(p) {
				continue
			}
			pp := w.Positions[p]
			if circleHit(pos.X, pos.Y, ex.Radius, pp.X, pp.Y) {
				s.applyDamage(w, p, uint16(s.cfg.EnemyAttackDamage)*2)
			}
		}
		w.Frame.DynamiteDetonatedThisTick = true
		w.RemoveEntity(eid)
	}
}

// decay ticks down invincibility windows (iframes) that are not governed by
// an active roll, so a damage-taken iframe grant expires on schedule.
func (s *state) decay(w *ecs.World, dt float32) {
	for _, eid := range w.PlayerEntities() {
		if !playerInScope(w, eid) {
			continue
		}
		h := w.Healths[eid]
		if h.IFrames > 0 {
			h.IFrames -= dt
			w.Healths[eid] = h
			if h.IFrames <= 0 {
				w.SetInvincible(eid, false)
			}
		}
	}
}

// cleanup removes enemies that were marked Dead last tick, after kill hooks
// and any one-tick-lingering presentation logic has had its chance to read
// the Dead flag.
func (s *state) cleanup(w *ecs.World, dt float32) {
	if !serverScope(w) {
		return
	}
	for _, eid := range w.EnemyEntities() {
		if !w.IsDead(eid) {
			continue
		}
		if s.diedThisTick[eid] {
			s.diedThisTick[eid] = false
			continue
		}
		s.hasLastHit[eid] = false
		w.RemoveEntity(eid)
	}
}

// waveSpawn starts the next wave once every enemy is down and the inter-wave
// delay has elapsed. Spawn positions come from the world's deterministic
// RNG, so the same seed plus the same inputs reproduces the same waves.
func (s *state) waveSpawn(w *ecs.World, dt float32) {
	if !serverScope(w) || !s.progress.Started {
		return
	}
	alivePlayers := 0
	for _, eid := range w.PlayerEntities() {
		if !w.IsDead(eid) {
			alivePlayers++
		}
	}
	if alivePlayers == 0 {
		return
	}
	for _, eid := range w.EnemyEntities() {
		if !w.IsDead(eid) {
			return
		}
	}

	if s.waveCountdown > 0 {
		s.waveCountdown--
		return
	}
	s.waveCountdown = s.cfg.WaveDelayTicks

	s.progress.Wave++
	s.progress.Stage = (s.progress.Wave-1)/5 + 1

	count := s.cfg.WaveBaseEnemies + int(s.progress.Wave-1)*s.cfg.WaveEnemyGrowth
	if max := s.cfg.MaxEnemies - len(w.EnemyEntities()); count > max {
		count = max
	}
	tier := uint8((s.progress.Wave - 1) / 3)
	hp := s.cfg.EnemyBaseHP + int16(tier)*s.cfg.EnemyTierHPStep

	for i := 0; i < count; i++ {
		x, y := s.edgeSpawnPoint(w)
		enemyType := EnemyTypeGrunt
		if s.cfg.WaveBomberEvery > 0 && (i+1)%s.cfg.WaveBomberEvery == 0 {
			enemyType = EnemyTypeBomber
		}
		w.SpawnEnemy(enemyType, tier, x, y, hp, s.cfg.EnemyRadius)
	}
}

// edgeSpawnPoint picks a point on the arena boundary from the deterministic
// world RNG.
func (s *state) edgeSpawnPoint(w *ecs.World) (float32, float32) {
	side := w.RNG.NextInt(4)
	switch side {
	case 0:
		return float32(w.RNG.NextRange(0, float64(s.cfg.WorldWidth))), 0
	case 1:
		return float32(w.RNG.NextRange(0, float64(s.cfg.WorldWidth))), s.cfg.WorldHeight
	case 2:
		return 0, float32(w.RNG.NextRange(0, float64(s.cfg.WorldHeight)))
	default:
		return s.cfg.WorldWidth, float32(w.RNG.NextRange(0, float64(s.cfg.WorldHeight)))
	}
}

func clampAngle(a float32) float32 {
	const pi = float32(math.Pi)
	for a > pi {
		a -= 2 * pi
	}
	for a < -pi {
		a += 2 * pi
	}
	return a
}

func clampUnit(x, y float32) (float32, float32) {
	mag := float32(math.Sqrt(float64(x*x + y*y)))
	if mag <= 1 {
		return x, y
	}
	return x / mag, y / mag
}

func normalize(x, y float32) (float32, float32) {
	mag := float32(math.Sqrt(float64(x*x + y*y)))
	if mag == 0 {
		return 0, 0
	}
	return x / mag, y / mag
}

func distance(x1, y1, x2, y2 float32) float32 {
	dx, dy := x2-x1, y2-y1
	return float32(math.Sqrt(float64(dx*dx + dy*dy)))
}
