package sim

import (
	"testing"

	"showdown-arena/internal/ecs"
	"showdown-arena/internal/ecs/spatial"
)

func newTestWorld() (*ecs.World, *ecs.Registry, *Progress) {
	return newTestWorldWithConfig(DefaultConfig())
}

func newTestWorldWithConfig(cfg Config) (*ecs.World, *ecs.Registry, *Progress) {
	w := ecs.NewWorld(1)
	reg := ecs.NewRegistry()
	grid := spatial.NewGrid(2000, 2000, 150)
	progress := NewProgress()
	Build(reg, grid, NoRewind, cfg, progress)
	return w, reg, progress
}

func TestMovementIntegratesVelocityAndWritesPrev(t *testing.T) {
	w, reg, _ := newTestWorld()
	player, _ := w.SpawnPlayer(1, 100, 100, 100)
	w.PlayerInputs[player] = ecs.Input{MoveX: 1, MoveY: 0, Fresh: true}

	reg.Step(w, 1.0/60.0)

	pos := w.Positions[player]
	if pos.X <= 100 {
		t.Fatalf("expected player to move in +X, got x=%v", pos.X)
	}
	if pos.PrevX != 100 {
		t.Fatalf("expected PrevX to hold the pre-tick position, got %v", pos.PrevX)
	}
}

func TestWeaponFireSpawnsBulletOnFreshShoot(t *testing.T) {
	w, reg, _ := newTestWorld()
	player, _ := w.SpawnPlayer(1, 0, 0, 100)
	w.PlayerInputs[player] = ecs.Input{Buttons: ecs.ButtonShoot, Fresh: true}

	before := len(w.BulletEntities())
	reg.Step(w, 1.0/60.0)
	after := len(w.BulletEntities())

	if after != before+1 {
		t.Fatalf("expected exactly one bullet spawned, before=%d after=%d", before, after)
	}
	if got := w.Cylinders[player].Rounds; got != 5 {
		t.Fatalf("expected a round consumed from the cylinder, got %d", got)
	}
}

func TestWeaponFireRespectsCooldown(t *testing.T) {
	w, reg, _ := newTestWorld()
	player, _ := w.SpawnPlayer(1, 0, 0, 100)

	for i := 0; i < 3; i++ {
		w.PlayerInputs[player] = ecs.Input{Buttons: ecs.ButtonShoot, Fresh: true}
		reg.Step(w, 1.0/60.0)
	}

	if got := len(w.BulletEntities()); got != 1 {
		t.Fatalf("expected cooldown to suppress repeated fresh SHOOT presses, got %d bullets", got)
	}
}

func TestEmptyCylinderFiresHookAndStartsReload(t *testing.T) {
	cfg := DefaultConfig()
	w, reg, _ := newTestWorldWithConfig(cfg)
	player, _ := w.SpawnPlayer(1, 0, 0, 100)
	w.Cylinders[player] = ecs.Cylinder{Rounds: 0, Capacity: cfg.CylinderCapacity}

	emptyFired := false
	w.Hooks.RegisterNotify(ecs.HookCylinderEmpty, "test", 0, func(w *ecs.World, a, b ecs.EntityID) {
		emptyFired = true
	})

	w.PlayerInputs[player] = ecs.Input{Buttons: ecs.ButtonShoot, Fresh: true}
	reg.Step(w, 1.0/60.0)

	if !emptyFired {
		t.Fatalf("expected onCylinderEmpty to fire on an empty SHOOT attempt")
	}
	if len(w.BulletEntities()) != 0 {
		t.Fatalf("expected no bullet from an empty cylinder")
	}
	if w.Cylinders[player].ReloadTicksRemaining != cfg.ReloadTicks {
		t.Fatalf("expected an automatic reload to start, got %d ticks remaining", w.Cylinders[player].ReloadTicksRemaining)
	}
}

func TestReloadButtonRefillsCylinder(t *testing.T) {
	cfg := DefaultConfig()
	w, reg, _ := newTestWorldWithConfig(cfg)
	player, _ := w.SpawnPlayer(1, 0, 0, 100)
	w.Cylinders[player] = ecs.Cylinder{Rounds: 2, Capacity: cfg.CylinderCapacity}

	w.PlayerInputs[player] = ecs.Input{Buttons: ecs.ButtonReload, Fresh: true}
	reg.Step(w, 1.0/60.0)
	if w.Cylinders[player].ReloadTicksRemaining != cfg.ReloadTicks {
		t.Fatalf("expected reload started, got %d", w.Cylinders[player].ReloadTicksRemaining)
	}

	w.PlayerInputs[player] = ecs.Input{}
	for i := int32(0); i < cfg.ReloadTicks; i++ {
		reg.Step(w, 1.0/60.0)
	}
	if got := w.Cylinders[player].Rounds; got != cfg.CylinderCapacity {
		t.Fatalf("expected a full cylinder after the reload completes, got %d", got)
	}
}

func TestBulletKillsEnemyAndFiresHooks(t *testing.T) {
	w, reg, _ := newTestWorld()
	player, _ := w.SpawnPlayer(1, 0, 0, 100)
	enemy, _ := w.SpawnEnemy(0, 1, 40, 0, 10, 16)

	var killed ecs.EntityID
	killFired := false
	w.Hooks.RegisterNotify(ecs.HookKill, "test", 0, func(w *ecs.World, a, b ecs.EntityID) {
		killFired = true
		killed = a
	})

	w.Players[player] = ecs.Player{AimAngle: 0}
	w.PlayerInputs[player] = ecs.Input{Buttons: ecs.ButtonShoot, Fresh: true}

	for i := 0; i < 5 && w.IsAlive(enemy) && !w.IsDead(enemy); i++ {
		reg.Step(w, 1.0/60.0)
	}

	if !w.IsDead(enemy) {
		t.Fatalf("expected enemy to die within a few ticks of sustained fire")
	}
	if !killFired || killed != enemy {
		t.Fatalf("expected onKill fired for enemy %d, got fired=%v killed=%d", enemy, killFired, killed)
	}
}

func TestKillCreditsXPToShooter(t *testing.T) {
	cfg := DefaultConfig()
	w, reg, progress := newTestWorldWithConfig(cfg)
	player, _ := w.SpawnPlayer(1, 0, 0, 100)
	w.SpawnEnemy(0, 1, 40, 0, 1, 16)

	w.PlayerInputs[player] = ecs.Input{Buttons: ecs.ButtonShoot, Fresh: true}
	for i := 0; i < 5; i++ {
		reg.Step(w, 1.0/60.0)
	}

	if got := progress.XP[player]; got != cfg.XPPerKill {
		t.Fatalf("expected %d XP credited for the kill, got %d", cfg.XPPerKill, got)
	}
	if lvl := progress.Level(player, cfg.XPPerLevel); lvl != 1 {
		t.Fatalf("expected level 1 at %d XP, got %d", progress.XP[player], lvl)
	}
}

func TestCleanupRemovesDeadEnemiesAfterKillHooksRun(t *testing.T) {
	w, reg, _ := newTestWorld()
	enemy, _ := w.SpawnEnemy(0, 1, 0, 0, 1, 16)
	w.Healths[enemy] = ecs.Health{Current: 0, Max: 10}

	reg.Step(w, 1.0/60.0)

	if !w.IsAlive(enemy) || !w.IsDead(enemy) {
		t.Fatalf("expected the enemy to linger Dead-tagged through the tick it died")
	}

	reg.Step(w, 1.0/60.0)

	if w.IsAlive(enemy) {
		t.Fatalf("expected enemy removed by cleanup the tick after it died")
	}
}

func TestBomberDropsExplosiveOnDeath(t *testing.T) {
	cfg := DefaultConfig()
	w, reg, _ := newTestWorldWithConfig(cfg)
	player, _ := w.SpawnPlayer(1, 10, 0, 100)
	bomber, _ := w.SpawnEnemy(EnemyTypeBomber, 0, 0, 0, 1, 16)
	w.Healths[bomber] = ecs.Health{Current: 0, Max: 1}

	reg.Step(w, 1.0/60.0)

	if len(w.ExplosiveEntities()) != 1 {
		t.Fatalf("expected a dropped explosive after the bomber died, got %d", len(w.ExplosiveEntities()))
	}

	w.PlayerInputs[player] = ecs.Input{}
	for i := int32(0); i < cfg.BomberFuseTicks; i++ {
		reg.Step(w, 1.0/60.0)
	}

	if len(w.ExplosiveEntities()) != 0 {
		t.Fatalf("expected the explosive removed after detonation")
	}
	if w.Healths[player].Current >= 100 {
		t.Fatalf("expected the blast to damage a player inside its radius, hp=%d", w.Healths[player].Current)
	}
}

func TestRollGrantsTemporaryInvincibility(t *testing.T) {
	w, reg, _ := newTestWorld()
	player, _ := w.SpawnPlayer(1, 0, 0, 100)
	w.PlayerInputs[player] = ecs.Input{Buttons: ecs.ButtonRoll, MoveX: 1, Fresh: true}

	reg.Step(w, 1.0/60.0)

	if !w.IsInvincible(player) {
		t.Fatalf("expected player invincible immediately after starting a roll")
	}
	if w.PlayerStates[player].State != ecs.PlayerRolling {
		t.Fatalf("expected PlayerState rolling, got %v", w.PlayerStates[player].State)
	}
}

func TestRollingPlayerDodgesBulletAndHookFires(t *testing.T) {
	w, reg, _ := newTestWorld()
	shooter, _ := w.SpawnPlayer(1, 200, 200, 100)
	roller, _ := w.SpawnPlayer(2, 0, 0, 100)

	w.PlayerStates[roller] = ecs.PlayerState{State: ecs.PlayerRolling}
	w.Rolls[roller] = ecs.Roll{Duration: 30}
	w.SetInvincible(roller, true)

	dodged := false
	w.Hooks.RegisterNotify(ecs.HookRollDodge, "test", 0, func(w *ecs.World, a, b ecs.EntityID) {
		dodged = a == roller
	})

	w.SpawnBullet(shooter, 0, 0, 0, 0, 10, 500, ecs.LayerBulletFriendly)
	reg.Step(w, 1.0/60.0)

	if !dodged {
		t.Fatalf("expected onRollDodge fired for the rolling player")
	}
	if w.Healths[roller].Current != 100 {
		t.Fatalf("expected the dodged bullet to deal no damage, hp=%d", w.Healths[roller].Current)
	}
}

func TestJumpArcRisesAndReturnsToGround(t *testing.T) {
	w, reg, _ := newTestWorld()
	player, _ := w.SpawnPlayer(1, 0, 0, 100)

	w.PlayerInputs[player] = ecs.Input{Buttons: ecs.ButtonJump, Fresh: true}
	reg.Step(w, 1.0/60.0)

	if w.ZPositions[player].Z <= 0 {
		t.Fatalf("expected player airborne after a jump, z=%v", w.ZPositions[player].Z)
	}

	w.PlayerInputs[player] = ecs.Input{}
	for i := 0; i < 120 && w.ZPositions[player].Z > 0; i++ {
		reg.Step(w, 1.0/60.0)
	}
	if zp := w.ZPositions[player]; zp.Z != 0 || zp.ZVelocity != 0 {
		t.Fatalf("expected player back on the ground, got %+v", zp)
	}
}

func TestAbilityActivationSpawnsZoneAndFiresHook(t *testing.T) {
	cfg := DefaultConfig()
	w, reg, _ := newTestWorldWithConfig(cfg)
	player, _ := w.SpawnPlayer(1, 500, 500, 100)

	activated := false
	w.Hooks.RegisterNotify(ecs.HookShowdownActivate, "test", 0, func(w *ecs.World, a, b ecs.EntityID) {
		activated = a == player
	})

	w.PlayerInputs[player] = ecs.Input{Buttons: ecs.ButtonAbility, Fresh: true}
	reg.Step(w, 1.0/60.0)

	if !activated {
		t.Fatalf("expected onShowdownActivate to fire")
	}
	if len(w.AbilityZoneEntities()) != 1 {
		t.Fatalf("expected one active zone, got %d", len(w.AbilityZoneEntities()))
	}
	if w.Showdowns[player].CooldownTicksRemaining != cfg.AbilityCooldownTicks {
		t.Fatalf("expected ability cooldown set, got %d", w.Showdowns[player].CooldownTicksRemaining)
	}

	// A second press inside the cooldown must not stack another zone.
	w.PlayerInputs[player] = ecs.Input{Buttons: ecs.ButtonAbility, Fresh: true}
	reg.Step(w, 1.0/60.0)
	if len(w.AbilityZoneEntities()) != 1 {
		t.Fatalf("expected cooldown to block a second zone, got %d", len(w.AbilityZoneEntities()))
	}
}

func TestZonePulseDamagesEnemiesInside(t *testing.T) {
	cfg := DefaultConfig()
	w, reg, _ := newTestWorldWithConfig(cfg)
	player, _ := w.SpawnPlayer(1, 500, 500, 1000)
	enemy, _ := w.SpawnEnemy(0, 0, 520, 500, 100, 16)
	w.SpawnAbilityZone(player, ZoneKindLastRites, 500, 500, cfg.ZoneRadius, cfg.ZoneDurationTicks)

	w.PlayerInputs[player] = ecs.Input{}
	for i := int32(0); i <= cfg.ZonePulseIntervalTicks*2; i++ {
		reg.Step(w, 1.0/60.0)
	}

	if w.Healths[enemy].Current >= 100 {
		t.Fatalf("expected pulse damage to tick the enemy down, hp=%d", w.Healths[enemy].Current)
	}
}

func TestEnemyMeleeDamagesAdjacentPlayer(t *testing.T) {
	w, reg, _ := newTestWorld()
	player, _ := w.SpawnPlayer(1, 0, 0, 100)
	w.SpawnEnemy(0, 0, 30, 0, 100, 16)

	w.PlayerInputs[player] = ecs.Input{}
	reg.Step(w, 1.0/60.0)

	if w.Healths[player].Current >= 100 {
		t.Fatalf("expected an adjacent enemy's opening swing to land, hp=%d", w.Healths[player].Current)
	}
}

func TestMeleeComboScalesConsecutiveHits(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnemyAttackCooldownTicks = 1
	w, reg, _ := newTestWorldWithConfig(cfg)
	player, _ := w.SpawnPlayer(1, 0, 0, 10000)
	enemy, _ := w.SpawnEnemy(0, 0, 30, 0, 1000, 16)

	w.PlayerInputs[player] = ecs.Input{}
	var damages []int16
	prev := w.Healths[player].Current
	for i := 0; i < 8; i++ {
		reg.Step(w, 1.0/60.0)
		cur := w.Healths[player].Current
		if cur < prev {
			damages = append(damages, prev-cur)
			prev = cur
		}
	}

	if len(damages) < 2 {
		t.Fatalf("expected at least two landed swings, got %d", len(damages))
	}
	if damages[1] <= damages[0] {
		t.Fatalf("expected the second combo swing to hit harder: %v", damages)
	}
	if w.MeleeWeapons[enemy].ComboCount == 0 {
		t.Fatalf("expected a running combo after consecutive hits")
	}
}

func TestSeparationPushesOverlappingEnemiesApart(t *testing.T) {
	w, reg, _ := newTestWorld()
	a, _ := w.SpawnEnemy(0, 0, 1000, 1000, 100, 16)
	b, _ := w.SpawnEnemy(0, 0, 1010, 1000, 100, 16)

	reg.Step(w, 1.0/60.0)

	pa, pb := w.Positions[a], w.Positions[b]
	dist := float32(0)
	{
		dx, dy := pb.X-pa.X, pb.Y-pa.Y
		dist = dx*dx + dy*dy
	}
	minDist := w.Colliders[a].Radius + w.Colliders[b].Radius
	if dist < minDist*minDist-0.5 {
		t.Fatalf("expected overlapping enemies pushed to at least radius distance, got %v vs %v", dist, minDist*minDist)
	}
}

func TestAIChasesNearestAlivePlayer(t *testing.T) {
	w, reg, _ := newTestWorld()
	w.SpawnPlayer(1, 1000, 1000, 100) // far
	near, _ := w.SpawnPlayer(2, 10, 0, 100)
	enemy, _ := w.SpawnEnemy(0, 1, 0, 0, 10, 16)

	reg.Step(w, 1.0/60.0)

	ai := w.EnemyAIs[enemy]
	if ai.TargetEID != near {
		t.Fatalf("expected enemy to target nearest player %d, got %d", near, ai.TargetEID)
	}
}

func TestWaveSpawnerWaitsForLobbyStart(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WaveDelayTicks = 0
	w, reg, _ := newTestWorldWithConfig(cfg)
	player, _ := w.SpawnPlayer(1, 1000, 1000, 100)
	w.PlayerInputs[player] = ecs.Input{}

	for i := 0; i < 5; i++ {
		reg.Step(w, 1.0/60.0)
	}
	if got := len(w.EnemyEntities()); got != 0 {
		t.Fatalf("expected no waves before the run starts, got %d enemies", got)
	}
}

func TestLocalPlayerScopeSimulatesOnlyLocalEntities(t *testing.T) {
	w, reg, _ := newTestWorld()
	local, _ := w.SpawnPlayer(1, 100, 100, 100)
	remote, _ := w.SpawnPlayer(2, 500, 500, 100)
	w.Scope = ecs.ScopeLocalPlayer
	w.LocalPlayerEID = local

	w.PlayerInputs[local] = ecs.Input{MoveX: 1, Fresh: true}
	w.PlayerInputs[remote] = ecs.Input{MoveX: 1, Fresh: true}
	reg.Step(w, 1.0/60.0)

	if w.Positions[local].X <= 100 {
		t.Fatalf("expected the local player to move under prediction scope")
	}
	if w.Positions[remote].X != 500 {
		t.Fatalf("expected the remote player untouched under prediction scope, x=%v", w.Positions[remote].X)
	}
}

func TestWaveSpawnerPopulatesClearedArena(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WaveDelayTicks = 0
	w, reg, progress := newTestWorldWithConfig(cfg)
	progress.Started = true
	player, _ := w.SpawnPlayer(1, 1000, 1000, 100)
	w.PlayerInputs[player] = ecs.Input{}

	reg.Step(w, 1.0/60.0)

	if progress.Wave != 1 {
		t.Fatalf("expected wave 1 after the first spawn, got %d", progress.Wave)
	}
	if got := len(w.EnemyEntities()); got != cfg.WaveBaseEnemies {
		t.Fatalf("expected %d enemies in the first wave, got %d", cfg.WaveBaseEnemies, got)
	}
	bombers := 0
	for _, eid := range w.EnemyEntities() {
		if w.Enemies[eid].Type == EnemyTypeBomber {
			bombers++
		}
	}
	if bombers != 1 {
		t.Fatalf("expected one bomber per %d spawns, got %d", cfg.WaveBomberEvery, bombers)
	}
}

func TestWaveSpawnPositionsAreSeedDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WaveDelayTicks = 0

	spawn := func() []ecs.Position {
		w := ecs.NewWorld(7)
		reg := ecs.NewRegistry()
		grid := spatial.NewGrid(2000, 2000, 150)
		progress := NewProgress()
		progress.Started = true
		Build(reg, grid, NoRewind, cfg, progress)
		p, _ := w.SpawnPlayer(1, 1000, 1000, 100)
		w.PlayerInputs[p] = ecs.Input{}
		reg.Step(w, 1.0/60.0)

		var out []ecs.Position
		for _, eid := range w.EnemyEntities() {
			out = append(out, w.Positions[eid])
		}
		return out
	}

	a, b := spawn(), spawn()
	if len(a) == 0 || len(a) != len(b) {
		t.Fatalf("expected identical non-empty spawn sets, got %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].X != b[i].X || a[i].Y != b[i].Y {
			t.Fatalf("spawn %d diverged across identical seeds: %+v vs %+v", i, a[i], b[i])
		}
	}
}
