// Package sim holds the concrete gameplay systems that plug into an
// ecs.Registry: movement, targeting, weapon fire, collision, death, and
// hazard upkeep. The core (internal/ecs) only specifies the contract these
// systems share with the snapshot and rewind machinery; this package is one
// conforming implementation of that contract.
package sim

// Config carries the balance constants the gameplay systems read. All
// distances are in world units, all durations in ticks unless named *Sec.
type Config struct {
	WorldWidth  float32
	WorldHeight float32

	MoveSpeed float32 // player move speed, units/sec

	RollSpeed         float32
	RollDurationTicks int32
	RollInvulnTicks   int32

	JumpVelocity float32 // initial z velocity on a jump, units/sec
	Gravity      float32 // z deceleration, units/sec^2

	EnemyDetectRange         float32
	EnemyAttackRange         float32
	EnemyChaseSpeed          float32
	EnemyAttackDamage        int16
	EnemyAttackCooldownTicks int32
	EnemyBaseHP              int16
	EnemyTierHPStep          int16
	EnemyRadius              float32

	// Melee combo chain: consecutive landed swings inside the window scale
	// damage up to ComboMaxCount steps.
	ComboWindowTicks int32
	ComboMaxCount    uint8
	ComboDamageStep  float32 // fractional damage increase per combo step

	RevolverCooldownTicks int32
	RevolverDamage        uint16
	RevolverBulletSpeed   float32
	RevolverRange         float32
	CylinderCapacity      uint8
	ReloadTicks           int32

	AbilityCooldownTicks   int32
	ZoneRadius             float32
	ZoneDurationTicks      float32
	ZonePulseIntervalTicks int32
	ZonePulseDamage        uint16

	WaveDelayTicks  int32
	WaveBaseEnemies int
	WaveEnemyGrowth int
	WaveBomberEvery int // every Nth spawn in a wave is a bomber

	BomberFuseTicks   int32
	BomberBlastRadius float32

	XPPerKill  uint32
	XPPerLevel uint32

	// Hard caps keeping snapshot section counts inside their wire field
	// widths and the per-tick work bounded regardless of client behavior.
	MaxBullets    int
	MaxEnemies    int
	MaxZones      int
	MaxExplosives int

	BulletHitPadding float32 // lag-comp hit-test padding
}

// DefaultConfig returns the balance constants used by the arena room type.
func DefaultConfig() Config {
	return Config{
		WorldWidth:  2000,
		WorldHeight: 2000,
		MoveSpeed:   220,

		RollSpeed:         420,
		RollDurationTicks: 12,
		RollInvulnTicks:   8,

		JumpVelocity: 260,
		Gravity:      900,

		EnemyDetectRange:         480,
		EnemyAttackRange:         70,
		EnemyChaseSpeed:          140,
		EnemyAttackDamage:        10,
		EnemyAttackCooldownTicks: 45,
		EnemyBaseHP:              30,
		EnemyTierHPStep:          15,
		EnemyRadius:              16,

		ComboWindowTicks: 90,
		ComboMaxCount:    3,
		ComboDamageStep:  0.25,

		RevolverCooldownTicks: 10,
		RevolverDamage:        18,
		RevolverBulletSpeed:   900,
		RevolverRange:         520,
		CylinderCapacity:      6,
		ReloadTicks:           45,

		AbilityCooldownTicks:   600,
		ZoneRadius:             120,
		ZoneDurationTicks:      300,
		ZonePulseIntervalTicks: 15,
		ZonePulseDamage:        4,

		WaveDelayTicks:  180,
		WaveBaseEnemies: 4,
		WaveEnemyGrowth: 2,
		WaveBomberEvery: 4,

		BomberFuseTicks:   90,
		BomberBlastRadius: 80,

		XPPerKill:  25,
		XPPerLevel: 100,

		MaxBullets:    512,
		MaxEnemies:    256,
		MaxZones:      32,
		MaxExplosives: 32,

		BulletHitPadding: 6,
	}
}
