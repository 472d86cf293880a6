// Package snapshot implements the version-stamped little-endian binary
// frame broadcast to clients on the snapshot interval. Records are
// fixed-field and hand-packed so the byte length is a closed-form function
// of entity counts.
package snapshot

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"showdown-arena/internal/ecs"
)

// Version is the only frame version this codec encodes and decodes.
const Version uint8 = 3

const (
	headerSize = 14
	playerSize = 21
	bulletSize = 19
	enemySize  = 13
	zoneSize   = 2 + 16 // u16 eid + 4 f32
	dynamiteSize = 2 + 16
)

// Flags bits packed into a player record's flags byte.
const (
	FlagDead uint8 = 1 << iota
	FlagInvincible
	FlagRollButtonWasDown
	FlagJumpButtonWasDown
)

// ErrVersionMismatch is returned by Decode when the frame's version byte
// does not match Version. It is fatal to the caller: the frame is
// unusable and must not be partially interpreted.
var ErrVersionMismatch = errors.New("snapshot: version mismatch")

// PlayerView is the decoded form of one player record.
type PlayerView struct {
	EID               ecs.EntityID
	X, Y              float32
	AimAngle          float32
	State             uint8
	HP                uint8
	Dead              bool
	Invincible        bool
	RollButtonWasDown bool
	JumpButtonWasDown bool
	LastProcessedSeq  uint32
}

// BulletView is the decoded form of one bullet record.
type BulletView struct {
	EID  ecs.EntityID
	X, Y float32
	VX, VY float32
	Layer ecs.ColliderLayer
}

// EnemyView is the decoded form of one enemy record.
type EnemyView struct {
	EID     ecs.EntityID
	X, Y    float32
	Type    uint8
	HP      uint8
	AIState uint8
}

// ZoneView is a decoded ability-zone or dynamite trailing record (v>=3).
type ZoneView struct {
	EID                  ecs.EntityID
	X, Y                 float32
	Radius               float32
	TimeRemainingTicks    float32
}

// Snapshot is the fully decoded view of one frame.
type Snapshot struct {
	Tick         uint32
	ServerTime   float32
	Players      []PlayerView
	Bullets      []BulletView
	Enemies      []EnemyView
	Zones        []ZoneView
	Dynamite     []ZoneView
}

// Encode writes a frame for the given world into a reused buffer owned by
// enc and returns a view into it. The caller must finish using (copy) the
// returned slice before calling Encode again — per the single-owner encode
// buffer contract, the buffer is not safe to retain across calls.
type Encoder struct {
	buf []byte
}

// NewEncoder creates a reusable snapshot encoder.
func NewEncoder() *Encoder {
	return &Encoder{buf: make([]byte, 0, 4096)}
}

// Encode serializes the world into the version-3 frame layout. playerSeqs
// supplies each player's lastProcessedSeq for client-side reconciliation;
// a missing entry encodes as 0.
func (e *Encoder) Encode(w *ecs.World, serverTime float32, playerSeqs map[ecs.EntityID]uint32) []byte {
	players := w.PlayerEntities()
	bullets := w.BulletEntities()
	enemies := liveEnemies(w)
	zones := w.AbilityZoneEntities()
	dynamite := w.ExplosiveEntities()

	size := headerSize + len(players)*playerSize + len(bullets)*bulletSize + len(enemies)*enemySize +
		1 + len(zones)*zoneSize + 1 + len(dynamite)*dynamiteSize

	if cap(e.buf) < size {
		e.buf = make([]byte, size)
	} else {
		e.buf = e.buf[:size]
	}
	buf := e.buf

	off := 0
	buf[off] = Version
	off++
	binary.LittleEndian.PutUint32(buf[off:], uint32(w.Tick))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], f32bits(serverTime))
	off += 4
	buf[off] = uint8(len(players))
	off++
	binary.LittleEndian.PutUint16(buf[off:], uint16(len(bullets)))
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], uint16(len(enemies)))
	off += 2

	for _, eid := range players {
		off = encodePlayer(buf, off, w, eid, playerSeqs[eid])
	}
	for _, eid := range bullets {
		off = encodeBullet(buf, off, w, eid)
	}
	for _, eid := range enemies {
		off = encodeEnemy(buf, off, w, eid)
	}

	buf[off] = uint8(len(zones))
	off++
	for _, eid := range zones {
		off = encodeZone(buf, off, w.AbilityZones[eid].OwnerID, w.Positions[eid].X, w.Positions[eid].Y,
			w.AbilityZones[eid].Radius, w.AbilityZones[eid].RadiusTicksRemaining)
	}

	buf[off] = uint8(len(dynamite))
	off++
	for _, eid := range dynamite {
		off = encodeZone(buf, off, w.Explosives[eid].OwnerID, w.Positions[eid].X, w.Positions[eid].Y,
			w.Explosives[eid].Radius, float32(w.Explosives[eid].FuseTicks))
	}

	return buf[:off]
}

func liveEnemies(w *ecs.World) []ecs.EntityID {
	all := w.EnemyEntities()
	out := make([]ecs.EntityID, 0, len(all))
	for _, eid := range all {
		if !w.IsDead(eid) {
			out = append(out, eid)
		}
	}
	return out
}

func encodePlayer(buf []byte, off int, w *ecs.World, eid ecs.EntityID, seq uint32) int {
	pos := w.Positions[eid]
	player := w.Players[eid]
	state := w.PlayerStates[eid]
	health := w.Healths[eid]

	binary.LittleEndian.PutUint16(buf[off:], uint16(eid))
	off += 2
	binary.LittleEndian.PutUint32(buf[off:], f32bits(pos.X))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], f32bits(pos.Y))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], f32bits(player.AimAngle))
	off += 4
	buf[off] = uint8(state.State)
	off++
	buf[off] = clampHP(health.Current)
	off++

	var flags uint8
	if w.IsDead(eid) {
		flags |= FlagDead
	}
	if w.IsInvincible(eid) {
		flags |= FlagInvincible
	}
	if player.RollButtonWasDown {
		flags |= FlagRollButtonWasDown
	}
	if player.JumpButtonWasDown {
		flags |= FlagJumpButtonWasDown
	}
	buf[off] = flags
	off++

	binary.LittleEndian.PutUint32(buf[off:], seq)
	off += 4
	return off
}

func encodeBullet(buf []byte, off int, w *ecs.World, eid ecs.EntityID) int {
	pos := w.Positions[eid]
	vel := w.Velocities[eid]
	col := w.Colliders[eid]

	binary.LittleEndian.PutUint16(buf[off:], uint16(eid))
	off += 2
	binary.LittleEndian.PutUint32(buf[off:], f32bits(pos.X))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], f32bits(pos.Y))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], f32bits(vel.X))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], f32bits(vel.Y))
	off += 4
	buf[off] = uint8(col.Layer)
	off++
	return off
}

func encodeEnemy(buf []byte, off int, w *ecs.World, eid ecs.EntityID) int {
	pos := w.Positions[eid]
	enemy := w.Enemies[eid]
	health := w.Healths[eid]
	ai := w.EnemyAIs[eid]

	binary.LittleEndian.PutUint16(buf[off:], uint16(eid))
	off += 2
	binary.LittleEndian.PutUint32(buf[off:], f32bits(pos.X))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], f32bits(pos.Y))
	off += 4
	buf[off] = enemy.Type
	off++
	buf[off] = clampHP(health.Current)
	off++
	buf[off] = uint8(ai.State)
	off++
	return off
}

func encodeZone(buf []byte, off int, owner ecs.EntityID, x, y, radius, timeRemaining float32) int {
	binary.LittleEndian.PutUint16(buf[off:], uint16(owner))
	off += 2
	binary.LittleEndian.PutUint32(buf[off:], f32bits(x))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], f32bits(y))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], f32bits(radius))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], f32bits(timeRemaining))
	off += 4
	return off
}

// clampHP encodes Health.Current into a single byte, clamped to [0, 255].
func clampHP(current int16) uint8 {
	if current < 0 {
		return 0
	}
	if current > 255 {
		return 255
	}
	return uint8(current)
}

// Decode parses a version-3 frame. It fails fatally if the version byte
// does not match Version, or if the buffer is shorter than the length its
// own header/count fields imply.
func Decode(data []byte) (Snapshot, error) {
	if len(data) < 1 {
		return Snapshot{}, errors.Wrap(ErrVersionMismatch, "empty frame")
	}
	if data[0] != Version {
		return Snapshot{}, errors.Wrapf(ErrVersionMismatch, "got %d want %d", data[0], Version)
	}
	if len(data) < headerSize {
		return Snapshot{}, errors.New("snapshot: truncated header")
	}

	off := 1
	tick := binary.LittleEndian.Uint32(data[off:])
	off += 4
	serverTime := bitsF32(binary.LittleEndian.Uint32(data[off:]))
	off += 4
	playerCount := int(data[off])
	off++
	bulletCount := int(binary.LittleEndian.Uint16(data[off:]))
	off += 2
	enemyCount := int(binary.LittleEndian.Uint16(data[off:]))
	off += 2

	out := Snapshot{Tick: tick, ServerTime: serverTime}

	var err error
	out.Players, off, err = decodePlayers(data, off, playerCount)
	if err != nil {
		return Snapshot{}, err
	}
	out.Bullets, off, err = decodeBullets(data, off, bulletCount)
	if err != nil {
		return Snapshot{}, err
	}
	out.Enemies, off, err = decodeEnemies(data, off, enemyCount)
	if err != nil {
		return Snapshot{}, err
	}

	if off >= len(data) {
		return out, nil
	}
	zoneCount := int(data[off])
	off++
	out.Zones, off, err = decodeZones(data, off, zoneCount)
	if err != nil {
		return Snapshot{}, err
	}
	if off >= len(data) {
		return out, nil
	}
	dynamiteCount := int(data[off])
	off++
	out.Dynamite, off, err = decodeZones(data, off, dynamiteCount)
	if err != nil {
		return Snapshot{}, err
	}
	return out, nil
}

func decodePlayers(data []byte, off, count int) ([]PlayerView, int, error) {
	if off+count*playerSize > len(data) {
		return nil, off, errors.New("snapshot: truncated player section")
	}
	out := make([]PlayerView, count)
	for i := 0; i < count; i++ {
		eid := binary.LittleEndian.Uint16(data[off:])
		off += 2
		x := bitsF32(binary.LittleEndian.Uint32(data[off:]))
		off += 4
		y := bitsF32(binary.LittleEndian.Uint32(data[off:]))
		off += 4
		aim := bitsF32(binary.LittleEndian.Uint32(data[off:]))
		off += 4
		state := data[off]
		off++
		hp := data[off]
		off++
		flags := data[off]
		off++
		seq := binary.LittleEndian.Uint32(data[off:])
		off += 4

		out[i] = PlayerView{
			EID: ecs.EntityID(eid), X: x, Y: y, AimAngle: aim, State: state, HP: hp,
			Dead:              flags&FlagDead != 0,
			Invincible:        flags&FlagInvincible != 0,
			RollButtonWasDown: flags&FlagRollButtonWasDown != 0,
			JumpButtonWasDown: flags&FlagJumpButtonWasDown != 0,
			LastProcessedSeq:  seq,
		}
	}
	return out, off, nil
}

func decodeBullets(data []byte, off, count int) ([]BulletView, int, error) {
	if off+count*bulletSize > len(data) {
		return nil, off, errors.New("snapshot: truncated bullet section")
	}
	out := make([]BulletView, count)
	for i := 0; i < count; i++ {
		eid := binary.LittleEndian.Uint16(data[off:])
		off += 2
		x := bitsF32(binary.LittleEndian.Uint32(data[off:]))
		off += 4
		y := bitsF32(binary.LittleEndian.Uint32(data[off:]))
		off += 4
		vx := bitsF32(binary.LittleEndian.Uint32(data[off:]))
		off += 4
		vy := bitsF32(binary.LittleEndian.Uint32(data[off:]))
		off += 4
		layer := data[off]
		off++
		out[i] = BulletView{EID: ecs.EntityID(eid), X: x, Y: y, VX: vx, VY: vy, Layer: ecs.ColliderLayer(layer)}
	}
	return out, off, nil
}

func decodeEnemies(data []byte, off, count int) ([]EnemyView, int, error) {
	if off+count*enemySize > len(data) {
		return nil, off, errors.New("snapshot: truncated enemy section")
	}
	out := make([]EnemyView, count)
	for i := 0; i < count; i++ {
		eid := binary.LittleEndian.Uint16(data[off:])
		off += 2
		x := bitsF32(binary.LittleEndian.Uint32(data[off:]))
		off += 4
		y := bitsF32(binary.LittleEndian.Uint32(data[off:]))
		off += 4
		typ := data[off]
		off++
		hp := data[off]
		off++
		aiState := data[off]
		off++
		out[i] = EnemyView{EID: ecs.EntityID(eid), X: x, Y: y, Type: typ, HP: hp, AIState: aiState}
	}
	return out, off, nil
}

func decodeZones(data []byte, off, count int) ([]ZoneView, int, error) {
	if off+count*zoneSize > len(data) {
		return nil, off, errors.New("snapshot: truncated zone section")
	}
	out := make([]ZoneView, count)
	for i := 0; i < count; i++ {
		eid := binary.LittleEndian.Uint16(data[off:])
		off += 2
		x := bitsF32(binary.LittleEndian.Uint32(data[off:]))
		off += 4
		y := bitsF32(binary.LittleEndian.Uint32(data[off:]))
		off += 4
		radius := bitsF32(binary.LittleEndian.Uint32(data[off:]))
		off += 4
		remaining := bitsF32(binary.LittleEndian.Uint32(data[off:]))
		off += 4
		out[i] = ZoneView{EID: ecs.EntityID(eid), X: x, Y: y, Radius: radius, TimeRemainingTicks: remaining}
	}
	return out, off, nil
}
