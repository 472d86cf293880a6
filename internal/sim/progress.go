package sim

import "showdown-arena/internal/ecs"

// Progress is the run-level state the wave spawner advances and the HUD
// reports: wave/stage counters and per-player experience. It is owned by the
// room and only accessed while the room's mutex is held.
type Progress struct {
	// Started flips when the lobby is over (every session ready); waves do
	// not spawn before that.
	Started bool

	Wave  int32
	Stage int32

	XP map[ecs.EntityID]uint32
}

// NewProgress returns an empty run (wave 0, no XP awarded yet).
func NewProgress() *Progress {
	return &Progress{XP: make(map[ecs.EntityID]uint32, 16)}
}

// Level derives a player's level from accumulated XP. Level 1 is the floor.
func (p *Progress) Level(eid ecs.EntityID, xpPerLevel uint32) int32 {
	if xpPerLevel == 0 {
		return 1
	}
	return int32(p.XP[eid]/xpPerLevel) + 1
}
