package sim

import "showdown-arena/internal/ecs"

// RewindSource is the lag-compensation read side the bullet-collision system
// consults. internal/rewind.History satisfies this; it is passed in here
// rather than imported directly so this package stays decoupled from the
// ring-buffer's storage format.
type RewindSource interface {
	GetPlayerAtTick(eid ecs.EntityID, tick int64) (x, y float32, ok bool)
	GetEnemyStateAtTick(eid ecs.EntityID, tick int64) (x, y, radius float32, alive, ok bool)
}

// noRewind is used when a caller (tests, client-side prediction) has no
// history to consult; every lookup reports a miss and callers fall back to
// the entity's present position.
type noRewind struct{}

func (noRewind) GetPlayerAtTick(ecs.EntityID, int64) (float32, float32, bool) { return 0, 0, false }
func (noRewind) GetEnemyStateAtTick(ecs.EntityID, int64) (float32, float32, float32, bool, bool) {
	return 0, 0, 0, false, false
}

// NoRewind is a RewindSource that always misses.
var NoRewind RewindSource = noRewind{}
