package room

import (
	"encoding/json"
	"testing"

	"showdown-arena/internal/config"
	"showdown-arena/internal/sim"
)

func newTestRoomForUnit(t *testing.T) *Room {
	t.Helper()
	cfg := config.DefaultRoomConfig()
	cfg.MaxPlayers = 2
	return NewRoom(42, cfg, sim.DefaultConfig())
}

func TestJoinAssignsSessionAndRoster(t *testing.T) {
	r := newTestRoomForUnit(t)

	id, slot, cfg, reconnected, err := r.Join("", "sheriff")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if reconnected {
		t.Fatalf("expected a brand-new session, not a reconnect")
	}
	if id == "" {
		t.Fatalf("expected a non-empty session id")
	}
	if cfg.PlayerEID != uint16(slot.EID) {
		t.Fatalf("game config playerEid mismatch: %d vs %d", cfg.PlayerEID, slot.EID)
	}
	if cfg.Seed != 42 {
		t.Fatalf("expected seed 42 to survive into game-config, got %d", cfg.Seed)
	}
	if len(cfg.Roster) != 1 {
		t.Fatalf("expected roster of 1 after first join, got %d", len(cfg.Roster))
	}
}

func TestJoinRejectsUnknownCharacterFallsBackToDefault(t *testing.T) {
	r := newTestRoomForUnit(t)
	_, slot, _, _, err := r.Join("", "not-a-real-character")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if slot.CharacterID != "sheriff" {
		t.Fatalf("expected unknown character to fall back to sheriff, got %q", slot.CharacterID)
	}
}

func TestJoinRejectsAtCapacity(t *testing.T) {
	r := newTestRoomForUnit(t) // MaxPlayers = 2
	if _, _, _, _, err := r.Join("", "sheriff"); err != nil {
		t.Fatalf("first join: %v", err)
	}
	if _, _, _, _, err := r.Join("", "sheriff"); err != nil {
		t.Fatalf("second join: %v", err)
	}
	if _, _, _, _, err := r.Join("", "sheriff"); err == nil {
		t.Fatalf("expected third join to fail at capacity")
	}
}

func TestLeaveThenReconnectPreservesSession(t *testing.T) {
	r := newTestRoomForUnit(t)
	id, slot, _, _, _ := r.Join("", "sheriff")
	originalEID := slot.EID

	r.Leave(id)
	if slot.Connected() {
		t.Fatalf("expected slot disconnected after Leave")
	}

	_, reconnectedSlot, _, reconnected, err := r.Join(id, "undertaker")
	if err != nil {
		t.Fatalf("reconnect Join: %v", err)
	}
	if !reconnected {
		t.Fatalf("expected Join to report a reconnect")
	}
	if reconnectedSlot.EID != originalEID {
		t.Fatalf("expected the same entity to be reused on reconnect")
	}
	if reconnectedSlot.CharacterID != "undertaker" {
		t.Fatalf("expected character selection to update on reconnect")
	}
}

func TestHandleInputEnqueuesValidCommand(t *testing.T) {
	r := newTestRoomForUnit(t)
	id, slot, _, _, _ := r.Join("", "sheriff")

	raw := json.RawMessage(`{
		"seq": 1, "clientTick": 10, "clientTimeMs": 100,
		"estimatedServerTimeMs": 95, "viewInterpDelayMs": 20,
		"shootSeq": 0, "buttons": 0, "aimAngle": 0,
		"moveX": 0, "moveY": 0, "cursorWorldX": 0, "cursorWorldY": 0
	}`)
	if notify := r.HandleInput(id, raw); notify {
		t.Fatalf("did not expect a protocol mismatch notice")
	}
	if len(slot.queue) != 1 {
		t.Fatalf("expected the command to land in the slot's queue, len=%d", len(slot.queue))
	}
}

func TestHandleInputNotifiesOnceForMissingTimingFields(t *testing.T) {
	r := newTestRoomForUnit(t)
	id, _, _, _, _ := r.Join("", "sheriff")

	raw := json.RawMessage(`{
		"seq": 1, "clientTick": 10,
		"shootSeq": 0, "buttons": 0, "aimAngle": 0,
		"moveX": 0, "moveY": 0, "cursorWorldX": 0, "cursorWorldY": 0
	}`)
	if notify := r.HandleInput(id, raw); !notify {
		t.Fatalf("expected first malformed command to trigger a notice")
	}
	if notify := r.HandleInput(id, raw); notify {
		t.Fatalf("expected the notice to latch and not fire twice")
	}
}

func TestAllReadyEndsLobbyPhase(t *testing.T) {
	r := newTestRoomForUnit(t)
	a, _, _, _, _ := r.Join("", "sheriff")
	b, _, _, _, _ := r.Join("", "undertaker")

	r.SetReady(a, true)
	if r.Started() {
		t.Fatalf("expected the lobby to continue until every session is ready")
	}
	r.SetReady(b, true)
	if !r.Started() {
		t.Fatalf("expected the run to start once all sessions are ready")
	}
}

func TestSelectNodeRejectsUnknownSessionAndOverlongID(t *testing.T) {
	r := newTestRoomForUnit(t)
	id, _, _, _, _ := r.Join("", "sheriff")

	if r.SelectNode("not-a-session", "node-1") {
		t.Fatalf("expected SelectNode to fail closed for an unknown session")
	}
	overlong := make([]byte, MaxNodeIDLen+1)
	for i := range overlong {
		overlong[i] = 'a'
	}
	if r.SelectNode(id, string(overlong)) {
		t.Fatalf("expected SelectNode to reject an overlong node id")
	}
}
