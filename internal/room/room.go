package room

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"showdown-arena/internal/config"
	"showdown-arena/internal/ecs"
	"showdown-arena/internal/ecs/spatial"
	"showdown-arena/internal/rewind"
	"showdown-arena/internal/sim"
	"showdown-arena/internal/snapshot"
)

// Stats is the periodic telemetry the driver publishes;
// internal/api's Prometheus wiring and the /api/state handler both read it.
type Stats struct {
	Tick               uint64
	PlayersConnected   int
	RateLimitedDrops   uint64
	RewindHistoryMiss  uint64
	ClampedShots       uint64
	RewindDepthP50     float64
	RewindDepthP95     float64
	HeldInputShotSkips uint64
}

// GameConfig is the payload of the server->client "game-config" message.
type GameConfig struct {
	Seed        uint32   `json:"seed"`
	SessionID   string   `json:"sessionId"`
	PlayerEID   uint16   `json:"playerEid"`
	CharacterID string   `json:"characterId"`
	Roster      []Roster `json:"roster"`
}

// Roster is one entry of the player-roster message.
type Roster struct {
	EID         uint16 `json:"eid"`
	CharacterID string `json:"characterId"`
}

// Room owns one World and runs one fixed-interval simulation.
// mu serializes session join/leave against the driver's per-tick world
// access.
type Room struct {
	mu sync.Mutex

	cfg    config.RoomConfig
	simCfg sim.Config
	seed   uint32

	world    *ecs.World
	reg      *ecs.Registry
	grid     *spatial.Grid
	history  *rewind.History
	encoder  *snapshot.Encoder
	progress *sim.Progress

	slots        map[string]*Slot
	eidToSession map[ecs.EntityID]string
	nextPlayerID uint8

	stats Stats

	hub    Hub
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewRoom constructs a room with a freshly seeded world and the full
// gameplay system set registered (internal/sim.Build).
func NewRoom(seed uint32, cfg config.RoomConfig, simCfg sim.Config) *Room {
	capacity := int(cfg.MaxRewindMs*float64(cfg.TickHz)/1000) + cfg.RewindSlack
	r := &Room{
		cfg:          cfg,
		simCfg:       simCfg,
		seed:         seed,
		world:        ecs.NewWorld(seed),
		reg:          ecs.NewRegistry(),
		grid:         spatial.NewGrid(cfg.WorldWidth, cfg.WorldHeight, 150),
		history:      rewind.NewHistory(capacity),
		encoder:      snapshot.NewEncoder(),
		progress:     sim.NewProgress(),
		slots:        make(map[string]*Slot, cfg.MaxPlayers),
		eidToSession: make(map[ecs.EntityID]string, cfg.MaxPlayers),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
	sim.Build(r.reg, r.grid, r.history, simCfg, r.progress)
	return r
}

// Seed exposes the world seed used in the "game-config" handshake.
func (r *Room) Seed() uint32 {
	return r.seed
}

// Join creates a new session (or reconnects an existing, still-in-grace
// one) and spawns/reuses its player entity. sessionID is empty for a brand
// new session; the caller (websocket handler) should persist the returned
// id and have the client echo it back on reconnect.
func (r *Room) Join(sessionID, characterID string) (id string, slot *Slot, cfgMsg GameConfig, reconnected bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	requested := characterID
	if !CharacterIDs[requested] {
		requested = ""
	}

	if sessionID != "" {
		if s, ok := r.slots[sessionID]; ok && !s.Connected() {
			s.Reconnect(r.cfg)
			if requested != "" {
				s.CharacterID = requested
			}
			return sessionID, s, r.gameConfigLocked(sessionID, s), true, nil
		}
	}
	if requested == "" {
		requested = "sheriff"
	}
	characterID = requested

	if len(r.slots) >= r.cfg.MaxPlayers {
		return "", nil, GameConfig{}, false, fmt.Errorf("room: at capacity (%d players)", r.cfg.MaxPlayers)
	}

	eid, ok := r.world.SpawnPlayer(r.nextPlayerID, 0, 0, 100)
	if !ok {
		return "", nil, GameConfig{}, false, fmt.Errorf("room: entity pool exhausted")
	}
	r.nextPlayerID++

	id = newSessionID()
	s := NewSlot(eid, characterID, r.cfg)
	r.slots[id] = s
	r.eidToSession[eid] = id

	return id, s, r.gameConfigLocked(id, s), false, nil
}

func (r *Room) gameConfigLocked(sessionID string, s *Slot) GameConfig {
	roster := make([]Roster, 0, len(r.slots))
	for _, other := range r.slots {
		roster = append(roster, Roster{EID: uint16(other.EID), CharacterID: other.CharacterID})
	}
	return GameConfig{
		Seed:        r.seed,
		SessionID:   sessionID,
		PlayerEID:   uint16(s.EID),
		CharacterID: s.CharacterID,
		Roster:      roster,
	}
}

// Roster returns the current roster; exported for callers that want
// to broadcast a fresh player-roster after a join/leave.
func (r *Room) Roster() []Roster {
	r.mu.Lock()
	defer r.mu.Unlock()
	roster := make([]Roster, 0, len(r.slots))
	for _, s := range r.slots {
		roster = append(roster, Roster{EID: uint16(s.EID), CharacterID: s.CharacterID})
	}
	return roster
}

// Leave starts the reconnect grace window for a session. The
// entity is not removed until the grace expires (checked by the driver).
func (r *Room) Leave(sessionID string) {
	r.mu.Lock()
	s, ok := r.slots[sessionID]
	r.mu.Unlock()
	if !ok {
		return
	}
	s.Disconnect(time.Now(), time.Duration(r.cfg.ReconnectGraceSeconds*float64(time.Second)))
}

// HandleInput validates, clamps and enqueues one "input" message's data.
// notifyMismatch is true exactly once per slot, the first time a command
// is missing required timing fields.
func (r *Room) HandleInput(sessionID string, raw json.RawMessage) (notifyMismatch bool) {
	r.mu.Lock()
	s, ok := r.slots[sessionID]
	r.mu.Unlock()
	if !ok {
		return false
	}

	wire, err := parseWireInput(raw)
	if err != nil {
		return false
	}
	cmd, ok, missingTiming := validateAndClamp(wire, ecs.ButtonDebugSpawn)
	if !ok {
		if missingTiming && s.NeedsProtocolMismatchNotice() {
			return true
		}
		return false
	}

	_, rateLimited := s.Enqueue(cmd, r.cfg.InputQueueDepth)
	if rateLimited {
		r.mu.Lock()
		hub := r.hub
		r.mu.Unlock()
		if hub != nil {
			hub.RecordRateLimitedDrop()
		}
	}
	return false
}

// SetCharacter updates a lobby-phase character selection.
func (r *Room) SetCharacter(sessionID, characterID string) {
	if !CharacterIDs[characterID] {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.slots[sessionID]; ok {
		s.CharacterID = characterID
	}
}

// SetReady updates the lobby-ready flag for a session. Once every session
// is ready the lobby phase is over: the run starts and the wave spawner
// goes live.
func (r *Room) SetReady(sessionID string, ready bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[sessionID]
	if !ok {
		return
	}
	s.Ready = ready
	if !r.progress.Started && r.allReadyLocked() {
		r.progress.Started = true
		log.Printf("room: all %d players ready, run started at tick %d", len(r.slots), r.world.Tick)
	}
}

func (r *Room) allReadyLocked() bool {
	if len(r.slots) == 0 {
		return false
	}
	for _, s := range r.slots {
		if !s.Ready {
			return false
		}
	}
	return true
}

// Started reports whether the lobby phase has ended.
func (r *Room) Started() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progress.Started
}

// SetCampReady updates the camp-transition-ready flag for a session.
func (r *Room) SetCampReady(sessionID string, ready bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.slots[sessionID]; ok {
		s.CampReady = ready
	}
}

// GameConfig re-derives the game-config payload for a session, used to
// answer request-game-config.
func (r *Room) GameConfig(sessionID string) (GameConfig, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[sessionID]
	if !ok {
		return GameConfig{}, false
	}
	return r.gameConfigLocked(sessionID, s), true
}

// SelectNode validates and — since node effects are opaque to this core —
// acknowledges a skill purchase. It succeeds for any nonempty id of at most
// MaxNodeIDLen bytes from a session the room knows; ids are not checked
// against a list of valid nodes.
func (r *Room) SelectNode(sessionID, nodeID string) (success bool) {
	if len(nodeID) == 0 || len(nodeID) > MaxNodeIDLen {
		return false
	}
	r.mu.Lock()
	_, ok := r.slots[sessionID]
	r.mu.Unlock()
	return ok
}

// ServerTimeMs reports the simulation clock in milliseconds — the same time
// base the snapshot header carries and the lag-compensation age estimate
// runs on, so a client syncing against pong gets a usable
// estimatedServerTimeMs.
func (r *Room) ServerTimeMs() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.world.Time * 1000
}

// Stats returns a copy of the most recently published telemetry snapshot.
func (r *Room) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func newSessionID() string {
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, 20)
	for i := range b {
		b[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return string(b)
}
