package room

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"showdown-arena/internal/config"
	"showdown-arena/internal/ecs"
	"showdown-arena/internal/netcode"
)

// Slot is the per-session state: input queue, rate limiter, last-processed
// sequence, held-input counter, and tick mapper.
// Outbound transport (buffering, backpressure) is owned by internal/api's
// hub, keyed by session id, not by this type.
type Slot struct {
	mu sync.Mutex

	EID           ecs.EntityID
	CharacterID   string
	Ready         bool
	CampReady     bool

	queue              []CommandInput
	lastProcessedSeq   uint32
	lastEnqueuedSeq    uint32
	lastInput          CommandInput
	heldInputTicks     int
	rateLimitedDrops   uint64
	lastShootSeq       uint32

	protocolMismatchNotified bool

	limiter    *rate.Limiter
	TickMapper *netcode.TickMapper

	connected    bool
	disconnectAt time.Time
}

// NewSlot creates a fresh slot for a newly joined (or rejoined) session.
func NewSlot(eid ecs.EntityID, characterID string, cfg config.RoomConfig) *Slot {
	return &Slot{
		EID:         eid,
		CharacterID: characterID,
		connected:   true,
		limiter:     rate.NewLimiter(rate.Limit(cfg.TokenBucketRefillPerSec), int(cfg.TokenBucketCapacity)),
		TickMapper:  netcode.NewTickMapper(),
	}
}

// Reconnect clears the queue, token bucket, held-input counter, tick mapper
// and shoot-seq, and marks the slot live again.
func (s *Slot) Reconnect(cfg config.RoomConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = nil
	s.heldInputTicks = 0
	s.lastShootSeq = 0
	s.TickMapper.Reset()
	s.limiter = rate.NewLimiter(rate.Limit(cfg.TokenBucketRefillPerSec), int(cfg.TokenBucketCapacity))
	s.connected = true
	s.protocolMismatchNotified = false
}

// Disconnect marks the slot as holding for the reconnect grace window.
func (s *Slot) Disconnect(now time.Time, grace time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	s.disconnectAt = now.Add(grace)
	s.queue = nil
}

// Connected reports whether the slot currently has a live transport.
func (s *Slot) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// GraceExpired reports whether a disconnected slot's reconnect window has
// elapsed.
func (s *Slot) GraceExpired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.connected && now.After(s.disconnectAt)
}

// Enqueue validates nothing itself (the caller already ran
// validateAndClamp) — it applies the sequence discipline, rate limit,
// and queue-depth policy, reporting dropped=true if the command was
// discarded (rateLimited=true when the token bucket was the cause).
func (s *Slot) Enqueue(cmd CommandInput, maxDepth int) (dropped bool, rateLimited bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cmd.Seq <= s.lastProcessedSeq || cmd.Seq <= s.lastEnqueuedSeq {
		return true, false
	}

	if !s.limiter.Allow() {
		s.rateLimitedDrops++
		return true, true
	}

	s.queue = append(s.queue, cmd)
	s.lastEnqueuedSeq = cmd.Seq

	if len(s.queue) > maxDepth {
		// drop-oldest, newest wins
		s.queue = s.queue[len(s.queue)-maxDepth:]
	}
	return false, false
}

// TrimAndSelect trims an overgrown queue while OR-merging the transient
// action bits of dropped commands into the oldest surviving command (the
// one selected next), then
// selects this tick's input: the oldest queued command if any, a held copy
// of the last real input for a few ticks after the queue empties, and the
// frozen neutral input after that. fresh reports whether the selection came
// from a real (non-synthesized) command.
func (s *Slot) TrimAndSelect(cfg config.RoomConfig) (cmd CommandInput, fresh bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) > cfg.InputTrimDepth {
		keep := cfg.InputTrimKeep
		if keep < 1 {
			keep = 1
		}
		if keep > len(s.queue) {
			keep = len(s.queue)
		}
		dropped := s.queue[:len(s.queue)-keep]
		surviving := s.queue[len(s.queue)-keep:]
		var merged uint32
		for _, d := range dropped {
			merged |= d.Buttons & ecs.TransientButtons
		}
		surviving[0].Buttons |= merged
		s.queue = surviving
	}

	if len(s.queue) > 0 {
		cmd = s.queue[0]
		s.queue = s.queue[1:]
		s.lastProcessedSeq = cmd.Seq
		s.lastInput = cmd
		s.heldInputTicks = 0
		return cmd, true
	}

	if s.heldInputTicks < cfg.HeldInputTicks {
		s.heldInputTicks++
		held := s.lastInput
		held.Buttons &^= ecs.TransientButtons
		tickMs := 1000.0 / float64(cfg.TickHz)
		held.ClientTick++
		held.ClientTimeMs += tickMs
		held.EstimatedServerTimeMs += tickMs
		s.lastInput = held
		return held, false
	}

	return CommandInput{}, false
}

// LastProcessedSeq returns the sequence number the slot last popped from
// its queue, for encoding into the player record.
func (s *Slot) LastProcessedSeq() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastProcessedSeq
}

// NoteShootSeq advances lastShootSeq monotonically.
func (s *Slot) NoteShootSeq(seq uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq > s.lastShootSeq {
		s.lastShootSeq = seq
	}
}

// RateLimitedDrops returns the cumulative drop count for telemetry.
func (s *Slot) RateLimitedDrops() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rateLimitedDrops
}

// NeedsProtocolMismatchNotice reports and latches the one-per-slot
// incompatible-protocol notification.
func (s *Slot) NeedsProtocolMismatchNotice() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.protocolMismatchNotified {
		return false
	}
	s.protocolMismatchNotified = true
	return true
}
