package room

import (
	"log"
	"math"
	"sort"
	"time"

	"showdown-arena/internal/ecs"
	"showdown-arena/internal/netcode"
)

// Hub is the outbound delivery and telemetry surface the driver pushes
// frames, messages and metrics through. internal/api's websocket layer
// implements it against the package's Prometheus collectors.
type Hub interface {
	BroadcastSnapshot(frame []byte)
	SendJSON(sessionID string, msg Envelope)
	SendBinary(sessionID string, frame []byte)

	RecordTickDuration(d time.Duration)
	RecordRateLimitedDrop()
	RecordRewindHistoryMiss()
	ObserveRewindDepth(ticks float64)
	UpdatePlayersConnected(count int)
}

// HUD is the per-client JSON frame emitted every HUDIntervalTicks: HP,
// ammo, ability timings, XP/level, and wave/stage progress. Fields beyond
// these are additive.
type HUD struct {
	Tick  uint64 `json:"tick"`
	HP    int16  `json:"hp"`
	MaxHP int16  `json:"maxHp"`

	Ammo        int   `json:"ammo"`
	AmmoMax     int   `json:"ammoMax"`
	ReloadTicks int32 `json:"reloadTicks"`

	AbilityCooldownTicks int32 `json:"abilityCooldownTicks"`
	AbilityActiveTicks   int32 `json:"abilityActiveTicks"`

	XP    uint32 `json:"xp"`
	Level int32  `json:"level"`

	Wave  int32 `json:"wave"`
	Stage int32 `json:"stage"`
}

// telemetryWindow accumulates the per-shot statistics published every
// TelemetryIntervalTicks and reset afterwards.
type telemetryWindow struct {
	rewindDepths []int64
	shots        int
	latencySumMs float64
	interpSumMs  float64
	ageSumMs     float64
}

func (t *telemetryWindow) reset() {
	t.rewindDepths = t.rewindDepths[:0]
	t.shots = 0
	t.latencySumMs = 0
	t.interpSumMs = 0
	t.ageSumMs = 0
}

// Start launches the fixed-timestep loop in a new goroutine and
// returns immediately. Stop ends it.
func (r *Room) Start(hub Hub) {
	r.mu.Lock()
	r.hub = hub
	r.mu.Unlock()
	go r.run(hub)
}

// Stop signals the driver goroutine to exit and waits for it.
func (r *Room) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *Room) run(hub Hub) {
	defer close(r.doneCh)

	tickMs := 1000.0 / float64(r.cfg.TickHz)
	interval := time.Duration(tickMs * float64(time.Millisecond))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var accumulator float64
	last := time.Now()

	var window telemetryWindow

	for {
		select {
		case <-r.stopCh:
			return
		case now := <-ticker.C:
			elapsedMs := float64(now.Sub(last).Milliseconds())
			last = now
			accumulator += elapsedMs

			ticks := 0
			for accumulator >= tickMs && ticks < r.cfg.MaxCatchupTicks {
				r.step(hub, &window)
				accumulator -= tickMs
				ticks++
			}
			if ticks == r.cfg.MaxCatchupTicks {
				accumulator = 0 // spiral-of-death guard
			}
		}
	}
}

// step runs exactly one simulation tick: rewind recording, input
// selection, lag-comp bookkeeping, the system registry, and the periodic
// snapshot/HUD/telemetry emissions.
func (r *Room) step(hub Hub, window *telemetryWindow) {
	start := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	defer func() { hub.RecordTickDuration(time.Since(start)) }()

	r.reapExpiredLocked()

	// Step 1: record rewind frame for the current (pre-step) tick.
	r.history.Record(r.world)

	// Step 2: clear per-tick lag-comp metadata.
	for k := range r.world.LagCompShotTickByPlayer {
		delete(r.world.LagCompShotTickByPlayer, k)
	}

	tickMs := 1000.0 / float64(r.cfg.TickHz)
	nowMs := r.world.Time * 1000

	for eid, sessionID := range r.eidToSession {
		s := r.slots[sessionID]
		if s == nil {
			continue
		}

		cmd, fresh := s.TrimAndSelect(r.cfg)

		if fresh {
			s.TickMapper.UpdateOffset(int64(r.world.Tick), cmd.ClientTick)
		}

		if cmd.Buttons&ecs.ButtonShoot != 0 {
			if fresh {
				est := r.estimateShotTickLocked(s, cmd, nowMs, tickMs)
				clamped := netcode.ClampRewindTick(int64(r.world.Tick), est.tick, int64(r.maxRewindTicks()))
				r.world.LagCompShotTickByPlayer[eid] = clamped.Tick
				s.NoteShootSeq(cmd.ShootSeq)

				if clamped.Clamped {
					r.stats.ClampedShots++
				}
				if !r.history.HasTick(clamped.Tick) {
					r.stats.RewindHistoryMiss++
					hub.RecordRewindHistoryMiss()
				}
				depth := int64(r.world.Tick) - clamped.Tick
				window.rewindDepths = append(window.rewindDepths, depth)
				window.shots++
				window.latencySumMs += est.latencyMs
				window.interpSumMs += est.interpMs
				window.ageSumMs += float64(depth) * tickMs
				hub.ObserveRewindDepth(float64(depth))
			} else {
				r.stats.HeldInputShotSkips++
			}
		}

		r.world.PlayerInputs[eid] = ecs.Input{
			Buttons:    cmd.Buttons,
			AimAngle:   cmd.AimAngle,
			MoveX:      cmd.MoveX,
			MoveY:      cmd.MoveY,
			CursorX:    cmd.CursorWorldX,
			CursorY:    cmd.CursorWorldY,
			Seq:        cmd.Seq,
			ClientTick: cmd.ClientTick,
			Fresh:      fresh,
		}
	}

	// Step 8: advance the simulation.
	r.stepSystemsLocked()

	tick := r.world.Tick

	// Step 9: periodic snapshot + HUD emission.
	if tick%uint64(r.cfg.SnapshotIntervalTicks) == 0 {
		playerSeqs := make(map[ecs.EntityID]uint32, len(r.slots))
		for _, s := range r.slots {
			playerSeqs[s.EID] = s.LastProcessedSeq()
		}
		frame := r.encoder.Encode(r.world, float32(r.world.Time), playerSeqs)
		sent := make([]byte, len(frame))
		copy(sent, frame)
		hub.BroadcastSnapshot(sent)
	}

	if tick%uint64(r.cfg.HUDIntervalTicks) == 0 {
		for sessionID, s := range r.slots {
			hud := r.hudForLocked(s)
			hub.SendJSON(sessionID, Envelope{Type: MsgHUD, Data: hud})
		}
	}

	// Step 10: periodic telemetry.
	if tick%uint64(r.cfg.TelemetryIntervalTicks) == 0 {
		r.publishTelemetryLocked(hub, window)
		window.reset()
	}
}

// stepSystemsLocked runs the system registry for one tick. A panicking
// system aborts the remaining systems for this tick; the panic is logged,
// the tick is not re-run, and the clock still advances so the snapshot and
// telemetry cadences keep moving.
func (r *Room) stepSystemsLocked() {
	before := r.world.Tick
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("room: system panic at tick %d: %v", before, rec)
			if r.world.Tick == before {
				r.world.Tick++
				r.world.Time += 1.0 / float64(r.cfg.TickHz)
			}
		}
	}()
	r.reg.Step(r.world, float32(1.0/float64(r.cfg.TickHz)))
}

func (r *Room) maxRewindTicks() int64 {
	return int64(r.cfg.MaxRewindMs * float64(r.cfg.TickHz) / 1000)
}

// shotEstimate is one SHOOT command's reconstructed timing: the rewind tick
// plus the latency/interp observations that feed the telemetry means.
type shotEstimate struct {
	tick      int64
	latencyMs float64
	interpMs  float64
}

// estimateShotTickLocked projects a shot into server tick space: the
// time-based estimate when the command carries usable timing metadata, the
// tick-mapper estimate otherwise.
func (r *Room) estimateShotTickLocked(s *Slot, cmd CommandInput, nowMs, tickMs float64) shotEstimate {
	viewDelay := cmd.ViewInterpDelayMs
	if viewDelay < 0 {
		viewDelay = 0
	}
	if viewDelay > r.cfg.ViewInterpDelayMaxMs {
		viewDelay = r.cfg.ViewInterpDelayMaxMs
	}

	if cmd.EstimatedServerTimeMs > 0 {
		latency := nowMs - cmd.EstimatedServerTimeMs
		ageMs := r.cfg.LatencyWeight*latency + r.cfg.ViewWeight*viewDelay
		if ageMs >= 0 {
			return shotEstimate{
				tick:      int64(r.world.Tick) - int64(math.Floor(ageMs/tickMs)),
				latencyMs: latency,
				interpMs:  viewDelay,
			}
		}
	}
	return shotEstimate{
		tick:     s.TickMapper.EstimateServerTick(cmd.ClientTick),
		interpMs: viewDelay,
	}
}

func (r *Room) hudForLocked(s *Slot) HUD {
	hud := HUD{Tick: r.world.Tick, Wave: r.progress.Wave, Stage: r.progress.Stage}
	if r.world.IsAlive(s.EID) {
		h := r.world.Healths[s.EID]
		hud.HP = h.Current
		hud.MaxHP = h.Max

		cyl := r.world.Cylinders[s.EID]
		hud.Ammo = int(cyl.Rounds)
		hud.AmmoMax = int(cyl.Capacity)
		hud.ReloadTicks = cyl.ReloadTicksRemaining

		sd := r.world.Showdowns[s.EID]
		hud.AbilityCooldownTicks = sd.CooldownTicksRemaining
		hud.AbilityActiveTicks = sd.ActiveTicksRemaining

		hud.XP = r.progress.XP[s.EID]
		hud.Level = r.progress.Level(s.EID, r.simCfg.XPPerLevel)
	}
	return hud
}

// reapExpiredLocked removes entities whose reconnect grace has elapsed.
func (r *Room) reapExpiredLocked() {
	now := time.Now()
	for sessionID, s := range r.slots {
		if s.GraceExpired(now) {
			r.world.RemoveEntity(s.EID)
			delete(r.eidToSession, s.EID)
			delete(r.slots, sessionID)
		}
	}
}

func (r *Room) publishTelemetryLocked(hub Hub, window *telemetryWindow) {
	var drops uint64
	connected := 0
	for _, s := range r.slots {
		drops += s.RateLimitedDrops()
		if s.Connected() {
			connected++
		}
	}

	p50, p95 := percentiles(window.rewindDepths)
	meanLatency, meanInterp, meanAge := 0.0, 0.0, 0.0
	if window.shots > 0 {
		n := float64(window.shots)
		meanLatency = window.latencySumMs / n
		meanInterp = window.interpSumMs / n
		meanAge = window.ageSumMs / n
	}

	r.stats.Tick = r.world.Tick
	r.stats.PlayersConnected = connected
	r.stats.RateLimitedDrops = drops
	r.stats.RewindDepthP50 = p50
	r.stats.RewindDepthP95 = p95

	hub.UpdatePlayersConnected(connected)
	log.Printf("room: rate-limit tick=%d players=%d drops_total=%d",
		r.stats.Tick, connected, drops)
	log.Printf("room: rewind tick=%d shots=%d miss_total=%d clamped_total=%d depth_p50=%.1f depth_p95=%.1f mean_latency_ms=%.1f mean_interp_ms=%.1f mean_age_ms=%.1f held_shot_skips=%d",
		r.stats.Tick, window.shots, r.stats.RewindHistoryMiss, r.stats.ClampedShots, p50, p95,
		meanLatency, meanInterp, meanAge, r.stats.HeldInputShotSkips)
}

func percentiles(samples []int64) (p50, p95 float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	sorted := append([]int64(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	at := func(p float64) float64 {
		idx := int(p * float64(len(sorted)-1))
		return float64(sorted[idx])
	}
	return at(0.5), at(0.95)
}
