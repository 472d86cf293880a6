// Package room implements the per-client Room/Session Controller (C6) and
// the fixed-timestep Simulation Driver (C7): per-slot input queues, the
// token-bucket rate limiter, the reconnect grace window, and the tick loop
// that ties the ECS world, gameplay systems, rewind history, tick mapper
// and snapshot codec together into one networked arena.
package room

import (
	"bytes"
	"encoding/json"
	"math"
)

// MessageType names the JSON envelope's "type" field for every control
// message on the wire. Binary snapshot frames are sent as a distinct
// websocket binary message, not wrapped in this envelope.
type MessageType string

const (
	// Client -> server
	MsgInput              MessageType = "input"
	MsgPing                MessageType = "ping"
	MsgSetReady            MessageType = "set-ready"
	MsgSetCharacter        MessageType = "set-character"
	MsgSetCampReady        MessageType = "set-camp-ready"
	MsgRequestGameConfig   MessageType = "request-game-config"
	MsgSelectNode          MessageType = "select-node"

	// Server -> client
	MsgGameConfig           MessageType = "game-config"
	MsgPlayerRoster         MessageType = "player-roster"
	MsgHUD                  MessageType = "hud"
	MsgPong                 MessageType = "pong"
	MsgIncompatibleProtocol MessageType = "incompatible-protocol"
	MsgSelectNodeResult     MessageType = "select-node-result"
)

// Envelope is the generic shape every JSON control message arrives and
// leaves in: {"type": "...", "data": {...}}.
type Envelope struct {
	Type MessageType `json:"type"`
	Data any         `json:"data,omitempty"`
}

// Pong is the server's reply to a ping: the client's timestamp echoed back
// plus the simulation clock, both in milliseconds.
type Pong struct {
	ClientTime float64 `json:"clientTime"`
	ServerTime float64 `json:"serverTime"`
}

// CharacterIDs is the allowlist of playable characters.
var CharacterIDs = map[string]bool{
	"sheriff":    true,
	"undertaker": true,
	"prospector": true,
}

// MaxNodeIDLen bounds a select-node id. Ids from sessions this room does
// not know are rejected outright — node purchases fail closed.
const MaxNodeIDLen = 64

// WireInput is the raw, untrusted JSON shape of an incoming "input"
// message's data field.
type WireInput struct {
	Seq                   float64
	ClientTick            float64
	ClientTimeMs          float64
	EstimatedServerTimeMs float64
	ViewInterpDelayMs     float64
	ShootSeq              float64
	Buttons               float64
	AimAngle              float64
	MoveX                 float64
	MoveY                 float64
	CursorWorldX          float64
	CursorWorldY          float64

	// present tracks which fields actually appeared in the decoded JSON so
	// validation can tell "absent" (incompatible protocol) from "present
	// but non-finite" (drop, no notification).
	present map[string]bool
}

// parseWireInput decodes raw into a WireInput, recording which of the
// required fields were actually present in the JSON object (as opposed to
// defaulting to zero). A non-object payload is rejected outright.
func parseWireInput(raw json.RawMessage) (WireInput, error) {
	var obj map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil {
		return WireInput{}, err
	}

	in := WireInput{present: make(map[string]bool, len(requiredFields))}
	get := func(name string) float64 {
		raw, ok := obj[name]
		if !ok {
			return 0
		}
		in.present[name] = true
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return math.NaN()
		}
		f, err := n.Float64()
		if err != nil {
			return math.NaN()
		}
		return f
	}

	in.Seq = get("seq")
	in.ClientTick = get("clientTick")
	in.ClientTimeMs = get("clientTimeMs")
	in.EstimatedServerTimeMs = get("estimatedServerTimeMs")
	in.ViewInterpDelayMs = get("viewInterpDelayMs")
	in.ShootSeq = get("shootSeq")
	in.Buttons = get("buttons")
	in.AimAngle = get("aimAngle")
	in.MoveX = get("moveX")
	in.MoveY = get("moveY")
	in.CursorWorldX = get("cursorWorldX")
	in.CursorWorldY = get("cursorWorldY")
	return in, nil
}

// requiredFields is every field a well-formed input command must carry.
// timingFields is the subset whose *absence* (not just invalidity) triggers
// the one-time incompatible-protocol notice.
var requiredFields = []string{
	"seq", "clientTick", "clientTimeMs", "estimatedServerTimeMs",
	"viewInterpDelayMs", "shootSeq", "buttons", "aimAngle", "moveX", "moveY",
	"cursorWorldX", "cursorWorldY",
}

var timingFields = []string{
	"clientTimeMs", "estimatedServerTimeMs", "viewInterpDelayMs",
}

// CommandInput is a validated, clamped command sitting in a slot's queue.
type CommandInput struct {
	Seq                   uint32
	ClientTick            int64
	ClientTimeMs          float64
	EstimatedServerTimeMs float64
	ViewInterpDelayMs     float64
	ShootSeq              uint32
	Buttons               uint32
	AimAngle              float32
	MoveX, MoveY          float32
	CursorWorldX          float32
	CursorWorldY          float32
}

// validateAndClamp checks that every required field is present and finite,
// then clamps each into its legal range. ok is false if any required field
// is non-finite;
// missingTiming is true when a field named in timingFields is altogether
// absent from the decoded JSON (as opposed to present-but-invalid), which
// is the trigger for the one-time incompatible-protocol notice.
func validateAndClamp(in WireInput, serverOnlyButtonMask uint32) (cmd CommandInput, ok bool, missingTiming bool) {
	missingAny := false
	for _, f := range requiredFields {
		if !in.present[f] {
			missingAny = true
			for _, t := range timingFields {
				if t == f {
					missingTiming = true
				}
			}
		}
	}
	if missingAny {
		return CommandInput{}, false, missingTiming
	}

	fields := []float64{
		in.Seq, in.ClientTick, in.ClientTimeMs, in.EstimatedServerTimeMs,
		in.ViewInterpDelayMs, in.ShootSeq, in.Buttons, in.AimAngle,
		in.MoveX, in.MoveY, in.CursorWorldX, in.CursorWorldY,
	}
	for _, v := range fields {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return CommandInput{}, false, missingTiming
		}
	}

	seq := in.Seq
	if seq < 1 {
		seq = 1
	}
	cmd.Seq = uint32(seq)

	clientTick := in.ClientTick
	if clientTick < 0 {
		clientTick = 0
	}
	cmd.ClientTick = int64(clientTick)

	shootSeq := in.ShootSeq
	if shootSeq < 0 {
		shootSeq = 0
	}
	cmd.ShootSeq = uint32(shootSeq)

	buttons := uint32(in.Buttons) &^ serverOnlyButtonMask
	cmd.Buttons = buttons

	cmd.AimAngle = clampF32(float32(in.AimAngle), -math.Pi, math.Pi)
	cmd.MoveX = clampF32(float32(in.MoveX), -1, 1)
	cmd.MoveY = clampF32(float32(in.MoveY), -1, 1)
	cmd.CursorWorldX = clampF32(float32(in.CursorWorldX), -10000, 10000)
	cmd.CursorWorldY = clampF32(float32(in.CursorWorldY), -10000, 10000)
	cmd.ViewInterpDelayMs = clampF64(in.ViewInterpDelayMs, 0, 200)

	cmd.ClientTimeMs = in.ClientTimeMs
	cmd.EstimatedServerTimeMs = in.EstimatedServerTimeMs

	return cmd, true, missingTiming
}

func clampF32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampF64(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
