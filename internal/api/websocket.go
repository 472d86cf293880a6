package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"showdown-arena/internal/room"

	"github.com/gorilla/websocket"
)

const (
	// MaxWSConnectionsTotal is the maximum number of WebSocket connections allowed
	MaxWSConnectionsTotal = 500

	// MaxWSConnectionsPerIP is the maximum WebSocket connections per IP
	MaxWSConnectionsPerIP = 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		if IsAllowedOrigin(origin) {
			return true
		}

		log.Printf("websocket connection rejected from origin: %s", origin)
		RecordConnectionRejected("origin")
		return false
	},
}

// wsSession is one connected client's outbound plumbing. JSON control
// messages and binary snapshot frames share the one connection; writeMu
// serializes every write to it.
type wsSession struct {
	conn      *websocket.Conn
	ip        string
	sessionID string

	writeMu sync.Mutex
}

// RoomHub implements room.Hub: it fans snapshot frames and per-client
// JSON messages out over WebSocket and keeps the connection and message
// metrics current.
type RoomHub struct {
	mu       sync.RWMutex
	sessions map[string]*wsSession

	wsLimiter *WebSocketRateLimiter
	rm        *room.Room
}

// NewRoomHub creates a hub bound to the given room. The room's join/leave
// and message-handling methods are invoked directly from the read pump
// here: a single mutex-guarded simulation fed by multiple connection
// goroutines.
func NewRoomHub(rm *room.Room) *RoomHub {
	return &RoomHub{
		sessions:  make(map[string]*wsSession),
		wsLimiter: NewWebSocketRateLimiter(MaxWSConnectionsPerIP),
		rm:        rm,
	}
}

// ClientCount returns the number of connected clients.
func (h *RoomHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// BroadcastSnapshot sends a binary snapshot frame to every connected
// session, best-effort (a write error drops that client only).
func (h *RoomHub) BroadcastSnapshot(frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.sessions {
		h.writeBinary(s, frame)
	}
}

// SendBinary delivers a binary frame to one session, if still connected.
func (h *RoomHub) SendBinary(sessionID string, frame []byte) {
	h.mu.RLock()
	s, ok := h.sessions[sessionID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	h.writeBinary(s, frame)
}

// SendJSON delivers one control-message envelope to a session, if still
// connected. sessionID == "" is a no-op (used by telemetry callers that
// have no single recipient).
func (h *RoomHub) SendJSON(sessionID string, msg room.Envelope) {
	if sessionID == "" {
		return
	}
	h.mu.RLock()
	s, ok := h.sessions[sessionID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := s.conn.WriteMessage(websocket.TextMessage, body); err != nil {
		s.conn.Close()
	} else {
		IncrementWSMessages()
	}
}

func (h *RoomHub) writeBinary(s *wsSession, frame []byte) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := s.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		s.conn.Close()
	} else {
		IncrementWSMessages()
	}
}

// RecordTickDuration, RecordRateLimitedDrop, RecordRewindHistoryMiss,
// ObserveRewindDepth and UpdatePlayersConnected satisfy room.Hub by
// forwarding straight into the package's Prometheus collectors.
func (h *RoomHub) RecordTickDuration(d time.Duration) { RecordTick(d) }
func (h *RoomHub) RecordRateLimitedDrop()             { RecordRateLimitedDrop() }
func (h *RoomHub) RecordRewindHistoryMiss()           { RecordRewindHistoryMiss() }
func (h *RoomHub) ObserveRewindDepth(ticks float64)   { ObserveRewindDepth(ticks) }
func (h *RoomHub) UpdatePlayersConnected(count int)   { UpdatePlayersConnected(count) }

// inboundEnvelope is the generic shape of a client->server control
// message; Data is re-decoded per MessageType by the handler below.
type inboundEnvelope struct {
	Type room.MessageType `json:"type"`
	Data json.RawMessage  `json:"data"`
}

// HandleWebSocket upgrades the connection, joins the room, and runs the
// read pump for this client until it disconnects.
func (h *RoomHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	if h.ClientCount() >= MaxWSConnectionsTotal {
		log.Printf("websocket connection rejected: total limit reached")
		RecordConnectionRejected("ws_total_limit")
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}

	if !h.wsLimiter.Allow(ip) {
		log.Printf("websocket connection rejected from %s: per-IP limit reached", ip)
		RecordConnectionRejected("ws_ip_limit")
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		h.wsLimiter.Release(ip)
		return
	}

	characterID := r.URL.Query().Get("characterId")
	prevSessionID := r.URL.Query().Get("sessionId")
	sessionID, _, cfgMsg, _, joinErr := h.rm.Join(prevSessionID, characterID)
	if joinErr != nil {
		_ = conn.WriteJSON(room.Envelope{Type: room.MsgIncompatibleProtocol, Data: joinErr.Error()})
		conn.Close()
		h.wsLimiter.Release(ip)
		return
	}

	s := &wsSession{conn: conn, ip: ip, sessionID: sessionID}

	h.mu.Lock()
	h.sessions[sessionID] = s
	h.mu.Unlock()
	UpdateWSConnections(h.ClientCount())

	h.SendJSON(sessionID, room.Envelope{Type: room.MsgGameConfig, Data: cfgMsg})
	h.broadcastRoster()

	h.readPump(s)
}

func (h *RoomHub) readPump(s *wsSession) {
	defer func() {
		h.rm.Leave(s.sessionID)
		h.mu.Lock()
		delete(h.sessions, s.sessionID)
		h.mu.Unlock()
		h.wsLimiter.Release(s.ip)
		s.conn.Close()
		UpdateWSConnections(h.ClientCount())
		h.broadcastRoster()
	}()

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var env inboundEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}

		switch env.Type {
		case room.MsgInput:
			if h.rm.HandleInput(s.sessionID, env.Data) {
				h.SendJSON(s.sessionID, room.Envelope{Type: room.MsgIncompatibleProtocol})
			}

		case room.MsgPing:
			var body struct {
				ClientTime float64 `json:"clientTime"`
			}
			_ = json.Unmarshal(env.Data, &body)
			h.SendJSON(s.sessionID, room.Envelope{Type: room.MsgPong, Data: room.Pong{
				ClientTime: body.ClientTime,
				ServerTime: h.rm.ServerTimeMs(),
			}})

		case room.MsgSetReady:
			var body struct {
				Ready bool `json:"ready"`
			}
			if json.Unmarshal(env.Data, &body) == nil {
				h.rm.SetReady(s.sessionID, body.Ready)
			}

		case room.MsgSetCharacter:
			var body struct {
				CharacterID string `json:"characterId"`
			}
			if json.Unmarshal(env.Data, &body) == nil {
				h.rm.SetCharacter(s.sessionID, body.CharacterID)
			}

		case room.MsgSetCampReady:
			var body struct {
				Ready bool `json:"ready"`
			}
			if json.Unmarshal(env.Data, &body) == nil {
				h.rm.SetCampReady(s.sessionID, body.Ready)
			}

		case room.MsgRequestGameConfig:
			if cfg, ok := h.rm.GameConfig(s.sessionID); ok {
				h.SendJSON(s.sessionID, room.Envelope{Type: room.MsgGameConfig, Data: cfg})
			}

		case room.MsgSelectNode:
			var body struct {
				NodeID string `json:"nodeId"`
			}
			success := false
			if json.Unmarshal(env.Data, &body) == nil {
				success = h.rm.SelectNode(s.sessionID, body.NodeID)
			}
			h.SendJSON(s.sessionID, room.Envelope{
				Type: room.MsgSelectNodeResult,
				Data: map[string]any{"success": success, "nodeId": body.NodeID},
			})
		}
	}
}

func (h *RoomHub) broadcastRoster() {
	roster := h.rm.Roster()

	h.mu.RLock()
	ids := make([]string, 0, len(h.sessions))
	for sessionID := range h.sessions {
		ids = append(ids, sessionID)
	}
	h.mu.RUnlock()

	for _, sessionID := range ids {
		h.SendJSON(sessionID, room.Envelope{Type: room.MsgPlayerRoster, Data: roster})
	}
}
