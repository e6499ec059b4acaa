package app

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/avdeenkov/pairchat/internal/domain"
)

// Frame is a raw JSON payload going out over a connection.
type Frame []byte

// Conn abstracts a client connection for the gateway. Owned by the
// adapter; the adapter must Close() it on transport errors, the gateway
// calls Close() only for forced teardown.
type Conn interface {
	ID() domain.ConnID
	SourceKey() string
	TrySend(Frame) error
	Close()
}

// Join rejection reasons as delivered in the ack.
const (
	ReasonRateLimited  = "too_many_attempts"
	ReasonRoomNotFound = "room_not_found"
	ReasonRoomFull     = "room_full"
	ReasonBadCode      = "bad_code"
)

type systemEvent struct {
	Type  string `json:"type"`
	Txt   string `json:"txt"`
	Count int    `json:"count"`
}

type countEvent struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// Gateway is the connection-facing layer: it admits joins, relays chat
// frames, and fans lifecycle notices out to a room's broadcast group.
// It owns the conn→room table and the room→conns groups; room state
// itself is only ever touched through the registry.
type Gateway struct {
	registry *Registry
	attempts *AttemptLimiter

	mu       sync.Mutex
	connRoom map[domain.ConnID]domain.RoomID
	groups   map[domain.RoomID]map[domain.ConnID]Conn
}

func NewGateway(reg *Registry, attempts *AttemptLimiter) *Gateway {
	gw := &Gateway{
		registry: reg,
		attempts: attempts,
		connRoom: make(map[domain.ConnID]domain.RoomID),
		groups:   make(map[domain.RoomID]map[domain.ConnID]Conn),
	}
	reg.SetExpireHook(gw.expireRoom)
	return gw
}

// Join admits conn into a room. The attempt limiter runs first and is
// independent of room validity; a rate-limited source learns nothing
// about the room id it probed.
func (gw *Gateway) Join(conn Conn, roomID, code string) {
	if !gw.attempts.Attempt(conn.SourceKey()) {
		log.Warn().Str("module", "app.gateway").Str("source", conn.SourceKey()).Msg("join rate limited")
		gw.sendNack(conn, ReasonRateLimited)
		return
	}

	// A connection occupies at most one room; a re-join detaches it from
	// the current room first, running the normal leave path.
	gw.Disconnect(conn)

	id := domain.RoomID(roomID)
	st, err := gw.registry.Join(id, code, conn.ID())
	if err != nil {
		switch err {
		case domain.ErrRoomNotFound:
			gw.sendNack(conn, ReasonRoomNotFound)
		case domain.ErrRoomFull:
			gw.sendNack(conn, ReasonRoomFull)
		default:
			gw.sendNack(conn, ReasonBadCode)
		}
		return
	}

	gw.mu.Lock()
	gw.connRoom[conn.ID()] = id
	group := gw.groups[id]
	if group == nil {
		group = make(map[domain.ConnID]Conn)
		gw.groups[id] = group
	}
	group[conn.ID()] = conn
	members := collect(group)
	gw.mu.Unlock()

	ack := struct {
		Type           string `json:"type"`
		OK             bool   `json:"ok"`
		Participants   int    `json:"participants"`
		RemainingCodes int    `json:"remainingCodes"`
	}{"join_ack", true, st.Participants, st.RemainingCodes}
	gw.sendJSON(conn, ack)

	gw.broadcast(members, systemEvent{"system", "Participant joined", st.Participants})
	gw.broadcast(members, countEvent{"count", st.Participants})
}

// Chat relays a raw inbound frame, unmodified, to every connection in the
// addressed room's group, sender included. Frames without a room id are
// dropped silently.
func (gw *Gateway) Chat(conn Conn, raw Frame) {
	var p struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(raw, &p); err != nil || p.RoomID == "" {
		log.Debug().Str("module", "app.gateway").Str("conn", string(conn.ID())).Msg("chat frame without room id dropped")
		return
	}

	gw.mu.Lock()
	members := collect(gw.groups[domain.RoomID(p.RoomID)])
	gw.mu.Unlock()

	for _, m := range members {
		if err := m.TrySend(raw); err != nil {
			log.Warn().Err(err).Str("module", "app.gateway").Str("conn", string(m.ID())).Msg("chat frame dropped")
		}
	}
}

// Disconnect detaches conn from its room, if any, and notifies the
// remaining member. Safe to call for connections that never joined.
func (gw *Gateway) Disconnect(conn Conn) {
	gw.mu.Lock()
	id, ok := gw.connRoom[conn.ID()]
	if !ok {
		gw.mu.Unlock()
		return
	}
	delete(gw.connRoom, conn.ID())
	group := gw.groups[id]
	delete(group, conn.ID())
	if len(group) == 0 {
		delete(gw.groups, id)
	}
	members := collect(group)
	gw.mu.Unlock()

	remaining, destroyed := gw.registry.Leave(id, conn.ID())
	if destroyed || len(members) == 0 {
		return
	}
	gw.broadcast(members, countEvent{"count", remaining})
	gw.broadcast(members, systemEvent{"system", "Participant left", remaining})
}

// expireRoom runs on the room's expiry timer goroutine. A timer that lost
// the race to an abandonment-triggered removal is a no-op.
func (gw *Gateway) expireRoom(id domain.RoomID) {
	room, ok := gw.registry.Remove(id)
	if !ok {
		return
	}

	gw.mu.Lock()
	group := gw.groups[id]
	delete(gw.groups, id)
	for cid := range group {
		delete(gw.connRoom, cid)
	}
	members := collect(group)
	gw.mu.Unlock()

	log.Info().Str("module", "app.gateway").Str("room", string(id)).Dur("ttl", room.TTL).
		Int("participants", len(members)).Msg("room expired")

	gw.broadcast(members, systemEvent{"system", "Room expired", len(members)})
	gw.broadcast(members, struct {
		Type string `json:"type"`
	}{"expire"})
	for _, m := range members {
		m.Close()
	}
}

func (gw *Gateway) sendNack(conn Conn, reason string) {
	nack := struct {
		Type   string `json:"type"`
		OK     bool   `json:"ok"`
		Reason string `json:"reason"`
	}{"join_ack", false, reason}
	gw.sendJSON(conn, nack)
}

func (gw *Gateway) broadcast(members []Conn, v any) {
	for _, m := range members {
		gw.sendJSON(m, v)
	}
}

// sendJSON marshals and sends best-effort: a slow consumer has the frame
// dropped rather than the connection killed.
func (gw *Gateway) sendJSON(conn Conn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.gateway").Msg("sendJSON marshal")
		return
	}
	if err := conn.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "app.gateway").Str("conn", string(conn.ID())).Msg("frame dropped")
	}
}

func collect(group map[domain.ConnID]Conn) []Conn {
	out := make([]Conn, 0, len(group))
	for _, c := range group {
		out = append(out, c)
	}
	return out
}
