package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/avdeenkov/pairchat/internal/domain"
)

// CreatedRoom is the public view returned on creation; codes are in
// generation order.
type CreatedRoom struct {
	RoomID    string    `json:"roomId"`
	Codes     [2]string `json:"codes"`
	TTL       int       `json:"ttl"`
	ExpiresAt int64     `json:"expiresAt"`
}

// JoinState reports the room counters right after a successful join.
type JoinState struct {
	Participants   int
	RemainingCodes int
}

// Registry owns the room-id map. It is the only component that inserts or
// deletes rooms, and every mutation of a room happens under its lock.
type Registry struct {
	mu     sync.Mutex
	rooms  map[domain.RoomID]*domain.Room
	expire func(domain.RoomID)

	now func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[domain.RoomID]*domain.Room),
		now:   time.Now,
	}
}

// SetExpireHook installs the callback run when a room's TTL elapses.
// The gateway uses it to notify and terminate attached connections.
func (r *Registry) SetExpireHook(fn func(domain.RoomID)) {
	r.expire = fn
}

func (r *Registry) Create(ttlSeconds int) CreatedRoom {
	ttl := time.Duration(domain.ClampTTL(ttlSeconds)) * time.Second
	id := domain.NewRoomID()
	c1, c2 := domain.NewAccessCode(), domain.NewAccessCode()

	room := &domain.Room{
		ID:           id,
		Codes:        map[domain.AccessCode]struct{}{c1: {}, c2: {}},
		Participants: make(map[domain.ConnID]struct{}),
		TTL:          ttl,
		ExpiresAt:    r.now().Add(ttl),
	}
	room.Expiry = time.AfterFunc(ttl, func() { r.onExpiry(id) })

	r.mu.Lock()
	r.rooms[id] = room
	r.mu.Unlock()

	log.Info().Str("module", "app.registry").Str("room", string(id)).Dur("ttl", ttl).Msg("room created")
	return CreatedRoom{
		RoomID:    string(id),
		Codes:     [2]string{string(c1), string(c2)},
		TTL:       int(ttl / time.Second),
		ExpiresAt: room.ExpiresAt.UnixMilli(),
	}
}

func (r *Registry) Get(id domain.RoomID) (*domain.Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	return room, ok
}

// Join consumes a one-time code and attaches the connection. Check order is
// fixed: unknown room, then capacity, then code validity.
func (r *Registry) Join(id domain.RoomID, code string, conn domain.ConnID) (JoinState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[id]
	if !ok {
		return JoinState{}, domain.ErrRoomNotFound
	}
	if len(room.Participants) >= domain.MaxParticipants {
		return JoinState{}, domain.ErrRoomFull
	}
	if code == "" {
		return JoinState{}, domain.ErrInvalidCode
	}
	if _, ok := room.Codes[domain.AccessCode(code)]; !ok {
		return JoinState{}, domain.ErrInvalidCode
	}

	delete(room.Codes, domain.AccessCode(code))
	room.Participants[conn] = struct{}{}

	log.Info().Str("module", "app.registry").Str("room", string(id)).Str("conn", string(conn)).
		Int("participants", len(room.Participants)).Msg("participant joined")
	return JoinState{Participants: len(room.Participants), RemainingCodes: len(room.Codes)}, nil
}

// Leave detaches the connection. When the last participant of a previously
// joined room leaves, the room is destroyed immediately; it never reverts
// to an empty-but-joinable state.
func (r *Registry) Leave(id domain.RoomID, conn domain.ConnID) (remaining int, destroyed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[id]
	if !ok {
		return 0, false
	}
	if _, ok := room.Participants[conn]; !ok {
		return len(room.Participants), false
	}
	delete(room.Participants, conn)
	if len(room.Participants) > 0 {
		return len(room.Participants), false
	}

	room.Expiry.Stop()
	delete(r.rooms, id)
	log.Info().Str("module", "app.registry").Str("room", string(id)).Msg("room abandoned, destroyed")
	return 0, true
}

// Remove deletes the room and cancels its expiry timer. Idempotent: a
// second removal (e.g. a timer losing the race to an abandonment) reports
// ok=false and does nothing.
func (r *Registry) Remove(id domain.RoomID) (*domain.Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[id]
	if !ok {
		return nil, false
	}
	room.Expiry.Stop()
	delete(r.rooms, id)
	log.Info().Str("module", "app.registry").Str("room", string(id)).Msg("room removed")
	return room, true
}

func (r *Registry) onExpiry(id domain.RoomID) {
	if r.expire != nil {
		r.expire(id)
		return
	}
	r.Remove(id)
}
