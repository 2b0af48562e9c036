package app

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/safedispatch/relay/internal/core"
	"github.com/safedispatch/relay/internal/domain"
)

// Hub owns room membership: it is the only component that adds or removes a
// connection from a room. A room is keyed by call ID; a connection belongs
// to at most one room at a time.
type Hub struct {
	calls core.CallDirectory

	mu     sync.RWMutex
	conns  map[core.ConnID]core.SignalConnection
	rooms  map[domain.CallID]map[core.ConnID]struct{}
	roomOf map[core.ConnID]domain.CallID
}

func NewHub(calls core.CallDirectory) *Hub {
	return &Hub{
		calls:  calls,
		conns:  make(map[core.ConnID]core.SignalConnection),
		rooms:  make(map[domain.CallID]map[core.ConnID]struct{}),
		roomOf: make(map[core.ConnID]domain.CallID),
	}
}

// Register makes a connection addressable for broadcasts. It joins no room.
func (h *Hub) Register(id core.ConnID, conn core.SignalConnection) {
	h.mu.Lock()
	h.conns[id] = conn
	h.mu.Unlock()
	metricConnections.Inc()
	log.Info().Str("module", "app.hub").Str("conn", string(id)).Msg("connection registered")
}

// Unregister removes the connection and its room membership, if any.
func (h *Hub) Unregister(id core.ConnID) {
	h.mu.Lock()
	if _, ok := h.conns[id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.conns, id)
	h.leaveLocked(id)
	h.mu.Unlock()
	metricConnections.Dec()
	log.Info().Str("module", "app.hub").Str("conn", string(id)).Msg("connection unregistered")
}

// Join adds the connection to the room. Idempotent; joining a different
// room first leaves the old one.
func (h *Hub) Join(room domain.CallID, id core.ConnID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if prev, ok := h.roomOf[id]; ok {
		if prev == room {
			return
		}
		h.leaveLocked(id)
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[core.ConnID]struct{})
		h.rooms[room] = members
	}
	members[id] = struct{}{}
	h.roomOf[id] = room
	log.Info().Str("module", "app.hub").Str("conn", string(id)).Str("room", string(room)).Msg("joined room")
}

// Leave removes the connection from the room. No-op when absent.
func (h *Hub) Leave(room domain.CallID, id core.ConnID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.roomOf[id] != room {
		return
	}
	h.leaveLocked(id)
}

func (h *Hub) leaveLocked(id core.ConnID) {
	room, ok := h.roomOf[id]
	if !ok {
		return
	}
	delete(h.roomOf, id)
	if members, ok := h.rooms[room]; ok {
		delete(members, id)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	log.Info().Str("module", "app.hub").Str("conn", string(id)).Str("room", string(room)).Msg("left room")
}

// RoomOf reports the room the connection is currently joined to.
func (h *Hub) RoomOf(id core.ConnID) (domain.CallID, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room, ok := h.roomOf[id]
	return room, ok
}

// MemberCount reports current room size.
func (h *Hub) MemberCount(room domain.CallID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// BroadcastExcluding delivers the frame to every current room member except
// `exclude`, at most once each. An empty or solo room is a silent no-op:
// the peer may simply not have joined yet. Slow consumers are dropped, not
// retried.
func (h *Hub) BroadcastExcluding(room domain.CallID, exclude core.ConnID, data core.Frame) core.PublishResult {
	h.mu.RLock()
	defer h.mu.RUnlock()
	res := core.PublishResult{}
	for id := range h.rooms[room] {
		if id == exclude {
			continue
		}
		conn, ok := h.conns[id]
		if !ok {
			continue
		}
		if err := conn.TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, id)
			continue
		}
		res.SentTo++
	}
	metricFramesRelayed.Add(float64(res.SentTo))
	log.Debug().Str("module", "app.hub").Str("room", string(room)).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("room broadcast")
	return res
}

// BroadcastAll delivers to every registered connection, joined or not. Used
// for the new-call announcement, which lands before anyone has a room.
func (h *Hub) BroadcastAll(data core.Frame) core.PublishResult {
	h.mu.RLock()
	defer h.mu.RUnlock()
	res := core.PublishResult{}
	for id, conn := range h.conns {
		if err := conn.TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, id)
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "app.hub").Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("global broadcast")
	return res
}

// Terminate deactivates the call and tells the whole room, sender included.
// Unlike negotiation relay, nobody is excluded: all parties must learn the
// call is over.
func (h *Hub) Terminate(room domain.CallID) {
	h.calls.Deactivate(room)
	b, err := json.Marshal(map[string]string{"type": "end-call"})
	if err != nil {
		log.Error().Err(err).Str("module", "app.hub").Msg("terminate marshal")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id := range h.rooms[room] {
		if conn, ok := h.conns[id]; ok {
			_ = conn.TrySend(core.Frame(b))
		}
	}
	log.Info().Str("module", "app.hub").Str("room", string(room)).Msg("call terminated")
}
