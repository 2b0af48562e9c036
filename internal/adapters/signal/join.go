package signal

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/safedispatch/relay/internal/domain"
)

// handleJoin runs the join handshake. Every rejection is soft: the
// connection stays open and may retry with a corrected request.
func (ctl *Controller) handleJoin(cl *client, data []byte) {
	if !cl.limiter.allow(time.Now()) {
		log.Warn().Str("module", "signal").Str("conn", string(cl.id)).Msg("join rate limited")
		ctl.sendError(cl.conn, "too many join attempts")
		return
	}

	type joinPayload struct {
		Type   string `json:"type"`
		CallID string `json:"callId"`
		Token  string `json:"token"`
		Role   string `json:"role"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(cl.conn, "bad_payload")
		return
	}

	room := domain.CallID(p.CallID)
	role := domain.Role(p.Role)
	log.Info().Str("module", "signal").Str("conn", string(cl.id)).Str("call_id", p.CallID).Str("role", p.Role).Msg("join request")

	err := ctl.Calls.Authorize(room, role, p.Token, time.Now())
	switch {
	case errors.Is(err, domain.ErrCallNotFound):
		ctl.sendError(cl.conn, "Call not found")
		return
	case errors.Is(err, domain.ErrCallEnded):
		ctl.sendError(cl.conn, "Call ended")
		return
	case errors.Is(err, domain.ErrCallExpired):
		// Detecting expiry deactivated the call as a side effect.
		ctl.sendJSON(cl.conn, map[string]any{"type": "call-expired"})
		return
	case errors.Is(err, domain.ErrInvalidToken):
		ctl.sendError(cl.conn, "Invalid token")
		return
	case err != nil:
		log.Error().Err(err).Str("module", "signal").Msg("join authorize")
		ctl.sendError(cl.conn, "bad_payload")
		return
	}

	ctl.Hub.Join(room, cl.id)
	cl.room = room
	cl.role = role
	cl.joined = true

	// Announce to the peers already in the room, never to the joiner.
	announce := struct {
		Type string      `json:"type"`
		Role domain.Role `json:"role"`
	}{
		Type: "user-joined",
		Role: role,
	}
	b, err := json.Marshal(announce)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("user-joined marshal")
		return
	}
	ctl.Hub.BroadcastExcluding(room, cl.id, b)
	log.Info().Str("module", "signal").Str("conn", string(cl.id)).Str("room", string(room)).Str("role", p.Role).Msg("joined call")
}
