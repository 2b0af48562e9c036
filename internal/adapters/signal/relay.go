package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/safedispatch/relay/internal/domain"
)

// handleRelay forwards a negotiation message to the peers of the room named
// in the payload, excluding the sender. The payload itself (SDP, ICE
// candidate) is opaque: it is never parsed beyond the envelope.
//
// The declared room field is trusted as-is rather than re-derived from the
// connection's joined room.
func (ctl *Controller) handleRelay(cl *client, event string, data []byte) {
	if !cl.joined {
		log.Warn().Str("module", "signal").Str("conn", string(cl.id)).Str("type", event).Msg("relay before join dropped")
		return
	}

	var p struct {
		Type      string          `json:"type"`
		Room      string          `json:"room"`
		SDP       json.RawMessage `json:"sdp,omitempty"`
		Candidate json.RawMessage `json:"candidate,omitempty"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("type", event).Msg("bad relay payload")
		ctl.sendError(cl.conn, "bad_payload")
		return
	}

	out := struct {
		Type      string          `json:"type"`
		SDP       json.RawMessage `json:"sdp,omitempty"`
		Candidate json.RawMessage `json:"candidate,omitempty"`
	}{
		Type:      event,
		SDP:       p.SDP,
		Candidate: p.Candidate,
	}
	b, err := json.Marshal(out)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("type", event).Msg("relay marshal")
		return
	}

	res := ctl.Hub.BroadcastExcluding(domain.CallID(p.Room), cl.id, b)
	log.Debug().Str("module", "signal").Str("conn", string(cl.id)).Str("type", event).Str("room", p.Room).Int("sent_to", res.SentTo).Msg("relayed")
}

// handleEndCall deactivates the session and notifies the whole room, the
// requester included.
func (ctl *Controller) handleEndCall(cl *client, data []byte) {
	if !cl.joined {
		log.Warn().Str("module", "signal").Str("conn", string(cl.id)).Msg("end-call before join dropped")
		return
	}

	var p struct {
		Type string `json:"type"`
		Room string `json:"room"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad end-call payload")
		ctl.sendError(cl.conn, "bad_payload")
		return
	}

	log.Info().Str("module", "signal").Str("conn", string(cl.id)).Str("room", p.Room).Msg("end-call")
	ctl.Hub.Terminate(domain.CallID(p.Room))
}
