package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/safedispatch/relay/internal/app"
	"github.com/safedispatch/relay/internal/domain"
)

// Handlers is the control-center REST boundary: start a call, end a call,
// poll for the newest pending one.
type Handlers struct {
	Calls *app.CallStore
	Hub   *app.Hub
}

type startCallResponse struct {
	CallID       domain.CallID `json:"callId"`
	CallerToken  string        `json:"callerToken"`
	ResponderURL string        `json:"responderUrl"`
	ExpiresAt    int64         `json:"expiresAt"`
}

// StartCall creates a session and announces it to every connected listener.
// The responder URL carries no secret: the responder role is unauthenticated
// by design.
func (h *Handlers) StartCall(c *gin.Context) {
	call := h.Calls.Create()

	announce := struct {
		Type      string        `json:"type"`
		CallID    domain.CallID `json:"callId"`
		ExpiresAt int64         `json:"expiresAt"`
	}{
		Type:      "new-call",
		CallID:    call.ID,
		ExpiresAt: call.ExpiresAt.Unix(),
	}
	if b, err := json.Marshal(announce); err == nil {
		h.Hub.BroadcastAll(b)
	} else {
		log.Error().Err(err).Str("module", "adapters.http").Msg("new-call marshal")
	}

	c.JSON(http.StatusOK, startCallResponse{
		CallID:       call.ID,
		CallerToken:  call.CallerToken,
		ResponderURL: fmt.Sprintf("/responder-call?callId=%s&role=responder", call.ID),
		ExpiresAt:    call.ExpiresAt.Unix(),
	})
}

type endCallRequest struct {
	CallID string `json:"callId"`
}

func (h *Handlers) EndCall(c *gin.Context) {
	var req endCallRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CallID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid callId"})
		return
	}

	id := domain.CallID(req.CallID)
	if _, ok := h.Calls.Get(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Call not found"})
		return
	}

	h.Hub.Terminate(id)
	c.JSON(http.StatusOK, gin.H{"status": "ended"})
}

// LatestCall lets a responder console with no out-of-band call ID attach to
// the newest pending call.
func (h *Handlers) LatestCall(c *gin.Context) {
	call, ok := h.Calls.LatestActive(time.Now())
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No active calls"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"callId":    call.ID,
		"expiresAt": call.ExpiresAt.Unix(),
	})
}
