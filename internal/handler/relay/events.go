package relay

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yachaflex/pairing/pkg/utils"
)

const keepaliveInterval = 15 * time.Second

// handleEvents is the Server-Sent Events fallback for clients without
// websockets. It emits the same status, result and expired messages.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	current, updates, cancelWatch, err := h.relaySvc.Watch(r.Context(), sessionID, utils.BearerToken(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	defer cancelWatch()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	log.Printf("[sse] opening stream for session=%s", sessionID)

	if err := utils.SendSSEEvent(w, flusher, "status", current); err != nil || current.Received {
		return
	}

	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[sse] closing stream for session=%s", sessionID)
			return
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "keepalive"); err != nil {
				return
			}
		case status, ok := <-updates:
			if !ok {
				_ = utils.SendSSEEvent(w, flusher, "expired", map[string]string{"sessionId": sessionID})
				return
			}
			_ = utils.SendSSEEvent(w, flusher, "result", status)
			return
		}
	}
}
