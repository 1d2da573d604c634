package relay

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/yachaflex/pairing/internal/model/biometric"
	relayService "github.com/yachaflex/pairing/internal/service/relay"
	"github.com/yachaflex/pairing/pkg/utils"
)

const (
	maxPayloadBytes = 64 << 10
	qrSize          = 320
)

// Handler serves the pairing relay: session creation for the web client and
// the delivery endpoint the forwarder posts to.
type Handler struct {
	relaySvc *relayService.Service
	upgrader websocket.Upgrader
}

// New creates the relay handler.
func New(relaySvc *relayService.Service) *Handler {
	return &Handler{
		relaySvc: relaySvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the relay routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/pairing", h.handleCreateSession)
	r.Get("/pairing/{sessionID}/qr.png", h.handleQRCode)
	r.Get("/pairing/{sessionID}/status", h.handleStatus)
	r.Get("/pairing/{sessionID}/ws", h.handleWebSocket)
	r.Get("/pairing/{sessionID}/events", h.handleEvents)
	r.Post("/biometrics", h.handleDeliver)
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.relaySvc.CreateSession(r.Context())
	if err != nil {
		log.Printf("[relay] create session failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "could not create session")
		return
	}
	utils.RespondJSON(w, http.StatusCreated, ticket)
}

func (h *Handler) handleQRCode(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	link, err := h.relaySvc.Link(r.Context(), sessionID, utils.BearerToken(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	png, err := qrcode.Encode(link, qrcode.Medium, qrSize)
	if err != nil {
		log.Printf("[relay] qr encode failed session=%s: %v", sessionID, err)
		utils.RespondError(w, http.StatusInternalServerError, "could not render qr code")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		log.Printf("[relay] write qr failed: %v", err)
	}
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.relaySvc.Status(r.Context(), chi.URLParam(r, "sessionID"), utils.BearerToken(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, status)
}

// deliveryRequest is the forwarder payload. Older forwarders put the session
// id in the body instead of the endpoint query.
type deliveryRequest struct {
	biometric.Payload
	SessionID string `json:"session_id,omitempty"`
}

func (h *Handler) handleDeliver(w http.ResponseWriter, r *http.Request) {
	var payload deliveryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPayloadBytes)).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = payload.SessionID
	}
	if sessionID == "" {
		utils.RespondError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	session, err := h.relaySvc.Deliver(r.Context(), sessionID, utils.BearerToken(r), payload.Payload)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status":     "received",
		"sessionId":  session.ID,
		"receivedAt": session.Result.ReceivedAt,
	})
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, relayService.ErrTokenInvalid):
		utils.RespondError(w, http.StatusForbidden, "invalid pairing token")
	case errors.Is(err, relayService.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, relayService.ErrSessionExpired):
		utils.RespondError(w, http.StatusGone, "session expired")
	case errors.Is(err, relayService.ErrAlreadyDelivered):
		utils.RespondError(w, http.StatusConflict, "session already received a payload")
	default:
		log.Printf("[relay] unexpected error: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}
