package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/noorkids/storyplayer/internal/notify"
	"github.com/noorkids/storyplayer/internal/playback"
	"github.com/noorkids/storyplayer/internal/session"
)

// SessionHandler handles reading session API endpoints
type SessionHandler struct {
	sessions *session.Manager
	hub      *notify.Hub
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *session.Manager, hub *notify.Hub) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		hub:      hub,
	}
}

// Control actions accepted by PostControls
const (
	controlPlay     = "play"
	controlPause    = "pause"
	controlNext     = "next"
	controlPrevious = "previous"
	controlJump     = "jump"
)

// CreateSession handles POST /api/v1/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		StoryID string `json:"story_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.StoryID == "" {
		respondError(w, "story_id required", http.StatusBadRequest)
		return
	}

	sess, err := h.sessions.Open(r.Context(), req.StoryID)
	if err != nil {
		respondError(w, "Failed to open session", http.StatusNotFound)
		return
	}

	respondJSON(w, map[string]interface{}{
		"session_id": sess.ID,
		"story_id":   sess.StoryID,
		"state":      sess.Controller.State(),
		"pages":      sess.Model.Pages(),
	}, http.StatusCreated)
}

// GetSession handles GET /api/v1/sessions/:id
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}

	respondJSON(w, map[string]interface{}{
		"session_id": sess.ID,
		"story_id":   sess.StoryID,
		"state":      sess.Controller.State(),
		"pages":      sess.Model.Pages(),
	}, http.StatusOK)
}

// CloseSession handles DELETE /api/v1/sessions/:id
func (h *SessionHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := extractIDFromPath(r.URL.Path, "/api/v1/sessions/")
	if sessionID == "" {
		respondError(w, "Session ID required", http.StatusBadRequest)
		return
	}

	if err := h.sessions.Close(sessionID); err != nil {
		respondError(w, "Session not found", http.StatusNotFound)
		return
	}

	respondJSON(w, map[string]string{"status": "closed"}, http.StatusOK)
}

// PostEvents handles POST /api/v1/sessions/:id/events. The client owning
// the audio element reports lifecycle events here; the controller reacts
// and pushes resulting page turns back over the notification stream.
func (h *SessionHandler) PostEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := extractIDFromPath(r.URL.Path, "/api/v1/sessions/")
	if sessionID == "" {
		respondError(w, "Session ID required", http.StatusBadRequest)
		return
	}

	var ev session.ResourceEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.sessions.HandleResourceEvent(sessionID, ev); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	sess, ok := h.sessions.Get(sessionID)
	if !ok {
		respondError(w, "Session not found", http.StatusNotFound)
		return
	}
	respondJSON(w, sess.Controller.State(), http.StatusOK)
}

// PostControls handles POST /api/v1/sessions/:id/controls with the user's
// play/pause and navigation intents.
func (h *SessionHandler) PostControls(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req struct {
		Action    string `json:"action"`
		PageIndex int    `json:"page_index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	switch req.Action {
	case controlPlay:
		if err := sess.Controller.Play(); err != nil {
			if errors.Is(err, playback.ErrPlaybackUnavailable) {
				respondError(w, err.Error(), http.StatusConflict)
				return
			}
			respondError(w, err.Error(), http.StatusInternalServerError)
			return
		}
	case controlPause:
		if err := sess.Controller.Pause(); err != nil {
			respondError(w, err.Error(), http.StatusInternalServerError)
			return
		}
	case controlNext:
		sess.Navigator.Next()
	case controlPrevious:
		sess.Navigator.Previous()
	case controlJump:
		sess.Navigator.JumpTo(req.PageIndex)
	default:
		respondError(w, "Unknown control action", http.StatusBadRequest)
		return
	}

	respondJSON(w, sess.Controller.State(), http.StatusOK)
}

// ServeWS handles GET /api/v1/sessions/:id/ws, the notification stream
func (h *SessionHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := extractIDFromPath(r.URL.Path, "/api/v1/sessions/")
	if sessionID == "" {
		respondError(w, "Session ID required", http.StatusBadRequest)
		return
	}

	if _, ok := h.sessions.Get(sessionID); !ok {
		respondError(w, "Session not found", http.StatusNotFound)
		return
	}

	h.hub.ServeWS(sessionID, w, r)
}

// lookup resolves the session named in the path, writing the error response
// itself when the ID is missing or unknown.
func (h *SessionHandler) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sessionID := extractIDFromPath(r.URL.Path, "/api/v1/sessions/")
	if sessionID == "" {
		respondError(w, "Session ID required", http.StatusBadRequest)
		return nil, false
	}

	sess, ok := h.sessions.Get(sessionID)
	if !ok {
		respondError(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return sess, true
}
