package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/noorkids/storyplayer/internal/access"
	"github.com/noorkids/storyplayer/internal/exporter"
	"github.com/noorkids/storyplayer/internal/pagemodel"
	"github.com/noorkids/storyplayer/internal/paginator"
	"github.com/noorkids/storyplayer/internal/session"
	"github.com/noorkids/storyplayer/internal/story"
	"github.com/noorkids/storyplayer/internal/util"
	"github.com/noorkids/storyplayer/pkg/types"
)

// StoryHandler handles story-related API endpoints
type StoryHandler struct {
	repo      story.Repository
	exportSvc *exporter.Service
	gate      access.Gate
	sessions  *session.Manager
	playerCfg types.PlayerConfig
}

// NewStoryHandler creates a new story handler
func NewStoryHandler(repo story.Repository, exportSvc *exporter.Service, gate access.Gate, sessions *session.Manager, playerCfg types.PlayerConfig) *StoryHandler {
	return &StoryHandler{
		repo:      repo,
		exportSvc: exportSvc,
		gate:      gate,
		sessions:  sessions,
		playerCfg: playerCfg,
	}
}

// CreateStory handles POST /api/v1/stories
func (h *StoryHandler) CreateStory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.gate.Allowed(r.Context(), access.ActionCreateStory); err != nil {
		respondError(w, err.Error(), http.StatusForbidden)
		return
	}

	var newStory types.Story
	if err := json.NewDecoder(r.Body).Decode(&newStory); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(newStory.Title) == "" || strings.TrimSpace(newStory.BodyText) == "" {
		respondError(w, "Title and body text are required", http.StatusBadRequest)
		return
	}

	if err := h.repo.CreateStory(r.Context(), &newStory); err != nil {
		respondError(w, "Failed to save story", http.StatusInternalServerError)
		return
	}

	respondJSON(w, newStory, http.StatusCreated)
}

// ListStories handles GET /api/v1/stories
func (h *StoryHandler) ListStories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stories, err := h.repo.ListStories(r.Context())
	if err != nil {
		respondError(w, "Failed to list stories", http.StatusInternalServerError)
		return
	}

	respondJSON(w, stories, http.StatusOK)
}

// GetStory handles GET /api/v1/stories/:id. The response carries the story
// plus a page model preview so callers can show the reading sequence
// without opening a session.
func (h *StoryHandler) GetStory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	storyID := extractIDFromPath(r.URL.Path, "/api/v1/stories/")
	if storyID == "" {
		respondError(w, "Story ID required", http.StatusBadRequest)
		return
	}

	st, err := h.repo.GetStory(r.Context(), storyID)
	if err != nil {
		respondError(w, "Story not found", http.StatusNotFound)
		return
	}

	storyPages := paginator.Paginate(st.BodyText, h.playerCfg.TargetWordsPerPage)
	model, err := pagemodel.Build(st, storyPages, nil)
	if err != nil {
		respondError(w, "Failed to build page model", http.StatusInternalServerError)
		return
	}

	respondJSON(w, map[string]interface{}{
		"story": st,
		"pages": model.Pages(),
	}, http.StatusOK)
}

// AttachIllustration handles POST /api/v1/stories/:id/illustrations. The
// illustration arrives as a multipart upload with its target scene index;
// the first upload for a scene wins, later uploads are acknowledged without
// replacing it.
func (h *StoryHandler) AttachIllustration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	storyID := extractIDFromPath(r.URL.Path, "/api/v1/stories/")
	if storyID == "" {
		respondError(w, "Story ID required", http.StatusBadRequest)
		return
	}

	// Max 20MB per illustration
	if err := r.ParseMultipartForm(20 << 20); err != nil {
		respondError(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	sceneIndex, err := strconv.Atoi(r.FormValue("scene_index"))
	if err != nil || sceneIndex < 0 {
		respondError(w, "Valid scene_index required", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !util.IsImagePath(header.Filename) {
		respondError(w, fmt.Sprintf("Unsupported image format: %s", ext), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, "Failed to read file", http.StatusInternalServerError)
		return
	}

	ref, err := h.repo.AttachIllustration(r.Context(), storyID, sceneIndex, data, ext)
	if err != nil {
		respondError(w, "Failed to attach illustration", http.StatusInternalServerError)
		return
	}

	// Push into any session currently reading this story
	h.sessions.NotifyIllustration(storyID, sceneIndex, ref)

	respondJSON(w, map[string]interface{}{
		"ref":         ref,
		"scene_index": sceneIndex,
	}, http.StatusOK)
}

// AttachAudio handles POST /api/v1/stories/:id/audio
func (h *StoryHandler) AttachAudio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	storyID := extractIDFromPath(r.URL.Path, "/api/v1/stories/")
	if storyID == "" {
		respondError(w, "Story ID required", http.StatusBadRequest)
		return
	}

	// Max 50MB of narration audio
	if err := r.ParseMultipartForm(50 << 20); err != nil {
		respondError(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext == "" {
		ext = ".mp3"
	}

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, "Failed to read file", http.StatusInternalServerError)
		return
	}

	ref, err := h.repo.AttachAudio(r.Context(), storyID, data, ext)
	if err != nil {
		respondError(w, "Failed to attach audio", http.StatusInternalServerError)
		return
	}

	respondJSON(w, map[string]string{"ref": ref}, http.StatusOK)
}

// GetAsset handles GET /api/v1/stories/:id/assets/* and streams raw
// illustration or narration bytes to the client.
func (h *StoryHandler) GetAsset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	storyID := extractIDFromPath(r.URL.Path, "/api/v1/stories/")
	if storyID == "" {
		respondError(w, "Story ID required", http.StatusBadRequest)
		return
	}

	parts := strings.SplitN(r.URL.Path, "/assets/", 2)
	if len(parts) < 2 || parts[1] == "" {
		respondError(w, "Asset path required", http.StatusBadRequest)
		return
	}

	// Refs are always rooted under the story's own prefix; a path that
	// escapes it after cleaning is rejected
	prefix := util.StoryPrefix(storyID)
	ref := path.Join(prefix, parts[1])
	if !strings.HasPrefix(ref, prefix) {
		respondError(w, "Invalid asset path", http.StatusBadRequest)
		return
	}

	data, err := h.repo.GetAsset(r.Context(), ref)
	if err != nil {
		respondError(w, "Asset not found", http.StatusNotFound)
		return
	}

	contentType := "application/octet-stream"
	switch strings.ToLower(filepath.Ext(ref)) {
	case ".png":
		contentType = "image/png"
	case ".jpg", ".jpeg":
		contentType = "image/jpeg"
	case ".webp":
		contentType = "image/webp"
	case ".mp3":
		contentType = "audio/mpeg"
	case ".wav":
		contentType = "audio/wav"
	case ".ogg":
		contentType = "audio/ogg"
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// ExportStory handles GET /api/v1/stories/:id/export
func (h *StoryHandler) ExportStory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.gate.Allowed(r.Context(), access.ActionExport); err != nil {
		respondError(w, err.Error(), http.StatusForbidden)
		return
	}

	storyID := extractIDFromPath(r.URL.Path, "/api/v1/stories/")
	if storyID == "" {
		respondError(w, "Story ID required", http.StatusBadRequest)
		return
	}

	st, err := h.repo.GetStory(r.Context(), storyID)
	if err != nil {
		respondError(w, "Story not found", http.StatusNotFound)
		return
	}

	zipReader, err := h.exportSvc.Export(r.Context(), storyID)
	if err != nil {
		respondError(w, fmt.Sprintf("Failed to export story: %v", err), http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("story-%s.zip", storyID)
	if safeTitle := sanitizeFilename(st.Title); safeTitle != "" {
		filename = fmt.Sprintf("%s.zip", safeTitle)
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.WriteHeader(http.StatusOK)

	io.Copy(w, zipReader)
}

// Helper functions

func sanitizeFilename(title string) string {
	safe := strings.ReplaceAll(title, " ", "_")
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return -1
	}, safe)
}

func extractIDFromPath(path, prefix string) string {
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	rest := strings.TrimPrefix(path, prefix)
	parts := strings.Split(rest, "/")
	if len(parts) > 0 {
		return parts[0]
	}
	return ""
}

func respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
