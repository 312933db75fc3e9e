package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/noorkids/storyplayer/internal/access"
	"github.com/noorkids/storyplayer/internal/exporter"
	"github.com/noorkids/storyplayer/internal/notify"
	"github.com/noorkids/storyplayer/internal/session"
	"github.com/noorkids/storyplayer/internal/storage"
	"github.com/noorkids/storyplayer/internal/story"
	"github.com/noorkids/storyplayer/pkg/types"
)

func newTestHandlers(t *testing.T) (*StoryHandler, *SessionHandler) {
	t.Helper()

	adapter, err := storage.NewLocalAdapter(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create storage adapter: %v", err)
	}
	t.Cleanup(func() { adapter.Close() })

	repo := story.NewRepository(adapter)
	playerCfg := types.PlayerConfig{TargetWordsPerPage: 10, CoverWeight: 1.5}

	exportSvc, err := exporter.NewService(repo, adapter, types.ExportConfig{
		PageWidth:   200,
		PageHeight:  280,
		Margin:      16,
		FontSize:    12,
		LineSpacing: 1.4,
	}, playerCfg)
	if err != nil {
		t.Fatalf("failed to create export service: %v", err)
	}

	hub := notify.NewHub()
	sessions := session.NewManager(repo, hub, playerCfg)
	t.Cleanup(sessions.CloseAll)

	return NewStoryHandler(repo, exportSvc, access.AllowAll{}, sessions, playerCfg),
		NewSessionHandler(sessions, hub)
}

func createStoryViaAPI(t *testing.T, h *StoryHandler) string {
	t.Helper()

	body := strings.TrimSpace(strings.Repeat("The small sparrow shared its bread with the hungry cat. ", 3))
	payload, _ := json.Marshal(types.Story{
		Title:                 "The Generous Sparrow",
		BodyText:              body,
		MoralLesson:           "Sharing multiplies joy.",
		ScriptureReference:    "Quran 2:261",
		ScriptureOriginalText: "مثل الذين ينفقون أموالهم",
		ScriptureTranslation:  "The example of those who spend their wealth.",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/stories", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	h.CreateStory(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var created types.Story
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if created.ID == "" {
		t.Fatal("Expected story ID in response")
	}
	return created.ID
}

func TestCreateStoryValidation(t *testing.T) {
	storyHandler, _ := newTestHandlers(t)

	payload, _ := json.Marshal(types.Story{Title: "No Body"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/stories", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	storyHandler.CreateStory(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for missing body text, got %d", w.Code)
	}
}

func TestGetStoryWithPagePreview(t *testing.T) {
	storyHandler, _ := newTestHandlers(t)
	storyID := createStoryViaAPI(t, storyHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stories/"+storyID, nil)
	w := httptest.NewRecorder()
	storyHandler.GetStory(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	pages, ok := response["pages"].([]interface{})
	if !ok {
		t.Fatal("Expected 'pages' array in response")
	}
	// cover + 3 story pages + moral + scripture + end
	if len(pages) != 7 {
		t.Errorf("Expected 7 pages, got %d", len(pages))
	}

	first := pages[0].(map[string]interface{})
	if first["kind"] != "cover" {
		t.Errorf("Expected first page kind cover, got %v", first["kind"])
	}
}

func TestGetStoryNotFound(t *testing.T) {
	storyHandler, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stories/missing", nil)
	w := httptest.NewRecorder()
	storyHandler.GetStory(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestListStories(t *testing.T) {
	storyHandler, _ := newTestHandlers(t)
	createStoryViaAPI(t, storyHandler)
	createStoryViaAPI(t, storyHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stories", nil)
	w := httptest.NewRecorder()
	storyHandler.ListStories(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var stories []types.Story
	if err := json.NewDecoder(w.Body).Decode(&stories); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(stories) != 2 {
		t.Errorf("Expected 2 stories, got %d", len(stories))
	}
}

func TestSessionLifecycle(t *testing.T) {
	storyHandler, sessionHandler := newTestHandlers(t)
	storyID := createStoryViaAPI(t, storyHandler)

	// Open
	payload := fmt.Sprintf(`{"story_id":%q}`, storyID)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(payload))
	w := httptest.NewRecorder()
	sessionHandler.CreateSession(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var opened map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&opened); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	sessionID, _ := opened["session_id"].(string)
	if sessionID == "" {
		t.Fatal("Expected session_id in response")
	}

	// Story has no audio, so the session opens degraded
	state := opened["state"].(map[string]interface{})
	if state["state"] != "degraded" {
		t.Errorf("Expected degraded state, got %v", state["state"])
	}

	// Play must be refused while degraded
	req = httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+sessionID+"/controls", strings.NewReader(`{"action":"play"}`))
	w = httptest.NewRecorder()
	sessionHandler.PostControls(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409 for play while degraded, got %d", w.Code)
	}

	// Manual navigation still works
	req = httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+sessionID+"/controls", strings.NewReader(`{"action":"next"}`))
	w = httptest.NewRecorder()
	sessionHandler.PostControls(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200 for next, got %d", w.Code)
	}

	var snap types.PlaybackState
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("Failed to decode state: %v", err)
	}
	if snap.ActivePageIndex != 1 {
		t.Errorf("Expected active page 1 after next, got %d", snap.ActivePageIndex)
	}

	// Close
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/"+sessionID, nil)
	w = httptest.NewRecorder()
	sessionHandler.CloseSession(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200 on close, got %d", w.Code)
	}

	// Snapshot after close is gone
	req = httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+sessionID, nil)
	w = httptest.NewRecorder()
	sessionHandler.GetSession(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 after close, got %d", w.Code)
	}
}

func TestSessionEvents(t *testing.T) {
	storyHandler, sessionHandler := newTestHandlers(t)
	storyID := createStoryViaAPI(t, storyHandler)

	// Attach narration audio so the session is not degraded
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(fmt.Sprintf(`{"story_id":%q}`, storyID)))
	// audio attach goes through the repository in other tests; here the
	// degraded path is enough to verify event validation
	w := httptest.NewRecorder()
	sessionHandler.CreateSession(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", w.Code)
	}
	var opened map[string]interface{}
	json.NewDecoder(w.Body).Decode(&opened)
	sessionID := opened["session_id"].(string)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+sessionID+"/events", strings.NewReader(`{"type":"bogus"}`))
	w = httptest.NewRecorder()
	sessionHandler.PostEvents(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for unknown event type, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/sessions/unknown/events", strings.NewReader(`{"type":"tick","position_seconds":1}`))
	w = httptest.NewRecorder()
	sessionHandler.PostEvents(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for unknown session, got %d", w.Code)
	}
}

func TestGetAssetRejectsTraversal(t *testing.T) {
	storyHandler, _ := newTestHandlers(t)
	storyID := createStoryViaAPI(t, storyHandler)

	// Paths that climb out of the story's own prefix must be refused
	for _, p := range []string{
		"..",
		"../other/story.json",
		"../../exports/" + storyID + ".zip",
		"illustrations/../../../secret.png",
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/stories/"+storyID+"/assets/"+p, nil)
		w := httptest.NewRecorder()
		storyHandler.GetAsset(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400 for asset path %q, got %d", p, w.Code)
		}
	}

	// A well-formed path that simply does not exist is a plain 404
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stories/"+storyID+"/assets/illustrations/scene_0.png", nil)
	w := httptest.NewRecorder()
	storyHandler.GetAsset(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for missing asset, got %d", w.Code)
	}
}

func TestExportStoryEndpoint(t *testing.T) {
	storyHandler, _ := newTestHandlers(t)
	storyID := createStoryViaAPI(t, storyHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stories/"+storyID+"/export", nil)
	w := httptest.NewRecorder()
	storyHandler.ExportStory(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/zip" {
		t.Errorf("Expected zip content type, got %q", ct)
	}
	if w.Body.Len() == 0 {
		t.Error("Expected non-empty archive")
	}
}
