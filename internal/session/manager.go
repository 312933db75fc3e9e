package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noorkids/storyplayer/internal/notify"
	"github.com/noorkids/storyplayer/internal/pagemodel"
	"github.com/noorkids/storyplayer/internal/paginator"
	"github.com/noorkids/storyplayer/internal/playback"
	"github.com/noorkids/storyplayer/internal/story"
	"github.com/noorkids/storyplayer/pkg/types"
)

// ResourceEvent is an audio lifecycle report posted by the client that owns
// the audio element: metadata loaded, clock tick, track finished, load error.
type ResourceEvent struct {
	Type     string  `json:"type"`
	Duration float64 `json:"duration_seconds,omitempty"`
	Position float64 `json:"position_seconds,omitempty"`
	Reason   string  `json:"reason,omitempty"`
}

// Resource event types accepted from the client
const (
	EventDurationKnown = "duration_known"
	EventTick          = "tick"
	EventEnded         = "ended"
	EventLoadError     = "load_error"
)

// Session is one live reading of a story: its page model, playback
// controller and navigation surface.
type Session struct {
	ID         string
	StoryID    string
	Model      *pagemodel.Model
	Controller *playback.Controller
	Navigator  *playback.Navigator
	CreatedAt  time.Time
}

// Manager opens and tracks reading sessions. It wires each session's
// controller notifications into the notify hub and relays late asset
// arrivals into live sessions.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	repo   story.Repository
	hub    *notify.Hub
	config types.PlayerConfig
}

// NewManager creates a session manager
func NewManager(repo story.Repository, hub *notify.Hub, cfg types.PlayerConfig) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		repo:     repo,
		hub:      hub,
		config:   cfg,
	}
}

// Open builds a session for the given story: paginate the body text, build
// the page model, stand up the controller and bind the client-side audio
// resource. A story without narration audio opens in the degraded state so
// navigation and export keep working.
func (m *Manager) Open(ctx context.Context, storyID string) (*Session, error) {
	st, err := m.repo.GetStory(ctx, storyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load story: %w", err)
	}

	storyPages := paginator.Paginate(st.BodyText, m.config.TargetWordsPerPage)
	model, err := pagemodel.Build(st, storyPages, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build page model: %w", err)
	}

	ctrl := playback.NewController(model, m.config.CoverWeight)
	sessionID := uuid.New().String()

	ctrl.SetListeners(playback.Listeners{
		OnPageTurn: func(pageIndex int, state types.PlaybackState) {
			m.hub.BroadcastJSON(sessionID, types.PlayerEvent{
				Type:      types.EventPageTurn,
				SessionID: sessionID,
				PageIndex: pageIndex,
				State:     state,
				At:        time.Now().UTC(),
			})
		},
		OnStateChange: func(state types.PlaybackState) {
			m.hub.BroadcastJSON(sessionID, types.PlayerEvent{
				Type:      types.EventStateChange,
				SessionID: sessionID,
				PageIndex: state.ActivePageIndex,
				State:     state,
				At:        time.Now().UTC(),
			})
		},
		OnDegraded: func(reason string) {
			m.hub.BroadcastJSON(sessionID, types.PlayerEvent{
				Type:      types.EventAudioDegraded,
				SessionID: sessionID,
				Reason:    reason,
				At:        time.Now().UTC(),
			})
		},
	})

	if st.NarrationAudioRef != "" {
		driver := newRemoteDriver(m.hub, sessionID, st.NarrationAudioRef)
		ctrl.BindResource(driver)
		driver.Load()
	} else {
		ctrl.OnLoadError("no narration audio available")
	}

	sess := &Session{
		ID:         sessionID,
		StoryID:    storyID,
		Model:      model,
		Controller: ctrl,
		Navigator:  playback.NewNavigator(ctrl),
		CreatedAt:  time.Now().UTC(),
	}

	m.mu.Lock()
	m.sessions[sessionID] = sess
	m.mu.Unlock()

	log.Printf("[Session] Opened session %s for story %s (%d pages)", sessionID, storyID, model.PageCount())
	return sess, nil
}

// Get returns a session by ID
func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	return sess, ok
}

// HandleResourceEvent feeds a client audio lifecycle report into the
// session's controller.
func (m *Manager) HandleResourceEvent(sessionID string, ev ResourceEvent) error {
	sess, ok := m.Get(sessionID)
	if !ok {
		return fmt.Errorf("session not found: %s", sessionID)
	}

	switch ev.Type {
	case EventDurationKnown:
		return sess.Controller.OnDurationKnown(ev.Duration)
	case EventTick:
		sess.Controller.OnPositionAdvance(ev.Position)
		return nil
	case EventEnded:
		sess.Controller.OnEnded()
		return nil
	case EventLoadError:
		sess.Controller.OnLoadError(ev.Reason)
		return nil
	default:
		return fmt.Errorf("unknown resource event type: %s", ev.Type)
	}
}

// NotifyIllustration pushes a late-arriving scene illustration into every
// live session of the story. Pages that already carry an illustration are
// left untouched.
func (m *Manager) NotifyIllustration(storyID string, sceneIndex int, ref string) {
	m.mu.Lock()
	var targets []*Session
	for _, sess := range m.sessions {
		if sess.StoryID == storyID {
			targets = append(targets, sess)
		}
	}
	m.mu.Unlock()

	for _, sess := range targets {
		pageIndex, attached := sess.Model.AttachIllustrationByScene(sceneIndex, ref)
		if !attached {
			continue
		}
		m.hub.BroadcastJSON(sess.ID, types.PlayerEvent{
			Type:      types.EventIllustration,
			SessionID: sess.ID,
			PageIndex: pageIndex,
			State:     sess.Controller.State(),
			At:        time.Now().UTC(),
		})
	}
}

// Close tears down one session: the controller releases its audio resource
// and the session's notification clients are disconnected.
func (m *Manager) Close(sessionID string) error {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("session not found: %s", sessionID)
	}

	if err := sess.Controller.Close(); err != nil {
		log.Printf("[Session] Failed to close controller for %s: %v", sessionID, err)
	}
	m.hub.CloseSession(sessionID)

	log.Printf("[Session] Closed session %s", sessionID)
	return nil
}

// CloseAll tears down every session, used on server shutdown
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for id, sess := range all {
		if err := sess.Controller.Close(); err != nil {
			log.Printf("[Session] Failed to close controller for %s: %v", id, err)
		}
		m.hub.CloseSession(id)
	}
}

// Count returns the number of live sessions
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
