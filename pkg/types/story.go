package types

import "time"

// Story holds the generated story content and the asset references that
// arrive for it over time. The text fields are written once at creation;
// illustration and audio refs are attached later as generation completes.
type Story struct {
	ID                    string    `json:"id"`
	Title                 string    `json:"title"`
	BodyText              string    `json:"body_text"`
	MoralLesson           string    `json:"moral_lesson"`
	ScriptureReference    string    `json:"scripture_reference"`
	ScriptureOriginalText string    `json:"scripture_original_text"`
	ScriptureTranslation  string    `json:"scripture_translation"`
	ParentNotes           string    `json:"parent_notes,omitempty"`
	CoverImageRef         string    `json:"cover_image_ref,omitempty"`
	SceneIllustrationRefs []string  `json:"scene_illustration_refs,omitempty"`
	NarrationAudioRef     string    `json:"narration_audio_ref,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// PageKind identifies the role of a page in the reading sequence
type PageKind string

const (
	PageCover       PageKind = "cover"
	PageStory       PageKind = "story"
	PageMoral       PageKind = "moral"
	PageScripture   PageKind = "scripture"
	PageParentNotes PageKind = "parent_notes"
	PageEnd         PageKind = "end"
)

// Page is one entry in the ordered page sequence of a story.
// Index values are contiguous 0..N-1 with exactly one cover page at 0 and
// one end page at N-1. IllustrationRef may be absent at construction and is
// set at most once afterwards; Window is attached once audio duration is
// known.
type Page struct {
	Index int      `json:"index"`
	Kind  PageKind `json:"kind"`

	Title string `json:"title,omitempty"` // cover
	Text  string `json:"text,omitempty"`  // story, moral, parent notes

	// Scripture pages only
	ScriptureReference    string `json:"scripture_reference,omitempty"`
	ScriptureOriginalText string `json:"scripture_original_text,omitempty"`
	ScriptureTranslation  string `json:"scripture_translation,omitempty"`

	IllustrationRef string      `json:"illustration_ref,omitempty"`
	Window          *TimeWindow `json:"window,omitempty"`
}

// TimeWindow is the half-open narration interval [Start, End) in seconds
// during which a page is the current one. Windows tile the full audio
// duration exactly: contiguous, non-overlapping, starting at 0.
type TimeWindow struct {
	Start float64 `json:"start_seconds"`
	End   float64 `json:"end_seconds"`
}

// Contains reports whether pos falls inside the half-open interval.
// A position exactly equal to Start belongs to this window.
func (w TimeWindow) Contains(pos float64) bool {
	return pos >= w.Start && pos < w.End
}

// Duration returns the window length in seconds
func (w TimeWindow) Duration() float64 {
	return w.End - w.Start
}

// PlayerState names a state of the playback controller
type PlayerState string

const (
	StateIdle     PlayerState = "idle"     // no audio resource bound
	StateLoading  PlayerState = "loading"  // resource bound, duration unknown
	StateReady    PlayerState = "ready"    // duration known, not playing
	StatePlaying  PlayerState = "playing"
	StatePaused   PlayerState = "paused"
	StateEnded    PlayerState = "ended"
	StateDegraded PlayerState = "degraded" // audio failed; navigation/export still work
)

// PlaybackState is a snapshot of the controller's state. ActivePageIndex is
// derived from Position and the window set, never set independently.
type PlaybackState struct {
	State           PlayerState `json:"state"`
	IsPlaying       bool        `json:"is_playing"`
	Position        float64     `json:"position_seconds"`
	ActivePageIndex int         `json:"active_page_index"`
	Duration        float64     `json:"duration_seconds,omitempty"`
	PageCount       int         `json:"page_count"`
}

// Player event types pushed to the hosting UI
const (
	EventPageTurn      = "page_turn"
	EventStateChange   = "state_change"
	EventAudioDegraded = "audio_degraded"
	EventIllustration  = "illustration_attached"
)

// PlayerEvent is a notification emitted by a reading session for UI
// re-render: page turns, play/pause/ended transitions, degraded audio and
// late illustration arrivals.
type PlayerEvent struct {
	Type      string        `json:"type"`
	SessionID string        `json:"session_id"`
	PageIndex int           `json:"page_index"`
	State     PlaybackState `json:"state"`
	Reason    string        `json:"reason,omitempty"`
	At        time.Time     `json:"at"`
}
