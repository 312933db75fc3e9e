package playback

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/noorkids/storyplayer/internal/pagemodel"
	"github.com/noorkids/storyplayer/internal/timeline"
	"github.com/noorkids/storyplayer/pkg/types"
)

var (
	// ErrPlaybackUnavailable is returned by play/pause when no working
	// audio resource is bound (idle or degraded state)
	ErrPlaybackUnavailable = errors.New("playback unavailable: no working audio resource")

	// ErrClosed is returned after the controller has been closed
	ErrClosed = errors.New("controller is closed")
)

// AudioDriver is the live audio resource the controller drives. The
// controller is the only component allowed to call these; no other actor
// may race it for the playhead.
type AudioDriver interface {
	// Play starts or resumes playback from the current position
	Play() error

	// Pause halts playback, keeping the current position
	Pause() error

	// Seek moves the playhead to the given position in seconds
	Seek(positionSeconds float64) error

	// Release frees the underlying resource
	Release() error
}

// Listeners receive controller notifications. Nil fields are skipped.
// Callbacks run outside the controller lock, after the state transition is
// complete, so they always observe a consistent position/page pair.
type Listeners struct {
	// OnPageTurn fires when the active page index changes for any reason
	OnPageTurn func(pageIndex int, state types.PlaybackState)

	// OnStateChange fires on play/pause/ready/ended transitions
	OnStateChange func(state types.PlaybackState)

	// OnDegraded fires once when the audio resource fails to load
	OnDegraded func(reason string)
}

// Controller is the playback state machine for one reading session. It owns
// PlaybackState exclusively and reacts to lifecycle events pushed by the
// audio resource: duration-known, position ticks, ended, load error. The
// active page index is always derived from position and the window set.
type Controller struct {
	mu          sync.Mutex
	model       *pagemodel.Model
	audio       AudioDriver
	coverWeight float64

	state       types.PlayerState
	duration    float64
	position    float64
	activePage  int
	windows     []types.TimeWindow
	pendingPlay bool
	closed      bool

	// After an explicit seek, one stale (lower) position tick from the
	// audio clock is expected and must be dropped instead of being read as
	// a backward scrub.
	expectSeekEcho bool
	seekTarget     float64

	listeners Listeners
}

// NewController creates a controller over a built page model. The controller
// starts in the idle state with no audio resource bound.
func NewController(model *pagemodel.Model, coverWeight float64) *Controller {
	if coverWeight <= 0 {
		coverWeight = timeline.DefaultCoverWeight
	}
	return &Controller{
		model:       model,
		coverWeight: coverWeight,
		state:       types.StateIdle,
	}
}

// SetListeners registers notification callbacks. Must be called before
// events start flowing.
func (c *Controller) SetListeners(l Listeners) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = l
}

// BindResource attaches the audio resource. The controller moves to the
// loading state until the resource reports its duration; play requests
// arriving meanwhile are queued, not dropped.
func (c *Controller) BindResource(audio AudioDriver) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.audio = audio
	if c.state == types.StateIdle || c.state == types.StateDegraded {
		c.state = types.StateLoading
	}
}

// OnDurationKnown is pushed by the audio resource once metadata has loaded.
// It computes the time windows, attaches them to the page model and moves
// the controller to ready. A queued play intent is applied immediately.
// Calling it again with a new duration (resource reload) recomputes the
// windows only.
func (c *Controller) OnDurationKnown(durationSeconds float64) error {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.audio == nil {
		c.mu.Unlock()
		return ErrPlaybackUnavailable
	}
	if durationSeconds <= 0 {
		c.mu.Unlock()
		return fmt.Errorf("invalid audio duration: %f", durationSeconds)
	}

	windows, err := timeline.Allocate(durationSeconds, c.model.PageCount(), c.coverWeight)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to allocate time windows: %w", err)
	}
	if err := c.model.AttachWindows(windows); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to attach windows: %w", err)
	}

	c.windows = windows
	c.duration = durationSeconds
	if c.state == types.StateIdle || c.state == types.StateLoading {
		c.state = types.StateReady
	}

	// A page chosen manually while the resource was still loading survives
	// duration resolution: the audio joins the page rather than the view
	// snapping back to the cover. Otherwise the page is derived from the
	// position, which may already be meaningful after a resource reload.
	if c.activePage > 0 && c.position == 0 {
		target := windows[c.activePage].Start
		c.position = target
		if err := c.audio.Seek(target); err == nil {
			c.expectSeekEcho = true
			c.seekTarget = target
		}
	} else {
		c.activePage = timeline.FindWindow(c.windows, c.position)
	}

	if c.pendingPlay {
		c.pendingPlay = false
		if err := c.audio.Play(); err != nil {
			log.Printf("[Playback] Queued play failed: %v", err)
		} else {
			c.state = types.StatePlaying
		}
	}

	notify := c.stateChangeLocked()
	c.mu.Unlock()

	notify()
	return nil
}

// OnPositionAdvance is pushed by the audio resource's clock during
// playback. It recomputes the active page from the new position; a changed
// index is a page-turn event. Any jump, forward or backward, produces at
// most one page transition.
func (c *Controller) OnPositionAdvance(positionSeconds float64) {
	c.mu.Lock()

	if c.closed || c.windows == nil || c.state == types.StateEnded {
		c.mu.Unlock()
		return
	}

	// Drop the single out-of-order tick expected right after a seek
	if c.expectSeekEcho {
		c.expectSeekEcho = false
		if positionSeconds < c.seekTarget {
			c.mu.Unlock()
			return
		}
	}

	c.position = positionSeconds
	newPage := timeline.FindWindow(c.windows, positionSeconds)

	var notify func()
	if newPage != c.activePage {
		c.activePage = newPage
		notify = c.pageTurnLocked(newPage)
	}
	c.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// OnEnded is pushed when the audio track finishes. The active page is forced
// to the last index regardless of where float drift left the final position.
// The event is only meaningful once a resource has resolved; a stray ended
// report in the idle, loading or degraded state is dropped.
func (c *Controller) OnEnded() {
	c.mu.Lock()

	if c.closed || c.windows == nil || c.audio == nil {
		c.mu.Unlock()
		return
	}

	c.state = types.StateEnded
	c.position = c.duration
	lastPage := c.model.PageCount() - 1

	var notifyTurn func()
	if c.activePage != lastPage {
		c.activePage = lastPage
		notifyTurn = c.pageTurnLocked(lastPage)
	}
	notifyState := c.stateChangeLocked()
	c.mu.Unlock()

	if notifyTurn != nil {
		notifyTurn()
	}
	notifyState()
}

// OnLoadError is pushed when the audio resource fails to load or decode.
// The controller degrades: the page model and manual navigation keep
// working, playback controls are disabled, and the condition is reported to
// the hosting UI rather than thrown.
func (c *Controller) OnLoadError(reason string) {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		return
	}

	log.Printf("[Playback] Audio resource failed: %s", reason)
	c.state = types.StateDegraded
	c.pendingPlay = false
	c.windows = nil

	onDegraded := c.listeners.OnDegraded
	notifyState := c.stateChangeLocked()
	c.mu.Unlock()

	if onDegraded != nil {
		onDegraded(reason)
	}
	notifyState()
}

// Play starts playback. While the resource is still loading the intent is
// queued and applied once duration resolves. From the ended state Play
// restarts: page 0, position 0, then play.
func (c *Controller) Play() error {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	switch c.state {
	case types.StateIdle, types.StateDegraded:
		c.mu.Unlock()
		return ErrPlaybackUnavailable

	case types.StateLoading:
		c.pendingPlay = true
		c.mu.Unlock()
		return nil

	case types.StatePlaying:
		c.mu.Unlock()
		return nil

	case types.StateEnded:
		if c.audio == nil {
			c.mu.Unlock()
			return ErrPlaybackUnavailable
		}
		// Explicit reset, not a resume
		if err := c.audio.Seek(0); err != nil {
			c.mu.Unlock()
			return fmt.Errorf("failed to rewind audio: %w", err)
		}
		c.position = 0
		c.expectSeekEcho = true
		c.seekTarget = 0

		var notifyTurn func()
		if c.activePage != 0 {
			c.activePage = 0
			notifyTurn = c.pageTurnLocked(0)
		}
		if err := c.audio.Play(); err != nil {
			c.mu.Unlock()
			return fmt.Errorf("failed to start audio: %w", err)
		}
		c.state = types.StatePlaying
		notifyState := c.stateChangeLocked()
		c.mu.Unlock()

		if notifyTurn != nil {
			notifyTurn()
		}
		notifyState()
		return nil

	default: // ready, paused
		if err := c.audio.Play(); err != nil {
			c.mu.Unlock()
			return fmt.Errorf("failed to start audio: %w", err)
		}
		c.state = types.StatePlaying
		notify := c.stateChangeLocked()
		c.mu.Unlock()

		notify()
		return nil
	}
}

// Pause halts playback. A no-op unless currently playing; a queued play
// intent is cancelled.
func (c *Controller) Pause() error {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	c.pendingPlay = false
	if c.state != types.StatePlaying {
		c.mu.Unlock()
		return nil
	}

	if err := c.audio.Pause(); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to pause audio: %w", err)
	}
	c.state = types.StatePaused
	notify := c.stateChangeLocked()
	c.mu.Unlock()

	notify()
	return nil
}

// SeekToPage moves both the visual page and the audio position to the start
// of the given page's window in one atomic transition: no observer sees a
// mismatched position/page pair. Playback state is preserved; seeking while
// playing keeps playing. In the degraded state the visual page still moves
// even though there is no audio to seek.
func (c *Controller) SeekToPage(index int) error {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if index < 0 || index >= c.model.PageCount() {
		c.mu.Unlock()
		return fmt.Errorf("page index %d out of range", index)
	}

	if c.windows != nil {
		target := c.windows[index].Start
		if err := c.audio.Seek(target); err != nil {
			c.mu.Unlock()
			return fmt.Errorf("failed to seek audio: %w", err)
		}
		c.position = target
		c.expectSeekEcho = true
		c.seekTarget = target
	}

	// Explicit intent bypasses the window search
	var notify func()
	if c.activePage != index {
		c.activePage = index
		notify = c.pageTurnLocked(index)
	}
	if c.state == types.StateEnded {
		c.state = types.StatePaused
	}
	c.mu.Unlock()

	if notify != nil {
		notify()
	}
	return nil
}

// State returns a consistent snapshot of the playback state
func (c *Controller) State() types.PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// PageCount returns the page count of the underlying model
func (c *Controller) PageCount() int {
	return c.model.PageCount()
}

// ActivePageIndex returns the currently active page index
func (c *Controller) ActivePageIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activePage
}

// Close releases the audio resource and marks the controller unmounted.
// Events arriving after close are no-ops.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.pendingPlay = false

	if c.audio != nil {
		if err := c.audio.Release(); err != nil {
			return fmt.Errorf("failed to release audio resource: %w", err)
		}
	}
	return nil
}

// snapshotLocked builds a PlaybackState; callers must hold mu
func (c *Controller) snapshotLocked() types.PlaybackState {
	return types.PlaybackState{
		State:           c.state,
		IsPlaying:       c.state == types.StatePlaying,
		Position:        c.position,
		ActivePageIndex: c.activePage,
		Duration:        c.duration,
		PageCount:       c.model.PageCount(),
	}
}

// pageTurnLocked captures a page-turn notification; callers must hold mu.
// The returned func is invoked after unlock.
func (c *Controller) pageTurnLocked(pageIndex int) func() {
	cb := c.listeners.OnPageTurn
	if cb == nil {
		return func() {}
	}
	st := c.snapshotLocked()
	return func() { cb(pageIndex, st) }
}

// stateChangeLocked captures a state-change notification; callers must hold mu
func (c *Controller) stateChangeLocked() func() {
	cb := c.listeners.OnStateChange
	if cb == nil {
		return func() {}
	}
	st := c.snapshotLocked()
	return func() { cb(st) }
}
