package session

import (
	"github.com/noorkids/storyplayer/internal/notify"
)

// Audio command names sent to the client holding the actual audio element
const (
	CommandLoad    = "load"
	CommandPlay    = "play"
	CommandPause   = "pause"
	CommandSeek    = "seek"
	CommandRelease = "release"
)

// AudioCommand is the message pushed over the session's notification
// channel to drive the client-side audio element.
type AudioCommand struct {
	Type     string  `json:"type"`
	Command  string  `json:"command"`
	Position float64 `json:"position_seconds,omitempty"`
	AudioRef string  `json:"audio_ref,omitempty"`
}

// remoteDriver satisfies the playback driver interface by relaying commands
// to the browser that owns the audio element. The client answers with
// lifecycle events posted back through the session API, which the manager
// feeds into the controller.
type remoteDriver struct {
	hub       *notify.Hub
	sessionID string
	audioRef  string
}

func newRemoteDriver(hub *notify.Hub, sessionID, audioRef string) *remoteDriver {
	return &remoteDriver{
		hub:       hub,
		sessionID: sessionID,
		audioRef:  audioRef,
	}
}

// Load tells the client which narration resource to mount
func (d *remoteDriver) Load() {
	d.hub.BroadcastJSON(d.sessionID, AudioCommand{
		Type:     "audio_command",
		Command:  CommandLoad,
		AudioRef: d.audioRef,
	})
}

func (d *remoteDriver) Play() error {
	d.hub.BroadcastJSON(d.sessionID, AudioCommand{
		Type:    "audio_command",
		Command: CommandPlay,
	})
	return nil
}

func (d *remoteDriver) Pause() error {
	d.hub.BroadcastJSON(d.sessionID, AudioCommand{
		Type:    "audio_command",
		Command: CommandPause,
	})
	return nil
}

func (d *remoteDriver) Seek(positionSeconds float64) error {
	d.hub.BroadcastJSON(d.sessionID, AudioCommand{
		Type:     "audio_command",
		Command:  CommandSeek,
		Position: positionSeconds,
	})
	return nil
}

func (d *remoteDriver) Release() error {
	d.hub.BroadcastJSON(d.sessionID, AudioCommand{
		Type:    "audio_command",
		Command: CommandRelease,
	})
	return nil
}
