// Package protocol defines the bus subjects and message shapes shared with
// the desktop collaborators: the hotkey helper, the sound player, the text
// injector, and audio-level consumers.
package protocol

import "time"

// HotkeyEvent is published by the hotkey helper when the dictation key is
// pressed. One press toggles the session: idle starts a recording, an
// active recording stops and transcribes.
type HotkeyEvent struct {
	Hotkey    string    `json:"hotkey"`
	PressedAt time.Time `json:"pressed_at"`
}

// FeedbackEvent asks the sound-player collaborator to play one feedback
// cue.
type FeedbackEvent struct {
	Kind string    `json:"kind"`
	At   time.Time `json:"at"`
}

// DeliveryEvent hands a finished transcript to the text-injector
// collaborator, which pastes it into the focused application.
type DeliveryEvent struct {
	SessionID string    `json:"session_id"`
	Provider  string    `json:"provider"`
	Text      string    `json:"text"`
	At        time.Time `json:"at"`
}

// LevelSample is a periodic audio level published by capture helpers. The
// engine only logs it; it exists for UI meters.
type LevelSample struct {
	SessionID string    `json:"session_id"`
	RMS       float64   `json:"rms"`
	Peak      float64   `json:"peak"`
	At        time.Time `json:"at"`
}

const (
	SubjectHotkeyPressed = "hotkey.pressed"
	SubjectSessionCancel = "session.cancel"
	SubjectFeedbackPlay  = "feedback.play"
	SubjectDeliveryText  = "delivery.text"
	SubjectCaptureLevel  = "capture.level"
)
