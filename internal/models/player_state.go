package models

import "math"

// DefaultQuality is the quality label shown before an adaptive engine reports
// its ladder, and for native playback.
const DefaultQuality = "Auto"

// PlayerState is the observable state of the player as seen by the shell.
type PlayerState struct {
	CurrentChannel *Channel `json:"current_channel,omitempty"`
	IsPlaying      bool     `json:"is_playing"`
	Volume         float64  `json:"volume"`
	IsMuted        bool     `json:"is_muted"`
	IsFullscreen   bool     `json:"is_fullscreen"`
	CurrentTime    float64  `json:"current_time"`
	Duration       float64  `json:"duration"`
	Quality        string   `json:"quality"`
}

// DefaultPlayerState returns the state of a freshly started shell.
func DefaultPlayerState() PlayerState {
	return PlayerState{
		Volume:  1,
		Quality: DefaultQuality,
	}
}

// PlayerUpdate is a partial state delta. Nil fields are left unchanged.
type PlayerUpdate struct {
	CurrentChannel *Channel `json:"current_channel,omitempty"`
	// ClearChannel resets CurrentChannel to nil; it wins over CurrentChannel.
	ClearChannel bool     `json:"clear_channel,omitempty"`
	IsPlaying    *bool    `json:"is_playing,omitempty"`
	Volume       *float64 `json:"volume,omitempty"`
	IsMuted      *bool    `json:"is_muted,omitempty"`
	IsFullscreen *bool    `json:"is_fullscreen,omitempty"`
	CurrentTime  *float64 `json:"current_time,omitempty"`
	Duration     *float64 `json:"duration,omitempty"`
	Quality      *string  `json:"quality,omitempty"`
}

// IsEmpty reports whether the update carries no change at all.
func (u PlayerUpdate) IsEmpty() bool {
	return u.CurrentChannel == nil && !u.ClearChannel &&
		u.IsPlaying == nil && u.Volume == nil && u.IsMuted == nil &&
		u.IsFullscreen == nil && u.CurrentTime == nil && u.Duration == nil &&
		u.Quality == nil
}

// Apply merges the update into the state and returns the result.
func (s PlayerState) Apply(u PlayerUpdate) PlayerState {
	switch {
	case u.ClearChannel:
		s.CurrentChannel = nil
	case u.CurrentChannel != nil:
		ch := *u.CurrentChannel
		s.CurrentChannel = &ch
	}
	if u.IsPlaying != nil {
		s.IsPlaying = *u.IsPlaying
	}
	if u.Volume != nil {
		s.Volume = ClampVolume(*u.Volume)
	}
	if u.IsMuted != nil {
		s.IsMuted = *u.IsMuted
	}
	if u.IsFullscreen != nil {
		s.IsFullscreen = *u.IsFullscreen
	}
	if u.CurrentTime != nil {
		s.CurrentTime = *u.CurrentTime
	}
	if u.Duration != nil {
		s.Duration = *u.Duration
	}
	if u.Quality != nil {
		s.Quality = *u.Quality
	}
	return s
}

// ClampVolume bounds v to [0, 1]. NaN maps to 0.
func ClampVolume(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
