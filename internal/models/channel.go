package models

import "strings"

// UngroupedLabel is the synthetic group used for channels without a group-title.
const UngroupedLabel = "Ungrouped"

// Channel is a single playable entry of a loaded playlist.
// Channels are immutable once parsed.
type Channel struct {
	// ID is an opaque identifier, unique within a loaded playlist.
	ID string `json:"id"`

	// Name is the display label (EXTINF title).
	Name string `json:"name"`

	// URL is the playback source.
	URL string `json:"url"`

	// Logo is the optional tvg-logo image reference.
	Logo string `json:"logo,omitempty"`

	// Group is the optional group-title category label.
	Group string `json:"group,omitempty"`
}

// GroupName returns the group label used for grouping, substituting
// UngroupedLabel for channels without one.
func (c Channel) GroupName() string {
	if strings.TrimSpace(c.Group) == "" {
		return UngroupedLabel
	}
	return c.Group
}

// Validate checks the fields a channel needs in order to be played.
func (c Channel) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return ErrValidation{Field: "url", Message: ErrURLRequired.Error()}
	}
	return nil
}
