package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/jmylchreest/tvplay/internal/app"
	"github.com/jmylchreest/tvplay/internal/models"
)

// PlayerHandler exposes the player controls.
type PlayerHandler struct {
	app *app.App
}

// NewPlayerHandler creates a player handler.
func NewPlayerHandler(a *app.App) *PlayerHandler {
	return &PlayerHandler{app: a}
}

// Register registers the player routes with the API.
func (h *PlayerHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getPlayer",
		Method:      "GET",
		Path:        "/api/v1/player",
		Summary:     "Player status",
		Description: "Returns the player state, the active backend and the quality ladder",
		Tags:        []string{"Player"},
	}, h.GetPlayer)

	huma.Register(api, huma.Operation{
		OperationID: "selectChannel",
		Method:      "POST",
		Path:        "/api/v1/player/select",
		Summary:     "Select channel",
		Description: "Starts playback of a channel from the loaded playlist",
		Tags:        []string{"Player"},
	}, h.SelectChannel)

	huma.Register(api, huma.Operation{
		OperationID: "playURL",
		Method:      "POST",
		Path:        "/api/v1/player/play",
		Summary:     "Play URL",
		Description: "Starts playback of a stream URL that is not in the playlist",
		Tags:        []string{"Player"},
	}, h.PlayURL)

	h.registerCommand(api, "playerBack", "/api/v1/player/back", "Back",
		"Leaves the player for the channel list, or the list for the dashboard", h.app.Back)
	h.registerCommand(api, "togglePlay", "/api/v1/player/toggle-play", "Toggle play",
		"Pauses a playing stream or resumes a paused one", h.app.Player().TogglePlay)
	h.registerCommand(api, "toggleMute", "/api/v1/player/toggle-mute", "Toggle mute", "", h.app.Player().ToggleMute)
	h.registerCommand(api, "toggleFullscreen", "/api/v1/player/toggle-fullscreen", "Toggle fullscreen", "",
		h.app.Player().ToggleFullscreen)
	h.registerCommand(api, "reloadPlayer", "/api/v1/player/reload", "Reload",
		"Restarts the current channel from scratch", h.app.Player().Reload)

	huma.Register(api, huma.Operation{
		OperationID: "setVolume",
		Method:      "PUT",
		Path:        "/api/v1/player/volume",
		Summary:     "Set volume",
		Tags:        []string{"Player"},
	}, h.SetVolume)
}

// PlayerOutput is the output of every player endpoint.
type PlayerOutput struct {
	Body PlayerResponse
}

// CommandInput is the input of argument-less player commands.
type CommandInput struct{}

func (h *PlayerHandler) registerCommand(api huma.API, id, path, summary, description string, cmd func(context.Context) error) {
	huma.Register(api, huma.Operation{
		OperationID: id,
		Method:      "POST",
		Path:        path,
		Summary:     summary,
		Description: description,
		Tags:        []string{"Player"},
	}, func(ctx context.Context, input *CommandInput) (*PlayerOutput, error) {
		if err := cmd(ctx); err != nil {
			return nil, toAPIError(summary+" failed", err)
		}
		return h.snapshot(ctx), nil
	})
}

// snapshot waits for the element events a command queued, then reports.
func (h *PlayerHandler) snapshot(ctx context.Context) *PlayerOutput {
	_ = h.app.Player().Sync(ctx)
	return &PlayerOutput{Body: PlayerResponse{
		State:   h.app.State(),
		Status:  h.app.Player().Status(),
		Section: h.app.Section(),
	}}
}

// GetPlayerInput is the input for the player status.
type GetPlayerInput struct{}

// GetPlayer returns the player status.
func (h *PlayerHandler) GetPlayer(ctx context.Context, input *GetPlayerInput) (*PlayerOutput, error) {
	return h.snapshot(ctx), nil
}

// SelectChannelInput is the input for selecting a channel.
type SelectChannelInput struct {
	Body struct {
		ChannelID string `json:"channel_id" minLength:"1" doc:"Channel ID from the loaded playlist"`
	}
}

// SelectChannel starts playback of a catalog channel.
func (h *PlayerHandler) SelectChannel(ctx context.Context, input *SelectChannelInput) (*PlayerOutput, error) {
	if _, err := h.app.SelectChannel(ctx, input.Body.ChannelID); err != nil {
		return nil, toAPIError("failed to select channel", err)
	}
	return h.snapshot(ctx), nil
}

// PlayURLInput is the input for ad hoc playback.
type PlayURLInput struct {
	Body struct {
		URL   string `json:"url" doc:"Stream URL"`
		Name  string `json:"name,omitempty" doc:"Display name; defaults to the URL"`
		Group string `json:"group,omitempty"`
		Logo  string `json:"logo,omitempty"`
	}
}

// PlayURL starts playback of an ad hoc channel.
func (h *PlayerHandler) PlayURL(ctx context.Context, input *PlayURLInput) (*PlayerOutput, error) {
	ch := models.Channel{
		Name:  input.Body.Name,
		URL:   input.Body.URL,
		Group: input.Body.Group,
		Logo:  input.Body.Logo,
	}
	if err := h.app.Play(ctx, ch); err != nil {
		return nil, toAPIError("failed to play url", err)
	}
	return h.snapshot(ctx), nil
}

// SetVolumeInput is the input for changing the volume.
type SetVolumeInput struct {
	Body struct {
		Volume float64 `json:"volume" minimum:"0" maximum:"1" doc:"Volume from 0 to 1"`
	}
}

// SetVolume changes the volume.
func (h *PlayerHandler) SetVolume(ctx context.Context, input *SetVolumeInput) (*PlayerOutput, error) {
	if err := h.app.Player().SetVolume(ctx, input.Body.Volume); err != nil {
		return nil, toAPIError("failed to set volume", err)
	}
	return h.snapshot(ctx), nil
}
