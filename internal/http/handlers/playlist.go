package handlers

import (
	"bytes"
	"context"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/jmylchreest/tvplay/internal/app"
	"github.com/jmylchreest/tvplay/internal/catalog"
	"github.com/jmylchreest/tvplay/internal/playlist"
)

// RefreshFunc re-runs the configured playlist load.
type RefreshFunc func(ctx context.Context) error

// PlaylistHandler loads, uploads and exports the channel playlist.
type PlaylistHandler struct {
	app     *app.App
	refresh RefreshFunc
}

// NewPlaylistHandler creates a playlist handler.
func NewPlaylistHandler(a *app.App) *PlaylistHandler {
	return &PlaylistHandler{app: a}
}

// WithRefresh enables the refresh endpoint.
func (h *PlaylistHandler) WithRefresh(fn RefreshFunc) *PlaylistHandler {
	h.refresh = fn
	return h
}

// Register registers the playlist routes with the API.
func (h *PlaylistHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getPlaylist",
		Method:      "GET",
		Path:        "/api/v1/playlist",
		Summary:     "Current playlist",
		Description: "Returns where the loaded playlist came from and its size",
		Tags:        []string{"Playlist"},
	}, h.GetPlaylist)

	huma.Register(api, huma.Operation{
		OperationID: "loadPlaylist",
		Method:      "POST",
		Path:        "/api/v1/playlist/load",
		Summary:     "Load playlist",
		Description: "Loads the sample playlist, a local file or a URL. On failure the current playlist is kept.",
		Tags:        []string{"Playlist"},
	}, h.LoadPlaylist)

	huma.Register(api, huma.Operation{
		OperationID: "uploadPlaylist",
		Method:      "POST",
		Path:        "/api/v1/playlist/upload",
		Summary:     "Upload playlist",
		Description: "Replaces the playlist with the M3U text in the request body",
		Tags:        []string{"Playlist"},
	}, h.UploadPlaylist)

	huma.Register(api, huma.Operation{
		OperationID: "refreshPlaylist",
		Method:      "POST",
		Path:        "/api/v1/playlist/refresh",
		Summary:     "Refresh playlist",
		Description: "Re-runs the configured playlist load now",
		Tags:        []string{"Playlist"},
	}, h.RefreshPlaylist)

	huma.Register(api, huma.Operation{
		OperationID: "exportPlaylist",
		Method:      "GET",
		Path:        "/api/v1/playlist/export",
		Summary:     "Export playlist",
		Description: "Returns the loaded channels as an M3U playlist",
		Tags:        []string{"Playlist"},
	}, h.ExportPlaylist)
}

// PlaylistOutput is the output of the playlist endpoints.
type PlaylistOutput struct {
	Body catalog.Info
}

// GetPlaylistInput is the input for getting the current playlist.
type GetPlaylistInput struct{}

// GetPlaylist returns the loaded playlist summary.
func (h *PlaylistHandler) GetPlaylist(ctx context.Context, input *GetPlaylistInput) (*PlaylistOutput, error) {
	return &PlaylistOutput{Body: h.app.Catalog().Info()}, nil
}

// LoadPlaylistInput is the input for loading a playlist.
type LoadPlaylistInput struct {
	Body struct {
		Source   string `json:"source" enum:"sample,file,url" doc:"Where to load the playlist from"`
		Location string `json:"location,omitempty" doc:"File path or URL; ignored for sample"`
	}
}

// LoadPlaylist loads a playlist from the sample, a file or a URL.
func (h *PlaylistHandler) LoadPlaylist(ctx context.Context, input *LoadPlaylistInput) (*PlaylistOutput, error) {
	req := playlist.Request{
		Source:   playlist.Source(input.Body.Source),
		Location: strings.TrimSpace(input.Body.Location),
	}
	if req.Source == playlist.SourceText {
		return nil, huma.Error400BadRequest("use the upload endpoint for playlist text")
	}
	info, err := h.app.LoadPlaylist(ctx, req)
	if err != nil {
		return nil, toAPIError("failed to load playlist", err)
	}
	return &PlaylistOutput{Body: info}, nil
}

// UploadPlaylistInput is the input for uploading playlist text.
type UploadPlaylistInput struct {
	RawBody []byte
}

// UploadPlaylist parses the request body as an M3U playlist.
func (h *PlaylistHandler) UploadPlaylist(ctx context.Context, input *UploadPlaylistInput) (*PlaylistOutput, error) {
	if len(bytes.TrimSpace(input.RawBody)) == 0 {
		return nil, huma.Error400BadRequest("M3U content is required")
	}
	info, err := h.app.LoadPlaylist(ctx, playlist.Request{
		Source:   playlist.SourceText,
		Location: string(input.RawBody),
	})
	if err != nil {
		return nil, toAPIError("failed to parse playlist", err)
	}
	return &PlaylistOutput{Body: info}, nil
}

// RefreshPlaylistInput is the input for refreshing the playlist.
type RefreshPlaylistInput struct{}

// RefreshPlaylist re-runs the configured load.
func (h *PlaylistHandler) RefreshPlaylist(ctx context.Context, input *RefreshPlaylistInput) (*PlaylistOutput, error) {
	if h.refresh == nil {
		return nil, huma.Error409Conflict("playlist refresh is not configured")
	}
	if err := h.refresh(ctx); err != nil {
		return nil, toAPIError("failed to refresh playlist", err)
	}
	return &PlaylistOutput{Body: h.app.Catalog().Info()}, nil
}

// ExportPlaylistInput is the input for exporting the playlist.
type ExportPlaylistInput struct {
	Search string `query:"search" doc:"Only export channels matching the term"`
}

// ExportPlaylistOutput is the output for exporting the playlist.
type ExportPlaylistOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// ExportPlaylist writes the loaded channels as M3U.
func (h *PlaylistHandler) ExportPlaylist(ctx context.Context, input *ExportPlaylistInput) (*ExportPlaylistOutput, error) {
	var buf bytes.Buffer
	if err := playlist.Export(&buf, h.app.Channels(input.Search)); err != nil {
		return nil, huma.Error500InternalServerError("failed to export playlist", err)
	}
	return &ExportPlaylistOutput{
		ContentType: "audio/x-mpegurl",
		Body:        buf.Bytes(),
	}, nil
}
