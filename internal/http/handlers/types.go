// Package handlers provides the HTTP API handlers of the tvplay shell.
package handlers

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/jmylchreest/tvplay/internal/app"
	"github.com/jmylchreest/tvplay/internal/catalog"
	"github.com/jmylchreest/tvplay/internal/models"
	"github.com/jmylchreest/tvplay/internal/player"
	"github.com/jmylchreest/tvplay/internal/playlist"
)

// Health types

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status        string            `json:"status" doc:"Overall status"`
	Timestamp     string            `json:"timestamp" doc:"Time of the check (RFC 3339)"`
	Version       string            `json:"version" doc:"Build version"`
	Uptime        string            `json:"uptime" doc:"Human readable uptime"`
	UptimeSeconds float64           `json:"uptime_seconds" doc:"Uptime in seconds"`
	SystemLoad    float64           `json:"system_load" doc:"1 minute load normalised to 0-1"`
	CPUInfo       CPUInfo           `json:"cpu_info"`
	Memory        MemoryInfo        `json:"memory"`
	Checks        map[string]string `json:"checks,omitempty" doc:"Component check results"`
}

// CPUInfo reports load averages.
type CPUInfo struct {
	Cores              int     `json:"cores"`
	Load1Min           float64 `json:"load_1min"`
	Load5Min           float64 `json:"load_5min"`
	Load15Min          float64 `json:"load_15min"`
	LoadPercentage1Min float64 `json:"load_percentage_1min"`
}

// MemoryInfo reports system and process memory in MiB.
type MemoryInfo struct {
	TotalMemoryMB     float64           `json:"total_memory_mb"`
	UsedMemoryMB      float64           `json:"used_memory_mb"`
	FreeMemoryMB      float64           `json:"free_memory_mb"`
	AvailableMemoryMB float64           `json:"available_memory_mb"`
	SwapTotalMB       float64           `json:"swap_total_mb"`
	SwapUsedMB        float64           `json:"swap_used_mb"`
	ProcessMemory     ProcessMemoryInfo `json:"process_memory"`
}

// ProcessMemoryInfo reports the resident size of this process.
type ProcessMemoryInfo struct {
	MainProcessMB      float64 `json:"main_process_mb"`
	PercentageOfSystem float64 `json:"percentage_of_system"`
	Goroutines         int     `json:"goroutines"`
}

// ProbeResponse is the body of the liveness and readiness probes.
type ProbeResponse struct {
	Status     string            `json:"status" enum:"ok,not_ready"`
	Components map[string]string `json:"components,omitempty"`
}

// Player types

// PlayerResponse combines the shell state with the player core status.
type PlayerResponse struct {
	State   models.PlayerState `json:"state"`
	Status  player.Status      `json:"status"`
	Section app.Section        `json:"section"`
}

// ChannelListResponse is the flat or grouped channel listing.
type ChannelListResponse struct {
	View     catalog.ViewMode       `json:"view" enum:"list,grid"`
	Columns  int                    `json:"columns" doc:"Suggested columns for the view"`
	Total    int                    `json:"total" doc:"Number of matching channels"`
	Channels []models.Channel       `json:"channels,omitempty" doc:"Matching channels in playlist order"`
	Groups   []catalog.ChannelGroup `json:"groups,omitempty" doc:"Matching channels by group, when grouped"`
}

// toAPIError maps domain errors onto HTTP problems.
func toAPIError(msg string, err error) error {
	var verr models.ErrValidation
	switch {
	case errors.Is(err, models.ErrChannelNotFound):
		return huma.Error404NotFound(msg, err)
	case errors.Is(err, app.ErrUnknownSection):
		return huma.Error404NotFound(msg, err)
	case errors.Is(err, playlist.ErrPlaylistFetch):
		return huma.Error502BadGateway(msg, err)
	case errors.Is(err, playlist.ErrPlaylistTooBig):
		return huma.NewError(http.StatusRequestEntityTooLarge, msg, err)
	case errors.Is(err, playlist.ErrPlaylistRead),
		errors.Is(err, playlist.ErrUnknownSource),
		errors.Is(err, playlist.ErrMissingLocation),
		errors.As(err, &verr):
		return huma.Error400BadRequest(msg, err)
	case errors.Is(err, player.ErrLoopStopped):
		return huma.Error503ServiceUnavailable(msg, err)
	default:
		return huma.Error500InternalServerError(msg, err)
	}
}
