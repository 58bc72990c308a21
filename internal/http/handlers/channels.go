package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/jmylchreest/tvplay/internal/app"
	"github.com/jmylchreest/tvplay/internal/catalog"
	"github.com/jmylchreest/tvplay/internal/models"
)

// ChannelHandler serves the channel browser: search, grouping, view mode
// and section navigation.
type ChannelHandler struct {
	app *app.App
}

// NewChannelHandler creates a channel handler.
func NewChannelHandler(a *app.App) *ChannelHandler {
	return &ChannelHandler{app: a}
}

// Register registers the channel routes with the API.
func (h *ChannelHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listChannels",
		Method:      "GET",
		Path:        "/api/v1/channels",
		Summary:     "List channels",
		Description: "Lists loaded channels, optionally filtered by a case-insensitive search on name or group",
		Tags:        []string{"Channels"},
	}, h.ListChannels)

	huma.Register(api, huma.Operation{
		OperationID: "getChannel",
		Method:      "GET",
		Path:        "/api/v1/channels/{id}",
		Summary:     "Get channel",
		Tags:        []string{"Channels"},
	}, h.GetChannel)

	huma.Register(api, huma.Operation{
		OperationID: "listGroups",
		Method:      "GET",
		Path:        "/api/v1/groups",
		Summary:     "List groups",
		Description: "Lists channel groups in first-appearance order with their sizes",
		Tags:        []string{"Channels"},
	}, h.ListGroups)

	huma.Register(api, huma.Operation{
		OperationID: "setViewMode",
		Method:      "PUT",
		Path:        "/api/v1/view",
		Summary:     "Set view mode",
		Tags:        []string{"Channels"},
	}, h.SetViewMode)

	huma.Register(api, huma.Operation{
		OperationID: "listSections",
		Method:      "GET",
		Path:        "/api/v1/sections",
		Summary:     "List sections",
		Tags:        []string{"Navigation"},
	}, h.ListSections)

	huma.Register(api, huma.Operation{
		OperationID: "navigate",
		Method:      "POST",
		Path:        "/api/v1/sections/{id}",
		Summary:     "Navigate",
		Description: "Switches to a section. Leaving Live TV stops playback.",
		Tags:        []string{"Navigation"},
	}, h.Navigate)
}

// ListChannelsInput is the input for listing channels.
type ListChannelsInput struct {
	Search  string `query:"search" doc:"Case-insensitive match on channel name or group"`
	View    string `query:"view" enum:"list,grid" doc:"Rendering hint; defaults to the current view mode"`
	Grouped bool   `query:"grouped" doc:"Return channels bucketed by group"`
}

// ListChannelsOutput is the output for listing channels.
type ListChannelsOutput struct {
	Body ChannelListResponse
}

// ListChannels returns the filtered channel list.
func (h *ChannelHandler) ListChannels(ctx context.Context, input *ListChannelsInput) (*ListChannelsOutput, error) {
	view := h.app.ViewMode()
	if input.View != "" {
		v, err := catalog.ParseViewMode(input.View)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid view mode", err)
		}
		view = v
	}

	channels := h.app.Channels(input.Search)
	resp := &ListChannelsOutput{Body: ChannelListResponse{
		View:    view,
		Columns: view.Columns(),
		Total:   len(channels),
	}}
	if input.Grouped {
		resp.Body.Groups = catalog.Group(channels)
	} else {
		resp.Body.Channels = channels
	}
	return resp, nil
}

// GetChannelInput is the input for getting a channel.
type GetChannelInput struct {
	ID string `path:"id" doc:"Channel ID"`
}

// GetChannelOutput is the output for getting a channel.
type GetChannelOutput struct {
	Body models.Channel
}

// GetChannel returns a single channel.
func (h *ChannelHandler) GetChannel(ctx context.Context, input *GetChannelInput) (*GetChannelOutput, error) {
	ch, err := h.app.Catalog().Find(input.ID)
	if err != nil {
		return nil, toAPIError("channel not found", err)
	}
	return &GetChannelOutput{Body: ch}, nil
}

// ListGroupsInput is the input for listing groups.
type ListGroupsInput struct {
	Search string `query:"search" doc:"Only count channels matching the term"`
}

// ListGroupsOutput is the output for listing groups.
type ListGroupsOutput struct {
	Body struct {
		Groups []catalog.GroupSummary `json:"groups"`
	}
}

// ListGroups returns group names and sizes.
func (h *ChannelHandler) ListGroups(ctx context.Context, input *ListGroupsInput) (*ListGroupsOutput, error) {
	resp := &ListGroupsOutput{}
	resp.Body.Groups = catalog.GroupNames(h.app.Channels(input.Search))
	return resp, nil
}

// SetViewModeInput is the input for changing the view mode.
type SetViewModeInput struct {
	Body struct {
		View string `json:"view" enum:"list,grid"`
	}
}

// SetViewModeOutput is the output for changing the view mode.
type SetViewModeOutput struct {
	Body struct {
		View    catalog.ViewMode `json:"view"`
		Columns int              `json:"columns"`
	}
}

// SetViewMode changes the default rendering hint.
func (h *ChannelHandler) SetViewMode(ctx context.Context, input *SetViewModeInput) (*SetViewModeOutput, error) {
	v, err := catalog.ParseViewMode(input.Body.View)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid view mode", err)
	}
	h.app.SetViewMode(v)

	resp := &SetViewModeOutput{}
	resp.Body.View = v
	resp.Body.Columns = v.Columns()
	return resp, nil
}

// ListSectionsInput is the input for listing sections.
type ListSectionsInput struct{}

// ListSectionsOutput is the output for listing sections.
type ListSectionsOutput struct {
	Body struct {
		Current  app.Section       `json:"current"`
		Sections []app.SectionInfo `json:"sections"`
	}
}

// ListSections returns the navigation targets and the current one.
func (h *ChannelHandler) ListSections(ctx context.Context, input *ListSectionsInput) (*ListSectionsOutput, error) {
	resp := &ListSectionsOutput{}
	resp.Body.Current = h.app.Section()
	resp.Body.Sections = app.Sections()
	return resp, nil
}

// NavigateInput is the input for navigation.
type NavigateInput struct {
	ID string `path:"id" enum:"dashboard,live-tv,movies,series"`
}

// NavigateOutput is the output for navigation.
type NavigateOutput struct {
	Body app.SectionInfo
}

// Navigate switches the current section.
func (h *ChannelHandler) Navigate(ctx context.Context, input *NavigateInput) (*NavigateOutput, error) {
	info, err := h.app.Navigate(ctx, input.ID)
	if err != nil {
		return nil, toAPIError("failed to navigate", err)
	}
	return &NavigateOutput{Body: info}, nil
}
