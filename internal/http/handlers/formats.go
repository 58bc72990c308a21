package handlers

import (
	"context"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/jmylchreest/tvplay/internal/streamtype"
)

// FormatsHandler reports playable formats and classifies stream URLs.
type FormatsHandler struct {
	prober streamtype.CapabilityProber
}

// NewFormatsHandler creates a formats handler probing the given element.
func NewFormatsHandler(prober streamtype.CapabilityProber) *FormatsHandler {
	return &FormatsHandler{prober: prober}
}

// Register registers the format routes with the API.
func (h *FormatsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listFormats",
		Method:      "GET",
		Path:        "/api/v1/formats",
		Summary:     "Supported formats",
		Description: "Lists the media formats the playback element claims to support",
		Tags:        []string{"Formats"},
	}, h.ListFormats)

	huma.Register(api, huma.Operation{
		OperationID: "detectStream",
		Method:      "GET",
		Path:        "/api/v1/detect",
		Summary:     "Detect stream type",
		Description: "Classifies a stream URL by protocol and container",
		Tags:        []string{"Formats"},
	}, h.Detect)
}

// ListFormatsInput is the input for listing formats.
type ListFormatsInput struct{}

// ListFormatsOutput is the output for listing formats.
type ListFormatsOutput struct {
	Body struct {
		Formats []string `json:"formats" doc:"Display labels of supported formats"`
	}
}

// ListFormats returns the supported format labels.
func (h *FormatsHandler) ListFormats(ctx context.Context, input *ListFormatsInput) (*ListFormatsOutput, error) {
	resp := &ListFormatsOutput{}
	resp.Body.Formats = streamtype.SupportedFormats(h.prober)
	return resp, nil
}

// DetectInput is the input for stream detection.
type DetectInput struct {
	URL string `query:"url" required:"true" doc:"Stream URL to classify"`
}

// DetectOutput is the output for stream detection.
type DetectOutput struct {
	Body struct {
		streamtype.Info
		Supported bool `json:"supported" doc:"Whether the player has a playback path for the type"`
	}
}

// Detect classifies a URL.
func (h *FormatsHandler) Detect(ctx context.Context, input *DetectInput) (*DetectOutput, error) {
	if strings.TrimSpace(input.URL) == "" {
		return nil, huma.Error400BadRequest("url is required")
	}
	info := streamtype.Detect(input.URL)
	resp := &DetectOutput{}
	resp.Body.Info = info
	resp.Body.Supported = info.Type.Supported()
	return resp, nil
}
