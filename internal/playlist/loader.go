package playlist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/jmylchreest/tvplay/internal/metrics"
	"github.com/jmylchreest/tvplay/internal/models"
	"github.com/jmylchreest/tvplay/pkg/httpclient"
	"github.com/jmylchreest/tvplay/pkg/m3u"
)

// Source identifies where a playlist came from.
type Source string

const (
	SourceSample Source = "sample"
	SourceFile   Source = "file"
	SourceURL    Source = "url"
	SourceText   Source = "text"
)

// Loader errors.
var (
	ErrPlaylistFetch   = errors.New("failed to load playlist from URL")
	ErrPlaylistRead    = errors.New("failed to read playlist file")
	ErrPlaylistTooBig  = errors.New("playlist exceeds maximum size")
	ErrUnknownSource   = errors.New("unknown playlist source")
	ErrMissingLocation = errors.New("playlist location is required")
)

// Request describes a single load.
type Request struct {
	Source Source
	// Location is the URL for SourceURL, the path for SourceFile and the
	// playlist body for SourceText. Ignored for SourceSample.
	Location string
}

// Result is a successfully loaded playlist.
type Result struct {
	Source   Source
	Origin   string
	Channels []models.Channel
}

// Loader fetches and parses playlists. A failed load returns exactly one
// error and no channels; callers keep whatever they had before.
type Loader struct {
	client  *httpclient.Client
	logger  *slog.Logger
	maxSize int64
}

// NewLoader creates a loader. maxSize caps file and upload sizes; HTTP bodies
// are capped by the client configuration.
func NewLoader(client *httpclient.Client, logger *slog.Logger, maxSize int64) *Loader {
	if client == nil {
		client = httpclient.NewWithDefaults()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{client: client, logger: logger, maxSize: maxSize}
}

// Load dispatches on the request source and records the outcome.
func (l *Loader) Load(ctx context.Context, req Request) (*Result, error) {
	var (
		channels []models.Channel
		err      error
	)
	switch req.Source {
	case SourceSample:
		channels = Sample()
	case SourceURL:
		channels, err = l.LoadURL(ctx, req.Location)
	case SourceFile:
		channels, err = l.LoadFile(req.Location)
	case SourceText:
		channels, err = l.LoadText(req.Location)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownSource, req.Source)
	}

	metrics.RecordPlaylistLoad(string(req.Source), len(channels), err)
	if err != nil {
		return nil, err
	}

	origin := req.Location
	if req.Source == SourceText {
		origin = "upload"
	}
	return &Result{Source: req.Source, Origin: origin, Channels: channels}, nil
}

// LoadURL fetches a playlist over HTTP(S). Transport failures and non-2xx
// responses both yield ErrPlaylistFetch.
func (l *Loader) LoadURL(ctx context.Context, url string) ([]models.Channel, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, ErrMissingLocation
	}

	resp, err := l.client.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPlaylistFetch, err)
	}
	defer resp.Body.Close()

	channels, err := l.parse(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPlaylistFetch, err)
	}
	return channels, nil
}

// LoadFile reads a playlist from the local filesystem.
func (l *Loader) LoadFile(path string) ([]models.Channel, error) {
	if path == "" {
		return nil, ErrMissingLocation
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPlaylistRead, err)
	}
	defer f.Close()

	if l.maxSize > 0 {
		if info, err := f.Stat(); err == nil && info.Size() > l.maxSize {
			return nil, fmt.Errorf("%w: %d bytes", ErrPlaylistTooBig, info.Size())
		}
	}

	channels, err := l.parse(f, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPlaylistRead, err)
	}
	return channels, nil
}

// LoadText parses an uploaded playlist body.
func (l *Loader) LoadText(text string) ([]models.Channel, error) {
	if l.maxSize > 0 && int64(len(text)) > l.maxSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPlaylistTooBig, len(text))
	}
	return l.parse(strings.NewReader(text), "text/plain; charset=utf-8")
}

func (l *Loader) parse(r io.Reader, contentType string) ([]models.Channel, error) {
	plain, err := m3u.NewDecompressReader(r)
	if err != nil {
		return nil, err
	}
	defer plain.Close()

	decoded, err := charset.NewReader(plain, contentType)
	if err != nil {
		return nil, fmt.Errorf("detecting charset: %w", err)
	}
	return ParseWithOptions(decoded, Options{Logger: l.logger, Decompressed: true})
}
