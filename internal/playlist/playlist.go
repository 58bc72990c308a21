// Package playlist turns M3U/M3U8 playlists into channel lists.
package playlist

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jmylchreest/tvplay/internal/models"
	"github.com/jmylchreest/tvplay/pkg/m3u"
)

// Options tune a parse.
type Options struct {
	// Logger receives skipped-entry warnings at debug level. Optional.
	Logger *slog.Logger
	// NewID generates channel ids. Defaults to models.NewID.
	NewID func() string
	// Decompressed skips compression sniffing for input that is already
	// plain text.
	Decompressed bool
}

// Parse reads an M3U playlist and returns its channels in input order.
// Each channel gets a fresh id. Entries without a stream URL are dropped.
// The input may be gzip, bzip2 or xz compressed.
func Parse(r io.Reader) ([]models.Channel, error) {
	return ParseWithOptions(r, Options{})
}

// ParseString is Parse over an in-memory playlist. Text input cannot fail to
// read, so only the channels are returned.
func ParseString(text string) []models.Channel {
	channels, _ := Parse(strings.NewReader(text))
	return channels
}

// ParseWithOptions is Parse with a logger and id generator.
func ParseWithOptions(r io.Reader, opts Options) ([]models.Channel, error) {
	newID := opts.NewID
	if newID == nil {
		newID = models.NewID
	}

	channels := make([]models.Channel, 0, 64)
	p := &m3u.Parser{
		OnEntry: func(e *m3u.Entry) error {
			channels = append(channels, channelFromEntry(e, newID()))
			return nil
		},
	}
	if opts.Logger != nil {
		p.OnWarning = func(line int, err error) {
			opts.Logger.Debug("skipped playlist entry",
				slog.Int("line", line),
				slog.String("reason", err.Error()),
			)
		}
	}

	parse := p.ParseCompressed
	if opts.Decompressed {
		parse = p.Parse
	}
	if err := parse(r); err != nil {
		return nil, fmt.Errorf("parsing playlist: %w", err)
	}
	return channels, nil
}

func channelFromEntry(e *m3u.Entry, id string) models.Channel {
	name := e.Title
	if name == "" {
		name = e.TvgName
	}
	if name == "" {
		name = e.URL
	}
	return models.Channel{
		ID:    id,
		Name:  name,
		URL:   e.URL,
		Logo:  e.TvgLogo,
		Group: e.GroupTitle,
	}
}

// Export writes channels as an extended M3U playlist.
func Export(w io.Writer, channels []models.Channel) error {
	mw := m3u.NewWriter(w)
	for i := range channels {
		ch := &channels[i]
		entry := &m3u.Entry{
			Duration:   -1,
			Title:      ch.Name,
			URL:        ch.URL,
			TvgLogo:    ch.Logo,
			GroupTitle: ch.Group,
		}
		if err := mw.WriteEntry(entry); err != nil {
			return err
		}
	}
	return mw.Flush()
}
