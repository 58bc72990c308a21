package m3u

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strings"
)

// Writer emits entries as an extended M3U playlist.
type Writer struct {
	bw     *bufio.Writer
	header bool
}

// NewWriter creates a new M3U writer. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriter(w)}
}

// WriteHeader writes the #EXTM3U line once.
func (w *Writer) WriteHeader() error {
	if w.header {
		return nil
	}
	if _, err := w.bw.WriteString("#EXTM3U\n"); err != nil {
		return fmt.Errorf("writing M3U header: %w", err)
	}
	w.header = true
	return nil
}

// WriteEntry writes one EXTINF directive followed by its URL.
func (w *Writer) WriteEntry(entry *Entry) error {
	if err := w.WriteHeader(); err != nil {
		return err
	}

	duration := entry.Duration
	if duration == 0 {
		duration = -1
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "#EXTINF:%d", duration)
	writeAttr(&sb, "tvg-id", entry.TvgID)
	writeAttr(&sb, "tvg-name", entry.TvgName)
	writeAttr(&sb, "tvg-logo", entry.TvgLogo)
	writeAttr(&sb, "group-title", entry.GroupTitle)
	if entry.ChannelNumber > 0 {
		fmt.Fprintf(&sb, ` tvg-chno="%d"`, entry.ChannelNumber)
	}
	keys := make([]string, 0, len(entry.Extra))
	for k := range entry.Extra {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		writeAttr(&sb, k, entry.Extra[k])
	}
	sb.WriteByte(',')
	sb.WriteString(entry.Title)
	sb.WriteByte('\n')
	sb.WriteString(entry.URL)
	sb.WriteByte('\n')

	if _, err := w.bw.WriteString(sb.String()); err != nil {
		return fmt.Errorf("writing entry %q: %w", entry.Title, err)
	}
	return nil
}

// Flush writes any buffered data to the underlying writer.
func (w *Writer) Flush() error {
	if err := w.WriteHeader(); err != nil {
		return err
	}
	return w.bw.Flush()
}

func writeAttr(sb *strings.Builder, key, value string) {
	if value == "" {
		return
	}
	// Quotes would end the attribute early; the parser has no escape syntax.
	fmt.Fprintf(sb, ` %s="%s"`, key, strings.ReplaceAll(value, `"`, "'"))
}
