// Package m3u provides streaming M3U playlist parsing and writing.
//
// The parser is deliberately lenient: an #EXTINF directive opens a pending
// entry, the next line starting with "http" completes it, and everything else
// is skipped. Problems never abort a parse; they are reported through the
// optional OnWarning hook.
package m3u

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/ulikunitz/xz"
)

// Entry is a single completed #EXTINF + URL pair.
type Entry struct {
	// Duration in seconds as written on the EXTINF line (-1 for live).
	Duration int

	// Title is the display name: the text after the last comma outside quotes.
	Title string

	// URL is the stream location.
	URL string

	TvgID         string
	TvgName       string
	TvgLogo       string
	GroupTitle    string
	ChannelNumber int

	// Extra holds any other key="value" attributes found on the EXTINF line.
	Extra map[string]string

	// Line is the 1-based line number of the EXTINF directive.
	Line int
}

// Warning sentinels passed to OnWarning.
var (
	ErrMalformedExtinf = errors.New("malformed EXTINF directive")
	ErrMissingURL      = errors.New("EXTINF entry has no stream URL")
	ErrLineTooLong     = errors.New("line exceeds maximum length")
)

// Parser provides streaming M3U parsing with callback-based processing.
type Parser struct {
	// OnEntry is called for each completed entry, in input order.
	OnEntry func(entry *Entry) error

	// OnWarning is called for entries that were skipped. Optional.
	OnWarning func(lineNum int, err error)
}

const (
	extinfPrefix = "#EXTINF:"
	urlPrefix    = "http"
	maxLineSize  = 1024 * 1024
)

var (
	// #EXTINF:<duration> <attributes>,<title>
	extinfRegex = regexp.MustCompile(`^#EXTINF:\s*(-?\d+(?:\.\d+)?)\s*(.*)$`)

	// key="value" or key=value
	attrRegex = regexp.MustCompile(`([a-zA-Z0-9_-]+)=(?:"([^"]*)"|([^\s,]+))`)
)

// Parse scans an uncompressed playlist, calling OnEntry for each channel.
// Lines longer than 1 MiB are skipped with ErrLineTooLong; an over-long
// EXTINF line drops its entry.
func (p *Parser) Parse(r io.Reader) error {
	if p.OnEntry == nil {
		return errors.New("OnEntry callback is required")
	}

	br := bufio.NewReaderSize(r, 64*1024)

	var pending *Entry
	lineNum := 0

	for {
		raw, tooLong, readErr := readLine(br, maxLineSize)
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("reading M3U: %w", readErr)
		}
		if readErr == nil || len(raw) > 0 {
			lineNum++
		}
		line := strings.TrimSpace(string(raw))

		switch {
		case line == "":
		case tooLong:
			if strings.HasPrefix(line, extinfPrefix) {
				pending = nil
			}
			p.warn(lineNum, ErrLineTooLong)

		case strings.HasPrefix(line, extinfPrefix):
			if pending != nil {
				p.warn(pending.Line, ErrMissingURL)
			}
			entry, err := parseExtinf(line)
			if err != nil {
				pending = nil
				p.warn(lineNum, err)
				break
			}
			entry.Line = lineNum
			pending = entry

		case strings.HasPrefix(line, urlPrefix):
			if pending == nil {
				break
			}
			pending.URL = line
			if err := p.OnEntry(pending); err != nil {
				return fmt.Errorf("callback error at line %d: %w", lineNum, err)
			}
			pending = nil
		}

		if readErr != nil {
			break
		}
	}

	if pending != nil {
		p.warn(pending.Line, ErrMissingURL)
	}
	return nil
}

// readLine returns the next line including its terminator. Lines longer than
// limit are consumed to the end but only their first limit bytes are kept.
func readLine(br *bufio.Reader, limit int) (line []byte, tooLong bool, err error) {
	for {
		chunk, err := br.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(chunk) > limit {
				line = append(line, chunk[:limit-len(line)]...)
				tooLong = true
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return line, tooLong, err
	}
}

// ParseCompressed parses a playlist that may be gzip, bzip2 or xz compressed.
// Compression is detected from the leading magic bytes.
func (p *Parser) ParseCompressed(r io.Reader) error {
	rc, err := NewDecompressReader(r)
	if err != nil {
		return err
	}
	defer rc.Close()
	return p.Parse(rc)
}

// NewDecompressReader wraps r so that gzip, bzip2 and xz payloads are
// transparently decompressed. Plain input is passed through.
func NewDecompressReader(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	header, err := br.Peek(6)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("peeking header: %w", err)
	}

	switch DetectCompression(header) {
	case CompressionGzip:
		gzr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("creating gzip reader: %w", err)
		}
		return gzr, nil
	case CompressionBzip2:
		bzr, err := bzip2.NewReader(br, nil)
		if err != nil {
			return nil, fmt.Errorf("creating bzip2 reader: %w", err)
		}
		return bzr, nil
	case CompressionXZ:
		xzr, err := xz.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("creating xz reader: %w", err)
		}
		return io.NopCloser(xzr), nil
	default:
		return io.NopCloser(br), nil
	}
}

// Compression identifies a playlist container encoding.
type Compression string

const (
	CompressionNone  Compression = "none"
	CompressionGzip  Compression = "gzip"
	CompressionBzip2 Compression = "bzip2"
	CompressionXZ    Compression = "xz"
)

var xzMagic = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}

// DetectCompression inspects the first bytes of a payload.
func DetectCompression(header []byte) Compression {
	switch {
	case len(header) >= 2 && header[0] == 0x1f && header[1] == 0x8b:
		return CompressionGzip
	case bytes.HasPrefix(header, []byte("BZh")):
		return CompressionBzip2
	case bytes.HasPrefix(header, xzMagic):
		return CompressionXZ
	default:
		return CompressionNone
	}
}

func parseExtinf(line string) (*Entry, error) {
	m := extinfRegex.FindStringSubmatch(line)
	if m == nil {
		return nil, ErrMalformedExtinf
	}

	entry := &Entry{Extra: make(map[string]string)}
	if d, err := strconv.ParseFloat(m[1], 64); err == nil {
		entry.Duration = int(d)
	}

	rest := m[2]
	if idx := titleSeparator(rest); idx >= 0 {
		entry.Title = strings.TrimSpace(rest[idx+1:])
		rest = rest[:idx]
	}

	for _, am := range attrRegex.FindAllStringSubmatch(rest, -1) {
		key := strings.ToLower(am[1])
		value := am[2]
		if value == "" {
			value = am[3]
		}
		switch key {
		case "tvg-id":
			entry.TvgID = value
		case "tvg-name":
			entry.TvgName = value
		case "tvg-logo":
			entry.TvgLogo = value
		case "group-title":
			entry.GroupTitle = value
		case "tvg-chno":
			entry.ChannelNumber, _ = strconv.Atoi(value)
		default:
			entry.Extra[key] = value
		}
	}
	return entry, nil
}

// titleSeparator returns the index of the last comma that is not inside a
// quoted attribute value, or -1.
func titleSeparator(s string) int {
	quoted := false
	for i := len(s) - 1; i >= 0; i-- {
		switch s[i] {
		case '"':
			quoted = !quoted
		case ',':
			if !quoted {
				return i
			}
		}
	}
	return -1
}

func (p *Parser) warn(lineNum int, err error) {
	if p.OnWarning != nil {
		p.OnWarning(lineNum, err)
	}
}
