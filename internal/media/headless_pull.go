package media

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"time"

	"github.com/bluenviron/mediacommon/v2/pkg/formats/mpegts"
)

const (
	tsSyncByte  = 0x47
	tsClockRate = 90000
	mimeMP2T    = "video/mp2t"
)

// pull fetches src for load generation gen and feeds the playback clock.
func (h *Headless) pull(ctx context.Context, gen uint64, src string) {
	resp, err := h.client.Fetch(ctx, src)
	if err != nil {
		if ctx.Err() == nil {
			h.fail(gen, &MediaError{Code: MediaErrNetwork, Err: err})
		}
		return
	}
	defer resp.Body.Close()

	br := bufio.NewReaderSize(resp.Body, 188*16)
	head, _ := br.Peek(1)
	if isTransportStream(head, resp.Header.Get("Content-Type")) {
		h.pullTS(ctx, gen, src, br)
		return
	}

	// Progressive payloads advance on the wall clock once headers arrive.
	h.markLoaded(gen)
	if _, err := io.Copy(io.Discard, br); err != nil && ctx.Err() == nil {
		h.fail(gen, &MediaError{Code: MediaErrNetwork, Err: err})
	}
}

func isTransportStream(head []byte, contentType string) bool {
	if len(head) > 0 && head[0] == tsSyncByte {
		return true
	}
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == mimeMP2T
}

func (h *Headless) markLoaded(gen uint64) {
	h.mu.Lock()
	if gen != h.gen || h.loaded {
		h.mu.Unlock()
		return
	}
	h.loaded = true
	ev := h.eventLocked(EventLoadedMetadata)
	h.mu.Unlock()
	h.dispatch(ev)
}

func (h *Headless) pullTS(ctx context.Context, gen uint64, src string, r io.Reader) {
	ms := NewMediaSource(src)

	h.mu.Lock()
	if gen != h.gen {
		h.mu.Unlock()
		return
	}
	h.ms = ms
	h.mu.Unlock()
	ms.setOnChange(func(first bool) { h.bufferChanged(gen, first) })

	wait := func() error { return h.waitBuffer(ctx, gen, ms) }
	err := DemuxTS(ctx, r, ms, h.logger, wait)
	switch {
	case err == nil:
		ms.SetDuration(ms.BufferedEnd())
		ms.EndOfStream()
	case ctx.Err() != nil:
	case errors.Is(err, ErrNotTransportStream):
		h.fail(gen, &MediaError{Code: MediaErrSrcNotSupported, Err: err})
	default:
		h.fail(gen, &MediaError{Code: MediaErrNetwork, Err: err})
	}
}

// waitBuffer blocks while the buffered range is more than MaxBufferAhead
// ahead of the playback position.
func (h *Headless) waitBuffer(ctx context.Context, gen uint64, ms *MediaSource) error {
	limit := h.cfg.MaxBufferAhead.Seconds()
	for {
		h.mu.Lock()
		stale := gen != h.gen
		ahead := ms.BufferedEnd() - h.positionLocked()
		h.mu.Unlock()
		if stale {
			return context.Canceled
		}
		if ahead <= limit {
			return nil
		}

		t := time.NewTimer(h.cfg.TimeUpdateInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// ErrNotTransportStream is returned by DemuxTS when no program tables are found.
var ErrNotTransportStream = errors.New("not an MPEG-TS stream")

// DemuxTS reads an MPEG transport stream from r and appends every access
// unit to ms. wait, when set, is called after each append and aborts the
// demux when it returns an error. A clean EOF returns nil.
func DemuxTS(ctx context.Context, r io.Reader, ms *MediaSource, logger *slog.Logger, wait func() error) error {
	if logger == nil {
		logger = slog.Default()
	}

	reader := &mpegts.Reader{R: r}
	if err := reader.Initialize(); err != nil {
		return fmt.Errorf("%w: %w", ErrNotTransportStream, err)
	}

	appendAU := func(track string, pts int64, size int) error {
		ms.Append(track, ticksToDuration(pts), size)
		if wait != nil {
			return wait()
		}
		return nil
	}

	for _, track := range reader.Tracks() {
		name := fmt.Sprintf("%d", track.PID)
		switch codec := track.Codec.(type) {
		case *mpegts.CodecH264:
			ms.AddTrack(name, "avc1")
			reader.OnDataH264(track, func(pts, _ int64, au [][]byte) error {
				return appendAU(name, pts, auSize(au))
			})
		case *mpegts.CodecH265:
			ms.AddTrack(name, "hvc1")
			reader.OnDataH265(track, func(pts, _ int64, au [][]byte) error {
				return appendAU(name, pts, auSize(au))
			})
		case *mpegts.CodecMPEG4Audio:
			ms.AddTrack(name, "mp4a.40.2")
			rate := codec.Config.SampleRate
			if rate <= 0 {
				rate = 48000
			}
			frame := int64(1024 * tsClockRate / rate)
			reader.OnDataMPEG4Audio(track, func(pts int64, aus [][]byte) error {
				for i, au := range aus {
					if err := appendAU(name, pts+int64(i)*frame, len(au)); err != nil {
						return err
					}
				}
				return nil
			})
		case *mpegts.CodecOpus:
			ms.AddTrack(name, "opus")
			reader.OnDataOpus(track, func(pts int64, packets [][]byte) error {
				return appendAU(name, pts, auSize(packets))
			})
		case *mpegts.CodecAC3:
			ms.AddTrack(name, "ac-3")
			reader.OnDataAC3(track, func(pts int64, frame []byte) error {
				return appendAU(name, pts, len(frame))
			})
		case *mpegts.CodecMPEG1Audio:
			ms.AddTrack(name, "mp3")
			reader.OnDataMPEG1Audio(track, func(pts int64, frames [][]byte) error {
				return appendAU(name, pts, auSize(frames))
			})
		default:
			logger.Debug("skipping unsupported transport stream track",
				slog.Uint64("pid", uint64(track.PID)),
				slog.String("type", fmt.Sprintf("%T", track.Codec)))
		}
	}

	reader.OnDecodeError(func(err error) {
		logger.Debug("MPEG-TS decode error", slog.String("error", err.Error()))
	})

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := reader.Read(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func ticksToDuration(ticks int64) time.Duration {
	return time.Duration(float64(ticks) * float64(time.Second) / tsClockRate)
}

func auSize(au [][]byte) int {
	n := 0
	for _, nalu := range au {
		n += len(nalu)
	}
	return n
}
