package player

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jmylchreest/tvplay/internal/media"
)

// nativeBackend assigns the URL directly to the element.
type nativeBackend struct {
	logger *slog.Logger

	mu        sync.Mutex
	el        media.Element
	unsub     func()
	destroyed bool
}

func newNativeBackend(logger *slog.Logger) *nativeBackend {
	return &nativeBackend{logger: logger}
}

func (b *nativeBackend) Kind() BackendKind { return BackendNative }

func (b *nativeBackend) Attach(_ context.Context, el media.Element, url string, emit func(BackendEvent)) error {
	b.mu.Lock()
	b.el = el
	b.unsub = el.Subscribe(func(ev media.Event) {
		if ev.Source != url {
			return
		}
		switch ev.Type {
		case media.EventLoadedMetadata:
			emit(BackendEvent{Type: BackendReady})
		case media.EventError:
			kind := ErrorOther
			var err error
			if ev.Err != nil {
				err = ev.Err
				if ev.Err.Code == media.MediaErrNetwork {
					kind = ErrorNetwork
				}
			}
			emit(BackendEvent{
				Type:    BackendError,
				Kind:    kind,
				Fatal:   true,
				Message: MsgNativeError,
				Err:     err,
			})
		}
	})
	b.mu.Unlock()

	el.SetSource(url)
	el.Load()
	return nil
}

func (b *nativeBackend) Recover() bool { return false }

func (b *nativeBackend) Destroy() {
	b.mu.Lock()
	if b.destroyed || b.el == nil {
		b.destroyed = true
		b.mu.Unlock()
		return
	}
	b.destroyed = true
	unsub, el := b.unsub, b.el
	b.mu.Unlock()

	unsub()
	el.Pause()
	el.SetSource("")
}
