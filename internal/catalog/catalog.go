// Package catalog holds the loaded channel list and the grouping, search and
// view helpers used to present it.
package catalog

import (
	"fmt"
	"sync"
	"time"

	"github.com/jmylchreest/tvplay/internal/models"
)

// Info describes the playlist currently held by a catalog.
type Info struct {
	Source   string    `json:"source" doc:"Where the playlist was loaded from (sample, file, url, text)"`
	Origin   string    `json:"origin,omitempty" doc:"Playlist URL or path"`
	Channels int       `json:"channels" doc:"Number of channels"`
	Groups   int       `json:"groups" doc:"Number of channel groups"`
	LoadedAt time.Time `json:"loaded_at,omitempty" doc:"When the playlist was loaded"`
}

// Catalog is the channel list of the current playlist. It is safe for
// concurrent use; Replace swaps the whole list at once.
type Catalog struct {
	mu       sync.RWMutex
	channels []models.Channel
	byID     map[string]int
	info     Info
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{byID: map[string]int{}}
}

// Replace installs a new channel list. The slice is copied.
func (c *Catalog) Replace(source, origin string, channels []models.Channel) {
	list := make([]models.Channel, len(channels))
	copy(list, channels)
	byID := make(map[string]int, len(list))
	for i, ch := range list {
		byID[ch.ID] = i
	}
	info := Info{
		Source:   source,
		Origin:   origin,
		Channels: len(list),
		Groups:   len(Group(list)),
		LoadedAt: time.Now(),
	}

	c.mu.Lock()
	c.channels = list
	c.byID = byID
	c.info = info
	c.mu.Unlock()
}

// Channels returns a copy of the channel list in playlist order.
func (c *Catalog) Channels() []models.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Channel, len(c.channels))
	copy(out, c.channels)
	return out
}

// Len returns the number of channels.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.channels)
}

// Info describes the loaded playlist.
func (c *Catalog) Info() Info {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.info
}

// Find looks up a channel by id.
func (c *Catalog) Find(id string) (models.Channel, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byID[id]
	if !ok {
		return models.Channel{}, fmt.Errorf("%w: %s", models.ErrChannelNotFound, id)
	}
	return c.channels[i], nil
}
