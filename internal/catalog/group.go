package catalog

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/jmylchreest/tvplay/internal/models"
)

// ChannelGroup is one bucket of a grouped channel list.
type ChannelGroup struct {
	Name     string           `json:"name" doc:"Group title"`
	Channels []models.Channel `json:"channels" doc:"Channels in playlist order"`
}

// Group buckets channels by group title. Channels without one land in
// models.UngroupedLabel. Buckets keep the order in which their title first
// appears and channels keep playlist order within a bucket.
func Group(channels []models.Channel) []ChannelGroup {
	var groups []ChannelGroup
	index := map[string]int{}
	for _, ch := range channels {
		name := ch.GroupName()
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, ChannelGroup{Name: name})
		}
		groups[i].Channels = append(groups[i].Channels, ch)
	}
	return groups
}

// GroupNames returns the bucket titles in display order with their sizes.
func GroupNames(channels []models.Channel) []GroupSummary {
	groups := Group(channels)
	out := make([]GroupSummary, len(groups))
	for i, g := range groups {
		out[i] = GroupSummary{Name: g.Name, Count: len(g.Channels)}
	}
	return out
}

// GroupSummary is a group title with its channel count.
type GroupSummary struct {
	Name  string `json:"name" doc:"Group title"`
	Count int    `json:"count" doc:"Number of channels"`
}

// Filter returns the channels whose name or group title contains term,
// compared under Unicode case folding. An empty term matches everything.
func Filter(channels []models.Channel, term string) []models.Channel {
	term = strings.TrimSpace(term)
	if term == "" {
		return channels
	}
	folder := cases.Fold()
	needle := folder.String(term)

	out := make([]models.Channel, 0, len(channels))
	for _, ch := range channels {
		if strings.Contains(folder.String(ch.Name), needle) ||
			(ch.Group != "" && strings.Contains(folder.String(ch.Group), needle)) {
			out = append(out, ch)
		}
	}
	return out
}
