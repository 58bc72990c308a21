package catalog

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/tvplay/internal/models"
)

func testChannels() []models.Channel {
	return []models.Channel{
		{ID: "1", Name: "BBC One", URL: "http://example.com/bbc1.m3u8", Group: "UK"},
		{ID: "2", Name: "CNN", URL: "http://example.com/cnn.m3u8", Group: "News"},
		{ID: "3", Name: "Local Access", URL: "http://example.com/local.mp4"},
		{ID: "4", Name: "ITV", URL: "http://example.com/itv.mpd", Group: "UK"},
		{ID: "5", Name: "Straße TV", URL: "http://example.com/strasse.m3u8", Group: "Deutschland"},
		{ID: "6", Name: "Sky News", URL: "http://example.com/sky.m3u8", Group: "News"},
		{ID: "7", Name: "Blank Group", URL: "http://example.com/blank.mp4", Group: "  "},
	}
}

func TestCatalog_ReplaceAndFind(t *testing.T) {
	c := New()
	assert.Equal(t, 0, c.Len())
	_, err := c.Find("1")
	assert.ErrorIs(t, err, models.ErrChannelNotFound)

	channels := testChannels()
	c.Replace("url", "http://example.com/list.m3u", channels)
	channels[0].Name = "mutated"

	assert.Equal(t, 7, c.Len())
	ch, err := c.Find("1")
	require.NoError(t, err)
	assert.Equal(t, "BBC One", ch.Name)

	info := c.Info()
	assert.Equal(t, "url", info.Source)
	assert.Equal(t, 7, info.Channels)
	assert.Equal(t, 4, info.Groups)
	assert.False(t, info.LoadedAt.IsZero())

	got := c.Channels()
	got[1].Name = "mutated"
	ch, err = c.Find("2")
	require.NoError(t, err)
	assert.Equal(t, "CNN", ch.Name)

	c.Replace("sample", "", nil)
	assert.Equal(t, 0, c.Len())
	_, err = c.Find("1")
	assert.ErrorIs(t, err, models.ErrChannelNotFound)
}

func TestCatalog_ConcurrentReplace(t *testing.T) {
	c := New()
	a := testChannels()
	b := testChannels()[:2]

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Replace("url", "a", a)
		}()
		go func() {
			defer wg.Done()
			n := len(c.Channels())
			assert.Contains(t, []int{0, 2, 7}, n)
		}()
	}
	wg.Wait()
	c.Replace("url", "b", b)
	assert.Len(t, c.Channels(), 2)
}

func TestGroup(t *testing.T) {
	groups := Group(testChannels())
	require.Len(t, groups, 4)

	names := make([]string, len(groups))
	for i, g := range groups {
		names[i] = g.Name
	}
	assert.Equal(t, []string{"UK", "News", models.UngroupedLabel, "Deutschland"}, names)

	assert.Equal(t, []string{"1", "4"}, []string{groups[0].Channels[0].ID, groups[0].Channels[1].ID})
	assert.Equal(t, []string{"2", "6"}, []string{groups[1].Channels[0].ID, groups[1].Channels[1].ID})
	// Whitespace-only titles share the synthetic bucket.
	assert.Len(t, groups[2].Channels, 2)
	assert.Equal(t, "7", groups[2].Channels[1].ID)
}

func TestGroup_Empty(t *testing.T) {
	assert.Empty(t, Group(nil))
	assert.Empty(t, GroupNames(nil))
}

func TestGroupNames(t *testing.T) {
	assert.Equal(t, []GroupSummary{
		{Name: "UK", Count: 2},
		{Name: "News", Count: 2},
		{Name: models.UngroupedLabel, Count: 2},
		{Name: "Deutschland", Count: 1},
	}, GroupNames(testChannels()))
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name string
		term string
		want []string
	}{
		{"empty matches all", "", []string{"1", "2", "3", "4", "5", "6", "7"}},
		{"whitespace matches all", "   ", []string{"1", "2", "3", "4", "5", "6", "7"}},
		{"name case-insensitive", "bbc", []string{"1"}},
		{"group match", "news", []string{"2", "6"}},
		{"name or group", "uk", []string{"1", "4"}},
		{"case folding", "STRASSE", []string{"5"}},
		{"unicode group", "DEUTSCH", []string{"5"}},
		{"synthetic group is not searchable", "ungrouped", []string{}},
		{"no match", "zzz", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(testChannels(), tt.term)
			ids := make([]string, 0, len(got))
			for _, ch := range got {
				ids = append(ids, ch.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestParseViewMode(t *testing.T) {
	v, err := ParseViewMode("")
	require.NoError(t, err)
	assert.Equal(t, ViewList, v)

	v, err = ParseViewMode("grid")
	require.NoError(t, err)
	assert.Equal(t, ViewGrid, v)
	assert.Equal(t, 4, v.Columns())
	assert.Equal(t, 1, ViewList.Columns())

	_, err = ParseViewMode("tiles")
	assert.Error(t, err)
}
