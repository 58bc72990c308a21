package playlist

import (
	"bytes"
	"compress/gzip"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/tvplay/internal/models"
)

func TestParseString_SingleEntry(t *testing.T) {
	channels := ParseString("#EXTINF:-1 tvg-logo=\"L\" group-title=\"G\",Name\nhttp://x/stream.m3u8")
	require.Len(t, channels, 1)

	ch := channels[0]
	assert.Equal(t, "Name", ch.Name)
	assert.Equal(t, "L", ch.Logo)
	assert.Equal(t, "G", ch.Group)
	assert.Equal(t, "http://x/stream.m3u8", ch.URL)
	assert.NotEmpty(t, ch.ID)
}

func TestParseString_CountsOnlyCompletedEntries(t *testing.T) {
	text := strings.Join([]string{
		"#EXTM3U",
		"#EXTINF:-1,A",
		"http://example.com/a.m3u8",
		"#EXTINF:-1,No URL",
		"#EXTINF:-1,B",
		"# comment",
		"https://example.com/b.mpd",
		"#EXTINF:-1,Dangling",
	}, "\n")

	channels := ParseString(text)
	require.Len(t, channels, 2)
	assert.Equal(t, "A", channels[0].Name)
	assert.Equal(t, "B", channels[1].Name)
	assert.NotEqual(t, channels[0].ID, channels[1].ID)
}

func TestParseString_NameFallbacks(t *testing.T) {
	channels := ParseString("#EXTINF:-1 tvg-name=\"Tvg Name\"\nhttp://example.com/a\n#EXTINF:-1\nhttp://example.com/b\n")
	require.Len(t, channels, 2)
	assert.Equal(t, "Tvg Name", channels[0].Name)
	assert.Equal(t, "http://example.com/b", channels[1].Name)
}

func TestParseString_Empty(t *testing.T) {
	assert.Empty(t, ParseString(""))
	assert.Empty(t, ParseString("#EXTM3U\n\n"))
}

func TestParseWithOptions_IDGenerator(t *testing.T) {
	n := 0
	channels, err := ParseWithOptions(strings.NewReader("#EXTINF:-1,A\nhttp://a\n#EXTINF:-1,B\nhttp://b\n"), Options{
		NewID: func() string {
			n++
			return "ch-" + strconv.Itoa(n)
		},
	})
	require.NoError(t, err)
	require.Len(t, channels, 2)
	assert.Equal(t, "ch-1", channels[0].ID)
	assert.Equal(t, "ch-2", channels[1].ID)
}

func TestParse_Gzip(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, _ = gw.Write([]byte("#EXTINF:-1,Zipped\nhttp://example.com/z.m3u8\n"))
	require.NoError(t, gw.Close())

	channels, err := Parse(&buf)
	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.Equal(t, "Zipped", channels[0].Name)
}

func TestSample(t *testing.T) {
	channels := Sample()
	require.Len(t, channels, 5)
	for i, ch := range channels {
		assert.Equal(t, strconv.Itoa(i), ch.ID)
		assert.NoError(t, ch.Validate())
		assert.NotEmpty(t, ch.Group)
	}
	assert.Equal(t, "Live Channels", channels[0].Group)
	assert.True(t, strings.HasSuffix(channels[3].URL, ".mp4"))
	assert.True(t, strings.HasSuffix(channels[4].URL, ".webm"))

	// Each call returns an independent slice.
	channels[0].Name = "changed"
	assert.Equal(t, "Live Stream", Sample()[0].Name)
}

func TestExport_RoundTrip(t *testing.T) {
	in := []models.Channel{
		{ID: "1", Name: "One", URL: "http://example.com/1.m3u8", Logo: "http://example.com/1.png", Group: "News"},
		{ID: "2", Name: "Two", URL: "http://example.com/2.mp4"},
	}

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, in))

	out := ParseString(buf.String())
	require.Len(t, out, 2)
	for i := range in {
		assert.Equal(t, in[i].Name, out[i].Name)
		assert.Equal(t, in[i].URL, out[i].URL)
		assert.Equal(t, in[i].Logo, out[i].Logo)
		assert.Equal(t, in[i].Group, out[i].Group)
	}
}
