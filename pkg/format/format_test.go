package format

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1536, "1.5 KB"},
		{10 * 1024 * 1024, "10.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Bytes(tt.in))
	}
}

func TestParseBytes(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"4096", 4096},
		{"10MB", 10 << 20},
		{"1.5 KiB", 1536},
		{"2g", 2 << 30},
		{" 7 b ", 7},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBytes(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "ten", "5 parsecs", "-1MB"} {
		_, err := ParseBytes(bad)
		assert.Error(t, err, bad)
	}
}

func TestNumber(t *testing.T) {
	assert.Equal(t, "1,234,567", Number(1234567))
	assert.Equal(t, "12", Number(12))
}

func TestBitrate(t *testing.T) {
	assert.Equal(t, "2.8 Mbps", Bitrate(2_800_000))
	assert.Equal(t, "800 kbps", Bitrate(800_000))
	assert.Equal(t, "1.5 Mbps", Bitrate(1_500_000))
	assert.Equal(t, "950 bps", Bitrate(950))
}

func TestClock(t *testing.T) {
	assert.Equal(t, "0:00", Clock(0))
	assert.Equal(t, "1:05", Clock(65.9))
	assert.Equal(t, "1:02:03", Clock(3723))
	assert.Equal(t, "--:--", Clock(math.Inf(1)))
	assert.Equal(t, "--:--", Clock(math.NaN()))
	assert.Equal(t, "--:--", Clock(-1))
}
