// Package format provides human-readable formatting and parsing helpers for
// sizes, counts, bitrates and playback positions.
package format

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Bytes formats a byte count using binary units.
// Example: Bytes(1536) => "1.5 KB"
func Bytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit && exp < len(byteUnits)-1; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %s", float64(n)/float64(div), byteUnits[exp])
}

var byteUnits = []string{"KB", "MB", "GB", "TB", "PB"}

var byteMultipliers = map[string]int64{
	"":  1,
	"b": 1,
	"k": 1 << 10, "kb": 1 << 10, "kib": 1 << 10,
	"m": 1 << 20, "mb": 1 << 20, "mib": 1 << 20,
	"g": 1 << 30, "gb": 1 << 30, "gib": 1 << 30,
	"t": 1 << 40, "tb": 1 << 40, "tib": 1 << 40,
}

var sizePattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*([a-z]*)\s*$`)

// ParseBytes parses sizes such as "10MB", "1.5 GiB" or "4096".
// Units are binary and case-insensitive; a bare number is bytes.
func ParseBytes(s string) (int64, error) {
	m := sizePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	mult, ok := byteMultipliers[strings.ToLower(m[2])]
	if !ok {
		return 0, fmt.Errorf("invalid size unit %q", m[2])
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return int64(v * float64(mult)), nil
}

var printer = message.NewPrinter(language.English)

// Number formats an integer with thousand separators.
// Example: Number(1234567) => "1,234,567"
func Number(n int64) string {
	return printer.Sprintf("%d", n)
}

// Bitrate formats a bits-per-second value.
// Example: Bitrate(2_800_000) => "2.8 Mbps"
func Bitrate(bps int) string {
	switch {
	case bps >= 1_000_000:
		return fmt.Sprintf("%.1f Mbps", float64(bps)/1_000_000)
	case bps >= 1_000:
		return printer.Sprintf("%d kbps", int64(math.Round(float64(bps)/1_000)))
	default:
		return fmt.Sprintf("%d bps", bps)
	}
}

// Clock formats a position in seconds as m:ss or h:mm:ss.
// Negative, NaN and infinite inputs (live streams) render as "--:--".
func Clock(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return "--:--"
	}
	total := int64(seconds)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
