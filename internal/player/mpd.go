package player

import (
	"encoding/xml"
	"errors"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// MPD is the subset of a DASH manifest the DASH backend understands.
type MPD struct {
	XMLName                    xml.Name `xml:"MPD"`
	Type                       string   `xml:"type,attr"`
	MediaPresentationDuration  string   `xml:"mediaPresentationDuration,attr"`
	AvailabilityStartTime      string   `xml:"availabilityStartTime,attr"`
	MinimumUpdatePeriod        string   `xml:"minimumUpdatePeriod,attr"`
	SuggestedPresentationDelay string   `xml:"suggestedPresentationDelay,attr"`
	BaseURL                    string   `xml:"BaseURL"`
	Periods                    []Period `xml:"Period"`
}

// Period is a DASH period.
type Period struct {
	ID             string          `xml:"id,attr"`
	Start          string          `xml:"start,attr"`
	BaseURL        string          `xml:"BaseURL"`
	AdaptationSets []AdaptationSet `xml:"AdaptationSet"`
}

// AdaptationSet groups interchangeable representations.
type AdaptationSet struct {
	ID              string           `xml:"id,attr"`
	ContentType     string           `xml:"contentType,attr"`
	MimeType        string           `xml:"mimeType,attr"`
	Codecs          string           `xml:"codecs,attr"`
	BaseURL         string           `xml:"BaseURL"`
	SegmentTemplate *SegmentTemplate `xml:"SegmentTemplate"`
	Representations []Representation `xml:"Representation"`
}

// Representation is one encoding of an adaptation set.
type Representation struct {
	ID              string           `xml:"id,attr"`
	Bandwidth       int              `xml:"bandwidth,attr"`
	Width           int              `xml:"width,attr"`
	Height          int              `xml:"height,attr"`
	Codecs          string           `xml:"codecs,attr"`
	MimeType        string           `xml:"mimeType,attr"`
	BaseURL         string           `xml:"BaseURL"`
	SegmentTemplate *SegmentTemplate `xml:"SegmentTemplate"`
}

// SegmentTemplate addresses segments by number or by timeline.
type SegmentTemplate struct {
	Initialization string           `xml:"initialization,attr"`
	Media          string           `xml:"media,attr"`
	Timescale      uint64           `xml:"timescale,attr"`
	StartNumber    *uint64          `xml:"startNumber,attr"`
	Duration       uint64           `xml:"duration,attr"`
	Timeline       *SegmentTimeline `xml:"SegmentTimeline"`
}

// SegmentTimeline lists explicit segment times.
type SegmentTimeline struct {
	S []TimelineEntry `xml:"S"`
}

// TimelineEntry is an S element: r+1 segments of duration d from t.
type TimelineEntry struct {
	T *uint64 `xml:"t,attr"`
	D uint64  `xml:"d,attr"`
	R int     `xml:"r,attr"`
}

// MPD errors.
var (
	ErrMPDNoPeriods  = errors.New("manifest has no periods")
	ErrMPDNoTemplate = errors.New("no adaptation set uses a segment template")
)

// ParseMPD decodes a DASH manifest.
func ParseMPD(data []byte) (*MPD, error) {
	var m MPD
	if err := xml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding MPD: %w", err)
	}
	if len(m.Periods) == 0 {
		return nil, ErrMPDNoPeriods
	}
	return &m, nil
}

// IsLive reports whether the manifest describes a dynamic presentation.
func (m *MPD) IsLive() bool {
	return m.Type == "dynamic"
}

// Duration is the presentation duration, zero when unknown.
func (m *MPD) Duration() time.Duration {
	d, _ := ParseISODuration(m.MediaPresentationDuration)
	return d
}

// UpdatePeriod is how often a live manifest should be refetched.
func (m *MPD) UpdatePeriod() time.Duration {
	d, _ := ParseISODuration(m.MinimumUpdatePeriod)
	return d
}

// AvailabilityStart is the wall clock time of segment number zero for live
// presentations.
func (m *MPD) AvailabilityStart() time.Time {
	t, err := time.Parse(time.RFC3339, m.AvailabilityStartTime)
	if err != nil {
		return time.Time{}
	}
	return t
}

// VideoLevels returns the video bitrate list of the first period in
// ascending bitrate order.
func (m *MPD) VideoLevels() []Level {
	var levels []Level
	for _, as := range m.Periods[0].AdaptationSets {
		for _, rep := range as.Representations {
			if contentType(as, rep) != "video" {
				continue
			}
			levels = append(levels, NewLevel(rep.Height, rep.Bandwidth))
		}
	}
	sort.SliceStable(levels, func(i, j int) bool { return levels[i].Bitrate < levels[j].Bitrate })
	return levels
}

func contentType(as AdaptationSet, rep Representation) string {
	if as.ContentType != "" {
		return as.ContentType
	}
	mt := rep.MimeType
	if mt == "" {
		mt = as.MimeType
	}
	if t, _, ok := strings.Cut(mt, "/"); ok {
		return t
	}
	if rep.Width > 0 || rep.Height > 0 {
		return "video"
	}
	return ""
}

// segmentTrack is one representation selected for playback.
type segmentTrack struct {
	Name        string
	Codec       string
	ContentType string
	RepID       string
	Bandwidth   int
	Template    SegmentTemplate
	Base        *url.URL
}

// segmentRef locates one media segment.
type segmentRef struct {
	URL      string
	Number   uint64
	Start    uint64
	Duration uint64
}

// Tracks picks the highest bandwidth representation of every adaptation set
// in the first period that has a segment template.
func (m *MPD) Tracks(manifestURL string) ([]*segmentTrack, error) {
	base, err := url.Parse(manifestURL)
	if err != nil {
		return nil, fmt.Errorf("parsing manifest URL: %w", err)
	}
	base = resolveBase(base, m.BaseURL)
	period := m.Periods[0]
	base = resolveBase(base, period.BaseURL)

	var tracks []*segmentTrack
	for i, as := range period.AdaptationSets {
		if len(as.Representations) == 0 {
			continue
		}
		best := as.Representations[0]
		for _, rep := range as.Representations[1:] {
			if rep.Bandwidth > best.Bandwidth {
				best = rep
			}
		}

		tmpl := as.SegmentTemplate
		if best.SegmentTemplate != nil {
			tmpl = best.SegmentTemplate
		}
		if tmpl == nil || tmpl.Media == "" {
			continue
		}
		t := *tmpl
		if t.Timescale == 0 {
			t.Timescale = 1
		}

		codec := best.Codecs
		if codec == "" {
			codec = as.Codecs
		}
		name := as.ID
		if name == "" {
			name = strconv.Itoa(i)
		}
		tracks = append(tracks, &segmentTrack{
			Name:        name,
			Codec:       codec,
			ContentType: contentType(as, best),
			RepID:       best.ID,
			Bandwidth:   best.Bandwidth,
			Template:    t,
			Base:        resolveBase(resolveBase(base, as.BaseURL), best.BaseURL),
		})
	}
	if len(tracks) == 0 {
		return nil, ErrMPDNoTemplate
	}
	return tracks, nil
}

func resolveBase(base *url.URL, ref string) *url.URL {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return base
	}
	u, err := url.Parse(ref)
	if err != nil {
		return base
	}
	return base.ResolveReference(u)
}

// InitURL is the initialization segment URL, empty when there is none.
func (t *segmentTrack) InitURL() string {
	if t.Template.Initialization == "" {
		return ""
	}
	return t.resolve(t.expand(t.Template.Initialization, 0, 0))
}

func (t *segmentTrack) resolve(ref string) string {
	return resolveBase(t.Base, ref).String()
}

var templateVar = regexp.MustCompile(`\$(RepresentationID|Number|Time|Bandwidth)(%0(\d+)d)?\$|\$\$`)

func (t *segmentTrack) expand(tmpl string, number, start uint64) string {
	return templateVar.ReplaceAllStringFunc(tmpl, func(m string) string {
		if m == "$$" {
			return "$"
		}
		sub := templateVar.FindStringSubmatch(m)
		var v uint64
		switch sub[1] {
		case "RepresentationID":
			return t.RepID
		case "Number":
			v = number
		case "Time":
			v = start
		case "Bandwidth":
			v = uint64(t.Bandwidth)
		}
		if sub[3] != "" {
			width, _ := strconv.Atoi(sub[3])
			return fmt.Sprintf("%0*d", width, v)
		}
		return strconv.FormatUint(v, 10)
	})
}

func (t *segmentTrack) startNumber() uint64 {
	if t.Template.StartNumber != nil {
		return *t.Template.StartNumber
	}
	return 1
}

func (t *segmentTrack) ref(number, start, duration uint64) segmentRef {
	return segmentRef{
		URL:      t.resolve(t.expand(t.Template.Media, number, start)),
		Number:   number,
		Start:    start,
		Duration: duration,
	}
}

// Segments lists the segments to fetch after last (nil for the first call).
// Live presentations start liveDelay behind the live edge.
func (t *segmentTrack) Segments(m *MPD, now time.Time, liveDelay time.Duration, last *segmentRef) []segmentRef {
	if t.Template.Timeline != nil {
		return t.timelineSegments(m, liveDelay, last)
	}
	if t.Template.Duration == 0 {
		return nil
	}

	ts := float64(t.Template.Timescale)
	dur := t.Template.Duration
	first := t.startNumber()
	var end uint64 // exclusive

	if m.IsLive() {
		ast := m.AvailabilityStart()
		if ast.IsZero() {
			return nil
		}
		elapsed := now.Sub(ast) - liveDelay
		if elapsed < 0 {
			return nil
		}
		available := uint64(math.Floor(elapsed.Seconds() * ts / float64(dur)))
		if available == 0 {
			return nil
		}
		end = first + available
		if last == nil {
			first = end - 1
		}
	} else {
		total := uint64(math.Ceil(m.Duration().Seconds() * ts / float64(dur)))
		end = first + total
	}

	if last != nil {
		first = last.Number + 1
	}
	var refs []segmentRef
	for n := first; n < end; n++ {
		refs = append(refs, t.ref(n, (n-t.startNumber())*dur, dur))
	}
	return refs
}

func (t *segmentTrack) timelineSegments(m *MPD, liveDelay time.Duration, last *segmentRef) []segmentRef {
	var all []segmentRef
	number := t.startNumber()
	var cursor uint64
	for _, s := range t.Template.Timeline.S {
		if s.T != nil {
			cursor = *s.T
		}
		repeat := s.R
		if repeat < 0 {
			repeat = 0
		}
		for i := 0; i <= repeat; i++ {
			all = append(all, t.ref(number, cursor, s.D))
			number++
			cursor += s.D
		}
	}
	if len(all) == 0 {
		return nil
	}

	if last != nil {
		i := sort.Search(len(all), func(i int) bool { return all[i].Start > last.Start })
		return all[i:]
	}
	if !m.IsLive() {
		return all
	}

	edge := all[len(all)-1].Start + all[len(all)-1].Duration
	delay := uint64(liveDelay.Seconds() * float64(t.Template.Timescale))
	i := len(all) - 1
	for i > 0 && all[i].Start+delay > edge {
		i--
	}
	return all[i:]
}

var isoDuration = regexp.MustCompile(`^P(?:(\d+(?:\.\d+)?)Y)?(?:(\d+(?:\.\d+)?)M)?(?:(\d+(?:\.\d+)?)D)?(?:T(?:(\d+(?:\.\d+)?)H)?(?:(\d+(?:\.\d+)?)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// ParseISODuration parses an xs:duration such as "PT1H2M3.5S". Years and
// months are taken as 365 and 30 days.
func ParseISODuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	m := isoDuration.FindStringSubmatch(s)
	if m == nil || s == "P" || strings.HasSuffix(s, "T") {
		return 0, fmt.Errorf("invalid ISO 8601 duration %q", s)
	}
	units := []time.Duration{
		365 * 24 * time.Hour,
		30 * 24 * time.Hour,
		24 * time.Hour,
		time.Hour,
		time.Minute,
		time.Second,
	}
	var total time.Duration
	for i, u := range units {
		if m[i+1] == "" {
			continue
		}
		v, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid ISO 8601 duration %q: %w", s, err)
		}
		total += time.Duration(v * float64(u))
	}
	return total, nil
}
