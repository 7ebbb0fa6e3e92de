package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// MaxQuakeRecords caps the number of earthquake entries normalized per pass.
const MaxQuakeRecords = 5

const unknownValue = "unknown"

// jst is the zone of every timestamp in the JMA-derived feeds. A fixed zone
// avoids depending on tzdata being installed.
var jst = time.FixedZone("JST", 9*60*60)

var timeLayouts = []string{
	"2006/01/02 15:04:05.000",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006-01-02 15:04:05",
}

var issueTypeTitles = map[string]string{
	"ScalePrompt":         "Seismic intensity bulletin",
	"Destination":         "Hypocenter information",
	"ScaleAndDestination": "Hypocenter and intensity information",
	"DetailScale":         "Earthquake information",
	"Foreign":             "Distant earthquake information",
}

// Normalize maps a raw feed payload to canonical alert records. An empty or
// null payload yields no records and no error; a payload that does not match
// the feed's shape returns an error wrapping ErrMalformedPayload.
func Normalize(feed FeedType, payload json.RawMessage) ([]AlertRecord, error) {
	if isEmptyPayload(payload) {
		return nil, nil
	}

	switch feed {
	case FeedEarthquake:
		return NormalizeQuakes(payload)
	case FeedEEW:
		return NormalizeEEW(payload)
	case FeedVolcano, FeedWeatherWarnings, FeedLandslide:
		return NormalizeBulletins(feed, payload)
	default:
		return nil, fmt.Errorf("normalize %q: unknown feed type", feed)
	}
}

// NormalizeQuakes converts the earthquake feed. Only the MaxQuakeRecords most
// recent earthquake-information entries are kept.
func NormalizeQuakes(payload json.RawMessage) ([]AlertRecord, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, fmt.Errorf("normalize %s: %w: %w", FeedEarthquake, ErrMalformedPayload, err)
	}

	type entry struct {
		raw   json.RawMessage
		quake RawQuake
		at    time.Time
	}

	quakes := make([]entry, 0, len(entries))
	for _, raw := range entries {
		var q RawQuake
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil, fmt.Errorf("normalize %s: %w: %w", FeedEarthquake, ErrMalformedPayload, err)
		}
		if q.Code != 0 && q.Code != quakeInfoCode {
			continue
		}
		if q.Earthquake == nil {
			continue
		}
		at := parseFeedTime(q.Time)
		if at.IsZero() {
			at = parseFeedTime(q.Earthquake.Time)
		}
		quakes = append(quakes, entry{raw: raw, quake: q, at: at})
	}

	sort.SliceStable(quakes, func(i, j int) bool {
		return quakes[i].at.After(quakes[j].at)
	})
	if len(quakes) > MaxQuakeRecords {
		quakes = quakes[:MaxQuakeRecords]
	}

	records := make([]AlertRecord, 0, len(quakes))
	for _, e := range quakes {
		records = append(records, quakeRecord(e.quake, e.raw))
	}
	return records, nil
}

func quakeRecord(q RawQuake, raw json.RawMessage) AlertRecord {
	ev := q.Earthquake

	epicenter := unknownValue
	var magnitude, depth *float64
	if ev.Hypocenter != nil {
		if name := strings.TrimSpace(ev.Hypocenter.Name); name != "" {
			epicenter = name
		}
		magnitude = ev.Hypocenter.Magnitude
		if ev.Hypocenter.Depth != nil {
			d := float64(*ev.Hypocenter.Depth)
			depth = &d
		}
	}

	maxSeverity := LevelUnknown
	if ev.MaxScale != nil {
		maxSeverity = ParseCode(*ev.MaxScale)
	}

	ts := parseFeedTime(ev.Time)
	if ts.IsZero() {
		ts = parseFeedTime(q.Issue.Time)
	}
	if ts.IsZero() {
		ts = parseFeedTime(q.Time)
	}

	return AlertRecord{
		FeedType:  FeedEarthquake,
		DedupKey:  quakeDedupKey(q, epicenter, maxSeverity),
		Timestamp: ts,
		Title:     quakeTitle(q.Issue.Type, epicenter),
		Summary: map[string]string{
			FieldEpicenter:   epicenter,
			FieldMagnitude:   FormatMagnitude(magnitude),
			FieldDepth:       formatDepthPtr(depth),
			FieldMaxSeverity: maxSeverity.String(),
			FieldTsunami:     strconv.FormatBool(tsunamiIssued(ev.DomesticTsunami)),
			FieldIssueType:   q.Issue.Type,
		},
		AreaGroups: GroupPoints(q.Points),
		RawBody:    string(raw),
	}
}

// quakeDedupKey identifies a bulletin revision. Entries without an event id
// fall back to time, epicenter and severity so that distinct unresolved
// events keep distinct keys.
func quakeDedupKey(q RawQuake, epicenter string, maxSeverity Level) string {
	if id := strings.TrimSpace(q.ID); id != "" {
		return id + ":" + q.Issue.Type
	}
	t := q.Earthquake.Time
	if t == "" {
		t = q.Time
	}
	return t + "|" + epicenter + "|" + maxSeverity.String()
}

func quakeTitle(issueType, epicenter string) string {
	title, ok := issueTypeTitles[issueType]
	if !ok {
		title = "Earthquake information"
	}
	if epicenter == unknownValue {
		return title
	}
	return title + ": " + epicenter
}

func tsunamiIssued(v string) bool {
	return v == "Warning" || v == "Watch"
}

// NormalizeEEW converts the early-warning feed, which carries at most one
// bulletin. Training and cancelled bulletins produce a single non-actionable
// record without figures.
func NormalizeEEW(payload json.RawMessage) ([]AlertRecord, error) {
	var ev RawEEW
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("normalize %s: %w: %w", FeedEEW, ErrMalformedPayload, err)
	}
	if ev.EventID == "" && ev.OriginTime == "" && ev.Hypocenter == "" && !ev.IsTraining && !ev.IsCancel {
		return nil, nil
	}

	rec := AlertRecord{
		FeedType:   FeedEEW,
		DedupKey:   eewDedupKey(ev),
		Timestamp:  parseFeedTime(ev.AnnouncedTime),
		AreaGroups: []AreaGroup{},
		RawBody:    ev.OriginalText,
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = parseFeedTime(ev.OriginTime)
	}
	if rec.RawBody == "" {
		rec.RawBody = string(payload)
	}

	switch {
	case ev.IsTraining:
		rec.NonActionable = true
		rec.Status = "training"
		rec.Title = "Earthquake early warning (training)"
		return []AlertRecord{rec}, nil
	case ev.IsCancel:
		rec.NonActionable = true
		rec.Status = "cancelled"
		rec.Title = "Earthquake early warning (cancelled)"
		return []AlertRecord{rec}, nil
	}

	serial := "#" + strconv.Itoa(ev.Serial)
	if ev.IsFinal {
		serial = "final"
	}

	magnitude := ev.Magunitude
	if magnitude == nil {
		magnitude = ev.Magnitude
	}
	var depth *float64
	if ev.Depth != nil {
		d := float64(*ev.Depth)
		depth = &d
	}

	hypocenter := strings.TrimSpace(ev.Hypocenter)
	if hypocenter == "" {
		hypocenter = unknownValue
	}

	kind := "forecast"
	if ev.IsWarn {
		kind = "warning"
	}

	rec.Title = fmt.Sprintf("Earthquake early warning (%s): %s", kind, hypocenter)
	rec.Summary = map[string]string{
		FieldSerial:      serial,
		FieldOriginTime:  ev.OriginTime,
		FieldEpicenter:   hypocenter,
		FieldMagnitude:   FormatMagnitude(magnitude),
		FieldDepth:       formatDepthPtr(depth),
		FieldMaxSeverity: ParseLabel(ev.MaxIntensity).String(),
		FieldWarnedAreas: joinWarnedAreas(ev.WarnArea),
	}
	return []AlertRecord{rec}, nil
}

// eewDedupKey is empty when the bulletin has no event id; the dispatcher never
// treats an empty key as seen.
func eewDedupKey(ev RawEEW) string {
	id := strings.TrimSpace(ev.EventID)
	if id == "" {
		return ""
	}
	return id + ":" + strconv.Itoa(ev.Serial)
}

// joinWarnedAreas flattens the warned regions; early-warning areas are not
// grouped by severity.
func joinWarnedAreas(areas []RawEEWArea) string {
	names := make([]string, 0, len(areas))
	seen := make(map[string]struct{}, len(areas))
	for _, a := range areas {
		name := strings.TrimSpace(a.Chiiki)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

// NormalizeBulletins converts the cached {title, body, time} feeds one to one.
func NormalizeBulletins(feed FeedType, payload json.RawMessage) ([]AlertRecord, error) {
	var items []RawBulletin
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, fmt.Errorf("normalize %s: %w: %w", feed, ErrMalformedPayload, err)
	}

	records := make([]AlertRecord, 0, len(items))
	for _, it := range items {
		records = append(records, AlertRecord{
			FeedType:   feed,
			DedupKey:   it.Title + it.Time,
			Timestamp:  parseFeedTime(it.Time),
			Title:      it.Title,
			Summary:    map[string]string{FieldBody: it.Body},
			AreaGroups: []AreaGroup{},
			RawBody:    it.Body,
		})
	}
	return records, nil
}

// FormatMagnitude renders a magnitude with one decimal place, or "unknown"
// when it is missing or negative.
func FormatMagnitude(m *float64) string {
	if m == nil || *m < 0 {
		return unknownValue
	}
	return strconv.FormatFloat(*m, 'f', 1, 64)
}

// FormatDepth renders a hypocenter depth in km. Zero is reported as
// "very shallow"; negative depths are unknown.
func FormatDepth(km float64) string {
	switch {
	case km == 0:
		return "very shallow"
	case km > 0:
		return strconv.FormatFloat(km, 'f', -1, 64) + "km"
	default:
		return unknownValue
	}
}

func formatDepthPtr(km *float64) string {
	if km == nil {
		return unknownValue
	}
	return FormatDepth(*km)
}

// parseFeedTime parses the feed timestamp formats as JST. Unparseable input
// yields the zero time.
func parseFeedTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, jst); err == nil {
			return t
		}
	}
	return time.Time{}
}

func isEmptyPayload(payload json.RawMessage) bool {
	trimmed := bytes.TrimSpace(payload)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
