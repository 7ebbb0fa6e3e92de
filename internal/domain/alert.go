package domain

import (
	"errors"
	"time"
)

// ErrMalformedPayload is wrapped by Normalize when a feed payload cannot be
// decoded into its expected shape.
var ErrMalformedPayload = errors.New("malformed payload")

// FeedType identifies one of the ingested alert feeds. The string values match
// the keys of the fallback snapshot document.
type FeedType string

const (
	FeedEarthquake      FeedType = "earthquakes"
	FeedEEW             FeedType = "eew"
	FeedVolcano         FeedType = "volcano"
	FeedWeatherWarnings FeedType = "weatherWarnings"
	FeedLandslide       FeedType = "landslide"
)

// FeedPriority is the order in which feeds are processed within one poll
// cycle, most time-critical first.
var FeedPriority = []FeedType{
	FeedEEW,
	FeedEarthquake,
	FeedVolcano,
	FeedWeatherWarnings,
	FeedLandslide,
}

// Valid reports whether f is a known feed type.
func (f FeedType) Valid() bool {
	switch f {
	case FeedEarthquake, FeedEEW, FeedVolcano, FeedWeatherWarnings, FeedLandslide:
		return true
	default:
		return false
	}
}

// Summary field names shared by the quake-like feeds.
const (
	FieldEpicenter   = "epicenter"
	FieldMagnitude   = "magnitude"
	FieldDepth       = "depth"
	FieldMaxSeverity = "maxSeverity"
	FieldTsunami     = "tsunami"
	FieldIssueType   = "issueType"
	FieldSerial      = "serial"
	FieldOriginTime  = "originTime"
	FieldWarnedAreas = "warnedAreas"
	FieldBody        = "body"
)

// PointObservation is a single locality's observed intensity.
type PointObservation struct {
	Region   string `json:"region"`
	Locality string `json:"locality"`
	Severity Level  `json:"severity"`
}

// AreaGroup lists the localities of one region that share a severity level.
// Localities are unique and sorted.
type AreaGroup struct {
	Severity   Level    `json:"severity"`
	Region     string   `json:"region"`
	Localities []string `json:"localities"`
}

// AlertRecord is the canonical, feed-independent representation of an alert.
type AlertRecord struct {
	FeedType   FeedType          `json:"feed_type"`
	DedupKey   string            `json:"dedup_key"`
	Timestamp  time.Time         `json:"timestamp"`
	Title      string            `json:"title"`
	Summary    map[string]string `json:"summary,omitempty"`
	AreaGroups []AreaGroup       `json:"area_groups"`
	RawBody    string            `json:"raw_body,omitempty"`

	// NonActionable marks records that are displayed but never notified,
	// such as training or cancelled early warnings. Status explains why.
	NonActionable bool   `json:"non_actionable,omitempty"`
	Status        string `json:"status,omitempty"`
}

// Notification is the user-facing message emitted for a new alert.
type Notification struct {
	FeedType FeedType `json:"feed_type"`
	DedupKey string   `json:"dedup_key"`
	Title    string   `json:"title"`
	Body     string   `json:"body"`
}
