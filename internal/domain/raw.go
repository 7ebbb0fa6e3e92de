package domain

// Raw feed payload shapes. Field names follow the upstream JSON, which is why
// some of them are misspelled or mixed-case.

// quakeInfoCode is the feed code for JMA earthquake information. History
// endpoints interleave other codes (tsunami, user reports) that are skipped.
const quakeInfoCode = 551

// RawQuake is one entry of the earthquake feed.
type RawQuake struct {
	ID         string         `json:"id"`
	Code       int            `json:"code"`
	Time       string         `json:"time"`
	Issue      RawQuakeIssue  `json:"issue"`
	Earthquake *RawQuakeEvent `json:"earthquake"`
	Points     []RawPoint     `json:"points"`
}

// RawQuakeIssue describes the bulletin that carried the event.
type RawQuakeIssue struct {
	Source string `json:"source"`
	Time   string `json:"time"`
	// Type is one of ScalePrompt, Destination, ScaleAndDestination,
	// DetailScale, Foreign or Other.
	Type    string `json:"type"`
	Correct string `json:"correct"`
}

// RawQuakeEvent holds the hypocenter figures.
type RawQuakeEvent struct {
	Time            string         `json:"time"`
	Hypocenter      *RawHypocenter `json:"hypocenter"`
	MaxScale        *int           `json:"maxScale"`
	DomesticTsunami string         `json:"domesticTsunami"`
	ForeignTsunami  string         `json:"foreignTsunami"`
}

// RawHypocenter uses -1 for unknown depth and magnitude.
type RawHypocenter struct {
	Name      string   `json:"name"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Depth     *int     `json:"depth"`
	Magnitude *float64 `json:"magnitude"`
}

// RawPoint is a per-location intensity observation.
type RawPoint struct {
	Pref   string `json:"pref"`
	Addr   string `json:"addr"`
	IsArea bool   `json:"isArea"`
	Scale  int    `json:"scale"`
}

// RawEEW is the early-warning bulletin; the feed carries only the latest one.
type RawEEW struct {
	Title         string       `json:"Title"`
	EventID       string       `json:"EventID"`
	Serial        int          `json:"Serial"`
	AnnouncedTime string       `json:"AnnouncedTime"`
	OriginTime    string       `json:"OriginTime"`
	Hypocenter    string       `json:"Hypocenter"`
	Magunitude    *float64     `json:"Magunitude"`
	Magnitude     *float64     `json:"Magnitude"`
	Depth         *int         `json:"Depth"`
	MaxIntensity  string       `json:"MaxIntensity"`
	WarnArea      []RawEEWArea `json:"WarnArea"`
	IsSea         bool         `json:"isSea"`
	IsTraining    bool         `json:"isTraining"`
	IsAssumption  bool         `json:"isAssumption"`
	IsWarn        bool         `json:"isWarn"`
	IsFinal       bool         `json:"isFinal"`
	IsCancel      bool         `json:"isCancel"`
	OriginalText  string       `json:"OriginalText"`
}

// RawEEWArea is a warned forecast region.
type RawEEWArea struct {
	Chiiki  string `json:"Chiiki"`
	Shindo1 string `json:"Shindo1"`
	Shindo2 string `json:"Shindo2"`
	Time    string `json:"Time"`
	Type    string `json:"Type"`
	Arrive  bool   `json:"Arrive"`
}

// RawBulletin is the simple item shape shared by the volcano, weather warning
// and landslide feeds.
type RawBulletin struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Time  string `json:"time"`
}
