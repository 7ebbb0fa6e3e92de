// Package domain models Japanese disaster-alert feeds and their normalized form.
//
// # Data Sources
//
// Earthquake information follows the P2PQuake JSON API (JMA code 551): an array
// of bulletins, newest first, each carrying a hypocenter, the maximum observed
// intensity and a list of per-location observation points. Early warnings
// follow the single-object JMA EEW JSON feed. Volcano, weather-warning and
// landslide feeds are simple {title, body, time} arrays read from a cached
// snapshot.
//
// # Intensity Scale
//
// The JMA shindo scale is ordinal and not numerically ordered in its labels:
//
//	1 < 2 < 3 < 4 < 5- < 5+ < 6- < 6+ < 7
//
// The earthquake feed encodes levels as integers (10, 20, 30, 40, 45, 50, 55,
// 60, 70); -1 means unknown and 46 means "5- or above (estimated)", which is
// treated as unknown. The early-warning feed uses labels ("5弱" = 5-, "5強" =
// 5+). See [ParseCode], [ParseLabel] and [Compare].
//
// Depth and magnitude:
//
//	A depth of 0 km is reported as "very shallow"; -1 means unknown.
//	A negative magnitude means unknown.
//	All feed timestamps are JST ("2006/01/02 15:04:05").
//
// # Area Grouping
//
// Observation addresses are free text ("横浜中区", "志賀町"). [ParseAddress]
// takes the longest prefix ending in 市, 町 or 村 as the locality, falling back
// to a prefix ending in 区 for addresses without one. Each locality keeps its strongest reported intensity,
// and [GroupObservations] orders groups strongest first.
//
// # Dedup Keys
//
// Earthquake bulletins are keyed by event id and issue type, so each revision
// of an event notifies once. Early warnings are keyed by event id and serial
// number. Bulletin feeds are keyed by title and time.
package domain
