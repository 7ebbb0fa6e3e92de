package domain

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// municipalityRe matches the longest prefix ending in a city, town or village
// terminator, so names that contain one keep it: "東村山市", "大町町". A ward
// inside a city is dropped: "横浜市中区" -> "横浜市".
var municipalityRe = regexp.MustCompile(`^(.+[市町村])`)

// wardRe is tried only for addresses without a municipality terminator, e.g.
// Tokyo's special wards.
var wardRe = regexp.MustCompile(`^(.+区)`)

// ParseAddress splits a free-text address into (region, locality). The
// region is the reporting prefecture and is only kept when the address
// contains a recognizable municipality; otherwise the whole address becomes
// the locality and the region is empty. This is a best-effort heuristic, not
// a geocoder.
func ParseAddress(region, address string) (string, string) {
	address = strings.TrimSpace(norm.NFKC.String(address))
	region = strings.TrimSpace(norm.NFKC.String(region))
	if address == "" {
		return "", ""
	}

	for _, re := range []*regexp.Regexp{municipalityRe, wardRe} {
		if m := re.FindStringSubmatch(address); len(m) == 2 {
			return region, m[1]
		}
	}
	return "", address
}

// ObservePoints converts raw points to observations, keeping only the
// strongest severity seen for each (region, locality) pair. The result is in
// first-seen order.
func ObservePoints(points []RawPoint) []PointObservation {
	type key struct{ region, locality string }

	index := make(map[key]int, len(points))
	out := make([]PointObservation, 0, len(points))

	for _, p := range points {
		region, locality := ParseAddress(p.Pref, p.Addr)
		if locality == "" {
			continue
		}
		sev := ParseCode(p.Scale)
		k := key{region, locality}

		if i, ok := index[k]; ok {
			if Compare(sev, out[i].Severity) > 0 {
				out[i].Severity = sev
			}
			continue
		}
		index[k] = len(out)
		out = append(out, PointObservation{Region: region, Locality: locality, Severity: sev})
	}
	return out
}

// GroupObservations groups observations by severity and region. Groups are
// ordered by severity descending, then region ascending with the empty
// region last; localities within a group are unique and sorted.
func GroupObservations(obs []PointObservation) []AreaGroup {
	type key struct {
		severity Level
		region   string
	}

	sets := make(map[key]map[string]struct{})
	for _, o := range obs {
		k := key{o.Severity, o.Region}
		if sets[k] == nil {
			sets[k] = make(map[string]struct{})
		}
		sets[k][o.Locality] = struct{}{}
	}

	groups := make([]AreaGroup, 0, len(sets))
	for k, set := range sets {
		localities := make([]string, 0, len(set))
		for l := range set {
			localities = append(localities, l)
		}
		sort.Strings(localities)
		groups = append(groups, AreaGroup{Severity: k.severity, Region: k.region, Localities: localities})
	}

	sort.Slice(groups, func(i, j int) bool {
		if c := Compare(groups[i].Severity, groups[j].Severity); c != 0 {
			return c > 0
		}
		return regionLess(groups[i].Region, groups[j].Region)
	})
	return groups
}

// GroupPoints runs ObservePoints and GroupObservations.
func GroupPoints(points []RawPoint) []AreaGroup {
	return GroupObservations(ObservePoints(points))
}

func regionLess(a, b string) bool {
	if a == "" || b == "" {
		return b == "" && a != ""
	}
	return a < b
}
