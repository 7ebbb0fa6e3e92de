package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Level is a seismic intensity level on the JMA shindo scale. The zero value
// is LevelUnknown.
type Level int

// Levels in ascending physical order. The numeric values are ranks, not the
// feed codes; use ParseCode or ParseLabel to obtain a Level from raw input.
const (
	LevelUnknown Level = iota
	Level1
	Level2
	Level3
	Level4
	Level5Lower
	Level5Upper
	Level6Lower
	Level6Upper
	Level7
)

var levelLabels = [...]string{
	LevelUnknown: "unknown",
	Level1:       "1",
	Level2:       "2",
	Level3:       "3",
	Level4:       "4",
	Level5Lower:  "5-",
	Level5Upper:  "5+",
	Level6Lower:  "6-",
	Level6Upper:  "6+",
	Level7:       "7",
}

// scaleCodes maps the numeric intensity codes used by the earthquake feed
// (10 = 1 ... 70 = 7) to levels.
var scaleCodes = map[int]Level{
	10: Level1,
	20: Level2,
	30: Level3,
	40: Level4,
	45: Level5Lower,
	50: Level5Upper,
	55: Level6Lower,
	60: Level6Upper,
	70: Level7,
}

var labelAliases = map[string]Level{
	"1":  Level1,
	"2":  Level2,
	"3":  Level3,
	"4":  Level4,
	"5-": Level5Lower,
	"5弱": Level5Lower,
	"5+": Level5Upper,
	"5強": Level5Upper,
	"6-": Level6Lower,
	"6弱": Level6Lower,
	"6+": Level6Upper,
	"6強": Level6Upper,
	"7":  Level7,
}

// ParseCode converts a feed intensity code to a Level. Unrecognized codes,
// including -1 and the "5- or above (estimated)" code 46, return LevelUnknown.
func ParseCode(code int) Level {
	if l, ok := scaleCodes[code]; ok {
		return l
	}
	return LevelUnknown
}

// ParseLabel converts a textual intensity ("5-", "5弱", "6+", "7") to a Level.
// Numeric feed codes in string form ("45") are accepted as well.
func ParseLabel(s string) Level {
	s = strings.TrimSpace(s)
	if l, ok := labelAliases[s]; ok {
		return l
	}
	if code, err := strconv.Atoi(s); err == nil {
		return ParseCode(code)
	}
	return LevelUnknown
}

// Rank returns the ordinal position of l. LevelUnknown ranks 0, below every
// known level. Out-of-range values are treated as unknown.
func Rank(l Level) int {
	if l < LevelUnknown || l > Level7 {
		return 0
	}
	return int(l)
}

// Compare returns -1, 0 or +1 when a is weaker than, equal to, or stronger
// than b.
func Compare(a, b Level) int {
	ra, rb := Rank(a), Rank(b)
	switch {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	default:
		return 0
	}
}

// Known reports whether l is one of the enumerated levels.
func (l Level) Known() bool { return Rank(l) > 0 }

func (l Level) String() string {
	return levelLabels[Rank(l)]
}

func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *Level) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var code int
		if err := json.Unmarshal(data, &code); err != nil {
			return err
		}
		*l = ParseCode(code)
		return nil
	}
	*l = ParseLabel(s)
	return nil
}
