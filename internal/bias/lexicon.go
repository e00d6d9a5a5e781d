package bias

import (
	"strings"
	"sync"
)

// Tables is the raw, human-readable keyword list. Keys may be phrases.
type Tables struct {
	Left    map[string]int
	Right   map[string]int
	Neutral []string
}

// DefaultTables are the built-in keyword weights. 3 is a strong partisan
// marker, 1 a weak one.
var DefaultTables = Tables{
	Left: map[string]int{
		"progressive":          2,
		"social justice":       3,
		"equity":               2,
		"climate action":       2,
		"universal healthcare": 3,
		"wealth tax":           3,
		"green new deal":       3,
		"systemic racism":      3,
		"privilege":            1,
		"diversity":            1,
		"inclusion":            1,
		"union":                1,
		"worker rights":        2,
		"medicare for all":     3,
		"defund":               3,
		"reform":               1,
		"income inequality":    2,
		"gun control":          3,
		"reproductive rights":  3,
		"living wage":          2,
	},
	Right: map[string]int{
		"conservative":          2,
		"free market":           2,
		"tax cuts":              3,
		"border security":       3,
		"second amendment":      3,
		"pro-life":              3,
		"traditional values":    3,
		"small government":      3,
		"deregulation":          2,
		"patriotism":            2,
		"national security":     1,
		"fiscal responsibility": 2,
		"states rights":         2,
		"constitutional":        1,
		"law and order":         2,
		"religious liberty":     2,
		"illegal immigration":   3,
		"job creators":          2,
	},
	Neutral: []string{
		"report", "study", "research", "data", "according to", "analysis",
		"findings", "survey", "results", "evidence", "statistics",
	},
}

type class int

const (
	classNone class = iota
	classLeft
	classRight
	classNeutral
)

// Lexicon is the stemmed, immutable form of Tables. Build one with
// NewLexicon and share it freely.
type Lexicon struct {
	left      map[string]int
	right     map[string]int
	neutral   map[string]struct{}
	maxPhrase int
}

// NewLexicon stems every phrase word by word. A phrase that appears on both
// sides keeps only its left entry, matching scan priority.
func NewLexicon(t Tables) *Lexicon {
	lx := &Lexicon{
		left:    make(map[string]int, len(t.Left)),
		right:   make(map[string]int, len(t.Right)),
		neutral: make(map[string]struct{}, len(t.Neutral)),
	}

	for phrase, w := range t.Left {
		if key, n := lx.stemPhrase(phrase); n > 0 {
			lx.left[key] = clampWeight(w)
		}
	}
	for phrase, w := range t.Right {
		key, n := lx.stemPhrase(phrase)
		if n == 0 {
			continue
		}
		if _, dup := lx.left[key]; dup {
			continue
		}
		lx.right[key] = clampWeight(w)
	}
	for _, phrase := range t.Neutral {
		if key, n := lx.stemPhrase(phrase); n > 0 {
			lx.neutral[key] = struct{}{}
		}
	}
	return lx
}

func (lx *Lexicon) stemPhrase(phrase string) (string, int) {
	stems := StemAll(Tokenize(phrase))
	if len(stems) > lx.maxPhrase {
		lx.maxPhrase = len(stems)
	}
	return strings.Join(stems, " "), len(stems)
}

func clampWeight(w int) int {
	if w < 1 {
		return 1
	}
	if w > 3 {
		return 3
	}
	return w
}

// lookup checks left, then right, then neutral.
func (lx *Lexicon) lookup(key string) (class, int) {
	if w, ok := lx.left[key]; ok {
		return classLeft, w
	}
	if w, ok := lx.right[key]; ok {
		return classRight, w
	}
	if _, ok := lx.neutral[key]; ok {
		return classNeutral, 0
	}
	return classNone, 0
}

// Size reports the number of left, right and neutral entries.
func (lx *Lexicon) Size() (left, right, neutral int) {
	return len(lx.left), len(lx.right), len(lx.neutral)
}

var defaultLexicon = sync.OnceValue(func() *Lexicon {
	return NewLexicon(DefaultTables)
})

// DefaultLexicon returns the shared lexicon built from DefaultTables.
func DefaultLexicon() *Lexicon {
	return defaultLexicon()
}
