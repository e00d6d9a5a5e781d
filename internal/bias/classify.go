// Package bias tags article text with a political leaning using a weighted
// keyword lexicon. The heuristic is deterministic and explainable: every
// verdict can be traced back to the keywords it matched.
package bias

import (
	"fmt"
	"math"
	"strings"

	"newslens/pkg/models"
)

const (
	// lowSignalMatches is the weighted match total below which no leaning is
	// reported.
	lowSignalMatches = 3
	strongThreshold  = 0.6
	leanThreshold    = 0.15

	maxKeywords = 5
	maxTerms    = 10
)

// Verdict is the classifier's fine-grained reading. Only Label is persisted.
type Verdict int

const (
	Center Verdict = iota
	Left
	LeaningLeft
	LeaningRight
	Right
	Neutral
)

func (v Verdict) String() string {
	switch v {
	case Left:
		return "left"
	case LeaningLeft:
		return "leaning-left"
	case Center:
		return "center"
	case LeaningRight:
		return "leaning-right"
	case Right:
		return "right"
	case Neutral:
		return "neutral"
	}
	return fmt.Sprintf("Verdict(%d)", int(v))
}

// Label folds the verdict into the four persisted labels.
func (v Verdict) Label() models.BiasLabel {
	switch v {
	case Left, LeaningLeft:
		return models.BiasLeft
	case Right, LeaningRight:
		return models.BiasRight
	case Center:
		return models.BiasCenter
	case Neutral:
		return models.BiasNeutral
	}
	panic(fmt.Sprintf("bias: unmapped verdict %d", int(v)))
}

// Scores are the raw tallies behind a verdict. Left and Right are weight
// sums, Neutral is a plain hit count.
type Scores struct {
	Left    int
	Right   int
	Neutral int
}

// Result is the full output of Classify.
type Result struct {
	Score      float64
	Verdict    Verdict
	Confidence float64
	Keywords   []string
	Terms      []string
	Scores     Scores
}

// Bias converts the result into the persisted shape, rounded to two places.
func (r Result) Bias() models.Bias {
	kw := r.Keywords
	if kw == nil {
		kw = []string{}
	}
	return models.Bias{
		Score:      round2(r.Score),
		Label:      r.Verdict.Label(),
		Confidence: round2(r.Confidence),
		Keywords:   kw,
	}
}

// ClassifyArticle joins the article's text fields and classifies them.
func ClassifyArticle(lx *Lexicon, title, description, content string) Result {
	return Classify(lx, title+" "+description+" "+content)
}

// Classify scores text against lx.
func Classify(lx *Lexicon, text string) Result {
	lower, spans := tokenSpans(strings.ToLower(text))
	if len(spans) == 0 {
		return Result{Verdict: Center, Keywords: []string{}}
	}
	stems := make([]string, len(spans))
	for i, sp := range spans {
		stems[i] = Stem(sp.text)
	}
	// surface is the matched text as written, hyphens and all.
	surface := func(i, n int) string {
		return lower[spans[i].start:spans[i+n-1].end]
	}

	var (
		scores  Scores
		matches []string
	)
	for i := 0; i < len(stems); {
		n, cls, w := lx.matchAt(stems, i)
		switch cls {
		case classLeft:
			scores.Left += w
			matches = append(matches, surface(i, n))
		case classRight:
			scores.Right += w
			matches = append(matches, surface(i, n))
		case classNeutral:
			scores.Neutral++
		}
		i += n
	}

	total := scores.Left + scores.Right
	score := 0.0
	if total > 0 {
		score = float64(scores.Right-scores.Left) / float64(total)
	}

	verdict, confidence := decide(score, total)
	if verdict == Center && scores.Neutral > total {
		verdict = Neutral
		confidence = math.Min(1, float64(scores.Neutral)/float64(total+1))
	}

	return Result{
		Score:      score,
		Verdict:    verdict,
		Confidence: clamp01(confidence),
		Keywords:   firstUnique(matches, maxKeywords),
		Terms:      SignificantTerms(stems, maxTerms),
		Scores:     scores,
	}
}

// matchAt finds the longest lexicon phrase starting at stems[i]. It returns
// the number of tokens consumed (1 when nothing matched).
func (lx *Lexicon) matchAt(stems []string, i int) (int, class, int) {
	longest := lx.maxPhrase
	if rest := len(stems) - i; rest < longest {
		longest = rest
	}
	for n := longest; n >= 1; n-- {
		key := stems[i]
		if n > 1 {
			key = strings.Join(stems[i:i+n], " ")
		}
		if cls, w := lx.lookup(key); cls != classNone {
			return n, cls, w
		}
	}
	return 1, classNone, 0
}

func decide(score float64, total int) (Verdict, float64) {
	abs := math.Abs(score)
	switch {
	case total < lowSignalMatches:
		return Center, float64(total) / lowSignalMatches * 0.5
	case score < -strongThreshold:
		return Left, abs
	case score < -leanThreshold:
		return LeaningLeft, abs
	case score > strongThreshold:
		return Right, abs
	case score > leanThreshold:
		return LeaningRight, abs
	default:
		return Center, 1 - abs/leanThreshold
	}
}

func firstUnique(in []string, n int) []string {
	out := make([]string, 0, n)
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
		if len(out) == n {
			break
		}
	}
	return out
}

func clamp01(f float64) float64 {
	return math.Max(0, math.Min(1, f))
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
