package prosody

import (
	"log/slog"
	"regexp"
	"strings"
)

// BreathWordThreshold is the word count above which a sentence gets a
// trailing breath marker.
const BreathWordThreshold = 15

// Pause tier boundaries on [Parameters.PauseMultiplier].
const (
	shortPauseMax  = 0.85
	normalPauseMax = 1.1
)

// pauseTier is the run of spaces written after each punctuation mark.
type pauseTier struct {
	period, exclaim, question, comma string
}

var (
	shortPauses  = pauseTier{period: "  ", exclaim: "  ", question: "  ", comma: " "}
	normalPauses = pauseTier{period: "   ", exclaim: "  ", question: "   ", comma: " "}
	longPauses   = pauseTier{period: "    ", exclaim: "   ", question: "    ", comma: "  "}
)

func tierFor(multiplier float64) pauseTier {
	switch {
	case multiplier <= shortPauseMax:
		return shortPauses
	case multiplier <= normalPauseMax:
		return normalPauses
	default:
		return longPauses
	}
}

// thinkingWords get a short hesitation before their first occurrence.
var thinkingWords = []string{"well", "hmm", "let me", "perhaps", "you know", "now", "actually"}

// thinkingPatterns match a thinking word with whitespace on both sides, so
// "now" never matches inside "know" or "nowhere" and "well" not in "well-known".
var thinkingPatterns = func() []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(thinkingWords))
	for i, w := range thinkingWords {
		res[i] = regexp.MustCompile(`(?i)\s(` + regexp.QuoteMeta(w) + `)\s`)
	}
	return res
}()

// emphasisWords are detected but not yet marked up.
var emphasisWords = []string{
	"never", "always", "must", "critical", "important",
	"warning", "danger", "amazing", "incredible", "fascinating",
	"need", "should", "really", "very", "extremely",
	"absolutely", "definitely", "certainly", "obviously",
}

// Transform rewrites text for delivery with p: punctuation pauses, thinking
// pauses, then long-sentence breath markers. Emphasis words are detected and
// logged but the text is not changed for them. Blank input is returned as is.
func Transform(text string, p Parameters) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	text = InsertPauses(text, p.PauseMultiplier)
	text = InsertThinkingPauses(text)
	text = MarkLongSentences(text)
	if words := Emphasis(text); len(words) > 0 {
		slog.Debug("prosody: emphasis words detected", "words", words)
	}
	return text
}

// InsertPauses widens the space after ". ", "! ", "? " and ", " according to
// the pause tier selected by multiplier.
func InsertPauses(text string, multiplier float64) string {
	t := tierFor(multiplier)
	r := strings.NewReplacer(
		". ", "."+t.period,
		"! ", "!"+t.exclaim,
		"? ", "?"+t.question,
		", ", ","+t.comma,
	)
	return r.Replace(text)
}

// InsertThinkingPauses adds one extra space before the first occurrence of
// each thinking word.
func InsertThinkingPauses(text string) string {
	for _, re := range thinkingPatterns {
		loc := re.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		i := loc[2]
		text = text[:i] + " " + text[i:]
	}
	return text
}

// MarkLongSentences appends a two-space breath marker to every ". "-delimited
// segment longer than [BreathWordThreshold] words.
func MarkLongSentences(text string) string {
	segments := strings.Split(text, ". ")
	for i, s := range segments {
		if len(strings.Fields(s)) > BreathWordThreshold {
			segments[i] = s + "  "
		}
	}
	return strings.Join(segments, ". ")
}

// Emphasis returns the emphasis vocabulary words that occur in text
// (case-insensitive substring match), in vocabulary order.
func Emphasis(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, w := range emphasisWords {
		if strings.Contains(lower, w) {
			found = append(found, w)
		}
	}
	return found
}
