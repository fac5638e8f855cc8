// Package analysis provides the optional text classifier used to annotate
// chat messages with a coarse sentiment label.
// It scores a message against a weighted lexicon and folds the total into a
// normalized compound score in [-1, 1].
package analysis

import (
	"fmt"
	"math"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
	"github.com/samber/lo"
)

// Label is the classifier output.
type Label string

const (
	Positive Label = "positive"
	Negative Label = "negative"
	Neutral  Label = "neutral"
)

const (
	// compoundAlpha approximates the max expected score when normalizing.
	compoundAlpha = 15.0
	threshold     = 0.05
	// negation flips and dampens the polarity of the following word.
	negationFactor = -0.74
)

// Classifier labels a piece of text. Implementations must be safe for
// concurrent use.
type Classifier interface {
	Classify(text string) Label
}

var negators = map[string]struct{}{
	"not": {}, "no": {}, "never": {}, "dont": {}, "don't": {}, "isnt": {}, "isn't": {},
	"cant": {}, "can't": {}, "wont": {}, "won't": {}, "without": {}, "hardly": {},
}

// DefaultLexicon holds valence weights for words common in support chats.
var DefaultLexicon = map[string]float64{
	"good": 1.9, "great": 3.1, "love": 3.2, "happy": 2.7, "glad": 2.0,
	"thanks": 1.9, "thank": 1.5, "better": 1.9, "hope": 1.9, "calm": 1.3,
	"helpful": 1.8, "amazing": 2.8, "nice": 1.8, "relieved": 1.5, "proud": 2.1,
	"bad": -2.5, "sad": -2.1, "hate": -2.7, "worst": -3.1, "awful": -2.0,
	"terrible": -2.1, "anxious": -1.0, "stressed": -1.8, "lonely": -2.0,
	"angry": -2.3, "tired": -1.9, "hopeless": -2.6, "afraid": -2.2,
	"scared": -2.2, "depressed": -2.3, "worried": -1.8, "hurt": -2.4,
}

// LexiconClassifier matches every lexicon entry in a single pass with an
// Aho-Corasick automaton.
type LexiconClassifier struct {
	matcher *goahocorasick.Machine
	weights map[string]float64
}

// NewLexiconClassifier builds the automaton from a word → weight map.
func NewLexiconClassifier(lexicon map[string]float64) (*LexiconClassifier, error) {
	if len(lexicon) == 0 {
		return nil, fmt.Errorf("analysis: empty lexicon")
	}
	weights := make(map[string]float64, len(lexicon))
	for word, w := range lexicon {
		weights[string(lower([]rune(word)))] = w
	}
	patterns := lo.Map(lo.Keys(weights), func(word string, _ int) []rune {
		return []rune(word)
	})

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, fmt.Errorf("analysis: build matcher: %w", err)
	}
	return &LexiconClassifier{matcher: m, weights: weights}, nil
}

// Classify returns Positive, Negative or Neutral.
func (c *LexiconClassifier) Classify(text string) Label {
	return labelFor(c.Score(text))
}

// Score returns the normalized compound score of text.
func (c *LexiconClassifier) Score(text string) float64 {
	runes := lower([]rune(text))
	if len(runes) == 0 {
		return 0
	}

	var sum float64
	for _, term := range c.matcher.MultiPatternSearch(runes, false) {
		start := term.Pos
		end := start + len(term.Word)
		if !isWordBoundary(runes, start-1) || !isWordBoundary(runes, end) {
			continue
		}
		w := c.weights[string(term.Word)]
		if _, negated := negators[previousWord(runes, start)]; negated {
			w *= negationFactor
		}
		sum += w
	}
	return sum / math.Sqrt(sum*sum+compoundAlpha)
}

func labelFor(compound float64) Label {
	switch {
	case compound >= threshold:
		return Positive
	case compound <= -threshold:
		return Negative
	default:
		return Neutral
	}
}

func lower(in []rune) []rune {
	out := make([]rune, len(in))
	for i, r := range in {
		out[i] = unicode.ToLower(r)
	}
	return out
}

func isLetter(r rune) bool {
	return unicode.IsLetter(r) || r == '\''
}

// isWordBoundary reports whether position i is outside a word.
func isWordBoundary(runes []rune, i int) bool {
	return i < 0 || i >= len(runes) || !isLetter(runes[i])
}

// previousWord returns the word that ends right before position start.
func previousWord(runes []rune, start int) string {
	end := start - 1
	for end >= 0 && !isLetter(runes[end]) {
		end--
	}
	if end < 0 {
		return ""
	}
	begin := end
	for begin > 0 && isLetter(runes[begin-1]) {
		begin--
	}
	return string(runes[begin : end+1])
}
