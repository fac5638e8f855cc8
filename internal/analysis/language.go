package analysis

import "github.com/abadojack/whatlanggo"

// minLanguageConfidence is how sure detection must be before a message is
// treated as non-English.
const minLanguageConfidence = 0.8

// EnglishOnly guards a classifier whose lexicon is English. Text confidently
// detected as another language is labeled neutral instead of being scored
// against words it cannot contain.
type EnglishOnly struct {
	inner Classifier
}

func NewEnglishOnly(inner Classifier) *EnglishOnly {
	return &EnglishOnly{inner: inner}
}

func (e *EnglishOnly) Classify(text string) Label {
	info := whatlanggo.Detect(text)
	if info.Lang != whatlanggo.Eng && info.Confidence >= minLanguageConfidence {
		return Neutral
	}
	return e.inner.Classify(text)
}

// DetectLanguage returns the ISO 639-1 code of the detected language.
func DetectLanguage(text string) string {
	return whatlanggo.Detect(text).Lang.Iso6391()
}
