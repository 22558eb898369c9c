package analysis

import (
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"

	"feedback-backend/internal/normalize"
)

const (
	emergencyConfidence      = 0.3
	emergencyEmptyConfidence = 0.1
	intensifierWeight        = 1.5
	negatorWindow            = 2
)

// EmergencyAnalyzer is the last tier: a local lexicon heuristic with no network
// access and no failure path.
type EmergencyAnalyzer struct{}

// Analyze scores text with the lexicon. Category is always "other" and no actions are
// recommended.
func (EmergencyAnalyzer) Analyze(text string) (Sentiment, Categorization, Actions) {
	tokens := tokenize(text)
	score, hits, anger := scoreTokens(tokens)

	sent := neutralSentiment()
	sent.Score = score
	sent.Intensity = intensityFromScore(score)
	sent.EmotionLabel = emergencyEmotion(score, anger)
	sent.Confidence = emergencyEmptyConfidence
	if hits > 0 {
		sent.Confidence = emergencyConfidence
	}

	cat := defaultCategorization()
	cat.Urgency = emergencyUrgency(tokens, score)
	cat.RequiresAction = cat.Urgency != LevelLow
	cat.Confidence = sent.Confidence

	return sent, cat, defaultActions()
}

func tokenize(text string) []string {
	stripped, _, err := transform.String(runes.Remove(runes.In(unicode.Mn)), normalize.Text(text))
	if err != nil {
		stripped = text
	}
	return strings.FieldsFunc(strings.ToLower(stripped), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func lookup(set map[string]struct{}, tok string) bool {
	if _, ok := set[tok]; ok {
		return true
	}
	for _, p := range arabicPrefixes {
		if rest, ok := strings.CutPrefix(tok, p); ok && len([]rune(rest)) >= 2 {
			if _, found := set[rest]; found {
				return true
			}
		}
	}
	return false
}

func scoreTokens(tokens []string) (score float64, hits int, anger bool) {
	var sum float64
	for i, tok := range tokens {
		var polarity float64
		switch {
		case lookup(positiveWords, tok):
			polarity = 1
		case lookup(negativeWords, tok):
			polarity = -1
		default:
			continue
		}
		if lookup(angerWords, tok) {
			anger = true
		}
		weight := 1.0
		if (i > 0 && lookup(intensifiers, tokens[i-1])) || (i+1 < len(tokens) && lookup(intensifiers, tokens[i+1])) {
			weight = intensifierWeight
		}
		for j := i - 1; j >= 0 && j >= i-negatorWindow; j-- {
			if _, ok := negators[tokens[j]]; ok {
				polarity = -polarity
				break
			}
		}
		sum += polarity * weight
		hits++
	}
	if hits == 0 {
		return 0, 0, anger
	}
	score = sum / float64(hits+1)
	return math.Max(-1, math.Min(1, score)), hits, anger
}

func emergencyEmotion(score float64, anger bool) string {
	switch {
	case anger && score < 0:
		return "anger"
	case score >= 0.35:
		return "satisfaction"
	case score > 0:
		return "approval"
	case score <= -0.35:
		return "frustration"
	case score < 0:
		return "concern"
	default:
		return EmotionNeutral
	}
}

func emergencyUrgency(tokens []string, score float64) Level {
	for _, tok := range tokens {
		if lookup(urgentWords, tok) {
			return LevelHigh
		}
	}
	if score < -0.5 {
		return LevelMedium
	}
	return LevelLow
}
