package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	// rangeTolerance is how far a numeric value may fall outside its range and still be
	// clamped. Anything further is rejected as a malformed response.
	rangeTolerance = 0.05

	maxListItems       = 5
	maxTopics          = 5
	defaultConfidence  = 0.5
	maxActionItemRunes = 300
)

var errNoJSONObject = errors.New("response contains no JSON object")

// extractJSONObject returns the outermost JSON object in raw, tolerating markdown
// fences and prose around it.
func extractJSONObject(raw string) ([]byte, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```JSON")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, errNoJSONObject
	}
	candidate := []byte(text[start : end+1])
	if !json.Valid(candidate) {
		return nil, fmt.Errorf("invalid JSON object")
	}
	return candidate, nil
}

func checkRange(field string, v, lo, hi float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s is not a finite number", field)
	}
	if v < lo-rangeTolerance || v > hi+rangeTolerance {
		return 0, fmt.Errorf("%s %.3f outside [%g, %g]", field, v, lo, hi)
	}
	return math.Max(lo, math.Min(hi, v)), nil
}

func optionalConfidence(v *float64) (float64, error) {
	if v == nil {
		return defaultConfidence, nil
	}
	return checkRange("confidence", *v, 0, 1)
}

func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	return strings.ReplaceAll(s, " ", "_")
}

func cleanList(items []string, limit, maxRunes int) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		item = strings.Join(strings.Fields(item), " ")
		if item == "" {
			continue
		}
		item = truncateRunes(item, maxRunes)
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
		if len(out) == limit {
			break
		}
	}
	return out
}

type sentimentWire struct {
	Score        *float64 `json:"score"`
	EmotionLabel string   `json:"emotionLabel"`
	Intensity    string   `json:"intensity"`
	Confidence   *float64 `json:"confidence"`
	Dialect      string   `json:"dialect"`
}

func parseSentiment(raw string) (Sentiment, error) {
	data, err := extractJSONObject(raw)
	if err != nil {
		return Sentiment{}, err
	}
	return decodeSentiment(data)
}

func decodeSentiment(data []byte) (Sentiment, error) {
	var w sentimentWire
	if err := json.Unmarshal(data, &w); err != nil {
		return Sentiment{}, fmt.Errorf("decode sentiment: %w", err)
	}
	if w.Score == nil {
		return Sentiment{}, fmt.Errorf("sentiment score missing")
	}
	if w.Confidence == nil {
		return Sentiment{}, fmt.Errorf("sentiment confidence missing")
	}
	score, err := checkRange("score", *w.Score, -1, 1)
	if err != nil {
		return Sentiment{}, err
	}
	confidence, err := checkRange("confidence", *w.Confidence, 0, 1)
	if err != nil {
		return Sentiment{}, err
	}
	label := normalizeLabel(w.EmotionLabel)
	if _, ok := emotionSet[label]; !ok {
		return Sentiment{}, fmt.Errorf("unknown emotionLabel %q", w.EmotionLabel)
	}
	intensity := intensityFromScore(score)
	if strings.TrimSpace(w.Intensity) != "" {
		lvl, ok := parseLevel(normalizeLabel(w.Intensity))
		if !ok {
			return Sentiment{}, fmt.Errorf("unknown intensity %q", w.Intensity)
		}
		intensity = lvl
	}
	return Sentiment{
		Score:        score,
		EmotionLabel: label,
		Intensity:    intensity,
		Confidence:   confidence,
		Dialect:      strings.TrimSpace(w.Dialect),
	}, nil
}

type categorizationWire struct {
	PrimaryCategory     string   `json:"primaryCategory"`
	SecondaryCategories []string `json:"secondaryCategories"`
	Topics              []string `json:"topics"`
	Urgency             string   `json:"urgency"`
	RequiresAction      *bool    `json:"requiresAction"`
	CustomerType        string   `json:"customerType"`
	Confidence          *float64 `json:"confidence"`
}

func parseCategorization(raw string) (Categorization, error) {
	data, err := extractJSONObject(raw)
	if err != nil {
		return Categorization{}, err
	}
	return decodeCategorization(data)
}

func decodeCategorization(data []byte) (Categorization, error) {
	var w categorizationWire
	if err := json.Unmarshal(data, &w); err != nil {
		return Categorization{}, fmt.Errorf("decode categorization: %w", err)
	}
	primary := normalizeLabel(w.PrimaryCategory)
	if _, ok := categorySet[primary]; !ok {
		return Categorization{}, fmt.Errorf("unknown primaryCategory %q", w.PrimaryCategory)
	}
	urgency, ok := parseLevel(normalizeLabel(w.Urgency))
	if !ok {
		return Categorization{}, fmt.Errorf("unknown urgency %q", w.Urgency)
	}
	confidence, err := optionalConfidence(w.Confidence)
	if err != nil {
		return Categorization{}, err
	}

	secondary := make([]string, 0, len(w.SecondaryCategories))
	seen := map[string]struct{}{primary: {}}
	for _, raw := range w.SecondaryCategories {
		c := normalizeLabel(raw)
		if _, known := categorySet[c]; !known {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		secondary = append(secondary, c)
	}

	customer := normalizeLabel(w.CustomerType)
	if _, known := customerTypeSet[customer]; !known {
		customer = CustomerTypeUnknown
	}

	requiresAction := urgency != LevelLow
	if w.RequiresAction != nil {
		requiresAction = *w.RequiresAction
	}

	return Categorization{
		PrimaryCategory:     primary,
		SecondaryCategories: secondary,
		Topics:              cleanList(w.Topics, maxTopics, 80),
		Urgency:             urgency,
		RequiresAction:      requiresAction,
		CustomerType:        customer,
		Confidence:          confidence,
	}, nil
}

type actionsWire struct {
	ImmediateActions  *[]string `json:"immediateActions"`
	FollowUpActions   *[]string `json:"followUpActions"`
	PreventionActions []string  `json:"preventionActions"`
	Escalate          *bool     `json:"escalate"`
	Confidence        *float64  `json:"confidence"`
}

func parseActions(raw string) (Actions, error) {
	data, err := extractJSONObject(raw)
	if err != nil {
		return Actions{}, err
	}
	return decodeActions(data)
}

func decodeActions(data []byte) (Actions, error) {
	var w actionsWire
	if err := json.Unmarshal(data, &w); err != nil {
		return Actions{}, fmt.Errorf("decode actions: %w", err)
	}
	if w.ImmediateActions == nil || w.FollowUpActions == nil {
		return Actions{}, fmt.Errorf("immediateActions and followUpActions are required")
	}
	if w.Escalate == nil {
		return Actions{}, fmt.Errorf("escalate missing")
	}
	confidence, err := optionalConfidence(w.Confidence)
	if err != nil {
		return Actions{}, err
	}
	return Actions{
		Immediate:  cleanList(*w.ImmediateActions, maxListItems, maxActionItemRunes),
		FollowUp:   cleanList(*w.FollowUpActions, maxListItems, maxActionItemRunes),
		Prevention: cleanList(w.PreventionActions, maxListItems, maxActionItemRunes),
		Escalate:   *w.Escalate,
		Confidence: confidence,
	}, nil
}

type legacyWire struct {
	Sentiment      json.RawMessage `json:"sentiment"`
	Categorization json.RawMessage `json:"categorization"`
	Actions        json.RawMessage `json:"actions"`
}

// parseLegacy validates the single-pass response. Any invalid section fails the whole
// response.
func parseLegacy(raw string) (Sentiment, Categorization, Actions, error) {
	data, err := extractJSONObject(raw)
	if err != nil {
		return Sentiment{}, Categorization{}, Actions{}, err
	}
	var w legacyWire
	if err := json.Unmarshal(data, &w); err != nil {
		return Sentiment{}, Categorization{}, Actions{}, fmt.Errorf("decode legacy: %w", err)
	}
	if len(w.Sentiment) == 0 || len(w.Categorization) == 0 || len(w.Actions) == 0 {
		return Sentiment{}, Categorization{}, Actions{}, fmt.Errorf("legacy response missing a section")
	}
	s, err := decodeSentiment(w.Sentiment)
	if err != nil {
		return Sentiment{}, Categorization{}, Actions{}, fmt.Errorf("legacy sentiment: %w", err)
	}
	c, err := decodeCategorization(w.Categorization)
	if err != nil {
		return Sentiment{}, Categorization{}, Actions{}, fmt.Errorf("legacy categorization: %w", err)
	}
	a, err := decodeActions(w.Actions)
	if err != nil {
		return Sentiment{}, Categorization{}, Actions{}, fmt.Errorf("legacy actions: %w", err)
	}
	return s, c, a, nil
}
