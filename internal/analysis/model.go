package analysis

// Request is one feedback item submitted for analysis. It is never mutated.
type Request struct {
	Text          string `json:"text"`
	CorrelationID string `json:"correlationId,omitempty"`
	Locale        string `json:"locale,omitempty"`
}

// Method names the fallback tier that produced an Outcome.
type Method string

const (
	MethodAgentPipeline     Method = "agent_pipeline"
	MethodLegacySinglePass  Method = "legacy_single_pass"
	MethodEmergencyFallback Method = "emergency_fallback"
)

// Level is shared by sentiment intensity and categorization urgency.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Sentiment is the validated output of the sentiment stage.
type Sentiment struct {
	Score        float64 `json:"score"`
	EmotionLabel string  `json:"emotionLabel"`
	Intensity    Level   `json:"intensity"`
	Confidence   float64 `json:"confidence"`
	Dialect      string  `json:"dialect,omitempty"`
}

// Categorization is the validated output of the categorization stage.
type Categorization struct {
	PrimaryCategory     string   `json:"primaryCategory"`
	SecondaryCategories []string `json:"secondaryCategories"`
	Topics              []string `json:"topics"`
	Urgency             Level    `json:"urgency"`
	RequiresAction      bool     `json:"requiresAction"`
	CustomerType        string   `json:"customerType"`
	Confidence          float64  `json:"confidence"`
}

// Actions is the validated output of the action-recommendation stage.
type Actions struct {
	Immediate  []string `json:"immediate"`
	FollowUp   []string `json:"followUp"`
	Prevention []string `json:"prevention"`
	Escalate   bool     `json:"escalate"`
	Confidence float64  `json:"confidence"`
}

// Outcome is the final result handed to callers and to the completion hook.
type Outcome struct {
	CorrelationID    string          `json:"correlationId"`
	Sentiment        Sentiment       `json:"sentiment"`
	Categorization   Categorization  `json:"categorization"`
	Actions          Actions         `json:"actions"`
	MethodUsed       Method          `json:"methodUsed"`
	Degraded         bool            `json:"degraded"`
	ProcessingTimeMs int64           `json:"processingTimeMs"`
	Errors           []ErrorEntry    `json:"errors,omitempty"`
	StageLog         []StageLogEntry `json:"stageLog,omitempty"`
}

// EmotionLabels is the fixed label set accepted from the sentiment stage.
var EmotionLabels = []string{
	"admiration", "approval", "gratitude", "joy", "excitement", "optimism", "relief", "satisfaction",
	"neutral", "curiosity", "confusion", "surprise",
	"concern", "disappointment", "frustration", "annoyance", "anger", "sadness", "disgust", "fear",
}

// Categories is the fixed category set accepted from the categorization stage.
var Categories = []string{
	"product_quality", "service_quality", "customer_support", "delivery", "pricing", "billing",
	"technical_issue", "website_app", "staff_behavior", "suggestion", "praise", "other",
}

// CustomerTypes is the accepted customer segment set.
var CustomerTypes = []string{"new", "returning", "loyal", "at_risk", "unknown"}

const (
	CategoryOther       = "other"
	CustomerTypeUnknown = "unknown"
	EmotionNeutral      = "neutral"
)

var (
	emotionSet      = toSet(EmotionLabels)
	categorySet     = toSet(Categories)
	customerTypeSet = toSet(CustomerTypes)
)

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}

func parseLevel(raw string) (Level, bool) {
	switch Level(raw) {
	case LevelLow, LevelMedium, LevelHigh:
		return Level(raw), true
	}
	return "", false
}

func intensityFromScore(score float64) Level {
	if score < 0 {
		score = -score
	}
	switch {
	case score >= 0.7:
		return LevelHigh
	case score >= 0.35:
		return LevelMedium
	default:
		return LevelLow
	}
}
