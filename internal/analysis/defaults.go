package analysis

func neutralSentiment() Sentiment {
	return Sentiment{
		Score:        0,
		EmotionLabel: EmotionNeutral,
		Intensity:    LevelLow,
		Confidence:   0,
	}
}

func defaultCategorization() Categorization {
	return Categorization{
		PrimaryCategory:     CategoryOther,
		SecondaryCategories: []string{},
		Topics:              []string{},
		Urgency:             LevelLow,
		RequiresAction:      false,
		CustomerType:        CustomerTypeUnknown,
		Confidence:          0,
	}
}

func defaultActions() Actions {
	return Actions{
		Immediate:  []string{},
		FollowUp:   []string{},
		Prevention: []string{},
		Escalate:   false,
		Confidence: 0,
	}
}
