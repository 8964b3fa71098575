package tsquery

// DefaultIntent is returned when no intent pattern matches.
const DefaultIntent = IntentGenerationTrend

// Classify picks the intent for a normalized question.
//
// Consumption questions are resolved first: if a consumption indicator is
// present, the first matching consumption rule decides and generic scoring
// is skipped. Otherwise each intent scores one point per matching
// alternative and the highest score wins; ties go to the intent declared
// first.
func Classify(normalized string) Intent {
	if intent, ok := classifyConsumption(normalized); ok {
		return intent
	}
	best, bestScore := DefaultIntent, 0
	for _, intent := range Intents() {
		score := 0
		for _, p := range intentRules[intent] {
			if p.MatchString(normalized) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = intent, score
		}
	}
	return best
}

func classifyConsumption(normalized string) (Intent, bool) {
	indicated := false
	for _, p := range consumptionIndicators {
		if p.MatchString(normalized) {
			indicated = true
			break
		}
	}
	if !indicated {
		return 0, false
	}
	for _, rl := range consumptionRules {
		if rl.pattern.MatchString(normalized) {
			return rl.value, true
		}
	}
	return 0, false
}
