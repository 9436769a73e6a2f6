package query

import "strings"

// #region keywords

// Intent patterns are configuration data, not logic. Matching is evaluated in
// table order: first hit wins, so the more specific intents come first.

var nextStepKeywords = []string{
	"next step", "what's next", "what is next", "what comes next",
	"what comes after", "after this step", "after this", "then what",
	"what do i do next", "what should i do next", "upcoming step",
}

var currentStepKeywords = []string{
	"what step", "which step", "current step", "step am i",
	"where am i", "what am i doing", "what am i on",
	"what should i be doing", "what task", "which task",
}

var requiredToolsKeywords = []string{
	"what do i need", "what tools", "which tools", "tools do i need",
	"equipment", "ingredients", "materials", "supplies",
	"what is required", "what's required", "do i need anything",
}

var completionStatusKeywords = []string{
	"am i done", "am i finished", "is it done", "is this done",
	"is it finished", "did i finish", "have i finished",
	"is this step done", "is this step complete", "complete yet",
}

var progressOverviewKeywords = []string{
	"how far", "progress", "how much is left", "how much longer",
	"how many steps", "steps left", "steps remain", "overview",
	"where are we", "how am i doing",
}

var helpKeywords = []string{
	"help", "how do i", "how should i", "i'm stuck", "i am stuck",
	"stuck", "confused", "what do i do", "can you help", "show me",
}

// openEndedWords flag abstract or open-ended phrasing that a canned template
// answers poorly, even when an intent keyword matched.
var openEndedWords = []string{
	"why", "explain", "meaning", "in general", "generally",
	"best way", "better way", "opinion", "think about", "overall",
	"conceptually", "philosophy", "instead", "alternative",
}

// #endregion keywords

// #region confidence

const (
	matchedConfidence = 0.9
	unknownConfidence = 0.1

	// Multiplicative penalties applied to a matched intent.
	openEndedPenalty = 0.4 // abstract phrasing: templates answer poorly
	noStatePenalty   = 0.5 // no current belief to render from
)

// #endregion confidence

// #region classify

// intentTable maps each intent to its keyword list, in priority order.
var intentTable = []struct {
	qtype    Type
	keywords []string
}{
	{TypeNextStep, nextStepKeywords},
	{TypeCurrentStep, currentStepKeywords},
	{TypeRequiredTools, requiredToolsKeywords},
	{TypeCompletionStatus, completionStatusKeywords},
	{TypeProgressOverview, progressOverviewKeywords},
	{TypeHelp, helpKeywords},
}

// Classify maps a user question to an intent and a confidence score.
// hasState tells the classifier whether a current belief exists; without one
// even a recognized intent is a weak candidate for a template answer.
func Classify(text string, hasState bool) Classification {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return Classification{Type: TypeUnknown, Confidence: unknownConfidence}
	}

	for _, intent := range intentTable {
		if !containsAny(lower, intent.keywords) {
			continue
		}
		confidence := float32(matchedConfidence)
		if containsAny(lower, openEndedWords) {
			confidence *= openEndedPenalty
		}
		if !hasState {
			confidence *= noStatePenalty
		}
		return Classification{Type: intent.qtype, Confidence: confidence}
	}

	return Classification{Type: TypeUnknown, Confidence: unknownConfidence}
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// #endregion classify
