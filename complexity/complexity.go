// Package complexity implements the pure prompt-complexity estimator of
// spec section 4.4: a fixed keyword count, multi-step/tool/thinking
// heuristics, and an ordered level-rule cascade.
//
// Grounded on teacher intelligence/intelligence.go's Classifier (substring
// keyword-matching over a fixed rule set) for the keyword-counting
// approach, and metering/metering.go's TokenCounter.EstimateTokens
// (len/charsPerToken heuristic) for the input-token estimate.
package complexity

import (
	"math"
	"regexp"
	"strings"
)

// Level is the complexity classification of a prompt.
type Level string

const (
	LevelExpert   Level = "expert"
	LevelComplex  Level = "complex"
	LevelModerate Level = "moderate"
	LevelSimple   Level = "simple"
)

// complexityKeywords and simpleKeywords are the fixed sets spec 4.4 names;
// styled after the teacher's own ClassificationRule keyword lists.
var complexityKeywords = []string{
	"refactor", "architect", "migrate", "optimize", "design", "integrate",
	"debug", "analyze", "reason", "think", "evaluate", "compare", "strategy",
	"algorithm", "concurrent", "distributed", "security", "vulnerability",
}

var simpleKeywords = []string{
	"list", "show", "what is", "get", "print", "display", "fetch", "hello",
}

var toolKeywords = []string{"file", "code", "run", "execute", "create", "modify"}

var multiStepWords = []string{"then", "step", "first", "after that"}

var numberedStepPattern = regexp.MustCompile(`\d\.`)

// Signals is the set of derived facts behind a Level classification.
type Signals struct {
	InputTokenEstimate int
	ComplexityKeywords int
	SimpleKeywords     int
	MultiStep          bool
	RequiresTools      bool
	RequiresThinking   bool
}

// Result is estimateComplexity's return value.
type Result struct {
	Level   Level
	Signals Signals
}

func countMatches(lower string, words []string) int {
	count := 0
	for _, w := range words {
		if strings.Contains(lower, w) {
			count++
		}
	}
	return count
}

// Estimate is the pure function (prompt) -> {level, signals} of spec 4.4.
func Estimate(prompt string) Result {
	lower := strings.ToLower(prompt)

	inputTokenEstimate := int(math.Ceil(float64(len(prompt)) / 4.0))
	complexityCount := countMatches(lower, complexityKeywords)
	simpleCount := countMatches(lower, simpleKeywords)

	multiStep := containsAny(lower, multiStepWords) || len(numberedStepPattern.FindAllString(lower, -1)) >= 2
	requiresTools := containsAny(lower, toolKeywords)
	requiresThinking := complexityCount >= 3 ||
		multiStep ||
		len(prompt) > 2000 ||
		strings.Contains(lower, "reason") ||
		strings.Contains(lower, "think")

	signals := Signals{
		InputTokenEstimate: inputTokenEstimate,
		ComplexityKeywords: complexityCount,
		SimpleKeywords:     simpleCount,
		MultiStep:          multiStep,
		RequiresTools:      requiresTools,
		RequiresThinking:   requiresThinking,
	}

	level := classify(complexityCount, simpleCount, multiStep, requiresThinking, len(prompt))
	return Result{Level: level, Signals: signals}
}

// classify applies spec 4.4's level rules in order: expert, complex,
// simple, otherwise moderate.
func classify(complexityCount, simpleCount int, multiStep, requiresThinking bool, promptLen int) Level {
	switch {
	case complexityCount >= 3 || (multiStep && requiresThinking):
		return LevelExpert
	case complexityCount >= 1 || multiStep || promptLen > 1000:
		return LevelComplex
	case simpleCount > complexityCount && promptLen < 200:
		return LevelSimple
	default:
		return LevelModerate
	}
}

func containsAny(lower string, words []string) bool {
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// TierFloor maps a complexity level to the minimum (strongest-first)
// capability tier required, per spec 4.4.
func TierFloor(level Level) int {
	switch level {
	case LevelExpert:
		return 1
	case LevelComplex:
		return 2
	case LevelModerate:
		return 3
	case LevelSimple:
		return 4
	default:
		return 3
	}
}
