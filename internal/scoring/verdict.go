package scoring

import (
	"fmt"
	"math"
)

const (
	maxKeyFactors         = 5
	maxConfidencePenalty  = 30.0
	confidencePenaltyStep = 15.0
)

// compromiseRule flags a tradeoff worth surfacing in the label even when
// the score clears the recommended threshold.
type compromiseRule struct {
	NoisePenaltyAbove float64
	RoadsPenaltyAbove float64
	Reason            string
}

// compromiseRules are per-profile. A zero threshold disables that check.
var compromiseRules = map[string][]compromiseRule{
	"family": {
		{NoisePenaltyAbove: 8, Reason: "noticeable noise around the address"},
		{RoadsPenaltyAbove: 10, Reason: "busy roads nearby"},
	},
	"quiet_green": {
		{NoisePenaltyAbove: 5, Reason: "the area is not as quiet as the profile expects"},
		{RoadsPenaltyAbove: 8, Reason: "road noise within earshot"},
	},
	"remote_work": {
		{NoisePenaltyAbove: 8, Reason: "daytime noise may disturb work from home"},
	},
	"urban": {
		{RoadsPenaltyAbove: 15, Reason: "heavy traffic right at the doorstep"},
	},
}

// Verdict is the final recommendation for one location and profile.
type Verdict struct {
	Level        string   `json:"level"`
	Label        string   `json:"label"`
	Emoji        string   `json:"emoji"`
	Explanation  string   `json:"explanation"`
	KeyFactors   []string `json:"key_factors"`
	Score        float64  `json:"score"`
	Confidence   int      `json:"confidence"`
	ProfileMatch string   `json:"profile_match"`
	Compromise   string   `json:"compromise,omitempty"`
	Downgraded   bool     `json:"downgraded,omitempty"`
}

var verdictLabels = map[string]struct {
	Label string
	Emoji string
}{
	VerdictRecommended:    {"Recommended", "✅"},
	VerdictConditional:    {"Conditionally recommended", "⚠️"},
	VerdictNotRecommended: {"Not recommended", "❌"},
}

// VerdictGenerator maps a scoring result onto a recommendation.
type VerdictGenerator struct{}

// NewVerdictGenerator returns a stateless generator.
func NewVerdictGenerator() *VerdictGenerator {
	return &VerdictGenerator{}
}

// Generate builds the verdict. A fired critical cap always downgrades a
// would-be recommended result to conditional: an unmet must-have can never
// be called fully recommended.
func (g *VerdictGenerator) Generate(result *ScoringResult, profile *ProfileConfig) *Verdict {
	score := result.TotalScore
	thresholds := profile.Thresholds

	level := thresholds.Verdict(score)
	downgraded := false
	if level == VerdictRecommended && len(result.CriticalCapsApplied) > 0 {
		level = VerdictConditional
		downgraded = true
	}

	config := verdictLabels[level]
	label := config.Label

	compromise := ""
	if level == VerdictRecommended {
		if reason := g.detectCompromise(result, profile); reason != "" {
			compromise = reason
			label = fmt.Sprintf("Recommended with compromise: %s", reason)
		}
	}

	return &Verdict{
		Level:        level,
		Label:        label,
		Emoji:        config.Emoji,
		Explanation:  g.explanation(level, score, profile, downgraded),
		KeyFactors:   g.keyFactors(result, level),
		Score:        score,
		Confidence:   g.confidence(score, thresholds, len(result.CriticalCapsApplied)),
		ProfileMatch: g.profileMatch(score, thresholds),
		Compromise:   compromise,
		Downgraded:   downgraded,
	}
}

// confidence bands on the distance to the nearest threshold boundary,
// reduced by up to 30 points when critical caps fired.
func (g *VerdictGenerator) confidence(score float64, thresholds VerdictThresholds, capsFired int) int {
	distRecommended := math.Abs(score - float64(thresholds.Recommended))
	distConditional := math.Abs(score - float64(thresholds.Conditional))
	minDistance := distRecommended
	if distConditional < minDistance {
		minDistance = distConditional
	}

	var base float64
	switch {
	case minDistance >= 20:
		base = 90
	case minDistance >= 15:
		base = 80
	case minDistance >= 10:
		base = 70
	case minDistance >= 5:
		base = 55
	default:
		base = 45
	}

	penalty := confidencePenaltyStep * float64(capsFired)
	if penalty > maxConfidencePenalty {
		penalty = maxConfidencePenalty
	}

	confidence := base - penalty
	if confidence < 0 {
		confidence = 0
	}
	return int(confidence)
}

func (g *VerdictGenerator) profileMatch(score float64, thresholds VerdictThresholds) string {
	switch {
	case score >= float64(thresholds.Recommended)+10:
		return "excellent"
	case score >= float64(thresholds.Recommended):
		return "good"
	case score >= float64(thresholds.Conditional):
		return "acceptable"
	case score >= float64(thresholds.Conditional)-10:
		return "poor"
	default:
		return "mismatch"
	}
}

func (g *VerdictGenerator) detectCompromise(result *ScoringResult, profile *ProfileConfig) string {
	for _, rule := range compromiseRules[profile.Key] {
		if rule.NoisePenaltyAbove > 0 && result.NoisePenalty > rule.NoisePenaltyAbove {
			return rule.Reason
		}
		if rule.RoadsPenaltyAbove > 0 && result.RoadsPenalty > rule.RoadsPenaltyAbove {
			return rule.Reason
		}
	}
	return ""
}

func (g *VerdictGenerator) explanation(level string, score float64, profile *ProfileConfig, downgraded bool) string {
	switch level {
	case VerdictRecommended:
		return fmt.Sprintf(
			"The location scored %.0f/100 for the %s %s profile. It meets the key criteria and is recommended.",
			score, profile.Emoji, profile.Name)
	case VerdictConditional:
		if downgraded {
			return fmt.Sprintf(
				"The location scored %.0f/100 for the %s %s profile, but a must-have criterion was not met.",
				score, profile.Emoji, profile.Name)
		}
		return fmt.Sprintf(
			"The location scored %.0f/100 for the %s %s profile. Worth considering with some compromises.",
			score, profile.Emoji, profile.Name)
	default:
		return fmt.Sprintf(
			"The location scored %.0f/100 for the %s %s profile. It does not meet the key criteria.",
			score, profile.Emoji, profile.Name)
	}
}

// keyFactors picks up to 5 entries: warnings first, then strengths or
// weaknesses depending on how the verdict came out.
func (g *VerdictGenerator) keyFactors(result *ScoringResult, level string) []string {
	factors := make([]string, 0, maxKeyFactors)

	for i, warning := range result.Warnings {
		if i >= 2 {
			break
		}
		factors = append(factors, warning)
	}

	switch level {
	case VerdictRecommended:
		factors = appendLimited(factors, result.Strengths, 3)
	case VerdictConditional:
		factors = appendLimited(factors, result.Strengths, 2)
		factors = appendLimited(factors, result.Weaknesses, 2)
	default:
		factors = appendLimited(factors, result.Weaknesses, 3)
	}

	if len(factors) > maxKeyFactors {
		factors = factors[:maxKeyFactors]
	}
	return factors
}

func appendLimited(dst, src []string, limit int) []string {
	for i, s := range src {
		if i >= limit {
			break
		}
		dst = append(dst, s)
	}
	return dst
}
