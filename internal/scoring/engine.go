package scoring

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/nestscore/nest-score-go/internal/models"
)

const (
	// maxPOIsForScore limits how many nearest POIs feed a category score.
	maxPOIsForScore = 10

	coverageBonus3 = 5
	coverageBonus6 = 10

	namelessWeight = 0.6

	// maxBaseAdjustment bounds how far a profile recalculation may move the
	// externally supplied baseline neighborhood score.
	maxBaseAdjustment = 20.0

	minDistanceFactor = 0.4

	defaultSaturationK = 0.005
)

// dailyCategories receive the redundancy coverage bonus.
var dailyCategories = map[string]bool{
	models.CategoryShops:     true,
	models.CategoryTransport: true,
	models.CategoryFinance:   true,
}

// saturationK holds the per-category diminishing-returns constants. Smaller
// values keep density contributing longer.
var saturationK = map[string]float64{
	models.CategoryShops:            0.006,
	models.CategoryTransport:        0.0065,
	models.CategoryEducation:        0.0045,
	models.CategoryHealth:           0.0045,
	models.CategoryNaturePlace:      0.004,
	models.CategoryNatureBackground: 0.0035,
	models.CategoryLeisure:          0.0045,
	models.CategoryFood:             0.0035,
	models.CategoryFinance:          0.006,
}

// POIContribution is one POI's share of a category score.
type POIContribution struct {
	Name              string   `json:"name"`
	Subcategory       string   `json:"subcategory"`
	DistanceM         float64  `json:"distance_m"`
	DistanceScore     float64  `json:"distance_score"`
	QualityMultiplier float64  `json:"quality_multiplier"`
	FinalContribution float64  `json:"score"`
	Rating            *float64 `json:"rating,omitempty"`
	Reviews           *int     `json:"reviews,omitempty"`
}

// CategoryScoreResult is the full breakdown of one category's score.
type CategoryScoreResult struct {
	Category      string  `json:"category"`
	Score         float64 `json:"score"`
	UtilityScore  float64 `json:"utility_score"`
	UtilitySum    float64 `json:"utility_sum"`
	CoverageBonus float64 `json:"coverage_bonus"`

	NearestDistanceM *float64 `json:"nearest_distance_m,omitempty"`
	POICount         int      `json:"poi_count"`
	RadiusUsed       int      `json:"radius_used"`

	Contributions []POIContribution `json:"top_pois,omitempty"`

	IsCritical        bool     `json:"is_critical"`
	CriticalThreshold *float64 `json:"critical_threshold,omitempty"`
	CriticalCap       *float64 `json:"critical_cap,omitempty"`
	CriticalReason    string   `json:"critical_reason,omitempty"`
}

// RoadsDebug carries the road-proximity readings used for the penalty and
// for gating the quiet-neighborhood claim.
type RoadsDebug struct {
	Count            int      `json:"count"`
	SignificantCount int      `json:"significant_count"`
	NearestHeavyM    *float64 `json:"nearest_heavy_m,omitempty"`
	NearestPrimaryM  *float64 `json:"nearest_primary_m,omitempty"`
	NearestSecondary *float64 `json:"nearest_secondary_m,omitempty"`
	NearestRailsM    *float64 `json:"nearest_rails_m,omitempty"`
	Scale            float64  `json:"scale"`
}

// ScoringResult is one profile's complete verdict-ready scoring output.
type ScoringResult struct {
	TotalScore   float64 `json:"total_score"`
	BaseScore    float64 `json:"base_score"`
	NoisePenalty float64 `json:"noise_penalty"`
	RoadsPenalty float64 `json:"roads_penalty"`
	QuietScore   float64 `json:"quiet_score"`

	CategoryResults map[string]*CategoryScoreResult `json:"category_scores"`

	ProfileKey     string `json:"profile_key"`
	ProfileVersion int    `json:"profile_config_version"`

	Verdict             string   `json:"verdict"`
	CriticalCapsApplied []string `json:"critical_caps_applied"`

	Warnings   []string `json:"warnings"`
	Strengths  []string `json:"strengths"`
	Weaknesses []string `json:"weaknesses"`

	RoadsDebug RoadsDebug `json:"roads_debug"`
}

// Engine scores one location for one profile. Pure per call, safe to reuse
// across requests.
type Engine struct {
	profile *ProfileConfig
	logger  *zap.Logger
}

// NewEngine builds a scoring engine for a profile.
func NewEngine(profile *ProfileConfig, logger *zap.Logger) *Engine {
	return &Engine{profile: profile, logger: logger}
}

// NewEngineForKey resolves the profile, applies optional radius overrides
// and builds the engine.
func NewEngineForKey(profileKey string, radiusOverrides map[string]int, logger *zap.Logger) *Engine {
	profile := GetProfile(profileKey).WithRadiusOverrides(radiusOverrides)
	return NewEngine(profile, logger)
}

// Profile returns the engine's effective profile.
func (e *Engine) Profile() *ProfileConfig {
	return e.profile
}

// Calculate runs the scoring pipeline: per-category reductions, weighted
// aggregation, noise and roads penalties, critical caps, optional baseline
// blending and highlight extraction. baseNeighborhoodScore may be nil.
func (e *Engine) Calculate(
	poisByCategory map[string][]*models.POI,
	quietScore float64,
	natureMetrics *models.NatureMetrics,
	baseNeighborhoodScore *float64,
) *ScoringResult {
	categoryResults := make(map[string]*CategoryScoreResult)
	categoryScores := make(map[string]float64)

	for _, category := range models.ScoredCategories {
		weight := e.profile.GetWeight(category)
		if weight == 0 && category != models.CategoryNatureBackground {
			continue
		}

		radius := e.profile.GetRadius(category)
		var inRadius []*models.POI
		for _, p := range poisByCategory[category] {
			if p.DistanceM <= float64(radius) {
				inRadius = append(inRadius, p)
			}
		}

		var metrics *models.NatureMetrics
		if category == models.CategoryNatureBackground {
			metrics = natureMetrics
		}
		result := e.calculateCategoryScore(category, inRadius, radius, metrics)

		for _, cap := range e.profile.CriticalCaps {
			if cap.Category == category {
				result.IsCritical = true
				threshold, capVal := cap.Threshold, cap.Cap
				result.CriticalThreshold = &threshold
				result.CriticalCap = &capVal
				result.CriticalReason = fmt.Sprintf(
					"weight %.0f%%, score<%.0f caps total at %.0f",
					weight*100, cap.Threshold, cap.Cap)
				break
			}
		}

		categoryResults[category] = result
		categoryScores[category] = result.Score
	}

	// The quiet score acts directly as the noise pseudo-category's score,
	// caps on it stay meaningful.
	categoryScores[models.CategoryNoise] = quietScore

	baseScore := 0.0
	noisePenalty := 0.0
	totalPositiveWeight := 0.0
	for category, weight := range e.profile.Weights {
		if category == models.CategoryNoise {
			noisePenalty = math.Abs(weight) * (100 - quietScore)
			continue
		}
		baseScore += weight * categoryScores[category]
		if weight > 0 {
			totalPositiveWeight += weight
		}
	}
	if totalPositiveWeight > 0 {
		baseScore /= totalPositiveWeight
	}

	roadsPenalty, roadsDebug := e.calculateRoadsPenalty(poisByCategory[models.CategoryRoads])

	totalScore := baseScore - noisePenalty - roadsPenalty

	var capsApplied []string
	totalScore, capsApplied = e.applyCriticalCaps(totalScore, categoryScores, capsApplied)
	totalScore = clamp(totalScore, 0, 100)

	// Profile recalculation against a previously computed neighborhood
	// baseline: bounded delta, then caps reapplied so blending can never
	// lift a capped result.
	if baseNeighborhoodScore != nil {
		delta := clamp(totalScore-*baseNeighborhoodScore, -maxBaseAdjustment, maxBaseAdjustment)
		totalScore = clamp(*baseNeighborhoodScore+delta, 0, 100)
		totalScore, capsApplied = e.applyCriticalCaps(totalScore, categoryScores, capsApplied)
	}

	verdict := e.profile.Thresholds.Verdict(totalScore)
	strengths, weaknesses := e.extractHighlights(categoryResults, quietScore, roadsDebug)
	warnings := e.generateWarnings(quietScore, capsApplied)

	e.logger.Debug("profile scoring summary",
		zap.String("profile", e.profile.Key),
		zap.Float64("total", totalScore),
		zap.Float64("base", baseScore),
		zap.Float64("noise_penalty", noisePenalty),
		zap.Float64("roads_penalty", roadsPenalty))

	return &ScoringResult{
		TotalScore:          totalScore,
		BaseScore:           baseScore,
		NoisePenalty:        noisePenalty,
		RoadsPenalty:        roadsPenalty,
		QuietScore:          quietScore,
		CategoryResults:     categoryResults,
		ProfileKey:          e.profile.Key,
		ProfileVersion:      e.profile.Version,
		Verdict:             verdict,
		CriticalCapsApplied: capsApplied,
		Warnings:            warnings,
		Strengths:           strengths,
		Weaknesses:          weaknesses,
		RoadsDebug:          roadsDebug,
	}
}

func (e *Engine) applyCriticalCaps(totalScore float64, categoryScores map[string]float64, applied []string) (float64, []string) {
	for _, cap := range e.profile.CriticalCaps {
		catScore := categoryScores[cap.Category]
		if catScore < cap.Threshold && totalScore > cap.Cap {
			totalScore = cap.Cap
			msg := fmt.Sprintf("%s: %.0f < %.0f, capped at %.0f",
				CategoryName(cap.Category), catScore, cap.Threshold, cap.Cap)
			if !containsString(applied, msg) {
				applied = append(applied, msg)
			}
		}
	}
	return totalScore, applied
}

func (e *Engine) calculateCategoryScore(category string, pois []*models.POI, radius int, natureMetrics *models.NatureMetrics) *CategoryScoreResult {
	if len(pois) == 0 && natureMetrics == nil {
		return &CategoryScoreResult{
			Category:   category,
			RadiusUsed: radius,
		}
	}

	if category == models.CategoryNatureBackground && natureMetrics != nil {
		return e.calculateNatureBackgroundScore(radius, natureMetrics)
	}

	decayMode := e.profile.GetDecayMode(category)

	sorted := make([]*models.POI, len(pois))
	copy(sorted, pois)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].DistanceM < sorted[j].DistanceM
	})
	if len(sorted) > maxPOIsForScore {
		sorted = sorted[:maxPOIsForScore]
	}

	var contributions []POIContribution
	utilitySum := 0.0
	for _, poi := range sorted {
		distScore := DistanceScore(poi.DistanceM, float64(radius), decayMode)
		qualityMult := qualityMultiplier(poi)
		namelessMult := 1.0
		if poi.Nameless {
			namelessMult = namelessWeight
		}
		contribution := distScore * qualityMult * namelessMult
		utilitySum += contribution

		contributions = append(contributions, POIContribution{
			Name:              poi.Name,
			Subcategory:       poi.Subcategory,
			DistanceM:         poi.DistanceM,
			DistanceScore:     distScore,
			QualityMultiplier: qualityMult * namelessMult,
			FinalContribution: contribution,
			Rating:            poi.Rating,
			Reviews:           poi.Reviews,
		})
	}

	k := defaultSaturationK
	if v, ok := saturationK[category]; ok {
		k = v
	}
	utilityScore := saturatingScore(utilitySum, k)

	coverageBonus := 0.0
	if dailyCategories[category] {
		sensible := 0
		for _, p := range sorted {
			if p.DistanceM <= float64(radius)*0.8 {
				sensible++
			}
		}
		switch {
		case sensible >= 6:
			coverageBonus = coverageBonus6
		case sensible >= 3:
			coverageBonus = coverageBonus3
		}
	}

	scoreBeforeDistance := math.Min(100, utilityScore+coverageBonus)
	var nearestDistance *float64
	finalScore := 0.0
	if len(sorted) > 0 {
		d := sorted[0].DistanceM
		nearestDistance = &d
		finalScore = math.Min(100, scoreBeforeDistance*e.distanceFactor(nearestDistance, radius, decayMode))
	}

	return &CategoryScoreResult{
		Category:         category,
		Score:            finalScore,
		UtilityScore:     utilityScore,
		UtilitySum:       utilitySum,
		CoverageBonus:    coverageBonus,
		NearestDistanceM: nearestDistance,
		POICount:         len(pois),
		RadiusUsed:       radius,
		Contributions:    contributions,
	}
}

// calculateNatureBackgroundScore combines the green density proxy, the
// nearest-green distance component and a tiered water bonus instead of the
// POI-list procedure.
func (e *Engine) calculateNatureBackgroundScore(radius int, metrics *models.NatureMetrics) *CategoryScoreResult {
	densityScore := 0.0
	switch density := metrics.GreenDensityProxy; {
	case density >= 15:
		densityScore = 50
	case density >= 8:
		densityScore = 35
	case density >= 3:
		densityScore = 20
	case density >= 1:
		densityScore = 10
	}

	var nearestGreen *float64
	for _, greenType := range []string{"forest", "wood", "meadow", "grass", "park"} {
		if dist, ok := metrics.NearestDistances[greenType]; ok && dist > 0 {
			if nearestGreen == nil || dist < *nearestGreen {
				d := dist
				nearestGreen = &d
			}
		}
	}

	distanceComponent := 0.0
	if nearestGreen != nil {
		distanceComponent = DistanceScore(*nearestGreen, float64(radius), DecayBackground) * 0.3
	}

	waterBonus := 0.0
	if metrics.NearestWaterM != nil {
		switch water := *metrics.NearestWaterM; {
		case water <= 200:
			waterBonus = 20
		case water <= 400:
			waterBonus = 15
		case water <= 600:
			waterBonus = 10
		case water <= 1000:
			waterBonus = 5
		}
	}

	score := math.Min(100, densityScore+distanceComponent+waterBonus)

	return &CategoryScoreResult{
		Category:         models.CategoryNatureBackground,
		Score:            score,
		UtilityScore:     densityScore + distanceComponent,
		UtilitySum:       densityScore + distanceComponent,
		CoverageBonus:    waterBonus,
		NearestDistanceM: nearestGreen,
		POICount:         metrics.TotalGreenElements,
		RadiusUsed:       radius,
	}
}

// qualityMultiplier derives a ~0.90-1.10 factor from rating and review
// count. The adjustment only applies as far as the review count makes it
// trustworthy, and thin-data entries never get a boost.
func qualityMultiplier(poi *models.POI) float64 {
	if poi.Rating == nil {
		return 1.0
	}

	ratingMult := 0.90 + 0.20*(*poi.Rating/5.0)

	confidence := 0.3
	if poi.Reviews != nil && *poi.Reviews > 0 {
		confidence = math.Min(1.0, float64(*poi.Reviews)/200)
	}

	if poi.LowReviews {
		ratingMult = math.Min(ratingMult, 1.0)
	}

	return 1.0 + (ratingMult-1.0)*confidence
}

// distanceFactor keeps a far-but-present nearest POI contributing: a 0.4
// floor plus up to 0.6 scaled by the nearest POI's curve score.
func (e *Engine) distanceFactor(nearestDistanceM *float64, radius int, mode DecayMode) float64 {
	if nearestDistanceM == nil {
		return 0
	}
	nearestScore := DistanceScore(*nearestDistanceM, float64(radius), mode) / 100.0
	return minDistanceFactor + (1.0-minDistanceFactor)*nearestScore
}

func saturatingScore(value, k float64) float64 {
	if value <= 0 {
		return 0
	}
	return math.Min(100, 100*(1-math.Exp(-k*value)))
}

var significantRoadTypes = map[string]bool{
	"motorway":  true,
	"trunk":     true,
	"primary":   true,
	"secondary": true,
	"tram":      true,
	"rail":      true,
}

// calculateRoadsPenalty tallies distance-tiered points for four road tiers
// plus a density surcharge, scaled by the profile's noise weight and capped
// at 30.
func (e *Engine) calculateRoadsPenalty(roads []*models.POI) (float64, RoadsDebug) {
	if len(roads) == 0 {
		return 0, RoadsDebug{}
	}

	nearest := func(subcats ...string) *float64 {
		var min *float64
		for _, p := range roads {
			for _, sc := range subcats {
				if p.Subcategory == sc {
					if min == nil || p.DistanceM < *min {
						d := p.DistanceM
						min = &d
					}
				}
			}
		}
		return min
	}

	nearestHeavy := nearest("motorway", "trunk")
	nearestPrimary := nearest("primary")
	nearestSecondary := nearest("secondary")
	nearestRails := nearest("tram", "rail")

	penalty := 0.0
	if nearestHeavy != nil {
		switch {
		case *nearestHeavy <= 300:
			penalty += 20
		case *nearestHeavy <= 600:
			penalty += 12
		case *nearestHeavy <= 1000:
			penalty += 6
		}
	}
	if nearestPrimary != nil {
		switch {
		case *nearestPrimary <= 100:
			penalty += 12
		case *nearestPrimary <= 250:
			penalty += 8
		case *nearestPrimary <= 500:
			penalty += 4
		}
	}
	if nearestSecondary != nil {
		switch {
		case *nearestSecondary <= 150:
			penalty += 6
		case *nearestSecondary <= 300:
			penalty += 3
		}
	}
	if nearestRails != nil {
		switch {
		case *nearestRails <= 80:
			penalty += 8
		case *nearestRails <= 150:
			penalty += 4
		}
	}

	significant := 0
	for _, r := range roads {
		if significantRoadTypes[r.Subcategory] {
			significant++
		}
	}
	switch {
	case significant >= 10:
		penalty += 5
	case significant >= 5:
		penalty += 3
	}

	noiseWeight := math.Abs(e.profile.GetWeight(models.CategoryNoise))
	scale := 0.5 + math.Min(1.5, noiseWeight/0.05)
	penalty = math.Min(30, penalty*scale)

	return penalty, RoadsDebug{
		Count:            len(roads),
		SignificantCount: significant,
		NearestHeavyM:    nearestHeavy,
		NearestPrimaryM:  nearestPrimary,
		NearestSecondary: nearestSecondary,
		NearestRailsM:    nearestRails,
		Scale:            scale,
	}
}

// extractHighlights pulls strengths and weaknesses from category results.
// The quiet-neighborhood claim is gated on road proximity so the output
// never asserts calm right next to obvious infrastructure noise.
func (e *Engine) extractHighlights(results map[string]*CategoryScoreResult, quietScore float64, roads RoadsDebug) ([]string, []string) {
	var strengths, weaknesses []string

	for _, category := range models.ScoredCategories {
		result, ok := results[category]
		if !ok {
			continue
		}
		name := CategoryName(category)

		if result.Score >= 70 {
			if result.NearestDistanceM != nil && *result.NearestDistanceM <= 300 {
				strengths = append(strengths, fmt.Sprintf("✅ %s: excellent access (%.0fm)", name, *result.NearestDistanceM))
			} else {
				strengths = append(strengths, fmt.Sprintf("✅ %s: strong score (%.0f)", name, result.Score))
			}
		} else if result.Score <= 30 && result.IsCritical {
			weaknesses = append(weaknesses, fmt.Sprintf("⚠️ %s: weak score (%.0f)", name, result.Score))
		}
	}

	quietBlocked := false
	if roads.NearestPrimaryM != nil && *roads.NearestPrimaryM <= 250 {
		quietBlocked = true
	}
	if roads.NearestRailsM != nil && *roads.NearestRailsM <= 200 {
		quietBlocked = true
	}
	if roads.NearestSecondary != nil && *roads.NearestSecondary <= 300 {
		quietBlocked = true
	}
	if roads.NearestHeavyM != nil && *roads.NearestHeavyM <= 600 {
		quietBlocked = true
	}
	if roads.Count >= 10 {
		quietBlocked = true
	}

	if quietScore >= 70 {
		if !quietBlocked {
			strengths = append(strengths, fmt.Sprintf("🔇 Quiet neighborhood (%.0f/100)", quietScore))
		}
	} else if quietScore <= 35 {
		weaknesses = append(weaknesses, fmt.Sprintf("🔊 Noisy neighborhood (%.0f/100)", quietScore))
	}

	if len(strengths) > 4 {
		strengths = strengths[:4]
	}
	if len(weaknesses) > 4 {
		weaknesses = weaknesses[:4]
	}
	return strengths, weaknesses
}

func (e *Engine) generateWarnings(quietScore float64, capsApplied []string) []string {
	var warnings []string
	for _, msg := range capsApplied {
		warnings = append(warnings, "🚨 LIMIT: "+msg)
	}

	noiseWeight := math.Abs(e.profile.GetWeight(models.CategoryNoise))
	if noiseWeight >= 0.08 && quietScore < 45 {
		warnings = append(warnings, fmt.Sprintf(
			"⚠️ The area is noisy (%.0f/100) and the %s profile needs quiet.",
			quietScore, e.profile.Name))
	}
	return warnings
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
