package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/nestscore/nest-score-go/internal/models"
)

// baselineWeights sum to 100 and drive the profile-independent
// neighborhood score used as the blending baseline.
var baselineWeights = map[string]float64{
	models.CategoryShops:            18,
	models.CategoryTransport:        22,
	models.CategoryEducation:        10,
	models.CategoryHealth:           14,
	models.CategoryNaturePlace:      10,
	models.CategoryNatureBackground: 6,
	models.CategoryLeisure:          8,
	models.CategoryFood:             7,
	models.CategoryFinance:          5,
}

// expectedCounts is how many POIs a category needs for its full count
// component.
var expectedCounts = map[string]float64{
	models.CategoryShops:            5,
	models.CategoryTransport:        3,
	models.CategoryEducation:        2,
	models.CategoryHealth:           3,
	models.CategoryNaturePlace:      2,
	models.CategoryNatureBackground: 3,
	models.CategoryLeisure:          2,
	models.CategoryFood:             5,
	models.CategoryFinance:          2,
}

// TrafficInfo describes the ambient road-traffic level around the point.
type TrafficInfo struct {
	Level       string `json:"level"`
	Description string `json:"description"`
}

// CategoryBaseline is the per-category breakdown of the baseline score.
type CategoryBaseline struct {
	Count    int      `json:"count"`
	NearestM *float64 `json:"nearest_m,omitempty"`
	Names    []string `json:"names"`
	Rating   string   `json:"rating"`
}

// NeighborhoodScore is the profile-independent baseline analysis: a simple
// count-and-proximity heuristic plus the quiet score consumed by the
// profile engine as its noise signal.
type NeighborhoodScore struct {
	TotalScore     float64                      `json:"total_score"`
	CategoryScores map[string]float64           `json:"category_scores"`
	QuietScore     float64                      `json:"quiet_score"`
	QuietDebug     map[string]float64           `json:"quiet_debug"`
	Summary        string                       `json:"summary"`
	Traffic        TrafficInfo                  `json:"traffic"`
	Details        map[string]*CategoryBaseline `json:"details"`
}

// BaselineAnalyzer computes the neighborhood baseline and the quiet score.
type BaselineAnalyzer struct{}

// NewBaselineAnalyzer returns a stateless analyzer.
func NewBaselineAnalyzer() *BaselineAnalyzer {
	return &BaselineAnalyzer{}
}

// Analyze scores the neighborhood with the fixed baseline weights and
// derives the quiet score from transport, food, retail, school and road
// proximity signals.
func (a *BaselineAnalyzer) Analyze(pois map[string][]*models.POI, metrics *models.NatureMetrics) *NeighborhoodScore {
	categoryScores := make(map[string]float64, len(baselineWeights))
	details := make(map[string]*CategoryBaseline, len(baselineWeights))

	totalScore := 0.0
	for category, weight := range baselineWeights {
		score, detail := a.scoreCategory(category, pois[category])
		categoryScores[category] = score
		details[category] = detail
		totalScore += score * weight / 100
	}

	quietScore, quietDebug := a.calculateQuietScore(pois, metrics)

	return &NeighborhoodScore{
		TotalScore:     totalScore,
		CategoryScores: categoryScores,
		QuietScore:     quietScore,
		QuietDebug:     quietDebug,
		Summary:        a.generateSummary(totalScore, categoryScores),
		Traffic:        a.analyzeTraffic(pois[models.CategoryRoads]),
		Details:        details,
	}
}

// calculateQuietScore starts at a 60-point base, adds green bonuses and
// subtracts proximity penalties for the usual noise sources. Returns the
// clamped score plus the component breakdown.
func (a *BaselineAnalyzer) calculateQuietScore(pois map[string][]*models.POI, metrics *models.NatureMetrics) (float64, map[string]float64) {
	components := map[string]float64{"base": 60}
	score := 60.0

	greenDensity := 0.0
	var nearestPark *float64
	if metrics != nil {
		greenDensity = metrics.GreenDensityProxy
		if d, ok := metrics.NearestDistances["park"]; ok {
			nearestPark = &d
		}
	}

	greenBonus := 0.0
	switch {
	case greenDensity >= 15:
		greenBonus = 25
	case greenDensity >= 5:
		greenBonus = 15
	case greenDensity >= 1:
		greenBonus = 5
	}
	components["green_density_bonus"] = greenBonus
	score += greenBonus

	parkBonus := 0.0
	if nearestPark != nil {
		if *nearestPark <= 300 {
			parkBonus = 10
		} else if *nearestPark <= 500 {
			parkBonus = 5
		}
	}
	components["park_proximity_bonus"] = parkBonus
	score += parkBonus

	nearTransport := countWithin(pois[models.CategoryTransport], 100)
	transportPenalty := math.Min(30, float64(nearTransport)*10)
	components["transport_penalty"] = -transportPenalty
	score -= transportPenalty

	nearFood := countWithin(pois[models.CategoryFood], 50)
	foodPenalty := math.Min(20, float64(nearFood)*10)
	components["food_penalty"] = -foodPenalty
	score -= foodPenalty

	mallPenalty := 0.0
	for _, p := range pois[models.CategoryShops] {
		if (p.Subcategory == "mall" || p.Subcategory == "supermarket") && p.DistanceM <= 150 {
			mallPenalty = 15
			break
		}
	}
	components["mall_penalty"] = -mallPenalty
	score -= mallPenalty

	schoolPenalty := 0.0
	for _, p := range pois[models.CategoryEducation] {
		if (p.Subcategory == "school" || p.Subcategory == "kindergarten") && p.DistanceM <= 100 {
			schoolPenalty = 10
			break
		}
	}
	components["school_penalty"] = -schoolPenalty
	score -= schoolPenalty

	roads := pois[models.CategoryRoads]

	heavyPenalty := 0.0
	if nearest := nearestOfSubcategories(roads, "motorway", "trunk"); nearest != nil {
		if *nearest <= 300 {
			heavyPenalty = 40
		} else if *nearest <= 600 {
			heavyPenalty = 20
		}
	}
	components["heavy_traffic_penalty"] = -heavyPenalty
	score -= heavyPenalty

	primaryPenalty := 0.0
	if nearest := nearestOfSubcategories(roads, "primary"); nearest != nil {
		if *nearest <= 100 {
			primaryPenalty = 30
		} else if *nearest <= 250 {
			primaryPenalty = 15
		}
	}
	components["primary_road_penalty"] = -primaryPenalty
	score -= primaryPenalty

	railsPenalty := 0.0
	if nearest := nearestOfSubcategories(roads, "tram", "rail"); nearest != nil && *nearest <= 80 {
		railsPenalty = 15
	}
	components["rails_penalty"] = -railsPenalty
	score -= railsPenalty

	final := clamp(score, 0, 100)
	components["final"] = final
	return final, components
}

func (a *BaselineAnalyzer) analyzeTraffic(roads []*models.POI) TrafficInfo {
	if len(roads) == 0 {
		return TrafficInfo{Level: "Low", Description: "No major roads in the immediate vicinity."}
	}

	nearestHeavy := nearestOrDefault(roads, 9999, "motorway", "trunk")
	nearestPrimary := nearestOrDefault(roads, 9999, "primary")
	nearestRails := nearestOrDefault(roads, 9999, "tram", "rail")

	switch {
	case nearestHeavy < 300:
		return TrafficInfo{Level: "Extreme", Description: "Directly adjacent to a motorway or expressway."}
	case nearestPrimary < 100 || nearestHeavy < 800:
		return TrafficInfo{Level: "High", Description: "Close to a major traffic artery."}
	case nearestRails < 80 || nearestPrimary < 300:
		return TrafficInfo{Level: "Moderate", Description: "Audible city traffic or rail transit."}
	default:
		return TrafficInfo{Level: "Low", Description: "Away from the main sources of road noise."}
	}
}

func (a *BaselineAnalyzer) scoreCategory(category string, pois []*models.POI) (float64, *CategoryBaseline) {
	if len(pois) == 0 {
		return 0, &CategoryBaseline{Rating: "none", Names: []string{}}
	}

	expected := expectedCounts[category]
	if expected == 0 {
		expected = 3
	}

	countScore := math.Min(60, float64(len(pois))/expected*60)

	nearest := pois[0].DistanceM
	for _, p := range pois[1:] {
		if p.DistanceM < nearest {
			nearest = p.DistanceM
		}
	}

	var distanceScore float64
	var rating string
	switch {
	case nearest <= 200:
		distanceScore, rating = 40, "excellent"
	case nearest <= 350:
		distanceScore, rating = 30, "good"
	case nearest <= 500:
		distanceScore, rating = 20, "ok"
	default:
		distanceScore, rating = 10, "far"
	}

	names := make([]string, 0, 5)
	for _, p := range pois {
		if len(names) >= 5 {
			break
		}
		if !p.Nameless {
			names = append(names, p.Name)
		}
	}

	return countScore + distanceScore, &CategoryBaseline{
		Count:    len(pois),
		NearestM: &nearest,
		Names:    names,
		Rating:   rating,
	}
}

func (a *BaselineAnalyzer) generateSummary(totalScore float64, categoryScores map[string]float64) string {
	var intro string
	switch {
	case totalScore >= 80:
		intro = "Excellent location!"
	case totalScore >= 60:
		intro = "Good location."
	case totalScore >= 40:
		intro = "Average location."
	default:
		intro = "Weak location in terms of infrastructure."
	}

	var strong, weak []string
	for _, category := range models.ScoredCategories {
		score, ok := categoryScores[category]
		if !ok {
			continue
		}
		if score >= 70 && len(strong) < 3 {
			strong = append(strong, strings.ToLower(CategoryName(category)))
		} else if score <= 30 && len(weak) < 3 {
			weak = append(weak, strings.ToLower(CategoryName(category)))
		}
	}

	parts := []string{intro}
	if len(strong) > 0 {
		parts = append(parts, fmt.Sprintf("Strong points: %s.", strings.Join(strong, ", ")))
	}
	if len(weak) > 0 {
		parts = append(parts, fmt.Sprintf("Needs improvement: %s.", strings.Join(weak, ", ")))
	}
	return strings.Join(parts, " ")
}

func countWithin(pois []*models.POI, maxDistanceM float64) int {
	count := 0
	for _, p := range pois {
		if p.DistanceM <= maxDistanceM {
			count++
		}
	}
	return count
}

func nearestOfSubcategories(pois []*models.POI, subcats ...string) *float64 {
	var nearest *float64
	for _, p := range pois {
		for _, sc := range subcats {
			if p.Subcategory == sc {
				if nearest == nil || p.DistanceM < *nearest {
					d := p.DistanceM
					nearest = &d
				}
			}
		}
	}
	return nearest
}

func nearestOrDefault(pois []*models.POI, def float64, subcats ...string) float64 {
	if nearest := nearestOfSubcategories(pois, subcats...); nearest != nil {
		return *nearest
	}
	return def
}
