package scoring

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nestscore/nest-score-go/internal/models"
)

func scoringPOI(category string, distance float64, opts ...func(*models.POI)) *models.POI {
	p := &models.POI{
		Name:        "place",
		Category:    category,
		Subcategory: "generic",
		DistanceM:   distance,
		Source:      models.SourceOpenMap,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func withRating(rating float64, reviews int) func(*models.POI) {
	return func(p *models.POI) {
		p.Rating = &rating
		p.Reviews = &reviews
	}
}

func withSubcat(sc string) func(*models.POI) {
	return func(p *models.POI) { p.Subcategory = sc }
}

func testProfile(weights map[string]float64, caps ...CriticalCap) *ProfileConfig {
	radii := make(map[string]int, len(weights))
	for cat := range weights {
		radii[cat] = 600
	}
	return &ProfileConfig{
		Key:          "test",
		Name:         "Test",
		Weights:      weights,
		RadiusM:      radii,
		Thresholds:   VerdictThresholds{Recommended: 65, Conditional: 45},
		CriticalCaps: caps,
		Version:      1,
	}
}

func TestDistanceScoreZeroAtRadius(t *testing.T) {
	for _, mode := range []DecayMode{DecayDaily, DecayDestination, DecayBackground} {
		assert.Equal(t, 0.0, DistanceScore(600, 600, mode), "mode %s", mode)
		assert.Equal(t, 0.0, DistanceScore(700, 600, mode), "mode %s", mode)
	}
}

func TestDistanceScoreNonIncreasing(t *testing.T) {
	for _, mode := range []DecayMode{DecayDaily, DecayDestination, DecayBackground} {
		prev := 101.0
		for d := 0.0; d <= 650; d += 10 {
			score := DistanceScore(d, 600, mode)
			require.LessOrEqual(t, score, prev, "mode %s at %.0fm", mode, d)
			prev = score
		}
	}
}

func TestDistanceScoreDailyTiers(t *testing.T) {
	tests := []struct {
		distance float64
		want     float64
	}{
		{100, 100}, // ratio 0.167
		{150, 100}, // 0.25 boundary
		{250, 70},
		{400, 40},
		{500, 15},
		{599, 15},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DistanceScore(tt.distance, 600, DecayDaily), "at %.0fm", tt.distance)
	}
}

func TestQualityMultiplier(t *testing.T) {
	tests := []struct {
		name string
		poi  *models.POI
		want float64
	}{
		{"no rating stays neutral", scoringPOI(models.CategoryShops, 100), 1.0},
		{"top rating with many reviews", scoringPOI(models.CategoryShops, 100, withRating(5.0, 200)), 1.10},
		{"top rating with half confidence", scoringPOI(models.CategoryShops, 100, withRating(5.0, 100)), 1.05},
		{"poor rating with full confidence", scoringPOI(models.CategoryShops, 100, withRating(2.0, 200)), 0.98},
		{"rating without reviews barely moves", scoringPOI(models.CategoryShops, 100, func(p *models.POI) {
			r := 5.0
			p.Rating = &r
		}), 1.03},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, qualityMultiplier(tt.poi), 0.0001)
		})
	}
}

func TestQualityMultiplierLowReviewsNeverBoosts(t *testing.T) {
	poi := scoringPOI(models.CategoryShops, 100, withRating(4.9, 12))
	poi.LowReviews = true

	assert.LessOrEqual(t, qualityMultiplier(poi), 1.0)

	// The penalty side still applies on thin data, just scaled down.
	bad := scoringPOI(models.CategoryShops, 100, withRating(1.5, 12))
	bad.LowReviews = true
	assert.Less(t, qualityMultiplier(bad), 1.0)
}

func TestSaturatingScore(t *testing.T) {
	assert.Equal(t, 0.0, saturatingScore(0, 0.006))
	assert.Equal(t, 0.0, saturatingScore(-5, 0.006))
	assert.InDelta(t, 45.12, saturatingScore(100, 0.006), 0.01)
	assert.Less(t, saturatingScore(5000, 0.006), 100.01)
	assert.Greater(t, saturatingScore(5000, 0.006), 99.0)
}

func TestSingleCloseShopScoresInHighTier(t *testing.T) {
	profile := testProfile(map[string]float64{models.CategoryShops: 1.0})
	engine := NewEngine(profile, zap.NewNop())

	pois := map[string][]*models.POI{
		models.CategoryShops: {scoringPOI(models.CategoryShops, 100)},
	}

	result := engine.Calculate(pois, 60, nil, nil)

	shop := result.CategoryResults[models.CategoryShops]
	require.NotNil(t, shop)
	// distance score 100, utility 100, saturation with k=0.006 gives ~45.1,
	// distance factor 1.0 for the nearest tier.
	assert.InDelta(t, 45.12, shop.Score, 0.1)
	assert.Equal(t, 0.0, shop.CoverageBonus)
	assert.Len(t, shop.Contributions, 1)
}

func TestEmptyCategoryScoresExactlyZero(t *testing.T) {
	profile := testProfile(map[string]float64{
		models.CategoryShops:  0.5,
		models.CategoryHealth: 0.5,
	})
	engine := NewEngine(profile, zap.NewNop())

	pois := map[string][]*models.POI{
		models.CategoryShops: {scoringPOI(models.CategoryShops, 100)},
	}

	result := engine.Calculate(pois, 60, nil, nil)

	health := result.CategoryResults[models.CategoryHealth]
	require.NotNil(t, health)
	assert.Equal(t, 0.0, health.Score)
	assert.Equal(t, 0.0, health.UtilitySum)
	assert.Equal(t, 0, health.POICount)
	assert.Empty(t, health.Contributions)
}

func TestCoverageBonusForDailyCategories(t *testing.T) {
	profile := testProfile(map[string]float64{models.CategoryShops: 1.0})
	engine := NewEngine(profile, zap.NewNop())

	makeShops := func(n int) []*models.POI {
		shops := make([]*models.POI, n)
		for i := range shops {
			shops[i] = scoringPOI(models.CategoryShops, 100+float64(i)*10)
		}
		return shops
	}

	three := engine.Calculate(map[string][]*models.POI{models.CategoryShops: makeShops(3)}, 60, nil, nil)
	six := engine.Calculate(map[string][]*models.POI{models.CategoryShops: makeShops(6)}, 60, nil, nil)

	assert.Equal(t, 5.0, three.CategoryResults[models.CategoryShops].CoverageBonus)
	assert.Equal(t, 10.0, six.CategoryResults[models.CategoryShops].CoverageBonus)
}

func TestScoringCapsPOIsPerCategory(t *testing.T) {
	profile := testProfile(map[string]float64{models.CategoryFood: 1.0})
	engine := NewEngine(profile, zap.NewNop())

	var pois []*models.POI
	for i := 0; i < 25; i++ {
		pois = append(pois, scoringPOI(models.CategoryFood, 100+float64(i)))
	}

	result := engine.Calculate(map[string][]*models.POI{models.CategoryFood: pois}, 60, nil, nil)

	food := result.CategoryResults[models.CategoryFood]
	assert.Len(t, food.Contributions, 10)
	assert.Equal(t, 25, food.POICount)
}

func TestNamelessPOIsContributeLess(t *testing.T) {
	profile := testProfile(map[string]float64{models.CategoryShops: 1.0})
	engine := NewEngine(profile, zap.NewNop())

	named := engine.Calculate(map[string][]*models.POI{
		models.CategoryShops: {scoringPOI(models.CategoryShops, 100)},
	}, 60, nil, nil)

	nameless := engine.Calculate(map[string][]*models.POI{
		models.CategoryShops: {scoringPOI(models.CategoryShops, 100, func(p *models.POI) { p.Nameless = true })},
	}, 60, nil, nil)

	assert.Greater(t,
		named.CategoryResults[models.CategoryShops].Score,
		nameless.CategoryResults[models.CategoryShops].Score)
}

func TestCriticalCapLimitsTotal(t *testing.T) {
	profile := testProfile(
		map[string]float64{
			models.CategoryShops:     0.9,
			models.CategoryEducation: 0.1,
		},
		CriticalCap{Category: models.CategoryEducation, Threshold: 35, Cap: 70},
	)
	engine := NewEngine(profile, zap.NewNop())

	var shops []*models.POI
	for i := 0; i < 8; i++ {
		shops = append(shops, scoringPOI(models.CategoryShops, 80+float64(i)*10))
	}
	pois := map[string][]*models.POI{models.CategoryShops: shops}

	result := engine.Calculate(pois, 90, nil, nil)

	require.NotEmpty(t, result.CriticalCapsApplied)
	assert.LessOrEqual(t, result.TotalScore, 70.0)
	assert.Contains(t, result.CriticalCapsApplied[0], "Education")
}

func TestBaselineBlendCannotBypassCap(t *testing.T) {
	profile := testProfile(
		map[string]float64{
			models.CategoryShops:     0.9,
			models.CategoryEducation: 0.1,
		},
		CriticalCap{Category: models.CategoryEducation, Threshold: 35, Cap: 70},
	)
	engine := NewEngine(profile, zap.NewNop())

	var shops []*models.POI
	for i := 0; i < 8; i++ {
		shops = append(shops, scoringPOI(models.CategoryShops, 80+float64(i)*10))
	}
	pois := map[string][]*models.POI{models.CategoryShops: shops}

	// A generous baseline pulls the blended score up, the cap must still hold.
	baseline := 95.0
	result := engine.Calculate(pois, 90, nil, &baseline)

	assert.LessOrEqual(t, result.TotalScore, 70.0)
	assert.NotEmpty(t, result.CriticalCapsApplied)
}

func TestBaselineBlendBoundsDelta(t *testing.T) {
	profile := testProfile(map[string]float64{models.CategoryShops: 1.0})
	engine := NewEngine(profile, zap.NewNop())

	pois := map[string][]*models.POI{
		models.CategoryShops: {scoringPOI(models.CategoryShops, 100)},
	}

	unblended := engine.Calculate(pois, 60, nil, nil)

	baseline := 95.0
	blended := engine.Calculate(pois, 60, nil, &baseline)

	// Raw profile score is ~45, far below the baseline, so the blend lands
	// exactly at baseline minus the maximum adjustment.
	assert.InDelta(t, baseline-maxBaseAdjustment, blended.TotalScore, 0.01)
	assert.Less(t, unblended.TotalScore, blended.TotalScore)
}

func TestNoisePenaltyFromQuietScore(t *testing.T) {
	profile := testProfile(map[string]float64{
		models.CategoryShops: 1.0,
		models.CategoryNoise: -0.10,
	})
	engine := NewEngine(profile, zap.NewNop())

	pois := map[string][]*models.POI{
		models.CategoryShops: {scoringPOI(models.CategoryShops, 100)},
	}

	quiet := engine.Calculate(pois, 100, nil, nil)
	noisy := engine.Calculate(pois, 20, nil, nil)

	assert.Equal(t, 0.0, quiet.NoisePenalty)
	assert.InDelta(t, 8.0, noisy.NoisePenalty, 0.0001)
	assert.Greater(t, quiet.TotalScore, noisy.TotalScore)
}

func TestRoadsPenaltyTiers(t *testing.T) {
	// Noise weight 0.05 gives scale 0.5 + 1.0 = 1.5.
	profile := testProfile(map[string]float64{
		models.CategoryShops: 1.0,
		models.CategoryNoise: -0.05,
	})
	engine := NewEngine(profile, zap.NewNop())

	tests := []struct {
		name  string
		roads []*models.POI
		want  float64
	}{
		{"no roads", nil, 0},
		{
			"motorway close",
			[]*models.POI{scoringPOI(models.CategoryRoads, 200, withSubcat("motorway"))},
			30, // 20 * 1.5
		},
		{
			"motorway mid range",
			[]*models.POI{scoringPOI(models.CategoryRoads, 500, withSubcat("motorway"))},
			18, // 12 * 1.5
		},
		{
			"primary close",
			[]*models.POI{scoringPOI(models.CategoryRoads, 90, withSubcat("primary"))},
			18, // 12 * 1.5
		},
		{
			"secondary plus rails",
			[]*models.POI{
				scoringPOI(models.CategoryRoads, 120, withSubcat("secondary")),
				scoringPOI(models.CategoryRoads, 70, withSubcat("tram")),
			},
			21, // (6 + 8) * 1.5
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			penalty, _ := engine.calculateRoadsPenalty(tt.roads)
			assert.InDelta(t, tt.want, penalty, 0.0001)
		})
	}
}

func TestRoadsPenaltyDensitySurcharge(t *testing.T) {
	profile := testProfile(map[string]float64{
		models.CategoryShops: 1.0,
		models.CategoryNoise: -0.05,
	})
	engine := NewEngine(profile, zap.NewNop())

	var roads []*models.POI
	for i := 0; i < 10; i++ {
		roads = append(roads, scoringPOI(models.CategoryRoads, 2000+float64(i), withSubcat("secondary")))
	}

	penalty, debug := engine.calculateRoadsPenalty(roads)

	assert.Equal(t, 10, debug.SignificantCount)
	// All distance tiers miss, only the density surcharge of 5 remains.
	assert.InDelta(t, 7.5, penalty, 0.0001)
}

func TestRoadsPenaltyCappedAtThirty(t *testing.T) {
	profile := testProfile(map[string]float64{
		models.CategoryShops: 1.0,
		models.CategoryNoise: -0.12,
	})
	engine := NewEngine(profile, zap.NewNop())

	roads := []*models.POI{
		scoringPOI(models.CategoryRoads, 100, withSubcat("motorway")),
		scoringPOI(models.CategoryRoads, 50, withSubcat("primary")),
		scoringPOI(models.CategoryRoads, 60, withSubcat("secondary")),
		scoringPOI(models.CategoryRoads, 40, withSubcat("rail")),
	}

	penalty, _ := engine.calculateRoadsPenalty(roads)

	assert.Equal(t, 30.0, penalty)
}

func TestNatureBackgroundFormula(t *testing.T) {
	profile := testProfile(map[string]float64{models.CategoryNatureBackground: 1.0})
	profile.RadiusM[models.CategoryNatureBackground] = 450
	engine := NewEngine(profile, zap.NewNop())

	water := 150.0
	metrics := &models.NatureMetrics{
		GreenDensityProxy: 16,
		NearestDistances:  map[string]float64{"park": 100},
		NearestWaterM:     &water,
	}

	result := engine.Calculate(nil, 60, metrics, nil)

	nature := result.CategoryResults[models.CategoryNatureBackground]
	require.NotNil(t, nature)
	// density tier 50, nearest green 100/450 ratio on the background curve
	// gives 60 * 0.3 = 18, water within 200m adds 20.
	assert.InDelta(t, 88.0, nature.Score, 0.01)
}

func TestNatureBackgroundWaterTiers(t *testing.T) {
	profile := testProfile(map[string]float64{models.CategoryNatureBackground: 1.0})
	engine := NewEngine(profile, zap.NewNop())

	tests := []struct {
		water float64
		want  float64
	}{
		{150, 20},
		{350, 15},
		{550, 10},
		{900, 5},
		{1200, 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("water at %.0fm", tt.water), func(t *testing.T) {
			w := tt.water
			metrics := &models.NatureMetrics{NearestWaterM: &w}
			result := engine.Calculate(nil, 60, metrics, nil)
			assert.Equal(t, tt.want, result.CategoryResults[models.CategoryNatureBackground].CoverageBonus)
		})
	}
}

func TestQuietHighlightGatedByRoads(t *testing.T) {
	profile := testProfile(map[string]float64{
		models.CategoryShops: 1.0,
		models.CategoryNoise: -0.05,
	})
	engine := NewEngine(profile, zap.NewNop())

	pois := map[string][]*models.POI{
		models.CategoryShops: {scoringPOI(models.CategoryShops, 100)},
		models.CategoryRoads: {scoringPOI(models.CategoryRoads, 200, withSubcat("primary"))},
	}

	withRoads := engine.Calculate(pois, 85, nil, nil)
	withoutRoads := engine.Calculate(map[string][]*models.POI{
		models.CategoryShops: pois[models.CategoryShops],
	}, 85, nil, nil)

	hasQuietClaim := func(strengths []string) bool {
		for _, s := range strengths {
			if strings.Contains(s, "Quiet neighborhood") {
				return true
			}
		}
		return false
	}

	assert.False(t, hasQuietClaim(withRoads.Strengths))
	assert.True(t, hasQuietClaim(withoutRoads.Strengths))
}

func TestWarningsIncludeCapMessages(t *testing.T) {
	profile := testProfile(
		map[string]float64{
			models.CategoryShops:     0.9,
			models.CategoryEducation: 0.1,
		},
		CriticalCap{Category: models.CategoryEducation, Threshold: 35, Cap: 70},
	)
	engine := NewEngine(profile, zap.NewNop())

	var shops []*models.POI
	for i := 0; i < 8; i++ {
		shops = append(shops, scoringPOI(models.CategoryShops, 80+float64(i)*10))
	}

	result := engine.Calculate(map[string][]*models.POI{models.CategoryShops: shops}, 90, nil, nil)

	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "LIMIT")
}

func TestNoisyAreaWarning(t *testing.T) {
	profile := testProfile(map[string]float64{
		models.CategoryShops: 1.0,
		models.CategoryNoise: -0.10,
	})
	engine := NewEngine(profile, zap.NewNop())

	pois := map[string][]*models.POI{
		models.CategoryShops: {scoringPOI(models.CategoryShops, 100)},
	}

	noisy := engine.Calculate(pois, 30, nil, nil)
	quiet := engine.Calculate(pois, 80, nil, nil)

	assert.NotEmpty(t, noisy.Warnings)
	assert.Empty(t, quiet.Warnings)
}

func TestTotalScoreStaysInRange(t *testing.T) {
	engine := NewEngineForKey("family", nil, zap.NewNop())

	empty := engine.Calculate(nil, 0, nil, nil)
	assert.GreaterOrEqual(t, empty.TotalScore, 0.0)

	rich := map[string][]*models.POI{}
	for _, cat := range models.FetchCategories {
		for i := 0; i < 8; i++ {
			rich[cat] = append(rich[cat], scoringPOI(cat, 60+float64(i)*15, withRating(4.8, 300)))
		}
	}
	full := engine.Calculate(rich, 100, nil, nil)
	assert.LessOrEqual(t, full.TotalScore, 100.0)
}
