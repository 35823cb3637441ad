package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nestscore/nest-score-go/internal/models"
)

func baselinePOI(category, subcategory string, distance float64) *models.POI {
	return &models.POI{
		Name:        subcategory,
		Category:    category,
		Subcategory: subcategory,
		DistanceM:   distance,
		Source:      models.SourceOpenMap,
	}
}

func TestQuietScoreBaseOnly(t *testing.T) {
	a := NewBaselineAnalyzer()

	score, components := a.calculateQuietScore(map[string][]*models.POI{}, nil)

	assert.Equal(t, 60.0, score)
	assert.Equal(t, 60.0, components["base"])
	assert.Equal(t, 0.0, components["green_density_bonus"])
}

func TestQuietScoreGreenBonuses(t *testing.T) {
	a := NewBaselineAnalyzer()

	tests := []struct {
		name     string
		density  float64
		parkDist float64
		want     float64
	}{
		{"dense green with close park", 20, 250, 95},
		{"some green, medium park", 6, 450, 80},
		{"a little green, far park", 2, 900, 65},
		{"no green", 0, 900, 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := &models.NatureMetrics{
				GreenDensityProxy: tt.density,
				NearestDistances:  map[string]float64{"park": tt.parkDist},
			}
			score, _ := a.calculateQuietScore(map[string][]*models.POI{}, metrics)
			assert.Equal(t, tt.want, score)
		})
	}
}

func TestQuietScoreTransportAndFoodPenalties(t *testing.T) {
	a := NewBaselineAnalyzer()

	pois := map[string][]*models.POI{
		models.CategoryTransport: {
			baselinePOI(models.CategoryTransport, "bus_stop", 40),
			baselinePOI(models.CategoryTransport, "bus_stop", 80),
			baselinePOI(models.CategoryTransport, "tram_stop", 95),
			baselinePOI(models.CategoryTransport, "bus_stop", 99),
			baselinePOI(models.CategoryTransport, "bus_stop", 400),
		},
		models.CategoryFood: {
			baselinePOI(models.CategoryFood, "restaurant", 30),
			baselinePOI(models.CategoryFood, "cafe", 45),
			baselinePOI(models.CategoryFood, "restaurant", 48),
			baselinePOI(models.CategoryFood, "cafe", 200),
		},
	}

	score, components := a.calculateQuietScore(pois, nil)

	// 4 stops within 100m caps at 30, 3 food spots within 50m caps at 20.
	assert.Equal(t, -30.0, components["transport_penalty"])
	assert.Equal(t, -20.0, components["food_penalty"])
	assert.Equal(t, 10.0, score)
}

func TestQuietScoreRoadPenalties(t *testing.T) {
	a := NewBaselineAnalyzer()

	tests := []struct {
		name  string
		roads []*models.POI
		want  float64
	}{
		{
			"motorway next door",
			[]*models.POI{baselinePOI(models.CategoryRoads, "motorway", 150)},
			20,
		},
		{
			"motorway further out",
			[]*models.POI{baselinePOI(models.CategoryRoads, "motorway", 500)},
			40,
		},
		{
			"primary road close",
			[]*models.POI{baselinePOI(models.CategoryRoads, "primary", 90)},
			30,
		},
		{
			"rails under the window",
			[]*models.POI{baselinePOI(models.CategoryRoads, "tram", 50)},
			45,
		},
		{
			"everything far away",
			[]*models.POI{
				baselinePOI(models.CategoryRoads, "motorway", 2000),
				baselinePOI(models.CategoryRoads, "primary", 800),
			},
			60,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, _ := a.calculateQuietScore(map[string][]*models.POI{
				models.CategoryRoads: tt.roads,
			}, nil)
			assert.Equal(t, tt.want, score)
		})
	}
}

func TestQuietScoreClampedAtZero(t *testing.T) {
	a := NewBaselineAnalyzer()

	pois := map[string][]*models.POI{
		models.CategoryTransport: {
			baselinePOI(models.CategoryTransport, "bus_stop", 20),
			baselinePOI(models.CategoryTransport, "bus_stop", 30),
			baselinePOI(models.CategoryTransport, "bus_stop", 40),
		},
		models.CategoryFood: {
			baselinePOI(models.CategoryFood, "restaurant", 20),
			baselinePOI(models.CategoryFood, "cafe", 30),
		},
		models.CategoryShops: {
			baselinePOI(models.CategoryShops, "supermarket", 100),
		},
		models.CategoryRoads: {
			baselinePOI(models.CategoryRoads, "motorway", 200),
			baselinePOI(models.CategoryRoads, "primary", 80),
		},
	}

	score, components := a.calculateQuietScore(pois, nil)

	assert.Equal(t, 0.0, score)
	assert.Equal(t, 0.0, components["final"])
}

func TestTrafficLevels(t *testing.T) {
	a := NewBaselineAnalyzer()

	tests := []struct {
		name  string
		roads []*models.POI
		want  string
	}{
		{"no roads", nil, "Low"},
		{"motorway adjacent", []*models.POI{baselinePOI(models.CategoryRoads, "motorway", 200)}, "Extreme"},
		{"motorway in earshot", []*models.POI{baselinePOI(models.CategoryRoads, "trunk", 700)}, "High"},
		{"primary close", []*models.POI{baselinePOI(models.CategoryRoads, "primary", 80)}, "High"},
		{"primary medium", []*models.POI{baselinePOI(models.CategoryRoads, "primary", 250)}, "Moderate"},
		{"rails close", []*models.POI{baselinePOI(models.CategoryRoads, "rail", 60)}, "Moderate"},
		{"residential only", []*models.POI{baselinePOI(models.CategoryRoads, "secondary", 400)}, "Low"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := a.analyzeTraffic(tt.roads)
			assert.Equal(t, tt.want, info.Level)
		})
	}
}

func TestBaselineCategoryScore(t *testing.T) {
	a := NewBaselineAnalyzer()

	tests := []struct {
		name     string
		category string
		pois     []*models.POI
		want     float64
		rating   string
	}{
		{
			"full count excellent distance",
			models.CategoryShops,
			[]*models.POI{
				baselinePOI(models.CategoryShops, "supermarket", 150),
				baselinePOI(models.CategoryShops, "convenience", 300),
				baselinePOI(models.CategoryShops, "bakery", 400),
				baselinePOI(models.CategoryShops, "supermarket", 500),
				baselinePOI(models.CategoryShops, "mall", 700),
			},
			100,
			"excellent",
		},
		{
			"single far POI",
			models.CategoryHealth,
			[]*models.POI{baselinePOI(models.CategoryHealth, "pharmacy", 600)},
			30, // 1/3*60 + 10
			"far",
		},
		{
			"count capped at 60",
			models.CategoryEducation,
			[]*models.POI{
				baselinePOI(models.CategoryEducation, "school", 250),
				baselinePOI(models.CategoryEducation, "school", 300),
				baselinePOI(models.CategoryEducation, "kindergarten", 320),
				baselinePOI(models.CategoryEducation, "university", 340),
			},
			90, // min(60, 4/2*60) + 30
			"good",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, detail := a.scoreCategory(tt.category, tt.pois)
			assert.Equal(t, tt.want, score)
			assert.Equal(t, tt.rating, detail.Rating)
			assert.Equal(t, len(tt.pois), detail.Count)
		})
	}
}

func TestBaselineCategoryScoreEmpty(t *testing.T) {
	a := NewBaselineAnalyzer()

	score, detail := a.scoreCategory(models.CategoryFinance, nil)

	assert.Equal(t, 0.0, score)
	assert.Equal(t, "none", detail.Rating)
	assert.Nil(t, detail.NearestM)
}

func TestAnalyzeProducesWeightedTotal(t *testing.T) {
	a := NewBaselineAnalyzer()

	pois := map[string][]*models.POI{
		models.CategoryShops: {
			baselinePOI(models.CategoryShops, "supermarket", 150),
			baselinePOI(models.CategoryShops, "bakery", 250),
		},
		models.CategoryTransport: {
			baselinePOI(models.CategoryTransport, "bus_stop", 180),
		},
	}

	result := a.Analyze(pois, nil)

	require.NotNil(t, result)
	assert.Greater(t, result.TotalScore, 0.0)
	assert.LessOrEqual(t, result.TotalScore, 100.0)
	assert.Equal(t, 60.0, result.QuietScore)
	assert.Contains(t, result.CategoryScores, models.CategoryShops)
	assert.Equal(t, 0.0, result.CategoryScores[models.CategoryFinance])
	assert.NotEmpty(t, result.Summary)
	assert.Equal(t, "Low", result.Traffic.Level)

	// shops: 2/5*60 + 40 = 64, transport: 1/3*60 + 40 = 60
	expected := 64*0.18 + 60*0.22
	assert.InDelta(t, expected, result.TotalScore, 0.01)
}
