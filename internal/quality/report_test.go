package quality

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nestscore/nest-score-go/internal/geo"
	"github.com/nestscore/nest-score-go/internal/models"
)

func qualityPOI(category, subcategory string) *models.POI {
	return &models.POI{
		Name:        "place",
		Category:    category,
		Subcategory: subcategory,
		DistanceM:   100,
		Source:      models.SourceOpenMap,
	}
}

func okStatus() *geo.ProviderStatus {
	status := &geo.ProviderStatus{
		CategoryErrors:    make(map[string]error),
		QueriedCategories: make(map[string]bool),
	}
	for _, cat := range models.FetchCategories {
		status.QueriedCategories[cat] = true
	}
	return status
}

func TestDetermineStatus(t *testing.T) {
	tests := []struct {
		name     string
		kept     int
		hadError bool
		want     string
	}{
		{"three or more is ok", 3, false, StatusOK},
		{"one is partial", 1, false, StatusPartial},
		{"two is partial", 2, false, StatusPartial},
		{"zero without error is empty", 0, false, StatusEmpty},
		{"zero with error is error", 0, true, StatusError},
		{"data despite error counts as data", 3, true, StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, determineStatus(tt.kept, tt.hadError))
		})
	}
}

func TestReportFullCoverage(t *testing.T) {
	reporter := NewReporter(zap.NewNop())

	pois := map[string][]*models.POI{
		models.CategoryShops: {
			qualityPOI(models.CategoryShops, "supermarket"),
			qualityPOI(models.CategoryShops, "supermarket"),
			qualityPOI(models.CategoryShops, "bakery"),
		},
		models.CategoryTransport: {
			qualityPOI(models.CategoryTransport, "bus_stop"),
		},
	}
	radii := map[string]int{
		models.CategoryShops:     700,
		models.CategoryTransport: 900,
	}

	report := reporter.Build(pois, radii, okStatus(), false, nil)

	require.NotNil(t, report)
	assert.Equal(t, "ok", report.OpenMapStatus)
	assert.Equal(t, StatusOK, report.Coverage[models.CategoryShops].Status)
	assert.Equal(t, StatusPartial, report.Coverage[models.CategoryTransport].Status)
	assert.Equal(t, 100, report.ConfidencePct)
	assert.False(t, report.HasDataQualityIssues())

	dist := report.Coverage[models.CategoryShops].SubcategoryDistribution
	assert.Equal(t, 2, dist["supermarket"])
	assert.Equal(t, 1, dist["bakery"])
}

func TestEmptyCategoryIsSignalNotError(t *testing.T) {
	reporter := NewReporter(zap.NewNop())

	radii := map[string]int{models.CategoryFinance: 800}
	report := reporter.Build(map[string][]*models.POI{}, radii, okStatus(), false, nil)

	assert.Equal(t, StatusEmpty, report.Coverage[models.CategoryFinance].Status)
	assert.Contains(t, report.EmptyCategories, models.CategoryFinance)
	assert.Empty(t, report.ErrorCategories)
	// Without profile weights an empty category never touches confidence.
	assert.Equal(t, 100, report.ConfidencePct)
	assert.False(t, report.HasDataQualityIssues())
}

func TestEmptySignificantCategoryReducesSignalConfidence(t *testing.T) {
	reporter := NewReporter(zap.NewNop())

	radii := map[string]int{models.CategoryEducation: 1200}
	weights := map[string]float64{models.CategoryEducation: 0.25}

	report := reporter.Build(map[string][]*models.POI{}, radii, okStatus(), false, weights)

	assert.Equal(t, 85, report.ConfidenceComponents.Signal)
	assert.Equal(t, 95, report.ConfidencePct) // 0.4*100 + 0.3*100 + 0.3*85
	require.NotEmpty(t, report.Reasons)
	assert.Contains(t, report.Reasons[0], "education")
}

func TestEmptyInsignificantCategoryDoesNotReduceConfidence(t *testing.T) {
	reporter := NewReporter(zap.NewNop())

	radii := map[string]int{models.CategoryFinance: 800}
	weights := map[string]float64{models.CategoryFinance: 0.05}

	report := reporter.Build(map[string][]*models.POI{}, radii, okStatus(), false, weights)

	assert.Equal(t, 100, report.ConfidencePct)
}

func TestCategoryErrorReducesConfidenceMoreThanOK(t *testing.T) {
	reporter := NewReporter(zap.NewNop())

	radii := map[string]int{models.CategoryHealth: 1500}

	okReport := reporter.Build(map[string][]*models.POI{
		models.CategoryHealth: {
			qualityPOI(models.CategoryHealth, "pharmacy"),
			qualityPOI(models.CategoryHealth, "clinic"),
			qualityPOI(models.CategoryHealth, "doctors"),
		},
	}, radii, okStatus(), false, nil)

	errStatus := okStatus()
	errStatus.CategoryErrors[models.CategoryHealth] = errors.New("nearby search failed: status 500")
	errReport := reporter.Build(map[string][]*models.POI{}, radii, errStatus, false, nil)

	assert.Equal(t, StatusError, errReport.Coverage[models.CategoryHealth].Status)
	assert.Contains(t, errReport.ErrorCategories, models.CategoryHealth)
	assert.Less(t, errReport.ConfidencePct, okReport.ConfidencePct)
	assert.True(t, errReport.HasDataQualityIssues())
}

func TestOpenMapTimeoutPenalty(t *testing.T) {
	reporter := NewReporter(zap.NewNop())

	status := okStatus()
	status.OpenMapErr = errors.New("overpass query failed: timeout")
	status.OpenMapTimeout = true

	report := reporter.Build(map[string][]*models.POI{
		models.CategoryShops: {
			qualityPOI(models.CategoryShops, "supermarket"),
			qualityPOI(models.CategoryShops, "bakery"),
			qualityPOI(models.CategoryShops, "kiosk"),
		},
	}, map[string]int{models.CategoryShops: 700}, status, false, nil)

	assert.Equal(t, "timeout", report.OpenMapStatus)
	assert.Equal(t, 85, report.ConfidenceComponents.Provider)
	assert.Equal(t, 94, report.ConfidencePct) // 0.4*85 + 0.3*100 + 0.3*100
}

func TestOpenMapErrorMarksQueriedCategories(t *testing.T) {
	reporter := NewReporter(zap.NewNop())

	status := okStatus()
	status.OpenMapErr = errors.New("all endpoints failed")

	radii := map[string]int{
		models.CategoryShops:     700,
		models.CategoryTransport: 900,
	}
	report := reporter.Build(map[string][]*models.POI{}, radii, status, false, nil)

	assert.Equal(t, "error", report.OpenMapStatus)
	assert.Equal(t, StatusError, report.Coverage[models.CategoryShops].Status)
	assert.True(t, report.HasDataQualityIssues())
	// Provider loses 30, data loses 20 per important errored category
	// (shops and transport here).
	assert.Equal(t, 70, report.ConfidenceComponents.Provider)
	assert.Equal(t, 60, report.ConfidenceComponents.Data)
}

func TestNoQueryStatusForUnqueriedCategories(t *testing.T) {
	reporter := NewReporter(zap.NewNop())

	status := okStatus()
	status.QueriedCategories = map[string]bool{models.CategoryShops: true}

	radii := map[string]int{
		models.CategoryShops:     700,
		models.CategoryCarAccess: 1000,
	}
	report := reporter.Build(map[string][]*models.POI{}, radii, status, false, nil)

	assert.Equal(t, StatusNoQuery, report.Coverage[models.CategoryCarAccess].Status)
	assert.NotContains(t, report.EmptyCategories, models.CategoryCarAccess)
}

func TestFallbackSourceMarkedMixed(t *testing.T) {
	reporter := NewReporter(zap.NewNop())

	status := okStatus()
	status.FallbackStarted = []string{models.CategoryShops, models.CategoryHealth}
	status.FallbackContributed = []string{models.CategoryShops}

	pois := map[string][]*models.POI{
		models.CategoryShops:  {qualityPOI(models.CategoryShops, "supermarket")},
		models.CategoryHealth: {qualityPOI(models.CategoryHealth, "pharmacy")},
	}
	radii := map[string]int{
		models.CategoryShops:  700,
		models.CategoryHealth: 1500,
	}

	report := reporter.Build(pois, radii, status, false, nil)

	assert.Equal(t, "mixed", report.Coverage[models.CategoryShops].Source)
	assert.Equal(t, "open_map", report.Coverage[models.CategoryHealth].Source)
	assert.Equal(t, []string{models.CategoryShops, models.CategoryHealth}, report.FallbackStarted)
}

func TestReasonsCappedAtFive(t *testing.T) {
	reporter := NewReporter(zap.NewNop())

	status := okStatus()
	status.OpenMapErr = errors.New("all endpoints failed")

	radii := make(map[string]int)
	weights := make(map[string]float64)
	for _, cat := range models.FetchCategories {
		radii[cat] = 1000
		weights[cat] = 0.12
	}

	report := reporter.Build(map[string][]*models.POI{}, radii, status, false, weights)

	assert.LessOrEqual(t, len(report.Reasons), 5)
	assert.GreaterOrEqual(t, report.ConfidencePct, 0)
}
