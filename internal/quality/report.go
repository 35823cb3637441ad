// Package quality classifies POI coverage per category and derives a
// confidence figure for an analysis. The key semantic split: "empty" means
// the provider worked and the area genuinely has nothing there (a valid
// signal), while "error" means the provider failed and the data is simply
// missing. Only errors erode confidence on their own.
package quality

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/nestscore/nest-score-go/internal/geo"
	"github.com/nestscore/nest-score-go/internal/models"
)

const (
	StatusOK      = "ok"
	StatusPartial = "partial"
	StatusEmpty   = "empty"
	StatusError   = "error"
	StatusNoQuery = "no_query"
)

const (
	timeoutProviderPenalty = 15
	errorProviderPenalty   = 30
	categoryErrorPenalty   = 20
	emptySignalPenalty     = 15
	sparseSignalPenalty    = 5
	significantWeight      = 0.10
	maxReasons             = 5
)

// importantCategories always count toward data confidence regardless of
// the active profile's weights.
var importantCategories = []string{
	models.CategoryShops,
	models.CategoryTransport,
	models.CategoryEducation,
	models.CategoryHealth,
	models.CategoryNaturePlace,
}

// CategoryCoverage is the coverage record for a single category.
type CategoryCoverage struct {
	Source                  string         `json:"source"`
	Status                  string         `json:"status"`
	KeptCount               int            `json:"kept_count"`
	RadiusM                 int            `json:"radius_m"`
	SubcategoryDistribution map[string]int `json:"subcategory_distribution"`
	ProviderErrors          []string       `json:"provider_errors,omitempty"`
	HadProviderError        bool           `json:"had_provider_error"`
}

// ConfidenceComponents is the decomposed confidence breakdown.
type ConfidenceComponents struct {
	Provider int `json:"provider_confidence"`
	Data     int `json:"data_confidence"`
	Signal   int `json:"signal_confidence"`
}

// Report summarizes data quality for one analysis. It never feeds back
// into the score, it exists for transparency.
type Report struct {
	ConfidencePct        int                          `json:"confidence_pct"`
	Reasons              []string                     `json:"reasons"`
	OpenMapStatus        string                       `json:"open_map_status"`
	FallbackStarted      []string                     `json:"fallback_started"`
	FallbackContributed  []string                     `json:"fallback_contributed"`
	Coverage             map[string]*CategoryCoverage `json:"coverage"`
	CacheUsed            bool                         `json:"cache_used"`
	ConfidenceComponents ConfidenceComponents         `json:"confidence_components"`
	EmptyCategories      []string                     `json:"empty_categories"`
	ErrorCategories      []string                     `json:"error_categories"`
}

// HasDataQualityIssues reports whether actual data problems exist, as
// opposed to genuinely empty areas.
func (r *Report) HasDataQualityIssues() bool {
	return len(r.ErrorCategories) > 0 || r.OpenMapStatus == "error"
}

// Reporter builds data quality reports.
type Reporter struct {
	logger *zap.Logger
}

// NewReporter returns a reporter logging through the given logger.
func NewReporter(logger *zap.Logger) *Reporter {
	return &Reporter{logger: logger}
}

// Build classifies every category known to either the POI map or the
// profile radii, and derives the confidence breakdown. profileWeights may
// be nil when no profile context applies.
func (r *Reporter) Build(
	poisByCategory map[string][]*models.POI,
	radii map[string]int,
	status *geo.ProviderStatus,
	cacheUsed bool,
	profileWeights map[string]float64,
) *Report {
	openMapStatus := "ok"
	if status != nil {
		if status.OpenMapTimeout {
			openMapStatus = "timeout"
		} else if status.OpenMapErr != nil {
			openMapStatus = "error"
		}
	}

	categories := make(map[string]bool)
	for cat := range poisByCategory {
		categories[cat] = true
	}
	for cat := range radii {
		categories[cat] = true
	}

	coverage := make(map[string]*CategoryCoverage, len(categories))
	var emptyCategories, errorCategories []string

	for cat := range categories {
		pois := poisByCategory[cat]

		var providerErrors []string
		if status != nil {
			if err, ok := status.CategoryErrors[cat]; ok && err != nil {
				providerErrors = append(providerErrors, err.Error())
			}
		}

		wasQueried := status == nil || status.QueriedCategories[cat]
		hadError := len(providerErrors) > 0 || (openMapStatus == "error" && wasQueried)

		var catStatus string
		switch {
		case !wasQueried && !hadError:
			catStatus = StatusNoQuery
		default:
			catStatus = determineStatus(len(pois), hadError)
		}

		source := "open_map"
		if status != nil && containsString(status.FallbackStarted, cat) {
			if containsString(status.FallbackContributed, cat) {
				source = "mixed"
			}
		}

		subcatDist := make(map[string]int)
		for _, p := range pois {
			sub := p.Subcategory
			if sub == "" {
				sub = "unknown"
			}
			subcatDist[sub]++
		}

		radius := radii[cat]
		if radius == 0 {
			radius = 1000
		}

		coverage[cat] = &CategoryCoverage{
			Source:                  source,
			Status:                  catStatus,
			KeptCount:               len(pois),
			RadiusM:                 radius,
			SubcategoryDistribution: subcatDist,
			ProviderErrors:          providerErrors,
			HadProviderError:        hadError,
		}

		switch catStatus {
		case StatusEmpty:
			emptyCategories = append(emptyCategories, cat)
		case StatusError:
			errorCategories = append(errorCategories, cat)
		}
	}
	sort.Strings(emptyCategories)
	sort.Strings(errorCategories)

	confidence, reasons, components := calculateConfidence(coverage, openMapStatus, profileWeights)

	report := &Report{
		ConfidencePct:        confidence,
		Reasons:              reasons,
		OpenMapStatus:        openMapStatus,
		Coverage:             coverage,
		CacheUsed:            cacheUsed,
		ConfidenceComponents: components,
		EmptyCategories:      emptyCategories,
		ErrorCategories:      errorCategories,
	}
	if status != nil {
		report.FallbackStarted = status.FallbackStarted
		report.FallbackContributed = status.FallbackContributed
	}

	r.logger.Info("data quality summary",
		zap.Int("confidence", confidence),
		zap.String("open_map_status", openMapStatus),
		zap.Bool("cache_used", cacheUsed),
		zap.Strings("empty_categories", emptyCategories),
		zap.Strings("error_categories", errorCategories))

	return report
}

// determineStatus maps kept counts onto coverage statuses. Zero POIs from
// a working provider is empty, not an error.
func determineStatus(keptCount int, hadProviderError bool) string {
	switch {
	case hadProviderError && keptCount == 0:
		return StatusError
	case keptCount >= 3:
		return StatusOK
	case keptCount >= 1:
		return StatusPartial
	default:
		return StatusEmpty
	}
}

// calculateConfidence combines provider, data and signal confidence with
// fixed 0.4/0.3/0.3 weights.
func calculateConfidence(
	coverage map[string]*CategoryCoverage,
	openMapStatus string,
	profileWeights map[string]float64,
) (int, []string, ConfidenceComponents) {
	var reasons []string

	providerConfidence := 100
	switch openMapStatus {
	case "timeout":
		providerConfidence -= timeoutProviderPenalty
		reasons = append(reasons, "Delayed open-map response (retry performed)")
	case "error":
		providerConfidence -= errorProviderPenalty
		reasons = append(reasons, "Open-map data fetch failed")
	}

	dataConfidence := 100
	for _, cat := range importantCategories {
		cov, ok := coverage[cat]
		if !ok {
			continue
		}
		if cov.Status == StatusError {
			dataConfidence -= categoryErrorPenalty
			reasons = append(reasons, fmt.Sprintf("No data for %s (source error)", cat))
		}
	}

	signalConfidence := 100
	if profileWeights != nil {
		significant := make(map[string]bool)
		for _, cat := range importantCategories {
			significant[cat] = true
		}
		for cat := range profileWeights {
			significant[cat] = true
		}

		ordered := make([]string, 0, len(significant))
		for cat := range significant {
			ordered = append(ordered, cat)
		}
		sort.Strings(ordered)

		for _, cat := range ordered {
			weight := profileWeights[cat]
			if weight < 0 {
				weight = -weight
			}
			if weight < significantWeight {
				continue
			}
			cov, ok := coverage[cat]
			if !ok {
				continue
			}
			if cov.Status == StatusEmpty {
				signalConfidence -= emptySignalPenalty
				reasons = append(reasons, fmt.Sprintf("No %s found within %dm", cat, cov.RadiusM))
			} else if cov.Status == StatusPartial && cov.KeptCount < 2 {
				signalConfidence -= sparseSignalPenalty
			}
		}
	}

	providerConfidence = clampInt(providerConfidence, 0, 100)
	dataConfidence = clampInt(dataConfidence, 0, 100)
	signalConfidence = clampInt(signalConfidence, 0, 100)

	total := int(0.4*float64(providerConfidence) + 0.3*float64(dataConfidence) + 0.3*float64(signalConfidence))
	total = clampInt(total, 0, 100)

	if len(reasons) > maxReasons {
		reasons = reasons[:maxReasons]
	}

	return total, reasons, ConfidenceComponents{
		Provider: providerConfidence,
		Data:     dataConfidence,
		Signal:   signalConfidence,
	}
}

func clampInt(v, lo, hi int) int {
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
