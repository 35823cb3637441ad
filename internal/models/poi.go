package models

import "math"

// POI provenance values. A POI starts life tagged with the source that
// discovered it and may be promoted to SourceMerged when the cross-category
// merge unifies records from both providers.
const (
	SourceOpenMap            = "open_map"
	SourceCommercial         = "commercial"
	SourceCommercialFallback = "commercial_fallback"
	SourceCommercialEnriched = "commercial_enriched"
	SourceMerged             = "merged"
)

// POI categories used across fetching, merging and scoring.
const (
	CategoryShops            = "shops"
	CategoryTransport        = "transport"
	CategoryEducation        = "education"
	CategoryHealth           = "health"
	CategoryNaturePlace      = "nature_place"
	CategoryNatureBackground = "nature_background"
	CategoryLeisure          = "leisure"
	CategoryFood             = "food"
	CategoryFinance          = "finance"
	CategoryRoads            = "roads"
	CategoryNoise            = "noise"
	CategoryCarAccess        = "car_access"
)

// ScoredCategories are the categories the scoring engine iterates over
// (noise is a penalty pseudo-category, roads feed the roads penalty only).
var ScoredCategories = []string{
	CategoryShops,
	CategoryTransport,
	CategoryEducation,
	CategoryHealth,
	CategoryNaturePlace,
	CategoryNatureBackground,
	CategoryLeisure,
	CategoryFood,
	CategoryFinance,
	CategoryCarAccess,
}

// FetchCategories are the categories the providers actually query for.
// nature_background and car_access are derived (metrics / roads based),
// they have no provider query of their own.
var FetchCategories = []string{
	CategoryShops,
	CategoryTransport,
	CategoryEducation,
	CategoryHealth,
	CategoryNaturePlace,
	CategoryLeisure,
	CategoryFood,
	CategoryFinance,
	CategoryRoads,
}

// POI represents a discovered place or micro-area feature around the
// analysed point. Created by a provider adapter, possibly mutated during
// merge (identifiers filled in, quality attached), read-only afterwards.
type POI struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Name string  `json:"name"`

	// Nameless marks a generated placeholder name (type + address fragment),
	// it lowers the POI's weight during scoring.
	Nameless bool `json:"nameless,omitempty"`

	Category            string             `json:"category"`
	Subcategory         string             `json:"subcategory,omitempty"`
	SecondaryCategories []string           `json:"secondary_categories,omitempty"`
	CategoryScores      map[string]float64 `json:"-"`

	// DistanceM is computed once against the query point at creation time.
	DistanceM float64 `json:"distance_m"`

	Source string   `json:"source"`
	Badges []string `json:"badges,omitempty"`

	// Stable identifiers used for deduplication. At least one should be
	// present, neither is guaranteed.
	OSMID   string `json:"osm_id,omitempty"`
	PlaceID string `json:"place_id,omitempty"`

	// Quality metadata, populated only by the commercial source or by
	// enrichment.
	Rating     *float64 `json:"rating,omitempty"`
	Reviews    *int     `json:"reviews,omitempty"`
	LowReviews bool     `json:"low_reviews,omitempty"`

	// Types carries the commercial provider's native type list, used by the
	// membership filter for commercial-sourced POIs.
	Types []string `json:"-"`

	// Tags preserves source-specific attributes for classification and
	// debugging.
	Tags map[string]string `json:"-"`
}

// HasQuality reports whether the POI carries a rating.
func (p *POI) HasQuality() bool {
	return p.Rating != nil
}

// ReviewCount returns the review count or 0 when unknown.
func (p *POI) ReviewCount() int {
	if p.Reviews == nil {
		return 0
	}
	return *p.Reviews
}

// HasCategory reports whether the POI is classified under category,
// either as primary or secondary.
func (p *POI) HasCategory(category string) bool {
	if p.Category == category {
		return true
	}
	for _, c := range p.SecondaryCategories {
		if c == category {
			return true
		}
	}
	return false
}

// NatureMetrics aggregates land-cover and water observations from the raw
// open-map element stream. It feeds the nature_background score and the
// quiet-score green bonuses; land cover never becomes a POI.
type NatureMetrics struct {
	GreenDensityProxy  float64            `json:"green_density_proxy"`
	TotalGreenElements int                `json:"total_green_elements"`
	NearestDistances   map[string]float64 `json:"nearest_distances"`
	NearestWaterM      *float64           `json:"nearest_water_m,omitempty"`
	WaterElements      int                `json:"water_elements"`
}

// NewNatureMetrics returns an empty accumulator.
func NewNatureMetrics() *NatureMetrics {
	return &NatureMetrics{
		NearestDistances: make(map[string]float64),
	}
}

// AddLandcover records one green land-cover element of the given type.
func (m *NatureMetrics) AddLandcover(landType string, distanceM float64) {
	m.TotalGreenElements++
	if cur, ok := m.NearestDistances[landType]; !ok || distanceM < cur {
		m.NearestDistances[landType] = distanceM
	}
}

// AddWater records a water element (natural or waterway).
func (m *NatureMetrics) AddWater(distanceM float64, waterType string) {
	m.WaterElements++
	if m.NearestWaterM == nil || distanceM < *m.NearestWaterM {
		d := distanceM
		m.NearestWaterM = &d
	}
	if cur, ok := m.NearestDistances[waterType]; !ok || distanceM < cur {
		m.NearestDistances[waterType] = distanceM
	}
}

// AddPark records a park element; parks count toward green density and
// expose the nearest-park distance for the quiet-score bonus.
func (m *NatureMetrics) AddPark(distanceM float64) {
	m.TotalGreenElements++
	if cur, ok := m.NearestDistances["park"]; !ok || distanceM < cur {
		m.NearestDistances["park"] = distanceM
	}
}

// CalculateDensity derives the green density proxy: green elements per
// square kilometre of the fetched disc.
func (m *NatureMetrics) CalculateDensity(radiusM int) {
	if radiusM <= 0 {
		m.GreenDensityProxy = 0
		return
	}
	areaKm2 := math.Pi * float64(radiusM) * float64(radiusM) / 1e6
	m.GreenDensityProxy = float64(m.TotalGreenElements) / areaKm2
}
