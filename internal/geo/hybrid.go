package geo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nestscore/nest-score-go/internal/models"
	"github.com/nestscore/nest-score-go/internal/spatial"
)

// CoverageThreshold is the minimum post-filter POI count below which a
// category gets a commercial fallback query.
const CoverageThreshold = 2

const (
	fallbackMaxPerType = 5

	// Smart-generic override: a generic-named POI is still worth an
	// enrichment attempt when it sits this close and the category offers
	// this few alternatives.
	genericNearbyThresholdM = 120
	genericFewAlternatives  = 3
	detailsCacheTTL         = 7 * 24 * time.Hour
	negativeDetailsCacheTTL = 24 * time.Hour
	dedupeDistanceBucketM   = 20
	duplicateDistanceDeltaM = 50
)

// EnrichmentPolicy controls quality enrichment for one category.
type EnrichmentPolicy struct {
	TopK          int
	Enrich        bool
	MinReviews    int
	MaxDistanceM  float64
	SearchRadiusM int
}

// DefaultEnrichmentPolicies tune the cost/quality tradeoff per category.
// Max distances account for typical coordinate offsets between the two
// sources (often 50-100m for the same building).
var DefaultEnrichmentPolicies = map[string]EnrichmentPolicy{
	models.CategoryShops:            {TopK: 5, Enrich: true, MinReviews: 20, MaxDistanceM: 120, SearchRadiusM: 120},
	models.CategoryEducation:        {TopK: 3, Enrich: true, MinReviews: 20, MaxDistanceM: 250, SearchRadiusM: 200},
	models.CategoryHealth:           {TopK: 3, Enrich: true, MinReviews: 20, MaxDistanceM: 180, SearchRadiusM: 150},
	models.CategoryFood:             {TopK: 3, Enrich: true, MinReviews: 20, MaxDistanceM: 150, SearchRadiusM: 120},
	models.CategoryTransport:        {TopK: 3, Enrich: false},
	models.CategoryNaturePlace:      {TopK: 2, Enrich: true, MinReviews: 20, MaxDistanceM: 200, SearchRadiusM: 150},
	models.CategoryNatureBackground: {TopK: 0, Enrich: false},
	models.CategoryLeisure:          {TopK: 3, Enrich: true, MinReviews: 20, MaxDistanceM: 150, SearchRadiusM: 150},
	models.CategoryFinance:          {TopK: 2, Enrich: false},
}

// FallbackTypes lists the commercial native types used to backfill an
// under-covered category. Categories absent here never trigger fallback.
var FallbackTypes = map[string][]string{
	models.CategoryShops:     {"supermarket", "convenience_store"},
	models.CategoryEducation: {"school"},
	models.CategoryHealth:    {"pharmacy", "hospital"},
	models.CategoryTransport: {"bus_station", "transit_station"},
	models.CategoryFood:      {"restaurant", "cafe"},
	models.CategoryFinance:   {"bank", "atm"},
}

// genericNames are placeholder-ish display names not worth an enrichment
// lookup by default.
var genericNames = stringSet(
	"playground", "pitch", "park", "square", "green",
	"bus stop", "tram stop", "stop",
	"shop", "kiosk", "parking", "garage",
	"unnamed place", "unknown",
)

// OpenMapSource is the open-map base layer contract.
type OpenMapSource interface {
	FetchPOIs(ctx context.Context, lat, lon float64, radiusM int) (map[string][]*models.POI, *models.NatureMetrics, error)
}

// CommercialSource is the commercial provider contract used for fallback
// and enrichment.
type CommercialSource interface {
	Available() bool
	FetchFallback(ctx context.Context, lat, lon float64, radiusM int, category string, types []string, maxPerType int) ([]*models.POI, error)
	GetPlaceDetails(ctx context.Context, placeID string) (*PlaceDetails, error)
	FindPlaceDetails(ctx context.Context, name string, lat, lon float64, searchRadiusM int) (*PlaceDetails, error)
}

// DetailsCache stores enrichment lookups across requests, including
// negative (not found) results.
type DetailsCache interface {
	GetDetails(key string) (*PlaceDetails, bool)
	SetDetails(key string, details *PlaceDetails, ttl time.Duration)
}

// noopDetailsCache is used when no cache is wired in.
type noopDetailsCache struct{}

func (noopDetailsCache) GetDetails(string) (*PlaceDetails, bool)         { return nil, false }
func (noopDetailsCache) SetDetails(string, *PlaceDetails, time.Duration) {}

// ProviderStatus records per-provider and per-category failures for the
// data quality report. It never influences scores.
type ProviderStatus struct {
	OpenMapErr        error
	OpenMapTimeout    bool
	CommercialErr     error
	CategoryErrors    map[string]error
	QueriedCategories map[string]bool

	// Categories where commercial fallback was attempted, and the subset
	// where it actually added POIs or folded data into existing ones.
	FallbackStarted     []string
	FallbackContributed []string
}

// HybridOptions parameterize one hybrid fetch.
type HybridOptions struct {
	FetchRadiusM     int
	CategoryRadii    map[string]int
	EnableEnrichment bool
	EnableFallback   bool
}

// HybridProvider combines the open-map base layer with commercial fallback
// and enrichment under a fixed cost/coverage tradeoff.
type HybridProvider struct {
	openMap    OpenMapSource
	commercial CommercialSource
	policies   map[string]EnrichmentPolicy
	cache      DetailsCache
	logger     *zap.Logger
}

// NewHybridProvider wires the two sources together. cache may be nil.
func NewHybridProvider(openMap OpenMapSource, commercial CommercialSource, cache DetailsCache, logger *zap.Logger) *HybridProvider {
	if cache == nil {
		cache = noopDetailsCache{}
	}
	return &HybridProvider{
		openMap:    openMap,
		commercial: commercial,
		policies:   DefaultEnrichmentPolicies,
		cache:      cache,
		logger:     logger,
	}
}

// FetchPOIs runs the full deterministic merge sequence: base fetch, radius
// filter, fallback, enrichment, dedup, cross-category merge, membership
// filter and a final radius filter. It always returns a well-formed map,
// degrading to sparse results on provider failures.
func (h *HybridProvider) FetchPOIs(ctx context.Context, lat, lon float64, opts HybridOptions) (map[string][]*models.POI, *models.NatureMetrics, *ProviderStatus) {
	status := &ProviderStatus{
		CategoryErrors:    make(map[string]error),
		QueriedCategories: make(map[string]bool),
	}
	for _, cat := range models.FetchCategories {
		status.QueriedCategories[cat] = true
	}

	pois, metrics, err := h.openMap.FetchPOIs(ctx, lat, lon, opts.FetchRadiusM)
	if err != nil {
		status.OpenMapErr = err
		status.OpenMapTimeout = strings.Contains(strings.ToLower(err.Error()), "timeout") ||
			strings.Contains(strings.ToLower(err.Error()), "deadline")
		h.logger.Warn("open-map base fetch failed, continuing with sparse data", zap.Error(err))
	}

	pois = FilterByRadius(pois, opts.CategoryRadii, opts.FetchRadiusM)
	coverage := make(map[string]int, len(pois))
	for cat, items := range pois {
		coverage[cat] = len(items)
	}

	if opts.EnableFallback && h.commercial.Available() {
		h.applyFallback(ctx, pois, coverage, lat, lon, opts, status)
	} else if opts.EnableFallback && !h.commercial.Available() {
		status.CommercialErr = fmt.Errorf("commercial provider not configured")
	}

	if opts.EnableEnrichment && h.commercial.Available() {
		enriched := h.enrichTopK(ctx, pois, status)
		h.logger.Info("enrichment finished", zap.Int("enriched", enriched))
	}

	h.dedupe(pois)
	h.crossCategoryMerge(pois)

	pois = FilterByMembership(pois)
	pois = FilterByRadius(pois, opts.CategoryRadii, opts.FetchRadiusM)
	return pois, metrics, status
}

func (h *HybridProvider) applyFallback(ctx context.Context, pois map[string][]*models.POI, coverage map[string]int, lat, lon float64, opts HybridOptions, status *ProviderStatus) {
	for category, types := range FallbackTypes {
		if coverage[category] >= CoverageThreshold {
			continue
		}

		radius := opts.FetchRadiusM
		if r, ok := opts.CategoryRadii[category]; ok {
			radius = r
		}

		status.FallbackStarted = append(status.FallbackStarted, category)
		found, err := h.commercial.FetchFallback(ctx, lat, lon, radius, category, types, fallbackMaxPerType)
		if err != nil {
			status.CategoryErrors[category] = err
		}
		added := 0
		for _, poi := range found {
			if match := h.findDuplicate(poi, pois[category]); match != nil {
				// The commercial record describes the same place, fold
				// its identity and quality reading into the survivor.
				mergeRecords(match, poi)
				added++
				continue
			}
			pois[category] = append(pois[category], poi)
			added++
		}
		if added > 0 {
			status.FallbackContributed = append(status.FallbackContributed, category)
		}
		sort.Slice(pois[category], func(i, j int) bool {
			return pois[category][i].DistanceM < pois[category][j].DistanceM
		})
	}
	sort.Strings(status.FallbackStarted)
	sort.Strings(status.FallbackContributed)

	// Fallback results may exceed their category radius.
	for cat, items := range FilterByRadius(pois, opts.CategoryRadii, opts.FetchRadiusM) {
		pois[cat] = items
	}
}

// enrichTopK attaches rating and review counts to the K nearest POIs per
// enrichment-enabled category, reusing cached lookups and caching negative
// results. Returns the number of POIs enriched.
func (h *HybridProvider) enrichTopK(ctx context.Context, pois map[string][]*models.POI, status *ProviderStatus) int {
	enriched := 0
	seenPlaceIDs := make(map[string]bool)

	for category, items := range pois {
		policy, ok := h.policies[category]
		if !ok || !policy.Enrich || policy.TopK <= 0 {
			continue
		}

		topK := items
		if len(topK) > policy.TopK {
			topK = topK[:policy.TopK]
		}
		alternatives := len(items)

		for _, poi := range topK {
			if poi.HasQuality() {
				continue
			}
			if poi.PlaceID != "" && seenPlaceIDs[poi.PlaceID] {
				continue
			}
			if h.isGenericName(poi) {
				if !(poi.DistanceM <= genericNearbyThresholdM && alternatives <= genericFewAlternatives) {
					continue
				}
			}

			details, err := h.lookupDetails(ctx, poi, policy)
			if err != nil {
				status.CategoryErrors[category] = err
				h.logger.Warn("enrichment lookup failed",
					zap.String("category", category),
					zap.String("name", poi.Name),
					zap.Error(err))
				continue
			}
			if details == nil || details.NotFound {
				continue
			}

			// Reject lookups that resolved a different physical place.
			if details.HasCoord {
				offset := spatial.HaversineDistance(poi.Lat, poi.Lon, details.Lat, details.Lon)
				if offset > policy.MaxDistanceM {
					h.logger.Debug("rejecting enrichment, resolved place too far",
						zap.String("name", poi.Name),
						zap.Float64("offset_m", offset))
					continue
				}
			}

			if details.PlaceID != "" {
				if seenPlaceIDs[details.PlaceID] {
					continue
				}
				poi.PlaceID = details.PlaceID
				seenPlaceIDs[details.PlaceID] = true
			}

			poi.Rating = details.Rating
			reviews := details.Reviews
			poi.Reviews = &reviews
			poi.LowReviews = reviews < policy.MinReviews
			if poi.Source == models.SourceOpenMap {
				poi.Source = models.SourceCommercialEnriched
			}
			enriched++
		}
	}
	return enriched
}

func (h *HybridProvider) lookupDetails(ctx context.Context, poi *models.POI, policy EnrichmentPolicy) (*PlaceDetails, error) {
	if poi.PlaceID != "" {
		key := "details:" + poi.PlaceID
		if cached, ok := h.cache.GetDetails(key); ok {
			return cached, nil
		}
		details, err := h.commercial.GetPlaceDetails(ctx, poi.PlaceID)
		if err != nil {
			return nil, err
		}
		if details.PlaceID == "" {
			details.PlaceID = poi.PlaceID
		}
		h.cache.SetDetails(key, details, detailsCacheTTL)
		return details, nil
	}

	nLat, nLon := spatial.NormalizeCoords(poi.Lat, poi.Lon)
	negKey := fmt.Sprintf("notfound:%s:%.3f:%.3f", poi.Name, nLat, nLon)
	if cached, ok := h.cache.GetDetails(negKey); ok {
		return cached, nil
	}

	details, err := h.commercial.FindPlaceDetails(ctx, poi.Name, poi.Lat, poi.Lon, policy.SearchRadiusM)
	if err != nil {
		return nil, err
	}
	if details.NotFound {
		h.cache.SetDetails(negKey, details, negativeDetailsCacheTTL)
		return details, nil
	}
	if details.PlaceID != "" {
		h.cache.SetDetails("details:"+details.PlaceID, details, detailsCacheTTL)
	}
	return details, nil
}

func (h *HybridProvider) isGenericName(poi *models.POI) bool {
	if poi.Nameless {
		return true
	}
	return genericNames[strings.ToLower(strings.TrimSpace(poi.Name))]
}

// findDuplicate matches a candidate against existing POIs, identifier
// first, then name plus close distance. Returns the matched POI or nil.
func (h *HybridProvider) findDuplicate(candidate *models.POI, existing []*models.POI) *models.POI {
	for _, poi := range existing {
		if candidate.PlaceID != "" && poi.PlaceID == candidate.PlaceID {
			return poi
		}
		if strings.EqualFold(poi.Name, candidate.Name) &&
			absFloat(poi.DistanceM-candidate.DistanceM) < duplicateDistanceDeltaM {
			return poi
		}
	}
	return nil
}

// dedupe removes duplicates within each category list, identifier-first
// with a name+distance-bucket fallback, then caps list length.
func (h *HybridProvider) dedupe(pois map[string][]*models.POI) {
	for category, items := range pois {
		seenIDs := make(map[string]bool)
		type nameKey struct {
			name   string
			bucket int
		}
		seenNames := make(map[nameKey]bool)
		unique := items[:0]

		for _, poi := range items {
			id := poi.PlaceID
			if id == "" {
				id = poi.OSMID
			}
			if id != "" {
				if seenIDs[id] {
					continue
				}
				seenIDs[id] = true
			} else {
				k := nameKey{strings.ToLower(poi.Name), spatial.DistanceBucket(poi.DistanceM, dedupeDistanceBucketM)}
				if seenNames[k] {
					continue
				}
				seenNames[k] = true
			}
			unique = append(unique, poi)
		}

		sort.Slice(unique, func(i, j int) bool {
			return unique[i].DistanceM < unique[j].DistanceM
		})
		if len(unique) > MaxPOIsPerCategory {
			unique = unique[:MaxPOIsPerCategory]
		}
		pois[category] = unique
	}
}

// crossCategoryMerge unifies POIs discovered independently under different
// categories that refer to the same physical place: same stable identifier,
// or same coordinate grid cell plus matching core tag. The surviving record
// carries the union of badges, the quality reading with more reviews, and
// the merged provenance when the sources differ.
func (h *HybridProvider) crossCategoryMerge(pois map[string][]*models.POI) {
	type gridKey struct {
		lat, lon float64
		coreTag  string
	}

	byPlaceID := make(map[string]*models.POI)
	byOSMID := make(map[string]*models.POI)
	byGrid := make(map[gridKey]*models.POI)

	canonical := func(poi *models.POI) *models.POI {
		if poi.PlaceID != "" {
			if existing, ok := byPlaceID[poi.PlaceID]; ok {
				return existing
			}
		}
		if poi.OSMID != "" {
			if existing, ok := byOSMID[poi.OSMID]; ok {
				return existing
			}
		}
		lat, lon := spatial.NormalizeCoords(poi.Lat, poi.Lon)
		k := gridKey{lat, lon, poi.Subcategory}
		if poi.Subcategory != "" {
			if existing, ok := byGrid[k]; ok {
				return existing
			}
		}

		if poi.PlaceID != "" {
			byPlaceID[poi.PlaceID] = poi
		}
		if poi.OSMID != "" {
			byOSMID[poi.OSMID] = poi
		}
		if poi.Subcategory != "" {
			byGrid[k] = poi
		}
		return poi
	}

	for category, items := range pois {
		merged := items[:0]
		for _, poi := range items {
			survivor := canonical(poi)
			if survivor != poi {
				mergeRecords(survivor, poi)
			}
			// A survivor may already sit in this list under its own entry.
			duplicate := false
			for _, kept := range merged {
				if kept == survivor {
					duplicate = true
					break
				}
			}
			if !duplicate {
				merged = append(merged, survivor)
			}
		}
		pois[category] = merged
	}
}

// mergeRecords folds other into survivor: identifiers and badges union,
// more reviews wins the quality reading (a survivor without one takes
// the other's).
func mergeRecords(survivor, other *models.POI) {
	if survivor.PlaceID == "" {
		survivor.PlaceID = other.PlaceID
	}
	if survivor.OSMID == "" {
		survivor.OSMID = other.OSMID
	}
	for _, badge := range other.Badges {
		if !containsString(survivor.Badges, badge) {
			survivor.Badges = append(survivor.Badges, badge)
		}
	}
	if other.Rating != nil && (survivor.Rating == nil || other.ReviewCount() > survivor.ReviewCount()) {
		survivor.Rating = other.Rating
		survivor.Reviews = other.Reviews
		survivor.LowReviews = other.LowReviews
	}
	if len(survivor.Types) == 0 {
		survivor.Types = other.Types
	}
	if survivor.Source != other.Source {
		survivor.Source = models.SourceMerged
	}
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
