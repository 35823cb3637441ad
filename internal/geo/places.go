package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nestscore/nest-score-go/internal/models"
	"github.com/nestscore/nest-score-go/internal/spatial"
)

// commercialSearchTypes lists the native place types queried per category
// when the commercial source is used as a full provider.
var commercialSearchTypes = map[string][]string{
	models.CategoryShops:       {"supermarket", "convenience_store", "shopping_mall", "store"},
	models.CategoryTransport:   {"subway_station", "bus_station", "train_station", "transit_station"},
	models.CategoryEducation:   {"school", "university", "library"},
	models.CategoryHealth:      {"pharmacy", "hospital", "doctor", "dentist"},
	models.CategoryNaturePlace: {"park", "natural_feature"},
	models.CategoryLeisure:     {"gym", "stadium", "movie_theater"},
	models.CategoryFood:        {"restaurant", "cafe", "bar"},
	models.CategoryFinance:     {"bank", "atm"},
}

// PlaceDetails is the quality payload returned by detail lookups.
type PlaceDetails struct {
	PlaceID  string
	Rating   *float64
	Reviews  int
	Lat      float64
	Lon      float64
	HasCoord bool
	NotFound bool
}

type placeLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type placeGeometry struct {
	Location placeLocation `json:"location"`
}

type placeRecord struct {
	PlaceID          string        `json:"place_id"`
	Name             string        `json:"name"`
	Rating           *float64      `json:"rating"`
	UserRatingsTotal *int          `json:"user_ratings_total"`
	Types            []string      `json:"types"`
	Geometry         placeGeometry `json:"geometry"`
}

type nearbyResponse struct {
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message"`
	Results      []placeRecord `json:"results"`
}

type detailsResponse struct {
	Status       string      `json:"status"`
	ErrorMessage string      `json:"error_message"`
	Result       placeRecord `json:"result"`
}

// CommercialAdapter queries the commercial places backend. All failures are
// resolved at this boundary: callers receive empty results plus the error for
// the data quality report, never a panic or a propagated abort.
type CommercialAdapter struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewCommercialAdapter builds an adapter for the given API key. An empty key
// produces a disabled adapter that reports itself unavailable.
func NewCommercialAdapter(apiKey, baseURL string, timeout time.Duration, logger *zap.Logger) *CommercialAdapter {
	if baseURL == "" {
		baseURL = "https://maps.googleapis.com/maps/api/place"
	}
	return &CommercialAdapter{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Available reports whether the adapter has credentials.
func (a *CommercialAdapter) Available() bool {
	return a.apiKey != ""
}

// FetchPOIs uses the commercial source as a full provider, one nearby search
// per native type, deduplicated and capped per category.
func (a *CommercialAdapter) FetchPOIs(ctx context.Context, lat, lon float64, radiusM int) (map[string][]*models.POI, *models.NatureMetrics, error) {
	metrics := models.NewNatureMetrics()
	pois := emptyCategoryLists()
	if !a.Available() {
		metrics.CalculateDensity(radiusM)
		return pois, metrics, fmt.Errorf("commercial places API key not configured")
	}

	var firstErr error
	for category, types := range commercialSearchTypes {
		for _, placeType := range types {
			results, err := a.SearchNearby(ctx, lat, lon, radiusM, placeType)
			if err != nil {
				a.logger.Warn("commercial nearby search failed",
					zap.String("type", placeType), zap.Error(err))
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			for _, place := range results {
				poi := a.toPOI(place, category, lat, lon, models.SourceCommercial)
				if poi == nil {
					continue
				}
				pois[category] = append(pois[category], poi)
				if category == models.CategoryNaturePlace && poi.Subcategory == "park" {
					metrics.AddPark(poi.DistanceM)
				}
			}
		}
	}

	for cat := range pois {
		pois[cat] = dedupeByNameAndDistance(pois[cat])
		sort.Slice(pois[cat], func(i, j int) bool {
			return pois[cat][i].DistanceM < pois[cat][j].DistanceM
		})
		if len(pois[cat]) > MaxPOIsPerCategory {
			pois[cat] = pois[cat][:MaxPOIsPerCategory]
		}
	}

	metrics.CalculateDensity(radiusM)
	return pois, metrics, firstErr
}

// SearchNearby runs one nearby search for a single native place type.
func (a *CommercialAdapter) SearchNearby(ctx context.Context, lat, lon float64, radiusM int, placeType string) ([]placeRecord, error) {
	params := url.Values{}
	params.Set("location", fmt.Sprintf("%f,%f", lat, lon))
	params.Set("radius", strconv.Itoa(radiusM))
	params.Set("type", placeType)
	params.Set("key", a.apiKey)

	var resp nearbyResponse
	if err := a.getJSON(ctx, "/nearbysearch/json", params, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "OK" && resp.Status != "ZERO_RESULTS" {
		return nil, fmt.Errorf("commercial places API error: %s %s", resp.Status, resp.ErrorMessage)
	}
	return resp.Results, nil
}

// FetchFallback runs nearby searches for a single under-covered category,
// restricted to the given native types. Results are tagged with the
// commercial_fallback provenance and capped per type.
func (a *CommercialAdapter) FetchFallback(ctx context.Context, lat, lon float64, radiusM int, category string, types []string, maxPerType int) ([]*models.POI, error) {
	if !a.Available() {
		return nil, fmt.Errorf("commercial places API key not configured")
	}

	var pois []*models.POI
	var firstErr error
	for _, placeType := range types {
		results, err := a.SearchNearby(ctx, lat, lon, radiusM, placeType)
		if err != nil {
			a.logger.Warn("fallback search failed",
				zap.String("category", category),
				zap.String("type", placeType),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if len(results) > maxPerType {
			results = results[:maxPerType]
		}
		for _, place := range results {
			if poi := a.toPOI(place, category, lat, lon, models.SourceCommercialFallback); poi != nil {
				pois = append(pois, poi)
			}
		}
	}
	return pois, firstErr
}

// GetPlaceDetails fetches quality metadata for a known place id.
func (a *CommercialAdapter) GetPlaceDetails(ctx context.Context, placeID string) (*PlaceDetails, error) {
	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", "rating,user_ratings_total,geometry,place_id")
	params.Set("key", a.apiKey)

	var resp detailsResponse
	if err := a.getJSON(ctx, "/details/json", params, &resp); err != nil {
		return nil, err
	}
	switch resp.Status {
	case "OK":
		return detailsFromRecord(resp.Result), nil
	case "ZERO_RESULTS", "NOT_FOUND":
		return &PlaceDetails{PlaceID: placeID, NotFound: true}, nil
	default:
		return nil, fmt.Errorf("commercial places API error: %s %s", resp.Status, resp.ErrorMessage)
	}
}

// FindPlaceDetails resolves a POI without a place id: a keyword nearby search
// around its coordinates followed by a details lookup on the best hit.
func (a *CommercialAdapter) FindPlaceDetails(ctx context.Context, name string, lat, lon float64, searchRadiusM int) (*PlaceDetails, error) {
	params := url.Values{}
	params.Set("location", fmt.Sprintf("%f,%f", lat, lon))
	params.Set("radius", strconv.Itoa(searchRadiusM))
	params.Set("keyword", name)
	params.Set("key", a.apiKey)

	var resp nearbyResponse
	if err := a.getJSON(ctx, "/nearbysearch/json", params, &resp); err != nil {
		return nil, err
	}
	if resp.Status == "ZERO_RESULTS" || (resp.Status == "OK" && len(resp.Results) == 0) {
		return &PlaceDetails{NotFound: true}, nil
	}
	if resp.Status != "OK" {
		return nil, fmt.Errorf("commercial places API error: %s %s", resp.Status, resp.ErrorMessage)
	}

	best := resp.Results[0]
	if best.Rating != nil {
		return detailsFromRecord(best), nil
	}
	if best.PlaceID == "" {
		return &PlaceDetails{NotFound: true}, nil
	}
	return a.GetPlaceDetails(ctx, best.PlaceID)
}

func detailsFromRecord(r placeRecord) *PlaceDetails {
	d := &PlaceDetails{
		PlaceID: r.PlaceID,
		Rating:  r.Rating,
	}
	if r.UserRatingsTotal != nil {
		d.Reviews = *r.UserRatingsTotal
	}
	if r.Geometry.Location.Lat != 0 || r.Geometry.Location.Lng != 0 {
		d.Lat = r.Geometry.Location.Lat
		d.Lon = r.Geometry.Location.Lng
		d.HasCoord = true
	}
	return d
}

func (a *CommercialAdapter) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("commercial places request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("commercial places returned HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode commercial places response: %w", err)
	}
	return nil
}

// toPOI converts a raw place record into the common POI representation. The
// searched category stays primary, the classifier contributes the secondary.
func (a *CommercialAdapter) toPOI(place placeRecord, category string, refLat, refLon float64, source string) *models.POI {
	lat := place.Geometry.Location.Lat
	lon := place.Geometry.Location.Lng
	if lat == 0 && lon == 0 {
		return nil
	}

	c := ClassifyCommercialTypes(place.Types)
	subcategory := c.Subcategory
	if c.Primary != category {
		// The search type decides membership, keep its vocabulary.
		for _, t := range place.Types {
			if m, ok := commercialTypeMap[t]; ok && m.Category == category {
				subcategory = m.Subcategory
				break
			}
		}
	}

	var secondary []string
	if c.Primary != "" && c.Primary != category {
		secondary = []string{c.Primary}
	} else if len(c.Secondary) > 0 && c.Secondary[0] != category {
		secondary = []string{c.Secondary[0]}
	}

	name := place.Name
	nameless := false
	if name == "" {
		name = PlaceholderName(subcategory, "", "")
		nameless = true
	}

	poi := &models.POI{
		Lat:                 lat,
		Lon:                 lon,
		Name:                name,
		Nameless:            nameless,
		Category:            category,
		Subcategory:         subcategory,
		SecondaryCategories: secondary,
		CategoryScores:      c.Scores,
		DistanceM:           spatial.HaversineDistance(refLat, refLon, lat, lon),
		Source:              source,
		PlaceID:             place.PlaceID,
		Types:               place.Types,
		Rating:              place.Rating,
	}
	if place.UserRatingsTotal != nil {
		poi.Reviews = place.UserRatingsTotal
	}
	return poi
}

func dedupeByNameAndDistance(pois []*models.POI) []*models.POI {
	type key struct {
		name   string
		bucket int
	}
	seen := make(map[key]bool)
	out := pois[:0]
	for _, p := range pois {
		k := key{strings.ToLower(p.Name), spatial.DistanceBucket(p.DistanceM, 20)}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, p)
	}
	return out
}
