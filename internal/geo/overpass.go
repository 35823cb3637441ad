package geo

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	overpass "github.com/serjvanilla/go-overpass"
	"go.uber.org/zap"

	"github.com/nestscore/nest-score-go/internal/models"
	"github.com/nestscore/nest-score-go/internal/spatial"
)

// MaxPOIsPerCategory caps every category list coming out of an adapter.
const MaxPOIsPerCategory = 30

// DefaultOverpassEndpoints are rotated through on failure.
var DefaultOverpassEndpoints = []string{
	"https://overpass-api.de/api/interpreter",
	"https://lz4.overpass-api.de/api/interpreter",
	"https://z.overpass-api.de/api/interpreter",
	"https://maps.mail.ru/osm/tools/overpass/api/interpreter",
}

// openMapQueryPatterns are the tag filters combined into one batched union
// query, a single network round trip covers every category.
var openMapQueryPatterns = []string{
	`["shop"]`,
	`["public_transport"="stop_position"]`,
	`["highway"="bus_stop"]`,
	`["railway"~"tram_stop|station"]`,
	`["amenity"~"school|kindergarten|university"]`,
	`["amenity"~"pharmacy|doctors|hospital|clinic"]`,
	`["leisure"~"park|garden|nature_reserve"]`,
	`["landuse"~"forest|meadow|grass|recreation_ground"]`,
	`["natural"~"wood|water|beach"]`,
	`["waterway"~"river|stream|canal"]`,
	`["leisure"~"playground|fitness_centre|pitch|sports_centre|stadium|swimming_pool"]`,
	`["amenity"~"restaurant|cafe|fast_food"]`,
	`["amenity"~"bank|atm"]`,
	`["highway"~"motorway|trunk|primary|secondary|tertiary"]`,
	`["railway"~"tram|rail"]`,
}

var landcoverTypes = map[string]bool{
	"forest":            true,
	"meadow":            true,
	"grass":             true,
	"recreation_ground": true,
}

var waterNaturalTypes = map[string]bool{
	"water": true,
	"beach": true,
}

var waterwayTypes = map[string]bool{
	"river":  true,
	"stream": true,
	"canal":  true,
}

// OpenMapAdapter fetches POIs from an Overpass-compatible open-map backend.
type OpenMapAdapter struct {
	clients    []overpass.Client
	endpoints  []string
	current    int
	maxRetries int
	logger     *zap.Logger
}

// NewOpenMapAdapter builds an adapter rotating through the given endpoints.
func NewOpenMapAdapter(endpoints []string, timeout time.Duration, logger *zap.Logger) *OpenMapAdapter {
	if len(endpoints) == 0 {
		endpoints = DefaultOverpassEndpoints
	}
	httpClient := &http.Client{Timeout: timeout}
	clients := make([]overpass.Client, 0, len(endpoints))
	for _, ep := range endpoints {
		clients = append(clients, overpass.NewWithSettings(ep, 2, httpClient))
	}
	return &OpenMapAdapter{
		clients:    clients,
		endpoints:  endpoints,
		maxRetries: 4,
		logger:     logger,
	}
}

// FetchPOIs runs the batched query around (lat, lon) and returns POIs grouped
// by category plus the accumulated nature metrics. On total failure it returns
// empty category lists together with the error so callers can degrade instead
// of aborting the analysis.
func (a *OpenMapAdapter) FetchPOIs(ctx context.Context, lat, lon float64, radiusM int) (map[string][]*models.POI, *models.NatureMetrics, error) {
	query := a.buildQuery(lat, lon, radiusM)

	result, err := a.queryWithRetry(ctx, query)
	if err != nil {
		metrics := models.NewNatureMetrics()
		metrics.CalculateDensity(radiusM)
		return emptyCategoryLists(), metrics, fmt.Errorf("failed to fetch open-map data: %w", err)
	}

	pois, metrics := a.processResult(result, lat, lon)
	metrics.CalculateDensity(radiusM)

	for cat := range pois {
		sort.Slice(pois[cat], func(i, j int) bool {
			return pois[cat][i].DistanceM < pois[cat][j].DistanceM
		})
		if len(pois[cat]) > MaxPOIsPerCategory {
			pois[cat] = pois[cat][:MaxPOIsPerCategory]
		}
	}
	return pois, metrics, nil
}

func (a *OpenMapAdapter) buildQuery(lat, lon float64, radiusM int) string {
	var b strings.Builder
	b.WriteString("[out:json][timeout:60];\n(\n")
	for _, pattern := range openMapQueryPatterns {
		fmt.Fprintf(&b, "node%s(around:%d,%f,%f);\n", pattern, radiusM, lat, lon)
		fmt.Fprintf(&b, "way%s(around:%d,%f,%f);\n", pattern, radiusM, lat, lon)
	}
	b.WriteString(");\nout body;\n>;\nout skel qt;\n")
	return b.String()
}

func (a *OpenMapAdapter) queryWithRetry(ctx context.Context, query string) (*overpass.Result, error) {
	var lastErr error
	for attempt := 0; attempt < a.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		client := &a.clients[a.current%len(a.clients)]
		result, err := client.Query(query)
		if err == nil {
			return &result, nil
		}

		lastErr = err
		a.logger.Warn("open-map query failed, rotating endpoint",
			zap.String("endpoint", a.endpoints[a.current%len(a.endpoints)]),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		a.current++

		if attempt < a.maxRetries-1 {
			backoff := time.Duration(1<<attempt) * time.Second
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return nil, lastErr
}

func (a *OpenMapAdapter) processResult(result *overpass.Result, refLat, refLon float64) (map[string][]*models.POI, *models.NatureMetrics) {
	pois := emptyCategoryLists()
	metrics := models.NewNatureMetrics()

	type element struct {
		id   string
		lat  float64
		lon  float64
		tags map[string]string
	}

	elements := make([]element, 0, len(result.Nodes)+len(result.Ways))
	for _, node := range result.Nodes {
		if len(node.Tags) == 0 {
			continue
		}
		elements = append(elements, element{
			id:   fmt.Sprintf("node/%d", node.ID),
			lat:  node.Lat,
			lon:  node.Lon,
			tags: node.Tags,
		})
	}
	for _, way := range result.Ways {
		if len(way.Tags) == 0 || len(way.Nodes) == 0 {
			continue
		}
		pts := make([]spatial.Point, 0, len(way.Nodes))
		for _, n := range way.Nodes {
			pts = append(pts, spatial.Point{Lat: n.Lat, Lon: n.Lon})
		}
		center := spatial.Centroid(pts)
		elements = append(elements, element{
			id:   fmt.Sprintf("way/%d", way.ID),
			lat:  center.Lat,
			lon:  center.Lon,
			tags: way.Tags,
		})
	}

	for _, elem := range elements {
		distance := spatial.HaversineDistance(refLat, refLon, elem.lat, elem.lon)

		// Land cover and water feed the nature metrics regardless of
		// whether the element also classifies as a POI.
		if landcoverTypes[elem.tags["landuse"]] {
			metrics.AddLandcover(elem.tags["landuse"], distance)
		}
		if elem.tags["natural"] == "wood" {
			metrics.AddLandcover("wood", distance)
		}
		if waterNaturalTypes[elem.tags["natural"]] {
			metrics.AddWater(distance, elem.tags["natural"])
		}
		if waterwayTypes[elem.tags["waterway"]] {
			metrics.AddWater(distance, elem.tags["waterway"])
		}
		if elem.tags["leisure"] == "park" {
			metrics.AddPark(distance)
		}

		c := ClassifyOpenMapTags(elem.tags)
		if c.Primary == "" {
			continue
		}

		poi := a.buildPOI(elem.id, elem.lat, elem.lon, distance, elem.tags, c)
		pois[c.Primary] = append(pois[c.Primary], poi)
		for _, sec := range c.Secondary {
			pois[sec] = append(pois[sec], poi)
		}
	}
	return pois, metrics
}

func (a *OpenMapAdapter) buildPOI(id string, lat, lon, distance float64, tags map[string]string, c Classification) *models.POI {
	name := tags["name"]
	if name == "" {
		name = tags["brand"]
	}
	nameless := false
	if name == "" {
		name = PlaceholderName(c.Subcategory, tags["addr:street"], tags["addr:housenumber"])
		nameless = true
	}
	return &models.POI{
		Lat:                 lat,
		Lon:                 lon,
		Name:                name,
		Nameless:            nameless,
		Category:            c.Primary,
		Subcategory:         c.Subcategory,
		SecondaryCategories: c.Secondary,
		CategoryScores:      c.Scores,
		DistanceM:           distance,
		Source:              models.SourceOpenMap,
		OSMID:               id,
		Tags:                tags,
	}
}

func emptyCategoryLists() map[string][]*models.POI {
	m := make(map[string][]*models.POI, len(models.FetchCategories))
	for _, cat := range models.FetchCategories {
		m[cat] = []*models.POI{}
	}
	return m
}
