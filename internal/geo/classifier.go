package geo

import (
	"sort"
	"strings"

	"github.com/nestscore/nest-score-go/internal/models"
)

// secondaryThreshold is the fraction of the primary category's score a
// runner-up category must reach to be kept as the single secondary.
const secondaryThreshold = 0.7

// Classification is the outcome of scoring a raw record's tags against the
// category rule set. Primary is empty when nothing matched.
type Classification struct {
	Primary     string
	Secondary   []string
	Subcategory string
	Scores      map[string]float64
}

// categoryPriority breaks score ties deterministically, independent of tag
// iteration order.
var categoryPriority = map[string]int{
	models.CategoryShops:       0,
	models.CategoryTransport:   1,
	models.CategoryEducation:   2,
	models.CategoryHealth:      3,
	models.CategoryNaturePlace: 4,
	models.CategoryLeisure:     5,
	models.CategoryFood:        6,
	models.CategoryFinance:     7,
	models.CategoryRoads:       8,
}

// tagRule adds Points to Category when the tag Key matches one of Values.
// An empty Values list matches any value of Key.
type tagRule struct {
	Key      string
	Values   []string
	Category string
	Points   float64
}

var openMapRules = []tagRule{
	{Key: "shop", Category: models.CategoryShops, Points: 1.0},

	{Key: "public_transport", Values: []string{"stop_position"}, Category: models.CategoryTransport, Points: 1.0},
	{Key: "highway", Values: []string{"bus_stop"}, Category: models.CategoryTransport, Points: 1.0},
	{Key: "railway", Values: []string{"tram_stop", "station"}, Category: models.CategoryTransport, Points: 1.0},

	{Key: "amenity", Values: []string{"school", "kindergarten", "university"}, Category: models.CategoryEducation, Points: 1.0},

	{Key: "amenity", Values: []string{"pharmacy", "doctors", "hospital", "clinic"}, Category: models.CategoryHealth, Points: 1.0},
	{Key: "healthcare", Category: models.CategoryHealth, Points: 0.4},

	{Key: "leisure", Values: []string{"park", "garden", "nature_reserve"}, Category: models.CategoryNaturePlace, Points: 1.0},
	{Key: "natural", Values: []string{"water", "beach"}, Category: models.CategoryNaturePlace, Points: 0.8},
	{Key: "waterway", Values: []string{"river", "stream", "canal"}, Category: models.CategoryNaturePlace, Points: 0.8},

	{Key: "leisure", Values: []string{"playground", "fitness_centre", "pitch", "sports_centre", "stadium", "swimming_pool"}, Category: models.CategoryLeisure, Points: 1.0},
	{Key: "sport", Category: models.CategoryLeisure, Points: 0.3},

	{Key: "amenity", Values: []string{"restaurant", "cafe", "fast_food"}, Category: models.CategoryFood, Points: 1.0},
	{Key: "cuisine", Category: models.CategoryFood, Points: 0.3},

	{Key: "amenity", Values: []string{"bank", "atm"}, Category: models.CategoryFinance, Points: 1.0},

	{Key: "highway", Values: []string{"motorway", "trunk", "primary", "secondary", "tertiary"}, Category: models.CategoryRoads, Points: 1.0},
	{Key: "railway", Values: []string{"tram", "rail"}, Category: models.CategoryRoads, Points: 1.0},
}

// commercialTypeMap maps the commercial provider's native place types onto
// our categories plus a subcategory label.
var commercialTypeMap = map[string]struct {
	Category    string
	Subcategory string
}{
	"supermarket":            {models.CategoryShops, "supermarket"},
	"grocery_or_supermarket": {models.CategoryShops, "supermarket"},
	"convenience_store":      {models.CategoryShops, "convenience"},
	"shopping_mall":          {models.CategoryShops, "mall"},
	"bakery":                 {models.CategoryShops, "bakery"},
	"clothing_store":         {models.CategoryShops, "clothes"},
	"shoe_store":             {models.CategoryShops, "shoes"},
	"hardware_store":         {models.CategoryShops, "hardware"},
	"electronics_store":      {models.CategoryShops, "electronics"},
	"furniture_store":        {models.CategoryShops, "furniture"},
	"book_store":             {models.CategoryShops, "books"},
	"florist":                {models.CategoryShops, "florist"},
	"pet_store":              {models.CategoryShops, "pet"},
	"store":                  {models.CategoryShops, "general"},

	"subway_station":     {models.CategoryTransport, "subway"},
	"bus_station":        {models.CategoryTransport, "bus_stop"},
	"train_station":      {models.CategoryTransport, "railway"},
	"transit_station":    {models.CategoryTransport, "transit"},
	"light_rail_station": {models.CategoryTransport, "tram_stop"},

	"school":           {models.CategoryEducation, "school"},
	"primary_school":   {models.CategoryEducation, "school"},
	"secondary_school": {models.CategoryEducation, "school"},
	"university":       {models.CategoryEducation, "university"},
	"library":          {models.CategoryEducation, "library"},

	"pharmacy": {models.CategoryHealth, "pharmacy"},
	"hospital": {models.CategoryHealth, "hospital"},
	"doctor":   {models.CategoryHealth, "doctors"},
	"dentist":  {models.CategoryHealth, "dentist"},
	"health":   {models.CategoryHealth, "clinic"},

	"park":            {models.CategoryNaturePlace, "park"},
	"natural_feature": {models.CategoryNaturePlace, "natural"},
	"campground":      {models.CategoryNaturePlace, "campground"},

	"gym":            {models.CategoryLeisure, "fitness_centre"},
	"stadium":        {models.CategoryLeisure, "stadium"},
	"amusement_park": {models.CategoryLeisure, "amusement"},
	"bowling_alley":  {models.CategoryLeisure, "bowling"},
	"movie_theater":  {models.CategoryLeisure, "cinema"},
	"spa":            {models.CategoryLeisure, "spa"},

	"restaurant":    {models.CategoryFood, "restaurant"},
	"cafe":          {models.CategoryFood, "cafe"},
	"fast_food":     {models.CategoryFood, "fast_food"},
	"bar":           {models.CategoryFood, "bar"},
	"meal_delivery": {models.CategoryFood, "delivery"},
	"meal_takeaway": {models.CategoryFood, "takeaway"},

	"bank": {models.CategoryFinance, "bank"},
	"atm":  {models.CategoryFinance, "atm"},
}

// ClassifyOpenMapTags scores an open-map tag set against the rule table and
// selects the primary category plus at most one secondary.
func ClassifyOpenMapTags(tags map[string]string) Classification {
	scores := make(map[string]float64)
	for _, rule := range openMapRules {
		value, ok := tags[rule.Key]
		if !ok {
			continue
		}
		if len(rule.Values) > 0 && !containsString(rule.Values, value) {
			continue
		}
		scores[rule.Category] += rule.Points
	}

	c := selectCategories(scores)
	if c.Primary != "" {
		c.Subcategory = openMapSubcategory(c.Primary, tags)
	}
	return c
}

// ClassifyCommercialTypes scores the commercial provider's type list. Each
// distinct mapped type adds a full point to its category the first time and
// a quarter point for further types in the same category.
func ClassifyCommercialTypes(types []string) Classification {
	scores := make(map[string]float64)
	subcats := make(map[string]string)
	for _, t := range types {
		m, ok := commercialTypeMap[t]
		if !ok {
			continue
		}
		if _, seen := subcats[m.Category]; !seen {
			scores[m.Category] += 1.0
			subcats[m.Category] = m.Subcategory
		} else {
			scores[m.Category] += 0.25
		}
	}

	c := selectCategories(scores)
	if c.Primary != "" {
		c.Subcategory = subcats[c.Primary]
	}
	return c
}

// selectCategories picks the dominant category and at most one secondary
// within the relative threshold, with a fixed priority order on ties.
func selectCategories(scores map[string]float64) Classification {
	c := Classification{Scores: scores}
	if len(scores) == 0 {
		return c
	}

	cats := make([]string, 0, len(scores))
	for cat := range scores {
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool {
		if scores[cats[i]] != scores[cats[j]] {
			return scores[cats[i]] > scores[cats[j]]
		}
		return categoryPriority[cats[i]] < categoryPriority[cats[j]]
	})

	c.Primary = cats[0]
	for _, cat := range cats[1:] {
		if scores[cat] >= secondaryThreshold*scores[c.Primary] {
			c.Secondary = []string{cat}
			break
		}
	}
	return c
}

func openMapSubcategory(category string, tags map[string]string) string {
	switch category {
	case models.CategoryShops:
		return tags["shop"]
	case models.CategoryTransport:
		switch {
		case tags["highway"] == "bus_stop":
			return "bus_stop"
		case tags["railway"] == "tram_stop":
			return "tram_stop"
		case tags["railway"] == "station":
			return "station"
		default:
			return tags["public_transport"]
		}
	case models.CategoryEducation, models.CategoryHealth,
		models.CategoryFood, models.CategoryFinance:
		return tags["amenity"]
	case models.CategoryNaturePlace:
		if v := tags["leisure"]; v != "" {
			return v
		}
		if v := tags["natural"]; v != "" {
			return v
		}
		return tags["waterway"]
	case models.CategoryLeisure:
		return tags["leisure"]
	case models.CategoryRoads:
		if v := tags["highway"]; v != "" {
			return v
		}
		return tags["railway"]
	}
	return ""
}

// subcategoryLabels provides display names for placeholder generation.
var subcategoryLabels = map[string]string{
	"supermarket":    "Supermarket",
	"convenience":    "Convenience store",
	"mall":           "Shopping mall",
	"bakery":         "Bakery",
	"bus_stop":       "Bus stop",
	"tram_stop":      "Tram stop",
	"station":        "Railway station",
	"school":         "School",
	"kindergarten":   "Kindergarten",
	"university":     "University",
	"pharmacy":       "Pharmacy",
	"doctors":        "Doctor's office",
	"hospital":       "Hospital",
	"clinic":         "Clinic",
	"park":           "Park",
	"garden":         "Garden",
	"nature_reserve": "Nature reserve",
	"playground":     "Playground",
	"fitness_centre": "Gym",
	"pitch":          "Sports pitch",
	"sports_centre":  "Sports centre",
	"stadium":        "Stadium",
	"swimming_pool":  "Swimming pool",
	"restaurant":     "Restaurant",
	"cafe":           "Cafe",
	"fast_food":      "Fast food",
	"bank":           "Bank",
	"atm":            "ATM",
}

// SubcategoryLabel returns a human-readable label for a subcategory key.
func SubcategoryLabel(subcategory string) string {
	if label, ok := subcategoryLabels[subcategory]; ok {
		return label
	}
	if subcategory == "" {
		return ""
	}
	label := strings.ReplaceAll(subcategory, "_", " ")
	return strings.ToUpper(label[:1]) + label[1:]
}

// PlaceholderName builds a display name for a nameless record from its
// subcategory label and an address fragment when available.
func PlaceholderName(subcategory, street, housenumber string) string {
	address := ""
	if street != "" {
		address = " (" + street
		if housenumber != "" {
			address += " " + housenumber
		}
		address += ")"
	}
	if label := SubcategoryLabel(subcategory); label != "" {
		return label + address
	}
	if address != "" {
		return "Unnamed place" + address
	}
	return "Unnamed place"
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
