package geo

import (
	"github.com/nestscore/nest-score-go/internal/models"
)

// Membership whitelists. Classification is deliberately permissive, these
// are the stricter post-merge checks keyed by provenance vocabulary.

var foodOpenMapAmenities = stringSet(
	"restaurant", "cafe", "fast_food", "bar", "pub",
	"ice_cream", "food_court", "biergarten",
)

var foodOpenMapShops = stringSet(
	"bakery", "confectionery", "deli", "butcher", "greengrocer",
	"convenience", "supermarket", "grocery", "cheese", "seafood",
	"pastry", "coffee", "tea", "wine", "alcohol", "beverages",
)

var foodCommercialTypes = stringSet(
	"restaurant", "cafe", "meal_takeaway", "meal_delivery",
	"bakery", "bar", "food", "grocery_or_supermarket",
)

var healthOpenMapAmenities = stringSet(
	"pharmacy", "doctors", "hospital", "clinic", "dentist",
	"veterinary", "optician",
)

var healthOpenMapShops = stringSet(
	"optician", "medical_supply", "hearing_aids",
)

var healthCommercialTypes = stringSet(
	"pharmacy", "hospital", "doctor", "dentist", "health",
	"physiotherapist", "veterinary_care",
)

var educationOpenMapAmenities = stringSet(
	"school", "kindergarten", "university", "college", "library",
	"language_school", "music_school", "driving_school", "training",
)

var educationCommercialTypes = stringSet(
	"school", "primary_school", "secondary_school", "university",
	"library", "preschool",
)

// ValidateCategoryMembership reports whether the POI genuinely belongs to
// the category, using the whitelist matching its provenance. Categories
// without a strict whitelist trust the classifier.
func ValidateCategoryMembership(poi *models.POI, category string) bool {
	switch poi.Source {
	case models.SourceCommercial, models.SourceCommercialFallback,
		models.SourceCommercialEnriched, models.SourceMerged:
		switch category {
		case models.CategoryFood:
			return intersects(poi.Types, foodCommercialTypes)
		case models.CategoryHealth:
			return intersects(poi.Types, healthCommercialTypes)
		case models.CategoryEducation:
			return intersects(poi.Types, educationCommercialTypes)
		}
		return true
	}

	amenity := poi.Tags["amenity"]
	shop := poi.Tags["shop"]
	switch category {
	case models.CategoryFood:
		return foodOpenMapAmenities[amenity] || foodOpenMapShops[shop]
	case models.CategoryHealth:
		return healthOpenMapAmenities[amenity] || healthOpenMapShops[shop]
	case models.CategoryEducation:
		return educationOpenMapAmenities[amenity]
	}
	return true
}

// FilterByMembership drops POIs failing their category's whitelist. Applied
// per category independently, a double-classified POI can survive in one
// list and be dropped from another.
func FilterByMembership(pois map[string][]*models.POI) map[string][]*models.POI {
	result := make(map[string][]*models.POI, len(pois))
	for category, items := range pois {
		valid := make([]*models.POI, 0, len(items))
		for _, poi := range items {
			if ValidateCategoryMembership(poi, category) {
				valid = append(valid, poi)
			}
		}
		result[category] = valid
	}
	return result
}

// FilterByRadius keeps only POIs within each category's own radius. Distinct
// from the fetch radius, which is the maximum across categories to allow one
// shared fetch.
func FilterByRadius(pois map[string][]*models.POI, radiusByCategory map[string]int, defaultRadius int) map[string][]*models.POI {
	result := make(map[string][]*models.POI, len(pois))
	for category, items := range pois {
		maxDistance := defaultRadius
		if r, ok := radiusByCategory[category]; ok {
			maxDistance = r
		}
		kept := make([]*models.POI, 0, len(items))
		for _, poi := range items {
			if poi.DistanceM <= float64(maxDistance) {
				kept = append(kept, poi)
			}
		}
		result[category] = kept
	}
	return result
}

// ComputeCoverage counts POIs per category after radius filtering.
func ComputeCoverage(pois map[string][]*models.POI, radiusByCategory map[string]int, defaultRadius int) map[string]int {
	filtered := FilterByRadius(pois, radiusByCategory, defaultRadius)
	coverage := make(map[string]int, len(filtered))
	for category, items := range filtered {
		coverage[category] = len(items)
	}
	return coverage
}

func stringSet(values ...string) map[string]bool {
	s := make(map[string]bool, len(values))
	for _, v := range values {
		s[v] = true
	}
	return s
}

func intersects(values []string, set map[string]bool) bool {
	for _, v := range values {
		if set[v] {
			return true
		}
	}
	return false
}
