package scoring

import (
	"strings"

	"github.com/nestscore/nest-score-go/internal/models"
)

// DecayMode selects the distance utility curve for a category.
type DecayMode string

const (
	// DecayDaily fits everyday needs like shops and transit stops, utility
	// drops off steeply past a quarter of the radius.
	DecayDaily DecayMode = "daily"
	// DecayDestination fits effortful trips like parks and schools.
	DecayDestination DecayMode = "destination"
	// DecayBackground fits ambient features like greenery and water.
	DecayBackground DecayMode = "background"
)

// defaultDecayModes assigns the curve used when a profile has no override.
var defaultDecayModes = map[string]DecayMode{
	models.CategoryShops:            DecayDaily,
	models.CategoryTransport:        DecayDaily,
	models.CategoryEducation:        DecayDestination,
	models.CategoryHealth:           DecayDestination,
	models.CategoryNaturePlace:      DecayDestination,
	models.CategoryNatureBackground: DecayBackground,
	models.CategoryLeisure:          DecayDestination,
	models.CategoryFood:             DecayDestination,
	models.CategoryFinance:          DecayDaily,
	models.CategoryCarAccess:        DecayDestination,
}

// DistanceScore maps a distance to a 0-100 utility from a 4-tier step
// function keyed to the distance/radius ratio. At or beyond the radius the
// score is 0.
func DistanceScore(distanceM, maxRadiusM float64, mode DecayMode) float64 {
	if distanceM >= maxRadiusM {
		return 0
	}
	ratio := distanceM / maxRadiusM

	switch mode {
	case DecayDaily:
		switch {
		case ratio <= 0.25:
			return 100
		case ratio <= 0.5:
			return 70
		case ratio <= 0.8:
			return 40
		default:
			return 15
		}
	case DecayDestination:
		switch {
		case ratio <= 0.3:
			return 100
		case ratio <= 0.6:
			return 75
		case ratio <= 0.9:
			return 45
		default:
			return 20
		}
	case DecayBackground:
		switch {
		case ratio <= 0.2:
			return 100
		case ratio <= 0.4:
			return 60
		case ratio <= 0.6:
			return 25
		default:
			return 10
		}
	}
	return 0
}

// VerdictThresholds hold the score boundaries between verdict levels.
type VerdictThresholds struct {
	Recommended int `json:"recommended"`
	Conditional int `json:"conditional"`
}

// Verdict returns the level name for a score.
func (t VerdictThresholds) Verdict(score float64) string {
	switch {
	case score >= float64(t.Recommended):
		return VerdictRecommended
	case score >= float64(t.Conditional):
		return VerdictConditional
	default:
		return VerdictNotRecommended
	}
}

const (
	VerdictRecommended    = "recommended"
	VerdictConditional    = "conditional"
	VerdictNotRecommended = "not_recommended"
)

// CriticalCap clamps the total score to Cap when a category scores below
// Threshold. A must-have being unmet limits how good the whole can look.
type CriticalCap struct {
	Category  string  `json:"category"`
	Threshold float64 `json:"threshold"`
	Cap       float64 `json:"cap"`
}

// ProfileConfig is the full tuning of one scoring profile.
type ProfileConfig struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Emoji       string `json:"emoji"`

	// Weights per category. Positive weights sum to ~1.0, the noise weight
	// is negative and acts as a penalty.
	Weights map[string]float64 `json:"weights"`
	RadiusM map[string]int     `json:"radius_m"`

	Thresholds   VerdictThresholds    `json:"thresholds"`
	CriticalCaps []CriticalCap        `json:"critical_caps"`
	DecayModes   map[string]DecayMode `json:"decay_modes,omitempty"`

	Version int `json:"version"`
}

// GetDecayMode returns the profile's curve for a category, falling back to
// the shared defaults.
func (p *ProfileConfig) GetDecayMode(category string) DecayMode {
	if mode, ok := p.DecayModes[category]; ok {
		return mode
	}
	if mode, ok := defaultDecayModes[category]; ok {
		return mode
	}
	return DecayDestination
}

// GetWeight returns the category weight, 0 when absent.
func (p *ProfileConfig) GetWeight(category string) float64 {
	return p.Weights[category]
}

// GetRadius returns the category radius, 1000m when absent.
func (p *ProfileConfig) GetRadius(category string) int {
	if r, ok := p.RadiusM[category]; ok {
		return r
	}
	return 1000
}

// MaxRadius returns the largest category radius, used as the shared fetch
// radius.
func (p *ProfileConfig) MaxRadius() int {
	max := 0
	for _, r := range p.RadiusM {
		if r > max {
			max = r
		}
	}
	if max == 0 {
		return 1000
	}
	return max
}

// WithRadiusOverrides derives a copy with selected category radii replaced.
// Only categories the profile already knows are overridable.
func (p *ProfileConfig) WithRadiusOverrides(overrides map[string]int) *ProfileConfig {
	if len(overrides) == 0 {
		return p
	}
	derived := *p
	derived.RadiusM = make(map[string]int, len(p.RadiusM))
	for cat, r := range p.RadiusM {
		derived.RadiusM[cat] = r
	}
	for cat, r := range overrides {
		if _, ok := derived.RadiusM[cat]; ok {
			derived.RadiusM[cat] = r
		}
	}
	return &derived
}

var profileUrban = &ProfileConfig{
	Key:         "urban",
	Name:        "City Life",
	Description: "Everything on foot, transit and dining are critical",
	Emoji:       "🏙️",
	Weights: map[string]float64{
		models.CategoryTransport:        0.25,
		models.CategoryFood:             0.18,
		models.CategoryShops:            0.16,
		models.CategoryLeisure:          0.12,
		models.CategoryHealth:           0.08,
		models.CategoryFinance:          0.05,
		models.CategoryNaturePlace:      0.06,
		models.CategoryNatureBackground: 0.03,
		models.CategoryEducation:        0.02,
		models.CategoryNoise:            -0.03,
	},
	RadiusM: map[string]int{
		models.CategoryTransport:        700,
		models.CategoryFood:             800,
		models.CategoryShops:            600,
		models.CategoryLeisure:          800,
		models.CategoryHealth:           1200,
		models.CategoryFinance:          800,
		models.CategoryNaturePlace:      900,
		models.CategoryNatureBackground: 450,
		models.CategoryEducation:        900,
	},
	Thresholds: VerdictThresholds{Recommended: 65, Conditional: 45},
	CriticalCaps: []CriticalCap{
		{Category: models.CategoryTransport, Threshold: 35, Cap: 65},
		{Category: models.CategoryFood, Threshold: 25, Cap: 75},
	},
	Version: 1,
}

var profileFamily = &ProfileConfig{
	Key:         "family",
	Name:        "Family with kids",
	Description: "Schools, healthcare and parks take priority",
	Emoji:       "👨‍👩‍👧‍👦",
	Weights: map[string]float64{
		models.CategoryEducation:        0.25,
		models.CategoryHealth:           0.16,
		models.CategoryNaturePlace:      0.16,
		models.CategoryShops:            0.14,
		models.CategoryTransport:        0.10,
		models.CategoryLeisure:          0.08,
		models.CategoryNatureBackground: 0.06,
		models.CategoryFood:             0.03,
		models.CategoryFinance:          0.02,
		models.CategoryNoise:            -0.04,
	},
	RadiusM: map[string]int{
		models.CategoryEducation:        1200,
		models.CategoryHealth:           1500,
		models.CategoryNaturePlace:      900,
		models.CategoryShops:            700,
		models.CategoryTransport:        900,
		models.CategoryLeisure:          700,
		models.CategoryNatureBackground: 450,
		models.CategoryFood:             700,
		models.CategoryFinance:          900,
	},
	Thresholds: VerdictThresholds{Recommended: 65, Conditional: 45},
	CriticalCaps: []CriticalCap{
		{Category: models.CategoryEducation, Threshold: 35, Cap: 70},
		{Category: models.CategoryNaturePlace, Threshold: 30, Cap: 75},
	},
	Version: 1,
}

var profileQuietGreen = &ProfileConfig{
	Key:         "quiet_green",
	Name:        "Quiet and green",
	Description: "Silence and greenery over services",
	Emoji:       "🌿",
	Weights: map[string]float64{
		models.CategoryNaturePlace:      0.22,
		models.CategoryNatureBackground: 0.20,
		models.CategoryNoise:            -0.12,
		models.CategoryShops:            0.12,
		models.CategoryTransport:        0.08,
		models.CategoryHealth:           0.10,
		models.CategoryLeisure:          0.10,
		models.CategoryFood:             0.05,
		models.CategoryEducation:        0.05,
		models.CategoryFinance:          0.03,
	},
	RadiusM: map[string]int{
		models.CategoryNaturePlace:      1200,
		models.CategoryNatureBackground: 500,
		models.CategoryShops:            900,
		models.CategoryTransport:        1200,
		models.CategoryHealth:           2000,
		models.CategoryLeisure:          1200,
		models.CategoryFood:             1200,
		models.CategoryEducation:        1500,
		models.CategoryFinance:          1000,
	},
	Thresholds: VerdictThresholds{Recommended: 65, Conditional: 45},
	CriticalCaps: []CriticalCap{
		{Category: models.CategoryNoise, Threshold: 40, Cap: 60},
		{Category: models.CategoryNatureBackground, Threshold: 35, Cap: 75},
	},
	Version: 1,
}

var profileRemoteWork = &ProfileConfig{
	Key:         "remote_work",
	Name:        "Home Office",
	Description: "Daytime quiet with essentials nearby",
	Emoji:       "💻",
	Weights: map[string]float64{
		models.CategoryNoise:            -0.10,
		models.CategoryShops:            0.18,
		models.CategoryHealth:           0.14,
		models.CategoryNatureBackground: 0.12,
		models.CategoryNaturePlace:      0.10,
		models.CategoryTransport:        0.10,
		models.CategoryFood:             0.08,
		models.CategoryLeisure:          0.10,
		models.CategoryEducation:        0.03,
		models.CategoryFinance:          0.05,
	},
	RadiusM: map[string]int{
		models.CategoryShops:            700,
		models.CategoryHealth:           1500,
		models.CategoryNatureBackground: 450,
		models.CategoryNaturePlace:      900,
		models.CategoryTransport:        1000,
		models.CategoryFood:             900,
		models.CategoryLeisure:          900,
		models.CategoryEducation:        1200,
		models.CategoryFinance:          800,
	},
	Thresholds: VerdictThresholds{Recommended: 65, Conditional: 45},
	CriticalCaps: []CriticalCap{
		{Category: models.CategoryNoise, Threshold: 45, Cap: 70},
	},
	Version: 1,
}

var profileActiveSport = &ProfileConfig{
	Key:         "active_sport",
	Name:        "Active lifestyle",
	Description: "Routes, greenery and sports venues",
	Emoji:       "🏃",
	Weights: map[string]float64{
		models.CategoryLeisure:          0.22,
		models.CategoryNaturePlace:      0.18,
		models.CategoryNatureBackground: 0.14,
		models.CategoryShops:            0.12,
		models.CategoryHealth:           0.10,
		models.CategoryTransport:        0.08,
		models.CategoryFood:             0.06,
		models.CategoryNoise:            -0.05,
		models.CategoryFinance:          0.05,
		models.CategoryEducation:        0.0,
	},
	RadiusM: map[string]int{
		models.CategoryLeisure:          1200,
		models.CategoryNaturePlace:      1200,
		models.CategoryNatureBackground: 500,
		models.CategoryShops:            800,
		models.CategoryTransport:        1000,
		models.CategoryHealth:           1800,
		models.CategoryFood:             900,
		models.CategoryFinance:          1000,
		models.CategoryEducation:        1500,
	},
	Thresholds:   VerdictThresholds{Recommended: 65, Conditional: 45},
	CriticalCaps: []CriticalCap{},
	Version:      1,
}

var profileCarFirst = &ProfileConfig{
	Key:         "car_first",
	Name:        "Car and suburbs",
	Description: "Public transit matters less, driving access and calm count",
	Emoji:       "🚗",
	Weights: map[string]float64{
		models.CategoryCarAccess:        0.20,
		models.CategoryNoise:            -0.08,
		models.CategoryShops:            0.16,
		models.CategoryHealth:           0.12,
		models.CategoryNaturePlace:      0.10,
		models.CategoryNatureBackground: 0.10,
		models.CategoryLeisure:          0.10,
		models.CategoryTransport:        0.06,
		models.CategoryEducation:        0.10,
		models.CategoryFood:             0.04,
		models.CategoryFinance:          0.02,
	},
	RadiusM: map[string]int{
		models.CategoryShops:            1200,
		models.CategoryHealth:           2500,
		models.CategoryEducation:        2000,
		models.CategoryTransport:        1500,
		models.CategoryNaturePlace:      1500,
		models.CategoryNatureBackground: 600,
		models.CategoryLeisure:          1500,
		models.CategoryFood:             1200,
		models.CategoryFinance:          1200,
		models.CategoryCarAccess:        1000,
	},
	Thresholds: VerdictThresholds{Recommended: 65, Conditional: 45},
	CriticalCaps: []CriticalCap{
		{Category: models.CategoryCarAccess, Threshold: 35, Cap: 70},
	},
	Version: 1,
}

var profileInvestor = &ProfileConfig{
	Key:         "investor",
	Name:        "Investor",
	Description: "Rental potential: transit, infrastructure, universities",
	Emoji:       "💰",
	Weights: map[string]float64{
		models.CategoryTransport:        0.25,
		models.CategoryShops:            0.18,
		models.CategoryEducation:        0.15,
		models.CategoryFood:             0.12,
		models.CategoryHealth:           0.08,
		models.CategoryFinance:          0.08,
		models.CategoryLeisure:          0.06,
		models.CategoryNaturePlace:      0.04,
		models.CategoryNatureBackground: 0.02,
		models.CategoryNoise:            -0.02,
	},
	RadiusM: map[string]int{
		models.CategoryTransport:        800,
		models.CategoryShops:            700,
		models.CategoryEducation:        1500,
		models.CategoryFood:             900,
		models.CategoryHealth:           1500,
		models.CategoryFinance:          800,
		models.CategoryLeisure:          1000,
		models.CategoryNaturePlace:      1200,
		models.CategoryNatureBackground: 500,
	},
	// Lower bars, an investor looks at yield, not comfort.
	Thresholds: VerdictThresholds{Recommended: 60, Conditional: 40},
	CriticalCaps: []CriticalCap{
		{Category: models.CategoryTransport, Threshold: 30, Cap: 65},
	},
	Version: 1,
}

// DefaultProfileKey is used when a request names no profile or an unknown one.
const DefaultProfileKey = "family"

var profileRegistry = map[string]*ProfileConfig{
	"urban":        profileUrban,
	"family":       profileFamily,
	"quiet_green":  profileQuietGreen,
	"remote_work":  profileRemoteWork,
	"active_sport": profileActiveSport,
	"car_first":    profileCarFirst,
	"investor":     profileInvestor,
}

// profileOrder keeps listing output stable.
var profileOrder = []string{
	"urban", "family", "quiet_green", "remote_work",
	"active_sport", "car_first", "investor",
}

// GetProfile returns the profile for a key, falling back to the default for
// unknown keys.
func GetProfile(key string) *ProfileConfig {
	if p, ok := profileRegistry[strings.ToLower(key)]; ok {
		return p
	}
	return profileRegistry[DefaultProfileKey]
}

// KnownProfile reports whether the key names a registered profile.
func KnownProfile(key string) bool {
	_, ok := profileRegistry[strings.ToLower(key)]
	return ok
}

// AllProfiles lists every registered profile in a stable order.
func AllProfiles() []*ProfileConfig {
	out := make([]*ProfileConfig, 0, len(profileOrder))
	for _, key := range profileOrder {
		out = append(out, profileRegistry[key])
	}
	return out
}

// CategoryNames are the display names used in verdict and highlight text.
var CategoryNames = map[string]string{
	models.CategoryShops:            "Shops",
	models.CategoryTransport:        "Public transport",
	models.CategoryEducation:        "Education",
	models.CategoryHealth:           "Healthcare",
	models.CategoryNaturePlace:      "Parks and gardens",
	models.CategoryNatureBackground: "Surrounding greenery",
	models.CategoryLeisure:          "Sports and recreation",
	models.CategoryFood:             "Dining",
	models.CategoryFinance:          "Banks and finance",
	models.CategoryNoise:            "Noise level",
	models.CategoryCarAccess:        "Car access",
}

// CategoryName returns the display name, falling back to the raw key.
func CategoryName(category string) string {
	if name, ok := CategoryNames[category]; ok {
		return name
	}
	return category
}
