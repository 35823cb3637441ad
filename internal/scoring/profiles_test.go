package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nestscore/nest-score-go/internal/models"
)

func TestAllProfilesPositiveWeightsNearOne(t *testing.T) {
	// The aggregation normalizes by the positive-weight sum, so the sums
	// don't have to hit 1.0 exactly, but a badly off sum means a typo.
	for _, profile := range AllProfiles() {
		sum := 0.0
		for _, w := range profile.Weights {
			if w > 0 {
				sum += w
			}
		}
		assert.GreaterOrEqual(t, sum, 0.85, "profile %s", profile.Key)
		assert.LessOrEqual(t, sum, 1.05, "profile %s", profile.Key)
	}
}

func TestAllProfilesNoiseWeightIsNonPositive(t *testing.T) {
	for _, profile := range AllProfiles() {
		assert.LessOrEqual(t, profile.Weights[models.CategoryNoise], 0.0, "profile %s", profile.Key)
	}
}

func TestAllProfilesWeightedCategoriesHaveRadii(t *testing.T) {
	for _, profile := range AllProfiles() {
		for category, weight := range profile.Weights {
			if weight <= 0 || category == models.CategoryNoise {
				continue
			}
			_, ok := profile.RadiusM[category]
			assert.True(t, ok, "profile %s has no radius for weighted category %s", profile.Key, category)
		}
	}
}

func TestAllProfilesCapsReferenceWeightedCategories(t *testing.T) {
	for _, profile := range AllProfiles() {
		for _, cap := range profile.CriticalCaps {
			w, ok := profile.Weights[cap.Category]
			assert.True(t, ok, "profile %s caps unweighted category %s", profile.Key, cap.Category)
			if cap.Category != models.CategoryNoise {
				assert.Greater(t, w, 0.0, "profile %s caps zero-weight category %s", profile.Key, cap.Category)
			}
			assert.Greater(t, cap.Cap, cap.Threshold, "profile %s cap below its own threshold", profile.Key)
		}
	}
}

func TestAllProfilesThresholdsOrdered(t *testing.T) {
	for _, profile := range AllProfiles() {
		assert.Greater(t, profile.Thresholds.Recommended, profile.Thresholds.Conditional, "profile %s", profile.Key)
	}
}

func TestGetProfileFallsBackToFamily(t *testing.T) {
	assert.Equal(t, "family", GetProfile("").Key)
	assert.Equal(t, "family", GetProfile("no_such_profile").Key)
	assert.Equal(t, "urban", GetProfile("URBAN").Key)
	assert.Equal(t, "investor", GetProfile("investor").Key)
}

func TestKnownProfile(t *testing.T) {
	assert.True(t, KnownProfile("family"))
	assert.True(t, KnownProfile("quiet_green"))
	assert.False(t, KnownProfile("penthouse"))
}

func TestAllProfilesCount(t *testing.T) {
	profiles := AllProfiles()
	require.Len(t, profiles, 7)

	seen := make(map[string]bool)
	for _, p := range profiles {
		assert.False(t, seen[p.Key], "duplicate profile key %s", p.Key)
		seen[p.Key] = true
		assert.NotEmpty(t, p.Name)
		assert.NotEmpty(t, p.Emoji)
		assert.Positive(t, p.Version)
	}
}

func TestGetRadiusDefault(t *testing.T) {
	profile := GetProfile("family")
	assert.Equal(t, 1000, profile.GetRadius("no_such_category"))
}

func TestMaxRadiusCoversAllCategories(t *testing.T) {
	for _, profile := range AllProfiles() {
		max := profile.MaxRadius()
		for category, r := range profile.RadiusM {
			assert.GreaterOrEqual(t, max, r, "profile %s category %s", profile.Key, category)
		}
	}
}

func TestWithRadiusOverrides(t *testing.T) {
	base := GetProfile("family")
	original := base.GetRadius(models.CategoryShops)

	derived := base.WithRadiusOverrides(map[string]int{
		models.CategoryShops: 250,
		"made_up_category":   999,
	})

	assert.Equal(t, 250, derived.GetRadius(models.CategoryShops))
	assert.Equal(t, 1000, derived.GetRadius("made_up_category"))

	// The registry copy is untouched.
	assert.Equal(t, original, base.GetRadius(models.CategoryShops))
	assert.Equal(t, original, GetProfile("family").GetRadius(models.CategoryShops))
}

func TestWithRadiusOverridesNilIsNoop(t *testing.T) {
	base := GetProfile("urban")
	assert.Same(t, base, base.WithRadiusOverrides(nil))
}

func TestDecayModeDefaults(t *testing.T) {
	profile := GetProfile("family")

	assert.Equal(t, DecayDaily, profile.GetDecayMode(models.CategoryShops))
	assert.Equal(t, DecayDestination, profile.GetDecayMode(models.CategoryEducation))
	assert.Equal(t, DecayBackground, profile.GetDecayMode(models.CategoryNatureBackground))
	assert.Equal(t, DecayDestination, profile.GetDecayMode("unknown"))
}
