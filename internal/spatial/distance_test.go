package spatial

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineDistance(t *testing.T) {
	tests := []struct {
		name       string
		lat1, lon1 float64
		lat2, lon2 float64
		expected   float64
		tolerance  float64
	}{
		{
			name: "same point",
			lat1: 52.52, lon1: 13.405,
			lat2: 52.52, lon2: 13.405,
			expected: 0, tolerance: 0.01,
		},
		{
			name: "one degree of latitude",
			lat1: 52.0, lon1: 13.0,
			lat2: 53.0, lon2: 13.0,
			expected: 111195, tolerance: 200,
		},
		{
			name: "short urban hop",
			lat1: 52.5200, lon1: 13.4050,
			lat2: 52.5210, lon2: 13.4050,
			expected: 111.2, tolerance: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := HaversineDistance(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			assert.InDelta(t, tt.expected, d, tt.tolerance)
		})
	}
}

func TestNormalizeCoords(t *testing.T) {
	lat, lon := NormalizeCoords(52.520008123, 13.404954567)
	assert.Equal(t, 52.52, lat)
	assert.Equal(t, 13.405, lon)

	// Points inside the same ~11m cell normalize to the same key.
	lat2, lon2 := NormalizeCoords(52.520041, 13.404962)
	assert.Equal(t, lat, lat2)
	assert.Equal(t, lon, lon2)
}

func TestDistanceBucket(t *testing.T) {
	assert.Equal(t, 0, DistanceBucket(19.9, 20))
	assert.Equal(t, 1, DistanceBucket(20.0, 20))
	assert.Equal(t, 5, DistanceBucket(118, 20))
	assert.Equal(t, 0, DistanceBucket(100, 0))
}
