package spatial

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCentroid(t *testing.T) {
	pts := []Point{
		{Lat: 52.0, Lon: 13.0},
		{Lat: 52.2, Lon: 13.4},
		{Lat: 52.1, Lon: 13.2},
	}
	c := Centroid(pts)
	assert.InDelta(t, 52.1, c.Lat, 1e-9)
	assert.InDelta(t, 13.2, c.Lon, 1e-9)
}

func TestCentroidEmpty(t *testing.T) {
	c := Centroid(nil)
	assert.Equal(t, Point{}, c)
}
