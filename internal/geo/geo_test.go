package geo

import (
	"testing"
	"time"

	"github.com/shenikar/truck_dispatch_system/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestDistanceKm_SamePoint(t *testing.T) {
	p := models.Location{Latitude: 40.0, Longitude: -74.0}
	assert.Equal(t, 0.0, DistanceKm(p, p))
}

func TestDistanceKm_OneDegreeOfLatitude(t *testing.T) {
	a := models.Location{Latitude: 0, Longitude: 0}
	b := models.Location{Latitude: 1, Longitude: 0}

	// 2*pi*R/360
	assert.InDelta(t, 111.195, DistanceKm(a, b), 0.01)
}

func TestDistanceKm_Symmetric(t *testing.T) {
	a := models.Location{Latitude: 40.0, Longitude: -74.0}
	b := models.Location{Latitude: 41.0, Longitude: -75.0}

	assert.InDelta(t, DistanceKm(a, b), DistanceKm(b, a), 1e-9)
	assert.InDelta(t, 139.69, DistanceKm(a, b), 0.05)
}

func TestTravelTime(t *testing.T) {
	assert.Equal(t, time.Hour, TravelTime(45, DefaultSpeedKmh))
	assert.Equal(t, 20*time.Minute, TravelTime(15, DefaultSpeedKmh))
	assert.Equal(t, time.Duration(0), TravelTime(0, DefaultSpeedKmh))
	assert.Equal(t, time.Duration(0), TravelTime(10, 0))
}
