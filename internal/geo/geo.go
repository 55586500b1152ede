package geo

import (
	"math"
	"time"

	"github.com/shenikar/truck_dispatch_system/internal/models"
)

const (
	// EarthRadiusKm средний радиус Земли
	EarthRadiusKm = 6371.0
	// DefaultSpeedKmh расчетная скорость машины в пути
	DefaultSpeedKmh = 45.0
)

// DistanceKm возвращает расстояние по дуге большого круга (формула гаверсинусов)
func DistanceKm(a, b models.Location) float64 {
	phi1 := toRadians(a.Latitude)
	phi2 := toRadians(b.Latitude)
	dPhi := toRadians(b.Latitude - a.Latitude)
	dLambda := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c
}

// TravelTime время в пути на заданное расстояние при постоянной скорости
func TravelTime(distanceKm, speedKmh float64) time.Duration {
	if speedKmh <= 0 || distanceKm <= 0 {
		return 0
	}
	hours := distanceKm / speedKmh
	return time.Duration(math.Round(hours * float64(time.Hour)))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
