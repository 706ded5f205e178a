package classify

import (
	"math"

	"github.com/terratensor/geonorm/internal/core/domain"
)

// Грубые границы Вьетнама для поиска перепутанных координат
const (
	vnMinLat = 8.0
	vnMaxLat = 24.0
	vnMinLon = 102.0
	vnMaxLon = 110.0
)

// Sanitize извлекает координату записи.
// Отсутствующие, нечисловые, нулевые и вне диапазона значения недействительны.
func Sanitize(l *domain.Listing) Coordinate {
	c := Coordinate{Lat: l.Latitude, Lon: l.Longitude}
	c.Valid = l.HasCoordinate && ValidCoordinate(l.Latitude, l.Longitude)
	return c
}

// ValidCoordinate false для NaN, бесконечностей, нулей и значений вне диапазона
func ValidCoordinate(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	if lat == 0 || lon == 0 {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// InVietnam попадает ли точка в ограничивающий прямоугольник Вьетнама
func InVietnam(lat, lon float64) bool {
	return lat >= vnMinLat && lat <= vnMaxLat && lon >= vnMinLon && lon <= vnMaxLon
}

// IsSwapped true, если точка вне Вьетнама, а с переставленными осями внутри
func IsSwapped(lat, lon float64) bool {
	return !InVietnam(lat, lon) && InVietnam(lon, lat)
}
