package pipeline

import (
	"github.com/golang/geo/s2"
	"github.com/terratensor/geonorm/internal/core/domain"
)

// CellToken S2 токен ячейки заданного уровня для координаты
func CellToken(lat, lon float64, level int) string {
	if level < 0 || level > s2.MaxLevel {
		return ""
	}
	cellID := s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lon))

	// Получаем родительскую ячейку нужного уровня
	return cellID.Parent(level).ToToken()
}

// assignCell заполняет geo_cell по итоговой координате
func assignCell(l *domain.Listing, level int) {
	if !l.HasCoordinate || (l.Latitude == 0 && l.Longitude == 0) {
		l.GeoCell = ""
		return
	}
	l.GeoCell = CellToken(l.Latitude, l.Longitude, level)
}
