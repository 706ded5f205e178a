package geometry

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// ErrMalformedGeometry геометрия не прошла проверку даже после починки
var ErrMalformedGeometry = errors.New("malformed geometry")

// Shape неизменяемая после построения мультиполигональная граница.
// Объединение хранится как набор полигонов-участников.
type Shape struct {
	mp    orb.MultiPolygon
	bound orb.Bound
}

// NewShape создаёт границу из уже починенного мультиполигона
func NewShape(mp orb.MultiPolygon) *Shape {
	s := &Shape{}
	s.Union(mp)
	return s
}

// Union добавляет полигоны к границе
func (s *Shape) Union(mp orb.MultiPolygon) {
	for _, p := range mp {
		if len(p) == 0 {
			continue
		}
		b := p.Bound()
		if len(s.mp) == 0 {
			s.bound = b
		} else {
			s.bound = s.bound.Union(b)
		}
		s.mp = append(s.mp, p)
	}
}

// Polygons количество полигонов-участников
func (s *Shape) Polygons() int {
	return len(s.mp)
}

// MultiPolygon возвращает геометрию границы
func (s *Shape) MultiPolygon() orb.MultiPolygon {
	return s.mp
}

// Bound ограничивающий прямоугольник
func (s *Shape) Bound() orb.Bound {
	return s.bound
}

// Contains проверяет попадание точки (lon, lat) внутрь границы.
// Точка в дыре полигона не считается попавшей.
func (s *Shape) Contains(p orb.Point) bool {
	if len(s.mp) == 0 || !s.bound.Contains(p) {
		return false
	}
	return planar.MultiPolygonContains(s.mp, p)
}

// Centroid центр масс по площади
func (s *Shape) Centroid() orb.Point {
	c, _ := planar.CentroidArea(s.mp)
	return c
}

// Repair проверяет и чинит Polygon/MultiPolygon.
// Отбрасывает нечисловые вершины и повторы подряд, замыкает кольца,
// убирает вырожденные кольца, внешние кольца ориентирует против часовой,
// дыры по часовой. Повторный вызов ничего не меняет.
func Repair(g orb.Geometry) (orb.MultiPolygon, error) {
	var polys []orb.Polygon
	switch v := g.(type) {
	case orb.Polygon:
		polys = []orb.Polygon{v}
	case orb.MultiPolygon:
		polys = v
	case nil:
		return nil, fmt.Errorf("%w: empty geometry", ErrMalformedGeometry)
	default:
		return nil, fmt.Errorf("%w: unsupported type %s", ErrMalformedGeometry, g.GeoJSONType())
	}

	out := make(orb.MultiPolygon, 0, len(polys))
	for _, poly := range polys {
		if len(poly) == 0 {
			continue
		}
		shell := repairRing(poly[0], true)
		if shell == nil {
			continue
		}
		fixed := orb.Polygon{shell}
		for _, hole := range poly[1:] {
			if h := repairRing(hole, false); h != nil {
				fixed = append(fixed, h)
			}
		}
		out = append(out, fixed)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no valid polygons", ErrMalformedGeometry)
	}
	return out, nil
}

func repairRing(r orb.Ring, ccw bool) orb.Ring {
	ring := make(orb.Ring, 0, len(r)+1)
	for _, p := range r {
		if !finite(p[0]) || !finite(p[1]) {
			continue
		}
		if len(ring) > 0 && ring[len(ring)-1] == p {
			continue
		}
		ring = append(ring, p)
	}
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	if len(ring) < 4 {
		return nil
	}

	area := signedArea(ring)
	if area == 0 {
		return nil
	}
	if (ccw && area < 0) || (!ccw && area > 0) {
		reverse(ring)
	}
	return ring
}

// signedArea площадь по формуле шнурков, положительная для обхода против часовой
func signedArea(r orb.Ring) float64 {
	var sum float64
	for i := 0; i < len(r)-1; i++ {
		sum += r[i][0]*r[i+1][1] - r[i+1][0]*r[i][1]
	}
	return sum / 2
}

func reverse(r orb.Ring) {
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
