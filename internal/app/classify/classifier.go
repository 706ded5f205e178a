package classify

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/terratensor/geonorm/internal/app/boundary"
	"github.com/terratensor/geonorm/internal/app/geometry"
	"github.com/terratensor/geonorm/internal/app/matcher"
	"github.com/terratensor/geonorm/internal/core/domain"
)

// Rand источник случайных чисел для выборки внутренней точки
type Rand = geometry.Rand

// Options настройки классификатора
type Options struct {
	// MatchedMethod метод для подтверждённых координат: verified или unchanged
	MatchedMethod domain.GeoMethod
	// SampleAttempts попыток случайной выборки до отката к центроиду
	SampleAttempts int
	// Precision знаков после запятой у исправленных координат
	Precision int
	// DetectSwap помечать координаты, перепутанные местами
	DetectSwap bool
}

func DefaultOptions() Options {
	return Options{
		MatchedMethod:  domain.MethodVerified,
		SampleAttempts: geometry.DefaultSampleAttempts,
		Precision:      6,
	}
}

// Coordinate координата записи. Valid false для отсутствующих и нулевых значений.
type Coordinate struct {
	Lat   float64
	Lon   float64
	Valid bool
}

// Outcome итог классификации одной точки
type Outcome struct {
	Status   domain.GeoStatus
	Method   domain.GeoMethod
	Lat      float64
	Lon      float64
	Adjusted bool
	Reason   string
}

// Classifier решает, оставить координату или заменить точкой внутри полигона
type Classifier struct {
	opts Options
}

func New(opts Options) *Classifier {
	if opts.MatchedMethod == "" {
		opts.MatchedMethod = domain.MethodVerified
	}
	if opts.SampleAttempts <= 0 {
		opts.SampleAttempts = geometry.DefaultSampleAttempts
	}
	if opts.Precision <= 0 {
		opts.Precision = 6
	}
	return &Classifier{opts: opts}
}

// Classify проверяет координату против найденной границы.
// Без границы запись failed. Точка внутри границы matched. Иначе координата
// заменяется центроидом, если он внутри, или случайной внутренней точкой.
func (c *Classifier) Classify(coord Coordinate, entry *boundary.Entry, rng Rand) Outcome {
	if entry == nil || entry.Shape == nil {
		return Outcome{
			Status: domain.StatusFailed,
			Method: domain.MethodNoPolygon,
			Lat:    coord.Lat,
			Lon:    coord.Lon,
			Reason: "no boundary found for claimed location",
		}
	}

	if coord.Valid && entry.Shape.Contains(orb.Point{coord.Lon, coord.Lat}) {
		return Outcome{
			Status: domain.StatusMatched,
			Method: c.opts.MatchedMethod,
			Lat:    coord.Lat,
			Lon:    coord.Lon,
		}
	}

	out := Outcome{
		Status:   domain.StatusAdjusted,
		Adjusted: true,
		Reason:   c.reason(coord, entry.Level),
	}

	p := entry.Shape.Centroid()
	if entry.Shape.Contains(p) {
		out.Method = domain.MethodCentroid
	} else if sampled, ok := entry.Shape.SampleInterior(rng, c.opts.SampleAttempts); ok {
		out.Method = domain.MethodRandomInterior
		p = sampled
	} else {
		out.Method = domain.MethodCentroid
	}

	p = c.round(entry.Shape, p)
	out.Lon, out.Lat = p[0], p[1]
	return out
}

func (c *Classifier) reason(coord Coordinate, level domain.Level) string {
	switch {
	case c.opts.DetectSwap && IsSwapped(coord.Lat, coord.Lon):
		return fmt.Sprintf("latitude and longitude swapped, moved into %s boundary", level)
	case !coord.Valid:
		return fmt.Sprintf("missing coordinate, moved into %s boundary", level)
	}
	return fmt.Sprintf("coordinate outside %s boundary", level)
}

// round округляет точку, если округлённая точка осталась внутри границы
func (c *Classifier) round(shape *geometry.Shape, p orb.Point) orb.Point {
	r := orb.Point{Round(p[0], c.opts.Precision), Round(p[1], c.opts.Precision)}
	if shape.Contains(r) {
		return r
	}
	return p
}

// Apply классифицирует запись и записывает результат в неё.
// Исходная координата сохраняется при замене.
func (c *Classifier) Apply(l *domain.Listing, res matcher.Result, rng Rand) {
	coord := Sanitize(l)
	out := c.Classify(coord, res.Entry, rng)

	l.Keys = res.Keys
	l.AdminMatchLevel = res.Level
	l.GeoStatus = out.Status
	l.GeoMethod = out.Method
	l.MismatchReason = out.Reason

	if !out.Adjusted {
		return
	}

	// каждая сторона сохраняется отдельно, даже если пара неполная
	if l.LatitudeKnown() {
		origLat := l.Latitude
		l.OriginalLatitude = &origLat
	}
	if l.LongitudeKnown() {
		origLon := l.Longitude
		l.OriginalLongitude = &origLon
	}
	l.Latitude = out.Lat
	l.Longitude = out.Lon
	l.HasCoordinate = true
	l.HasLatitude, l.HasLongitude = false, false
}

// Round округляет до заданного числа знаков
func Round(v float64, precision int) float64 {
	pow := math.Pow(10, float64(precision))
	return math.Round(v*pow) / pow
}
