package geometry

import "github.com/paulmach/orb"

// DefaultSampleAttempts число попыток случайной выборки до отката к центроиду
const DefaultSampleAttempts = 100

// Rand источник равномерных чисел в [0, 1). *math/rand.Rand подходит.
type Rand interface {
	Float64() float64
}

// SampleInterior выбирает случайную точку внутри границы.
// Точки берутся равномерно из ограничивающего прямоугольника, первая
// попавшая внутрь выигрывает. Если все попытки промахнулись, возвращается
// центроид и false.
func (s *Shape) SampleInterior(rng Rand, attempts int) (orb.Point, bool) {
	if attempts <= 0 {
		attempts = DefaultSampleAttempts
	}

	b := s.bound
	for i := 0; i < attempts; i++ {
		p := orb.Point{
			b.Min[0] + rng.Float64()*(b.Max[0]-b.Min[0]),
			b.Min[1] + rng.Float64()*(b.Max[1]-b.Min[1]),
		}
		if s.Contains(p) {
			return p, true
		}
	}

	return s.Centroid(), false
}
