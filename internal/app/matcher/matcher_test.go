package matcher

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terratensor/geonorm/internal/app/boundary"
	"github.com/terratensor/geonorm/internal/app/normalize"
	"github.com/terratensor/geonorm/internal/core/domain"
)

func square(lon, lat, size float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{lon, lat}, {lon + size, lat}, {lon + size, lat + size}, {lon, lat + size}, {lon, lat},
	}}
}

func newTestMatcher(t *testing.T) *Matcher {
	t.Helper()
	ix := boundary.NewIndex(normalize.DefaultTables().Resolver())

	records := []struct {
		province, district, ward string
		poly                     orb.Polygon
	}{
		{"Hồ Chí Minh", "Quận 1", "Phường Bến Nghé", square(106.70, 10.77, 0.01)},
		{"Hồ Chí Minh", "Quận 1", "Phường Bến Thành", square(106.69, 10.77, 0.01)},
		{"Hồ Chí Minh", "Quận 3", "Phường 07", square(106.68, 10.78, 0.01)},
		{"Hồ Chí Minh", "Quận 3", "Phường 12", square(106.67, 10.78, 0.01)},
		{"Hồ Chí Minh", "Thành phố Thủ Đức", "Phường Thảo Điền", square(106.73, 10.80, 0.01)},
		{"Hà Nội", "Quận Ba Đình", "Phường Phúc Xá", square(105.84, 21.04, 0.01)},
		{"Hà Nội", "Quận Hoàn Kiếm", "Phường Hàng Bạc", square(105.85, 21.03, 0.01)},
		{"Đà Nẵng", "Quận Hải Châu", "", square(108.21, 16.05, 0.02)},
	}
	for _, r := range records {
		require.NoError(t, ix.Add(r.province, r.district, r.ward, r.poly))
	}
	return New(ix)
}

func TestMatchChain(t *testing.T) {
	m := newTestMatcher(t)

	tests := []struct {
		name                     string
		province, district, ward string
		wantLevel                domain.Level
		wantStep                 Step
		wantKey                  string
	}{
		{"exact ward", "TP.HCM", "Q.1", "P. Bến Nghé", domain.LevelWard, StepWardExact, "hochiminh|1|bennghe"},
		{"exact numeric ward", "Hồ Chí Minh", "Quận 3", "Phường 7", domain.LevelWard, StepWardExact, "hochiminh|3|7"},
		{"numeric ward", "Hồ Chí Minh", "Quận 3", "Phường số 7", domain.LevelWard, StepWardNumeric, "hochiminh|3|7"},
		{"numeric ward with extra text", "Hồ Chí Minh", "Quận 3", "P12 cũ", domain.LevelWard, StepWardNumeric, "hochiminh|3|12"},
		{"ward contains", "Hồ Chí Minh", "Quận 1", "Nghé", domain.LevelWard, StepWardContains, "hochiminh|1|bennghe"},
		{"district exact", "Hồ Chí Minh", "Quận 1", "Phường Đa Kao", domain.LevelDistrict, StepDistrictExact, "hochiminh|1"},
		{"district only", "Đà Nẵng", "Hải Châu", "Phường Thạch Thang", domain.LevelDistrict, StepDistrictExact, "danang|haichau"},
		{"district contains", "Hồ Chí Minh", "Thủ", "", domain.LevelDistrict, StepDistrictContains, "hochiminh|thuduc"},
		{"province fallback", "Hà Nội", "Quận Tây Hồ", "Phường Quảng An", domain.LevelProvince, StepProvinceExact, "hanoi"},
		{"province only claim", "Sài Gòn", "", "", domain.LevelProvince, StepProvinceExact, "hochiminh"},
		{"no district skips ward", "Hà Nội", "", "Phường Phúc Xá", domain.LevelProvince, StepProvinceExact, "hanoi"},
		{"unknown province", "Cần Thơ", "Ninh Kiều", "Tân An", domain.LevelNone, StepNone, ""},
		{"empty", "", "", "", domain.LevelNone, StepNone, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := m.Match(tt.province, tt.district, tt.ward)
			assert.Equal(t, tt.wantLevel, res.Level)
			assert.Equal(t, tt.wantStep, res.Step, "step %s", res.Step)
			if tt.wantKey == "" {
				assert.Nil(t, res.Entry)
				return
			}
			require.NotNil(t, res.Entry)
			assert.Equal(t, tt.wantKey, res.Entry.Key.String())
		})
	}
}

func TestMatchNumericWardScopedToDistrict(t *testing.T) {
	m := newTestMatcher(t)

	// в Quận 1 нет участка с номером 7, а в Quận 3 есть
	res := m.Match("Hồ Chí Minh", "Quận 1", "Phường 7")
	assert.Equal(t, domain.LevelDistrict, res.Level)
	assert.Equal(t, "hochiminh|1", res.Entry.Key.String())
}

func TestMatchFallbackMonotonic(t *testing.T) {
	m := newTestMatcher(t)

	claims := [][3]string{
		{"Hồ Chí Minh", "Quận 1", "Phường Bến Nghé"},
		{"Hồ Chí Minh", "Quận 3", "Phường 7"},
		{"Hà Nội", "Quận Ba Đình", "Phường Phúc Xá"},
		{"Hà Nội", "Quận Hoàn Kiếm", "Phường Hàng Bạc"},
	}

	for _, c := range claims {
		full := m.Match(c[0], c[1], c[2])
		require.Equal(t, domain.LevelWard, full.Level, "%v", c)

		// искажение участка опускает уровень не ниже района
		wrongWard := m.Match(c[0], c[1], "Phường Không Tồn Tại")
		assert.Equal(t, domain.LevelDistrict, wrongWard.Level, "%v", c)

		// искажение и района опускает уровень до провинции
		wrongBoth := m.Match(c[0], "Quận Không Tồn Tại", "Phường Không Tồn Tại")
		assert.Equal(t, domain.LevelProvince, wrongBoth.Level, "%v", c)

		assert.GreaterOrEqual(t, full.Level.Rank(), wrongWard.Level.Rank())
		assert.GreaterOrEqual(t, wrongWard.Level.Rank(), wrongBoth.Level.Rank())
	}
}

func TestMatchDeterministic(t *testing.T) {
	m := newTestMatcher(t)
	first := m.Match("Hồ Chí Minh", "Quận 1", "Bến")
	for i := 0; i < 20; i++ {
		again := m.Match("Hồ Chí Minh", "Quận 1", "Bến")
		assert.Same(t, first.Entry, again.Entry)
	}
	// первым в индекс добавлен Bến Nghé
	assert.Equal(t, "bennghe", first.Entry.Key.Ward)
}

func TestStepString(t *testing.T) {
	assert.Equal(t, "ward_numeric", StepWardNumeric.String())
	assert.Equal(t, "none", StepNone.String())
}
