package boundary

import (
	"errors"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terratensor/geonorm/internal/app/geometry"
	"github.com/terratensor/geonorm/internal/app/normalize"
	"github.com/terratensor/geonorm/internal/core/domain"
)

func square(lon, lat, size float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{lon, lat}, {lon + size, lat}, {lon + size, lat + size}, {lon, lat + size}, {lon, lat},
	}}
}

func newTestIndex(opts ...Option) *Index {
	return NewIndex(normalize.DefaultTables().Resolver(), opts...)
}

func TestIndexAddReflectsIntoParents(t *testing.T) {
	ix := newTestIndex()

	require.NoError(t, ix.Add("Thành phố Hồ Chí Minh", "Quận 1", "Phường Bến Nghé", square(106.70, 10.77, 0.01)))
	require.NoError(t, ix.Add("Hồ Chí Minh", "Q.1", "Phường Bến Thành", square(106.69, 10.77, 0.01)))
	require.NoError(t, ix.Add("TP.HCM", "Quận 3", "Phường 1", square(106.68, 10.78, 0.01)))

	stats := ix.Stats()
	assert.Equal(t, 3, stats.Wards)
	assert.Equal(t, 2, stats.Districts)
	assert.Equal(t, 1, stats.Provinces)
	assert.Equal(t, 3, stats.Polygons)

	key := domain.AdminKey{Province: "hochiminh", District: "1", Ward: "bennghe"}
	ward, ok := ix.Find(domain.LevelWard, key)
	require.True(t, ok)
	assert.Equal(t, 1, ward.Shape.Polygons())
	assert.Equal(t, "Phường Bến Nghé", ward.Names.Ward)

	district, ok := ix.Find(domain.LevelDistrict, key)
	require.True(t, ok)
	assert.Equal(t, 2, district.Shape.Polygons())
	assert.True(t, district.Shape.Contains(orb.Point{106.695, 10.775}))
	assert.True(t, district.Shape.Contains(orb.Point{106.705, 10.775}))

	province, ok := ix.Find(domain.LevelProvince, key)
	require.True(t, ok)
	assert.Equal(t, 3, province.Shape.Polygons())

	// каждый участок отражён в родителях ровно один раз
	total := 0
	for _, d := range ix.DistrictsIn("hochiminh") {
		total += d.Shape.Polygons()
	}
	assert.Equal(t, province.Shape.Polygons(), total)
}

func TestIndexInsertionOrder(t *testing.T) {
	ix := newTestIndex()
	names := []string{"Phường 7", "Phường Bến Nghé", "Phường 2"}
	for i, n := range names {
		require.NoError(t, ix.Add("Hồ Chí Minh", "Quận 1", n, square(106.7+float64(i)*0.01, 10.77, 0.01)))
	}

	wards := ix.WardsIn(domain.AdminKey{Province: "hochiminh", District: "1"})
	require.Len(t, wards, 3)
	assert.Equal(t, "7", wards[0].Key.Ward)
	assert.Equal(t, "bennghe", wards[1].Key.Ward)
	assert.Equal(t, "2", wards[2].Key.Ward)
}

func TestIndexDuplicateWardMerges(t *testing.T) {
	ix := newTestIndex()
	require.NoError(t, ix.Add("Hà Nội", "Ba Đình", "Phúc Xá", square(105.84, 21.04, 0.01)))
	require.NoError(t, ix.Add("Hà Nội", "Ba Đình", "Phúc Xá", square(105.85, 21.04, 0.01)))

	key := domain.AdminKey{Province: "hanoi", District: "badinh", Ward: "phucxa"}
	ward, ok := ix.Find(domain.LevelWard, key)
	require.True(t, ok)
	assert.Equal(t, 2, ward.Shape.Polygons())
	assert.Len(t, ix.WardsIn(key), 1)

	district, _ := ix.Find(domain.LevelDistrict, key)
	assert.Equal(t, 2, district.Shape.Polygons())
	assert.Equal(t, 1, ix.Stats().Wards)
}

func TestIndexPartialHierarchy(t *testing.T) {
	ix := newTestIndex()
	require.NoError(t, ix.Add("Đà Nẵng", "Hải Châu", "", square(108.2, 16.05, 0.02)))
	require.NoError(t, ix.Add("Đà Nẵng", "", "Ghost", square(108.1, 16.0, 0.02)))

	stats := ix.Stats()
	assert.Equal(t, 0, stats.Wards)
	assert.Equal(t, 1, stats.Districts)

	province, ok := ix.Find(domain.LevelProvince, domain.AdminKey{Province: "danang"})
	require.True(t, ok)
	assert.Equal(t, 2, province.Shape.Polygons())
}

func TestIndexAddErrors(t *testing.T) {
	ix := newTestIndex(WithTargetProvinces(normalize.DefaultTargets()...))

	err := ix.Add("", "Quận 1", "Phường 1", square(0, 0, 1))
	assert.True(t, errors.Is(err, ErrNoProvince))

	err = ix.Add("Tỉnh Bình Dương", "Thủ Dầu Một", "Phú Cường", square(106.6, 11.0, 0.01))
	assert.True(t, errors.Is(err, ErrNotTarget))

	degenerate := orb.Polygon{orb.Ring{{0, 0}, {1, 1}, {2, 2}, {0, 0}}}
	err = ix.Add("Hà Nội", "Ba Đình", "Phúc Xá", degenerate)
	assert.True(t, errors.Is(err, geometry.ErrMalformedGeometry))

	assert.Equal(t, Stats{}, ix.Stats())
}

func TestIndexFindMissing(t *testing.T) {
	ix := newTestIndex()
	_, ok := ix.Find(domain.LevelWard, domain.AdminKey{Province: "hanoi", District: "x", Ward: "y"})
	assert.False(t, ok)
	_, ok = ix.Find(domain.LevelNone, domain.AdminKey{Province: "hanoi"})
	assert.False(t, ok)
}

const testCollection = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"NAME_1": "Hồ Chí Minh", "NAME_2": "Quận 1", "NAME_3": "Bến Nghé"},
     "geometry": {"type": "Polygon", "coordinates": [[[106.70,10.77],[106.71,10.77],[106.71,10.78],[106.70,10.78],[106.70,10.77]]]}},
    {"type": "Feature", "properties": {"province": "Hà Nội", "district": "Ba Đình", "ward": "Phúc Xá"},
     "geometry": {"type": "MultiPolygon", "coordinates": [[[[105.84,21.04],[105.85,21.04],[105.85,21.05],[105.84,21.05],[105.84,21.04]]]]}},
    {"type": "Feature", "properties": {"NAME_1": "Hà Nội", "NAME_2": "Ba Đình", "NAME_3": "Trúc Bạch"}, "geometry": null},
    {"type": "Feature", "properties": {"NAME_1": "Bình Dương", "NAME_2": "Dĩ An", "NAME_3": "Dĩ An"},
     "geometry": {"type": "Polygon", "coordinates": [[[106.7,10.9],[106.8,10.9],[106.8,11.0],[106.7,10.9]]]}},
    {"type": "Feature", "properties": {"NAME_1": "Đà Nẵng", "NAME_2": "Hải Châu", "NAME_3": "Bad"},
     "geometry": {"type": "Polygon", "coordinates": [[[108,16],[109,17],[110,18],[108,16]]]}},
    {"type": "Feature", "properties": {"NAME_2": "Orphan"},
     "geometry": {"type": "Polygon", "coordinates": [[[1,1],[2,1],[2,2],[1,1]]]}}
  ]
}`

func TestLoaderLoad(t *testing.T) {
	ix := newTestIndex(WithTargetProvinces(normalize.DefaultTargets()...))
	loader := NewLoader(ix, DefaultFieldAliases(), nil)

	stats, err := loader.Load(strings.NewReader(testCollection))
	require.NoError(t, err)

	assert.Equal(t, LoadStats{
		Features:   6,
		Indexed:    2,
		NoGeometry: 1,
		NoProvince: 1,
		NotTarget:  1,
		Malformed:  1,
	}, stats)

	_, ok := ix.Find(domain.LevelWard, domain.AdminKey{Province: "hochiminh", District: "1", Ward: "bennghe"})
	assert.True(t, ok)
	_, ok = ix.Find(domain.LevelWard, domain.AdminKey{Province: "hanoi", District: "badinh", Ward: "phucxa"})
	assert.True(t, ok)
}

func TestLoaderDatasetErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not json", "{oops"},
		{"wrong type", `{"type": "Feature", "features": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := NewLoader(newTestIndex(), DefaultFieldAliases(), nil)
			_, err := loader.Load(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDatasetLoad))
		})
	}
}

func TestLoaderMissingFile(t *testing.T) {
	loader := NewLoader(newTestIndex(), DefaultFieldAliases(), nil)
	_, err := loader.LoadFile(t.TempDir() + "/missing.json")
	assert.True(t, errors.Is(err, ErrDatasetLoad))
}

func TestPick(t *testing.T) {
	props := map[string]interface{}{
		"NAME_1":    "NA",
		"VARNAME_1": "Ho Chi Minh City|Saigon",
		"NAME_2":    "",
		"district":  float64(7),
	}

	assert.Equal(t, "Ho Chi Minh City", pick(props, []string{"NAME_1", "province", "VARNAME_1"}))
	assert.Equal(t, "7", pick(props, []string{"NAME_2", "district"}))
	assert.Equal(t, "", pick(props, []string{"NAME_3"}))
	assert.Equal(t, "", pick(nil, []string{"NAME_3"}))
}
