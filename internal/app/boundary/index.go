package boundary

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/terratensor/geonorm/internal/app/geometry"
	"github.com/terratensor/geonorm/internal/app/normalize"
	"github.com/terratensor/geonorm/internal/core/domain"
)

var (
	// ErrNoProvince запись без провинции не индексируется
	ErrNoProvince = errors.New("boundary has no province name")
	// ErrNotTarget провинция вне списка обслуживаемых
	ErrNotTarget = errors.New("province is not a target")
)

// Entry граница одного уровня.
// Для района и провинции Shape является объединением всех подчинённых участков.
type Entry struct {
	Level domain.Level
	Key   domain.AdminKey
	// Names исходные названия, под которыми запись встретилась впервые
	Names domain.AdminKey
	Shape *geometry.Shape
}

// Index трёхуровневый индекс границ.
// Строится один раз, после построения только читается.
type Index struct {
	resolver *normalize.Resolver
	targets  map[string]bool

	wards     map[domain.AdminKey]*Entry
	districts map[domain.AdminKey]*Entry
	provinces map[string]*Entry

	// порядок вставки для детерминированного перебора
	wardsByDistrict    map[domain.AdminKey][]*Entry
	districtsByProv    map[string][]*Entry
	provinceOrder      []*Entry
	wardCount          int
	districtCount      int
	memberPolygonCount int
}

type Option func(*Index)

// WithTargetProvinces ограничивает индекс провинциями с указанными ключами
func WithTargetProvinces(keys ...string) Option {
	return func(ix *Index) {
		if len(keys) == 0 {
			ix.targets = nil
			return
		}
		ix.targets = make(map[string]bool, len(keys))
		for _, k := range keys {
			ix.targets[k] = true
		}
	}
}

func NewIndex(resolver *normalize.Resolver, opts ...Option) *Index {
	ix := &Index{
		resolver:        resolver,
		wards:           make(map[domain.AdminKey]*Entry),
		districts:       make(map[domain.AdminKey]*Entry),
		provinces:       make(map[string]*Entry),
		wardsByDistrict: make(map[domain.AdminKey][]*Entry),
		districtsByProv: make(map[string][]*Entry),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Resolver возвращает резолвер, которым строились ключи индекса
func (ix *Index) Resolver() *normalize.Resolver {
	return ix.resolver
}

// Add нормализует названия, чинит геометрию и кладёт её в индекс.
// Участок отражается в районе и провинции ровно один раз.
// Пустой ward индексирует запись только на уровне района и провинции,
// пустой district только на уровне провинции.
func (ix *Index) Add(province, district, ward string, g orb.Geometry) error {
	key := ix.resolver.AdminKey(province, district, ward)
	if key.Province == "" {
		return ErrNoProvince
	}
	if ix.targets != nil && !ix.targets[key.Province] {
		return fmt.Errorf("%w: %s", ErrNotTarget, key.Province)
	}
	if key.District == "" {
		key.Ward = ""
	}

	mp, err := geometry.Repair(g)
	if err != nil {
		return fmt.Errorf("failed to repair %s: %w", key, err)
	}

	names := domain.AdminKey{Province: province, District: district, Ward: ward}

	if key.Ward != "" {
		ix.addWard(key, names, mp)
	}
	if key.District != "" {
		ix.addDistrict(key.DistrictKey(), names, mp)
	}
	ix.addProvince(key.ProvinceKey(), names, mp)
	ix.memberPolygonCount += len(mp)

	return nil
}

func (ix *Index) addWard(key, names domain.AdminKey, mp orb.MultiPolygon) {
	if e, ok := ix.wards[key]; ok {
		e.Shape.Union(mp)
		return
	}
	e := &Entry{Level: domain.LevelWard, Key: key, Names: names, Shape: geometry.NewShape(mp)}
	ix.wards[key] = e
	dk := key.DistrictKey()
	ix.wardsByDistrict[dk] = append(ix.wardsByDistrict[dk], e)
	ix.wardCount++
}

func (ix *Index) addDistrict(key, names domain.AdminKey, mp orb.MultiPolygon) {
	if e, ok := ix.districts[key]; ok {
		e.Shape.Union(mp)
		return
	}
	e := &Entry{
		Level: domain.LevelDistrict,
		Key:   key,
		Names: domain.AdminKey{Province: names.Province, District: names.District},
		Shape: geometry.NewShape(mp),
	}
	ix.districts[key] = e
	ix.districtsByProv[key.Province] = append(ix.districtsByProv[key.Province], e)
	ix.districtCount++
}

func (ix *Index) addProvince(key, names domain.AdminKey, mp orb.MultiPolygon) {
	if e, ok := ix.provinces[key.Province]; ok {
		e.Shape.Union(mp)
		return
	}
	e := &Entry{
		Level: domain.LevelProvince,
		Key:   key,
		Names: domain.AdminKey{Province: names.Province},
		Shape: geometry.NewShape(mp),
	}
	ix.provinces[key.Province] = e
	ix.provinceOrder = append(ix.provinceOrder, e)
}

// Find ищет запись по точному ключу на уровне
func (ix *Index) Find(level domain.Level, key domain.AdminKey) (*Entry, bool) {
	var e *Entry
	switch level {
	case domain.LevelWard:
		e = ix.wards[key]
	case domain.LevelDistrict:
		e = ix.districts[key.DistrictKey()]
	case domain.LevelProvince:
		e = ix.provinces[key.Province]
	}
	return e, e != nil
}

// WardsIn участки района в порядке вставки
func (ix *Index) WardsIn(key domain.AdminKey) []*Entry {
	return ix.wardsByDistrict[key.DistrictKey()]
}

// DistrictsIn районы провинции в порядке вставки
func (ix *Index) DistrictsIn(province string) []*Entry {
	return ix.districtsByProv[province]
}

// Provinces провинции в порядке вставки
func (ix *Index) Provinces() []*Entry {
	return ix.provinceOrder
}

// Stats размеры индекса по уровням
type Stats struct {
	Wards     int `json:"wards"`
	Districts int `json:"districts"`
	Provinces int `json:"provinces"`
	Polygons  int `json:"polygons"`
}

func (ix *Index) Stats() Stats {
	return Stats{
		Wards:     ix.wardCount,
		Districts: ix.districtCount,
		Provinces: len(ix.provinceOrder),
		Polygons:  ix.memberPolygonCount,
	}
}
