package qc

import (
	"strings"

	"github.com/terratensor/geonorm/internal/core/domain"
)

// DefaultSampleLimit сколько записей хранить в выборках adjusted/failed
const DefaultSampleLimit = 50

// Counts счётчики по статусам
type Counts struct {
	Total    int `json:"total"`
	Matched  int `json:"matched"`
	Adjusted int `json:"adjusted"`
	Failed   int `json:"failed"`
}

func (c *Counts) add(status domain.GeoStatus) {
	c.Total++
	switch status {
	case domain.StatusMatched:
		c.Matched++
	case domain.StatusAdjusted:
		c.Adjusted++
	case domain.StatusFailed:
		c.Failed++
	}
}

func (c *Counts) merge(o Counts) {
	c.Total += o.Total
	c.Matched += o.Matched
	c.Adjusted += o.Adjusted
	c.Failed += o.Failed
}

// groupKey заявленные названия группы. Пустые поля у групп верхних уровней.
type groupKey struct {
	Province string
	District string
	Ward     string
}

func (k groupKey) less(o groupKey) bool {
	if k.Province != o.Province {
		return k.Province < o.Province
	}
	if k.District != o.District {
		return k.District < o.District
	}
	return k.Ward < o.Ward
}

// Aggregator накапливает статистику по пакету записей.
// Не потокобезопасен: у каждого воркера свой экземпляр, в конце они сливаются.
type Aggregator struct {
	sampleLimit int

	total      Counts
	byStatus   map[domain.GeoStatus]int
	byMethod   map[domain.GeoMethod]int
	byLevel    map[domain.Level]int
	byProvince map[groupKey]*Counts
	byDistrict map[groupKey]*Counts
	byWard     map[groupKey]*Counts

	sampleAdjusted []*domain.Listing
	sampleFailed   []*domain.Listing
	missing        map[groupKey]struct{}
}

func NewAggregator(sampleLimit int) *Aggregator {
	if sampleLimit <= 0 {
		sampleLimit = DefaultSampleLimit
	}
	return &Aggregator{
		sampleLimit: sampleLimit,
		byStatus:    make(map[domain.GeoStatus]int),
		byMethod:    make(map[domain.GeoMethod]int),
		byLevel:     make(map[domain.Level]int),
		byProvince:  make(map[groupKey]*Counts),
		byDistrict:  make(map[groupKey]*Counts),
		byWard:      make(map[groupKey]*Counts),
		missing:     make(map[groupKey]struct{}),
	}
}

// Add учитывает одну аннотированную запись
func (a *Aggregator) Add(l *domain.Listing) {
	a.total.add(l.GeoStatus)
	a.byStatus[l.GeoStatus]++
	a.byMethod[l.GeoMethod]++
	a.byLevel[l.AdminMatchLevel]++

	prov, dist, ward := groupName(l.Province), groupName(l.District), groupName(l.Ward)
	group(a.byProvince, groupKey{Province: prov}).add(l.GeoStatus)
	group(a.byDistrict, groupKey{Province: prov, District: dist}).add(l.GeoStatus)
	group(a.byWard, groupKey{Province: prov, District: dist, Ward: ward}).add(l.GeoStatus)

	switch l.GeoStatus {
	case domain.StatusAdjusted:
		if len(a.sampleAdjusted) < a.sampleLimit {
			a.sampleAdjusted = append(a.sampleAdjusted, l.Clone())
		}
	case domain.StatusFailed:
		if len(a.sampleFailed) < a.sampleLimit {
			a.sampleFailed = append(a.sampleFailed, l.Clone())
		}
	}

	// заявленный участок, для которого не нашлось полигона участка
	if strings.TrimSpace(l.Ward) != "" && l.AdminMatchLevel != domain.LevelWard {
		a.missing[groupKey{Province: prov, District: dist, Ward: ward}] = struct{}{}
	}
}

// Merge добавляет статистику другого агрегатора.
// Выборки дополняются записями other до лимита.
func (a *Aggregator) Merge(other *Aggregator) {
	a.total.merge(other.total)
	for k, v := range other.byStatus {
		a.byStatus[k] += v
	}
	for k, v := range other.byMethod {
		a.byMethod[k] += v
	}
	for k, v := range other.byLevel {
		a.byLevel[k] += v
	}
	mergeGroups(a.byProvince, other.byProvince)
	mergeGroups(a.byDistrict, other.byDistrict)
	mergeGroups(a.byWard, other.byWard)

	for _, l := range other.sampleAdjusted {
		if len(a.sampleAdjusted) >= a.sampleLimit {
			break
		}
		a.sampleAdjusted = append(a.sampleAdjusted, l)
	}
	for _, l := range other.sampleFailed {
		if len(a.sampleFailed) >= a.sampleLimit {
			break
		}
		a.sampleFailed = append(a.sampleFailed, l)
	}
	for k := range other.missing {
		a.missing[k] = struct{}{}
	}
}

// Total общие счётчики
func (a *Aggregator) Total() Counts {
	return a.total
}

func groupName(s string) string {
	return strings.TrimSpace(s)
}

func group(m map[groupKey]*Counts, key groupKey) *Counts {
	c, ok := m[key]
	if !ok {
		c = &Counts{}
		m[key] = c
	}
	return c
}

func mergeGroups(dst, src map[groupKey]*Counts) {
	for k, c := range src {
		group(dst, k).merge(*c)
	}
}
