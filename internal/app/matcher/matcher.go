package matcher

import (
	"strings"

	"github.com/terratensor/geonorm/internal/app/boundary"
	"github.com/terratensor/geonorm/internal/app/normalize"
	"github.com/terratensor/geonorm/internal/core/domain"
)

// Step шаг цепочки, на котором найден полигон
type Step int

const (
	StepNone Step = iota
	StepWardExact
	StepWardNumeric
	StepWardContains
	StepDistrictExact
	StepDistrictContains
	StepProvinceExact
)

var stepNames = map[Step]string{
	StepNone:             "none",
	StepWardExact:        "ward_exact",
	StepWardNumeric:      "ward_numeric",
	StepWardContains:     "ward_contains",
	StepDistrictExact:    "district_exact",
	StepDistrictContains: "district_contains",
	StepProvinceExact:    "province_exact",
}

func (s Step) String() string {
	return stepNames[s]
}

// Result итог сопоставления. Entry nil, если ничего не найдено.
type Result struct {
	Entry *boundary.Entry
	Level domain.Level
	Step  Step
	Keys  domain.AdminKey
}

// Matcher ищет самый специфичный полигон для заявленного адреса
type Matcher struct {
	index    *boundary.Index
	resolver *normalize.Resolver
}

func New(index *boundary.Index) *Matcher {
	return &Matcher{index: index, resolver: index.Resolver()}
}

// Match проходит цепочку от участка к провинции и останавливается на первом
// успехе. Кандидаты перебираются в порядке вставки в индекс.
func (m *Matcher) Match(province, district, ward string) Result {
	return m.MatchKeys(m.resolver.AdminKey(province, district, ward))
}

// MatchKeys то же, что Match, для уже нормализованных ключей
func (m *Matcher) MatchKeys(keys domain.AdminKey) Result {
	if keys.Province == "" {
		return Result{Level: domain.LevelNone, Keys: keys}
	}

	if keys.District != "" {
		if e := m.matchWard(keys); e != nil {
			return e.withKeys(keys)
		}
		if e, ok := m.index.Find(domain.LevelDistrict, keys); ok {
			return found(e, StepDistrictExact, keys)
		}
		for _, e := range m.index.DistrictsIn(keys.Province) {
			if strings.Contains(e.Key.District, keys.District) {
				return found(e, StepDistrictContains, keys)
			}
		}
	}

	if e, ok := m.index.Find(domain.LevelProvince, keys); ok {
		return found(e, StepProvinceExact, keys)
	}

	return Result{Level: domain.LevelNone, Keys: keys}
}

type wardHit struct {
	entry *boundary.Entry
	step  Step
}

func (h *wardHit) withKeys(keys domain.AdminKey) Result {
	return found(h.entry, h.step, keys)
}

func (m *Matcher) matchWard(keys domain.AdminKey) *wardHit {
	if keys.Ward == "" {
		return nil
	}

	if e, ok := m.index.Find(domain.LevelWard, keys); ok {
		return &wardHit{e, StepWardExact}
	}

	candidates := m.index.WardsIn(keys)

	if num, ok := normalize.NumericPart(keys.Ward); ok {
		for _, e := range candidates {
			if n, ok := normalize.NumericPart(e.Key.Ward); ok && n == num {
				return &wardHit{e, StepWardNumeric}
			}
		}
	}

	for _, e := range candidates {
		if strings.Contains(e.Key.Ward, keys.Ward) {
			return &wardHit{e, StepWardContains}
		}
	}

	return nil
}

func found(e *boundary.Entry, step Step, keys domain.AdminKey) Result {
	return Result{Entry: e, Level: e.Level, Step: step, Keys: keys}
}
