package normalize

import (
	"strings"

	"github.com/terratensor/geonorm/internal/core/domain"
)

// Alias вариант написания провинции и её канонический ключ
type Alias struct {
	Name string
	Key  string
}

// AliasTable упорядоченная таблица алиасов.
// Порядок определяет приоритет при поиске по подстроке.
type AliasTable []Alias

// DefaultAliases три целевых города: Hà Nội, Đà Nẵng, TP. Hồ Chí Minh
func DefaultAliases() AliasTable {
	return AliasTable{
		{"ha noi", "hanoi"},
		{"hanoi", "hanoi"},
		{"hn", "hanoi"},
		{"thanh pho ha noi", "hanoi"},
		{"da nang", "danang"},
		{"danang", "danang"},
		{"dn", "danang"},
		{"thanh pho da nang", "danang"},
		{"ho chi minh", "hochiminh"},
		{"hochiminh", "hochiminh"},
		{"hcm", "hochiminh"},
		{"tphcm", "hochiminh"},
		{"tp hcm", "hochiminh"},
		{"saigon", "hochiminh"},
		{"sai gon", "hochiminh"},
		{"thanh pho ho chi minh", "hochiminh"},
	}
}

type compiledAlias struct {
	spaced string
	key    string
}

// Resolver разрешает название провинции в канонический ключ
type Resolver struct {
	normalizer *Normalizer
	ordered    []compiledAlias
	spaced     map[string]string
	compact    map[string]string
}

func NewResolver(n *Normalizer, table AliasTable) *Resolver {
	r := &Resolver{
		normalizer: n,
		spaced:     make(map[string]string, len(table)),
		compact:    make(map[string]string, len(table)),
	}
	for _, a := range table {
		spaced := Clean(a.Name)
		if spaced == "" || a.Key == "" {
			continue
		}
		r.ordered = append(r.ordered, compiledAlias{spaced: spaced, key: a.Key})
		// первое вхождение выигрывает
		if _, ok := r.spaced[spaced]; !ok {
			r.spaced[spaced] = a.Key
		}
		compact := removeSpaces(spaced)
		if _, ok := r.compact[compact]; !ok {
			r.compact[compact] = a.Key
		}
	}
	return r
}

// Normalizer возвращает нормализатор, которым пользуется резолвер
func (r *Resolver) Normalizer() *Normalizer {
	return r.normalizer
}

// ResolveProvince: точное совпадение по таблице, затем поиск подстроки в обе
// стороны в порядке таблицы, затем нормализованный текст как есть
func (r *Resolver) ResolveProvince(text string) string {
	spaced := Clean(text)
	if spaced == "" {
		return ""
	}

	if key, ok := r.spaced[spaced]; ok {
		return key
	}
	if key, ok := r.compact[removeSpaces(spaced)]; ok {
		return key
	}

	for _, a := range r.ordered {
		if strings.Contains(spaced, a.spaced) || strings.Contains(a.spaced, spaced) {
			return a.key
		}
	}

	return r.normalizer.Normalize(text, domain.LevelProvince)
}

// Key возвращает ключ названия для уровня, провинции идут через таблицу алиасов
func (r *Resolver) Key(text string, level domain.Level) string {
	if level == domain.LevelProvince {
		return r.ResolveProvince(text)
	}
	return r.normalizer.Normalize(text, level)
}

// AdminKey собирает канонический ключ для тройки названий
func (r *Resolver) AdminKey(province, district, ward string) domain.AdminKey {
	return domain.AdminKey{
		Province: r.ResolveProvince(province),
		District: r.normalizer.Normalize(district, domain.LevelDistrict),
		Ward:     r.normalizer.Normalize(ward, domain.LevelWard),
	}
}
