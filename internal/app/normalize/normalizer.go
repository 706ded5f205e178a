package normalize

import (
	"sort"
	"strings"

	"github.com/terratensor/geonorm/internal/core/domain"
)

// Prefixes административные префиксы по уровням
type Prefixes struct {
	Province []string `yaml:"province"`
	District []string `yaml:"district"`
	Ward     []string `yaml:"ward"`
}

// DefaultPrefixes префиксы, встречающиеся в объявлениях и в GADM
func DefaultPrefixes() Prefixes {
	return Prefixes{
		Province: []string{"thành phố", "tỉnh", "tp"},
		District: []string{"quận", "huyện", "thành phố", "thị xã", "tx", "tp", "q."},
		Ward:     []string{"phường", "xã", "thị trấn", "tt", "p."},
	}
}

// prefix свёрнутый префикс: base для сравнения с текстом,
// compact без пробелов для проверки готового ключа
type prefix struct {
	base    string
	compact string
}

// Normalizer сводит название административной единицы к ключу
type Normalizer struct {
	prefixes map[domain.Level][]prefix
}

func NewNormalizer(p Prefixes) *Normalizer {
	return &Normalizer{
		prefixes: map[domain.Level][]prefix{
			domain.LevelProvince: compilePrefixes(p.Province),
			domain.LevelDistrict: compilePrefixes(p.District),
			domain.LevelWard:     compilePrefixes(p.Ward),
		},
	}
}

// compilePrefixes сворачивает префиксы и сортирует от длинного к короткому
func compilePrefixes(raw []string) []prefix {
	seen := make(map[string]bool, len(raw))
	out := make([]prefix, 0, len(raw))
	for _, r := range raw {
		base := collapseSpaces(strings.TrimRight(Fold(r), ". "))
		if base == "" || seen[base] {
			continue
		}
		seen[base] = true
		out = append(out, prefix{base: base, compact: removeSpaces(stripPunct(base))})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].base) > len(out[j].base)
	})
	return out
}

// Normalize возвращает канонический ключ названия для уровня.
// Чисто числовой остаток приводится к десятичной форме без ведущих нулей:
// "Quận 1", "Q.1", "quan1", "Quận 01" -> "1".
func (n *Normalizer) Normalize(text string, level domain.Level) string {
	s := collapseSpaces(Fold(text))
	if s == "" {
		return ""
	}

	s = n.stripPrefix(s, level)
	key := removeSpaces(stripPunct(s))
	key = n.stripCompactPrefix(key, level)

	if isDigits(key) {
		return canonicalNumber(key)
	}
	return key
}

// stripPrefix срезает самый длинный подходящий префикс.
// После префикса должен идти пробел, точка или цифра. Повтор того же
// префикса ("Quận Quận 1") срезается целиком.
func (n *Normalizer) stripPrefix(s string, level domain.Level) string {
	for _, p := range n.prefixes[level] {
		rest, ok := cutPrefix(s, p.base)
		if !ok {
			continue
		}
		for {
			again, ok := cutPrefix(rest, p.base)
			if !ok {
				break
			}
			rest = again
		}
		return rest
	}
	return s
}

func cutPrefix(s, p string) (string, bool) {
	if !strings.HasPrefix(s, p) || len(s) == len(p) {
		return s, false
	}
	next := s[len(p)]
	switch {
	case next == ' ' || next == '.':
		rest := strings.TrimLeft(s[len(p):], " .")
		if rest == "" {
			return s, false
		}
		return rest, true
	case next >= '0' && next <= '9':
		return s[len(p):], true
	}
	return s, false
}

// stripCompactPrefix срезает префикс, слитый с номером ("quan1", "p5").
// Делает ключ устойчивым к повторной нормализации.
func (n *Normalizer) stripCompactPrefix(key string, level domain.Level) string {
	for {
		changed := false
		for _, p := range n.prefixes[level] {
			if p.compact == "" || !strings.HasPrefix(key, p.compact) || len(key) == len(p.compact) {
				continue
			}
			if c := key[len(p.compact)]; c >= '0' && c <= '9' {
				key = key[len(p.compact):]
				changed = true
				break
			}
		}
		if !changed {
			return key
		}
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func canonicalNumber(s string) string {
	s = strings.TrimLeft(s, "0")
	if s == "" {
		return "0"
	}
	return s
}

// NumericPart возвращает первое число в ключе в канонической форме
func NumericPart(key string) (string, bool) {
	start := -1
	for i := 0; i < len(key); i++ {
		if key[i] >= '0' && key[i] <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			return canonicalNumber(key[start:i]), true
		}
	}
	if start >= 0 {
		return canonicalNumber(key[start:]), true
	}
	return "", false
}
