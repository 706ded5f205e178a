package normalize

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Вьетнамские гласные со всеми тонами и đ -> базовая латиница
var vietGroups = map[rune]string{
	'a': "àáạảãâầấậẩẫăằắặẳẵ",
	'e': "èéẹẻẽêềếệểễ",
	'i': "ìíịỉĩ",
	'o': "òóọỏõôồốộổỗơờớợởỡ",
	'u': "ùúụủũưừứựửữ",
	'y': "ỳýỵỷỹ",
	'd': "đ",
}

var vietFold = buildVietFold()

func buildVietFold() map[rune]rune {
	m := make(map[rune]rune, 80)
	for base, variants := range vietGroups {
		for _, r := range variants {
			m[r] = base
		}
	}
	return m
}

// Fold приводит строку к нижнему регистру и базовой латинице.
// Порядок: lower, NFC, таблица вьетнамских букв, удаление оставшихся
// комбинирующих знаков, транслитерация прочих письменностей.
// Пунктуация и пробелы не трогаются.
func Fold(s string) string {
	s = norm.NFC.String(strings.ToLower(s))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if base, ok := vietFold[r]; ok {
			b.WriteRune(base)
			continue
		}
		b.WriteRune(r)
	}

	s = removeMarks(b.String())
	if !isASCII(s) {
		s = strings.ToLower(unidecode.Unidecode(s))
	}
	return s
}

// removeMarks удаляет комбинирующие диакритические знаки
// Пример: München → Munchen
func removeMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > unicode.MaxASCII {
			return false
		}
	}
	return true
}

// stripPunct заменяет всё, кроме букв, цифр и пробелов, на пробел
func stripPunct(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, s)
}

// collapseSpaces схлопывает пробельные последовательности в один пробел
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func removeSpaces(s string) string {
	return strings.Join(strings.Fields(s), "")
}

// Clean возвращает свёрнутую форму с пробелами: без пунктуации,
// с одиночными пробелами между словами
func Clean(s string) string {
	return collapseSpaces(stripPunct(Fold(s)))
}
