package normalize

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tables справочные таблицы нормализации.
// Загружаются из YAML, пустые секции заменяются значениями по умолчанию.
type Tables struct {
	Aliases  []AliasGroup `yaml:"aliases"`
	Prefixes Prefixes     `yaml:"prefixes"`
	Targets  []string     `yaml:"targets"`
}

// AliasGroup все варианты написания одного канонического ключа
type AliasGroup struct {
	Key   string   `yaml:"key"`
	Names []string `yaml:"names"`
}

// DefaultTargets ключи трёх обслуживаемых городов
func DefaultTargets() []string {
	return []string{"hanoi", "danang", "hochiminh"}
}

// DefaultTables таблицы по умолчанию
func DefaultTables() *Tables {
	return &Tables{
		Aliases:  groupAliases(DefaultAliases()),
		Prefixes: DefaultPrefixes(),
		Targets:  DefaultTargets(),
	}
}

// LoadTables читает таблицы из YAML файла
func LoadTables(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tables file: %w", err)
	}

	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse tables file: %w", err)
	}

	def := DefaultTables()
	if len(t.Aliases) == 0 {
		t.Aliases = def.Aliases
	}
	if len(t.Prefixes.Province) == 0 {
		t.Prefixes.Province = def.Prefixes.Province
	}
	if len(t.Prefixes.District) == 0 {
		t.Prefixes.District = def.Prefixes.District
	}
	if len(t.Prefixes.Ward) == 0 {
		t.Prefixes.Ward = def.Prefixes.Ward
	}
	if len(t.Targets) == 0 {
		t.Targets = def.Targets
	}

	return &t, nil
}

// LoadTablesOrDefault возвращает таблицы по умолчанию, если путь пуст
func LoadTablesOrDefault(path string) (*Tables, error) {
	if path == "" {
		return DefaultTables(), nil
	}
	return LoadTables(path)
}

// AliasTable разворачивает группы в упорядоченную таблицу
func (t *Tables) AliasTable() AliasTable {
	var table AliasTable
	for _, g := range t.Aliases {
		for _, name := range g.Names {
			table = append(table, Alias{Name: name, Key: g.Key})
		}
	}
	return table
}

// Resolver собирает нормализатор и резолвер по таблицам
func (t *Tables) Resolver() *Resolver {
	return NewResolver(NewNormalizer(t.Prefixes), t.AliasTable())
}

func groupAliases(table AliasTable) []AliasGroup {
	var groups []AliasGroup
	index := make(map[string]int)
	for _, a := range table {
		i, ok := index[a.Key]
		if !ok {
			i = len(groups)
			index[a.Key] = i
			groups = append(groups, AliasGroup{Key: a.Key})
		}
		groups[i].Names = append(groups[i].Names, a.Name)
	}
	return groups
}
