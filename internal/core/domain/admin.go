package domain

import "strings"

// Level уровень административного деления
type Level string

const (
	LevelWard     Level = "ward"
	LevelDistrict Level = "district"
	LevelProvince Level = "province"
	LevelNone     Level = "none"
)

// Rank возвращает специфичность уровня: ward > district > province > none
func (l Level) Rank() int {
	switch l {
	case LevelWard:
		return 3
	case LevelDistrict:
		return 2
	case LevelProvince:
		return 1
	default:
		return 0
	}
}

// AdminKey канонический ключ (province, district, ward)
type AdminKey struct {
	Province string
	District string
	Ward     string
}

// DistrictKey обрезает ключ до уровня района
func (k AdminKey) DistrictKey() AdminKey {
	return AdminKey{Province: k.Province, District: k.District}
}

// ProvinceKey обрезает ключ до уровня провинции
func (k AdminKey) ProvinceKey() AdminKey {
	return AdminKey{Province: k.Province}
}

func (k AdminKey) String() string {
	parts := []string{k.Province}
	if k.District != "" || k.Ward != "" {
		parts = append(parts, k.District)
	}
	if k.Ward != "" {
		parts = append(parts, k.Ward)
	}
	return strings.Join(parts, "|")
}
