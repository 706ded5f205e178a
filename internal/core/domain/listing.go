package domain

// GeoStatus итоговый статус записи после проверки координат
type GeoStatus string

const (
	StatusMatched  GeoStatus = "matched"
	StatusAdjusted GeoStatus = "adjusted"
	StatusFailed   GeoStatus = "failed"
)

// GeoMethod способ, которым получена итоговая координата
type GeoMethod string

const (
	MethodUnchanged      GeoMethod = "unchanged"
	MethodVerified       GeoMethod = "verified"
	MethodCentroid       GeoMethod = "centroid"
	MethodRandomInterior GeoMethod = "random_interior"
	MethodNoPolygon      GeoMethod = "no_polygon"
)

// Listing объявление с заявленным адресом и координатами.
// Поля после Extra заполняются движком нормализации.
type Listing struct {
	ID        string
	Province  string
	District  string
	Ward      string
	Latitude  float64
	Longitude float64

	// HasCoordinate false, если координата отсутствует или не разобрана
	HasCoordinate bool
	// HasLatitude и HasLongitude отмечают сторону, разобранную без пары
	HasLatitude  bool
	HasLongitude bool

	// Extra остальные поля входной записи, сохраняются без изменений
	Extra map[string]interface{}

	GeoStatus         GeoStatus
	GeoMethod         GeoMethod
	AdminMatchLevel   Level
	MismatchReason    string
	OriginalLatitude  *float64
	OriginalLongitude *float64

	// Нормализованные ключи, по которым шёл поиск полигона
	Keys AdminKey

	// GeoCell S2 токен итоговой координаты
	GeoCell string
}

// LatitudeKnown широта разобрана, вместе с долготой или одна
func (l *Listing) LatitudeKnown() bool {
	return l.HasCoordinate || l.HasLatitude
}

// LongitudeKnown долгота разобрана, вместе с широтой или одна
func (l *Listing) LongitudeKnown() bool {
	return l.HasCoordinate || l.HasLongitude
}

// Clone возвращает глубокую копию записи
func (l *Listing) Clone() *Listing {
	c := *l
	if l.Extra != nil {
		c.Extra = make(map[string]interface{}, len(l.Extra))
		for k, v := range l.Extra {
			c.Extra[k] = v
		}
	}
	if l.OriginalLatitude != nil {
		v := *l.OriginalLatitude
		c.OriginalLatitude = &v
	}
	if l.OriginalLongitude != nil {
		v := *l.OriginalLongitude
		c.OriginalLongitude = &v
	}
	return &c
}

// Columns порядок колонок при экспорте аннотированной записи
var Columns = []string{
	"id",
	"province",
	"district",
	"ward",
	"latitude",
	"longitude",
	"geo_status",
	"geo_method",
	"admin_match_level",
	"mismatch_reason",
	"original_latitude",
	"original_longitude",
	"province_norm",
	"district_norm",
	"ward_norm",
	"geo_cell",
}

// ToMap конвертирует запись в map для экспортёров.
// Дополнительные поля не перетирают поля движка.
func (l *Listing) ToMap() map[string]interface{} {
	doc := make(map[string]interface{}, len(Columns)+len(l.Extra))
	for k, v := range l.Extra {
		doc[k] = v
	}

	doc["id"] = l.ID
	doc["province"] = l.Province
	doc["district"] = l.District
	doc["ward"] = l.Ward
	doc["latitude"] = nil
	doc["longitude"] = nil
	if l.LatitudeKnown() {
		doc["latitude"] = l.Latitude
	}
	if l.LongitudeKnown() {
		doc["longitude"] = l.Longitude
	}
	doc["geo_status"] = string(l.GeoStatus)
	doc["geo_method"] = string(l.GeoMethod)
	doc["admin_match_level"] = string(l.AdminMatchLevel)
	doc["mismatch_reason"] = l.MismatchReason
	doc["original_latitude"] = nil
	doc["original_longitude"] = nil
	if l.OriginalLatitude != nil {
		doc["original_latitude"] = *l.OriginalLatitude
	}
	if l.OriginalLongitude != nil {
		doc["original_longitude"] = *l.OriginalLongitude
	}
	doc["province_norm"] = l.Keys.Province
	doc["district_norm"] = l.Keys.District
	doc["ward_norm"] = l.Keys.Ward
	doc["geo_cell"] = l.GeoCell

	return doc
}
