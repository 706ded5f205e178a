package qc

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terratensor/geonorm/internal/core/domain"
)

func listing(id, prov, dist, ward string, status domain.GeoStatus, level domain.Level) *domain.Listing {
	method := domain.MethodVerified
	switch status {
	case domain.StatusAdjusted:
		method = domain.MethodCentroid
	case domain.StatusFailed:
		method = domain.MethodNoPolygon
	}
	return &domain.Listing{
		ID: id, Province: prov, District: dist, Ward: ward,
		GeoStatus: status, GeoMethod: method, AdminMatchLevel: level,
	}
}

func fixture() []*domain.Listing {
	return []*domain.Listing{
		listing("1", "Hà Nội", "Ba Đình", "Phúc Xá", domain.StatusMatched, domain.LevelWard),
		listing("2", "Hà Nội", "Ba Đình", "Trúc Bạch", domain.StatusAdjusted, domain.LevelDistrict),
		listing("3", "Hà Nội", "Hoàn Kiếm", "", domain.StatusMatched, domain.LevelDistrict),
		listing("4", "Hồ Chí Minh", "Quận 1", "Bến Nghé", domain.StatusAdjusted, domain.LevelWard),
		listing("5", "Atlantis", "", "X", domain.StatusFailed, domain.LevelNone),
		listing("6", " Hà Nội ", "Ba Đình", "Phúc Xá", domain.StatusMatched, domain.LevelWard),
	}
}

func TestAggregatorCounts(t *testing.T) {
	a := NewAggregator(0)
	for _, l := range fixture() {
		a.Add(l)
	}
	r := a.Finalize()

	assert.Equal(t, Counts{Total: 6, Matched: 3, Adjusted: 2, Failed: 1}, r.Counts)
	assert.Equal(t, 0.8333, r.SuccessRate)
	assert.Equal(t, 0.5, r.MatchedRate)
	assert.Equal(t, 0.3333, r.AdjustedRate)
	assert.Equal(t, 0.1667, r.FailedRate)

	assert.Equal(t, map[string]int{"matched": 3, "adjusted": 2, "failed": 1}, r.ByStatus)
	assert.Equal(t, map[string]int{"verified": 3, "centroid": 2, "no_polygon": 1}, r.ByMethod)
	assert.Equal(t, map[string]int{"ward": 3, "district": 2, "province": 0, "none": 1}, r.ByLevel)

	require.Len(t, r.ByProvince, 3)
	assert.Equal(t, "Atlantis", r.ByProvince[0].Province)
	assert.Equal(t, "Hà Nội", r.ByProvince[1].Province)
	assert.Equal(t, 4, r.ByProvince[1].Total)
	assert.Equal(t, 0.75, r.ByProvince[1].MatchedRate)

	assert.Len(t, r.SampleAdjusted, 2)
	assert.Len(t, r.SampleFailed, 1)
	assert.Equal(t, "5", r.SampleFailed[0]["id"])

	assert.Equal(t, []string{"Atlantis||X", "Hà Nội|Ba Đình|Trúc Bạch"}, r.MissingPolygons)
	assert.NotEmpty(t, r.RunID)
}

func TestAggregateConsistency(t *testing.T) {
	a := NewAggregator(0)
	for _, l := range fixture() {
		a.Add(l)
	}
	r := a.Finalize()

	sum := func(m map[string]int) int {
		n := 0
		for _, v := range m {
			n += v
		}
		return n
	}
	sumGroups := func(gs []GroupStats) Counts {
		var c Counts
		for _, g := range gs {
			c.merge(g.Counts)
		}
		return c
	}

	assert.Equal(t, r.Total, sum(r.ByStatus))
	assert.Equal(t, r.Total, sum(r.ByMethod))
	assert.Equal(t, r.Total, sum(r.ByLevel))
	assert.Equal(t, r.Total, r.Matched+r.Adjusted+r.Failed)
	assert.Equal(t, r.Counts, sumGroups(r.ByProvince))
	assert.Equal(t, r.Counts, sumGroups(r.ByDistrict))
	assert.Equal(t, r.Counts, sumGroups(r.ByWard))
}

func TestFailedCountedOnceEverywhere(t *testing.T) {
	a := NewAggregator(0)
	a.Add(listing("d", "Atlantis", "Nowhere", "", domain.StatusFailed, domain.LevelNone))
	r := a.Finalize()

	assert.Equal(t, 1, r.Failed)
	assert.Equal(t, 1, r.ByStatus["failed"])
	assert.Equal(t, 1, r.ByLevel["none"])
	for _, gs := range [][]GroupStats{r.ByProvince, r.ByDistrict, r.ByWard} {
		require.Len(t, gs, 1)
		assert.Equal(t, Counts{Total: 1, Failed: 1}, gs[0].Counts)
		assert.Equal(t, 1.0, gs[0].FailedRate)
	}
}

func TestEmptyAggregator(t *testing.T) {
	r := NewAggregator(0).Finalize()
	assert.Equal(t, Rates{}, r.Rates)
	assert.Empty(t, r.ByProvince)
	assert.NotNil(t, r.SampleAdjusted)
	assert.NotNil(t, r.MissingPolygons)
}

func TestSampleLimit(t *testing.T) {
	a := NewAggregator(3)
	for i := 0; i < 10; i++ {
		a.Add(listing(fmt.Sprint(i), "Hà Nội", "Ba Đình", fmt.Sprintf("W%d", i), domain.StatusAdjusted, domain.LevelDistrict))
	}
	r := a.Finalize()

	require.Len(t, r.SampleAdjusted, 3)
	assert.Equal(t, "0", r.SampleAdjusted[0]["id"])
	assert.Equal(t, "2", r.SampleAdjusted[2]["id"])
	assert.Len(t, r.MissingPolygons, 3)
}

func TestSamplesAreCopies(t *testing.T) {
	a := NewAggregator(0)
	l := listing("1", "Hà Nội", "", "", domain.StatusFailed, domain.LevelNone)
	a.Add(l)
	l.ID = "changed"

	assert.Equal(t, "1", a.Finalize().SampleFailed[0]["id"])
}

func TestMergeMatchesSequential(t *testing.T) {
	items := fixture()

	seq := NewAggregator(0)
	for _, l := range items {
		seq.Add(l)
	}

	left, right := NewAggregator(0), NewAggregator(0)
	for _, l := range items[:3] {
		left.Add(l)
	}
	for _, l := range items[3:] {
		right.Add(l)
	}
	left.Merge(right)

	want, got := seq.Finalize(), left.Finalize()
	assert.Equal(t, want.Counts, got.Counts)
	assert.Equal(t, want.ByStatus, got.ByStatus)
	assert.Equal(t, want.ByMethod, got.ByMethod)
	assert.Equal(t, want.ByLevel, got.ByLevel)
	assert.Equal(t, want.ByProvince, got.ByProvince)
	assert.Equal(t, want.ByDistrict, got.ByDistrict)
	assert.Equal(t, want.ByWard, got.ByWard)
	assert.Equal(t, want.SampleAdjusted, got.SampleAdjusted)
	assert.Equal(t, want.MissingPolygons, got.MissingPolygons)
}

func TestGroupStatsKey(t *testing.T) {
	assert.Equal(t, "Hà Nội", GroupStats{Province: "Hà Nội"}.Key())
	assert.Equal(t, "Hà Nội|Ba Đình", GroupStats{Province: "Hà Nội", District: "Ba Đình"}.Key())
	assert.Equal(t, "A||W", GroupStats{Province: "A", Ward: "W"}.Key())
}

func TestGroupsKeepSeparatorInNames(t *testing.T) {
	a := NewAggregator(0)
	a.Add(listing("1", "Hà Nội|x", "Ba Đình", "", domain.StatusMatched, domain.LevelDistrict))
	a.Add(listing("2", "Hà Nội", "x|Ba Đình", "", domain.StatusFailed, domain.LevelNone))
	r := a.Finalize()

	require.Len(t, r.ByDistrict, 2)
	assert.Equal(t, "Hà Nội", r.ByDistrict[0].Province)
	assert.Equal(t, "x|Ba Đình", r.ByDistrict[0].District)
	assert.Equal(t, Counts{Total: 1, Failed: 1}, r.ByDistrict[0].Counts)
	assert.Equal(t, "Hà Nội|x", r.ByDistrict[1].Province)
	assert.Equal(t, "Ba Đình", r.ByDistrict[1].District)
	assert.Equal(t, Counts{Total: 1, Matched: 1}, r.ByDistrict[1].Counts)
}

func TestReportSummary(t *testing.T) {
	a := NewAggregator(0)
	for _, l := range fixture() {
		a.Add(l)
	}

	assert.Equal(t, map[string]interface{}{
		"total":        6,
		"matched":      3,
		"adjusted":     2,
		"failed":       1,
		"success_rate": 0.8333,
	}, a.Finalize().Summary())
}
