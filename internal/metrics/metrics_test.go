package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terratensor/geonorm/internal/app/boundary"
	"github.com/terratensor/geonorm/internal/core/domain"
)

func TestObserveRecord(t *testing.T) {
	r := New()
	l := &domain.Listing{GeoStatus: domain.StatusAdjusted, GeoMethod: domain.MethodCentroid, AdminMatchLevel: domain.LevelDistrict}

	r.ObserveRecord(l, time.Millisecond)
	r.ObserveRecord(l, time.Millisecond)

	got := testutil.ToFloat64(r.RecordsTotal.WithLabelValues("adjusted", "centroid", "district"))
	assert.Equal(t, 2.0, got)
}

func TestObserveIndex(t *testing.T) {
	r := New()
	r.ObserveIndex(boundary.Stats{Wards: 10, Districts: 3, Provinces: 1}, boundary.LoadStats{Malformed: 2})

	assert.Equal(t, 10.0, testutil.ToFloat64(r.BoundariesIndexed.WithLabelValues("ward")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.BoundariesDropped))
}

func TestWriteFile(t *testing.T) {
	r := New()
	r.SuccessRate.Set(0.995)

	path := filepath.Join(t.TempDir(), "nested", "geonorm.prom")
	require.NoError(t, r.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "geonorm_success_rate 0.995"))
}
