package manticore

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terratensor/geonorm/internal/core/domain"
)

func testClient(t *testing.T, srv *httptest.Server) *ManticoreClient {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	c, err := NewClient(host, port, 5*time.Second)
	require.NoError(t, err)
	c.maxRetries = 1
	return c
}

func TestNewClientRejectsBadAddress(t *testing.T) {
	_, err := NewClient("", 9308, 0)
	assert.Error(t, err)
	_, err = NewClient("localhost", 0, 0)
	assert.Error(t, err)
}

func TestTableExistsMissingTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"no such table 'geo_listings'"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	exists, err := testClient(t, srv).TableExists(context.Background(), "geo_listings")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestTableExistsConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := testClient(t, srv)
	srv.Close()

	exists, err := c.TableExists(context.Background(), "geo_listings")
	assert.Error(t, err)
	assert.False(t, exists)
}

func TestListingDoc(t *testing.T) {
	orig, origLon := 21.0, 105.0
	l := &domain.Listing{
		ID: "42", Province: "Hồ Chí Minh", District: "Quận 1",
		Latitude: 10.78, Longitude: 106.71, HasCoordinate: true,
		GeoStatus: domain.StatusAdjusted, GeoMethod: domain.MethodCentroid, AdminMatchLevel: domain.LevelDistrict,
		OriginalLatitude: &orig, OriginalLongitude: &origLon,
		Keys:  domain.AdminKey{Province: "hochiminh", District: "1"},
		Extra: map[string]interface{}{"price": 10.5, "bad": make(chan int)},
	}

	doc := listingDoc(l)
	assert.Equal(t, "42", doc["listing_id"])
	assert.NotContains(t, doc, "id")
	assert.Equal(t, "hochiminh", doc["province_norm"])
	assert.Equal(t, 21.0, doc["original_latitude"])
	assert.Equal(t, true, doc["has_original"])
	assert.Equal(t, map[string]interface{}{"price": 10.5}, doc["extra"])

	l.HasCoordinate = false
	doc = listingDoc(l)
	assert.NotContains(t, doc, "latitude")
}

func TestBuildBulkBody(t *testing.T) {
	body, err := buildBulkBody("geo_listings", []map[string]interface{}{
		{"id": 7, "listing_id": "a"},
		{"listing_id": "b"},
	})
	require.NoError(t, err)

	sc := bufio.NewScanner(bytes.NewReader(body))
	var lines []map[string]map[string]interface{}
	for sc.Scan() {
		var cmd map[string]map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &cmd))
		lines = append(lines, cmd)
	}
	require.Len(t, lines, 2)

	assert.Equal(t, "geo_listings", lines[0]["insert"]["table"])
	assert.Equal(t, 7.0, lines[0]["insert"]["id"])
	assert.NotContains(t, lines[1]["insert"], "id")
	assert.Equal(t, map[string]interface{}{"listing_id": "b"}, lines[1]["insert"]["doc"])
}

func TestBulkInsertBatches(t *testing.T) {
	var requests int
	var docs int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bulk", r.URL.Path)
		assert.Equal(t, "application/x-ndjson", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		requests++
		docs += bytes.Count(body, []byte("\n"))
		_, _ = w.Write([]byte(`{"items":[],"errors":false}`))
	}))
	defer srv.Close()

	c := testClient(t, srv)
	sink := NewListingSink(c, "", 2, nil)

	listings := []*domain.Listing{{ID: "1"}, {ID: "2"}, {ID: "3"}}
	batch := make([]map[string]interface{}, 0, len(listings))
	for _, l := range listings {
		batch = append(batch, listingDoc(l))
	}
	require.NoError(t, c.bulkInsert(context.Background(), sink.table, batch[:2]))
	require.NoError(t, c.bulkInsert(context.Background(), sink.table, batch[2:]))

	assert.Equal(t, 2, requests)
	assert.Equal(t, 3, docs)
}

func TestBulkInsertReportsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors":true,"error":"unknown table"}`))
	}))
	defer srv.Close()

	err := testClient(t, srv).bulkInsert(context.Background(), "geo_listings", []map[string]interface{}{{"listing_id": "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown table")
}

func TestBulkInsertHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := testClient(t, srv).bulkInsert(context.Background(), "geo_listings", []map[string]interface{}{{"listing_id": "a"}})
	assert.Error(t, err)
}
