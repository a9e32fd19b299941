package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "2024", r.URL.Query().Get("year"))
		w.Write([]byte(`{"data": {"rows": [{"name": "one"}]}}`))
	}))
	defer srv.Close()

	c := New()
	data, err := c.Fetch(Config{
		URL:    srv.URL,
		APIKey: "secret",
		Extraction: Extraction{
			Params: map[string]string{"year": "2024"},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, data)
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[{"name": "one"}]`))
	}))
	defer srv.Close()

	c := New(WithRetryCount(3))
	data, err := c.Fetch(Config{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.NotNil(t, data)
}

func TestFetchClientErrorNoRetry(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(WithRetryCount(3))
	_, err := c.Fetch(Config{URL: srv.URL})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRecordsDataPath(t *testing.T) {
	c := New()
	data := map[string]interface{}{
		"result": map[string]interface{}{
			"rows": []interface{}{
				map[string]interface{}{"name": "one", "count": float64(10)},
				map[string]interface{}{"name": "two", "count": float64(20)},
			},
		},
	}

	recs := c.Records(data, Extraction{DataPath: "result.rows"})
	require.Len(t, recs, 2)

	// keys come out sorted
	assert.Equal(t, []string{"count", "name"}, recs[0].Keys())
	v, _ := recs[0].Get("count")
	assert.Equal(t, "10", v)
}

func TestRecordsMissingDataPathFallsBack(t *testing.T) {
	c := New()
	data := []interface{}{
		map[string]interface{}{"name": "one"},
	}

	recs := c.Records(data, Extraction{DataPath: "does.not.exist"})
	require.Len(t, recs, 1)
	v, _ := recs[0].Get("name")
	assert.Equal(t, "one", v)
}

func TestRecordsColumnsProjection(t *testing.T) {
	c := New()
	data := []interface{}{
		map[string]interface{}{"name": "one", "count": float64(10), "noise": "x"},
	}

	recs := c.Records(data, Extraction{Columns: []string{"name", "count"}})
	require.Len(t, recs, 1)
	assert.Equal(t, []string{"name", "count"}, recs[0].Keys())
	assert.False(t, recs[0].Has("noise"))
}

func TestRecordsFilters(t *testing.T) {
	data := []interface{}{
		map[string]interface{}{"country": "de", "value": float64(10)},
		map[string]interface{}{"country": "fr", "value": float64(20)},
		map[string]interface{}{"country": "de", "value": float64(30)},
	}

	tests := []struct {
		name    string
		filters []Filter
		want    int
	}{
		{"equals", []Filter{{Column: "country", Value: "de"}}, 2},
		{"not equals", []Filter{{Column: "country", Operator: "!=", Value: "de"}}, 1},
		{"greater than", []Filter{{Column: "value", Operator: ">", Value: "15"}}, 2},
		{"combined", []Filter{
			{Column: "country", Value: "de"},
			{Column: "value", Operator: "<", Value: "20"},
		}, 1},
		{"contains", []Filter{{Column: "country", Operator: "contains", Value: "f"}}, 1},
		{"missing column", []Filter{{Column: "absent", Value: "x"}}, 0},
	}

	c := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs := c.Records(data, Extraction{Filters: tt.filters})
			assert.Len(t, recs, tt.want)
		})
	}
}

func TestRecordsScalarList(t *testing.T) {
	c := New()
	recs := c.Records([]interface{}{"a", float64(2)}, Extraction{})
	require.Len(t, recs, 2)

	v, _ := recs[0].Get("value")
	assert.Equal(t, "a", v)
	v, _ = recs[1].Get("value")
	assert.Equal(t, "2", v)
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "abc", stringify("abc"))
	assert.Equal(t, "1.5", stringify(float64(1.5)))
	assert.Equal(t, "42", stringify(float64(42)))
	assert.Equal(t, "true", stringify(true))
	assert.Equal(t, "", stringify(nil))
	assert.Equal(t, `["a"]`, stringify([]interface{}{"a"}))
}
