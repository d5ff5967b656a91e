package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/motofit/catalog"
	"github.com/aluiziolira/motofit/config"
	"github.com/aluiziolira/motofit/metrics"
	"github.com/aluiziolira/motofit/models"
	"github.com/aluiziolira/motofit/present"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

type testServer struct {
	handler http.Handler
	store   *catalog.Store
	metrics *metrics.Metrics
	cfg     *config.Config
}

func row(brand, model, typ, license string, price, seat, power, cc float64) models.Motorcycle {
	return models.Motorcycle{
		Brand:          brand,
		Model:          model,
		Type:           typ,
		MinimumLicense: license,
		Price:          models.Num(price),
		SeatHeight:     models.Num(seat),
		Power:          models.Num(power),
		DryWeight:      models.Num(180),
		Displacement:   models.Num(cc),
	}
}

func sampleCatalog() *models.Catalog {
	cat := models.NewCatalog([]models.Motorcycle{
		row("Honda", "CB500F", "Naked", "A2", 6290, 785, 47, 471),
		row("Yamaha", "MT-07", "Naked", "A2", 7599, 805, 73, 689),
		row("KTM", "390 Duke", "Naked", "A1", 5799, 820, 44, 373),
		row("Honda", "Rebel 500", "Custom", "A2", 6500, 690, 46, 471),
		row("BMW", "R 1250 GS", "Adventure", "A", 19900, 850, 136, 1254),
		row("Kawasaki", "Z400", "Naked", "A2", 5999, 785, 45, 399),
		row("Yamaha", "XMAX 300", "Scooter", "A2", 6299, 795, 28, 292),
	})
	cat.Source = "test"
	return cat
}

func newTestServer(t *testing.T, publish bool, mutate func(*config.Config)) *testServer {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Results.PageSize = 3
	cfg.Server.RateLimitRequests = 0
	if mutate != nil {
		mutate(cfg)
	}

	m := metrics.New()
	store := catalog.NewStore(nil, m)
	if publish {
		_, err := store.Publish(sampleCatalog())
		require.NoError(t, err)
	}
	sessions := present.NewSessions(cfg.Results.SessionCapacity, cfg.Results.SessionTTL, m)
	cache := NewResultCache(cfg.Results.CacheSize, cfg.Results.CacheTTL, m)
	h := NewHandler(store, sessions, cache, cfg.Results, m, nil)

	return &testServer{
		handler: NewRouter(h, MiddlewareConfigFrom(cfg.Server), m, nil),
		store:   store,
		metrics: m,
		cfg:     cfg,
	}
}

func (s *testServer) do(t *testing.T, method, target, session, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if session != "" {
		req.Header.Set(SessionHeader, session)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func cardModels(cards []present.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.Model
	}
	return out
}

func TestHealth(t *testing.T) {
	empty := newTestServer(t, false, nil)
	rec, env := empty.do(t, http.MethodGet, "/api/v1/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, ErrCodeServiceUnavailable, env.Error.Code)

	srv := newTestServer(t, true, nil)
	rec, env = srv.do(t, http.MethodGet, "/api/v1/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	health := decodeData[HealthStatus](t, env)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, uint64(1), health.CatalogVersion)
	assert.Equal(t, 7, health.Rows)
	assert.NotEmpty(t, env.Meta.RequestID)
}

func TestFacets(t *testing.T) {
	srv := newTestServer(t, true, nil)
	rec, env := srv.do(t, http.MethodGet, "/api/v1/catalog/facets", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	facets := decodeData[FacetsView](t, env)
	assert.Equal(t, []string{"BMW", "Honda", "KTM", "Kawasaki", "Yamaha"}, facets.Brands)
	assert.Equal(t, []string{"Adventure", "Custom", "Naked", "Scooter"}, facets.Types)
	assert.Equal(t, []string{"AM", "B", "A1", "A2", "A"}, facets.Licenses)
	assert.Equal(t, "A2", facets.Defaults.License)
	assert.Equal(t, float64(7000), facets.Defaults.PriceMax)
}

func TestCreateRecommendationDefaults(t *testing.T) {
	srv := newTestServer(t, true, nil)
	rec, env := srv.do(t, http.MethodPost, "/api/v1/recommendations", "", "{}")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	session := rec.Header().Get(SessionHeader)
	assert.NotEmpty(t, session)

	view := decodeData[ResultsView](t, env)
	assert.Equal(t, "Showing 1–3 of 5 results.", view.Caption)
	assert.Equal(t, []string{"390 Duke", "Z400", "CB500F"}, cardModels(view.Results.Items))
	assert.Equal(t, "€5,799", view.Results.Items[0].Price)
	assert.Equal(t, uint64(1), view.CatalogVersion)

	require.NotNil(t, env.Meta.Pagination)
	assert.Equal(t, 5, env.Meta.Pagination.Total)
	assert.Equal(t, 2, env.Meta.Pagination.TotalPages)
	assert.True(t, env.Meta.Pagination.HasMore)

	rec, env = srv.do(t, http.MethodGet, "/api/v1/recommendations?page=2", session, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, session, rec.Header().Get(SessionHeader))
	view = decodeData[ResultsView](t, env)
	assert.Equal(t, []string{"XMAX 300", "Rebel 500"}, cardModels(view.Results.Items))
	assert.False(t, env.Meta.Pagination.HasMore)
}

func TestCreateRecommendationFilters(t *testing.T) {
	srv := newTestServer(t, true, nil)
	body := `{"price_max": 20000, "displacement_max": 1500, "license": "a", "rider_height": 190,
		"brands": ["Honda", "BMW"], "sort_by": "power", "sort_order": "desc"}`
	rec, env := srv.do(t, http.MethodPost, "/api/v1/recommendations", "", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	view := decodeData[ResultsView](t, env)
	assert.Equal(t, []string{"R 1250 GS", "CB500F", "Rebel 500"}, cardModels(view.Results.Items))
}

func TestCreateRecommendationAllBrandsSentinel(t *testing.T) {
	srv := newTestServer(t, true, nil)
	rec, env := srv.do(t, http.MethodPost, "/api/v1/recommendations", "", `{"brands": ["Todas"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeData[ResultsView](t, env)
	assert.Equal(t, 5, view.Results.Total)

	// A sentinel mixed with real brands is just another brand name.
	rec, env = srv.do(t, http.MethodPost, "/api/v1/recommendations", "", `{"brands": ["KTM", "Todas"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	view = decodeData[ResultsView](t, env)
	assert.Equal(t, []string{"390 Duke"}, cardModels(view.Results.Items))
}

func TestWithoutAll(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{name: "empty", in: nil, want: nil},
		{name: "lone sentinel", in: []string{" Todas "}, want: nil},
		{name: "english sentinel", in: []string{"all"}, want: nil},
		{name: "sentinel among brands", in: []string{"KTM", "Todas"}, want: []string{"KTM", "Todas"}},
		{name: "plain brands", in: []string{"Honda", "BMW"}, want: []string{"Honda", "BMW"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, withoutAll(tt.in))
		})
	}
}

func TestCreateRecommendationValidation(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		code  string
		field string
	}{
		{name: "price range inverted", body: `{"price_min": 9000, "price_max": 9000}`, code: ErrCodeValidationFailed, field: "price_max"},
		{name: "displacement range inverted", body: `{"displacement_min": 800, "displacement_max": 500}`, code: ErrCodeValidationFailed, field: "displacement_max"},
		{name: "unknown license", body: `{"license": "C"}`, code: ErrCodeValidationFailed, field: "license"},
		{name: "bad sort key", body: `{"sort_by": "displacement"}`, code: ErrCodeValidationFailed, field: "sort_by"},
		{name: "bad sort order", body: `{"sort_order": "up"}`, code: ErrCodeValidationFailed, field: "sort_order"},
		{name: "unknown field", body: `{"colour": "red"}`, code: ErrCodeBadRequest},
		{name: "malformed json", body: `{"price_max": `, code: ErrCodeBadRequest},
	}

	srv := newTestServer(t, true, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := srv.do(t, http.MethodPost, "/api/v1/recommendations", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
			if tt.field != "" {
				assert.Contains(t, string(mustMarshal(t, env.Error.Details)), `"field":"`+tt.field+`"`)
			}
		})
	}
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestCreateRecommendationWithoutCatalog(t *testing.T) {
	srv := newTestServer(t, false, nil)
	rec, _ := srv.do(t, http.MethodPost, "/api/v1/recommendations", "", "{}")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSortKeyMissingFromCatalog(t *testing.T) {
	srv := newTestServer(t, false, nil)
	cat := sampleCatalog()
	cat.Columns = []models.Column{
		models.ColumnBrand, models.ColumnModel, models.ColumnPrice, models.ColumnSeatHeight,
		models.ColumnDisplacement, models.ColumnMinimumLicense, models.ColumnType,
	}
	_, err := srv.store.Publish(cat)
	require.NoError(t, err)

	rec, env := srv.do(t, http.MethodPost, "/api/v1/recommendations", "", `{"sort_by": "power"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrCodeBadRequest, env.Error.Code)
}

func TestGetRecommendationsWithoutResults(t *testing.T) {
	srv := newTestServer(t, true, nil)
	rec, env := srv.do(t, http.MethodGet, "/api/v1/recommendations", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, ErrCodeNotFound, env.Error.Code)

	rec, _ = srv.do(t, http.MethodGet, "/api/v1/recommendations?page=zero", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRecommendationsClampsPage(t *testing.T) {
	srv := newTestServer(t, true, nil)
	rec, _ := srv.do(t, http.MethodPost, "/api/v1/recommendations", "", "{}")
	session := rec.Header().Get(SessionHeader)

	rec, env := srv.do(t, http.MethodGet, "/api/v1/recommendations?page=40", session, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, env.Meta.Pagination.Page)

	// The clamped page is remembered.
	_, env = srv.do(t, http.MethodGet, "/api/v1/recommendations", session, "")
	assert.Equal(t, 2, env.Meta.Pagination.Page)
}

func TestGetRecommendationsAfterReload(t *testing.T) {
	srv := newTestServer(t, true, nil)
	rec, _ := srv.do(t, http.MethodPost, "/api/v1/recommendations", "", "{}")
	session := rec.Header().Get(SessionHeader)

	cheaper := sampleCatalog()
	cheaper.Rows = append(cheaper.Rows, row("Honda", "CB125R", "Naked", "A1", 4999, 816, 15, 125))
	_, err := srv.store.Publish(cheaper)
	require.NoError(t, err)

	rec, env := srv.do(t, http.MethodGet, "/api/v1/recommendations", session, "")
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeData[ResultsView](t, env)
	assert.Equal(t, uint64(2), view.CatalogVersion)
	assert.Equal(t, 6, view.Results.Total)
	assert.Equal(t, "CB125R", view.Results.Items[0].Model)
}

func TestResultCacheHits(t *testing.T) {
	srv := newTestServer(t, true, nil)
	srv.do(t, http.MethodPost, "/api/v1/recommendations", "", `{"brands": ["Honda", "KTM"]}`)
	srv.do(t, http.MethodPost, "/api/v1/recommendations", "", `{"brands": ["KTM", "Honda"]}`)

	assert.Equal(t, float64(1), testutil.ToFloat64(srv.metrics.CacheLookupsTotal.WithLabelValues("miss")))
	assert.Equal(t, float64(1), testutil.ToFloat64(srv.metrics.CacheLookupsTotal.WithLabelValues("hit")))
}

func TestResultCacheDisabled(t *testing.T) {
	cache := NewResultCache(0, time.Minute, nil)
	res, err := cache.Recommend(sampleCatalog(), NewRecommendationRequest().Query())
	require.NoError(t, err)
	assert.Equal(t, 5, res.Len())
	assert.Equal(t, 0, cache.Len())
}

func TestFavorites(t *testing.T) {
	srv := newTestServer(t, true, nil)
	rec, env := srv.do(t, http.MethodPut, "/api/v1/favorites/R%201250%20GS", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	session := rec.Header().Get(SessionHeader)
	fav := decodeData[FavoriteView](t, env)
	assert.Equal(t, "R 1250 GS", fav.Model)
	assert.True(t, fav.Favorite)

	srv.do(t, http.MethodPut, "/api/v1/favorites/Z400", session, "")

	// Favorites come from the whole catalog, not the last result.
	rec, env = srv.do(t, http.MethodGet, "/api/v1/favorites", session, "")
	require.Equal(t, http.StatusOK, rec.Code)
	cards := decodeData[[]present.Card](t, env)
	assert.Equal(t, []string{"R 1250 GS", "Z400"}, cardModels(cards))
	assert.True(t, cards[0].Favorite)

	rec, env = srv.do(t, http.MethodDelete, "/api/v1/favorites/Z400", session, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"R 1250 GS"}, decodeData[FavoriteView](t, env).Favorites)

	// Cards in a result carry the favorite flag.
	_, env = srv.do(t, http.MethodPost, "/api/v1/recommendations", session,
		`{"price_max": 20000, "displacement_max": 1500, "license": "A", "brands": ["BMW"]}`)
	view := decodeData[ResultsView](t, env)
	require.Len(t, view.Results.Items, 1)
	assert.True(t, view.Results.Items[0].Favorite)
}

func TestUnknownSessionGetsFreshID(t *testing.T) {
	srv := newTestServer(t, true, nil)
	rec, _ := srv.do(t, http.MethodGet, "/api/v1/favorites", "not-a-uuid", "")
	require.Equal(t, http.StatusOK, rec.Code)
	id := rec.Header().Get(SessionHeader)
	assert.NotEqual(t, "not-a-uuid", id)
	assert.Len(t, id, 36)
}

func TestDashboard(t *testing.T) {
	srv := newTestServer(t, true, nil)
	rec, env := srv.do(t, http.MethodGet, "/api/v1/dashboard?type=Naked", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"models":4`)

	rec, env = srv.do(t, http.MethodGet, "/api/v1/dashboard?brand=Ducati", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, ErrCodeNoData, env.Error.Code)
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, true, func(cfg *config.Config) {
		cfg.Server.RateLimitRequests = 1
		cfg.Server.RateLimitWindow = time.Minute
	})
	rec, _ := srv.do(t, http.MethodGet, "/api/v1/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, env := srv.do(t, http.MethodGet, "/api/v1/health", "", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, ErrCodeTooManyRequests, env.Error.Code)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, true, func(cfg *config.Config) {
		cfg.Server.CORSOrigins = []string{"http://ui.test"}
	})
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/recommendations", nil)
	req.Header.Set("Origin", "http://ui.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)

	assert.Equal(t, "http://ui.test", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestNotFoundAndMetrics(t *testing.T) {
	srv := newTestServer(t, true, nil)
	rec, env := srv.do(t, http.MethodGet, "/api/v1/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, ErrCodeNotFound, env.Error.Code)

	srv.do(t, http.MethodGet, "/api/v1/health", "", "")
	rec, _ = srv.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `motofit_http_requests_total{method="GET",route="/api/v1/health",status="200"} 1`)
}

func TestUnknownPathsShareOneMetricSeries(t *testing.T) {
	srv := newTestServer(t, true, nil)
	for i := 0; i < 50; i++ {
		rec, _ := srv.do(t, http.MethodGet, fmt.Sprintf("/junk/%d", i), "", "")
		require.Equal(t, http.StatusNotFound, rec.Code)
	}

	assert.Equal(t, 1, testutil.CollectAndCount(srv.metrics.HTTPRequestsTotal))
	assert.Equal(t, float64(50), testutil.ToFloat64(srv.metrics.HTTPRequestsTotal.WithLabelValues(unmatchedRoute, http.MethodGet, "404")))
}
