package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/aluiziolira/motofit/catalog"
	"github.com/aluiziolira/motofit/config"
	"github.com/aluiziolira/motofit/dashboard"
	"github.com/aluiziolira/motofit/metrics"
	"github.com/aluiziolira/motofit/models"
	"github.com/aluiziolira/motofit/present"
	"github.com/aluiziolira/motofit/recommend"
	"github.com/aluiziolira/motofit/validation"
)

const maxBodyBytes = 64 << 10

// Handler serves the motofit endpoints.
type Handler struct {
	store    *catalog.Store
	sessions *present.Sessions
	cache    *ResultCache
	cfg      config.ResultsConfig
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewHandler wires the handlers to the catalog store and session state.
func NewHandler(store *catalog.Store, sessions *present.Sessions, cache *ResultCache, cfg config.ResultsConfig, m *metrics.Metrics, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:    store,
		sessions: sessions,
		cache:    cache,
		cfg:      cfg,
		metrics:  m,
		logger:   logger,
	}
}

// HealthStatus is the body of the health endpoint.
type HealthStatus struct {
	Status         string    `json:"status"`
	CatalogVersion uint64    `json:"catalog_version"`
	Rows           int       `json:"rows"`
	Source         string    `json:"source,omitempty"`
	LoadedAt       time.Time `json:"loaded_at,omitempty"`
}

// FacetsView lists the values the search form offers.
type FacetsView struct {
	Brands   []string              `json:"brands"`
	Types    []string              `json:"types"`
	Licenses []string              `json:"licenses"`
	SortKeys []models.Column       `json:"sort_keys"`
	Defaults RecommendationRequest `json:"defaults"`
}

// ResultsView is one page of a session's recommendation.
type ResultsView struct {
	Caption        string                     `json:"caption"`
	Columns        []models.Column            `json:"columns"`
	CatalogVersion uint64                     `json:"catalog_version"`
	Results        present.Page[present.Card] `json:"results"`
}

// FavoriteView reports a favorite change.
type FavoriteView struct {
	Model     string   `json:"model"`
	Favorite  bool     `json:"favorite"`
	Favorites []string `json:"favorites"`
}

// Health reports whether a catalog is published.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	cat := h.store.Current()
	if cat == nil {
		rw.ServiceUnavailable("No catalog loaded")
		return
	}
	rw.Success(HealthStatus{
		Status:         "ok",
		CatalogVersion: cat.Version,
		Rows:           cat.Len(),
		Source:         cat.Source,
		LoadedAt:       cat.LoadedAt,
	})
}

// Facets lists brands, types, licenses and sort keys.
func (h *Handler) Facets(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	cat := h.store.Current()
	if cat == nil {
		rw.ServiceUnavailable("No catalog loaded")
		return
	}
	facets := dashboard.BuildFacets(cat)
	rw.Success(FacetsView{
		Brands:   facets.Brands,
		Types:    facets.Types,
		Licenses: recommend.Licenses(),
		SortKeys: recommend.SortKeys(),
		Defaults: NewRecommendationRequest(),
	})
}

// CreateRecommendation runs a query, stores it in the session and returns
// the first page.
func (h *Handler) CreateRecommendation(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	rw := NewResponseWriter(w, r)

	req := NewRecommendationRequest()
	if err := decodeBody(r, &req); err != nil {
		h.metrics.ObserveRecommendation("invalid", 0)
		rw.BadRequest("Invalid request body: " + err.Error())
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		h.metrics.ObserveRecommendation("invalid", 0)
		rw.ValidationError("Invalid recommendation query", verr.Details())
		return
	}

	cat := h.store.Current()
	if cat == nil {
		rw.ServiceUnavailable("No catalog loaded")
		return
	}

	q := req.Query()
	res, err := h.cache.Recommend(cat, q)
	if err != nil {
		h.recommendationError(rw, err)
		return
	}
	h.metrics.ObserveRecommendation("ok", res.Len())
	sess.SetResults(q, res, cat.Version)

	h.logger.Debug("recommendation",
		slog.String("session", sess.ID),
		slog.Int("rows", res.Len()),
		slog.Uint64("catalog_version", cat.Version),
	)
	h.writePage(rw, sess, res, cat.Version, 1)
}

// GetRecommendations returns a page of the session's last recommendation.
// Results are recomputed when the catalog has been reloaded since.
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	rw := NewResponseWriter(w, r)

	page := sess.Page()
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			rw.ValidationError("Invalid page", map[string]interface{}{
				"fields": []map[string]interface{}{{"field": "page", "tag": "gte", "message": "page must be a positive integer"}},
			})
			return
		}
		page = n
	}

	res, q, version, ok := sess.Results()
	if !ok {
		rw.NotFound("No recommendation in this session")
		return
	}

	if cat := h.store.Current(); cat != nil && cat.Version != version {
		fresh, err := h.cache.Recommend(cat, q)
		if err != nil {
			h.recommendationError(rw, err)
			return
		}
		sess.SetResults(q, fresh, cat.Version)
		res, version = fresh, cat.Version
	}

	h.writePage(rw, sess, res, version, page)
}

// ListFavorites returns the session's favorites from the full catalog.
func (h *Handler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	rw := NewResponseWriter(w, r)

	cat := h.store.Current()
	if cat == nil {
		rw.ServiceUnavailable("No catalog loaded")
		return
	}
	favs := sess.Favorites()
	rw.Success(present.NewCards(present.FavoriteRows(cat, favs), favs))
}

// AddFavorite marks a model as a favorite.
func (h *Handler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	h.setFavorite(w, r, true)
}

// RemoveFavorite clears a favorite.
func (h *Handler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	h.setFavorite(w, r, false)
}

func (h *Handler) setFavorite(w http.ResponseWriter, r *http.Request, on bool) {
	sess := h.session(w, r)
	rw := NewResponseWriter(w, r)

	model, err := url.PathUnescape(chi.URLParam(r, "model"))
	if err != nil || model == "" {
		rw.BadRequest("Invalid model name")
		return
	}
	sess.SetFavorite(model, on)
	rw.Success(FavoriteView{
		Model:     model,
		Favorite:  on,
		Favorites: sess.Favorites().Models(),
	})
}

// Dashboard returns the analytics view for the type and brand filters.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	cat := h.store.Current()
	if cat == nil {
		rw.ServiceUnavailable("No catalog loaded")
		return
	}

	filter := dashboard.Filter{
		Type:  r.URL.Query().Get("type"),
		Brand: r.URL.Query().Get("brand"),
	}
	d, err := dashboard.Build(cat, filter)
	if errors.Is(err, dashboard.ErrNoData) {
		rw.Error(http.StatusNotFound, ErrCodeNoData, "No data for the selected filters")
		return
	}
	if err != nil {
		rw.InternalError(err)
		return
	}
	rw.Success(d)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) *present.Session {
	sess, created := h.sessions.GetOrCreate(r.Header.Get(SessionHeader))
	if created {
		h.logger.Debug("session created", slog.String("session", sess.ID))
	}
	w.Header().Set(SessionHeader, sess.ID)
	return sess
}

func (h *Handler) writePage(rw *ResponseWriter, sess *present.Session, res *recommend.Result, version uint64, page int) {
	cards := present.NewCards(res.Rows, sess.Favorites())
	p := present.Paginate(cards, page, h.cfg.PageSize)
	sess.SetPage(p.Number)

	rw.SuccessWithPagination(ResultsView{
		Caption:        p.Caption(),
		Columns:        res.Columns,
		CatalogVersion: version,
		Results:        p,
	}, &PaginationMeta{
		Total:      p.Total,
		Count:      len(p.Items),
		Page:       p.Number,
		TotalPages: p.TotalPages,
		PerPage:    h.cfg.PageSize,
		HasMore:    p.HasNext(),
	})
}

func (h *Handler) recommendationError(rw *ResponseWriter, err error) {
	switch {
	case errors.Is(err, recommend.ErrInvalidSortKey), errors.Is(err, recommend.ErrSortKeyUnavailable):
		h.metrics.ObserveRecommendation("invalid", 0)
		rw.BadRequest(err.Error())
	default:
		h.metrics.ObserveRecommendation("error", 0)
		rw.InternalError(err)
	}
}

func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
