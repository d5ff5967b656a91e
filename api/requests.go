package api

import (
	"strings"

	"github.com/aluiziolira/motofit/models"
	"github.com/aluiziolira/motofit/recommend"
)

// RecommendationRequest is the body of POST /recommendations. Fields left
// out of the body keep the search form defaults.
type RecommendationRequest struct {
	PriceMin        float64  `json:"price_min" validate:"gte=0"`
	PriceMax        float64  `json:"price_max" validate:"gtfield=PriceMin"`
	DisplacementMin float64  `json:"displacement_min" validate:"gte=0"`
	DisplacementMax float64  `json:"displacement_max" validate:"gtfield=DisplacementMin"`
	License         string   `json:"license" validate:"required,license"`
	RiderHeight     float64  `json:"rider_height" validate:"gt=0,lte=250"`
	Brands          []string `json:"brands" validate:"omitempty,dive,required"`
	Types           []string `json:"types" validate:"omitempty,dive,required"`
	SortBy          string   `json:"sort_by" validate:"sort_key"`
	SortOrder       string   `json:"sort_order" validate:"oneof=asc desc"`
}

// NewRecommendationRequest returns a request holding the form defaults.
func NewRecommendationRequest() RecommendationRequest {
	q := recommend.DefaultQuery()
	order := "asc"
	if !q.SortAscending {
		order = "desc"
	}
	return RecommendationRequest{
		PriceMin:        q.PriceMin,
		PriceMax:        q.PriceMax,
		DisplacementMin: q.DisplacementMin,
		DisplacementMax: q.DisplacementMax,
		License:         q.License,
		RiderHeight:     q.RiderHeight,
		SortBy:          string(q.SortKey),
		SortOrder:       order,
	}
}

// Query converts a validated request. A list holding only an "all"
// sentinel means no restriction.
func (r RecommendationRequest) Query() recommend.Query {
	return recommend.Query{
		PriceMin:        r.PriceMin,
		PriceMax:        r.PriceMax,
		DisplacementMin: r.DisplacementMin,
		DisplacementMax: r.DisplacementMax,
		License:         strings.ToUpper(r.License),
		RiderHeight:     r.RiderHeight,
		Brands:          withoutAll(r.Brands),
		Types:           withoutAll(r.Types),
		SortKey:         models.Column(r.SortBy),
		SortAscending:   r.SortOrder != "desc",
	}
}

func withoutAll(values []string) []string {
	if len(values) == 1 {
		switch strings.ToLower(strings.TrimSpace(values[0])) {
		case "all", "todas", "todos":
			return nil
		}
	}
	return values
}
