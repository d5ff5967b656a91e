package validation

import (
	"strings"
	"testing"
)

type queryRequest struct {
	PriceMin float64  `json:"price_min" validate:"gte=0"`
	PriceMax float64  `json:"price_max" validate:"gtfield=PriceMin"`
	License  string   `json:"license" validate:"required,license"`
	SortBy   string   `json:"sort_by" validate:"omitempty,sort_key"`
	Height   float64  `json:"rider_height" validate:"gte=100,lte=250"`
	Brands   []string `json:"brands" validate:"max=3,dive,min=1"`
}

func validRequest() queryRequest {
	return queryRequest{PriceMin: 0, PriceMax: 7000, License: "a2", SortBy: "price", Height: 175}
}

func TestValidateStructAccepts(t *testing.T) {
	req := validRequest()
	if err := ValidateStruct(&req); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
}

func TestValidateStructMessages(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*queryRequest)
		field   string
		tag     string
		message string
	}{
		{
			name:    "missing license",
			mutate:  func(r *queryRequest) { r.License = "" },
			field:   "license",
			tag:     "required",
			message: "license is required",
		},
		{
			name:    "unknown license",
			mutate:  func(r *queryRequest) { r.License = "C" },
			field:   "license",
			tag:     "license",
			message: "license must be one of AM, B, A1, A2, A",
		},
		{
			name:    "bad sort key",
			mutate:  func(r *queryRequest) { r.SortBy = "brand" },
			field:   "sort_by",
			tag:     "sort_key",
			message: "sort_by must be one of price, power, seat_height, dry_weight",
		},
		{
			name:    "inverted price range",
			mutate:  func(r *queryRequest) { r.PriceMax = 0 },
			field:   "price_max",
			tag:     "gtfield",
			message: "price_max must be greater than price_min",
		},
		{
			name:    "height too low",
			mutate:  func(r *queryRequest) { r.Height = 50 },
			field:   "rider_height",
			tag:     "gte",
			message: "rider_height must be greater than or equal to 100",
		},
		{
			name:    "too many brands",
			mutate:  func(r *queryRequest) { r.Brands = []string{"a", "b", "c", "d"} },
			field:   "brands",
			tag:     "max",
			message: "brands must be at most 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			err := ValidateStruct(&req)
			if err == nil {
				t.Fatalf("expected validation error")
			}
			errs := err.Errors()
			if len(errs) != 1 {
				t.Fatalf("errors = %d (%v), want 1", len(errs), err)
			}
			if errs[0].Field() != tt.field || errs[0].Tag() != tt.tag {
				t.Fatalf("got field=%q tag=%q, want field=%q tag=%q", errs[0].Field(), errs[0].Tag(), tt.field, tt.tag)
			}
			if errs[0].Error() != tt.message {
				t.Fatalf("message = %q, want %q", errs[0].Error(), tt.message)
			}
		})
	}
}

func TestRequestValidationErrorJoinsMessages(t *testing.T) {
	req := validRequest()
	req.License = ""
	req.Height = 300
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "; ") {
		t.Fatalf("expected joined message, got %q", err.Error())
	}
	fields, ok := err.Details()["fields"].([]map[string]interface{})
	if !ok || len(fields) != 2 {
		t.Fatalf("details = %v", err.Details())
	}
}

func TestNewRequestValidationError(t *testing.T) {
	err := NewRequestValidationError("page", "min", "page must be at least 1")
	if err.Error() != "page must be at least 1" {
		t.Fatalf("message = %q", err.Error())
	}
	if err.Errors()[0].Field() != "page" {
		t.Fatalf("field = %q", err.Errors()[0].Field())
	}
}

func TestToSnake(t *testing.T) {
	if got := toSnake("DisplacementMin"); got != "displacement_min" {
		t.Fatalf("toSnake = %q", got)
	}
}
