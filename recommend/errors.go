package recommend

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aluiziolira/motofit/models"
)

var (
	// ErrInvalidSortKey is returned when the sort key is not a sortable display column.
	ErrInvalidSortKey = errors.New("recommend: invalid sort key")
	// ErrSortKeyUnavailable is returned when the catalog schema lacks the sort key.
	ErrSortKeyUnavailable = errors.New("recommend: sort key not in catalog")
	// ErrMissingColumns is returned by Negotiate when required columns are absent.
	ErrMissingColumns = errors.New("recommend: required columns missing")
)

// MissingColumnsError names the columns a catalog failed to provide.
type MissingColumnsError struct {
	Columns []models.Column
}

func (e *MissingColumnsError) Error() string {
	names := make([]string, len(e.Columns))
	for i, c := range e.Columns {
		names[i] = string(c)
	}
	return fmt.Sprintf("%s: %s", ErrMissingColumns, strings.Join(names, ", "))
}

func (e *MissingColumnsError) Unwrap() error {
	return ErrMissingColumns
}
