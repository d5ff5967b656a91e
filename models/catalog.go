package models

import "time"

// Catalog is an immutable, loaded table of motorcycles. Callers must not
// modify Rows or Columns once the catalog is published.
type Catalog struct {
	Rows     []Motorcycle
	Columns  []Column
	Version  uint64
	Source   string
	LoadedAt time.Time
}

// NewCatalog builds a catalog whose schema is every known column.
func NewCatalog(rows []Motorcycle) *Catalog {
	return &Catalog{
		Rows:     rows,
		Columns:  AllColumns(),
		LoadedAt: time.Now(),
	}
}

// HasColumn reports whether the source schema carried col.
func (c *Catalog) HasColumn(col Column) bool {
	if c == nil {
		return false
	}
	for _, have := range c.Columns {
		if have == col {
			return true
		}
	}
	return false
}

// Len returns the number of rows.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Rows)
}
