package models

// Column names a catalog field.
type Column string

const (
	ColumnBrand          Column = "brand"
	ColumnModel          Column = "model"
	ColumnPrice          Column = "price"
	ColumnPower          Column = "power"
	ColumnSeatHeight     Column = "seat_height"
	ColumnDryWeight      Column = "dry_weight"
	ColumnDisplacement   Column = "displacement"
	ColumnMinimumLicense Column = "minimum_license"
	ColumnType           Column = "type_simplified"
)

// AllColumns lists every catalog column in canonical order.
func AllColumns() []Column {
	return []Column{
		ColumnBrand,
		ColumnModel,
		ColumnPrice,
		ColumnPower,
		ColumnSeatHeight,
		ColumnDryWeight,
		ColumnDisplacement,
		ColumnMinimumLicense,
		ColumnType,
	}
}

// EssentialColumns are the fields a row must carry to enter a catalog.
func EssentialColumns() []Column {
	return []Column{
		ColumnPrice,
		ColumnSeatHeight,
		ColumnMinimumLicense,
		ColumnBrand,
		ColumnType,
		ColumnDisplacement,
	}
}

// IsNumeric reports whether the column holds a Number.
func (c Column) IsNumeric() bool {
	switch c {
	case ColumnPrice, ColumnPower, ColumnSeatHeight, ColumnDryWeight, ColumnDisplacement:
		return true
	default:
		return false
	}
}
