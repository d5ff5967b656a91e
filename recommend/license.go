package recommend

import "strings"

// licenseRanks orders license categories; a rider may ride anything whose
// minimum license ranks lower or equal to their own.
var licenseRanks = map[string]int{
	"AM": 0,
	"B":  1,
	"A1": 1,
	"A2": 2,
	"A":  3,
}

// Licenses lists the known license codes in display order.
func Licenses() []string {
	return []string{"AM", "B", "A1", "A2", "A"}
}

// LicenseRank returns the rank of a rider's license code, matched
// case-insensitively.
func LicenseRank(code string) (int, bool) {
	rank, ok := licenseRanks[strings.ToUpper(code)]
	return rank, ok
}

// ValidLicense reports whether code is a known license category.
func ValidLicense(code string) bool {
	_, ok := LicenseRank(code)
	return ok
}

// rowLicenseRank looks up a catalog row's license exactly as stored.
func rowLicenseRank(code string) (int, bool) {
	rank, ok := licenseRanks[code]
	return rank, ok
}
