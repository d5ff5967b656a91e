package present

import (
	"strconv"
	"strings"

	"github.com/aluiziolira/motofit/models"
)

const notAvailable = "N/A"

// Card is the display form of one recommended motorcycle.
type Card struct {
	Brand      string `json:"brand"`
	Model      string `json:"model"`
	Type       string `json:"type"`
	Price      string `json:"price"`
	Power      string `json:"power"`
	SeatHeight string `json:"seat_height"`
	DryWeight  string `json:"dry_weight"`
	LogoKey    string `json:"logo_key"`
	Favorite   bool   `json:"favorite"`
}

// NewCard formats row for display.
func NewCard(row models.DisplayRow, favorite bool) Card {
	return Card{
		Brand:      row.Brand,
		Model:      row.Model,
		Type:       row.Type,
		Price:      FormatPrice(row.Price),
		Power:      withUnit(row.Power, "cv"),
		SeatHeight: withUnit(row.SeatHeight, "mm"),
		DryWeight:  withUnit(row.DryWeight, "kg"),
		LogoKey:    LogoKey(row.Brand),
		Favorite:   favorite,
	}
}

// NewCards formats rows, flagging the ones in favs.
func NewCards(rows []models.DisplayRow, favs *Favorites) []Card {
	cards := make([]Card, len(rows))
	for i, row := range rows {
		cards[i] = NewCard(row, favs.Has(row.Model))
	}
	return cards
}

// FormatPrice renders the integer part of a price in euros with thousands
// separators, e.g. €12,345.
func FormatPrice(n models.Number) string {
	v, ok := n.Float()
	if !ok {
		return notAvailable
	}
	return "€" + groupThousands(int64(v))
}

// LogoKey is the brand's asset name: lower case, spaces as underscores.
func LogoKey(brand string) string {
	return strings.ReplaceAll(strings.ToLower(brand), " ", "_")
}

func withUnit(n models.Number, unit string) string {
	if _, ok := n.Float(); !ok {
		return notAvailable
	}
	return n.String() + " " + unit
}

func groupThousands(v int64) string {
	digits := strconv.FormatInt(v, 10)
	sign := ""
	if strings.HasPrefix(digits, "-") {
		sign, digits = "-", digits[1:]
	}
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	return sign + b.String()
}
