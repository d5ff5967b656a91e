package present

import (
	"sort"

	"github.com/aluiziolira/motofit/models"
	"github.com/aluiziolira/motofit/recommend"
)

// Favorites is a set of model names. The zero value is empty and ready to
// use; a nil *Favorites reads as empty.
type Favorites struct {
	models map[string]struct{}
}

// NewFavorites returns a set holding the given models.
func NewFavorites(names ...string) *Favorites {
	f := &Favorites{}
	for _, name := range names {
		f.Set(name, true)
	}
	return f
}

// Set marks or unmarks model.
func (f *Favorites) Set(model string, on bool) {
	if on {
		if f.models == nil {
			f.models = make(map[string]struct{})
		}
		f.models[model] = struct{}{}
		return
	}
	delete(f.models, model)
}

// Toggle flips model and returns its new state.
func (f *Favorites) Toggle(model string) bool {
	on := !f.Has(model)
	f.Set(model, on)
	return on
}

// Has reports whether model is a favorite.
func (f *Favorites) Has(model string) bool {
	if f == nil {
		return false
	}
	_, ok := f.models[model]
	return ok
}

// Models returns the favorites in sorted order.
func (f *Favorites) Models() []string {
	if f == nil {
		return []string{}
	}
	out := make([]string, 0, len(f.models))
	for m := range f.models {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Len is the number of favorites.
func (f *Favorites) Len() int {
	if f == nil {
		return 0
	}
	return len(f.models)
}

// FavoriteRows returns every catalog row whose model is a favorite, in
// catalog order. Rows sharing a favorite model name are all included.
func FavoriteRows(cat *models.Catalog, favs *Favorites) []models.DisplayRow {
	out := []models.DisplayRow{}
	if cat == nil || favs.Len() == 0 {
		return out
	}
	for i := range cat.Rows {
		if favs.Has(cat.Rows[i].Model) {
			out = append(out, recommend.Project(&cat.Rows[i], cat))
		}
	}
	return out
}
