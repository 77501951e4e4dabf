// Package override implements the legacy display-layer overrides: per-lot
// patches that shadow canonical fields at read time and are never written
// back to the canonical store.
package override

import (
	"github.com/iliyamo/lot-map/internal/model"
)

// StorageKey is the fixed key under which the whole override map is
// persisted.
const StorageKey = "lotes_overrides_v1"

// Patch shadows some fields of one lot.  Nil fields are not overridden.
type Patch struct {
	Price     *float64      `json:"price,omitempty"`
	Condicion *model.Status `json:"condicion,omitempty"`
	Cliente   *string       `json:"cliente,omitempty"`
}

// Empty reports whether the patch shadows nothing.
func (p Patch) Empty() bool {
	return p.Price == nil && p.Condicion == nil && p.Cliente == nil
}

// Merge returns p with every non-nil field of next written over it.
func (p Patch) Merge(next Patch) Patch {
	if next.Price != nil {
		v := *next.Price
		p.Price = &v
	}
	if next.Condicion != nil {
		v := *next.Condicion
		p.Condicion = &v
	}
	if next.Cliente != nil {
		v := *next.Cliente
		p.Cliente = &v
	}
	return p
}

func (p Patch) applyTo(l *model.Lot) {
	if p.Price != nil {
		v := *p.Price
		l.Price = &v
	}
	if p.Condicion != nil {
		l.Condicion = *p.Condicion
	}
	if p.Cliente != nil {
		l.Cliente = *p.Cliente
	}
}

// Map holds overrides keyed by lot id.
type Map map[string]Patch

// Clone returns an independent copy of m.
func (m Map) Clone() Map {
	out := make(Map, len(m))
	for id, p := range m {
		out[id] = Patch{}.Merge(p)
	}
	return out
}

// Apply returns canonical with every matching override merged on top.
// Overrides for unknown ids are ignored: lots are never added or removed
// and the input slice is left untouched.
func Apply(canonical []model.Lot, overrides Map) []model.Lot {
	out := make([]model.Lot, len(canonical))
	for i, l := range canonical {
		out[i] = l.Clone()
		if p, ok := overrides[l.ID]; ok {
			p.applyTo(&out[i])
		}
	}
	return out
}
