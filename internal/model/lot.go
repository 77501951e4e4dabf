package model

// Status is the sale state of a lot.  The set is closed: every value read
// from or written to a store passes through normalize.NormalizeStatus.
type Status string

const (
	StatusLibre    Status = "LIBRE"    // available
	StatusSeparado Status = "SEPARADO" // reserved
	StatusVendido  Status = "VENDIDO"  // sold
)

// Lot is a single sellable parcel inside a block (manzana).  Lots are
// created by the seed import and only updated through the API.
//
// Fields:
//  ID                 – canonical identifier "{MZ}-{LL}", the join key
//                       between CSV rows and database rows.
//  Mz                 – block identifier, uppercase and trimmed.
//  Lote               – parcel number inside the block (> 0).
//  AreaM2             – surface in square meters, nil when unknown.
//  Price              – list price, nil when unknown.
//  Condicion          – LIBRE, SEPARADO or VENDIDO.
//  Asesor             – sales advisor assigned to the lot.
//  Cliente            – buyer name when reserved or sold.
//  Comentario         – free-form note.
//  UltimaModificacion – display timestamp stamped by the store on update.
type Lot struct {
	ID                 string   `json:"id" db:"id"`
	Mz                 string   `json:"mz" db:"mz"`
	Lote               int      `json:"lote" db:"lote"`
	AreaM2             *float64 `json:"areaM2" db:"area"`
	Price              *float64 `json:"price" db:"precio"`
	Condicion          Status   `json:"condicion" db:"condicion"`
	Asesor             string   `json:"asesor" db:"asesor"`
	Cliente            string   `json:"cliente" db:"cliente"`
	Comentario         string   `json:"comentario" db:"comentario"`
	UltimaModificacion string   `json:"ultimaModificacion" db:"ultima_modificacion"`
}

// Clone returns a deep copy of the lot so callers can mutate the result
// without touching shared snapshots.
func (l Lot) Clone() Lot {
	out := l
	if l.AreaM2 != nil {
		v := *l.AreaM2
		out.AreaM2 = &v
	}
	if l.Price != nil {
		v := *l.Price
		out.Price = &v
	}
	return out
}

// Float returns a pointer to v.  Handy for building patches and fixtures.
func Float(v float64) *float64 { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }
