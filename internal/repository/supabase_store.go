package repository

import (
	"context"

	supabase "github.com/nedpals/supabase-go"

	"github.com/iliyamo/lot-map/internal/model"
	"github.com/iliyamo/lot-map/internal/normalize"
)

// supabaseRow mirrors one row of the lotes table as returned by PostgREST.
type supabaseRow struct {
	ID                 string   `json:"id"`
	Mz                 string   `json:"mz"`
	Lote               int      `json:"lote"`
	Area               *float64 `json:"area"`
	Precio             *float64 `json:"precio"`
	Condicion          *string  `json:"condicion"`
	Asesor             *string  `json:"asesor"`
	Cliente            *string  `json:"cliente"`
	Comentario         *string  `json:"comentario"`
	UltimaModificacion *string  `json:"ultima_modificacion"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (r supabaseRow) lot() (model.Lot, bool) {
	l := model.Lot{
		Mz:                 r.Mz,
		Lote:               r.Lote,
		AreaM2:             r.Area,
		Price:              r.Precio,
		Condicion:          model.Status(deref(r.Condicion)),
		Asesor:             deref(r.Asesor),
		Cliente:            deref(r.Cliente),
		Comentario:         deref(r.Comentario),
		UltimaModificacion: deref(r.UltimaModificacion),
	}
	ok := normalize.Lot(&l)
	return l, ok
}

// upsertRow is the insert shape; every column is sent so PostgREST
// merges duplicates column for column.
type upsertRow struct {
	ID                 string   `json:"id"`
	Mz                 string   `json:"mz"`
	Lote               int      `json:"lote"`
	Area               *float64 `json:"area"`
	Precio             *float64 `json:"precio"`
	Condicion          string   `json:"condicion"`
	Asesor             string   `json:"asesor"`
	Cliente            string   `json:"cliente"`
	Comentario         string   `json:"comentario"`
	UltimaModificacion string   `json:"ultima_modificacion"`
}

// SupabaseStore reads and writes the lotes table through the Supabase
// REST (PostgREST) API.  Updates are PATCH requests filtered by id, so
// the database applies them as single-row column patches.
type SupabaseStore struct {
	client *supabase.Client
	table  string
	clock  Clock
}

// NewSupabaseStore constructs a store over table using client.
func NewSupabaseStore(client *supabase.Client, table string, clock Clock) *SupabaseStore {
	if table == "" {
		table = "lotes"
	}
	return &SupabaseStore{client: client, table: table, clock: clock}
}

// List returns all lots sorted by block then lot number.
func (s *SupabaseStore) List(ctx context.Context) ([]model.Lot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []supabaseRow
	if err := s.client.DB.From(s.table).Select("*").ExecuteWithContext(ctx, &rows); err != nil {
		return nil, storageErr("list lotes", err)
	}
	out := make([]model.Lot, 0, len(rows))
	for _, r := range rows {
		if l, ok := r.lot(); ok {
			out = append(out, l)
		}
	}
	SortLots(out)
	return out, nil
}

func (s *SupabaseStore) get(ctx context.Context, id string) (*model.Lot, error) {
	var rows []supabaseRow
	if err := s.client.DB.From(s.table).Select("*").Eq("id", id).ExecuteWithContext(ctx, &rows); err != nil {
		return nil, storageErr("get lote", err)
	}
	for _, r := range rows {
		if l, ok := r.lot(); ok {
			return &l, nil
		}
	}
	return nil, ErrLotNotFound
}

// UpdateByID sends only the patched columns plus the modification stamp
// and reads the row back.
func (s *SupabaseStore) UpdateByID(ctx context.Context, id string, patch model.LotPatch) (*model.Lot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := normalize.NormalizeID(id)

	datos := map[string]interface{}{
		"ultima_modificacion": s.clock.Stamp(),
	}
	if patch.PriceSet {
		datos["precio"] = nullable(patch.Price)
	}
	if patch.Condicion != nil {
		datos["condicion"] = string(normalize.NormalizeStatus(string(*patch.Condicion)))
	}
	if patch.Asesor != nil {
		datos["asesor"] = *patch.Asesor
	}
	if patch.Cliente != nil {
		datos["cliente"] = *patch.Cliente
	}
	if patch.Comentario != nil {
		datos["comentario"] = *patch.Comentario
	}

	var updated []supabaseRow
	if err := s.client.DB.From(s.table).Update(datos).Eq("id", key).ExecuteWithContext(ctx, &updated); err != nil {
		return nil, storageErr("update lote", err)
	}
	for _, r := range updated {
		if l, ok := r.lot(); ok {
			return &l, nil
		}
	}
	// PostgREST may answer without a representation; read back to tell
	// "updated" from "no such row".
	return s.get(ctx, key)
}

// UpsertLots merges lots into the table keyed by the primary key id.
func (s *SupabaseStore) UpsertLots(ctx context.Context, lots []model.Lot) error {
	if len(lots) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	rows := make([]upsertRow, len(lots))
	for i, l := range lots {
		rows[i] = upsertRow{
			ID:                 l.ID,
			Mz:                 l.Mz,
			Lote:               l.Lote,
			Area:               l.AreaM2,
			Precio:             l.Price,
			Condicion:          string(l.Condicion),
			Asesor:             l.Asesor,
			Cliente:            l.Cliente,
			Comentario:         l.Comentario,
			UltimaModificacion: l.UltimaModificacion,
		}
	}
	if err := s.client.DB.From(s.table).Upsert(rows).ExecuteWithContext(ctx, nil); err != nil {
		return storageErr("upsert lotes", err)
	}
	return nil
}
