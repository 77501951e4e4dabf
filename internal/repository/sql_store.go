package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/lot-map/internal/model"
	"github.com/iliyamo/lot-map/internal/normalize"
)

const lotColumns = `id, mz, lote, area, precio, condicion,
	COALESCE(asesor, '') AS asesor, COALESCE(cliente, '') AS cliente,
	COALESCE(comentario, '') AS comentario,
	COALESCE(ultima_modificacion, '') AS ultima_modificacion`

// SQLStore keeps lots in the lotes table of MySQL or SQLite.  Updates are
// single-row column patches, so concurrent edits of different lots never
// race; concurrent edits of the same lot are last-write-wins.
type SQLStore struct {
	db    *sqlx.DB
	clock Clock
}

// NewSQLStore constructs a SQLStore given a DB handle.
func NewSQLStore(db *sqlx.DB, clock Clock) *SQLStore {
	return &SQLStore{db: db, clock: clock}
}

// List returns all lots ordered by block then lot number.  Rows whose
// block or lot number is unusable are dropped.
func (r *SQLStore) List(ctx context.Context) ([]model.Lot, error) {
	q := `SELECT ` + lotColumns + ` FROM lotes ORDER BY mz, lote`
	var rows []model.Lot
	if err := r.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, storageErr("list lotes", err)
	}
	out := make([]model.Lot, 0, len(rows))
	for _, l := range rows {
		if !normalize.Lot(&l) {
			continue
		}
		out = append(out, l)
	}
	// normalization may change block case, so keep the sort authoritative
	SortLots(out)
	return out, nil
}

// GetByID retrieves a single lot or ErrLotNotFound.
func (r *SQLStore) GetByID(ctx context.Context, id string) (*model.Lot, error) {
	q := `SELECT ` + lotColumns + ` FROM lotes WHERE id = ?`
	var l model.Lot
	if err := r.db.GetContext(ctx, &l, r.db.Rebind(q), normalize.NormalizeID(id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLotNotFound
		}
		return nil, storageErr("get lote", err)
	}
	normalize.Lot(&l)
	return &l, nil
}

// UpdateByID issues one UPDATE touching only the patched columns plus
// the modification stamp, then reads the row back.
func (r *SQLStore) UpdateByID(ctx context.Context, id string, patch model.LotPatch) (*model.Lot, error) {
	key := normalize.NormalizeID(id)

	sets := make([]string, 0, 6)
	args := make([]interface{}, 0, 7)
	if patch.PriceSet {
		sets = append(sets, "precio = ?")
		if patch.Price == nil {
			args = append(args, nil)
		} else {
			args = append(args, *patch.Price)
		}
	}
	if patch.Condicion != nil {
		sets = append(sets, "condicion = ?")
		args = append(args, string(normalize.NormalizeStatus(string(*patch.Condicion))))
	}
	if patch.Asesor != nil {
		sets = append(sets, "asesor = ?")
		args = append(args, *patch.Asesor)
	}
	if patch.Cliente != nil {
		sets = append(sets, "cliente = ?")
		args = append(args, *patch.Cliente)
	}
	if patch.Comentario != nil {
		sets = append(sets, "comentario = ?")
		args = append(args, *patch.Comentario)
	}
	sets = append(sets, "ultima_modificacion = ?")
	args = append(args, r.clock.Stamp())
	args = append(args, key)

	q := `UPDATE lotes SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), args...)
	if err != nil {
		return nil, storageErr("update lote", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, storageErr("update lote", err)
	}
	if n == 0 {
		return nil, ErrLotNotFound
	}
	return r.GetByID(ctx, key)
}

// UpsertLots inserts or replaces lots keyed by id in one statement.
func (r *SQLStore) UpsertLots(ctx context.Context, lots []model.Lot) error {
	if len(lots) == 0 {
		return nil
	}
	// Build the INSERT with placeholders for each lot.  Each row requires
	// ten values.
	query := `INSERT INTO lotes (id, mz, lote, area, precio, condicion, asesor, cliente, comentario, ultima_modificacion) VALUES `
	args := make([]interface{}, 0, len(lots)*10)
	for i, l := range lots {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
		args = append(args, l.ID, l.Mz, l.Lote, nullable(l.AreaM2), nullable(l.Price),
			string(l.Condicion), l.Asesor, l.Cliente, l.Comentario, l.UltimaModificacion)
	}
	query += r.conflictClause()
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
		return storageErr("upsert lotes", err)
	}
	return nil
}

func (r *SQLStore) conflictClause() string {
	cols := []string{"mz", "lote", "area", "precio", "condicion", "asesor", "cliente", "comentario", "ultima_modificacion"}
	parts := make([]string, len(cols))
	if r.db.DriverName() == "mysql" {
		for i, c := range cols {
			parts[i] = c + " = VALUES(" + c + ")"
		}
		return " ON DUPLICATE KEY UPDATE " + strings.Join(parts, ", ")
	}
	for i, c := range cols {
		parts[i] = c + " = excluded." + c
	}
	return " ON CONFLICT(id) DO UPDATE SET " + strings.Join(parts, ", ")
}

func nullable(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
