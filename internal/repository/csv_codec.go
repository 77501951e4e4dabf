package repository

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/iliyamo/lot-map/internal/model"
	"github.com/iliyamo/lot-map/internal/normalize"
)

// Canonical CSV column names.
const (
	colMz         = "MZ"
	colLote       = "LOTE"
	colArea       = "AREA"
	colPrecio     = "PRECIO"
	colCondicion  = "CONDICION"
	colAsesor     = "ASESOR"
	colCliente    = "CLIENTE"
	colComentario = "COMENTARIO"
	colUltimaMod  = "ULTIMA_MODIFICACION"
)

var canonicalColumns = []string{
	colMz, colLote, colArea, colPrecio, colCondicion,
	colAsesor, colCliente, colComentario, colUltimaMod,
}

// headerAliases maps spreadsheet header spellings to canonical names.
var headerAliases = map[string]string{
	"MZ":                  colMz,
	"MANZANA":             colMz,
	"LOTE":                colLote,
	"AREA":                colArea,
	"AREA_M2":             colArea,
	"AREAM2":              colArea,
	"ÁREA":                colArea,
	"PRECIO":              colPrecio,
	"PRICE":               colPrecio,
	"CONDICION":           colCondicion,
	"CONDICIÓN":           colCondicion,
	"ESTADO":              colCondicion,
	"ASESOR":              colAsesor,
	"CLIENTE":             colCliente,
	"COMENTARIO":          colComentario,
	"COMENTARIOS":         colComentario,
	"ULTIMA_MODIFICACION": colUltimaMod,
	"ÚLTIMA_MODIFICACIÓN": colUltimaMod,
}

// csvTable is the raw content of a lot CSV.  Rows are kept verbatim so
// a rewrite preserves column order, unknown columns and malformed rows.
type csvTable struct {
	comma  rune
	header []string
	cols   map[string]int // canonical column -> index
	rows   [][]string
}

func canonicalHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToUpper(strings.TrimSpace(h))
	h = strings.Join(strings.Fields(h), "_")
	if c, ok := headerAliases[h]; ok {
		return c
	}
	return h
}

// detectComma picks ';' for spreadsheets exported with a semicolon
// separator and ',' otherwise.
func detectComma(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

func readCSVTable(r io.Reader) (*csvTable, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	t := &csvTable{comma: detectComma(data), cols: map[string]int{}}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = t.comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("parse csv: missing header")
	}

	t.header = records[0]
	for i, h := range t.header {
		c := canonicalHeader(h)
		t.header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := t.cols[c]; !dup {
			t.cols[c] = i
		}
	}
	if _, ok := t.cols[colMz]; !ok {
		return nil, fmt.Errorf("parse csv: missing %s column", colMz)
	}
	if _, ok := t.cols[colLote]; !ok {
		return nil, fmt.Errorf("parse csv: missing %s column", colLote)
	}
	t.rows = records[1:]
	return t, nil
}

func (t *csvTable) get(row []string, col string) string {
	i, ok := t.cols[col]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func (t *csvTable) set(row []string, col, v string) []string {
	i := t.cols[col]
	for len(row) <= i {
		row = append(row, "")
	}
	row[i] = v
	return row
}

// rowLot converts one record.  ok is false for a row missing its block
// or lot number; such rows are skipped, never fatal.
func (t *csvTable) rowLot(row []string, f normalize.NumberFormat) (model.Lot, bool) {
	mz := normalize.NormalizeMz(t.get(row, colMz))
	lote, ok := normalize.ParseLote(t.get(row, colLote), f)
	if mz == "" || !ok {
		return model.Lot{}, false
	}
	l := model.Lot{
		Mz:                 mz,
		Lote:               lote,
		AreaM2:             normalize.CleanNumber(t.get(row, colArea), f),
		Price:              normalize.CleanNumber(t.get(row, colPrecio), f),
		Condicion:          model.Status(t.get(row, colCondicion)),
		Asesor:             t.get(row, colAsesor),
		Cliente:            t.get(row, colCliente),
		Comentario:         t.get(row, colComentario),
		UltimaModificacion: t.get(row, colUltimaMod),
	}
	normalize.Lot(&l)
	return l, true
}

// lots returns the well-formed lots in file order together with the row
// index of each id.  The first row carrying an id wins; later duplicates
// and malformed rows are reported through skipped.
func (t *csvTable) lots(f normalize.NumberFormat) (out []model.Lot, index map[string]int, skipped int) {
	index = make(map[string]int, len(t.rows))
	for i, row := range t.rows {
		l, ok := t.rowLot(row, f)
		if !ok {
			skipped++
			continue
		}
		if _, dup := index[l.ID]; dup {
			skipped++
			continue
		}
		index[l.ID] = i
		out = append(out, l)
	}
	return out, index, skipped
}

// ensureColumns appends any canonical column the file lacks.
func (t *csvTable) ensureColumns() {
	for _, c := range canonicalColumns {
		if _, ok := t.cols[c]; ok {
			continue
		}
		t.cols[c] = len(t.header)
		t.header = append(t.header, c)
	}
}

// putLot writes the lot's mutable fields into row i.
func (t *csvTable) putLot(i int, l model.Lot) {
	t.ensureColumns()
	row := t.rows[i]
	row = t.set(row, colPrecio, formatNumber(l.Price))
	row = t.set(row, colCondicion, string(l.Condicion))
	row = t.set(row, colAsesor, l.Asesor)
	row = t.set(row, colCliente, l.Cliente)
	row = t.set(row, colComentario, l.Comentario)
	row = t.set(row, colUltimaMod, l.UltimaModificacion)
	t.rows[i] = row
}

func (t *csvTable) write(w io.Writer) error {
	cw := csv.NewWriter(w)
	cw.Comma = t.comma
	if err := cw.Write(t.header); err != nil {
		return err
	}
	for _, row := range t.rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatNumber(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// ParseLotsCSV reads a canonical lot CSV with the same rules the CSV
// store applies: malformed rows are dropped and the first occurrence of
// an id wins.  Lots are returned in file order.
func ParseLotsCSV(r io.Reader, f normalize.NumberFormat) ([]model.Lot, error) {
	t, err := readCSVTable(r)
	if err != nil {
		return nil, err
	}
	lots, _, _ := t.lots(f)
	return lots, nil
}
