// Package normalize holds the identifier and field normalization rules
// shared by every store, the HTTP layer and the seed command.  Any code
// that derives a lot id or reads a status must go through this package so
// the CSV and database backends agree byte for byte.
package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/iliyamo/lot-map/internal/model"
)

// NumberFormat selects how commas inside numeric text are interpreted.
type NumberFormat string

const (
	// ThousandsComma treats every comma as a thousands separator and
	// drops it: "1,234.50" -> 1234.5, "45000," -> 45000.
	ThousandsComma NumberFormat = "thousands"
	// DecimalComma treats a comma as the decimal point.  When a comma is
	// present dots are thousands separators: "45.000,00" -> 45000.
	DecimalComma NumberFormat = "decimal"
)

// ParseNumberFormat maps a config value to a NumberFormat.  Empty input
// selects ThousandsComma.
func ParseNumberFormat(s string) (NumberFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ThousandsComma):
		return ThousandsComma, nil
	case string(DecimalComma):
		return DecimalComma, nil
	}
	return "", fmt.Errorf("unknown number format %q", s)
}

// ToLoteID derives the canonical lot id "{MZ}-{LL}".
func ToLoteID(mz string, lote int) string {
	return fmt.Sprintf("%s-%02d", strings.ToUpper(strings.TrimSpace(mz)), lote)
}

// NormalizeID prepares a client supplied id for a case-insensitive exact match.
func NormalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// NormalizeMz uppercases and trims a block identifier.
func NormalizeMz(mz string) string {
	return strings.ToUpper(strings.TrimSpace(mz))
}

// NormalizeStatus closes the status enumeration: anything that is not
// SEPARADO or VENDIDO (case-insensitive) becomes LIBRE.
func NormalizeStatus(v string) model.Status {
	switch s := model.Status(strings.ToUpper(strings.TrimSpace(v))); s {
	case model.StatusSeparado, model.StatusVendido:
		return s
	}
	return model.StatusLibre
}

// NormalizeText trims free-form metadata.
func NormalizeText(v string) string {
	return strings.TrimSpace(v)
}

// CleanNumber parses spreadsheet style numeric text.  Only the first
// numeric run is read: it starts at the first digit (taking a directly
// preceding sign or leading dot) and ends at the first character that is
// not a digit, '.', ',', '-' or a space, so currency prefixes and unit
// suffixes like "m2" never leak digits.  Spaces inside the run are group
// separators.  Commas are then resolved according to f.  It returns nil
// for empty, unparsable or non-finite input and never fails.
func CleanNumber(v string, f NumberFormat) *float64 {
	rs := []rune(v)
	start := -1
	for i, r := range rs {
		if r >= '0' && r <= '9' {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}
	if start > 0 && rs[start-1] == '.' && (start == 1 || rs[start-2] == '-' || unicode.IsSpace(rs[start-2])) {
		start--
	}
	if start > 0 && rs[start-1] == '-' {
		start--
	}

	var b strings.Builder
scan:
	for _, r := range rs[start:] {
		switch {
		case (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r): // NBSP included
		default:
			break scan
		}
	}
	s := b.String()
	switch f {
	case DecimalComma:
		if strings.Contains(s, ",") {
			if strings.Count(s, ",") > 1 {
				return nil
			}
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		}
	default:
		s = strings.ReplaceAll(s, ",", "")
	}

	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return nil
	}
	return &n
}

// ParseLote reads a lot number.  Only positive integral values are valid.
func ParseLote(v string, f NumberFormat) (int, bool) {
	n := CleanNumber(v, f)
	if n == nil || *n <= 0 || *n != math.Trunc(*n) || *n > math.MaxInt32 {
		return 0, false
	}
	return int(*n), true
}

// Price keeps a non-negative price and degenerates anything else to nil.
func Price(v *float64) *float64 {
	if v == nil || *v < 0 || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	out := *v
	return &out
}

// Area keeps a strictly positive surface and degenerates anything else to nil.
func Area(v *float64) *float64 {
	if v == nil || *v <= 0 || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	out := *v
	return &out
}

// PriceInput resolves a raw client price into the tri-state patch form.
func PriceInput(in model.PriceInput, f NumberFormat) (set bool, price *float64) {
	if !in.Set {
		return false, nil
	}
	if in.Value != nil {
		return true, Price(in.Value)
	}
	if in.Text != "" {
		return true, Price(CleanNumber(in.Text, f))
	}
	return true, nil
}

// Lot normalizes every field of a lot in place and recomputes its id.
// It reports false when the lot has no usable block or lot number.
func Lot(l *model.Lot) bool {
	l.Mz = NormalizeMz(l.Mz)
	if l.Mz == "" || l.Lote <= 0 {
		return false
	}
	l.ID = ToLoteID(l.Mz, l.Lote)
	l.AreaM2 = Area(l.AreaM2)
	l.Price = Price(l.Price)
	l.Condicion = NormalizeStatus(string(l.Condicion))
	l.Asesor = NormalizeText(l.Asesor)
	l.Cliente = NormalizeText(l.Cliente)
	l.Comentario = NormalizeText(l.Comentario)
	l.UltimaModificacion = NormalizeText(l.UltimaModificacion)
	return true
}
