package model

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// LotPatch is a normalized partial update.  A nil pointer leaves the
// column untouched.  Price is tri-state: PriceSet=false leaves it alone,
// PriceSet=true with a nil Price clears it.
type LotPatch struct {
	PriceSet   bool
	Price      *float64
	Condicion  *Status
	Asesor     *string
	Cliente    *string
	Comentario *string
}

// Empty reports whether the patch touches no column.
func (p LotPatch) Empty() bool {
	return !p.PriceSet && p.Condicion == nil && p.Asesor == nil && p.Cliente == nil && p.Comentario == nil
}

// ApplyTo writes the patch fields onto l.
func (p LotPatch) ApplyTo(l *Lot) {
	if p.PriceSet {
		if p.Price == nil {
			l.Price = nil
		} else {
			v := *p.Price
			l.Price = &v
		}
	}
	if p.Condicion != nil {
		l.Condicion = *p.Condicion
	}
	if p.Asesor != nil {
		l.Asesor = *p.Asesor
	}
	if p.Cliente != nil {
		l.Cliente = *p.Cliente
	}
	if p.Comentario != nil {
		l.Comentario = *p.Comentario
	}
}

// PriceInput captures a price exactly as the client sent it.  Numbers are
// kept as numbers, strings are kept raw for lenient parsing, and null or
// any other JSON type degenerates to "clear".
type PriceInput struct {
	Set   bool     // key present in the body
	Value *float64 // JSON number
	Text  string   // JSON string, parsed later with the configured number format
}

// UnmarshalJSON implements json.Unmarshaler.  It never fails.
func (p *PriceInput) UnmarshalJSON(data []byte) error {
	p.Set = true
	p.Value = nil
	p.Text = ""
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err == nil {
			p.Text = s
		}
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		if v, err := strconv.ParseFloat(string(data), 64); err == nil {
			p.Value = &v
		}
	}
	return nil
}

// TextInput captures a free-text field without rejecting odd JSON types.
// Strings are kept as sent, numbers and booleans keep their literal text,
// and null, objects or arrays leave the field untouched.
type TextInput struct {
	Set  bool
	Text string
}

// UnmarshalJSON implements json.Unmarshaler.  It never fails.
func (t *TextInput) UnmarshalJSON(data []byte) error {
	*t = TextInput{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err == nil {
			*t = TextInput{Set: true, Text: s}
		}
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9', 't', 'f':
		*t = TextInput{Set: true, Text: string(data)}
	}
	return nil
}

// Ptr returns the text, or nil when the field was absent or ignored.
func (t TextInput) Ptr() *string {
	if !t.Set {
		return nil
	}
	return String(t.Text)
}
