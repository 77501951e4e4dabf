package pricing

import (
	"github.com/shopspring/decimal"
)

// Field names one representation of the promotional discount.
type Field string

const (
	FieldNone  Field = ""
	FieldSoles Field = "descuentoSoles"
	FieldPct   Field = "descuentoPct"
	FieldPromo Field = "precioPromocional"
)

// ParseField maps a client supplied name to a Field; unknown names mean
// nothing was edited.
func ParseField(s string) Field {
	switch f := Field(s); f {
	case FieldSoles, FieldPct, FieldPromo:
		return f
	}
	return FieldNone
}

// Discount keeps the three representations of one promotional price
// consistent.  The field edited last is authoritative and the other two
// are recomputed from it; with no edit the promotional price wins.
type Discount struct {
	Regular    decimal.Decimal `json:"precioRegular"`
	Soles      decimal.Decimal `json:"descuentoSoles"`
	Pct        decimal.Decimal `json:"descuentoPct"`
	Promo      decimal.Decimal `json:"precioPromocional"`
	LastEdited Field           `json:"editado,omitempty"`
}

// NewDiscount starts with no discount on regular.
func NewDiscount(regular decimal.Decimal) *Discount {
	d := &Discount{Regular: Money(decimal.Max(regular, decimal.Zero))}
	d.Promo = d.Regular
	return d
}

// Edit records a user edit on f and reconciles the other fields.
func (d *Discount) Edit(f Field, v decimal.Decimal) {
	switch f {
	case FieldSoles:
		d.Soles = v
	case FieldPct:
		d.Pct = v
	case FieldPromo:
		d.Promo = v
	default:
		return
	}
	d.LastEdited = f
	d.reconcile()
}

// SetRegular changes the regular price and reconciles from the last
// edited field.
func (d *Discount) SetRegular(regular decimal.Decimal) {
	d.Regular = Money(decimal.Max(regular, decimal.Zero))
	d.reconcile()
}

// Resolve is the stateless form of Discount: it reconciles the given
// values using last as the authoritative field.
func Resolve(regular, soles, pct, promo decimal.Decimal, last Field) Discount {
	d := Discount{
		Regular:    Money(decimal.Max(regular, decimal.Zero)),
		Soles:      soles,
		Pct:        pct,
		Promo:      promo,
		LastEdited: last,
	}
	d.reconcile()
	return d
}

func (d *Discount) reconcile() {
	r := d.Regular
	switch d.LastEdited {
	case FieldSoles:
		d.Soles = Money(clamp(d.Soles, decimal.Zero, r))
		d.Promo = r.Sub(d.Soles)
		d.Pct = pctOf(d.Soles, r)
	case FieldPct:
		d.Pct = clamp(d.Pct, decimal.Zero, hundred)
		d.Soles = Money(r.Mul(d.Pct).Div(hundred))
		d.Promo = r.Sub(d.Soles)
	default:
		d.Promo = Money(clamp(d.Promo, decimal.Zero, r))
		d.Soles = r.Sub(d.Promo)
		d.Pct = pctOf(d.Soles, r)
	}
}

func pctOf(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Mul(hundred).Div(whole).Round(2)
}
