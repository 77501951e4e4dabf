package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Request is the input of a proforma.  Optional values left nil fall back
// to the policy.
type Request struct {
	Regular      decimal.Decimal
	Soles        decimal.Decimal
	Pct          decimal.Decimal
	Promo        *decimal.Decimal // nil means "no promotional price given"
	LastEdited   Field
	DownPayment  decimal.Decimal
	Installments int
	AnnualPct    *decimal.Decimal
	PromoDays    int
}

// Installment is one row of the payment schedule.
type Installment struct {
	Numero  int             `json:"numero"`
	Fecha   string          `json:"fecha"`
	Cuota   decimal.Decimal `json:"cuota"`
	Interes decimal.Decimal `json:"interes"`
	Capital decimal.Decimal `json:"capital"`
	Saldo   decimal.Decimal `json:"saldo"`
}

// Proforma is a non-binding quotation.
type Proforma struct {
	Discount
	Inicial        decimal.Decimal `json:"inicial"`
	SaldoFinanciar decimal.Decimal `json:"saldoFinanciar"`
	Cuotas         int             `json:"cuotas"`
	InteresAnual   decimal.Decimal `json:"interesAnual"`
	CuotaMensual   decimal.Decimal `json:"cuotaMensual"`
	Promocion      Promotion       `json:"promocion"`
	Cronograma     []Installment   `json:"cronograma"`
	GeneradoEn     time.Time       `json:"generadoEn"`
}

// BuildProforma reconciles the discount, floors the down payment and
// schedules the financed balance of the promotional price.
func BuildProforma(req Request, policy Policy, now time.Time) Proforma {
	promo := req.Regular
	if req.Promo != nil {
		promo = *req.Promo
	}
	d := Resolve(req.Regular, req.Soles, req.Pct, promo, req.LastEdited)

	n := req.Installments
	if n <= 0 {
		n = policy.DefaultInstallments
	}
	annual := policy.AnnualInterestPct
	if req.AnnualPct != nil && !req.AnnualPct.IsNegative() {
		annual = *req.AnnualPct
	}

	down := Money(EffectiveDownPayment(req.DownPayment, policy.MinDownPayment))
	financed := Money(decimal.Max(d.Promo.Sub(down), decimal.Zero))

	p := Proforma{
		Discount:       d,
		Inicial:        down,
		SaldoFinanciar: financed,
		Cuotas:         n,
		InteresAnual:   annual,
		CuotaMensual:   Money(AmortizedMonthly(financed, annual, n)),
		GeneradoEn:     now,
	}
	p.Promocion.SetWindow(req.PromoDays, policy.MaxPromoDays, now)
	p.Cronograma = Schedule(financed, annual, n, now)
	return p
}

// Schedule lays out n monthly installments starting one month after start.
// Amounts are rounded to cents and the last installment absorbs the
// rounding so capital always sums to principal.
func Schedule(principal, annualPct decimal.Decimal, n int, start time.Time) []Installment {
	if n <= 0 || !principal.IsPositive() {
		return []Installment{}
	}
	i := MonthlyRate(annualPct)
	if !i.IsPositive() {
		i = decimal.Zero
	}
	payment := Money(AmortizedMonthly(principal, annualPct, n))

	out := make([]Installment, 0, n)
	balance := principal
	for k := 1; k <= n; k++ {
		interest := Money(balance.Mul(i))
		capital := payment.Sub(interest)
		if k == n || capital.GreaterThan(balance) {
			capital = balance
		}
		balance = balance.Sub(capital)
		out = append(out, Installment{
			Numero:  k,
			Fecha:   start.AddDate(0, k, 0).Format("2006-01-02"),
			Cuota:   capital.Add(interest),
			Interes: interest,
			Capital: capital,
			Saldo:   balance,
		})
		if balance.IsZero() {
			break
		}
	}
	return out
}
