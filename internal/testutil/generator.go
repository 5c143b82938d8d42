// Package testutil generates seller reports with a known ledger and checks
// reconciliation results against it.
package testutil

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math/rand"
	"path/filepath"

	"github.com/shopspring/decimal"
	"github.com/spf13/afero"

	"sales-reconciliation-service/internal/models"
)

// ReportGenerator builds shipment, returns and payment reports for a
// number of orders. The same Seed always yields the same reports.
type ReportGenerator struct {
	Orders int
	Seed   int64

	// Ratios are probabilities in [0, 1].
	ReturnRatio    float64
	UnderpaidRatio float64
	UnpaidRatio    float64
	// SplitRatio is the chance that an order is spread over several rows.
	SplitRatio float64
	// PaymentOnly adds orders present only in the payment report.
	PaymentOnly int

	MinAmount decimal.Decimal
	MaxAmount decimal.Decimal

	Schemas models.SchemaSet
}

// NewReportGenerator returns a generator with realistic ratios
func NewReportGenerator(orders int, seed int64) *ReportGenerator {
	return &ReportGenerator{
		Orders:         orders,
		Seed:           seed,
		ReturnRatio:    0.15,
		UnderpaidRatio: 0.1,
		UnpaidRatio:    0.05,
		SplitRatio:     0.2,
		PaymentOnly:    orders / 50,
		MinAmount:      decimal.NewFromInt(99),
		MaxAmount:      decimal.NewFromInt(25000),
		Schemas:        models.DefaultSchemaSet(),
	}
}

// Scenario holds generated reports and the ledger they must reconcile to.
type Scenario struct {
	Shipment [][]string
	Returns  [][]string
	Payment  [][]string

	// Expected is keyed by order id; Order lists ids in full outer join order.
	Expected map[string]*models.ReconciledRecord
	Order    []string
}

// Generate creates the reports
func (g *ReportGenerator) Generate() *Scenario {
	rng := rand.New(rand.NewSource(g.Seed))

	s := &Scenario{
		Shipment: [][]string{g.Schemas.Shipment.Columns()},
		Returns:  [][]string{g.Schemas.Returns.Columns()},
		Payment:  [][]string{g.Schemas.Payment.Columns()},
		Expected: make(map[string]*models.ReconciledRecord, g.Orders+g.PaymentOnly),
	}

	var returnRows, paymentRows [][]string
	for i := 0; i < g.Orders; i++ {
		id := fmt.Sprintf("OD%08d", i+1)
		record := s.record(id)
		record.Presence.Shipment = true

		for _, part := range g.split(rng) {
			qty := int64(rng.Intn(3) + 1)
			value := g.amount(rng).Mul(part).Round(2)
			record.ShippedQuantity = record.ShippedQuantity.Add(decimal.NewFromInt(qty))
			record.SalesValue = record.SalesValue.Add(value)
			s.Shipment = append(s.Shipment, []string{id, fmt.Sprint(qty), value.StringFixed(2)})
		}

		if rng.Float64() < g.ReturnRatio {
			value := record.SalesValue.Mul(decimal.NewFromFloat(rng.Float64())).Round(2)
			record.ReturnQuantity = decimal.NewFromInt(1)
			record.ReturnValue = value
			record.Presence.Returns = true
			returnRows = append(returnRows, []string{id, "1", value.StringFixed(2)})
		}

		expected := record.SalesValue.Sub(record.ReturnValue)
		switch r := rng.Float64(); {
		case r < g.UnpaidRatio:
			continue
		case r < g.UnpaidRatio+g.UnderpaidRatio:
			// Marketplace commission withheld.
			expected = expected.Mul(decimal.NewFromFloat(0.85)).Round(2)
		}
		record.NetPaymentReceived = expected
		record.Presence.Payment = true
		paymentRows = append(paymentRows, []string{id, expected.StringFixed(2)})
	}

	for i := 0; i < g.PaymentOnly; i++ {
		id := fmt.Sprintf("PX%06d", i+1)
		value := g.amount(rng).Round(2)
		record := s.record(id)
		record.NetPaymentReceived = value
		record.Presence.Payment = true
		paymentRows = append(paymentRows, []string{id, value.StringFixed(2)})
	}

	// Payments arrive in a different order from shipments.
	rng.Shuffle(len(paymentRows), func(i, j int) {
		paymentRows[i], paymentRows[j] = paymentRows[j], paymentRows[i]
	})
	s.Returns = append(s.Returns, returnRows...)
	s.Payment = append(s.Payment, paymentRows...)
	s.reorderPaymentOnly(paymentRows)

	for _, record := range s.Expected {
		record.Derive()
	}
	return s
}

func (s *Scenario) record(id string) *models.ReconciledRecord {
	r := &models.ReconciledRecord{
		OrderID:            id,
		ShippedQuantity:    decimal.Zero,
		SalesValue:         decimal.Zero,
		ReturnQuantity:     decimal.Zero,
		ReturnValue:        decimal.Zero,
		NetPaymentReceived: decimal.Zero,
	}
	s.Expected[id] = r
	s.Order = append(s.Order, id)
	return r
}

// reorderPaymentOnly moves payment-only ids to the order they first appear
// in the shuffled payment report.
func (s *Scenario) reorderPaymentOnly(paymentRows [][]string) {
	order := make([]string, 0, len(s.Order))
	for _, id := range s.Order {
		if s.Expected[id].Presence.Shipment {
			order = append(order, id)
		}
	}
	for _, row := range paymentRows {
		if !s.Expected[row[0]].Presence.Shipment {
			order = append(order, row[0])
		}
	}
	s.Order = order
}

// split returns the shares of an order's value written as separate rows.
func (g *ReportGenerator) split(rng *rand.Rand) []decimal.Decimal {
	if rng.Float64() >= g.SplitRatio {
		return []decimal.Decimal{decimal.NewFromInt(1)}
	}
	parts := rng.Intn(3) + 2
	shares := make([]decimal.Decimal, parts)
	for i := range shares {
		shares[i] = decimal.NewFromInt(1).Div(decimal.NewFromInt(int64(parts)))
	}
	return shares
}

func (g *ReportGenerator) amount(rng *rand.Rand) decimal.Decimal {
	amountRange := g.MaxAmount.Sub(g.MinAmount)
	return decimal.NewFromFloat(rng.Float64()).Mul(amountRange).Add(g.MinAmount)
}

// Summary totals the expected ledger.
func (s *Scenario) Summary() *models.Summary {
	summary := &models.Summary{}
	for _, id := range s.Order {
		r := s.Expected[id]
		summary.TotalSales = summary.TotalSales.Add(r.SalesValue)
		summary.TotalReturns = summary.TotalReturns.Add(r.ReturnValue)
		summary.TotalReceived = summary.TotalReceived.Add(r.NetPaymentReceived)
		summary.ExpectedTotal = summary.ExpectedTotal.Add(r.ExpectedNetPayment)
		summary.TotalDifference = summary.TotalDifference.Add(r.Difference)
	}
	return summary
}

// ReportPaths returns the paths WriteCSV uses inside dir.
func ReportPaths(dir string) (shipment, returns, payment string) {
	return filepath.Join(dir, "gst.csv"), filepath.Join(dir, "rtv.csv"), filepath.Join(dir, "payment.csv")
}

// WriteCSV writes the three reports into dir on fs.
func (s *Scenario) WriteCSV(fs afero.Fs, dir string) error {
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return err
	}
	shipment, returns, payment := ReportPaths(dir)
	for path, rows := range map[string][][]string{
		shipment: s.Shipment,
		returns:  s.Returns,
		payment:  s.Payment,
	} {
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		if err := w.WriteAll(rows); err != nil {
			return fmt.Errorf("failed to encode %s: %w", path, err)
		}
		if err := afero.WriteFile(fs, path, buf.Bytes(), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	return nil
}

// Table returns rows as a loaded table, header first.
func Table(name string, rows [][]string) *models.Table {
	table := models.NewTable(name, rows[0]...)
	for _, row := range rows[1:] {
		values := make([]any, len(row))
		for i, v := range row {
			values[i] = v
		}
		table.Append(values...)
	}
	return table
}
