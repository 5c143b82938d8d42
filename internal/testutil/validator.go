package testutil

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"sales-reconciliation-service/internal/models"
)

// ValidateLedger checks the identities every reconciled ledger satisfies:
// expected = sales - returns and difference = received - expected per
// order, unique order ids, and a summary equal to the column sums.
func ValidateLedger(records []*models.ReconciledRecord, summary *models.Summary) error {
	var errs error
	seen := make(map[string]bool, len(records))
	var totals models.Summary

	for _, r := range records {
		if seen[r.OrderID] {
			errs = multierr.Append(errs, fmt.Errorf("order %s appears more than once", r.OrderID))
		}
		seen[r.OrderID] = true

		if want := r.SalesValue.Sub(r.ReturnValue); !r.ExpectedNetPayment.Equal(want) {
			errs = multierr.Append(errs, fmt.Errorf("order %s: expected net payment %s, want %s", r.OrderID, r.ExpectedNetPayment, want))
		}
		if want := r.NetPaymentReceived.Sub(r.ExpectedNetPayment); !r.Difference.Equal(want) {
			errs = multierr.Append(errs, fmt.Errorf("order %s: difference %s, want %s", r.OrderID, r.Difference, want))
		}

		totals.TotalSales = totals.TotalSales.Add(r.SalesValue)
		totals.TotalReturns = totals.TotalReturns.Add(r.ReturnValue)
		totals.TotalReceived = totals.TotalReceived.Add(r.NetPaymentReceived)
		totals.ExpectedTotal = totals.ExpectedTotal.Add(r.ExpectedNetPayment)
		totals.TotalDifference = totals.TotalDifference.Add(r.Difference)
	}

	if summary == nil {
		return multierr.Append(errs, fmt.Errorf("summary is missing"))
	}
	return multierr.Append(errs, CompareSummary(summary, &totals))
}

// CompareSummary reports every total of got that differs from want.
func CompareSummary(got, want *models.Summary) error {
	var errs error
	check := func(name string, g, w decimal.Decimal) {
		if !g.Equal(w) {
			errs = multierr.Append(errs, fmt.Errorf("%s: got %s, want %s", name, g, w))
		}
	}
	check("total sales", got.TotalSales, want.TotalSales)
	check("total returns", got.TotalReturns, want.TotalReturns)
	check("total received", got.TotalReceived, want.TotalReceived)
	check("expected total", got.ExpectedTotal, want.ExpectedTotal)
	check("total difference", got.TotalDifference, want.TotalDifference)
	return errs
}

// CompareLedger checks records against the scenario's expected ledger,
// including order. Only ids kept by the join should be passed in keep;
// nil keeps every id.
func (s *Scenario) CompareLedger(records []*models.ReconciledRecord, keep func(*models.ReconciledRecord) bool) error {
	var want []*models.ReconciledRecord
	for _, id := range s.Order {
		r := s.Expected[id]
		if keep == nil || keep(r) {
			want = append(want, r)
		}
	}

	if len(records) != len(want) {
		return fmt.Errorf("ledger has %d orders, want %d", len(records), len(want))
	}

	var errs error
	for i, got := range records {
		if got.OrderID != want[i].OrderID {
			errs = multierr.Append(errs, fmt.Errorf("row %d: order %s, want %s", i, got.OrderID, want[i].OrderID))
			continue
		}
		gotValues, wantValues := got.Values(), want[i].Values()
		for j, column := range models.ReconciledColumns() {
			if !decimalEqual(gotValues[j], wantValues[j]) {
				errs = multierr.Append(errs, fmt.Errorf("order %s %s: got %s, want %s", got.OrderID, column, gotValues[j], wantValues[j]))
			}
		}
	}
	return errs
}

func decimalEqual(a, b string) bool {
	x, errA := decimal.NewFromString(a)
	y, errB := decimal.NewFromString(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return x.Equal(y)
}
