package reconciler

import (
	"github.com/shopspring/decimal"

	"sales-reconciliation-service/internal/models"
	"sales-reconciliation-service/pkg/errors"
)

// Reconcile joins the three per-order aggregates on order id and derives the
// expected payment and difference for every order.
//
// With JoinFullOuter every id from any source appears once. With
// JoinShipmentAnchored only shipment ids appear and return or payment rows
// for other ids are dropped. Values from an absent source are zero. Records
// are ordered by first appearance: shipment ids, then ids new in returns,
// then ids new in payments.
func Reconcile(
	shipments []*models.ShipmentAggregate,
	returns []*models.ReturnAggregate,
	payments []*models.PaymentAggregate,
	mode models.JoinMode,
) ([]*models.ReconciledRecord, error) {
	if err := validateJoinMode(mode); err != nil {
		return nil, err
	}

	j := newJoiner(mode == models.JoinFullOuter)
	for _, s := range shipments {
		r := j.record(s.OrderID, true)
		r.ShippedQuantity = r.ShippedQuantity.Add(s.ShippedQuantity)
		r.SalesValue = r.SalesValue.Add(s.SalesValue)
		r.Presence.Shipment = true
	}
	for _, rt := range returns {
		if r := j.record(rt.OrderID, false); r != nil {
			r.ReturnQuantity = r.ReturnQuantity.Add(rt.ReturnQuantity)
			r.ReturnValue = r.ReturnValue.Add(rt.ReturnValue)
			r.Presence.Returns = true
		}
	}
	for _, p := range payments {
		if r := j.record(p.OrderID, false); r != nil {
			r.NetPaymentReceived = r.NetPaymentReceived.Add(p.NetPaymentReceived)
			r.Presence.Payment = true
		}
	}

	for _, r := range j.records {
		r.Derive()
	}
	return j.records, nil
}

func validateJoinMode(mode models.JoinMode) error {
	if mode == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "join_mode", mode, nil).
			WithSuggestion("choose full_outer to keep every order or shipment_anchored to keep only shipped orders")
	}
	if !mode.IsValid() {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "join_mode", mode, nil).
			WithSuggestion("valid join modes are full_outer and shipment_anchored")
	}
	return nil
}

type joiner struct {
	openKeys bool
	index    map[string]*models.ReconciledRecord
	records  []*models.ReconciledRecord
}

func newJoiner(openKeys bool) *joiner {
	return &joiner{
		openKeys: openKeys,
		index:    make(map[string]*models.ReconciledRecord),
		records:  make([]*models.ReconciledRecord, 0),
	}
}

// record returns the ledger row for id, creating it when anchor is set or
// the join keeps ids from every source. It returns nil for a dropped id.
func (j *joiner) record(id string, anchor bool) *models.ReconciledRecord {
	if r, ok := j.index[id]; ok {
		return r
	}
	if !anchor && !j.openKeys {
		return nil
	}
	r := &models.ReconciledRecord{
		OrderID:            id,
		ShippedQuantity:    decimal.Zero,
		SalesValue:         decimal.Zero,
		ReturnQuantity:     decimal.Zero,
		ReturnValue:        decimal.Zero,
		NetPaymentReceived: decimal.Zero,
	}
	j.index[id] = r
	j.records = append(j.records, r)
	return r
}

// Summarize totals the ledger. An empty ledger yields all zeros.
func Summarize(records []*models.ReconciledRecord) *models.Summary {
	summary := &models.Summary{
		TotalSales:      decimal.Zero,
		TotalReturns:    decimal.Zero,
		TotalReceived:   decimal.Zero,
		ExpectedTotal:   decimal.Zero,
		TotalDifference: decimal.Zero,
	}
	for _, r := range records {
		summary.TotalSales = summary.TotalSales.Add(r.SalesValue)
		summary.TotalReturns = summary.TotalReturns.Add(r.ReturnValue)
		summary.TotalReceived = summary.TotalReceived.Add(r.NetPaymentReceived)
		summary.ExpectedTotal = summary.ExpectedTotal.Add(r.ExpectedNetPayment)
		summary.TotalDifference = summary.TotalDifference.Add(r.Difference)
	}
	return summary
}

// StatusBreakdown counts orders by payment status and source coverage.
type StatusBreakdown struct {
	Orders          int             `json:"orders"`
	Settled         int             `json:"settled"`
	Underpaid       int             `json:"underpaid"`
	Overpaid        int             `json:"overpaid"`
	UnderpaidAmount decimal.Decimal `json:"underpaid_amount"`
	OverpaidAmount  decimal.Decimal `json:"overpaid_amount"`
	MissingShipment int             `json:"missing_shipment"`
	MissingPayment  int             `json:"missing_payment"`
	WithReturns     int             `json:"with_returns"`
}

// Breakdown classifies every ledger row. UnderpaidAmount is reported as a
// positive shortfall.
func Breakdown(records []*models.ReconciledRecord) *StatusBreakdown {
	b := &StatusBreakdown{
		Orders:          len(records),
		UnderpaidAmount: decimal.Zero,
		OverpaidAmount:  decimal.Zero,
	}
	for _, r := range records {
		switch r.Status() {
		case models.StatusSettled:
			b.Settled++
		case models.StatusUnderpaid:
			b.Underpaid++
			b.UnderpaidAmount = b.UnderpaidAmount.Add(r.Difference.Neg())
		case models.StatusOverpaid:
			b.Overpaid++
			b.OverpaidAmount = b.OverpaidAmount.Add(r.Difference)
		}
		if !r.Presence.Shipment {
			b.MissingShipment++
		}
		if !r.Presence.Payment {
			b.MissingPayment++
		}
		if r.Presence.Returns {
			b.WithReturns++
		}
	}
	return b
}
