package reconciler

import (
	"fmt"

	"github.com/shopspring/decimal"

	"sales-reconciliation-service/internal/models"
)

// DiscrepancyType represents the type of discrepancy
type DiscrepancyType string

const (
	DiscrepancyUnderpaid       DiscrepancyType = "underpaid"
	DiscrepancyOverpaid        DiscrepancyType = "overpaid"
	DiscrepancyMissingPayment  DiscrepancyType = "missing_payment"
	DiscrepancyMissingShipment DiscrepancyType = "missing_shipment"
)

// Severity represents the severity level of a discrepancy
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Discrepancy describes one order whose payment does not match expectations
type Discrepancy struct {
	OrderID     string          `json:"order_id"`
	Type        DiscrepancyType `json:"type"`
	Severity    Severity        `json:"severity"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// findDiscrepancies reports every order with a non-zero difference, in
// ledger order.
func (s *Service) findDiscrepancies(records []*models.ReconciledRecord) []*Discrepancy {
	var discrepancies []*Discrepancy
	for _, r := range records {
		if r.Difference.IsZero() {
			continue
		}
		d := &Discrepancy{
			OrderID:  r.OrderID,
			Amount:   r.Difference,
			Severity: s.severity(r.Difference.Abs()),
		}
		switch {
		case !r.Presence.Shipment:
			d.Type = DiscrepancyMissingShipment
			d.Description = fmt.Sprintf("received %s for an order that is not in the shipment report", r.NetPaymentReceived.StringFixed(2))
		case !r.Presence.Payment:
			d.Type = DiscrepancyMissingPayment
			d.Severity = SeverityHigh
			d.Description = fmt.Sprintf("no payment found; expected %s", r.ExpectedNetPayment.StringFixed(2))
		case r.Difference.IsNegative():
			d.Type = DiscrepancyUnderpaid
			d.Description = fmt.Sprintf("paid %s less than expected", r.Difference.Neg().StringFixed(2))
		default:
			d.Type = DiscrepancyOverpaid
			d.Description = fmt.Sprintf("paid %s more than expected", r.Difference.StringFixed(2))
		}
		discrepancies = append(discrepancies, d)
	}
	return discrepancies
}

func (s *Service) severity(amount decimal.Decimal) Severity {
	switch {
	case amount.GreaterThanOrEqual(s.config.HighSeverityAmount):
		return SeverityHigh
	case amount.GreaterThanOrEqual(s.config.MediumSeverityAmount):
		return SeverityMedium
	default:
		return SeverityLow
	}
}
