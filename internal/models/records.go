package models

import (
	"github.com/shopspring/decimal"
)

// Canonical column names of the reconciled ledger, in export order.
const (
	FieldOrderID            = "Order ID"
	FieldShippedQuantity    = "Total_Shipped_QTY"
	FieldSalesValue         = "Total_Sales_Value"
	FieldReturnQuantity     = "Total_Return_QTY"
	FieldReturnValue        = "Total_Return_Value"
	FieldNetPaymentReceived = "Net_Payment_Received"
	FieldExpectedNetPayment = "Expected_Net_Payment"
	FieldDifference         = "Difference"
)

// ReconciledColumns returns the ledger header in export order.
func ReconciledColumns() []string {
	return []string{
		FieldOrderID,
		FieldShippedQuantity,
		FieldSalesValue,
		FieldReturnQuantity,
		FieldReturnValue,
		FieldNetPaymentReceived,
		FieldExpectedNetPayment,
		FieldDifference,
	}
}

// AggregateRecord is one grouped row of a source report: the normalized
// order id and the sum of every configured column, keyed by output name.
type AggregateRecord struct {
	OrderID string                     `json:"order_id"`
	Values  map[string]decimal.Decimal `json:"values"`
}

// Value returns the summed value for field, or zero when it was not aggregated.
func (r *AggregateRecord) Value(field string) decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	return r.Values[field]
}

// ShipmentAggregate is the per-order view of the shipment (GST) report.
type ShipmentAggregate struct {
	OrderID         string          `json:"order_id"`
	ShippedQuantity decimal.Decimal `json:"total_shipped_qty"`
	SalesValue      decimal.Decimal `json:"total_sales_value"`
}

// ReturnAggregate is the per-order view of the returns (RTV) report.
type ReturnAggregate struct {
	OrderID        string          `json:"order_id"`
	ReturnQuantity decimal.Decimal `json:"total_return_qty"`
	ReturnValue    decimal.Decimal `json:"total_return_value"`
}

// PaymentAggregate is the per-order view of the payment settlement report.
// NetPaymentReceived is signed: sales proceeds are positive, return
// deductions negative.
type PaymentAggregate struct {
	OrderID            string          `json:"order_id"`
	NetPaymentReceived decimal.Decimal `json:"net_payment_received"`
}

// ShipmentAggregates converts generic aggregate records to shipment views.
func ShipmentAggregates(records []*AggregateRecord) []*ShipmentAggregate {
	out := make([]*ShipmentAggregate, 0, len(records))
	for _, r := range records {
		out = append(out, &ShipmentAggregate{
			OrderID:         r.OrderID,
			ShippedQuantity: r.Value(FieldShippedQuantity),
			SalesValue:      r.Value(FieldSalesValue),
		})
	}
	return out
}

// ReturnAggregates converts generic aggregate records to return views.
func ReturnAggregates(records []*AggregateRecord) []*ReturnAggregate {
	out := make([]*ReturnAggregate, 0, len(records))
	for _, r := range records {
		out = append(out, &ReturnAggregate{
			OrderID:        r.OrderID,
			ReturnQuantity: r.Value(FieldReturnQuantity),
			ReturnValue:    r.Value(FieldReturnValue),
		})
	}
	return out
}

// PaymentAggregates converts generic aggregate records to payment views.
func PaymentAggregates(records []*AggregateRecord) []*PaymentAggregate {
	out := make([]*PaymentAggregate, 0, len(records))
	for _, r := range records {
		out = append(out, &PaymentAggregate{
			OrderID:            r.OrderID,
			NetPaymentReceived: r.Value(FieldNetPaymentReceived),
		})
	}
	return out
}

// Presence records which source reports contained an order id.
type Presence struct {
	Shipment bool `json:"shipment"`
	Returns  bool `json:"returns"`
	Payment  bool `json:"payment"`
}

// RecordStatus classifies a reconciled order by the sign of its difference.
type RecordStatus string

const (
	StatusSettled   RecordStatus = "settled"
	StatusUnderpaid RecordStatus = "underpaid"
	StatusOverpaid  RecordStatus = "overpaid"
)

// ReconciledRecord is one order of the final ledger. Fields from a source
// that lacks the order are zero, never missing.
type ReconciledRecord struct {
	OrderID            string          `json:"order_id"`
	ShippedQuantity    decimal.Decimal `json:"total_shipped_qty"`
	SalesValue         decimal.Decimal `json:"total_sales_value"`
	ReturnQuantity     decimal.Decimal `json:"total_return_qty"`
	ReturnValue        decimal.Decimal `json:"total_return_value"`
	NetPaymentReceived decimal.Decimal `json:"net_payment_received"`
	ExpectedNetPayment decimal.Decimal `json:"expected_net_payment"`
	Difference         decimal.Decimal `json:"difference"`
	Presence           Presence        `json:"presence"`
}

// Derive recomputes ExpectedNetPayment and Difference from the source fields.
func (r *ReconciledRecord) Derive() {
	r.ExpectedNetPayment = r.SalesValue.Sub(r.ReturnValue)
	r.Difference = r.NetPaymentReceived.Sub(r.ExpectedNetPayment)
}

// Status reports whether the seller was paid exactly, too little or too much.
func (r *ReconciledRecord) Status() RecordStatus {
	switch r.Difference.Sign() {
	case 0:
		return StatusSettled
	case -1:
		return StatusUnderpaid
	default:
		return StatusOverpaid
	}
}

// Values returns the record as text cells in ReconciledColumns order.
func (r *ReconciledRecord) Values() []string {
	return []string{
		r.OrderID,
		r.ShippedQuantity.String(),
		r.SalesValue.String(),
		r.ReturnQuantity.String(),
		r.ReturnValue.String(),
		r.NetPaymentReceived.String(),
		r.ExpectedNetPayment.String(),
		r.Difference.String(),
	}
}

// Summary holds the five ledger totals shown to the seller.
type Summary struct {
	TotalSales      decimal.Decimal `json:"total_sales"`
	TotalReturns    decimal.Decimal `json:"total_returns"`
	TotalReceived   decimal.Decimal `json:"total_received"`
	ExpectedTotal   decimal.Decimal `json:"expected_total"`
	TotalDifference decimal.Decimal `json:"total_difference"`
}
