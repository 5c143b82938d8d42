package models

import (
	"fmt"
	"strings"
)

// Source identifies one of the three input reports.
type Source string

const (
	SourceShipment Source = "shipment"
	SourceReturns  Source = "returns"
	SourcePayment  Source = "payment"
)

// Sources lists the input reports in join order.
func Sources() []Source {
	return []Source{SourceShipment, SourceReturns, SourcePayment}
}

// Label returns the name sellers know the report by.
func (s Source) Label() string {
	switch s {
	case SourceShipment:
		return "Shipment (GST)"
	case SourceReturns:
		return "Returns (RTV)"
	case SourcePayment:
		return "Payment"
	default:
		return string(s)
	}
}

// RequiredFields returns the output fields a schema for s must map.
func (s Source) RequiredFields() []string {
	switch s {
	case SourceShipment:
		return []string{FieldShippedQuantity, FieldSalesValue}
	case SourceReturns:
		return []string{FieldReturnQuantity, FieldReturnValue}
	case SourcePayment:
		return []string{FieldNetPaymentReceived}
	default:
		return nil
	}
}

// SourceSchema names the columns of one input report: the order id column
// used for grouping and, per output field, the column that is summed.
type SourceSchema struct {
	Source        Source            `json:"source" yaml:"-"`
	OrderIDColumn string            `json:"order_id_column" yaml:"order_id_column"`
	SumColumns    map[string]string `json:"sum_columns" yaml:"sum_columns"`
}

// Validate checks that every required field is mapped to a column.
func (s *SourceSchema) Validate() error {
	if strings.TrimSpace(s.OrderIDColumn) == "" {
		return fmt.Errorf("%s: order id column cannot be empty", s.Source)
	}
	for _, field := range s.Source.RequiredFields() {
		if strings.TrimSpace(s.SumColumns[field]) == "" {
			return fmt.Errorf("%s: column for %s cannot be empty", s.Source, field)
		}
	}
	return nil
}

// Columns returns the order id column followed by the summed columns in
// canonical field order.
func (s *SourceSchema) Columns() []string {
	columns := []string{s.OrderIDColumn}
	for _, field := range s.Source.RequiredFields() {
		if column, ok := s.SumColumns[field]; ok {
			columns = append(columns, column)
		}
	}
	return columns
}

// SchemaSet holds the schemas of all three input reports.
type SchemaSet struct {
	Shipment SourceSchema `json:"shipment"`
	Returns  SourceSchema `json:"returns"`
	Payment  SourceSchema `json:"payment"`
}

// NewSchemaSet builds a schema set from plain column names.
func NewSchemaSet(
	shipmentOrderID, shippedQty, salesValue string,
	returnsOrderID, returnQty, returnValue string,
	paymentOrderID, paymentValue string,
) SchemaSet {
	return SchemaSet{
		Shipment: SourceSchema{
			Source:        SourceShipment,
			OrderIDColumn: shipmentOrderID,
			SumColumns: map[string]string{
				FieldShippedQuantity: shippedQty,
				FieldSalesValue:      salesValue,
			},
		},
		Returns: SourceSchema{
			Source:        SourceReturns,
			OrderIDColumn: returnsOrderID,
			SumColumns: map[string]string{
				FieldReturnQuantity: returnQty,
				FieldReturnValue:    returnValue,
			},
		},
		Payment: SourceSchema{
			Source:        SourcePayment,
			OrderIDColumn: paymentOrderID,
			SumColumns: map[string]string{
				FieldNetPaymentReceived: paymentValue,
			},
		},
	}
}

// For returns the schema of the given source.
func (s *SchemaSet) For(source Source) *SourceSchema {
	switch source {
	case SourceShipment:
		return &s.Shipment
	case SourceReturns:
		return &s.Returns
	case SourcePayment:
		return &s.Payment
	default:
		return nil
	}
}

// Validate validates all three schemas.
func (s *SchemaSet) Validate() error {
	for _, source := range Sources() {
		schema := s.For(source)
		if schema.Source == "" {
			schema.Source = source
		}
		if schema.Source != source {
			return fmt.Errorf("%s schema is labelled %s", source, schema.Source)
		}
		if err := schema.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Describe renders the expected columns of every source, one per line.
func (s *SchemaSet) Describe() string {
	var b strings.Builder
	for _, source := range Sources() {
		schema := s.For(source)
		quoted := make([]string, 0, 3)
		for _, column := range schema.Columns() {
			quoted = append(quoted, fmt.Sprintf("'%s'", column))
		}
		fmt.Fprintf(&b, "%s report must contain %s.\n", source.Label(), joinWithAnd(quoted))
	}
	return b.String()
}

func joinWithAnd(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
	}
}
