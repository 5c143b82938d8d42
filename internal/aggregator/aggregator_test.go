package aggregator

import (
	stderrors "errors"
	"testing"

	"github.com/shopspring/decimal"

	"sales-reconciliation-service/internal/models"
	"sales-reconciliation-service/pkg/errors"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func shipmentColumns() map[string]string {
	return map[string]string{
		models.FieldShippedQuantity: "Shipped QTY",
		models.FieldSalesValue:      "Invoice Value",
	}
}

func newAggregator(t *testing.T, strictness models.Strictness) *Aggregator {
	t.Helper()
	a, err := NewAggregator(&Config{Strictness: strictness})
	if err != nil {
		t.Fatalf("NewAggregator() error = %v", err)
	}
	return a
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"strict", &Config{Strictness: models.StrictnessStrict}, false},
		{"empty strictness", &Config{}, true},
		{"negative samples", &Config{Strictness: models.StrictnessLenient, MaxSamples: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAggregate_SumsPerOrder(t *testing.T) {
	table := models.NewTable("gst", "Cust Order No", "Shipped QTY", "Invoice Value").
		Append("A001", "2", "1000").
		Append("B002", 1, 250.25).
		Append("A001", "1", "500").
		Append(" 1001.0", "1", "1,000.10").
		Append(1001, "", nil)

	result, err := newAggregator(t, models.StrictnessLenient).
		Aggregate(models.SourceShipment, table, "Cust Order No", shipmentColumns())
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}

	want := []struct {
		id    string
		qty   string
		sales string
	}{
		{"A001", "3", "1500"},
		{"B002", "1", "250.25"},
		{"1001", "1", "1000.1"},
	}
	if len(result.Records) != len(want) {
		t.Fatalf("got %d records, want %d", len(result.Records), len(want))
	}
	for i, w := range want {
		r := result.Records[i]
		if r.OrderID != w.id {
			t.Errorf("record %d id = %q, want %q", i, r.OrderID, w.id)
		}
		if !r.Value(models.FieldShippedQuantity).Equal(dec(w.qty)) {
			t.Errorf("%s qty = %s, want %s", w.id, r.Value(models.FieldShippedQuantity), w.qty)
		}
		if !r.Value(models.FieldSalesValue).Equal(dec(w.sales)) {
			t.Errorf("%s sales = %s, want %s", w.id, r.Value(models.FieldSalesValue), w.sales)
		}
	}
	if result.Stats.RowsRead != 5 || result.Stats.Groups != 3 || result.Stats.CoercedCells != 0 {
		t.Errorf("unexpected stats %+v", result.Stats)
	}
}

func TestAggregate_KeysAreUnique(t *testing.T) {
	table := models.NewTable("rtv", "Cust Order No", "Return QTY", "Return Value")
	for i := 0; i < 50; i++ {
		table.Append([]string{"X", "Y", "Z"}[i%3], 1, 10)
	}

	result, err := newAggregator(t, models.StrictnessLenient).Aggregate(models.SourceReturns, table, "Cust Order No",
		map[string]string{models.FieldReturnQuantity: "Return QTY", models.FieldReturnValue: "Return Value"})
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}

	seen := make(map[string]bool)
	total := decimal.Zero
	for _, r := range result.Records {
		if seen[r.OrderID] {
			t.Errorf("duplicate order id %q", r.OrderID)
		}
		seen[r.OrderID] = true
		total = total.Add(r.Value(models.FieldReturnValue))
	}
	if !total.Equal(dec("500")) {
		t.Errorf("total = %s, want 500", total)
	}
	if ids := result.OrderIDs(); len(ids) != 3 || ids[0] != "X" || ids[2] != "Z" {
		t.Errorf("OrderIDs() = %v", ids)
	}
}

func TestAggregate_SkipsEmptyOrderIDs(t *testing.T) {
	table := models.NewTable("payment", "Order No", "Value").
		Append("", "10").
		Append("   ", "20").
		Append(nil, "30").
		Append("P1", "40")

	result, err := newAggregator(t, models.StrictnessLenient).Aggregate(models.SourcePayment, table, "Order No",
		map[string]string{models.FieldNetPaymentReceived: "Value"})
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if len(result.Records) != 1 || result.Stats.RowsSkipped != 3 {
		t.Errorf("records = %d, skipped = %d", len(result.Records), result.Stats.RowsSkipped)
	}
}

func TestAggregate_ColumnLookupIgnoresCase(t *testing.T) {
	table := models.NewTable("payment", " order no ", "VALUE").Append("P1", "-40")

	result, err := newAggregator(t, models.StrictnessStrict).Aggregate(models.SourcePayment, table, "Order No",
		map[string]string{models.FieldNetPaymentReceived: "Value"})
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if got := result.Records[0].Value(models.FieldNetPaymentReceived); !got.Equal(dec("-40")) {
		t.Errorf("value = %s, want -40", got)
	}
}

func TestAggregate_MissingColumns(t *testing.T) {
	table := models.NewTable("gst", "Order", "Shipped QTY").Append("A", 1)

	_, err := newAggregator(t, models.StrictnessLenient).
		Aggregate(models.SourceShipment, table, "Cust Order No", shipmentColumns())

	var schemaErr *errors.SchemaError
	if !stderrors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	if schemaErr.Source != models.SourceShipment.Label() {
		t.Errorf("Source = %q", schemaErr.Source)
	}
	if len(schemaErr.Missing) != 2 || schemaErr.Missing[0] != "Cust Order No" || schemaErr.Missing[1] != "Invoice Value" {
		t.Errorf("Missing = %v", schemaErr.Missing)
	}
	if len(schemaErr.Expected) != 3 || len(schemaErr.Available) != 2 {
		t.Errorf("Expected = %v, Available = %v", schemaErr.Expected, schemaErr.Available)
	}
}

func TestAggregate_NonNumericCells(t *testing.T) {
	build := func() *models.Table {
		return models.NewTable("gst", "Cust Order No", "Shipped QTY", "Invoice Value").
			Append("A001", "2", "1000").
			Append("A001", "two", "abc").
			Append("A001", "", "")
	}

	t.Run("lenient", func(t *testing.T) {
		result, err := newAggregator(t, models.StrictnessLenient).
			Aggregate(models.SourceShipment, build(), "Cust Order No", shipmentColumns())
		if err != nil {
			t.Fatalf("Aggregate() error = %v", err)
		}
		r := result.Records[0]
		if !r.Value(models.FieldShippedQuantity).Equal(dec("2")) || !r.Value(models.FieldSalesValue).Equal(dec("1000")) {
			t.Errorf("unexpected sums %v", r.Values)
		}
		if result.Stats.CoercedCells != 2 || len(result.Stats.Samples) != 2 {
			t.Fatalf("stats = %+v", result.Stats)
		}
		sample := result.Stats.Samples[0]
		if sample.Row != 3 || sample.Column != "Shipped QTY" || sample.Value != "two" {
			t.Errorf("sample = %+v", sample)
		}
	})

	t.Run("strict", func(t *testing.T) {
		_, err := newAggregator(t, models.StrictnessStrict).
			Aggregate(models.SourceShipment, build(), "Cust Order No", shipmentColumns())
		var formatErr *errors.FormatError
		if !stderrors.As(err, &formatErr) {
			t.Fatalf("expected FormatError, got %v", err)
		}
		if formatErr.Row != 3 || formatErr.Value != "two" {
			t.Errorf("FormatError = %+v", formatErr)
		}
	})

	t.Run("sample cap", func(t *testing.T) {
		table := models.NewTable("payment", "Order No", "Value")
		for i := 0; i < 30; i++ {
			table.Append("P", "x")
		}
		a, _ := NewAggregator(&Config{Strictness: models.StrictnessLenient, MaxSamples: 5})
		result, err := a.Aggregate(models.SourcePayment, table, "Order No",
			map[string]string{models.FieldNetPaymentReceived: "Value"})
		if err != nil {
			t.Fatalf("Aggregate() error = %v", err)
		}
		if result.Stats.CoercedCells != 30 || len(result.Stats.Samples) != 5 {
			t.Errorf("stats = %d coerced, %d samples", result.Stats.CoercedCells, len(result.Stats.Samples))
		}
	})
}

func TestAggregate_EmptyTable(t *testing.T) {
	table := models.NewTable("payment", "Order No", "Value")
	result, err := newAggregator(t, models.StrictnessLenient).Aggregate(models.SourcePayment, table, "Order No",
		map[string]string{models.FieldNetPaymentReceived: "Value"})
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if len(result.Records) != 0 {
		t.Errorf("expected no records, got %d", len(result.Records))
	}
}
