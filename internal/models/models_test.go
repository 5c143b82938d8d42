package models

import (
	"math"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNormalizeOrderID(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"plain text", "A001", "A001"},
		{"surrounding whitespace", "  A001 \t", "A001"},
		{"byte order mark", "\ufeffA001", "A001"},
		{"integral float text", "1001.0", "1001"},
		{"integral float", float64(1001), "1001"},
		{"integer", 1001, "1001"},
		{"fractional text kept", "1001.5", "1001.5"},
		{"case preserved", "od-aBc", "od-aBc"},
		{"nil", nil, ""},
		{"NaN", math.NaN(), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeOrderID(tt.input); got != tt.expected {
				t.Errorf("NormalizeOrderID(%v) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		name        string
		input       any
		expected    string
		expectEmpty bool
		expectError bool
	}{
		{name: "plain", input: "1234.50", expected: "1234.5"},
		{name: "thousands separators", input: "1,234.50", expected: "1234.5"},
		{name: "rupee symbol", input: "₹ 500", expected: "500"},
		{name: "rs prefix", input: "Rs. 500", expected: "500"},
		{name: "inr prefix", input: "INR 1,000", expected: "1000"},
		{name: "accounting negative", input: "(50)", expected: "-50"},
		{name: "negative", input: "-250", expected: "-250"},
		{name: "sign before rupee", input: "-₹50", expected: "-50"},
		{name: "sign before rs", input: "-Rs. 50", expected: "-50"},
		{name: "rs before sign", input: "Rs. -50", expected: "-50"},
		{name: "rupee before parentheses", input: "₹ (50.00)", expected: "-50"},
		{name: "rupee inside parentheses", input: "(₹50)", expected: "-50"},
		{name: "trailing inr", input: "50 INR", expected: "50"},
		{name: "plus sign", input: "+1,000", expected: "1000"},
		{name: "double sign", input: "--50", expectError: true},
		{name: "bare marker", input: "₹", expectError: true},
		{name: "float", input: 12.5, expected: "12.5"},
		{name: "int", input: 7, expected: "7"},
		{name: "decimal", input: decimal.NewFromInt(3), expected: "3"},
		{name: "nil", input: nil, expected: "0", expectEmpty: true},
		{name: "blank", input: "   ", expected: "0", expectEmpty: true},
		{name: "n/a marker", input: "N/A", expected: "0", expectEmpty: true},
		{name: "text", input: "pending", expectError: true},
		{name: "boolean", input: true, expectError: true},
		{name: "infinity", input: math.Inf(1), expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, empty, err := ParseNumber(tt.input)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error for %v, got %s", tt.input, value)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if empty != tt.expectEmpty {
				t.Errorf("empty = %v, want %v", empty, tt.expectEmpty)
			}
			if !value.Equal(decimal.RequireFromString(tt.expected)) {
				t.Errorf("ParseNumber(%v) = %s, want %s", tt.input, value, tt.expected)
			}
		})
	}
}

func TestTableResolveColumn(t *testing.T) {
	table := NewTable("gst", " Cust Order No ", "Invoice Value", "invoice value")

	tests := []struct {
		name     string
		lookup   string
		expected string
		found    bool
	}{
		{"trimmed exact", "Cust Order No", " Cust Order No ", true},
		{"exact wins over case-insensitive", "invoice value", "invoice value", true},
		{"case-insensitive", "CUST ORDER NO", " Cust Order No ", true},
		{"missing", "Shipped QTY", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := table.ResolveColumn(tt.lookup)
			if found != tt.found || got != tt.expected {
				t.Errorf("ResolveColumn(%q) = %q, %v; want %q, %v", tt.lookup, got, found, tt.expected, tt.found)
			}
		})
	}
}

func TestTableAppendPadsShortRows(t *testing.T) {
	table := NewTable("payment", "Order No", "Value").Append("A001")

	if table.Len() != 1 {
		t.Fatalf("expected 1 row, got %d", table.Len())
	}
	if v, ok := table.Rows[0]["Value"]; !ok || v != nil {
		t.Errorf("expected nil Value cell, got %v", v)
	}
}

func TestTableLine(t *testing.T) {
	table := NewTable("gst", "Cust Order No").
		AppendAt(4, "A001").
		Append("B002").
		AppendAt(9, "C003")

	for i, want := range []int{4, 3, 9} {
		if got := table.Line(i); got != want {
			t.Errorf("Line(%d) = %d, want %d", i, got, want)
		}
	}
}

func TestReconciledRecordDerive(t *testing.T) {
	tests := []struct {
		name               string
		sales, ret, paid   string
		expectedNet        string
		expectedDifference string
		expectedStatus     RecordStatus
	}{
		{"underpaid", "1000", "200", "750", "800", "-50", StatusUnderpaid},
		{"settled", "1000", "200", "800", "800", "0", StatusSettled},
		{"payment only", "0", "0", "75", "0", "75", StatusOverpaid},
		{"return only", "0", "50", "0", "-50", "50", StatusOverpaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &ReconciledRecord{
				OrderID:            "A001",
				SalesValue:         decimal.RequireFromString(tt.sales),
				ReturnValue:        decimal.RequireFromString(tt.ret),
				NetPaymentReceived: decimal.RequireFromString(tt.paid),
			}
			r.Derive()

			if !r.ExpectedNetPayment.Equal(decimal.RequireFromString(tt.expectedNet)) {
				t.Errorf("expected net payment %s, got %s", tt.expectedNet, r.ExpectedNetPayment)
			}
			if !r.Difference.Equal(decimal.RequireFromString(tt.expectedDifference)) {
				t.Errorf("expected difference %s, got %s", tt.expectedDifference, r.Difference)
			}
			if r.Status() != tt.expectedStatus {
				t.Errorf("expected status %s, got %s", tt.expectedStatus, r.Status())
			}
		})
	}
}

func TestReconciledRecordValues(t *testing.T) {
	r := &ReconciledRecord{
		OrderID:            "A001",
		ShippedQuantity:    decimal.NewFromInt(10),
		SalesValue:         decimal.NewFromInt(1000),
		ReturnQuantity:     decimal.NewFromInt(2),
		ReturnValue:        decimal.NewFromInt(200),
		NetPaymentReceived: decimal.NewFromInt(750),
	}
	r.Derive()

	values := r.Values()
	if len(values) != len(ReconciledColumns()) {
		t.Fatalf("expected %d values, got %d", len(ReconciledColumns()), len(values))
	}
	if got := strings.Join(values, ","); got != "A001,10,1000,2,200,750,800,-50" {
		t.Errorf("unexpected values %s", got)
	}
}

func TestParseJoinMode(t *testing.T) {
	tests := []struct {
		input       string
		expected    JoinMode
		expectError bool
	}{
		{"full_outer", JoinFullOuter, false},
		{" OUTER ", JoinFullOuter, false},
		{"shipment_anchored", JoinShipmentAnchored, false},
		{"left", JoinShipmentAnchored, false},
		{"", "", true},
		{"inner", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			mode, err := ParseJoinMode(tt.input)
			if tt.expectError {
				if err == nil {
					t.Errorf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if mode != tt.expected {
				t.Errorf("ParseJoinMode(%q) = %s, want %s", tt.input, mode, tt.expected)
			}
		})
	}
}

func TestBuiltinProfiles(t *testing.T) {
	for _, name := range BuiltinProfileNames() {
		t.Run(name, func(t *testing.T) {
			set, err := BuiltinProfile(name)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if err := set.Validate(); err != nil {
				t.Errorf("profile should be valid: %v", err)
			}
		})
	}

	if _, err := BuiltinProfile("missing"); err == nil {
		t.Error("expected error for unknown profile")
	}

	a, _ := BuiltinProfile(ProfileInvoiceValue)
	a.Shipment.SumColumns[FieldSalesValue] = "changed"
	b, _ := BuiltinProfile(ProfileInvoiceValue)
	if b.Shipment.SumColumns[FieldSalesValue] != "Invoice Value" {
		t.Error("built-in profiles must not share column maps")
	}
}

func TestSchemaSetDescribe(t *testing.T) {
	set := DefaultSchemaSet()
	expected := "Shipment (GST) report must contain 'Cust Order No', 'Shipped QTY', and 'Invoice Value'.\n" +
		"Returns (RTV) report must contain 'Cust Order No', 'Return QTY', and 'Return Value'.\n" +
		"Payment report must contain 'Order No' and 'Value'.\n"

	if got := set.Describe(); got != expected {
		t.Errorf("unexpected description:\n%s\nwant:\n%s", got, expected)
	}
}

func TestSchemaSetValidate(t *testing.T) {
	set := DefaultSchemaSet()
	set.Payment.SumColumns[FieldNetPaymentReceived] = " "

	if err := set.Validate(); err == nil {
		t.Error("expected error for blank payment value column")
	}
}
