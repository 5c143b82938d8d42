package models

import (
	"fmt"
	"sort"
)

// Built-in schema profile names.
const (
	ProfileInvoiceValue = "invoice-value"
	ProfileTotalPrice   = "total-price"
)

// DefaultProfile is used when no profile is configured.
const DefaultProfile = ProfileInvoiceValue

// builtinProfiles describe the seller portal exports. The two profiles differ
// only in the shipment report's sales column.
var builtinProfiles = map[string]func() SchemaSet{
	ProfileInvoiceValue: func() SchemaSet {
		return NewSchemaSet(
			"Cust Order No", "Shipped QTY", "Invoice Value",
			"Cust Order No", "Return QTY", "Return Value",
			"Order No", "Value",
		)
	},
	ProfileTotalPrice: func() SchemaSet {
		return NewSchemaSet(
			"Cust Order No", "Shipped QTY", "Total Price",
			"Cust Order No", "Return QTY", "Return Value",
			"Order No", "Value",
		)
	},
}

// BuiltinProfile returns a fresh copy of the named built-in schema set.
func BuiltinProfile(name string) (SchemaSet, error) {
	build, ok := builtinProfiles[name]
	if !ok {
		return SchemaSet{}, fmt.Errorf("unknown schema profile %q", name)
	}
	return build(), nil
}

// DefaultSchemaSet returns the default profile.
func DefaultSchemaSet() SchemaSet {
	return builtinProfiles[DefaultProfile]()
}

// BuiltinProfileNames lists the built-in profiles sorted by name.
func BuiltinProfileNames() []string {
	names := make([]string, 0, len(builtinProfiles))
	for name := range builtinProfiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
