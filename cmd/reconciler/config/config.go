package config

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"sales-reconciliation-service/internal/models"
	"sales-reconciliation-service/internal/parsers"
	"sales-reconciliation-service/internal/reconciler"
	"sales-reconciliation-service/internal/reporter"
	"sales-reconciliation-service/pkg/errors"
)

// SchemaFile is the YAML layout of a custom schema profile file:
//
//	profiles:
//	  my-portal:
//	    extends: invoice-value
//	    shipment:
//	      sales_value: Gross Amount
type SchemaFile struct {
	Profiles map[string]ProfileDefinition `yaml:"profiles"`
}

// ProfileDefinition describes one schema profile. Columns left empty are taken
// from the profile named by Extends, or the default profile.
type ProfileDefinition struct {
	Description string          `yaml:"description"`
	Extends     string          `yaml:"extends"`
	Shipment    ShipmentColumns `yaml:"shipment"`
	Returns     ReturnColumns   `yaml:"returns"`
	Payment     PaymentColumns  `yaml:"payment"`
}

// ShipmentColumns names the shipment (GST) report columns
type ShipmentColumns struct {
	OrderID    string `yaml:"order_id" mapstructure:"order_id"`
	ShippedQty string `yaml:"shipped_qty" mapstructure:"shipped_qty"`
	SalesValue string `yaml:"sales_value" mapstructure:"sales_value"`
}

// ReturnColumns names the returns (RTV) report columns
type ReturnColumns struct {
	OrderID     string `yaml:"order_id" mapstructure:"order_id"`
	ReturnQty   string `yaml:"return_qty" mapstructure:"return_qty"`
	ReturnValue string `yaml:"return_value" mapstructure:"return_value"`
}

// PaymentColumns names the payment report columns
type PaymentColumns struct {
	OrderID string `yaml:"order_id" mapstructure:"order_id"`
	Value   string `yaml:"value" mapstructure:"value"`
}

// ColumnOverrides replaces individual columns of the selected profile.
// It is filled from the "columns" configuration key.
type ColumnOverrides struct {
	Shipment ShipmentColumns `mapstructure:"shipment"`
	Returns  ReturnColumns   `mapstructure:"returns"`
	Payment  PaymentColumns  `mapstructure:"payment"`
}

// Apply overlays every non-empty column onto set.
func (o ProfileDefinition) Apply(set *models.SchemaSet) {
	ColumnOverrides{Shipment: o.Shipment, Returns: o.Returns, Payment: o.Payment}.Apply(set)
}

// Apply overlays every non-empty column onto set.
func (o ColumnOverrides) Apply(set *models.SchemaSet) {
	override := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	overrideSum := func(schema *models.SourceSchema, field, v string) {
		if v = strings.TrimSpace(v); v != "" {
			schema.SumColumns[field] = v
		}
	}

	override(&set.Shipment.OrderIDColumn, o.Shipment.OrderID)
	overrideSum(&set.Shipment, models.FieldShippedQuantity, o.Shipment.ShippedQty)
	overrideSum(&set.Shipment, models.FieldSalesValue, o.Shipment.SalesValue)

	override(&set.Returns.OrderIDColumn, o.Returns.OrderID)
	overrideSum(&set.Returns, models.FieldReturnQuantity, o.Returns.ReturnQty)
	overrideSum(&set.Returns, models.FieldReturnValue, o.Returns.ReturnValue)

	override(&set.Payment.OrderIDColumn, o.Payment.OrderID)
	overrideSum(&set.Payment, models.FieldNetPaymentReceived, o.Payment.Value)
}

// LoadSchemaFile reads custom profiles from a YAML file. Unknown keys are
// rejected so that typos do not silently fall back to defaults.
func LoadSchemaFile(fs afero.Fs, path string) (*SchemaFile, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.FileError(errors.CodeFileNotFound, path, err)
	}

	var file SchemaFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "schema-file", path, err).
			WithSuggestion("check the YAML syntax; run 'reconciler schemas' to see the expected layout")
	}
	if len(file.Profiles) == 0 {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "profiles in "+path, nil, nil)
	}
	return &file, nil
}

// ResolveSchemas builds the schema set for profile. Custom profiles from
// schemaFile take precedence over built-in ones; overrides apply last.
func ResolveSchemas(fs afero.Fs, profile, schemaFile string, overrides ColumnOverrides) (models.SchemaSet, error) {
	if profile == "" {
		profile = models.DefaultProfile
	}

	var custom map[string]ProfileDefinition
	if schemaFile != "" {
		file, err := LoadSchemaFile(fs, schemaFile)
		if err != nil {
			return models.SchemaSet{}, err
		}
		custom = file.Profiles
	}

	set, err := resolveProfile(profile, custom, map[string]bool{})
	if err != nil {
		return models.SchemaSet{}, err
	}
	overrides.Apply(&set)

	if err := set.Validate(); err != nil {
		return models.SchemaSet{}, errors.ConfigurationError(errors.CodeInvalidConfig, "profile "+profile, "", err)
	}
	return set, nil
}

func resolveProfile(name string, custom map[string]ProfileDefinition, visiting map[string]bool) (models.SchemaSet, error) {
	def, ok := custom[name]
	if !ok {
		set, err := models.BuiltinProfile(name)
		if err != nil {
			return models.SchemaSet{}, errors.ConfigurationError(errors.CodeUnknownProfile, "profile", name, nil)
		}
		return set, nil
	}

	if visiting[name] {
		return models.SchemaSet{}, errors.ConfigurationError(errors.CodeInvalidConfig, "profile", name,
			fmt.Errorf("profile %q extends itself", name))
	}
	visiting[name] = true

	base := def.Extends
	if base == "" {
		base = models.DefaultProfile
	}
	var set models.SchemaSet
	var err error
	if base == name {
		// A custom profile may shadow a built-in of the same name.
		set, err = models.BuiltinProfile(name)
		if err != nil {
			err = errors.ConfigurationError(errors.CodeInvalidConfig, "profile", name,
				fmt.Errorf("profile %q extends itself", name))
		}
	} else {
		set, err = resolveProfile(base, custom, visiting)
	}
	if err != nil {
		return models.SchemaSet{}, err
	}

	def.Apply(&set)
	return set, nil
}

// ProfileNames lists built-in and custom profile names, sorted.
func ProfileNames(fs afero.Fs, schemaFile string) ([]string, error) {
	seen := make(map[string]bool)
	for _, name := range models.BuiltinProfileNames() {
		seen[name] = true
	}
	if schemaFile != "" {
		file, err := LoadSchemaFile(fs, schemaFile)
		if err != nil {
			return nil, err
		}
		for name := range file.Profiles {
			seen[name] = true
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// CreateReconcilerConfig creates a reconciler configuration
func CreateReconcilerConfig(joinMode string, strict bool, schemas models.SchemaSet) (*reconciler.Config, error) {
	mode, err := models.ParseJoinMode(joinMode)
	if err != nil {
		code := errors.CodeInvalidConfig
		if strings.TrimSpace(joinMode) == "" {
			code = errors.CodeMissingConfig
		}
		return nil, errors.ConfigurationError(code, "join-mode", joinMode, err).
			WithSuggestion("pass --join-mode full_outer to keep every order or --join-mode shipment_anchored to keep only shipped orders")
	}

	config := reconciler.DefaultConfig()
	config.JoinMode = mode
	config.Schemas = schemas
	if strict {
		config.Strictness = models.StrictnessStrict
	}
	return config, nil
}

// ApplySeverityThresholds sets the discrepancy severity amounts when
// positive. When only one is given, the default of the other is moved so
// that medium never exceeds high.
func ApplySeverityThresholds(config *reconciler.Config, high, medium float64) {
	if high > 0 {
		config.HighSeverityAmount = decimal.NewFromFloat(high)
		if medium <= 0 && config.MediumSeverityAmount.GreaterThan(config.HighSeverityAmount) {
			config.MediumSeverityAmount = config.HighSeverityAmount
		}
	}
	if medium > 0 {
		config.MediumSeverityAmount = decimal.NewFromFloat(medium)
		if high <= 0 && config.HighSeverityAmount.LessThan(config.MediumSeverityAmount) {
			config.HighSeverityAmount = config.MediumSeverityAmount
		}
	}
}

// CreateLoaderConfig creates a loader configuration
func CreateLoaderConfig(format, encoding, sheet string) (*parsers.LoaderConfig, error) {
	config := parsers.DefaultLoaderConfig()

	f, err := parsers.ParseFormat(format)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "input-format", format, err)
	}
	config.Format = f
	if encoding != "" {
		config.Encoding = parsers.Encoding(strings.ToLower(encoding))
	}
	config.Sheet = sheet

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "loader", encoding, err)
	}
	return config, nil
}

// CreateReportConfig creates a report configuration for the specified output format
func CreateReportConfig(format, sortBy string) (*reporter.ReportConfig, error) {
	config := reporter.DefaultReportConfig()
	config.Format = reporter.OutputFormat(strings.ToLower(format))
	config.SortBy = reporter.SortOrder(strings.ToLower(sortBy))

	switch config.Format {
	case reporter.FormatJSON:
		config.IncludeRecords = true
	case reporter.FormatCSV, reporter.FormatTSV:
		config.IncludeDiscrepancies = false
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "output-format", format, err).
			WithSuggestion("valid formats are console, json, csv and tsv; valid sort orders are order_id and difference")
	}
	return config, nil
}
