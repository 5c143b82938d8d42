// Package aggregator collapses a raw report into one record per order id.
package aggregator

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"sales-reconciliation-service/internal/models"
	"sales-reconciliation-service/pkg/errors"
	"sales-reconciliation-service/pkg/logger"
)

// DefaultMaxSamples bounds the FormatError samples kept in lenient mode.
const DefaultMaxSamples = 20

// Config controls numeric coercion during aggregation
type Config struct {
	Strictness models.Strictness `json:"strictness" mapstructure:"strictness"`
	MaxSamples int               `json:"max_samples" mapstructure:"max_samples"`
}

// DefaultConfig returns a lenient configuration
func DefaultConfig() *Config {
	return &Config{
		Strictness: models.StrictnessLenient,
		MaxSamples: DefaultMaxSamples,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if !c.Strictness.IsValid() {
		return fmt.Errorf("invalid strictness %q (supported: lenient, strict)", c.Strictness)
	}
	if c.MaxSamples < 0 {
		return fmt.Errorf("max samples cannot be negative")
	}
	return nil
}

// Stats describes what happened to the rows of one report
type Stats struct {
	RowsRead     int                   `json:"rows_read"`
	RowsSkipped  int                   `json:"rows_skipped"`
	Groups       int                   `json:"groups"`
	CoercedCells int                   `json:"coerced_cells"`
	Samples      []*errors.FormatError `json:"samples,omitempty"`
}

// Result is the aggregate of one report
type Result struct {
	Source  models.Source             `json:"source"`
	Records []*models.AggregateRecord `json:"records"`
	Stats   Stats                     `json:"stats"`
}

// OrderIDs returns the aggregated order ids in first-seen order.
func (r *Result) OrderIDs() []string {
	ids := make([]string, len(r.Records))
	for i, record := range r.Records {
		ids[i] = record.OrderID
	}
	return ids
}

// Aggregator groups rows by order id and sums numeric columns
type Aggregator struct {
	config *Config
	logger logger.Logger
}

// NewAggregator creates an aggregator. A nil config uses DefaultConfig.
func NewAggregator(config *Config) (*Aggregator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "aggregator", config.Strictness, err)
	}
	return &Aggregator{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("aggregator"),
	}, nil
}

// AggregateSchema aggregates table using the columns named by schema.
func (a *Aggregator) AggregateSchema(table *models.Table, schema *models.SourceSchema) (*Result, error) {
	return a.Aggregate(schema.Source, table, schema.OrderIDColumn, schema.SumColumns)
}

// Aggregate partitions table rows by the normalized value of groupKey and
// sums every column of sumColumns (output name to source column) per
// partition. Records are returned in order of first appearance.
//
// Missing columns produce a *errors.SchemaError listing all of them. Rows
// with an empty order id are skipped. Non-numeric cells count as zero in
// lenient mode and fail with *errors.FormatError in strict mode.
func (a *Aggregator) Aggregate(source models.Source, table *models.Table, groupKey string, sumColumns map[string]string) (*Result, error) {
	fields := orderedFields(source, sumColumns)
	log := a.logger.WithFields(logger.Fields{
		"source":   source,
		"rows":     table.Len(),
		"group_by": groupKey,
	})

	keyColumn, resolved, err := resolveColumns(source, table, groupKey, fields, sumColumns)
	if err != nil {
		log.WithError(err).Error("Report does not match the configured schema")
		return nil, err
	}

	result := &Result{Source: source, Records: make([]*models.AggregateRecord, 0)}
	index := make(map[string]*models.AggregateRecord)

	for i, row := range table.Rows {
		result.Stats.RowsRead++
		orderID := models.NormalizeOrderID(row[keyColumn])
		if orderID == "" {
			result.Stats.RowsSkipped++
			continue
		}

		record, exists := index[orderID]
		if !exists {
			record = &models.AggregateRecord{
				OrderID: orderID,
				Values:  make(map[string]decimal.Decimal, len(fields)),
			}
			for _, field := range fields {
				record.Values[field] = decimal.Zero
			}
			index[orderID] = record
			result.Records = append(result.Records, record)
		}

		for _, field := range fields {
			column := resolved[field]
			value, _, err := models.ParseNumber(row[column])
			if err != nil {
				formatErr := &errors.FormatError{
					Source: source.Label(),
					Row:    table.Line(i),
					Column: column,
					Value:  fmt.Sprint(row[column]),
					Cause:  err,
				}
				if a.config.Strictness == models.StrictnessStrict {
					log.WithError(formatErr).Error("Non-numeric value in strict mode")
					return nil, formatErr
				}
				result.Stats.CoercedCells++
				if len(result.Stats.Samples) < a.maxSamples() {
					result.Stats.Samples = append(result.Stats.Samples, formatErr)
				}
				continue
			}
			record.Values[field] = record.Values[field].Add(value)
		}
	}

	result.Stats.Groups = len(result.Records)
	if result.Stats.CoercedCells > 0 {
		log.WithField("coerced_cells", result.Stats.CoercedCells).
			Warn("Non-numeric values were counted as zero")
	}
	log.WithFields(logger.Fields{
		"groups":       result.Stats.Groups,
		"rows_skipped": result.Stats.RowsSkipped,
	}).Debug("Aggregated report")

	return result, nil
}

func (a *Aggregator) maxSamples() int {
	if a.config.MaxSamples == 0 {
		return DefaultMaxSamples
	}
	return a.config.MaxSamples
}

// resolveColumns maps the configured names onto actual table headers.
func resolveColumns(source models.Source, table *models.Table, groupKey string, fields []string, sumColumns map[string]string) (string, map[string]string, error) {
	expected := []string{groupKey}
	var missing []string

	keyColumn, ok := table.ResolveColumn(groupKey)
	if !ok {
		missing = append(missing, groupKey)
	}

	resolved := make(map[string]string, len(fields))
	for _, field := range fields {
		name := sumColumns[field]
		expected = append(expected, name)
		column, ok := table.ResolveColumn(name)
		if !ok {
			missing = append(missing, name)
			continue
		}
		resolved[field] = column
	}

	if len(missing) > 0 {
		var available []string
		if table != nil {
			available = table.Columns
		}
		return "", nil, errors.NewSchemaError(source.Label(), missing, available, expected)
	}
	return keyColumn, resolved, nil
}

// orderedFields lists output fields with the source's canonical fields first
// and any extra fields sorted by name.
func orderedFields(source models.Source, sumColumns map[string]string) []string {
	fields := make([]string, 0, len(sumColumns))
	known := make(map[string]bool)
	for _, field := range source.RequiredFields() {
		if _, ok := sumColumns[field]; ok {
			fields = append(fields, field)
			known[field] = true
		}
	}

	var extra []string
	for field := range sumColumns {
		if !known[field] {
			extra = append(extra, field)
		}
	}
	sort.Strings(extra)
	return append(fields, extra...)
}
