// Package reporter renders reconciliation results.
//
// Supported output formats:
//   - Console: summary, breakdown, warnings and the ledger for a terminal
//   - JSON: the complete result for programmatic consumption
//   - CSV and TSV: the ledger alone, one header row and one row per order
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(&reporter.ReportConfig{Format: reporter.FormatCSV})
//	err = generator.GenerateReport(result, os.Stdout)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"sales-reconciliation-service/internal/models"
	"sales-reconciliation-service/internal/reconciler"
)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
	FormatTSV     OutputFormat = "tsv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV, FormatTSV:
		return true
	default:
		return false
	}
}

// SortOrder selects the order of ledger rows in a report.
type SortOrder string

const (
	// SortNone keeps join order.
	SortNone SortOrder = ""
	// SortOrderID sorts by order id.
	SortOrderID SortOrder = "order_id"
	// SortDifference puts the most underpaid orders first.
	SortDifference SortOrder = "difference"
)

// IsValid checks if the sort order is supported
func (s SortOrder) IsValid() bool {
	return s == SortNone || s == SortOrderID || s == SortDifference
}

const (
	// DefaultMoneyPlaces is used when ReportConfig.MoneyPlaces is unset.
	DefaultMoneyPlaces int32 = 2
	// ExactMoney writes money columns without rounding.
	ExactMoney int32 = -1
)

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`
	SortBy SortOrder    `json:"sort_by"`

	// MoneyPlaces is the number of decimal places for money columns in
	// CSV and TSV output. Zero selects DefaultMoneyPlaces and a negative
	// value (ExactMoney) writes exact values.
	MoneyPlaces int32 `json:"money_places"`

	// Console options
	IncludeRecords       bool   `json:"include_records"`
	IncludeDiscrepancies bool   `json:"include_discrepancies"`
	MaxConsoleRows       int    `json:"max_console_rows"`
	CurrencySymbol       string `json:"currency_symbol"`
	Locale               string `json:"locale"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:               FormatConsole,
		SortBy:               SortNone,
		MoneyPlaces:          DefaultMoneyPlaces,
		IncludeRecords:       true,
		IncludeDiscrepancies: true,
		MaxConsoleRows:       50,
		CurrencySymbol:       "₹",
		Locale:               "en-IN",
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if !c.SortBy.IsValid() {
		return fmt.Errorf("invalid sort order: %s", c.SortBy)
	}
	if c.MaxConsoleRows < 0 {
		return fmt.Errorf("max console rows cannot be negative, got %d", c.MaxConsoleRows)
	}
	if c.Locale != "" {
		if _, err := language.Parse(c.Locale); err != nil {
			return fmt.Errorf("invalid locale %q: %w", c.Locale, err)
		}
	}
	return nil
}

// ReportGenerator generates reconciliation reports in various formats
type ReportGenerator struct {
	config  *ReportConfig
	printer *message.Printer
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	// Work on a copy so defaults never leak back into the caller's config.
	resolved := *config
	if resolved.MoneyPlaces == 0 {
		resolved.MoneyPlaces = DefaultMoneyPlaces
	}
	config = &resolved

	tag := language.English
	if config.Locale != "" {
		tag = language.MustParse(config.Locale)
	}

	return &ReportGenerator{
		config:  config,
		printer: message.NewPrinter(tag),
	}, nil
}

// GenerateReport generates a report from reconciliation results and writes it to the provided writer
func (rg *ReportGenerator) GenerateReport(result *reconciler.Result, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("reconciliation result cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(result, writer)
	case FormatJSON:
		return rg.generateJSONReport(result, writer)
	case FormatCSV:
		return rg.generateTableReport(result, writer, ',')
	case FormatTSV:
		return rg.generateTableReport(result, writer, '\t')
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

// GenerateSummary writes only the five totals.
func (rg *ReportGenerator) GenerateSummary(summary *models.Summary, writer io.Writer) error {
	if summary == nil {
		return fmt.Errorf("summary cannot be nil")
	}
	rg.printSummary(summary, writer)
	return nil
}

func (rg *ReportGenerator) generateConsoleReport(result *reconciler.Result, writer io.Writer) error {
	fmt.Fprintf(writer, "SALES RECONCILIATION REPORT\n")
	fmt.Fprintf(writer, "Run:       %s\n", result.RunID)
	fmt.Fprintf(writer, "Generated: %s\n", result.ProcessedAt.Format(time.RFC3339))
	fmt.Fprintf(writer, "Join mode: %s\n", result.JoinMode)
	fmt.Fprintf(writer, "Duration:  %v\n\n", result.Duration.Round(time.Millisecond))

	fmt.Fprintf(writer, "=== SUMMARY ===\n")
	rg.printSummary(result.Summary, writer)
	fmt.Fprintf(writer, "\n")

	if result.Breakdown != nil {
		fmt.Fprintf(writer, "=== ORDER BREAKDOWN ===\n")
		rg.printBreakdown(result.Breakdown, writer)
		fmt.Fprintf(writer, "\n")
	}

	if len(result.Warnings) > 0 {
		fmt.Fprintf(writer, "=== WARNINGS ===\n")
		for _, w := range result.Warnings {
			fmt.Fprintf(writer, "  ! %s\n", w)
		}
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeDiscrepancies && len(result.Discrepancies) > 0 {
		fmt.Fprintf(writer, "=== DISCREPANCIES ===\n")
		rg.printDiscrepancies(result.Discrepancies, writer)
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeRecords {
		fmt.Fprintf(writer, "=== RECONCILED ORDERS ===\n")
		rg.printRecords(rg.sortedRecords(result.Records), writer)
	}
	return nil
}

func (rg *ReportGenerator) generateJSONReport(result *reconciler.Result, writer io.Writer) error {
	output := *result
	output.Records = rg.sortedRecords(result.Records)

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(&output)
}

// generateTableReport writes the ledger with exactly one header row.
func (rg *ReportGenerator) generateTableReport(result *reconciler.Result, writer io.Writer, delimiter rune) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = delimiter

	if err := csvWriter.Write(models.ReconciledColumns()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, record := range rg.sortedRecords(result.Records) {
		if err := csvWriter.Write(rg.tableRow(record)); err != nil {
			return fmt.Errorf("failed to write order %s: %w", record.OrderID, err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

func (rg *ReportGenerator) tableRow(r *models.ReconciledRecord) []string {
	if rg.config.MoneyPlaces < 0 {
		return r.Values()
	}
	money := func(d decimal.Decimal) string {
		return d.StringFixed(rg.config.MoneyPlaces)
	}
	return []string{
		r.OrderID,
		r.ShippedQuantity.String(),
		money(r.SalesValue),
		r.ReturnQuantity.String(),
		money(r.ReturnValue),
		money(r.NetPaymentReceived),
		money(r.ExpectedNetPayment),
		money(r.Difference),
	}
}

// sortedRecords returns the records in the configured order without
// reordering the input slice.
func (rg *ReportGenerator) sortedRecords(records []*models.ReconciledRecord) []*models.ReconciledRecord {
	if rg.config.SortBy == SortNone {
		return records
	}
	sorted := append([]*models.ReconciledRecord(nil), records...)
	switch rg.config.SortBy {
	case SortOrderID:
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].OrderID < sorted[j].OrderID
		})
	case SortDifference:
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Difference.LessThan(sorted[j].Difference)
		})
	}
	return sorted
}

func (rg *ReportGenerator) printSummary(summary *models.Summary, writer io.Writer) {
	fmt.Fprintf(writer, "Total Sales:             %s\n", rg.money(summary.TotalSales))
	fmt.Fprintf(writer, "Total Returns:           %s\n", rg.money(summary.TotalReturns))
	fmt.Fprintf(writer, "Total Payment Received:  %s\n", rg.money(summary.TotalReceived))
	fmt.Fprintf(writer, "Expected Net Payment:    %s\n", rg.money(summary.ExpectedTotal))
	fmt.Fprintf(writer, "Total Difference:        %s\n", rg.money(summary.TotalDifference))
}

func (rg *ReportGenerator) printBreakdown(b *reconciler.StatusBreakdown, writer io.Writer) {
	fmt.Fprintf(writer, "Orders:            %s\n", rg.printer.Sprintf("%d", b.Orders))
	fmt.Fprintf(writer, "  Settled:         %d (%.1f%%)\n", b.Settled, rg.calculatePercentage(b.Settled, b.Orders))
	fmt.Fprintf(writer, "  Underpaid:       %d (%.1f%%), short by %s\n",
		b.Underpaid, rg.calculatePercentage(b.Underpaid, b.Orders), rg.money(b.UnderpaidAmount))
	fmt.Fprintf(writer, "  Overpaid:        %d (%.1f%%), over by %s\n",
		b.Overpaid, rg.calculatePercentage(b.Overpaid, b.Orders), rg.money(b.OverpaidAmount))
	fmt.Fprintf(writer, "Not in shipments:  %d\n", b.MissingShipment)
	fmt.Fprintf(writer, "Not in payments:   %d\n", b.MissingPayment)
	fmt.Fprintf(writer, "With returns:      %d\n", b.WithReturns)
}

func (rg *ReportGenerator) printDiscrepancies(discrepancies []*reconciler.Discrepancy, writer io.Writer) {
	fmt.Fprintf(writer, "Total Discrepancies Found: %d\n\n", len(discrepancies))

	severityGroups := make(map[reconciler.Severity][]*reconciler.Discrepancy)
	for _, disc := range discrepancies {
		severityGroups[disc.Severity] = append(severityGroups[disc.Severity], disc)
	}

	severities := []reconciler.Severity{
		reconciler.SeverityHigh,
		reconciler.SeverityMedium,
		reconciler.SeverityLow,
	}
	for _, severity := range severities {
		discs := severityGroups[severity]
		if len(discs) == 0 {
			continue
		}

		fmt.Fprintf(writer, "%s Severity (%d):\n", strings.ToUpper(string(severity)), len(discs))
		for i, disc := range discs {
			if rg.config.MaxConsoleRows > 0 && i >= rg.config.MaxConsoleRows {
				fmt.Fprintf(writer, "  ... and %d more\n", len(discs)-i)
				break
			}
			fmt.Fprintf(writer, "  - %s [%s]: %s\n", disc.OrderID, disc.Type, disc.Description)
		}
		fmt.Fprintf(writer, "\n")
	}
}

func (rg *ReportGenerator) printRecords(records []*models.ReconciledRecord, writer io.Writer) {
	if len(records) == 0 {
		fmt.Fprintf(writer, "No orders found\n")
		return
	}

	fmt.Fprintf(writer, "%-20s %8s %16s %8s %16s %16s %16s %16s\n",
		"Order ID", "Shipped", "Sales", "Returned", "Return Value", "Received", "Expected", "Difference")
	for i, r := range records {
		if rg.config.MaxConsoleRows > 0 && i >= rg.config.MaxConsoleRows {
			fmt.Fprintf(writer, "... and %d more (use --output-format csv for the full ledger)\n", len(records)-i)
			break
		}
		fmt.Fprintf(writer, "%-20s %8s %16s %8s %16s %16s %16s %16s\n",
			r.OrderID,
			r.ShippedQuantity.String(),
			rg.money(r.SalesValue),
			r.ReturnQuantity.String(),
			rg.money(r.ReturnValue),
			rg.money(r.NetPaymentReceived),
			rg.money(r.ExpectedNetPayment),
			rg.money(r.Difference))
	}
}

// money renders a value with the currency symbol, two decimals and locale
// digit grouping. Console output only.
func (rg *ReportGenerator) money(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	return sign + rg.config.CurrencySymbol + rg.printer.Sprintf("%.2f", d.Round(2).InexactFloat64())
}

func (rg *ReportGenerator) calculatePercentage(part, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}
