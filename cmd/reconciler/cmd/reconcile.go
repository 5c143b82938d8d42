package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sales-reconciliation-service/cmd/reconciler/config"
	"sales-reconciliation-service/internal/models"
	"sales-reconciliation-service/internal/parsers"
	"sales-reconciliation-service/internal/reconciler"
	"sales-reconciliation-service/internal/reporter"
	"sales-reconciliation-service/pkg/errors"
	"sales-reconciliation-service/pkg/logger"
)

// Flags for the reconcile command
var (
	shipmentFile string
	returnsFile  string
	paymentFile  string
	joinMode     string
	strictMode   bool
	profile      string
	schemaFile   string
	inputFormat  string
	encoding     string
	sheet        string
	outputFormat string
	outputFile   string
	sortBy       string
	showProgress bool

	highSeverity   float64
	mediumSeverity float64

	// activeSchemas is the schema set of the current run, shown when a
	// report does not match it.
	activeSchemas *models.SchemaSet
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile shipment, returns and payment reports",
	Long: `Reconcile aggregates the shipment (GST), returns (RTV) and payment reports
per order id, joins them and reports for every order the expected net
payment (sales minus returns) against the payment actually received.

This command requires:
- A shipment (GST) report
- A returns (RTV) report
- A payment report
- A join mode: full_outer keeps every order id seen in any report,
  shipment_anchored keeps only orders present in the shipment report

Reports may be CSV, TSV or XLSX workbooks.

Examples:
  # Basic reconciliation
  reconciler reconcile --shipment-file gst.csv --returns-file rtv.csv \
    --payment-file payment.csv --join-mode full_outer

  # Only orders that were shipped, written as CSV
  reconciler reconcile -g gst.xlsx -r rtv.xlsx -p payment.csv \
    --join-mode shipment_anchored --output-format csv --output-file ledger.csv

  # Reports whose shipment value column is "Total Price"
  reconciler reconcile -g gst.csv -r rtv.csv -p payment.csv \
    --join-mode full_outer --profile total-price

  # Fail on the first malformed amount instead of counting it as zero
  reconciler reconcile -g gst.csv -r rtv.csv -p payment.csv \
    --join-mode full_outer --strict

  # Custom column names from a schema file
  reconciler reconcile -g gst.csv -r rtv.csv -p payment.csv \
    --join-mode full_outer --schema-file schemas.yaml --profile my-portal`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	// Input flags
	reconcileCmd.Flags().StringVarP(&shipmentFile, "shipment-file", "g", "", "path to the shipment (GST) report (required)")
	reconcileCmd.Flags().StringVarP(&returnsFile, "returns-file", "r", "", "path to the returns (RTV) report (required)")
	reconcileCmd.Flags().StringVarP(&paymentFile, "payment-file", "p", "", "path to the payment report (required)")
	reconcileCmd.Flags().StringVarP(&joinMode, "join-mode", "j", "", "join mode: full_outer, shipment_anchored (required)")
	reconcileCmd.Flags().StringVar(&inputFormat, "input-format", "auto", "input format: auto, csv, tsv, xlsx")
	reconcileCmd.Flags().StringVar(&encoding, "encoding", "auto", "text encoding of delimited reports: auto, utf-8, windows-1252")
	reconcileCmd.Flags().StringVar(&sheet, "sheet", "", "workbook sheet to read (default: first sheet)")

	// Schema flags
	reconcileCmd.Flags().StringVar(&profile, "profile", models.DefaultProfile, "column profile for the three reports")
	reconcileCmd.Flags().StringVar(&schemaFile, "schema-file", "", "YAML file with custom column profiles")
	reconcileCmd.Flags().BoolVar(&strictMode, "strict", false, "fail on malformed amounts instead of counting them as zero")

	// Output flags
	reconcileCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json, csv, tsv")
	reconcileCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")
	reconcileCmd.Flags().StringVar(&sortBy, "sort-by", "", "ledger order: order_id, difference (default: join order)")
	reconcileCmd.Flags().Float64Var(&highSeverity, "high-severity", 0, "difference at or above which a discrepancy is high severity")
	reconcileCmd.Flags().Float64Var(&mediumSeverity, "medium-severity", 0, "difference at or above which a discrepancy is medium severity")

	// UI flags
	reconcileCmd.Flags().BoolVar(&showProgress, "progress", false, "show progress indicators")

	// Bind flags to viper
	for _, name := range []string{
		"shipment-file", "returns-file", "payment-file", "join-mode",
		"input-format", "encoding", "sheet",
		"profile", "schema-file", "strict",
		"output-format", "output-file", "sort-by",
		"high-severity", "medium-severity", "progress",
	} {
		viper.BindPFlag(name, reconcileCmd.Flags().Lookup(name))
	}
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	// Get values from viper (allows override from config file)
	shipmentFile = viper.GetString("shipment-file")
	returnsFile = viper.GetString("returns-file")
	paymentFile = viper.GetString("payment-file")
	joinMode = viper.GetString("join-mode")
	inputFormat = viper.GetString("input-format")
	encoding = viper.GetString("encoding")
	sheet = viper.GetString("sheet")
	profile = viper.GetString("profile")
	schemaFile = viper.GetString("schema-file")
	strictMode = viper.GetBool("strict")
	outputFormat = viper.GetString("output-format")
	outputFile = viper.GetString("output-file")
	sortBy = viper.GetString("sort-by")
	highSeverity = viper.GetFloat64("high-severity")
	mediumSeverity = viper.GetFloat64("medium-severity")
	showProgress = viper.GetBool("progress")

	// Validate required flags
	required := []struct {
		flag  string
		value string
	}{
		{"shipment-file", shipmentFile},
		{"returns-file", returnsFile},
		{"payment-file", paymentFile},
	}
	for _, r := range required {
		if r.value == "" {
			return errors.ConfigurationError(errors.CodeMissingConfig, r.flag, nil, nil).
				WithSuggestion(fmt.Sprintf("pass --%s with the path to the report", r.flag))
		}
	}

	if _, err := models.ParseJoinMode(joinMode); err != nil {
		code := errors.CodeInvalidConfig
		if joinMode == "" {
			code = errors.CodeMissingConfig
		}
		return errors.ConfigurationError(code, "join-mode", joinMode, err).
			WithSuggestion("pass --join-mode full_outer or --join-mode shipment_anchored")
	}

	// Validate file existence
	if err := validateFileExists(shipmentFile, "shipment report"); err != nil {
		return err
	}
	if err := validateFileExists(returnsFile, "returns report"); err != nil {
		return err
	}
	if err := validateFileExists(paymentFile, "payment report"); err != nil {
		return err
	}
	if schemaFile != "" {
		if err := validateFileExists(schemaFile, "schema file"); err != nil {
			return err
		}
	}

	if _, err := config.CreateReportConfig(outputFormat, sortBy); err != nil {
		return err
	}
	if _, err := config.CreateLoaderConfig(inputFormat, encoding, sheet); err != nil {
		return err
	}

	if highSeverity < 0 || mediumSeverity < 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "severity", fmt.Sprintf("%v/%v", highSeverity, mediumSeverity),
			fmt.Errorf("severity thresholds cannot be negative"))
	}

	// Validate output file directory exists if specified
	if outputFile != "" {
		dir := filepath.Dir(outputFile)
		if dir != "." {
			if exists, _ := afero.DirExists(appFs, dir); !exists {
				return errors.FileError(errors.CodeDirectoryError, dir, fmt.Errorf("output directory does not exist"))
			}
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, description+" path", nil, nil)
	}

	info, err := appFs.Stat(filePath)
	if os.IsNotExist(err) {
		return errors.FileError(errors.CodeFileNotFound, filePath, err).
			WithContext("description", description)
	}
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, filePath, err).
			WithContext("description", description)
	}

	if info.IsDir() {
		return errors.FileError(errors.CodeDirectoryError, filePath, fmt.Errorf("%s is a directory, expected a file", description))
	}

	// Check if file is readable
	file, err := appFs.Open(filePath)
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, filePath, err).
			WithContext("description", description)
	}
	file.Close()

	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.WithComponent("cli")
	log.WithFields(logger.Fields{
		"shipment_file": shipmentFile,
		"returns_file":  returnsFile,
		"payment_file":  paymentFile,
		"join_mode":     joinMode,
		"profile":       profile,
		"output_format": outputFormat,
		"output_file":   outputFile,
	}).Debug("Starting reconciliation")

	var overrides config.ColumnOverrides
	if err := viper.UnmarshalKey("columns", &overrides); err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "columns", nil, err)
	}
	schemas, err := config.ResolveSchemas(appFs, profile, schemaFile, overrides)
	if err != nil {
		return err
	}
	activeSchemas = &schemas

	// Create configurations
	reconcilerConfig, err := config.CreateReconcilerConfig(joinMode, strictMode, schemas)
	if err != nil {
		return err
	}
	config.ApplySeverityThresholds(reconcilerConfig, highSeverity, mediumSeverity)

	loaderConfig, err := config.CreateLoaderConfig(inputFormat, encoding, sheet)
	if err != nil {
		return err
	}
	reportConfig, err := config.CreateReportConfig(outputFormat, sortBy)
	if err != nil {
		return err
	}

	service, err := reconciler.NewService(reconcilerConfig)
	if err != nil {
		return err
	}
	if showProgress {
		service.AddProgressListener(func(stats logger.ProgressStats) {
			fmt.Fprintf(os.Stderr, "\r%s", stats)
		})
	}

	if showProgress {
		fmt.Fprintf(os.Stderr, "Loading reports...\n")
	}
	tables, err := parsers.NewLoader(appFs, loaderConfig).LoadAll(ctx, shipmentFile, returnsFile, paymentFile)
	if err != nil {
		return err
	}

	result, err := service.Run(ctx, &reconciler.Request{
		Shipment: tables[0],
		Returns:  tables[1],
		Payment:  tables[2],
	})
	if showProgress {
		fmt.Fprintf(os.Stderr, "\n")
	}
	if err != nil {
		return err
	}

	generator, err := reporter.NewSafeReportGenerator(reportConfig, appFs, log)
	if err != nil {
		return err
	}
	if outputFile != "" {
		err = generator.GenerateToFile(result, outputFile)
	} else {
		err = generator.GenerateReportSafely(result, cmd.OutOrStdout())
	}
	if err != nil {
		return err
	}

	// The console report lists warnings itself.
	if reportConfig.Format != reporter.FormatConsole {
		for _, warning := range result.Warnings {
			log.Warn(warning)
		}
	}

	// Show completion message
	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "\nReconciliation %s completed in %v.\n", result.RunID, result.Duration)
		fmt.Fprintf(os.Stderr, "Reconciled %d orders: %d settled, %d underpaid, %d overpaid.\n",
			result.Breakdown.Orders, result.Breakdown.Settled, result.Breakdown.Underpaid, result.Breakdown.Overpaid)
		fmt.Fprintf(os.Stderr, "Total difference: %s\n", result.Summary.TotalDifference.String())
		if outputFile != "" {
			fmt.Fprintf(os.Stderr, "Report written to %s\n", outputFile)
		}
	}

	return nil
}
