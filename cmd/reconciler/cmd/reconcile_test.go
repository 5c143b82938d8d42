package cmd

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"sales-reconciliation-service/internal/models"
	"sales-reconciliation-service/pkg/errors"
	"sales-reconciliation-service/pkg/logger"
)

const (
	gstReport = "Cust Order No,Shipped QTY,Invoice Value\n" +
		"A001,1,1000\n" +
		"A001,1,500\n" +
		"B002,2,2000\n"
	rtvReport = "Cust Order No,Return QTY,Return Value\n" +
		"A001,1,500\n"
	paymentReport = "Order No,Value\n" +
		"A001,950\n" +
		"C003,100\n"
)

// useMemFs points the CLI at an in-memory filesystem holding files.
func useMemFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		if err := afero.WriteFile(fs, path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to create %s: %v", path, err)
		}
	}

	previous := appFs
	appFs = fs
	t.Cleanup(func() {
		appFs = previous
		activeSchemas = nil
		viper.Reset()
	})
	viper.Reset()
	return fs
}

func setReports(dir string) {
	viper.Set("shipment-file", dir+"/gst.csv")
	viper.Set("returns-file", dir+"/rtv.csv")
	viper.Set("payment-file", dir+"/payment.csv")
	viper.Set("join-mode", "full_outer")
	viper.Set("output-format", "console")
	viper.Set("input-format", "auto")
	viper.Set("encoding", "auto")
	viper.Set("profile", models.DefaultProfile)
}

func defaultReports() map[string]string {
	return map[string]string{
		"/data/gst.csv":     gstReport,
		"/data/rtv.csv":     rtvReport,
		"/data/payment.csv": paymentReport,
	}
}

func TestValidateFileExists(t *testing.T) {
	useMemFs(t, map[string]string{"/data/valid.csv": "test"})

	tests := []struct {
		name        string
		filePath    string
		expectError bool
	}{
		{name: "valid file", filePath: "/data/valid.csv", expectError: false},
		{name: "empty path", filePath: "", expectError: true},
		{name: "non-existent file", filePath: "/non/existent/file.csv", expectError: true},
		{name: "directory instead of file", filePath: "/data", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFileExists(tt.filePath, "test file")

			if tt.expectError && err == nil {
				t.Errorf("expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateReconcileFlags(t *testing.T) {
	tests := []struct {
		name          string
		setupFlags    func()
		expectError   bool
		errorContains string
	}{
		{
			name:        "valid flags",
			setupFlags:  func() {},
			expectError: false,
		},
		{
			name: "join mode alias",
			setupFlags: func() {
				viper.Set("join-mode", "shipment-anchored")
			},
			expectError: false,
		},
		{
			name: "missing shipment file",
			setupFlags: func() {
				viper.Set("shipment-file", "")
			},
			expectError:   true,
			errorContains: "shipment-file",
		},
		{
			name: "missing join mode",
			setupFlags: func() {
				viper.Set("join-mode", "")
			},
			expectError:   true,
			errorContains: "join-mode",
		},
		{
			name: "unknown join mode",
			setupFlags: func() {
				viper.Set("join-mode", "inner")
			},
			expectError:   true,
			errorContains: "join-mode",
		},
		{
			name: "payment file does not exist",
			setupFlags: func() {
				viper.Set("payment-file", "/data/missing.csv")
			},
			expectError:   true,
			errorContains: "file not found",
		},
		{
			name: "invalid output format",
			setupFlags: func() {
				viper.Set("output-format", "xml")
			},
			expectError:   true,
			errorContains: "output-format",
		},
		{
			name: "invalid encoding",
			setupFlags: func() {
				viper.Set("encoding", "ebcdic")
			},
			expectError:   true,
			errorContains: "loader",
		},
		{
			name: "negative severity",
			setupFlags: func() {
				viper.Set("high-severity", -1.0)
			},
			expectError:   true,
			errorContains: "severity",
		},
		{
			name: "output directory missing",
			setupFlags: func() {
				viper.Set("output-file", "/reports/ledger.csv")
			},
			expectError:   true,
			errorContains: "directory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useMemFs(t, defaultReports())
			setReports("/data")
			tt.setupFlags()

			err := validateReconcileFlags(&cobra.Command{}, []string{})

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				} else if tt.errorContains != "" && !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("expected error to contain '%s', got: %v", tt.errorContains, err)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func runWithFlags(t *testing.T, setup func()) (string, error) {
	t.Helper()
	setReports("/data")
	if setup != nil {
		setup()
	}

	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	if err := validateReconcileFlags(cmd, nil); err != nil {
		return "", err
	}
	err := runReconcile(cmd, nil)
	return out.String(), err
}

func TestRunReconcileCSV(t *testing.T) {
	useMemFs(t, defaultReports())

	output, err := runWithFlags(t, func() {
		viper.Set("output-format", "csv")
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := "Order ID,Total_Shipped_QTY,Total_Sales_Value,Total_Return_QTY,Total_Return_Value,Net_Payment_Received,Expected_Net_Payment,Difference\n" +
		"A001,2,1500.00,1,500.00,950.00,1000.00,-50.00\n" +
		"B002,2,2000.00,0,0.00,0.00,2000.00,-2000.00\n" +
		"C003,0,0.00,0,0.00,100.00,0.00,100.00\n"
	if output != expected {
		t.Errorf("unexpected CSV output:\n%s\nwant:\n%s", output, expected)
	}
}

func TestRunReconcileShipmentAnchoredToFile(t *testing.T) {
	files := defaultReports()
	files["/out/.keep"] = ""
	fs := useMemFs(t, files)

	output, err := runWithFlags(t, func() {
		viper.Set("join-mode", "shipment_anchored")
		viper.Set("output-format", "tsv")
		viper.Set("output-file", "/out/ledger.tsv")
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output != "" {
		t.Errorf("expected nothing on stdout, got %q", output)
	}

	data, err := afero.ReadFile(fs, "/out/ledger.tsv")
	if err != nil {
		t.Fatalf("report was not written: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 orders, got %d lines:\n%s", len(lines), data)
	}
	if strings.HasPrefix(lines[len(lines)-1], "C003") {
		t.Error("payment-only order should be dropped in shipment_anchored mode")
	}
}

func TestRunReconcileConsole(t *testing.T) {
	useMemFs(t, defaultReports())

	output, err := runWithFlags(t, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"A001", "B002", "C003"} {
		if !strings.Contains(output, want) {
			t.Errorf("console report should mention %s", want)
		}
	}
}

func TestRunReconcileColumnOverrides(t *testing.T) {
	files := defaultReports()
	files["/data/payment.csv"] = "Order No,Settled\nA001,950\n"
	useMemFs(t, files)

	output, err := runWithFlags(t, func() {
		viper.Set("output-format", "csv")
		viper.Set("columns", map[string]interface{}{
			"payment": map[string]interface{}{"value": "Settled"},
		})
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(output, "A001,2,1500.00,1,500.00,950.00,1000.00,-50.00") {
		t.Errorf("override column was not used:\n%s", output)
	}
}

func TestRunReconcileSchemaErrors(t *testing.T) {
	files := defaultReports()
	files["/data/rtv.csv"] = "Cust Order No,Qty\nA001,1\n"
	files["/data/payment.csv"] = "Order,Amount\nA001,950\n"
	useMemFs(t, files)

	_, err := runWithFlags(t, nil)
	if err == nil {
		t.Fatal("expected schema error")
	}

	errs := multierr.Errors(err)
	if len(errs) != 2 {
		t.Fatalf("expected 2 combined errors, got %d: %v", len(errs), err)
	}

	var out bytes.Buffer
	handler := &CLIErrorHandler{
		logger:  logger.GetGlobalLogger(),
		out:     &out,
		fs:      appFs,
		schemas: activeSchemas,
	}
	code := handler.HandleError(err)

	if code != 3 {
		t.Errorf("expected exit code 3, got %d", code)
	}
	text := out.String()
	for _, want := range []string{
		"Found 2 errors",
		"Returns (RTV) report is missing required columns: 'Return QTY', 'Return Value'",
		"Payment report is missing required columns: 'Order No', 'Value'",
		"Expected report columns:",
		"Shipment (GST) report must contain 'Cust Order No', 'Shipped QTY', and 'Invoice Value'.",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("error output should contain %q, got:\n%s", want, text)
		}
	}
}

func TestRunReconcileStrict(t *testing.T) {
	files := defaultReports()
	files["/data/gst.csv"] = "Cust Order No,Shipped QTY,Invoice Value\nA001,1,abc\n"
	useMemFs(t, files)

	_, err := runWithFlags(t, func() {
		viper.Set("strict", true)
	})

	var formatErr *errors.FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected FormatError, got %v", err)
	}
	if formatErr.Row != 2 || formatErr.Column != "Invoice Value" || formatErr.Value != "abc" {
		t.Errorf("unexpected format error location: %+v", formatErr)
	}
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		expectCode    int
		expectOutput  string
		expectSchemas bool
	}{
		{
			name:         "nil error",
			err:          nil,
			expectCode:   0,
			expectOutput: "",
		},
		{
			name:         "file error",
			err:          errors.FileError(errors.CodeFileNotFound, "/data/gst.cvs", nil),
			expectCode:   2,
			expectOutput: "gst.csv",
		},
		{
			name:         "configuration error",
			err:          errors.ConfigurationError(errors.CodeMissingConfig, "join-mode", "", nil),
			expectCode:   4,
			expectOutput: "Configuration error help",
		},
		{
			name:          "format error",
			err:           &errors.FormatError{Source: "Payment", Row: 4, Column: "Value", Value: "n/a"},
			expectCode:    3,
			expectOutput:  "without --strict",
			expectSchemas: true,
		},
		{
			name: "empty report",
			err: errors.ValidationError(errors.CodeMissingField, "header row", "gst", nil).
				WithSuggestion("the report is empty; export it again including the header row"),
			expectCode:    3,
			expectOutput:  "header row",
			expectSchemas: true,
		},
		{
			name:          "malformed report",
			err:           errors.ParseError(errors.CodeInvalidFormat, "rtv.csv", 3, "", "", fmt.Errorf("bare quote")),
			expectCode:    3,
			expectOutput:  "rtv.csv",
			expectSchemas: true,
		},
		{
			name:          "schema error",
			err:           errors.NewSchemaError("GST", []string{"Shipped QTY"}, []string{"Cust Order No"}, nil),
			expectCode:    3,
			expectOutput:  "'Shipped QTY'",
			expectSchemas: true,
		},
		{
			name:         "generic error",
			err:          fmt.Errorf("boom"),
			expectCode:   1,
			expectOutput: "Error: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := useMemFs(t, defaultReports())
			var out bytes.Buffer
			handler := &CLIErrorHandler{logger: logger.GetGlobalLogger(), out: &out, fs: fs}

			code := handler.HandleError(tt.err)

			if code != tt.expectCode {
				t.Errorf("expected exit code %d, got %d", tt.expectCode, code)
			}
			if !strings.Contains(out.String(), tt.expectOutput) {
				t.Errorf("expected output to contain %q, got:\n%s", tt.expectOutput, out.String())
			}
			hasSchemas := strings.Contains(out.String(), "Expected report columns")
			if hasSchemas != tt.expectSchemas {
				t.Errorf("expected schemas listed = %v, got:\n%s", tt.expectSchemas, out.String())
			}
			if tt.expectSchemas && !strings.Contains(out.String(), "Invoice Value") {
				t.Errorf("expected the default shipment columns, got:\n%s", out.String())
			}
		})
	}
}

func TestSchemasCommand(t *testing.T) {
	useMemFs(t, map[string]string{
		"/schemas.yaml": "profiles:\n  my-portal:\n    payment:\n      value: Settled\n",
	})

	tests := []struct {
		name       string
		profile    string
		schemaFile string
		contains   []string
	}{
		{
			name:     "all built-in profiles",
			contains: []string{"Profile invoice-value (default):", "Profile total-price:", "'Total Price'"},
		},
		{
			name:       "custom profile",
			profile:    "my-portal",
			schemaFile: "/schemas.yaml",
			contains:   []string{"Profile my-portal:", "Payment report must contain 'Order No' and 'Settled'."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schemasProfile = tt.profile
			schemasFile = tt.schemaFile
			t.Cleanup(func() {
				schemasProfile = ""
				schemasFile = ""
			})

			var out bytes.Buffer
			cmd := &cobra.Command{}
			cmd.SetOut(&out)

			if err := runSchemas(cmd, nil); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(out.String(), want) {
					t.Errorf("expected output to contain %q, got:\n%s", want, out.String())
				}
			}
		})
	}
}

func TestReconcileCommandHelp(t *testing.T) {
	cmd := reconcileCmd

	var helpOutput bytes.Buffer
	cmd.SetOut(&helpOutput)
	cmd.Help()

	helpText := helpOutput.String()

	expectedSections := []string{
		"Usage:",
		"Examples:",
		"Flags:",
		"--shipment-file",
		"--returns-file",
		"--payment-file",
		"--join-mode",
		"--output-format",
	}

	for _, section := range expectedSections {
		if !strings.Contains(helpText, section) {
			t.Errorf("help text should contain '%s'", section)
		}
	}
}

func TestFlagBinding(t *testing.T) {
	cmd := reconcileCmd

	flags := []string{
		"shipment-file", "returns-file", "payment-file", "join-mode",
		"input-format", "encoding", "sheet", "profile", "schema-file", "strict",
		"output-format", "output-file", "sort-by", "high-severity", "medium-severity", "progress",
	}

	for _, name := range flags {
		t.Run(name, func(t *testing.T) {
			if cmd.Flags().Lookup(name) == nil {
				t.Errorf("flag '%s' not found", name)
			}
		})
	}
}

func TestRunReconcileFixtures(t *testing.T) {
	useMemFs(t, nil)
	appFs = afero.NewReadOnlyFs(afero.NewOsFs())

	tests := []struct {
		name     string
		setup    func()
		expected string
	}{
		{
			name: "full outer",
			setup: func() {
				viper.Set("output-format", "csv")
				viper.Set("sort-by", "")
			},
			expected: "Order ID,Total_Shipped_QTY,Total_Sales_Value,Total_Return_QTY,Total_Return_Value,Net_Payment_Received,Expected_Net_Payment,Difference\n" +
				"A001,10,1000.00,2,200.00,750.00,800.00,-50.00\n" +
				"C003,1,2500.00,0,0.00,0.00,2500.00,-2500.00\n" +
				"D004,2,0.00,0,0.00,0.00,0.00,0.00\n" +
				"R009,0,0.00,1,50.00,0.00,-50.00,50.00\n" +
				"B002,0,0.00,0,0.00,75.00,0.00,75.00\n",
		},
		{
			name: "shipment anchored sorted by difference",
			setup: func() {
				viper.Set("join-mode", "shipment_anchored")
				viper.Set("output-format", "csv")
				viper.Set("sort-by", "difference")
			},
			expected: "Order ID,Total_Shipped_QTY,Total_Sales_Value,Total_Return_QTY,Total_Return_Value,Net_Payment_Received,Expected_Net_Payment,Difference\n" +
				"C003,1,2500.00,0,0.00,0.00,2500.00,-2500.00\n" +
				"A001,10,1000.00,2,200.00,750.00,800.00,-50.00\n" +
				"D004,2,0.00,0,0.00,0.00,0.00,0.00\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := runWithFlags(t, func() {
				setReports("../../../testdata")
				tt.setup()
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if output != tt.expected {
				t.Errorf("unexpected output:\n%s\nwant:\n%s", output, tt.expected)
			}
		})
	}
}
