package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sales-reconciliation-service/pkg/logger"
)

var (
	cfgFile   string
	verbose   bool
	logFormat string
	version   = "dev"
	commit    = "unknown"
	date      = "unknown"

	// appFs backs every file the CLI reads or writes; tests swap in a memory filesystem.
	appFs afero.Fs = afero.NewOsFs()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "reconciler",
	Short: "Marketplace sales reconciliation tool",
	Long: `Reconciler joins a marketplace seller's shipment (GST), returns (RTV)
and payment reports on order id and computes, per order, the net payment
expected against the payment actually received.

Examples:
  reconciler reconcile --shipment-file gst.csv --returns-file rtv.csv \
    --payment-file payment.csv --join-mode full_outer
  reconciler reconcile --shipment-file gst.xlsx --returns-file rtv.xlsx \
    --payment-file payment.csv --join-mode shipment_anchored --output-format csv
  reconciler schemas
  reconciler version`,
	Version:       getVersionString(),
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text, json")

	// Bind flags to viper
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig reads in config file and ENV variables.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetFs(appFs)
		viper.SetConfigFile(cfgFile)

		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
			os.Exit(2)
		}
	}

	// RECONCILER_JOIN_MODE, RECONCILER_COLUMNS_PAYMENT_VALUE, ...
	viper.SetEnvPrefix("RECONCILER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if err := configureLogger(viper.GetBool("verbose"), viper.GetString("log-format")); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %s\n", err)
		os.Exit(2)
	}

	if cfgFile != "" {
		logger.WithComponent("cli").WithField("config_file", viper.ConfigFileUsed()).Info("Using config file")
	}
}

// configureLogger installs the global logger. Logs always go to stderr so
// reports written to stdout can be piped.
func configureLogger(verbose bool, format string) error {
	config := logger.DefaultConfig()
	if verbose {
		config = logger.DebugConfig()
	}
	if format != "" {
		config.Format = logger.Format(strings.ToLower(format))
	}

	log, err := logger.NewLogger(config)
	if err != nil {
		return err
	}
	logger.SetGlobalLogger(log)
	return nil
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
