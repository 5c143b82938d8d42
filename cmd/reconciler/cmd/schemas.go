package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sales-reconciliation-service/cmd/reconciler/config"
	"sales-reconciliation-service/internal/models"
)

var (
	schemasProfile string
	schemasFile    string
)

// schemasCmd prints the columns each report must contain
var schemasCmd = &cobra.Command{
	Use:   "schemas",
	Short: "Show the expected report columns",
	Long: `Schemas lists the available column profiles and the columns each report
must contain under them.

Examples:
  reconciler schemas
  reconciler schemas --profile total-price
  reconciler schemas --schema-file schemas.yaml --profile my-portal`,
	Args: cobra.NoArgs,
	RunE: runSchemas,
}

// versionCmd prints build information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "reconciler %s\n", getVersionString())
	},
}

func init() {
	rootCmd.AddCommand(schemasCmd)
	rootCmd.AddCommand(versionCmd)

	schemasCmd.Flags().StringVar(&schemasProfile, "profile", "", "show only this profile")
	schemasCmd.Flags().StringVar(&schemasFile, "schema-file", "", "YAML file with custom column profiles")
}

func runSchemas(cmd *cobra.Command, args []string) error {
	var overrides config.ColumnOverrides
	if err := viper.UnmarshalKey("columns", &overrides); err != nil {
		return err
	}

	names := []string{schemasProfile}
	if schemasProfile == "" {
		var err error
		names, err = config.ProfileNames(appFs, schemasFile)
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	for i, name := range names {
		set, err := config.ResolveSchemas(appFs, name, schemasFile, overrides)
		if err != nil {
			return err
		}
		if i > 0 {
			fmt.Fprintln(out)
		}
		printProfile(out, name, &set)
	}
	return nil
}

func printProfile(w io.Writer, name string, set *models.SchemaSet) {
	title := name
	if name == models.DefaultProfile {
		title += " (default)"
	}
	fmt.Fprintf(w, "Profile %s:\n", title)
	fmt.Fprint(w, set.Describe())
}
