package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	appVersion string // set in Execute, reported by serve in the OpenAPI doc
)

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	appVersion = version
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schemafleet",
		Short: "Schema migration orchestrator for fleets of tenant databases",
		Long: `Schemafleet keeps every tenant database in a fleet on the same table schemas.

It stores versioned schema declarations in a central catalog, diffs each
declaration against the live schema of every tenant database, and fans the
resulting DDL out in parallel with per-table locking and a full audit history.
Partitioned tables (monthly, daily, per-store) expand to their physical
children automatically.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./schemafleet.yaml)")

	cobra.OnInitialize(initConfig)

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newExecuteCmd())
	cmd.AddCommand(newDetectCmd())
	cmd.AddCommand(newTenantCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))

	return cmd
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("schemafleet")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.schemafleet")
	}

	viper.SetEnvPrefix("SCHEMAFLEET")
	viper.AutomaticEnv()
	viper.ReadInConfig() // config file is optional
}
