package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/schemafleet/schemafleet/internal/model"
)

func newExecuteCmd() *cobra.Command {
	var (
		schemaID        int64
		tableName       string
		role            string
		version         string
		all             bool
		includeInactive bool
		verbose         bool
	)

	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Fan a schema definition out across every tenant",
		Long: `Execute diffs one cataloged schema declaration against the live schema of
every tenant database and applies the resulting DDL. Per-target failures are
reported in the summary; they never stop the other tenants.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(verbose)
			env, err := buildEnv(logger)
			if err != nil {
				return err
			}
			defer env.Close()
			env.releaseOwnLocks(cmd.Context())

			out := cmd.OutOrStdout()
			switch {
			case all:
				sums, err := env.executor.ExecuteAll(cmd.Context())
				if err != nil {
					return err
				}
				for _, sum := range sums {
					printSummary(out, sum)
				}
				return nil
			case schemaID != 0:
				sum, err := env.executor.ExecuteOne(cmd.Context(), schemaID, includeInactive)
				if err != nil {
					return err
				}
				printSummary(out, sum)
				return nil
			case tableName != "" && role != "" && version != "":
				v, err := model.ParseVersion(version)
				if err != nil {
					return fmt.Errorf("invalid --schema-version: %w", err)
				}
				sum, err := env.executor.ExecuteByKey(cmd.Context(), tableName, model.DatabaseRole(role), v, includeInactive)
				if err != nil {
					return err
				}
				printSummary(out, sum)
				return nil
			default:
				return fmt.Errorf("specify --all, --schema-id, or all of --table, --role, --schema-version")
			}
		},
	}

	cmd.Flags().Int64Var(&schemaID, "schema-id", 0, "Catalog ID of the definition to execute")
	cmd.Flags().StringVar(&tableName, "table", "", "Logical table name")
	cmd.Flags().StringVar(&role, "role", "", "Database role (main, log, order, static)")
	cmd.Flags().StringVar(&version, "schema-version", "", "Schema version (e.g. 1.2.0)")
	cmd.Flags().BoolVar(&all, "all", false, "Execute every active definition")
	cmd.Flags().BoolVar(&includeInactive, "include-inactive", false, "Allow executing a superseded definition")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Enable debug logging")

	return cmd
}
