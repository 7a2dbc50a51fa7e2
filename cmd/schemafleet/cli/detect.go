package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/schemafleet/schemafleet/internal/detector"
)

func newDetectCmd() *cobra.Command {
	var (
		save    bool
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Detect schema drift between the baselines and the catalog",
		Long: `Detect scans every configured baseline database, compares each table's live
schema against the active catalog version, and proposes new registrations,
upgrades, and drops. Without --save the proposals are only printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(verbose)
			env, err := buildEnv(logger)
			if err != nil {
				return err
			}
			defer env.Close()

			var proposals []detector.Proposal
			if save {
				proposals, err = env.detector.DetectAndSave(cmd.Context())
			} else {
				proposals, err = env.detector.DetectAll(cmd.Context())
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(proposals) == 0 {
				fmt.Fprintln(out, "No drift detected; catalog matches the baselines.")
				return nil
			}

			w := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KIND\tROLE\tTABLE\tVERSION")
			for _, p := range proposals {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Kind, p.DatabaseRole, p.TableName, p.Version)
			}
			w.Flush()

			if save {
				fmt.Fprintf(out, "\nSaved %d proposals to the catalog.\n", len(proposals))
			} else {
				fmt.Fprintf(out, "\n%d proposals (dry run; pass --save to persist).\n", len(proposals))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "Persist the proposals to the catalog")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Enable debug logging")

	return cmd
}
