package cli

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/schemafleet/schemafleet/internal/model"
	"github.com/schemafleet/schemafleet/internal/tenantfile"
)

func newTenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage the tenant roster",
	}
	cmd.AddCommand(newTenantListCmd())
	cmd.AddCommand(newTenantAddCmd())
	return cmd
}

func loadRoster() (*tenantfile.Roster, error) {
	path := viper.GetString("tenants.file")
	if path == "" {
		path = "tenants.yaml"
	}
	return tenantfile.Load(path)
}

func newTenantListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every tenant in the roster",
		RunE: func(cmd *cobra.Command, args []string) error {
			roster, err := loadRoster()
			if err != nil {
				return err
			}
			tenants, err := roster.Tenants(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TENANT\tROLES")
			for _, t := range tenants {
				roles := make([]string, 0, len(t.Databases))
				for role := range t.Databases {
					roles = append(roles, string(role))
				}
				sort.Strings(roles)
				fmt.Fprintf(w, "%s\t%v\n", t.ID, roles)
			}
			return w.Flush()
		},
	}
}

func newTenantAddCmd() *cobra.Command {
	var (
		role     string
		host     string
		port     int
		user     string
		password string
		database string
	)

	cmd := &cobra.Command{
		Use:   "add <tenant-id>",
		Short: "Add a tenant with one database to the roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dbRole := model.DatabaseRole(role)
			if !model.ValidRole(dbRole) {
				return fmt.Errorf("unknown database role %q", role)
			}
			if password == "" {
				fmt.Print("Database password: ")
				pwBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
				if err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}
				fmt.Println()
				password = string(pwBytes)
			}
			if database == "" {
				database = args[0]
			}

			roster, err := loadRoster()
			if err != nil {
				return err
			}
			t := model.Tenant{
				ID: args[0],
				Databases: map[model.DatabaseRole]model.DatabaseParams{
					dbRole: {
						Host: host, Port: port,
						User: user, Password: password,
						Database: database,
					},
				},
			}
			if err := roster.Add(t); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added tenant %q with %s database %s:%d/%s\n",
				t.ID, role, host, port, database)
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", "main", "Database role for the connection")
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Database host")
	cmd.Flags().IntVar(&port, "port", 3306, "Database port")
	cmd.Flags().StringVar(&user, "user", "root", "Database user")
	cmd.Flags().StringVar(&password, "password", "", "Database password (prompted if empty)")
	cmd.Flags().StringVar(&database, "database", "", "Database name (defaults to the tenant ID)")

	return cmd
}
