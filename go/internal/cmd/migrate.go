package main

import (
	"github.com/mcdev12/transfermarket/go/internal/dbconfig"
	"github.com/mcdev12/transfermarket/go/internal/dbschema"
	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the Postgres schema (DB_* env vars) and optionally seed clubs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			database, err := setupDatabase(ctx, dbconfig.NewConfigFromEnv())
			if err != nil {
				return err
			}
			defer database.Close()

			if err := dbschema.Apply(ctx, database); err != nil {
				return err
			}
			printSuccess("schema applied")

			if !seed {
				return nil
			}
			services, err := setupServices(database, opts.cfg)
			if err != nil {
				return err
			}
			return services.seed(ctx)
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "load the bundled club snapshot after migrating")
	return cmd
}
