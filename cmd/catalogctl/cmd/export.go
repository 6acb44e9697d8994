package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/geocatalog/internal/repository"
	apperrors "github.com/geocatalog/pkg/errors"
)

func newExportCmd(opts *globalOptions) *cobra.Command {
	flags := &loadFlags{}

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Load a catalog and export it to the configured database",
		Long: `Load a catalog data directory and write one row per catalog object to the
catalog_objects table of the configured database, replacing the rows of the
previous export in a single transaction. Each export is recorded in
catalog_exports.

Supported databases: sqlite, postgres, mysql (database.type).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts, flags)
			if err != nil {
				return err
			}
			defer s.Close(cmd.Context())

			if !s.cfg.ExportEnabled() {
				return apperrors.New(apperrors.CodeConfigError, "no export database configured (database.type)")
			}

			c, report, err := s.loadCatalog(cmd.Context())
			if err != nil {
				return err
			}
			if n := len(report.Failures()) + len(report.Dropped); n > 0 {
				s.logger.Warn("Exporting a partial catalog: %d records were skipped", n)
			}

			rows, err := repository.Rows(c)
			if err != nil {
				return err
			}

			db := s.cfg.Database
			gormDB, err := repository.NewGormDB(&repository.DBConfig{
				Type:     db.Type,
				Host:     db.Host,
				Port:     s.cfg.DatabasePort(),
				Database: db.Database,
				User:     db.User,
				Password: db.Password,
				MaxConns: db.MaxConns,
				Path:     db.Path,
			})
			if err != nil {
				return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to connect to the export database", err)
			}
			repos := repository.NewRepositories(gormDB, Version)
			defer repos.Close()

			if err := repos.Catalog.Migrate(cmd.Context()); err != nil {
				return err
			}
			run, err := repos.Catalog.Replace(cmd.Context(), rows)
			if err != nil {
				return err
			}

			s.logger.Info("Exported %d catalog objects to %s (export %d)", run.Objects, db.Type, run.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d objects (export %d, %s)\n",
				run.Objects, run.ID, run.ExportedAt.Format("2006-01-02T15:04:05Z07:00"))
			return nil
		},
	}
	flags.register(exportCmd)
	return exportCmd
}
