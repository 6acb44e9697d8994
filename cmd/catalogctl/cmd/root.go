package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	verbose    bool
}

// NewRootCmd builds the catalogctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "catalogctl",
		Short: "Load and export GeoServer catalogs",
		Long: `catalogctl loads a GeoServer catalog from its data directory.

Records are read and decoded in parallel, references between them are
resolved, and the result is reported, optionally recorded as Prometheus
metrics and exported to a relational database.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"Config file (default: catalogctl.yaml in ., ./configs or /etc/geocatalog)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(
		newLoadCmd(opts),
		newExportCmd(opts),
		newEncryptCmd(opts),
		newVersionCmd(),
	)

	binName := BinName()
	rootCmd.Example = `  # Load a data directory and print the report
  ` + binName + ` load --data-dir /srv/geoserver/data

  # Load YAML records with 8 threads
  ` + binName + ` load -d ./data --format yaml --threads 8

  # Export the loaded catalog to the configured database
  ` + binName + ` export --config ./configs/catalogctl.yaml

  # Encrypt a store password for a connection parameter
  ` + binName + ` encrypt --key "$GEOCATALOG_CATALOG_SECRET_KEY" s3cr3t`

	return rootCmd
}

// Execute runs the root command; SIGINT and SIGTERM cancel a running load.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// BinName returns the base name of the current executable
func BinName() string {
	return filepath.Base(os.Args[0])
}
