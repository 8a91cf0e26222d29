package cli

import (
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"llnd-portal/internal/catalog"
	"llnd-portal/internal/config"
	"llnd-portal/internal/infra/postgres"
)

// NewCatalogCmd groups catalog maintenance commands.
func NewCatalogCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Validate or seed LLND quiz content",
	}
	cmd.AddCommand(newCatalogValidateCmd(), newCatalogSeedCmd(configPath))
	return cmd
}

// readCatalog returns the file at path, or the embedded catalog when path is empty.
func readCatalog(args []string) ([]byte, error) {
	if len(args) == 0 {
		return catalog.Raw(), nil
	}
	return os.ReadFile(args[0])
}

func newCatalogValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Check a catalog document against the schema",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readCatalog(args)
			if err != nil {
				return err
			}
			c, err := catalog.Parse(raw)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "catalog %s ok: %d sections, %d questions, fingerprint %s\n",
				c.Version, len(c.Sections), c.QuestionCount(), c.Fingerprint)
			return nil
		},
	}
}

func newCatalogSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed [file]",
		Short: "Store a catalog version in Postgres and make it current",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			raw, err := readCatalog(args)
			if err != nil {
				return err
			}
			db, err := openBun(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := Migrate(cmd.Context(), db); err != nil {
				return err
			}
			row, err := postgres.SeedCatalog(cmd.Context(), db, raw)
			if err != nil {
				return err
			}
			glog.Infof("seeded catalog %s (%s)", row.Version, row.Fingerprint)
			return nil
		},
	}
}
