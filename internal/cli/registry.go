package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yotto3s/listscope/internal/config"
	"github.com/yotto3s/listscope/internal/store"
)

var errDefinedBlueprint = errors.New("blueprint is defined")

func newRegistryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect the blueprint registry",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every blueprint in the registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openRegistry(GetConfig(cmd.Context()))
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			bps, err := s.List()
			if err != nil {
				return err
			}
			renderBlueprints(cmd.OutOrStdout(), bps)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "forget <name>...",
		Short: "Delete declared but undefined blueprints from the registry",
		Long: `Delete blueprints that were declared but never given a body.
Defined blueprints are permanent and cannot be forgotten.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openRegistry(GetConfig(cmd.Context()))
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			// Check every name before deleting any.
			for _, name := range args {
				bp, err := s.Get(name)
				if err != nil {
					return fmt.Errorf("forget %s: %w", name, err)
				}
				if bp == nil {
					return fmt.Errorf("forget %s: no such blueprint", name)
				}
				if bp.Defined {
					return fmt.Errorf("forget %s: %w", name, errDefinedBlueprint)
				}
			}
			for _, name := range args {
				if err := s.Delete(name); err != nil {
					return fmt.Errorf("forget %s: %w", name, err)
				}
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Forgot %d blueprints\n", len(args))
			return nil
		},
	})
	return cmd
}

func openRegistry(cfg *config.Config) (store.Store, error) {
	if cfg.Registry != config.RegistrySQLite {
		return nil, fmt.Errorf("the %s registry does not outlive a session; use --registry=%s", cfg.Registry, config.RegistrySQLite)
	}
	return store.NewSQLite(cfg.RegistryDSN)
}
