package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/reagentworks/reagent/internal/config"
	"github.com/reagentworks/reagent/internal/observability"
	"github.com/reagentworks/reagent/internal/service"
)

// newToolsCmd creates the `tools` command, which lists the built-in tool
// registry the agent dispatches to.
func newToolsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the registered agent tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return err
			}
			components, err := service.NewComponents(ctx, cfg, observability.GetLogger())
			if err != nil {
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer components.Shutdown()

			out := cmd.OutOrStdout()
			for _, tool := range components.Registry.List() {
				fmt.Fprintf(out, "%-22s [%s]\n    %s\n", tool.Name(), tool.Category(), tool.Description())
			}
			return nil
		},
	}
}
