package cmd

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/reagentworks/reagent/internal/service"
)

// newPlanCmd creates the `plan` command. By default it prints the
// decomposition as JSON; --execute runs the sub-queries as well.
func newPlanCmd(v *viper.Viper) *cobra.Command {
	var (
		execute    bool
		collection string
	)

	planCmd := &cobra.Command{
		Use:   "plan [query...]",
		Short: "Decompose a query into an execution plan",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			query := strings.Join(args, " ")

			svc, shutdown, err := buildService(ctx, v)
			if err != nil {
				return err
			}
			defer shutdown()

			planResult := svc.Plan(ctx, query)
			if !planResult.Success {
				return fmt.Errorf("planning failed: %s", planResult.Error)
			}

			out := cmd.OutOrStdout()
			encoded, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(planResult.Plan, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode plan: %w", err)
			}
			fmt.Fprintln(out, string(encoded))

			if !execute {
				return nil
			}

			execResult := svc.ExecutePlan(ctx, planResult.Plan, service.QueryOptions{Collection: collection})
			if !execResult.Success {
				return fmt.Errorf("plan execution failed: %s", execResult.Error)
			}

			for _, sub := range execResult.Results {
				fmt.Fprintf(out, "\n[%d] %s\n%s\n(confidence %.2f)\n",
					sub.ID, sub.Query, sub.Answer, sub.Confidence)
			}
			fmt.Fprintf(out, "\nFinal answer:\n%s\n", execResult.Answer)
			return nil
		},
	}

	planCmd.Flags().BoolVar(&execute, "execute", false, "Execute the plan after printing it.")
	planCmd.Flags().StringVar(&collection, "collection", "", "Document collection searched by retrieve_documents.")

	return planCmd
}
