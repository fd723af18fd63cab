package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/reagentworks/reagent/internal/service"
)

// newAskCmd creates the `ask` command, which runs one query through the
// full reasoning loop.
func newAskCmd(v *viper.Viper) *cobra.Command {
	var (
		collection   string
		conversation string
	)

	askCmd := &cobra.Command{
		Use:   "ask [query...]",
		Short: "Ask the agent a question",
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindAskFlags(v, cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			query := strings.Join(args, " ")

			svc, shutdown, err := buildService(ctx, v)
			if err != nil {
				return err
			}
			defer shutdown()

			result := svc.Query(ctx, query, service.QueryOptions{
				Collection:     collection,
				ConversationID: conversation,
			})
			if !result.Success {
				return fmt.Errorf("query failed: %s", result.Error)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, result.Response.Answer)
			fmt.Fprintf(out, "\n[confidence %.2f, %v iterations, %.2fs, conversation %s]\n",
				result.Response.Confidence,
				result.Response.Metadata["iterations"],
				result.Response.ExecutionTime,
				result.ConversationID,
			)
			return nil
		},
	}

	askCmd.Flags().StringVar(&collection, "collection", "", "Document collection searched by retrieve_documents.")
	askCmd.Flags().StringVar(&conversation, "conversation", "", "Conversation ID for memory continuity. Generated when unset.")
	askCmd.Flags().Int("max-iterations", 0, "Maximum reasoning iterations. (Overrides config/env)")
	askCmd.Flags().Bool("no-reflection", false, "Skip answer reflection and refinement.")

	return askCmd
}

// bindAskFlags maps ask's override flags onto their viper keys so flags win
// over config file and environment values.
func bindAskFlags(v *viper.Viper, cmd *cobra.Command) error {
	if f := cmd.Flags().Lookup("max-iterations"); f != nil && f.Changed {
		if err := v.BindPFlag("agent.max_iterations", f); err != nil {
			return err
		}
	}
	// The flag is the negation of the config key, so it cannot be bound
	// directly.
	if f := cmd.Flags().Lookup("no-reflection"); f != nil && f.Changed {
		noReflection, err := cmd.Flags().GetBool("no-reflection")
		if err != nil {
			return err
		}
		v.Set("agent.enable_reflection", !noReflection)
	}
	return nil
}
