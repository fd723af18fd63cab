// -- cmd/root.go --
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/reagentworks/reagent/internal/config"
	"github.com/reagentworks/reagent/internal/observability"
	"github.com/reagentworks/reagent/internal/service"
)

// NewRootCommand builds a fresh root command. The interactive shell calls
// this per line so flag state never leaks between invocations.
func NewRootCommand() *cobra.Command {
	v := viper.New()
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:     "reagent",
		Short:   "Reagent is an LLM-backed reasoning agent with tools, planning and memory.",
		Version: Version,
		// RunE failures are reported once by Execute; cobra should not
		// also dump usage text for runtime errors.
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Runs before every command, setting up config and logging.
			if err := initializeViper(v, cfgFile); err != nil {
				return err
			}

			var logCfg config.LoggerConfig
			if err := v.UnmarshalKey("logger", &logCfg); err != nil {
				// Fall back to a sane console logger so the error is visible.
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "reagent"})
				return fmt.Errorf("failed to unmarshal logger config: %w", err)
			}
			observability.InitializeLogger(logCfg)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml or ~/.reagent/config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "reagent version %s\n" .Version}}`)

	rootCmd.AddCommand(
		newAskCmd(v),
		newPlanCmd(v),
		newToolsCmd(v),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs a root command against the signal-aware context from main.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command execution failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		return err
	}
	return nil
}

// initializeViper layers defaults, the optional config file and REAGENT_*
// environment variables onto the given viper instance.
func initializeViper(v *viper.Viper, cfgFile string) error {
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".reagent"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("REAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults and env vars.
	}
	return nil
}

// buildService wires the full component graph for commands that talk to the
// model. The returned shutdown func must be deferred by the caller.
func buildService(ctx context.Context, v *viper.Viper) (*service.AgentService, func(), error) {
	cfg, err := config.NewConfigFromViper(v)
	if err != nil {
		return nil, nil, err
	}

	logger := observability.GetLogger()
	components, err := service.NewComponents(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize components: %w", err)
	}

	svc := service.NewAgentService(cfg, components, logger)
	return svc, components.Shutdown, nil
}
