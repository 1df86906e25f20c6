package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/careaudit-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "careaudit",
	Short: "Care facility inspection pipeline",
	Long:  "Fetches state inspection reports for licensed care facilities, extracts violations with Claude, reconciles them into the facility store and keeps sponsorship tiers and billing in line with the results.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// addStateFlag registers the required --state flag on cmd.
func addStateFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, "state", "", "jurisdiction code, e.g. FL (required)")
	_ = cmd.MarkFlagRequired("state")
}

// normalizeState upper-cases and checks a --state value.
func normalizeState(state string) (string, error) {
	state = strings.ToUpper(strings.TrimSpace(state))
	if state == "" {
		return "", eris.New("--state is required")
	}
	return state, nil
}
