package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/hirewire/internal/app"
	"github.com/spigell/hirewire/internal/logger"
)

var matchCmd = &cobra.Command{
	Use:   "match <listing-id>",
	Short: "Ask the AI assistant how well the signed-in candidate fits a listing",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		match(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().Bool("raw", false, "print the analysis as json")
}

func match(cmd *cobra.Command, listingID string) {
	ctx := context.Background()

	rt := bootstrap(ctx)
	defer rt.Close()

	if err := rt.signInFromConfig(ctx); err != nil {
		rt.logger.Fatal("signing in", zap.Error(err), zap.String("hint", "set backend.email and backend.password-file"))
	}
	if err := rt.app.Refresh(ctx); err != nil {
		rt.logger.Fatal("loading listings", zap.Error(err))
	}

	analysis, err := rt.app.AnalyzeMatch(ctx, listingID)
	if err != nil {
		if errors.Is(err, app.ErrListingNotFound) {
			rt.logger.Fatal("listing not found", zap.String(logger.FieldListingID, listingID))
		}
		rt.logger.Fatal("analyzing match", zap.Error(err))
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("raw"); asJSON {
		if err := printJSON(out, analysis); err != nil {
			rt.logger.Fatal("printing analysis", zap.Error(err))
		}
		return
	}
	printMatch(out, analysis)
}
