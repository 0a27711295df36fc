package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var listingsCmd = &cobra.Command{
	Use:   "listings",
	Short: "Print active listings after the browse filters",
	Run: func(cmd *cobra.Command, _ []string) {
		listings(cmd)
	},
}

func init() {
	rootCmd.AddCommand(listingsCmd)

	listingsCmd.Flags().StringP("query", "q", "", "free text matched against title, company and description")
	listingsCmd.Flags().StringP("location", "l", "", "only listings in this location")
	listingsCmd.Flags().StringSliceP("exclude-company", "e", nil, "companies to hide, in addition to browse.exclude-companies")
	listingsCmd.Flags().BoolP("include-applied", "f", false, "do not exclude listings already applied to")
	listingsCmd.Flags().Bool("ai", false, "score listings with the AI assistant, requires a signed-in candidate")
	listingsCmd.Flags().Bool("sign-in", false, "sign in with backend.email before listing")
}

func listings(cmd *cobra.Command) {
	ctx := context.Background()

	rt := bootstrap(ctx)
	defer rt.Close()

	flags := cmd.Flags()
	query, _ := flags.GetString("query")
	location, _ := flags.GetString("location")
	excluded, _ := flags.GetStringSlice("exclude-company")
	includeApplied, _ := flags.GetBool("include-applied")
	withAI, _ := flags.GetBool("ai")
	signIn, _ := flags.GetBool("sign-in")

	if signIn || withAI {
		if err := rt.signInFromConfig(ctx); err != nil {
			rt.logger.Fatal("signing in", zap.Error(err))
		}
	}

	if err := rt.app.Refresh(ctx); err != nil {
		rt.logger.Fatal("loading listings", zap.Error(err))
	}

	cfg := rt.browseConfig(query, location)
	cfg.ExcludeCompanies = append(cfg.ExcludeCompanies, excluded...)
	cfg.IncludeApplied = includeApplied
	if withAI {
		cfg.AI.Enabled = true
	}

	result, err := rt.app.BrowseListings(ctx, cfg)
	if err != nil {
		rt.logger.Fatal("filtering listings", zap.Error(err))
	}

	rt.logger.Info("listings after filters",
		zap.Int("count", len(result.Listings)),
		zap.Any("steps", result.Steps),
	)
	printListings(cmd.OutOrStdout(), result.Listings, result.Assessments)
}
