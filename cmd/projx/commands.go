package main

import (
	"fmt"
	"io"
	"strings"

	config "github.com/glkeru/projxchange/internal/config"
	gateway "github.com/glkeru/projxchange/internal/external/gateway"
	models "github.com/glkeru/projxchange/internal/models"
	services "github.com/glkeru/projxchange/internal/services"
	session "github.com/glkeru/projxchange/internal/session"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type app struct {
	cfg    *config.Config
	logger *zap.Logger
	client *services.Client
}

// Клиент из PROJX_TOKEN, баланс загружается сразу
func (a *app) init(cmd *cobra.Command, args []string) error {
	err := a.cfg.ValidateCLI()
	if err != nil {
		return err
	}
	sess, err := session.FromToken(a.cfg.Token)
	if err != nil {
		return fmt.Errorf("parse token: %w", err)
	}
	if !sess.IsAuthenticated() {
		return fmt.Errorf("token has expired, please log in again")
	}
	gw := gateway.NewGateway(a.cfg.APIURL, sess, a.logger)
	saver := services.NewDiskSaver(gw, a.cfg.DownloadDir, a.logger)
	a.client = services.NewClient(sess, gw, saver, services.ClientOptions{ViewThreshold: a.cfg.ViewQualify}, a.logger)
	return a.client.Balance.Sync(cmd.Context())
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:               "projx",
		Short:             "ProjXchange credits and downloads",
		SilenceUsage:      true,
		PersistentPreRunE: a.init,
	}

	balanceCmd := &cobra.Command{
		Use:   "balance",
		Short: "Show your download credits",
		Args:  cobra.NoArgs,
		RunE:  a.runBalance,
	}

	affordanceCmd := &cobra.Command{
		Use:   "affordance PROJECT_ID",
		Short: "Show how a project can be downloaded",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runAffordance,
	}
	affordanceCmd.Flags().Float64("price", 0, "Project sale price")
	affordanceCmd.Flags().Bool("demo", false, "Project is a free demo")
	affordanceCmd.Flags().Bool("purchased", false, "Project is already purchased")

	downloadCmd := &cobra.Command{
		Use:   "download PROJECT_ID",
		Short: "Download a project using one credit",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runDownload,
	}
	downloadCmd.Flags().Bool("purchased", false, "Download a purchased project without using credits")

	wishlistCmd := &cobra.Command{
		Use:   "wishlist PROJECT_ID",
		Short: "Add a project to your wishlist",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runWishlist,
	}
	wishlistCmd.Flags().Bool("demo", false, "Project is a free demo")

	referralsCmd := &cobra.Command{
		Use:   "referrals",
		Short: "Show your referral progress",
		Args:  cobra.NoArgs,
		RunE:  a.runReferrals,
	}

	root.AddCommand(balanceCmd, affordanceCmd, downloadCmd, wishlistCmd, referralsCmd)
	return root
}

func (a *app) runBalance(cmd *cobra.Command, args []string) error {
	state := a.client.Balance.State()
	if state.Balance == nil {
		return fmt.Errorf("%s %s", state.Error, state.Hint)
	}
	printBalance(cmd.OutOrStdout(), state.Balance)
	return nil
}

func (a *app) runAffordance(cmd *cobra.Command, args []string) error {
	price, _ := cmd.Flags().GetFloat64("price")
	demo, _ := cmd.Flags().GetBool("demo")
	purchased, _ := cmd.Flags().GetBool("purchased")

	project := models.Project{ID: args[0], IsDemo: demo}
	if cmd.Flags().Changed("price") {
		project.Pricing.SalePrice = &price
	}
	result := a.client.Affordance(project, models.PurchaseEvidence{Flag: purchased})

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %s\n", result.Kind, result.Label)
	if result.Message != "" {
		fmt.Fprintln(out, result.Message)
	}
	for _, option := range result.Options {
		fmt.Fprintf(out, "  - %s\n", option)
	}
	return nil
}

func (a *app) runDownload(cmd *cobra.Command, args []string) error {
	purchased, _ := cmd.Flags().GetBool("purchased")

	var outcome services.Outcome
	var err error
	if purchased {
		outcome, err = a.client.Downloader.DownloadPurchased(cmd.Context(), args[0])
	} else {
		outcome, err = a.client.Downloader.Attempt(cmd.Context(), args[0])
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, outcome.Message)
	if outcome.Path != "" {
		fmt.Fprintf(out, "Saved to %s\n", outcome.Path)
	}
	if len(outcome.Options) > 0 {
		options := make([]string, 0, len(outcome.Options))
		for _, o := range outcome.Options {
			options = append(options, string(o))
		}
		fmt.Fprintf(out, "Unlock options: %s\n", strings.Join(options, ", "))
	}
	if outcome.Kind != services.OutcomeSaved {
		if err != nil {
			return err
		}
		return fmt.Errorf("download not started: %s", outcome.Kind)
	}
	return nil
}

func (a *app) runWishlist(cmd *cobra.Command, args []string) error {
	demo, _ := cmd.Flags().GetBool("demo")
	err := a.client.AddToWishlist(cmd.Context(), models.Project{ID: args[0], IsDemo: demo})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Added to wishlist.")
	return nil
}

func (a *app) runReferrals(cmd *cobra.Command, args []string) error {
	err := a.client.Referrals.Load(cmd.Context())
	if err != nil {
		return err
	}
	state := a.client.Referrals.State()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Confirmed: %d  Pending: %d\n", state.Confirmed, state.Pending)
	for _, r := range state.Referrals {
		line := fmt.Sprintf("  %s  %s", r.ID, r.Status)
		if r.ActionNeeded != "" {
			line += "  (" + r.ActionNeeded + ")"
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

func printBalance(out io.Writer, b *models.CreditBalance) {
	fmt.Fprintf(out, "Available credits: %d\n", b.AvailableCredits)
	fmt.Fprintf(out, "Used: %d  Max total: %d\n", b.CreditsUsed, b.MaxTotalCredits)
	fmt.Fprintf(out, "Monthly: %d/%d  Referral: %d/%d\n",
		b.MonthlyCreditsReceived, b.MaxMonthlyCredits,
		b.ReferralCreditsEarned, b.MaxReferralCredits)
	if b.NextMonthlyCreditDate != nil {
		fmt.Fprintf(out, "Next monthly credit: %s\n", *b.NextMonthlyCreditDate)
	}
}
