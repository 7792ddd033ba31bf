package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"prediction-contest/bootstrap"
	"prediction-contest/config"
	"prediction-contest/models"
	"prediction-contest/services"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
)

var (
	clock clockwork.Clock = clockwork.NewRealClock()

	prizeFee       string
	prizeAttendees int
	prizePlaces    int
	prizeCut       string
)

func newEngine(ctx context.Context) (*bootstrap.Engine, error) {
	cfg := config.Load()
	db, err := bootstrap.OpenDatabase(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return bootstrap.New(ctx, cfg, db, clock)
}

func runScoring(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	engine, err := newEngine(ctx)
	if err != nil {
		return err
	}

	report, err := engine.Scoring.Run(ctx)
	if err != nil {
		return fmt.Errorf("scoring run: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TOURNAMENT\tPENDING\tSCORED\tLOOKUP FAILURES\tERROR")
	for _, t := range report.Tournaments {
		errText := ""
		if t.Err != nil {
			errText = t.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\n", t.Name, t.Pending, t.Scored, len(t.Failures), errText)
	}
	w.Flush()
	fmt.Printf("\nScored %d prediction(s), %d lookup failure(s), %d store failure(s)\n",
		report.Scored, report.LookupFailures, report.StoreFailures)

	if report.Failed() {
		return fmt.Errorf("%d tournament(s) could not be saved", report.StoreFailures)
	}
	return nil
}

func rescore(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	engine, err := newEngine(ctx)
	if err != nil {
		return err
	}
	changed, err := engine.Scoring.RescoreTournament(ctx, args[0])
	if err != nil {
		return fmt.Errorf("rescoring %s: %w", args[0], err)
	}
	fmt.Printf("Rescored %s: %d prediction(s) changed\n", args[0], changed)
	return nil
}

func payout(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	engine, err := newEngine(ctx)
	if err != nil {
		return err
	}
	t, err := engine.Store.GetTournament(ctx, args[0])
	if err != nil {
		return err
	}
	if t.Status != models.TournamentStatusFinished {
		return fmt.Errorf("tournament %q is %s, not finished: %w", t.Name, t.Status, services.ErrInvalidStatus)
	}
	result, err := engine.Payouts.ApplyPayouts(ctx, t.ID)
	if err != nil {
		return fmt.Errorf("paying out %q: %w", t.Name, err)
	}
	printPayout(result)
	return nil
}

func redistribute(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	engine, err := newEngine(ctx)
	if err != nil {
		return err
	}
	result, err := engine.Payouts.Redistribute(ctx, args[0])
	if err != nil {
		return fmt.Errorf("redistributing %s: %w", args[0], err)
	}
	fmt.Printf("Reversed %d prior credit(s)\n", result.Reversed)
	printPayout(result)
	return nil
}

func printPayout(result *services.PayoutResult) {
	fmt.Printf("Tournament: %s (%s)\n", result.Tournament, result.TournamentID)
	fmt.Printf("Outcome:    %s", result.Outcome)
	if result.Reason != "" {
		fmt.Printf(" (%s)", result.Reason)
	}
	fmt.Println()
	if len(result.Credits) == 0 {
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\nUSER\tPLACES\tAMOUNT\tBALANCE")
	for _, c := range result.Credits {
		places := fmt.Sprintf("%d", c.FromRank)
		if c.ToRank != c.FromRank {
			places = fmt.Sprintf("%d-%d", c.FromRank, c.ToRank)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.UserID, places, c.Amount.StringFixed(2), c.BalanceAfter.StringFixed(2))
	}
	w.Flush()
	fmt.Printf("Total paid: %s (batch %s)\n", result.Total.StringFixed(2), result.BatchID)
}

func showPrizes(cmd *cobra.Command, args []string) error {
	fee, err := decimal.NewFromString(prizeFee)
	if err != nil {
		return fmt.Errorf("invalid --fee %q: %w", prizeFee, err)
	}
	cut, err := decimal.NewFromString(prizeCut)
	if err != nil {
		return fmt.Errorf("invalid --cut %q: %w", prizeCut, err)
	}

	calc := services.NewPrizeCalculator(cut)
	table := calc.Distribute(fee, prizeAttendees, prizePlaces)

	fmt.Printf("Net pool: %s\n", calc.NetPool(fee, prizeAttendees).StringFixed(2))
	if len(table) == 0 {
		fmt.Println("No prizes")
		return nil
	}
	for _, line := range table.Lines(language.English) {
		fmt.Println(line)
	}
	return nil
}

func grantAdmin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	engine, err := newEngine(ctx)
	if err != nil {
		return err
	}
	changed, err := engine.Users.GrantRole(ctx, args[0], models.RoleAdmin)
	if errors.Is(err, services.ErrUserNotFound) {
		return fmt.Errorf("user %q has not been synced from the profile service yet", args[0])
	}
	if err != nil {
		return err
	}
	if !changed {
		fmt.Printf("%s is already an admin\n", args[0])
		return nil
	}
	fmt.Printf("%s is now an admin\n", args[0])
	return nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "contestadmin",
		Short:         "Prediction contest administration tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	scoreCmd := &cobra.Command{
		Use:   "score",
		Short: "Score pending predictions of all active and finished tournaments",
		RunE:  runScoring,
	}

	rescoreCmd := &cobra.Command{
		Use:   "rescore <tournament-id>",
		Short: "Recompute points of a tournament, applying manual results",
		Args:  cobra.ExactArgs(1),
		RunE:  rescore,
	}

	payoutCmd := &cobra.Command{
		Use:   "payout <tournament-id>",
		Short: "Pay out prizes of a finished tournament",
		Args:  cobra.ExactArgs(1),
		RunE:  payout,
	}

	redistributeCmd := &cobra.Command{
		Use:   "redistribute <tournament-id>",
		Short: "Reverse the prizes of a finished tournament and pay out again",
		Args:  cobra.ExactArgs(1),
		RunE:  redistribute,
	}

	prizesCmd := &cobra.Command{
		Use:   "prizes",
		Short: "Print the prize table for a fee, attendee count and number of places",
		RunE:  showPrizes,
	}
	prizesCmd.Flags().StringVar(&prizeFee, "fee", "10", "Entry fee")
	prizesCmd.Flags().IntVar(&prizeAttendees, "attendees", 10, "Number of attendees")
	prizesCmd.Flags().IntVar(&prizePlaces, "places", 3, "Number of prize places")
	prizesCmd.Flags().StringVar(&prizeCut, "cut", services.DefaultPlatformCut.String(), "Platform cut as a fraction of the pool")

	grantAdminCmd := &cobra.Command{
		Use:   "grant-admin <username>",
		Short: "Give a synced user the admin role",
		Args:  cobra.ExactArgs(1),
		RunE:  grantAdmin,
	}

	rootCmd.AddCommand(scoreCmd, rescoreCmd, payoutCmd, redistributeCmd, prizesCmd, grantAdminCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
