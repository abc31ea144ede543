package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pocketledger/pocketledger/internal/app/forecast"
	"github.com/pocketledger/pocketledger/internal/app/recurring"
	"github.com/pocketledger/pocketledger/internal/domain"
)

func init() {
	rootCmd.AddCommand(forecastCmd)
	rootCmd.AddCommand(expandCmd)

	forecastCmd.Flags().String("target", "", "Target date YYYY-MM-DD (default per config horizon)")
	forecastCmd.Flags().Bool("envelope", false, "Forecast a budget envelope instead of an account")

	expandCmd.Flags().String("start", "", "Window start YYYY-MM-DD (default today)")
	expandCmd.Flags().String("end", "", "Window end YYYY-MM-DD")
	expandCmd.Flags().Bool("post", false, "Post the due occurrences instead of only listing them")
}

// ─── forecast ───────────────────────────────────────────────────────────────

var forecastCmd = &cobra.Command{
	Use:   "forecast REF",
	Short: "Project an account or envelope balance to a future date",
	Args:  cobra.ExactArgs(1),
	RunE:  runForecast,
}

func runForecast(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	target := time.Now().AddDate(0, cfg.Budget.ForecastMonths, 0)
	if raw, _ := cmd.Flags().GetString("target"); raw != "" {
		if target, err = time.Parse(time.DateOnly, raw); err != nil {
			return fmt.Errorf("invalid target %q, want YYYY-MM-DD", raw)
		}
	}

	if isEnvelope, _ := cmd.Flags().GetBool("envelope"); isEnvelope {
		env, err := findBudgetEnvelope(store, args[0])
		if err != nil {
			return err
		}
		fc, err := newEngine(store).ForecastEnvelope(env.ID, target, nil)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%s on %s\n", env.Name, target.Format(time.DateOnly))
		fmt.Fprintf(os.Stdout, "  current balance    %12s\n", fc.CurrentBalance.StringFixed(2))
		fmt.Fprintf(os.Stdout, "  allocations ahead  %12d\n", fc.AllocationsApplied)
		fmt.Fprintf(os.Stdout, "  projected balance  %12s\n", fc.ProjectedBalance.StringFixed(2))
		return nil
	}

	acct, err := findAccount(store, args[0])
	if err != nil {
		return err
	}
	fc, err := forecast.New(store).ForecastAccount(acct.ID, target)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "%s on %s\n", acct.Name, target.Format(time.DateOnly))
	fmt.Fprintf(os.Stdout, "  current balance    %12s\n", fc.CurrentBalance.StringFixed(2))
	fmt.Fprintf(os.Stdout, "  scheduled entries  %12d\n", fc.TransactionsApplied)
	fmt.Fprintf(os.Stdout, "  projected balance  %12s\n", fc.ProjectedBalance.StringFixed(2))
	return nil
}

// ─── expand ─────────────────────────────────────────────────────────────────

var expandCmd = &cobra.Command{
	Use:   "expand",
	Short: "Expand recurring templates over a date window",
	Long: `Expand every active recurring template into its concrete occurrences
inside the window. With --post, occurrences that are due (on or before
today, or from auto-post templates) are posted to the ledger; the rest
are listed as drafts.`,
	RunE: runExpand,
}

func runExpand(cmd *cobra.Command, args []string) error {
	now := time.Now()
	start := now
	if raw, _ := cmd.Flags().GetString("start"); raw != "" {
		var err error
		if start, err = time.Parse(time.DateOnly, raw); err != nil {
			return fmt.Errorf("invalid start %q, want YYYY-MM-DD", raw)
		}
	}
	rawEnd, _ := cmd.Flags().GetString("end")
	if rawEnd == "" {
		return fmt.Errorf("--end is required")
	}
	end, err := time.Parse(time.DateOnly, rawEnd)
	if err != nil {
		return fmt.Errorf("invalid end %q, want YYYY-MM-DD", rawEnd)
	}
	doPost, _ := cmd.Flags().GetBool("post")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	tmpls, err := store.RecurringTemplates()
	if err != nil {
		return err
	}
	entries, err := recurring.ExpandTemplates(tmpls, start, end, false, now)
	if err != nil {
		return err
	}

	eng := newEngine(store)
	for i := range entries {
		e := &entries[i]
		due := e.Status == domain.StatusPosted
		if doPost && due {
			e.Status = domain.StatusDraft
			if _, err := eng.PostEntry(e); err != nil {
				return fmt.Errorf("post %s on %s: %w", e.Memo, e.Date.Format(time.DateOnly), err)
			}
			fmt.Fprintf(os.Stdout, "posted  %s  %s\n", e.Date.Format(time.DateOnly), e.Memo)
			continue
		}
		status := "draft"
		if due {
			status = "due"
		}
		fmt.Fprintf(os.Stdout, "%-7s %s  %s\n", status, e.Date.Format(time.DateOnly), e.Memo)
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stdout, "No occurrences in the window")
	}
	return nil
}
