package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/pocketledger/pocketledger/internal/domain"
)

func init() {
	rootCmd.AddCommand(postCmd)
	rootCmd.AddCommand(allocateCmd)
	rootCmd.AddCommand(viewCmd)

	postCmd.Flags().String("from", "", "Source account (name or id)")
	postCmd.Flags().String("to", "", "Destination account (name or id)")
	postCmd.Flags().String("amount", "", "Amount, e.g. 125.50")
	postCmd.Flags().String("date", "", "Entry date YYYY-MM-DD (default today)")
	postCmd.Flags().StringP("memo", "m", "", "Entry memo")

	allocateCmd.Flags().String("date", "", "Allocation date YYYY-MM-DD (default today)")
}

// ─── post ───────────────────────────────────────────────────────────────────

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Post a simple two-leg journal entry",
	Long: `Post a balanced two-leg journal entry: money flows from one account
to another. Envelope effects follow the accounts' default envelope
routing.`,
	RunE: runPost,
}

func runPost(cmd *cobra.Command, args []string) error {
	fromRef, _ := cmd.Flags().GetString("from")
	toRef, _ := cmd.Flags().GetString("to")
	amountStr, _ := cmd.Flags().GetString("amount")
	dateStr, _ := cmd.Flags().GetString("date")
	memo, _ := cmd.Flags().GetString("memo")

	if fromRef == "" || toRef == "" || amountStr == "" {
		return fmt.Errorf("--from, --to and --amount are required")
	}
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", amountStr, err)
	}
	date := time.Now()
	if dateStr != "" {
		if date, err = time.Parse(time.DateOnly, dateStr); err != nil {
			return fmt.Errorf("invalid date %q, want YYYY-MM-DD", dateStr)
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	from, err := findAccount(store, fromRef)
	if err != nil {
		return err
	}
	to, err := findAccount(store, toRef)
	if err != nil {
		return err
	}

	entry := domain.NewJournalEntry(date, memo)
	for _, leg := range []struct {
		acct domain.Account
		flow domain.FlowDirection
	}{
		{from, domain.FlowFrom},
		{to, domain.FlowTo},
	} {
		if err := entry.AddDistribution(domain.Distribution{
			AccountID:   leg.acct.ID,
			AccountType: leg.acct.Type,
			Flow:        leg.flow,
			Amount:      amount,
		}); err != nil {
			return err
		}
	}

	txns, err := newEngine(store).PostEntry(entry)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Posted %s: %s → %s  %s\n", entry.ID, from.Name, to.Name, amount.StringFixed(2))
	for _, t := range txns {
		fmt.Fprintf(os.Stdout, "  envelope %s: %s %s (balance %s)\n",
			t.EnvelopeID, t.Type, t.Amount.StringFixed(2), t.BalanceAfter.StringFixed(2))
	}
	return nil
}

// ─── allocate ───────────────────────────────────────────────────────────────

var allocateCmd = &cobra.Command{
	Use:   "allocate ACCOUNT",
	Short: "Run the monthly envelope allocations for a bank account",
	Args:  cobra.ExactArgs(1),
	RunE:  runAllocate,
}

func runAllocate(cmd *cobra.Command, args []string) error {
	dateStr, _ := cmd.Flags().GetString("date")
	date := time.Now()
	if dateStr != "" {
		var err error
		if date, err = time.Parse(time.DateOnly, dateStr); err != nil {
			return fmt.Errorf("invalid date %q, want YYYY-MM-DD", dateStr)
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	acct, err := findAccount(store, args[0])
	if err != nil {
		return err
	}

	allocs, err := newEngine(store).ApplyMonthlyAllocations(acct.ID, date, domain.PeriodOf(date))
	if err != nil {
		return err
	}
	if len(allocs) == 0 {
		fmt.Fprintf(os.Stdout, "No active envelopes funded by %s\n", acct.Name)
		return nil
	}
	for _, a := range allocs {
		env, err := store.BudgetEnvelope(a.EnvelopeID)
		name := a.EnvelopeID.String()
		if err == nil {
			name = env.Name
		}
		fmt.Fprintf(os.Stdout, "%-24s requested %10s  applied %10s\n",
			name, a.Requested.StringFixed(2), a.Applied.StringFixed(2))
	}
	return nil
}

// ─── view ───────────────────────────────────────────────────────────────────

var viewCmd = &cobra.Command{
	Use:   "view ACCOUNT",
	Short: "Show the envelope breakdown of a bank account",
	Args:  cobra.ExactArgs(1),
	RunE:  runView,
}

func runView(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	acct, err := findAccount(store, args[0])
	if err != nil {
		return err
	}

	view, err := newEngine(store).AccountView(acct.ID, time.Now())
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "%s\n", acct.Name)
	fmt.Fprintf(os.Stdout, "  bank balance          %12s\n", view.BankBalance.StringFixed(2))
	fmt.Fprintf(os.Stdout, "  budget allocated      %12s\n", view.BudgetAllocated.StringFixed(2))
	fmt.Fprintf(os.Stdout, "  payment reserved      %12s\n", view.PaymentReserved.StringFixed(2))
	fmt.Fprintf(os.Stdout, "  available to allocate %12s\n", view.AvailableToAllocate.StringFixed(2))
	return nil
}
