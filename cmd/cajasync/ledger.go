package main

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/jfcamacho/cajasync/internal/schema"
	"github.com/jfcamacho/cajasync/internal/store"
	"github.com/jfcamacho/cajasync/internal/ui"
)

var boxCmd = &cobra.Command{
	Use:     "box",
	GroupID: "data",
	Short:   "Manage cash boxes",
}

var boxAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a cash box",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, led, eng, err := newServices()
		if err != nil {
			return err
		}
		defer st.Close()

		balance, err := decimalFlag(cmd, "balance")
		if err != nil {
			return err
		}

		name, _ := cmd.Flags().GetString("name")
		typ, _ := cmd.Flags().GetString("type")
		company, _ := cmd.Flags().GetString("company")

		b := &schema.CashBox{
			Name:      name,
			Type:      typ,
			CompanyID: company,
			Balance:   balance,
		}
		if err := led.CreateBox(cmd.Context(), b); err != nil {
			return err
		}

		fmt.Printf("%s Created caja %s (%s)\n", ui.RenderPass("✓"), b.Name, b.ID)
		maybeSync(cmd, eng)
		return nil
	},
}

var txCmd = &cobra.Command{
	Use:     "tx",
	GroupID: "data",
	Short:   "Manage transactions",
}

var txAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a transaction",
	Long: `Record an income, expense, or transfer.

The balance effect applies immediately and a sync queue entry is
appended; if the remote is reachable, a best-effort sync pass runs
right away.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, led, eng, err := newServices()
		if err != nil {
			return err
		}
		defer st.Close()

		amount, err := decimalFlag(cmd, "amount")
		if err != nil {
			return err
		}
		date, err := dateFlag(cmd, "date")
		if err != nil {
			return err
		}

		movement, _ := cmd.Flags().GetString("type")
		desc, _ := cmd.Flags().GetString("desc")
		category, _ := cmd.Flags().GetString("category")
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")
		project, _ := cmd.Flags().GetString("project")
		tercero, _ := cmd.Flags().GetString("tercero")

		t := &schema.Transaction{
			Date:        date,
			Description: desc,
			Amount:      amount,
			Movement:    schema.MovementType(movement),
			Category:    category,
			ProjectID:   project,
			SourceBoxID: from,
			DestBoxID:   to,
			ThirdParty:  tercero,
		}
		if err := led.CreateTransaction(cmd.Context(), t); err != nil {
			return err
		}

		fmt.Printf("%s Recorded %s of %s (%s)\n", ui.RenderPass("✓"), t.Movement, t.Amount, t.ID)
		maybeSync(cmd, eng)
		return nil
	},
}

var txEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit a transaction",
	Long: `Edit a transaction by reversing its original balance effect and
applying the updated one. Flags that are not set keep the stored value.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, led, eng, err := newServices()
		if err != nil {
			return err
		}
		defer st.Close()

		t, err := store.GetTransaction(cmd.Context(), st.DB(), args[0])
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("amount") {
			if t.Amount, err = decimalFlag(cmd, "amount"); err != nil {
				return err
			}
		}
		if cmd.Flags().Changed("date") {
			if t.Date, err = dateFlag(cmd, "date"); err != nil {
				return err
			}
		}
		if cmd.Flags().Changed("desc") {
			t.Description, _ = cmd.Flags().GetString("desc")
		}
		if cmd.Flags().Changed("from") {
			t.SourceBoxID, _ = cmd.Flags().GetString("from")
		}
		if cmd.Flags().Changed("to") {
			t.DestBoxID, _ = cmd.Flags().GetString("to")
		}
		if cmd.Flags().Changed("category") {
			t.Category, _ = cmd.Flags().GetString("category")
		}

		if err := led.UpdateTransaction(cmd.Context(), t); err != nil {
			return err
		}

		fmt.Printf("%s Updated transaccion %s\n", ui.RenderPass("✓"), t.ID)
		maybeSync(cmd, eng)
		return nil
	},
}

var txRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a transaction, reversing its balance effect",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, led, eng, err := newServices()
		if err != nil {
			return err
		}
		defer st.Close()

		if err := led.DeleteTransaction(cmd.Context(), args[0]); err != nil {
			return err
		}

		fmt.Printf("%s Deleted transaccion %s\n", ui.RenderPass("✓"), args[0])
		maybeSync(cmd, eng)
		return nil
	},
}

var debtCmd = &cobra.Command{
	Use:     "debt",
	GroupID: "data",
	Short:   "Manage debt ledgers",
}

var debtAddBoxCmd = &cobra.Command{
	Use:   "add-box",
	Short: "Register a loan between two cash boxes",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, led, eng, err := newServices()
		if err != nil {
			return err
		}
		defer st.Close()

		amount, err := decimalFlag(cmd, "amount")
		if err != nil {
			return err
		}

		debtor, _ := cmd.Flags().GetString("debtor")
		creditor, _ := cmd.Flags().GetString("creditor")
		desc, _ := cmd.Flags().GetString("desc")

		d := &schema.InterBoxDebt{
			DebtorBoxID:   debtor,
			CreditorBoxID: creditor,
			Original:      amount,
			Description:   desc,
		}
		if err := led.CreateInterBoxDebt(cmd.Context(), d); err != nil {
			return err
		}

		fmt.Printf("%s Registered deuda %s (%s owes %s %s)\n",
			ui.RenderPass("✓"), d.ID, debtor, creditor, amount)
		maybeSync(cmd, eng)
		return nil
	},
}

var debtAddTerceroCmd = &cobra.Command{
	Use:   "add-tercero",
	Short: "Register a payable to a third party",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, led, eng, err := newServices()
		if err != nil {
			return err
		}
		defer st.Close()

		amount, err := decimalFlag(cmd, "amount")
		if err != nil {
			return err
		}

		tercero, _ := cmd.Flags().GetString("tercero")
		company, _ := cmd.Flags().GetString("company")
		project, _ := cmd.Flags().GetString("project")
		desc, _ := cmd.Flags().GetString("desc")

		d := &schema.ThirdPartyDebt{
			ThirdPartyID: tercero,
			CompanyID:    company,
			ProjectID:    project,
			Original:     amount,
			Description:  desc,
		}
		if err := led.CreateThirdPartyDebt(cmd.Context(), d); err != nil {
			return err
		}

		fmt.Printf("%s Registered deuda %s (tercero %s, %s)\n",
			ui.RenderPass("✓"), d.ID, tercero, amount)
		maybeSync(cmd, eng)
		return nil
	},
}

var debtPayCmd = &cobra.Command{
	Use:   "pay <debt-id>",
	Short: "Record a payment against a debt",
	Long: `Record an amortization payment.

Inter-box debt payments move real cash: a transfer transaction from the
debtor box to the creditor box is synthesized and applied. Third-party
debt payments only update the debt record; a --box reference is stored
as a memo.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, led, eng, err := newServices()
		if err != nil {
			return err
		}
		defer st.Close()

		amount, err := decimalFlag(cmd, "amount")
		if err != nil {
			return err
		}

		kind, _ := cmd.Flags().GetString("kind")
		desc, _ := cmd.Flags().GetString("desc")
		box, _ := cmd.Flags().GetString("box")
		meta := schema.Payment{Description: desc, BoxID: box}

		switch kind {
		case "box":
			err = led.RecordInterBoxPayment(cmd.Context(), args[0], amount, meta)
		case "tercero":
			err = led.RecordThirdPartyPayment(cmd.Context(), args[0], amount, meta)
		default:
			return fmt.Errorf("unknown debt kind %q (want box or tercero)", kind)
		}
		if err != nil {
			return err
		}

		fmt.Printf("%s Recorded payment of %s on %s\n", ui.RenderPass("✓"), amount, args[0])
		maybeSync(cmd, eng)
		return nil
	},
}

var debtRmCmd = &cobra.Command{
	Use:   "rm <debt-id>",
	Short: "Delete a debt record",
	Long: `Delete a debt record from the ledger.

Transfers synthesized by past payments on an inter-box debt are NOT
reversed: the cash genuinely moved, so those transactions stand.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, led, eng, err := newServices()
		if err != nil {
			return err
		}
		defer st.Close()

		kind, _ := cmd.Flags().GetString("kind")
		switch kind {
		case "box":
			err = led.DeleteInterBoxDebt(cmd.Context(), args[0])
		case "tercero":
			err = led.DeleteThirdPartyDebt(cmd.Context(), args[0])
		default:
			return fmt.Errorf("unknown debt kind %q (want box or tercero)", kind)
		}
		if err != nil {
			return err
		}

		fmt.Printf("%s Deleted deuda %s\n", ui.RenderPass("✓"), args[0])
		maybeSync(cmd, eng)
		return nil
	},
}

// decimalFlag parses a required decimal amount flag.
func decimalFlag(cmd *cobra.Command, name string) (decimal.Decimal, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("--%s is required", name)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid --%s %q: %w", name, raw, err)
	}
	return d, nil
}

// dateFlag parses a YYYY-MM-DD date flag, defaulting to today.
func dateFlag(cmd *cobra.Command, name string) (time.Time, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return time.Now().UTC().Truncate(24 * time.Hour), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q (want YYYY-MM-DD): %w", name, raw, err)
	}
	return t, nil
}

func init() {
	boxAddCmd.Flags().String("name", "", "box name")
	boxAddCmd.Flags().String("type", "", "box type (efectivo, banco, ...)")
	boxAddCmd.Flags().String("company", "", "owning company id")
	boxAddCmd.Flags().String("balance", "0", "opening balance")
	_ = boxAddCmd.MarkFlagRequired("name")
	boxCmd.AddCommand(boxAddCmd)

	txAddCmd.Flags().String("type", "", "movement type (ingreso, gasto, transferencia)")
	txAddCmd.Flags().String("amount", "", "amount (positive decimal)")
	txAddCmd.Flags().String("from", "", "source box id")
	txAddCmd.Flags().String("to", "", "destination box id (transfers only)")
	txAddCmd.Flags().String("date", "", "date (YYYY-MM-DD, default today)")
	txAddCmd.Flags().String("desc", "", "description")
	txAddCmd.Flags().String("category", "", "category")
	txAddCmd.Flags().String("project", "", "project id")
	txAddCmd.Flags().String("tercero", "", "third party id")
	_ = txAddCmd.MarkFlagRequired("type")
	_ = txAddCmd.MarkFlagRequired("amount")
	_ = txAddCmd.MarkFlagRequired("from")

	txEditCmd.Flags().String("amount", "", "amount (positive decimal)")
	txEditCmd.Flags().String("from", "", "source box id")
	txEditCmd.Flags().String("to", "", "destination box id")
	txEditCmd.Flags().String("date", "", "date (YYYY-MM-DD)")
	txEditCmd.Flags().String("desc", "", "description")
	txEditCmd.Flags().String("category", "", "category")
	txCmd.AddCommand(txAddCmd, txEditCmd, txRmCmd)

	debtAddBoxCmd.Flags().String("debtor", "", "debtor box id")
	debtAddBoxCmd.Flags().String("creditor", "", "creditor box id")
	debtAddBoxCmd.Flags().String("amount", "", "loan amount")
	debtAddBoxCmd.Flags().String("desc", "", "description")
	_ = debtAddBoxCmd.MarkFlagRequired("debtor")
	_ = debtAddBoxCmd.MarkFlagRequired("creditor")
	_ = debtAddBoxCmd.MarkFlagRequired("amount")

	debtAddTerceroCmd.Flags().String("tercero", "", "third party id")
	debtAddTerceroCmd.Flags().String("company", "", "company id")
	debtAddTerceroCmd.Flags().String("project", "", "project id")
	debtAddTerceroCmd.Flags().String("amount", "", "debt amount")
	debtAddTerceroCmd.Flags().String("desc", "", "description")
	_ = debtAddTerceroCmd.MarkFlagRequired("tercero")
	_ = debtAddTerceroCmd.MarkFlagRequired("amount")

	debtPayCmd.Flags().String("kind", "box", "debt kind (box or tercero)")
	debtPayCmd.Flags().String("amount", "", "payment amount")
	debtPayCmd.Flags().String("desc", "", "payment description")
	debtPayCmd.Flags().String("box", "", "paying box id (memo for tercero debts)")
	_ = debtPayCmd.MarkFlagRequired("amount")

	debtRmCmd.Flags().String("kind", "box", "debt kind (box or tercero)")
	debtCmd.AddCommand(debtAddBoxCmd, debtAddTerceroCmd, debtPayCmd, debtRmCmd)

	rootCmd.AddCommand(boxCmd, txCmd, debtCmd)
}
