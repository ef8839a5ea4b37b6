package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"etracker/internal/core"
	"etracker/internal/dashboard"
)

var (
	flagDescription string
	flagAmount      string
	flagCategory    string
)

func init() {
	expenseAddCmd.Flags().StringVar(&flagDescription, "description", "", "what the money was spent on")
	expenseAddCmd.Flags().StringVar(&flagAmount, "amount", "", "amount spent, e.g. 12.50")
	expenseAddCmd.Flags().StringVar(&flagCategory, "category", "", "category id (see 'etracker category list')")
	expenseCmd.AddCommand(expenseListCmd, expenseAddCmd)
	rootCmd.AddCommand(expenseCmd, dashboardCmd)
}

var expenseCmd = &cobra.Command{
	Use:   "expense",
	Short: "Manage expenses",
}

var expenseListCmd = &cobra.Command{
	Use:   "list",
	Short: "List expenses",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.requireSession(cmd.Context()); err != nil {
			return err
		}

		a.board.Refresh(cmd.Context())
		printExpenses(a.board.Snapshot().Expenses)
		return nil
	},
}

var expenseAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record an expense",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.requireSession(cmd.Context()); err != nil {
			return err
		}

		if flagDescription == "" || flagAmount == "" || flagCategory == "" {
			return fmt.Errorf("--description, --amount and --category are all required")
		}

		a.board.SetExpenseForm(dashboard.ExpenseForm{
			Description: flagDescription,
			Amount:      flagAmount,
			CategoryID:  flagCategory,
		})
		if err := a.board.AddExpense(cmd.Context()); err != nil {
			return remoteFailure("create expense failed", err)
		}

		fmt.Println("Expense recorded.")
		printCategoryTotals(a.board.Summary())
		return nil
	},
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show categories, totals and expenses in one view",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.requireSession(cmd.Context()); err != nil {
			return err
		}

		a.board.Refresh(cmd.Context())
		snap := a.board.Snapshot()

		fmt.Println("Categories")
		printCategoryTotals(core.SummarizeCategories(snap.Categories, snap.Totals))
		fmt.Println()
		fmt.Println("Expenses")
		printExpenses(snap.Expenses)
		return nil
	},
}

func printExpenses(expenses []core.Expense) {
	if len(expenses) == 0 {
		fmt.Println("No expenses yet.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DESCRIPTION\tAMOUNT\tCATEGORY")
	for _, e := range expenses {
		name := e.CategoryName
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.Description, core.FormatAmount(e.Amount), name)
	}
	w.Flush()
}
