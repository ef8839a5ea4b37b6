package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"etracker/internal/core"
)

func init() {
	categoryCmd.AddCommand(categoryListCmd, categoryAddCmd)
	rootCmd.AddCommand(categoryCmd)
}

var categoryCmd = &cobra.Command{
	Use:   "category",
	Short: "Manage expense categories",
}

var categoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List categories with their spending totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.requireSession(cmd.Context()); err != nil {
			return err
		}

		a.board.Refresh(cmd.Context())
		printCategoryTotals(a.board.Summary())
		return nil
	},
}

var categoryAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.requireSession(cmd.Context()); err != nil {
			return err
		}

		name := args[0]
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("category name is empty")
		}

		a.board.SetCategoryName(name)
		if err := a.board.AddCategory(cmd.Context()); err != nil {
			return remoteFailure("create category failed", err)
		}

		fmt.Printf("Category %q created.\n", strings.TrimSpace(name))
		printCategoryTotals(a.board.Summary())
		return nil
	},
}

func printCategoryTotals(rows []core.CategoryTotal) {
	if len(rows) == 0 {
		fmt.Println("No categories yet.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTOTAL SPENT")
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\n", row.Category.Name, core.FormatAmount(row.Total))
	}
	w.Flush()
}
