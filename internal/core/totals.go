package core

import "github.com/shopspring/decimal"

// TotalsByCategory sums expense amounts grouped by category id.
//
// Expenses with an empty CategoryID are excluded. Categories without
// expenses are absent from the map; callers treat a missing key as zero.
// The result depends only on set membership, not on the order of expenses.
func TotalsByCategory(expenses []Expense) map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal)
	for _, e := range expenses {
		if e.CategoryID == "" {
			continue
		}
		totals[e.CategoryID] = totals[e.CategoryID].Add(e.Amount)
	}
	return totals
}

// CategoryTotal pairs a category with its spent total, for rendering.
type CategoryTotal struct {
	Category Category
	Total    decimal.Decimal
}

// SummarizeCategories joins categories with their totals, preserving the
// category order as returned by the remote store. Categories with no
// expenses get a zero total here, at the rendering boundary only.
func SummarizeCategories(categories []Category, totals map[string]decimal.Decimal) []CategoryTotal {
	rows := make([]CategoryTotal, 0, len(categories))
	for _, c := range categories {
		rows = append(rows, CategoryTotal{Category: c, Total: totals[c.ID]})
	}
	return rows
}
