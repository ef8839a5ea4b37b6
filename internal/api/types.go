package api

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"etracker/internal/core"
)

// Wire shapes for the remote store contract. The server is free to send
// amounts as JSON numbers or decimal strings; wireAmount accepts both.

type categoryDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type expenseDTO struct {
	ID           string     `json:"id"`
	Description  string     `json:"description"`
	Amount       wireAmount `json:"amount"`
	CategoryID   *string    `json:"category_id"`
	CategoryName *string    `json:"category_name"`
}

type expensesEnvelope struct {
	Expenses []expenseDTO `json:"expenses"`
}

type errorEnvelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type credentialsBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type createCategoryBody struct {
	Name string `json:"name"`
}

type createExpenseBody struct {
	Description string      `json:"description"`
	Amount      json.Number `json:"amount"`
	CategoryID  string      `json:"category_id"`
}

// wireAmount holds the raw textual form of an amount, whether it arrived
// quoted or not.
type wireAmount string

func (a *wireAmount) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		s, err := strconv.Unquote(string(b))
		if err != nil {
			return fmt.Errorf("amount: %w", err)
		}
		*a = wireAmount(s)
		return nil
	}
	*a = wireAmount(b)
	return nil
}

// toExpense normalizes a raw record into the internal shape: the amount is
// parsed as a decimal and absent category fields default to empty strings.
func (d expenseDTO) toExpense() (core.Expense, error) {
	amount, err := decimal.NewFromString(string(d.Amount))
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense %s: %w", d.ID, core.ErrInvalidAmount)
	}
	e := core.Expense{
		ID:          d.ID,
		Description: d.Description,
		Amount:      amount,
	}
	if d.CategoryID != nil {
		e.CategoryID = *d.CategoryID
	}
	if d.CategoryName != nil {
		e.CategoryName = *d.CategoryName
	}
	return e, nil
}
