package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

type (
	// Category is a user-defined grouping for expenses. Unique by ID,
	// never mutated in place.
	Category struct {
		ID   string
		Name string
	}

	// Expense is a single spending item. CategoryID and CategoryName are
	// always plain strings; the remote boundary defaults absent fields
	// to "" so nothing downstream has to special-case nil.
	Expense struct {
		ID           string
		Description  string
		Amount       decimal.Decimal
		CategoryID   string
		CategoryName string
	}

	// Snapshot is the complete local view of remote state as of the last
	// successful load. It is only ever replaced whole.
	Snapshot struct {
		Categories []Category
		Expenses   []Expense
		Totals     map[string]decimal.Decimal
	}
)

var (
	ErrEmptyName        = errors.New("empty category name")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyCategory    = errors.New("empty category id")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrNegativeAmount   = errors.New("negative amount")
)

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.Description) == "" {
		return ErrEmptyDescription
	}
	if e.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	if strings.TrimSpace(e.CategoryID) == "" {
		return ErrEmptyCategory
	}
	return nil
}
