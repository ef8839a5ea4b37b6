package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"etracker/internal/auth"
	applog "etracker/internal/log"
	"etracker/internal/storage"
)

type expenseRequest struct {
	Description string      `json:"description"`
	Amount      json.Number `json:"amount"`
	CategoryID  string      `json:"category_id"`
	Date        string      `json:"date"`
}

// expenseResponse sends the amount as a decimal string and the category
// fields as nulls when absent, matching the store contract.
type expenseResponse struct {
	ID            string  `json:"id"`
	Description   string  `json:"description"`
	Amount        string  `json:"amount"`
	CategoryID    *string `json:"category_id"`
	CategoryName  *string `json:"category_name"`
	CategoryColor *string `json:"category_color"`
	Date          string  `json:"date"`
	CreatedAt     string  `json:"created_at"`
}

type expenseListResponse struct {
	Expenses []expenseResponse `json:"expenses"`
	Total    string            `json:"total"`
	Count    int               `json:"count"`
}

type categorySummaryResponse struct {
	CategoryID    string `json:"category_id"`
	CategoryName  string `json:"category_name"`
	CategoryColor string `json:"category_color"`
	TotalAmount   string `json:"total_amount"`
	ExpenseCount  int    `json:"expense_count"`
}

func toExpenseResponse(e storage.Expense) expenseResponse {
	resp := expenseResponse{
		ID:          e.ID.String(),
		Description: e.Description,
		Amount:      e.Amount,
		Date:        e.Date.Format("2006-01-02"),
		CreatedAt:   e.CreatedAt.Format(time.RFC3339),
	}
	if e.CategoryID != "" {
		resp.CategoryID = &e.CategoryID
	}
	if e.CategoryName != "" {
		resp.CategoryName = &e.CategoryName
	}
	if e.CategoryColor != "" {
		resp.CategoryColor = &e.CategoryColor
	}
	return resp
}

// parseExpenseRequest validates the shared create/update payload. An
// empty date means today.
func parseExpenseRequest(req expenseRequest) (amount decimal.Decimal, categoryID string, date time.Time, errMsg string) {
	if strings.TrimSpace(req.Description) == "" {
		return decimal.Decimal{}, "", time.Time{}, "Description is required"
	}

	amount, err := decimal.NewFromString(req.Amount.String())
	if err != nil {
		return decimal.Decimal{}, "", time.Time{}, "Invalid amount"
	}
	if !amount.IsPositive() {
		return decimal.Decimal{}, "", time.Time{}, "Amount must be greater than 0"
	}

	categoryID = strings.TrimSpace(req.CategoryID)
	if categoryID != "" {
		if _, err := uuid.Parse(categoryID); err != nil {
			return decimal.Decimal{}, "", time.Time{}, "Invalid category ID"
		}
	}

	if req.Date == "" {
		date = time.Now()
	} else if date, err = time.Parse("2006-01-02", req.Date); err != nil {
		return decimal.Decimal{}, "", time.Time{}, "Invalid date format, use YYYY-MM-DD"
	}

	return amount, categoryID, date, ""
}

// handleListExpenses returns the user's expenses in the list envelope.
// When both start_date and end_date query parameters are present, only
// expenses dated inside the range count.
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	var (
		expenses []storage.Expense
		err      error
	)
	startRaw := r.URL.Query().Get("start_date")
	endRaw := r.URL.Query().Get("end_date")
	if startRaw != "" && endRaw != "" {
		start, end, errMsg := parseDateRange(startRaw, endRaw)
		if errMsg != "" {
			respondError(w, http.StatusBadRequest, errMsg)
			return
		}
		expenses, err = s.repo.ListExpensesByDateRange(r.Context(), user.ID, start, end)
	} else {
		expenses, err = s.repo.ListExpenses(r.Context(), user.ID)
	}
	if err != nil {
		s.logger.Error("list expenses failed", applog.FieldOperation, applog.OpList,
			applog.FieldUserID, user.ID.String(), applog.FieldError, err)
		respondError(w, http.StatusInternalServerError, "Failed to get expenses")
		return
	}

	response := expenseListResponse{
		Expenses: make([]expenseResponse, 0, len(expenses)),
	}
	total := decimal.Zero
	for _, e := range expenses {
		response.Expenses = append(response.Expenses, toExpenseResponse(e))
		if amount, err := decimal.NewFromString(e.Amount); err == nil {
			total = total.Add(amount)
		}
	}
	response.Total = total.StringFixed(2)
	response.Count = len(expenses)

	respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	var req expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	amount, categoryID, date, errMsg := parseExpenseRequest(req)
	if errMsg != "" {
		respondError(w, http.StatusBadRequest, errMsg)
		return
	}

	expense, err := s.repo.CreateExpense(r.Context(), user.ID, categoryID, req.Description, amount.StringFixed(2), date)
	if err != nil {
		s.logger.Error("create expense failed", applog.FieldOperation, applog.OpCreate,
			applog.FieldUserID, user.ID.String(), applog.FieldError, err)
		respondError(w, http.StatusInternalServerError, "Failed to create expense")
		return
	}

	s.logger.Info("expense created",
		applog.FieldExpenseID, expense.ID.String(),
		applog.FieldUserID, user.ID.String(),
		applog.FieldAmount, expense.Amount)
	respondJSON(w, http.StatusCreated, toExpenseResponse(expense))
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	expenseID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid expense ID")
		return
	}

	var req expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	amount, categoryID, date, errMsg := parseExpenseRequest(req)
	if errMsg != "" {
		respondError(w, http.StatusBadRequest, errMsg)
		return
	}

	expense, err := s.repo.UpdateExpense(r.Context(), expenseID, user.ID, categoryID, req.Description, amount.StringFixed(2), date)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Expense not found")
			return
		}
		s.logger.Error("update expense failed", applog.FieldOperation, applog.OpUpdate,
			applog.FieldExpenseID, expenseID.String(),
			applog.FieldUserID, user.ID.String(), applog.FieldError, err)
		respondError(w, http.StatusInternalServerError, "Failed to update expense")
		return
	}

	respondJSON(w, http.StatusOK, toExpenseResponse(expense))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	expenseID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid expense ID")
		return
	}

	if err := s.repo.DeleteExpense(r.Context(), expenseID, user.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Expense not found")
			return
		}
		s.logger.Error("delete expense failed", applog.FieldOperation, applog.OpDelete,
			applog.FieldExpenseID, expenseID.String(),
			applog.FieldUserID, user.ID.String(), applog.FieldError, err)
		respondError(w, http.StatusInternalServerError, "Failed to delete expense")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Expense deleted successfully"})
}

// handleExpensesByCategory returns per-category spending for a date range
// as a bare array, in category store order. Uncategorized spending and
// categories with no expenses in the range are left out. Without an
// explicit range it covers the current month.
func (s *Server) handleExpensesByCategory(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	startRaw := r.URL.Query().Get("start_date")
	endRaw := r.URL.Query().Get("end_date")

	var start, end time.Time
	if startRaw == "" || endRaw == "" {
		now := time.Now()
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		end = start.AddDate(0, 1, -1)
	} else {
		var errMsg string
		if start, end, errMsg = parseDateRange(startRaw, endRaw); errMsg != "" {
			respondError(w, http.StatusBadRequest, errMsg)
			return
		}
	}

	categories, err := s.repo.ListCategories(r.Context(), user.ID)
	if err == nil {
		var expenses []storage.Expense
		if expenses, err = s.repo.ListExpensesByDateRange(r.Context(), user.ID, start, end); err == nil {
			respondJSON(w, http.StatusOK, summarizeByCategory(categories, expenses))
			return
		}
	}

	s.logger.Error("expenses by category failed", applog.FieldOperation, applog.OpList,
		applog.FieldUserID, user.ID.String(), applog.FieldError, err)
	respondError(w, http.StatusInternalServerError, "Failed to get expenses by category")
}

func summarizeByCategory(categories []storage.Category, expenses []storage.Expense) []categorySummaryResponse {
	totals := make(map[string]decimal.Decimal)
	counts := make(map[string]int)
	for _, e := range expenses {
		if e.CategoryID == "" {
			continue
		}
		if amount, err := decimal.NewFromString(e.Amount); err == nil {
			totals[e.CategoryID] = totals[e.CategoryID].Add(amount)
			counts[e.CategoryID]++
		}
	}

	summary := make([]categorySummaryResponse, 0, len(totals))
	for _, c := range categories {
		id := c.ID.String()
		if counts[id] == 0 {
			continue
		}
		summary = append(summary, categorySummaryResponse{
			CategoryID:    id,
			CategoryName:  c.Name,
			CategoryColor: c.Color,
			TotalAmount:   totals[id].StringFixed(2),
			ExpenseCount:  counts[id],
		})
	}
	return summary
}

func parseDateRange(startRaw, endRaw string) (start, end time.Time, errMsg string) {
	var err error
	if start, err = time.Parse("2006-01-02", startRaw); err != nil {
		return time.Time{}, time.Time{}, "Invalid start_date format"
	}
	if end, err = time.Parse("2006-01-02", endRaw); err != nil {
		return time.Time{}, time.Time{}, "Invalid end_date format"
	}
	return start, end, ""
}
