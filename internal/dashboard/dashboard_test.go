package dashboard

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etracker/internal/api"
	"etracker/internal/core"
	"etracker/internal/session"
)

type fakeStore struct {
	categories []core.Category
	expenses   []core.Expense

	listCategoriesErr error
	listExpensesErr   error
	createCategoryErr error
	createExpenseErr  error

	listCategoryCalls int
	listExpenseCalls  int
	createdCategories []string
	createdExpenses   []createdExpense
}

type createdExpense struct {
	description string
	amount      decimal.Decimal
	categoryID  string
}

func (f *fakeStore) ListCategories(context.Context) ([]core.Category, error) {
	f.listCategoryCalls++
	if f.listCategoriesErr != nil {
		return nil, f.listCategoriesErr
	}
	return f.categories, nil
}

func (f *fakeStore) ListExpenses(context.Context) ([]core.Expense, error) {
	f.listExpenseCalls++
	if f.listExpensesErr != nil {
		return nil, f.listExpensesErr
	}
	return f.expenses, nil
}

func (f *fakeStore) CreateCategory(_ context.Context, name string) error {
	if f.createCategoryErr != nil {
		return f.createCategoryErr
	}
	f.createdCategories = append(f.createdCategories, name)
	return nil
}

func (f *fakeStore) CreateExpense(_ context.Context, description string, amount decimal.Decimal, categoryID string) error {
	if f.createExpenseErr != nil {
		return f.createExpenseErr
	}
	f.createdExpenses = append(f.createdExpenses, createdExpense{description, amount, categoryID})
	return nil
}

// gateClient adapts fakeStore into something the session gate accepts.
type gateClient struct{ logoutErr error }

func (g *gateClient) ProbeSession(context.Context) error             { return nil }
func (g *gateClient) Login(context.Context, api.Credentials) error   { return nil }
func (g *gateClient) Register(context.Context, api.Credentials) error { return nil }
func (g *gateClient) Logout(context.Context) error                   { return g.logoutErr }

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newDashboard(store *fakeStore, gc *gateClient, onSignOut func()) (*Dashboard, *session.Gate) {
	if gc == nil {
		gc = &gateClient{}
	}
	gate := session.New(gc, nil)
	return New(store, gate, nil, onSignOut), gate
}

func TestRefreshComputesTotals(t *testing.T) {
	store := &fakeStore{
		categories: []core.Category{{ID: "c1", Name: "Food"}},
		expenses: []core.Expense{
			{ID: "e1", Description: "Lunch", Amount: amt("12.50"), CategoryID: "c1"},
		},
	}
	d, _ := newDashboard(store, nil, nil)

	d.Refresh(context.Background())

	snap := d.Snapshot()
	require.Len(t, snap.Categories, 1)
	require.Len(t, snap.Expenses, 1)
	require.Len(t, snap.Totals, 1)
	assert.True(t, snap.Totals["c1"].Equal(amt("12.50")))
}

func TestRefreshFailureKeepsPriorSnapshot(t *testing.T) {
	store := &fakeStore{
		categories: []core.Category{{ID: "c1", Name: "Food"}},
		expenses:   []core.Expense{{ID: "e1", Amount: amt("3.00"), CategoryID: "c1"}},
	}
	d, _ := newDashboard(store, nil, nil)
	d.Refresh(context.Background())
	before := d.Snapshot()

	store.listExpensesErr = errors.New("store unavailable")
	store.categories = nil // would wipe the view if the swap happened
	d.Refresh(context.Background())

	after := d.Snapshot()
	assert.Equal(t, before, after, "failed refresh must leave the snapshot untouched")
}

func TestRefreshPartialFailureKeepsPriorSnapshot(t *testing.T) {
	store := &fakeStore{
		categories: []core.Category{{ID: "c1", Name: "Food"}},
	}
	d, _ := newDashboard(store, nil, nil)
	d.Refresh(context.Background())
	before := d.Snapshot()

	// Categories still succeed; only the expense fetch fails. The view
	// must not be assembled from half the data.
	store.categories = []core.Category{{ID: "c2", Name: "Travel"}}
	store.listExpensesErr = errors.New("store unavailable")
	d.Refresh(context.Background())

	assert.Equal(t, before, d.Snapshot())
}

func TestAddCategoryBlankNameIssuesNoRemoteCalls(t *testing.T) {
	for _, name := range []string{"", "   ", "\t "} {
		store := &fakeStore{}
		d, _ := newDashboard(store, nil, nil)
		d.SetCategoryName(name)

		require.NoError(t, d.AddCategory(context.Background()))
		assert.Empty(t, store.createdCategories)
		assert.Zero(t, store.listCategoryCalls, "no refresh either")
		assert.Zero(t, store.listExpenseCalls)
	}
}

func TestAddCategoryCreatesThenRefreshes(t *testing.T) {
	store := &fakeStore{}
	d, _ := newDashboard(store, nil, nil)
	d.SetCategoryName("  Food  ")

	require.NoError(t, d.AddCategory(context.Background()))

	assert.Equal(t, []string{"Food"}, store.createdCategories)
	assert.Equal(t, "", d.CategoryName(), "pending name cleared")
	assert.Equal(t, 1, store.listCategoryCalls, "exactly one refresh")
	assert.Equal(t, 1, store.listExpenseCalls)
}

func TestAddCategoryFailurePropagates(t *testing.T) {
	store := &fakeStore{createCategoryErr: &api.RemoteError{Status: 500, Message: "boom"}}
	d, _ := newDashboard(store, nil, nil)
	d.SetCategoryName("Food")

	err := d.AddCategory(context.Background())
	require.Error(t, err)
	assert.Equal(t, "boom", api.UserMessage(err))
	assert.Equal(t, "Food", d.CategoryName(), "pending name kept on failure")
	assert.Zero(t, store.listCategoryCalls, "no refresh after failed create")
}

func TestAddExpenseIncompleteFormIssuesNoRemoteCalls(t *testing.T) {
	forms := []ExpenseForm{
		{},
		{Description: "Lunch"},
		{Description: "Lunch", Amount: "12.50"},
		{Amount: "12.50", CategoryID: "c1"},
		{Description: "Lunch", CategoryID: "c1"},
	}
	for _, form := range forms {
		store := &fakeStore{}
		d, _ := newDashboard(store, nil, nil)
		d.SetExpenseForm(form)

		require.NoError(t, d.AddExpense(context.Background()))
		assert.Empty(t, store.createdExpenses, "form %+v", form)
		assert.Zero(t, store.listExpenseCalls)
	}
}

func TestAddExpenseCreatesClearsAndRefreshesOnce(t *testing.T) {
	store := &fakeStore{}
	d, _ := newDashboard(store, nil, nil)
	d.SetExpenseForm(ExpenseForm{Description: "Lunch", Amount: "12.50", CategoryID: "c1"})

	require.NoError(t, d.AddExpense(context.Background()))

	require.Len(t, store.createdExpenses, 1)
	created := store.createdExpenses[0]
	assert.Equal(t, "Lunch", created.description)
	assert.True(t, created.amount.Equal(amt("12.50")))
	assert.Equal(t, "c1", created.categoryID)

	assert.Equal(t, ExpenseForm{}, d.PendingExpense(), "form reset to empty")
	assert.Equal(t, 1, store.listExpenseCalls, "refresh invoked exactly once")
	assert.Equal(t, 1, store.listCategoryCalls)
}

func TestAddExpenseBadAmountIsRejectedBeforeAnyRemoteCall(t *testing.T) {
	for _, amount := range []string{"abc", "-1", "1.2.3"} {
		store := &fakeStore{}
		d, _ := newDashboard(store, nil, nil)
		d.SetExpenseForm(ExpenseForm{Description: "Lunch", Amount: amount, CategoryID: "c1"})

		err := d.AddExpense(context.Background())
		require.Error(t, err, "amount %q", amount)
		assert.Empty(t, store.createdExpenses)
		assert.Zero(t, store.listExpenseCalls)
	}
}

func TestAddExpenseFailurePropagatesAndKeepsForm(t *testing.T) {
	store := &fakeStore{createExpenseErr: errors.New("store unavailable")}
	d, _ := newDashboard(store, nil, nil)
	form := ExpenseForm{Description: "Lunch", Amount: "12.50", CategoryID: "c1"}
	d.SetExpenseForm(form)

	err := d.AddExpense(context.Background())
	require.Error(t, err)
	assert.Equal(t, form, d.PendingExpense())
	assert.Zero(t, store.listExpenseCalls)
}

func TestLogoutNotifiesConsumerEvenWhenRemoteCallFails(t *testing.T) {
	var toreDown bool
	gc := &gateClient{logoutErr: errors.New("network down")}
	d, gate := newDashboard(&fakeStore{}, gc, func() { toreDown = true })
	gate.Check(context.Background())
	require.True(t, gate.Authenticated())

	d.Logout(context.Background())

	assert.False(t, gate.Authenticated())
	assert.True(t, toreDown, "consumer notified to tear the view down")
}
