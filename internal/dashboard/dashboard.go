// Package dashboard owns the local mirror of categories and expenses and
// the refresh-after-write cycle that keeps it consistent with the remote
// store. There are no optimistic updates: every successful mutation is
// followed by a full reload, and a write only counts as complete once that
// reload succeeds.
package dashboard

import (
	"context"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"etracker/internal/core"
	applog "etracker/internal/log"
	"etracker/internal/session"
)

// StoreClient is the slice of the remote client the dashboard needs.
type StoreClient interface {
	ListCategories(ctx context.Context) ([]core.Category, error)
	ListExpenses(ctx context.Context) ([]core.Expense, error)
	CreateCategory(ctx context.Context, name string) error
	CreateExpense(ctx context.Context, description string, amount decimal.Decimal, categoryID string) error
}

// ExpenseForm carries the pending expense input exactly as typed.
type ExpenseForm struct {
	Description string
	Amount      string
	CategoryID  string
}

// Dashboard is the aggregation view: snapshot, derived totals and the
// pending form state, owned here rather than floating as globals.
type Dashboard struct {
	client StoreClient
	gate   *session.Gate
	logger *applog.Logger

	// Refresh fetches concurrently, so the snapshot swap is guarded to
	// keep readers from ever seeing a half-updated state.
	mu       sync.RWMutex
	snapshot core.Snapshot

	categoryName string
	expenseForm  ExpenseForm

	onSignOut func()
}

// New builds a dashboard over the given client and session gate. onSignOut
// is invoked after Logout so the consumer can tear the view down; it may
// be nil.
func New(client StoreClient, gate *session.Gate, logger *applog.Logger, onSignOut func()) *Dashboard {
	if logger == nil {
		logger = applog.New(applog.Config{Level: applog.LevelFromEnv(), Component: applog.ComponentDashboard})
	}
	return &Dashboard{client: client, gate: gate, logger: logger, onSignOut: onSignOut}
}

// Snapshot returns the current local view. The previous snapshot stays
// visible until a refresh has fully assembled its replacement.
func (d *Dashboard) Snapshot() core.Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snapshot
}

// Summary joins categories with their totals in store order, for rendering.
func (d *Dashboard) Summary() []core.CategoryTotal {
	snap := d.Snapshot()
	return core.SummarizeCategories(snap.Categories, snap.Totals)
}

// SetCategoryName stages the pending category name input.
func (d *Dashboard) SetCategoryName(name string) {
	d.categoryName = name
}

// CategoryName returns the pending category name input.
func (d *Dashboard) CategoryName() string {
	return d.categoryName
}

// SetExpenseForm stages the pending expense input.
func (d *Dashboard) SetExpenseForm(form ExpenseForm) {
	d.expenseForm = form
}

// PendingExpense returns the pending expense input.
func (d *Dashboard) PendingExpense() ExpenseForm {
	return d.expenseForm
}

// Refresh reloads categories and expenses from the store and recomputes
// the totals. Both fetches run concurrently; the snapshot is replaced
// whole only after both succeed. On any failure the prior snapshot is
// kept and the error is logged for diagnostics only, so a transient fetch
// problem never blanks the screen.
func (d *Dashboard) Refresh(ctx context.Context) {
	var (
		categories []core.Category
		expenses   []core.Expense
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		categories, err = d.client.ListCategories(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		expenses, err = d.client.ListExpenses(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		d.logger.Error("refresh failed, keeping previous snapshot",
			applog.FieldOperation, applog.OpRefresh, applog.FieldError, err)
		return
	}

	next := core.Snapshot{
		Categories: categories,
		Expenses:   expenses,
		Totals:     core.TotalsByCategory(expenses),
	}

	d.mu.Lock()
	d.snapshot = next
	d.mu.Unlock()
}

// AddCategory creates a category from the pending name. A name that trims
// to empty issues no remote call at all. The create call is fully resolved
// before the follow-up refresh starts; a create failure propagates to the
// caller (hard-fail), unlike refresh's soft-fail.
func (d *Dashboard) AddCategory(ctx context.Context) error {
	name := strings.TrimSpace(d.categoryName)
	if name == "" {
		return nil
	}
	if err := d.client.CreateCategory(ctx, name); err != nil {
		return err
	}
	d.categoryName = ""
	d.Refresh(ctx)
	return nil
}

// AddExpense creates an expense from the pending form. If any field is
// empty the call is silently skipped. The amount text must parse as a
// non-negative decimal; parse and create failures propagate without any
// remote state committed.
func (d *Dashboard) AddExpense(ctx context.Context) error {
	form := d.expenseForm
	if form.Description == "" || form.Amount == "" || form.CategoryID == "" {
		return nil
	}
	amount, err := core.ParseAmount(form.Amount)
	if err != nil {
		return err
	}
	if err := d.client.CreateExpense(ctx, form.Description, amount, form.CategoryID); err != nil {
		return err
	}
	d.expenseForm = ExpenseForm{}
	d.Refresh(ctx)
	return nil
}

// Logout delegates to the session gate (fail-open there) and notifies the
// consumer that this view should tear down.
func (d *Dashboard) Logout(ctx context.Context) {
	d.gate.Logout(ctx)
	if d.onSignOut != nil {
		d.onSignOut()
	}
}
