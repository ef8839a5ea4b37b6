// Package storage persists users, sessions, categories and expenses in
// sqlite. Amounts are stored as decimal strings so currency values
// round-trip without loss.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// timeFormat keeps stored timestamps lexicographically comparable.
const timeFormat = time.RFC3339

// dateFormat stores expense dates as day-granular strings, so range
// filters can compare them lexicographically.
const dateFormat = "2006-01-02"

// DefaultCategoryColor fills in for categories created without a color.
const DefaultCategoryColor = "#6B7280"

type (
	User struct {
		ID             uuid.UUID
		Email          string
		HashedPassword string
		CreatedAt      time.Time
	}

	Session struct {
		Token     string
		UserID    uuid.UUID
		ExpiresAt time.Time
	}

	Category struct {
		ID        uuid.UUID
		UserID    uuid.UUID
		Name      string
		Color     string
		CreatedAt time.Time
	}

	// Expense carries the optional category join columns; CategoryID,
	// CategoryName and CategoryColor are empty when the expense is
	// uncategorized or its category was deleted.
	Expense struct {
		ID            uuid.UUID
		UserID        uuid.UUID
		CategoryID    string
		CategoryName  string
		CategoryColor string
		Description   string
		Amount        string
		Date          time.Time
		CreatedAt     time.Time
	}
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, email, hashedPassword string) (User, error) {
	user := User{
		ID:             uuid.New(),
		Email:          email,
		HashedPassword: hashedPassword,
		CreatedAt:      time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, hashed_password, created_at) VALUES (?, ?, ?, ?)`,
		user.ID.String(), user.Email, user.HashedPassword, user.CreatedAt.Format(timeFormat))
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, email, hashed_password, created_at FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (r *SQLiteRepository) CreateSession(ctx context.Context, s Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)`,
		s.Token, s.UserID.String(), s.ExpiresAt.UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetUserBySessionToken resolves a live session to its user. Expired
// sessions behave as if they do not exist.
func (r *SQLiteRepository) GetUserBySessionToken(ctx context.Context, token string) (User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT u.id, u.email, u.hashed_password, u.created_at
		 FROM sessions s JOIN users u ON u.id = s.user_id
		 WHERE s.token = ? AND s.expires_at > ?`,
		token, time.Now().UTC().Format(timeFormat))
	return scanUser(row)
}

func (r *SQLiteRepository) DeleteSession(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteUserSessions revokes every session the user holds, across all
// devices.
func (r *SQLiteRepository) DeleteUserSessions(ctx context.Context, userID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID.String()); err != nil {
		return fmt.Errorf("delete user sessions: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteExpiredSessions(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`,
		time.Now().UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("delete expired sessions: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, userID uuid.UUID, name, color string) (Category, error) {
	if color == "" {
		color = DefaultCategoryColor
	}
	category := Category{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      name,
		Color:     color,
		CreatedAt: time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, user_id, name, color, created_at) VALUES (?, ?, ?, ?, ?)`,
		category.ID.String(), category.UserID.String(), category.Name, category.Color,
		category.CreatedAt.Format(timeFormat))
	if err != nil {
		return Category{}, fmt.Errorf("create category: %w", err)
	}
	return category, nil
}

// UpdateCategory renames or recolors the user's category and returns the
// stored row. ErrNotFound when the category does not belong to the user.
func (r *SQLiteRepository) UpdateCategory(ctx context.Context, categoryID, userID uuid.UUID, name, color string) (Category, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, color = ? WHERE id = ? AND user_id = ?`,
		name, color, categoryID.String(), userID.String())
	if err != nil {
		return Category{}, fmt.Errorf("update category: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return Category{}, fmt.Errorf("update category: %w", err)
	} else if n == 0 {
		return Category{}, ErrNotFound
	}
	return r.GetCategory(ctx, categoryID, userID)
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, categoryID, userID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM categories WHERE id = ? AND user_id = ?`,
		categoryID.String(), userID.String())
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("delete category: %w", err)
	} else if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, categoryID, userID uuid.UUID) (Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, color, created_at FROM categories WHERE id = ? AND user_id = ?`,
		categoryID.String(), userID.String())

	var (
		c                            Category
		idRaw, userRaw, createdAtRaw string
	)
	err := row.Scan(&idRaw, &userRaw, &c.Name, &c.Color, &createdAtRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return Category{}, ErrNotFound
	}
	if err != nil {
		return Category{}, fmt.Errorf("scan category: %w", err)
	}
	return fillCategoryIDs(c, idRaw, userRaw, createdAtRaw)
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, userID uuid.UUID) ([]Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, color, created_at FROM categories WHERE user_id = ? ORDER BY created_at, id`,
		userID.String())
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := make([]Category, 0)
	for rows.Next() {
		var (
			c                            Category
			idRaw, userRaw, createdAtRaw string
		)
		if err := rows.Scan(&idRaw, &userRaw, &c.Name, &c.Color, &createdAtRaw); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		if c, err = fillCategoryIDs(c, idRaw, userRaw, createdAtRaw); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, userID uuid.UUID, categoryID, description, amount string, date time.Time) (Expense, error) {
	expense := Expense{
		ID:          uuid.New(),
		UserID:      userID,
		CategoryID:  categoryID,
		Description: description,
		Amount:      amount,
		Date:        date,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (id, user_id, category_id, description, amount, date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		expense.ID.String(), expense.UserID.String(), nullableID(categoryID),
		expense.Description, expense.Amount, expense.Date.Format(dateFormat),
		expense.CreatedAt.Format(timeFormat))
	if err != nil {
		return Expense{}, fmt.Errorf("create expense: %w", err)
	}
	return expense, nil
}

// UpdateExpense replaces the user's expense fields and returns the stored
// row with its category join. ErrNotFound when the expense does not belong
// to the user.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, expenseID, userID uuid.UUID, categoryID, description, amount string, date time.Time) (Expense, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET category_id = ?, description = ?, amount = ?, date = ?
		 WHERE id = ? AND user_id = ?`,
		nullableID(categoryID), description, amount, date.Format(dateFormat),
		expenseID.String(), userID.String())
	if err != nil {
		return Expense{}, fmt.Errorf("update expense: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return Expense{}, fmt.Errorf("update expense: %w", err)
	} else if n == 0 {
		return Expense{}, ErrNotFound
	}
	return r.GetExpense(ctx, expenseID, userID)
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, expenseID, userID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM expenses WHERE id = ? AND user_id = ?`,
		expenseID.String(), userID.String())
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	} else if n == 0 {
		return ErrNotFound
	}
	return nil
}

const expenseColumns = `e.id, e.user_id, e.category_id, c.name, c.color,
	 e.description, e.amount, e.date, e.created_at`

func (r *SQLiteRepository) GetExpense(ctx context.Context, expenseID, userID uuid.UUID) (Expense, error) {
	expenses, err := r.queryExpenses(ctx,
		`SELECT `+expenseColumns+`
		 FROM expenses e LEFT JOIN categories c ON c.id = e.category_id
		 WHERE e.id = ? AND e.user_id = ?`,
		expenseID.String(), userID.String())
	if err != nil {
		return Expense{}, err
	}
	if len(expenses) == 0 {
		return Expense{}, ErrNotFound
	}
	return expenses[0], nil
}

// ListExpenses returns the user's expenses newest first, joined with the
// category name and color when the category still exists.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, userID uuid.UUID) ([]Expense, error) {
	return r.queryExpenses(ctx,
		`SELECT `+expenseColumns+`
		 FROM expenses e LEFT JOIN categories c ON c.id = e.category_id
		 WHERE e.user_id = ?
		 ORDER BY e.date DESC, e.created_at DESC, e.id`,
		userID.String())
}

// ListExpensesByDateRange returns the user's expenses dated within
// [start, end], inclusive on both ends.
func (r *SQLiteRepository) ListExpensesByDateRange(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]Expense, error) {
	return r.queryExpenses(ctx,
		`SELECT `+expenseColumns+`
		 FROM expenses e LEFT JOIN categories c ON c.id = e.category_id
		 WHERE e.user_id = ? AND e.date >= ? AND e.date <= ?
		 ORDER BY e.date DESC, e.created_at DESC, e.id`,
		userID.String(), start.Format(dateFormat), end.Format(dateFormat))
}

func (r *SQLiteRepository) queryExpenses(ctx context.Context, query string, args ...any) ([]Expense, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	expenses := make([]Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func scanExpense(rows *sql.Rows) (Expense, error) {
	var (
		e                                       Expense
		idRaw, userRaw                          string
		categoryID, categoryName, categoryColor sql.NullString
		dateRaw, createdAtRaw                   string
	)
	if err := rows.Scan(&idRaw, &userRaw, &categoryID, &categoryName, &categoryColor,
		&e.Description, &e.Amount, &dateRaw, &createdAtRaw); err != nil {
		return Expense{}, fmt.Errorf("scan expense: %w", err)
	}

	var err error
	if e.ID, err = uuid.Parse(idRaw); err != nil {
		return Expense{}, fmt.Errorf("parse expense id: %w", err)
	}
	if e.UserID, err = uuid.Parse(userRaw); err != nil {
		return Expense{}, fmt.Errorf("parse expense user id: %w", err)
	}
	if dateRaw != "" {
		if e.Date, err = time.Parse(dateFormat, dateRaw); err != nil {
			return Expense{}, fmt.Errorf("parse expense date: %w", err)
		}
	}
	if e.CreatedAt, err = time.Parse(timeFormat, createdAtRaw); err != nil {
		return Expense{}, fmt.Errorf("parse expense created_at: %w", err)
	}
	e.CategoryID = categoryID.String
	e.CategoryName = categoryName.String
	e.CategoryColor = categoryColor.String
	return e, nil
}

func fillCategoryIDs(c Category, idRaw, userRaw, createdAtRaw string) (Category, error) {
	var err error
	if c.ID, err = uuid.Parse(idRaw); err != nil {
		return Category{}, fmt.Errorf("parse category id: %w", err)
	}
	if c.UserID, err = uuid.Parse(userRaw); err != nil {
		return Category{}, fmt.Errorf("parse category user id: %w", err)
	}
	if c.CreatedAt, err = time.Parse(timeFormat, createdAtRaw); err != nil {
		return Category{}, fmt.Errorf("parse category created_at: %w", err)
	}
	return c, nil
}

// nullableID maps "" to NULL for optional foreign keys.
func nullableID(id string) any {
	if id == "" {
		return nil
	}
	return id
}

func scanUser(row *sql.Row) (User, error) {
	var (
		u            User
		idRaw        string
		createdAtRaw string
	)
	err := row.Scan(&idRaw, &u.Email, &u.HashedPassword, &createdAtRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("scan user: %w", err)
	}
	if u.ID, err = uuid.Parse(idRaw); err != nil {
		return User{}, fmt.Errorf("parse user id: %w", err)
	}
	if u.CreatedAt, err = time.Parse(timeFormat, createdAtRaw); err != nil {
		return User{}, fmt.Errorf("parse user created_at: %w", err)
	}
	return u, nil
}
