// Package api is the single channel between the client and the remote
// expense store. It carries the session cookie implicitly on every call,
// normalizes remote records into the internal shapes, and classifies
// failures as structured remote errors or transport errors. It never
// retries and never caches.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"etracker/internal/core"
	applog "etracker/internal/log"
)

// errBodyLimit caps how much of an error response body is read when
// extracting the server message.
const errBodyLimit = 64 << 10

// Credentials identifies a user to the remote store.
type Credentials struct {
	Email    string
	Password string
}

// Client talks to the remote expense store over HTTP.
type Client struct {
	baseURL     *url.URL
	http        *http.Client
	sessionFile string
	logger      *applog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithSessionFile persists the session cookie to path across processes.
func WithSessionFile(path string) Option {
	return func(c *Client) { c.sessionFile = path }
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *applog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New builds a client for the store at baseURL. The client always owns a
// cookie jar; a previously saved session is loaded when a session file is
// configured and readable, and silently skipped otherwise.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse server URL: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	c := &Client{
		baseURL: base,
		http:    &http.Client{Jar: jar, Timeout: 15 * time.Second},
		logger:  applog.New(applog.Config{Level: applog.LevelFromEnv(), Component: applog.ComponentAPI}),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.sessionFile != "" {
		if err := loadSessionFile(c.sessionFile, c.baseURL, c.http.Jar); err != nil && !os.IsNotExist(err) {
			c.logger.Warn("could not load saved session, starting anonymous", applog.FieldError, err)
		}
	}

	return c, nil
}

// ListCategories fetches all categories, in the order the store returns them.
func (c *Client) ListCategories(ctx context.Context) ([]core.Category, error) {
	var dtos []categoryDTO
	if err := c.do(ctx, http.MethodGet, "/categories", nil, &dtos); err != nil {
		return nil, err
	}
	categories := make([]core.Category, 0, len(dtos))
	for _, d := range dtos {
		categories = append(categories, core.Category{ID: d.ID, Name: d.Name})
	}
	return categories, nil
}

// ListExpenses fetches all expenses and normalizes each record: amounts
// are coerced into decimals and absent category fields become "".
func (c *Client) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	var envelope expensesEnvelope
	if err := c.do(ctx, http.MethodGet, "/expenses", nil, &envelope); err != nil {
		return nil, err
	}
	expenses := make([]core.Expense, 0, len(envelope.Expenses))
	for _, d := range envelope.Expenses {
		e, err := d.toExpense()
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, nil
}

// CreateCategory creates a category. Invalid input is rejected here,
// before any request goes out.
func (c *Client) CreateCategory(ctx context.Context, name string) error {
	if err := (core.Category{Name: name}).Validate(); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/categories", createCategoryBody{Name: name}, nil)
}

// CreateExpense creates an expense. The amount travels as a JSON number.
// Invalid input is rejected here, before any request goes out.
func (c *Client) CreateExpense(ctx context.Context, description string, amount decimal.Decimal, categoryID string) error {
	expense := core.Expense{Description: description, Amount: amount, CategoryID: categoryID}
	if err := expense.Validate(); err != nil {
		return err
	}
	body := createExpenseBody{
		Description: description,
		Amount:      json.Number(amount.String()),
		CategoryID:  categoryID,
	}
	return c.do(ctx, http.MethodPost, "/expenses", body, nil)
}

// ProbeSession issues the privileged identity probe. A nil return means
// the current session is valid.
func (c *Client) ProbeSession(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/auth/me", nil, nil)
}

// Login submits credentials. On success the store sets the session cookie,
// which the jar picks up automatically.
func (c *Client) Login(ctx context.Context, creds Credentials) error {
	return c.do(ctx, http.MethodPost, "/auth/login", credentialsBody(creds), nil)
}

// Register submits new-account data. It does not authenticate.
func (c *Client) Register(ctx context.Context, creds Credentials) error {
	return c.do(ctx, http.MethodPost, "/auth/register", credentialsBody(creds), nil)
}

// Logout revokes the session on the store.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// do executes one request. Transport failures come back wrapped; non-2xx
// responses become a *RemoteError carrying the server message if the body
// had one.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: encode body: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path).String(), reader)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.persistSession()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: %w", method, path, remoteErrorFrom(resp))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s %s: decode response: %w", method, path, err)
		}
	}
	return nil
}

func remoteErrorFrom(resp *http.Response) *RemoteError {
	re := &RemoteError{Status: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, errBodyLimit))
	if err != nil {
		return re
	}
	var envelope errorEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return re
	}
	re.Message = envelope.Error
	if re.Message == "" {
		re.Message = envelope.Message
	}
	return re
}

// persistSession mirrors the jar to disk so the session survives the
// process. Cookies can change on any response, so this runs after every
// request.
func (c *Client) persistSession() {
	if c.sessionFile == "" {
		return
	}
	if err := saveSessionFile(c.sessionFile, c.baseURL, c.http.Jar); err != nil {
		c.logger.Warn("could not persist session", applog.FieldError, err)
	}
}
