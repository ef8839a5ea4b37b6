package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etracker/internal/auth"
	"etracker/internal/storage"
)

func newTestServer(t *testing.T) (*httptest.Server, *http.Client) {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "etracker.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	// Minimum bcrypt cost keeps the test fast.
	authService := auth.NewService(repo, time.Hour, 4)
	s := New(":0", authService, repo, nil)
	// Shutdown stops both background goroutines (session sweep and rate
	// limiter) so tests do not leak them.
	t.Cleanup(func() { s.Shutdown(context.Background()) })

	ts := httptest.NewServer(s.Server.Handler)
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return ts, &http.Client{Jar: jar}
}

func postJSON(t *testing.T, client *http.Client, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := client.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func register(t *testing.T, client *http.Client, base, email string) {
	t.Helper()
	resp := postJSON(t, client, base+"/auth/register", map[string]string{
		"email": email, "password": "secret1",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func login(t *testing.T, client *http.Client, base, email string) {
	t.Helper()
	resp := postJSON(t, client, base+"/auth/login", map[string]string{
		"email": email, "password": "secret1",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthFlow(t *testing.T) {
	ts, client := newTestServer(t)

	t.Run("register validates input", func(t *testing.T) {
		resp := postJSON(t, client, ts.URL+"/auth/register", map[string]string{
			"email": "not-an-email", "password": "secret1",
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp = postJSON(t, client, ts.URL+"/auth/register", map[string]string{
			"email": "a@b.c", "password": "short",
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	register(t, client, ts.URL, "user@example.com")

	t.Run("duplicate register conflicts", func(t *testing.T) {
		resp := postJSON(t, client, ts.URL+"/auth/register", map[string]string{
			"email": "user@example.com", "password": "secret1",
		})
		var body map[string]string
		require.Equal(t, http.StatusConflict, resp.StatusCode)
		decodeBody(t, resp, &body)
		assert.Equal(t, "User already exists", body["error"])
	})

	t.Run("probe before login is unauthorized", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/auth/me")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("wrong password surfaces a message", func(t *testing.T) {
		resp := postJSON(t, client, ts.URL+"/auth/login", map[string]string{
			"email": "user@example.com", "password": "wrong-pw",
		})
		var body map[string]string
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		decodeBody(t, resp, &body)
		assert.Equal(t, "Invalid credentials", body["error"])
	})

	login(t, client, ts.URL, "user@example.com")

	t.Run("probe after login succeeds", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/auth/me")
		require.NoError(t, err)
		var me map[string]string
		require.Equal(t, http.StatusOK, resp.StatusCode)
		decodeBody(t, resp, &me)
		assert.Equal(t, "user@example.com", me["email"])
	})

	t.Run("logout revokes the session", func(t *testing.T) {
		resp := postJSON(t, client, ts.URL+"/auth/logout", nil)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		probe, err := client.Get(ts.URL + "/auth/me")
		require.NoError(t, err)
		defer probe.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, probe.StatusCode)
	})
}

func TestCategoriesAndExpenses(t *testing.T) {
	ts, client := newTestServer(t)
	register(t, client, ts.URL, "user@example.com")
	login(t, client, ts.URL, "user@example.com")

	var category struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	t.Run("create category", func(t *testing.T) {
		resp := postJSON(t, client, ts.URL+"/categories", map[string]string{"name": "  Food  "})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		decodeBody(t, resp, &category)
		assert.Equal(t, "Food", category.Name, "name stored trimmed")
		assert.NotEmpty(t, category.ID)
	})

	t.Run("blank category name rejected", func(t *testing.T) {
		resp := postJSON(t, client, ts.URL+"/categories", map[string]string{"name": "   "})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("list categories returns a bare array", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/categories")
		require.NoError(t, err)
		var categories []map[string]string
		require.Equal(t, http.StatusOK, resp.StatusCode)
		decodeBody(t, resp, &categories)
		require.Len(t, categories, 1)
		assert.Equal(t, "Food", categories[0]["name"])
	})

	t.Run("create expense with numeric amount", func(t *testing.T) {
		resp := postJSON(t, client, ts.URL+"/expenses", map[string]any{
			"description": "Lunch", "amount": 12.5, "category_id": category.ID,
		})
		var created map[string]any
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		decodeBody(t, resp, &created)
		assert.Equal(t, "12.50", created["amount"], "amount echoed as decimal string")
	})

	t.Run("create expense without category", func(t *testing.T) {
		resp := postJSON(t, client, ts.URL+"/expenses", map[string]any{
			"description": "Cash", "amount": 5,
		})
		defer resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	})

	t.Run("zero or negative amount rejected", func(t *testing.T) {
		for _, amount := range []any{0, -3} {
			resp := postJSON(t, client, ts.URL+"/expenses", map[string]any{
				"description": "Bad", "amount": amount, "category_id": category.ID,
			})
			resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		}
	})

	t.Run("list expenses wraps in an envelope", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/expenses")
		require.NoError(t, err)
		var list struct {
			Expenses []struct {
				Description  string  `json:"description"`
				Amount       string  `json:"amount"`
				CategoryID   *string `json:"category_id"`
				CategoryName *string `json:"category_name"`
			} `json:"expenses"`
			Total string `json:"total"`
			Count int    `json:"count"`
		}
		require.Equal(t, http.StatusOK, resp.StatusCode)
		decodeBody(t, resp, &list)

		require.Equal(t, 2, list.Count)
		assert.Equal(t, "17.50", list.Total)

		byDesc := map[string]int{}
		for i, e := range list.Expenses {
			byDesc[e.Description] = i
		}
		lunch := list.Expenses[byDesc["Lunch"]]
		require.NotNil(t, lunch.CategoryID)
		assert.Equal(t, category.ID, *lunch.CategoryID)
		require.NotNil(t, lunch.CategoryName)
		assert.Equal(t, "Food", *lunch.CategoryName)

		cash := list.Expenses[byDesc["Cash"]]
		assert.Nil(t, cash.CategoryID, "uncategorized expense has null category_id")
		assert.Nil(t, cash.CategoryName)
	})
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func createCategory(t *testing.T, client *http.Client, base string, body map[string]string) map[string]string {
	t.Helper()
	resp := postJSON(t, client, base+"/categories", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var category map[string]string
	decodeBody(t, resp, &category)
	return category
}

func TestCategoryLifecycle(t *testing.T) {
	ts, client := newTestServer(t)
	register(t, client, ts.URL, "user@example.com")
	login(t, client, ts.URL, "user@example.com")

	category := createCategory(t, client, ts.URL, map[string]string{"name": "Food", "color": "#EF4444"})
	assert.Equal(t, "#EF4444", category["color"])

	t.Run("omitted color gets the default", func(t *testing.T) {
		plain := createCategory(t, client, ts.URL, map[string]string{"name": "Misc"})
		assert.Equal(t, "#6B7280", plain["color"])
	})

	t.Run("update renames and recolors", func(t *testing.T) {
		resp := doJSON(t, client, http.MethodPut, ts.URL+"/categories/"+category["id"],
			map[string]string{"name": "Groceries", "color": "#10B981"})
		var updated map[string]string
		require.Equal(t, http.StatusOK, resp.StatusCode)
		decodeBody(t, resp, &updated)
		assert.Equal(t, "Groceries", updated["name"])
		assert.Equal(t, "#10B981", updated["color"])
		assert.Equal(t, category["id"], updated["id"])
	})

	t.Run("update of unknown category is a 404", func(t *testing.T) {
		resp := doJSON(t, client, http.MethodPut, ts.URL+"/categories/00000000-0000-0000-0000-000000000001",
			map[string]string{"name": "Ghost"})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("update with blank name rejected", func(t *testing.T) {
		resp := doJSON(t, client, http.MethodPut, ts.URL+"/categories/"+category["id"],
			map[string]string{"name": "  "})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("delete removes the category", func(t *testing.T) {
		resp := doJSON(t, client, http.MethodDelete, ts.URL+"/categories/"+category["id"], nil)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		listResp, err := client.Get(ts.URL + "/categories")
		require.NoError(t, err)
		var categories []map[string]string
		require.Equal(t, http.StatusOK, listResp.StatusCode)
		decodeBody(t, listResp, &categories)
		require.Len(t, categories, 1)
		assert.Equal(t, "Misc", categories[0]["name"])

		again := doJSON(t, client, http.MethodDelete, ts.URL+"/categories/"+category["id"], nil)
		defer again.Body.Close()
		assert.Equal(t, http.StatusNotFound, again.StatusCode)
	})
}

func TestExpenseLifecycle(t *testing.T) {
	ts, client := newTestServer(t)
	register(t, client, ts.URL, "user@example.com")
	login(t, client, ts.URL, "user@example.com")
	category := createCategory(t, client, ts.URL, map[string]string{"name": "Food"})

	var expense map[string]any

	t.Run("create with explicit date", func(t *testing.T) {
		resp := postJSON(t, client, ts.URL+"/expenses", map[string]any{
			"description": "Lunch", "amount": 12.5, "category_id": category["id"], "date": "2026-08-14",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		decodeBody(t, resp, &expense)
		assert.Equal(t, "2026-08-14", expense["date"])
	})

	t.Run("bad date rejected", func(t *testing.T) {
		resp := postJSON(t, client, ts.URL+"/expenses", map[string]any{
			"description": "Bad", "amount": 1, "date": "14/08/2026",
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("update replaces the fields", func(t *testing.T) {
		resp := doJSON(t, client, http.MethodPut, ts.URL+"/expenses/"+expense["id"].(string), map[string]any{
			"description": "Team lunch", "amount": 20, "category_id": category["id"], "date": "2026-08-15",
		})
		var updated map[string]any
		require.Equal(t, http.StatusOK, resp.StatusCode)
		decodeBody(t, resp, &updated)
		assert.Equal(t, "Team lunch", updated["description"])
		assert.Equal(t, "20.00", updated["amount"])
		assert.Equal(t, "2026-08-15", updated["date"])
		assert.Equal(t, "Food", updated["category_name"], "category join echoed on update")
	})

	t.Run("update of unknown expense is a 404", func(t *testing.T) {
		resp := doJSON(t, client, http.MethodPut, ts.URL+"/expenses/00000000-0000-0000-0000-000000000001",
			map[string]any{"description": "Ghost", "amount": 1})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("delete removes the expense", func(t *testing.T) {
		resp := doJSON(t, client, http.MethodDelete, ts.URL+"/expenses/"+expense["id"].(string), nil)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		listResp, err := client.Get(ts.URL + "/expenses")
		require.NoError(t, err)
		var list struct {
			Count int `json:"count"`
		}
		require.Equal(t, http.StatusOK, listResp.StatusCode)
		decodeBody(t, listResp, &list)
		assert.Equal(t, 0, list.Count)

		again := doJSON(t, client, http.MethodDelete, ts.URL+"/expenses/"+expense["id"].(string), nil)
		defer again.Body.Close()
		assert.Equal(t, http.StatusNotFound, again.StatusCode)
	})
}

func TestExpenseDateFiltering(t *testing.T) {
	ts, client := newTestServer(t)
	register(t, client, ts.URL, "user@example.com")
	login(t, client, ts.URL, "user@example.com")

	for _, e := range []struct {
		description string
		amount      float64
		date        string
	}{
		{"January rent", 800, "2026-01-01"},
		{"February rent", 800, "2026-02-01"},
		{"February dinner", 35.5, "2026-02-14"},
	} {
		resp := postJSON(t, client, ts.URL+"/expenses", map[string]any{
			"description": e.description, "amount": e.amount, "date": e.date,
		})
		resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	t.Run("range keeps only dated-inside expenses", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/expenses?start_date=2026-02-01&end_date=2026-02-28")
		require.NoError(t, err)
		var list struct {
			Expenses []struct {
				Description string `json:"description"`
			} `json:"expenses"`
			Total string `json:"total"`
			Count int    `json:"count"`
		}
		require.Equal(t, http.StatusOK, resp.StatusCode)
		decodeBody(t, resp, &list)
		require.Equal(t, 2, list.Count)
		assert.Equal(t, "835.50", list.Total)
		for _, e := range list.Expenses {
			assert.NotEqual(t, "January rent", e.Description)
		}
	})

	t.Run("malformed range is a 400", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/expenses?start_date=yesterday&end_date=2026-02-28")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestExpensesByCategory(t *testing.T) {
	ts, client := newTestServer(t)
	register(t, client, ts.URL, "user@example.com")
	login(t, client, ts.URL, "user@example.com")

	food := createCategory(t, client, ts.URL, map[string]string{"name": "Food", "color": "#EF4444"})
	travel := createCategory(t, client, ts.URL, map[string]string{"name": "Travel"})
	createCategory(t, client, ts.URL, map[string]string{"name": "Unused"})

	for _, e := range []struct {
		description string
		amount      float64
		categoryID  string
	}{
		{"Lunch", 12.5, food["id"]},
		{"Dinner", 30, food["id"]},
		{"Train", 9.9, travel["id"]},
		{"Cash", 5, ""},
	} {
		body := map[string]any{"description": e.description, "amount": e.amount, "date": "2026-03-10"}
		if e.categoryID != "" {
			body["category_id"] = e.categoryID
		}
		resp := postJSON(t, client, ts.URL+"/expenses", body)
		resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, err := client.Get(ts.URL + "/expenses/by-category?start_date=2026-03-01&end_date=2026-03-31")
	require.NoError(t, err)
	var summary []struct {
		CategoryID    string `json:"category_id"`
		CategoryName  string `json:"category_name"`
		CategoryColor string `json:"category_color"`
		TotalAmount   string `json:"total_amount"`
		ExpenseCount  int    `json:"expense_count"`
	}
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &summary)

	require.Len(t, summary, 2, "unused category and uncategorized spending are left out")
	byName := map[string]int{}
	for i, row := range summary {
		byName[row.CategoryName] = i
	}
	require.Contains(t, byName, "Food")
	require.Contains(t, byName, "Travel")

	foodRow := summary[byName["Food"]]
	assert.Equal(t, food["id"], foodRow.CategoryID)
	assert.Equal(t, "#EF4444", foodRow.CategoryColor)
	assert.Equal(t, "42.50", foodRow.TotalAmount)
	assert.Equal(t, 2, foodRow.ExpenseCount)

	travelRow := summary[byName["Travel"]]
	assert.Equal(t, travel["id"], travelRow.CategoryID)
	assert.Equal(t, "9.90", travelRow.TotalAmount)
	assert.Equal(t, 1, travelRow.ExpenseCount)

	t.Run("range excludes other months", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/expenses/by-category?start_date=2026-04-01&end_date=2026-04-30")
		require.NoError(t, err)
		var empty []any
		require.Equal(t, http.StatusOK, resp.StatusCode)
		decodeBody(t, resp, &empty)
		assert.Empty(t, empty)
	})
}

func TestLogoutAllRevokesEverySession(t *testing.T) {
	ts, phone := newTestServer(t)
	register(t, phone, ts.URL, "user@example.com")
	login(t, phone, ts.URL, "user@example.com")

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	laptop := &http.Client{Jar: jar}
	login(t, laptop, ts.URL, "user@example.com")

	resp := postJSON(t, phone, ts.URL+"/auth/logout-all", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	for name, client := range map[string]*http.Client{"phone": phone, "laptop": laptop} {
		probe, err := client.Get(ts.URL + "/auth/me")
		require.NoError(t, err)
		probe.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, probe.StatusCode, "%s session should be revoked", name)
	}
}

func TestUsersAreIsolated(t *testing.T) {
	ts, alice := newTestServer(t)
	register(t, alice, ts.URL, "alice@example.com")
	login(t, alice, ts.URL, "alice@example.com")
	resp := postJSON(t, alice, ts.URL+"/categories", map[string]string{"name": "Food"})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	bob := &http.Client{Jar: jar}
	register(t, bob, ts.URL, "bob@example.com")
	login(t, bob, ts.URL, "bob@example.com")

	listResp, err := bob.Get(ts.URL + "/categories")
	require.NoError(t, err)
	var categories []map[string]string
	require.Equal(t, http.StatusOK, listResp.StatusCode)
	decodeBody(t, listResp, &categories)
	assert.Empty(t, categories, "bob must not see alice's categories")
}
