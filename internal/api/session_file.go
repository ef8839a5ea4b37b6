package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
)

// The CLI runs one process per command, so the session cookie issued by
// the server has to outlive the process. The jar contents for the server
// URL are mirrored to a small JSON file after every request and loaded
// back on startup. Losing or corrupting the file just means the next
// session probe fails and the user is anonymous again.

type savedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type sessionState struct {
	ServerURL string        `json:"server_url"`
	Cookies   []savedCookie `json:"cookies"`
}

func loadSessionFile(path string, base *url.URL, jar http.CookieJar) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var state sessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("decode session file: %w", err)
	}
	// A stored session for a different server is not ours to replay.
	if state.ServerURL != base.String() {
		return nil
	}
	cookies := make([]*http.Cookie, 0, len(state.Cookies))
	for _, c := range state.Cookies {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	jar.SetCookies(base, cookies)
	return nil
}

func saveSessionFile(path string, base *url.URL, jar http.CookieJar) error {
	state := sessionState{ServerURL: base.String()}
	for _, c := range jar.Cookies(base) {
		state.Cookies = append(state.Cookies, savedCookie{Name: c.Name, Value: c.Value})
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session file: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create session directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}
