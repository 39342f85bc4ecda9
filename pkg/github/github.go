// Package github parses GitHub profile data out of fetched source bodies.
// The catalog points GitHub fetches at the REST users endpoint, so what
// arrives here is JSON, not HTML.
package github

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound indicates the body was a GitHub "Not Found" answer.
var ErrNotFound = errors.New("github user not found")

// User holds the subset of the GitHub users API relevant to a person search.
type User struct {
	Login       string `json:"login"`
	Name        string `json:"name"`
	Bio         string `json:"bio"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Blog        string `json:"blog"`
	Email       string `json:"email"`
	TwitterUser string `json:"twitter_username"`
	AvatarURL   string `json:"avatar_url"`
	HTMLURL     string `json:"html_url"`
	PublicRepos int    `json:"public_repos"`
	PublicGists int    `json:"public_gists"`
	Followers   int    `json:"followers"`
	Following   int    `json:"following"`
	CreatedAt   string `json:"created_at"`
	Message     string `json:"message"`
}

// ParseUser decodes a GitHub users API response body.
func ParseUser(body []byte) (*User, error) {
	var u User
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, fmt.Errorf("decode github user: %w", err)
	}
	if u.Message != "" && u.Login == "" {
		return nil, ErrNotFound
	}
	if u.Login == "" {
		return nil, errors.New("github response has no login")
	}
	return &u, nil
}

// Match returns true if the URL is a GitHub profile URL (including the API
// form used for fetching).
func Match(urlStr string) bool {
	lower := strings.ToLower(urlStr)
	if strings.Contains(lower, "api.github.com/users/") {
		return true
	}
	if !strings.Contains(lower, "github.com/") {
		return false
	}
	idx := strings.Index(lower, "github.com/")
	path := strings.TrimSuffix(lower[idx+len("github.com/"):], "/")
	if qIdx := strings.Index(path, "?"); qIdx >= 0 {
		path = path[:qIdx]
	}
	// A profile URL has exactly one path element.
	return path != "" && !strings.Contains(path, "/")
}

// Username extracts the username from a GitHub profile or API URL.
func Username(urlStr string) string {
	lower := strings.ToLower(urlStr)
	for _, prefix := range []string{"api.github.com/users/", "github.com/"} {
		idx := strings.Index(lower, prefix)
		if idx < 0 {
			continue
		}
		path := strings.TrimSuffix(lower[idx+len(prefix):], "/")
		if qIdx := strings.Index(path, "?"); qIdx >= 0 {
			path = path[:qIdx]
		}
		if path == "" || strings.Contains(path, "/") {
			return ""
		}
		return path
	}
	return ""
}

// MatchesName reports whether the user's display name plausibly belongs to
// the queried person: every token of the query name must appear in it.
func (u *User) MatchesName(queryName string) bool {
	if u == nil || u.Name == "" || queryName == "" {
		return false
	}
	got := strings.ToLower(u.Name)
	for _, tok := range strings.Fields(strings.ToLower(queryName)) {
		if !strings.Contains(got, tok) {
			return false
		}
	}
	return true
}

// Summary renders the verified account facts as a short sentence for report
// consumers. Only fields GitHub actually returned appear in it.
func (u *User) Summary() string {
	var parts []string
	name := u.Name
	if name == "" {
		name = u.Login
	}
	parts = append(parts, fmt.Sprintf("Conta GitHub verificada: %s (@%s)", name, u.Login))
	if u.Bio != "" {
		parts = append(parts, u.Bio)
	}
	if u.Company != "" {
		parts = append(parts, "Empresa: "+u.Company)
	}
	if u.Location != "" {
		parts = append(parts, "Localização: "+u.Location)
	}
	parts = append(parts, fmt.Sprintf("%d repositórios públicos, %d seguidores", u.PublicRepos, u.Followers))
	if since := u.memberSince(); since != "" {
		parts = append(parts, "Membro desde "+since)
	}
	return strings.Join(parts, ". ") + "."
}

func (u *User) memberSince() string {
	if u.CreatedAt == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, u.CreatedAt)
	if err != nil {
		return ""
	}
	return t.Format("2006")
}
