// Package query defines the normalized person query that drives a search.
package query

import (
	"errors"
	"strings"
)

// ErrNameRequired is returned when a query is built without a name.
var ErrNameRequired = errors.New("name is required")

// Query is a normalized, immutable person query. Name is required; the
// remaining fields are optional hints. All comparison-relevant fields are
// trimmed and case-folded at construction time so downstream matching never
// has to re-normalize.
type Query struct {
	Name     string
	City     string
	Username string
	Email    string
	Phone    string
}

// New builds a Query from raw user input. Name and City are trimmed and
// lowercased, Username and Email are lowercased, Phone is only trimmed.
func New(name, city, username, email, phone string) (Query, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Query{}, ErrNameRequired
	}
	return Query{
		Name:     name,
		City:     strings.ToLower(strings.TrimSpace(city)),
		Username: strings.ToLower(strings.TrimSpace(username)),
		Email:    strings.ToLower(strings.TrimSpace(email)),
		Phone:    strings.TrimSpace(phone),
	}, nil
}

// Label returns the human-readable query string recorded on reports:
// the name followed by whichever optional hints were provided.
func (q Query) Label() string {
	parts := []string{q.Name}
	if q.City != "" {
		parts = append(parts, q.City)
	}
	if q.Username != "" {
		parts = append(parts, q.Username)
	}
	return strings.Join(parts, " ")
}
