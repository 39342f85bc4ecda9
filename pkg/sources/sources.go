// Package sources turns a person query into the fixed, ordered list of
// candidate URLs a search will attempt. Building the list is pure and
// deterministic: the same query always yields the same descriptors in the
// same catalog order, which keeps downstream deduplication and display
// order reproducible.
package sources

import (
	"net/url"
	"strings"

	"github.com/rastreia-dev/rastreia/pkg/query"
)

// Category classifies what kind of site a source is.
type Category string

// Known source categories.
const (
	Professional Category = "professional"
	Academic     Category = "academic"
	Social       Category = "social"
	Development  Category = "development"
	Content      Category = "content"
	Legal        Category = "legal"
	Public       Category = "public"
	General      Category = "general"
)

// Descriptor is one candidate URL, not yet fetched. URL is the link shown to
// users; FetchURL is what the fetcher actually requests (they differ only
// when a platform exposes a structured API next to its HTML profile pages).
type Descriptor struct {
	Platform string   `json:"platform"`
	Category Category `json:"category"`
	URL      string   `json:"url"`
	FetchURL string   `json:"-"`
}

// Entry is one catalog row. Templates may reference {name}, {nameCompact}
// (spaces removed), {city} and {username}; every value is percent-encoded
// before interpolation.
//
// Platforms whose URL is a direct profile path need a username: when the
// query has none, the entry is skipped unless SearchTemplate provides a
// search-URL variant to fall back to. CitySuffix, when set, is appended to
// the expanded URL only for queries that carry a city; RequiresCity drops
// the entry entirely for queries that don't.
type Entry struct {
	Platform       string   `json:"platform"`
	Category       Category `json:"category"`
	URLTemplate    string   `json:"urlTemplate"`
	SearchTemplate string   `json:"searchTemplate,omitempty"`
	FetchTemplate  string   `json:"fetchTemplate,omitempty"`
	CitySuffix     string   `json:"citySuffix,omitempty"`
	NeedsUsername  bool     `json:"needsUsername,omitempty"`
	RequiresCity   bool     `json:"requiresCity,omitempty"`
}

// Catalog is an ordered list of catalog entries. The zero value is unusable;
// use Default or Load.
type Catalog []Entry

// Build expands the catalog against a query. No I/O, no error conditions:
// inputs are validated upstream and entries that cannot be expanded for this
// query are skipped.
func (c Catalog) Build(q query.Query) []Descriptor {
	descriptors := make([]Descriptor, 0, len(c))
	for _, e := range c {
		template := e.URLTemplate
		fetchTemplate := e.FetchTemplate
		if e.NeedsUsername && q.Username == "" {
			if e.SearchTemplate == "" {
				continue
			}
			template = e.SearchTemplate
			fetchTemplate = ""
		}
		if e.RequiresCity && q.City == "" {
			continue
		}

		u := expand(template, q)
		if e.CitySuffix != "" && q.City != "" {
			u += expand(e.CitySuffix, q)
		}

		d := Descriptor{
			Platform: e.Platform,
			Category: e.Category,
			URL:      u,
			FetchURL: u,
		}
		if fetchTemplate != "" {
			d.FetchURL = expand(fetchTemplate, q)
		}
		descriptors = append(descriptors, d)
	}
	return descriptors
}

func expand(template string, q query.Query) string {
	r := strings.NewReplacer(
		"{name}", url.QueryEscape(q.Name),
		"{nameCompact}", url.QueryEscape(strings.ReplaceAll(q.Name, " ", "")),
		"{city}", url.QueryEscape(q.City),
		"{username}", url.PathEscape(q.Username),
	)
	return r.Replace(template)
}
