// Package report defines the search report shape and assembles final
// reports from normalized persons and fetch outcomes. Assembly is total: it
// never fails, and a search with zero usable content still yields a report
// that says so out loud.
package report

import (
	"fmt"
	"time"

	"github.com/rastreia-dev/rastreia/pkg/fetcher"
	"github.com/rastreia-dev/rastreia/pkg/github"
	"github.com/rastreia-dev/rastreia/pkg/query"
	"github.com/rastreia-dev/rastreia/pkg/sources"
)

// SearchResult is one source link in the report. RelevanceScore is nil for
// links that merely targeted a platform; only verified matches carry one.
type SearchResult struct {
	RelevanceScore *int   `json:"relevanceScore,omitempty"`
	Platform       string `json:"platform"`
	URL            string `json:"url"`
	Name           string `json:"name,omitempty"`
	Description    string `json:"description,omitempty"`
}

// PersonProfile is one distinct person hypothesis in the report.
type PersonProfile struct {
	Name             string   `json:"name"`
	Username         string   `json:"username,omitempty"`
	Location         string   `json:"location,omitempty"`
	Summary          string   `json:"summary"`
	Education        []string `json:"education"`
	Experiences      []string `json:"experiences"`
	SourceProfiles   []string `json:"sourceProfiles"`
	GroupingEvidence []string `json:"groupingEvidence,omitempty"`
	ConfidenceScore  int      `json:"confidenceScore"`
}

// Report is the final product of a search.
type Report struct {
	Timestamp               time.Time       `json:"timestamp"`
	Summary                 string          `json:"summary"`
	SearchQuery             string          `json:"searchQuery"`
	Persons                 []PersonProfile `json:"persons"`
	RawLinks                []SearchResult  `json:"rawLinks"`
	Alerts                  []string        `json:"alerts"`
	TotalSourcesWithContent int             `json:"totalSourcesWithContent"`
}

// FallbackConfidence is the score assigned when no content could be
// analyzed. Low by design: a fallback profile asserts almost nothing.
const FallbackConfidence = 15

// Assemble builds the final report. Alerts collected during the pipeline
// pass through unchanged; assembly appends its own coverage alerts after
// them.
func Assemble(q query.Query, descs []sources.Descriptor, outcomes []fetcher.Outcome, persons []PersonProfile, summary string, alerts []string) *Report {
	succeeded := 0
	for _, o := range outcomes {
		if o.Succeeded {
			succeeded++
		}
	}

	all := make([]string, 0, len(alerts)+2)
	all = append(all, alerts...)
	all = append(all, fmt.Sprintf("%d/%d fontes retornaram conteúdo", succeeded, len(outcomes)))
	if succeeded == 0 && len(outcomes) > 0 {
		all = append(all, "CRÍTICO: nenhuma fonte retornou conteúdo; o relatório não contém dados verificados")
	}

	return &Report{
		Summary:                 summary,
		SearchQuery:             q.Label(),
		TotalSourcesWithContent: succeeded,
		Persons:                 persons,
		RawLinks:                RawLinks(descs, outcomes),
		Alerts:                  all,
		Timestamp:               time.Now().UTC(),
	}
}

// RawLinks converts descriptors to report links, deduplicating by URL while
// preserving first-seen order. When a descriptor's fetch succeeded and the
// page carried a title or meta description, the link shows them instead of
// the generic placeholder.
func RawLinks(descs []sources.Descriptor, outcomes []fetcher.Outcome) []SearchResult {
	fetched := make(map[string]fetcher.Outcome, len(outcomes))
	for _, o := range outcomes {
		if o.Succeeded {
			fetched[o.URL] = o
		}
	}

	seen := make(map[string]bool, len(descs))
	links := make([]SearchResult, 0, len(descs))
	for _, d := range descs {
		if seen[d.URL] {
			continue
		}
		seen[d.URL] = true
		link := SearchResult{
			Platform:    d.Platform,
			URL:         d.URL,
			Description: fmt.Sprintf("Busca em %s", d.Platform),
		}
		o, ok := fetched[d.URL]
		if !ok {
			o, ok = fetched[d.FetchURL]
		}
		if ok {
			link.Name = o.Title
			if o.Description != "" {
				link.Description = o.Description
			}
		}
		links = append(links, link)
	}
	return links
}

// VerifiedConfidence is the score for a profile corroborated by structured
// data from a verified account.
const VerifiedConfidence = 85

// Fallback produces the degraded report used when enrichment yields nothing
// usable. It contains the queried identifiers, every source link, and an
// honest explanation; never synthesized biography. A verified GitHub user,
// when one was parsed out of the fetch outcomes, is the sole exception: its
// structured facts are real data and carry real confidence.
func Fallback(q query.Query, descs []sources.Descriptor, outcomes []fetcher.Outcome, reason string, gh *github.User) *Report {
	person := PersonProfile{
		Name:            q.Name,
		Username:        q.Username,
		Location:        q.City,
		ConfidenceScore: FallbackConfidence,
		Summary: fmt.Sprintf(
			"Não foi possível analisar conteúdo sobre %q. Os links abaixo foram gerados a partir dos dados informados e precisam de verificação manual.",
			q.Name),
		Education:      []string{},
		Experiences:    []string{},
		SourceProfiles: []string{},
	}

	succeeded := 0
	for _, o := range outcomes {
		if o.Succeeded {
			succeeded++
		}
	}
	summary := fmt.Sprintf(
		"Busca por %q concluída sem análise de conteúdo: %s. %d de %d fontes consultadas retornaram algum conteúdo.",
		q.Name, reason, succeeded, len(outcomes))
	alerts := []string{
		"Relatório de contingência: nenhum dado foi extraído de fontes",
		"Motivo: " + reason,
	}

	if gh != nil {
		person.Username = gh.Login
		if gh.Location != "" {
			person.Location = gh.Location
		}
		person.Summary = gh.Summary()
		person.ConfidenceScore = VerifiedConfidence
		person.SourceProfiles = []string{githubProfileURL(gh)}
		alerts = append(alerts, "Conta GitHub verificada encontrada; demais fontes não foram analisadas")
	}

	rep := Assemble(q, descs, outcomes, []PersonProfile{person}, summary, alerts)
	if gh != nil {
		markVerifiedGitHub(rep, gh)
	}
	return rep
}

func githubProfileURL(gh *github.User) string {
	if gh.HTMLURL != "" {
		return gh.HTMLURL
	}
	return "https://github.com/" + gh.Login
}

// markVerifiedGitHub upgrades the GitHub link in RawLinks with the verified
// account's name and a full relevance score.
func markVerifiedGitHub(rep *Report, gh *github.User) {
	score := 100
	for i := range rep.RawLinks {
		if !github.Match(rep.RawLinks[i].URL) {
			continue
		}
		rep.RawLinks[i].Name = gh.Name
		rep.RawLinks[i].RelevanceScore = &score
		rep.RawLinks[i].Description = "Perfil GitHub verificado"
		return
	}
}
