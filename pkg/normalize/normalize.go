// Package normalize validates model-reported candidates against what was
// actually fetched. The model is treated as an untrusted narrator: every
// claim it makes must trace back to retrieved content or be dropped, and
// confidence labels are clamped by the evidence that survives.
package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rastreia-dev/rastreia/pkg/enrich"
	"github.com/rastreia-dev/rastreia/pkg/fetcher"
	"github.com/rastreia-dev/rastreia/pkg/github"
	"github.com/rastreia-dev/rastreia/pkg/query"
	"github.com/rastreia-dev/rastreia/pkg/report"
)

// Confidence scores by label. Anything unrecognized scores below Baixa:
// a model that cannot even answer the label question earns no trust.
const (
	ScoreHigh    = 85
	ScoreMedium  = 60
	ScoreLow     = 30
	ScoreUnknown = 20
)

// UncorroboratedCeiling caps candidates that carry no structured field
// matching the query, whatever label the model chose.
const UncorroboratedCeiling = ScoreLow

// denyList holds placeholder phrases models emit instead of leaving fields
// empty. Any field equal to one of these is treated as empty.
var denyList = []string{
	"não informado",
	"nao informado",
	"não disponível",
	"nao disponivel",
	"não encontrado",
	"nao encontrado",
	"informação não disponível",
	"sem informação",
	"sem informações",
	"desconhecido",
	"desconhecida",
	"n/a",
	"none",
	"unknown",
	"not available",
	"not found",
	"-",
}

// Score maps a confidence label to its numeric score.
func Score(label enrich.ConfidenceLabel) int {
	switch strings.ToLower(strings.TrimSpace(string(label))) {
	case "alta", "high":
		return ScoreHigh
	case "média", "media", "medium":
		return ScoreMedium
	case "baixa", "low":
		return ScoreLow
	default:
		return ScoreUnknown
	}
}

func denied(s string) bool {
	t := strings.ToLower(strings.TrimSpace(s))
	if t == "" {
		return true
	}
	for _, d := range denyList {
		if t == d {
			return true
		}
	}
	return false
}

var spaceRegex = regexp.MustCompile(`\s+`)

func canon(s string) string {
	return spaceRegex.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}

// corpus is the concatenated text of succeeded outcomes, canonicalized for
// substring checks. urls maps every consulted URL to whether its fetch
// actually returned content.
type corpus struct {
	texts []string
	urls  map[string]bool
}

func buildCorpus(outcomes []fetcher.Outcome) *corpus {
	c := &corpus{urls: make(map[string]bool, len(outcomes))}
	for _, o := range outcomes {
		key := strings.TrimSuffix(o.URL, "/")
		c.urls[key] = c.urls[key] || o.Succeeded
		if o.Succeeded && o.BodyExcerpt != "" {
			c.texts = append(c.texts, canon(o.BodyExcerpt))
		}
	}
	return c
}

// traceable reports whether the claim appears in at least one succeeded
// source body.
func (c *corpus) traceable(claim string) bool {
	needle := canon(claim)
	if needle == "" {
		return false
	}
	for _, t := range c.texts {
		if strings.Contains(t, needle) {
			return true
		}
	}
	return false
}

func (c *corpus) knownURL(rawURL string) bool {
	_, ok := c.urls[urlKey(rawURL)]
	return ok
}

// succeededURL reports whether the URL was consulted and its fetch returned
// content. The prompt shows the model every consulted URL, including the
// failed ones, so merely echoing a known URL back is not evidence.
func (c *corpus) succeededURL(rawURL string) bool {
	return c.urls[urlKey(rawURL)]
}

func urlKey(rawURL string) string {
	return strings.TrimSuffix(strings.TrimSpace(rawURL), "/")
}

// Normalize validates candidates and converts them into report profiles.
// It also returns alerts describing what validation removed.
func Normalize(q query.Query, cands []enrich.Candidate, outcomes []fetcher.Outcome, gh *github.User) ([]report.PersonProfile, []string) {
	corp := buildCorpus(outcomes)
	var alerts []string
	var persons []report.PersonProfile

	for _, cand := range cands {
		p, dropped := normalizeOne(q, cand, corp, gh)
		if p == nil {
			continue
		}
		alerts = append(alerts, dropped...)
		persons = append(persons, *p)
	}

	persons, groupAlerts := group(persons)
	alerts = append(alerts, groupAlerts...)
	return persons, alerts
}

func normalizeOne(q query.Query, cand enrich.Candidate, corp *corpus, gh *github.User) (*report.PersonProfile, []string) {
	if denied(cand.Name) {
		return nil, nil
	}

	p := report.PersonProfile{
		Name:        strings.TrimSpace(cand.Name),
		Education:   []string{},
		Experiences: []string{},
	}
	var alerts []string

	if !denied(cand.Username) {
		p.Username = strings.TrimSpace(cand.Username)
	}
	if !denied(cand.Location) {
		p.Location = strings.TrimSpace(cand.Location)
	}
	if !denied(cand.Summary) {
		p.Summary = strings.TrimSpace(cand.Summary)
	}

	var droppedClaims int
	for _, e := range cand.Education {
		if denied(e) {
			continue
		}
		if !corp.traceable(e) {
			droppedClaims++
			continue
		}
		p.Education = append(p.Education, strings.TrimSpace(e))
	}
	for _, e := range cand.Experiences {
		if denied(e) {
			continue
		}
		if !corp.traceable(e) {
			droppedClaims++
			continue
		}
		p.Experiences = append(p.Experiences, strings.TrimSpace(e))
	}
	if droppedClaims > 0 {
		alerts = append(alerts, fmt.Sprintf(
			"%d afirmações sobre %q foram descartadas por não constarem das fontes", droppedClaims, p.Name))
	}

	p.SourceProfiles = []string{}
	profileEvidence := false
	for _, u := range cand.ProfileURLs {
		if denied(u) {
			continue
		}
		if !corp.knownURL(u) && !github.Match(u) {
			continue
		}
		p.SourceProfiles = append(p.SourceProfiles, strings.TrimSpace(u))
		if corp.succeededURL(u) {
			profileEvidence = true
		}
	}

	verified := verifiedMatch(gh, &p)
	p.ConfidenceScore = Score(cand.Confidence)
	if !corroborated(q, &p, profileEvidence || verified) && p.ConfidenceScore > UncorroboratedCeiling {
		p.ConfidenceScore = UncorroboratedCeiling
		alerts = append(alerts, fmt.Sprintf(
			"confiança de %q reduzida: nenhum dado estruturado corrobora a identificação", p.Name))
	}

	if verified && p.ConfidenceScore < report.VerifiedConfidence {
		p.ConfidenceScore = report.VerifiedConfidence
	}

	return &p, alerts
}

// corroborated checks whether any structured field ties the candidate to
// the query beyond its bare name: a username match, a city match, a claim
// that survived traceability, or profileEvidence (a profile URL whose fetch
// returned content, or a verified account match). Profile URLs pointing at
// failed fetches, and unverified github.com links, never corroborate: the
// model can produce both without having seen anything.
func corroborated(q query.Query, p *report.PersonProfile, profileEvidence bool) bool {
	if profileEvidence {
		return true
	}
	if q.Username != "" && strings.EqualFold(p.Username, q.Username) {
		return true
	}
	if q.City != "" && p.Location != "" &&
		strings.Contains(strings.ToLower(p.Location), strings.ToLower(q.City)) {
		return true
	}
	return len(p.Education) > 0 || len(p.Experiences) > 0
}

func verifiedMatch(gh *github.User, p *report.PersonProfile) bool {
	if gh == nil {
		return false
	}
	if strings.EqualFold(p.Username, gh.Login) {
		return true
	}
	for _, u := range p.SourceProfiles {
		if github.Username(u) == strings.ToLower(gh.Login) {
			return true
		}
	}
	return false
}

// group merges profiles that share a username or a source profile URL.
// Profiles related only by name stay separate, flagged as unconfirmed.
func group(persons []report.PersonProfile) ([]report.PersonProfile, []string) {
	var out []report.PersonProfile
	var alerts []string

	for _, p := range persons {
		merged := false
		for i := range out {
			evidence := mergeEvidence(&out[i], &p)
			if evidence == "" {
				continue
			}
			merge(&out[i], &p, evidence)
			merged = true
			break
		}
		if !merged {
			out = append(out, p)
		}
	}

	if len(out) > 1 {
		byName := make(map[string]int, len(out))
		for i := range out {
			byName[canon(out[i].Name)]++
		}
		for i := range out {
			if byName[canon(out[i].Name)] > 1 {
				out[i].GroupingEvidence = append(out[i].GroupingEvidence,
					"coincidência apenas de nome, não confirmada")
			}
		}
		if dup := len(persons) - len(out); dup == 0 {
			alerts = append(alerts, fmt.Sprintf(
				"%d pessoas distintas encontradas; homônimos não foram mesclados", len(out)))
		}
	}
	return out, alerts
}

// mergeEvidence returns a human-readable reason two profiles are the same
// person, or empty when no structured field links them.
func mergeEvidence(a, b *report.PersonProfile) string {
	if a.Username != "" && strings.EqualFold(a.Username, b.Username) {
		return fmt.Sprintf("mesmo username %q", a.Username)
	}
	for _, ua := range a.SourceProfiles {
		for _, ub := range b.SourceProfiles {
			if strings.EqualFold(strings.TrimSuffix(ua, "/"), strings.TrimSuffix(ub, "/")) {
				return fmt.Sprintf("mesmo perfil %s", ua)
			}
		}
	}
	return ""
}

func merge(dst, src *report.PersonProfile, evidence string) {
	if dst.Username == "" {
		dst.Username = src.Username
	}
	if dst.Location == "" {
		dst.Location = src.Location
	}
	if dst.Summary == "" {
		dst.Summary = src.Summary
	}
	dst.Education = appendUnique(dst.Education, src.Education)
	dst.Experiences = appendUnique(dst.Experiences, src.Experiences)
	dst.SourceProfiles = appendUnique(dst.SourceProfiles, src.SourceProfiles)
	if src.ConfidenceScore > dst.ConfidenceScore {
		dst.ConfidenceScore = src.ConfidenceScore
	}
	dst.GroupingEvidence = append(dst.GroupingEvidence, evidence)
}

func appendUnique(dst, src []string) []string {
	seen := make(map[string]bool, len(dst))
	for _, s := range dst {
		seen[canon(s)] = true
	}
	for _, s := range src {
		if !seen[canon(s)] {
			seen[canon(s)] = true
			dst = append(dst, s)
		}
	}
	return dst
}
