package normalize

import (
	"strings"
	"testing"

	"github.com/rastreia-dev/rastreia/pkg/enrich"
	"github.com/rastreia-dev/rastreia/pkg/fetcher"
	"github.com/rastreia-dev/rastreia/pkg/github"
	"github.com/rastreia-dev/rastreia/pkg/query"
	"github.com/rastreia-dev/rastreia/pkg/report"
)

func mustQuery(t *testing.T, name, city, username string) query.Query {
	t.Helper()
	q, err := query.New(name, city, username, "", "")
	if err != nil {
		t.Fatal(err)
	}
	return q
}

func TestScore(t *testing.T) {
	tests := []struct {
		label enrich.ConfidenceLabel
		want  int
	}{
		{"Alta", ScoreHigh},
		{"alta", ScoreHigh},
		{"Média", ScoreMedium},
		{"media", ScoreMedium},
		{"Baixa", ScoreLow},
		{"", ScoreUnknown},
		{"72", ScoreUnknown},
		{"muito alta", ScoreUnknown},
	}
	for _, tt := range tests {
		if got := Score(tt.label); got != tt.want {
			t.Errorf("Score(%q) = %d, want %d", tt.label, got, tt.want)
		}
	}
}

func TestNormalizeTraceability(t *testing.T) {
	q := mustQuery(t, "Maria Silva", "", "")
	outcomes := []fetcher.Outcome{
		{URL: "https://a.example", Succeeded: true, BodyExcerpt: "Maria Silva estudou na Universidade Federal de Pernambuco"},
		{URL: "https://b.example", ErrorKind: fetcher.ErrorHTTP},
	}
	cands := []enrich.Candidate{{
		Name:       "Maria Silva",
		Confidence: "Média",
		Education: []string{
			"Universidade Federal de Pernambuco", // present in a source
			"Harvard University",                 // invented
		},
		Experiences: []string{"Diretora da NASA"}, // invented
	}}

	persons, alerts := Normalize(q, cands, outcomes, nil)
	if len(persons) != 1 {
		t.Fatalf("got %d persons, want 1", len(persons))
	}
	p := persons[0]

	if len(p.Education) != 1 || p.Education[0] != "Universidade Federal de Pernambuco" {
		t.Errorf("Education = %v, want only the traceable claim", p.Education)
	}
	if len(p.Experiences) != 0 {
		t.Errorf("Experiences = %v, want invented claim dropped", p.Experiences)
	}

	found := false
	for _, a := range alerts {
		if strings.Contains(a, "descartadas") {
			found = true
		}
	}
	if !found {
		t.Errorf("alerts = %v, want a dropped-claims alert", alerts)
	}
}

func TestNormalizeDenyList(t *testing.T) {
	q := mustQuery(t, "Maria Silva", "", "")
	outcomes := []fetcher.Outcome{
		{URL: "https://a.example", Succeeded: true, BodyExcerpt: "Maria Silva, engenheira em Recife"},
	}
	cands := []enrich.Candidate{{
		Name:       "Maria Silva",
		Username:   "não informado",
		Location:   "N/A",
		Summary:    "desconhecido",
		Confidence: "Baixa",
		Education:  []string{"não encontrado"},
	}}

	persons, _ := Normalize(q, cands, outcomes, nil)
	if len(persons) != 1 {
		t.Fatalf("got %d persons, want 1", len(persons))
	}
	p := persons[0]
	if p.Username != "" || p.Location != "" || p.Summary != "" {
		t.Errorf("placeholder fields survived: %+v", p)
	}
	if len(p.Education) != 0 {
		t.Errorf("Education = %v, want placeholders dropped", p.Education)
	}
}

func TestNormalizeDropsPlaceholderPerson(t *testing.T) {
	q := mustQuery(t, "Maria Silva", "", "")
	cands := []enrich.Candidate{{Name: "não encontrado", Confidence: "Baixa"}}
	persons, _ := Normalize(q, cands, nil, nil)
	if len(persons) != 0 {
		t.Errorf("got %d persons, want placeholder person dropped", len(persons))
	}
}

func TestNormalizeUncorroboratedCeiling(t *testing.T) {
	q := mustQuery(t, "Maria Silva", "recife", "")
	outcomes := []fetcher.Outcome{
		{URL: "https://a.example", Succeeded: true, BodyExcerpt: "alguma página qualquer"},
	}
	// High label, but nothing structured backs it: no username, wrong city,
	// no traceable claims.
	cands := []enrich.Candidate{{
		Name:       "Maria Silva",
		Location:   "Manaus",
		Confidence: "Alta",
	}}

	persons, alerts := Normalize(q, cands, outcomes, nil)
	if persons[0].ConfidenceScore != UncorroboratedCeiling {
		t.Errorf("ConfidenceScore = %d, want clamped to %d", persons[0].ConfidenceScore, UncorroboratedCeiling)
	}
	found := false
	for _, a := range alerts {
		if strings.Contains(a, "confiança") {
			found = true
		}
	}
	if !found {
		t.Errorf("alerts = %v, want a confidence-clamp alert", alerts)
	}
}

func TestNormalizeEchoedFailedURLDoesNotCorroborate(t *testing.T) {
	q := mustQuery(t, "Ana Silva", "", "")
	// The prompt lists failed URLs too, so the model can echo one back.
	outcomes := []fetcher.Outcome{
		{URL: "https://twitter.com/search?q=ana+silva", ErrorKind: fetcher.ErrorTimeout},
	}
	cands := []enrich.Candidate{{
		Name:        "Ana Silva",
		Confidence:  "Alta",
		ProfileURLs: []string{"https://twitter.com/search?q=ana+silva"},
	}}

	persons, _ := Normalize(q, cands, outcomes, nil)
	if len(persons) != 1 {
		t.Fatalf("got %d persons, want 1", len(persons))
	}
	if got := persons[0].ConfidenceScore; got != UncorroboratedCeiling {
		t.Errorf("ConfidenceScore = %d, want clamped to %d", got, UncorroboratedCeiling)
	}
}

func TestNormalizeInventedGitHubURLDoesNotCorroborate(t *testing.T) {
	q := mustQuery(t, "Ana Silva", "", "")
	cands := []enrich.Candidate{{
		Name:        "Ana Silva",
		Confidence:  "Alta",
		ProfileURLs: []string{"https://github.com/completely-invented"},
	}}

	persons, _ := Normalize(q, cands, nil, nil)
	if len(persons) != 1 {
		t.Fatalf("got %d persons, want 1", len(persons))
	}
	if got := persons[0].ConfidenceScore; got != UncorroboratedCeiling {
		t.Errorf("ConfidenceScore = %d, want clamped to %d", got, UncorroboratedCeiling)
	}
}

func TestNormalizeSucceededProfileURLCorroborates(t *testing.T) {
	q := mustQuery(t, "Ana Silva", "", "")
	outcomes := []fetcher.Outcome{
		{URL: "https://linkedin.com/in/anasilva", Succeeded: true, BodyExcerpt: "Ana Silva, engenheira"},
	}
	cands := []enrich.Candidate{{
		Name:        "Ana Silva",
		Confidence:  "Alta",
		ProfileURLs: []string{"https://linkedin.com/in/anasilva"},
	}}

	persons, _ := Normalize(q, cands, outcomes, nil)
	if got := persons[0].ConfidenceScore; got != ScoreHigh {
		t.Errorf("ConfidenceScore = %d, want %d", got, ScoreHigh)
	}
}

func TestNormalizeCorroboratedKeepsScore(t *testing.T) {
	q := mustQuery(t, "Maria Silva", "recife", "mariasilva")
	outcomes := []fetcher.Outcome{
		{URL: "https://a.example", Succeeded: true, BodyExcerpt: "Maria Silva mora em Recife"},
	}
	cands := []enrich.Candidate{{
		Name:       "Maria Silva",
		Username:   "mariasilva",
		Location:   "Recife, PE",
		Confidence: "Alta",
	}}

	persons, _ := Normalize(q, cands, outcomes, nil)
	if persons[0].ConfidenceScore != ScoreHigh {
		t.Errorf("ConfidenceScore = %d, want %d", persons[0].ConfidenceScore, ScoreHigh)
	}
}

func TestNormalizeVerifiedGitHubFloor(t *testing.T) {
	q := mustQuery(t, "Maria Silva", "", "mariasilva")
	gh := &github.User{Login: "mariasilva", Name: "Maria Silva"}
	outcomes := []fetcher.Outcome{
		{URL: "https://api.github.com/users/mariasilva", Succeeded: true, BodyExcerpt: `{"login":"mariasilva"}`},
	}
	cands := []enrich.Candidate{{
		Name:       "Maria Silva",
		Username:   "mariasilva",
		Confidence: "Baixa",
	}}

	persons, _ := Normalize(q, cands, outcomes, gh)
	if persons[0].ConfidenceScore != report.VerifiedConfidence {
		t.Errorf("ConfidenceScore = %d, want floor %d", persons[0].ConfidenceScore, report.VerifiedConfidence)
	}
}

func TestGroupMergesOnUsername(t *testing.T) {
	q := mustQuery(t, "Maria Silva", "", "mariasilva")
	outcomes := []fetcher.Outcome{
		{URL: "https://a.example", Succeeded: true, BodyExcerpt: "Maria Silva engenheira"},
	}
	cands := []enrich.Candidate{
		{Name: "Maria Silva", Username: "mariasilva", Confidence: "Média"},
		{Name: "Maria S.", Username: "mariasilva", Confidence: "Baixa"},
	}

	persons, _ := Normalize(q, cands, outcomes, nil)
	if len(persons) != 1 {
		t.Fatalf("got %d persons, want merged into 1", len(persons))
	}
	p := persons[0]
	if len(p.GroupingEvidence) == 0 || !strings.Contains(p.GroupingEvidence[0], "mariasilva") {
		t.Errorf("GroupingEvidence = %v, want username evidence", p.GroupingEvidence)
	}
	if p.ConfidenceScore != ScoreMedium {
		t.Errorf("ConfidenceScore = %d, want the higher of the pair", p.ConfidenceScore)
	}
}

func TestGroupKeepsNameOnlyMatchesApart(t *testing.T) {
	q := mustQuery(t, "Maria Silva", "", "")
	outcomes := []fetcher.Outcome{
		{URL: "https://a.example", Succeeded: true, BodyExcerpt: "Maria Silva"},
	}
	cands := []enrich.Candidate{
		{Name: "Maria Silva", Username: "maria1", Confidence: "Baixa"},
		{Name: "Maria Silva", Username: "maria2", Confidence: "Baixa"},
	}

	persons, _ := Normalize(q, cands, outcomes, nil)
	if len(persons) != 2 {
		t.Fatalf("got %d persons, want homonyms kept apart", len(persons))
	}
	for _, p := range persons {
		found := false
		for _, e := range p.GroupingEvidence {
			if strings.Contains(e, "não confirmada") {
				found = true
			}
		}
		if !found {
			t.Errorf("person %s evidence = %v, want unconfirmed-match note", p.Username, p.GroupingEvidence)
		}
	}
}
