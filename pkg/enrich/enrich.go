// Package enrich turns fetched source excerpts into structured candidate
// profiles using a language model. The model only ever sees text that was
// actually retrieved; when it cannot be reached or answers garbage, callers
// get a sentinel error and fall back to a degraded report.
package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/rastreia-dev/rastreia/pkg/fetcher"
	"github.com/rastreia-dev/rastreia/pkg/query"
)

// Sentinel errors distinguish "the model never answered" from "the model
// answered something unusable". Both degrade to a fallback report.
var (
	ErrCall       = errors.New("enrichment call failed")
	ErrUnparsable = errors.New("enrichment response unparsable")
)

const (
	defaultTemperature = 0.2
	defaultMaxTokens   = 4096
	// maxExcerpt bounds how much of each source body goes into the prompt.
	maxExcerpt = 2000
)

// Candidate is one person hypothesis as the model reported it. Confidence
// arrives as a label (Alta, Média, Baixa); mapping to a score happens in
// normalization.
type Candidate struct {
	Name        string          `json:"nome"`
	Username    string          `json:"username"`
	Confidence  ConfidenceLabel `json:"confianca"`
	Location    string          `json:"localizacao"`
	Summary     string          `json:"resumo"`
	Education   []string        `json:"formacao"`
	Experiences []string        `json:"experiencias"`
	ProfileURLs []string        `json:"perfis"`
}

// Result is the decoded enrichment payload. Summary is the model's own
// overview of the search; callers prefer it when non-empty and compose one
// from Notes otherwise.
type Result struct {
	Persons []Candidate `json:"pessoas"`
	Alerts  []string    `json:"alertas"`
	Summary string      `json:"resumo_geral"`
	Notes   string      `json:"observacoes"`
}

// ConfidenceLabel tolerates models answering either a label string or a
// bare number where a label was requested.
type ConfidenceLabel string

// UnmarshalJSON accepts strings and numbers.
func (c *ConfidenceLabel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = ConfidenceLabel(s)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*c = ConfidenceLabel(strconv.FormatFloat(n, 'f', -1, 64))
		return nil
	}
	return fmt.Errorf("confidence label: unsupported JSON value %s", string(data))
}

// Adapter sends excerpts to a model and decodes its answer.
type Adapter struct {
	model  llms.Model
	logger *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) { a.logger = logger }
}

// New creates an Adapter around a model.
func New(model llms.Model, opts ...Option) *Adapter {
	a := &Adapter{model: model, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

const systemPrompt = `Você é um analista OSINT. Receberá trechos de páginas públicas retornados por uma busca sobre uma pessoa. Analise SOMENTE o conteúdo fornecido.

Regras estritas:
- Nunca invente dados. Se um campo não aparece nos trechos, deixe-o vazio.
- Não presuma que menções com o mesmo nome são a mesma pessoa.
- Formação e experiências devem ser citações ou paráfrases diretas dos trechos.
- Responda em JSON puro, sem markdown, no formato:
{"pessoas":[{"nome":"","username":"","confianca":"Alta|Média|Baixa","localizacao":"","resumo":"","formacao":[],"experiencias":[],"perfis":[]}],"alertas":[],"resumo_geral":"","observacoes":""}
- "resumo_geral" é um parágrafo curto resumindo o que a busca encontrou.
- "confianca" Alta exige dados estruturados corroborando (perfil verificado, mesma cidade e username). Média exige ao menos dois trechos coerentes. Caso contrário, Baixa.`

// Analyze asks the model to extract candidate persons from the succeeded
// outcomes. Failed outcomes are summarized for the model as context, but
// their absence of content is made explicit.
func (a *Adapter) Analyze(ctx context.Context, q query.Query, outcomes []fetcher.Outcome) (*Result, error) {
	prompt := buildPrompt(q, outcomes)

	a.logger.DebugContext(ctx, "enrichment request", "prompt_len", len(prompt))

	resp, err := a.model.GenerateContent(ctx,
		[]llms.MessageContent{
			llms.TextParts("system", systemPrompt),
			llms.TextParts("human", prompt),
		},
		llms.WithTemperature(defaultTemperature),
		llms.WithMaxTokens(defaultMaxTokens),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCall, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: model returned no choices", ErrUnparsable)
	}

	result, err := Decode(resp.Choices[0].Content)
	if err != nil {
		a.logger.WarnContext(ctx, "enrichment response rejected", "error", err)
		return nil, err
	}
	return result, nil
}

func buildPrompt(q query.Query, outcomes []fetcher.Outcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Pessoa pesquisada: %s\n", q.Name)
	if q.City != "" {
		fmt.Fprintf(&b, "Cidade informada: %s\n", q.City)
	}
	if q.Username != "" {
		fmt.Fprintf(&b, "Username informado: %s\n", q.Username)
	}
	b.WriteString("\nFontes consultadas:\n")

	for _, o := range outcomes {
		if !o.Succeeded {
			fmt.Fprintf(&b, "\n--- %s (%s)\nSEM CONTEÚDO: %s\n", o.Platform, o.URL, o.ErrorKind)
			continue
		}
		excerpt := o.BodyExcerpt
		if r := []rune(excerpt); len(r) > maxExcerpt {
			excerpt = string(r[:maxExcerpt])
		}
		fmt.Fprintf(&b, "\n--- %s (%s)\n%s\n", o.Platform, o.URL, excerpt)
	}
	return b.String()
}

// fenceRegex strips a markdown code fence the model may have wrapped the
// JSON in despite instructions.
var fenceRegex = regexp.MustCompile("(?s)^\\s*```(?:json)?\\s*(.*?)\\s*```\\s*$")

// Decode parses a model response into a Result, tolerating markdown fences.
func Decode(raw string) (*Result, error) {
	cleaned := strings.TrimSpace(raw)
	if m := fenceRegex.FindStringSubmatch(cleaned); m != nil {
		cleaned = m[1]
	}

	var result Result
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnparsable, err)
	}
	if result.Persons == nil {
		result.Persons = []Candidate{}
	}
	return &result, nil
}
