package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/spigell/hirewire/internal/ai"
	"github.com/spigell/hirewire/internal/logger"
	"github.com/spigell/hirewire/internal/metrics"
	"github.com/spigell/hirewire/internal/records"
	"github.com/spigell/hirewire/internal/utils"
)

const (
	defaultMaxLogLength     = 200
	maxUserInstructionRunes = 600
	maxCVRunes              = 20000

	kindMatch = "match"
	kindCV    = "cv"
)

var ErrInvalidResponse = errors.New("gemini response does not match schema")

var (
	//go:embed prompts/system.md
	systemPrompt string
	//go:embed prompts/match.md
	matchTemplate string
	//go:embed prompts/cv.md
	cvTemplate string
	//go:embed prompts/match.schema.json
	matchSchema string
	//go:embed prompts/cv.schema.json
	cvSchema string
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
	Model() string
}

// PromptOverrides are user preferences appended to every prompt.
type PromptOverrides struct {
	Focus            string
	UserInstructions string
}

// Matcher implements ai.Assistant on top of a Gemini generator.
type Matcher struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
	overrides PromptOverrides

	matchSchema gojsonschema.JSONLoader
	cvSchema    gojsonschema.JSONLoader
}

func NewMatcher(generator contentGenerator, log *zap.Logger, maxLogLength int) *Matcher {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Matcher{
		generator:   generator,
		logger:      logger.WithAI(logger.ForComponent(logger.OrNop(log), "matcher"), "gemini", generator.Model()),
		maxLogLen:   maxLogLength,
		matchSchema: gojsonschema.NewStringLoader(matchSchema),
		cvSchema:    gojsonschema.NewStringLoader(cvSchema),
	}
}

func (m *Matcher) SetPromptOverrides(o PromptOverrides) {
	m.overrides = o
}

type candidatePayload struct {
	Name       string   `json:"name,omitempty"`
	Headline   string   `json:"headline,omitempty"`
	Location   string   `json:"location,omitempty"`
	Skills     []string `json:"skills,omitempty"`
	Experience string   `json:"experience,omitempty"`
	Bio        string   `json:"bio,omitempty"`
}

type listingPayload struct {
	Title        string `json:"title"`
	Company      string `json:"company,omitempty"`
	Location     string `json:"location,omitempty"`
	Compensation string `json:"compensation,omitempty"`
	Description  string `json:"description,omitempty"`
}

func candidateFrom(p records.Profile) candidatePayload {
	return candidatePayload{
		Name:       p.Name,
		Headline:   p.Headline,
		Location:   p.Location,
		Skills:     p.Skills,
		Experience: p.Experience,
		Bio:        p.Bio,
	}
}

func (m *Matcher) AnalyzeMatch(ctx context.Context, candidate records.Profile, listing records.Listing) (*ai.MatchAnalysis, error) {
	candidateJSON, err := json.MarshalIndent(candidateFrom(candidate), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal candidate payload: %w", err)
	}
	listingJSON, err := json.MarshalIndent(listingPayload{
		Title:        listing.Title,
		Company:      listing.Company,
		Location:     listing.Location,
		Compensation: listing.Compensation,
		Description:  listing.Description,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal listing payload: %w", err)
	}

	prompt := m.render(matchTemplate, map[string]string{
		"{{CANDIDATE_JSON}}": string(candidateJSON),
		"{{LISTING_JSON}}":   string(listingJSON),
	})

	log := m.logger.With(zap.String(logger.FieldListingID, listing.ID), zap.String(logger.FieldUserID, candidate.ID))
	raw, err := m.generate(ctx, log, kindMatch, prompt, m.matchSchema)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Score   float64         `json:"score"`
		Reason  string          `json:"reason"`
		Details ai.MatchDetails `json:"details"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	metrics.AIRequests.WithLabelValues(kindMatch, "ok").Inc()
	return &ai.MatchAnalysis{
		Score:  ai.ClampScore(int(math.Round(parsed.Score))),
		Reason: strings.TrimSpace(parsed.Reason),
		Details: ai.MatchDetails{
			Technical:  strings.TrimSpace(parsed.Details.Technical),
			Culture:    strings.TrimSpace(parsed.Details.Culture),
			Experience: strings.TrimSpace(parsed.Details.Experience),
		},
	}, nil
}

func (m *Matcher) ReviewCV(ctx context.Context, candidate records.Profile, cv string) (*ai.CVReview, error) {
	cv = strings.TrimSpace(cv)
	if cv == "" {
		return nil, errors.New("cv text is required")
	}
	if utf8.RuneCountInString(cv) > maxCVRunes {
		cv = string([]rune(cv)[:maxCVRunes])
	}

	candidateJSON, err := json.MarshalIndent(candidateFrom(candidate), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal candidate payload: %w", err)
	}

	prompt := m.render(cvTemplate, map[string]string{
		"{{CANDIDATE_JSON}}": string(candidateJSON),
		"{{CV_TEXT}}":        cv,
	})

	log := m.logger.With(zap.String(logger.FieldUserID, candidate.ID))
	raw, err := m.generate(ctx, log, kindCV, prompt, m.cvSchema)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Score        float64  `json:"score"`
		Summary      string   `json:"summary"`
		Strengths    []string `json:"strengths"`
		Improvements []string `json:"improvements"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	metrics.AIRequests.WithLabelValues(kindCV, "ok").Inc()
	return &ai.CVReview{
		Score:        ai.ClampScore(int(math.Round(parsed.Score))),
		Summary:      strings.TrimSpace(parsed.Summary),
		Strengths:    compact(parsed.Strengths),
		Improvements: compact(parsed.Improvements),
	}, nil
}

// generate sends the prompt and returns the cleaned JSON document once it
// passes the schema.
func (m *Matcher) generate(ctx context.Context, log *zap.Logger, kind, prompt string, schema gojsonschema.JSONLoader) (string, error) {
	log.Debug("gemini generate content request",
		zap.String("kind", kind),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, m.maxLogLen)),
	)

	raw, err := m.generator.GenerateContent(ctx, systemPrompt, prompt)
	if err != nil {
		metrics.AIRequests.WithLabelValues(kind, "failed").Inc()
		return "", err
	}

	log.Debug("gemini generate content response",
		zap.String("kind", kind),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, m.maxLogLen)),
	)

	cleaned := extractJSON(raw)
	if err := validate(schema, cleaned); err != nil {
		metrics.AIRequests.WithLabelValues(kind, "invalid").Inc()
		log.Warn("gemini response rejected", zap.Error(err))
		return "", err
	}
	return cleaned, nil
}

func validate(schema gojsonschema.JSONLoader, document string) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewStringLoader(document))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidResponse, strings.Join(problems, "; "))
}

func (m *Matcher) render(template string, values map[string]string) string {
	prompt := strings.ReplaceAll(template, "{{FOCUS}}", orNone(sanitizeLine(m.overrides.Focus)))
	prompt = strings.ReplaceAll(prompt, "{{USER_INSTRUCTIONS}}", instructionsBlock(m.overrides.UserInstructions))
	for placeholder, value := range values {
		prompt = strings.ReplaceAll(prompt, placeholder, value)
	}
	return prompt
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

// neutralize keeps user text from imitating the bracketed prompt sections.
var neutralize = strings.NewReplacer("[", "(", "]", ")")

// sanitizeLine collapses whitespace, including newlines, into single spaces.
func sanitizeLine(s string) string {
	return neutralize.Replace(strings.Join(strings.Fields(s), " "))
}

// instructionsBlock renders free-form user instructions as an indented list,
// one item per non-empty line, capped at maxUserInstructionRunes.
func instructionsBlock(s string) string {
	budget := maxUserInstructionRunes
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = sanitizeLine(line)
		if line == "" || budget <= 0 {
			continue
		}
		if n := utf8.RuneCountInString(line); n > budget {
			line = string([]rune(line)[:budget])
		}
		budget -= utf8.RuneCountInString(line)
		lines = append(lines, "  - "+line)
	}
	if len(lines) == 0 {
		return "  - none"
	}
	return strings.Join(lines, "\n")
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func compact(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
