package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/hupe1980/chatgraph/core"
	"github.com/hupe1980/chatgraph/faq"
	"github.com/hupe1980/chatgraph/graph"
	"github.com/hupe1980/chatgraph/model"
)

// The three gates of the validation pipeline. Each has a fixed input/output
// contract; the internal logic is fully replaceable at construction time.
// Gate errors are never fatal: the pipeline logs them and records a
// permissive result, so validation failures surface as data, not as errors.

// SourceValidator estimates whether the answer is supported by the retrieved
// snippets.
type SourceValidator interface {
	ValidateSources(ctx context.Context, assistantText string, sources []core.Source) (SourceValidation, error)
}

// ToneValidator may rewrite the answer; the returned text replaces the
// original when they differ.
type ToneValidator interface {
	ValidateTone(ctx context.Context, assistantText string) (string, ToneValidation, error)
}

// OutputGuard is the final safety scan; it may replace the answer with a
// fixed fallback.
type OutputGuard interface {
	GuardOutput(ctx context.Context, assistantText string) (string, OutputGuardrail, error)
}

// validateSources runs the groundedness gate. Answers without sources pass
// unconditionally (direct answers have nothing to check against).
func (p *pipeline) validateSources(ctx context.Context, state graph.State) (graph.State, error) {
	text := stateString(state, KeyAssistantText)
	sources := stateSources(state, KeyUniqueSources)

	if len(sources) == 0 {
		return graph.State{KeySourceValidation: SourceValidation{Grounded: true, Confidence: 1.0}}, nil
	}

	result, err := p.sourceValidator.ValidateSources(ctx, text, sources)
	if err != nil {
		p.logger.Warn("source validation failed", "node", NodeValidateSources, "error", err)
		result = SourceValidation{Grounded: true, Confidence: 0.0}
	}

	p.logger.Info("sources validated",
		"node", NodeValidateSources,
		"grounded", result.Grounded,
		"issues", len(result.Issues),
		"confidence", result.Confidence)

	return graph.State{KeySourceValidation: result}, nil
}

// validateTone runs the tone gate and swaps in the rewritten answer when one
// is produced.
func (p *pipeline) validateTone(ctx context.Context, state graph.State) (graph.State, error) {
	text := stateString(state, KeyAssistantText)

	rewritten, result, err := p.toneValidator.ValidateTone(ctx, text)
	if err != nil {
		p.logger.Warn("tone validation failed", "node", NodeValidateTone, "error", err)
		return graph.State{KeyToneValidation: ToneValidation{Appropriate: true}}, nil
	}

	update := graph.State{KeyToneValidation: result}
	if !result.Appropriate {
		update[KeyAssistantText] = rewritten
		p.logger.Info("tone adjusted",
			"node", NodeValidateTone, "adjustments", len(result.Adjustments))
	}
	return update, nil
}

// guardrailOutput runs the last gate before memory and response.
func (p *pipeline) guardrailOutput(ctx context.Context, state graph.State) (graph.State, error) {
	text := stateString(state, KeyAssistantText)

	safe, result, err := p.outputGuard.GuardOutput(ctx, text)
	if err != nil {
		p.logger.Warn("output guardrail failed", "node", NodeGuardrailOutput, "error", err)
		return graph.State{KeyOutputGuardrail: OutputGuardrail{Safe: true}}, nil
	}

	update := graph.State{KeyOutputGuardrail: result}
	if !result.Safe {
		update[KeyAssistantText] = safe
		p.logger.Warn("unsafe answer replaced",
			"node", NodeGuardrailOutput, "issues", result.Issues)
	}
	return update, nil
}

// ---------------------------------------------------------------------------
// Default heuristic gates
// ---------------------------------------------------------------------------

// HeuristicSourceValidator scores groundedness by content-token overlap
// between the answer and the source snippets.
type HeuristicSourceValidator struct {
	// MinOverlap is the overlap ratio below which the answer is flagged.
	MinOverlap float64
}

// NewHeuristicSourceValidator returns the default overlap-based gate.
func NewHeuristicSourceValidator() *HeuristicSourceValidator {
	return &HeuristicSourceValidator{MinOverlap: 0.2}
}

// ValidateSources implements SourceValidator.
func (v *HeuristicSourceValidator) ValidateSources(_ context.Context, assistantText string, sources []core.Source) (SourceValidation, error) {
	answerTokens := contentTokens(assistantText)
	if len(answerTokens) == 0 {
		return SourceValidation{Grounded: true, Confidence: 1.0}, nil
	}

	sourceTokens := map[string]struct{}{}
	for _, src := range sources {
		for _, tok := range faq.Tokenize(src.Title + " " + src.Snippet) {
			sourceTokens[tok] = struct{}{}
		}
	}

	hits := 0
	for tok := range answerTokens {
		if _, ok := sourceTokens[tok]; ok {
			hits++
		}
	}
	overlap := float64(hits) / float64(len(answerTokens))

	result := SourceValidation{Grounded: true, Confidence: overlap}
	if overlap < v.MinOverlap {
		result.Grounded = false
		result.Issues = []string{
			fmt.Sprintf("low overlap between answer and source snippets (%.2f)", overlap),
		}
	}
	return result, nil
}

// stopwords excluded from overlap scoring; keeps the ratio about content.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {},
	"in": {}, "on": {}, "is": {}, "are": {}, "was": {}, "for": {}, "with": {},
	"de": {}, "het": {}, "een": {}, "en": {}, "van": {}, "op": {}, "voor": {},
}

func contentTokens(text string) map[string]struct{} {
	tokens := map[string]struct{}{}
	for _, tok := range faq.Tokenize(text) {
		if len(tok) < 3 {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		tokens[tok] = struct{}{}
	}
	return tokens
}

// ModelSourceValidator asks a model to judge groundedness, expecting a JSON
// verdict. Parse or call failures degrade to a permissive result.
type ModelSourceValidator struct {
	model model.Model
}

// NewModelSourceValidator returns an LLM-as-judge groundedness gate.
func NewModelSourceValidator(m model.Model) *ModelSourceValidator {
	return &ModelSourceValidator{model: m}
}

// ValidateSources implements SourceValidator.
func (v *ModelSourceValidator) ValidateSources(ctx context.Context, assistantText string, sources []core.Source) (SourceValidation, error) {
	var sb strings.Builder
	for i, src := range sources {
		fmt.Fprintf(&sb, "[%d] %s: %s\n", i+1, src.Title, src.Snippet)
	}

	answer := assistantText
	if len(answer) > 1500 {
		answer = answer[:1500]
	}

	prompt := fmt.Sprintf(`Check whether the assistant's answer is supported by the sources.

SOURCES:
%s
ANSWER:
%s

Assess:
1. Are the factual claims in the answer supported by the sources?
2. Does the answer contain information that is NOT in the sources?

Reply ONLY with valid JSON:
{"grounded": true, "issues": [], "confidence": 0.95}`, sb.String(), answer)

	resp, err := v.model.Generate(ctx, model.Request{Messages: []core.Message{
		core.NewSystemMessage("You validate answers against sources. Reply only with JSON."),
		core.NewUserMessage(prompt),
	}})
	if err != nil {
		return SourceValidation{}, err
	}

	raw := strings.TrimSpace(resp.Message.Content)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var verdict struct {
		Grounded   bool     `json:"grounded"`
		Issues     []string `json:"issues"`
		Confidence float64  `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &verdict); err != nil {
		return SourceValidation{}, fmt.Errorf("parse judge verdict: %w", err)
	}
	return SourceValidation{
		Grounded:   verdict.Grounded,
		Issues:     verdict.Issues,
		Confidence: verdict.Confidence,
	}, nil
}

// HeuristicToneValidator applies a small rule set: collapsed exclamation
// runs, removed filler slang, lowercased shouting.
type HeuristicToneValidator struct{}

// NewHeuristicToneValidator returns the default rule-based tone gate.
func NewHeuristicToneValidator() *HeuristicToneValidator {
	return &HeuristicToneValidator{}
}

var (
	exclamationRun = regexp.MustCompile(`!{2,}`)
	fillerSlang    = regexp.MustCompile(`(?i)\b(lol|omg|wtf)\b[[:space:]]*`)
	shoutedWord    = regexp.MustCompile(`\b[A-Z]{4,}\b`)
)

// ValidateTone implements ToneValidator.
func (v *HeuristicToneValidator) ValidateTone(_ context.Context, assistantText string) (string, ToneValidation, error) {
	text := assistantText
	var adjustments []string

	if exclamationRun.MatchString(text) {
		text = exclamationRun.ReplaceAllString(text, "!")
		adjustments = append(adjustments, "collapsed repeated exclamation marks")
	}
	if fillerSlang.MatchString(text) {
		text = strings.TrimSpace(fillerSlang.ReplaceAllString(text, ""))
		adjustments = append(adjustments, "removed filler slang")
	}
	if shoutedWord.MatchString(text) {
		text = shoutedWord.ReplaceAllStringFunc(text, strings.ToLower)
		adjustments = append(adjustments, "lowercased shouted words")
	}

	if len(adjustments) == 0 {
		return assistantText, ToneValidation{Appropriate: true}, nil
	}
	return text, ToneValidation{
		Appropriate:  false,
		OriginalText: assistantText,
		Adjustments:  adjustments,
	}, nil
}

// HeuristicOutputGuard scans for leaked instructions and PII. A hit replaces
// the whole answer with the fixed fallback.
type HeuristicOutputGuard struct{}

// NewHeuristicOutputGuard returns the default output safety gate.
func NewHeuristicOutputGuard() *HeuristicOutputGuard {
	return &HeuristicOutputGuard{}
}

var leakMarkers = []string{
	"my system prompt",
	"my instructions are",
	"as an ai language model, my prompt",
}

// GuardOutput implements OutputGuard.
func (g *HeuristicOutputGuard) GuardOutput(_ context.Context, assistantText string) (string, OutputGuardrail, error) {
	lower := strings.ToLower(assistantText)
	var issues []string

	for _, marker := range leakMarkers {
		if strings.Contains(lower, marker) {
			issues = append(issues, "possible system prompt leak")
			break
		}
	}
	if bsnPattern.MatchString(assistantText) {
		issues = append(issues, "answer contains a 9 digit identification number")
	}

	if len(issues) == 0 {
		return assistantText, OutputGuardrail{Safe: true}, nil
	}
	return FallbackAnswer, OutputGuardrail{
		Safe:         false,
		Issues:       issues,
		OriginalText: assistantText,
	}, nil
}
