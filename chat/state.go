package chat

import (
	"github.com/hupe1980/chatgraph/core"
	"github.com/hupe1980/chatgraph/graph"
)

// State field names. Scalar entry fields are set once by the service; the
// remaining fields are owned by individual nodes and merged per the schema.
const (
	KeyMessage     = "message"
	KeySessionID   = "sessionId"
	KeyUserContext = "userContext"
	KeyUseMemory   = "useMemory"

	KeySession          = "session"
	KeyMessages         = "messages"
	KeyRetrievedSources = "retrievedSources"
	KeyAssistantText    = "assistantText"
	KeyExchangeID       = "exchangeId"
	KeyUniqueSources    = "uniqueSources"
	KeySourceIDs        = "sourceIds"
	KeyTriage           = "triage"
	KeySourceValidation = "sourceValidation"
	KeyToneValidation   = "toneValidation"
	KeyOutputGuardrail  = "outputGuardrail"
	KeyToolRounds       = "toolRounds"
	KeyResponse         = "response"
	KeySaveFailed       = "saveFailed"
)

// Triage routes. The default route is RouteLLM; a triage node that decides to
// short-circuit replaces it and sets SkipLLM.
const (
	RouteLLM        = "llm"
	RouteBlocked    = "blocked"
	RouteIrrelevant = "irrelevant"
	RouteChitchat   = "chitchat"
	RouteFAQ        = "faq"
)

// Triage is the decision record produced by the guardrail/triage chain.
// Earlier nodes take priority: once SkipLLM is set, later nodes only append
// their log line and never override the decision.
type Triage struct {
	Route         string        `json:"route"`
	SkipLLM       bool          `json:"skipLlm"`
	EarlyResponse string        `json:"earlyResponse,omitempty"`
	TriageLog     []string      `json:"triageLog"`
	FAQSources    []core.Source `json:"-"`
	FAQSuggestion string        `json:"-"`
}

// NewTriage returns the undecided default.
func NewTriage() Triage {
	return Triage{Route: RouteLLM}
}

// withLog returns a copy with the line appended to a fresh log slice, keeping
// state merges pure.
func (t Triage) withLog(line string) Triage {
	log := make([]string, 0, len(t.TriageLog)+1)
	log = append(log, t.TriageLog...)
	t.TriageLog = append(log, line)
	return t
}

// SourceValidation reports whether the answer appears supported by the
// retrieved snippets.
type SourceValidation struct {
	Grounded   bool     `json:"grounded"`
	Issues     []string `json:"issues,omitempty"`
	Confidence float64  `json:"confidence"`
}

// ToneValidation records tone adjustments. Appropriate is false iff the
// answer was rewritten, in which case OriginalText holds the pre-rewrite text.
type ToneValidation struct {
	Appropriate  bool     `json:"appropriate"`
	OriginalText string   `json:"originalText,omitempty"`
	Adjustments  []string `json:"adjustments,omitempty"`
}

// OutputGuardrail records the final safety scan. When the answer was replaced
// by the fallback, Safe is false and OriginalText holds the replaced text.
type OutputGuardrail struct {
	Safe         bool     `json:"safe"`
	Issues       []string `json:"issues,omitempty"`
	OriginalText string   `json:"originalText,omitempty"`
}

// NewStateSchema builds the reducer table: messages and retrievedSources
// accumulate across nodes, everything else overwrites. Merge behavior lives
// here rather than in the nodes so it is independently testable.
func NewStateSchema() *graph.Schema {
	return graph.NewSchema().
		AddField(KeyMessages, graph.Field{
			Reducer: messagesReducer,
			Default: func() any { return []core.Message{} },
		}).
		AddField(KeyRetrievedSources, graph.Field{
			Reducer: sourcesReducer,
			Default: func() any { return []core.Source{} },
		})
}

// messagesReducer appends message slices, always building a fresh slice.
func messagesReducer(existing, update any) any {
	if existing == nil {
		existing = []core.Message{}
	}
	existingMsgs, ok1 := existing.([]core.Message)
	updateMsgs, ok2 := update.([]core.Message)
	if !ok1 || !ok2 {
		return update
	}
	merged := make([]core.Message, 0, len(existingMsgs)+len(updateMsgs))
	merged = append(merged, existingMsgs...)
	return append(merged, updateMsgs...)
}

// sourcesReducer appends source slices, always building a fresh slice.
func sourcesReducer(existing, update any) any {
	if existing == nil {
		existing = []core.Source{}
	}
	existingSrcs, ok1 := existing.([]core.Source)
	updateSrcs, ok2 := update.([]core.Source)
	if !ok1 || !ok2 {
		return update
	}
	merged := make([]core.Source, 0, len(existingSrcs)+len(updateSrcs))
	merged = append(merged, existingSrcs...)
	return append(merged, updateSrcs...)
}

// Typed state accessors. Missing or mistyped fields return zero values; nodes
// that require a field treat the zero value as "absent".

func stateString(s graph.State, key string) string {
	v, _ := s[key].(string)
	return v
}

func stateBool(s graph.State, key string) bool {
	v, _ := s[key].(bool)
	return v
}

func stateInt(s graph.State, key string) int {
	v, _ := s[key].(int)
	return v
}

func stateMessages(s graph.State) []core.Message {
	v, _ := s[KeyMessages].([]core.Message)
	return v
}

func stateStrings(s graph.State, key string) []string {
	v, _ := s[key].([]string)
	return v
}

func stateSources(s graph.State, key string) []core.Source {
	v, _ := s[key].([]core.Source)
	return v
}

func stateTriage(s graph.State) Triage {
	if v, ok := s[KeyTriage].(Triage); ok {
		return v
	}
	return NewTriage()
}

func stateSession(s graph.State) *core.Session {
	v, _ := s[KeySession].(*core.Session)
	return v
}
