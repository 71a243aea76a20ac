package chat

import (
	"time"

	"github.com/hupe1980/chatgraph/core"
	"github.com/hupe1980/chatgraph/faq"
	"github.com/hupe1980/chatgraph/logging"
	"github.com/hupe1980/chatgraph/model"
	"github.com/hupe1980/chatgraph/tool"
)

// Node identifiers. The topology over them is fixed; the functions behind
// them are swappable at construction time via the registry in buildGraph.
const (
	NodeLoadSession          = "loadSession"
	NodeGuardrailInput       = "guardrailInput"
	NodeTriageRelevance      = "triageRelevance"
	NodeTriageFAQ            = "triageFaq"
	NodeTriageIntent         = "triageIntent"
	NodeBundleTriageResponse = "bundleTriageResponse"
	NodeBuildPrompt          = "buildPrompt"
	NodeCallLLM              = "callLlm"
	NodeExecuteTools         = "executeTools"
	NodeBundleSources        = "bundleSources"
	NodeValidateSources      = "validateSources"
	NodeValidateTone         = "validateTone"
	NodeGuardrailOutput      = "guardrailOutput"
	NodeUpdateMemory         = "updateMemory"
	NodeSaveSession          = "saveSession"
	NodeFormatResponse       = "formatResponse"
)

// Default pipeline tuning values.
const (
	// DefaultMaxToolRounds bounds the LLM/tool loop per turn.
	DefaultMaxToolRounds = 5
	// DefaultMaxMessageLength bounds inbound message length in runes.
	DefaultMaxMessageLength = 2000
	// DefaultLLMRetries is the number of retries after a failed LLM call.
	DefaultLLMRetries = 2
	// DefaultLLMTimeout bounds a single LLM call.
	DefaultLLMTimeout = 60 * time.Second
	// DefaultToolTimeout bounds a single tool call within a round.
	DefaultToolTimeout = 15 * time.Second
	// DefaultSearchLimit is the knowledge base result count per search.
	DefaultSearchLimit = 3
)

// FallbackAnswer is returned when the model path completes without usable
// assistant text or after LLM retry exhaustion.
const FallbackAnswer = "I'm sorry, I wasn't able to produce an answer to that just now. Please try again."

// blockedResponse is the canned reply for guardrail-blocked input.
const blockedResponse = "I can't help with that request. If you have a question about our services, I'm happy to help."

// irrelevantResponse is the canned reply for off-topic input.
const irrelevantResponse = "That topic is outside what I can help with here. Feel free to ask me anything about our services."

// chitchatResponse is the canned reply for pure greetings.
const chitchatResponse = "Hello! How can I help you today?"

// pipelineConfig carries the tuning knobs shared across nodes.
type pipelineConfig struct {
	MaxToolRounds    int
	WindowPairs      int
	MaxMessageLength int
	LLMRetries       int
	LLMTimeout       time.Duration
	ToolTimeout      time.Duration
	SearchLimit      int
	SystemPrompt     string
}

// pipeline holds the collaborators every node draws on. It is immutable after
// construction; all per-turn data flows through graph state.
type pipeline struct {
	cfg        pipelineConfig
	model      model.Model
	store      core.SessionStore
	retriever  core.Retriever
	faqMatcher *faq.Matcher
	tools      []tool.Tool
	toolIndex  map[string]tool.Tool
	toolDefs   []model.ToolDefinition

	sourceValidator SourceValidator
	toneValidator   ToneValidator
	outputGuard     OutputGuard
	summarizer      Summarizer

	injectionPatterns []string
	offTopicPatterns  []string
	greetings         map[string]struct{}

	logger logging.Logger
}

// setTools indexes the tool set and precomputes the model-facing definitions.
func (p *pipeline) setTools(tools []tool.Tool) {
	p.tools = tools
	p.toolIndex = make(map[string]tool.Tool, len(tools))
	p.toolDefs = make([]model.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		p.toolIndex[t.Name()] = t
		p.toolDefs = append(p.toolDefs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
}
