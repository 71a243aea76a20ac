package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/chatgraph/core"
	"github.com/hupe1980/chatgraph/faq"
	"github.com/hupe1980/chatgraph/graph"
	"github.com/hupe1980/chatgraph/logging"
	"github.com/hupe1980/chatgraph/model"
	"github.com/hupe1980/chatgraph/tool"
)

// Request is one user turn.
type Request struct {
	// Message is the user's input text. Required.
	Message string `json:"message"`
	// SessionID identifies the conversation. Empty gets a fresh id.
	SessionID string `json:"sessionId,omitempty"`
	// UserContext carries caller-supplied key/value pairs injected into the
	// system prompt.
	UserContext map[string]any `json:"userContext,omitempty"`
	// DisableMemory turns off session load, update and save for this turn.
	DisableMemory bool `json:"disableMemory,omitempty"`
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	// Logger receives pipeline logs. Defaults to a text slog logger.
	Logger logging.Logger
	// Retriever backs the knowledge base search tool. Optional.
	Retriever core.Retriever
	// FAQMatcher answers exact FAQ hits before the model runs. Optional.
	FAQMatcher *faq.Matcher
	// Tools replaces the built-in tool set.
	Tools []tool.Tool
	// ExtraTools appends to the built-in tool set.
	ExtraTools []tool.Tool

	SourceValidator SourceValidator
	ToneValidator   ToneValidator
	OutputGuard     OutputGuard
	Summarizer      Summarizer

	// SystemPrompt overrides DefaultSystemPrompt. Rendered as a template
	// against the request's UserContext.
	SystemPrompt string
	// InjectionPatterns and OffTopicPatterns override the input guard lists.
	InjectionPatterns []string
	OffTopicPatterns  []string
	// Greetings overrides the chitchat word list.
	Greetings []string

	MaxToolRounds    int
	WindowPairs      int
	MaxMessageLength int
	LLMRetries       int
	LLMTimeout       time.Duration
	ToolTimeout      time.Duration
	SearchLimit      int
	// MaxSteps bounds node executions per turn in the executor.
	MaxSteps int
}

// Service runs the conversation pipeline. Safe for concurrent use; turns
// sharing a session id are serialized, turns on distinct sessions run in
// parallel.
type Service struct {
	pipeline *pipeline
	executor *graph.Executor
	store    core.SessionStore
	logger   logging.Logger
}

// NewService builds a Service around a model and a session store.
func NewService(m model.Model, store core.SessionStore, optFns ...func(o *ServiceOptions)) (*Service, error) {
	if m == nil {
		return nil, fmt.Errorf("model is required")
	}
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}

	opts := ServiceOptions{
		Logger:           logging.NewDefaultSlogLogger(),
		SourceValidator:  NewHeuristicSourceValidator(),
		ToneValidator:    NewHeuristicToneValidator(),
		OutputGuard:      NewHeuristicOutputGuard(),
		Summarizer:       NewHeuristicSummarizer(),
		SystemPrompt:     DefaultSystemPrompt,
		MaxToolRounds:    DefaultMaxToolRounds,
		WindowPairs:      core.DefaultWindowPairs,
		MaxMessageLength: DefaultMaxMessageLength,
		LLMRetries:       DefaultLLMRetries,
		LLMTimeout:       DefaultLLMTimeout,
		ToolTimeout:      DefaultToolTimeout,
		SearchLimit:      DefaultSearchLimit,
		MaxSteps:         50,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	p := &pipeline{
		cfg: pipelineConfig{
			MaxToolRounds:    opts.MaxToolRounds,
			WindowPairs:      opts.WindowPairs,
			MaxMessageLength: opts.MaxMessageLength,
			LLMRetries:       opts.LLMRetries,
			LLMTimeout:       opts.LLMTimeout,
			ToolTimeout:      opts.ToolTimeout,
			SearchLimit:      opts.SearchLimit,
			SystemPrompt:     opts.SystemPrompt,
		},
		model:           m,
		store:           store,
		retriever:       opts.Retriever,
		faqMatcher:      opts.FAQMatcher,
		sourceValidator: opts.SourceValidator,
		toneValidator:   opts.ToneValidator,
		outputGuard:     opts.OutputGuard,
		summarizer:      opts.Summarizer,
		logger:          opts.Logger,
	}

	p.injectionPatterns = opts.InjectionPatterns
	if p.injectionPatterns == nil {
		p.injectionPatterns = defaultInjectionPatterns
	}
	p.offTopicPatterns = opts.OffTopicPatterns
	if p.offTopicPatterns == nil {
		p.offTopicPatterns = defaultOffTopicPatterns
	}
	greetings := opts.Greetings
	if greetings == nil {
		greetings = defaultGreetings
	}
	p.greetings = make(map[string]struct{}, len(greetings))
	for _, g := range greetings {
		p.greetings[g] = struct{}{}
	}

	tools := opts.Tools
	if tools == nil {
		tools = p.defaultTools()
	}
	tools = append(tools, opts.ExtraTools...)
	p.setTools(tools)

	g, err := p.buildGraph()
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}
	executor, err := graph.NewExecutor(g, func(o *graph.ExecutorOptions) {
		o.MaxSteps = opts.MaxSteps
		o.SerializationKey = KeySessionID
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, fmt.Errorf("create executor: %w", err)
	}

	return &Service{
		pipeline: p,
		executor: executor,
		store:    store,
		logger:   opts.Logger,
	}, nil
}

// Chat runs one turn and returns the final response. It fails only on
// unrecoverable pipeline faults; validator, persistence and model errors are
// absorbed into the response.
func (s *Service) Chat(ctx context.Context, req Request) (*Response, error) {
	if req.Message == "" {
		return nil, fmt.Errorf("message is required")
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	initial := graph.State{
		KeyMessage:     req.Message,
		KeySessionID:   sessionID,
		KeyUseMemory:   !req.DisableMemory,
		KeyTriage:      NewTriage(),
		KeyToolRounds:  0,
		KeyUserContext: req.UserContext,
	}

	start := time.Now()
	final, err := s.executor.Execute(ctx, initial)
	if err != nil {
		return nil, err
	}

	resp, ok := final[KeyResponse].(*Response)
	if !ok || resp == nil {
		return nil, core.NewExecutionError(NodeFormatResponse, fmt.Errorf("no response in final state"))
	}

	s.logger.Info("turn complete",
		"session_id", resp.SessionID,
		"route", resp.Triage.Route,
		"duration_ms", time.Since(start).Milliseconds())
	return resp, nil
}

// DeleteSession removes stored memory for a session id. The returned bool
// reports whether a session existed.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, fmt.Errorf("session id is required")
	}
	return s.store.Delete(ctx, sessionID)
}
