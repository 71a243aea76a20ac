package chat

import (
	"context"

	"github.com/hupe1980/chatgraph/core"
	"github.com/hupe1980/chatgraph/graph"
)

// Validation groups the three gate verdicts of a turn.
type Validation struct {
	Sources         SourceValidation `json:"sources"`
	Tone            ToneValidation   `json:"tone"`
	OutputGuardrail OutputGuardrail  `json:"outputGuardrail"`
}

// Response is the final result of a turn.
type Response struct {
	AssistantText string        `json:"assistantText"`
	UniqueSources []core.Source `json:"uniqueSources"`
	SessionID     string        `json:"sessionId"`
	ExchangeID    string        `json:"exchangeId,omitempty"`
	Validation    Validation    `json:"validation"`
	Triage        Triage        `json:"triage"`
	SaveFailed    bool          `json:"saveFailed,omitempty"`
}

// routeAfterGuardrail skips the memory chain when the caller opted out.
func (p *pipeline) routeAfterGuardrail(_ context.Context, state graph.State) (string, error) {
	if stateBool(state, KeyUseMemory) {
		return NodeUpdateMemory, nil
	}
	return NodeFormatResponse, nil
}

// formatResponse assembles the Response from the turn's state. It never
// fails; missing fields produce zero values.
func (p *pipeline) formatResponse(_ context.Context, state graph.State) (graph.State, error) {
	sources := stateSources(state, KeyUniqueSources)
	if sources == nil {
		sources = []core.Source{}
	}

	sessionID := stateString(state, KeySessionID)
	if session := stateSession(state); session != nil && session.ID != "" {
		sessionID = session.ID
	}

	validation := Validation{
		Sources:         SourceValidation{Grounded: true, Confidence: 1.0},
		Tone:            ToneValidation{Appropriate: true},
		OutputGuardrail: OutputGuardrail{Safe: true},
	}
	if v, ok := state[KeySourceValidation].(SourceValidation); ok {
		validation.Sources = v
	}
	if v, ok := state[KeyToneValidation].(ToneValidation); ok {
		validation.Tone = v
	}
	if v, ok := state[KeyOutputGuardrail].(OutputGuardrail); ok {
		validation.OutputGuardrail = v
	}

	resp := &Response{
		AssistantText: stateString(state, KeyAssistantText),
		UniqueSources: sources,
		SessionID:     sessionID,
		ExchangeID:    stateString(state, KeyExchangeID),
		Validation:    validation,
		Triage:        stateTriage(state),
		SaveFailed:    stateBool(state, KeySaveFailed),
	}

	p.logger.Info("response formatted",
		"node", NodeFormatResponse,
		"answer_chars", len(resp.AssistantText),
		"sources", len(resp.UniqueSources),
		"route", resp.Triage.Route,
		"session_id", resp.SessionID)

	return graph.State{KeyResponse: resp}, nil
}
