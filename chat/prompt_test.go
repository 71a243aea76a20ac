package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chatgraph/core"
	"github.com/hupe1980/chatgraph/graph"
)

func TestBuildPromptLayers(t *testing.T) {
	p := newTestPipeline(t)

	sess := core.NewSession("s1")
	sess.Summary = "USER: asked about plans ASSISTANT: explained pricing"
	sess.QAIndex = []core.QAEntry{{
		ExchangeID:      "ex-11111111",
		QuestionSummary: "asked about premium pricing",
		AnswerSummary:   "25 euro per month",
		SourceIDs:       []string{"doc-pricing"},
		Timestamp:       time.Now().UTC(),
	}}
	sess.RecentMessages = []core.Message{
		core.NewUserMessage("What does the premium plan cost?"),
		core.NewAssistantMessage("The premium plan costs 25 euro per month."),
	}

	update, err := p.buildPrompt(context.Background(), graph.State{
		KeyMessage:     "And what about the standard plan?",
		KeyUseMemory:   true,
		KeySession:     sess,
		KeyTriage:      NewTriage(),
		KeyUserContext: map[string]any{"company": "Acme BV"},
	})
	require.NoError(t, err)

	msgs := stateMessages(update)
	require.NotEmpty(t, msgs)

	system := msgs[0]
	assert.Equal(t, core.RoleSystem, system.Role)
	assert.Contains(t, system.Content, "Session summary")
	assert.Contains(t, system.Content, "asked about premium pricing")
	assert.Contains(t, system.Content, "ex-11111111")
	assert.Contains(t, system.Content, "doc-pricing")
	assert.Contains(t, system.Content, "company: Acme BV")

	// History replays the user side with placeholders, never full answers.
	require.Len(t, msgs, 4)
	assert.Equal(t, "What does the premium plan cost?", msgs[1].Content)
	assert.Equal(t, answeredPlaceholder, msgs[2].Content)
	assert.NotContains(t, system.Content, "The premium plan costs 25 euro per month.")

	// The current message comes last.
	last := msgs[len(msgs)-1]
	assert.Equal(t, core.RoleUser, last.Role)
	assert.Equal(t, "And what about the standard plan?", last.Content)

	assert.Equal(t, 0, stateInt(update, KeyToolRounds))
	assert.Empty(t, stateSources(update, KeyRetrievedSources))
}

func TestBuildPromptWithoutMemory(t *testing.T) {
	p := newTestPipeline(t)

	sess := core.NewSession("s1")
	sess.Summary = "USER: earlier context"
	sess.RecentMessages = []core.Message{
		core.NewUserMessage("old question"),
		core.NewAssistantMessage("old answer"),
	}

	update, err := p.buildPrompt(context.Background(), graph.State{
		KeyMessage:   "What are your support hours?",
		KeyUseMemory: false,
		KeySession:   sess,
		KeyTriage:    NewTriage(),
	})
	require.NoError(t, err)

	msgs := stateMessages(update)
	require.Len(t, msgs, 2, "system plus current message only")
	assert.NotContains(t, msgs[0].Content, "earlier context")
}

func TestBuildPromptIncludesFAQSuggestion(t *testing.T) {
	p := newTestPipeline(t)

	triage := NewTriage()
	triage.FAQSuggestion = "Q: how do I reset my password\nA: Use account settings."

	update, err := p.buildPrompt(context.Background(), graph.State{
		KeyMessage:   "I forgot my password, what now?",
		KeyUseMemory: true,
		KeySession:   core.NewSession("s1"),
		KeyTriage:    triage,
	})
	require.NoError(t, err)

	msgs := stateMessages(update)
	require.NotEmpty(t, msgs)
	assert.Contains(t, msgs[0].Content, "Possibly related FAQ entry")
	assert.Contains(t, msgs[0].Content, "Use account settings.")
}

func TestBuildPromptRendersTemplateContext(t *testing.T) {
	p := newTestPipeline(t)
	p.cfg.SystemPrompt = "You assist employees of {{.company | default \"the organization\"}}."

	update, err := p.buildPrompt(context.Background(), graph.State{
		KeyMessage:     "Who can access the HR portal?",
		KeyUseMemory:   false,
		KeyTriage:      NewTriage(),
		KeyUserContext: map[string]any{"company": "Acme BV"},
	})
	require.NoError(t, err)

	msgs := stateMessages(update)
	require.NotEmpty(t, msgs)
	assert.Contains(t, msgs[0].Content, "You assist employees of Acme BV.")
}

func TestBuildPromptUserContextIsOrdered(t *testing.T) {
	p := newTestPipeline(t)

	update, err := p.buildPrompt(context.Background(), graph.State{
		KeyMessage:   "What does the premium plan cost?",
		KeyUseMemory: false,
		KeyTriage:    NewTriage(),
		KeyUserContext: map[string]any{
			"role":    "admin",
			"company": "Acme BV",
			"plan":    "premium",
		},
	})
	require.NoError(t, err)

	msgs := stateMessages(update)
	require.NotEmpty(t, msgs)
	system := msgs[0].Content
	assert.Contains(t, system, "company: Acme BV, plan: premium, role: admin")
}
