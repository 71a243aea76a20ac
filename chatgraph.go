// Package chatgraph provides a high-level façade over the chat pipeline and
// its service abstractions (sessions, retrieval, FAQ matching & logging)
// enabling rapid construction of grounded conversational assistants. Most
// applications interact with this package by:
//  1. Creating a ChatGraph via New() with a model (optionally overriding the
//     default in-memory session store)
//  2. Optionally attaching a retrieval index, FAQ entries and custom tools
//  3. Running turns with Chat()
//
// The façade delegates orchestration to chat.Service while keeping setup and
// usage ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply a durable session store
// and a structured logger.
package chatgraph

import (
	"context"

	"github.com/hupe1980/chatgraph/chat"
	"github.com/hupe1980/chatgraph/core"
	"github.com/hupe1980/chatgraph/faq"
	"github.com/hupe1980/chatgraph/logging"
	"github.com/hupe1980/chatgraph/model"
	"github.com/hupe1980/chatgraph/session"
)

// Options configures the ChatGraph instance.
type Options struct {
	// SessionStore persists conversational memory. Defaults to an in-memory
	// implementation.
	SessionStore core.SessionStore
	// Retriever backs the knowledge base search tool.
	Retriever core.Retriever
	// FAQEntries are curated question/answer pairs matched before the model
	// runs. Ignored when empty.
	FAQEntries []faq.Entry
	// FAQEmbedder embeds questions for FAQ matching. Defaults to a lexical
	// hashing embedder suitable for tests and small deployments.
	FAQEmbedder faq.Embedder
	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
	// ServiceOptions applies any further chat.ServiceOptions tuning.
	ServiceOptions []func(o *chat.ServiceOptions)
}

// ChatGraph is the high-level façade aggregating the pipeline service.
type ChatGraph struct {
	opts    Options
	service *chat.Service
}

// New creates a new ChatGraph around the given model with optional overrides.
func New(m model.Model, optFns ...func(o *Options)) (*ChatGraph, error) {
	opts := Options{
		SessionStore: session.NewInMemoryStore(),
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	svcOpts := []func(o *chat.ServiceOptions){func(o *chat.ServiceOptions) {
		o.Logger = opts.Logger
		o.Retriever = opts.Retriever
		if len(opts.FAQEntries) > 0 {
			embedder := opts.FAQEmbedder
			if embedder == nil {
				embedder = faq.NewLexicalEmbedder(0)
			}
			o.FAQMatcher = faq.NewMatcher(embedder, opts.FAQEntries)
		}
	}}
	svcOpts = append(svcOpts, opts.ServiceOptions...)

	svc, err := chat.NewService(m, opts.SessionStore, svcOpts...)
	if err != nil {
		return nil, err
	}
	return &ChatGraph{opts: opts, service: svc}, nil
}

// Chat runs one conversational turn.
func (c *ChatGraph) Chat(ctx context.Context, req chat.Request) (*chat.Response, error) {
	return c.service.Chat(ctx, req)
}

// Ask is a convenience wrapper for a single-shot question on a session.
func (c *ChatGraph) Ask(ctx context.Context, sessionID, message string) (*chat.Response, error) {
	return c.service.Chat(ctx, chat.Request{Message: message, SessionID: sessionID})
}

// DeleteSession removes all stored memory for a session id.
func (c *ChatGraph) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	return c.service.DeleteSession(ctx, sessionID)
}

// Service exposes the underlying chat service for advanced wiring, e.g.
// mounting it behind the HTTP server package.
func (c *ChatGraph) Service() *chat.Service { return c.service }
