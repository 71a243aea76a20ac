// Package chat assembles the conversation pipeline: a fixed graph of nodes
// that load session memory, run the guardrail/triage chain, drive the bounded
// LLM tool loop, validate the answer and commit the exchange back to the
// session store.
//
// The pipeline is built on the generic graph engine. Each node receives a
// read-only state snapshot and returns only the fields it changed; the graph
// executor merges updates through the declarative reducer table in
// NewStateSchema. Exactly one path through the graph executes per turn.
//
// Service is the public entry point:
//
//	svc, err := chat.NewService(mdl, store, func(o *chat.ServiceOptions) {
//		o.Retriever = idx
//		o.FAQMatcher = matcher
//	})
//	resp, err := svc.Chat(ctx, chat.Request{Message: "hello", SessionID: "s1"})
package chat
