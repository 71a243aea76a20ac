// Package core provides the foundational domain types and collaborator
// contracts used by ChatGraph. It defines the core abstractions for:
//
//   - Messages (role-based conversation records with tool calls)
//   - Sources (retrieved knowledge-base snippets with document identity)
//   - Sessions (persistent conversational memory: rolling window, summary,
//     Q&A index and full-answer archive)
//   - Pluggable stores for session persistence and knowledge retrieval
//   - The error taxonomy separating routing outcomes, recoverable
//     collaborator failures and fatal execution faults
//
// The package intentionally keeps implementation concerns (persistence,
// graph orchestration, concrete model providers) out of scope, exposing
// small interfaces to enable custom backends and extensions.
package core
