// Package model defines the provider‑agnostic abstractions and concrete
// helpers for interacting with language models inside ChatGraph.
//
// Core goals:
//   - Single blocking generation call behind a minimal interface
//   - Normalize tool / function call representation (ToolDefinition, core.ToolCall)
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (e.g. OpenAI, Anthropic) implement the Model interface from this
// package so higher layers (graph nodes, the chat service) remain decoupled
// from vendor SDKs.
package model
