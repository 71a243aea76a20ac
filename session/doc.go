// Package session houses concrete implementations of core.SessionStore.
// The interface itself (and the Session struct) live in the core package to
// centralize domain contracts. Keeping only implementations here prevents
// higher level packages (graph nodes, the chat service) from depending on
// concrete storage.
//
// Three backends ship by default: a process local map (tests, demos), a JSON
// file directory (single node deployments) and Redis (shared deployments).
// Additional backends can be added without changing any calling code – only
// the wiring layer needs to decide which implementation to instantiate.
package session
