package core

import "context"

// SessionStore persists sessions keyed by session id.
//
// Load returns (nil, nil) when no session exists for the id; callers decide
// whether absence means "create new". Save persists a full snapshot and must
// be safe to retry. Implementations need not serialize turns per session id;
// the chat service owns that guarantee.
type SessionStore interface {
	Load(ctx context.Context, sessionID string) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Delete(ctx context.Context, sessionID string) (bool, error)
}

// Retriever searches the knowledge base. Implementations fail soft: on any
// internal error they should return an empty slice together with the error
// so callers can log and continue with no sources.
type Retriever interface {
	Search(ctx context.Context, query string, limit int) ([]Source, error)
}
