package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewID generates a new unique identifier for sessions and correlation.
func NewID() string { return uuid.NewString() }

// NewExchangeID generates a short exchange identifier of the form
// "ex-1a2b3c4d". Exchange ids key the full-answer archive and appear in
// prompts, so they are kept short for the model to echo back reliably.
func NewExchangeID() string {
	return fmt.Sprintf("ex-%s", strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
