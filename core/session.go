package core

import (
	"encoding/json"
	"time"
)

// DefaultWindowPairs is the default number of user/assistant message pairs
// retained in a session's rolling window.
const DefaultWindowPairs = 5

// QAEntry is a compact summary of a single question/answer exchange kept in
// the session index. It lets the model look up past exchanges by topic
// without carrying full answer texts in every prompt.
type QAEntry struct {
	ExchangeID      string    `json:"exchange_id"`
	QuestionSummary string    `json:"question_summary"`
	AnswerSummary   string    `json:"answer_summary"`
	Topics          []string  `json:"topics,omitempty"`
	SourceIDs       []string  `json:"source_ids,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// Answer archives the full text of a past assistant answer together with the
// sources it cited, keyed by exchange id in the session.
type Answer struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources,omitempty"`
}

// UnmarshalJSON accepts both the current object form and the legacy form
// where an archived answer was stored as a bare string.
func (a *Answer) UnmarshalJSON(data []byte) error {
	var legacy string
	if err := json.Unmarshal(data, &legacy); err == nil {
		*a = Answer{Text: legacy}
		return nil
	}

	type answer Answer
	var current answer
	if err := json.Unmarshal(data, &current); err != nil {
		return err
	}
	*a = Answer(current)
	return nil
}

// Session is the persistent conversational memory for one session id.
//
// Lifecycle contract: created on the first turn for a session id, read at
// turn start, mutated at most once per turn by the memory-update step and
// persisted at most once per turn. Turns for the same session id are
// serialized by the executor, so Session carries no internal locking; a
// loaded session is private to the turn that loaded it.
type Session struct {
	ID             string            `json:"session_id"`
	Summary        string            `json:"summary"`                   // Rolling ~200 word conversation summary
	QAIndex        []QAEntry         `json:"qa_index,omitempty"`        // Compact per-exchange index, append-only
	FullAnswers    map[string]Answer `json:"full_answers,omitempty"`    // exchange id -> archived answer
	RecentMessages []Message         `json:"recent_messages,omitempty"` // Rolling window, last N user/assistant pairs
	MessageCount   int               `json:"message_count"`
	Created        time.Time         `json:"created_at"`
	Updated        time.Time         `json:"updated_at"`
}

// NewSession creates an empty session with the given id.
func NewSession(id string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:          id,
		FullAnswers: map[string]Answer{},
		Created:     now,
		Updated:     now,
	}
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	clone := *s
	clone.QAIndex = append([]QAEntry(nil), s.QAIndex...)
	clone.RecentMessages = append([]Message(nil), s.RecentMessages...)
	clone.FullAnswers = make(map[string]Answer, len(s.FullAnswers))
	for k, v := range s.FullAnswers {
		clone.FullAnswers[k] = v
	}
	return &clone
}

// AppendExchange records a completed user/assistant pair in the rolling
// window, evicting the oldest pair beyond windowPairs. Empty assistant
// answers are not recorded; the window only holds pairs where the assistant
// actually responded.
func (s *Session) AppendExchange(userText, assistantText string, windowPairs int) {
	if windowPairs <= 0 {
		windowPairs = DefaultWindowPairs
	}
	if assistantText == "" {
		return
	}
	s.RecentMessages = append(s.RecentMessages,
		NewUserMessage(userText),
		NewAssistantMessage(assistantText),
	)
	if max := windowPairs * 2; len(s.RecentMessages) > max {
		s.RecentMessages = s.RecentMessages[len(s.RecentMessages)-max:]
	}
}

// ArchiveAnswer stores the full answer text and cited sources for an
// exchange id and appends the compact index entry.
func (s *Session) ArchiveAnswer(exchangeID string, answer Answer, entry QAEntry) {
	if s.FullAnswers == nil {
		s.FullAnswers = map[string]Answer{}
	}
	s.FullAnswers[exchangeID] = answer
	s.QAIndex = append(s.QAIndex, entry)
}
