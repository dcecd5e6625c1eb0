package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const untitledConversation = "Untitled Conversation"

const (
	roleUser      = "user"
	roleAssistant = "assistant"
)

// recordID is an opaque backend identifier. The backend sends some ids as
// JSON numbers and others as strings; both decode to the same value.
type recordID string

func (id *recordID) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		*id = ""
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("decode id: %w", err)
		}
		*id = recordID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return fmt.Errorf("decode id %s: %w", raw, err)
	}
	*id = recordID(n.String())
	return nil
}

func (id recordID) String() string { return string(id) }

// Conversation is one row of a user's conversation list.
type Conversation struct {
	ID           recordID `json:"id"`
	Title        *string  `json:"title"`
	MessageCount int      `json:"message_count"`
	UpdatedAt    string   `json:"updated_at"`
}

func (c Conversation) displayTitle() string {
	if c.Title == nil || strings.TrimSpace(*c.Title) == "" {
		return untitledConversation
	}
	return *c.Title
}

func (c Conversation) messageCount() int {
	if c.MessageCount < 0 {
		return 0
	}
	return c.MessageCount
}

// Message is one chat turn inside a conversation. Display order is the
// order the backend returned.
type Message struct {
	ID             recordID   `json:"id"`
	ConversationID recordID   `json:"conversation_id,omitempty"`
	Role           string     `json:"message_type"`
	Content        string     `json:"content"`
	IsHTML         bool       `json:"isHtml"`
	CreatedAt      string     `json:"created_at"`
	Sources        sourceList `json:"sources,omitempty"`
}

func (m *Message) UnmarshalJSON(raw []byte) error {
	type plain Message
	var aux struct {
		plain
		AltRole      string   `json:"role"`
		Conversation recordID `json:"conversation"`
	}
	if err := json.Unmarshal(raw, &aux); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	*m = Message(aux.plain)
	if m.Role == "" {
		m.Role = aux.AltRole
	}
	if m.ConversationID == "" {
		m.ConversationID = aux.Conversation
	}
	m.Role = normalizeRole(m.Role)
	return nil
}

func normalizeRole(role string) string {
	if strings.EqualFold(strings.TrimSpace(role), roleUser) {
		return roleUser
	}
	return roleAssistant
}

// QAUser is the lightweight user reference embedded in Q&A rows.
type QAUser struct {
	ID       recordID `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
}

func (u QAUser) displayName() string {
	if strings.TrimSpace(u.FullName) != "" {
		return u.FullName
	}
	return "User"
}

// QARecord is one question/answer pair from the analytics projection.
type QARecord struct {
	ID           recordID `json:"id"`
	User         QAUser   `json:"user"`
	Question     string   `json:"question"`
	Answer       string   `json:"answer"`
	QuestionTime string   `json:"question_time"`
}
