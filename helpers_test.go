package main

import (
	"context"
	"database/sql"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (fn roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return fn(req)
}

func jsonResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

// fakeBackend serves canned data and records every call.
type fakeBackend struct {
	mu            sync.Mutex
	conversations map[recordID][]Conversation
	messages      map[recordID][]Message
	records       []QARecord
	err           error
	calls         []string
	queries       []QueryDescriptor
}

func (b *fakeBackend) ListConversations(_ context.Context, userID recordID) (PageResult[Conversation], error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "conversations:"+userID.String())
	if b.err != nil {
		return PageResult[Conversation]{}, b.err
	}
	items := b.conversations[userID]
	return PageResult[Conversation]{Items: items, TotalCount: len(items)}, nil
}

func (b *fakeBackend) ListMessages(_ context.Context, conversationID recordID) (PageResult[Message], error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "messages:"+conversationID.String())
	if b.err != nil {
		return PageResult[Message]{}, b.err
	}
	items := b.messages[conversationID]
	return PageResult[Message]{Items: items, TotalCount: len(items)}, nil
}

func (b *fakeBackend) ListQARecords(_ context.Context, q QueryDescriptor) (PageResult[QARecord], error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "qa")
	b.queries = append(b.queries, q)
	if b.err != nil {
		return PageResult[QARecord]{}, b.err
	}
	var matched []QARecord
	for _, rec := range b.records {
		if q.Search != "" && !strings.Contains(rec.Question+" "+rec.Answer, q.Search) {
			continue
		}
		if q.UserID != "" && rec.User.ID.String() != q.UserID {
			continue
		}
		matched = append(matched, rec)
	}
	size := q.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	start := min(len(matched), q.offset())
	end := min(len(matched), start+size)
	return PageResult[QARecord]{Items: matched[start:end], TotalCount: len(matched)}, nil
}

func (b *fakeBackend) setErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = err
}

func (b *fakeBackend) lastQuery() QueryDescriptor {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queries) == 0 {
		return QueryDescriptor{}
	}
	return b.queries[len(b.queries)-1]
}

func (b *fakeBackend) callLog() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func newFakeBackend() *fakeBackend {
	title := "Refund policy"
	return &fakeBackend{
		conversations: map[recordID][]Conversation{
			"7": {
				{ID: "c1", Title: &title, MessageCount: 2, UpdatedAt: "2024-03-02T10:00:00Z"},
				{ID: "c2", MessageCount: 0, UpdatedAt: "2024-03-01T09:00:00Z"},
			},
		},
		messages: map[recordID][]Message{
			"c1": {
				{ID: "m1", ConversationID: "c1", Role: roleUser, Content: "How do refunds work?", CreatedAt: "2024-03-02T09:59:00Z"},
				{
					ID: "m2", ConversationID: "c1", Role: roleAssistant, IsHTML: true,
					Content:   "<p>Refunds take five days.</p>",
					CreatedAt: "2024-03-02T10:00:00Z",
					Sources:   sourceList{newSource("policy.pdf", intPtr(3))},
				},
			},
		},
		records: []QARecord{
			{ID: "3", User: QAUser{ID: "7", Email: "ana@example.com", FullName: "Ana Lima"}, Question: "How do refunds work?", Answer: "Five days.", QuestionTime: "2024-03-03T10:00:00Z"},
			{ID: "2", User: QAUser{ID: "8", Email: "bo@example.com", FullName: "Bo Chen"}, Question: "Shipping times?", Answer: "Two weeks.", QuestionTime: "2024-03-02T10:00:00Z"},
			{ID: "1", User: QAUser{ID: "7", Email: "ana@example.com", FullName: "Ana Lima"}, Question: "Refund for gift cards?", Answer: "Not possible.", QuestionTime: "2024-03-01T10:00:00Z"},
		},
	}
}

func intPtr(v int) *int { return &v }

// runCmd executes cmd and flattens batches. Spinner ticks are dropped.
func runCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	switch msg := msg.(type) {
	case nil:
		return nil
	case tea.BatchMsg:
		var out []tea.Msg
		for _, inner := range msg {
			out = append(out, runCmd(inner)...)
		}
		return out
	default:
		if _, ok := msg.(spinner.TickMsg); ok {
			return nil
		}
		return []tea.Msg{msg}
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// newSnapshotFixture creates a seeded snapshot database and returns its path.
func newSnapshotFixture(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "snapshot.db")
	db, err := openSnapshotDB(path)
	if err != nil {
		t.Fatalf("open snapshot db: %v", err)
	}
	defer db.Close()
	if err := ensureSnapshotSchema(context.Background(), db); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	mustExec(t, db, `INSERT INTO users (id, email, full_name) VALUES
		(7, 'ana@example.com', 'Ana Lima'),
		(8, 'bo@example.com', 'Bo Chen')`)
	mustExec(t, db, `INSERT INTO conversations (id, user_id, title, message_count, updated_at) VALUES
		('c1', 7, 'Refund policy', 2, '2024-03-02T10:00:00Z'),
		('c2', 7, NULL, 0, '2024-03-01T09:00:00Z'),
		('c3', 8, 'Shipping', 1, '2024-03-04T09:00:00Z')`)
	mustExec(t, db, `INSERT INTO messages (id, conversation_id, message_type, content, is_html, created_at, sources) VALUES
		('m1', 'c1', 'user', 'How do refunds work?', 0, '2024-03-02T09:59:00Z', NULL),
		('m2', 'c1', 'assistant', '<p>Five days.</p>', 1, '2024-03-02T10:00:00Z', '["policy.pdf", {"filename": "https://example.com/faq", "page": 2}]'),
		('m3', 'c3', 'assistant', 'Two weeks.', 0, '2024-03-04T09:00:00Z', '"shipping.md"')`)
	mustExec(t, db, `INSERT INTO qa_records (id, user_id, question, answer, question_time) VALUES
		(1, 7, 'Refund for gift cards?', 'Not possible.', '2024-03-01T10:00:00Z'),
		(2, 8, 'Shipping times?', 'Two weeks, 100% of the time.', '2024-03-02T10:00:00Z'),
		(3, 7, 'How do refunds work?', 'Five days.', '2024-03-03T10:00:00Z'),
		(4, 8, 'Discount_codes?', 'Ask support.', '2024-03-04T10:00:00Z')`)
	return path
}

func mustExec(t *testing.T, db *sql.DB, query string) {
	t.Helper()
	if _, err := db.Exec(query); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}
