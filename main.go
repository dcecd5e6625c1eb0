package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
)

type screen int

const (
	screenQA screen = iota
	screenHistory
)

type exportedMsg struct {
	path string
	rows int
	err  error
}

// historyPane is the chat-history pane pair opened from a Q&A row. It owns
// its own store so closing it discards everything it loaded.
type historyPane struct {
	user  QAUser
	store *historyStore
	nav   navigator[Conversation]
	// focus is the pane taking keys when both are on screen.
	focus pane

	listCursor     int
	messageCursor  int
	messageOffsets []int
	viewport       viewport.Model
	copiedID       recordID
}

// model tracks TUI state across the Q&A screen and the history panes.
type model struct {
	screen  screen
	cfg     consoleConfig
	backend Backend
	log     zerolog.Logger

	qa        *historyStore
	query     *queryBuilder
	filters   queryFilters
	qaCursor  int
	directory *userDirectory

	form    filterForm
	picker  userPicker
	history *historyPane

	spinner  spinner.Model
	markdown *markdownRenderer
	width    int
	height   int
	now      func() time.Time

	status string
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "export" {
		if err := runExportCommand(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "qa-console export failed: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if len(os.Args) > 1 && os.Args[1] == "serve" {
		if err := runServeCommand(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "qa-console serve failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := runConsole(); err != nil {
		fmt.Fprintf(os.Stderr, "qa-console failed: %v\n", err)
		os.Exit(1)
	}
}

func runConsole() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, logCloser, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	backend, closeBackend, err := newBackend(cfg, log)
	if err != nil {
		return err
	}
	defer closeBackend()

	log.Info().Str("api", cfg.API.BaseURL).Str("snapshot", cfg.Snapshot.Path).Msg("console starting")
	program := tea.NewProgram(newModel(cfg, backend, log), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run program: %w", err)
	}
	return nil
}

func newModel(cfg consoleConfig, backend Backend, log zerolog.Logger) model {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = helpStyle

	return model{
		screen:    screenQA,
		cfg:       cfg,
		backend:   backend,
		log:       log,
		qa:        newHistoryStore(backend, log),
		query:     newQueryBuilder(cfg.UI.PageSize),
		filters:   queryFilters{Page: 1},
		directory: newUserDirectory(backend, log),
		form:      newFilterForm(),
		spinner:   spin,
		markdown:  &markdownRenderer{},
		now:       time.Now,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.qa.LoadQARecords(m.query.next(m.filters)))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.refreshHistoryViewport()
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case conversationsLoadedMsg, messagesLoadedMsg, qaRecordsLoadedMsg:
		return m.applyLoad(msg)
	case usersLoadedMsg:
		if !m.picker.active {
			return m, nil
		}
		m.picker.loading = false
		if msg.err != nil {
			m.log.Error().Err(msg.err).Msg("user directory failed")
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.picker.setUsers(msg.users, m.filters.UserID)
		return m, nil
	case exportedMsg:
		if msg.err != nil {
			m.log.Error().Err(msg.err).Msg("export failed")
			m.status = "Export failed: " + msg.err.Error()
			return m, nil
		}
		m.log.Info().Str("path", msg.path).Int("rows", msg.rows).Msg("exported qa records")
		m.status = fmt.Sprintf("Exported %d rows to %s", msg.rows, msg.path)
		return m, nil
	case copiedMsg:
		if msg.err != nil {
			m.log.Warn().Err(msg.err).Str("message_id", msg.messageID.String()).Msg("clipboard write failed")
			return m, nil
		}
		if m.history == nil {
			return m, nil
		}
		m.history.copiedID = msg.messageID
		m.refreshHistoryViewport()
		return m, copiedExpiryCmd(msg.messageID)
	case copiedExpiredMsg:
		if m.history != nil && m.history.copiedID == msg.messageID {
			m.history.copiedID = ""
			m.refreshHistoryViewport()
		}
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m model) applyLoad(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch {
	case m.qa.Apply(msg):
		m.qaCursor = clamp(m.qaCursor, 0, len(m.qa.qaRecordList())-1)
		if err := m.qa.lastErr(streamQARecords); err != nil {
			m.status = "Error: failed to load Q&A records: " + err.Error()
		} else {
			m.status = ""
		}
	case m.history != nil && m.history.store.Apply(msg):
		h := m.history
		h.listCursor = clamp(h.listCursor, 0, len(h.store.conversationList())-1)
		switch msg.(type) {
		case conversationsLoadedMsg:
			if err := h.store.lastErr(streamConversations); err != nil {
				m.status = "Error: failed to load conversations: " + err.Error()
			}
		case messagesLoadedMsg:
			h.messageCursor = clamp(h.messageCursor, 0, len(h.store.messageList())-1)
			if err := h.store.lastErr(streamMessages); err != nil {
				m.status = "Error: failed to load messages: " + err.Error()
			}
		}
		m.refreshHistoryViewport()
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case m.form.active:
		return m.handleFormKey(msg)
	case m.picker.active:
		return m.handlePickerKey(msg)
	}
	if msg.String() == "q" {
		return m, tea.Quit
	}
	switch m.screen {
	case screenQA:
		return m.handleQAKey(msg)
	case screenHistory:
		return m.handleHistoryKey(msg)
	default:
		return m, nil
	}
}

func (m model) handleQAKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	records := m.qa.qaRecordList()
	switch msg.String() {
	case "up", "k":
		m.qaCursor = clamp(m.qaCursor-1, 0, len(records)-1)
	case "down", "j":
		m.qaCursor = clamp(m.qaCursor+1, 0, len(records)-1)
	case "g", "home":
		m.qaCursor = 0
	case "G", "end":
		m.qaCursor = max(0, len(records)-1)
	case "enter":
		if len(records) == 0 {
			return m, nil
		}
		return m, m.openHistory(records[clamp(m.qaCursor, 0, len(records)-1)])
	case "/":
		return m, m.form.open(m.filters)
	case "u":
		m.picker.open()
		return m, m.directory.LoadCmd()
	case "c":
		if !m.query.current().hasFilters() {
			return m, nil
		}
		m.status = "Filters cleared"
		return m, m.applyFilters(queryFilters{Page: 1})
	case "n", "right":
		return m, m.gotoPage(m.query.current().Page + 1)
	case "p", "left":
		return m, m.gotoPage(m.query.current().Page - 1)
	case "r":
		m.directory.Invalidate()
		m.status = "Refreshing..."
		return m, m.qa.Refresh()
	case "x":
		if len(records) == 0 {
			m.status = "Nothing to export"
			return m, nil
		}
		m.status = "Exporting..."
		return m, exportCmd(m.cfg.Export.Dir, m.now(), records)
	}
	return m, nil
}

func (m model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.form.close()
		return m, nil
	case "tab", "down":
		return m, m.form.move(1)
	case "shift+tab", "up":
		return m, m.form.move(-1)
	case "enter":
		filters := m.form.values(m.filters)
		if err := validateFilters(filters); err != nil {
			m.form.err = err.Error()
			return m, nil
		}
		m.form.close()
		return m, m.applyFilters(filters)
	}
	var cmd tea.Cmd
	m.form.inputs[m.form.focus], cmd = m.form.inputs[m.form.focus].Update(msg)
	return m, cmd
}

func (m model) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		m.picker.close()
	case "up", "k":
		m.picker.move(-1)
	case "down", "j":
		m.picker.move(1)
	case "enter":
		if m.picker.loading {
			return m, nil
		}
		userID := m.picker.chosen()
		m.picker.close()
		filters := m.filters
		filters.UserID = userID.String()
		return m, m.applyFilters(filters)
	}
	return m, nil
}

func (m model) handleHistoryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	h := m.history
	if h == nil {
		m.screen = screenQA
		return m, nil
	}
	conversations := h.store.conversationList()
	messages := h.store.messageList()
	focus := m.historyFocus()

	switch msg.String() {
	case "esc":
		m.closeHistory()
		return m, nil
	case "tab":
		lay := m.historyLayout()
		if _, ok := h.nav.Selected(); !ok || !lay.showList || !lay.showDetail {
			return m, nil
		}
		if h.focus == paneDetail {
			h.focus = paneList
		} else {
			h.focus = paneDetail
		}
	case "up", "k":
		if focus == paneList {
			h.listCursor = clamp(h.listCursor-1, 0, len(conversations)-1)
			return m, nil
		}
		h.messageCursor = clamp(h.messageCursor-1, 0, len(messages)-1)
		m.refreshHistoryViewport()
	case "down", "j":
		if focus == paneList {
			h.listCursor = clamp(h.listCursor+1, 0, len(conversations)-1)
			return m, nil
		}
		h.messageCursor = clamp(h.messageCursor+1, 0, len(messages)-1)
		m.refreshHistoryViewport()
	case "pgup", "pgdown":
		if focus != paneDetail {
			return m, nil
		}
		var cmd tea.Cmd
		h.viewport, cmd = h.viewport.Update(msg)
		return m, cmd
	case "enter":
		if focus != paneList || len(conversations) == 0 {
			return m, nil
		}
		conv := conversations[clamp(h.listCursor, 0, len(conversations)-1)]
		if current, ok := h.nav.Selected(); ok && current.ID != conv.ID {
			h.store.ClearMessages()
		}
		h.nav.Select(conv)
		h.focus = paneDetail
		h.messageCursor = 0
		cmd := h.store.LoadMessages(conv.ID)
		m.refreshHistoryViewport()
		h.viewport.GotoTop()
		return m, cmd
	case "b", "backspace":
		if focus == paneList {
			m.closeHistory()
			return m, nil
		}
		h.nav.Back()
		h.focus = paneList
		h.store.ClearMessages()
		h.messageCursor = 0
		m.refreshHistoryViewport()
	case "y":
		if focus != paneDetail || len(messages) == 0 {
			return m, nil
		}
		return m, copyMessageCmd(messages[clamp(h.messageCursor, 0, len(messages)-1)])
	case "r":
		m.status = "Refreshing..."
		return m, h.store.Refresh()
	}
	return m, nil
}

// historyFocus is the pane that receives keys. Side by side, focus can rest
// on the list while a conversation stays open; otherwise it follows the
// navigator.
func (m model) historyFocus() pane {
	h := m.history
	if h == nil {
		return paneList
	}
	lay := m.historyLayout()
	if _, ok := h.nav.Selected(); ok && lay.showList && lay.showDetail {
		return h.focus
	}
	return h.nav.Pane()
}

// openHistory opens the pane pair scoped to rec's user. Rows without a user
// id have nothing to show and are ignored.
func (m *model) openHistory(rec QARecord) tea.Cmd {
	if rec.User.ID == "" {
		return nil
	}
	m.history = &historyPane{
		user:  rec.User,
		store: newHistoryStore(m.backend, m.log.With().Str("user_id", rec.User.ID.String()).Logger()),
	}
	m.screen = screenHistory
	m.status = ""
	m.refreshHistoryViewport()
	return m.history.store.LoadConversations(rec.User.ID)
}

func (m *model) closeHistory() {
	m.history = nil
	m.screen = screenQA
	m.status = ""
}

func (m *model) applyFilters(filters queryFilters) tea.Cmd {
	q := m.query.next(filters)
	m.filters = filters
	m.filters.Page = q.Page
	m.qaCursor = 0
	return m.qa.LoadQARecords(q)
}

func (m *model) gotoPage(page int) tea.Cmd {
	total := max(1, totalPages(m.qa.qaTotalCount(), m.query.pageSize))
	if page < 1 || page > total || page == m.query.current().Page {
		return nil
	}
	q := m.query.withPage(page)
	m.filters.Page = q.Page
	m.qaCursor = 0
	return m.qa.LoadQARecords(q)
}

func exportCmd(dir string, now time.Time, records []QARecord) tea.Cmd {
	rows := append([]QARecord(nil), records...)
	return func() tea.Msg {
		path, err := writeExportFile(dir, now, rows)
		return exportedMsg{path: path, rows: len(rows), err: err}
	}
}
